// Package validate rejects malformed input at the process boundary, before any
// session or memory state is touched.
package validate

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

const (
	MaxInputLength     = 10000
	MaxSessionIDLength = 100
	MaxAgentNameLength = 50
)

var (
	sessionIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
	agentNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)
)

// ValidationError reports which field was rejected and why.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

func SessionID(id string) error {
	if id == "" {
		return invalid("session id", "must be a non-empty string")
	}
	if !sessionIDPattern.MatchString(id) {
		return invalid("session id", "must contain only alphanumeric characters, hyphens, and underscores")
	}
	if len(id) > MaxSessionIDLength {
		return invalid("session id", fmt.Sprintf("too long (max %d characters)", MaxSessionIDLength))
	}
	return nil
}

func AgentName(name string) error {
	if name == "" {
		return invalid("agent name", "must be a non-empty string")
	}
	if !agentNamePattern.MatchString(name) {
		return invalid("agent name", "must start with a lowercase letter and contain only lowercase letters, numbers, and underscores")
	}
	if len(name) > MaxAgentNameLength {
		return invalid("agent name", fmt.Sprintf("too long (max %d characters)", MaxAgentNameLength))
	}
	return nil
}

// Input enforces the length cap and strips control characters other than
// whitespace. The result is trimmed.
func Input(text string) (string, error) {
	if len([]rune(text)) > MaxInputLength {
		return "", invalid("input", fmt.Sprintf("too long (max %d characters)", MaxInputLength))
	}

	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsPrint(r) || unicode.IsSpace(r) {
			return r
		}
		return -1
	}, text)

	return strings.TrimSpace(cleaned), nil
}

// FilePath rejects empty paths and any path containing "..".
func FilePath(path string) error {
	if strings.TrimSpace(path) == "" {
		return invalid("path", "must be a non-empty string")
	}
	if strings.Contains(path, "..") {
		return invalid("path", "contains directory traversal")
	}
	return nil
}
