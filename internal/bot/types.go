// Package bot connects chat platforms to the orchestrator. Every chat maps to
// one session id of the form "{platform}_{chatID}".
package bot

import "context"

type Bot interface {
	Start(ctx context.Context) error
	Send(chatID, message string) error
	Platform() string
}

// Processor is the slice of the orchestrator the bots use.
type Processor interface {
	ProcessRequest(ctx context.Context, query, sessionID string) string
	ClearSession(ctx context.Context, sessionID string) error
	AgentNames() []string
	Busy(sessionID string) bool
}
