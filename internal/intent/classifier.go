// Package intent turns a free-text request into a routing decision.
package intent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/bowerhall/conductor/internal/llm"
	"github.com/bowerhall/conductor/internal/logger"
)

const (
	maxTokens         = 500
	defaultIntent     = "unknown"
	defaultConfidence = 0.5
	defaultAgent      = "coder"
)

type Classification struct {
	Intent     string   `json:"intent"`
	Confidence float64  `json:"confidence"`
	Agents     []string `json:"agents"`
	Execution  string   `json:"execution"`
	Reasoning  string   `json:"reasoning"`
	// Fallback is set when the keyword heuristics produced the result.
	Fallback bool `json:"fallback"`
}

type Classifier struct {
	llm llm.LLM
}

func New(model llm.LLM) *Classifier {
	return &Classifier{llm: model}
}

// Classify never fails: any provider or parse problem falls back to keyword
// heuristics, and the result always names at least one agent.
func (c *Classifier) Classify(ctx context.Context, query, summary string) Classification {
	prompt := "Classify this request:\n\n" + query
	if summary != "" {
		prompt += "\n\nPrevious context: " + summary
	}

	resp, err := c.llm.Chat(ctx, llm.Request{
		System:    systemPrompt,
		Messages:  []llm.Message{{Role: "user", Content: prompt}},
		MaxTokens: maxTokens,
	})
	if err != nil {
		logger.Warn("intent classification failed, using fallback", "error", err)
		return Fallback(query)
	}

	cls, err := Parse(resp.Content)
	if err != nil {
		logger.Debug("unparsable classification, using fallback", "error", err)
		return Fallback(query)
	}

	return cls
}

type rawClassification struct {
	Intent     *string   `json:"intent"`
	Confidence *float64  `json:"confidence"`
	Agents     *[]string `json:"agents"`
	Execution  string    `json:"execution"`
	Reasoning  string    `json:"reasoning"`
}

// Parse extracts the JSON object between the first '{' and the last '}' of
// text and fills missing fields with defaults.
func Parse(text string) (Classification, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return Classification{}, errors.New("no JSON object in response")
	}

	var raw rawClassification
	if err := json.Unmarshal([]byte(text[start:end+1]), &raw); err != nil {
		return Classification{}, fmt.Errorf("decode classification: %w", err)
	}

	cls := Classification{
		Intent:     defaultIntent,
		Confidence: defaultConfidence,
		Agents:     []string{defaultAgent},
		Execution:  raw.Execution,
		Reasoning:  raw.Reasoning,
	}
	if raw.Intent != nil && strings.TrimSpace(*raw.Intent) != "" {
		cls.Intent = *raw.Intent
	}
	if raw.Confidence != nil {
		cls.Confidence = min(max(*raw.Confidence, 0), 1)
	}
	if raw.Agents != nil {
		var agents []string
		for _, a := range *raw.Agents {
			if a = strings.TrimSpace(a); a != "" {
				agents = append(agents, a)
			}
		}
		if len(agents) > 0 {
			cls.Agents = agents
		}
	}
	if cls.Execution == "" {
		cls.Execution = executionFor(cls.Agents)
	}

	return cls, nil
}

type rule struct {
	words     []string
	intent    string
	agent     string
	reasoning string
}

var rules = []rule{
	{[]string{"test", "pytest", "unittest"}, "test_writing", "test_writer", "Query mentions testing"},
	{[]string{"jira", "ticket", "requirement", "spec"}, "requirement_analysis", "requirement_analyzer", "Query mentions requirements or Jira"},
	{[]string{"lint", "quality", "review", "check"}, "qa_checking", "qa_checker", "Query mentions code quality"},
	{[]string{"document", "docs", "readme", "slack"}, "documentation", "docs_agent", "Query mentions documentation"},
}

// Fallback classifies by keyword. Rules are checked in order and match on
// substrings of the lowercased query.
func Fallback(query string) Classification {
	q := strings.ToLower(query)

	for _, r := range rules {
		for _, w := range r.words {
			if strings.Contains(q, w) {
				return Classification{
					Intent:     r.intent,
					Confidence: 0.7,
					Agents:     []string{r.agent},
					Execution:  "single",
					Reasoning:  r.reasoning,
					Fallback:   true,
				}
			}
		}
	}

	return Classification{
		Intent:     "code_generation",
		Confidence: 0.6,
		Agents:     []string{defaultAgent},
		Execution:  "single",
		Reasoning:  "Default to code generation",
		Fallback:   true,
	}
}

func executionFor(agents []string) string {
	if len(agents) > 1 {
		return "sequential"
	}
	return "single"
}
