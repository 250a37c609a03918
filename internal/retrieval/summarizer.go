package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/bowerhall/conductor/internal/llm"
	"github.com/bowerhall/conductor/internal/memory"
)

const (
	observationSummaryTokens = 100
	sessionSummaryTokens     = 300
	sessionSampleSize        = 5
)

// Summarizer writes short LLM summaries of observations and sessions.
type Summarizer struct {
	model llm.LLM
}

func NewSummarizer(model llm.LLM) *Summarizer {
	return &Summarizer{model: model}
}

func (s *Summarizer) SummarizeObservation(ctx context.Context, obs memory.Observation) (string, error) {
	prompt := fmt.Sprintf("Summarize this %s observation in one concise sentence (max 20 words):\n\nTool: %s\nContent: %s\n\nSummary:",
		obs.Type, obs.ToolName, truncate(obs.Content, 500))

	return s.ask(ctx, prompt, observationSummaryTokens)
}

// SummarizeSession summarizes type counts plus the first few observations.
func (s *Summarizer) SummarizeSession(ctx context.Context, observations []memory.Observation) (string, error) {
	if len(observations) == 0 {
		return "", errors.New("no observations in session")
	}

	counts := make(map[string]int)
	for _, o := range observations {
		counts[o.Type]++
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Session had %d total observations:\n", len(observations))
	fmt.Fprintf(&b, "- %d tool uses\n", counts[memory.TypeToolUse])
	fmt.Fprintf(&b, "- %d decisions\n", counts[memory.TypeDecision])
	fmt.Fprintf(&b, "- %d preferences\n\n", counts[memory.TypePreference])
	b.WriteString("Sample observations:\n")

	for i, o := range observations {
		if i == sessionSampleSize {
			break
		}
		fmt.Fprintf(&b, "%d. [%s] %s\n", i+1, o.Type, truncate(o.Content, 100))
	}

	prompt := fmt.Sprintf("Summarize this coding session in 2-3 concise sentences:\n\n%s\n\nSummary:", b.String())
	return s.ask(ctx, prompt, sessionSummaryTokens)
}

// BatchSummarize summarizes up to concurrency observations at a time. Failed
// observations are left out of the result.
func (s *Summarizer) BatchSummarize(ctx context.Context, observations []memory.Observation, concurrency int) map[int64]string {
	if concurrency <= 0 {
		concurrency = 5
	}

	summaries := make([]string, len(observations))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, obs := range observations {
		g.Go(func() error {
			summary, err := s.SummarizeObservation(gctx, obs)
			if err == nil {
				summaries[i] = summary
			}
			return nil
		})
	}
	g.Wait()

	result := make(map[int64]string)
	for i, obs := range observations {
		if summaries[i] != "" {
			result[obs.ID] = summaries[i]
		}
	}
	return result
}

func (s *Summarizer) ask(ctx context.Context, prompt string, maxTokens int) (string, error) {
	resp, err := s.model.Chat(ctx, llm.Request{
		Messages:  []llm.Message{{Role: "user", Content: prompt}},
		MaxTokens: maxTokens,
	})
	if err != nil {
		return "", err
	}

	summary := strings.TrimSpace(resp.Content)
	if summary == "" {
		return "", errors.New("empty summary")
	}
	return summary, nil
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
