package budget

import (
	"context"
	"errors"

	"github.com/bowerhall/conductor/internal/llm"
	"github.com/bowerhall/conductor/internal/session"
)

var ErrDailyLimit = errors.New("daily token budget exhausted")

type metered struct {
	llm.LLM
	tracker *Tracker
}

// Meter records the usage of every call made through model. Once the daily
// limit is reached further calls fail with a ProviderError wrapping
// ErrDailyLimit, so callers fall back exactly as they do on provider outages.
func Meter(model llm.LLM, tracker *Tracker) llm.LLM {
	if tracker == nil {
		return model
	}
	return &metered{LLM: model, tracker: tracker}
}

func (m *metered) Chat(ctx context.Context, req llm.Request) (*llm.ChatResponse, error) {
	if m.tracker.Exceeded() {
		return nil, &llm.ProviderError{Provider: m.Provider(), Err: ErrDailyLimit}
	}

	resp, err := m.LLM.Chat(ctx, req)
	if err != nil {
		return nil, err
	}

	if resp.Usage != nil {
		m.tracker.Record(UsageRecord{
			SessionID:    session.IDFrom(ctx),
			Provider:     m.Provider(),
			Model:        m.Model(),
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		})
	}

	return resp, nil
}
