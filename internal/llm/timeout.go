package llm

import (
	"context"
	"errors"
	"time"
)

type timeoutLLM struct {
	LLM
	timeout time.Duration
}

// WithTimeout bounds every Chat call. A call that runs out of time fails with a
// ProviderError wrapping context.DeadlineExceeded.
func WithTimeout(model LLM, timeout time.Duration) LLM {
	if timeout <= 0 {
		return model
	}
	return &timeoutLLM{LLM: model, timeout: timeout}
}

func (t *timeoutLLM) Chat(ctx context.Context, req Request) (*ChatResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	resp, err := t.LLM.Chat(ctx, req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, providerError(t.Provider(), 0, context.DeadlineExceeded)
		}
		return nil, providerError(t.Provider(), 0, err)
	}

	return resp, nil
}
