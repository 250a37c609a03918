package llm

import (
	"context"
	"strings"
	"time"
)

const defaultMaxRetries = 3
const baseDelay = 2 * time.Second

func isRetryableError(err error) bool {
	errStr := err.Error()
	return strings.Contains(errStr, "529") ||
		strings.Contains(errStr, "overloaded") ||
		strings.Contains(errStr, "Overloaded") ||
		strings.Contains(errStr, "503") ||
		strings.Contains(errStr, "502")
}

func isRetryableStatus(code int) bool {
	return code == 529 || code == 503 || code == 502 || code == 500 || code == 429
}

// backoff waits baseDelay*2^attempt or until ctx is done.
func backoff(ctx context.Context, attempt int) error {
	timer := time.NewTimer(baseDelay * time.Duration(1<<attempt))
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
