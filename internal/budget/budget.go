// Package budget meters LLM token usage against a daily limit and records
// every call in a sqlite usage ledger.
package budget

import (
	"sync"
	"time"

	"github.com/bowerhall/conductor/internal/logger"
)

type Tracker struct {
	mu         sync.Mutex
	dailyLimit int
	warnAt     float64
	tokens     int
	lastReset  time.Time
	onWarn     func(used, limit int)
	onExceeded func(used, limit int)
	warnSent   bool
	timezone   *time.Location
	store      *Store
}

type Config struct {
	DailyLimit int
	WarnAt     float64
	Timezone   *time.Location
}

func NewTracker(cfg Config, onWarn, onExceeded func(used, limit int)) *Tracker {
	tz := cfg.Timezone
	if tz == nil {
		tz = time.UTC
	}

	return &Tracker{
		dailyLimit: cfg.DailyLimit,
		warnAt:     cfg.WarnAt,
		lastReset:  time.Now().In(tz),
		onWarn:     onWarn,
		onExceeded: onExceeded,
		timezone:   tz,
	}
}

// SetStore attaches the ledger and seeds today's usage from it.
func (t *Tracker) SetStore(s *Store) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.store = s

	if s != nil {
		if tokens, err := s.TodayTokens(); err == nil {
			t.tokens = tokens
			if t.dailyLimit > 0 && float64(t.tokens) >= float64(t.dailyLimit)*t.warnAt {
				t.warnSent = true
			}
		}
	}
}

func (t *Tracker) Store() *Store {
	return t.store
}

// Add counts tokens and reports whether usage is still under the daily limit.
// A zero limit disables the check.
func (t *Tracker) Add(tokens int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.checkReset()
	t.tokens += tokens

	if t.dailyLimit <= 0 {
		return true
	}

	if t.tokens >= t.dailyLimit {
		if t.onExceeded != nil {
			t.onExceeded(t.tokens, t.dailyLimit)
		}

		return false
	}

	if !t.warnSent && float64(t.tokens) >= float64(t.dailyLimit)*t.warnAt {
		t.warnSent = true

		if t.onWarn != nil {
			t.onWarn(t.tokens, t.dailyLimit)
		}
	}

	return true
}

// Exceeded reports whether today's usage already reached the limit.
func (t *Tracker) Exceeded() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.checkReset()
	return t.dailyLimit > 0 && t.tokens >= t.dailyLimit
}

func (t *Tracker) Record(u UsageRecord) bool {
	if t.store != nil {
		if err := t.store.Record(u); err != nil {
			logger.Warn("budget: failed to record usage", "error", err, "session", u.SessionID)
		}
	}

	return t.Add(u.InputTokens + u.OutputTokens)
}

func (t *Tracker) Usage() (used, limit int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.checkReset()
	return t.tokens, t.dailyLimit
}

// must hold lock
func (t *Tracker) checkReset() {
	now := time.Now().In(t.timezone)
	if now.YearDay() != t.lastReset.YearDay() || now.Year() != t.lastReset.Year() {
		t.tokens = 0
		t.warnSent = false
		t.lastReset = now
	}
}
