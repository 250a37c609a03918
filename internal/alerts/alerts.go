// Package alerts notifies an operator about pipeline failures, suppressing
// repeats of the same alert within a cooldown window.
package alerts

import (
	"fmt"
	"sync"
	"time"

	"github.com/bowerhall/conductor/internal/logger"
)

type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarn
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityCritical:
		return "critical"
	case SeverityWarn:
		return "warn"
	default:
		return "info"
	}
}

type NotifyFunc func(message string)

type Alerter struct {
	mu        sync.Mutex
	notify    NotifyFunc
	cooldowns map[string]time.Time
	cooldown  time.Duration
	now       func() time.Time
}

// New returns an Alerter. A nil notify only logs.
func New(notify NotifyFunc, cooldown time.Duration) *Alerter {
	return &Alerter{
		notify:    notify,
		cooldowns: make(map[string]time.Time),
		cooldown:  cooldown,
		now:       time.Now,
	}
}

// SetNotify swaps the delivery channel, e.g. once a chat bot is connected.
func (a *Alerter) SetNotify(notify NotifyFunc) {
	if a == nil {
		return
	}
	a.mu.Lock()
	a.notify = notify
	a.mu.Unlock()
}

func (a *Alerter) Alert(severity Severity, component, message string, err error) {
	if a == nil {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	key := fmt.Sprintf("%s:%s", component, message)

	if lastSent, ok := a.cooldowns[key]; ok {
		if a.now().Sub(lastSent) < a.cooldown {
			logger.Debug("alert suppressed (cooldown)", "component", component, "message", message)
			return
		}
	}

	text := fmt.Sprintf("[%s] %s: %s", severity, component, message)
	if err != nil {
		text += fmt.Sprintf("\n\nError: %v", err)
	}

	a.cooldowns[key] = a.now()

	if a.notify == nil {
		logger.Warn("alert", "severity", severity.String(), "component", component, "message", message, "error", err)
		return
	}

	a.notify(text)
	logger.Info("alert sent", "component", component, "severity", severity.String())
}

func (a *Alerter) Critical(component, message string, err error) {
	a.Alert(SeverityCritical, component, message, err)
}

func (a *Alerter) Warn(component, message string, err error) {
	a.Alert(SeverityWarn, component, message, err)
}
