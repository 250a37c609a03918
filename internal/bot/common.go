package bot

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/bowerhall/conductor/internal/logger"
)

// stopWords cancel the request currently running in the same chat. Kept
// minimal to avoid false positives.
var stopWords = []string{"stop", "cancel", "abort", "nevermind", "never mind", "halt"}

const helpText = `Send me a software engineering request and I'll route it to the right agents.

Commands:
/agents - list available agents
/clear - forget this conversation
stop - cancel the request in progress`

func isStopCommand(text string) bool {
	lower := strings.ToLower(strings.TrimSpace(text))
	for _, word := range stopWords {
		if lower == word {
			return true
		}
	}
	return false
}

func sessionID(platform, chatID string) string {
	return platform + "_" + chatID
}

// dispatcher holds the logic shared by every platform: commands, stop words
// and in-flight cancellation.
type dispatcher struct {
	platform string
	proc     Processor

	mu     sync.Mutex
	active map[string]context.CancelFunc
}

func newDispatcher(platform string, proc Processor) *dispatcher {
	return &dispatcher{platform: platform, proc: proc, active: make(map[string]context.CancelFunc)}
}

// handle returns the reply for one incoming message. An empty reply means
// nothing should be sent.
func (d *dispatcher) handle(ctx context.Context, chatID, text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}

	sid := sessionID(d.platform, chatID)

	if isStopCommand(text) {
		if d.cancel(sid) {
			return "Stopped."
		}
		return "Nothing is running."
	}

	switch command(text) {
	case "/start", "/help":
		return helpText
	case "/clear", "/reset":
		if err := d.proc.ClearSession(ctx, sid); err != nil {
			logger.Error("failed to clear session", "session", sid, "error", err)
			return "Couldn't clear the conversation."
		}
		return "Conversation cleared."
	case "/agents":
		return "Available agents:\n- " + strings.Join(d.proc.AgentNames(), "\n- ")
	}

	if d.proc.Busy(sid) {
		return "Still working on your last request. Send stop to cancel it."
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.mu.Lock()
	d.active[sid] = cancel
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		delete(d.active, sid)
		d.mu.Unlock()
		cancel()
	}()

	logger.Info("message received", "session", sid, "text", truncate(text, 50))
	reply := d.proc.ProcessRequest(runCtx, text, sid)

	if runCtx.Err() != nil && ctx.Err() == nil {
		return ""
	}
	return reply
}

func (d *dispatcher) cancel(sid string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	cancel, ok := d.active[sid]
	if ok {
		cancel()
		delete(d.active, sid)
	}
	return ok
}

// command extracts "/cmd" from "/cmd@botname args".
func command(text string) string {
	if !strings.HasPrefix(text, "/") {
		return ""
	}
	cmd := strings.Fields(text)[0]
	if at := strings.Index(cmd, "@"); at > 0 {
		cmd = cmd[:at]
	}
	return strings.ToLower(cmd)
}

// chunk splits message into pieces of at most limit runes, preferring line
// breaks.
func chunk(message string, limit int) []string {
	runes := []rune(message)
	var parts []string

	for len(runes) > limit {
		cut := limit
		for i := limit; i > limit/2; i-- {
			if runes[i-1] == '\n' {
				cut = i
				break
			}
		}
		parts = append(parts, string(runes[:cut]))
		runes = runes[cut:]
	}

	if len(runes) > 0 || len(parts) == 0 {
		parts = append(parts, string(runes))
	}
	return parts
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}

// Notifier adapts a bot to alerts.NotifyFunc for one owner chat.
func Notifier(b Bot, chatID string) func(string) {
	return func(message string) {
		if err := b.Send(chatID, message); err != nil {
			logger.Warn("alert delivery failed", "platform", b.Platform(), "error", err)
		}
	}
}

func errUnknownPlatform(name string) error {
	return fmt.Errorf("unknown bot platform: %s", name)
}
