// Package orchestrator runs one request through classification, agent
// selection, sequential execution, aggregation and context upkeep.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"

	"github.com/google/uuid"

	"github.com/bowerhall/conductor/internal/agent"
	"github.com/bowerhall/conductor/internal/alerts"
	"github.com/bowerhall/conductor/internal/contextmgr"
	"github.com/bowerhall/conductor/internal/intent"
	"github.com/bowerhall/conductor/internal/logger"
	"github.com/bowerhall/conductor/internal/registry"
	"github.com/bowerhall/conductor/internal/retrieval"
	"github.com/bowerhall/conductor/internal/session"
	"github.com/bowerhall/conductor/internal/validate"
)

const (
	MsgUnroutable  = "I'm not sure how to handle that request. Could you please rephrase or provide more details?"
	MsgNoResponse  = "No response generated."
	MsgCompleted   = "Task completed."
	msgErrorPrefix = "An error occurred while processing your request: "
)

type Orchestrator struct {
	classifier *intent.Classifier
	registry   *registry.Registry
	contexts   *contextmgr.Manager
	sessions   *session.Store
	memory     *retrieval.Manager
	alerts     *alerts.Alerter
	newID      func() string
}

func New(classifier *intent.Classifier, reg *registry.Registry, contexts *contextmgr.Manager) *Orchestrator {
	return &Orchestrator{
		classifier: classifier,
		registry:   reg,
		contexts:   contexts,
		sessions:   session.NewStore(),
		newID:      uuid.NewString,
	}
}

// SetMemory enables observation capture for every executed agent.
func (o *Orchestrator) SetMemory(m *retrieval.Manager) {
	o.memory = m
}

func (o *Orchestrator) SetAlerter(a *alerts.Alerter) {
	o.alerts = a
}

func (o *Orchestrator) Memory() *retrieval.Manager {
	return o.memory
}

// Result is the structured outcome of one request.
type Result struct {
	SessionID      string                `json:"session_id"`
	Response       string                `json:"response"`
	Classification intent.Classification `json:"classification"`
	Routed         bool                  `json:"routed"`
	Responses      []agent.Response      `json:"responses"`
	TokensUsed     int                   `json:"tokens_used"`
	Summarized     bool                  `json:"summarized"`
}

// ProcessRequest always returns text for the user. An empty sessionID gets a
// fresh one.
func (o *Orchestrator) ProcessRequest(ctx context.Context, query, sessionID string) string {
	res, err := o.Handle(ctx, query, sessionID)
	if err != nil {
		var vErr *validate.ValidationError
		if errors.As(err, &vErr) {
			return "Invalid request: " + vErr.Error()
		}
		return msgErrorPrefix + err.Error()
	}
	return res.Response
}

// Handle validates the request, then runs it while holding the session's
// processing lock. Validation failures return a ValidationError before any
// state changes. Panics inside the pipeline come back as errors.
func (o *Orchestrator) Handle(ctx context.Context, query, sessionID string) (res *Result, err error) {
	if sessionID == "" {
		sessionID = o.newID()
	}
	if err := validate.SessionID(sessionID); err != nil {
		return nil, err
	}

	query, err = validate.Input(query)
	if err != nil {
		return nil, err
	}
	if query == "" {
		return nil, &validate.ValidationError{Field: "input", Reason: "must not be empty"}
	}

	sess := o.sessions.Get(sessionID)
	sess.Lock()
	defer sess.Release()

	defer func() {
		if r := recover(); r != nil {
			logger.Error("request panicked", "session", sessionID, "panic", r, "stack", string(debug.Stack()))
			o.alerts.Critical("orchestrator", "request panicked", fmt.Errorf("%v", r))
			res, err = nil, fmt.Errorf("%v", r)
		}
	}()

	return o.run(session.WithID(ctx, sessionID), query, sessionID)
}

func (o *Orchestrator) run(ctx context.Context, query, sessionID string) (*Result, error) {
	logger.Info("processing request", "session", sessionID)

	sc := o.contexts.Get(ctx, sessionID)

	cls := o.classifier.Classify(ctx, query, sc.Summary)
	logger.Info("intent classified", "session", sessionID, "intent", cls.Intent, "confidence", cls.Confidence, "fallback", cls.Fallback)

	res := &Result{SessionID: sessionID, Classification: cls}

	agents := o.selectAgents(cls)
	if len(agents) == 0 {
		logger.Warn("no agents for request", "session", sessionID, "intent", cls.Intent, "agents", cls.Agents)
		res.Response = MsgUnroutable
		return res, nil
	}
	res.Routed = true

	res.Responses = o.execute(ctx, agents, query, cls.Intent, sc)
	res.Response = Aggregate(res.Responses)
	for _, r := range res.Responses {
		res.TokensUsed += r.TokensUsed
	}

	if err := o.contexts.Update(ctx, sessionID, query, res.Response, res.Responses, res.TokensUsed); err != nil {
		o.alerts.Warn("context", "snapshot save failed", err)
	}

	o.capture(ctx, sessionID, query, cls.Intent, res.Responses)

	if o.contexts.ShouldSummarize(ctx, sessionID) {
		logger.Info("context threshold reached, summarizing", "session", sessionID)
		if err := o.contexts.Summarize(ctx, sessionID); err != nil {
			logger.Warn("summarization failed, keeping full context", "session", sessionID, "error", err)
			o.alerts.Warn("context", "summarization failed", err)
		} else {
			res.Summarized = true
		}
	}

	return res, nil
}

// selectAgents prefers the agents the classifier named. When none of them are
// registered the intent table decides.
func (o *Orchestrator) selectAgents(cls intent.Classification) []agent.Agent {
	var agents []agent.Agent
	for _, name := range cls.Agents {
		if a, ok := o.registry.Get(name); ok {
			agents = append(agents, a)
		}
	}
	if len(agents) > 0 {
		return agents
	}
	return o.registry.Resolve(cls.Intent)
}

// execute runs agents in order and stops after the first failure. Responses
// gathered so far are all returned.
func (o *Orchestrator) execute(ctx context.Context, agents []agent.Agent, query, intentName string, sc *session.Context) []agent.Response {
	var responses []agent.Response

	for _, a := range agents {
		task := agent.Task{
			TaskID:     o.newID(),
			UserQuery:  query,
			Intent:     intentName,
			Parameters: map[string]any{},
		}

		logger.Info("executing agent", "agent", a.Name(), "task", task.TaskID)
		resp := a.Execute(ctx, task, sc)
		if resp.Agent == "" {
			resp.Agent = a.Name()
		}
		responses = append(responses, resp)

		if resp.Failed() {
			logger.Error("agent failed, stopping chain", "agent", a.Name(), "errors", resp.Errors)
			o.alerts.Warn("agent:"+a.Name(), "agent execution failed", errors.New(strings.Join(resp.Errors, "; ")))
			break
		}
	}

	return responses
}

// Aggregate renders agent responses as one reply.
func Aggregate(responses []agent.Response) string {
	switch len(responses) {
	case 0:
		return MsgNoResponse
	case 1:
		if text := resultText(responses[0]); text != "" {
			return text
		}
		return MsgCompleted
	}

	parts := make([]string, len(responses))
	for i, r := range responses {
		parts[i] = fmt.Sprintf("## %s\n\n%s\n", title(r.Agent), resultText(r))
	}
	return strings.Join(parts, "\n")
}

func resultText(r agent.Response) string {
	if r.Failed() {
		if len(r.Errors) == 0 {
			return "Error: agent failed"
		}
		return "Error: " + strings.Join(r.Errors, "; ")
	}
	return r.Result
}

// title turns "test_writer" into "Test Writer".
func title(name string) string {
	words := strings.Fields(strings.ReplaceAll(name, "_", " "))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// Busy reports whether a request for the session is being processed.
func (o *Orchestrator) Busy(sessionID string) bool {
	sess := o.sessions.Get(sessionID)
	if sess.TryAcquire() {
		sess.Release()
		return false
	}
	return true
}

// ListAgents maps agent names to capability tags.
func (o *Orchestrator) ListAgents() map[string][]string {
	return o.registry.List()
}

// AgentNames lists agents in registration order.
func (o *Orchestrator) AgentNames() []string {
	return o.registry.Names()
}

// Context returns a copy of the session context, or nil if unknown.
func (o *Orchestrator) Context(ctx context.Context, sessionID string) *session.Context {
	return o.contexts.Snapshot(ctx, sessionID)
}

// ClearSession drops the session's context and closes its memory session.
func (o *Orchestrator) ClearSession(ctx context.Context, sessionID string) error {
	if err := validate.SessionID(sessionID); err != nil {
		return err
	}

	sess := o.sessions.Get(sessionID)
	sess.Lock()
	defer sess.Release()

	if o.memory != nil {
		if err := o.memory.EndSession(ctx, sessionID); err != nil {
			logger.Warn("failed to close memory session", "session", sessionID, "error", err)
		}
	}

	return o.contexts.Clear(ctx, sessionID)
}
