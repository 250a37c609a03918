// Package registry maps agent names to agents and capability tags, and
// intents to ordered agent lists.
package registry

import (
	"slices"
	"strings"
	"sync"

	"github.com/bowerhall/conductor/internal/agent"
	"github.com/bowerhall/conductor/internal/config"
	"github.com/bowerhall/conductor/internal/logger"
)

type mapping struct {
	intent string
	agents []string
}

// Registry is built at startup and read on every request. The intent table
// keeps insertion order so the substring fallback in Resolve is reproducible.
type Registry struct {
	mu           sync.RWMutex
	agents       map[string]agent.Agent
	order        []string
	capabilities map[string][]string
	mappings     []mapping
	index        map[string]int
}

var defaultMappings = []mapping{
	{"code_generation", []string{"coder"}},
	{"code_review", []string{"coder", "qa_checker"}},
	{"test_writing", []string{"test_writer"}},
	{"test_generation", []string{"test_writer"}},
	{"requirement_analysis", []string{"requirement_analyzer"}},
	{"requirements", []string{"requirement_analyzer"}},
	{"qa_checking", []string{"qa_checker"}},
	{"quality_assurance", []string{"qa_checker"}},
	{"code_quality", []string{"qa_checker"}},
	{"documentation", []string{"docs_agent"}},
	{"docs", []string{"docs_agent"}},
	{"jira", []string{"requirement_analyzer"}},
	{"confluence", []string{"requirement_analyzer", "docs_agent"}},
	{"slack", []string{"docs_agent"}},
	{"ci_cd", []string{"devops"}},
	{"cicd", []string{"devops"}},
	{"deployment", []string{"devops"}},
	{"deploy", []string{"devops"}},
	{"release", []string{"devops"}},
	{"release_management", []string{"devops"}},
	{"github_actions", []string{"devops"}},
	{"workflow", []string{"devops"}},
	{"pipeline", []string{"devops"}},
	{"docker", []string{"devops"}},
	{"dockerfile", []string{"devops"}},
	{"containerization", []string{"devops"}},
	{"infrastructure", []string{"devops"}},
	{"devops", []string{"devops"}},
	{"ship", []string{"devops"}},
	{"production", []string{"devops"}},
}

// New returns a registry seeded with the built-in intent table.
func New() *Registry {
	r := Empty()
	for _, m := range defaultMappings {
		r.AddMapping(m.intent, m.agents)
	}
	return r
}

// Empty returns a registry with no agents and no intent table.
func Empty() *Registry {
	return &Registry{
		agents:       make(map[string]agent.Agent),
		capabilities: make(map[string][]string),
		index:        make(map[string]int),
	}
}

// Register records a under its name. A later registration under the same name
// replaces the agent and its capabilities but keeps its listing position.
func (r *Registry) Register(a agent.Agent, capabilities []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := a.Name()
	if _, exists := r.agents[name]; !exists {
		r.order = append(r.order, name)
	}
	r.agents[name] = a
	r.capabilities[name] = slices.Clone(capabilities)

	logger.Debug("registered agent", "agent", name, "capabilities", capabilities)
}

// AddMapping appends a new intent or replaces an existing one in place.
func (r *Registry) AddMapping(intent string, agents []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := normalize(intent)
	if pos, ok := r.index[key]; ok {
		r.mappings[pos].agents = slices.Clone(agents)
		return
	}
	r.index[key] = len(r.mappings)
	r.mappings = append(r.mappings, mapping{intent: key, agents: slices.Clone(agents)})
}

// ApplyRoutes layers a routing file over the current table.
func (r *Registry) ApplyRoutes(routes *config.Routes) {
	if routes == nil {
		return
	}
	for _, route := range routes.Intents {
		r.AddMapping(route.Intent, route.Agents)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for name, caps := range routes.Capabilities {
		for _, c := range caps {
			if !slices.Contains(r.capabilities[name], c) {
				r.capabilities[name] = append(r.capabilities[name], c)
			}
		}
	}
}

// Resolve returns the agents for an intent. An exact key wins; otherwise the
// first key, in table order, that contains or is contained in the intent and
// maps to at least one registered agent. This is plain substring matching:
// "cicd_pipeline" does not match "ci_cd". An empty result means unroutable.
func (r *Registry) Resolve(intent string) []agent.Agent {
	key := normalize(intent)
	if key == "" {
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if pos, ok := r.index[key]; ok {
		return r.registered(r.mappings[pos].agents)
	}

	for _, m := range r.mappings {
		if strings.Contains(key, m.intent) || strings.Contains(m.intent, key) {
			if agents := r.registered(m.agents); len(agents) > 0 {
				return agents
			}
		}
	}

	return nil
}

func (r *Registry) registered(names []string) []agent.Agent {
	var out []agent.Agent
	for _, name := range names {
		if a, ok := r.agents[name]; ok {
			out = append(out, a)
		}
	}
	return out
}

// ByCapability lists agents carrying tag, in registration order.
func (r *Registry) ByCapability(tag string) []agent.Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []agent.Agent
	for _, name := range r.order {
		if slices.Contains(r.capabilities[name], tag) {
			out = append(out, r.agents[name])
		}
	}
	return out
}

func (r *Registry) Get(name string) (agent.Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.agents[name]
	return a, ok
}

func (r *Registry) IsRegistered(name string) bool {
	_, ok := r.Get(name)
	return ok
}

// All returns agents in registration order.
func (r *Registry) All() []agent.Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]agent.Agent, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.agents[name])
	}
	return out
}

// Names returns agent names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.order)
}

// List maps each agent name to its capability tags.
func (r *Registry) List() map[string][]string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string][]string, len(r.capabilities))
	for name, caps := range r.capabilities {
		out[name] = slices.Clone(caps)
	}
	return out
}

// Intents returns the intent keys in table order.
func (r *Registry) Intents() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, len(r.mappings))
	for i, m := range r.mappings {
		out[i] = m.intent
	}
	return out
}

func normalize(intent string) string {
	return strings.ToLower(strings.TrimSpace(intent))
}
