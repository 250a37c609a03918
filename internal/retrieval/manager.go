package retrieval

import (
	"context"
	"fmt"
	"strconv"

	"github.com/bowerhall/conductor/internal/logger"
	"github.com/bowerhall/conductor/internal/memory"
	"github.com/bowerhall/conductor/internal/vector"
)

const (
	ModeKeyword  = "keyword"
	ModeSemantic = "semantic"
	ModeHybrid   = "hybrid"
)

// Manager is the single entry point for capturing and searching memory. It
// writes every observation to the store and, best effort, to the vector index.
type Manager struct {
	store         *memory.Store
	index         *vector.Index
	hybrid        *Hybrid
	summarizer    *Summarizer
	autoSummarize bool
}

type Options struct {
	Summarizer    *Summarizer
	AutoSummarize bool
}

func NewManager(store *memory.Store, index *vector.Index, opts Options) *Manager {
	m := &Manager{
		store:         store,
		index:         index,
		summarizer:    opts.Summarizer,
		autoSummarize: opts.AutoSummarize && opts.Summarizer != nil,
	}

	var semantic SemanticSearcher
	if index != nil {
		semantic = index
	}
	m.hybrid = NewHybrid(store, semantic)
	return m
}

// Capture records one observation and returns its id. Summarization and
// vector indexing failures are logged and never fail the capture.
func (m *Manager) Capture(ctx context.Context, obs memory.Observation) (int64, error) {
	if obs.SessionID == "" {
		obs.SessionID = memory.DefaultSessionID
	}

	if m.autoSummarize && obs.Summary == "" {
		summary, err := m.summarizer.SummarizeObservation(ctx, obs)
		if err != nil {
			logger.Debug("observation summary skipped", "error", err)
		} else {
			obs.Summary = summary
		}
	}

	id, err := m.store.Add(ctx, obs)
	if err != nil {
		return 0, fmt.Errorf("capture observation: %w", err)
	}

	if m.index != nil {
		text := obs.Type + ": " + obs.Content
		if obs.Summary != "" {
			text = obs.Summary + " | " + text
		}

		metadata := map[string]any{"session_id": obs.SessionID}
		if obs.ToolName != "" {
			metadata["tool_name"] = obs.ToolName
		}
		for k, v := range obs.Metadata {
			metadata[k] = v
		}

		if err := m.index.Add(ctx, text, strconv.FormatInt(id, 10), obs.Type, metadata); err != nil {
			logger.Warn("vector snapshot write failed", "observation", id, "error", err)
		}
	}

	return id, nil
}

// Search runs mode "keyword", "semantic" or "hybrid".
func (m *Manager) Search(ctx context.Context, query string, limit int, mode string) ([]Result, error) {
	if limit <= 0 {
		limit = 10
	}

	switch mode {
	case ModeKeyword:
		hits, err := m.store.SearchKeyword(ctx, query, limit, "")
		if err != nil {
			return nil, err
		}
		results := make([]Result, len(hits))
		for i, hit := range hits {
			results[i] = fromObservation(hit.Observation)
			results[i].Score = -hit.Rank
			results[i].Source = SourceKeyword
		}
		return results, nil
	case ModeSemantic:
		if m.index == nil {
			return []Result{}, nil
		}
		hits := m.index.Search(ctx, query, limit, "")
		results := make([]Result, len(hits))
		for i, hit := range hits {
			results[i] = fromHit(hit)
			results[i].Score = hit.Similarity
			results[i].Source = SourceSemantic
		}
		return results, nil
	case ModeHybrid, "":
		return m.hybrid.Search(ctx, query, limit, DefaultWeight, DefaultWeight), nil
	default:
		return nil, fmt.Errorf("unknown search mode: %s", mode)
	}
}

func (m *Manager) Recent(ctx context.Context, limit int) ([]memory.Observation, error) {
	return m.store.Recent(ctx, limit, "")
}

func (m *Manager) StartSession(ctx context.Context, sessionID string, metadata map[string]any) error {
	return m.store.StartSession(ctx, sessionID, metadata)
}

// EndSession closes the session, storing a generated summary when possible.
func (m *Manager) EndSession(ctx context.Context, sessionID string) error {
	summary, _ := m.SessionSummary(ctx, sessionID)
	return m.store.EndSession(ctx, sessionID, summary)
}

// SessionSummary summarizes a session's observations. It always returns
// readable text; the error explains a degraded result.
func (m *Manager) SessionSummary(ctx context.Context, sessionID string) (string, error) {
	observations, err := m.store.SessionObservations(ctx, sessionID)
	if err != nil {
		return "Unable to load session observations", err
	}
	if len(observations) == 0 {
		return "No observations in session", nil
	}
	if m.summarizer == nil {
		return fmt.Sprintf("Session with %d observations. Summarization unavailable.", len(observations)), nil
	}

	summary, err := m.summarizer.SummarizeSession(ctx, observations)
	if err != nil {
		return fmt.Sprintf("Session with %d observations. Summarization unavailable.", len(observations)), err
	}
	return summary, nil
}

// BackfillSummaries summarizes up to batch observations that have none yet
// and returns how many were updated.
func (m *Manager) BackfillSummaries(ctx context.Context, batch int) (int, error) {
	if m.summarizer == nil {
		return 0, nil
	}

	pending, err := m.store.Unsummarized(ctx, batch)
	if err != nil {
		return 0, err
	}
	if len(pending) == 0 {
		return 0, nil
	}

	updated := 0
	for id, summary := range m.summarizer.BatchSummarize(ctx, pending, 5) {
		if err := m.store.UpdateSummary(ctx, id, summary); err != nil {
			logger.Warn("failed to store observation summary", "observation", id, "error", err)
			continue
		}
		updated++
	}
	return updated, nil
}

// Remember stores a durable preference or decision outside the observation log.
func (m *Manager) Remember(ctx context.Context, memType, content string, metadata map[string]any) (int64, error) {
	return m.store.AddMemory(ctx, memType, content, metadata)
}

func (m *Manager) Memories(ctx context.Context, query string, limit int) ([]memory.Memory, error) {
	return m.store.SearchMemories(ctx, query, limit)
}

type Stats struct {
	*memory.Stats
	Vectors vector.Stats `json:"vector_store"`
}

func (m *Manager) Stats(ctx context.Context) (*Stats, error) {
	st, err := m.store.Stats(ctx)
	if err != nil {
		return nil, err
	}

	out := &Stats{Stats: st}
	if m.index != nil {
		out.Vectors = m.index.Stats()
	}
	return out, nil
}
