// Package retrieval searches captured observations by keyword, by embedding
// similarity, or by a weighted fusion of both.
package retrieval

import (
	"context"
	"sort"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bowerhall/conductor/internal/logger"
	"github.com/bowerhall/conductor/internal/memory"
	"github.com/bowerhall/conductor/internal/vector"
)

const (
	SourceKeyword  = "keyword"
	SourceSemantic = "semantic"
	SourceHybrid   = "hybrid"
)

const DefaultWeight = 0.5

// Result is one ranked document from any search mode. DocID is the
// observation id in decimal.
type Result struct {
	DocID     string         `json:"doc_id"`
	Type      string         `json:"type"`
	SessionID string         `json:"session_id,omitempty"`
	ToolName  string         `json:"tool_name,omitempty"`
	Content   string         `json:"content"`
	Summary   string         `json:"summary,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Timestamp time.Time      `json:"timestamp,omitzero"`
	Score     float64        `json:"score"`
	Source    string         `json:"source"`
}

type KeywordSearcher interface {
	SearchKeyword(ctx context.Context, query string, limit int, typeFilter string) ([]memory.SearchResult, error)
}

type SemanticSearcher interface {
	Search(ctx context.Context, query string, limit int, typeFilter string) []vector.Hit
}

// Hybrid fuses keyword and semantic candidates with a linear score
// combination. Scores are heuristic rank blends, not calibrated relevance.
type Hybrid struct {
	keyword  KeywordSearcher
	semantic SemanticSearcher
}

func NewHybrid(keyword KeywordSearcher, semantic SemanticSearcher) *Hybrid {
	return &Hybrid{keyword: keyword, semantic: semantic}
}

// Search fetches 2*limit candidates from each source. A keyword hit at rank i
// of n scores (1 - i/n) * keywordWeight, a semantic hit scores
// similarity * semanticWeight, and a document found by both sums the two and
// is tagged hybrid. Ties keep merge order.
func (h *Hybrid) Search(ctx context.Context, query string, limit int, keywordWeight, semanticWeight float64) []Result {
	if limit <= 0 {
		return nil
	}

	var keywordHits []memory.SearchResult
	var semanticHits []vector.Hit

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hits, err := h.keyword.SearchKeyword(gctx, query, limit*2, "")
		if err != nil {
			logger.Warn("keyword search failed, continuing without it", "error", err)
			return nil
		}
		keywordHits = hits
		return nil
	})
	if h.semantic != nil {
		g.Go(func() error {
			semanticHits = h.semantic.Search(gctx, query, limit*2, "")
			return nil
		})
	}
	g.Wait()

	return merge(keywordHits, semanticHits, limit, keywordWeight, semanticWeight)
}

func merge(keywordHits []memory.SearchResult, semanticHits []vector.Hit, limit int, keywordWeight, semanticWeight float64) []Result {
	index := make(map[string]int)
	var merged []Result

	n := float64(len(keywordHits))
	for i, hit := range keywordHits {
		r := fromObservation(hit.Observation)
		r.Score = (1 - float64(i)/n) * keywordWeight
		r.Source = SourceKeyword

		if pos, ok := index[r.DocID]; ok {
			merged[pos].Score += r.Score
			continue
		}
		index[r.DocID] = len(merged)
		merged = append(merged, r)
	}

	for _, hit := range semanticHits {
		score := hit.Similarity * semanticWeight

		if pos, ok := index[hit.DocID]; ok {
			merged[pos].Score += score
			merged[pos].Source = SourceHybrid
			continue
		}

		r := fromHit(hit)
		r.Score = score
		r.Source = SourceSemantic
		index[r.DocID] = len(merged)
		merged = append(merged, r)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Score > merged[j].Score
	})

	if len(merged) > limit {
		merged = merged[:limit]
	}
	return merged
}

func fromObservation(o memory.Observation) Result {
	return Result{
		DocID:     strconv.FormatInt(o.ID, 10),
		Type:      o.Type,
		SessionID: o.SessionID,
		ToolName:  o.ToolName,
		Content:   o.Content,
		Summary:   o.Summary,
		Metadata:  o.Metadata,
		Timestamp: o.Timestamp,
	}
}

func fromHit(h vector.Hit) Result {
	r := Result{
		DocID:    h.DocID,
		Type:     h.DocType,
		Content:  h.Text,
		Metadata: h.Metadata,
	}
	if sid, ok := h.Metadata["session_id"].(string); ok {
		r.SessionID = sid
	}
	if tool, ok := h.Metadata["tool_name"].(string); ok {
		r.ToolName = tool
	}
	return r
}
