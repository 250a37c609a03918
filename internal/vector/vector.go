// Package vector is the semantic index: embeddings held in memory, searched by
// brute-force cosine similarity, and persisted as a full snapshot after every
// insert. Fine at conversation scale; every Add rewrites the whole snapshot.
package vector

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/bowerhall/conductor/internal/embedder"
	"github.com/bowerhall/conductor/internal/logger"
)

// MaxTextLength is how much of a document's text is kept next to its vector.
const MaxTextLength = 500

const schema = `
CREATE TABLE IF NOT EXISTS vector_entries (
    position INTEGER PRIMARY KEY,
    doc_id TEXT NOT NULL,
    doc_type TEXT NOT NULL,
    text TEXT NOT NULL,
    metadata TEXT,
    embedding BLOB NOT NULL
);
`

type Entry struct {
	DocID     string
	DocType   string
	Text      string
	Metadata  map[string]any
	Embedding []float32
}

type Hit struct {
	DocID      string         `json:"doc_id"`
	DocType    string         `json:"doc_type"`
	Text       string         `json:"text"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Similarity float64        `json:"similarity"`
}

type Stats struct {
	Enabled      bool `json:"enabled"`
	TotalVectors int  `json:"total_vectors"`
	Dimension    int  `json:"dimension"`
}

type Index struct {
	mu       sync.RWMutex
	db       *sql.DB
	embedder embedder.Embedder
	entries  []Entry
	dim      int
}

// New opens the index on db and loads the persisted snapshot. emb may be nil,
// in which case Add is a no-op and Search finds nothing.
func New(ctx context.Context, db *sql.DB, emb embedder.Embedder) (*Index, error) {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("vector schema: %w", err)
	}

	ix := &Index{db: db, embedder: emb}
	if err := ix.Load(ctx); err != nil {
		return nil, err
	}
	return ix, nil
}

func (ix *Index) Enabled() bool {
	return ix.embedder != nil
}

// Add embeds text and appends it. A missing or failing embedder only logs.
// The returned error reports a failed snapshot write; the entry stays
// searchable in memory either way.
func (ix *Index) Add(ctx context.Context, text, docID, docType string, metadata map[string]any) error {
	if ix.embedder == nil {
		logger.Debug("vector index disabled, skipping add", "doc", docID)
		return nil
	}

	text = truncate(text, MaxTextLength)

	vec, err := ix.embedder.Embed(ctx, text)
	if err != nil {
		logger.Warn("embedding failed, document not indexed", "doc", docID, "error", err)
		return nil
	}
	if len(vec) == 0 {
		logger.Warn("empty embedding, document not indexed", "doc", docID)
		return nil
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	if ix.dim == 0 {
		ix.dim = len(vec)
	} else if len(vec) != ix.dim {
		logger.Warn("embedding dimension mismatch, document not indexed", "doc", docID, "want", ix.dim, "got", len(vec))
		return nil
	}

	ix.entries = append(ix.entries, Entry{
		DocID:     docID,
		DocType:   docType,
		Text:      text,
		Metadata:  metadata,
		Embedding: vec,
	})

	return ix.persist(ctx)
}

// Search ranks every entry by cosine similarity to query and keeps the top
// limit after applying typeFilter.
func (ix *Index) Search(ctx context.Context, query string, limit int, typeFilter string) []Hit {
	if ix.embedder == nil || limit <= 0 {
		return nil
	}

	ix.mu.RLock()
	empty := len(ix.entries) == 0
	ix.mu.RUnlock()
	if empty {
		return nil
	}

	qvec, err := ix.embedder.Embed(ctx, query)
	if err != nil {
		logger.Warn("query embedding failed", "error", err)
		return nil
	}

	ix.mu.RLock()
	hits := make([]Hit, 0, len(ix.entries))
	for _, e := range ix.entries {
		hits = append(hits, Hit{
			DocID:      e.DocID,
			DocType:    e.DocType,
			Text:       e.Text,
			Metadata:   e.Metadata,
			Similarity: CosineSimilarity(qvec, e.Embedding),
		})
	}
	ix.mu.RUnlock()

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Similarity > hits[j].Similarity
	})

	result := make([]Hit, 0, limit)
	for _, h := range hits {
		if typeFilter != "" && h.DocType != typeFilter {
			continue
		}
		result = append(result, h)
		if len(result) == limit {
			break
		}
	}
	return result
}

func (ix *Index) Stats() Stats {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	return Stats{
		Enabled:      ix.embedder != nil,
		TotalVectors: len(ix.entries),
		Dimension:    ix.dim,
	}
}

// Load replaces the in-memory entries with the persisted snapshot.
func (ix *Index) Load(ctx context.Context) error {
	rows, err := ix.db.QueryContext(ctx, `SELECT doc_id, doc_type, text, metadata, embedding FROM vector_entries ORDER BY position`)
	if err != nil {
		return fmt.Errorf("load vectors: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	dim := 0
	for rows.Next() {
		var e Entry
		var metadata sql.NullString
		var blob []byte
		if err := rows.Scan(&e.DocID, &e.DocType, &e.Text, &metadata, &blob); err != nil {
			return fmt.Errorf("scan vector: %w", err)
		}
		e.Embedding = bytesToFloat32(blob)
		if metadata.Valid && metadata.String != "" {
			if err := json.Unmarshal([]byte(metadata.String), &e.Metadata); err != nil {
				logger.Warn("vector metadata unreadable, dropping it", "doc", e.DocID, "error", err)
				e.Metadata = nil
			}
		}
		if dim == 0 {
			dim = len(e.Embedding)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	ix.mu.Lock()
	ix.entries = entries
	ix.dim = dim
	ix.mu.Unlock()

	logger.Debug("vector index loaded", "entries", len(entries), "dimension", dim)
	return nil
}

// must hold write lock
func (ix *Index) persist(ctx context.Context) error {
	tx, err := ix.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("persist vectors: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM vector_entries`); err != nil {
		return fmt.Errorf("persist vectors: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO vector_entries (position, doc_id, doc_type, text, metadata, embedding) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("persist vectors: %w", err)
	}
	defer stmt.Close()

	for i, e := range ix.entries {
		blob := float32ToBytes(e.Embedding)

		var metadata any
		if e.Metadata != nil {
			data, err := json.Marshal(e.Metadata)
			if err != nil {
				logger.Warn("vector metadata not serializable, storing without it", "doc", e.DocID, "error", err)
			} else {
				metadata = string(data)
			}
		}

		if _, err := stmt.ExecContext(ctx, i, e.DocID, e.DocType, e.Text, metadata, blob); err != nil {
			return fmt.Errorf("persist vector %s: %w", e.DocID, err)
		}
	}

	return tx.Commit()
}

// CosineSimilarity returns a value between -1 and 1; mismatched or zero
// vectors score 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		ai, bi := float64(a[i]), float64(b[i])
		dotProduct += ai * bi
		normA += ai * ai
		normB += bi * bi
	}

	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0
	}
	return dotProduct / denom
}

// float32ToBytes writes v little-endian, four bytes per component.
func float32ToBytes(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func bytesToFloat32(b []byte) []float32 {
	if len(b)%4 != 0 {
		return nil
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
