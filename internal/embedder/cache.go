package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

// Cached memoizes embeddings by content hash. Query embeddings repeat often
// across hybrid searches, and the vector index re-embeds nothing on load.
type Cached struct {
	next  Embedder
	model string
	ttl   time.Duration
	cache *ristretto.Cache[string, []float32]
}

func NewCached(next Embedder, model string, maxCostBytes int64, ttl time.Duration) (*Cached, error) {
	c, err := ristretto.NewCache(&ristretto.Config[string, []float32]{
		NumCounters: maxCostBytes / 100 * 10,
		MaxCost:     maxCostBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &Cached{next: next, model: model, ttl: ttl, cache: c}, nil
}

func (c *Cached) key(text string) string {
	sum := sha256.Sum256([]byte(c.model + "\x00" + text))
	return hex.EncodeToString(sum[:])
}

func (c *Cached) Embed(ctx context.Context, text string) ([]float32, error) {
	key := c.key(text)
	if vec, ok := c.cache.Get(key); ok {
		return vec, nil
	}

	vec, err := c.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	c.cache.SetWithTTL(key, vec, int64(len(vec)*4), c.ttl)
	return vec, nil
}

func (c *Cached) Close() {
	c.cache.Close()
}
