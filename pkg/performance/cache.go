package performance

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"
)

const (
	vectorKeyPrefix = "vector:"
	queryKeyPrefix  = "query:"
)

// KVStore is the key-value capability backing the semantic cache.
type KVStore interface {
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// Get returns the value and whether the key exists.
	Get(ctx context.Context, key string) (string, bool, error)
	// Keys lists keys with the given prefix.
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// Embedder turns text into an L2-normalized vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// CachedEntry is the stored answer payload under query:<hash>.
type CachedEntry struct {
	Query    string         `json:"query"`
	Answer   string         `json:"answer"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// CacheHit is a successful semantic lookup.
type CacheHit struct {
	Answer      string
	Similarity  float64
	CachedQuery string
}

// SemanticCache answers repeated questions by nearest-neighbor search
// over previously cached query vectors. Every failure degrades to a
// miss; the cache must never block a request.
type SemanticCache struct {
	kv        KVStore
	embedder  Embedder
	threshold float64
	ttl       time.Duration
}

// NewSemanticCache creates a cache with the given similarity threshold
// and entry TTL.
func NewSemanticCache(kv KVStore, embedder Embedder, threshold float64, ttl time.Duration) *SemanticCache {
	return &SemanticCache{kv: kv, embedder: embedder, threshold: threshold, ttl: ttl}
}

// Lookup embeds the query, scans cached vectors, and returns the best
// match at or above the threshold.
func (c *SemanticCache) Lookup(ctx context.Context, query string) (CacheHit, bool) {
	vec, err := c.embedder.Embed(ctx, query)
	if err != nil {
		slog.Debug("Cache lookup skipped: embedding failed", "error", err)
		return CacheHit{}, false
	}

	keys, err := c.kv.Keys(ctx, vectorKeyPrefix)
	if err != nil {
		slog.Debug("Cache lookup skipped: key scan failed", "error", err)
		return CacheHit{}, false
	}

	bestKey := ""
	bestSim := -1.0
	for _, key := range keys {
		raw, ok, err := c.kv.Get(ctx, key)
		if err != nil || !ok {
			continue
		}
		var cached []float64
		if err := json.Unmarshal([]byte(raw), &cached); err != nil {
			continue
		}
		if sim := cosine(vec, cached); sim > bestSim {
			bestSim = sim
			bestKey = key
		}
	}

	if bestKey == "" || bestSim < c.threshold {
		return CacheHit{}, false
	}

	hash := strings.TrimPrefix(bestKey, vectorKeyPrefix)
	raw, ok, err := c.kv.Get(ctx, queryKeyPrefix+hash)
	if err != nil || !ok {
		return CacheHit{}, false
	}
	var entry CachedEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return CacheHit{}, false
	}
	return CacheHit{Answer: entry.Answer, Similarity: bestSim, CachedQuery: entry.Query}, true
}

// Store writes the query vector and answer under md5-partitioned keys
// with the configured TTL. Errors are returned for logging but callers
// treat the write as best-effort.
func (c *SemanticCache) Store(ctx context.Context, query, answer string, metadata map[string]any) error {
	vec, err := c.embedder.Embed(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to embed query: %w", err)
	}

	hash := queryHash(query)
	vecJSON, err := json.Marshal(vec)
	if err != nil {
		return fmt.Errorf("failed to encode vector: %w", err)
	}
	entryJSON, err := json.Marshal(CachedEntry{Query: query, Answer: answer, Metadata: metadata})
	if err != nil {
		return fmt.Errorf("failed to encode entry: %w", err)
	}

	if err := c.kv.Set(ctx, vectorKeyPrefix+hash, string(vecJSON), c.ttl); err != nil {
		return fmt.Errorf("failed to store vector: %w", err)
	}
	if err := c.kv.Set(ctx, queryKeyPrefix+hash, string(entryJSON), c.ttl); err != nil {
		return fmt.Errorf("failed to store entry: %w", err)
	}
	return nil
}

func queryHash(query string) string {
	sum := md5.Sum([]byte(query))
	return hex.EncodeToString(sum[:])
}

// cosine computes cosine similarity. Vectors are expected to be
// L2-normalized already; the norms are still divided out so an
// unnormalized backend cannot inflate scores.
func cosine(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return -1
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return -1
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
