package performance

import (
	"context"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Source identifies which gate answered a query.
const (
	SourceRuleEngine    = "rule_engine"
	SourceSemanticCache = "semantic_cache"
)

var (
	ruleHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "maestro_rule_engine_hits_total",
		Help: "Queries answered by the rule engine.",
	})
	cacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "maestro_semantic_cache_hits_total",
		Help: "Queries answered by the semantic cache.",
	})
	gateMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "maestro_performance_misses_total",
		Help: "Queries that fell through to the LLM path.",
	})
)

// Hit is a performance-layer answer.
type Hit struct {
	Answer string `json:"answer"`
	Source string `json:"source"`
	// RuleType is set for rule-engine hits.
	RuleType string `json:"rule_type,omitempty"`
	// Similarity and CachedQuery are set for cache hits.
	Similarity  float64 `json:"similarity,omitempty"`
	CachedQuery string  `json:"cached_query,omitempty"`
}

// Layer combines the rule engine and semantic cache. Either gate may be
// nil (disabled); the layer itself is always safe to call.
type Layer struct {
	rules *RuleEngine
	cache *SemanticCache
}

// NewLayer assembles the performance layer from its gates.
func NewLayer(rules *RuleEngine, cache *SemanticCache) *Layer {
	return &Layer{rules: rules, cache: cache}
}

// ProcessQuery consults the rule engine, then the semantic cache.
// Returns nil on a miss; the caller continues to the LLM path.
func (l *Layer) ProcessQuery(ctx context.Context, query string) *Hit {
	if l == nil {
		return nil
	}

	if l.rules != nil {
		if rule, ok := l.rules.Match(query); ok {
			ruleHits.Inc()
			slog.Debug("Rule engine hit", "tag", rule.Tag)
			return &Hit{Answer: rule.Answer, Source: SourceRuleEngine, RuleType: rule.Tag}
		}
	}

	if l.cache != nil {
		if hit, ok := l.cache.Lookup(ctx, query); ok {
			cacheHits.Inc()
			slog.Debug("Semantic cache hit", "similarity", hit.Similarity)
			return &Hit{
				Answer:      hit.Answer,
				Source:      SourceSemanticCache,
				Similarity:  hit.Similarity,
				CachedQuery: hit.CachedQuery,
			}
		}
	}

	gateMisses.Inc()
	return nil
}

// CacheAnswer stores a finished answer for future lookups. Failures are
// logged and swallowed; they never affect the response.
func (l *Layer) CacheAnswer(ctx context.Context, query, answer string, metadata map[string]any) {
	if l == nil || l.cache == nil || answer == "" {
		return
	}
	if err := l.cache.Store(ctx, query, answer, metadata); err != nil {
		slog.Warn("Failed to cache answer", "error", err)
	}
}
