package config

import "testing"

func TestEnvFallbacks(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
		check func(Config) bool
	}{
		{"out of range int", "SUPERVISOR_MAX_ITERATIONS", "0", func(c Config) bool {
			return c.Supervisor.MaxIterations == 10
		}},
		{"unparsable int", "SUPERVISOR_MAX_TASK_STEPS", "many", func(c Config) bool {
			return c.Supervisor.MaxTaskSteps == 8
		}},
		{"valid int", "SUPERVISOR_MAX_ITERATIONS", "20", func(c Config) bool {
			return c.Supervisor.MaxIterations == 20
		}},
		{"out of range float", "SEMANTIC_CACHE_THRESHOLD", "1.5", func(c Config) bool {
			return c.Performance.SimilarityThreshold == 0.95
		}},
		{"valid float", "SEMANTIC_CACHE_THRESHOLD", "0.8", func(c Config) bool {
			return c.Performance.SimilarityThreshold == 0.8
		}},
		{"bool on", "ENABLE_RULE_ENGINE", "off", func(c Config) bool {
			return !c.Performance.EnableRuleEngine
		}},
		{"bool junk falls back", "ENABLE_SEMANTIC_CACHE", "maybe", func(c Config) bool {
			return c.Performance.EnableSemanticCache
		}},
		{"ttl out of range", "CACHE_TTL_DAYS", "-1", func(c Config) bool {
			return c.Performance.CacheTTLDays == 7
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if !tt.check(Load()) {
				t.Errorf("%s=%s produced unexpected config", tt.key, tt.value)
			}
		})
	}
}

func TestDefaults(t *testing.T) {
	cfg := Load()
	if cfg.Supervisor.MaxIterations != 10 || cfg.Supervisor.MaxTaskSteps != 8 {
		t.Errorf("supervisor defaults wrong: %+v", cfg.Supervisor)
	}
	if cfg.Performance.SimilarityThreshold != 0.95 || cfg.Performance.CacheTTLDays != 7 {
		t.Errorf("performance defaults wrong: %+v", cfg.Performance)
	}
	if !cfg.Supervisor.EnablePlanning {
		t.Errorf("planning enabled by default")
	}
}
