// Package config loads runtime configuration from the environment.
//
// Every knob has a safe default; unparsable or out-of-range values fall
// back to the default silently so a bad deployment never crashes the
// process at startup.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Supervisor holds the planner/router knobs.
type Supervisor struct {
	MaxIterations  int
	MaxTaskSteps   int
	EnablePlanning bool
	// Temperature used for planning and routing calls. Low by default so
	// decisions stay stable.
	Temperature float64
}

// Performance holds the rule-engine and semantic-cache knobs.
type Performance struct {
	EnableRuleEngine    bool
	EnableSemanticCache bool
	SimilarityThreshold float64
	CacheTTLDays        int
	RedisAddr           string
	RedisPassword       string
	RedisDB             int
}

// Model holds the chat-model endpoint configuration used when the request
// carries no per-request model hints.
type Model struct {
	BaseURL     string
	APIKey      string
	Name        string
	TimeoutSecs int
}

// Embedder holds the embedding endpoint configuration for the semantic
// cache.
type Embedder struct {
	BaseURL     string
	APIKey      string
	Model       string
	TimeoutSecs int
}

// Server holds the HTTP facade configuration.
type Server struct {
	Addr string
}

// Config is the root configuration, constructed once at startup and
// passed down as an explicit dependency.
type Config struct {
	Supervisor  Supervisor
	Performance Performance
	Model       Model
	Embedder    Embedder
	Server      Server
	PromptsPath string
	DataDBPath  string
	LogLevel    string
	LogFormat   string
}

// Load reads configuration from the environment. A .env file in the
// working directory is honored when present.
func Load() Config {
	if err := godotenv.Load(); err == nil {
		slog.Debug("Loaded .env file")
	}

	return Config{
		Supervisor: Supervisor{
			MaxIterations:  envInt("SUPERVISOR_MAX_ITERATIONS", 10, 1, 100),
			MaxTaskSteps:   envInt("SUPERVISOR_MAX_TASK_STEPS", 8, 1, 50),
			EnablePlanning: envBool("SUPERVISOR_ENABLE_PLANNING", true),
			Temperature:    envFloat("SUPERVISOR_TEMPERATURE", 0.0, 0.0, 2.0),
		},
		Performance: Performance{
			EnableRuleEngine:    envBool("ENABLE_RULE_ENGINE", true),
			EnableSemanticCache: envBool("ENABLE_SEMANTIC_CACHE", true),
			SimilarityThreshold: envFloat("SEMANTIC_CACHE_THRESHOLD", 0.95, 0.0, 1.0),
			CacheTTLDays:        envInt("CACHE_TTL_DAYS", 7, 1, 365),
			RedisAddr:           envString("REDIS_ADDR", "localhost:6379"),
			RedisPassword:       envString("REDIS_PASSWORD", ""),
			RedisDB:             envInt("REDIS_DB", 0, 0, 15),
		},
		Model: Model{
			BaseURL:     envString("MODEL_BASE_URL", "https://api.openai.com/v1"),
			APIKey:      envString("MODEL_API_KEY", ""),
			Name:        envString("MODEL_NAME", "gpt-4o-mini"),
			TimeoutSecs: envInt("MODEL_TIMEOUT_SECS", 120, 1, 600),
		},
		Embedder: Embedder{
			BaseURL:     envString("EMBEDDER_BASE_URL", "https://api.openai.com/v1"),
			APIKey:      envString("EMBEDDER_API_KEY", ""),
			Model:       envString("EMBEDDER_MODEL", "text-embedding-3-small"),
			TimeoutSecs: envInt("EMBEDDER_TIMEOUT_SECS", 30, 1, 300),
		},
		Server: Server{
			Addr: envString("SERVER_ADDR", ":8080"),
		},
		PromptsPath: envString("PROMPTS_PATH", ""),
		DataDBPath:  envString("DATA_DB_PATH", ""),
		LogLevel:    envString("LOG_LEVEL", "info"),
		LogFormat:   envString("LOG_FORMAT", "simple"),
	}
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def, min, max int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < min || n > max {
		return def
	}
	return n
}

func envFloat(key string, def, min, max float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < min || f > max {
		return def
	}
	return f
}

func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	switch strings.ToLower(v) {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	}
	return def
}
