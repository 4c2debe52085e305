package llms

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/orchestrahq/maestro/pkg/config"
)

// ModelHints are the per-request overrides a caller may carry in its
// user-context preferences. Missing fields fall back to the configured
// default endpoint.
type ModelHints struct {
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"model_base_url"`
	APIKey  string `mapstructure:"model_api_key"`
}

// HTTPFactory builds OpenAI-compatible clients from the default endpoint
// configuration plus per-request hints. Clients are cached per
// endpoint/model/temperature so repeated requests share connections.
type HTTPFactory struct {
	cfg config.Model

	mu    sync.Mutex
	cache map[string]*OpenAIChat
}

// NewHTTPFactory creates a factory backed by the configured default
// endpoint.
func NewHTTPFactory(cfg config.Model) *HTTPFactory {
	return &HTTPFactory{cfg: cfg, cache: make(map[string]*OpenAIChat)}
}

// ForPreferences implements Factory. Unknown preference keys are
// ignored; malformed hint values fall back to the defaults.
func (f *HTTPFactory) ForPreferences(prefs map[string]any, temperature float64) (ChatModel, error) {
	hints := ModelHints{}
	if len(prefs) > 0 {
		// WeaklyTypedInput tolerates clients sending numbers as strings
		// and vice versa.
		dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			Result:           &hints,
			WeaklyTypedInput: true,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to build preference decoder: %w", err)
		}
		if err := dec.Decode(prefs); err != nil {
			hints = ModelHints{}
		}
	}

	baseURL := f.cfg.BaseURL
	if hints.BaseURL != "" {
		baseURL = hints.BaseURL
	}
	apiKey := f.cfg.APIKey
	if hints.APIKey != "" {
		apiKey = hints.APIKey
	}
	model := f.cfg.Name
	if hints.Model != "" {
		model = hints.Model
	}
	if baseURL == "" || model == "" {
		return nil, fmt.Errorf("no chat model configured")
	}

	key := fmt.Sprintf("%s|%s|%.2f", baseURL, model, temperature)

	f.mu.Lock()
	defer f.mu.Unlock()
	if client, ok := f.cache[key]; ok {
		return client, nil
	}
	client := NewOpenAIChat(baseURL, apiKey, model,
		WithTemperature(temperature),
		WithHTTPClient(&http.Client{Timeout: time.Duration(f.cfg.TimeoutSecs) * time.Second}),
	)
	f.cache[key] = client
	return client, nil
}

// StaticFactory always returns the same model regardless of hints.
// Useful in tests and single-model deployments.
type StaticFactory struct {
	Model ChatModel
}

// ForPreferences implements Factory.
func (f StaticFactory) ForPreferences(map[string]any, float64) (ChatModel, error) {
	return f.Model, nil
}
