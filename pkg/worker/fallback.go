package worker

import (
	"log/slog"

	"github.com/orchestrahq/maestro/pkg/state"
	"github.com/orchestrahq/maestro/pkg/tools"
)

// FallbackDomain produces replacement content for one capability when
// tool calling is unavailable, using the request's user context.
type FallbackDomain func(uc state.UserContext) (string, error)

// FallbackManager collects literal replacement content for named
// capability domains so a model without tool support still gets the
// facts a tool would have fetched.
type FallbackManager struct {
	domains map[string]FallbackDomain
}

// NewFallbackManager creates a manager with the built-in datetime
// domain registered.
func NewFallbackManager() *FallbackManager {
	m := &FallbackManager{domains: make(map[string]FallbackDomain)}
	m.RegisterDomain("datetime", func(uc state.UserContext) (string, error) {
		return tools.CurrentDatetime(uc.Timezone)
	})
	return m
}

// RegisterDomain adds or replaces a fallback domain.
func (m *FallbackManager) RegisterDomain(name string, fn FallbackDomain) {
	m.domains[name] = fn
}

// Collect resolves each requested domain. Domains that fail or are
// unknown are omitted; fallback content is best-effort.
func (m *FallbackManager) Collect(uc state.UserContext, names []string) map[string]string {
	out := make(map[string]string, len(names))
	for _, name := range names {
		fn, ok := m.domains[name]
		if !ok {
			continue
		}
		content, err := fn(uc)
		if err != nil {
			slog.Warn("Fallback domain failed", "domain", name, "error", err)
			continue
		}
		out[name] = content
	}
	return out
}
