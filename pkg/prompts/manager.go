// Package prompts provides read-mostly access to a hierarchical prompt
// template tree.
//
// Templates are addressed by dot path ("workers.researcher.system") and
// support {name} variable substitution and @path.to.prompt references.
// Reloads publish a new immutable tree atomically, so an in-flight
// request keeps seeing the snapshot it started with.
package prompts

import (
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"sync/atomic"

	"gopkg.in/yaml.v3"
)

// maxRefDepth caps recursive @reference resolution.
const maxRefDepth = 10

var (
	varPattern = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)
	refPattern = regexp.MustCompile(`@([A-Za-z0-9_]+(?:\.[A-Za-z0-9_]+)+)`)
)

// Manager holds the current prompt tree. It is safe for concurrent use;
// readers always see a complete tree.
type Manager struct {
	path string
	tree atomic.Pointer[map[string]any]
}

// New creates a manager over the built-in default catalog.
func New() *Manager {
	m := &Manager{}
	m.publish(defaultTree())
	return m
}

// NewFromFile creates a manager that reads the tree from a YAML file.
// Keys present in the file override the built-in defaults.
func NewFromFile(path string) (*Manager, error) {
	m := &Manager{path: path}
	if err := m.Reload(); err != nil {
		return nil, err
	}
	return m, nil
}

// Reload re-reads the backing file and atomically publishes the merged
// tree. Managers created with New have nothing to reload.
func (m *Manager) Reload() error {
	if m.path == "" {
		return nil
	}

	data, err := os.ReadFile(m.path)
	if err != nil {
		return fmt.Errorf("failed to read prompt file: %w", err)
	}

	var loaded map[string]any
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return fmt.Errorf("failed to parse prompt file: %w", err)
	}

	tree := defaultTree()
	mergeTree(tree, loaded)
	m.publish(tree)

	slog.Debug("Prompt tree reloaded", "path", m.path)
	return nil
}

func (m *Manager) publish(tree map[string]any) {
	m.tree.Store(&tree)
}

// Get returns the template at the dot path with variables substituted.
// A missing path returns the empty string.
func (m *Manager) Get(path string, vars map[string]string) string {
	return m.GetOr(path, "", vars)
}

// GetOr returns the template at the dot path, or def when the path does
// not resolve to a string. Variables named in vars are substituted;
// placeholders without a value are left literal. @path references are
// resolved recursively up to maxRefDepth; a circular reference is logged
// and left literal.
func (m *Manager) GetOr(path, def string, vars map[string]string) string {
	tree := *m.tree.Load()

	raw, ok := lookup(tree, path)
	if !ok {
		return def
	}

	resolved := m.resolveRefs(tree, raw, map[string]bool{path: true}, maxRefDepth)
	return substitute(resolved, vars)
}

// Section returns the subtree at the dot path, or nil when absent.
// Useful for enumerating rule or tool definitions kept alongside prompts.
func (m *Manager) Section(path string) map[string]any {
	tree := *m.tree.Load()
	value := navigate(tree, path)
	if section, ok := value.(map[string]any); ok {
		return section
	}
	return nil
}

func (m *Manager) resolveRefs(tree map[string]any, text string, seen map[string]bool, depth int) string {
	if depth <= 0 || !strings.Contains(text, "@") {
		return text
	}

	return refPattern.ReplaceAllStringFunc(text, func(match string) string {
		ref := strings.TrimPrefix(match, "@")
		if seen[ref] {
			slog.Warn("Circular prompt reference", "ref", ref)
			return match
		}

		target, ok := lookup(tree, ref)
		if !ok {
			return match
		}

		seen[ref] = true
		resolved := m.resolveRefs(tree, target, seen, depth-1)
		delete(seen, ref)
		return resolved
	})
}

// lookup walks the dot path and returns the string value at its end.
func lookup(tree map[string]any, path string) (string, bool) {
	value := navigate(tree, path)
	if s, ok := value.(string); ok {
		return s, true
	}
	return "", false
}

func navigate(tree map[string]any, path string) any {
	var value any = tree
	for _, key := range strings.Split(path, ".") {
		node, ok := value.(map[string]any)
		if !ok {
			return nil
		}
		value, ok = node[key]
		if !ok {
			return nil
		}
	}
	return value
}

// substitute replaces {name} placeholders for which vars has a value and
// leaves the rest in place.
func substitute(text string, vars map[string]string) string {
	if len(vars) == 0 || !strings.Contains(text, "{") {
		return text
	}
	return varPattern.ReplaceAllStringFunc(text, func(match string) string {
		name := match[1 : len(match)-1]
		if v, ok := vars[name]; ok {
			return v
		}
		return match
	})
}

// mergeTree overlays src onto dst recursively. Scalar values in src win.
func mergeTree(dst, src map[string]any) {
	for key, sv := range src {
		if sm, ok := sv.(map[string]any); ok {
			if dm, ok := dst[key].(map[string]any); ok {
				mergeTree(dm, sm)
				continue
			}
		}
		dst[key] = sv
	}
}
