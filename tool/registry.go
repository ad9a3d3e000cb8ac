package tool

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/jonwraymond/tooldiscovery/index"
	"github.com/jonwraymond/tooldiscovery/search"
	"github.com/jonwraymond/tooldiscovery/tooldoc"
	"github.com/jonwraymond/toolfoundation/model"
)

// DefaultNamespace is the discovery namespace tools are indexed under.
const DefaultNamespace = "local"

// Registry errors.
var (
	ErrNilTool      = errors.New("tool is nil")
	ErrNameRequired = errors.New("tool name is required")
	ErrToolNotFound = errors.New("tool not found")
)

// Registry maps tool names to tools.
//
// Contract:
// - Concurrency: safe for concurrent use; registration is serialized against lookups.
// - Errors: Register returns ErrNilTool/ErrNameRequired for invalid tools.
type Registry struct {
	mu        sync.RWMutex
	tools     map[string]Tool
	namespace string
	index     index.Index
	docs      tooldoc.Store
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithNamespace sets the discovery namespace.
func WithNamespace(ns string) RegistryOption {
	return func(r *Registry) {
		if ns != "" {
			r.namespace = ns
		}
	}
}

// WithIndex sets the discovery index tools are registered in.
func WithIndex(idx index.Index) RegistryOption {
	return func(r *Registry) {
		r.index = idx
	}
}

// NewRegistry creates an empty registry backed by an in-memory BM25 index.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		tools:     make(map[string]Tool),
		namespace: DefaultNamespace,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.index == nil {
		r.index = index.NewInMemoryIndex(index.IndexOptions{
			Searcher: search.NewBM25Searcher(search.BM25Config{}),
		})
	}
	r.docs = tooldoc.NewInMemoryStore(tooldoc.StoreOptions{Index: r.index})
	return r
}

// Register adds t to the registry. A tool registered under an existing name
// replaces the previous one.
func (r *Registry) Register(t Tool) error {
	if t == nil {
		return ErrNilTool
	}
	name := t.Name()
	if name == "" {
		return ErrNameRequired
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	old, exists := r.tools[name]
	if exists {
		_ = r.index.UnregisterBackend(r.toolID(name), model.BackendKindLocal, name)
	}
	if err := r.index.RegisterTool(Definition(t, r.namespace), model.NewLocalBackend(name)); err != nil {
		// Put the previous tool back so the map and the index stay in step.
		if exists {
			_ = r.index.RegisterTool(Definition(old, r.namespace), model.NewLocalBackend(name))
		}
		return fmt.Errorf("index tool %s: %w", name, err)
	}
	r.tools[name] = t
	return nil
}

// Unregister removes a tool from the registry.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[name]; exists {
		_ = r.index.UnregisterBackend(r.toolID(name), model.BackendKindLocal, name)
		delete(r.tools, name)
	}
}

// Get retrieves a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// List returns all tools sorted by name.
func (r *Registry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Names returns tool names sorted for deterministic output.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.tools))
	for name := range r.tools {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Namespace returns the discovery namespace.
func (r *Registry) Namespace() string {
	return r.namespace
}

// Search finds tools matching a free-text query.
func (r *Registry) Search(query string, limit int) ([]index.Summary, error) {
	return r.index.Search(query, limit)
}

// Describe returns documentation for the named tool.
func (r *Registry) Describe(name string, level tooldoc.DetailLevel) (tooldoc.ToolDoc, error) {
	if _, ok := r.Get(name); !ok {
		return tooldoc.ToolDoc{}, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	return r.docs.DescribeTool(r.toolID(name), level)
}

// Index returns the underlying discovery index.
func (r *Registry) Index() index.Index {
	return r.index
}

func (r *Registry) toolID(name string) string {
	return fmt.Sprintf("%s:%s", r.namespace, name)
}
