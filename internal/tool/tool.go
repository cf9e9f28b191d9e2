// Package tool defines the capability-provider contract and the dispatcher
// that runs one turn's tool invocations in parallel. Concrete capabilities
// (shell, file I/O, web access) are plugged in by the embedding application;
// this package only handles lookup, execution, and error isolation.
package tool

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/easel-ai/easel/internal/provider"
)

// Tool is a single pluggable capability.
type Tool interface {
	// Name returns the stable tool identifier.
	Name() string

	// Description returns the description shown to the model.
	Description() string

	// Parameters returns the JSON Schema for the tool's input. Schema
	// enforcement happens at generation time in the model API; the dispatcher
	// passes input through untouched.
	Parameters() json.RawMessage

	// Execute runs the tool. A non-nil error marks the invocation failed;
	// sibling invocations in the same batch are unaffected.
	Execute(ctx context.Context, input json.RawMessage) (*Result, error)
}

// Result is a successful tool execution outcome.
type Result struct {
	Output   string         `json:"output"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Registry holds the registered capability providers.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool, replacing any previous tool with the same name.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name()] = t
}

// Get retrieves a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Names returns the registered tool names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Infos returns the declarations sent to the model, sorted by name.
func (r *Registry) Infos() []provider.ToolInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]provider.ToolInfo, 0, len(r.tools))
	for _, t := range r.tools {
		infos = append(infos, provider.ToolInfo{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}
