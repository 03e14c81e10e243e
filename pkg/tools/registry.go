package tools

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/nsure-ai/inquest/pkg/models"
)

// Registry holds the tool set available to an investigation. Schemas are
// compiled at registration so executor-side validation is a pure lookup.
type Registry struct {
	mu      sync.RWMutex
	tools   map[string]Tool
	schemas map[string]*jsonschema.Schema
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		tools:   make(map[string]Tool),
		schemas: make(map[string]*jsonschema.Schema),
	}
}

// Register adds a tool, compiling its input schema. Registering a duplicate
// name or an invalid schema is an error.
func (r *Registry) Register(t Tool) error {
	def := t.Definition()
	if def.Name == "" {
		return fmt.Errorf("tool has empty name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[def.Name]; exists {
		return fmt.Errorf("tool %q already registered", def.Name)
	}

	if len(def.InputSchema) > 0 {
		var doc any
		if err := json.Unmarshal(def.InputSchema, &doc); err != nil {
			return fmt.Errorf("tool %q: invalid schema JSON: %w", def.Name, err)
		}
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("schema.json", doc); err != nil {
			return fmt.Errorf("tool %q: add schema resource: %w", def.Name, err)
		}
		schema, err := compiler.Compile("schema.json")
		if err != nil {
			return fmt.Errorf("tool %q: compile schema: %w", def.Name, err)
		}
		r.schemas[def.Name] = schema
	}

	r.tools[def.Name] = t
	return nil
}

// MustRegister registers a tool and panics on error. For static tool sets
// built at startup.
func (r *Registry) MustRegister(t Tool) {
	if err := r.Register(t); err != nil {
		panic(err)
	}
}

// Get returns the tool with the given name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Definitions returns all tool definitions sorted by name.
func (r *Registry) Definitions() []models.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]models.ToolDefinition, 0, len(r.tools))
	for _, t := range r.tools {
		defs = append(defs, t.Definition())
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// ValidateArgs checks call arguments against the tool's compiled schema.
// Tools without a schema accept anything.
func (r *Registry) ValidateArgs(name string, args json.RawMessage) error {
	r.mu.RLock()
	schema := r.schemas[name]
	r.mu.RUnlock()
	if schema == nil {
		return nil
	}

	var payload any
	if len(args) == 0 {
		payload = map[string]any{}
	} else if err := json.Unmarshal(args, &payload); err != nil {
		return fmt.Errorf("arguments are not valid JSON: %w", err)
	}
	return schema.Validate(payload)
}
