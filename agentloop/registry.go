// Copyright (c) Microsoft. All rights reserved.

package agentloop

import (
	"fmt"
	"strings"
)

// Registry maps tool names to tools. It is built once by [NewRegistry] and is
// read-only afterwards, so a single registry can serve concurrent runs.
//
// A nil *Registry behaves as an empty registry.
type Registry struct {
	byName map[string]Tool
	order  []Tool
}

// NewRegistry builds a registry from tools, preserving their order. It fails on
// a nil tool, an empty name, or a name registered twice.
func NewRegistry(tools ...Tool) (*Registry, error) {
	r := &Registry{
		byName: make(map[string]Tool, len(tools)),
		order:  make([]Tool, 0, len(tools)),
	}
	for i, t := range tools {
		if t == nil {
			return nil, fmt.Errorf("%w: tool[%d] is nil", ErrInitialization, i)
		}
		name := t.Name()
		if strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("%w: tool[%d] has an empty name", ErrInitialization, i)
		}
		if _, exists := r.byName[name]; exists {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateTool, name)
		}
		r.byName[name] = t
		r.order = append(r.order, t)
	}
	return r, nil
}

// MustRegistry is like [NewRegistry] but panics on error. Intended for
// package-level tool sets that are fixed at compile time.
func MustRegistry(tools ...Tool) *Registry {
	r, err := NewRegistry(tools...)
	if err != nil {
		panic(err)
	}
	return r
}

// Lookup returns the tool registered under name.
func (r *Registry) Lookup(name string) (Tool, bool) {
	if r == nil {
		return nil, false
	}
	t, ok := r.byName[name]
	return t, ok
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.order)
}

// Tools returns the registered tools in registration order.
func (r *Registry) Tools() []Tool {
	if r == nil {
		return nil
	}
	out := make([]Tool, len(r.order))
	copy(out, r.order)
	return out
}

// Names returns the registered tool names in registration order.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	names := make([]string, len(r.order))
	for i, t := range r.order {
		names[i] = t.Name()
	}
	return names
}

// Declarations returns the tool declarations offered to the model.
func (r *Registry) Declarations() []ToolDeclaration {
	if r.Len() == 0 {
		return nil
	}
	decls := make([]ToolDeclaration, len(r.order))
	for i, t := range r.order {
		decls[i] = ToolDeclaration{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		}
	}
	return decls
}
