// Package ctxindex indexes event types that carry contextual fields and
// resolves "Type.field" references against them.
//
// A type is indexed when at least one of its fields is flagged contextual.
// References may use the simple type name ("Trace.traceId") or the fully
// qualified one ("demo.Trace.traceId"). When two types share a simple name the
// first registered wins; the clash is reported and callers should qualify.
package ctxindex

import (
	"slices"
	"strings"

	"ctxview/internal/event"
	"ctxview/internal/trace"
)

// TypeInfo describes one indexed contextual type.
type TypeInfo struct {
	Type       *event.Type
	SimpleName string   // e.g. "Trace"
	FullName   string   // e.g. "demo.Trace"
	Fields     []string // contextual field names, declaration order
}

// Has reports whether field is one of the type's contextual fields.
func (ti *TypeInfo) Has(field string) bool {
	return slices.Contains(ti.Fields, field)
}

// Resolved is the outcome of resolving a contextual reference.
type Resolved struct {
	Info  *TypeInfo
	Field string
}

// Collision records a simple name claimed by more than one contextual type.
type Collision struct {
	SimpleName string
	Kept       string // full name that owns the simple name
	Ignored    string // full name reachable only when qualified
}

// Index maps simple and fully qualified type names to contextual type info.
type Index struct {
	types      []*TypeInfo
	bySimple   map[string]*TypeInfo
	byFull     map[string]*TypeInfo
	collisions []Collision
}

// New builds the index from the full set of known event types.
func New(types []*event.Type, tracer trace.Tracer) *Index {
	idx := &Index{
		bySimple: make(map[string]*TypeInfo),
		byFull:   make(map[string]*TypeInfo),
	}
	for _, t := range types {
		fields := t.ContextualFields()
		if len(fields) == 0 {
			continue
		}
		info := &TypeInfo{
			Type:       t,
			SimpleName: t.SimpleName(),
			FullName:   t.Name,
			Fields:     fields,
		}
		idx.types = append(idx.types, info)
		idx.byFull[info.FullName] = info

		existing, taken := idx.bySimple[info.SimpleName]
		if !taken {
			idx.bySimple[info.SimpleName] = info
			continue
		}
		idx.collisions = append(idx.collisions, Collision{
			SimpleName: info.SimpleName,
			Kept:       existing.FullName,
			Ignored:    info.FullName,
		})
		trace.Point(tracer, trace.ScopeIndex, "simple-name collision",
			"use fully qualified names to disambiguate",
			map[string]string{
				"name":    info.SimpleName,
				"kept":    existing.FullName,
				"ignored": info.FullName,
			})
	}
	return idx
}

// Resolve resolves a reference such as "Trace.traceId" or "demo.Trace.traceId".
// ok is false when the reference does not name a contextual field; that is the
// expected outcome for most references and not an error.
func (idx *Index) Resolve(ref string) (Resolved, bool) {
	if idx == nil {
		return Resolved{}, false
	}
	dot := strings.LastIndexByte(ref, '.')
	if dot < 0 {
		return Resolved{}, false
	}
	typePart, field := ref[:dot], ref[dot+1:]

	if info, ok := idx.bySimple[typePart]; ok && info.Has(field) {
		return Resolved{Info: info, Field: field}, true
	}
	if info, ok := idx.byFull[typePart]; ok && info.Has(field) {
		return Resolved{Info: info, Field: field}, true
	}
	return Resolved{}, false
}

// IsContextualField reports whether ref names a contextual field.
func (idx *Index) IsContextualField(ref string) bool {
	_, ok := idx.Resolve(ref)
	return ok
}

// Lookup finds a contextual type by simple or fully qualified name.
func (idx *Index) Lookup(name string) (*TypeInfo, bool) {
	if idx == nil {
		return nil, false
	}
	if info, ok := idx.bySimple[name]; ok {
		return info, true
	}
	info, ok := idx.byFull[name]
	return info, ok
}

// Types returns indexed types in registration order.
func (idx *Index) Types() []*TypeInfo {
	if idx == nil {
		return nil
	}
	return idx.types
}

// Collisions returns the simple-name clashes seen while building.
func (idx *Index) Collisions() []Collision {
	if idx == nil {
		return nil
	}
	return idx.collisions
}
