package query

import "ctxview/internal/event"

// Getter reads a value from a record.
type Getter func(*event.Record) any

// Filter suppresses records whose formatted field text differs from Value.
type Filter struct {
	Field string
	Get   Getter
	Value string
}

// FilteredType is a display type together with the filters that apply to it.
type FilteredType struct {
	Type    *event.Type
	Filters []Filter
}

// Name returns the fully qualified type name used for dispatch.
func (ft *FilteredType) Name() string { return ft.Type.Name }

// Accept reports whether rec passes every filter.
func (ft *FilteredType) Accept(rec *event.Record) bool {
	for _, f := range ft.Filters {
		if Text(f.Get(rec)) != f.Value {
			return false
		}
	}
	return true
}

// Source binds a field to one display type. Get is nil for contextual fields,
// whose values come from correlated context records instead.
type Source struct {
	Type *FilteredType
	Get  Getter
}

// Field is one resolved output column.
type Field struct {
	Name      string // reference as written, normalised
	Label     string
	Index     int
	Kind      event.Kind
	Aggregate Aggregate
	Grouping  bool

	Contextual   bool
	ContextType  string // simple or fully qualified name as referenced
	ContextField string

	Sources []Source
}

// Source returns the binding of the field for a display type.
func (f *Field) Source(t *event.Type) (Source, bool) {
	for _, s := range f.Sources {
		if s.Type.Type.Name == t.Name {
			return s, true
		}
	}
	return Source{}, false
}

// Value reads the field from rec through its source for rec's type. It
// returns nil for contextual fields and for records of unrelated types.
func (f *Field) Value(rec *event.Record) any {
	s, ok := f.Source(rec.Type())
	if !ok || s.Get == nil {
		return nil
	}
	return s.Get(rec)
}

// TypeFields pairs a display type with the fields it feeds.
type TypeFields struct {
	Type   *FilteredType
	Fields []*Field
}

// Resolution is the output of Resolve.
type Resolution struct {
	Fields  []*Field
	Types   []*FilteredType
	GroupBy []*Field
}

// ByType groups fields by display type, types and fields in first-seen order.
func (r *Resolution) ByType() []TypeFields {
	if r == nil {
		return nil
	}
	var out []TypeFields
	pos := make(map[*FilteredType]int)
	for _, f := range r.Fields {
		for _, s := range f.Sources {
			i, ok := pos[s.Type]
			if !ok {
				i = len(out)
				pos[s.Type] = i
				out = append(out, TypeFields{Type: s.Type})
			}
			out[i].Fields = append(out[i].Fields, f)
		}
	}
	return out
}

// HasContextualReferences reports whether any field is contextual.
func (r *Resolution) HasContextualReferences() bool {
	if r == nil {
		return false
	}
	for _, f := range r.Fields {
		if f.Contextual {
			return true
		}
	}
	return false
}
