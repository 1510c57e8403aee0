package table

import (
	"errors"
	"fmt"
	"strings"

	"ctxview/internal/event"
)

// ErrUnqualified is returned for contextual names not of the form "Type.field".
var ErrUnqualified = errors.New("contextual field name must be in format 'TypeName.fieldName'")

// Row is one output row: positional values and texts plus the context records
// that were active on the display event's thread.
type Row struct {
	values   []any
	texts    []string
	contexts []*event.Record
}

// NewRow creates a row with size empty cells.
func NewRow(size int) *Row {
	return &Row{
		values:   make([]any, size),
		texts:    make([]string, size),
		contexts: []*event.Record{},
	}
}

// Len returns the number of cells.
func (r *Row) Len() int { return len(r.values) }

// Value returns the cell value, nil when out of range.
func (r *Row) Value(i int) any {
	if i < 0 || i >= len(r.values) {
		return nil
	}
	return r.values[i]
}

// PutValue stores a cell value.
func (r *Row) PutValue(i int, v any) { r.values[i] = v }

// Text returns the cell text, empty when out of range or unset.
func (r *Row) Text(i int) string {
	if i < 0 || i >= len(r.texts) {
		return ""
	}
	return r.texts[i]
}

// PutText stores a cell text.
func (r *Row) PutText(i int, s string) { r.texts[i] = s }

// Contexts returns the correlated context records. Never nil.
func (r *Row) Contexts() []*event.Record { return r.contexts }

// SetContexts stores the correlated context records; nil becomes empty.
func (r *Row) SetContexts(contexts []*event.Record) {
	if contexts == nil {
		contexts = []*event.Record{}
	}
	r.contexts = contexts
}

func (r *Row) expand(size int) {
	if len(r.values) >= size {
		return
	}
	values := make([]any, size)
	texts := make([]string, size)
	copy(values, r.values)
	copy(texts, r.texts)
	r.values, r.texts = values, texts
}

// ContextualValue looks up "Type.field" in the row's context records by
// simple type name. The first record that matches and has the field wins; no
// match yields nil.
func (r *Row) ContextualValue(qualified string) (any, error) {
	dot := strings.IndexByte(qualified, '.')
	if dot <= 0 || dot == len(qualified)-1 {
		return nil, fmt.Errorf("%w: %q", ErrUnqualified, qualified)
	}
	typeName, field := qualified[:dot], qualified[dot+1:]
	for _, ctx := range r.contexts {
		if ctx.Type().SimpleName() != typeName {
			continue
		}
		if v, ok := ctx.Value(field); ok {
			return v, nil
		}
	}
	return nil, nil
}

func (r *Row) String() string {
	return fmt.Sprint(r.values)
}

// LookupContext finds field on the first context record whose simple or
// fully qualified type name equals typeName.
func LookupContext(contexts []*event.Record, typeName, field string) (any, bool) {
	for _, ctx := range contexts {
		t := ctx.Type()
		if t.SimpleName() != typeName && t.Name != typeName {
			continue
		}
		if v, ok := ctx.Value(field); ok {
			return v, true
		}
	}
	return nil, false
}
