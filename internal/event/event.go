package event

import (
	"fmt"
	"strings"
	"time"
)

// Kind is the value kind of an event field.
type Kind uint8

const (
	KindString Kind = iota + 1
	KindInt
	KindFloat
	KindBool
	KindDuration // nanoseconds, stored as time.Duration
	KindTime     // stored as time.Time
)

// String returns the string representation of Kind.
func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindDuration:
		return "duration"
	case KindTime:
		return "time"
	default:
		return "unknown"
	}
}

// ParseKind converts a string to a Kind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(s) {
	case "string", "":
		return KindString, nil
	case "int", "long":
		return KindInt, nil
	case "float", "double":
		return KindFloat, nil
	case "bool", "boolean":
		return KindBool, nil
	case "duration":
		return KindDuration, nil
	case "time":
		return KindTime, nil
	default:
		return KindString, fmt.Errorf("invalid field kind: %q (expected: string|int|float|bool|duration|time)", s)
	}
}

// FieldDescriptor describes one named field of an event type.
type FieldDescriptor struct {
	Name       string
	Kind       Kind
	Contextual bool // exported to events on the same thread while the event is open
}

// Type describes an event type. Types are immutable once built.
type Type struct {
	ID     int64
	Name   string // fully qualified, e.g. "demo.Trace"
	Label  string
	Fields []FieldDescriptor

	index map[string]int
}

// NewType builds a Type and its field index.
func NewType(id int64, name string, fields ...FieldDescriptor) *Type {
	t := &Type{
		ID:     id,
		Name:   name,
		Fields: fields,
		index:  make(map[string]int, len(fields)),
	}
	for i, f := range fields {
		if _, dup := t.index[f.Name]; !dup {
			t.index[f.Name] = i
		}
	}
	return t
}

// SimpleName returns the type name without its qualifying prefix.
func (t *Type) SimpleName() string {
	return SimpleName(t.Name)
}

// FieldIndex returns the position of the named field.
func (t *Type) FieldIndex(name string) (int, bool) {
	if t == nil {
		return 0, false
	}
	i, ok := t.index[name]
	return i, ok
}

// Field returns the descriptor of the named field.
func (t *Type) Field(name string) (FieldDescriptor, bool) {
	i, ok := t.FieldIndex(name)
	if !ok {
		return FieldDescriptor{}, false
	}
	return t.Fields[i], true
}

// ContextualFields returns the names of fields flagged contextual, in declaration order.
func (t *Type) ContextualFields() []string {
	var names []string
	for _, f := range t.Fields {
		if f.Contextual {
			names = append(names, f.Name)
		}
	}
	return names
}

// HasContextualFields reports whether any field is flagged contextual.
func (t *Type) HasContextualFields() bool {
	for _, f := range t.Fields {
		if f.Contextual {
			return true
		}
	}
	return false
}

// SimpleName extracts the text after the last dot of a qualified name.
//
//	"demo.Trace"  -> "Trace"
//	"Trace"       -> "Trace"
//	"a.b.c.Event" -> "Event"
func SimpleName(full string) string {
	if i := strings.LastIndexByte(full, '.'); i >= 0 {
		return full[i+1:]
	}
	return full
}

// Thread identifies the logical thread an event was emitted on. Thread ids
// are only unique within one recording, so two threads are the same thread
// when both Source and ID match.
type Thread struct {
	Source uint64 // recording the thread belongs to, 0 when unknown
	ID     int64
	Name   string
}

// Record is an immutable event occurrence.
type Record struct {
	typ    *Type
	start  time.Time
	end    time.Time
	thread *Thread
	values []any
}

// NewRecord creates a record. values are positional with t.Fields; missing
// trailing values read as absent. A zero end means a point event (end == start).
func NewRecord(t *Type, start, end time.Time, thread *Thread, values ...any) *Record {
	if end.IsZero() || end.Before(start) {
		end = start
	}
	return &Record{
		typ:    t,
		start:  start,
		end:    end,
		thread: thread,
		values: values,
	}
}

// Type returns the event type.
func (r *Record) Type() *Type { return r.typ }

// Start returns the start instant.
func (r *Record) Start() time.Time { return r.start }

// End returns the end instant; equal to Start for point events.
func (r *Record) End() time.Time { return r.end }

// Duration returns End - Start.
func (r *Record) Duration() time.Duration { return r.end.Sub(r.start) }

// Thread returns the emitting thread, or nil when unknown.
func (r *Record) Thread() *Thread { return r.thread }

// HasField reports whether the record's type declares the field.
func (r *Record) HasField(name string) bool {
	_, ok := r.typ.FieldIndex(name)
	return ok
}

// Value returns the named field value. The boolean is false when the type
// does not declare the field; a declared field without a value yields (nil, true).
func (r *Record) Value(name string) (any, bool) {
	i, ok := r.typ.FieldIndex(name)
	if !ok {
		return nil, false
	}
	if i >= len(r.values) {
		return nil, true
	}
	return r.values[i], true
}

// ValueAt returns the value at a field position.
func (r *Record) ValueAt(i int) any {
	if i < 0 || i >= len(r.values) {
		return nil
	}
	return r.values[i]
}

func (r *Record) String() string {
	var sb strings.Builder
	sb.WriteString(r.typ.Name)
	sb.WriteString("{")
	for i, f := range r.typ.Fields {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%s=%v", f.Name, r.ValueAt(i))
	}
	sb.WriteString("}")
	return sb.String()
}
