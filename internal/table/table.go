// Package table accumulates output rows, one per display event, and the
// contextual columns discovered from their correlated context records.
package table

import (
	"ctxview/internal/event"
	"ctxview/internal/query"
)

// Column describes one output column.
type Column struct {
	Name       string
	Label      string
	Contextual bool         // discovered from context records, resolved per row
	Field      *query.Field // nil for discovered columns
}

// Table is an append-only row sink.
type Table struct {
	fields  []*query.Field
	columns []Column
	names   map[string]bool
	rows    []*Row
}

// New creates an empty table.
func New() *Table {
	return &Table{names: make(map[string]bool)}
}

// AddFields appends resolved output fields as columns.
func (t *Table) AddFields(fields []*query.Field) {
	for _, f := range fields {
		t.fields = append(t.fields, f)
		t.columns = append(t.columns, Column{Name: f.Name, Label: f.Label, Field: f})
		t.names[f.Name] = true
	}
}

// Fields returns the resolved fields.
func (t *Table) Fields() []*query.Field { return t.fields }

// Columns returns all columns, discovered contextual columns last.
func (t *Table) Columns() []Column { return t.columns }

// Rows returns the rows in insertion order.
func (t *Table) Rows() []*Row { return t.rows }

// Add appends a row for rec. Values of fields are read from rec; explicitly
// selected contextual fields are read from contexts.
func (t *Table) Add(rec *event.Record, fields []*query.Field, contexts []*event.Record) {
	row := NewRow(len(t.columns))
	row.SetContexts(contexts)
	for _, f := range fields {
		var v any
		if f.Contextual {
			v, _ = LookupContext(row.contexts, f.ContextType, f.ContextField)
		} else {
			v = f.Value(rec)
		}
		row.PutValue(f.Index, v)
		row.PutText(f.Index, query.Text(v))
	}
	t.rows = append(t.rows, row)
}

// AddRows appends prebuilt rows, e.g. histogram buckets.
func (t *Table) AddRows(rows []*Row) {
	t.rows = append(t.rows, rows...)
}

// AddContextualColumns adds one column per "SimpleName.field" combination
// seen in any row's context records, in first-seen order. Names already
// present as columns are skipped.
func (t *Table) AddContextualColumns() []string {
	var added []string
	for _, row := range t.rows {
		for _, ctx := range row.contexts {
			typ := ctx.Type()
			simple := typ.SimpleName()
			for _, field := range typ.ContextualFields() {
				name := simple + "." + field
				if t.names[name] {
					continue
				}
				t.names[name] = true
				t.columns = append(t.columns, Column{Name: name, Label: name, Contextual: true})
				added = append(added, name)
			}
		}
	}
	if len(added) > 0 {
		for _, row := range t.rows {
			row.expand(len(t.columns))
		}
	}
	return added
}

// Value returns the value of column col in row. Discovered contextual
// columns resolve through the row's context records.
func (t *Table) Value(row *Row, col int) any {
	if !t.contextual(col) {
		return row.Value(col)
	}
	v, err := row.ContextualValue(t.columns[col].Name)
	if err != nil {
		return nil
	}
	return v
}

// Text returns the display text of column col in row.
func (t *Table) Text(row *Row, col int) string {
	if !t.contextual(col) {
		if s := row.Text(col); s != "" {
			return s
		}
	}
	return query.Text(t.Value(row, col))
}

func (t *Table) contextual(col int) bool {
	return col >= 0 && col < len(t.columns) && t.columns[col].Contextual
}
