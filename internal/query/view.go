package query

import "ctxview/internal/event"

// ForView builds the query behind `ctxview view`: every declared field of the
// type followed by its start time, duration and thread.
func ForView(typeName string, catalog *event.Catalog) *Query {
	q := &Query{From: []string{typeName}}
	t, ok := catalog.Lookup(typeName)
	if !ok {
		// left to Resolve to report
		return q
	}
	q.Select = append(q.Select, Column{Ref: FieldStartTime})
	for _, fd := range t.Fields {
		q.Select = append(q.Select, Column{Ref: fd.Name})
	}
	q.Select = append(q.Select, Column{Ref: FieldDuration}, Column{Ref: FieldEventThread})
	return q
}
