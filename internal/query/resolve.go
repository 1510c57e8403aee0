package query

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"

	"ctxview/internal/ctxindex"
	"ctxview/internal/diag"
	"ctxview/internal/event"
)

// Built-in fields available on every record.
const (
	FieldStartTime   = "startTime"
	FieldEndTime     = "endTime"
	FieldDuration    = "duration"
	FieldEventThread = "eventThread"
)

type pseudoField struct {
	kind event.Kind
	get  Getter
}

var pseudoFields = map[string]pseudoField{
	FieldStartTime: {event.KindTime, func(r *event.Record) any { return r.Start() }},
	FieldEndTime:   {event.KindTime, func(r *event.Record) any { return r.End() }},
	FieldDuration:  {event.KindDuration, func(r *event.Record) any { return r.Duration() }},
	FieldEventThread: {event.KindString, func(r *event.Record) any {
		if th := r.Thread(); th != nil {
			return th.Name
		}
		return nil
	}},
}

// Resolve checks q and binds it to the catalog. Syntax diagnostics are
// reported first; when there are any, resolution is not attempted. The
// returned bag also carries informational index diagnostics.
func Resolve(q *Query, catalog *event.Catalog, index *ctxindex.Index) (*Resolution, *diag.Bag) {
	r := &resolver{
		q:       normalize(q),
		catalog: catalog,
		index:   index,
		bag:     diag.NewBag(diag.DefaultMax),
	}
	r.checkSyntax()
	if r.bag.HasErrors() {
		return nil, r.bag
	}
	res := r.resolve()
	for _, c := range index.Collisions() {
		r.bag.Add(diag.New(diag.SevInfo, diag.IdxSimpleNameCollision, c.SimpleName,
			fmt.Sprintf("%q resolves to %s", c.SimpleName, c.Kept)).
			WithNote("use %s.<field> to reference %s", c.Ignored, c.Ignored))
	}
	if r.bag.HasErrors() {
		return nil, r.bag
	}
	return res, r.bag
}

func normalize(q *Query) *Query {
	if q == nil {
		return &Query{}
	}
	n := &Query{
		Select:  make([]Column, len(q.Select)),
		From:    make([]string, len(q.From)),
		Where:   make([]Condition, len(q.Where)),
		GroupBy: make([]string, len(q.GroupBy)),
	}
	for i, c := range q.Select {
		n.Select[i] = Column{Ref: nfc(c.Ref), Aggregate: c.Aggregate, Label: c.Label}
	}
	for i, s := range q.From {
		n.From[i] = nfc(s)
	}
	for i, c := range q.Where {
		n.Where[i] = Condition{Ref: nfc(c.Ref), Value: norm.NFC.String(c.Value)}
	}
	for i, s := range q.GroupBy {
		n.GroupBy[i] = nfc(s)
	}
	return n
}

func nfc(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

type resolver struct {
	q       *Query
	catalog *event.Catalog
	index   *ctxindex.Index
	bag     *diag.Bag
	types   []*FilteredType
}

func (r *resolver) syntaxError(code diag.Code, subject, msg string) {
	r.bag.Add(diag.NewError(code, subject, msg))
}

func (r *resolver) checkReference(ref, what string) {
	if ref == "" {
		r.syntaxError(diag.SynEmptyReference, "", what+" reference is empty")
		return
	}
	if strings.HasPrefix(ref, ".") || strings.HasSuffix(ref, ".") || strings.Contains(ref, "..") {
		r.syntaxError(diag.SynMalformedReference, ref, "reference has an empty segment")
	}
}

func (r *resolver) checkSyntax() {
	q := r.q
	if len(q.From) == 0 {
		r.syntaxError(diag.SynEmptyFrom, "", "no event type to select from")
	}
	for _, name := range q.From {
		r.checkReference(name, "event type")
	}
	labels := make(map[string]bool, len(q.Select))
	for _, c := range q.Select {
		r.checkReference(c.Ref, "column")
		agg, err := ParseAggregate(c.Aggregate)
		if err != nil {
			r.syntaxError(diag.SynUnknownAggregate, c.Aggregate, err.Error())
		} else if agg != AggNone && len(q.GroupBy) == 0 {
			r.syntaxError(diag.SynAggregateWithoutGroupBy, c.Ref,
				fmt.Sprintf("%s(%s) needs a group-by", agg, c.Ref))
		}
		label := c.Label
		if label == "" {
			continue
		}
		if labels[label] {
			r.syntaxError(diag.SynDuplicateLabel, label, "label used by more than one column")
		}
		labels[label] = true
	}
	for _, g := range q.GroupBy {
		r.checkReference(g, "group-by")
	}
	for _, c := range q.Where {
		if c.Ref == "" {
			r.syntaxError(diag.SynEmptyCondition, c.Value, "condition has no field reference")
			continue
		}
		r.checkReference(c.Ref, "condition")
	}
}

func (r *resolver) resolve() *Resolution {
	for _, name := range r.q.From {
		t, ok := r.catalog.Lookup(name)
		if !ok {
			r.bag.Add(diag.NewError(diag.ResUnknownType, name, "no such event type"))
			continue
		}
		r.types = append(r.types, &FilteredType{Type: t})
	}
	if len(r.types) == 0 {
		return nil
	}

	res := &Resolution{Types: r.types}
	columns := r.q.Select
	if len(columns) == 0 {
		columns = r.defaultColumns()
	}
	for _, c := range columns {
		f, ok := r.field(c.Ref)
		if !ok {
			r.bag.Add(diag.NewError(diag.ResUnknownField, c.Ref,
				"not a field of "+r.typeList()+" and not a contextual field"))
			continue
		}
		agg, _ := ParseAggregate(c.Aggregate)
		f.Aggregate = agg
		f.Label = c.Label
		if f.Label == "" {
			f.Label = labelFor(c.Ref, agg)
		}
		f.Index = len(res.Fields)
		res.Fields = append(res.Fields, f)
	}

	for _, g := range r.q.GroupBy {
		f := findField(res.Fields, g)
		if f == nil {
			var ok bool
			f, ok = r.field(g)
			if !ok {
				r.bag.Add(diag.NewError(diag.ResUnknownGroupBy, g,
					"group-by reference does not resolve"))
				continue
			}
			f.Label = g
			f.Index = len(res.Fields)
			res.Fields = append(res.Fields, f)
		}
		f.Grouping = true
		res.GroupBy = append(res.GroupBy, f)
	}

	r.attachFilters()
	return res
}

// defaultColumns selects every declared field of every source type.
func (r *resolver) defaultColumns() []Column {
	var cols []Column
	seen := make(map[string]bool)
	for _, ft := range r.types {
		for _, fd := range ft.Type.Fields {
			if seen[fd.Name] {
				continue
			}
			seen[fd.Name] = true
			cols = append(cols, Column{Ref: fd.Name})
		}
	}
	return cols
}

func (r *resolver) typeList() string {
	names := make([]string, len(r.types))
	for i, ft := range r.types {
		names[i] = ft.Type.SimpleName()
	}
	return strings.Join(names, ", ")
}

// field binds ref to the source types. Direct fields of a source type win
// over contextual references.
func (r *resolver) field(ref string) (*Field, bool) {
	f := &Field{Name: ref}
	for _, ft := range r.types {
		get, kind, ok := directGetter(ft.Type, ref)
		if !ok {
			continue
		}
		f.Kind = kind
		f.Sources = append(f.Sources, Source{Type: ft, Get: get})
	}
	if len(f.Sources) > 0 {
		return f, true
	}

	resolved, ok := r.index.Resolve(ref)
	if !ok {
		return nil, false
	}
	dot := strings.LastIndexByte(ref, '.')
	f.Contextual = true
	f.ContextType = ref[:dot]
	f.ContextField = resolved.Field
	if fd, ok := resolved.Info.Type.Field(resolved.Field); ok {
		f.Kind = fd.Kind
	}
	for _, ft := range r.types {
		f.Sources = append(f.Sources, Source{Type: ft})
	}
	return f, true
}

// directGetter resolves "field", "Type.field" or "pkg.Type.field" against t.
func directGetter(t *event.Type, ref string) (Getter, event.Kind, bool) {
	name := ref
	if rest, ok := strings.CutPrefix(ref, t.Name+"."); ok {
		name = rest
	} else if rest, ok := strings.CutPrefix(ref, t.SimpleName()+"."); ok {
		name = rest
	}
	if i, ok := t.FieldIndex(name); ok {
		return fieldGetter(t, i, name), t.Fields[i].Kind, true
	}
	if pf, ok := pseudoFields[name]; ok {
		return pf.get, pf.kind, true
	}
	return nil, 0, false
}

// fieldGetter reads a field by position for records of t. Records from other
// recordings may declare the same type with another field order, so those
// are read by name.
func fieldGetter(t *event.Type, i int, name string) Getter {
	return func(rec *event.Record) any {
		if rec.Type() == t {
			return rec.ValueAt(i)
		}
		v, _ := rec.Value(name)
		return v
	}
}

func (r *resolver) attachFilters() {
	for _, c := range r.q.Where {
		matched := false
		for _, ft := range r.types {
			get, _, ok := directGetter(ft.Type, c.Ref)
			if !ok {
				continue
			}
			matched = true
			ft.Filters = append(ft.Filters, Filter{Field: c.Ref, Get: get, Value: c.Value})
		}
		if matched {
			continue
		}
		if r.index.IsContextualField(c.Ref) {
			r.bag.Add(diag.NewError(diag.ResContextualCondition, c.Ref,
				"conditions apply to display fields only").
				WithNote("group by %s instead", c.Ref))
			continue
		}
		r.bag.Add(diag.NewError(diag.ResUnknownConditionField, c.Ref,
			"not a field of "+r.typeList()))
	}
}

func findField(fields []*Field, ref string) *Field {
	for _, f := range fields {
		if f.Name == ref && f.Aggregate == AggNone {
			return f
		}
	}
	return nil
}

func labelFor(ref string, agg Aggregate) string {
	if agg == AggNone {
		return ref
	}
	return string(agg) + "(" + ref + ")"
}
