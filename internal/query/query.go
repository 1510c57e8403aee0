// Package query models the structured query a run executes and resolves it
// against an event catalog into output fields.
//
// Queries are not parsed from text. They come from configuration files or
// command-line flags already split into select columns, source types,
// conditions and group-by references.
package query

import (
	"fmt"
	"strings"
)

// Aggregate names an aggregation applied to a column in group-by mode.
type Aggregate string

const (
	AggNone   Aggregate = ""
	AggCount  Aggregate = "count"
	AggSum    Aggregate = "sum"
	AggAvg    Aggregate = "avg"
	AggMin    Aggregate = "min"
	AggMax    Aggregate = "max"
	AggFirst  Aggregate = "first"
	AggLast   Aggregate = "last"
	AggUnique Aggregate = "unique" // distinct count
	AggList   Aggregate = "list"   // distinct values, joined
)

var aggregates = map[Aggregate]struct{}{
	AggNone: {}, AggCount: {}, AggSum: {}, AggAvg: {}, AggMin: {},
	AggMax: {}, AggFirst: {}, AggLast: {}, AggUnique: {}, AggList: {},
}

// ParseAggregate validates an aggregate name, case-insensitively.
func ParseAggregate(s string) (Aggregate, error) {
	a := Aggregate(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := aggregates[a]; !ok {
		return AggNone, fmt.Errorf("unknown aggregate %q", s)
	}
	return a, nil
}

// Column is one selected output column.
type Column struct {
	Ref       string `toml:"ref"`
	Aggregate string `toml:"aggregate"`
	Label     string `toml:"label"`
}

// Condition is an equality filter: the formatted value of Ref must equal Value.
type Condition struct {
	Ref   string `toml:"ref"`
	Value string `toml:"value"`
}

// Query is the structured form of a query.
type Query struct {
	Select  []Column    `toml:"select"`
	From    []string    `toml:"from"`
	Where   []Condition `toml:"where"`
	GroupBy []string    `toml:"group_by"`
}

// Grouped reports whether the query aggregates rows.
func (q *Query) Grouped() bool { return q != nil && len(q.GroupBy) > 0 }

// ParseCondition splits "ref=value" as accepted by --where.
func ParseCondition(s string) (Condition, error) {
	ref, value, ok := strings.Cut(s, "=")
	if !ok {
		return Condition{}, fmt.Errorf("condition %q: expected ref=value", s)
	}
	return Condition{Ref: strings.TrimSpace(ref), Value: value}, nil
}

// ParseColumn splits "agg(ref)" or "ref" as accepted by --select.
func ParseColumn(s string) Column {
	s = strings.TrimSpace(s)
	open := strings.IndexByte(s, '(')
	if open > 0 && strings.HasSuffix(s, ")") {
		return Column{Aggregate: s[:open], Ref: strings.TrimSpace(s[open+1 : len(s)-1])}
	}
	return Column{Ref: s}
}
