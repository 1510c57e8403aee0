package histogram

import (
	"strings"
	"time"

	"ctxview/internal/query"
)

type aggregator interface {
	add(v any)
	result() any
}

func newAggregator(f *query.Field) aggregator {
	switch f.Aggregate {
	case query.AggCount:
		return &countAgg{}
	case query.AggSum:
		return &sumAgg{}
	case query.AggAvg:
		return &avgAgg{}
	case query.AggMin:
		return &extremeAgg{keep: func(c int) bool { return c < 0 }}
	case query.AggMax:
		return &extremeAgg{keep: func(c int) bool { return c > 0 }}
	case query.AggFirst:
		return &firstAgg{}
	case query.AggUnique:
		return &distinctAgg{count: true}
	case query.AggList:
		return &distinctAgg{}
	default:
		// grouping keys and plain columns keep the last value, as does AggLast
		return &lastAgg{}
	}
}

type countAgg struct{ n int64 }

func (a *countAgg) add(any)     { a.n++ }
func (a *countAgg) result() any { return a.n }

type numKind uint8

const (
	numNone numKind = iota
	numInt
	numFloat
	numDuration
)

// number converts v to float64 and reports its numeric kind.
func number(v any) (float64, numKind) {
	switch x := v.(type) {
	case int64:
		return float64(x), numInt
	case int:
		return float64(x), numInt
	case int32:
		return float64(x), numInt
	case float64:
		return x, numFloat
	case float32:
		return float64(x), numFloat
	case time.Duration:
		return float64(x), numDuration
	}
	return 0, numNone
}

func typed(sum float64, kind numKind) any {
	switch kind {
	case numInt:
		return int64(sum)
	case numDuration:
		return time.Duration(sum)
	case numFloat:
		return sum
	}
	return nil
}

type sumAgg struct {
	sum  float64
	kind numKind
}

func (a *sumAgg) add(v any) {
	x, k := number(v)
	if k == numNone {
		return
	}
	a.sum += x
	if a.kind == numNone || k == numFloat {
		a.kind = k
	}
}

func (a *sumAgg) result() any { return typed(a.sum, a.kind) }

type avgAgg struct {
	sumAgg
	n int64
}

func (a *avgAgg) add(v any) {
	if _, k := number(v); k == numNone {
		return
	}
	a.sumAgg.add(v)
	a.n++
}

func (a *avgAgg) result() any {
	if a.n == 0 {
		return nil
	}
	avg := a.sum / float64(a.n)
	if a.kind == numInt {
		return avg
	}
	return typed(avg, a.kind)
}

type extremeAgg struct {
	keep func(cmp int) bool
	v    any
}

func (a *extremeAgg) add(v any) {
	if v == nil {
		return
	}
	if a.v == nil || a.keep(compare(v, a.v)) {
		a.v = v
	}
}

func (a *extremeAgg) result() any { return a.v }

// compare orders numbers, instants and otherwise formatted text.
func compare(x, y any) int {
	if tx, ok := x.(time.Time); ok {
		if ty, ok := y.(time.Time); ok {
			return tx.Compare(ty)
		}
	}
	fx, kx := number(x)
	fy, ky := number(y)
	if kx != numNone && ky != numNone {
		switch {
		case fx < fy:
			return -1
		case fx > fy:
			return 1
		}
		return 0
	}
	return strings.Compare(query.Text(x), query.Text(y))
}

type firstAgg struct {
	v   any
	set bool
}

func (a *firstAgg) add(v any) {
	if !a.set {
		a.v, a.set = v, true
	}
}

func (a *firstAgg) result() any { return a.v }

type lastAgg struct{ v any }

func (a *lastAgg) add(v any)   { a.v = v }
func (a *lastAgg) result() any { return a.v }

type distinctAgg struct {
	count bool
	seen  map[string]bool
	order []string
}

func (a *distinctAgg) add(v any) {
	if v == nil {
		return
	}
	s := query.Text(v)
	if a.seen == nil {
		a.seen = make(map[string]bool)
	}
	if a.seen[s] {
		return
	}
	a.seen[s] = true
	a.order = append(a.order, s)
}

func (a *distinctAgg) result() any {
	if a.count {
		return int64(len(a.order))
	}
	if len(a.order) == 0 {
		return nil
	}
	return strings.Join(a.order, ", ")
}
