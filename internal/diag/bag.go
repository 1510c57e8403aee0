package diag

import (
	"sort"

	"fortio.org/safecast"
)

// DefaultMax is the bag capacity used when a non-positive limit is given.
const DefaultMax = 100

// Bag collects diagnostics up to a limit.
type Bag struct {
	items   []*Diagnostic
	max     uint16
	dropped int
}

// NewBag creates a bag holding at most max diagnostics.
func NewBag(max int) *Bag {
	limit, err := safecast.Conv[uint16](max)
	if err != nil || limit == 0 {
		limit = DefaultMax
	}
	return &Bag{
		items: make([]*Diagnostic, 0, min(int(limit), 16)),
		max:   limit,
	}
}

// Add appends a diagnostic. It returns false when the limit is reached.
func (b *Bag) Add(d *Diagnostic) bool {
	if len(b.items) >= int(b.max) {
		b.dropped++
		return false
	}
	b.items = append(b.items, d)
	return true
}

// Cap returns the limit.
func (b *Bag) Cap() uint16 { return b.max }

// Dropped returns how many diagnostics were rejected by the limit.
func (b *Bag) Dropped() int { return b.dropped }

// HasErrors reports whether any diagnostic has Severity >= Error.
func (b *Bag) HasErrors() bool {
	if b == nil {
		return false
	}
	for _, d := range b.items {
		if d.Severity >= SevError {
			return true
		}
	}
	return false
}

// Len returns the number of diagnostics.
func (b *Bag) Len() int {
	if b == nil {
		return 0
	}
	return len(b.items)
}

// Items returns the diagnostics. The slice aliases the bag; do not modify it.
func (b *Bag) Items() []*Diagnostic {
	if b == nil {
		return nil
	}
	return b.items
}

// Channel returns the diagnostics of one channel, in insertion order.
func (b *Bag) Channel(ch Channel) []*Diagnostic {
	if b == nil {
		return nil
	}
	var out []*Diagnostic
	for _, d := range b.items {
		if d.Code.Channel() == ch {
			out = append(out, d)
		}
	}
	return out
}

// Messages renders the diagnostics of one channel as plain strings.
func (b *Bag) Messages(ch Channel) []string {
	var out []string
	for _, d := range b.Channel(ch) {
		out = append(out, d.String())
	}
	return out
}

// Merge appends diagnostics from other, raising the limit if needed.
func (b *Bag) Merge(other *Bag) {
	if other == nil {
		return
	}
	total := len(b.items) + len(other.items)
	if limit, err := safecast.Conv[uint16](total); err == nil && limit > b.max {
		b.max = limit
	}
	for _, d := range other.items {
		b.Add(d)
	}
	b.dropped += other.dropped
}

// Sort orders by channel, severity (desc), code and subject.
func (b *Bag) Sort() {
	sort.SliceStable(b.items, func(i, j int) bool {
		di, dj := b.items[i], b.items[j]
		if di.Code.Channel() != dj.Code.Channel() {
			return di.Code.Channel() > dj.Code.Channel()
		}
		if di.Severity != dj.Severity {
			return di.Severity > dj.Severity
		}
		if di.Code != dj.Code {
			return di.Code < dj.Code
		}
		return di.Subject < dj.Subject
	})
}

// Dedup drops repeated diagnostics with the same code, subject and message.
func (b *Bag) Dedup() {
	type key struct {
		code    Code
		subject string
		msg     string
	}
	seen := make(map[key]bool, len(b.items))
	out := b.items[:0]
	for _, d := range b.items {
		k := key{d.Code, d.Subject, d.Message}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, d)
	}
	b.items = out
}
