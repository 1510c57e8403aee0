package event

import "fmt"

// Catalog is the ordered set of known event types.
type Catalog struct {
	types    []*Type
	byID     map[int64]*Type
	byName   map[string]*Type
	bySimple map[string]*Type
}

// NewCatalog builds a catalog. Duplicate names keep the first registration.
func NewCatalog(types ...*Type) *Catalog {
	c := &Catalog{
		byID:     make(map[int64]*Type, len(types)),
		byName:   make(map[string]*Type, len(types)),
		bySimple: make(map[string]*Type, len(types)),
	}
	for _, t := range types {
		// duplicates are dropped silently; Add reports them
		_ = c.Add(t)
	}
	return c
}

// Add registers a type. It fails when the name or id is already taken.
func (c *Catalog) Add(t *Type) error {
	if t == nil {
		return fmt.Errorf("nil event type")
	}
	if _, ok := c.byName[t.Name]; ok {
		return fmt.Errorf("duplicate event type %q", t.Name)
	}
	if _, ok := c.byID[t.ID]; ok {
		return fmt.Errorf("duplicate event type id %d (%q)", t.ID, t.Name)
	}
	c.types = append(c.types, t)
	c.byID[t.ID] = t
	c.byName[t.Name] = t
	if _, ok := c.bySimple[t.SimpleName()]; !ok {
		c.bySimple[t.SimpleName()] = t
	}
	return nil
}

// Types returns the types in registration order. Do not modify the slice.
func (c *Catalog) Types() []*Type {
	if c == nil {
		return nil
	}
	return c.types
}

// Len returns the number of types.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.types)
}

// ByID looks a type up by id.
func (c *Catalog) ByID(id int64) (*Type, bool) {
	if c == nil {
		return nil, false
	}
	t, ok := c.byID[id]
	return t, ok
}

// Lookup finds a type by fully qualified name, falling back to the simple
// name (first registered wins).
func (c *Catalog) Lookup(name string) (*Type, bool) {
	if c == nil {
		return nil, false
	}
	if t, ok := c.byName[name]; ok {
		return t, true
	}
	t, ok := c.bySimple[name]
	return t, ok
}

// Merge appends types of other whose names are not yet known. Ids of merged
// types are renumbered when they clash.
func (c *Catalog) Merge(other *Catalog) {
	if other == nil {
		return
	}
	next := int64(0)
	for id := range c.byID {
		if id >= next {
			next = id + 1
		}
	}
	for _, t := range other.types {
		if _, ok := c.byName[t.Name]; ok {
			continue
		}
		if _, clash := c.byID[t.ID]; clash {
			renum := NewType(next, t.Name, t.Fields...)
			renum.Label = t.Label
			t = renum
			next++
		}
		if err := c.Add(t); err != nil {
			continue
		}
		if t.ID >= next {
			next = t.ID + 1
		}
	}
}
