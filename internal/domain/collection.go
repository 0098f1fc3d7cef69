package domain

import (
	"errors"
	"fmt"
	"sync"
)

var (
	ErrDuplicateEntity      = errors.New("entity id already exists in collection")
	ErrResumeWithoutSuspend = errors.New("resume events called more than suspend events")
)

// CollectionChange lists the entities added, removed, and changed since the
// previous notification.
type CollectionChange struct {
	Added   []*Entity
	Removed []*Entity
	Changed []*Entity
}

// Empty reports whether the change carries no entities.
func (c CollectionChange) Empty() bool {
	return len(c.Added) == 0 && len(c.Removed) == 0 && len(c.Changed) == 0
}

// EntityCollection is the ordered set of entities displayed by the renderer.
// Between SuspendEvents and the matching ResumeEvents every mutation is
// accumulated, and a single CollectionChanged notification fires after the
// outermost resume.
type EntityCollection struct {
	CollectionChanged Event[CollectionChange]

	mu      sync.Mutex
	values  []*Entity
	byID    map[string]*Entity
	suspend int
	added   entitySet
	removed entitySet
	changed entitySet
}

// NewEntityCollection returns an empty collection.
func NewEntityCollection() *EntityCollection {
	return &EntityCollection{byID: make(map[string]*Entity)}
}

// SuspendEvents defers change notifications until ResumeEvents is called the
// same number of times.
func (c *EntityCollection) SuspendEvents() {
	c.mu.Lock()
	c.suspend++
	c.mu.Unlock()
}

// ResumeEvents undoes one SuspendEvents. When the count reaches zero and any
// mutation happened, CollectionChanged fires once.
func (c *EntityCollection) ResumeEvents() error {
	c.mu.Lock()
	if c.suspend == 0 {
		c.mu.Unlock()
		return ErrResumeWithoutSuspend
	}
	c.suspend--
	change, fire := c.takeChangeLocked()
	c.mu.Unlock()

	if fire {
		c.CollectionChanged.Raise(change)
	}
	return nil
}

// Add appends an entity. IDs must be unique within the collection.
func (c *EntityCollection) Add(e *Entity) error {
	c.mu.Lock()
	if _, ok := c.byID[e.ID]; ok {
		c.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrDuplicateEntity, e.ID)
	}
	c.byID[e.ID] = e
	c.values = append(c.values, e)
	if c.removed.delete(e.ID) {
		c.changed.put(e)
	} else {
		c.added.put(e)
	}
	change, fire := c.takeChangeLocked()
	c.mu.Unlock()

	if fire {
		c.CollectionChanged.Raise(change)
	}
	return nil
}

// RemoveAll removes every entity.
func (c *EntityCollection) RemoveAll() {
	c.mu.Lock()
	for _, e := range c.values {
		if !c.added.delete(e.ID) {
			c.removed.put(e)
		}
		c.changed.delete(e.ID)
	}
	c.values = nil
	c.byID = make(map[string]*Entity)
	change, fire := c.takeChangeLocked()
	c.mu.Unlock()

	if fire {
		c.CollectionChanged.Raise(change)
	}
}

// SetShow updates an entity's visibility, recording a change when the value
// differs.
func (c *EntityCollection) SetShow(e *Entity, show bool) {
	c.mu.Lock()
	if e.Show == show {
		c.mu.Unlock()
		return
	}
	e.Show = show
	if _, pending := c.added.m[e.ID]; !pending {
		c.changed.put(e)
	}
	change, fire := c.takeChangeLocked()
	c.mu.Unlock()

	if fire {
		c.CollectionChanged.Raise(change)
	}
}

// Values returns the entities in insertion order. The slice is a copy; the
// entities are shared.
func (c *EntityCollection) Values() []*Entity {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Entity, len(c.values))
	copy(out, c.values)
	return out
}

// Snapshot returns copies of the entities in insertion order, safe to read
// while the collection keeps changing.
func (c *EntityCollection) Snapshot() []Entity {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Entity, len(c.values))
	for i, e := range c.values {
		out[i] = *e
	}
	return out
}

// GetByID returns the entity with the given id, or nil.
func (c *EntityCollection) GetByID(id string) *Entity {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.byID[id]
}

// Len returns the number of entities.
func (c *EntityCollection) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.values)
}

// takeChangeLocked drains the pending change when events are not suspended.
func (c *EntityCollection) takeChangeLocked() (CollectionChange, bool) {
	if c.suspend > 0 {
		return CollectionChange{}, false
	}
	change := CollectionChange{
		Added:   c.added.drain(),
		Removed: c.removed.drain(),
		Changed: c.changed.drain(),
	}
	return change, !change.Empty()
}

// entitySet is an insertion-ordered set of entities keyed by id.
type entitySet struct {
	order []string
	m     map[string]*Entity
}

func (s *entitySet) put(e *Entity) {
	if s.m == nil {
		s.m = make(map[string]*Entity)
	}
	if _, ok := s.m[e.ID]; !ok {
		s.order = append(s.order, e.ID)
	}
	s.m[e.ID] = e
}

func (s *entitySet) delete(id string) bool {
	if _, ok := s.m[id]; !ok {
		return false
	}
	delete(s.m, id)
	for i, o := range s.order {
		if o == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

func (s *entitySet) drain() []*Entity {
	if len(s.order) == 0 {
		return nil
	}
	out := make([]*Entity, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.m[id])
	}
	s.order = nil
	s.m = nil
	return out
}
