// internal/snapshot/slot.go
package snapshot

// Slot is a double-buffered value. A writer opens a Guard, which copies the
// current value into previous and marks the slot as updating; readers see
// previous until the guard is released. Readers therefore observe either the
// fully old or the fully new value.
//
// Slot itself is not synchronized: the engine serializes producers and
// consumers, the slot only guards against reading half of an update.
type Slot[T any] struct {
	current  T
	previous T
	updating bool
}

// Guard is an open update on a Slot.
type Guard[T any] struct {
	s *Slot[T]
}

// BeginUpdate opens an update. Only one guard may be open at a time.
func (s *Slot[T]) BeginUpdate() *Guard[T] {
	s.previous = s.current
	s.updating = true
	return &Guard[T]{s: s}
}

// Set replaces the pending value.
func (g *Guard[T]) Set(v T) {
	g.s.current = v
}

// Value returns a pointer to the pending value for in-place edits.
func (g *Guard[T]) Value() *T {
	return &g.s.current
}

// Release publishes the pending value. Releasing twice is a no-op.
func (g *Guard[T]) Release() {
	if g.s == nil {
		return
	}
	g.s.updating = false
	g.s = nil
}

// Update runs fn against the pending value and always releases.
func (s *Slot[T]) Update(fn func(v *T)) {
	g := s.BeginUpdate()
	defer g.Release()
	fn(g.Value())
}

// Read returns the published value.
func (s *Slot[T]) Read() T {
	if s.updating {
		return s.previous
	}
	return s.current
}

// Previous returns the value as it was before the latest update.
func (s *Slot[T]) Previous() T {
	return s.previous
}

// Updating reports whether a guard is open.
func (s *Slot[T]) Updating() bool {
	return s.updating
}
