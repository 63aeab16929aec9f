package state

// Peer is the backend capability that turns atoms into GPU state.
//
// Records are opaque to this package: Initialize and Update return the
// backend representation of an atom, and that value is handed back to
// Update, Cleanup, Apply and Restore. Every method runs while the owning
// context is current.
type Peer interface {
	// Validate reports whether the backend can represent a. A non-nil
	// error prevents realization.
	Validate(a *Atom) error

	// Initialize creates the backend representation of a.
	Initialize(a *Atom) (any, error)

	// Update refreshes record after a changed. It may return a new record.
	Update(a *Atom, record any) (any, error)

	// Cleanup releases record.
	Cleanup(a *Atom, record any)

	// SetUnit selects the unit the next Apply or Restore targets.
	SetUnit(u Unit)

	// Apply binds next in place of prev. prev is nil when the unit held
	// nothing, and may equal next when next was refreshed while bound.
	Apply(prev *Atom, prevRecord any, next *Atom, nextRecord any)

	// Restore returns the unit to its default, unbound state.
	Restore(a *Atom, record any)
}

// PeerProvider supplies peers by dynamic type. Backends implement it.
type PeerProvider interface {
	Peer(t DynamicType) Peer
}
