package state

import (
	"cmp"
	"fmt"
)

// AtomManager governs a category with a single slot, holding at most one
// atom on [NullUnit]. A manager without an atom leaves its category
// unset; with [MergeReplace] it clears whatever an ancestor set.
type AtomManager struct {
	ManagerBase
	atom *Atom
}

// NewAtomManager creates a manager for a with [MergeHigher]. It panics if
// a is nil.
func NewAtomManager(a *Atom) *AtomManager {
	if a == nil {
		panic("state: NewAtomManager atom is nil")
	}
	m := &AtomManager{atom: a}
	m.Init(a.DynamicType(), MergeHigher)
	return m
}

// NewClearManager creates a manager of type t that removes the category
// from every node below it.
func NewClearManager(t DynamicType) *AtomManager {
	m := &AtomManager{}
	m.Init(t, MergeReplace)
	return m
}

// Atom returns the governed atom, or nil.
func (m *AtomManager) Atom() *Atom { return m.atom }

// Atoms returns the governed atom as a slice.
func (m *AtomManager) Atoms() []*Atom {
	if m.atom == nil {
		return nil
	}
	return []*Atom{m.atom}
}

// SetAtom swaps the governed atom. a must match the manager's type.
func (m *AtomManager) SetAtom(a *Atom) error {
	if a != nil && a.DynamicType() != m.typ {
		return fmt.Errorf("%w: %s atom on %s manager", ErrTypeMismatch, a.DynamicType(), m.typ)
	}
	if a == m.atom {
		return nil
	}
	m.atom = a
	m.Changed()
	return nil
}

// Merge implements [Manager].
func (m *AtomManager) Merge(ancestor Manager) Manager {
	switch m.mode {
	case MergeReplace:
		return m
	case MergeHigher:
		if m.atom == nil {
			return ancestor
		}
		return m
	default:
		if isSet(ancestor) {
			return ancestor
		}
		return m
	}
}

func isSet(m Manager) bool {
	switch v := m.(type) {
	case nil:
		return false
	case *AtomManager:
		return v.atom != nil
	case *UnitManager:
		return v.Len() > 0
	}
	return true
}

// SortKey implements [Manager].
func (m *AtomManager) SortKey() uint64 {
	if m.atom == nil {
		return 0
	}
	return m.atom.ID()
}

// Compare implements [Manager]. Managers order by atom creation.
func (m *AtomManager) Compare(other Manager) int {
	return cmp.Compare(m.SortKey(), other.SortKey())
}

// ApplyOver implements [Manager].
func (m *AtomManager) ApplyOver(c *Context, _ Manager) error {
	if m.atom != nil {
		return m.atom.Apply(c, NullUnit)
	}
	if active := c.ActiveAtom(m.typ, NullUnit); active != nil {
		return active.Restore(c, NullUnit)
	}
	return nil
}

// RestoreAll implements [Manager].
func (m *AtomManager) RestoreAll(c *Context) error {
	if m.atom == nil {
		return nil
	}
	return m.atom.Restore(c, NullUnit)
}
