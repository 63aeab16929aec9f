package state

import (
	"encoding/binary"
	"errors"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
)

var lastAppearanceID atomic.Uint64

// Appearance is the merged state of a drawable: at most one manager per
// dynamic type.
type Appearance struct {
	id       uint64
	managers []Manager
}

// NewAppearance creates an appearance from ms. Later managers replace
// earlier ones of the same type; nil entries are skipped.
func NewAppearance(ms ...Manager) *Appearance {
	a := &Appearance{id: lastAppearanceID.Add(1)}
	for _, m := range ms {
		a.Set(m)
	}
	return a
}

// ID returns the identity of the appearance.
func (a *Appearance) ID() uint64 { return a.id }

// Get returns the manager of type t, or nil.
func (a *Appearance) Get(t DynamicType) Manager {
	if a == nil || t < 0 || int(t) >= len(a.managers) {
		return nil
	}
	return a.managers[t]
}

// Set installs m for its dynamic type.
func (a *Appearance) Set(m Manager) {
	if m == nil {
		return
	}
	t := m.DynamicType()
	if int(t) >= len(a.managers) {
		a.managers = append(a.managers, make([]Manager, int(t)+1-len(a.managers))...)
	}
	a.managers[t] = m
}

// Remove drops the manager of type t.
func (a *Appearance) Remove(t DynamicType) {
	if int(t) < len(a.managers) {
		a.managers[t] = nil
	}
}

// Managers returns the managers in dynamic type order.
func (a *Appearance) Managers() []Manager {
	if a == nil {
		return nil
	}
	ms := make([]Manager, 0, len(a.managers))
	for _, m := range a.managers {
		if m != nil {
			ms = append(ms, m)
		}
	}
	return ms
}

// Atoms returns every atom bound by the appearance's managers.
func (a *Appearance) Atoms() []*Atom {
	var out []*Atom
	for _, m := range a.Managers() {
		if h, ok := m.(interface{ Atoms() []*Atom }); ok {
			out = append(out, h.Atoms()...)
		}
	}
	return out
}

// reset replaces the content with merged, keeping the identity.
func (a *Appearance) reset(merged []Manager) {
	a.managers = append(a.managers[:0], merged...)
}

// SortKey hashes the types and sort keys of the managers. It changes
// when any category changes.
func (a *Appearance) SortKey() uint64 {
	if a == nil {
		return 0
	}
	d := xxhash.New()
	var buf [16]byte
	for t, m := range a.managers {
		if m == nil {
			continue
		}
		binary.LittleEndian.PutUint64(buf[:8], uint64(t))
		binary.LittleEndian.PutUint64(buf[8:], m.SortKey())
		_, _ = d.Write(buf[:])
	}
	return d.Sum64()
}

// Apply binds the appearance in c. Categories the appearance lacks are
// restored, so c ends up holding exactly this state. Failures of single
// categories do not stop the others; they are returned joined.
func (a *Appearance) Apply(c *Context) error {
	if err := c.checkCurrent(); err != nil {
		return err
	}
	var errs []error
	n := max(len(a.managers), c.NumManagerSlots())
	for t := range n {
		dt := DynamicType(t)
		if m := a.Get(dt); m != nil {
			if err := Apply(c, m); err != nil {
				errs = append(errs, err)
			}
			continue
		}
		if active := c.ActiveManager(dt); active != nil {
			if err := Restore(c, active); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
