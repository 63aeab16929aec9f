package state

import (
	"cmp"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// UnitManager governs a multiplexed category, holding atoms on numbered
// units such as texture or light units. It is applied as a whole: one
// manager comparison swaps every unit.
type UnitManager struct {
	ManagerBase
	kind  UnitKind
	units []*Atom
}

// NewUnitManager creates an empty manager of type t over units of kind.
func NewUnitManager(t DynamicType, kind UnitKind) *UnitManager {
	m := &UnitManager{kind: kind}
	m.Init(t, MergeHigher)
	return m
}

// NewTextureManager creates a texture manager with atoms on units
// 0..len(atoms)-1. Nil entries leave a unit empty.
func NewTextureManager(atoms ...*Atom) (*UnitManager, error) {
	m := NewUnitManager(TypeTexture, UnitTexture)
	for i, a := range atoms {
		if err := m.SetUnit(i, a); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// UnitKind returns the kind of unit the manager spans.
func (m *UnitManager) UnitKind() UnitKind { return m.kind }

func (m *UnitManager) unit(i int) Unit { return Unit{Kind: m.kind, Index: i} }

// SetUnit places a on unit i. A nil atom empties the unit.
func (m *UnitManager) SetUnit(i int, a *Atom) error {
	if i < 0 || i >= MaxUnits {
		return &UnitError{Type: m.typ, Unit: m.unit(i)}
	}
	if a != nil {
		if a.DynamicType() != m.typ {
			return fmt.Errorf("%w: %s atom on %s manager", ErrTypeMismatch, a.DynamicType(), m.typ)
		}
		if !a.ValidUnit(m.unit(i)) {
			return &UnitError{Type: m.typ, Unit: m.unit(i)}
		}
	}
	if i < len(m.units) && m.units[i] == a {
		return nil
	}
	if i >= len(m.units) {
		if a == nil {
			return nil
		}
		m.units = append(m.units, make([]*Atom, i+1-len(m.units))...)
	}
	m.units[i] = a
	m.trim()
	m.Changed()
	return nil
}

func (m *UnitManager) trim() {
	for len(m.units) > 0 && m.units[len(m.units)-1] == nil {
		m.units = m.units[:len(m.units)-1]
	}
}

// Unit returns the atom on unit i, or nil.
func (m *UnitManager) Unit(i int) *Atom {
	if i < 0 || i >= len(m.units) {
		return nil
	}
	return m.units[i]
}

// Len returns the number of occupied units.
func (m *UnitManager) Len() int {
	n := 0
	for _, a := range m.units {
		if a != nil {
			n++
		}
	}
	return n
}

// Atoms returns the occupied units' atoms in unit order.
func (m *UnitManager) Atoms() []*Atom {
	out := make([]*Atom, 0, len(m.units))
	for _, a := range m.units {
		if a != nil {
			out = append(out, a)
		}
	}
	return out
}

// Span returns one past the highest occupied unit.
func (m *UnitManager) Span() int { return len(m.units) }

// Merge implements [Manager]. HIGHER and LOWER combine unit by unit;
// REPLACE keeps only the receiver's units.
func (m *UnitManager) Merge(ancestor Manager) Manager {
	if m.mode == MergeReplace {
		return m
	}
	anc, ok := ancestor.(*UnitManager)
	if !ok || anc.kind != m.kind {
		if m.mode == MergeLower && isSet(ancestor) {
			return ancestor
		}
		if m.Len() == 0 {
			return ancestor
		}
		return m
	}
	return m.memoize(ancestor, func() Manager {
		return m.combine(anc)
	})
}

func (m *UnitManager) combine(anc *UnitManager) Manager {
	span := max(len(m.units), len(anc.units))
	units := make([]*Atom, span)
	for i := range span {
		mine, theirs := m.Unit(i), anc.Unit(i)
		switch {
		case mine == nil:
			units[i] = theirs
		case theirs == nil:
			units[i] = mine
		case m.mode == MergeHigher:
			units[i] = mine
		default:
			units[i] = theirs
		}
	}
	if sameUnits(units, m.units) {
		return m
	}
	if sameUnits(units, anc.units) {
		return anc
	}
	merged := NewUnitManager(m.typ, m.kind)
	merged.mode = m.mode
	merged.units = units
	merged.trim()
	return merged
}

func sameUnits(a, b []*Atom) bool {
	n := max(len(a), len(b))
	for i := range n {
		var x, y *Atom
		if i < len(a) {
			x = a[i]
		}
		if i < len(b) {
			y = b[i]
		}
		if x != y {
			return false
		}
	}
	return true
}

// SortKey implements [Manager].
func (m *UnitManager) SortKey() uint64 {
	if m.Len() == 0 {
		return 0
	}
	d := xxhash.New()
	var buf [16]byte
	for i, a := range m.units {
		if a == nil {
			continue
		}
		binary.LittleEndian.PutUint64(buf[:8], uint64(i))
		binary.LittleEndian.PutUint64(buf[8:], a.ID())
		_, _ = d.Write(buf[:])
	}
	return d.Sum64()
}

// Compare implements [Manager]. Unit managers compare unit by unit, an
// empty unit before an occupied one.
func (m *UnitManager) Compare(other Manager) int {
	o, ok := other.(*UnitManager)
	if !ok {
		return cmp.Compare(m.SortKey(), other.SortKey())
	}
	span := max(len(m.units), len(o.units))
	for i := range span {
		a, b := m.Unit(i), o.Unit(i)
		switch {
		case a == b:
			continue
		case a == nil:
			return -1
		case b == nil:
			return 1
		}
		if c := cmp.Compare(a.ID(), b.ID()); c != 0 {
			return c
		}
	}
	return 0
}

// ApplyOver implements [Manager]. Occupied units are applied; units that
// hold an atom in c but are empty here are restored.
func (m *UnitManager) ApplyOver(c *Context, _ Manager) error {
	var errs []error
	for _, u := range c.activeUnits(m.typ, m.kind) {
		if m.Unit(u.Index) != nil {
			continue
		}
		if a := c.ActiveAtom(m.typ, u); a != nil {
			if err := a.Restore(c, u); err != nil {
				errs = append(errs, err)
			}
		}
	}
	for i, a := range m.units {
		if a == nil {
			continue
		}
		if err := a.Apply(c, m.unit(i)); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RestoreAll implements [Manager].
func (m *UnitManager) RestoreAll(c *Context) error {
	var errs []error
	for i, a := range m.units {
		if a == nil {
			continue
		}
		if err := a.Restore(c, m.unit(i)); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
