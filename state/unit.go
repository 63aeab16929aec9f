package state

import "fmt"

// UnitKind classifies the slots an atom can occupy.
type UnitKind uint8

const (
	// UnitNone is the single slot of state that is not multiplexed.
	UnitNone UnitKind = iota
	// UnitTexture is a numbered texture binding slot.
	UnitTexture
	// UnitLight is a numbered light slot.
	UnitLight
)

// Unit is a slot within a dynamic type. Atoms of most types live on
// [NullUnit]; textures and lights live on numbered units.
type Unit struct {
	Kind  UnitKind
	Index int
}

// NullUnit is the only unit of non-multiplexed state.
var NullUnit = Unit{}

// TextureUnit returns texture unit i.
func TextureUnit(i int) Unit { return Unit{Kind: UnitTexture, Index: i} }

// LightUnit returns light unit i.
func LightUnit(i int) Unit { return Unit{Kind: UnitLight, Index: i} }

// Ordinal is the index of the unit in a context's active-atom table.
func (u Unit) Ordinal() int {
	if u.Kind == UnitNone {
		return 0
	}
	return u.Index
}

func (u Unit) String() string {
	switch u.Kind {
	case UnitNone:
		return "null unit"
	case UnitTexture:
		return fmt.Sprintf("texture unit %d", u.Index)
	case UnitLight:
		return fmt.Sprintf("light unit %d", u.Index)
	}
	return fmt.Sprintf("unit(%d,%d)", u.Kind, u.Index)
}

// MaxUnits bounds the numbered units of any kind.
const MaxUnits = 32

func numbered(u Unit, kind UnitKind) bool {
	return u.Kind == kind && u.Index >= 0 && u.Index < MaxUnits
}
