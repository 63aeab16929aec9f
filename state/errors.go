package state

import (
	"errors"
	"fmt"
)

// Errors returned by state operations.
var (
	// ErrInvalidUnit is returned when an atom is applied to a unit its kind
	// cannot occupy, such as a texture on a light unit.
	ErrInvalidUnit = errors.New("state: invalid unit")

	// ErrNotCurrent is returned when a context-bound operation runs while
	// the context is not current, or through a stale [Current].
	ErrNotCurrent = errors.New("state: context is not current")

	// ErrAlreadyCurrent is returned by MakeCurrent on a current context.
	ErrAlreadyCurrent = errors.New("state: context is already current")

	// ErrContextDestroyed is returned for operations on a destroyed context.
	ErrContextDestroyed = errors.New("state: context destroyed")

	// ErrNoPeer is returned when no peer handles an atom's dynamic type.
	ErrNoPeer = errors.New("state: no peer for dynamic type")

	// ErrTypeMismatch is returned when a payload or atom does not match the
	// dynamic type it is assigned to.
	ErrTypeMismatch = errors.New("state: dynamic type mismatch")

	// ErrNilManager is returned when attaching a nil manager.
	ErrNilManager = errors.New("state: nil manager")

	// ErrNilNode is returned when a nil node is passed to a tree operation.
	ErrNilNode = errors.New("state: nil node")

	// ErrAlreadyParented is returned when a node that has a parent is
	// added to another branch.
	ErrAlreadyParented = errors.New("state: node already has a parent")

	// ErrRootParent is returned when a tree root would acquire a parent,
	// or a node that has a parent would become a root.
	ErrRootParent = errors.New("state: tree root cannot have a parent")

	// ErrNotBranch is returned when a child operation targets a leaf.
	ErrNotBranch = errors.New("state: node is not a branch")

	// ErrNotChild is returned when removing a node from a branch that
	// does not hold it.
	ErrNotChild = errors.New("state: node is not a child of this branch")

	// ErrCycle is returned when adding a node under its own descendant.
	ErrCycle = errors.New("state: node would become its own ancestor")
)

// UnitError reports an atom applied to a unit its kind does not accept.
type UnitError struct {
	Type DynamicType
	Unit Unit
}

func (e *UnitError) Error() string {
	return fmt.Sprintf("state: %s atoms cannot occupy %s", e.Type, e.Unit)
}

func (e *UnitError) Unwrap() error { return ErrInvalidUnit }

// UpdateError reports that a peer could not validate or realize an atom.
// The atom is left without a usable record for the context.
type UpdateError struct {
	Atom *Atom
	Op   string
	Err  error
}

func (e *UpdateError) Error() string {
	return fmt.Sprintf("state: %s of %s atom %d failed: %v", e.Op, e.Atom.DynamicType(), e.Atom.ID(), e.Err)
}

func (e *UpdateError) Unwrap() error { return e.Err }
