package state

import "slices"

// Bin collects the leaves of a tree as it is submitted.
type Bin interface {
	// Clear empties the bin before a resubmission.
	Clear()
	// Add records a leaf whose merged state is current.
	Add(leaf *Node)
	// Optimize runs once after every leaf has been added.
	Optimize()
}

// AppearanceBin keeps leaves ordered by appearance so that walking it
// binds state with few changes.
type AppearanceBin struct {
	leaves []*Node
	cmp    func(a, b *Appearance) int
}

// NewAppearanceBin returns a bin sorted by priority.
func NewAppearanceBin(priority []DynamicType) *AppearanceBin {
	return &AppearanceBin{cmp: Comparator(priority)}
}

// Clear implements [Bin].
func (b *AppearanceBin) Clear() { b.leaves = b.leaves[:0] }

// Add implements [Bin].
func (b *AppearanceBin) Add(leaf *Node) { b.leaves = append(b.leaves, leaf) }

// Optimize sorts the leaves by appearance. Equal appearances keep their
// submission order.
func (b *AppearanceBin) Optimize() {
	slices.SortStableFunc(b.leaves, func(x, y *Node) int {
		return b.cmp(x.Appearance(), y.Appearance())
	})
}

// Leaves returns the leaves in bin order.
func (b *AppearanceBin) Leaves() []*Node { return b.leaves }

// Len returns the number of leaves.
func (b *AppearanceBin) Len() int { return len(b.leaves) }
