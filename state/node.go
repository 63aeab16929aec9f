package state

import (
	"fmt"
	"slices"
	"sync/atomic"
)

// NodeKind distinguishes branches, which hold children, from leaves,
// which are submitted to a bin.
type NodeKind uint8

const (
	// KindBranch is an interior node.
	KindBranch NodeKind = iota
	// KindLeaf is a terminal node with an appearance.
	KindLeaf
)

func (k NodeKind) String() string {
	if k == KindLeaf {
		return "leaf"
	}
	return "branch"
}

var lastNodeID atomic.Uint64

// Node is a position in a state tree. It owns the managers attached to it
// and caches the merge of those managers over its ancestors' state.
//
// Structural operations are not safe for concurrent use. Invalidate may
// be called from any goroutine.
type Node struct {
	id       uint64
	kind     NodeKind
	parent   *Node
	children []*Node
	tree     *Tree

	own    []Manager
	merged []Manager

	invalidated atomic.Bool

	appearance *Appearance

	// Data is free for the owner of the node, typically the drawable a
	// leaf stands for.
	Data any
}

func newNode(kind NodeKind) *Node {
	n := &Node{id: lastNodeID.Add(1), kind: kind}
	n.invalidated.Store(true)
	if kind == KindLeaf {
		n.appearance = NewAppearance()
	}
	return n
}

// NewBranch creates a branch node with no children.
func NewBranch() *Node { return newNode(KindBranch) }

// NewLeaf creates a leaf node with an empty appearance.
func NewLeaf() *Node { return newNode(KindLeaf) }

// ID returns the identity of the node.
func (n *Node) ID() uint64 { return n.id }

// Kind reports whether n is a branch or a leaf.
func (n *Node) Kind() NodeKind { return n.kind }

// Parent returns the parent branch, or nil.
func (n *Node) Parent() *Node { return n.parent }

// Children returns the children of a branch.
func (n *Node) Children() []*Node { return slices.Clone(n.children) }

// Appearance returns the merged state of a leaf. The pointer is stable
// for the lifetime of the leaf; its content follows the merged state
// after each Update of the tree. Branches return nil.
func (n *Node) Appearance() *Appearance { return n.appearance }

// AddManager attaches m to n, replacing any manager of the same type.
func (n *Node) AddManager(m Manager) error {
	if m == nil {
		return ErrNilManager
	}
	t := m.DynamicType()
	if int(t) >= len(n.own) {
		n.own = append(n.own, make([]Manager, int(t)+1-len(n.own))...)
	}
	if old := n.own[t]; old != nil && old != m {
		old.managerBase().removeNode(n)
	}
	n.own[t] = m
	m.managerBase().addNode(n)
	n.Invalidate()
	return nil
}

// RemoveManager detaches the manager of type t. It reports whether one
// was attached.
func (n *Node) RemoveManager(t DynamicType) bool {
	if t < 0 || int(t) >= len(n.own) || n.own[t] == nil {
		return false
	}
	n.own[t].managerBase().removeNode(n)
	n.own[t] = nil
	n.Invalidate()
	return true
}

// Manager returns the manager of type t attached to n itself.
func (n *Node) Manager(t DynamicType) Manager {
	if t < 0 || int(t) >= len(n.own) {
		return nil
	}
	return n.own[t]
}

// AddChild appends child to the branch n. The tree is left unchanged on
// error.
func (n *Node) AddChild(child *Node) error {
	switch {
	case n.kind != KindBranch:
		return ErrNotBranch
	case child == nil:
		return ErrNilNode
	case child.parent != nil:
		return ErrAlreadyParented
	case child.tree != nil:
		return ErrRootParent
	}
	for p := n; p != nil; p = p.parent {
		if p == child {
			return ErrCycle
		}
	}
	n.children = append(n.children, child)
	child.parent = n
	child.invalidateAll()
	return nil
}

// RemoveChild detaches child from the branch n.
func (n *Node) RemoveChild(child *Node) error {
	if n.kind != KindBranch {
		return ErrNotBranch
	}
	if child == nil {
		return ErrNilNode
	}
	i := slices.Index(n.children, child)
	if i < 0 {
		return ErrNotChild
	}
	n.children = slices.Delete(n.children, i, i+1)
	n.Invalidate()
	child.parent = nil
	child.Invalidate()
	return nil
}

// Invalidate marks n and its descendants stale and flags the owning
// tree for an update.
func (n *Node) Invalidate() {
	if !n.invalidated.Swap(true) {
		for _, c := range n.children {
			c.invalidate()
		}
	}
	if t := n.Tree(); t != nil {
		t.Invalidate()
	}
}

// invalidate marks the subtree without walking to the root. A valid node
// never has an invalidated ancestor, so an invalidated node already has
// an invalidated subtree.
func (n *Node) invalidate() {
	if n.invalidated.Swap(true) {
		return
	}
	for _, c := range n.children {
		c.invalidate()
	}
}

// invalidateAll marks the whole subtree regardless of current flags.
func (n *Node) invalidateAll() {
	n.invalidated.Store(true)
	for _, c := range n.children {
		c.invalidateAll()
	}
	if t := n.Tree(); t != nil {
		t.Invalidate()
	}
}

// IsInvalidated reports whether the merged state of n is stale.
func (n *Node) IsInvalidated() bool { return n.invalidated.Load() }

// Tree returns the tree n belongs to, or nil when detached.
func (n *Node) Tree() *Tree {
	r := n
	for r.parent != nil {
		r = r.parent
	}
	return r.tree
}

// MergedStates returns the managers in effect at n, indexed by dynamic
// type. Ancestors are merged first; a clean node returns its cache. The
// result must not be modified.
func (n *Node) MergedStates() []Manager {
	var inherited []Manager
	if n.parent != nil {
		inherited = n.parent.MergedStates()
	}
	if !n.invalidated.Load() {
		return n.merged
	}

	size := max(len(inherited), len(n.own))
	merged := make([]Manager, size)
	copy(merged, inherited)
	for t, m := range n.own {
		if m == nil {
			continue
		}
		var anc Manager
		if t < len(inherited) {
			anc = inherited[t]
		}
		merged[t] = Merge(m, anc)
	}
	n.merged = merged
	if n.appearance != nil {
		n.appearance.reset(merged)
	}
	n.invalidated.Store(false)
	return merged
}

// Submit brings n up to date and adds its leaves to bin.
func (n *Node) Submit(bin Bin) {
	switch n.kind {
	case KindLeaf:
		n.MergedStates()
		if bin != nil {
			bin.Add(n)
		}
	default:
		n.MergedStates()
		for _, c := range n.children {
			c.Submit(bin)
		}
	}
}

func (n *Node) String() string {
	return fmt.Sprintf("%s#%d", n.kind, n.id)
}
