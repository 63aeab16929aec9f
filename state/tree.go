package state

import (
	"sync/atomic"

	"github.com/gogpu/scenestate"
)

// Tree owns a root node and the bin its leaves are submitted to.
type Tree struct {
	root  *Node
	bin   Bin
	dirty atomic.Bool

	updates atomic.Uint64
}

// NewTree makes root the root of a new tree. A nil bin defaults to an
// [AppearanceBin] with [DefaultPriority].
func NewTree(root *Node, bin Bin) (*Tree, error) {
	if root == nil {
		return nil, ErrNilNode
	}
	if root.parent != nil || root.tree != nil {
		return nil, ErrRootParent
	}
	if bin == nil {
		bin = NewAppearanceBin(DefaultPriority)
	}
	t := &Tree{root: root, bin: bin}
	root.tree = t
	root.invalidateAll()
	return t, nil
}

// Root returns the root node.
func (t *Tree) Root() *Node { return t.root }

// Bin returns the bin leaves are submitted to.
func (t *Tree) Bin() Bin { return t.bin }

// Invalidate flags the tree for resubmission on the next Update.
func (t *Tree) Invalidate() { t.dirty.Store(true) }

// IsInvalidated reports whether Update has work to do.
func (t *Tree) IsInvalidated() bool { return t.dirty.Load() }

// Update resubmits the tree into its bin and optimizes the bin. It does
// nothing when the tree is clean and reports whether it did work.
func (t *Tree) Update() bool {
	if !t.dirty.Swap(false) {
		return false
	}
	t.bin.Clear()
	t.root.Submit(t.bin)
	t.bin.Optimize()
	t.updates.Add(1)
	scenestate.Logger().Debug("state: tree updated", "root", t.root.id, "updates", t.updates.Load())
	return true
}

// Updates returns how many times Update resubmitted the tree.
func (t *Tree) Updates() uint64 { return t.updates.Load() }
