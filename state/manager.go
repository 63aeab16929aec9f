package state

import (
	"fmt"
	"sync"
	"sync/atomic"
	"weak"
)

// MergeMode decides how a manager attached to a node combines with the
// manager of the same type inherited from its ancestors.
type MergeMode uint8

const (
	// MergeLower keeps the ancestor's value; the node only fills what the
	// ancestor left unset.
	MergeLower MergeMode = iota
	// MergeHigher lets the node's value override the ancestor's.
	MergeHigher
	// MergeReplace discards the ancestor's value entirely.
	MergeReplace
)

func (m MergeMode) String() string {
	switch m {
	case MergeLower:
		return "LOWER"
	case MergeHigher:
		return "HIGHER"
	case MergeReplace:
		return "REPLACE"
	}
	return fmt.Sprintf("MergeMode(%d)", uint8(m))
}

// ParseMergeMode parses "lower", "higher" or "replace".
func ParseMergeMode(s string) (MergeMode, error) {
	switch s {
	case "lower", "LOWER":
		return MergeLower, nil
	case "higher", "HIGHER", "":
		return MergeHigher, nil
	case "replace", "REPLACE":
		return MergeReplace, nil
	}
	return MergeHigher, fmt.Errorf("state: unknown merge mode %q", s)
}

// Manager governs one category of state on a node: a single atom, or a
// set of atoms on numbered units. Implementations embed [ManagerBase].
type Manager interface {
	// DynamicType returns the category the manager governs.
	DynamicType() DynamicType

	// MergeMode returns the merge policy of the manager.
	MergeMode() MergeMode

	// Merge resolves the receiver, attached below, against ancestor
	// according to the receiver's merge mode. It returns the receiver,
	// ancestor, or a synthesized manager, and must return the same
	// manager for the same inputs.
	Merge(ancestor Manager) Manager

	// SortKey is a structural key that changes whenever the bound atoms
	// change.
	SortKey() uint64

	// Compare orders managers of one dynamic type for state sorting.
	Compare(other Manager) int

	// ApplyOver binds the manager's atoms in c, replacing prev.
	ApplyOver(c *Context, prev Manager) error

	// RestoreAll unbinds the manager's atoms in c.
	RestoreAll(c *Context) error

	managerBase() *ManagerBase
}

var lastManagerID atomic.Uint64

// ManagerBase carries the bookkeeping every manager shares: its type,
// merge mode, content version and the nodes it is attached to. Nodes are
// held weakly and are only used for invalidation.
type ManagerBase struct {
	id   uint64
	typ  DynamicType
	mode MergeMode

	version atomic.Uint64

	mu    sync.Mutex
	nodes map[uint64]weak.Pointer[Node]

	memo map[uint64]mergeMemo // by ancestor id
}

type mergeMemo struct {
	ancestor        weak.Pointer[ManagerBase]
	ancestorVersion uint64
	version         uint64
	mode            MergeMode
	result          Manager
}

// Init prepares b for a manager of type t. Custom managers call it once
// from their constructor.
func (b *ManagerBase) Init(t DynamicType, mode MergeMode) {
	b.id = lastManagerID.Add(1)
	b.typ = t
	b.mode = mode
	b.version.Store(1)
}

func (b *ManagerBase) managerBase() *ManagerBase { return b }

// DynamicType implements [Manager].
func (b *ManagerBase) DynamicType() DynamicType { return b.typ }

// MergeMode implements [Manager].
func (b *ManagerBase) MergeMode() MergeMode { return b.mode }

// SetMergeMode changes the merge policy and invalidates attached nodes.
func (b *ManagerBase) SetMergeMode(m MergeMode) {
	if b.mode == m {
		return
	}
	b.mode = m
	b.Changed()
}

// Version increases whenever the manager's content changes.
func (b *ManagerBase) Version() uint64 { return b.version.Load() }

// Changed records a content change and invalidates every node the
// manager is attached to. Custom managers call it after mutation.
func (b *ManagerBase) Changed() {
	b.version.Add(1)
	b.mu.Lock()
	clear(b.memo)
	b.mu.Unlock()
	for _, n := range b.Nodes() {
		n.Invalidate()
	}
}

// Nodes returns the live nodes the manager is attached to.
func (b *ManagerBase) Nodes() []*Node {
	b.mu.Lock()
	defer b.mu.Unlock()
	nodes := make([]*Node, 0, len(b.nodes))
	for id, wp := range b.nodes {
		if n := wp.Value(); n != nil {
			nodes = append(nodes, n)
		} else {
			delete(b.nodes, id)
		}
	}
	return nodes
}

func (b *ManagerBase) addNode(n *Node) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.nodes == nil {
		b.nodes = make(map[uint64]weak.Pointer[Node])
	}
	b.nodes[n.id] = weak.Make(n)
}

func (b *ManagerBase) removeNode(n *Node) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.nodes, n.id)
}

// memoize returns the cached merge of the receiver with ancestor, or
// computes and caches it. One entry is kept per ancestor, so a manager
// shared below several parents resolves to the same result for each.
func (b *ManagerBase) memoize(ancestor Manager, compute func() Manager) Manager {
	ab := ancestor.managerBase()
	av := ab.Version()
	v := b.Version()

	b.mu.Lock()
	m, ok := b.memo[ab.id]
	b.mu.Unlock()
	if ok && m.ancestorVersion == av && m.version == v && m.mode == b.mode {
		return m.result
	}

	result := compute()
	b.mu.Lock()
	if b.memo == nil {
		b.memo = make(map[uint64]mergeMemo)
	}
	for id, e := range b.memo {
		if e.ancestor.Value() == nil || e.version != v {
			delete(b.memo, id)
		}
	}
	b.memo[ab.id] = mergeMemo{
		ancestor:        weak.Make(ab),
		ancestorVersion: av,
		version:         v,
		mode:            b.mode,
		result:          result,
	}
	b.mu.Unlock()
	return result
}

// Merge resolves child against ancestor. Either may be nil.
func Merge(child, ancestor Manager) Manager {
	switch {
	case child == nil:
		return ancestor
	case ancestor == nil, child == ancestor:
		return child
	}
	return child.Merge(ancestor)
}

// Apply binds m in c unless it is already the active manager of its type
// with the same content. The previous manager is handed to m so that only
// differing atoms reach the peers.
func Apply(c *Context, m Manager) error {
	if err := c.checkCurrent(); err != nil {
		return err
	}
	t := m.DynamicType()
	prev := c.ActiveManager(t)
	v := m.managerBase().Version()
	if prev == m && c.activeManagerVersion(t) == v {
		return nil
	}
	if err := m.ApplyOver(c, prev); err != nil {
		return err
	}
	c.setActiveManager(t, m, v)
	return nil
}

// Restore unbinds m from c if it is the active manager of its type.
func Restore(c *Context, m Manager) error {
	if err := c.checkCurrent(); err != nil {
		return err
	}
	t := m.DynamicType()
	if c.ActiveManager(t) != m {
		return nil
	}
	if err := m.RestoreAll(c); err != nil {
		return err
	}
	c.setActiveManager(t, nil, 0)
	return nil
}
