package state

import (
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/gogpu/gpucontext"
	"github.com/google/uuid"

	"github.com/gogpu/scenestate"
)

var lastContextID atomic.Int64

// Context is a rendering context: the state currently bound on one GPU
// context plus the peers that issue calls to it.
//
// A context is current between MakeCurrent and [Current.Release]. Only
// the goroutine holding the [Current] handle may apply or restore state;
// the active tables are mutated only there and need no locking. Any
// goroutine may call Update and Destroy on atoms, which always defer the
// work to the context's [ResourceHandler].
type Context struct {
	id     int
	uuid   uuid.UUID
	label  string
	device gpucontext.DeviceProvider

	version   atomic.Uint64
	owner     atomic.Pointer[Current]
	destroyed atomic.Bool
	lockOS    bool

	peerMu   sync.RWMutex
	peers    []Peer
	provider PeerProvider

	atoms    [][]*Atom
	managers []activeManager

	knownMu sync.Mutex
	known   map[*Atom]struct{}

	handler *ResourceHandler
	stats   contextStats
}

type activeManager struct {
	m       Manager
	version uint64
}

type contextStats struct {
	realizations atomic.Uint64
	applies      atomic.Uint64
	restores     atomic.Uint64
}

// ContextStats counts peer work issued through a context.
type ContextStats struct {
	Realizations uint64
	Applies      uint64
	Restores     uint64
}

// ContextOption configures a [Context].
type ContextOption func(*Context)

// WithPeerProvider supplies peers for types without a registered peer.
func WithPeerProvider(p PeerProvider) ContextOption {
	return func(c *Context) { c.provider = p }
}

// WithDevice attaches the device the context renders with.
func WithDevice(d gpucontext.DeviceProvider) ContextOption {
	return func(c *Context) { c.device = d }
}

// WithLabel sets a debug label used in logs.
func WithLabel(label string) ContextOption {
	return func(c *Context) { c.label = label }
}

// WithOSThreadLock pins the goroutine that makes the context current to
// its OS thread until Release. Needed for thread-affine APIs such as GL.
func WithOSThreadLock(lock bool) ContextOption {
	return func(c *Context) { c.lockOS = lock }
}

// NewContext creates a context that is not current.
func NewContext(opts ...ContextOption) *Context {
	c := &Context{
		id:    int(lastContextID.Add(1) - 1),
		uuid:  uuid.New(),
		known: make(map[*Atom]struct{}),
	}
	c.version.Store(1)
	c.handler = newResourceHandler(c)
	for _, opt := range opts {
		opt(c)
	}
	c.log().Info("state: context created", slog.String("label", c.label))
	return c
}

// UUID returns the identity used to correlate log records.
func (c *Context) UUID() uuid.UUID { return c.uuid }

// Label returns the debug label.
func (c *Context) Label() string { return c.label }

// Device returns the attached device, or nil.
func (c *Context) Device() gpucontext.DeviceProvider { return c.device }

// Handler returns the queue of deferred atom work for this context.
func (c *Context) Handler() *ResourceHandler { return c.handler }

// Version returns the context version. Records realized under an older
// version are stale.
func (c *Context) Version() uint64 { return c.version.Load() }

// Invalidate marks every record stale and forgets the bound state, as
// after the loss and recreation of the underlying GPU context. cur must
// own c.
func (c *Context) Invalidate(cur *Current) error {
	if err := c.checkOwner(cur); err != nil {
		return err
	}
	c.version.Add(1)
	c.atoms = nil
	c.managers = nil
	c.log().Info("state: context invalidated", slog.Uint64("version", c.Version()))
	return nil
}

// RegisterPeer installs the peer for t, replacing any previous one.
func (c *Context) RegisterPeer(t DynamicType, p Peer) {
	c.peerMu.Lock()
	defer c.peerMu.Unlock()
	if int(t) >= len(c.peers) {
		c.peers = append(c.peers, make([]Peer, int(t)+1-len(c.peers))...)
	}
	c.peers[t] = p
}

// Peer returns the peer for t, or nil.
func (c *Context) Peer(t DynamicType) Peer {
	c.peerMu.RLock()
	var p Peer
	if int(t) < len(c.peers) {
		p = c.peers[t]
	}
	c.peerMu.RUnlock()
	if p == nil && c.provider != nil {
		if p = c.provider.Peer(t); p != nil {
			c.RegisterPeer(t, p)
		}
	}
	return p
}

func (c *Context) peer(t DynamicType) (Peer, error) {
	if p := c.Peer(t); p != nil {
		return p, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNoPeer, t)
}

// MakeCurrent binds the context to the calling goroutine and returns the
// handle that owns it until Release.
func (c *Context) MakeCurrent() (*Current, error) {
	if c.destroyed.Load() {
		return nil, ErrContextDestroyed
	}
	cur := &Current{ctx: c}
	if !c.owner.CompareAndSwap(nil, cur) {
		return nil, ErrAlreadyCurrent
	}
	if c.lockOS {
		runtime.LockOSThread()
	}
	return cur, nil
}

// IsCurrent reports whether some goroutine holds the context current.
func (c *Context) IsCurrent() bool { return c.owner.Load() != nil }

func (c *Context) checkCurrent() error {
	if c.destroyed.Load() {
		return ErrContextDestroyed
	}
	if c.owner.Load() == nil {
		return ErrNotCurrent
	}
	return nil
}

func (c *Context) checkOwner(cur *Current) error {
	if cur != nil && cur.ctx != c {
		return ErrNotCurrent
	}
	return cur.check()
}

// ActiveAtom returns the atom bound to unit u of type t, or nil.
func (c *Context) ActiveAtom(t DynamicType, u Unit) *Atom {
	if int(t) >= len(c.atoms) {
		return nil
	}
	row := c.atoms[t]
	if o := u.Ordinal(); o < len(row) {
		return row[o]
	}
	return nil
}

func (c *Context) setActiveAtom(t DynamicType, u Unit, a *Atom) {
	if int(t) >= len(c.atoms) {
		if a == nil {
			return
		}
		c.atoms = append(c.atoms, make([][]*Atom, int(t)+1-len(c.atoms))...)
	}
	row := c.atoms[t]
	o := u.Ordinal()
	if o >= len(row) {
		if a == nil {
			return
		}
		row = append(row, make([]*Atom, o+1-len(row))...)
		c.atoms[t] = row
	}
	row[o] = a
}

// activeUnits returns the units of type t that hold an atom, with kind.
func (c *Context) activeUnits(t DynamicType, kind UnitKind) []Unit {
	if int(t) >= len(c.atoms) {
		return nil
	}
	var units []Unit
	for i, a := range c.atoms[t] {
		if a == nil {
			continue
		}
		if kind == UnitNone {
			units = append(units, NullUnit)
		} else {
			units = append(units, Unit{Kind: kind, Index: i})
		}
	}
	return units
}

// unitsOf returns the units where a is active.
func (c *Context) unitsOf(a *Atom) []Unit {
	if int(a.typ) >= len(c.atoms) {
		return nil
	}
	var units []Unit
	for i, active := range c.atoms[a.typ] {
		if active != a {
			continue
		}
		for _, u := range []Unit{NullUnit, TextureUnit(i), LightUnit(i)} {
			if u.Ordinal() == i && a.ValidUnit(u) {
				units = append(units, u)
				break
			}
		}
	}
	return units
}

// ActiveManager returns the manager bound for type t, or nil.
func (c *Context) ActiveManager(t DynamicType) Manager {
	if int(t) >= len(c.managers) {
		return nil
	}
	return c.managers[t].m
}

func (c *Context) activeManagerVersion(t DynamicType) uint64 {
	if int(t) >= len(c.managers) {
		return 0
	}
	return c.managers[t].version
}

func (c *Context) setActiveManager(t DynamicType, m Manager, version uint64) {
	if int(t) >= len(c.managers) {
		if m == nil {
			return
		}
		c.managers = append(c.managers, make([]activeManager, int(t)+1-len(c.managers))...)
	}
	c.managers[t] = activeManager{m: m, version: version}
}

// NumManagerSlots returns the size of the active manager table.
func (c *Context) NumManagerSlots() int { return len(c.managers) }

func (c *Context) remember(a *Atom) {
	c.knownMu.Lock()
	c.known[a] = struct{}{}
	c.knownMu.Unlock()
}

func (c *Context) forget(a *Atom) {
	c.knownMu.Lock()
	delete(c.known, a)
	c.knownMu.Unlock()
}

// Realized returns the number of atoms holding a record in this context.
func (c *Context) Realized() int {
	c.knownMu.Lock()
	defer c.knownMu.Unlock()
	return len(c.known)
}

// Stats returns counters of the peer work issued so far.
func (c *Context) Stats() ContextStats {
	return ContextStats{
		Realizations: c.stats.realizations.Load(),
		Applies:      c.stats.applies.Load(),
		Restores:     c.stats.restores.Load(),
	}
}

// Destroy releases every atom record held by the context, drops deferred
// work and releases cur. cur must own c.
func (c *Context) Destroy(cur *Current) error {
	if err := c.checkOwner(cur); err != nil {
		return err
	}
	c.knownMu.Lock()
	atoms := make([]*Atom, 0, len(c.known))
	for a := range c.known {
		atoms = append(atoms, a)
	}
	c.knownMu.Unlock()

	for _, a := range atoms {
		if p := c.Peer(a.typ); p != nil {
			a.cleanup(c, p)
		}
	}
	c.handler.reset()
	c.atoms = nil
	c.managers = nil
	c.destroyed.Store(true)
	cur.Release()
	c.log().Info("state: context destroyed", slog.Int("atoms", len(atoms)))
	return nil
}

func (c *Context) log() *slog.Logger {
	return scenestate.Logger().With(slog.String("context", c.uuid.String()))
}
