package state

import (
	"fmt"
	"sync"
	"sync/atomic"
)

var lastAtomID atomic.Uint64

// record is the per-context realization of an atom. It is usable only
// while version matches the context version and edits matches the atom.
type record struct {
	data    any
	version uint64
	edits   uint64
	live    bool
}

// Atom is one indivisible piece of GPU state: a shader, a texture on a
// unit, a blend function. Atoms are realized lazily per context the first
// time they are applied.
//
// Apply and Restore must run on the goroutine that made the context
// current. Update and Destroy may be called from anywhere and are always
// deferred to the context's [ResourceHandler]; the owner runs them at once
// through its [Current].
type Atom struct {
	id  uint64
	typ DynamicType

	mu      sync.Mutex
	payload Payload
	edits   uint64
	records []record
}

// NewAtom creates an atom holding p. It panics if p is nil.
func NewAtom(p Payload) *Atom {
	if p == nil {
		panic("state: NewAtom payload is nil")
	}
	return &Atom{
		id:      lastAtomID.Add(1),
		typ:     p.DynamicType(),
		payload: p,
	}
}

// ID returns the process-wide identifier of the atom. IDs increase in
// creation order.
func (a *Atom) ID() uint64 { return a.id }

// DynamicType returns the category of the atom.
func (a *Atom) DynamicType() DynamicType { return a.typ }

// Payload returns the current content.
func (a *Atom) Payload() Payload {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.payload
}

// SetPayload replaces the content. Realized records become stale and are
// refreshed on the next Apply or Update.
func (a *Atom) SetPayload(p Payload) error {
	if p == nil || p.DynamicType() != a.typ {
		return fmt.Errorf("%w: atom is %s", ErrTypeMismatch, a.typ)
	}
	a.mu.Lock()
	a.payload = p
	a.edits++
	a.mu.Unlock()
	return nil
}

// ValidUnit reports whether the atom may occupy u.
func (a *Atom) ValidUnit(u Unit) bool {
	return a.Payload().ValidUnit(u)
}

// IsRealized reports whether the atom has a usable record for c.
func (a *Atom) IsRealized(c *Context) bool {
	_, ok := a.usable(c)
	return ok
}

// Record returns the backend record for c, if any, even when stale.
func (a *Atom) Record(c *Context) (any, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if c.id >= len(a.records) || !a.records[c.id].live {
		return nil, false
	}
	return a.records[c.id].data, true
}

func (a *Atom) usable(c *Context) (any, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if c.id >= len(a.records) {
		return nil, false
	}
	r := a.records[c.id]
	if !r.live || r.version != c.Version() || r.edits != a.edits {
		return nil, false
	}
	return r.data, true
}

func (a *Atom) setRecord(c *Context, r record) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if c.id >= len(a.records) {
		a.records = append(a.records, make([]record, c.id+1-len(a.records))...)
	}
	a.records[c.id] = r
}

// takeRecord removes the record for c and returns it.
func (a *Atom) takeRecord(c *Context) record {
	a.mu.Lock()
	defer a.mu.Unlock()
	if c.id >= len(a.records) {
		return record{}
	}
	r := a.records[c.id]
	a.records[c.id] = record{}
	return r
}

// Apply makes a the active atom of its type on unit u of c.
//
// Applying the active atom again is free. Otherwise a stale or missing
// record is realized first; if that fails the previously active atom
// stays bound and an [*UpdateError] is returned. On success the peer
// receives the previous atom so it can emit only the difference.
// Only the goroutine holding the [Current] of c may call Apply.
func (a *Atom) Apply(c *Context, u Unit) error {
	if !a.ValidUnit(u) {
		return &UnitError{Type: a.typ, Unit: u}
	}
	if err := c.checkCurrent(); err != nil {
		return err
	}

	prev := c.ActiveAtom(a.typ, u)
	data, fresh := a.usable(c)
	if prev == a && fresh {
		return nil
	}

	peer, err := c.peer(a.typ)
	if err != nil {
		return err
	}
	if !fresh {
		data, err = a.realize(c, peer)
		if err != nil {
			if prev == a {
				peer.SetUnit(u)
				peer.Restore(a, nil)
				c.setActiveAtom(a.typ, u, nil)
			}
			return err
		}
	}

	var prevData any
	if prev != nil && prev != a {
		prevData, _ = prev.Record(c)
	} else if prev == a {
		prevData = data
	}
	peer.SetUnit(u)
	peer.Apply(prev, prevData, a, data)
	c.setActiveAtom(a.typ, u, a)
	c.stats.applies.Add(1)
	return nil
}

// Restore unbinds a from unit u of c. It does nothing unless a is the
// active atom there, so a late restore never clobbers a newer atom.
func (a *Atom) Restore(c *Context, u Unit) error {
	if !a.ValidUnit(u) {
		return &UnitError{Type: a.typ, Unit: u}
	}
	if err := c.checkCurrent(); err != nil {
		return err
	}
	if c.ActiveAtom(a.typ, u) != a {
		return nil
	}
	peer, err := c.peer(a.typ)
	if err != nil {
		return err
	}
	data, _ := a.Record(c)
	peer.SetUnit(u)
	peer.Restore(a, data)
	c.setActiveAtom(a.typ, u, nil)
	c.stats.restores.Add(1)
	return nil
}

// Update requests that the current payload reach the backend of c. It
// may be called from any goroutine: the request is queued on c's handler
// and runs at the next drain by the owner of c. [Current.Update] runs it
// immediately.
func (a *Atom) Update(c *Context) error {
	if c.destroyed.Load() {
		return ErrContextDestroyed
	}
	c.handler.QueueUpdate(a)
	return nil
}

// Destroy requests the release of the backend record of a in c. Like
// Update it only queues the request; [Current.Destroy] runs it
// immediately.
func (a *Atom) Destroy(c *Context) error {
	if c.destroyed.Load() {
		return ErrContextDestroyed
	}
	c.handler.QueueDestroy(a)
	return nil
}

// update realizes a in c and rebinds it where it is active. The caller
// owns c.
func (a *Atom) update(c *Context) error {
	peer, err := c.peer(a.typ)
	if err != nil {
		return err
	}
	data, err := a.realize(c, peer)
	if err != nil {
		return err
	}

	// Rebind where the atom is active so bound state matches the payload.
	for _, u := range c.unitsOf(a) {
		peer.SetUnit(u)
		peer.Apply(a, data, a, data)
	}
	return nil
}

// destroy unbinds a and releases its record in c. The caller owns c.
func (a *Atom) destroy(c *Context) error {
	peer, err := c.peer(a.typ)
	if err != nil {
		return err
	}
	a.cleanup(c, peer)
	return nil
}

func (a *Atom) cleanup(c *Context, peer Peer) {
	r := a.takeRecord(c)
	for _, u := range c.unitsOf(a) {
		peer.SetUnit(u)
		peer.Restore(a, r.data)
		c.setActiveAtom(a.typ, u, nil)
	}
	if r.live {
		peer.Cleanup(a, r.data)
	}
	c.forget(a)
}

// realize validates a and creates or refreshes its record for c.
func (a *Atom) realize(c *Context, peer Peer) (any, error) {
	if err := peer.Validate(a); err != nil {
		a.drop(c, peer)
		return nil, &UpdateError{Atom: a, Op: "validate", Err: err}
	}

	a.mu.Lock()
	edits := a.edits
	a.mu.Unlock()

	version := c.Version()
	old, hasOld := a.Record(c)
	sameVersion := false
	if hasOld {
		a.mu.Lock()
		sameVersion = a.records[c.id].version == version
		a.mu.Unlock()
	}

	var (
		data any
		err  error
		op   string
	)
	if hasOld && sameVersion {
		op = "update"
		data, err = peer.Update(a, old)
	} else {
		op = "initialize"
		data, err = peer.Initialize(a)
	}
	if err != nil {
		a.drop(c, peer)
		c.log().Warn("state: atom realization failed",
			"type", a.typ.String(), "atom", a.id, "op", op, "err", err)
		return nil, &UpdateError{Atom: a, Op: op, Err: err}
	}

	a.setRecord(c, record{data: data, version: version, edits: edits, live: true})
	c.remember(a)
	c.stats.realizations.Add(1)
	return data, nil
}

// drop discards a record that can no longer be trusted.
func (a *Atom) drop(c *Context, peer Peer) {
	a.mu.Lock()
	sameVersion := c.id < len(a.records) && a.records[c.id].live && a.records[c.id].version == c.Version()
	a.mu.Unlock()
	r := a.takeRecord(c)
	if sameVersion {
		peer.Cleanup(a, r.data)
	}
}
