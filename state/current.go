package state

import "runtime"

// Current is the ownership handle of a current [Context]. MakeCurrent
// hands it to the goroutine that bound the context; work that mutates the
// active tables or talks to peers outside of Apply and Restore runs only
// through it. The handle goes stale at Release.
//
// A Current must not be shared with other goroutines.
type Current struct {
	ctx *Context
}

// Context returns the context the handle owns.
func (cur *Current) Context() *Context { return cur.ctx }

// Valid reports whether the handle still owns its context.
func (cur *Current) Valid() bool {
	return cur != nil && cur.ctx.owner.Load() == cur && !cur.ctx.destroyed.Load()
}

// Update pushes the current payload of a to the backend now and rebinds
// it where it is active.
func (cur *Current) Update(a *Atom) error {
	if err := cur.check(); err != nil {
		return err
	}
	return a.update(cur.ctx)
}

// Destroy releases the backend record of a now, unbinding it first.
func (cur *Current) Destroy(a *Atom) error {
	if err := cur.check(); err != nil {
		return err
	}
	return a.destroy(cur.ctx)
}

// Release unbinds the context and invalidates the handle. Releasing a
// stale handle does nothing.
func (cur *Current) Release() {
	if cur == nil {
		return
	}
	c := cur.ctx
	if c.owner.CompareAndSwap(cur, nil) && c.lockOS {
		runtime.UnlockOSThread()
	}
}

func (cur *Current) check() error {
	if cur == nil {
		return ErrNotCurrent
	}
	if cur.ctx.destroyed.Load() {
		return ErrContextDestroyed
	}
	if cur.ctx.owner.Load() != cur {
		return ErrNotCurrent
	}
	return nil
}
