package state

import (
	"errors"
	"log/slog"
	"sync"
)

// ResourceHandler holds atom updates and destroys requested through
// [Atom.Update] and [Atom.Destroy]. Requests are coalesced per atom and
// replayed newest first by DoUpdates and DoDestroys on the goroutine that
// owns the context.
//
// A destroy request cancels a pending update of the same atom and an
// update request cancels a pending destroy.
type ResourceHandler struct {
	ctx *Context

	mu       sync.Mutex
	updates  []*Atom
	destroys []*Atom
	pending  map[*Atom]bool // true for destroy
}

func newResourceHandler(c *Context) *ResourceHandler {
	return &ResourceHandler{ctx: c, pending: make(map[*Atom]bool)}
}

// QueueUpdate defers an update of a. It reports false if an update of a
// was already pending.
func (h *ResourceHandler) QueueUpdate(a *Atom) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	destroy, ok := h.pending[a]
	if ok && !destroy {
		return false
	}
	if ok {
		h.destroys = remove(h.destroys, a)
	}
	h.updates = append(h.updates, a)
	h.pending[a] = false
	return true
}

// QueueDestroy defers the destruction of a. It reports false if a
// destroy of a was already pending.
func (h *ResourceHandler) QueueDestroy(a *Atom) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	destroy, ok := h.pending[a]
	if ok && destroy {
		return false
	}
	if ok {
		h.updates = remove(h.updates, a)
	}
	h.destroys = append(h.destroys, a)
	h.pending[a] = true
	return true
}

// Pending returns the number of deferred updates and destroys.
func (h *ResourceHandler) Pending() (updates, destroys int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.updates), len(h.destroys)
}

// IsPending reports whether any request for a is deferred.
func (h *ResourceHandler) IsPending(a *Atom) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.pending[a]
	return ok
}

// DoUpdates realizes every deferred update, newest first. cur must own
// the context. Failures of single atoms do not stop the drain; they are
// returned joined.
func (h *ResourceHandler) DoUpdates(cur *Current) error {
	if err := h.ctx.checkOwner(cur); err != nil {
		return err
	}
	h.mu.Lock()
	batch := h.updates
	h.updates = nil
	for _, a := range batch {
		delete(h.pending, a)
	}
	h.mu.Unlock()

	var errs []error
	for i := len(batch) - 1; i >= 0; i-- {
		if err := batch[i].update(h.ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if len(batch) > 0 {
		h.ctx.log().Debug("state: drained updates",
			slog.Int("atoms", len(batch)), slog.Int("failed", len(errs)))
	}
	return errors.Join(errs...)
}

// DoDestroys releases every deferred destroy, newest first. cur must own
// the context.
func (h *ResourceHandler) DoDestroys(cur *Current) error {
	if err := h.ctx.checkOwner(cur); err != nil {
		return err
	}
	h.mu.Lock()
	batch := h.destroys
	h.destroys = nil
	for _, a := range batch {
		delete(h.pending, a)
	}
	h.mu.Unlock()

	var errs []error
	for i := len(batch) - 1; i >= 0; i-- {
		if err := batch[i].destroy(h.ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if len(batch) > 0 {
		h.ctx.log().Debug("state: drained destroys", slog.Int("atoms", len(batch)))
	}
	return errors.Join(errs...)
}

func (h *ResourceHandler) reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.updates = nil
	h.destroys = nil
	clear(h.pending)
}

func remove(list []*Atom, a *Atom) []*Atom {
	for i := len(list) - 1; i >= 0; i-- {
		if list[i] == a {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}
