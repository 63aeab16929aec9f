package queue

import (
	"errors"
	"slices"
	"sync/atomic"

	"github.com/gogpu/scenestate"
)

var lastQueueID atomic.Uint64

// RenderQueue accumulates the atoms of a frame and draws them in the
// queue's order.
type RenderQueue interface {
	// ID identifies the queue in per-atom data.
	ID() uint64
	// Add appends a; nil atoms are ignored.
	Add(a *RenderAtom)
	// AddInfluence appends inf; nil influences are ignored.
	AddInfluence(inf InfluenceAtom)
	// Clear starts a new accumulation cycle.
	Clear()
	// Flush draws every atom with r and returns the polygon count.
	Flush(r Renderer, view *View) (int, error)
	// Len returns the number of atoms.
	Len() int
}

// optimizer reorders atoms in place before the first flush of a cycle.
type optimizer func(view *View, atoms []*RenderAtom)

// Basic is a queue that draws atoms in submission order. Other queues
// embed it and install an optimizer.
type Basic struct {
	id         uint64
	atoms      []*RenderAtom
	influences []InfluenceAtom
	cleared    bool
	optimize   optimizer
}

// NewBasic returns an empty queue.
func NewBasic() *Basic {
	b := &Basic{}
	b.init(nil)
	return b
}

func (b *Basic) init(opt optimizer) {
	b.id = lastQueueID.Add(1)
	b.cleared = true
	b.optimize = opt
}

// ID implements [RenderQueue].
func (b *Basic) ID() uint64 { return b.id }

// Add implements [RenderQueue].
func (b *Basic) Add(a *RenderAtom) {
	if a != nil {
		b.atoms = append(b.atoms, a)
	}
}

// AddInfluence implements [RenderQueue].
func (b *Basic) AddInfluence(inf InfluenceAtom) {
	if inf != nil {
		b.influences = append(b.influences, inf)
	}
}

// Clear implements [RenderQueue]. Backing arrays are kept.
func (b *Basic) Clear() {
	clear(b.atoms)
	b.atoms = b.atoms[:0]
	clear(b.influences)
	b.influences = b.influences[:0]
	b.cleared = true
}

// Grow reserves room for n more atoms in the current cycle.
func (b *Basic) Grow(n int) {
	if n > 0 {
		b.atoms = slices.Grow(b.atoms, n)
	}
}

// Len implements [RenderQueue].
func (b *Basic) Len() int { return len(b.atoms) }

// Atoms returns the atoms in their current order.
func (b *Basic) Atoms() []*RenderAtom { return b.atoms }

// Influences returns the influences added this cycle.
func (b *Basic) Influences() []InfluenceAtom { return b.influences }

// Flush implements [RenderQueue]. The first flush after Clear runs the
// optimizer; later flushes of the same cycle reuse its order. A failing
// atom does not stop the flush; errors are returned joined.
func (b *Basic) Flush(r Renderer, view *View) (int, error) {
	if b.cleared {
		b.cleared = false
		if b.optimize != nil && len(b.atoms) > 0 {
			b.optimize(view, b.atoms)
		}
	}

	var (
		polygons int
		errs     []error
	)
	for _, a := range b.atoms {
		for _, inf := range b.influences {
			if score := inf.Influences(a); score > 0 {
				r.ApplyInfluence(a, inf, score)
			}
		}
		n, err := r.RenderAtom(a, view)
		polygons += n
		if err != nil {
			errs = append(errs, err)
		}
		r.EndAtom(a)
	}
	if len(errs) > 0 {
		scenestate.Logger().Warn("queue: flush had failures",
			"queue", b.id, "atoms", len(b.atoms), "failed", len(errs))
	}
	return polygons, errors.Join(errs...)
}
