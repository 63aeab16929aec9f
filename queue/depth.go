package queue

import (
	"cmp"
	"slices"
)

// DepthSorting orders atoms by squared distance from the view position.
type DepthSorting struct {
	Basic
	frontToBack bool
	keyed       []depthKey
}

type depthKey struct {
	dist float32
	atom *RenderAtom
}

// NewDepthSorting returns a depth sorting queue. Front to back suits
// opaque geometry; back to front is required for blending.
func NewDepthSorting(frontToBack bool) *DepthSorting {
	q := &DepthSorting{frontToBack: frontToBack}
	q.init(q.sort)
	return q
}

// FrontToBack reports the sort direction.
func (q *DepthSorting) FrontToBack() bool { return q.frontToBack }

func (q *DepthSorting) sort(view *View, atoms []*RenderAtom) {
	if view == nil {
		return
	}
	q.keyed = q.keyed[:0]
	for _, a := range atoms {
		d := a.WorldCenter().Sub(view.Position).LenSqr()
		q.keyed = append(q.keyed, depthKey{dist: d, atom: a})
	}
	slices.SortStableFunc(q.keyed, func(x, y depthKey) int {
		if q.frontToBack {
			return cmp.Compare(x.dist, y.dist)
		}
		return cmp.Compare(y.dist, x.dist)
	})
	for i, k := range q.keyed {
		atoms[i] = k.atom
	}
	clear(q.keyed)
}
