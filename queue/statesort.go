package queue

import (
	"weak"

	"github.com/gogpu/scenestate"
	"github.com/gogpu/scenestate/state"
)

// stateData is the per-atom record of a [StateSorting] queue. It lives in
// the atom's queue data and survives across frames.
type stateData struct {
	sortIndex      int
	lastSortKey    uint64
	lastAppearance weak.Pointer[state.Appearance]
	version        uint64
}

type rankEntry struct {
	rank int
	key  uint64
}

// StateSortingStats reports the work done by a [StateSorting] queue.
type StateSortingStats struct {
	// Recaches counts rank recomputations.
	Recaches uint64
	// Comparisons counts appearance comparator calls.
	Comparisons uint64
	// Version is the current rank version.
	Version uint64
}

// StateSorting groups atoms that share an appearance and orders distinct
// appearances by a priority of state categories.
//
// Ordering is two-phase. The distinct appearances of a frame are sorted
// with the priority comparator and given dense ranks; atoms are then
// sorted by rank alone. Ranks are cached on the atoms and only recomputed
// when an atom shows an appearance the queue has not ranked, or a ranked
// appearance changed. An atom without an appearance has rank 0 and sorts
// first.
type StateSorting struct {
	Basic

	priority []state.DynamicType
	cmp      func(a, b *state.Appearance) int

	version uint64
	ranks   map[uint64]rankEntry
	recache bool

	keys []int
	seen map[*state.Appearance]struct{}
	apps []*state.Appearance

	stats StateSortingStats
}

// StateOption configures a [StateSorting] queue.
type StateOption func(*StateSorting)

// WithPriority sets the category priority, most significant first.
func WithPriority(p ...state.DynamicType) StateOption {
	return func(q *StateSorting) { q.setPriority(p) }
}

// NewStateSorting returns a state sorting queue using
// [state.DefaultPriority] unless overridden.
func NewStateSorting(opts ...StateOption) *StateSorting {
	q := &StateSorting{
		ranks:   make(map[uint64]rankEntry),
		seen:    make(map[*state.Appearance]struct{}),
		recache: true,
	}
	q.init(q.optimizeOrder)
	q.setPriority(state.DefaultPriority)
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Priority returns the category priority.
func (q *StateSorting) Priority() []state.DynamicType {
	return append([]state.DynamicType(nil), q.priority...)
}

// SetPriority changes the category priority. Ranks are recomputed on the
// next flush.
func (q *StateSorting) SetPriority(p ...state.DynamicType) {
	q.setPriority(p)
}

func (q *StateSorting) setPriority(p []state.DynamicType) {
	q.priority = append(q.priority[:0:0], p...)
	comparator := state.Comparator(q.priority)
	q.cmp = func(a, b *state.Appearance) int {
		q.stats.Comparisons++
		return comparator(a, b)
	}
	q.recache = true
}

// Stats returns counters of the sorting work done so far.
func (q *StateSorting) Stats() StateSortingStats {
	s := q.stats
	s.Version = q.version
	return s
}

// Reset forgets every cached rank. Atom records become stale.
func (q *StateSorting) Reset() {
	clear(q.ranks)
	q.recache = true
}

// Add implements [RenderQueue].
func (q *StateSorting) Add(a *RenderAtom) {
	if a == nil {
		return
	}
	q.Basic.Add(a)

	app := a.Appearance
	key := app.SortKey()
	data, _ := a.QueueData(q.id).(*stateData)

	if data != nil && !q.recache {
		old := data.lastAppearance.Value()
		switch {
		case app != old || data.version != q.version:
			q.updateAtom(data, app, key)
		case key != data.lastSortKey:
			data.lastSortKey = key
			q.recache = true
		}
		return
	}
	if data == nil {
		data = &stateData{}
		a.SetQueueData(q.id, data)
	}
	q.updateAtom(data, app, key)
}

// updateAtom points data at app and looks up its rank.
func (q *StateSorting) updateAtom(data *stateData, app *state.Appearance, key uint64) {
	if app != nil {
		data.lastAppearance = weak.Make(app)
	} else {
		data.lastAppearance = weak.Pointer[state.Appearance]{}
	}
	data.lastSortKey = key
	if q.recache {
		return
	}
	if app == nil {
		data.sortIndex = 0
		data.version = q.version
		return
	}
	e, ok := q.ranks[app.ID()]
	if !ok || e.key != key {
		q.recache = true
		return
	}
	data.sortIndex = e.rank
	data.version = q.version
}

func (q *StateSorting) optimizeOrder(_ *View, atoms []*RenderAtom) {
	if q.recache {
		q.cacheSortIndex(atoms)
		q.recache = false
	}
	if len(atoms) < 2 {
		return
	}
	q.keys = q.keys[:0]
	for _, a := range atoms {
		q.keys = append(q.keys, q.dataOf(a).sortIndex)
	}
	quickSort(q.keys, atoms, 0, len(atoms))
}

func (q *StateSorting) dataOf(a *RenderAtom) *stateData {
	data, _ := a.QueueData(q.id).(*stateData)
	if data == nil {
		data = &stateData{}
		a.SetQueueData(q.id, data)
	}
	return data
}

// cacheSortIndex ranks the distinct appearances of atoms and stamps every
// atom with its rank.
func (q *StateSorting) cacheSortIndex(atoms []*RenderAtom) {
	q.version++
	q.stats.Recaches++

	q.apps = q.apps[:0]
	for _, a := range atoms {
		if app := a.Appearance; app != nil {
			if _, ok := q.seen[app]; !ok {
				q.seen[app] = struct{}{}
				q.apps = append(q.apps, app)
			}
		}
	}
	sortAppearances(q.apps, q.cmp)

	clear(q.ranks)
	for i, app := range q.apps {
		q.ranks[app.ID()] = rankEntry{rank: i + 1, key: app.SortKey()}
	}
	for _, a := range atoms {
		data := q.dataOf(a)
		data.version = q.version
		if a.Appearance == nil {
			data.sortIndex = 0
			continue
		}
		data.sortIndex = q.ranks[a.Appearance.ID()].rank
	}

	clear(q.seen)
	clear(q.apps)
	scenestate.Logger().Debug("queue: ranked appearances",
		"queue", q.id, "appearances", len(q.ranks), "atoms", len(atoms), "version", q.version)
}
