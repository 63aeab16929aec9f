package resource

import (
	"errors"
	"log/slog"
	"slices"
	"sync"

	"github.com/gogpu/scenestate"
)

// Manager errors.
var (
	// ErrReentrantManage is returned when Manage is called from inside an
	// action that Manage is executing.
	ErrReentrantManage = errors.New("resource: Manage called while managing")

	// ErrManagerDestroyed is returned by Manage after Destroy.
	ErrManagerDestroyed = errors.New("resource: manager destroyed")
)

// Renderer is the backend capability that owns resource memory.
type Renderer interface {
	// Update uploads r to the backend. forceFull requests a complete
	// re-upload instead of an incremental one. A non-nil error describes
	// an ERROR or UNSUPPORTED status.
	Update(r Resource, forceFull bool) (Status, error)

	// CleanUp releases the backend memory of r.
	CleanUp(r Resource)

	// Release frees backend memory for a resource that was collected.
	Release(id ID)
}

// Manager queues update and cleanup requests and executes them once per
// frame.
type Manager interface {
	// Update requests a backend update of r.
	Update(r Resource, forceFull bool)

	// CleanUp requests the release of the backend memory of r.
	CleanUp(r Resource)

	// Manage executes every pending request through rd.
	Manage(rd Renderer) error
}

type actionKind uint8

const (
	actionUpdate actionKind = iota
	actionCleanUp
)

type action struct {
	kind      actionKind
	res       Resource
	forceFull bool
}

// DefaultManager is the standard [Manager].
//
// Requests are keyed by resource identity: a new request for a resource
// with a pending request replaces the earlier one. Manage runs requests in
// submission order. Requests issued while Manage is running, including
// from inside an action, are kept for the next Manage call.
//
// Update and CleanUp are safe from any goroutine. Manage, Prepare and
// Destroy must be called from the goroutine that owns the renderer.
type DefaultManager struct {
	mu        sync.Mutex
	actions   []action
	pending   map[ID]struct{}
	realized  map[ID]struct{}
	orphans   []ID
	managing  bool
	destroyed bool

	executed uint64
}

// NewDefaultManager creates an empty manager.
func NewDefaultManager() *DefaultManager {
	m := &DefaultManager{
		pending:  make(map[ID]struct{}),
		realized: make(map[ID]struct{}),
	}
	register(m)
	return m
}

// Update implements [Manager].
func (m *DefaultManager) Update(r Resource, forceFull bool) {
	m.add(action{kind: actionUpdate, res: r, forceFull: forceFull})
}

// CleanUp implements [Manager].
func (m *DefaultManager) CleanUp(r Resource) {
	m.add(action{kind: actionCleanUp, res: r})
}

func (m *DefaultManager) add(a action) {
	if a.res == nil {
		return
	}
	id := a.res.ID()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.destroyed {
		return
	}
	if _, ok := m.pending[id]; ok {
		m.override(id)
	}
	m.actions = append(m.actions, a)
	m.pending[id] = struct{}{}
}

// override removes the last pending action for id. Caller holds m.mu.
func (m *DefaultManager) override(id ID) {
	for i := len(m.actions) - 1; i >= 0; i-- {
		if m.actions[i].res.ID() == id {
			m.actions = slices.Delete(m.actions, i, i+1)
			return
		}
	}
}

// Pending returns the number of queued requests.
func (m *DefaultManager) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.actions)
}

// Executed returns the number of requests run by Manage so far.
func (m *DefaultManager) Executed() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.executed
}

// Manage implements [Manager]. It first releases collected resources,
// then runs the pending requests in submission order.
func (m *DefaultManager) Manage(rd Renderer) error {
	m.mu.Lock()
	if m.destroyed {
		m.mu.Unlock()
		return ErrManagerDestroyed
	}
	if m.managing {
		m.mu.Unlock()
		return ErrReentrantManage
	}
	m.managing = true
	batch := m.actions
	m.actions = nil
	clear(m.pending)
	orphans := m.orphans
	m.orphans = nil
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.managing = false
		m.mu.Unlock()
	}()

	for _, id := range orphans {
		rd.Release(id)
	}
	for _, a := range batch {
		m.run(rd, a)
	}

	m.mu.Lock()
	m.executed += uint64(len(batch))
	m.mu.Unlock()

	if len(batch) > 0 || len(orphans) > 0 {
		scenestate.Logger().Debug("resource: managed",
			slog.Int("actions", len(batch)),
			slog.Int("released", len(orphans)))
	}
	return nil
}

func (m *DefaultManager) run(rd Renderer, a action) {
	b := a.res.base()
	id := b.ID()

	if a.kind == actionCleanUp {
		m.mu.Lock()
		_, known := m.realized[id]
		delete(m.realized, id)
		m.mu.Unlock()
		if known {
			rd.CleanUp(a.res)
		}
		b.setStatus(StatusDisposed, "")
		return
	}
	m.update(rd, a.res, a.forceFull)
}

func (m *DefaultManager) update(rd Renderer, r Resource, forceFull bool) Status {
	b := r.base()
	if b.unsupported.Load() {
		return StatusUnsupported
	}

	status, err := rd.Update(r, forceFull)
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	b.setStatus(status, msg)

	switch status {
	case StatusReady:
		b.dirty.Store(false)
		m.mu.Lock()
		m.realized[b.ID()] = struct{}{}
		m.mu.Unlock()
	case StatusError, StatusUnsupported:
		scenestate.Logger().Warn("resource: update failed",
			slog.Uint64("id", uint64(b.ID())),
			slog.String("status", status.String()),
			slog.String("reason", msg))
	}
	return b.Status()
}

// Prepare makes r usable right before it is drawn. OnDemand resources
// with pending edits, or never realized, are updated immediately and any
// queued update for them is dropped. Manual resources are left as they
// are. Prepare returns the resulting status.
func (m *DefaultManager) Prepare(rd Renderer, r Resource) Status {
	if r == nil {
		return StatusDisposed
	}
	b := r.base()

	m.mu.Lock()
	if m.destroyed {
		m.mu.Unlock()
		return StatusDisposed
	}
	_, known := m.realized[b.ID()]
	m.mu.Unlock()

	if b.UpdatePolicy() == Manual {
		return b.Status()
	}
	if known && !b.IsDirty() {
		return b.Status()
	}

	m.dropPendingUpdate(b.ID())
	return m.update(rd, r, !known)
}

func (m *DefaultManager) dropPendingUpdate(id ID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.pending[id]; !ok {
		return
	}
	for i := len(m.actions) - 1; i >= 0; i-- {
		a := m.actions[i]
		if a.res.ID() != id {
			continue
		}
		if a.kind == actionUpdate {
			m.actions = slices.Delete(m.actions, i, i+1)
			delete(m.pending, id)
		}
		return
	}
}

// Status reports the status of r as seen by this manager. After Destroy
// every resource reports [StatusDisposed].
func (m *DefaultManager) Status(r Resource) Status {
	if r == nil {
		return StatusDisposed
	}
	m.mu.Lock()
	destroyed := m.destroyed
	m.mu.Unlock()
	if destroyed {
		return StatusDisposed
	}
	return r.Status()
}

// Destroy releases the backend memory of every realized resource and
// drops pending requests. The manager ignores requests afterwards.
func (m *DefaultManager) Destroy(rd Renderer) {
	m.mu.Lock()
	if m.destroyed {
		m.mu.Unlock()
		return
	}
	m.destroyed = true
	ids := make([]ID, 0, len(m.realized))
	for id := range m.realized {
		ids = append(ids, id)
	}
	clear(m.realized)
	m.actions = nil
	clear(m.pending)
	m.orphans = nil
	m.mu.Unlock()

	unregister(m)
	slices.Sort(ids)
	for _, id := range ids {
		rd.Release(id)
	}
	scenestate.Logger().Info("resource: manager destroyed", slog.Int("released", len(ids)))
}

// orphan schedules the release of a collected resource this manager
// realized.
func (m *DefaultManager) orphan(id ID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.realized[id]; !ok {
		return
	}
	delete(m.realized, id)
	m.orphans = append(m.orphans, id)
}
