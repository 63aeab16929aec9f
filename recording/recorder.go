package recording

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"

	"github.com/gogpu/scenestate"
	"github.com/gogpu/scenestate/backend"
	"github.com/gogpu/scenestate/queue"
	"github.com/gogpu/scenestate/resource"
	"github.com/gogpu/scenestate/state"
)

func init() {
	backend.Register(backend.BackendRecording, func() backend.Backend {
		return NewRecorder()
	})
}

// unitKey addresses one unit of one dynamic type.
type unitKey struct {
	typ  state.DynamicType
	unit state.Unit
}

// atomRecord is the record the recorder's peers hand to the state
// package.
type atomRecord struct {
	ref     AtomRef
	payload state.Payload
	// updates counts refreshes of the record.
	updates int
}

// Recorder is a backend that performs no GPU work. It captures every peer,
// resource and frame call as a command and tracks what is bound where.
// Use FinishRecording to obtain an immutable Recording that can be
// inspected or replayed to another backend.
//
// Failures can be injected per atom and per resource to exercise error
// paths of callers.
//
// The Recorder is not safe for concurrent use.
type Recorder struct {
	session   uuid.UUID
	commands  []Command
	resources *ResourcePool
	peers     map[state.DynamicType]*peer

	bound    map[unitKey]*state.Atom
	realized map[resource.ID]bool

	invalid      map[*state.Atom]error
	failing      map[*state.Atom]error
	resourceFail map[resource.ID]resource.Status

	inFrame     bool
	frames      int
	initialized bool
}

// NewRecorder creates a recorder with a fresh session id.
func NewRecorder() *Recorder {
	return &Recorder{
		session:      uuid.New(),
		commands:     make([]Command, 0, 256),
		resources:    NewResourcePool(),
		peers:        make(map[state.DynamicType]*peer),
		bound:        make(map[unitKey]*state.Atom),
		realized:     make(map[resource.ID]bool),
		invalid:      make(map[*state.Atom]error),
		failing:      make(map[*state.Atom]error),
		resourceFail: make(map[resource.ID]resource.Status),
	}
}

// Session returns the id of the recording session.
func (r *Recorder) Session() uuid.UUID {
	return r.session
}

// FinishRecording returns the commands recorded so far. The recorder
// keeps recording into a new command list.
func (r *Recorder) FinishRecording() *Recording {
	rec := &Recording{
		session:   r.session,
		commands:  r.commands,
		resources: r.resources.Clone(),
	}
	r.commands = make([]Command, 0, cap(r.commands))
	return rec
}

// Reset discards recorded commands. Bindings and realized resources are
// kept.
func (r *Recorder) Reset() {
	clear(r.commands)
	r.commands = r.commands[:0]
}

// Len returns the number of commands recorded since the last
// FinishRecording or Reset.
func (r *Recorder) Len() int {
	return len(r.commands)
}

// Commands returns the commands recorded so far.
// The slice must not be modified.
func (r *Recorder) Commands() []Command {
	return r.commands
}

// FailValidation makes validation of a fail with err. A nil err clears
// the failure.
func (r *Recorder) FailValidation(a *state.Atom, err error) {
	setFailure(r.invalid, a, err)
}

// FailRealization makes Initialize and Update of a fail with err. A nil
// err clears the failure.
func (r *Recorder) FailRealization(a *state.Atom, err error) {
	setFailure(r.failing, a, err)
}

// FailResource makes updates of res report status. StatusReady clears
// the failure.
func (r *Recorder) FailResource(res resource.Resource, status resource.Status) {
	if status == resource.StatusReady {
		delete(r.resourceFail, res.ID())
		return
	}
	r.resourceFail[res.ID()] = status
}

func setFailure(m map[*state.Atom]error, a *state.Atom, err error) {
	if err == nil {
		delete(m, a)
		return
	}
	m[a] = err
}

// Bound returns the atom bound to unit u of type t, or nil.
func (r *Recorder) Bound(t state.DynamicType, u state.Unit) *state.Atom {
	return r.bound[unitKey{t, u}]
}

// BoundUnits returns the units of type t that hold an atom, in ordinal
// order.
func (r *Recorder) BoundUnits(t state.DynamicType) []state.Unit {
	var units []state.Unit
	for k := range r.bound {
		if k.typ == t {
			units = append(units, k.unit)
		}
	}
	slices.SortFunc(units, func(a, b state.Unit) int { return a.Ordinal() - b.Ordinal() })
	return units
}

// IsRealized reports whether res was last updated successfully and has
// not been cleaned up since.
func (r *Recorder) IsRealized(res resource.Resource) bool {
	return r.realized[res.ID()]
}

// Frames returns the number of completed frames.
func (r *Recorder) Frames() int {
	return r.frames
}

func (r *Recorder) record(c Command) {
	r.commands = append(r.commands, c)
}

// --------------------------------------------------------------------------
// backend.Backend
// --------------------------------------------------------------------------

// Name implements backend.Backend.
func (r *Recorder) Name() string { return backend.BackendRecording }

// Init implements backend.Backend.
func (r *Recorder) Init() error {
	if !r.initialized {
		r.initialized = true
		scenestate.Logger().Debug("recording: session started", slog.String("session", r.session.String()))
	}
	return nil
}

// Close implements backend.Backend. Bindings and realized resources are
// forgotten; recorded commands are kept.
func (r *Recorder) Close() {
	clear(r.bound)
	clear(r.realized)
	r.inFrame = false
	r.initialized = false
}

// Peer implements state.PeerProvider. Every dynamic type, including
// registered custom types, has a peer.
func (r *Recorder) Peer(t state.DynamicType) state.Peer {
	p, ok := r.peers[t]
	if !ok {
		p = &peer{r: r, typ: t}
		r.peers[t] = p
	}
	return p
}

// Resources implements backend.Backend.
func (r *Recorder) Resources() resource.Renderer {
	return (*resourceRenderer)(r)
}

// BeginFrame implements backend.Backend.
func (r *Recorder) BeginFrame(view queue.View) error {
	if !r.initialized {
		return backend.ErrNotInitialized
	}
	if r.inFrame {
		return fmt.Errorf("recording: frame already in progress")
	}
	r.inFrame = true
	r.record(BeginFrameCommand{View: view})
	return nil
}

// Draw implements backend.Backend. The vertex and index buffers must have
// been updated through Resources.
func (r *Recorder) Draw(g backend.Geometry, transform mgl32.Mat4) (int, error) {
	if !r.initialized {
		return 0, backend.ErrNotInitialized
	}
	if !r.inFrame {
		return 0, backend.ErrNoFrame
	}
	if vb := g.Vertices(); vb == nil || !r.realized[vb.ID()] {
		return 0, fmt.Errorf("%w: vertex buffer", backend.ErrResourceNotReady)
	}
	if ib := g.Indices(); ib != nil && !r.realized[ib.ID()] {
		return 0, fmt.Errorf("%w: index buffer", backend.ErrResourceNotReady)
	}
	n := g.PolygonCount()
	r.record(DrawCommand{
		Geometry:  r.resources.AddGeometry(g),
		Transform: transform,
		Polygons:  n,
	})
	return n, nil
}

// EndFrame implements backend.Backend.
func (r *Recorder) EndFrame() error {
	if !r.initialized {
		return backend.ErrNotInitialized
	}
	if !r.inFrame {
		return backend.ErrNoFrame
	}
	r.inFrame = false
	r.frames++
	r.record(EndFrameCommand{})
	return nil
}

// --------------------------------------------------------------------------
// resource.Renderer
// --------------------------------------------------------------------------

// resourceRenderer is the resource.Renderer view of a Recorder.
type resourceRenderer Recorder

func (rr *resourceRenderer) Update(res resource.Resource, forceFull bool) (resource.Status, error) {
	r := (*Recorder)(rr)
	status := resource.StatusReady
	var err error
	if s, ok := r.resourceFail[res.ID()]; ok {
		status = s
		err = fmt.Errorf("recording: injected %s for resource %d", s, res.ID())
	}
	r.realized[res.ID()] = status == resource.StatusReady
	r.record(UpdateResourceCommand{
		Resource:  r.resources.AddResource(res),
		ForceFull: forceFull,
		Status:    status,
	})
	return status, err
}

func (rr *resourceRenderer) CleanUp(res resource.Resource) {
	r := (*Recorder)(rr)
	delete(r.realized, res.ID())
	r.record(CleanUpResourceCommand{Resource: r.resources.AddResource(res)})
}

func (rr *resourceRenderer) Release(id resource.ID) {
	r := (*Recorder)(rr)
	delete(r.realized, id)
	r.record(ReleaseResourceCommand{ID: id})
}

// --------------------------------------------------------------------------
// state.Peer
// --------------------------------------------------------------------------

// peer records the calls for one dynamic type.
type peer struct {
	r    *Recorder
	typ  state.DynamicType
	unit state.Unit
}

func (p *peer) Validate(a *state.Atom) error {
	err := p.r.invalid[a]
	p.r.record(ValidateCommand{Atom: p.r.resources.AddAtom(a), Err: err})
	return err
}

func (p *peer) Initialize(a *state.Atom) (any, error) {
	ref := p.r.resources.AddAtom(a)
	payload := a.Payload()
	err := p.r.failing[a]
	p.r.record(InitializeCommand{Atom: ref, Payload: payload, Err: err})
	if err != nil {
		return nil, err
	}
	return &atomRecord{ref: ref, payload: payload}, nil
}

func (p *peer) Update(a *state.Atom, record any) (any, error) {
	ref := p.r.resources.AddAtom(a)
	payload := a.Payload()
	err := p.r.failing[a]
	p.r.record(UpdateCommand{Atom: ref, Payload: payload, Err: err})
	if err != nil {
		return nil, err
	}
	rec, ok := record.(*atomRecord)
	if !ok {
		return nil, fmt.Errorf("recording: foreign record %T", record)
	}
	return &atomRecord{ref: ref, payload: payload, updates: rec.updates + 1}, nil
}

func (p *peer) Cleanup(a *state.Atom, _ any) {
	p.r.record(CleanupCommand{Atom: p.r.resources.AddAtom(a)})
}

func (p *peer) SetUnit(u state.Unit) { p.unit = u }

func (p *peer) Apply(prev *state.Atom, _ any, next *state.Atom, nextRecord any) {
	cmd := ApplyCommand{
		DynamicType: p.typ,
		Unit:        p.unit,
		Prev:        p.r.resources.AddAtom(prev),
		Next:        p.r.resources.AddAtom(next),
	}
	if rec, ok := nextRecord.(*atomRecord); ok {
		cmd.Payload = rec.payload
	}
	p.r.record(cmd)
	p.r.bound[unitKey{p.typ, p.unit}] = next
}

func (p *peer) Restore(a *state.Atom, _ any) {
	p.r.record(RestoreCommand{DynamicType: p.typ, Unit: p.unit, Atom: p.r.resources.AddAtom(a)})
	delete(p.r.bound, unitKey{p.typ, p.unit})
}
