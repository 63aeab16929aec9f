package queue

import (
	"sync"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/scenestate/state"
)

// Geometry is drawable vertex data.
type Geometry interface {
	// PolygonCount returns the number of primitives a draw emits.
	PolygonCount() int
}

// Bounds is a bounding sphere in model space.
type Bounds struct {
	Center mgl32.Vec3
	Radius float32
}

// View is the camera a queue is flushed for.
type View struct {
	// Position is the eye position in world space.
	Position mgl32.Vec3
	// Matrix transforms world space into view space.
	Matrix mgl32.Mat4
	// Projection transforms view space into clip space.
	Projection mgl32.Mat4
}

// RenderAtom is one draw: geometry, the appearance it is drawn with and
// its placement. Atoms are meant to be reused across frames so that
// queues can keep per-atom data between flushes.
type RenderAtom struct {
	Geometry   Geometry
	Appearance *state.Appearance
	Transform  mgl32.Mat4
	Bounds     Bounds

	// Data is free for the owner of the atom.
	Data any

	mu        sync.Mutex
	queueData map[uint64]any
}

// NewRenderAtom returns an atom with an identity transform.
func NewRenderAtom(g Geometry, app *state.Appearance) *RenderAtom {
	return &RenderAtom{Geometry: g, Appearance: app, Transform: mgl32.Ident4()}
}

// QueueData returns the data queue q stored on the atom, or nil.
func (a *RenderAtom) QueueData(q uint64) any {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.queueData[q]
}

// SetQueueData stores data for queue q. A nil value removes the entry.
func (a *RenderAtom) SetQueueData(q uint64, data any) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if data == nil {
		delete(a.queueData, q)
		return
	}
	if a.queueData == nil {
		a.queueData = make(map[uint64]any, 1)
	}
	a.queueData[q] = data
}

// ClearQueueData drops the data of every queue.
func (a *RenderAtom) ClearQueueData() {
	a.mu.Lock()
	clear(a.queueData)
	a.mu.Unlock()
}

// WorldCenter returns the bounds center transformed into world space.
func (a *RenderAtom) WorldCenter() mgl32.Vec3 {
	return a.Transform.Mul4x1(a.Bounds.Center.Vec4(1)).Vec3()
}

// PolygonCount returns the polygon count of the geometry, or 0.
func (a *RenderAtom) PolygonCount() int {
	if a.Geometry == nil {
		return 0
	}
	return a.Geometry.PolygonCount()
}

// InfluenceAtom affects the rendering of nearby atoms, like a light or
// fog volume.
type InfluenceAtom interface {
	// Influences scores how strongly the influence affects a. Scores of 0
	// or less mean no influence.
	Influences(a *RenderAtom) float32
}

// Renderer draws atoms on behalf of a queue.
type Renderer interface {
	// ApplyInfluence is called before RenderAtom for every influence with
	// a positive score on a.
	ApplyInfluence(a *RenderAtom, inf InfluenceAtom, score float32)

	// RenderAtom binds the atom's state and draws it. It returns the
	// number of polygons drawn.
	RenderAtom(a *RenderAtom, view *View) (int, error)

	// EndAtom is called after every RenderAtom, even on failure.
	EndAtom(a *RenderAtom)
}
