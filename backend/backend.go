package backend

import (
	"errors"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/scenestate/queue"
	"github.com/gogpu/scenestate/resource"
	"github.com/gogpu/scenestate/state"
)

// Common backend errors.
var (
	// ErrBackendNotAvailable is returned when a requested backend is not available.
	ErrBackendNotAvailable = errors.New("backend: not available")

	// ErrNotInitialized is returned when operations are called before Init.
	ErrNotInitialized = errors.New("backend: not initialized")

	// ErrNoFrame is returned by Draw and EndFrame outside BeginFrame/EndFrame.
	ErrNoFrame = errors.New("backend: no frame in progress")

	// ErrResourceNotReady is returned by Draw when a geometry buffer has
	// not been realized.
	ErrResourceNotReady = errors.New("backend: resource not ready")
)

// Backend is a rendering backend: the peers that turn atoms into GPU
// state, the renderer that owns resource memory, and the draw calls.
//
// Every method except Name runs on the goroutine that made the render
// context current.
type Backend interface {
	state.PeerProvider

	// Name returns the backend identifier.
	Name() string

	// Init acquires the device. It must be called before anything else.
	Init() error

	// Close releases the device and every object created on it.
	Close()

	// Resources returns the capability that realizes resources.
	Resources() resource.Renderer

	// BeginFrame starts a frame seen from view.
	BeginFrame(view queue.View) error

	// Draw draws g with the currently applied state and returns the
	// number of polygons drawn.
	Draw(g Geometry, transform mgl32.Mat4) (int, error)

	// EndFrame submits the frame.
	EndFrame() error
}

// Geometry is vertex data a backend can draw. Vertices use [VertexLayout].
type Geometry interface {
	// PolygonCount returns the number of primitives drawn.
	PolygonCount() int

	// Vertices returns the vertex buffer.
	Vertices() *resource.Buffer

	// VertexCount returns the number of vertices.
	VertexCount() int

	// Indices returns the index buffer, or nil for non-indexed geometry.
	Indices() *resource.Buffer

	// IndexCount returns the number of indices.
	IndexCount() int

	// IndexFormat returns the index element format.
	IndexFormat() gputypes.IndexFormat
}

// VertexStride is the size of one vertex: position, normal, texcoord.
const VertexStride = 32

// VertexLayout is the vertex buffer layout every geometry uses.
var VertexLayout = gputypes.VertexBufferLayout{
	ArrayStride: VertexStride,
	StepMode:    gputypes.VertexStepModeVertex,
	Attributes: []gputypes.VertexAttribute{
		{Format: gputypes.VertexFormatFloat32x3, Offset: 0, ShaderLocation: 0},
		{Format: gputypes.VertexFormatFloat32x3, Offset: 12, ShaderLocation: 1},
		{Format: gputypes.VertexFormatFloat32x2, Offset: 24, ShaderLocation: 2},
	},
}
