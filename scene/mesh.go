package scene

import (
	"encoding/binary"
	"errors"
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/scenestate/backend"
	"github.com/gogpu/scenestate/queue"
	"github.com/gogpu/scenestate/resource"
)

// ErrEmptyMesh is returned when a mesh has no vertices.
var ErrEmptyMesh = errors.New("scene: mesh has no vertices")

// Vertex is one mesh vertex in [backend.VertexLayout].
type Vertex struct {
	Position mgl32.Vec3
	Normal   mgl32.Vec3
	UV       mgl32.Vec2
}

// Mesh is indexed or non-indexed triangle geometry over buffer resources.
// It implements backend.Geometry.
type Mesh struct {
	vertices    *resource.Buffer
	indices     *resource.Buffer
	vertexCount int
	indexCount  int
	indexFormat gputypes.IndexFormat
	topology    gputypes.PrimitiveTopology
	bounds      queue.Bounds
}

// NewMesh creates a triangle list mesh. Indices may be nil. 16-bit
// indices are used when every index fits.
func NewMesh(vertices []Vertex, indices []uint32) (*Mesh, error) {
	if len(vertices) == 0 {
		return nil, ErrEmptyMesh
	}
	m := &Mesh{topology: gputypes.PrimitiveTopologyTriangleList}
	m.vertices = resource.NewBuffer(packVertices(vertices), gputypes.BufferUsageVertex|gputypes.BufferUsageCopyDst)
	m.vertexCount = len(vertices)
	m.bounds = computeBounds(vertices)
	if len(indices) > 0 {
		data, format := packIndices(indices)
		m.indices = resource.NewBuffer(data, gputypes.BufferUsageIndex|gputypes.BufferUsageCopyDst)
		m.indexCount = len(indices)
		m.indexFormat = format
	}
	return m, nil
}

// SetVertices replaces the vertex data. The buffer is re-uploaded before
// the next draw.
func (m *Mesh) SetVertices(vertices []Vertex) error {
	if len(vertices) == 0 {
		return ErrEmptyMesh
	}
	m.vertices.SetData(packVertices(vertices))
	m.vertexCount = len(vertices)
	m.bounds = computeBounds(vertices)
	return nil
}

// SetTopology changes how vertices are assembled. It must match the
// PolygonStyle the mesh is drawn with.
func (m *Mesh) SetTopology(t gputypes.PrimitiveTopology) { m.topology = t }

// Topology returns the primitive topology.
func (m *Mesh) Topology() gputypes.PrimitiveTopology { return m.topology }

// Bounds returns the bounding sphere in model space.
func (m *Mesh) Bounds() queue.Bounds { return m.bounds }

// PolygonCount implements backend.Geometry.
func (m *Mesh) PolygonCount() int {
	n := m.vertexCount
	if m.indices != nil {
		n = m.indexCount
	}
	switch m.topology {
	case gputypes.PrimitiveTopologyPointList:
		return n
	case gputypes.PrimitiveTopologyLineList:
		return n / 2
	case gputypes.PrimitiveTopologyLineStrip:
		return max(n-1, 0)
	case gputypes.PrimitiveTopologyTriangleStrip:
		return max(n-2, 0)
	default:
		return n / 3
	}
}

func (m *Mesh) Vertices() *resource.Buffer        { return m.vertices }
func (m *Mesh) VertexCount() int                  { return m.vertexCount }
func (m *Mesh) Indices() *resource.Buffer         { return m.indices }
func (m *Mesh) IndexCount() int                   { return m.indexCount }
func (m *Mesh) IndexFormat() gputypes.IndexFormat { return m.indexFormat }

var _ backend.Geometry = (*Mesh)(nil)

func packVertices(vs []Vertex) []byte {
	buf := make([]byte, len(vs)*backend.VertexStride)
	for i, v := range vs {
		b := buf[i*backend.VertexStride:]
		putFloats(b[0:], v.Position[:])
		putFloats(b[12:], v.Normal[:])
		putFloats(b[24:], v.UV[:])
	}
	return buf
}

func putFloats(b []byte, fs []float32) {
	for i, f := range fs {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(f))
	}
}

// packIndices encodes indices, padding 16-bit data to a multiple of four
// bytes as buffer writes require.
func packIndices(indices []uint32) ([]byte, gputypes.IndexFormat) {
	wide := false
	for _, i := range indices {
		if i > math.MaxUint16 {
			wide = true
			break
		}
	}
	if wide {
		buf := make([]byte, len(indices)*4)
		for i, v := range indices {
			binary.LittleEndian.PutUint32(buf[i*4:], v)
		}
		return buf, gputypes.IndexFormatUint32
	}
	buf := make([]byte, (len(indices)*2+3)&^3)
	for i, v := range indices {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(v))
	}
	return buf, gputypes.IndexFormatUint16
}

// computeBounds returns the sphere around the axis-aligned box of vs.
func computeBounds(vs []Vertex) queue.Bounds {
	lo, hi := vs[0].Position, vs[0].Position
	for _, v := range vs[1:] {
		for k := range 3 {
			lo[k] = min(lo[k], v.Position[k])
			hi[k] = max(hi[k], v.Position[k])
		}
	}
	center := lo.Add(hi).Mul(0.5)
	var r float32
	for _, v := range vs {
		r = max(r, v.Position.Sub(center).Len())
	}
	return queue.Bounds{Center: center, Radius: r}
}

// NewBox returns an axis-aligned box centered at the origin with the
// given half extents, with outward normals and per-face UVs.
func NewBox(half mgl32.Vec3) (*Mesh, error) {
	faces := [6]struct {
		normal, u, v mgl32.Vec3
	}{
		{mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 0, -1}, mgl32.Vec3{0, 1, 0}},
		{mgl32.Vec3{-1, 0, 0}, mgl32.Vec3{0, 0, 1}, mgl32.Vec3{0, 1, 0}},
		{mgl32.Vec3{0, 1, 0}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 0, -1}},
		{mgl32.Vec3{0, -1, 0}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 0, 1}},
		{mgl32.Vec3{0, 0, 1}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 1, 0}},
		{mgl32.Vec3{0, 0, -1}, mgl32.Vec3{-1, 0, 0}, mgl32.Vec3{0, 1, 0}},
	}
	scale := func(p mgl32.Vec3) mgl32.Vec3 {
		return mgl32.Vec3{p[0] * half[0], p[1] * half[1], p[2] * half[2]}
	}
	vs := make([]Vertex, 0, 24)
	is := make([]uint32, 0, 36)
	for _, f := range faces {
		base := uint32(len(vs))
		for _, c := range [4][2]float32{{-1, -1}, {1, -1}, {1, 1}, {-1, 1}} {
			p := f.normal.Add(f.u.Mul(c[0])).Add(f.v.Mul(c[1]))
			vs = append(vs, Vertex{
				Position: scale(p),
				Normal:   f.normal,
				UV:       mgl32.Vec2{(c[0] + 1) / 2, (1 - c[1]) / 2},
			})
		}
		is = append(is, base, base+1, base+2, base, base+2, base+3)
	}
	return NewMesh(vs, is)
}

// NewQuad returns a width by height quad in the XY plane facing +Z.
func NewQuad(width, height float32) (*Mesh, error) {
	w, h := width/2, height/2
	n := mgl32.Vec3{0, 0, 1}
	vs := []Vertex{
		{Position: mgl32.Vec3{-w, -h, 0}, Normal: n, UV: mgl32.Vec2{0, 1}},
		{Position: mgl32.Vec3{w, -h, 0}, Normal: n, UV: mgl32.Vec2{1, 1}},
		{Position: mgl32.Vec3{w, h, 0}, Normal: n, UV: mgl32.Vec2{1, 0}},
		{Position: mgl32.Vec3{-w, h, 0}, Normal: n, UV: mgl32.Vec2{0, 0}},
	}
	return NewMesh(vs, []uint32{0, 1, 2, 0, 2, 3})
}
