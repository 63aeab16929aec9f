// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"errors"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/scenestate/backend"
	"github.com/gogpu/scenestate/queue"
	"github.com/gogpu/scenestate/recording"
	"github.com/gogpu/scenestate/resource"
	"github.com/gogpu/scenestate/state"
)

type triangle struct {
	vertices *resource.Buffer
}

func newTriangle() *triangle {
	return &triangle{vertices: resource.NewBuffer(make([]byte, 3*backend.VertexStride), gputypes.BufferUsageVertex)}
}

func (g *triangle) PolygonCount() int                 { return 1 }
func (g *triangle) Vertices() *resource.Buffer        { return g.vertices }
func (g *triangle) VertexCount() int                  { return 3 }
func (g *triangle) Indices() *resource.Buffer         { return nil }
func (g *triangle) IndexCount() int                   { return 0 }
func (g *triangle) IndexFormat() gputypes.IndexFormat { return gputypes.IndexFormatUint16 }

// flat is geometry the backend cannot draw.
type flat struct{}

func (flat) PolygonCount() int { return 1 }

type atomSource struct {
	atoms   []*queue.RenderAtom
	lights  []queue.InfluenceAtom
	updates int
}

func (s *atomSource) Update() { s.updates++ }

func (s *atomSource) Visit(q queue.RenderQueue, _ *queue.View) {
	for _, a := range s.atoms {
		q.Add(a)
	}
	for _, l := range s.lights {
		q.AddInfluence(l)
	}
}

func newTestDriver(t *testing.T, opts ...Option) (*Driver, *recording.Recorder) {
	t.Helper()
	rec := recording.NewRecorder()
	if err := rec.Init(); err != nil {
		t.Fatal(err)
	}
	ctx := state.NewContext(state.WithPeerProvider(rec), state.WithLabel(t.Name()))
	m := resource.NewDefaultManager()
	t.Cleanup(func() { m.Destroy(rec.Resources()) })
	return NewDriver(ctx, rec, queue.NewBasic(), m, opts...), rec
}

func materialAppearance(r, g, b float32) *state.Appearance {
	a := state.NewAtom(state.Material{Diffuse: mgl32.Vec4{r, g, b, 1}})
	return state.NewAppearance(state.NewAtomManager(a))
}

func TestDriverAppliesOnlyChanges(t *testing.T) {
	d, rec := newTestDriver(t)
	red := materialAppearance(1, 0, 0)
	blue := materialAppearance(0, 0, 1)
	src := &atomSource{atoms: []*queue.RenderAtom{
		queue.NewRenderAtom(newTriangle(), red),
		queue.NewRenderAtom(newTriangle(), red),
		queue.NewRenderAtom(newTriangle(), blue),
	}}

	stats, err := d.RenderFrame(src, queue.View{})
	if err != nil {
		t.Fatalf("RenderFrame: %v", err)
	}
	if stats.Atoms != 3 || stats.Polygons != 3 {
		t.Errorf("expected 3 atoms and polygons, got %d/%d", stats.Atoms, stats.Polygons)
	}
	if stats.Applies != 2 || stats.Realizations != 2 {
		t.Errorf("expected 2 applies and realizations, got %d/%d", stats.Applies, stats.Realizations)
	}

	stats, err = d.RenderFrame(src, queue.View{})
	if err != nil {
		t.Fatalf("second RenderFrame: %v", err)
	}
	if stats.Applies != 2 || stats.Realizations != 0 {
		t.Errorf("expected 2 applies and no realizations, got %d/%d", stats.Applies, stats.Realizations)
	}
	if stats.Frame != 2 || d.Frames() != 2 || rec.Frames() != 2 {
		t.Errorf("frame counters: stats %d, driver %d, backend %d", stats.Frame, d.Frames(), rec.Frames())
	}
	if src.updates != 2 {
		t.Errorf("expected source updated twice, got %d", src.updates)
	}

	r := rec.FinishRecording()
	if got := r.Count(recording.CmdDraw); got != 6 {
		t.Errorf("expected 6 draws, got %d", got)
	}
	// Each vertex buffer is uploaded once.
	if got := r.Count(recording.CmdUpdateResource); got != 3 {
		t.Errorf("expected 3 uploads, got %d", got)
	}
	if d.Context().IsCurrent() {
		t.Error("context should be released after the frame")
	}
}

func TestDriverPreparesAtomResources(t *testing.T) {
	d, rec := newTestDriver(t)
	shader := resource.NewShader("unlit", "@vertex fn vs_main() {}")
	app := state.NewAppearance(state.NewAtomManager(state.NewAtom(state.Shader{Program: shader})))
	src := &atomSource{atoms: []*queue.RenderAtom{queue.NewRenderAtom(newTriangle(), app)}}

	if _, err := d.RenderFrame(src, queue.View{}); err != nil {
		t.Fatalf("RenderFrame: %v", err)
	}
	if !rec.IsRealized(shader) {
		t.Error("shader resource should be realized before the shader atom")
	}
	if shader.Status() != resource.StatusReady {
		t.Errorf("expected READY, got %s", shader.Status())
	}
}

func TestDriverDrainsDeferredWork(t *testing.T) {
	d, rec := newTestDriver(t)
	app := materialAppearance(1, 1, 1)
	atom := app.Atoms()[0]
	src := &atomSource{atoms: []*queue.RenderAtom{queue.NewRenderAtom(newTriangle(), app)}}
	if _, err := d.RenderFrame(src, queue.View{}); err != nil {
		t.Fatal(err)
	}

	// The context is not current between frames, so the update is queued.
	if err := atom.SetPayload(state.Material{Diffuse: mgl32.Vec4{0, 1, 0, 1}}); err != nil {
		t.Fatal(err)
	}
	if err := atom.Update(d.Context()); err != nil {
		t.Fatal(err)
	}
	if u, _ := d.Context().Handler().Pending(); u != 1 {
		t.Fatalf("expected 1 pending update, got %d", u)
	}
	rec.Reset()
	if _, err := d.RenderFrame(src, queue.View{}); err != nil {
		t.Fatal(err)
	}
	if u, _ := d.Context().Handler().Pending(); u != 0 {
		t.Errorf("expected drained handler, got %d pending", u)
	}
	r := rec.FinishRecording()
	if r.Count(recording.CmdUpdate) != 1 {
		t.Errorf("expected one peer update, got %d", r.Count(recording.CmdUpdate))
	}
}

func TestDriverReportsAtomFailures(t *testing.T) {
	d, rec := newTestDriver(t)
	bad := newTriangle()
	rec.FailResource(bad.vertices, resource.StatusError)
	src := &atomSource{atoms: []*queue.RenderAtom{
		queue.NewRenderAtom(bad, nil),
		queue.NewRenderAtom(flat{}, nil),
		queue.NewRenderAtom(newTriangle(), nil),
	}}

	stats, err := d.RenderFrame(src, queue.View{})
	if !errors.Is(err, ErrResourceUnavailable) || !errors.Is(err, ErrNotDrawable) {
		t.Fatalf("expected joined atom errors, got %v", err)
	}
	if stats.Polygons != 1 {
		t.Errorf("expected the good atom drawn, got %d polygons", stats.Polygons)
	}
	if rec.Frames() != 1 {
		t.Error("frame should still be submitted")
	}
}

func TestRendererBindsStrongestLights(t *testing.T) {
	d, rec := newTestDriver(t, WithMaxLights(2))
	near := NewLight(state.NewAtom(state.Light{Color: mgl32.Vec4{1, 1, 1, 1}, Position: mgl32.Vec3{1, 0, 0}, Range: 10}))
	mid := NewLight(state.NewAtom(state.Light{Color: mgl32.Vec4{1, 1, 1, 1}, Position: mgl32.Vec3{2, 0, 0}, Range: 10}))
	weak := NewLight(state.NewAtom(state.Light{Color: mgl32.Vec4{1, 1, 1, 1}, Position: mgl32.Vec3{5, 0, 0}, Range: 10}))
	out := NewLight(state.NewAtom(state.Light{Color: mgl32.Vec4{1, 1, 1, 1}, Position: mgl32.Vec3{5, 0, 0}, Range: 1}))

	ctx := d.Context()
	cur, err := ctx.MakeCurrent()
	if err != nil {
		t.Fatal(err)
	}
	defer cur.Release()
	if err := rec.BeginFrame(queue.View{}); err != nil {
		t.Fatal(err)
	}

	q := queue.NewBasic()
	q.Add(queue.NewRenderAtom(newTriangle(), nil))
	for _, l := range []*Light{weak, out, mid, near} {
		q.AddInfluence(l)
	}
	if _, err := q.Flush(d.Renderer(), &queue.View{}); err != nil {
		t.Fatal(err)
	}
	if rec.Bound(state.TypeLight, state.LightUnit(0)) != near.LightAtom() {
		t.Error("expected the nearest light on unit 0")
	}
	if rec.Bound(state.TypeLight, state.LightUnit(1)) != mid.LightAtom() {
		t.Error("expected the second light on unit 1")
	}
	if len(rec.BoundUnits(state.TypeLight)) != 2 {
		t.Errorf("expected 2 bound light units, got %v", rec.BoundUnits(state.TypeLight))
	}

	// An atom out of reach of every light releases the units.
	far := queue.NewRenderAtom(newTriangle(), nil)
	far.Transform = mgl32.Translate3D(100, 0, 0)
	q.Clear()
	q.Add(far)
	for _, l := range []*Light{near, mid} {
		q.AddInfluence(l)
	}
	if _, err := q.Flush(d.Renderer(), &queue.View{}); err != nil {
		t.Fatal(err)
	}
	if units := rec.BoundUnits(state.TypeLight); len(units) != 0 {
		t.Errorf("expected light units restored, got %v", units)
	}
	if err := d.Renderer().Finish(); err != nil {
		t.Fatal(err)
	}
	if err := rec.EndFrame(); err != nil {
		t.Fatal(err)
	}
}

func TestRendererNoLights(t *testing.T) {
	d, rec := newTestDriver(t, WithMaxLights(0))
	l := NewLight(state.NewAtom(state.Light{Directional: true}))
	src := &atomSource{
		atoms:  []*queue.RenderAtom{queue.NewRenderAtom(newTriangle(), nil)},
		lights: []queue.InfluenceAtom{l},
	}
	if _, err := d.RenderFrame(src, queue.View{}); err != nil {
		t.Fatal(err)
	}
	if got := rec.FinishRecording().Count(recording.CmdApply); got != 0 {
		t.Errorf("expected no applies, got %d", got)
	}
	if d.Renderer().MaxLights() != 0 {
		t.Errorf("expected MaxLights 0, got %d", d.Renderer().MaxLights())
	}
}

func TestLightInfluences(t *testing.T) {
	atom := queue.NewRenderAtom(newTriangle(), nil)
	atom.Bounds = queue.Bounds{Radius: 1}

	tests := []struct {
		name  string
		light state.Light
		want  float32
	}{
		{"directional", state.Light{Directional: true, Position: mgl32.Vec3{1000, 0, 0}}, 1},
		{"inside bounds", state.Light{Position: mgl32.Vec3{0.5, 0, 0}, Range: 4}, 1},
		{"linear falloff", state.Light{Position: mgl32.Vec3{3, 0, 0}, Range: 4}, 0.5},
		{"out of range", state.Light{Position: mgl32.Vec3{10, 0, 0}, Range: 4}, -5.0 / 4},
		{"inverse square", state.Light{Position: mgl32.Vec3{3, 0, 0}}, 0.2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewLight(state.NewAtom(tt.light)).Influences(atom)
			if math.Abs(float64(got-tt.want)) > 1e-5 {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestLightScalesBounds(t *testing.T) {
	atom := queue.NewRenderAtom(newTriangle(), nil)
	atom.Bounds = queue.Bounds{Radius: 1}
	atom.Transform = mgl32.Scale3D(2, 2, 2)
	l := NewLight(state.NewAtom(state.Light{Position: mgl32.Vec3{4, 0, 0}, Range: 4}))
	if got := l.Influences(atom); math.Abs(float64(got-0.5)) > 1e-5 {
		t.Errorf("expected 0.5, got %v", got)
	}
}

func TestNewLightRejectsOtherAtoms(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	NewLight(state.NewAtom(state.Fog{}))
}
