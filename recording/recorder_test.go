package recording

import (
	"errors"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/scenestate/backend"
	"github.com/gogpu/scenestate/queue"
	"github.com/gogpu/scenestate/resource"
	"github.com/gogpu/scenestate/state"
)

type testGeometry struct {
	vertices *resource.Buffer
	indices  *resource.Buffer
}

func newTestGeometry() *testGeometry {
	return &testGeometry{
		vertices: resource.NewBuffer(make([]byte, 3*backend.VertexStride), gputypes.BufferUsageVertex),
		indices:  resource.NewBuffer([]byte{0, 0, 1, 0, 2, 0, 0, 0}, gputypes.BufferUsageIndex),
	}
}

func (g *testGeometry) PolygonCount() int                 { return 1 }
func (g *testGeometry) Vertices() *resource.Buffer        { return g.vertices }
func (g *testGeometry) VertexCount() int                  { return 3 }
func (g *testGeometry) Indices() *resource.Buffer         { return g.indices }
func (g *testGeometry) IndexCount() int                   { return 3 }
func (g *testGeometry) IndexFormat() gputypes.IndexFormat { return gputypes.IndexFormatUint16 }

func newTestRecorder(t *testing.T) (*Recorder, *state.Context) {
	t.Helper()
	rec := NewRecorder()
	if err := rec.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	ctx := state.NewContext(state.WithPeerProvider(rec), state.WithLabel(t.Name()))
	cur, err := ctx.MakeCurrent()
	if err != nil {
		t.Fatalf("MakeCurrent: %v", err)
	}
	t.Cleanup(func() {
		cur.Release()
		rec.Close()
	})
	return rec, ctx
}

func commandTypes(cmds []Command) []CommandType {
	out := make([]CommandType, len(cmds))
	for i, c := range cmds {
		out[i] = c.Type()
	}
	return out
}

func equalTypes(a, b []CommandType) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestRecorderApplyRestore(t *testing.T) {
	rec, ctx := newTestRecorder(t)
	mat := state.NewAtom(state.Material{Diffuse: mgl32.Vec4{1, 0, 0, 1}})

	if err := mat.Apply(ctx, state.NullUnit); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if got := rec.Bound(state.TypeMaterial, state.NullUnit); got != mat {
		t.Fatalf("Bound = %v, want material atom", got)
	}
	// Applying the bound atom again is free.
	if err := mat.Apply(ctx, state.NullUnit); err != nil {
		t.Fatalf("second Apply: %v", err)
	}
	if err := mat.Restore(ctx, state.NullUnit); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if rec.Bound(state.TypeMaterial, state.NullUnit) != nil {
		t.Error("unit still bound after Restore")
	}

	want := []CommandType{CmdValidate, CmdInitialize, CmdApply, CmdRestore}
	if got := commandTypes(rec.Commands()); !equalTypes(got, want) {
		t.Fatalf("commands = %v, want %v", got, want)
	}
	apply := rec.Commands()[2].(ApplyCommand)
	if apply.Prev.IsValid() {
		t.Error("first apply should have no previous atom")
	}
	if m, ok := apply.Payload.(state.Material); !ok || m.Diffuse[0] != 1 {
		t.Errorf("apply payload = %#v", apply.Payload)
	}
}

func TestRecorderTracksUnits(t *testing.T) {
	rec, ctx := newTestRecorder(t)
	l0 := state.NewAtom(state.Light{Color: mgl32.Vec4{1, 1, 1, 1}})
	l1 := state.NewAtom(state.Light{Color: mgl32.Vec4{0, 0, 1, 1}, Directional: true})

	if err := l0.Apply(ctx, state.LightUnit(2)); err != nil {
		t.Fatal(err)
	}
	if err := l1.Apply(ctx, state.LightUnit(0)); err != nil {
		t.Fatal(err)
	}
	units := rec.BoundUnits(state.TypeLight)
	if len(units) != 2 || units[0] != state.LightUnit(0) || units[1] != state.LightUnit(2) {
		t.Fatalf("BoundUnits = %v", units)
	}

	// Swapping atoms on a unit reports the previous one.
	if err := l0.Apply(ctx, state.LightUnit(0)); err != nil {
		t.Fatal(err)
	}
	cmds := rec.Commands()
	last := cmds[len(cmds)-1].(ApplyCommand)
	if rec.resources.GetAtom(last.Prev) != l1 || rec.resources.GetAtom(last.Next) != l0 {
		t.Errorf("apply prev/next = %d/%d", last.Prev, last.Next)
	}
}

func TestRecorderInjectedFailures(t *testing.T) {
	rec, ctx := newTestRecorder(t)
	boom := errors.New("boom")

	bad := state.NewAtom(state.DepthTest{Enabled: true})
	rec.FailRealization(bad, boom)
	err := bad.Apply(ctx, state.NullUnit)
	var ue *state.UpdateError
	if !errors.As(err, &ue) || !errors.Is(err, boom) {
		t.Fatalf("Apply err = %v, want UpdateError wrapping boom", err)
	}
	if rec.Bound(state.TypeDepth, state.NullUnit) != nil {
		t.Error("failed atom must not be bound")
	}

	invalid := state.NewAtom(state.Fog{Start: 1, End: 10})
	rec.FailValidation(invalid, boom)
	if err := invalid.Apply(ctx, state.NullUnit); !errors.Is(err, boom) {
		t.Fatalf("Apply err = %v, want boom", err)
	}
	if n := len(rec.Commands()); rec.Commands()[n-1].Type() != CmdValidate {
		t.Errorf("last command = %s, want Validate", rec.Commands()[n-1].Type())
	}

	// Clearing the failure lets the atom realize.
	rec.FailRealization(bad, nil)
	if err := bad.Apply(ctx, state.NullUnit); err != nil {
		t.Fatalf("Apply after clearing failure: %v", err)
	}
}

func TestRecorderResources(t *testing.T) {
	rec, _ := newTestRecorder(t)
	m := resource.NewDefaultManager()
	t.Cleanup(func() { m.Destroy(rec.Resources()) })

	good := resource.NewBuffer([]byte{1, 2, 3, 4}, gputypes.BufferUsageVertex)
	bad := resource.NewBuffer([]byte{1, 2, 3, 4}, gputypes.BufferUsageVertex)
	rec.FailResource(bad, resource.StatusUnsupported)

	if s := m.Prepare(rec.Resources(), good); s != resource.StatusReady {
		t.Errorf("good status = %s", s)
	}
	if s := m.Prepare(rec.Resources(), bad); s != resource.StatusUnsupported {
		t.Errorf("bad status = %s", s)
	}
	if !rec.IsRealized(good) || rec.IsRealized(bad) {
		t.Error("IsRealized mismatch")
	}

	m.CleanUp(good)
	if err := m.Manage(rec.Resources()); err != nil {
		t.Fatal(err)
	}
	if rec.IsRealized(good) {
		t.Error("resource still realized after clean-up")
	}

	r := rec.FinishRecording()
	if got := r.Count(CmdUpdateResource); got != 2 {
		t.Errorf("UpdateResource count = %d, want 2", got)
	}
	if got := r.Count(CmdCleanUpResource); got != 1 {
		t.Errorf("CleanUpResource count = %d, want 1", got)
	}
	if r.Resources().ResourceCount() != 2 {
		t.Errorf("pooled resources = %d, want 2", r.Resources().ResourceCount())
	}
}

func TestRecorderFrames(t *testing.T) {
	rec, _ := newTestRecorder(t)
	g := newTestGeometry()

	if _, err := rec.Draw(g, mgl32.Ident4()); !errors.Is(err, backend.ErrNoFrame) {
		t.Fatalf("Draw outside frame: %v", err)
	}
	if err := rec.EndFrame(); !errors.Is(err, backend.ErrNoFrame) {
		t.Fatalf("EndFrame outside frame: %v", err)
	}
	if err := rec.BeginFrame(queue.View{}); err != nil {
		t.Fatal(err)
	}
	if err := rec.BeginFrame(queue.View{}); err == nil {
		t.Fatal("nested BeginFrame should fail")
	}
	if _, err := rec.Draw(g, mgl32.Ident4()); !errors.Is(err, backend.ErrResourceNotReady) {
		t.Fatalf("Draw of unrealized geometry: %v", err)
	}

	for _, b := range []*resource.Buffer{g.vertices, g.indices} {
		if _, err := rec.Resources().Update(b, true); err != nil {
			t.Fatal(err)
		}
	}
	n, err := rec.Draw(g, mgl32.Translate3D(1, 2, 3))
	if err != nil || n != 1 {
		t.Fatalf("Draw = %d, %v", n, err)
	}
	if err := rec.EndFrame(); err != nil {
		t.Fatal(err)
	}
	if rec.Frames() != 1 {
		t.Errorf("Frames = %d, want 1", rec.Frames())
	}

	r := rec.FinishRecording()
	frames := r.Frames()
	if len(frames) != 1 {
		t.Fatalf("Frames() = %d, want 1", len(frames))
	}
	want := []CommandType{CmdBeginFrame, CmdUpdateResource, CmdUpdateResource, CmdDraw, CmdEndFrame}
	if got := commandTypes(frames[0]); !equalTypes(got, want) {
		t.Errorf("frame = %v, want %v", got, want)
	}
	draw := r.Filter(CmdDraw)[0].(DrawCommand)
	if draw.Transform.Col(3) != (mgl32.Vec4{1, 2, 3, 1}) {
		t.Errorf("draw transform = %v", draw.Transform)
	}
	if r.Resources().GetGeometry(draw.Geometry) != g {
		t.Error("draw geometry not pooled")
	}
	if rec.Len() != 0 {
		t.Errorf("recorder kept %d commands after FinishRecording", rec.Len())
	}
}

func TestRecorderNotInitialized(t *testing.T) {
	rec := NewRecorder()
	if err := rec.BeginFrame(queue.View{}); !errors.Is(err, backend.ErrNotInitialized) {
		t.Errorf("BeginFrame = %v", err)
	}
	if _, err := rec.Draw(newTestGeometry(), mgl32.Ident4()); !errors.Is(err, backend.ErrNotInitialized) {
		t.Errorf("Draw = %v", err)
	}
}

func TestRecorderRegistered(t *testing.T) {
	if !backend.IsRegistered(backend.BackendRecording) {
		t.Fatal("recording backend not registered")
	}
	b := backend.Get(backend.BackendRecording)
	if _, ok := b.(*Recorder); !ok {
		t.Fatalf("Get returned %T", b)
	}
	if b.Name() != backend.BackendRecording {
		t.Errorf("Name = %q", b.Name())
	}
}
