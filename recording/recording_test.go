package recording

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/scenestate/queue"
	"github.com/gogpu/scenestate/state"
)

func TestCommandTypeString(t *testing.T) {
	tests := []struct {
		typ  CommandType
		want string
	}{
		{CmdValidate, "Validate"},
		{CmdApply, "Apply"},
		{CmdUpdateResource, "UpdateResource"},
		{CmdEndFrame, "EndFrame"},
		{CommandType(200), "Unknown"},
	}
	for _, tt := range tests {
		if got := tt.typ.String(); got != tt.want {
			t.Errorf("CommandType(%d).String() = %q, want %q", tt.typ, got, tt.want)
		}
	}
}

func TestResourcePoolDedup(t *testing.T) {
	p := NewResourcePool()
	a := state.NewAtom(state.Blend{})
	b := state.NewAtom(state.Blend{Enabled: true})

	ra := p.AddAtom(a)
	if p.AddAtom(a) != ra {
		t.Error("same atom pooled twice")
	}
	rb := p.AddAtom(b)
	if ra == rb || p.AtomCount() != 2 {
		t.Errorf("refs %d/%d, count %d", ra, rb, p.AtomCount())
	}
	if p.AddAtom(nil).IsValid() {
		t.Error("nil atom should yield InvalidRef")
	}
	if p.GetAtom(AtomRef(InvalidRef)) != nil {
		t.Error("invalid ref should return nil")
	}

	c := p.Clone()
	p.Clear()
	if p.AtomCount() != 0 || c.AtomCount() != 2 || c.GetAtom(rb) != b {
		t.Error("clone must survive Clear of the original")
	}
}

// recordScene drives two frames: a lit red material and a depth change.
func recordScene(t *testing.T) (*Recording, *testGeometry, []*state.Atom) {
	t.Helper()
	rec, ctx := newTestRecorder(t)
	g := newTestGeometry()
	mat := state.NewAtom(state.Material{Diffuse: mgl32.Vec4{1, 0, 0, 1}})
	light := state.NewAtom(state.Light{Color: mgl32.Vec4{1, 1, 1, 1}})
	depth := state.NewAtom(state.DepthTest{Enabled: true, Write: false})

	res := rec.Resources()
	if _, err := res.Update(g.vertices, true); err != nil {
		t.Fatal(err)
	}
	if _, err := res.Update(g.indices, true); err != nil {
		t.Fatal(err)
	}

	for frame := range 2 {
		if err := rec.BeginFrame(queue.View{Matrix: mgl32.Ident4(), Projection: mgl32.Ident4()}); err != nil {
			t.Fatal(err)
		}
		if err := mat.Apply(ctx, state.NullUnit); err != nil {
			t.Fatal(err)
		}
		if err := light.Apply(ctx, state.LightUnit(0)); err != nil {
			t.Fatal(err)
		}
		if frame == 1 {
			if err := depth.Apply(ctx, state.NullUnit); err != nil {
				t.Fatal(err)
			}
		}
		if _, err := rec.Draw(g, mgl32.Ident4()); err != nil {
			t.Fatal(err)
		}
		if err := light.Restore(ctx, state.LightUnit(0)); err != nil {
			t.Fatal(err)
		}
		if err := rec.EndFrame(); err != nil {
			t.Fatal(err)
		}
	}
	return rec.FinishRecording(), g, []*state.Atom{mat, light, depth}
}

func TestRecordingQueries(t *testing.T) {
	r, _, _ := recordScene(t)

	if got := len(r.Frames()); got != 2 {
		t.Fatalf("Frames = %d, want 2", got)
	}
	if got := r.Count(CmdDraw); got != 2 {
		t.Errorf("draws = %d, want 2", got)
	}
	// Material is bound once; the light is bound and restored every frame.
	if got := r.Count(CmdApply); got != 4 {
		t.Errorf("applies = %d, want 4", got)
	}
	if got := r.Count(CmdRestore); got != 2 {
		t.Errorf("restores = %d, want 2", got)
	}
	if got := len(r.Filter(CmdBeginFrame, CmdEndFrame)); got != 4 {
		t.Errorf("frame markers = %d, want 4", got)
	}
	if r.Len() != len(r.Commands()) {
		t.Error("Len mismatch")
	}
}

func TestRecordingPlayback(t *testing.T) {
	r, _, atoms := recordScene(t)

	target := NewRecorder()
	if err := target.Init(); err != nil {
		t.Fatal(err)
	}
	if err := r.Playback(target); err != nil {
		t.Fatalf("Playback: %v", err)
	}
	if target.Frames() != 2 {
		t.Errorf("target frames = %d, want 2", target.Frames())
	}
	if target.Bound(state.TypeMaterial, state.NullUnit) != atoms[0] {
		t.Error("material not bound on target")
	}
	if target.Bound(state.TypeLight, state.LightUnit(0)) != nil {
		t.Error("light should be restored on target")
	}
	if target.Bound(state.TypeDepth, state.NullUnit) != atoms[2] {
		t.Error("depth not bound on target")
	}

	replayed := target.FinishRecording()
	for _, typ := range []CommandType{CmdDraw, CmdApply, CmdRestore, CmdUpdateResource} {
		if got, want := replayed.Count(typ), r.Count(typ); got != want {
			t.Errorf("%s: replayed %d, recorded %d", typ, got, want)
		}
	}
	// Each atom is initialized once on the target.
	if got := replayed.Count(CmdInitialize); got != 3 {
		t.Errorf("initializations = %d, want 3", got)
	}
}

func TestRecordingPlaybackStopsOnError(t *testing.T) {
	r, _, _ := recordScene(t)
	target := NewRecorder() // not initialized
	if err := r.Playback(target); err == nil {
		t.Fatal("expected playback error on uninitialized backend")
	}
}
