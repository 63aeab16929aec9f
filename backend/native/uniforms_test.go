package native

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/scenestate/queue"
	"github.com/gogpu/scenestate/state"
)

func f32at(buf []byte, off int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(buf[off:]))
}

func TestPackUniforms(t *testing.T) {
	s := defaultFixedState()
	s.material.Shininess = 16
	s.alpha = state.AlphaTest{Enabled: true, Compare: gputypes.CompareFunctionGreaterEqual, Reference: 0.5}
	// Unit 1 is empty; bound lights are packed from slot 0.
	s.lights[0] = &state.Light{Color: mgl32.Vec4{1, 0, 0, 1}, Position: mgl32.Vec3{1, 2, 3}}
	s.lights[2] = &state.Light{Color: mgl32.Vec4{0, 0, 1, 1}, Direction: mgl32.Vec3{0, -1, 0}, Directional: true}
	s.fog = &state.Fog{Color: mgl32.Vec4{0.5, 0.5, 0.5, 1}, Start: 2, End: 20}

	view := queue.View{
		Position:   mgl32.Vec3{0, 0, 4},
		Matrix:     mgl32.Translate3D(0, 0, -4),
		Projection: mgl32.Ident4(),
	}
	model := mgl32.Translate3D(1, 0, 0)

	buf := make([]byte, uniformStride)
	packUniforms(buf, &s, view, model)

	// Column-major: translation lives in elements 12..14.
	if got := f32at(buf, offMVP+12*4); got != 1 {
		t.Errorf("mvp tx = %v, want 1", got)
	}
	if got := f32at(buf, offMVP+14*4); got != -4 {
		t.Errorf("mvp tz = %v, want -4", got)
	}
	if got := f32at(buf, offModel+12*4); got != 1 {
		t.Errorf("model tx = %v", got)
	}

	params := [4]float32{
		f32at(buf, offParams), f32at(buf, offParams+4),
		f32at(buf, offParams+8), f32at(buf, offParams+12),
	}
	want := [4]float32{16, 0.5, float32(gputypes.CompareFunctionGreaterEqual), 2}
	if params != want {
		t.Errorf("params = %v, want %v", params, want)
	}

	first := offLights
	if f32at(buf, first) != 1 || f32at(buf, first+16+12) != 1 {
		t.Error("point light not in slot 0")
	}
	if got := f32at(buf, first+32+12); got != unboundedRange {
		t.Errorf("point light range = %v", got)
	}
	second := offLights + lightSize
	if f32at(buf, second+8) != 1 || f32at(buf, second+16+12) != 0 {
		t.Error("directional light not in slot 1")
	}
	if got := f32at(buf, second+32+4); got != -1 {
		t.Errorf("direction y = %v", got)
	}

	if f32at(buf, offFog) != 2 || f32at(buf, offFog+4) != 20 || f32at(buf, offFog+12) != 1 {
		t.Error("fog not packed")
	}
	if got := f32at(buf, offEye+8); got != 4 {
		t.Errorf("eye z = %v", got)
	}
}

func TestPackUniformsClearsPreviousDraw(t *testing.T) {
	buf := make([]byte, uniformStride)
	for i := range buf {
		buf[i] = 0xFF
	}
	s := defaultFixedState()
	packUniforms(buf, &s, queue.View{Matrix: mgl32.Ident4(), Projection: mgl32.Ident4()}, mgl32.Ident4())
	if got := f32at(buf, offFog+12); got != 0 {
		t.Errorf("fog enabled = %v without fog", got)
	}
	if got := f32at(buf, offParams+12); got != 0 {
		t.Errorf("light count = %v", got)
	}
	if uniformSize != offLights+MaxLights*lightSize {
		t.Errorf("uniformSize = %d", uniformSize)
	}
}
