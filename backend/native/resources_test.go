package native

import (
	"errors"
	"image"
	"testing"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/scenestate/resource"
)

func newTestResources(t *testing.T, maxTexture int) *resources {
	t.Helper()
	dev, q := newNoopDevice(t)
	r := newResources(dev, q, "test", maxTexture)
	t.Cleanup(r.releaseAll)
	return r
}

func TestResourcesBuffer(t *testing.T) {
	r := newTestResources(t, 0)
	b := resource.NewBuffer([]byte{1, 2, 3, 4, 5}, gputypes.BufferUsageVertex)

	if st, err := r.Update(b, false); err != nil || st != resource.StatusReady {
		t.Fatalf("Update = %v, %v", st, err)
	}
	first := r.buffer(b.ID())
	if first == nil || first.size != 8 {
		t.Fatalf("buffer = %+v, want padded size 8", first)
	}

	b.SetData([]byte{9, 9, 9, 9})
	if _, err := r.Update(b, false); err != nil {
		t.Fatal(err)
	}
	if r.buffer(b.ID()) != first {
		t.Error("shrinking update recreated the buffer")
	}

	b.SetData(make([]byte, 64))
	if _, err := r.Update(b, false); err != nil {
		t.Fatal(err)
	}
	if got := r.buffer(b.ID()); got == first || got.size != 64 {
		t.Errorf("growing update kept %+v", got)
	}

	empty := resource.NewBuffer(nil, gputypes.BufferUsageIndex)
	if st, err := r.Update(empty, false); !errors.Is(err, ErrEmptyResource) || st != resource.StatusError {
		t.Errorf("empty buffer = %v, %v", st, err)
	}

	r.Release(b.ID())
	if r.buffer(b.ID()) != nil {
		t.Error("Release kept the buffer")
	}
}

func TestResourcesTexture(t *testing.T) {
	r := newTestResources(t, 16)

	tex := resource.NewTexture(image.NewRGBA(image.Rect(0, 0, 8, 4)), gputypes.TextureFormatRGBA8Unorm)
	if _, err := r.Update(tex, false); err != nil {
		t.Fatal(err)
	}
	gt := r.texture(tex.ID())
	if gt == nil || gt.width != 8 || gt.height != 4 {
		t.Fatalf("texture = %+v", gt)
	}
	gen := gt.generation

	if _, err := r.Update(tex, false); err != nil {
		t.Fatal(err)
	}
	if r.texture(tex.ID()).generation != gen {
		t.Error("same-size upload recreated the texture")
	}

	tex.SetImage(image.NewGray(image.Rect(10, 10, 74, 42)))
	if _, err := r.Update(tex, false); err != nil {
		t.Fatal(err)
	}
	gt = r.texture(tex.ID())
	if gt.width != 16 || gt.height != 8 {
		t.Errorf("scaled size = %dx%d, want 16x8", gt.width, gt.height)
	}
	if gt.generation == gen {
		t.Error("resize kept the generation")
	}

	depth := resource.NewTexture(image.NewRGBA(image.Rect(0, 0, 1, 1)), gputypes.TextureFormatDepth24Plus)
	if st, err := r.Update(depth, false); !errors.Is(err, ErrUnsupportedFormat) || st != resource.StatusUnsupported {
		t.Errorf("depth texture = %v, %v", st, err)
	}
}

func TestResourcesShader(t *testing.T) {
	r := newTestResources(t, 0)
	s := resource.NewShader("scene", SceneShaderSource())
	if st, err := r.Update(s, false); err != nil || st != resource.StatusReady {
		t.Fatalf("Update = %v, %v", st, err)
	}
	gen := r.shader(s.ID()).generation
	if _, err := r.Update(s, false); err != nil {
		t.Fatal(err)
	}
	if r.shader(s.ID()).generation == gen {
		t.Error("recompile kept the generation")
	}

	bad := resource.NewShader("bad", "fn broken(")
	if st, err := r.Update(bad, false); err == nil || st != resource.StatusError {
		t.Errorf("invalid shader = %v, %v", st, err)
	}
	if r.count() != 1 {
		t.Errorf("count = %d, want 1", r.count())
	}
}
