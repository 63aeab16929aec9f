package resource

import (
	"image"
	"sync"
	"testing"

	"github.com/gogpu/gputypes"
)

func TestIDsAreUnique(t *testing.T) {
	seen := make(map[ID]bool)
	var mu sync.Mutex
	var wg sync.WaitGroup
	for range 64 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := NewShader("s", "").ID()
			mu.Lock()
			defer mu.Unlock()
			if seen[id] {
				t.Errorf("duplicate id %d", id)
			}
			seen[id] = true
		}()
	}
	wg.Wait()
}

func TestZeroBaseGetsID(t *testing.T) {
	var b Base
	id := b.ID()
	if id == 0 {
		t.Fatal("expected a non-zero id")
	}
	if b.ID() != id {
		t.Error("id must be stable")
	}
	if b.Status() != StatusDisposed {
		t.Errorf("expected DISPOSED before realization, got %v", b.Status())
	}
}

func TestUpdatePolicy(t *testing.T) {
	tex := NewTexture(image.NewRGBA(image.Rect(0, 0, 2, 2)), gputypes.TextureFormatRGBA8Unorm)
	if tex.UpdatePolicy() != OnDemand {
		t.Errorf("expected ON_DEMAND by default, got %v", tex.UpdatePolicy())
	}
	tex.SetUpdatePolicy(Manual)
	if tex.UpdatePolicy() != Manual {
		t.Errorf("expected MANUAL, got %v", tex.UpdatePolicy())
	}

	for _, tt := range []struct {
		in   string
		want UpdatePolicy
		err  bool
	}{
		{"on-demand", OnDemand, false},
		{"MANUAL", Manual, false},
		{"", OnDemand, false},
		{"eager", OnDemand, true},
	} {
		got, err := ParseUpdatePolicy(tt.in)
		if (err != nil) != tt.err || got != tt.want {
			t.Errorf("ParseUpdatePolicy(%q) = %v, %v", tt.in, got, err)
		}
	}
}

func TestEditsMarkDirty(t *testing.T) {
	buf := NewBuffer([]byte{1, 2, 3}, gputypes.BufferUsageVertex)
	if !buf.IsDirty() || buf.Size() != 3 {
		t.Fatalf("new buffer should be dirty with size 3, got %v/%d", buf.IsDirty(), buf.Size())
	}
	buf.dirty.Store(false)
	buf.SetData([]byte{4})
	if !buf.IsDirty() || buf.Size() != 1 {
		t.Error("SetData should mark dirty and resize")
	}

	tex := NewTexture(nil, gputypes.TextureFormatRGBA8Unorm)
	if !tex.Bounds().Empty() {
		t.Error("texture without an image should have empty bounds")
	}
	tex.SetImage(image.NewRGBA(image.Rect(0, 0, 8, 4)))
	if tex.Bounds().Dx() != 8 {
		t.Errorf("expected width 8, got %d", tex.Bounds().Dx())
	}
}

func TestStatusString(t *testing.T) {
	for s, want := range map[Status]string{
		StatusReady:       "READY",
		StatusError:       "ERROR",
		StatusUnsupported: "UNSUPPORTED",
		StatusDisposed:    "DISPOSED",
	} {
		if s.String() != want {
			t.Errorf("expected %s, got %s", want, s.String())
		}
	}
}
