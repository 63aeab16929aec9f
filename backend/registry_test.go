package backend

import (
	"errors"
	"slices"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/scenestate/queue"
	"github.com/gogpu/scenestate/resource"
	"github.com/gogpu/scenestate/state"
)

type stubBackend struct {
	name    string
	initErr error
	inits   int
}

func (b *stubBackend) Peer(state.DynamicType) state.Peer { return nil }
func (b *stubBackend) Name() string                      { return b.name }
func (b *stubBackend) Init() error {
	b.inits++
	return b.initErr
}
func (b *stubBackend) Close()                                 {}
func (b *stubBackend) Resources() resource.Renderer           { return nil }
func (b *stubBackend) BeginFrame(queue.View) error            { return nil }
func (b *stubBackend) Draw(Geometry, mgl32.Mat4) (int, error) { return 0, nil }
func (b *stubBackend) EndFrame() error                        { return nil }

func withStub(t *testing.T, name string, b *stubBackend) {
	t.Helper()
	Register(name, func() Backend { return b })
	t.Cleanup(func() { Unregister(name) })
}

func TestRegistryPriority(t *testing.T) {
	rec := &stubBackend{name: BackendRecording}
	withStub(t, BackendRecording, rec)
	if got := DefaultName(); got != BackendRecording {
		t.Fatalf("expected %q, got %q", BackendRecording, got)
	}

	nat := &stubBackend{name: BackendNative}
	withStub(t, BackendNative, nat)
	if got := Default(); got != nat {
		t.Errorf("expected native backend to win, got %v", got)
	}
	if !IsRegistered(BackendNative) || IsRegistered("missing") {
		t.Error("IsRegistered mismatch")
	}
	if names := Available(); !slices.Contains(names, BackendNative) || !slices.Contains(names, BackendRecording) {
		t.Errorf("unexpected Available() = %v", names)
	}
	if Get("missing") != nil {
		t.Error("expected nil for unregistered backend")
	}
}

func TestOpen(t *testing.T) {
	ok := &stubBackend{name: "stub-ok"}
	withStub(t, "stub-ok", ok)
	b, err := Open("stub-ok")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if b != ok || ok.inits != 1 {
		t.Errorf("expected initialized stub, inits = %d", ok.inits)
	}

	boom := errors.New("no device")
	withStub(t, "stub-bad", &stubBackend{name: "stub-bad", initErr: boom})
	if _, err := Open("stub-bad"); !errors.Is(err, boom) {
		t.Errorf("expected init error, got %v", err)
	}

	if _, err := Open("missing"); !errors.Is(err, ErrBackendNotAvailable) {
		t.Errorf("expected ErrBackendNotAvailable, got %v", err)
	}
}
