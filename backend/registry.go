package backend

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/gogpu/gpucontext"

	"github.com/gogpu/scenestate"
)

// Backend name constants.
const (
	// BackendNative is the name of the GPU backend over gogpu/wgpu hal.
	BackendNative = "native"
	// BackendRecording is the name of the backend that records commands.
	BackendRecording = "recording"
)

// Factory creates a new backend instance.
type Factory func() Backend

// Native > Recording: the recording backend only draws into memory.
var registry = gpucontext.NewRegistry[Backend](
	gpucontext.WithPriority(BackendNative, BackendRecording),
)

// Register registers a backend factory with the given name.
// This is typically called from init() functions in backend packages.
// If a backend with the same name is already registered, it will be replaced.
func Register(name string, factory Factory) {
	registry.Register(name, factory)
}

// Unregister removes a backend from the registry.
// This is useful for testing.
func Unregister(name string) {
	registry.Unregister(name)
}

// Available returns the registered backend names in sorted order.
func Available() []string {
	names := registry.Available()
	slices.Sort(names)
	return names
}

// IsRegistered checks if a backend with the given name is registered.
func IsRegistered(name string) bool {
	return registry.Has(name)
}

// Get returns a new backend instance by name.
// Returns nil if the backend is not registered.
func Get(name string) Backend {
	return registry.Get(name)
}

// Default returns the best available backend based on priority.
// Returns nil if no backends are registered.
func Default() Backend {
	return registry.Best()
}

// DefaultName returns the name Default would pick, or "".
func DefaultName() string {
	return registry.BestName()
}

// MustDefault returns the default backend or panics.
func MustDefault() Backend {
	b := Default()
	if b == nil {
		panic("backend: no backend available")
	}
	return b
}

// Open returns an initialized backend. An empty name selects the default.
func Open(name string) (Backend, error) {
	var b Backend
	if name == "" {
		b = Default()
	} else {
		b = Get(name)
	}
	if b == nil {
		if name == "" {
			return nil, ErrBackendNotAvailable
		}
		return nil, fmt.Errorf("%w: %q", ErrBackendNotAvailable, name)
	}
	if err := b.Init(); err != nil {
		return nil, fmt.Errorf("backend: init %s: %w", b.Name(), err)
	}
	scenestate.Logger().Info("backend: selected", slog.String("name", b.Name()))
	return b, nil
}

// InitDefault initializes the default backend based on availability.
func InitDefault() (Backend, error) {
	return Open("")
}
