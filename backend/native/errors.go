package native

import "errors"

// Package errors for the native backend.
var (
	// ErrNoAdapter is returned when no hal backend offers an adapter.
	ErrNoAdapter = errors.New("native: no GPU adapter available")

	// ErrNoHalDevice is returned when a device provider does not expose
	// hal objects.
	ErrNoHalDevice = errors.New("native: device provider has no hal device")

	// ErrUnsupportedFormat is returned for texture formats the backend
	// cannot upload.
	ErrUnsupportedFormat = errors.New("native: unsupported texture format")

	// ErrEmptyResource is returned for buffers or textures without content.
	ErrEmptyResource = errors.New("native: resource has no content")

	// ErrNotRealized is returned by peers whose resource has no backend copy.
	ErrNotRealized = errors.New("native: resource not realized")

	// ErrNilShader is returned by the shader peer for a payload without a
	// program.
	ErrNilShader = errors.New("native: shader payload has no program")
)
