package native

import (
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

type options struct {
	provider      any
	device        hal.Device
	queue         hal.Queue
	width         uint32
	height        uint32
	colorFormat   gputypes.TextureFormat
	depthFormat   gputypes.TextureFormat
	pipelineLimit int
	maxTexture    int
	label         string
	clear         gputypes.Color
}

func defaultOptions() options {
	return options{
		width:         800,
		height:        600,
		colorFormat:   gputypes.TextureFormatRGBA8Unorm,
		depthFormat:   gputypes.TextureFormatDepth24PlusStencil8,
		pipelineLimit: 64,
		maxTexture:    2048,
		label:         "scenestate",
		clear:         gputypes.Color{R: 0, G: 0, B: 0, A: 1},
	}
}

// Option configures a [Backend].
type Option func(*options)

// WithDeviceProvider renders on the device of p. p must expose its hal
// objects through HalDevice and HalQueue methods, as the gogpu window
// provider does.
func WithDeviceProvider(p any) Option {
	return func(o *options) { o.provider = p }
}

// WithDevice renders on an already opened hal device. The backend does
// not destroy it on Close.
func WithDevice(device hal.Device, queue hal.Queue) Option {
	return func(o *options) {
		o.device = device
		o.queue = queue
	}
}

// WithTargetSize sets the size of the offscreen render target.
func WithTargetSize(width, height uint32) Option {
	return func(o *options) {
		if width > 0 && height > 0 {
			o.width, o.height = width, height
		}
	}
}

// WithColorFormat sets the color target format.
func WithColorFormat(f gputypes.TextureFormat) Option {
	return func(o *options) { o.colorFormat = f }
}

// WithDepthFormat sets the depth-stencil target format.
func WithDepthFormat(f gputypes.TextureFormat) Option {
	return func(o *options) { o.depthFormat = f }
}

// WithPipelineCacheLimit bounds the number of cached render pipelines.
// Pipelines pushed out are destroyed.
func WithPipelineCacheLimit(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.pipelineLimit = n
		}
	}
}

// WithMaxTextureSize bounds texture uploads; larger images are scaled
// down to fit.
func WithMaxTextureSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxTexture = n
		}
	}
}

// WithLabel sets the label prefix of the hal objects the backend creates.
func WithLabel(label string) Option {
	return func(o *options) { o.label = label }
}

// WithClearColor sets the color the target is cleared to each frame.
func WithClearColor(c gputypes.Color) Option {
	return func(o *options) { o.clear = c }
}
