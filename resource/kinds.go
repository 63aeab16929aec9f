package resource

import (
	"image"
	"runtime"
	"sync"

	"github.com/gogpu/gputypes"
)

// Buffer is a block of GPU memory, typically vertices or indices.
type Buffer struct {
	Base

	mu    sync.RWMutex
	data  []byte
	usage gputypes.BufferUsage
}

// NewBuffer creates a buffer holding a copy of data.
func NewBuffer(data []byte, usage gputypes.BufferUsage) *Buffer {
	b := &Buffer{data: append([]byte(nil), data...), usage: usage}
	b.MarkDirty()
	track(b, b.ID())
	return b
}

// Data returns the CPU-side contents. The slice must not be modified.
func (b *Buffer) Data() []byte {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.data
}

// SetData replaces the contents and marks the buffer dirty.
func (b *Buffer) SetData(data []byte) {
	b.mu.Lock()
	b.data = append(b.data[:0], data...)
	b.mu.Unlock()
	b.MarkDirty()
}

// Size returns the buffer size in bytes.
func (b *Buffer) Size() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return uint64(len(b.data))
}

// Usage returns the buffer usage flags.
func (b *Buffer) Usage() gputypes.BufferUsage { return b.usage }

// Texture is a 2D image uploaded to the GPU.
type Texture struct {
	Base

	mu     sync.RWMutex
	img    image.Image
	format gputypes.TextureFormat
	usage  gputypes.TextureUsage
}

// NewTexture creates a texture from img. The image is not copied.
func NewTexture(img image.Image, format gputypes.TextureFormat) *Texture {
	t := &Texture{
		img:    img,
		format: format,
		usage:  gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopyDst,
	}
	t.MarkDirty()
	track(t, t.ID())
	return t
}

// Image returns the source image.
func (t *Texture) Image() image.Image {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.img
}

// SetImage replaces the source image and marks the texture dirty.
func (t *Texture) SetImage(img image.Image) {
	t.mu.Lock()
	t.img = img
	t.mu.Unlock()
	t.MarkDirty()
}

// Bounds returns the image bounds, or an empty rectangle without an image.
func (t *Texture) Bounds() image.Rectangle {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.img == nil {
		return image.Rectangle{}
	}
	return t.img.Bounds()
}

// Format returns the GPU texture format.
func (t *Texture) Format() gputypes.TextureFormat { return t.format }

// Usage returns the texture usage flags.
func (t *Texture) Usage() gputypes.TextureUsage { return t.usage }

// Shader is a WGSL program compiled by the backend.
type Shader struct {
	Base

	mu     sync.RWMutex
	label  string
	source string
}

// NewShader creates a shader resource from WGSL source.
func NewShader(label, wgsl string) *Shader {
	s := &Shader{label: label, source: wgsl}
	s.MarkDirty()
	track(s, s.ID())
	return s
}

// Label returns the debug label.
func (s *Shader) Label() string { return s.label }

// Source returns the WGSL source.
func (s *Shader) Source() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.source
}

// SetSource replaces the WGSL source and marks the shader dirty.
func (s *Shader) SetSource(wgsl string) {
	s.mu.Lock()
	s.source = wgsl
	s.mu.Unlock()
	s.MarkDirty()
}

// track reports id to the live managers once ptr becomes unreachable.
func track[T any](ptr *T, id ID) {
	runtime.AddCleanup(ptr, reclaimed, id)
}
