package native

import (
	"fmt"
	"image"
	"log/slog"
	"sync"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	xdraw "golang.org/x/image/draw"

	"github.com/gogpu/scenestate"
	gpuutil "github.com/gogpu/scenestate/internal/native"
	"github.com/gogpu/scenestate/resource"
)

type gpuBuffer struct {
	buf  hal.Buffer
	size uint64
}

type gpuTexture struct {
	tex    hal.Texture
	view   hal.TextureView
	width  uint32
	height uint32
	// generation changes whenever tex is recreated; bind groups built
	// on an older view are stale.
	generation uint64
}

type gpuShader struct {
	module     hal.ShaderModule
	generation uint64
}

// resources realizes resource objects as hal objects. It implements
// resource.Renderer and is only used from the goroutine that renders.
type resources struct {
	device     hal.Device
	queue      hal.Queue
	label      string
	maxTexture int

	mu         sync.Mutex
	buffers    map[resource.ID]*gpuBuffer
	textures   map[resource.ID]*gpuTexture
	shaders    map[resource.ID]*gpuShader
	generation uint64
}

func newResources(device hal.Device, queue hal.Queue, label string, maxTexture int) *resources {
	return &resources{
		device:     device,
		queue:      queue,
		label:      label,
		maxTexture: maxTexture,
		buffers:    make(map[resource.ID]*gpuBuffer),
		textures:   make(map[resource.ID]*gpuTexture),
		shaders:    make(map[resource.ID]*gpuShader),
	}
}

// Update implements resource.Renderer.
func (r *resources) Update(res resource.Resource, forceFull bool) (resource.Status, error) {
	switch v := res.(type) {
	case *resource.Buffer:
		return r.updateBuffer(v, forceFull)
	case *resource.Texture:
		return r.updateTexture(v, forceFull)
	case *resource.Shader:
		return r.updateShader(v)
	}
	return resource.StatusUnsupported, fmt.Errorf("native: unsupported resource %T", res)
}

// CleanUp implements resource.Renderer.
func (r *resources) CleanUp(res resource.Resource) {
	r.Release(res.ID())
}

// Release implements resource.Renderer.
func (r *resources) Release(id resource.ID) {
	r.mu.Lock()
	b, hasBuffer := r.buffers[id]
	t, hasTexture := r.textures[id]
	s, hasShader := r.shaders[id]
	delete(r.buffers, id)
	delete(r.textures, id)
	delete(r.shaders, id)
	r.mu.Unlock()

	if hasBuffer {
		r.device.DestroyBuffer(b.buf)
	}
	if hasTexture {
		r.destroyTexture(t)
	}
	if hasShader {
		r.device.DestroyShaderModule(s.module)
	}
}

func (r *resources) destroyTexture(t *gpuTexture) {
	r.device.DestroyTextureView(t.view)
	r.device.DestroyTexture(t.tex)
}

func (r *resources) updateBuffer(b *resource.Buffer, forceFull bool) (resource.Status, error) {
	data := b.Data()
	if len(data) == 0 {
		return resource.StatusError, ErrEmptyResource
	}
	// Queue writes must be a multiple of four bytes.
	padded := data
	if rem := len(data) % 4; rem != 0 {
		padded = make([]byte, len(data)+4-rem)
		copy(padded, data)
	}
	size := uint64(len(padded))

	id := b.ID()
	r.mu.Lock()
	cur := r.buffers[id]
	r.mu.Unlock()

	if cur == nil || forceFull || cur.size < size {
		buf, err := r.device.CreateBuffer(&hal.BufferDescriptor{
			Label: fmt.Sprintf("%s buffer %d", r.label, id),
			Size:  size,
			Usage: b.Usage() | gputypes.BufferUsageCopyDst,
		})
		if err != nil {
			return resource.StatusError, fmt.Errorf("native: create buffer: %w", err)
		}
		if cur != nil {
			r.device.DestroyBuffer(cur.buf)
		}
		cur = &gpuBuffer{buf: buf, size: size}
		r.mu.Lock()
		r.buffers[id] = cur
		r.mu.Unlock()
	}
	if err := r.queue.WriteBuffer(cur.buf, 0, padded); err != nil {
		return resource.StatusError, fmt.Errorf("native: write buffer: %w", err)
	}
	return resource.StatusReady, nil
}

func (r *resources) updateTexture(t *resource.Texture, forceFull bool) (resource.Status, error) {
	switch t.Format() {
	case gputypes.TextureFormatRGBA8Unorm, gputypes.TextureFormatRGBA8UnormSrgb:
	default:
		return resource.StatusUnsupported, fmt.Errorf("%w: %v", ErrUnsupportedFormat, t.Format())
	}
	img := t.Image()
	if img == nil || img.Bounds().Empty() {
		return resource.StatusError, ErrEmptyResource
	}
	rgba := r.toRGBA(img)
	w, h := uint32(rgba.Rect.Dx()), uint32(rgba.Rect.Dy())

	id := t.ID()
	r.mu.Lock()
	cur := r.textures[id]
	r.mu.Unlock()

	if cur == nil || forceFull || cur.width != w || cur.height != h {
		tex, err := r.device.CreateTexture(&hal.TextureDescriptor{
			Label:         fmt.Sprintf("%s texture %d", r.label, id),
			Size:          hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
			MipLevelCount: 1,
			SampleCount:   1,
			Dimension:     gputypes.TextureDimension2D,
			Format:        t.Format(),
			Usage:         t.Usage() | gputypes.TextureUsageCopyDst,
		})
		if err != nil {
			return resource.StatusError, fmt.Errorf("native: create texture: %w", err)
		}
		view, err := r.device.CreateTextureView(tex, &hal.TextureViewDescriptor{
			Label:         fmt.Sprintf("%s texture view %d", r.label, id),
			Format:        t.Format(),
			Dimension:     gputypes.TextureViewDimension2D,
			Aspect:        gputypes.TextureAspectAll,
			MipLevelCount: 1,
		})
		if err != nil {
			r.device.DestroyTexture(tex)
			return resource.StatusError, fmt.Errorf("native: create texture view: %w", err)
		}
		if cur != nil {
			r.destroyTexture(cur)
		}
		r.mu.Lock()
		r.generation++
		cur = &gpuTexture{tex: tex, view: view, width: w, height: h, generation: r.generation}
		r.textures[id] = cur
		r.mu.Unlock()
	}

	err := r.queue.WriteTexture(
		&hal.ImageCopyTexture{Texture: cur.tex, Aspect: gputypes.TextureAspectAll},
		rgba.Pix,
		&hal.ImageDataLayout{BytesPerRow: uint32(rgba.Stride), RowsPerImage: h},
		&hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
	)
	if err != nil {
		return resource.StatusError, fmt.Errorf("native: write texture: %w", err)
	}
	return resource.StatusReady, nil
}

// toRGBA converts img to tightly packed RGBA at origin, scaling it down
// when it exceeds the texture size limit.
func (r *resources) toRGBA(img image.Image) *image.RGBA {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if m := r.maxTexture; m > 0 && (w > m || h > m) {
		scale := float64(m) / float64(max(w, h))
		sw, sh := max(1, int(float64(w)*scale)), max(1, int(float64(h)*scale))
		dst := image.NewRGBA(image.Rect(0, 0, sw, sh))
		xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, b, xdraw.Src, nil)
		scenestate.Logger().Debug("native: texture scaled",
			slog.Int("from", max(w, h)), slog.Int("to", max(sw, sh)))
		return dst
	}
	if rgba, ok := img.(*image.RGBA); ok && b.Min == (image.Point{}) && rgba.Stride == 4*w {
		return rgba
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.Draw(dst, dst.Bounds(), img, b.Min, xdraw.Src)
	return dst
}

func (r *resources) updateShader(s *resource.Shader) (resource.Status, error) {
	module, err := gpuutil.CreateShaderModule(r.device, s.Label(), s.Source())
	if err != nil {
		return resource.StatusError, fmt.Errorf("native: shader: %w", err)
	}
	id := s.ID()
	r.mu.Lock()
	old := r.shaders[id]
	r.generation++
	r.shaders[id] = &gpuShader{module: module, generation: r.generation}
	r.mu.Unlock()
	if old != nil {
		r.device.DestroyShaderModule(old.module)
	}
	return resource.StatusReady, nil
}

func (r *resources) buffer(id resource.ID) *gpuBuffer {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.buffers[id]
}

func (r *resources) texture(id resource.ID) *gpuTexture {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.textures[id]
}

func (r *resources) shader(id resource.ID) *gpuShader {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.shaders[id]
}

// releaseAll destroys every realized object.
func (r *resources) releaseAll() {
	r.mu.Lock()
	ids := make([]resource.ID, 0, len(r.buffers)+len(r.textures)+len(r.shaders))
	for id := range r.buffers {
		ids = append(ids, id)
	}
	for id := range r.textures {
		ids = append(ids, id)
	}
	for id := range r.shaders {
		ids = append(ids, id)
	}
	r.mu.Unlock()
	for _, id := range ids {
		r.Release(id)
	}
}

func (r *resources) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.buffers) + len(r.textures) + len(r.shaders)
}
