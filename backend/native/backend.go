// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package native

import (
	_ "embed"
	"fmt"
	"log/slog"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/scenestate"
	"github.com/gogpu/scenestate/backend"
	gpuutil "github.com/gogpu/scenestate/internal/native"
	"github.com/gogpu/scenestate/queue"
	"github.com/gogpu/scenestate/resource"
	"github.com/gogpu/scenestate/state"
)

//go:embed shaders/scene.wgsl
var sceneShaderSource string

// SceneShaderSource returns the WGSL of the default lit shader. Custom
// programs must keep its bind group layout.
func SceneShaderSource() string { return sceneShaderSource }

func init() {
	backend.Register(backend.BackendNative, func() backend.Backend {
		return New()
	})
}

// Stats reports backend activity since Init.
type Stats struct {
	Frames    uint64
	Draws     uint64
	Polygons  uint64
	Resources int
	Pipelines PipelineCacheStats
}

// drawCmd is one recorded draw, resolved to hal objects.
type drawCmd struct {
	state       fixedState
	pipeline    hal.RenderPipeline
	vertex      hal.Buffer
	vertexCount uint32
	index       hal.Buffer
	indexCount  uint32
	indexFormat gputypes.IndexFormat
	texture     *gpuTexture
	sampler     samplerKey
	transform   mgl32.Mat4
}

// Backend renders through wgpu hal into an offscreen color and depth
// target. It is not safe for concurrent use.
type Backend struct {
	opts options

	dev       *gpuDevice
	res       *resources
	pipelines *PipelineCache
	peers     map[state.DynamicType]state.Peer
	fixed     fixedState

	// objects owns everything created in Init.
	objects        gpuutil.GPUResources
	uniformLayout  hal.BindGroupLayout
	textureLayout  hal.BindGroupLayout
	pipelineLayout hal.PipelineLayout
	colorView      hal.TextureView
	depthView      hal.TextureView
	white          *gpuTexture
	defaultShader  hal.ShaderModule
	samplers       map[samplerKey]hal.Sampler

	uniformBuf   hal.Buffer
	uniformGroup hal.BindGroup
	uniformCap   int
	staging      []byte

	inFrame bool
	view    queue.View
	draws   []drawCmd

	stats       Stats
	initialized bool
}

// New creates a native backend. Init acquires the device.
func New(opts ...Option) *Backend {
	b := &Backend{opts: defaultOptions()}
	for _, opt := range opts {
		opt(&b.opts)
	}
	b.fixed = defaultFixedState()
	b.peers = newPeers(b)
	return b
}

// Name implements backend.Backend.
func (b *Backend) Name() string { return backend.BackendNative }

// Init implements backend.Backend.
func (b *Backend) Init() error {
	if b.initialized {
		return nil
	}
	dev, err := openDevice(&b.opts)
	if err != nil {
		return err
	}
	b.dev = dev
	b.objects = gpuutil.GPUResources{Device: dev.device}
	b.samplers = make(map[samplerKey]hal.Sampler)

	if err := b.createObjects(); err != nil {
		b.objects.Destroy()
		dev.close()
		b.dev = nil
		return err
	}
	b.res = newResources(dev.device, dev.queue, b.opts.label, b.opts.maxTexture)
	b.pipelines = NewPipelineCache(dev.device, b.opts.pipelineLimit)
	b.initialized = true

	scenestate.Logger().Info("native: initialized",
		slog.String("adapter", dev.info.Name),
		slog.Int("width", int(b.opts.width)),
		slog.Int("height", int(b.opts.height)))
	return nil
}

func (b *Backend) createObjects() error {
	d := b.dev.device
	label := b.opts.label

	uniformLayout, err := d.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: label + " draw uniforms",
		Entries: []gputypes.BindGroupLayoutEntry{{
			Binding:    0,
			Visibility: gputypes.ShaderStageVertex | gputypes.ShaderStageFragment,
			Buffer: &gputypes.BufferBindingLayout{
				Type:             gputypes.BufferBindingTypeUniform,
				HasDynamicOffset: true,
				MinBindingSize:   uniformSize,
			},
		}},
	})
	if err != nil {
		return fmt.Errorf("native: uniform layout: %w", err)
	}
	b.objects.BindLayouts = append(b.objects.BindLayouts, uniformLayout)
	b.uniformLayout = uniformLayout

	textureLayout, err := d.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: label + " diffuse texture",
		Entries: []gputypes.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: gputypes.ShaderStageFragment,
				Texture: &gputypes.TextureBindingLayout{
					SampleType:    gputypes.TextureSampleTypeFloat,
					ViewDimension: gputypes.TextureViewDimension2D,
				},
			},
			{
				Binding:    1,
				Visibility: gputypes.ShaderStageFragment,
				Sampler:    &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeFiltering},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("native: texture layout: %w", err)
	}
	b.objects.BindLayouts = append(b.objects.BindLayouts, textureLayout)
	b.textureLayout = textureLayout

	layout, err := d.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            label + " pipeline layout",
		BindGroupLayouts: []hal.BindGroupLayout{uniformLayout, textureLayout},
	})
	if err != nil {
		return fmt.Errorf("native: pipeline layout: %w", err)
	}
	b.objects.PipelineLayout = layout
	b.pipelineLayout = layout

	if b.colorView, err = b.createTarget("color", b.opts.colorFormat,
		gputypes.TextureUsageRenderAttachment|gputypes.TextureUsageCopySrc); err != nil {
		return err
	}
	if b.depthView, err = b.createTarget("depth", b.opts.depthFormat,
		gputypes.TextureUsageRenderAttachment); err != nil {
		return err
	}
	return b.createWhite()
}

func (b *Backend) createTarget(name string, format gputypes.TextureFormat, usage gputypes.TextureUsage) (hal.TextureView, error) {
	d := b.dev.device
	tex, err := d.CreateTexture(&hal.TextureDescriptor{
		Label:         fmt.Sprintf("%s %s target", b.opts.label, name),
		Size:          hal.Extent3D{Width: b.opts.width, Height: b.opts.height, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        format,
		Usage:         usage,
	})
	if err != nil {
		return nil, fmt.Errorf("native: %s target: %w", name, err)
	}
	b.objects.Textures = append(b.objects.Textures, tex)
	view, err := d.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label:         fmt.Sprintf("%s %s target view", b.opts.label, name),
		Format:        format,
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("native: %s target view: %w", name, err)
	}
	b.objects.Views = append(b.objects.Views, view)
	return view, nil
}

// createWhite creates the 1x1 texture bound when no texture atom is
// applied on unit 0.
func (b *Backend) createWhite() error {
	d := b.dev.device
	tex, err := d.CreateTexture(&hal.TextureDescriptor{
		Label:         b.opts.label + " white",
		Size:          hal.Extent3D{Width: 1, Height: 1, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        gputypes.TextureFormatRGBA8Unorm,
		Usage:         gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("native: white texture: %w", err)
	}
	b.objects.Textures = append(b.objects.Textures, tex)
	view, err := d.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label:         b.opts.label + " white view",
		Format:        gputypes.TextureFormatRGBA8Unorm,
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		return fmt.Errorf("native: white texture view: %w", err)
	}
	b.objects.Views = append(b.objects.Views, view)
	err = b.dev.queue.WriteTexture(
		&hal.ImageCopyTexture{Texture: tex, Aspect: gputypes.TextureAspectAll},
		[]byte{0xFF, 0xFF, 0xFF, 0xFF},
		&hal.ImageDataLayout{BytesPerRow: 4, RowsPerImage: 1},
		&hal.Extent3D{Width: 1, Height: 1, DepthOrArrayLayers: 1},
	)
	if err != nil {
		return fmt.Errorf("native: white texture upload: %w", err)
	}
	b.white = &gpuTexture{tex: tex, view: view, width: 1, height: 1}
	return nil
}

// Close implements backend.Backend.
func (b *Backend) Close() {
	if !b.initialized {
		return
	}
	if err := b.dev.device.WaitIdle(); err != nil {
		scenestate.Logger().Warn("native: wait idle on close", slog.Any("error", err))
	}
	b.destroyUniforms()
	b.pipelines.Clear()
	b.pipelines.Flush()
	b.res.releaseAll()
	b.objects.Destroy()
	b.dev.close()

	b.samplers = nil
	b.white = nil
	b.defaultShader = nil
	b.draws = nil
	b.inFrame = false
	b.initialized = false
	scenestate.Logger().Info("native: closed")
}

// Peer implements state.PeerProvider.
func (b *Backend) Peer(t state.DynamicType) state.Peer {
	return b.peers[t]
}

// Resources implements backend.Backend. It returns nil before Init.
func (b *Backend) Resources() resource.Renderer {
	if b.res == nil {
		return nil
	}
	return b.res
}

// PipelineCache returns the render pipeline cache, or nil before Init.
func (b *Backend) PipelineCache() *PipelineCache { return b.pipelines }

// Stats returns activity counters.
func (b *Backend) Stats() Stats {
	s := b.stats
	if b.res != nil {
		s.Resources = b.res.count()
	}
	if b.pipelines != nil {
		s.Pipelines = b.pipelines.Stats()
	}
	return s
}

// BeginFrame implements backend.Backend.
func (b *Backend) BeginFrame(view queue.View) error {
	if !b.initialized {
		return backend.ErrNotInitialized
	}
	if b.inFrame {
		return fmt.Errorf("native: frame already in progress")
	}
	b.view = view
	b.draws = b.draws[:0]
	b.inFrame = true
	return nil
}

// Draw implements backend.Backend.
func (b *Backend) Draw(g backend.Geometry, transform mgl32.Mat4) (int, error) {
	if !b.initialized {
		return 0, backend.ErrNotInitialized
	}
	if !b.inFrame {
		return 0, backend.ErrNoFrame
	}
	vb := g.Vertices()
	if vb == nil {
		return 0, fmt.Errorf("%w: geometry has no vertices", backend.ErrResourceNotReady)
	}
	v := b.res.buffer(vb.ID())
	if v == nil {
		return 0, fmt.Errorf("%w: vertex buffer %d", backend.ErrResourceNotReady, vb.ID())
	}
	cmd := drawCmd{
		state:       b.fixed,
		vertex:      v.buf,
		vertexCount: uint32(g.VertexCount()),
		transform:   transform,
		sampler:     samplerKey{filter: gputypes.FilterModeLinear, address: gputypes.AddressModeRepeat},
	}
	if ib := g.Indices(); ib != nil && g.IndexCount() > 0 {
		i := b.res.buffer(ib.ID())
		if i == nil {
			return 0, fmt.Errorf("%w: index buffer %d", backend.ErrResourceNotReady, ib.ID())
		}
		cmd.index = i.buf
		cmd.indexCount = uint32(g.IndexCount())
		cmd.indexFormat = g.IndexFormat()
	}
	if t := cmd.state.textures[0]; t != nil {
		gt := b.res.texture(t.image)
		if gt == nil {
			return 0, fmt.Errorf("%w: texture %d", backend.ErrResourceNotReady, t.image)
		}
		cmd.texture = gt
		cmd.sampler = t.sampler
	}

	pipeline, err := b.pipeline(&cmd.state, cmd.indexFormat)
	if err != nil {
		return 0, err
	}
	cmd.pipeline = pipeline
	b.draws = append(b.draws, cmd)

	n := g.PolygonCount()
	b.stats.Draws++
	b.stats.Polygons += uint64(n)
	return n, nil
}

// pipeline returns the render pipeline for s, creating it on a miss.
func (b *Backend) pipeline(s *fixedState, indexFormat gputypes.IndexFormat) (hal.RenderPipeline, error) {
	var (
		module hal.ShaderModule
		gen    uint64
	)
	vertexEntry, fragmentEntry := "vs_main", "fs_main"
	if s.shader != nil {
		sh := b.res.shader(s.shader.program)
		if sh == nil {
			return nil, fmt.Errorf("%w: shader %d", backend.ErrResourceNotReady, s.shader.program)
		}
		module, gen = sh.module, sh.generation
		vertexEntry, fragmentEntry = s.shader.vertexEntry, s.shader.fragmentEntry
	} else {
		var err error
		if module, err = b.sceneShader(); err != nil {
			return nil, err
		}
	}

	key := s.pipelineKey(gen, indexFormat, b.opts.colorFormat, b.opts.depthFormat)
	return b.pipelines.GetOrCreate(key, func() (hal.RenderPipeline, error) {
		p, err := b.dev.device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
			Label:  fmt.Sprintf("%s pipeline %016x", b.opts.label, key),
			Layout: b.pipelineLayout,
			Vertex: hal.VertexState{
				Module:     module,
				EntryPoint: vertexEntry,
				Buffers:    []gputypes.VertexBufferLayout{backend.VertexLayout},
			},
			Primitive:    s.primitiveState(indexFormat),
			DepthStencil: s.depthStencilState(b.opts.depthFormat),
			Multisample:  gputypes.DefaultMultisampleState(),
			Fragment: &hal.FragmentState{
				Module:     module,
				EntryPoint: fragmentEntry,
				Targets:    []gputypes.ColorTargetState{s.colorTarget(b.opts.colorFormat)},
			},
		})
		if err != nil {
			return nil, fmt.Errorf("native: create pipeline: %w", err)
		}
		return p, nil
	})
}

// sceneShader compiles the default shader on first use.
func (b *Backend) sceneShader() (hal.ShaderModule, error) {
	if b.defaultShader != nil {
		return b.defaultShader, nil
	}
	module, err := gpuutil.CreateShaderModule(b.dev.device, b.opts.label+" scene shader", sceneShaderSource)
	if err != nil {
		return nil, fmt.Errorf("native: scene shader: %w", err)
	}
	b.objects.ShaderModules = append(b.objects.ShaderModules, module)
	b.defaultShader = module
	return module, nil
}

// sampler returns the cached sampler for k.
func (b *Backend) sampler(k samplerKey) (hal.Sampler, error) {
	if s, ok := b.samplers[k]; ok {
		return s, nil
	}
	s, err := b.dev.device.CreateSampler(&hal.SamplerDescriptor{
		Label:        fmt.Sprintf("%s sampler %d/%d", b.opts.label, k.filter, k.address),
		AddressModeU: k.address,
		AddressModeV: k.address,
		AddressModeW: k.address,
		MagFilter:    k.filter,
		MinFilter:    k.filter,
		MipmapFilter: gputypes.FilterModeNearest,
		LodMaxClamp:  32,
		Anisotropy:   1,
	})
	if err != nil {
		return nil, fmt.Errorf("native: create sampler: %w", err)
	}
	b.objects.Samplers = append(b.objects.Samplers, s)
	b.samplers[k] = s
	return s, nil
}
