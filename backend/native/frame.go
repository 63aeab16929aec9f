package native

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/scenestate/backend"
	gpuutil "github.com/gogpu/scenestate/internal/native"
)

// EndFrame implements backend.Backend. It uploads the uniforms of every
// recorded draw in one write, encodes a single render pass and waits for
// the queue.
func (b *Backend) EndFrame() error {
	if !b.initialized {
		return backend.ErrNotInitialized
	}
	if !b.inFrame {
		return backend.ErrNoFrame
	}
	b.inFrame = false
	draws := b.draws
	defer func() { b.draws = draws[:0] }()

	if err := b.ensureUniforms(len(draws)); err != nil {
		return err
	}
	if len(draws) > 0 {
		size := len(draws) * uniformStride
		if cap(b.staging) < size {
			b.staging = make([]byte, size)
		}
		b.staging = b.staging[:size]
		for i := range draws {
			d := &draws[i]
			packUniforms(b.staging[i*uniformStride:], &d.state, b.view, d.transform)
		}
		if err := b.dev.queue.WriteBuffer(b.uniformBuf, 0, b.staging); err != nil {
			return fmt.Errorf("native: write uniforms: %w", err)
		}
	}

	frame := gpuutil.GPUResources{Device: b.dev.device}
	defer frame.Destroy()
	groups, err := b.textureGroups(&frame, draws)
	if err != nil {
		return err
	}

	d := b.dev.device
	encoder, err := d.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: b.opts.label + " frame"})
	if err != nil {
		return fmt.Errorf("native: create encoder: %w", err)
	}
	defer encoder.Destroy()
	if err := encoder.BeginEncoding(b.opts.label + " frame"); err != nil {
		return fmt.Errorf("native: begin encoding: %w", err)
	}

	pass := encoder.BeginRenderPass(b.passDescriptor())
	for i := range draws {
		cmd := &draws[i]
		pass.SetPipeline(cmd.pipeline)
		pass.SetBindGroup(0, b.uniformGroup, []uint32{uint32(i * uniformStride)})
		pass.SetBindGroup(1, groups[i], nil)
		pass.SetVertexBuffer(0, cmd.vertex, 0)
		pass.SetStencilReference(cmd.state.stencil.Reference)
		if cmd.index != nil {
			pass.SetIndexBuffer(cmd.index, cmd.indexFormat, 0)
			pass.DrawIndexed(cmd.indexCount, 1, 0, 0, 0)
		} else {
			pass.Draw(cmd.vertexCount, 1, 0, 0)
		}
	}
	pass.End()

	buf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("native: end encoding: %w", err)
	}
	defer d.FreeCommandBuffer(buf)
	if _, err := b.dev.queue.Submit([]hal.CommandBuffer{buf}); err != nil {
		return fmt.Errorf("native: submit: %w", err)
	}
	if err := d.WaitIdle(); err != nil {
		return fmt.Errorf("native: wait idle: %w", err)
	}
	b.pipelines.Flush()
	b.stats.Frames++
	return nil
}

func (b *Backend) passDescriptor() *hal.RenderPassDescriptor {
	ds := &hal.RenderPassDepthStencilAttachment{
		View:            b.depthView,
		DepthLoadOp:     gputypes.LoadOpClear,
		DepthStoreOp:    gputypes.StoreOpStore,
		DepthClearValue: 1,
	}
	if hasStencil(b.opts.depthFormat) {
		ds.StencilLoadOp = gputypes.LoadOpClear
		ds.StencilStoreOp = gputypes.StoreOpStore
	}
	return &hal.RenderPassDescriptor{
		Label: b.opts.label + " scene pass",
		ColorAttachments: []hal.RenderPassColorAttachment{{
			View:       b.colorView,
			LoadOp:     gputypes.LoadOpClear,
			StoreOp:    gputypes.StoreOpStore,
			ClearValue: b.opts.clear,
		}},
		DepthStencilAttachment: ds,
	}
}

func hasStencil(f gputypes.TextureFormat) bool {
	return f == gputypes.TextureFormatDepth24PlusStencil8 || f == gputypes.TextureFormatDepth32FloatStencil8
}

// groupKey identifies a texture by generation, which is unique per
// created texture; the white texture is generation zero.
type groupKey struct {
	gen     uint64
	sampler samplerKey
}

// textureGroups creates one bind group per distinct texture and sampler
// pair in draws. The groups live in frame.
func (b *Backend) textureGroups(frame *gpuutil.GPUResources, draws []drawCmd) ([]hal.BindGroup, error) {
	groups := make([]hal.BindGroup, len(draws))
	byKey := make(map[groupKey]hal.BindGroup)
	for i := range draws {
		tex := draws[i].texture
		if tex == nil {
			tex = b.white
		}
		k := groupKey{gen: tex.generation, sampler: draws[i].sampler}
		if g, ok := byKey[k]; ok {
			groups[i] = g
			continue
		}
		smp, err := b.sampler(k.sampler)
		if err != nil {
			return nil, err
		}
		g, err := b.dev.device.CreateBindGroup(&hal.BindGroupDescriptor{
			Label:  b.opts.label + " texture group",
			Layout: b.textureLayout,
			Entries: []gputypes.BindGroupEntry{
				{Binding: 0, Resource: gputypes.TextureViewBinding{TextureView: tex.view.NativeHandle()}},
				{Binding: 1, Resource: gputypes.SamplerBinding{Sampler: smp.NativeHandle()}},
			},
		})
		if err != nil {
			return nil, fmt.Errorf("native: texture bind group: %w", err)
		}
		frame.BindGroups = append(frame.BindGroups, g)
		byKey[k] = g
		groups[i] = g
	}
	return groups, nil
}

// ensureUniforms grows the uniform buffer to hold n draws.
func (b *Backend) ensureUniforms(n int) error {
	if n <= b.uniformCap && b.uniformBuf != nil {
		return nil
	}
	capacity := max(b.uniformCap, 16)
	for capacity < n {
		capacity *= 2
	}
	b.destroyUniforms()

	d := b.dev.device
	buf, err := d.CreateBuffer(&hal.BufferDescriptor{
		Label: b.opts.label + " draw uniforms",
		Size:  uint64(capacity * uniformStride),
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("native: uniform buffer: %w", err)
	}
	group, err := d.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  b.opts.label + " draw uniforms",
		Layout: b.uniformLayout,
		Entries: []gputypes.BindGroupEntry{{
			Binding:  0,
			Resource: gputypes.BufferBinding{Buffer: buf.NativeHandle(), Size: uniformSize},
		}},
	})
	if err != nil {
		d.DestroyBuffer(buf)
		return fmt.Errorf("native: uniform bind group: %w", err)
	}
	b.uniformBuf, b.uniformGroup, b.uniformCap = buf, group, capacity
	return nil
}

func (b *Backend) destroyUniforms() {
	if b.uniformGroup != nil {
		b.dev.device.DestroyBindGroup(b.uniformGroup)
	}
	if b.uniformBuf != nil {
		b.dev.device.DestroyBuffer(b.uniformBuf)
	}
	b.uniformBuf, b.uniformGroup, b.uniformCap = nil, nil, 0
}
