// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package native

import (
	"encoding/binary"
	"math"

	"github.com/cespare/xxhash/v2"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/scenestate/state"
)

// MaxLights is the number of light units the default shader evaluates.
const MaxLights = 4

// maxTextureUnits is the number of texture units the backend tracks. The
// default shader samples unit 0.
const maxTextureUnits = 8

// fixedState is the GPU state folded from the atoms currently applied.
// Draw snapshots it by value.
type fixedState struct {
	shader   *shaderRecord
	blend    state.Blend
	polygon  state.PolygonStyle
	line     state.LineStyle
	point    state.PointStyle
	stencil  state.StencilTest
	depth    state.DepthTest
	alpha    state.AlphaTest
	material state.Material
	fog      *state.Fog
	textures [maxTextureUnits]*textureRecord
	lights   [MaxLights]*state.Light
}

var (
	defaultBlend   = state.Blend{}
	defaultPolygon = state.PolygonStyle{
		Cull:      gputypes.CullModeBack,
		FrontFace: gputypes.FrontFaceCCW,
		Topology:  gputypes.PrimitiveTopologyTriangleList,
	}
	defaultLine    = state.LineStyle{Width: 1}
	defaultPoint   = state.PointStyle{Size: 1}
	defaultStencil = state.StencilTest{ReadMask: 0xFF, WriteMask: 0xFF}
	defaultDepth   = state.DepthTest{Enabled: true, Compare: gputypes.CompareFunctionLess, Write: true}
	defaultAlpha   = state.AlphaTest{}
	defaultMat     = state.Material{
		Diffuse:  mgl32.Vec4{1, 1, 1, 1},
		Specular: mgl32.Vec4{0, 0, 0, 1},
		Emissive: mgl32.Vec4{0, 0, 0, 1},
	}
)

func defaultFixedState() fixedState {
	return fixedState{
		blend:    defaultBlend,
		polygon:  defaultPolygon,
		line:     defaultLine,
		point:    defaultPoint,
		stencil:  defaultStencil,
		depth:    defaultDepth,
		alpha:    defaultAlpha,
		material: defaultMat,
	}
}

// pipelineKey hashes everything a render pipeline is built from. The
// stencil reference and uniforms are dynamic and not part of it.
// shaderGen identifies the compiled module of the bound program, so a
// recompiled program gets new pipelines.
func (s *fixedState) pipelineKey(shaderGen uint64, indexFormat gputypes.IndexFormat, color, depth gputypes.TextureFormat) uint64 {
	h := pipelineHasher{d: xxhash.New()}
	if s.shader != nil {
		h.u64(uint64(s.shader.program), shaderGen)
		h.str(s.shader.vertexEntry)
		h.str(s.shader.fragmentEntry)
	} else {
		h.u64(0)
	}
	h.u64(uint64(s.polygon.Topology), uint64(s.polygon.Cull), uint64(s.polygon.FrontFace))
	if isStrip(s.polygon.Topology) {
		h.u64(uint64(indexFormat))
	}
	h.bool(s.blend.Enabled)
	if s.blend.Enabled {
		b := s.blend.State
		h.u64(uint64(b.Color.SrcFactor), uint64(b.Color.DstFactor), uint64(b.Color.Operation),
			uint64(b.Alpha.SrcFactor), uint64(b.Alpha.DstFactor), uint64(b.Alpha.Operation))
	}
	h.bool(s.depth.Enabled)
	if s.depth.Enabled {
		h.u64(uint64(s.depth.Compare))
		h.bool(s.depth.Write)
	}
	h.bool(s.stencil.Enabled)
	if s.stencil.Enabled {
		for _, f := range [2]gputypes.StencilFaceState{s.stencil.Front, s.stencil.Back} {
			h.u64(uint64(f.Compare), uint64(f.FailOp), uint64(f.DepthFailOp), uint64(f.PassOp))
		}
		h.u64(uint64(s.stencil.ReadMask), uint64(s.stencil.WriteMask))
	}
	h.u64(uint64(color), uint64(depth))
	return h.d.Sum64()
}

type pipelineHasher struct {
	d   *xxhash.Digest
	buf [8]byte
}

func (h *pipelineHasher) u64(vs ...uint64) {
	for _, v := range vs {
		binary.LittleEndian.PutUint64(h.buf[:], v)
		_, _ = h.d.Write(h.buf[:])
	}
}

func (h *pipelineHasher) bool(v bool) {
	if v {
		h.u64(1)
	} else {
		h.u64(0)
	}
}

func (h *pipelineHasher) str(s string) {
	h.u64(uint64(len(s)))
	_, _ = h.d.WriteString(s)
}

func isStrip(t gputypes.PrimitiveTopology) bool {
	return t == gputypes.PrimitiveTopologyLineStrip || t == gputypes.PrimitiveTopologyTriangleStrip
}

// primitiveState converts the polygon style for pipeline creation.
func (s *fixedState) primitiveState(indexFormat gputypes.IndexFormat) gputypes.PrimitiveState {
	p := gputypes.PrimitiveState{
		Topology:  s.polygon.Topology,
		FrontFace: s.polygon.FrontFace,
		CullMode:  s.polygon.Cull,
	}
	if isStrip(p.Topology) && indexFormat != gputypes.IndexFormatUndefined {
		f := indexFormat
		p.StripIndexFormat = &f
	}
	return p
}

// depthStencilState converts the depth and stencil tests. A disabled
// test always passes and leaves the attachment untouched.
func (s *fixedState) depthStencilState(format gputypes.TextureFormat) *hal.DepthStencilState {
	ds := &hal.DepthStencilState{
		Format:           format,
		DepthCompare:     gputypes.CompareFunctionAlways,
		StencilFront:     keepStencilFace(),
		StencilBack:      keepStencilFace(),
		StencilReadMask:  0xFF,
		StencilWriteMask: 0,
	}
	if s.depth.Enabled {
		ds.DepthCompare = s.depth.Compare
		if ds.DepthCompare == gputypes.CompareFunctionUndefined {
			ds.DepthCompare = gputypes.CompareFunctionLess
		}
		ds.DepthWriteEnabled = s.depth.Write
	}
	if s.stencil.Enabled {
		ds.StencilFront = halStencilFace(s.stencil.Front)
		ds.StencilBack = halStencilFace(s.stencil.Back)
		ds.StencilReadMask = s.stencil.ReadMask
		ds.StencilWriteMask = s.stencil.WriteMask
	}
	return ds
}

func keepStencilFace() hal.StencilFaceState {
	return hal.StencilFaceState{
		Compare:     gputypes.CompareFunctionAlways,
		FailOp:      hal.StencilOperationKeep,
		DepthFailOp: hal.StencilOperationKeep,
		PassOp:      hal.StencilOperationKeep,
	}
}

func halStencilFace(f gputypes.StencilFaceState) hal.StencilFaceState {
	c := f.Compare
	if c == gputypes.CompareFunctionUndefined {
		c = gputypes.CompareFunctionAlways
	}
	return hal.StencilFaceState{
		Compare:     c,
		FailOp:      halStencilOp(f.FailOp),
		DepthFailOp: halStencilOp(f.DepthFailOp),
		PassOp:      halStencilOp(f.PassOp),
	}
}

// halStencilOp maps gputypes operations, which number from Undefined,
// onto hal operations, which number from Keep.
func halStencilOp(op gputypes.StencilOperation) hal.StencilOperation {
	if op == gputypes.StencilOperationUndefined || op > gputypes.StencilOperationDecrementWrap {
		return hal.StencilOperationKeep
	}
	return hal.StencilOperation(op - gputypes.StencilOperationKeep)
}

// colorTarget converts the blend state.
func (s *fixedState) colorTarget(format gputypes.TextureFormat) gputypes.ColorTargetState {
	t := gputypes.ColorTargetState{Format: format, WriteMask: gputypes.ColorWriteMaskAll}
	if s.blend.Enabled {
		b := s.blend.State
		t.Blend = &b
	}
	return t
}

// alphaMode encodes the alpha test for the default shader: 0 disables
// it, otherwise the compare function numbered from Never.
func (s *fixedState) alphaMode() float32 {
	if !s.alpha.Enabled {
		return 0
	}
	c := s.alpha.Compare
	if c < gputypes.CompareFunctionNever || c >= gputypes.CompareFunctionAlways {
		return 0
	}
	return float32(c)
}

func f32bits(dst []byte, v float32) {
	binary.LittleEndian.PutUint32(dst, math.Float32bits(v))
}
