// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package native

import (
	"fmt"
	"log/slog"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/scenestate"
	"github.com/gogpu/scenestate/resource"
	"github.com/gogpu/scenestate/state"
)

type shaderRecord struct {
	program       resource.ID
	vertexEntry   string
	fragmentEntry string
}

type textureRecord struct {
	image   resource.ID
	sampler samplerKey
}

type samplerKey struct {
	filter  gputypes.FilterMode
	address gputypes.AddressMode
}

// payloadAs extracts a payload stored by value or by pointer.
func payloadAs[T state.Payload](a *state.Atom) (T, error) {
	switch p := any(a.Payload()).(type) {
	case T:
		return p, nil
	case *T:
		if p != nil {
			return *p, nil
		}
	}
	var zero T
	return zero, fmt.Errorf("native: %s peer cannot use %T", a.DynamicType(), a.Payload())
}

// peerBase tracks the unit a peer targets.
type peerBase struct {
	b    *Backend
	unit state.Unit
}

func (p *peerBase) SetUnit(u state.Unit) { p.unit = u }

// Cleanup is a no-op; records of fixed-function state hold no GPU objects.
func (p *peerBase) Cleanup(*state.Atom, any) {}

func (p *peerBase) Validate(*state.Atom) error { return nil }

// valuePeer folds a fixed-function payload into the backend state. Its
// record is the payload value itself.
type valuePeer[T state.Payload] struct {
	peerBase
	set func(s *fixedState, v T)
	def T
}

func (p *valuePeer[T]) Initialize(a *state.Atom) (any, error) {
	return payloadAs[T](a)
}

func (p *valuePeer[T]) Update(a *state.Atom, _ any) (any, error) {
	return payloadAs[T](a)
}

func (p *valuePeer[T]) Apply(_ *state.Atom, _ any, _ *state.Atom, next any) {
	p.set(&p.b.fixed, next.(T))
}

func (p *valuePeer[T]) Restore(*state.Atom, any) {
	p.set(&p.b.fixed, p.def)
}

func newValuePeer[T state.Payload](b *Backend, def T, set func(*fixedState, T)) *valuePeer[T] {
	return &valuePeer[T]{peerBase: peerBase{b: b}, set: set, def: def}
}

// shaderPeer binds programs whose modules the resource renderer compiled.
type shaderPeer struct{ peerBase }

func (p *shaderPeer) Validate(a *state.Atom) error {
	s, err := payloadAs[state.Shader](a)
	if err != nil {
		return err
	}
	if s.Program == nil {
		return ErrNilShader
	}
	return nil
}

func (p *shaderPeer) Initialize(a *state.Atom) (any, error) {
	s, err := payloadAs[state.Shader](a)
	if err != nil {
		return nil, err
	}
	if p.b.res.shader(s.Program.ID()) == nil {
		return nil, fmt.Errorf("%w: shader %q", ErrNotRealized, s.Program.Label())
	}
	rec := &shaderRecord{
		program:       s.Program.ID(),
		vertexEntry:   s.VertexEntry,
		fragmentEntry: s.FragmentEntry,
	}
	if rec.vertexEntry == "" {
		rec.vertexEntry = "vs_main"
	}
	if rec.fragmentEntry == "" {
		rec.fragmentEntry = "fs_main"
	}
	return rec, nil
}

func (p *shaderPeer) Update(a *state.Atom, _ any) (any, error) { return p.Initialize(a) }

func (p *shaderPeer) Apply(_ *state.Atom, _ any, _ *state.Atom, next any) {
	p.b.fixed.shader = next.(*shaderRecord)
}

func (p *shaderPeer) Restore(*state.Atom, any) { p.b.fixed.shader = nil }

// texturePeer binds realized textures to texture units.
type texturePeer struct{ peerBase }

func (p *texturePeer) Validate(a *state.Atom) error {
	t, err := payloadAs[state.Texture](a)
	if err != nil {
		return err
	}
	if t.Image == nil {
		return fmt.Errorf("%w: texture payload has no image", ErrEmptyResource)
	}
	return nil
}

func (p *texturePeer) Initialize(a *state.Atom) (any, error) {
	t, err := payloadAs[state.Texture](a)
	if err != nil {
		return nil, err
	}
	if p.b.res.texture(t.Image.ID()) == nil {
		return nil, fmt.Errorf("%w: texture %d", ErrNotRealized, t.Image.ID())
	}
	key := samplerKey{filter: t.Filter, address: t.Address}
	if key.filter == gputypes.FilterModeUndefined {
		key.filter = gputypes.FilterModeLinear
	}
	if key.address == gputypes.AddressModeUndefined {
		key.address = gputypes.AddressModeRepeat
	}
	return &textureRecord{image: t.Image.ID(), sampler: key}, nil
}

func (p *texturePeer) Update(a *state.Atom, _ any) (any, error) { return p.Initialize(a) }

func (p *texturePeer) Apply(_ *state.Atom, _ any, _ *state.Atom, next any) {
	if i := p.unit.Index; i < maxTextureUnits {
		p.b.fixed.textures[i] = next.(*textureRecord)
	}
}

func (p *texturePeer) Restore(*state.Atom, any) {
	if i := p.unit.Index; i < maxTextureUnits {
		p.b.fixed.textures[i] = nil
	}
}

// lightPeer places lights on light units. Units past MaxLights are
// accepted and ignored by the default shader.
type lightPeer struct{ peerBase }

func (p *lightPeer) Initialize(a *state.Atom) (any, error) {
	l, err := payloadAs[state.Light](a)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (p *lightPeer) Update(a *state.Atom, _ any) (any, error) { return p.Initialize(a) }

func (p *lightPeer) Apply(_ *state.Atom, _ any, _ *state.Atom, next any) {
	i := p.unit.Index
	if i >= MaxLights {
		scenestate.Logger().Debug("native: light unit ignored", slog.Int("unit", i))
		return
	}
	p.b.fixed.lights[i] = next.(*state.Light)
}

func (p *lightPeer) Restore(*state.Atom, any) {
	if i := p.unit.Index; i < MaxLights {
		p.b.fixed.lights[i] = nil
	}
}

// newPeers builds the peer table of b, indexed by dynamic type.
func newPeers(b *Backend) map[state.DynamicType]state.Peer {
	return map[state.DynamicType]state.Peer{
		state.TypeShader:  &shaderPeer{peerBase{b: b}},
		state.TypeTexture: &texturePeer{peerBase{b: b}},
		state.TypeLight:   &lightPeer{peerBase{b: b}},
		state.TypeMaterial: newValuePeer(b, defaultMat, func(s *fixedState, v state.Material) {
			s.material = v
		}),
		state.TypeBlend: newValuePeer(b, defaultBlend, func(s *fixedState, v state.Blend) {
			s.blend = v
		}),
		state.TypePolygonStyle: newValuePeer(b, defaultPolygon, func(s *fixedState, v state.PolygonStyle) {
			s.polygon = v
		}),
		// WebGPU rasterizes one pixel wide lines and points; the styles
		// are tracked but have no effect on the pipeline.
		state.TypeLineStyle: newValuePeer(b, defaultLine, func(s *fixedState, v state.LineStyle) {
			s.line = v
		}),
		state.TypePointStyle: newValuePeer(b, defaultPoint, func(s *fixedState, v state.PointStyle) {
			s.point = v
		}),
		state.TypeStencil: newValuePeer(b, defaultStencil, func(s *fixedState, v state.StencilTest) {
			s.stencil = v
		}),
		state.TypeDepth: newValuePeer(b, defaultDepth, func(s *fixedState, v state.DepthTest) {
			s.depth = v
		}),
		state.TypeAlpha: newValuePeer(b, defaultAlpha, func(s *fixedState, v state.AlphaTest) {
			s.alpha = v
		}),
		state.TypeFog: newValuePeer(b, state.Fog{}, func(s *fixedState, v state.Fog) {
			if v == (state.Fog{}) {
				s.fog = nil
				return
			}
			s.fog = &v
		}),
	}
}
