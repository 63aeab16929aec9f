// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"github.com/gogpu/scenestate/queue"
	"github.com/gogpu/scenestate/state"
)

// LightSource is an influence that is bound to a light unit while the
// atoms it influences are drawn.
type LightSource interface {
	queue.InfluenceAtom

	// LightAtom returns the atom bound to the light unit.
	LightAtom() *state.Atom
}

// Light is a [LightSource] over a [state.Light] atom.
//
// Directional lights influence every atom with score 1. Point lights
// score by distance between the light and the atom's bounding sphere:
// with a positive Range the score falls linearly to zero at Range past
// the sphere surface, otherwise it follows 1/(1+d²).
type Light struct {
	atom *state.Atom
}

// NewLight wraps an atom whose payload is a [state.Light]. It panics on
// any other payload.
func NewLight(a *state.Atom) *Light {
	if a.DynamicType() != state.TypeLight {
		panic("render: NewLight needs a light atom, got " + a.DynamicType().String())
	}
	return &Light{atom: a}
}

// LightAtom implements [LightSource].
func (l *Light) LightAtom() *state.Atom { return l.atom }

// Influences implements [queue.InfluenceAtom].
func (l *Light) Influences(a *queue.RenderAtom) float32 {
	p, ok := lightPayload(l.atom)
	if !ok {
		return 0
	}
	if p.Directional {
		return 1
	}
	d := p.Position.Sub(a.WorldCenter()).Len() - boundsRadius(a)
	if d < 0 {
		d = 0
	}
	if p.Range > 0 {
		return 1 - d/p.Range
	}
	return 1 / (1 + d*d)
}

func lightPayload(a *state.Atom) (state.Light, bool) {
	switch p := a.Payload().(type) {
	case state.Light:
		return p, true
	case *state.Light:
		return *p, p != nil
	}
	return state.Light{}, false
}

// boundsRadius returns the bounding radius in world units, scaled by the
// largest axis scale of the transform.
func boundsRadius(a *queue.RenderAtom) float32 {
	if a.Bounds.Radius <= 0 {
		return 0
	}
	t := a.Transform
	s := max(t.Col(0).Vec3().Len(), t.Col(1).Vec3().Len(), t.Col(2).Vec3().Len())
	return a.Bounds.Radius * s
}

// scoredLight is a light collected for the current atom.
type scoredLight struct {
	atom  *state.Atom
	score float32
}
