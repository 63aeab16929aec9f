// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"errors"
	"fmt"
	"slices"

	"github.com/gogpu/scenestate/backend"
	"github.com/gogpu/scenestate/queue"
	"github.com/gogpu/scenestate/resource"
	"github.com/gogpu/scenestate/state"
)

// Errors returned while drawing an atom.
var (
	// ErrNotDrawable is returned for atoms whose geometry does not
	// implement backend.Geometry.
	ErrNotDrawable = errors.New("render: geometry is not drawable")

	// ErrResourceUnavailable is returned when a resource an atom needs
	// is not READY after preparation.
	ErrResourceUnavailable = errors.New("render: resource unavailable")
)

// Renderer draws queue atoms through a state context onto a backend. It
// implements [queue.Renderer].
//
// Before an atom is drawn its resources are prepared, its appearance is
// applied (only differences reach the peers) and the strongest light
// influences are bound to light units in score order. Light units the
// previous atom used and the current one does not are restored.
//
// The context must be current on the calling goroutine.
type Renderer struct {
	ctx       *state.Context
	backend   backend.Backend
	resources *resource.DefaultManager
	opts      options

	empty  *state.Appearance
	lights []scoredLight
	bound  int
}

// NewRenderer creates a renderer. A nil resource manager disables
// resource preparation.
func NewRenderer(ctx *state.Context, b backend.Backend, m *resource.DefaultManager, opts ...Option) *Renderer {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Renderer{
		ctx:       ctx,
		backend:   b,
		resources: m,
		opts:      o,
		empty:     state.NewAppearance(),
	}
}

// MaxLights returns the light unit limit.
func (r *Renderer) MaxLights() int { return r.opts.maxLights }

// ApplyInfluence implements [queue.Renderer]. Influences that are not
// light sources are ignored.
func (r *Renderer) ApplyInfluence(_ *queue.RenderAtom, inf queue.InfluenceAtom, score float32) {
	if r.opts.maxLights == 0 {
		return
	}
	if l, ok := inf.(LightSource); ok {
		if a := l.LightAtom(); a != nil {
			r.lights = append(r.lights, scoredLight{atom: a, score: score})
		}
	}
}

// RenderAtom implements [queue.Renderer].
func (r *Renderer) RenderAtom(a *queue.RenderAtom, _ *queue.View) (int, error) {
	g, ok := a.Geometry.(backend.Geometry)
	if !ok {
		return 0, fmt.Errorf("%w: %T", ErrNotDrawable, a.Geometry)
	}

	app := a.Appearance
	if app == nil {
		app = r.empty
	}
	if err := r.prepareAppearance(app); err != nil {
		return 0, err
	}
	if err := app.Apply(r.ctx); err != nil {
		return 0, err
	}
	if err := r.bindLights(); err != nil {
		return 0, err
	}
	if err := r.prepareGeometry(g); err != nil {
		return 0, err
	}
	return r.backend.Draw(g, a.Transform)
}

// EndAtom implements [queue.Renderer].
func (r *Renderer) EndAtom(*queue.RenderAtom) {
	clear(r.lights)
	r.lights = r.lights[:0]
}

// Finish restores every light unit still bound. Call it after the last
// flush of a frame.
func (r *Renderer) Finish() error {
	err := r.restoreLights(0)
	r.bound = 0
	return err
}

// prepareAppearance prepares the resources the atoms of app use, so
// realizing them finds the resources READY.
func (r *Renderer) prepareAppearance(app *state.Appearance) error {
	if r.resources == nil {
		return nil
	}
	var errs []error
	for _, atom := range app.Atoms() {
		user, ok := atom.Payload().(state.ResourceUser)
		if !ok {
			continue
		}
		for _, res := range user.Resources() {
			if err := r.prepare(res); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func (r *Renderer) prepareGeometry(g backend.Geometry) error {
	if r.resources == nil {
		return nil
	}
	if err := r.prepare(g.Vertices()); err != nil {
		return err
	}
	if ib := g.Indices(); ib != nil {
		return r.prepare(ib)
	}
	return nil
}

func (r *Renderer) prepare(res resource.Resource) error {
	if res == nil {
		return nil
	}
	if s := r.resources.Prepare(r.backend.Resources(), res); s != resource.StatusReady {
		return fmt.Errorf("%w: resource %d is %s", ErrResourceUnavailable, res.ID(), s)
	}
	return nil
}

// bindLights binds the collected lights, strongest first, and restores
// the units the previous atom used beyond them.
func (r *Renderer) bindLights() error {
	slices.SortStableFunc(r.lights, func(a, b scoredLight) int {
		switch {
		case a.score > b.score:
			return -1
		case a.score < b.score:
			return 1
		}
		return 0
	})
	n := min(len(r.lights), r.opts.maxLights)

	var errs []error
	used := 0
	for _, l := range r.lights[:n] {
		if err := l.atom.Apply(r.ctx, state.LightUnit(used)); err != nil {
			errs = append(errs, err)
			continue
		}
		used++
	}
	if err := r.restoreLights(used); err != nil {
		errs = append(errs, err)
	}
	r.bound = used
	return errors.Join(errs...)
}

// restoreLights restores light units from..r.bound-1.
func (r *Renderer) restoreLights(from int) error {
	var errs []error
	for i := from; i < r.bound; i++ {
		u := state.LightUnit(i)
		if a := r.ctx.ActiveAtom(state.TypeLight, u); a != nil {
			if err := a.Restore(r.ctx, u); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
