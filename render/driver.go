// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gogpu/scenestate"
	"github.com/gogpu/scenestate/backend"
	"github.com/gogpu/scenestate/queue"
	"github.com/gogpu/scenestate/resource"
	"github.com/gogpu/scenestate/state"
)

// Source produces the atoms of a frame.
type Source interface {
	// Update brings merged state up to date before a frame.
	Update()

	// Visit adds the atoms and influences of the frame to q.
	Visit(q queue.RenderQueue, view *queue.View)
}

// FrameStats describes one rendered frame.
type FrameStats struct {
	Frame    uint64
	Atoms    int
	Polygons int

	// Peer work issued during the frame.
	Realizations uint64
	Applies      uint64
	Restores     uint64

	// ResourceActions counts resource requests run by Manage.
	ResourceActions uint64

	Duration time.Duration
}

// Driver runs the per-frame sequence of a render context:
//
//  1. make the context current,
//  2. drain deferred atom destroys and updates,
//  3. run pending resource requests,
//  4. update the source, clear the queue and visit the source,
//  5. flush the queue into the backend between BeginFrame and EndFrame,
//  6. release the context.
//
// A Driver is used from one goroutine at a time.
type Driver struct {
	ctx       *state.Context
	backend   backend.Backend
	queue     queue.RenderQueue
	resources *resource.DefaultManager
	renderer  *Renderer

	frames uint64
}

// NewDriver creates a driver. The context must use b as its peer
// provider.
func NewDriver(ctx *state.Context, b backend.Backend, q queue.RenderQueue, m *resource.DefaultManager, opts ...Option) *Driver {
	return &Driver{
		ctx:       ctx,
		backend:   b,
		queue:     q,
		resources: m,
		renderer:  NewRenderer(ctx, b, m, opts...),
	}
}

// Context returns the render context.
func (d *Driver) Context() *state.Context { return d.ctx }

// Queue returns the render queue.
func (d *Driver) Queue() queue.RenderQueue { return d.queue }

// Renderer returns the queue renderer.
func (d *Driver) Renderer() *Renderer { return d.renderer }

// Frames returns the number of frames rendered.
func (d *Driver) Frames() uint64 { return d.frames }

// RenderFrame renders src as seen from view. Errors of single atoms are
// joined into the returned error; the atoms that did draw are still
// submitted.
func (d *Driver) RenderFrame(src Source, view queue.View) (FrameStats, error) {
	start := time.Now()
	before := d.ctx.Stats()
	var executed uint64
	if d.resources != nil {
		executed = d.resources.Executed()
	}

	cur, err := d.ctx.MakeCurrent()
	if err != nil {
		return FrameStats{}, fmt.Errorf("render: make current: %w", err)
	}
	defer cur.Release()

	var errs []error
	if err := d.ctx.Handler().DoDestroys(cur); err != nil {
		errs = append(errs, err)
	}
	if err := d.ctx.Handler().DoUpdates(cur); err != nil {
		errs = append(errs, err)
	}
	if d.resources != nil {
		if err := d.resources.Manage(d.backend.Resources()); err != nil {
			return FrameStats{}, fmt.Errorf("render: manage resources: %w", err)
		}
	}

	src.Update()
	d.queue.Clear()
	src.Visit(d.queue, &view)

	if err := d.backend.BeginFrame(view); err != nil {
		return FrameStats{}, fmt.Errorf("render: begin frame: %w", err)
	}
	polygons, flushErr := d.queue.Flush(d.renderer, &view)
	if flushErr != nil {
		errs = append(errs, flushErr)
	}
	if err := d.renderer.Finish(); err != nil {
		errs = append(errs, err)
	}
	if err := d.backend.EndFrame(); err != nil {
		return FrameStats{}, fmt.Errorf("render: end frame: %w", err)
	}

	d.frames++
	after := d.ctx.Stats()
	stats := FrameStats{
		Frame:        d.frames,
		Atoms:        d.queue.Len(),
		Polygons:     polygons,
		Realizations: after.Realizations - before.Realizations,
		Applies:      after.Applies - before.Applies,
		Restores:     after.Restores - before.Restores,
		Duration:     time.Since(start),
	}
	if d.resources != nil {
		stats.ResourceActions = d.resources.Executed() - executed
	}

	scenestate.Logger().Debug("render: frame",
		slog.Uint64("frame", stats.Frame),
		slog.Int("atoms", stats.Atoms),
		slog.Int("polygons", stats.Polygons),
		slog.Uint64("applies", stats.Applies),
		slog.Duration("duration", stats.Duration))
	return stats, errors.Join(errs...)
}
