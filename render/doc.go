// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package render connects render queues to a backend.
//
// A [Renderer] implements queue.Renderer: for each atom a queue flushes it
// prepares the resources the atom needs, applies the atom's appearance to
// the render context and binds the strongest [LightSource] influences to
// light units before drawing.
//
// A [Driver] runs the whole frame around a queue: it makes the context
// current, drains deferred atom work, runs resource requests, collects the
// atoms of a [Source] and flushes them between BeginFrame and EndFrame.
//
// # Usage
//
//	b, _ := backend.Open("")
//	ctx := state.NewContext(state.WithPeerProvider(b))
//	d := render.NewDriver(ctx, b, queue.NewStateSorting(), resource.NewDefaultManager())
//
//	for {
//	    stats, err := d.RenderFrame(src, view)
//	    ...
//	}
//
// # Lights
//
// Lights are influences, not appearance state. The queue scores every
// influence against every atom; scores above zero reach the renderer,
// which keeps at most WithMaxLights of them, strongest first, on light
// units 0..n-1.
package render
