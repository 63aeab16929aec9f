// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

// DefaultMaxLights is the number of light units bound per atom unless
// configured otherwise.
const DefaultMaxLights = 8

type options struct {
	maxLights int
}

func defaultOptions() options {
	return options{maxLights: DefaultMaxLights}
}

// Option configures a [Renderer] or [Driver].
type Option func(*options)

// WithMaxLights limits the lights bound while drawing one atom. The
// strongest influences win. Zero disables dynamic lighting.
func WithMaxLights(n int) Option {
	return func(o *options) {
		o.maxLights = max(n, 0)
	}
}
