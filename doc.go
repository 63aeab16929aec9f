// Package scenestate is the state-sorting and resource-synchronization core
// of a retained-mode 3D renderer built on the GoGPU stack.
//
// # Overview
//
// Every frame a scene driver fills a render queue with render atoms. Each
// atom carries an Appearance: a bundle of state managers for orthogonal
// GPU state categories (shader, texture, material, blend, draw styles,
// stencil/depth/alpha tests). The queue picks a draw order that keeps
// state changes low, and the renderer diffs every atom's state against
// what the context already has bound so backends only see deltas.
// GPU resources (buffers, textures, shaders) are realized lazily and
// synchronized once per frame by a resource manager.
//
// # Packages
//
//   - state: atoms, peers, contexts, managers, appearances and the state tree
//   - queue: render atoms and the basic, depth-sorting and state-sorting queues
//   - resource: GPU resource lifecycle and the default resource manager
//   - backend: backend interface and registry; backend/native drives wgpu/hal
//   - recording: a backend that records every call for inspection
//   - render: per-atom renderer and frame driver
//   - scene: drawables over a state tree and YAML scene descriptions
//   - config: TOML/YAML configuration
//
// # Logging
//
// The module is silent by default. Use [SetLogger] to route diagnostics
// into any [log/slog] handler.
package scenestate

// Version is the module version reported by the demo command.
const Version = "0.4.0"
