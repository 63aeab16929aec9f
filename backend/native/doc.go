// Package native provides the GPU rendering backend over gogpu/wgpu hal.
//
// The backend realizes resources as hal buffers, textures and shader
// modules, implements a peer for every built-in atom category, and folds
// the applied fixed-function state into render pipelines that are cached
// by a structural hash.
//
// Draw calls are recorded during the frame and encoded into a single
// render pass by EndFrame, after the per-draw uniforms have been written
// in one upload. The pass renders into an offscreen color target with a
// depth-stencil attachment sized by [WithTargetSize].
//
// A device comes from a gpucontext.DeviceProvider that exposes its hal
// objects, from [WithDevice], or, without either, from the first hal
// backend that offers an adapter. The noop hal backend is always
// available, so the package works headless:
//
//	b := native.New(native.WithTargetSize(640, 480))
//	if err := b.Init(); err != nil {
//		log.Fatal(err)
//	}
//	defer b.Close()
//
// Importing the package registers it as backend "native".
package native
