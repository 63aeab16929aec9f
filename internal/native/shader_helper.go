// Package native holds hal helpers shared by the GPU backend: shader
// compilation and ordered teardown of device objects.
package native

import (
	"encoding/binary"
	"fmt"

	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"
)

// CompileShaderToSPIRV compiles WGSL source to SPIR-V words.
func CompileShaderToSPIRV(wgslSource string) ([]uint32, error) {
	spirvBytes, err := naga.Compile(wgslSource)
	if err != nil {
		return nil, fmt.Errorf("failed to compile shader: %w", err)
	}
	// SPIR-V is little-endian 32-bit words
	spirvCode := make([]uint32, len(spirvBytes)/4)
	for i := range spirvCode {
		spirvCode[i] = binary.LittleEndian.Uint32(spirvBytes[i*4:])
	}
	return spirvCode, nil
}

// CreateShaderModule compiles WGSL and creates a HAL shader module from it.
func CreateShaderModule(device hal.Device, label, wgslSource string) (hal.ShaderModule, error) {
	code, err := CompileShaderToSPIRV(wgslSource)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", label, err)
	}
	module, err := device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  label,
		Source: hal.ShaderSource{SPIRV: code},
	})
	if err != nil {
		return nil, fmt.Errorf("%s: create shader module: %w", label, err)
	}
	return module, nil
}

// GPUResources collects long-lived device objects so they can be
// destroyed together, dependents first. Nil fields and entries are skipped.
type GPUResources struct {
	Device         hal.Device
	BindGroups     []hal.BindGroup
	PipelineLayout hal.PipelineLayout
	BindLayouts    []hal.BindGroupLayout
	Samplers       []hal.Sampler
	Views          []hal.TextureView
	Textures       []hal.Texture
	Buffers        []hal.Buffer
	ShaderModules  []hal.ShaderModule
}

// Destroy cleans up all GPU resources in the correct order and empties r.
func (r *GPUResources) Destroy() {
	if r.Device == nil {
		return
	}
	for _, g := range r.BindGroups {
		if g != nil {
			r.Device.DestroyBindGroup(g)
		}
	}
	if r.PipelineLayout != nil {
		r.Device.DestroyPipelineLayout(r.PipelineLayout)
	}
	for _, l := range r.BindLayouts {
		if l != nil {
			r.Device.DestroyBindGroupLayout(l)
		}
	}
	for _, s := range r.Samplers {
		if s != nil {
			r.Device.DestroySampler(s)
		}
	}
	for _, v := range r.Views {
		if v != nil {
			r.Device.DestroyTextureView(v)
		}
	}
	for _, t := range r.Textures {
		if t != nil {
			r.Device.DestroyTexture(t)
		}
	}
	for _, b := range r.Buffers {
		if b != nil {
			r.Device.DestroyBuffer(b)
		}
	}
	for _, m := range r.ShaderModules {
		if m != nil {
			r.Device.DestroyShaderModule(m)
		}
	}
	*r = GPUResources{Device: r.Device}
}
