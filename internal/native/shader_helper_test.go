package native

import (
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"
)

const solidWGSL = `
@vertex
fn vs_main(@location(0) position: vec3<f32>) -> @builtin(position) vec4<f32> {
    return vec4<f32>(position, 1.0);
}

@fragment
fn fs_main() -> @location(0) vec4<f32> {
    return vec4<f32>(1.0, 1.0, 1.0, 1.0);
}
`

func createNoopDevice(t *testing.T) hal.Device {
	t.Helper()
	instance, err := noop.API{}.CreateInstance(nil)
	if err != nil {
		t.Fatalf("CreateInstance failed: %v", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	open, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() {
		open.Device.Destroy()
		instance.Destroy()
	})
	return open.Device
}

func TestCompileShaderToSPIRV(t *testing.T) {
	code, err := CompileShaderToSPIRV(solidWGSL)
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}
	if len(code) == 0 || code[0] != 0x07230203 {
		t.Errorf("expected SPIR-V magic number, got %d words", len(code))
	}
}

func TestCompileShaderRejectsInvalidSource(t *testing.T) {
	if _, err := CompileShaderToSPIRV("fn broken( {"); err == nil {
		t.Error("expected compile error")
	}
}

func TestCreateShaderModuleAndDestroy(t *testing.T) {
	device := createNoopDevice(t)
	module, err := CreateShaderModule(device, "solid", solidWGSL)
	if err != nil {
		t.Fatalf("CreateShaderModule failed: %v", err)
	}
	r := GPUResources{Device: device, ShaderModules: []hal.ShaderModule{module, nil}}
	r.Destroy()
	if r.ShaderModules != nil || r.Device != device {
		t.Error("Destroy should reset everything but the device")
	}
}
