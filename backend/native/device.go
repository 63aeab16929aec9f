package native

import (
	"cmp"
	"fmt"
	"log/slog"
	"slices"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	_ "github.com/gogpu/wgpu/hal/noop" // headless fallback adapter

	"github.com/gogpu/scenestate"
)

// halProvider is implemented by device providers that expose hal objects.
// gpucontext.DeviceProvider only carries opaque tokens.
type halProvider interface {
	HalDevice() any
	HalQueue() any
}

// gpuDevice is the device and queue the backend renders with.
type gpuDevice struct {
	device   hal.Device
	queue    hal.Queue
	instance hal.Instance
	info     gputypes.AdapterInfo
	owned    bool
}

func openDevice(o *options) (*gpuDevice, error) {
	if o.device != nil && o.queue != nil {
		return &gpuDevice{device: o.device, queue: o.queue}, nil
	}
	if o.provider != nil {
		hp, ok := o.provider.(halProvider)
		if !ok {
			return nil, ErrNoHalDevice
		}
		d, okDevice := hp.HalDevice().(hal.Device)
		q, okQueue := hp.HalQueue().(hal.Queue)
		if !okDevice || !okQueue || d == nil || q == nil {
			return nil, ErrNoHalDevice
		}
		return &gpuDevice{device: d, queue: q}, nil
	}
	return openAdapter()
}

// openAdapter opens the best adapter of the registered hal backends. Real
// backends win over the noop backend; discrete GPUs over integrated ones.
func openAdapter() (*gpuDevice, error) {
	variants := hal.AvailableBackends()
	slices.SortFunc(variants, func(a, b gputypes.Backend) int {
		if (a == gputypes.BackendEmpty) != (b == gputypes.BackendEmpty) {
			if a == gputypes.BackendEmpty {
				return 1
			}
			return -1
		}
		return cmp.Compare(a, b)
	})

	var lastErr error
	for _, v := range variants {
		backend, ok := hal.GetBackend(v)
		if !ok {
			continue
		}
		instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
		if err != nil {
			lastErr = err
			continue
		}
		adapters := instance.EnumerateAdapters(nil)
		if len(adapters) == 0 {
			instance.Destroy()
			continue
		}
		selected := pickAdapter(adapters)
		open, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
		if err != nil {
			instance.Destroy()
			lastErr = err
			continue
		}
		scenestate.Logger().Info("native: adapter opened",
			slog.String("name", selected.Info.Name),
			slog.String("backend", v.String()))
		return &gpuDevice{
			device:   open.Device,
			queue:    open.Queue,
			instance: instance,
			info:     selected.Info,
			owned:    true,
		}, nil
	}
	if lastErr != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoAdapter, lastErr)
	}
	return nil, ErrNoAdapter
}

func pickAdapter(adapters []hal.ExposedAdapter) *hal.ExposedAdapter {
	for _, want := range []gputypes.DeviceType{gputypes.DeviceTypeDiscreteGPU, gputypes.DeviceTypeIntegratedGPU} {
		for i := range adapters {
			if adapters[i].Info.DeviceType == want {
				return &adapters[i]
			}
		}
	}
	return &adapters[0]
}

func (d *gpuDevice) close() {
	if !d.owned {
		return
	}
	_ = d.device.WaitIdle()
	d.device.Destroy()
	if d.instance != nil {
		d.instance.Destroy()
	}
}
