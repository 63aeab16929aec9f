package native

import (
	"errors"
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"
)

// countingDevice counts pipeline destruction on top of a noop device.
type countingDevice struct {
	hal.Device
	destroyed int
}

func (d *countingDevice) DestroyRenderPipeline(p hal.RenderPipeline) {
	d.destroyed++
	d.Device.DestroyRenderPipeline(p)
}

func newNoopDevice(t *testing.T) (hal.Device, hal.Queue) {
	t.Helper()
	instance, err := noop.API{}.CreateInstance(nil)
	if err != nil {
		t.Fatalf("CreateInstance: %v", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	open, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() {
		open.Device.Destroy()
		instance.Destroy()
	})
	return open.Device, open.Queue
}

func TestPipelineCacheGetOrCreate(t *testing.T) {
	dev, _ := newNoopDevice(t)
	c := NewPipelineCache(dev, 0)

	created := 0
	create := func() (hal.RenderPipeline, error) {
		created++
		return dev.CreateRenderPipeline(&hal.RenderPipelineDescriptor{})
	}
	for range 3 {
		if _, err := c.GetOrCreate(1, create); err != nil {
			t.Fatal(err)
		}
	}
	if created != 1 {
		t.Errorf("created %d pipelines, want 1", created)
	}

	boom := errors.New("boom")
	if _, err := c.GetOrCreate(2, func() (hal.RenderPipeline, error) { return nil, boom }); !errors.Is(err, boom) {
		t.Errorf("err = %v", err)
	}
	s := c.Stats()
	if s.Size != 1 || s.Hits != 2 || s.Misses != 2 {
		t.Errorf("Stats = %+v", s)
	}
}

func TestPipelineCacheRetiresEvicted(t *testing.T) {
	base, _ := newNoopDevice(t)
	dev := &countingDevice{Device: base}
	c := NewPipelineCache(dev, 2)

	for key := range uint64(4) {
		if _, err := c.GetOrCreate(key, func() (hal.RenderPipeline, error) {
			return dev.CreateRenderPipeline(&hal.RenderPipelineDescriptor{})
		}); err != nil {
			t.Fatal(err)
		}
	}
	if c.Len() != 2 {
		t.Errorf("Len = %d, want 2", c.Len())
	}
	if dev.destroyed != 0 {
		t.Errorf("evicted pipelines destroyed before Flush: %d", dev.destroyed)
	}
	c.Flush()
	if dev.destroyed != 2 {
		t.Errorf("Flush destroyed %d, want 2", dev.destroyed)
	}
	c.Clear()
	if dev.destroyed != 4 || c.Len() != 0 {
		t.Errorf("Clear: destroyed %d, len %d", dev.destroyed, c.Len())
	}
}
