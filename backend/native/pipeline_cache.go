package native

import (
	"log/slog"
	"sync"

	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/scenestate"
	"github.com/gogpu/scenestate/internal/cache"
)

// PipelineCache caches render pipelines by the structural hash of the
// state they were built from.
//
// Pipeline creation is expensive because it involves shader compilation
// and validation. Pipelines pushed out by the limit are retired rather
// than destroyed, because a frame being encoded may still reference them;
// Flush destroys retired pipelines once the frame has been submitted.
type PipelineCache struct {
	device  hal.Device
	entries *cache.Cache[uint64, hal.RenderPipeline]

	mu      sync.Mutex
	retired []hal.RenderPipeline
}

// PipelineCacheStats reports pipeline cache effectiveness.
type PipelineCacheStats struct {
	Size      int
	Hits      uint64
	Misses    uint64
	Evictions uint64
	HitRate   float64
}

// NewPipelineCache creates a cache of at most limit pipelines on device.
// A limit of 0 means unlimited.
func NewPipelineCache(device hal.Device, limit int) *PipelineCache {
	c := &PipelineCache{device: device}
	c.entries = cache.New[uint64, hal.RenderPipeline](limit, func(_ uint64, p hal.RenderPipeline) {
		c.mu.Lock()
		c.retired = append(c.retired, p)
		c.mu.Unlock()
	})
	return c
}

// GetOrCreate returns the pipeline cached under key or stores the one
// create builds.
func (c *PipelineCache) GetOrCreate(key uint64, create func() (hal.RenderPipeline, error)) (hal.RenderPipeline, error) {
	return c.entries.GetOrCreate(key, func() (hal.RenderPipeline, error) {
		p, err := create()
		if err == nil {
			scenestate.Logger().Debug("native: pipeline created", slog.Uint64("key", key))
		}
		return p, err
	})
}

// Len returns the number of cached pipelines.
func (c *PipelineCache) Len() int { return c.entries.Len() }

// Stats returns cache statistics.
func (c *PipelineCache) Stats() PipelineCacheStats {
	s := c.entries.Stats()
	return PipelineCacheStats{
		Size:      s.Len,
		Hits:      s.Hits,
		Misses:    s.Misses,
		Evictions: s.Evictions,
		HitRate:   s.HitRate,
	}
}

// Flush destroys retired pipelines.
func (c *PipelineCache) Flush() {
	c.mu.Lock()
	retired := c.retired
	c.retired = nil
	c.mu.Unlock()
	for _, p := range retired {
		c.device.DestroyRenderPipeline(p)
	}
}

// Clear retires every cached pipeline and destroys them.
func (c *PipelineCache) Clear() {
	c.entries.Clear()
	c.Flush()
}
