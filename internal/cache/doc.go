// Package cache provides a generic LRU cache with an eviction hook.
//
// The backend keeps GPU objects such as render pipelines in it; the
// eviction hook destroys them when they fall out of the cache:
//
//	c := cache.New[uint64, hal.RenderPipeline](64, func(_ uint64, p hal.RenderPipeline) {
//		device.DestroyRenderPipeline(p)
//	})
//	p, err := c.GetOrCreate(key, create)
//
// Cache is safe for concurrent use and must not be copied after creation.
package cache
