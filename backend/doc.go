// Package backend defines the rendering backend abstraction and the
// registry backends install themselves into.
//
// A backend supplies the peers that turn atoms into GPU state, the
// resource renderer that owns buffer, texture and shader memory, and the
// draw calls of a frame. Backends register from init functions:
//
//	import _ "github.com/gogpu/scenestate/backend/native"
//
// and are selected by name or by priority:
//
//	b, err := backend.Open("") // native if registered, else recording
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer b.Close()
//
// Geometry is drawn from vertex buffers in [VertexLayout]: a position,
// a normal and a texture coordinate per vertex.
package backend
