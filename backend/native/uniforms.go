package native

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/scenestate/queue"
)

// Per-draw uniform layout of shaders/scene.wgsl.
const (
	uniformSize   = 432
	uniformStride = 512 // multiple of minUniformBufferOffsetAlignment

	offMVP      = 0
	offModel    = 64
	offDiffuse  = 128
	offSpecular = 144
	offEmissive = 160
	offParams   = 176
	offFogColor = 192
	offFog      = 208
	offEye      = 224
	offLights   = 240
	lightSize   = 48
)

// unboundedRange stands in for point lights without a range.
const unboundedRange = 1e9

// packUniforms writes the uniforms of one draw into dst, which must hold
// uniformSize bytes.
func packUniforms(dst []byte, s *fixedState, view queue.View, transform mgl32.Mat4) {
	clear(dst[:uniformSize])

	mvp := view.Projection.Mul4(view.Matrix).Mul4(transform)
	putMat4(dst[offMVP:], mvp)
	putMat4(dst[offModel:], transform)

	putVec4(dst[offDiffuse:], s.material.Diffuse)
	putVec4(dst[offSpecular:], s.material.Specular)
	putVec4(dst[offEmissive:], s.material.Emissive)

	n := 0
	for _, l := range s.lights {
		if l == nil {
			continue
		}
		base := dst[offLights+n*lightSize:]
		putVec4(base, l.Color)
		if l.Directional {
			putVec4(base[16:], l.Position.Vec4(0))
			putVec4(base[32:], l.Direction.Vec4(0))
		} else {
			r := l.Range
			if r <= 0 {
				r = unboundedRange
			}
			putVec4(base[16:], l.Position.Vec4(1))
			putVec4(base[32:], l.Direction.Vec4(r))
		}
		n++
	}

	putVec4(dst[offParams:], mgl32.Vec4{
		s.material.Shininess,
		s.alpha.Reference,
		s.alphaMode(),
		float32(n),
	})

	if s.fog != nil {
		putVec4(dst[offFogColor:], s.fog.Color)
		putVec4(dst[offFog:], mgl32.Vec4{s.fog.Start, s.fog.End, s.fog.Density, 1})
	}
	putVec4(dst[offEye:], view.Position.Vec4(1))
}

func putMat4(dst []byte, m mgl32.Mat4) {
	for i, v := range m {
		f32bits(dst[i*4:], v)
	}
}

func putVec4(dst []byte, v mgl32.Vec4) {
	for i, c := range v {
		f32bits(dst[i*4:], c)
	}
}
