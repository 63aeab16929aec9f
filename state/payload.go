package state

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/scenestate/resource"
)

// Payload is the kind-specific content of an [Atom]. The built-in kinds
// below cover the fixed categories; custom categories implement Payload
// with a type obtained from [RegisterType].
type Payload interface {
	// DynamicType returns the category of the payload.
	DynamicType() DynamicType

	// ValidUnit reports whether an atom with this payload may occupy u.
	ValidUnit(u Unit) bool
}

// ResourceUser is implemented by payloads that draw from resources. The
// renderer prepares those resources before the atom is applied.
type ResourceUser interface {
	Resources() []resource.Resource
}

// Shader selects the program used to draw.
type Shader struct {
	Program       *resource.Shader
	VertexEntry   string
	FragmentEntry string
}

func (Shader) DynamicType() DynamicType { return TypeShader }
func (Shader) ValidUnit(u Unit) bool    { return u == NullUnit }

// Resources implements [ResourceUser].
func (s Shader) Resources() []resource.Resource {
	if s.Program == nil {
		return nil
	}
	return []resource.Resource{s.Program}
}

// Texture binds an image resource to a texture unit.
type Texture struct {
	Image   *resource.Texture
	Filter  gputypes.FilterMode
	Address gputypes.AddressMode
}

func (Texture) DynamicType() DynamicType { return TypeTexture }
func (Texture) ValidUnit(u Unit) bool    { return numbered(u, UnitTexture) }

// Resources implements [ResourceUser].
func (t Texture) Resources() []resource.Resource {
	if t.Image == nil {
		return nil
	}
	return []resource.Resource{t.Image}
}

// Material holds surface colors for lit shading.
type Material struct {
	Diffuse   mgl32.Vec4
	Specular  mgl32.Vec4
	Emissive  mgl32.Vec4
	Shininess float32
}

func (Material) DynamicType() DynamicType { return TypeMaterial }
func (Material) ValidUnit(u Unit) bool    { return u == NullUnit }

// Blend controls color blending. A disabled blend writes source colors.
type Blend struct {
	Enabled bool
	State   gputypes.BlendState
}

func (Blend) DynamicType() DynamicType { return TypeBlend }
func (Blend) ValidUnit(u Unit) bool    { return u == NullUnit }

// PolygonStyle controls face culling, winding and primitive assembly.
type PolygonStyle struct {
	Cull      gputypes.CullMode
	FrontFace gputypes.FrontFace
	Topology  gputypes.PrimitiveTopology
}

func (PolygonStyle) DynamicType() DynamicType { return TypePolygonStyle }
func (PolygonStyle) ValidUnit(u Unit) bool    { return u == NullUnit }

// LineStyle controls line rasterization.
type LineStyle struct {
	Width  float32
	Smooth bool
}

func (LineStyle) DynamicType() DynamicType { return TypeLineStyle }
func (LineStyle) ValidUnit(u Unit) bool    { return u == NullUnit }

// PointStyle controls point rasterization.
type PointStyle struct {
	Size   float32
	Smooth bool
}

func (PointStyle) DynamicType() DynamicType { return TypePointStyle }
func (PointStyle) ValidUnit(u Unit) bool    { return u == NullUnit }

// StencilTest configures the stencil test.
type StencilTest struct {
	Enabled   bool
	Front     gputypes.StencilFaceState
	Back      gputypes.StencilFaceState
	ReadMask  uint32
	WriteMask uint32
	Reference uint32
}

func (StencilTest) DynamicType() DynamicType { return TypeStencil }
func (StencilTest) ValidUnit(u Unit) bool    { return u == NullUnit }

// DepthTest configures the depth test.
type DepthTest struct {
	Enabled bool
	Compare gputypes.CompareFunction
	Write   bool
}

func (DepthTest) DynamicType() DynamicType { return TypeDepth }
func (DepthTest) ValidUnit(u Unit) bool    { return u == NullUnit }

// AlphaTest discards fragments whose alpha fails Compare against Reference.
type AlphaTest struct {
	Enabled   bool
	Compare   gputypes.CompareFunction
	Reference float32
}

func (AlphaTest) DynamicType() DynamicType { return TypeAlpha }
func (AlphaTest) ValidUnit(u Unit) bool    { return u == NullUnit }

// Fog blends distant fragments toward Color.
type Fog struct {
	Color   mgl32.Vec4
	Start   float32
	End     float32
	Density float32
}

func (Fog) DynamicType() DynamicType { return TypeFog }
func (Fog) ValidUnit(u Unit) bool    { return u == NullUnit }

// Light is a point or directional light bound to a light unit.
type Light struct {
	Color       mgl32.Vec4
	Position    mgl32.Vec3
	Direction   mgl32.Vec3
	Directional bool
	Range       float32
}

func (Light) DynamicType() DynamicType { return TypeLight }
func (Light) ValidUnit(u Unit) bool    { return numbered(u, UnitLight) }
