package scene

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"os"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gputypes"
	"gopkg.in/yaml.v3"

	"github.com/gogpu/scenestate/render"
	"github.com/gogpu/scenestate/resource"
	"github.com/gogpu/scenestate/state"
)

// ErrInvalidDescription wraps every error found while building a scene
// from a description.
var ErrInvalidDescription = errors.New("scene: invalid description")

// Description is the YAML form of a scene.
//
//	priority: [shader, texture, material]
//	shaders:
//	  lit: {file: lit.wgsl}
//	textures:
//	  checker: {size: 64, checker: 8, colors: [[1,1,1,1], [0,0,0,1]]}
//	lights:
//	  - {color: [1,1,1,1], position: [0,5,0], range: 20}
//	root:
//	  states:
//	    depth: {enabled: true, compare: less, write: true}
//	  children:
//	    - name: crate
//	      mesh: {box: [1,1,1]}
//	      transform: {translate: [0,0,-5]}
//	      states:
//	        shader: lit
//	        textures: [checker]
//	        material: {diffuse: [1,0.5,0.2,1], shininess: 16}
type Description struct {
	Priority []string               `yaml:"priority,omitempty"`
	Shaders  map[string]ShaderDesc  `yaml:"shaders,omitempty"`
	Textures map[string]TextureDesc `yaml:"textures,omitempty"`
	Lights   []LightDesc            `yaml:"lights,omitempty"`
	Root     NodeDesc               `yaml:"root"`

	// dir resolves relative shader files.
	dir string
}

// ShaderDesc is inline WGSL or a file holding it.
type ShaderDesc struct {
	Source   string `yaml:"source,omitempty"`
	File     string `yaml:"file,omitempty"`
	Vertex   string `yaml:"vertex,omitempty"`
	Fragment string `yaml:"fragment,omitempty"`
}

// TextureDesc is a procedural checkerboard texture.
type TextureDesc struct {
	Size    int           `yaml:"size"`
	Checker int           `yaml:"checker,omitempty"`
	Colors  [2][4]float32 `yaml:"colors,omitempty"`
	Filter  string        `yaml:"filter,omitempty"`
	Address string        `yaml:"address,omitempty"`
}

// LightDesc describes a point or directional light.
type LightDesc struct {
	Color       [4]float32 `yaml:"color"`
	Position    [3]float32 `yaml:"position,omitempty"`
	Direction   [3]float32 `yaml:"direction,omitempty"`
	Directional bool       `yaml:"directional,omitempty"`
	Range       float32    `yaml:"range,omitempty"`
}

// NodeDesc is a branch, or a leaf when it has a mesh.
type NodeDesc struct {
	Name      string            `yaml:"name,omitempty"`
	States    StatesDesc        `yaml:"states,omitempty"`
	Merge     map[string]string `yaml:"merge,omitempty"`
	Clear     []string          `yaml:"clear,omitempty"`
	Mesh      *MeshDesc         `yaml:"mesh,omitempty"`
	Transform TransformDesc     `yaml:"transform,omitempty"`
	Children  []NodeDesc        `yaml:"children,omitempty"`
}

// MeshDesc selects one of the built-in shapes or lists vertices.
// Vertices are position, normal and uv: eight floats each.
type MeshDesc struct {
	Box      *[3]float32  `yaml:"box,omitempty"`
	Quad     *[2]float32  `yaml:"quad,omitempty"`
	Vertices [][8]float32 `yaml:"vertices,omitempty"`
	Indices  []uint32     `yaml:"indices,omitempty"`
	Topology string       `yaml:"topology,omitempty"`
}

// TransformDesc composes translate, rotate and scale in that order.
type TransformDesc struct {
	Translate [3]float32  `yaml:"translate,omitempty"`
	Rotate    *RotateDesc `yaml:"rotate,omitempty"`
	Scale     *[3]float32 `yaml:"scale,omitempty"`
}

// RotateDesc is a rotation about Axis by Degrees.
type RotateDesc struct {
	Axis    [3]float32 `yaml:"axis"`
	Degrees float32    `yaml:"degrees"`
}

// StatesDesc lists the atoms attached to a node.
type StatesDesc struct {
	Shader   string        `yaml:"shader,omitempty"`
	Textures []string      `yaml:"textures,omitempty"`
	Material *MaterialDesc `yaml:"material,omitempty"`
	Blend    *BlendDesc    `yaml:"blend,omitempty"`
	Polygon  *PolygonDesc  `yaml:"polygon,omitempty"`
	Line     *LineDesc     `yaml:"line,omitempty"`
	Point    *PointDesc    `yaml:"point,omitempty"`
	Stencil  *StencilDesc  `yaml:"stencil,omitempty"`
	Depth    *DepthDesc    `yaml:"depth,omitempty"`
	Alpha    *AlphaDesc    `yaml:"alpha,omitempty"`
	Fog      *FogDesc      `yaml:"fog,omitempty"`
}

type MaterialDesc struct {
	Diffuse   [4]float32 `yaml:"diffuse"`
	Specular  [4]float32 `yaml:"specular,omitempty"`
	Emissive  [4]float32 `yaml:"emissive,omitempty"`
	Shininess float32    `yaml:"shininess,omitempty"`
}

type BlendDesc struct {
	Enabled bool `yaml:"enabled"`
	// Mode is "alpha" (default), "premultiplied" or "replace".
	Mode string `yaml:"mode,omitempty"`
}

type PolygonDesc struct {
	Cull     string `yaml:"cull,omitempty"`
	Front    string `yaml:"front,omitempty"`
	Topology string `yaml:"topology,omitempty"`
}

type LineDesc struct {
	Width  float32 `yaml:"width"`
	Smooth bool    `yaml:"smooth,omitempty"`
}

type PointDesc struct {
	Size   float32 `yaml:"size"`
	Smooth bool    `yaml:"smooth,omitempty"`
}

type StencilDesc struct {
	Enabled   bool    `yaml:"enabled"`
	Compare   string  `yaml:"compare,omitempty"`
	Fail      string  `yaml:"fail,omitempty"`
	DepthFail string  `yaml:"depth-fail,omitempty"`
	Pass      string  `yaml:"pass,omitempty"`
	Reference uint32  `yaml:"reference,omitempty"`
	ReadMask  *uint32 `yaml:"read-mask,omitempty"`
	WriteMask *uint32 `yaml:"write-mask,omitempty"`
}

type DepthDesc struct {
	Enabled bool   `yaml:"enabled"`
	Compare string `yaml:"compare,omitempty"`
	Write   bool   `yaml:"write"`
}

type AlphaDesc struct {
	Enabled   bool    `yaml:"enabled"`
	Compare   string  `yaml:"compare,omitempty"`
	Reference float32 `yaml:"reference"`
}

type FogDesc struct {
	Color   [4]float32 `yaml:"color"`
	Start   float32    `yaml:"start,omitempty"`
	End     float32    `yaml:"end,omitempty"`
	Density float32    `yaml:"density,omitempty"`
}

// Decode reads a YAML description. Unknown fields are errors.
func Decode(r io.Reader) (*Description, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var d Description
	if err := dec.Decode(&d); err != nil {
		return nil, fmt.Errorf("scene: decode: %w", err)
	}
	return &d, nil
}

// Load reads a YAML description from path. Shader files are resolved
// relative to the description.
func Load(path string) (*Description, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("scene: %w", err)
	}
	defer f.Close()
	d, err := Decode(f)
	if err != nil {
		return nil, err
	}
	if i := strings.LastIndexAny(path, `/\`); i >= 0 {
		d.dir = path[:i+1]
	}
	return d, nil
}

// builder carries the shared atoms while a description is built.
type builder struct {
	desc     *Description
	scene    *Scene
	shaders  map[string]*state.Atom
	textures map[string]*state.Atom
}

// Build creates the scene. Named shaders and textures become atoms shared
// by every node that refers to them.
func (d *Description) Build() (*Scene, error) {
	var priority []state.DynamicType
	for _, name := range d.Priority {
		t, ok := state.TypeByName(name)
		if !ok {
			return nil, fmt.Errorf("%w: unknown category %q in priority", ErrInvalidDescription, name)
		}
		priority = append(priority, t)
	}

	b := &builder{
		desc:     d,
		scene:    New(priority),
		shaders:  make(map[string]*state.Atom),
		textures: make(map[string]*state.Atom),
	}
	for name, sd := range d.Shaders {
		a, err := b.shader(name, sd)
		if err != nil {
			return nil, err
		}
		b.shaders[name] = a
	}
	for name, td := range d.Textures {
		a, err := texture(td)
		if err != nil {
			return nil, fmt.Errorf("%w: texture %q: %w", ErrInvalidDescription, name, err)
		}
		b.textures[name] = a
	}
	for _, ld := range d.Lights {
		b.scene.AddLight(render.NewLight(state.NewAtom(state.Light{
			Color:       mgl32.Vec4(ld.Color),
			Position:    mgl32.Vec3(ld.Position),
			Direction:   mgl32.Vec3(ld.Direction),
			Directional: ld.Directional,
			Range:       ld.Range,
		})))
	}

	if d.Root.Mesh != nil {
		return nil, fmt.Errorf("%w: the root cannot hold a mesh", ErrInvalidDescription)
	}
	root := b.scene.Root()
	ms, err := b.managers(&d.Root)
	if err != nil {
		return nil, err
	}
	for _, m := range ms {
		if err := root.AddManager(m); err != nil {
			return nil, err
		}
	}
	for i := range d.Root.Children {
		if err := b.node(root, &d.Root.Children[i], mgl32.Ident4()); err != nil {
			return nil, err
		}
	}
	return b.scene, nil
}

func (b *builder) shader(name string, sd ShaderDesc) (*state.Atom, error) {
	src := sd.Source
	if sd.File != "" {
		path := sd.File
		if !strings.HasPrefix(path, "/") {
			path = b.desc.dir + path
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%w: shader %q: %w", ErrInvalidDescription, name, err)
		}
		src = string(data)
	}
	if src == "" {
		return nil, fmt.Errorf("%w: shader %q has no source", ErrInvalidDescription, name)
	}
	return state.NewAtom(state.Shader{
		Program:       resource.NewShader(name, src),
		VertexEntry:   sd.Vertex,
		FragmentEntry: sd.Fragment,
	}), nil
}

func texture(td TextureDesc) (*state.Atom, error) {
	if td.Size <= 0 {
		return nil, errors.New("size must be positive")
	}
	filter, err := parseName(td.Filter, gputypes.FilterModeLinear, gputypes.FilterModeLinear, gputypes.FilterModeNearest)
	if err != nil {
		return nil, err
	}
	address, err := parseName(td.Address, gputypes.AddressModeRepeat,
		gputypes.AddressModeRepeat, gputypes.AddressModeClampToEdge, gputypes.AddressModeMirrorRepeat)
	if err != nil {
		return nil, err
	}
	colors := td.Colors
	if colors == ([2][4]float32{}) {
		colors = [2][4]float32{{1, 1, 1, 1}, {0, 0, 0, 1}}
	}
	img := checker(td.Size, max(td.Checker, 1), rgba(colors[0]), rgba(colors[1]))
	return state.NewAtom(state.Texture{
		Image:   resource.NewTexture(img, gputypes.TextureFormatRGBA8Unorm),
		Filter:  filter,
		Address: address,
	}), nil
}

func rgba(c [4]float32) color.RGBA {
	clamp := func(f float32) uint8 { return uint8(min(max(f, 0), 1)*255 + 0.5) }
	return color.RGBA{clamp(c[0]), clamp(c[1]), clamp(c[2]), clamp(c[3])}
}

func checker(size, cell int, a, b color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := range size {
		for x := range size {
			c := a
			if (x/cell+y/cell)%2 == 1 {
				c = b
			}
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

// node builds nd under parent. Leaves compose the transforms of their
// ancestors.
func (b *builder) node(parent *state.Node, nd *NodeDesc, world mgl32.Mat4) error {
	ms, err := b.managers(nd)
	if err != nil {
		return err
	}
	world = world.Mul4(nd.Transform.matrix())

	if nd.Mesh != nil {
		if len(nd.Children) > 0 {
			return fmt.Errorf("%w: node %q has a mesh and children", ErrInvalidDescription, nd.Name)
		}
		mesh, err := nd.Mesh.build()
		if err != nil {
			return fmt.Errorf("%w: node %q: %w", ErrInvalidDescription, nd.Name, err)
		}
		d, err := b.scene.AddMesh(parent, mesh, world, ms...)
		if err != nil {
			return err
		}
		d.Name = nd.Name
		return nil
	}

	branch, err := b.scene.AddBranch(parent, ms...)
	if err != nil {
		return err
	}
	for i := range nd.Children {
		if err := b.node(branch, &nd.Children[i], world); err != nil {
			return err
		}
	}
	return nil
}

func (t TransformDesc) matrix() mgl32.Mat4 {
	m := mgl32.Translate3D(t.Translate[0], t.Translate[1], t.Translate[2])
	if r := t.Rotate; r != nil {
		axis := mgl32.Vec3(r.Axis)
		if axis.Len() > 0 {
			m = m.Mul4(mgl32.HomogRotate3D(mgl32.DegToRad(r.Degrees), axis.Normalize()))
		}
	}
	if s := t.Scale; s != nil {
		m = m.Mul4(mgl32.Scale3D(s[0], s[1], s[2]))
	}
	return m
}

func (md *MeshDesc) build() (*Mesh, error) {
	var (
		mesh *Mesh
		err  error
	)
	switch {
	case md.Box != nil:
		mesh, err = NewBox(mgl32.Vec3(*md.Box))
	case md.Quad != nil:
		mesh, err = NewQuad(md.Quad[0], md.Quad[1])
	default:
		vs := make([]Vertex, len(md.Vertices))
		for i, v := range md.Vertices {
			vs[i] = Vertex{
				Position: mgl32.Vec3{v[0], v[1], v[2]},
				Normal:   mgl32.Vec3{v[3], v[4], v[5]},
				UV:       mgl32.Vec2{v[6], v[7]},
			}
		}
		for _, i := range md.Indices {
			if int(i) >= len(vs) {
				return nil, fmt.Errorf("index %d out of range", i)
			}
		}
		mesh, err = NewMesh(vs, md.Indices)
	}
	if err != nil {
		return nil, err
	}
	if md.Topology != "" {
		t, err := parseTopology(md.Topology)
		if err != nil {
			return nil, err
		}
		mesh.SetTopology(t)
	}
	return mesh, nil
}

// managers creates the managers of nd: one per listed state, clear
// managers for the cleared categories, then the merge modes.
func (b *builder) managers(nd *NodeDesc) ([]state.Manager, error) {
	atoms, err := b.atoms(&nd.States)
	if err != nil {
		return nil, fmt.Errorf("%w: node %q: %w", ErrInvalidDescription, nd.Name, err)
	}
	var ms []state.Manager
	for _, a := range atoms {
		ms = append(ms, state.NewAtomManager(a))
	}
	if len(nd.States.Textures) > 0 {
		var tex []*state.Atom
		for _, name := range nd.States.Textures {
			a, ok := b.textures[name]
			if !ok {
				return nil, fmt.Errorf("%w: node %q: unknown texture %q", ErrInvalidDescription, nd.Name, name)
			}
			tex = append(tex, a)
		}
		m, err := state.NewTextureManager(tex...)
		if err != nil {
			return nil, err
		}
		ms = append(ms, m)
	}
	for _, name := range nd.Clear {
		t, ok := state.TypeByName(name)
		if !ok {
			return nil, fmt.Errorf("%w: node %q: unknown category %q", ErrInvalidDescription, nd.Name, name)
		}
		ms = append(ms, state.NewClearManager(t))
	}
	for name, mode := range nd.Merge {
		t, ok := state.TypeByName(name)
		if !ok {
			return nil, fmt.Errorf("%w: node %q: unknown category %q", ErrInvalidDescription, nd.Name, name)
		}
		mm, err := state.ParseMergeMode(mode)
		if err != nil {
			return nil, fmt.Errorf("%w: node %q: %w", ErrInvalidDescription, nd.Name, err)
		}
		found := false
		for _, m := range ms {
			if mb, ok := m.(interface{ SetMergeMode(state.MergeMode) }); ok && m.DynamicType() == t {
				mb.SetMergeMode(mm)
				found = true
			}
		}
		if !found {
			return nil, fmt.Errorf("%w: node %q: merge mode for %q without state", ErrInvalidDescription, nd.Name, name)
		}
	}
	return ms, nil
}

// atoms creates the single-slot atoms listed in s.
func (b *builder) atoms(s *StatesDesc) ([]*state.Atom, error) {
	var out []*state.Atom
	add := func(p state.Payload) { out = append(out, state.NewAtom(p)) }

	if s.Shader != "" {
		a, ok := b.shaders[s.Shader]
		if !ok {
			return nil, fmt.Errorf("unknown shader %q", s.Shader)
		}
		out = append(out, a)
	}
	if m := s.Material; m != nil {
		add(state.Material{
			Diffuse:   mgl32.Vec4(m.Diffuse),
			Specular:  mgl32.Vec4(m.Specular),
			Emissive:  mgl32.Vec4(m.Emissive),
			Shininess: m.Shininess,
		})
	}
	if bl := s.Blend; bl != nil {
		var bs gputypes.BlendState
		switch bl.Mode {
		case "", "alpha":
			bs = gputypes.BlendStateAlpha()
		case "premultiplied":
			bs = gputypes.BlendStatePremultiplied()
		case "replace":
			bs = gputypes.BlendStateReplace()
		default:
			return nil, fmt.Errorf("unknown blend mode %q", bl.Mode)
		}
		add(state.Blend{Enabled: bl.Enabled, State: bs})
	}
	if p := s.Polygon; p != nil {
		cull, err := parseName(p.Cull, gputypes.CullModeBack, gputypes.CullModeNone, gputypes.CullModeFront, gputypes.CullModeBack)
		if err != nil {
			return nil, err
		}
		front, err := parseName(p.Front, gputypes.FrontFaceCCW, gputypes.FrontFaceCCW, gputypes.FrontFaceCW)
		if err != nil {
			return nil, err
		}
		topo := gputypes.PrimitiveTopologyTriangleList
		if p.Topology != "" {
			if topo, err = parseTopology(p.Topology); err != nil {
				return nil, err
			}
		}
		add(state.PolygonStyle{Cull: cull, FrontFace: front, Topology: topo})
	}
	if l := s.Line; l != nil {
		add(state.LineStyle{Width: l.Width, Smooth: l.Smooth})
	}
	if p := s.Point; p != nil {
		add(state.PointStyle{Size: p.Size, Smooth: p.Smooth})
	}
	if st := s.Stencil; st != nil {
		face, err := stencilFace(st)
		if err != nil {
			return nil, err
		}
		payload := state.StencilTest{
			Enabled:   st.Enabled,
			Front:     face,
			Back:      face,
			ReadMask:  0xFF,
			WriteMask: 0xFF,
			Reference: st.Reference,
		}
		if st.ReadMask != nil {
			payload.ReadMask = *st.ReadMask
		}
		if st.WriteMask != nil {
			payload.WriteMask = *st.WriteMask
		}
		add(payload)
	}
	if d := s.Depth; d != nil {
		cmp, err := parseCompare(d.Compare, gputypes.CompareFunctionLess)
		if err != nil {
			return nil, err
		}
		add(state.DepthTest{Enabled: d.Enabled, Compare: cmp, Write: d.Write})
	}
	if a := s.Alpha; a != nil {
		cmp, err := parseCompare(a.Compare, gputypes.CompareFunctionGreater)
		if err != nil {
			return nil, err
		}
		add(state.AlphaTest{Enabled: a.Enabled, Compare: cmp, Reference: a.Reference})
	}
	if f := s.Fog; f != nil {
		add(state.Fog{Color: mgl32.Vec4(f.Color), Start: f.Start, End: f.End, Density: f.Density})
	}
	return out, nil
}

func stencilFace(st *StencilDesc) (gputypes.StencilFaceState, error) {
	cmp, err := parseCompare(st.Compare, gputypes.CompareFunctionAlways)
	if err != nil {
		return gputypes.StencilFaceState{}, err
	}
	var ops [3]gputypes.StencilOperation
	for i, s := range []string{st.Fail, st.DepthFail, st.Pass} {
		ops[i], err = parseName(s, gputypes.StencilOperationKeep,
			gputypes.StencilOperationKeep, gputypes.StencilOperationZero, gputypes.StencilOperationReplace,
			gputypes.StencilOperationInvert, gputypes.StencilOperationIncrementClamp,
			gputypes.StencilOperationDecrementClamp, gputypes.StencilOperationIncrementWrap,
			gputypes.StencilOperationDecrementWrap)
		if err != nil {
			return gputypes.StencilFaceState{}, err
		}
	}
	return gputypes.StencilFaceState{Compare: cmp, FailOp: ops[0], DepthFailOp: ops[1], PassOp: ops[2]}, nil
}

func parseCompare(s string, def gputypes.CompareFunction) (gputypes.CompareFunction, error) {
	return parseName(s, def,
		gputypes.CompareFunctionNever, gputypes.CompareFunctionLess, gputypes.CompareFunctionEqual,
		gputypes.CompareFunctionLessEqual, gputypes.CompareFunctionGreater, gputypes.CompareFunctionNotEqual,
		gputypes.CompareFunctionGreaterEqual, gputypes.CompareFunctionAlways)
}

func parseTopology(s string) (gputypes.PrimitiveTopology, error) {
	return parseName(s, gputypes.PrimitiveTopologyTriangleList,
		gputypes.PrimitiveTopologyTriangleList, gputypes.PrimitiveTopologyTriangleStrip,
		gputypes.PrimitiveTopologyLineList, gputypes.PrimitiveTopologyLineStrip,
		gputypes.PrimitiveTopologyPointList)
}

// parseName matches s against the String form of values, ignoring case,
// dashes and underscores. An empty s yields def.
func parseName[T fmt.Stringer](s string, def T, values ...T) (T, error) {
	if s == "" {
		return def, nil
	}
	want := normalizeName(s)
	for _, v := range values {
		if normalizeName(v.String()) == want {
			return v, nil
		}
	}
	return def, fmt.Errorf("unknown %T %q", def, s)
}

func normalizeName(s string) string {
	return strings.ToLower(strings.NewReplacer("-", "", "_", "", " ", "").Replace(s))
}
