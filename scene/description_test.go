package scene

import (
	"errors"
	"image"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/scenestate/state"
)

const crateScene = `
priority: [shader, texture, material]
shaders:
  lit:
    source: "@vertex fn vs_main() {}"
    vertex: vs_main
textures:
  checker: {size: 8, checker: 2, filter: nearest, address: clamp-to-edge}
lights:
  - {color: [1, 1, 1, 1], position: [0, 5, 0], range: 20}
  - {color: [0.2, 0.2, 0.2, 1], direction: [0, -1, 0], directional: true}
root:
  states:
    depth: {enabled: true, compare: less-equal, write: true}
    polygon: {cull: back, front: ccw}
  children:
    - transform: {translate: [0, 0, -5]}
      states:
        shader: lit
      children:
        - name: crate
          mesh: {box: [1, 1, 1]}
          transform: {translate: [1, 0, 0]}
          states:
            textures: [checker]
            material: {diffuse: [1, 0.5, 0.2, 1], shininess: 16}
        - name: floor
          mesh: {quad: [10, 10]}
          transform:
            rotate: {axis: [1, 0, 0], degrees: -90}
          states:
            blend: {enabled: true, mode: premultiplied}
            stencil: {enabled: true, compare: always, pass: replace, reference: 1}
`

func TestDescriptionBuild(t *testing.T) {
	desc, err := Decode(strings.NewReader(crateScene))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	s, err := desc.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(s.Drawables()) != 2 || len(s.Lights()) != 2 {
		t.Fatalf("expected 2 drawables and 2 lights, got %d/%d", len(s.Drawables()), len(s.Lights()))
	}

	crate, ok := s.Find("crate")
	if !ok {
		t.Fatal("crate not found")
	}
	if crate.Mesh().VertexCount() != 24 {
		t.Errorf("crate should be a box, has %d vertices", crate.Mesh().VertexCount())
	}
	if want := mgl32.Translate3D(1, 0, -5); !crate.Transform().ApproxEqual(want) {
		t.Errorf("crate transform: got %v, want %v", crate.Transform(), want)
	}

	s.Update()
	app := crate.Leaf().Appearance()
	depth, ok := app.Get(state.TypeDepth).(*state.AtomManager)
	if !ok {
		t.Fatal("crate should inherit the depth test")
	}
	if p := depth.Atom().Payload().(state.DepthTest); p.Compare != gputypes.CompareFunctionLessEqual || !p.Write {
		t.Errorf("depth payload: %+v", p)
	}
	shader := app.Get(state.TypeShader).(*state.AtomManager).Atom().Payload().(state.Shader)
	if shader.VertexEntry != "vs_main" || shader.Program.Label() != "lit" {
		t.Errorf("shader payload: %+v", shader)
	}
	tex, ok := app.Get(state.TypeTexture).(*state.UnitManager)
	if !ok || tex.Len() != 1 {
		t.Fatal("crate should bind one texture unit")
	}
	tp := tex.Unit(0).Payload().(state.Texture)
	if tp.Filter != gputypes.FilterModeNearest || tp.Address != gputypes.AddressModeClampToEdge {
		t.Errorf("texture sampling: %v %v", tp.Filter, tp.Address)
	}
	if b := tp.Image.Bounds(); b != image.Rect(0, 0, 8, 8) {
		t.Errorf("texture bounds: %v", b)
	}

	floor, _ := s.Find("floor")
	fapp := floor.Leaf().Appearance()
	if fapp.Get(state.TypeShader) == nil {
		t.Error("floor should inherit the shader")
	}
	blend := fapp.Get(state.TypeBlend).(*state.AtomManager).Atom().Payload().(state.Blend)
	if !blend.Enabled || blend.State != gputypes.BlendStatePremultiplied() {
		t.Errorf("blend payload: %+v", blend)
	}
	stencil := fapp.Get(state.TypeStencil).(*state.AtomManager).Atom().Payload().(state.StencilTest)
	if stencil.Front.PassOp != gputypes.StencilOperationReplace || stencil.ReadMask != 0xFF || stencil.Reference != 1 {
		t.Errorf("stencil payload: %+v", stencil)
	}
}

func TestDescriptionSharesNamedAtoms(t *testing.T) {
	desc, err := Decode(strings.NewReader(`
shaders:
  lit: {source: "@vertex fn vs_main() {}"}
root:
  children:
    - {name: a, mesh: {quad: [1, 1]}, states: {shader: lit}}
    - {name: b, mesh: {quad: [1, 1]}, states: {shader: lit}}
`))
	if err != nil {
		t.Fatal(err)
	}
	s, err := desc.Build()
	if err != nil {
		t.Fatal(err)
	}
	a, _ := s.Find("a")
	b, _ := s.Find("b")
	am := a.Leaf().Manager(state.TypeShader).(*state.AtomManager)
	bm := b.Leaf().Manager(state.TypeShader).(*state.AtomManager)
	if am == bm {
		t.Error("each node should get its own manager")
	}
	if am.Atom() != bm.Atom() {
		t.Error("a named shader should be one atom")
	}
}

func TestDescriptionErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown priority", "priority: [colour]\nroot: {}"},
		{"unknown shader", "root: {children: [{mesh: {quad: [1, 1]}, states: {shader: nope}}]}"},
		{"unknown texture", "root: {children: [{mesh: {quad: [1, 1]}, states: {textures: [nope]}}]}"},
		{"empty shader", "shaders: {lit: {}}\nroot: {}"},
		{"bad texture size", "textures: {t: {size: 0}}\nroot: {}"},
		{"bad filter", "textures: {t: {size: 4, filter: bicubic}}\nroot: {}"},
		{"mesh with children", "root: {children: [{mesh: {quad: [1, 1]}, children: [{}]}]}"},
		{"root mesh", "root: {mesh: {quad: [1, 1]}}"},
		{"index range", "root: {children: [{mesh: {vertices: [[0,0,0,0,0,1,0,0]], indices: [0, 1, 2]}}]}"},
		{"empty mesh", "root: {children: [{mesh: {}}]}"},
		{"bad compare", "root: {states: {depth: {enabled: true, compare: sometimes}}}"},
		{"bad blend", "root: {states: {blend: {enabled: true, mode: screen}}}"},
		{"bad merge mode", "root: {states: {fog: {color: [0,0,0,1]}}, merge: {fog: sideways}}"},
		{"merge without state", "root: {merge: {fog: lower}}"},
		{"unknown clear", "root: {clear: [colour]}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			desc, err := Decode(strings.NewReader(tt.yaml))
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if _, err := desc.Build(); err == nil {
				t.Error("expected a build error")
			} else if !errors.Is(err, ErrInvalidDescription) {
				t.Errorf("expected ErrInvalidDescription, got %v", err)
			}
		})
	}
}

func TestDecodeUnknownField(t *testing.T) {
	_, err := Decode(strings.NewReader("root: {colour: red}"))
	if err == nil {
		t.Fatal("unknown fields should be rejected")
	}
}

func TestLoadResolvesShaderFiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "lit.wgsl"), []byte("@fragment fn fs_main() {}"), 0o600); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "scene.yaml")
	src := "shaders: {lit: {file: lit.wgsl}}\nroot: {children: [{name: q, mesh: {quad: [1, 1]}, states: {shader: lit}}]}\n"
	if err := os.WriteFile(path, []byte(src), 0o600); err != nil {
		t.Fatal(err)
	}

	desc, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	s, err := desc.Build()
	if err != nil {
		t.Fatal(err)
	}
	q, _ := s.Find("q")
	sh := q.Leaf().Manager(state.TypeShader).(*state.AtomManager).Atom().Payload().(state.Shader)
	if sh.Program.Source() != "@fragment fn fs_main() {}" {
		t.Errorf("shader source: %q", sh.Program.Source())
	}

	if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("missing file should fail")
	}
}

func TestParseNameIgnoresSeparators(t *testing.T) {
	for _, s := range []string{"LessEqual", "less-equal", "less_equal", "LESSEQUAL"} {
		got, err := parseCompare(s, gputypes.CompareFunctionAlways)
		if err != nil || got != gputypes.CompareFunctionLessEqual {
			t.Errorf("%q: got %v, %v", s, got, err)
		}
	}
	if got, _ := parseCompare("", gputypes.CompareFunctionNever); got != gputypes.CompareFunctionNever {
		t.Errorf("empty name should yield the default, got %v", got)
	}
}
