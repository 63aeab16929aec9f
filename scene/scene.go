package scene

import (
	"errors"
	"fmt"
	"slices"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/scenestate/queue"
	"github.com/gogpu/scenestate/render"
	"github.com/gogpu/scenestate/resource"
	"github.com/gogpu/scenestate/state"
)

// Scene errors.
var (
	// ErrNotInScene is returned for drawables, lights or nodes that belong
	// to another scene or were removed.
	ErrNotInScene = errors.New("scene: not part of this scene")

	// ErrNilMesh is returned when a drawable is added without geometry.
	ErrNilMesh = errors.New("scene: nil mesh")
)

// Drawable is a mesh placed in the scene. Its leaf node carries the state
// the mesh is drawn with.
type Drawable struct {
	Name string

	leaf  *state.Node
	mesh  *Mesh
	atom  *queue.RenderAtom
	scene *Scene
}

// Leaf returns the node whose merged state the drawable uses.
func (d *Drawable) Leaf() *state.Node { return d.leaf }

// Mesh returns the geometry.
func (d *Drawable) Mesh() *Mesh { return d.mesh }

// Atom returns the render atom. It is reused from frame to frame.
func (d *Drawable) Atom() *queue.RenderAtom { return d.atom }

// Transform returns the model to world transform.
func (d *Drawable) Transform() mgl32.Mat4 { return d.atom.Transform }

// SetTransform places the drawable.
func (d *Drawable) SetTransform(m mgl32.Mat4) { d.atom.Transform = m }

// Scene is a state tree with meshes on its leaves and a set of lights.
// It implements render.Source.
//
// A Scene is not safe for concurrent use.
type Scene struct {
	tree      *state.Tree
	bin       *state.AppearanceBin
	drawables []*Drawable
	lights    []*render.Light
}

// New creates an empty scene whose leaves are ordered by priority. A nil
// priority uses state.DefaultPriority.
func New(priority []state.DynamicType) *Scene {
	if priority == nil {
		priority = state.DefaultPriority
	}
	bin := state.NewAppearanceBin(priority)
	tree, err := state.NewTree(state.NewBranch(), bin)
	if err != nil {
		// A fresh branch always makes a valid root.
		panic(err)
	}
	return &Scene{tree: tree, bin: bin}
}

// Root returns the root branch.
func (s *Scene) Root() *state.Node { return s.tree.Root() }

// Tree returns the state tree.
func (s *Scene) Tree() *state.Tree { return s.tree }

// Drawables returns the drawables in insertion order.
func (s *Scene) Drawables() []*Drawable { return slices.Clone(s.drawables) }

// Find returns the first drawable with the given name.
func (s *Scene) Find(name string) (*Drawable, bool) {
	for _, d := range s.drawables {
		if d.Name == name {
			return d, true
		}
	}
	return nil, false
}

// Lights returns the lights.
func (s *Scene) Lights() []*render.Light { return slices.Clone(s.lights) }

// AddBranch creates a branch under parent, or under the root when parent
// is nil. The managers are attached to the new branch.
func (s *Scene) AddBranch(parent *state.Node, ms ...state.Manager) (*state.Node, error) {
	n := state.NewBranch()
	if err := s.attach(parent, n, ms); err != nil {
		return nil, err
	}
	return n, nil
}

// AddMesh creates a leaf under parent, or under the root when parent is
// nil, and places mesh on it with transform.
func (s *Scene) AddMesh(parent *state.Node, mesh *Mesh, transform mgl32.Mat4, ms ...state.Manager) (*Drawable, error) {
	if mesh == nil {
		return nil, ErrNilMesh
	}
	leaf := state.NewLeaf()
	if err := s.attach(parent, leaf, ms); err != nil {
		return nil, err
	}
	atom := queue.NewRenderAtom(mesh, leaf.Appearance())
	atom.Transform = transform
	atom.Bounds = mesh.Bounds()
	d := &Drawable{leaf: leaf, mesh: mesh, atom: atom, scene: s}
	atom.Data = d
	leaf.Data = d
	s.drawables = append(s.drawables, d)
	return d, nil
}

func (s *Scene) attach(parent, n *state.Node, ms []state.Manager) error {
	if parent == nil {
		parent = s.Root()
	}
	if parent.Tree() != s.tree {
		return ErrNotInScene
	}
	for _, m := range ms {
		if err := n.AddManager(m); err != nil {
			return err
		}
	}
	if err := parent.AddChild(n); err != nil {
		return fmt.Errorf("scene: attach node: %w", err)
	}
	return nil
}

// Remove detaches the drawable and its leaf from the scene.
func (s *Scene) Remove(d *Drawable) error {
	i := slices.Index(s.drawables, d)
	if i < 0 {
		return ErrNotInScene
	}
	if p := d.leaf.Parent(); p != nil {
		if err := p.RemoveChild(d.leaf); err != nil {
			return err
		}
	}
	s.drawables = slices.Delete(s.drawables, i, i+1)
	d.atom.ClearQueueData()
	d.scene = nil
	return nil
}

// AddLight adds a light influencing every drawable in range.
func (s *Scene) AddLight(l *render.Light) {
	if l != nil && !slices.Contains(s.lights, l) {
		s.lights = append(s.lights, l)
	}
}

// RemoveLight removes a light.
func (s *Scene) RemoveLight(l *render.Light) error {
	i := slices.Index(s.lights, l)
	if i < 0 {
		return ErrNotInScene
	}
	s.lights = slices.Delete(s.lights, i, i+1)
	return nil
}

// Resources returns the buffers of every mesh and the resources used by
// the atoms of every drawable, each once. Merged state is only current
// after Update.
func (s *Scene) Resources() []resource.Resource {
	var out []resource.Resource
	seen := make(map[resource.ID]bool)
	add := func(r resource.Resource) {
		if r != nil && !seen[r.ID()] {
			seen[r.ID()] = true
			out = append(out, r)
		}
	}
	for _, d := range s.drawables {
		add(d.mesh.vertices)
		if d.mesh.indices != nil {
			add(d.mesh.indices)
		}
		for _, a := range d.leaf.Appearance().Atoms() {
			if u, ok := a.Payload().(state.ResourceUser); ok {
				for _, r := range u.Resources() {
					add(r)
				}
			}
		}
	}
	return out
}

// SetUpdatePolicy sets the update policy of every resource in the scene.
func (s *Scene) SetUpdatePolicy(p resource.UpdatePolicy) {
	for _, r := range s.Resources() {
		r.SetUpdatePolicy(p)
	}
}

// Update implements render.Source. It resubmits the tree when state
// changed since the last update.
func (s *Scene) Update() { s.tree.Update() }

// Visit implements render.Source. Drawables are added in bin order, so
// leaves that share state are adjacent even for queues that keep
// submission order.
func (s *Scene) Visit(q queue.RenderQueue, _ *queue.View) {
	for _, leaf := range s.bin.Leaves() {
		if d, ok := leaf.Data.(*Drawable); ok && d.scene == s {
			q.Add(d.atom)
		}
	}
	for _, l := range s.lights {
		q.AddInfluence(l)
	}
}

var _ render.Source = (*Scene)(nil)
