package recording

import (
	"maps"

	"github.com/gogpu/scenestate/backend"
	"github.com/gogpu/scenestate/resource"
	"github.com/gogpu/scenestate/state"
)

// ResourcePool stores the objects referenced by recording commands.
// Objects are stored once; adding the same object again returns its
// existing reference.
//
// Geometries are deduplicated by interface equality and must therefore
// have comparable dynamic types, such as pointers.
//
// ResourcePool is not safe for concurrent use. If concurrent access is needed,
// external synchronization must be provided.
type ResourcePool struct {
	atoms      []*state.Atom
	resources  []resource.Resource
	geometries []backend.Geometry

	atomRefs     map[*state.Atom]AtomRef
	resourceRefs map[resource.ID]ResourceRef
	geometryRefs map[backend.Geometry]GeometryRef
}

// NewResourcePool creates an empty resource pool with pre-allocated capacity.
func NewResourcePool() *ResourcePool {
	return &ResourcePool{
		atoms:        make([]*state.Atom, 0, 64),
		resources:    make([]resource.Resource, 0, 32),
		geometries:   make([]backend.Geometry, 0, 32),
		atomRefs:     make(map[*state.Atom]AtomRef),
		resourceRefs: make(map[resource.ID]ResourceRef),
		geometryRefs: make(map[backend.Geometry]GeometryRef),
	}
}

// AddAtom adds an atom to the pool and returns its reference.
// A nil atom yields InvalidRef.
func (p *ResourcePool) AddAtom(a *state.Atom) AtomRef {
	if a == nil {
		return AtomRef(InvalidRef)
	}
	if ref, ok := p.atomRefs[a]; ok {
		return ref
	}
	p.atoms = append(p.atoms, a)
	// #nosec G115 -- pool size is bounded by available memory, well under uint32 max
	ref := AtomRef(uint32(len(p.atoms) - 1))
	p.atomRefs[a] = ref
	return ref
}

// GetAtom returns the atom for the given reference.
// Returns nil if the reference is invalid.
func (p *ResourcePool) GetAtom(ref AtomRef) *state.Atom {
	if int(ref) >= len(p.atoms) {
		return nil
	}
	return p.atoms[ref]
}

// AtomCount returns the number of atoms in the pool.
func (p *ResourcePool) AtomCount() int {
	return len(p.atoms)
}

// AddResource adds a resource to the pool and returns its reference.
// Resources are keyed by ID.
func (p *ResourcePool) AddResource(r resource.Resource) ResourceRef {
	if r == nil {
		return ResourceRef(InvalidRef)
	}
	if ref, ok := p.resourceRefs[r.ID()]; ok {
		return ref
	}
	p.resources = append(p.resources, r)
	// #nosec G115 -- pool size is bounded by available memory, well under uint32 max
	ref := ResourceRef(uint32(len(p.resources) - 1))
	p.resourceRefs[r.ID()] = ref
	return ref
}

// GetResource returns the resource for the given reference.
// Returns nil if the reference is invalid.
func (p *ResourcePool) GetResource(ref ResourceRef) resource.Resource {
	if int(ref) >= len(p.resources) {
		return nil
	}
	return p.resources[ref]
}

// ResourceCount returns the number of resources in the pool.
func (p *ResourcePool) ResourceCount() int {
	return len(p.resources)
}

// AddGeometry adds a geometry to the pool and returns its reference.
func (p *ResourcePool) AddGeometry(g backend.Geometry) GeometryRef {
	if g == nil {
		return GeometryRef(InvalidRef)
	}
	if ref, ok := p.geometryRefs[g]; ok {
		return ref
	}
	p.geometries = append(p.geometries, g)
	// #nosec G115 -- pool size is bounded by available memory, well under uint32 max
	ref := GeometryRef(uint32(len(p.geometries) - 1))
	p.geometryRefs[g] = ref
	return ref
}

// GetGeometry returns the geometry for the given reference.
// Returns nil if the reference is invalid.
func (p *ResourcePool) GetGeometry(ref GeometryRef) backend.Geometry {
	if int(ref) >= len(p.geometries) {
		return nil
	}
	return p.geometries[ref]
}

// GeometryCount returns the number of geometries in the pool.
func (p *ResourcePool) GeometryCount() int {
	return len(p.geometries)
}

// Clear removes all objects from the pool.
// The pool can be reused after clearing.
func (p *ResourcePool) Clear() {
	clear(p.atoms)
	p.atoms = p.atoms[:0]
	clear(p.resources)
	p.resources = p.resources[:0]
	clear(p.geometries)
	p.geometries = p.geometries[:0]
	clear(p.atomRefs)
	clear(p.resourceRefs)
	clear(p.geometryRefs)
}

// Clone creates a copy of the resource pool.
// The pooled objects themselves are shared.
func (p *ResourcePool) Clone() *ResourcePool {
	c := &ResourcePool{
		atoms:        append(make([]*state.Atom, 0, len(p.atoms)), p.atoms...),
		resources:    append(make([]resource.Resource, 0, len(p.resources)), p.resources...),
		geometries:   append(make([]backend.Geometry, 0, len(p.geometries)), p.geometries...),
		atomRefs:     maps.Clone(p.atomRefs),
		resourceRefs: maps.Clone(p.resourceRefs),
		geometryRefs: maps.Clone(p.geometryRefs),
	}
	return c
}
