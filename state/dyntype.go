package state

import (
	"strconv"
	"sync"
)

// DynamicType is the dense integer identifying a category of state. All
// atoms of one kind and the managers that govern them share a type.
type DynamicType int

// Built-in dynamic types.
const (
	TypeShader DynamicType = iota
	TypeTexture
	TypeMaterial
	TypeBlend
	TypePolygonStyle
	TypeLineStyle
	TypePointStyle
	TypeStencil
	TypeDepth
	TypeAlpha
	TypeFog
	TypeLight

	numBuiltinTypes
)

var types = struct {
	mu     sync.RWMutex
	names  []string
	byName map[string]DynamicType
}{
	names: []string{
		TypeShader:       "shader",
		TypeTexture:      "texture",
		TypeMaterial:     "material",
		TypeBlend:        "blend",
		TypePolygonStyle: "polygon-style",
		TypeLineStyle:    "line-style",
		TypePointStyle:   "point-style",
		TypeStencil:      "stencil-test",
		TypeDepth:        "depth-test",
		TypeAlpha:        "alpha-test",
		TypeFog:          "fog",
		TypeLight:        "light",
	},
}

func init() {
	types.byName = make(map[string]DynamicType, len(types.names))
	for i, n := range types.names {
		types.byName[n] = DynamicType(i)
	}
}

// RegisterType returns the dynamic type for name, assigning the next free
// integer the first time a name is seen. Types are never reclaimed.
func RegisterType(name string) DynamicType {
	types.mu.Lock()
	defer types.mu.Unlock()

	if t, ok := types.byName[name]; ok {
		return t
	}
	t := DynamicType(len(types.names))
	types.names = append(types.names, name)
	types.byName[name] = t
	return t
}

// TypeByName looks up a registered or built-in type.
func TypeByName(name string) (DynamicType, bool) {
	types.mu.RLock()
	defer types.mu.RUnlock()
	t, ok := types.byName[name]
	return t, ok
}

// NumTypes returns the number of dynamic types known so far.
func NumTypes() int {
	types.mu.RLock()
	defer types.mu.RUnlock()
	return len(types.names)
}

// String returns the registered name of the type.
func (t DynamicType) String() string {
	types.mu.RLock()
	defer types.mu.RUnlock()
	if t >= 0 && int(t) < len(types.names) {
		return types.names[t]
	}
	return "type(" + strconv.Itoa(int(t)) + ")"
}
