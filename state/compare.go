package state

// DefaultPriority is the sort priority of state categories, most
// expensive to switch first.
var DefaultPriority = []DynamicType{
	TypeShader,
	TypeTexture,
	TypeMaterial,
	TypeBlend,
	TypePolygonStyle,
	TypeLineStyle,
	TypePointStyle,
	TypeStencil,
	TypeDepth,
	TypeAlpha,
}

// CompareAppearances orders appearances category by category in priority
// order. An appearance lacking a category sorts before one that has it,
// and a nil appearance sorts first.
func CompareAppearances(priority []DynamicType, a, b *Appearance) int {
	switch {
	case a == b:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	for _, t := range priority {
		ma, mb := a.Get(t), b.Get(t)
		switch {
		case ma == nil && mb == nil:
			continue
		case ma == nil:
			return -1
		case mb == nil:
			return 1
		}
		if c := ma.Compare(mb); c != 0 {
			return c
		}
	}
	return 0
}

// Comparator returns CompareAppearances bound to priority.
func Comparator(priority []DynamicType) func(a, b *Appearance) int {
	p := append([]DynamicType(nil), priority...)
	return func(a, b *Appearance) int {
		return CompareAppearances(p, a, b)
	}
}
