package scene

import "github.com/achilleasa/wavetrace/types"

// The raw result of a ray/scene intersection query.
type Intersection struct {
	// Index of the intersected primitive; -1 for misses.
	ShapeID    int32
	MaterialID int32
	T          float32

	// Local surface coordinates (spherical/face uv for geoms, barycentrics
	// for triangles).
	UV types.Vec2
}

func (i *Intersection) Reset() {
	i.ShapeID = -1
	i.MaterialID = -1
	i.T = -1
	i.UV = types.Vec2{}
}

func (i *Intersection) Hit() bool {
	return i.ShapeID >= 0 && i.T > 0
}

// An intersection resolved into world space data ready for shading.
type ShadeableIntersection struct {
	T          float32
	Position   types.Vec3
	Normal     types.Vec3
	UV         types.Vec2
	MaterialID int32
}

func (si *ShadeableIntersection) Reset() {
	si.T = -1
	si.MaterialID = -1
}

// Returns true if the intersection refers to a valid surface point.
func (si *ShadeableIntersection) Valid() bool {
	return si.T > 0 && si.MaterialID >= 0
}
