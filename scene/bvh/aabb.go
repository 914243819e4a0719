package bvh

import (
	"math"

	"github.com/achilleasa/wavetrace/types"
)

type Axis uint8

const (
	XAxis Axis = iota
	YAxis
	ZAxis
)

// An axis-aligned bounding box.
type AABB struct {
	Min types.Vec3
	Max types.Vec3
}

// Create an empty box. Empty boxes are the identity element for Merge.
func EmptyAABB() AABB {
	return AABB{
		Min: types.Vec3{math.MaxFloat32, math.MaxFloat32, math.MaxFloat32},
		Max: types.Vec3{-math.MaxFloat32, -math.MaxFloat32, -math.MaxFloat32},
	}
}

// Returns true if the box does not enclose any point.
func (b AABB) IsEmpty() bool {
	return b.Min[0] > b.Max[0] || b.Min[1] > b.Max[1] || b.Min[2] > b.Max[2]
}

// Grow the box so that it encloses other.
func (b *AABB) Merge(other AABB) {
	b.Min = types.MinVec3(b.Min, other.Min)
	b.Max = types.MaxVec3(b.Max, other.Max)
}

// Grow the box so that it encloses p.
func (b *AABB) MergePoint(p types.Vec3) {
	b.Min = types.MinVec3(b.Min, p)
	b.Max = types.MaxVec3(b.Max, p)
}

// Get the box diagonal.
func (b AABB) Diagonal() types.Vec3 {
	return b.Max.Sub(b.Min)
}

// Get the box center.
func (b AABB) Center() types.Vec3 {
	return b.Min.Add(b.Max).Mul(0.5)
}

// Get the axis with the largest extent.
func (b AABB) MaxAxis() Axis {
	d := b.Diagonal()
	if d[0] > d[1] && d[0] > d[2] {
		return XAxis
	}
	if d[1] > d[2] {
		return YAxis
	}
	return ZAxis
}

// Get the box surface area. Empty boxes have zero area.
func (b AABB) Cost() float32 {
	if b.IsEmpty() {
		return 0
	}
	d := b.Diagonal()
	return 2.0 * (d[0]*d[1] + d[0]*d[2] + d[1]*d[2])
}

// Returns true if other lies entirely inside this box (boundary inclusive).
func (b AABB) Contains(other AABB) bool {
	for i := 0; i < 3; i++ {
		if other.Min[i] < b.Min[i] || other.Max[i] > b.Max[i] {
			return false
		}
	}
	return true
}

// Slab test against a ray whose reciprocal direction was precomputed. The
// intersection interval is clipped to [0, tMax]. On a hit, the entry distance
// of the ray into the box is returned.
//
// Zero direction components produce infinite reciprocals and the min/max
// formulation handles them directly. The one exception is a ray lying on a
// slab plane where 0*Inf yields NaN; its origin is then on the boundary of
// that slab so the axis places no constraint on the interval.
func (b AABB) Intersect(ray types.Ray, invDir types.Vec3, tMax float32) (tEntry float32, hit bool) {
	tEnter := float32(0.0)
	tExit := tMax

	for axis := 0; axis < 3; axis++ {
		tNear := (b.Min[axis] - ray.Origin[axis]) * invDir[axis]
		tFar := (b.Max[axis] - ray.Origin[axis]) * invDir[axis]
		if tNear != tNear || tFar != tFar {
			continue
		}

		tEnter = max(tEnter, min(tNear, tFar))
		tExit = min(tExit, max(tNear, tFar))
	}

	return tEnter, tEnter <= tExit
}
