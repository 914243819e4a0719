package scene

import "github.com/achilleasa/wavetrace/types"

// Triangles with |det| below this threshold are treated as parallel to the ray.
const triangleEpsilon float32 = 1e-8

// A mesh triangle referencing the scene vertex, normal and uv buffers. A
// negative normal or uv index means the attribute is not available.
type TriangleIdx struct {
	V        [3]int32
	N        [3]int32
	UV       [3]int32
	Material int32
}

func (tri *TriangleIdx) hasNormals() bool {
	return tri.N[0] >= 0 && tri.N[1] >= 0 && tri.N[2] >= 0
}

func (tri *TriangleIdx) hasUVs() bool {
	return tri.UV[0] >= 0 && tri.UV[1] >= 0 && tri.UV[2] >= 0
}

// Intersect a ray with a triangle using the Moller-Trumbore algorithm. On a
// hit the barycentric coordinates of vertices 1 and 2 are returned.
func intersectTriangle(v0, v1, v2 types.Vec3, ray types.Ray, tMax float32) (t float32, bary types.Vec2, hit bool) {
	edge1 := v1.Sub(v0)
	edge2 := v2.Sub(v0)
	pVec := ray.Dir.Cross(edge2)
	det := edge1.Dot(pVec)
	if det > -triangleEpsilon && det < triangleEpsilon {
		return 0, types.Vec2{}, false
	}
	invDet := 1.0 / det

	tVec := ray.Origin.Sub(v0)
	u := tVec.Dot(pVec) * invDet
	if u < 0 || u > 1 {
		return 0, types.Vec2{}, false
	}

	qVec := tVec.Cross(edge1)
	v := ray.Dir.Dot(qVec) * invDet
	if v < 0 || u+v > 1 {
		return 0, types.Vec2{}, false
	}

	t = edge2.Dot(qVec) * invDet
	if t <= 0 || t >= tMax {
		return 0, types.Vec2{}, false
	}
	return t, types.XY(u, v), true
}
