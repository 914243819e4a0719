package scene

import (
	"math"

	"github.com/achilleasa/wavetrace/scene/bvh"
	"github.com/achilleasa/wavetrace/types"
)

type GeomType uint8

const (
	SphereGeom GeomType = iota
	CubeGeom
)

func (t GeomType) String() string {
	switch t {
	case SphereGeom:
		return "sphere"
	case CubeGeom:
		return "cube"
	}
	return "unknown"
}

// Object space dimensions of the analytic shapes: spheres have radius 0.5
// and cubes span [-0.5, 0.5] on every axis.
const (
	sphereRadius float32 = 0.5
	cubeHalfSize float32 = 0.5
)

// An analytic shape instanced into the scene with a T*R*S transform.
type Geom struct {
	Type       GeomType
	MaterialID int32

	Translation types.Vec3
	// Rotation angles in degrees.
	Rotation types.Vec3
	Scale    types.Vec3

	Transform        types.Mat4
	InverseTransform types.Mat4
	InvTranspose     types.Mat4
}

// Create a new geom and calculate its transformation matrices.
func NewGeom(geomType GeomType, materialID int32, translation, rotation, scale types.Vec3) Geom {
	g := Geom{
		Type:        geomType,
		MaterialID:  materialID,
		Translation: translation,
		Rotation:    rotation,
		Scale:       scale,
	}
	g.Transform = types.TRS(translation, rotation, scale)
	g.InverseTransform = g.Transform.Inv()
	g.InvTranspose = g.InverseTransform.Transpose()
	return g
}

// Get the world space bounding box by transforming the object space box corners.
func (g *Geom) BBox() bvh.AABB {
	box := bvh.EmptyAABB()
	for corner := 0; corner < 8; corner++ {
		local := types.XYZ(-cubeHalfSize, -cubeHalfSize, -cubeHalfSize)
		if corner&1 != 0 {
			local[0] = cubeHalfSize
		}
		if corner&2 != 0 {
			local[1] = cubeHalfSize
		}
		if corner&4 != 0 {
			local[2] = cubeHalfSize
		}
		box.MergePoint(g.Transform.TransformPoint(local))
	}
	return box
}

// Get the world space center.
func (g *Geom) Center() types.Vec3 {
	return g.Transform.TransformPoint(types.Vec3{})
}

// Intersect a world space ray with the geom. The returned t is measured in
// world units along the ray; uv are the local surface coordinates.
func (g *Geom) Intersect(ray types.Ray, tMax float32) (t float32, uv types.Vec2, hit bool) {
	origin := g.InverseTransform.TransformPoint(ray.Origin)
	dir := g.InverseTransform.TransformDir(ray.Dir)

	switch g.Type {
	case SphereGeom:
		t, hit = intersectUnitSphere(origin, dir, tMax)
	case CubeGeom:
		t, hit = intersectUnitCube(origin, dir, tMax)
	}
	if !hit {
		return 0, types.Vec2{}, false
	}

	return t, g.localUV(origin.Add(dir.Mul(t))), true
}

// Calculate the world space position and outward facing geometric normal for
// a hit at distance t along ray.
func (g *Geom) Surface(ray types.Ray, t float32) (position, normal types.Vec3) {
	position = ray.At(t)
	local := g.InverseTransform.TransformPoint(position)

	var localNormal types.Vec3
	switch g.Type {
	case SphereGeom:
		localNormal = local
	case CubeGeom:
		axis := 0
		for i := 1; i < 3; i++ {
			if abs32(local[i]) > abs32(local[axis]) {
				axis = i
			}
		}
		localNormal[axis] = float32(math.Copysign(1, float64(local[axis])))
	}

	return position, g.InvTranspose.TransformDir(localNormal).Normalize()
}

// Spherical coordinates for spheres; face-projected coordinates for cubes.
func (g *Geom) localUV(p types.Vec3) types.Vec2 {
	switch g.Type {
	case SphereGeom:
		n := p.Normalize()
		phi := math.Atan2(float64(n[2]), float64(n[0]))
		if phi < 0 {
			phi += 2 * math.Pi
		}
		theta := math.Acos(float64(types.Clamp(n[1], -1, 1)))
		return types.XY(float32(phi/(2*math.Pi)), float32(1-theta/math.Pi))
	default:
		axis := 0
		for i := 1; i < 3; i++ {
			if abs32(p[i]) > abs32(p[axis]) {
				axis = i
			}
		}
		u, v := p[(axis+1)%3], p[(axis+2)%3]
		return types.XY(u+cubeHalfSize, v+cubeHalfSize)
	}
}

func intersectUnitSphere(origin, dir types.Vec3, tMax float32) (float32, bool) {
	a := dir.Dot(dir)
	halfB := origin.Dot(dir)
	c := origin.Dot(origin) - sphereRadius*sphereRadius
	disc := halfB*halfB - a*c
	if disc < 0 || a == 0 {
		return 0, false
	}

	sq := float32(math.Sqrt(float64(disc)))
	if t := (-halfB - sq) / a; t > 0 && t < tMax {
		return t, true
	}
	if t := (-halfB + sq) / a; t > 0 && t < tMax {
		return t, true
	}
	return 0, false
}

func intersectUnitCube(origin, dir types.Vec3, tMax float32) (float32, bool) {
	box := bvh.AABB{
		Min: types.Splat3(-cubeHalfSize),
		Max: types.Splat3(cubeHalfSize),
	}

	// Find the exit distance using the open interval and then check
	// whether we enter the box in front of the ray origin.
	tNear := float32(-math.MaxFloat32)
	tFar := float32(math.MaxFloat32)
	invDir := dir.Inv()
	for axis := 0; axis < 3; axis++ {
		t0 := (box.Min[axis] - origin[axis]) * invDir[axis]
		t1 := (box.Max[axis] - origin[axis]) * invDir[axis]
		if t0 != t0 || t1 != t1 {
			continue
		}
		tNear = max(tNear, min(t0, t1))
		tFar = min(tFar, max(t0, t1))
	}

	if tNear > tFar {
		return 0, false
	}
	if tNear > 0 && tNear < tMax {
		return tNear, true
	}
	if tFar > 0 && tFar < tMax {
		return tFar, true
	}
	return 0, false
}

func abs32(v float32) float32 {
	return float32(math.Abs(float64(v)))
}
