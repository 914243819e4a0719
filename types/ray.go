package types

// The distance spawned rays are pushed along their direction so that they do
// not re-intersect the surface they originate from.
const SpawnOffset float32 = 0.001

type Ray struct {
	Origin Vec3
	Dir    Vec3
}

// Get the point at distance t along the ray.
func (r Ray) At(t float32) Vec3 {
	return r.Origin.Add(r.Dir.Mul(t))
}

// Create a ray whose origin is offset along dir by SpawnOffset.
func SpawnRay(origin, dir Vec3) Ray {
	return Ray{
		Origin: origin.Add(dir.Mul(SpawnOffset)),
		Dir:    dir,
	}
}
