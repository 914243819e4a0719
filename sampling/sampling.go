// Package sampling provides random number sources and the warping functions
// used to turn uniform samples into directions and lens positions.
package sampling

import (
	"math"
	"math/rand"

	"github.com/achilleasa/wavetrace/types"
)

// Sampler provides uniform random samples in [0, 1). Samplers are not safe
// for concurrent use; each worker owns its own.
type Sampler interface {
	Get1D() float32
	Get2D() types.Vec2
}

// RandomSampler wraps a math/rand generator.
type RandomSampler struct {
	random *rand.Rand
}

// Create a sampler seeded with seed.
func NewRandomSampler(seed int64) *RandomSampler {
	return &RandomSampler{random: rand.New(rand.NewSource(seed))}
}

func (r *RandomSampler) Get1D() float32 {
	return r.random.Float32()
}

func (r *RandomSampler) Get2D() types.Vec2 {
	return types.XY(r.random.Float32(), r.random.Float32())
}

// Derive a per-stream seed from a base seed, an iteration and a stream index
// (splitmix64 finalizer) so that independent workers draw uncorrelated numbers.
func Seed(base int64, iteration uint32, stream int) int64 {
	z := uint64(base) + uint64(iteration)*0x9e3779b97f4a7c15 + uint64(stream)*0xbf58476d1ce4e5b9
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return int64(z ^ (z >> 31))
}

// Map a uniform sample to a point on the unit disk using the concentric mapping.
func ConcentricDisk(u types.Vec2) types.Vec2 {
	ox := 2*u[0] - 1
	oy := 2*u[1] - 1
	if ox == 0 && oy == 0 {
		return types.Vec2{}
	}

	var r, theta float64
	if math.Abs(float64(ox)) > math.Abs(float64(oy)) {
		r = float64(ox)
		theta = math.Pi / 4 * float64(oy/ox)
	} else {
		r = float64(oy)
		theta = math.Pi/2 - math.Pi/4*float64(ox/oy)
	}
	return types.XY(float32(r*math.Cos(theta)), float32(r*math.Sin(theta)))
}

// Sample a cosine weighted direction in the local hemisphere around +z.
func CosineHemisphere(u types.Vec2) types.Vec3 {
	d := ConcentricDisk(u)
	z := float32(math.Sqrt(math.Max(0, float64(1-d[0]*d[0]-d[1]*d[1]))))
	return types.XYZ(d[0], d[1], z)
}

// The pdf of CosineHemisphere with respect to solid angle.
func CosineHemispherePdf(cosTheta float32) float32 {
	return max(cosTheta, 0) / math.Pi
}

// Sample a direction uniformly on the unit sphere.
func UniformSphere(u types.Vec2) types.Vec3 {
	z := 1 - 2*u[0]
	r := float32(math.Sqrt(math.Max(0, float64(1-z*z))))
	phi := 2 * math.Pi * float64(u[1])
	return types.XYZ(r*float32(math.Cos(phi)), r*float32(math.Sin(phi)), z)
}

// The pdf of UniformSphere with respect to solid angle.
func UniformSpherePdf() float32 {
	return 1 / (4 * math.Pi)
}
