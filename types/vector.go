package types

import (
	"math"

	"golang.org/x/image/math/f32"
)

const floatCmpEpsilon float32 = 1e-6

type Vec2 f32.Vec2
type Vec3 f32.Vec3
type Vec4 f32.Vec4

// Define a 2 component vector.
func XY(x, y float32) Vec2 {
	return Vec2{x, y}
}

// Define a 3 component vector.
func XYZ(x, y, z float32) Vec3 {
	return Vec3{x, y, z}
}

// Define a 3 component vector with all components set to s.
func Splat3(s float32) Vec3 {
	return Vec3{s, s, s}
}

// Define a 4 component vector.
func XYZW(x, y, z, w float32) Vec4 {
	return Vec4{x, y, z, w}
}

// Expand a 2 component vector to a Vec3
func (v Vec2) Vec3(z float32) Vec3 {
	return Vec3{v[0], v[1], z}
}

// Subtract a vector.
func (v Vec2) Sub(v2 Vec2) Vec2 {
	return Vec2{v[0] - v2[0], v[1] - v2[1]}
}

// Add a vector.
func (v Vec2) Add(v2 Vec2) Vec2 {
	return Vec2{v[0] + v2[0], v[1] + v2[1]}
}

// Multiply a 2 component vector with a scalar.
func (v Vec2) Mul(s float32) Vec2 {
	return Vec2{v[0] * s, v[1] * s}
}

// Calculate dot product of 2 vectors
func (v Vec2) Dot(v2 Vec2) float32 {
	return v[0]*v2[0] + v[1]*v2[1]
}

// Expand a 3 component vector to a Vec4.
func (v Vec3) Vec4(w float32) Vec4 {
	return Vec4{v[0], v[1], v[2], w}
}

// Add a vector.
func (v Vec3) Add(v2 Vec3) Vec3 {
	return Vec3{v[0] + v2[0], v[1] + v2[1], v[2] + v2[2]}
}

// Subtract a vector.
func (v Vec3) Sub(v2 Vec3) Vec3 {
	return Vec3{v[0] - v2[0], v[1] - v2[1], v[2] - v2[2]}
}

// Multiply a 3 component vector with a scalar.
func (v Vec3) Mul(s float32) Vec3 {
	return Vec3{v[0] * s, v[1] * s, v[2] * s}
}

// Multiply two vectors component-wise.
func (v Vec3) MulVec(v2 Vec3) Vec3 {
	return Vec3{v[0] * v2[0], v[1] * v2[1], v[2] * v2[2]}
}

// Negate vector.
func (v Vec3) Neg() Vec3 {
	return Vec3{-v[0], -v[1], -v[2]}
}

// Component-wise reciprocal. Zero components map to signed infinities which
// is exactly what the slab test expects.
func (v Vec3) Inv() Vec3 {
	return Vec3{1.0 / v[0], 1.0 / v[1], 1.0 / v[2]}
}

// Component-wise e^v.
func (v Vec3) Exp() Vec3 {
	return Vec3{
		float32(math.Exp(float64(v[0]))),
		float32(math.Exp(float64(v[1]))),
		float32(math.Exp(float64(v[2]))),
	}
}

// Get 3 component vector length.
func (v Vec3) Len() float32 {
	return float32(math.Sqrt(float64(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])))
}

// Normalize 3 component vector. Vectors whose length is close to zero
// normalize to the zero vector.
func (v Vec3) Normalize() Vec3 {
	l := v.Len()
	if l < floatCmpEpsilon {
		return Vec3{}
	}
	l = 1.0 / l
	return Vec3{v[0] * l, v[1] * l, v[2] * l}
}

// Calculate dot product of 2 vectors
func (v Vec3) Dot(v2 Vec3) float32 {
	return v[0]*v2[0] + v[1]*v2[1] + v[2]*v2[2]
}

// Calculate cross product of 2 vectors.
func (v Vec3) Cross(v2 Vec3) Vec3 {
	return Vec3{v[1]*v2[2] - v[2]*v2[1], v[2]*v2[0] - v[0]*v2[2], v[0]*v2[1] - v[1]*v2[0]}
}

// Get the largest vector component.
func (v Vec3) MaxComponent() float32 {
	return max(v[0], v[1], v[2])
}

// Get the perceived luminance of an RGB value (Rec. 709 weights).
func (v Vec3) Luminance() float32 {
	return 0.2126*v[0] + 0.7152*v[1] + 0.0722*v[2]
}

// Returns true if all vector components are neither NaN nor infinite.
func (v Vec3) IsFinite() bool {
	for _, c := range v {
		f := float64(c)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}

// Returns true if all vector components are zero.
func (v Vec3) IsZero() bool {
	return v[0] == 0 && v[1] == 0 && v[2] == 0
}

// Reduce a 4 component vector to a Vec3.
func (v Vec4) Vec3() Vec3 {
	return Vec3{v[0], v[1], v[2]}
}

// Subtract a vector.
func (v Vec4) Sub(v2 Vec4) Vec4 {
	return Vec4{v[0] - v2[0], v[1] - v2[1], v[2] - v2[2], v[3] - v2[3]}
}

// Multiply 4 component vector with scalar.
func (v Vec4) Mul(s float32) Vec4 {
	return Vec4{v[0] * s, v[1] * s, v[2] * s, v[3] * s}
}

// Calc min component from two vectors
func MinVec3(v1, v2 Vec3) Vec3 {
	out := v1
	if v2[0] < out[0] {
		out[0] = v2[0]
	}
	if v2[1] < out[1] {
		out[1] = v2[1]
	}
	if v2[2] < out[2] {
		out[2] = v2[2]
	}
	return out
}

// Calc maxcomponent from two vectors
func MaxVec3(v1, v2 Vec3) Vec3 {
	out := v1
	if v2[0] > out[0] {
		out[0] = v2[0]
	}
	if v2[1] > out[1] {
		out[1] = v2[1]
	}
	if v2[2] > out[2] {
		out[2] = v2[2]
	}
	return out
}

// Linearly interpolate between two vectors.
func Lerp3(v1, v2 Vec3, t float32) Vec3 {
	return v1.Mul(1 - t).Add(v2.Mul(t))
}

// Compare two vectors using an epsilon value.
func ApproxEqual(v1, v2 Vec3, eps float32) bool {
	for i := 0; i < 3; i++ {
		d := v1[i] - v2[i]
		if d < -eps || d > eps {
			return false
		}
	}
	return true
}

// Build two unit vectors that together with the unit vector n form a right
// handed orthonormal basis.
func OrthonormalBasis(n Vec3) (tangent, bitangent Vec3) {
	sign := float32(math.Copysign(1, float64(n[2])))
	a := -1.0 / (sign + n[2])
	b := n[0] * n[1] * a
	tangent = Vec3{1 + sign*n[0]*n[0]*a, sign * b, -sign * n[0]}
	bitangent = Vec3{b, sign + n[1]*n[1]*a, -n[1]}
	return tangent, bitangent
}

// Transform a vector from the local frame around unit normal n (z = n) to
// the frame n is expressed in.
func LocalToWorld(n, v Vec3) Vec3 {
	tangent, bitangent := OrthonormalBasis(n)
	return tangent.Mul(v[0]).Add(bitangent.Mul(v[1])).Add(n.Mul(v[2]))
}

// Reflect v about unit normal n. Both vectors point away from the surface.
func Reflect(v, n Vec3) Vec3 {
	return n.Mul(2 * n.Dot(v)).Sub(v)
}

// Clamp a value to the [lo, hi] range.
func Clamp(v, lo, hi float32) float32 {
	return min(max(v, lo), hi)
}

// Transform a vector into the local frame around unit normal n (z = n).
func WorldToLocal(n, v Vec3) Vec3 {
	tangent, bitangent := OrthonormalBasis(n)
	return Vec3{v.Dot(tangent), v.Dot(bitangent), v.Dot(n)}
}
