package types

import "github.com/go-gl/mathgl/mgl32"

// Matrices are column-major, identical in layout to mgl32.
type Mat3 mgl32.Mat3
type Mat4 mgl32.Mat4

// Create 4x4 identity matrix.
func Ident4() Mat4 {
	return Mat4(mgl32.Ident4())
}

// Build a T*R*S transformation matrix. Rotation angles are specified in
// degrees; R is composed as Rx*Ry*Rz.
func TRS(translation, rotationDeg, scale Vec3) Mat4 {
	t := mgl32.Translate3D(translation[0], translation[1], translation[2])
	rx := mgl32.HomogRotate3DX(mgl32.DegToRad(rotationDeg[0]))
	ry := mgl32.HomogRotate3DY(mgl32.DegToRad(rotationDeg[1]))
	rz := mgl32.HomogRotate3DZ(mgl32.DegToRad(rotationDeg[2]))
	s := mgl32.Scale3D(scale[0], scale[1], scale[2])
	return Mat4(t.Mul4(rx).Mul4(ry).Mul4(rz).Mul4(s))
}

// Multiply two matrices.
func (m Mat4) Mul4(m2 Mat4) Mat4 {
	return Mat4(mgl32.Mat4(m).Mul4(mgl32.Mat4(m2)))
}

// Multiply matrix with a column vector.
func (m Mat4) Mul4x1(v Vec4) Vec4 {
	return Vec4(mgl32.Mat4(m).Mul4x1(mgl32.Vec4(v)))
}

// Invert matrix. Singular matrices invert to the zero matrix.
func (m Mat4) Inv() Mat4 {
	return Mat4(mgl32.Mat4(m).Inv())
}

// Transpose matrix.
func (m Mat4) Transpose() Mat4 {
	return Mat4(mgl32.Mat4(m).Transpose())
}

// Transform a point (w = 1).
func (m Mat4) TransformPoint(p Vec3) Vec3 {
	return m.Mul4x1(p.Vec4(1)).Vec3()
}

// Transform a direction (w = 0). The result is not normalized.
func (m Mat4) TransformDir(d Vec3) Vec3 {
	return m.Mul4x1(d.Vec4(0)).Vec3()
}

// Extract the top-left 3x3 matrix from a 4x4 matrix.
func (m Mat4) Mat3() Mat3 {
	return Mat3{
		m[0], m[1], m[2],
		m[4], m[5], m[6],
		m[8], m[9], m[10],
	}
}

// Multiply 3x3 matrix with a column vector.
func (m Mat3) Mul3x1(v Vec3) Vec3 {
	return Vec3(mgl32.Mat3(m).Mul3x1(mgl32.Vec3(v)))
}

// Rotate vector v around axis by angle (radians).
func RotateAround(v, axis Vec3, angle float32) Vec3 {
	q := mgl32.QuatRotate(angle, mgl32.Vec3(axis.Normalize()))
	return Vec3(q.Rotate(mgl32.Vec3(v)))
}
