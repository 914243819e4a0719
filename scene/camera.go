package scene

import (
	"fmt"
	"math"

	"github.com/achilleasa/wavetrace/sampling"
	"github.com/achilleasa/wavetrace/types"
)

var worldUp = types.XYZ(0, 1, 0)

// Stores the ray directions at the four corners of the camera frustrum. It
// is used as a shortcut for generating per pixel rays via interpolation of
// the corner rays.
type Frustrum [4]types.Vec3

func (fr Frustrum) String() string {
	return fmt.Sprintf(
		"Frustrum Rays:\nTL : (%3.3f, %3.3f, %3.3f)\nTR : (%3.3f, %3.3f, %3.3f)\nBL : (%3.3f, %3.3f, %3.3f)\nBR : (%3.3f, %3.3f, %3.3f)",
		fr[0][0], fr[0][1], fr[0][2],
		fr[1][0], fr[1][1], fr[1][2],
		fr[2][0], fr[2][1], fr[2][2],
		fr[3][0], fr[3][1], fr[3][2],
	)
}

// The camera type controls the scene camera. Forward, Right, Up and
// Frustrum are derived from Position and Ref by Recompute.
type Camera struct {
	// Image resolution in pixels (width, height).
	Resolution [2]int

	Position types.Vec3
	Ref      types.Vec3

	Forward types.Vec3
	Up      types.Vec3
	Right   types.Vec3

	// Vertical field of view in degrees.
	FovY float32

	// Thin lens parameters; a zero radius yields a pinhole camera.
	LensRadius    float32
	FocalDistance float32

	// Maximum number of bounces per path.
	PathDepth int

	Frustrum Frustrum
}

// Create a camera looking down the -z axis.
func NewCamera(width, height int, fovY float32) *Camera {
	c := &Camera{
		Resolution:    [2]int{width, height},
		Position:      types.XYZ(0, 0, 0),
		Ref:           types.XYZ(0, 0, -1),
		FovY:          fovY,
		FocalDistance: 1,
		PathDepth:     8,
	}
	c.Recompute()
	return c
}

// Update the viewport resolution.
func (c *Camera) SetResolution(width, height int) {
	c.Resolution = [2]int{width, height}
	c.Recompute()
}

// Recalculate the camera basis and frustrum corners. It must be called
// after changing Position, Ref, FovY or Resolution.
func (c *Camera) Recompute() {
	c.Forward = c.Ref.Sub(c.Position).Normalize()
	c.Right = c.Forward.Cross(worldUp).Normalize()
	if c.Right.IsZero() {
		// Looking straight up or down
		c.Right = types.XYZ(1, 0, 0)
	}
	c.Up = c.Right.Cross(c.Forward).Normalize()
	c.updateFrustrum()
}

func (c *Camera) updateFrustrum() {
	aspect := float32(1)
	if c.Resolution[1] > 0 {
		aspect = float32(c.Resolution[0]) / float32(c.Resolution[1])
	}

	tanY := float32(math.Tan(float64(c.FovY) * math.Pi / 360))
	tanX := tanY * aspect

	right := c.Right.Mul(tanX)
	up := c.Up.Mul(tanY)
	c.Frustrum[0] = c.Forward.Sub(right).Add(up)
	c.Frustrum[1] = c.Forward.Add(right).Add(up)
	c.Frustrum[2] = c.Forward.Sub(right).Sub(up)
	c.Frustrum[3] = c.Forward.Add(right).Sub(up)
}

// Get the index of pixel (x, y) in the image buffers.
func (c *Camera) PixelIndex(x, y int) int {
	return y*c.Resolution[0] + x
}

// Generate a primary ray through pixel (x, y). The jitter sample offsets the
// ray within the pixel footprint and the lens sample selects a point on the
// thin lens aperture.
func (c *Camera) GenerateRay(x, y int, jitter, lens types.Vec2) types.Ray {
	px := (float32(x) + jitter[0]) / float32(c.Resolution[0])
	py := (float32(y) + jitter[1]) / float32(c.Resolution[1])

	top := types.Lerp3(c.Frustrum[0], c.Frustrum[1], px)
	bottom := types.Lerp3(c.Frustrum[2], c.Frustrum[3], px)
	dir := types.Lerp3(top, bottom, py).Normalize()

	if c.LensRadius <= 0 {
		return types.Ray{Origin: c.Position, Dir: dir}
	}

	disk := sampling.ConcentricDisk(lens).Mul(c.LensRadius)
	// Rays converge on the plane FocalDistance units along Forward.
	focus := c.Position.Add(dir.Mul(c.FocalDistance / dir.Dot(c.Forward)))
	origin := c.Position.Add(c.Right.Mul(disk[0])).Add(c.Up.Mul(disk[1]))
	return types.Ray{Origin: origin, Dir: focus.Sub(origin).Normalize()}
}

// Orbit the camera around its reference point. Angles are specified in
// degrees; positive yaw rotates around the world up axis and positive
// pitch raises the camera. Pitch updates that would move the camera past
// the poles are ignored.
func (c *Camera) Orbit(yawDeg, pitchDeg float32) {
	offset := c.Position.Sub(c.Ref)
	offset = types.RotateAround(offset, worldUp, yawDeg*math.Pi/180)

	right := offset.Neg().Normalize().Cross(worldUp).Normalize()
	if !right.IsZero() {
		pitched := types.RotateAround(offset, right, -pitchDeg*math.Pi/180)
		dir := pitched.Normalize()
		if abs32(dir.Dot(worldUp)) < 0.999 {
			offset = pitched
		}
	}

	c.Position = c.Ref.Add(offset)
	c.Recompute()
}

// Move the camera and its reference point by delta.
func (c *Camera) Pan(delta types.Vec3) {
	c.Position = c.Position.Add(delta)
	c.Ref = c.Ref.Add(delta)
	c.Recompute()
}
