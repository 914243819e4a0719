package bxdf

import (
	"math"

	"github.com/achilleasa/wavetrace/sampling"
	"github.com/achilleasa/wavetrace/scene"
	"github.com/achilleasa/wavetrace/types"
)

// The result of sampling a homogeneous medium along a ray segment.
type MediumSample struct {
	// Distance travelled inside the medium.
	Distance float32

	// Set if the path scatters inside the medium before reaching the
	// surface at the end of the segment.
	Scattered bool

	// New direction for scattered paths.
	Dir types.Vec3

	// Throughput factor accumulated along the travelled distance.
	Weight types.Vec3
}

// Sample a scattering event inside the homogeneous medium of mat for a ray
// segment that ends at a surface tSurface units away. Distances are drawn
// proportionally to the scattering transmittance exp(-Scatter*t) and the
// absorption transmittance exp(-Absorption*t) is applied as a weight.
// Scattering is isotropic so the phase function and its pdf cancel out.
func SampleMedium(mat *scene.Material, tSurface float32, sampler sampling.Sampler) MediumSample {
	dist := tSurface
	scattered := false
	if mat.Scatter > 0 {
		d := float32(-math.Log(1-float64(sampler.Get1D()))) / mat.Scatter
		if d < tSurface {
			dist = d
			scattered = true
		}
	}

	out := MediumSample{
		Distance:  dist,
		Scattered: scattered,
		Weight:    Transmittance(mat.Absorption, dist),
	}
	if scattered {
		out.Dir = sampling.UniformSphere(sampler.Get2D())
	}
	return out
}

// Beer-Lambert transmittance for an absorption coefficient over distance.
func Transmittance(absorption types.Vec3, dist float32) types.Vec3 {
	return absorption.Mul(-dist).Exp()
}
