// Package bxdf evaluates and samples the scattering lobes of scene materials.
//
// All directions are expressed in world space and point away from the
// surface. Non-delta lobes return f and a solid angle pdf; the caller weights
// the path throughput by f*cos/pdf. Delta lobes (perfect reflection and
// refraction) set Delta and return the complete throughput weight in F with
// Pdf = 1; the caller multiplies the throughput by F directly.
package bxdf

import (
	"github.com/achilleasa/wavetrace/sampling"
	"github.com/achilleasa/wavetrace/scene"
	"github.com/achilleasa/wavetrace/types"
)

// The result of sampling a material lobe.
type Sample struct {
	// The BSDF value, or the full throughput weight for delta samples.
	F types.Vec3

	// Sampled incident direction (world space, unit length).
	WiW types.Vec3

	// Solid angle pdf of WiW. Values <= 0 mark an invalid sample.
	Pdf float32

	// Set for samples drawn from a delta distribution.
	Delta bool

	// Set when WiW crosses the surface.
	Transmission bool
}

// An invalid sample; the path should be terminated.
func InvalidSample() Sample {
	return Sample{Pdf: -1}
}

// Returns true if the sample can be used to continue a path.
func (s *Sample) Valid() bool {
	return s.Pdf > 0 && s.F.IsFinite() && s.WiW.IsFinite() && !s.WiW.IsZero()
}

// Get the factor that the path throughput should be multiplied with. The
// shading normal n is used for the cosine term of non-delta samples.
func (s *Sample) Weight(n types.Vec3) types.Vec3 {
	if s.Delta {
		return s.F
	}
	cos := abs32(s.WiW.Dot(n))
	return s.F.Mul(cos / s.Pdf)
}

// Sample an incident direction for a surface with the given material and
// resolved parameters. wo points away from the surface towards the previous
// path vertex.
func SampleF(mat *scene.Material, surf scene.SurfaceParams, wo types.Vec3, sampler sampling.Sampler) Sample {
	switch mat.Lobe {
	case scene.DiffuseReflection:
		return sampleDiffuse(surf, wo, sampler)
	case scene.SpecularReflection:
		return sampleSpecularReflection(surf, wo)
	case scene.SpecularGlass:
		return sampleDielectric(surf, mat.Eta, wo, sampler)
	case scene.MicrofacetReflection:
		return sampleMicrofacet(surf, wo, sampler)
	case scene.MicrofacetMix:
		return sampleMicrofacetMix(surf, wo, sampler)
	case scene.SubsurfaceScattering:
		// The boundary of a subsurface medium behaves like a smooth
		// dielectric; the medium itself is handled by SampleMedium.
		return sampleDielectric(surf, mat.Eta, wo, sampler)
	}
	return InvalidSample()
}

// Evaluate f and the pdf for a pair of directions. Delta lobes evaluate to
// zero for every direction pair.
func Eval(mat *scene.Material, surf scene.SurfaceParams, wo, wi types.Vec3) (f types.Vec3, pdf float32) {
	switch mat.Lobe {
	case scene.DiffuseReflection:
		return evalDiffuse(surf, wo, wi)
	case scene.MicrofacetReflection:
		return evalMicrofacet(surf, wo, wi)
	case scene.MicrofacetMix:
		return evalMicrofacetMix(surf, wo, wi)
	}
	return types.Vec3{}, 0
}

// Flip n so that it lies in the same hemisphere as wo.
func faceForward(n, wo types.Vec3) types.Vec3 {
	if n.Dot(wo) < 0 {
		return n.Neg()
	}
	return n
}

func sameHemisphere(n, wo, wi types.Vec3) bool {
	return n.Dot(wo)*n.Dot(wi) > 0
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
