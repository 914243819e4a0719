package bxdf

import (
	"math"

	"github.com/achilleasa/wavetrace/sampling"
	"github.com/achilleasa/wavetrace/scene"
	"github.com/achilleasa/wavetrace/types"
)

// Lambertian reflection: f = albedo / pi, sampled with a cosine weighted
// hemisphere distribution.
func sampleDiffuse(surf scene.SurfaceParams, wo types.Vec3, sampler sampling.Sampler) Sample {
	n := faceForward(surf.Normal, wo)
	local := sampling.CosineHemisphere(sampler.Get2D())
	pdf := sampling.CosineHemispherePdf(local[2])
	if pdf <= 0 {
		return InvalidSample()
	}

	return Sample{
		F:   surf.Albedo.Mul(1 / math.Pi),
		WiW: types.LocalToWorld(n, local).Normalize(),
		Pdf: pdf,
	}
}

func evalDiffuse(surf scene.SurfaceParams, wo, wi types.Vec3) (types.Vec3, float32) {
	n := faceForward(surf.Normal, wo)
	if !sameHemisphere(n, wo, wi) {
		return types.Vec3{}, 0
	}
	return surf.Albedo.Mul(1 / math.Pi), sampling.CosineHemispherePdf(n.Dot(wi))
}
