package bxdf

import (
	"math"

	"github.com/achilleasa/wavetrace/sampling"
	"github.com/achilleasa/wavetrace/scene"
	"github.com/achilleasa/wavetrace/types"
)

const (
	// Roughness is remapped to alpha = roughness^2 and clamped to this
	// minimum so that perfectly smooth surfaces remain numerically stable.
	minAlpha float32 = 1e-3

	// Normal incidence reflectance of dielectrics in the metallic workflow.
	dielectricF0 float32 = 0.04
)

// GGX (Trowbridge-Reitz) distribution with Smith masking.
type ggx struct {
	alpha float32
}

func newGGX(roughness float32) ggx {
	r := types.Clamp(roughness, 0, 1)
	return ggx{alpha: max(r*r, minAlpha)}
}

// Normal distribution function for a half vector with cosine cosH to the normal.
func (d ggx) D(cosH float32) float32 {
	if cosH <= 0 {
		return 0
	}
	a2 := d.alpha * d.alpha
	c2 := cosH * cosH
	denom := c2*(a2-1) + 1
	return a2 / (math.Pi * denom * denom)
}

// Smith masking term for a single direction.
func (d ggx) G1(cosV float32) float32 {
	cosV = abs32(cosV)
	if cosV == 0 {
		return 0
	}
	a2 := d.alpha * d.alpha
	return 2 * cosV / (cosV + float32(math.Sqrt(float64(a2+(1-a2)*cosV*cosV))))
}

func (d ggx) G(cosO, cosI float32) float32 {
	return d.G1(cosO) * d.G1(cosI)
}

// Sample a half vector in the local frame (z = normal) proportionally to D(h)*cos(h).
func (d ggx) sampleH(u types.Vec2) types.Vec3 {
	a2 := d.alpha * d.alpha
	cos2 := (1 - u[0]) / (1 + (a2-1)*u[0])
	cosTheta := float32(math.Sqrt(float64(types.Clamp(cos2, 0, 1))))
	sinTheta := float32(math.Sqrt(float64(max(0, 1-cosTheta*cosTheta))))
	phi := 2 * math.Pi * float64(u[1])
	return types.XYZ(sinTheta*float32(math.Cos(phi)), sinTheta*float32(math.Sin(phi)), cosTheta)
}

// Pdf of an incident direction reflected about a sampled half vector.
func (d ggx) pdf(cosH, woDotH float32) float32 {
	if woDotH <= 0 {
		return 0
	}
	return d.D(cosH) * cosH / (4 * woDotH)
}

// Get the normal incidence reflectance for the metallic workflow.
func specularF0(surf scene.SurfaceParams) types.Vec3 {
	metallic := types.Clamp(surf.Metallic, 0, 1)
	return types.Lerp3(types.Splat3(dielectricF0), surf.Albedo, metallic)
}

// Evaluate the specular microfacet BRDF in the local frame.
func (d ggx) eval(f0, woL, wiL types.Vec3) types.Vec3 {
	if woL[2] <= 0 || wiL[2] <= 0 {
		return types.Vec3{}
	}
	h := woL.Add(wiL).Normalize()
	if h.IsZero() {
		return types.Vec3{}
	}
	fr := FresnelSchlick(wiL.Dot(h), f0)
	return fr.Mul(d.D(h[2]) * d.G(woL[2], wiL[2]) / (4 * woL[2] * wiL[2]))
}

func sampleMicrofacet(surf scene.SurfaceParams, wo types.Vec3, sampler sampling.Sampler) Sample {
	n := faceForward(surf.Normal, wo)
	d := newGGX(surf.Roughness)
	woL := types.WorldToLocal(n, wo)

	h := d.sampleH(sampler.Get2D())
	wiL := types.Reflect(woL, h)
	if wiL[2] <= 0 {
		return InvalidSample()
	}

	pdf := d.pdf(h[2], woL.Dot(h))
	if pdf <= 0 {
		return InvalidSample()
	}

	return Sample{
		F:   d.eval(specularF0(surf), woL, wiL),
		WiW: types.LocalToWorld(n, wiL).Normalize(),
		Pdf: pdf,
	}
}

func evalMicrofacet(surf scene.SurfaceParams, wo, wi types.Vec3) (types.Vec3, float32) {
	n := faceForward(surf.Normal, wo)
	woL := types.WorldToLocal(n, wo)
	wiL := types.WorldToLocal(n, wi)
	if woL[2] <= 0 || wiL[2] <= 0 {
		return types.Vec3{}, 0
	}

	d := newGGX(surf.Roughness)
	h := woL.Add(wiL).Normalize()
	return d.eval(specularF0(surf), woL, wiL), d.pdf(h[2], woL.Dot(h))
}

// Probability of sampling the specular component of the mix lobe. Metals
// have no diffuse component and always sample the specular lobe.
func specularProbability(surf scene.SurfaceParams) float32 {
	metallic := types.Clamp(surf.Metallic, 0, 1)
	return 0.5 + 0.5*metallic
}

// A metallic workflow mix of a Lambertian base and a GGX specular layer:
//
// f = (1 - F) * (1 - metallic) * albedo / pi + f_ggx
//
// Directions are drawn from a mixture of the two sampling strategies and the
// returned pdf is the mixture pdf.
func sampleMicrofacetMix(surf scene.SurfaceParams, wo types.Vec3, sampler sampling.Sampler) Sample {
	n := faceForward(surf.Normal, wo)
	d := newGGX(surf.Roughness)
	woL := types.WorldToLocal(n, wo)
	if woL[2] <= 0 {
		return InvalidSample()
	}

	var wiL types.Vec3
	if sampler.Get1D() < specularProbability(surf) {
		h := d.sampleH(sampler.Get2D())
		wiL = types.Reflect(woL, h)
	} else {
		wiL = sampling.CosineHemisphere(sampler.Get2D())
	}
	if wiL[2] <= 0 {
		return InvalidSample()
	}

	f, pdf := evalMixLocal(surf, d, woL, wiL)
	if pdf <= 0 {
		return InvalidSample()
	}

	return Sample{
		F:   f,
		WiW: types.LocalToWorld(n, wiL).Normalize(),
		Pdf: pdf,
	}
}

func evalMicrofacetMix(surf scene.SurfaceParams, wo, wi types.Vec3) (types.Vec3, float32) {
	n := faceForward(surf.Normal, wo)
	woL := types.WorldToLocal(n, wo)
	wiL := types.WorldToLocal(n, wi)
	if woL[2] <= 0 || wiL[2] <= 0 {
		return types.Vec3{}, 0
	}
	return evalMixLocal(surf, newGGX(surf.Roughness), woL, wiL)
}

func evalMixLocal(surf scene.SurfaceParams, d ggx, woL, wiL types.Vec3) (types.Vec3, float32) {
	h := woL.Add(wiL).Normalize()
	if h.IsZero() {
		return types.Vec3{}, 0
	}

	f0 := specularF0(surf)
	specular := d.eval(f0, woL, wiL)

	fr := FresnelSchlick(wiL.Dot(h), f0)
	kd := types.Splat3(1).Sub(fr).Mul(1 - types.Clamp(surf.Metallic, 0, 1))
	diffuse := kd.MulVec(surf.Albedo).Mul(1 / math.Pi)

	pSpec := specularProbability(surf)
	pdf := pSpec*d.pdf(h[2], woL.Dot(h)) + (1-pSpec)*sampling.CosineHemispherePdf(wiL[2])
	return diffuse.Add(specular), pdf
}
