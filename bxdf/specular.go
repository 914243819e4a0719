package bxdf

import (
	"math"

	"github.com/achilleasa/wavetrace/sampling"
	"github.com/achilleasa/wavetrace/scene"
	"github.com/achilleasa/wavetrace/types"
)

// Perfect mirror reflection tinted by the albedo.
func sampleSpecularReflection(surf scene.SurfaceParams, wo types.Vec3) Sample {
	n := faceForward(surf.Normal, wo)
	return Sample{
		F:     surf.Albedo,
		WiW:   types.Reflect(wo, n).Normalize(),
		Pdf:   1,
		Delta: true,
	}
}

// A smooth dielectric boundary. Reflection and refraction are selected with
// probability equal to their Fresnel weight, so the sample weight reduces to
// the albedo tint.
func sampleDielectric(surf scene.SurfaceParams, eta float32, wo types.Vec3, sampler sampling.Sampler) Sample {
	if eta <= 0 {
		eta = scene.EtaAir
	}

	n := surf.Normal
	etaI, etaT := scene.EtaAir, eta
	cosI := wo.Dot(n)
	if cosI < 0 {
		// Leaving the medium
		etaI, etaT = etaT, etaI
		n = n.Neg()
		cosI = -cosI
	}

	fr := FresnelDielectric(cosI, etaI, etaT)
	if sampler.Get1D() < fr {
		return Sample{
			F:     surf.Albedo,
			WiW:   types.Reflect(wo, n).Normalize(),
			Pdf:   1,
			Delta: true,
		}
	}

	wt, ok := Refract(wo, n, etaI/etaT)
	if !ok {
		// Total internal reflection
		return Sample{
			F:     surf.Albedo,
			WiW:   types.Reflect(wo, n).Normalize(),
			Pdf:   1,
			Delta: true,
		}
	}

	return Sample{
		F:            surf.Albedo,
		WiW:          wt,
		Pdf:          1,
		Delta:        true,
		Transmission: true,
	}
}

// Refract wo (pointing away from the surface) through a boundary with unit
// normal n on the same side as wo. eta is the ratio etaI/etaT. Returns false
// on total internal reflection.
func Refract(wo, n types.Vec3, eta float32) (types.Vec3, bool) {
	cosI := wo.Dot(n)
	sin2T := eta * eta * max(0, 1-cosI*cosI)
	if sin2T >= 1 {
		return types.Vec3{}, false
	}
	cosT := float32(math.Sqrt(float64(1 - sin2T)))
	return wo.Neg().Mul(eta).Add(n.Mul(eta*cosI - cosT)).Normalize(), true
}

// Unpolarized Fresnel reflectance for a dielectric boundary. cosI is the
// cosine of the incident angle on the etaI side.
func FresnelDielectric(cosI, etaI, etaT float32) float32 {
	cosI = types.Clamp(cosI, 0, 1)
	sinI := float32(math.Sqrt(float64(max(0, 1-cosI*cosI))))
	sinT := etaI / etaT * sinI
	if sinT >= 1 {
		return 1
	}
	cosT := float32(math.Sqrt(float64(max(0, 1-sinT*sinT))))

	rParl := (etaT*cosI - etaI*cosT) / (etaT*cosI + etaI*cosT)
	rPerp := (etaI*cosI - etaT*cosT) / (etaI*cosI + etaT*cosT)
	return (rParl*rParl + rPerp*rPerp) / 2
}

// Schlick's approximation of the Fresnel reflectance for a given normal
// incidence reflectance f0.
func FresnelSchlick(cosI float32, f0 types.Vec3) types.Vec3 {
	m := types.Clamp(1-cosI, 0, 1)
	m5 := m * m * m * m * m
	return f0.Add(types.Splat3(1).Sub(f0).Mul(m5))
}
