package scene

import (
	"strings"

	"github.com/achilleasa/wavetrace/types"
)

// The index of refraction of air.
const EtaAir float32 = 1.0

// The lobe that a material uses for scattering light.
type Lobe uint8

const (
	// Sentinel for materials that failed to parse.
	NoLobe Lobe = iota
	DiffuseReflection
	SpecularReflection
	SpecularGlass
	MicrofacetReflection
	MicrofacetMix
	SubsurfaceScattering
)

var lobeNames = map[Lobe]string{
	NoLobe:               "None",
	DiffuseReflection:    "DiffuseReflection",
	SpecularReflection:   "SpecularReflection",
	SpecularGlass:        "SpecularGlass",
	MicrofacetReflection: "MicrofacetReflection",
	MicrofacetMix:        "MicrofacetMix",
	SubsurfaceScattering: "SubsurfaceScattering",
}

// Parse a lobe name. Names are matched case-insensitively; unknown names
// map to NoLobe.
func LobeFromName(name string) Lobe {
	for lobe, lobeName := range lobeNames {
		if lobe != NoLobe && strings.EqualFold(lobeName, name) {
			return lobe
		}
	}
	return NoLobe
}

func (l Lobe) String() string {
	if name, ok := lobeNames[l]; ok {
		return name
	}
	return "Unknown"
}

// Returns true for lobes described by a delta distribution.
func (l Lobe) IsSpecular() bool {
	return l == SpecularReflection || l == SpecularGlass
}

// Returns true for lobes that use a microfacet distribution.
func (l Lobe) IsMicrofacet() bool {
	return l == MicrofacetReflection || l == MicrofacetMix
}

// A material parameter that can be driven by a texture.
type TextureChannel uint8

const (
	AlbedoChannel TextureChannel = iota
	NormalChannel
	RoughnessChannel
	MetallicChannel
	numTextureChannels
)

// Defines a scene material. Scalar parameters are always available and are
// used whenever the matching texture channel is not bound or not valid.
type Material struct {
	Name string

	Lobe Lobe

	// Scalar parameters.
	Albedo    types.Vec3
	Roughness float32
	Metallic  float32

	// Emitted radiance scale. Materials with Emittance > 0 are lights.
	Emittance float32

	// Index of refraction.
	Eta float32

	// Subsurface medium coefficients.
	Absorption types.Vec3
	Scatter    float32

	textures [numTextureChannels]Texture2D
}

// Create a material using the given lobe. Unset parameters use the same
// defaults that scene files do.
func NewMaterial(name string, lobe Lobe) *Material {
	return &Material{
		Name:       name,
		Lobe:       lobe,
		Albedo:     types.Splat3(1),
		Metallic:   1,
		Eta:        EtaAir,
		Absorption: types.Splat3(1),
		Scatter:    1,
	}
}

// Bind a texture to a material channel. Binding nil clears the channel.
func (m *Material) Bind(channel TextureChannel, tex Texture2D) {
	if channel >= numTextureChannels {
		return
	}
	m.textures[channel] = tex
}

// Returns true if the channel has a valid bound texture.
func (m *Material) HasTexture(channel TextureChannel) bool {
	if channel >= numTextureChannels {
		return false
	}
	tex := m.textures[channel]
	return tex != nil && tex.Valid()
}

// Get the texture bound to a channel (may be nil).
func (m *Material) Texture(channel TextureChannel) Texture2D {
	if channel >= numTextureChannels {
		return nil
	}
	return m.textures[channel]
}

func (m *Material) IsEmissive() bool {
	return m.Emittance > 0
}

func (m *Material) GetAlbedo(uv types.Vec2) types.Vec3 {
	if m.HasTexture(AlbedoChannel) {
		return m.textures[AlbedoChannel].Get(uv[0], uv[1]).Vec3()
	}
	return m.Albedo
}

func (m *Material) GetRoughness(uv types.Vec2) float32 {
	if m.HasTexture(RoughnessChannel) {
		return m.textures[RoughnessChannel].Get(uv[0], uv[1])[0]
	}
	return m.Roughness
}

func (m *Material) GetMetallic(uv types.Vec2) float32 {
	if m.HasTexture(MetallicChannel) {
		return m.textures[MetallicChannel].Get(uv[0], uv[1])[0]
	}
	return m.Metallic
}

// Perturb a world-space shading normal using the bound normal map. Normal
// map texels store tangent-space normals remapped to [0, 1]. Without a valid
// normal map the input normal is returned unchanged.
func (m *Material) GetNormal(uv types.Vec2, normal types.Vec3) types.Vec3 {
	if !m.HasTexture(NormalChannel) {
		return normal
	}

	texel := m.textures[NormalChannel].Get(uv[0], uv[1]).Vec3()
	local := texel.Mul(2).Sub(types.Splat3(1))
	perturbed := types.LocalToWorld(normal, local).Normalize()
	if perturbed.IsZero() {
		return normal
	}
	return perturbed
}

// Material parameters resolved at a surface point.
type SurfaceParams struct {
	Albedo    types.Vec3
	Normal    types.Vec3
	Roughness float32
	Metallic  float32
}

// Resolve all texture-driven material parameters at uv. The geometric normal
// is perturbed by the normal map if one is bound.
func (m *Material) Resolve(uv types.Vec2, normal types.Vec3) SurfaceParams {
	return SurfaceParams{
		Albedo:    m.GetAlbedo(uv),
		Normal:    m.GetNormal(uv, normal),
		Roughness: m.GetRoughness(uv),
		Metallic:  m.GetMetallic(uv),
	}
}
