package scene

import (
	"math"

	"github.com/achilleasa/wavetrace/types"
)

// A sampleable 2D texture.
type Texture2D interface {
	// Returns false if the texture holds no usable data.
	Valid() bool

	// Sample the texture at uv. Coordinates outside [0, 1] wrap around.
	Get(u, v float32) types.Vec4
}

// An in-memory RGBA texture sampled with bilinear filtering and repeat wrapping.
type ImageTexture struct {
	Name string

	Width  int
	Height int

	// Row-major texels; row 0 is the top of the image.
	Texels []types.Vec4
}

// Create a texture with the given dimensions.
func NewImageTexture(name string, width, height int) *ImageTexture {
	return &ImageTexture{
		Name:   name,
		Width:  width,
		Height: height,
		Texels: make([]types.Vec4, width*height),
	}
}

func (t *ImageTexture) Valid() bool {
	return t != nil && t.Width > 0 && t.Height > 0 && len(t.Texels) == t.Width*t.Height
}

// Set texel at (x, y). Out of range coordinates are ignored.
func (t *ImageTexture) Set(x, y int, value types.Vec4) {
	if x < 0 || x >= t.Width || y < 0 || y >= t.Height {
		return
	}
	t.Texels[y*t.Width+x] = value
}

// Get texel at (x, y) wrapping coordinates around the texture edges.
func (t *ImageTexture) At(x, y int) types.Vec4 {
	x %= t.Width
	if x < 0 {
		x += t.Width
	}
	y %= t.Height
	if y < 0 {
		y += t.Height
	}
	return t.Texels[y*t.Width+x]
}

// Sample the texture using bilinear filtering. The v axis points up so
// v = 0 maps to the bottom image row.
func (t *ImageTexture) Get(u, v float32) types.Vec4 {
	if !t.Valid() {
		return types.Vec4{}
	}

	u = wrap(u)
	v = 1 - wrap(v)

	// Texel centers are located at half-integer coordinates
	fx := u*float32(t.Width) - 0.5
	fy := v*float32(t.Height) - 0.5
	x0 := int(math.Floor(float64(fx)))
	y0 := int(math.Floor(float64(fy)))
	tx := fx - float32(x0)
	ty := fy - float32(y0)

	c00 := t.At(x0, y0)
	c10 := t.At(x0+1, y0)
	c01 := t.At(x0, y0+1)
	c11 := t.At(x0+1, y0+1)

	var out types.Vec4
	for i := 0; i < 4; i++ {
		top := c00[i]*(1-tx) + c10[i]*tx
		bottom := c01[i]*(1-tx) + c11[i]*tx
		out[i] = top*(1-ty) + bottom*ty
	}
	return out
}

func wrap(coord float32) float32 {
	return coord - float32(math.Floor(float64(coord)))
}
