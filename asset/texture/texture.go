package texture

import (
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"github.com/achilleasa/wavetrace/asset"
	"github.com/achilleasa/wavetrace/scene"
	"github.com/achilleasa/wavetrace/types"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var ErrEmptyImage = errors.New("texture: image has no pixels")

// Decode an image resource into a texture. Any format registered with the
// image package (png, jpeg, bmp, tiff, webp) is supported.
func New(res *asset.Resource) (*scene.ImageTexture, error) {
	img, format, err := image.Decode(res)
	if err != nil {
		return nil, fmt.Errorf("texture: could not decode %s: %w", res.Path(), err)
	}

	tex, err := FromImage(res.Path(), img)
	if err != nil {
		return nil, err
	}
	logger.Debugf("loaded %dx%d %s texture %s", tex.Width, tex.Height, format, res.Path())
	return tex, nil
}

// Convert an image into a texture with channel values in the [0, 1] range.
func FromImage(name string, img image.Image) (*scene.ImageTexture, error) {
	bounds := img.Bounds()
	if bounds.Empty() {
		return nil, ErrEmptyImage
	}

	tex := scene.NewImageTexture(name, bounds.Dx(), bounds.Dy())
	for y := 0; y < tex.Height; y++ {
		for x := 0; x < tex.Width; x++ {
			// RGBA returns alpha-premultiplied 16-bit values
			r, g, b, a := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			texel := types.XYZW(float32(r), float32(g), float32(b), float32(a)).Mul(1.0 / 0xffff)
			if a != 0 && a != 0xffff {
				alpha := texel[3]
				texel[0], texel[1], texel[2] = texel[0]/alpha, texel[1]/alpha, texel[2]/alpha
			}
			tex.Set(x, y, texel)
		}
	}
	return tex, nil
}
