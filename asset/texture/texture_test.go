package texture

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math"
	"testing"

	"github.com/achilleasa/wavetrace/asset"
	"github.com/achilleasa/wavetrace/types"
	"golang.org/x/image/bmp"
)

func TestLoadTexture(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	img.SetNRGBA(0, 0, color.NRGBA{255, 0, 0, 255})
	img.SetNRGBA(1, 0, color.NRGBA{0, 255, 0, 255})
	img.SetNRGBA(0, 1, color.NRGBA{0, 0, 255, 255})
	img.SetNRGBA(1, 1, color.NRGBA{255, 255, 255, 51})

	encoders := []struct {
		name   string
		encode func(*bytes.Buffer) error
	}{
		{"tex.png", func(buf *bytes.Buffer) error { return png.Encode(buf, img) }},
		{"tex.bmp", func(buf *bytes.Buffer) error { return bmp.Encode(buf, img) }},
	}

	for index, enc := range encoders {
		var buf bytes.Buffer
		if err := enc.encode(&buf); err != nil {
			t.Fatalf("[spec %d] %v", index, err)
		}

		tex, err := New(asset.NewResourceFromStream(enc.name, &buf))
		if err != nil {
			t.Fatalf("[spec %d] %v", index, err)
		}
		if !tex.Valid() || tex.Width != 2 || tex.Height != 2 || tex.Name != enc.name {
			t.Fatalf("[spec %d] unexpected texture %s (%dx%d)", index, tex.Name, tex.Width, tex.Height)
		}

		expTexels := []types.Vec3{
			types.XYZ(1, 0, 0),
			types.XYZ(0, 1, 0),
			types.XYZ(0, 0, 1),
		}
		for i, exp := range expTexels {
			if got := tex.Texels[i].Vec3(); !types.ApproxEqual(got, exp, 1e-3) {
				t.Fatalf("[spec %d] expected texel %d to be %v; got %v", index, i, exp, got)
			}
		}
	}
}

func TestUnpremultipliedAlpha(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	img.SetNRGBA(0, 0, color.NRGBA{255, 128, 0, 51})

	tex, err := FromImage("alpha", img)
	if err != nil {
		t.Fatal(err)
	}

	texel := tex.Texels[0]
	exp := [4]float32{1, 128.0 / 255.0, 0, 0.2}
	for ch := 0; ch < 4; ch++ {
		if math.Abs(float64(texel[ch]-exp[ch])) > 1e-2 {
			t.Fatalf("expected channel %d to be %f; got %f", ch, exp[ch], texel[ch])
		}
	}
}

func TestLoadTextureErrors(t *testing.T) {
	if _, err := New(asset.NewResourceFromStream("bogus.png", bytes.NewReader([]byte("not an image")))); err == nil {
		t.Fatal("expected decoding garbage to fail")
	}

	if _, err := FromImage("empty", image.NewRGBA(image.Rect(0, 0, 0, 0))); !errors.Is(err, ErrEmptyImage) {
		t.Fatalf("expected ErrEmptyImage; got %v", err)
	}
}
