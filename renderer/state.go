package renderer

import (
	"image"

	"github.com/achilleasa/wavetrace/scene"
	"github.com/achilleasa/wavetrace/types"
)

// The progressive render state shared with the display layer.
type RenderState struct {
	// Snapshot of the camera used for the accumulated iterations.
	Camera *scene.Camera

	// Number of iterations accumulated into Image.
	Iterations uint32

	// Max number of bounces per path.
	TraceDepth uint32

	// Un-normalized radiance sums for each frame pixel.
	Image []types.Vec3

	// The tone-mapped value of Image / Iterations.
	CImage *image.RGBA

	ImageName string
}

func newRenderState(camera *scene.Camera, frameW, frameH, traceDepth uint32, imageName string) *RenderState {
	return &RenderState{
		Camera:     camera,
		TraceDepth: traceDepth,
		Image:      make([]types.Vec3, frameW*frameH),
		CImage:     image.NewRGBA(image.Rect(0, 0, int(frameW), int(frameH))),
		ImageName:  imageName,
	}
}

// Get the averaged radiance estimate for a pixel.
func (s *RenderState) Radiance(x, y int) types.Vec3 {
	if s.Iterations == 0 {
		return types.Vec3{}
	}
	return s.Image[y*s.CImage.Rect.Dx()+x].Mul(1 / float32(s.Iterations))
}
