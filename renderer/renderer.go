package renderer

import (
	"context"

	"github.com/achilleasa/wavetrace/scene"
)

type Renderer interface {
	// Render iterations until the requested number of samples per pixel
	// has been accumulated or the context is cancelled.
	Render(ctx context.Context) error

	// Render and accumulate a single iteration. An iteration interrupted
	// by a camera update is discarded without returning an error.
	RenderFrame(ctx context.Context) error

	// Replace the camera. Any in-flight iteration is cancelled and the
	// accumulated iterations are reset.
	UpdateCamera(camera *scene.Camera)

	// Rotate the camera around its reference point.
	Orbit(yawDeg, pitchDeg float32)

	// Get the render state. It must not be modified while rendering.
	State() *RenderState

	// Shutdown renderer and any attached tracer.
	Close()

	// Get render statistics.
	Stats() FrameStats
}
