package renderer

import "github.com/achilleasa/wavetrace/tracer/cpu"

type Options struct {
	// Frame dims. If not specified, the camera resolution is used.
	FrameW uint32
	FrameH uint32

	// Number of indirect bounces. If not specified, the camera path depth
	// is used.
	NumBounces uint32

	// Min bounces before applying russian roulette for path elimination.
	// Setting this to 0 disables russian roulette.
	MinBouncesForRR uint32

	// Number of samples. Setting this to 0 renders until interrupted.
	SamplesPerPixel uint32

	// Exposure for tonemapping.
	Exposure float32

	// Compute grid setup. Zero values select the grid defaults.
	Workers   int
	ChunkSize int

	// Seed for the per-iteration random streams.
	Seed int64

	// Debug output.
	DebugFlags cpu.DebugFlag

	// Name of the rendered image.
	ImageName string
}
