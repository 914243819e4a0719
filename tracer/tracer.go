package tracer

import (
	"context"
	"time"

	"github.com/achilleasa/wavetrace/types"
)

type UpdateType uint8

const (
	UpdateScene UpdateType = iota
	UpdateCamera
)

func (ut UpdateType) String() string {
	switch ut {
	case UpdateScene:
		return "scene"
	case UpdateCamera:
		return "camera"
	}
	return "unknown"
}

// The state of a single light path. Paths are generated by the camera,
// advanced one bounce at a time by the integrator and retired once IsEnd()
// reports true.
type PathSegment struct {
	Ray types.Ray

	// Product of all BSDF weights along the path.
	Throughput types.Vec3

	// Radiance collected so far.
	Radiance types.Vec3

	// Index of the image pixel this path contributes to.
	PixelIndex int32

	RemainingBounces int32

	// Id of the material whose medium contains the path origin; -1 for vacuum.
	MediaID int32
}

// Reset the path accumulators. RemainingBounces is left untouched and must
// be set by the caller.
func (p *PathSegment) Reset() {
	p.Throughput = types.Splat3(1)
	p.Radiance = types.Vec3{}
	p.MediaID = -1
}

// Mark the path as finished.
func (p *PathSegment) Terminate() {
	p.RemainingBounces = 0
}

func (p *PathSegment) IsEnd() bool {
	return p.RemainingBounces <= 0
}

// A unit of work that is processed by a tracer: one sample for every pixel
// in rows [BlockY, BlockY + BlockH) of the frame.
type BlockRequest struct {
	// Frame dimensions.
	FrameW uint32
	FrameH uint32

	// Block start row and height.
	BlockY uint32
	BlockH uint32

	// The target number of progressive iterations; 0 for unbounded rendering.
	SamplesPerPixel uint32

	// The exposure value controls HDR -> LDR mapping.
	Exposure float32

	// A random seed value for the tracer's random number generators.
	Seed int64

	// Number of iterations already accumulated for the current camera.
	Iteration uint32

	// Running radiance sum for each frame pixel. Only updated once the
	// iteration completes.
	Accumulator []types.Vec3

	// RGBA8 frame buffer receiving the tone-mapped image.
	FrameBuffer []uint8
}

// Number of pixels in the block.
func (br *BlockRequest) NumPixels() int {
	return int(br.FrameW * br.BlockH)
}

// Per-bounce statistics.
type BounceStat struct {
	// Paths still active at the start of the bounce.
	ActivePaths int

	// Paths that hit a surface.
	Hits int

	// Paths retired at the end of the bounce.
	Terminated int
}

// Tracer statistics.
type Stats struct {
	// The rendered block height.
	BlockH uint32

	// Time spent applying pending updates.
	UpdateTime time.Duration

	// Time spent rendering the block.
	RenderTime time.Duration

	// Per-stage timings, keyed by stage name.
	StageTimes map[string]time.Duration

	Bounces []BounceStat

	// Paths whose radiance was discarded because it was not finite.
	DiscardedPaths int
}

type Tracer interface {
	// Get tracer id.
	Id() string

	// Shutdown and cleanup tracer.
	Close()

	// Allocate the tracer's path buffers for the given frame dimensions.
	Setup(frameW, frameH uint32) error

	// Apply pending changes and render a block. A cancelled context aborts
	// the block before any radiance is merged into the accumulator.
	Trace(ctx context.Context, blockReq *BlockRequest) error

	// Append a change to the tracer's update buffer. Updates of the same
	// type overwrite each other and are applied before the next block.
	Update(UpdateType, interface{})

	// Retrieve last block statistics.
	Stats() *Stats
}
