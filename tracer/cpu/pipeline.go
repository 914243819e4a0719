package cpu

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"time"

	"github.com/achilleasa/wavetrace/tracer"
)

// Debug flags.
type DebugFlag uint16

const (
	Off                         DebugFlag = 0
	PrimaryRayIntersectionDepth DebugFlag = 1 << (iota - 1)
	PrimaryRayIntersectionNormals
	Throughput
	Accumulator
	FrameBuffer
)

// Parse a debug flag name.
func DebugFlagFromName(name string) (DebugFlag, error) {
	switch name {
	case "off", "":
		return Off, nil
	case "depth":
		return PrimaryRayIntersectionDepth, nil
	case "normals":
		return PrimaryRayIntersectionNormals, nil
	case "throughput":
		return Throughput, nil
	case "accumulator":
		return Accumulator, nil
	case "framebuffer":
		return FrameBuffer, nil
	}
	return Off, fmt.Errorf("cpu tracer: unknown debug flag %q", name)
}

// A pipeline stage operates on a block request and returns the time it took
// to complete.
type PipelineStage func(ctx context.Context, tr *Tracer, blockReq *tracer.BlockRequest) (time.Duration, error)

// The list of stages that are executed for each block. Stages run in
// order; the first failing stage aborts the block.
type Pipeline struct {
	// Stages executed before tracing starts.
	Reset []PipelineStage

	// Stages that generate the primary rays.
	PrimaryRayGenerator []PipelineStage

	// Stages that trace the generated paths and merge their contribution.
	Integrator []PipelineStage

	// Stages that run after the block has been merged into the accumulator.
	PostProcess []PipelineStage
}

// Get the default tracing pipeline. Debug images are written to debugDir.
func DefaultPipeline(debugFlags DebugFlag, debugDir string) *Pipeline {
	pipeline := &Pipeline{
		Reset: []PipelineStage{
			ClearAccumulator(),
		},
		PrimaryRayGenerator: []PipelineStage{
			PerspectiveCamera(),
		},
		Integrator: []PipelineStage{
			MonteCarloIntegrator(debugFlags, debugDir),
			AccumulateSamples(),
		},
		PostProcess: []PipelineStage{
			TonemapSimpleReinhard(),
		},
	}

	if debugFlags&Accumulator == Accumulator {
		pipeline.PostProcess = append(pipeline.PostProcess, DebugAccumulator(filepath.Join(debugDir, "debug-accumulator.png")))
	}
	if debugFlags&FrameBuffer == FrameBuffer {
		pipeline.PostProcess = append(pipeline.PostProcess, DebugFrameBuffer(filepath.Join(debugDir, "debug-fb.png")))
	}

	return pipeline
}

// Clear the accumulator when rendering the first iteration for a camera.
func ClearAccumulator() PipelineStage {
	return func(ctx context.Context, tr *Tracer, blockReq *tracer.BlockRequest) (time.Duration, error) {
		if blockReq.Iteration != 0 {
			return 0, nil
		}
		return tr.integrator.ClearAccumulator(ctx, blockReq)
	}
}

// Generate primary rays using a perspective thin-lens camera.
func PerspectiveCamera() PipelineStage {
	return func(ctx context.Context, tr *Tracer, blockReq *tracer.BlockRequest) (time.Duration, error) {
		return tr.integrator.GeneratePrimaryRays(ctx, blockReq)
	}
}

// Use a montecarlo pathtracer implementation. Paths are traced one bounce at
// a time until all of them end.
func MonteCarloIntegrator(debugFlags DebugFlag, debugDir string) PipelineStage {
	return func(ctx context.Context, tr *Tracer, blockReq *tracer.BlockRequest) (time.Duration, error) {
		var err error
		in := tr.integrator
		start := time.Now()

		for bounce := uint32(0); in.NumActive() > 0; bounce++ {
			_, err = in.RayIntersectionQuery(ctx)
			if err != nil {
				return time.Since(start), err
			}

			if bounce == 0 && debugFlags&PrimaryRayIntersectionDepth == PrimaryRayIntersectionDepth {
				_, err = in.DebugPrimaryRayIntersectionDepth(ctx)
				err = dumpDebugBuffer(err, in.DebugOutput, blockReq, filepath.Join(debugDir, "debug-primary-intersection-depth.png"))
				if err != nil {
					return time.Since(start), err
				}
			}

			if bounce == 0 && debugFlags&PrimaryRayIntersectionNormals == PrimaryRayIntersectionNormals {
				_, err = in.DebugPrimaryRayIntersectionNormals(ctx)
				err = dumpDebugBuffer(err, in.DebugOutput, blockReq, filepath.Join(debugDir, "debug-primary-intersection-normals.png"))
				if err != nil {
					return time.Since(start), err
				}
			}

			_, err = in.ShadeMisses(ctx)
			if err != nil {
				return time.Since(start), err
			}

			_, err = in.ShadeHits(ctx, blockReq, bounce)
			if err != nil {
				return time.Since(start), err
			}

			if debugFlags&Throughput == Throughput {
				_, err = in.DebugThroughput(ctx)
				err = dumpDebugBuffer(err, in.DebugOutput, blockReq, filepath.Join(debugDir, fmt.Sprintf("debug-throughput-%03d.png", bounce)))
				if err != nil {
					return time.Since(start), err
				}
			}

			in.Compact()
		}

		if discarded := in.DiscardedPaths(); discarded != 0 {
			tr.logger.Warningf("discarded %d paths with non-finite radiance", discarded)
		}
		return time.Since(start), nil
	}
}

// Merge the traced samples into the accumulator.
func AccumulateSamples() PipelineStage {
	return func(ctx context.Context, tr *Tracer, blockReq *tracer.BlockRequest) (time.Duration, error) {
		return tr.integrator.Accumulate(ctx, blockReq)
	}
}

// Apply simple Reinhard tone-mapping.
func TonemapSimpleReinhard() PipelineStage {
	return func(ctx context.Context, tr *Tracer, blockReq *tracer.BlockRequest) (time.Duration, error) {
		return tr.integrator.TonemapSimpleReinhard(ctx, blockReq)
	}
}

// Write the frame buffer to a png file once the requested number of
// iterations has been rendered. For unbounded renders the file is updated
// after every iteration.
func SaveFrameBuffer(imgFile string) PipelineStage {
	return func(ctx context.Context, tr *Tracer, blockReq *tracer.BlockRequest) (time.Duration, error) {
		if blockReq.SamplesPerPixel != 0 && blockReq.Iteration+1 < blockReq.SamplesPerPixel {
			return 0, nil
		}

		start := time.Now()
		err := writePNG(imgFile, blockReq.FrameBuffer, blockReq.FrameW, blockReq.FrameH)
		if err != nil {
			return time.Since(start), err
		}
		tr.logger.Noticef("wrote frame to %s", imgFile)
		return time.Since(start), nil
	}
}

// Dump a copy of the RGBA framebuffer.
func DebugFrameBuffer(imgFile string) PipelineStage {
	return func(ctx context.Context, tr *Tracer, blockReq *tracer.BlockRequest) (time.Duration, error) {
		start := time.Now()
		err := writePNG(imgFile, blockReq.FrameBuffer, blockReq.FrameW, blockReq.FrameH)
		return time.Since(start), err
	}
}

// Dump the averaged accumulator contents without tone-mapping.
func DebugAccumulator(imgFile string) PipelineStage {
	return func(ctx context.Context, tr *Tracer, blockReq *tracer.BlockRequest) (time.Duration, error) {
		start := time.Now()

		scale := 1 / float32(blockReq.Iteration+1)
		pix := make([]uint8, 4*len(blockReq.Accumulator))
		for i, c := range blockReq.Accumulator {
			c = c.Mul(scale)
			for ch := 0; ch < 3; ch++ {
				pix[4*i+ch] = uint8(min(max(c[ch], 0), 1) * 255)
			}
			pix[4*i+3] = 255
		}
		err := writePNG(imgFile, pix, blockReq.FrameW, blockReq.FrameH)
		return time.Since(start), err
	}
}

// Dump debug buffer to png file.
func dumpDebugBuffer(debugKernelError error, pix []uint8, blockReq *tracer.BlockRequest, imgFile string) error {
	if debugKernelError != nil {
		return debugKernelError
	}
	return writePNG(imgFile, pix, blockReq.FrameW, blockReq.FrameH)
}

func writePNG(imgFile string, pix []uint8, frameW, frameH uint32) error {
	f, err := os.Create(imgFile)
	if err != nil {
		return err
	}
	defer f.Close()

	im := image.NewRGBA(image.Rect(0, 0, int(frameW), int(frameH)))
	copy(im.Pix, pix)
	return png.Encode(f, im)
}
