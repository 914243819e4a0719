package renderer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/achilleasa/wavetrace/log"
	"github.com/achilleasa/wavetrace/scene"
	"github.com/achilleasa/wavetrace/tracer"
	"github.com/achilleasa/wavetrace/tracer/cpu"
	"github.com/achilleasa/wavetrace/tracer/cpu/device"
)

// A progressive renderer that drives a cpu tracer one iteration at a time.
type defaultRenderer struct {
	logger log.Logger

	// Serializes iterations.
	renderMutex sync.Mutex

	// Guards the fields below.
	sync.Mutex

	options Options
	tracer  *cpu.Tracer
	state   *RenderState
	stats   FrameStats

	// Incremented by camera updates; an iteration started under an older
	// generation is discarded.
	generation      uint64
	cancelIteration context.CancelFunc
}

// Create a new default renderer. If pipeline is nil, the default cpu tracer
// pipeline is used.
func NewDefault(sc *scene.Scene, pipeline *cpu.Pipeline, opts Options) (Renderer, error) {
	if sc == nil {
		return nil, ErrSceneNotDefined
	}
	if sc.Camera == nil {
		return nil, ErrCameraNotDefined
	}

	if opts.FrameW == 0 && opts.FrameH == 0 {
		opts.FrameW, opts.FrameH = uint32(sc.Camera.Resolution[0]), uint32(sc.Camera.Resolution[1])
	}
	if opts.FrameW == 0 || opts.FrameH == 0 {
		return nil, ErrInvalidFrameSize
	}
	if opts.NumBounces == 0 {
		opts.NumBounces = uint32(max(sc.Camera.PathDepth, 1))
	}
	if opts.Exposure == 0 {
		opts.Exposure = 1
	}

	r := &defaultRenderer{
		logger: log.New("renderer"),
	}
	if opts.MinBouncesForRR == 0 || opts.MinBouncesForRR >= opts.NumBounces {
		r.logger.Notice("disabling RR for path elimination")
		opts.MinBouncesForRR = opts.NumBounces + 1
	}
	r.options = opts

	if sc.Tree() == nil {
		if err := sc.Build(); err != nil {
			return nil, err
		}
	}

	if pipeline == nil {
		pipeline = cpu.DefaultPipeline(opts.DebugFlags, ".")
	}

	var err error
	grid := device.NewGrid(opts.Workers, opts.ChunkSize)
	r.tracer, err = cpu.NewTracer("cpu", grid, pipeline, opts.MinBouncesForRR)
	if err != nil {
		return nil, err
	}
	if err = r.tracer.Setup(opts.FrameW, opts.FrameH); err != nil {
		return nil, err
	}
	r.logger.Infof("using %s", grid)

	camera := r.cameraSnapshot(sc.Camera)
	r.state = newRenderState(camera, opts.FrameW, opts.FrameH, opts.NumBounces, opts.ImageName)
	r.tracer.Update(tracer.UpdateScene, sc)
	r.tracer.Update(tracer.UpdateCamera, camera)

	return r, nil
}

// Copy the camera and apply the frame and path depth overrides.
func (r *defaultRenderer) cameraSnapshot(camera *scene.Camera) *scene.Camera {
	snapshot := *camera
	snapshot.PathDepth = int(r.options.NumBounces)
	snapshot.SetResolution(int(r.options.FrameW), int(r.options.FrameH))
	return &snapshot
}

func (r *defaultRenderer) Render(ctx context.Context) error {
	start := time.Now()
	for {
		r.Lock()
		iterations := r.state.Iterations
		r.Unlock()

		if r.options.SamplesPerPixel != 0 && iterations >= r.options.SamplesPerPixel {
			r.logger.Infof("rendered %d iterations in %s", iterations, time.Since(start))
			return nil
		}
		if err := r.RenderFrame(ctx); err != nil {
			return err
		}
	}
}

func (r *defaultRenderer) RenderFrame(ctx context.Context) error {
	r.renderMutex.Lock()
	defer r.renderMutex.Unlock()

	r.Lock()
	generation := r.generation
	iterCtx, cancel := context.WithCancel(ctx)
	r.cancelIteration = cancel
	blockReq := &tracer.BlockRequest{
		FrameW:          r.options.FrameW,
		FrameH:          r.options.FrameH,
		BlockH:          r.options.FrameH,
		SamplesPerPixel: r.options.SamplesPerPixel,
		Exposure:        r.options.Exposure,
		Seed:            r.options.Seed,
		Iteration:       r.state.Iterations,
		Accumulator:     r.state.Image,
		FrameBuffer:     r.state.CImage.Pix,
	}
	r.Unlock()
	defer cancel()

	start := time.Now()
	err := r.tracer.Trace(iterCtx, blockReq)

	r.Lock()
	defer r.Unlock()
	r.cancelIteration = nil

	if err != nil {
		if ctx.Err() != nil {
			r.logger.Noticef("interrupted while rendering iteration %d", blockReq.Iteration)
			return fmt.Errorf("%w: %w", ErrInterrupted, ctx.Err())
		}
		if errors.Is(err, context.Canceled) && generation != r.generation {
			r.logger.Notice("discarded iteration after camera update")
			return nil
		}
		return err
	}

	// The camera changed after the block was merged; the next iteration
	// clears the accumulator.
	if generation != r.generation {
		r.logger.Notice("discarded iteration after camera update")
		return nil
	}

	r.state.Iterations++
	r.stats = newFrameStats(r.tracer, r.state.Iterations, time.Since(start))
	r.logger.Infof("iteration %d rendered in %s", r.state.Iterations, r.stats.RenderTime)
	if r.stats.DiscardedPaths != 0 {
		r.logger.Warningf("iteration %d discarded %d paths with non-finite radiance", r.state.Iterations, r.stats.DiscardedPaths)
	}
	return nil
}

func (r *defaultRenderer) UpdateCamera(camera *scene.Camera) {
	r.Lock()
	defer r.Unlock()

	snapshot := r.cameraSnapshot(camera)
	r.state.Camera = snapshot
	r.state.Iterations = 0
	r.generation++
	r.tracer.Update(tracer.UpdateCamera, snapshot)

	if r.cancelIteration != nil {
		r.cancelIteration()
	}
}

func (r *defaultRenderer) Orbit(yawDeg, pitchDeg float32) {
	r.Lock()
	camera := *r.state.Camera
	r.Unlock()

	camera.Orbit(yawDeg, pitchDeg)
	r.UpdateCamera(&camera)
}

func (r *defaultRenderer) State() *RenderState {
	return r.state
}

func (r *defaultRenderer) Stats() FrameStats {
	r.Lock()
	defer r.Unlock()
	return r.stats
}

func (r *defaultRenderer) Close() {
	r.Lock()
	if r.cancelIteration != nil {
		r.cancelIteration()
	}
	r.Unlock()

	r.renderMutex.Lock()
	defer r.renderMutex.Unlock()
	if r.tracer != nil {
		r.tracer.Close()
	}
}
