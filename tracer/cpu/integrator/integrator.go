package integrator

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/achilleasa/wavetrace/bxdf"
	"github.com/achilleasa/wavetrace/sampling"
	"github.com/achilleasa/wavetrace/scene"
	"github.com/achilleasa/wavetrace/tracer"
	"github.com/achilleasa/wavetrace/tracer/cpu/device"
	"github.com/achilleasa/wavetrace/types"
)

var (
	ErrSceneNotBuilt  = errors.New("integrator: scene has not been built")
	ErrNoCamera       = errors.New("integrator: no camera data uploaded")
	ErrBlockTooLarge  = errors.New("integrator: block exceeds frame dimensions")
	ErrBuffersMissing = errors.New("integrator: block request buffers do not match frame dimensions")
)

const (
	// Lower bound for the russian roulette survival probability.
	minSurvivalProbability float32 = 0.05

	// Random streams are keyed by stage and chunk index.
	chunkStreamBits = 24
)

// Monte-carlo wavefront integrator. Each kernel processes the whole set of
// active paths before the next kernel starts.
type MonteCarlo struct {
	// The compute grid used for dispatching kernels.
	grid *device.Grid

	// Scene and camera data.
	scene  *scene.Scene
	camera *scene.Camera

	// Apply russian roulette to paths that completed at least this many bounces.
	MinBouncesForRR uint32

	frameW uint32
	frameH uint32

	// Offset of the first block pixel in the frame buffers.
	blockOffset int

	// Path state and the intersection found for each active path.
	paths     []tracer.PathSegment
	isects    []scene.Intersection
	numActive int

	// Radiance estimate for each block pixel for the current iteration.
	samples []types.Vec3

	// RGBA8 output of the debug kernels.
	DebugOutput []uint8

	bounceStats    []tracer.BounceStat
	discardedPaths int
}

// Create a new monte-carlo integrator.
func NewMonteCarloIntegrator(grid *device.Grid) *MonteCarlo {
	return &MonteCarlo{
		grid: grid,
	}
}

// Resize buffers whenever frame dimensions change.
func (in *MonteCarlo) ResizeOutputFrame(frameW, frameH uint32) error {
	numPixels := int(frameW * frameH)
	in.frameW, in.frameH = frameW, frameH
	in.paths = make([]tracer.PathSegment, numPixels)
	in.isects = make([]scene.Intersection, numPixels)
	in.samples = make([]types.Vec3, numPixels)
	in.DebugOutput = make([]uint8, 4*numPixels)
	in.numActive = 0
	return nil
}

// Attach scene data. The scene must already be built.
func (in *MonteCarlo) UploadSceneData(sc *scene.Scene) error {
	if sc == nil || sc.Tree() == nil {
		return ErrSceneNotBuilt
	}
	in.scene = sc
	return nil
}

// Store a snapshot of the camera.
func (in *MonteCarlo) UploadCameraData(camera *scene.Camera) error {
	if camera == nil {
		return ErrNoCamera
	}
	snapshot := *camera
	in.camera = &snapshot
	return nil
}

// Number of paths that are still active.
func (in *MonteCarlo) NumActive() int {
	return in.numActive
}

// Get the active path buffer.
func (in *MonteCarlo) Paths() []tracer.PathSegment {
	return in.paths[:in.numActive]
}

// Get the radiance estimate of each block pixel for the current iteration.
func (in *MonteCarlo) Samples() []types.Vec3 {
	return in.samples
}

// Get per-bounce statistics for the last traced block.
func (in *MonteCarlo) BounceStats() []tracer.BounceStat {
	return in.bounceStats
}

// Number of paths discarded in the last traced block due to non-finite values.
func (in *MonteCarlo) DiscardedPaths() int {
	return in.discardedPaths
}

func (in *MonteCarlo) validateBlock(blockReq *tracer.BlockRequest) error {
	if blockReq.FrameW != in.frameW || blockReq.FrameH != in.frameH || blockReq.BlockY+blockReq.BlockH > in.frameH {
		return ErrBlockTooLarge
	}
	if in.scene == nil {
		return ErrSceneNotBuilt
	}
	if in.camera == nil {
		return ErrNoCamera
	}
	return nil
}

func (in *MonteCarlo) sampler(blockReq *tracer.BlockRequest, stage int, chunk device.Chunk) sampling.Sampler {
	return sampling.NewRandomSampler(sampling.Seed(blockReq.Seed, blockReq.Iteration, stage<<chunkStreamBits|chunk.Index))
}

// Generate one jittered primary ray per block pixel and reset the
// corresponding path state.
func (in *MonteCarlo) GeneratePrimaryRays(ctx context.Context, blockReq *tracer.BlockRequest) (time.Duration, error) {
	start := time.Now()
	if err := in.validateBlock(blockReq); err != nil {
		return 0, err
	}

	// Pixel indices are relative to the frame so the camera viewport must match it
	if res := [2]int{int(blockReq.FrameW), int(blockReq.FrameH)}; in.camera.Resolution != res {
		in.camera.SetResolution(res[0], res[1])
	}

	numPixels := blockReq.NumPixels()
	frameW := int(blockReq.FrameW)
	blockY := int(blockReq.BlockY)
	depth := int32(in.camera.PathDepth)

	in.blockOffset = blockY * frameW
	in.bounceStats = in.bounceStats[:0]
	in.discardedPaths = 0

	err := in.grid.Exec1D(ctx, numPixels, func(chunk device.Chunk) error {
		sampler := in.sampler(blockReq, 0, chunk)
		for i := chunk.Start; i < chunk.End; i++ {
			x, y := i%frameW, blockY+i/frameW

			p := &in.paths[i]
			p.Reset()
			p.Ray = in.camera.GenerateRay(x, y, sampler.Get2D(), sampler.Get2D())
			p.PixelIndex = int32(in.camera.PixelIndex(x, y))
			p.RemainingBounces = depth

			in.samples[i] = types.Vec3{}
		}
		return nil
	})
	if err != nil {
		return time.Since(start), err
	}

	in.numActive = numPixels
	return time.Since(start), nil
}

// Find the closest intersection for every active path.
func (in *MonteCarlo) RayIntersectionQuery(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	stat := tracer.BounceStat{ActivePaths: in.numActive}

	var hits int64
	err := in.grid.Exec1D(ctx, in.numActive, func(chunk device.Chunk) error {
		var chunkHits int64
		for i := chunk.Start; i < chunk.End; i++ {
			isect, hit := in.scene.Intersect(in.paths[i].Ray)
			in.isects[i] = isect
			if hit {
				chunkHits++
			}
		}
		atomic.AddInt64(&hits, chunkHits)
		return nil
	})

	stat.Hits = int(hits)
	in.bounceStats = append(in.bounceStats, stat)
	return time.Since(start), err
}

// Add the background radiance to paths that escaped the scene and
// terminate them.
func (in *MonteCarlo) ShadeMisses(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	background := in.scene.Background

	err := in.grid.Exec1D(ctx, in.numActive, func(chunk device.Chunk) error {
		for i := chunk.Start; i < chunk.End; i++ {
			if in.isects[i].Hit() {
				continue
			}
			p := &in.paths[i]
			p.Radiance = p.Radiance.Add(p.Throughput.MulVec(background))
			p.Terminate()
		}
		return nil
	})
	return time.Since(start), err
}

// Evaluate the material at each path hit point, collect emission and sample
// the next path direction.
func (in *MonteCarlo) ShadeHits(ctx context.Context, blockReq *tracer.BlockRequest, bounce uint32) (time.Duration, error) {
	start := time.Now()
	applyRR := bounce >= in.MinBouncesForRR

	err := in.grid.Exec1D(ctx, in.numActive, func(chunk device.Chunk) error {
		sampler := in.sampler(blockReq, int(bounce)+1, chunk)
		for i := chunk.Start; i < chunk.End; i++ {
			p := &in.paths[i]
			if p.IsEnd() {
				continue
			}
			in.shadeHit(p, in.isects[i], sampler)

			if !p.IsEnd() && applyRR {
				russianRoulette(p, sampler)
			}

			if !p.Throughput.IsFinite() {
				p.Terminate()
			}
		}
		return nil
	})
	return time.Since(start), err
}

func (in *MonteCarlo) shadeHit(p *tracer.PathSegment, isect scene.Intersection, sampler sampling.Sampler) {
	si := in.scene.Resolve(p.Ray, isect)
	if !si.Valid() {
		p.Terminate()
		return
	}

	// Travel through the medium that contains the path origin
	if p.MediaID >= 0 {
		medium, err := in.scene.Material(p.MediaID)
		if err != nil {
			p.Terminate()
			return
		}

		ms := bxdf.SampleMedium(medium, si.T, sampler)
		p.Throughput = p.Throughput.MulVec(ms.Weight)
		if ms.Scattered {
			p.Ray = types.Ray{Origin: p.Ray.At(ms.Distance), Dir: ms.Dir}
			p.RemainingBounces--
			return
		}
	}

	mat, err := in.scene.Material(si.MaterialID)
	if err != nil {
		p.Terminate()
		return
	}

	if mat.IsEmissive() {
		emission := mat.GetAlbedo(si.UV).Mul(mat.Emittance)
		p.Radiance = p.Radiance.Add(p.Throughput.MulVec(emission))
		p.Terminate()
		return
	}

	surf := mat.Resolve(si.UV, si.Normal)
	wo := p.Ray.Dir.Neg()
	sample := bxdf.SampleF(mat, surf, wo, sampler)
	if !sample.Valid() {
		p.Terminate()
		return
	}

	p.Throughput = p.Throughput.MulVec(sample.Weight(surf.Normal))
	if sample.Transmission && mat.Lobe == scene.SubsurfaceScattering {
		if wo.Dot(si.Normal) > 0 {
			p.MediaID = si.MaterialID
		} else {
			p.MediaID = -1
		}
	}

	p.Ray = types.SpawnRay(si.Position, sample.WiW)
	p.RemainingBounces--
}

// Terminate low contribution paths with a probability based on their
// throughput and boost the survivors.
func russianRoulette(p *tracer.PathSegment, sampler sampling.Sampler) {
	q := types.Clamp(p.Throughput.Luminance(), minSurvivalProbability, 1)
	if sampler.Get1D() >= q {
		p.Terminate()
		return
	}
	p.Throughput = p.Throughput.Mul(1 / q)
}

// Retire all finished paths by writing their radiance to the sample buffer
// and move the remaining active paths to the front of the path buffer.
// Paths with non-finite radiance or throughput contribute nothing.
func (in *MonteCarlo) Compact() (time.Duration, int) {
	start := time.Now()

	active := 0
	for i := 0; i < in.numActive; i++ {
		p := &in.paths[i]
		if !p.IsEnd() {
			if active != i {
				in.paths[active] = *p
			}
			active++
			continue
		}

		slot := int(p.PixelIndex) - in.blockOffset
		if !p.Radiance.IsFinite() || !p.Throughput.IsFinite() {
			in.discardedPaths++
			in.samples[slot] = types.Vec3{}
			continue
		}
		in.samples[slot] = p.Radiance
	}

	terminated := in.numActive - active
	if n := len(in.bounceStats); n != 0 {
		in.bounceStats[n-1].Terminated = terminated
	}
	in.numActive = active
	return time.Since(start), terminated
}

// Merge the iteration samples into the block request accumulator. Merging
// is never interrupted so the accumulator always holds whole iterations.
func (in *MonteCarlo) Accumulate(ctx context.Context, blockReq *tracer.BlockRequest) (time.Duration, error) {
	start := time.Now()
	if len(blockReq.Accumulator) != int(blockReq.FrameW*blockReq.FrameH) {
		return 0, ErrBuffersMissing
	}

	accum := blockReq.Accumulator[in.blockOffset:]
	err := in.grid.Exec1D(context.WithoutCancel(ctx), blockReq.NumPixels(), func(chunk device.Chunk) error {
		for i := chunk.Start; i < chunk.End; i++ {
			accum[i] = accum[i].Add(in.samples[i])
		}
		return nil
	})
	return time.Since(start), err
}

// Clear the block rows of the accumulator.
func (in *MonteCarlo) ClearAccumulator(ctx context.Context, blockReq *tracer.BlockRequest) (time.Duration, error) {
	start := time.Now()
	if len(blockReq.Accumulator) != int(blockReq.FrameW*blockReq.FrameH) {
		return 0, ErrBuffersMissing
	}

	offset := int(blockReq.BlockY * blockReq.FrameW)
	accum := blockReq.Accumulator[offset : offset+blockReq.NumPixels()]
	clear(accum)
	return time.Since(start), nil
}
