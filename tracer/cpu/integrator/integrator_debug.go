package integrator

import (
	"context"
	"math"
	"sync/atomic"
	"time"

	"github.com/achilleasa/wavetrace/tracer"
	"github.com/achilleasa/wavetrace/tracer/cpu/device"
	"github.com/achilleasa/wavetrace/types"
)

const gamma = 1.0 / 2.2

// Tone-map the accumulated radiance of the block into the RGBA8 frame buffer
// using x / (1 + x) followed by gamma correction.
func (in *MonteCarlo) TonemapSimpleReinhard(ctx context.Context, blockReq *tracer.BlockRequest) (time.Duration, error) {
	start := time.Now()
	numFramePixels := int(blockReq.FrameW * blockReq.FrameH)
	if len(blockReq.Accumulator) != numFramePixels || len(blockReq.FrameBuffer) != 4*numFramePixels {
		return 0, ErrBuffersMissing
	}

	offset := int(blockReq.BlockY * blockReq.FrameW)
	scale := blockReq.Exposure / float32(blockReq.Iteration+1)
	err := in.grid.Exec1D(ctx, blockReq.NumPixels(), func(chunk device.Chunk) error {
		for i := chunk.Start; i < chunk.End; i++ {
			pixel := offset + i
			writeRGBA(blockReq.FrameBuffer[4*pixel:], reinhard(blockReq.Accumulator[pixel].Mul(scale)))
		}
		return nil
	})
	return time.Since(start), err
}

// Map HDR radiance to a displayable [0, 1] color.
func reinhard(c types.Vec3) types.Vec3 {
	var out types.Vec3
	for i := 0; i < 3; i++ {
		v := max(c[i], 0)
		out[i] = float32(math.Pow(float64(v/(1+v)), gamma))
	}
	return out
}

func writeRGBA(dst []uint8, c types.Vec3) {
	for i := 0; i < 3; i++ {
		dst[i] = uint8(types.Clamp(c[i], 0, 1)*255 + 0.5)
	}
	dst[3] = 255
}

// Render primary ray hit distances into the debug buffer. Closer hits are
// brighter; misses are black. Must be called right after the primary
// intersection query.
func (in *MonteCarlo) DebugPrimaryRayIntersectionDepth(ctx context.Context) (time.Duration, error) {
	start := time.Now()

	var maxDepthBits uint32
	err := in.grid.Exec1D(ctx, in.numActive, func(chunk device.Chunk) error {
		var chunkMax float32
		for i := chunk.Start; i < chunk.End; i++ {
			if in.isects[i].Hit() {
				chunkMax = max(chunkMax, in.isects[i].T)
			}
		}
		for {
			old := atomic.LoadUint32(&maxDepthBits)
			if chunkMax <= math.Float32frombits(old) || atomic.CompareAndSwapUint32(&maxDepthBits, old, math.Float32bits(chunkMax)) {
				return nil
			}
		}
	})
	if err != nil {
		return time.Since(start), err
	}

	maxDepth := math.Float32frombits(maxDepthBits)
	err = in.grid.Exec1D(ctx, in.numActive, func(chunk device.Chunk) error {
		for i := chunk.Start; i < chunk.End; i++ {
			var c types.Vec3
			if isect := in.isects[i]; isect.Hit() && maxDepth > 0 {
				c = types.Splat3(1 - isect.T/maxDepth)
			}
			writeRGBA(in.DebugOutput[4*in.paths[i].PixelIndex:], c)
		}
		return nil
	})
	return time.Since(start), err
}

// Render primary ray surface normals into the debug buffer. Normal
// components are remapped from [-1, 1] to [0, 1]; misses are black.
func (in *MonteCarlo) DebugPrimaryRayIntersectionNormals(ctx context.Context) (time.Duration, error) {
	start := time.Now()

	err := in.grid.Exec1D(ctx, in.numActive, func(chunk device.Chunk) error {
		for i := chunk.Start; i < chunk.End; i++ {
			var c types.Vec3
			if isect := in.isects[i]; isect.Hit() {
				si := in.scene.Resolve(in.paths[i].Ray, isect)
				c = si.Normal.Mul(0.5).Add(types.Splat3(0.5))
			}
			writeRGBA(in.DebugOutput[4*in.paths[i].PixelIndex:], c)
		}
		return nil
	})
	return time.Since(start), err
}

// Render the throughput of active paths into the debug buffer.
func (in *MonteCarlo) DebugThroughput(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	clear(in.DebugOutput)

	err := in.grid.Exec1D(ctx, in.numActive, func(chunk device.Chunk) error {
		for i := chunk.Start; i < chunk.End; i++ {
			writeRGBA(in.DebugOutput[4*in.paths[i].PixelIndex:], in.paths[i].Throughput)
		}
		return nil
	})
	return time.Since(start), err
}
