package cmd

import (
	"context"
	"errors"
	"os"

	"github.com/achilleasa/wavetrace/asset/scene/reader"
	"github.com/achilleasa/wavetrace/renderer"
	"github.com/achilleasa/wavetrace/tracer/cpu"
	"github.com/urfave/cli"
)

// Render a single iteration and dump the intermediate tracer buffers.
func Debug(ctx *cli.Context) error {
	setupLogging(ctx)

	if ctx.NArg() != 1 {
		return errors.New("missing scene file argument")
	}

	outDir := ctx.String("out-dir")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}

	// Load scene
	sc, err := reader.ReadScene(ctx.Args().First())
	if err != nil {
		return err
	}

	debugFlags := cpu.PrimaryRayIntersectionDepth | cpu.PrimaryRayIntersectionNormals |
		cpu.Throughput | cpu.Accumulator | cpu.FrameBuffer
	pipeline := cpu.DefaultPipeline(debugFlags, outDir)

	opts := renderOptions(ctx)
	opts.SamplesPerPixel = 1
	opts.DebugFlags = debugFlags

	r, err := renderer.NewDefault(sc, pipeline, opts)
	if err != nil {
		return err
	}
	defer r.Close()

	if err = r.RenderFrame(context.Background()); err != nil {
		return err
	}

	logger.Noticef("wrote debug images to %s\n%s", outDir, r.Stats())
	return nil
}
