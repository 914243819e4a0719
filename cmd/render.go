package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/achilleasa/wavetrace/asset/scene/reader"
	"github.com/achilleasa/wavetrace/renderer"
	"github.com/achilleasa/wavetrace/tracer/cpu"
	"github.com/urfave/cli"
)

// Render a still frame.
func RenderFrame(ctx *cli.Context) error {
	setupLogging(ctx)

	if ctx.NArg() != 1 {
		return errors.New("missing scene file argument")
	}

	debugFlags, err := parseDebugFlags(ctx.StringSlice("debug"))
	if err != nil {
		return err
	}

	imgFile := ctx.String("out")
	opts := renderOptions(ctx)
	opts.DebugFlags = debugFlags
	opts.ImageName = imgFile

	// Load scene
	sc, err := reader.ReadScene(ctx.Args().First())
	if err != nil {
		return err
	}

	// Setup tracing pipeline
	pipeline := cpu.DefaultPipeline(debugFlags, filepath.Dir(imgFile))
	pipeline.PostProcess = append(pipeline.PostProcess, cpu.SaveFrameBuffer(imgFile))

	// Create renderer
	r, err := renderer.NewDefault(sc, pipeline, opts)
	if err != nil {
		return err
	}
	defer r.Close()

	if resumeFile := ctx.String("resume"); resumeFile != "" {
		if err = loadCheckpoint(resumeFile, r.State()); err != nil {
			return err
		}
		logger.Noticef("resuming render from %s after %d iterations", resumeFile, r.State().Iterations)
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	renderErr := r.Render(sigCtx)

	// Keep the accumulated iterations even if the render was interrupted
	if checkpointFile := ctx.String("checkpoint"); checkpointFile != "" && r.State().Iterations != 0 {
		if err = saveCheckpoint(checkpointFile, r.State()); err != nil {
			return err
		}
		logger.Noticef("saved checkpoint with %d iterations to %s", r.State().Iterations, checkpointFile)
	}
	if errors.Is(renderErr, renderer.ErrInterrupted) {
		logger.Noticef("render interrupted after %d iterations", r.State().Iterations)
	} else if renderErr != nil {
		return renderErr
	}

	// Display stats
	logger.Noticef("frame statistics\n%s", r.Stats())
	return nil
}

func renderOptions(ctx *cli.Context) renderer.Options {
	return renderer.Options{
		FrameW:          uint32(ctx.Int("width")),
		FrameH:          uint32(ctx.Int("height")),
		SamplesPerPixel: uint32(ctx.Int("spp")),
		Exposure:        float32(ctx.Float64("exposure")),
		NumBounces:      uint32(ctx.Int("num-bounces")),
		MinBouncesForRR: uint32(ctx.Int("rr-bounces")),
		Workers:         ctx.Int("workers"),
		ChunkSize:       ctx.Int("chunk-size"),
		Seed:            ctx.Int64("seed"),
	}
}

func parseDebugFlags(names []string) (cpu.DebugFlag, error) {
	var flags cpu.DebugFlag
	for _, name := range names {
		flag, err := cpu.DebugFlagFromName(name)
		if err != nil {
			return cpu.Off, err
		}
		flags |= flag
	}
	return flags, nil
}

func saveCheckpoint(file string, state *renderer.RenderState) error {
	f, err := os.Create(file)
	if err != nil {
		return err
	}

	if err = renderer.SaveCheckpoint(f, state); err != nil {
		f.Close()
		return fmt.Errorf("could not write checkpoint %s: %w", file, err)
	}
	return f.Close()
}

func loadCheckpoint(file string, state *renderer.RenderState) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()

	if err = renderer.LoadCheckpoint(f, state); err != nil {
		return fmt.Errorf("could not load checkpoint %s: %w", file, err)
	}
	return nil
}
