package cmd

import (
	"github.com/achilleasa/wavetrace/tracer/cpu/device"
	"github.com/urfave/cli"
)

// List the compute grid that tracers run on.
func ListDevices(ctx *cli.Context) error {
	setupLogging(ctx)

	grid := device.NewGrid(ctx.Int("workers"), ctx.Int("chunk-size"))
	logger.Noticef("available compute devices:\n%s", grid.Info())
	return nil
}
