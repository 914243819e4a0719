package main

import (
	"fmt"
	"os"

	"github.com/achilleasa/wavetrace/cmd"
	"github.com/urfave/cli"
)

func renderFlags() []cli.Flag {
	return []cli.Flag{
		cli.IntFlag{
			Name:  "width",
			Usage: "frame width; defaults to the scene camera resolution",
		},
		cli.IntFlag{
			Name:  "height",
			Usage: "frame height; defaults to the scene camera resolution",
		},
		cli.IntFlag{
			Name:  "num-bounces",
			Usage: "max number of bounces per path; defaults to the scene camera path depth",
		},
		cli.IntFlag{
			Name:  "rr-bounces",
			Value: 3,
			Usage: "min number of bounces before applying russian roulette; set to 0 to disable",
		},
		cli.Float64Flag{
			Name:  "exposure",
			Value: 1.0,
			Usage: "camera exposure for tone-mapping",
		},
		cli.IntFlag{
			Name:  "workers",
			Usage: "number of compute grid workers; defaults to the number of logical CPUs",
		},
		cli.IntFlag{
			Name:  "chunk-size",
			Usage: "number of paths processed by each compute grid task",
		},
		cli.Int64Flag{
			Name:  "seed",
			Value: 1,
			Usage: "seed for the random sample streams",
		},
	}
}

func main() {
	cli.VersionFlag = cli.BoolFlag{
		Name:  "version",
		Usage: "print only the version",
	}

	app := cli.NewApp()
	app.Name = "wavetrace"
	app.Usage = "render scenes using wavefront path tracing"
	app.Version = "0.1.0"
	app.Flags = []cli.Flag{
		cli.BoolFlag{
			Name:  "v",
			Usage: "enable verbose logging",
		},
		cli.BoolFlag{
			Name:  "vv",
			Usage: "enable even more verbose logging",
		},
		cli.StringFlag{
			Name:  "log-level",
			Usage: "set log level (debug, info, notice, warning, error)",
		},
	}
	app.Commands = []cli.Command{
		{
			Name:  "list-devices",
			Usage: "describe the compute grid used for tracing",
			Flags: []cli.Flag{
				cli.IntFlag{
					Name:  "workers",
					Usage: "number of compute grid workers",
				},
				cli.IntFlag{
					Name:  "chunk-size",
					Usage: "number of paths processed by each compute grid task",
				},
			},
			Action: cmd.ListDevices,
		},
		{
			Name:  "scene",
			Usage: "inspect scene files",
			Subcommands: []cli.Command{
				{
					Name:      "stats",
					Usage:     "display scene and BVH statistics",
					ArgsUsage: "scene.json",
					Action:    cmd.ShowSceneInfo,
				},
			},
		},
		{
			Name:  "render",
			Usage: "render scene",
			Subcommands: []cli.Command{
				{
					Name:  "frame",
					Usage: "render single frame",
					Description: `
Progressively render a frame until the requested number of samples per pixel
has been accumulated. Interrupting the render keeps the accumulated samples
when a checkpoint file is specified; the checkpoint can be passed to --resume
to continue rendering.`,
					ArgsUsage: "scene.json",
					Flags: append(renderFlags(),
						cli.IntFlag{
							Name:  "spp",
							Value: 16,
							Usage: "samples per pixel; set to 0 to render until interrupted",
						},
						cli.StringFlag{
							Name:  "out, o",
							Value: "frame.png",
							Usage: "image filename for the rendered frame",
						},
						cli.StringFlag{
							Name:  "checkpoint",
							Usage: "write the accumulated samples to this file when rendering stops",
						},
						cli.StringFlag{
							Name:  "resume",
							Usage: "resume rendering from a checkpoint file",
						},
						cli.StringSliceFlag{
							Name:  "debug",
							Value: &cli.StringSlice{},
							Usage: "dump debug images (depth, normals, throughput, accumulator, framebuffer)",
						},
					),
					Action: cmd.RenderFrame,
				},
			},
		},
		{
			Name:      "debug",
			Usage:     "render a single iteration and dump intermediate tracer buffers",
			ArgsUsage: "scene.json",
			Flags: append(renderFlags(),
				cli.StringFlag{
					Name:  "out-dir",
					Value: ".",
					Usage: "directory for the debug images",
				},
			),
			Action: cmd.Debug,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
