package cmd

import (
	"github.com/achilleasa/wavetrace/log"
	"github.com/urfave/cli"
)

var logger = log.New("wavetrace")

func setupLogging(ctx *cli.Context) {
	if name := ctx.GlobalString("log-level"); name != "" {
		level, err := log.ParseLevel(name)
		if err != nil {
			logger.Warningf("%v; using default log level", err)
		} else {
			log.SetLevel(level)
		}
	}

	if ctx.GlobalBool("v") {
		log.SetLevel(log.Info)
	}

	if ctx.GlobalBool("vv") {
		log.SetLevel(log.Debug)
	}
}
