package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/jupiterclapton/agora/config"
	"github.com/jupiterclapton/agora/pkg/telemetry"
)

const version = "0.1.0"

var cmd = &cli.Command{
	Name:    "agora",
	Usage:   "Agora social network backend",
	Version: version,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "debug, info, warn or error",
			Sources: cli.EnvVars("LOG_LEVEL"),
			Value:   "info",
		},
	},
	Commands: []*cli.Command{
		serveCmd,
		migrateCmd,
	},
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cmd.Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup charge la config et installe le logger global.
func setup(c *cli.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if _, err := telemetry.InitLogger(cfg.Env, c.String("log-level")); err != nil {
		return nil, err
	}
	return cfg, nil
}
