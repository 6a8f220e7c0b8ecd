package main

import (
	"context"
	"log/slog"

	"github.com/urfave/cli/v3"

	"github.com/jupiterclapton/agora/internal/adapters/secondary/repository"
)

var migrateCmd = &cli.Command{
	Name:  "migrate",
	Usage: "Apply or roll back the database schema",
	Commands: []*cli.Command{
		{
			Name:  "up",
			Usage: "Apply all pending migrations",
			Action: func(ctx context.Context, c *cli.Command) error {
				return withMigrator(c, func(m *repository.Migrator) error { return m.Up(ctx) })
			},
		},
		{
			Name:  "down",
			Usage: "Roll back the last migration",
			Action: func(ctx context.Context, c *cli.Command) error {
				return withMigrator(c, func(m *repository.Migrator) error { return m.Down(ctx) })
			},
		},
	},
}

func withMigrator(c *cli.Command, fn func(m *repository.Migrator) error) error {
	cfg, err := setup(c)
	if err != nil {
		return err
	}

	m, err := repository.NewMigrator(cfg.DBUrl, slog.Default())
	if err != nil {
		return err
	}
	defer func() {
		if err := m.Close(); err != nil {
			slog.Warn("failed to close migrator", "error", err)
		}
	}()

	return fn(m)
}
