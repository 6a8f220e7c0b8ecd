package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5" // driver "pgx5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrator applique les migrations SQL embarquées dans le binaire.
type Migrator struct {
	logger   *slog.Logger
	migrator *migrate.Migrate
}

// NewMigrator ouvre sa propre connexion : golang-migrate ne partage pas le pool pgx.
func NewMigrator(databaseURL string, logger *slog.Logger) (*Migrator, error) {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, migrateURL(databaseURL))
	if err != nil {
		return nil, fmt.Errorf("failed to init migrator: %w", err)
	}

	return &Migrator{logger: logger.With("component", "migrator"), migrator: m}, nil
}

// migrateURL remplace le schéma postgres:// par celui du driver pgx5.
func migrateURL(databaseURL string) string {
	for _, scheme := range []string{"postgres://", "postgresql://"} {
		if rest, ok := strings.CutPrefix(databaseURL, scheme); ok {
			return "pgx5://" + rest
		}
	}
	return databaseURL
}

func (m *Migrator) Up(ctx context.Context) error {
	if err := m.Fix(ctx); err != nil {
		return err
	}

	m.logger.Info("⬆️ Migrating database up")

	if err := m.migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}

	m.logger.Info("✅ Database migration completed")
	return nil
}

func (m *Migrator) Down(ctx context.Context) error {
	if err := m.Fix(ctx); err != nil {
		return err
	}

	m.logger.Info("⬇️ Migrating database down")

	if err := m.migrator.Steps(-1); err != nil {
		return err
	}

	m.logger.Info("✅ Database migration completed")
	return nil
}

// Fix force la version courante si une migration précédente a laissé la base "dirty".
func (m *Migrator) Fix(_ context.Context) error {
	version, dirty, err := m.migrator.Version()
	if err != nil {
		if errors.Is(err, migrate.ErrNilVersion) {
			return nil
		}
		return err
	}
	if !dirty {
		return nil
	}

	m.logger.Warn("Database is dirty, fixing", "version", version)

	return m.migrator.Force(int(version)) // nolint:gosec
}

func (m *Migrator) Close() error {
	srcErr, dbErr := m.migrator.Close()
	return errors.Join(srcErr, dbErr)
}
