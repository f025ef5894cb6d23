package migrate

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strconv"

	"github.com/pressly/goose/v3"

	"github.com/angelmondragon/shopcore/pkg/config"
	"github.com/angelmondragon/shopcore/pkg/db"
	"github.com/angelmondragon/shopcore/pkg/logger"
)

const DefaultDir = "pkg/migrate/migrations"

const embeddedDir = "migrations"

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

// gooseCommands are the goose verbs Run accepts.
var gooseCommands = map[string]bool{"up": true, "down": true, "redo": true, "status": true}

// useSource points goose at the migrations compiled into the binary when dir is
// the default, and at the filesystem otherwise.
func useSource(dir string) string {
	if dir == DefaultDir {
		goose.SetBaseFS(embeddedMigrations)
		return embeddedDir
	}
	goose.SetBaseFS(nil)
	return dir
}

// Migrator applies the goose migrations in one directory to a Postgres database.
type Migrator struct {
	db  *sql.DB
	dir string
}

func NewMigrator(sqlDB *sql.DB, dir string) (*Migrator, error) {
	if sqlDB == nil {
		return nil, errors.New("db is required")
	}
	if dir == "" {
		return nil, errors.New("dir is required")
	}
	if err := goose.SetDialect("postgres"); err != nil {
		return nil, fmt.Errorf("set goose dialect: %w", err)
	}
	return &Migrator{db: sqlDB, dir: useSource(dir)}, nil
}

// Run executes one of up, down, redo or status. goose prints status to stdout.
func (m *Migrator) Run(ctx context.Context, command string) error {
	if !gooseCommands[command] {
		return fmt.Errorf("unsupported goose command %q", command)
	}
	if err := goose.RunContext(ctx, command, m.db, m.dir); err != nil {
		return fmt.Errorf("goose %s: %w", command, err)
	}
	return nil
}

// Version reports the newest applied migration.
func (m *Migrator) Version() (int64, error) {
	current, err := goose.GetDBVersion(m.db)
	if err != nil {
		return 0, fmt.Errorf("get db version: %w", err)
	}
	return current, nil
}

// To moves the schema up or down until target (YYYYMMDDHHMMSS) is the newest
// applied migration.
func (m *Migrator) To(ctx context.Context, target string) error {
	version, err := strconv.ParseInt(target, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS): %w", target, err)
	}
	current, err := m.Version()
	if err != nil {
		return err
	}
	switch {
	case current < version:
		if err := goose.UpToContext(ctx, m.db, m.dir, version); err != nil {
			return fmt.Errorf("goose up-to %d: %w", version, err)
		}
	case current > version:
		if err := goose.DownToContext(ctx, m.db, m.dir, version); err != nil {
			return fmt.Errorf("goose down-to %d: %w", version, err)
		}
	}
	return nil
}

// MaybeRunDev applies pending migrations at boot when running in dev with
// SHOPCORE_AUTO_MIGRATE set. Other environments migrate through cmd/migrate.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}
	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}
	m, err := NewMigrator(sqlDB, DefaultDir)
	if err != nil {
		return err
	}
	before, err := m.Version()
	if err != nil {
		return err
	}
	if err := m.Run(ctx, "up"); err != nil {
		return err
	}
	after, err := m.Version()
	if err != nil {
		return err
	}
	logg.Info(logg.WithFields(ctx, map[string]any{
		"env":          cfg.App.Env,
		"from_version": before,
		"to_version":   after,
	}), "dev migrations applied")
	return nil
}
