package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/i474232898/meshcore-heatmap/internal/logging"
	"github.com/i474232898/meshcore-heatmap/internal/store/migrations"
	"github.com/i474232898/meshcore-heatmap/internal/telemetry"
)

// Open connects to the database named by rawURL and applies migrations.
func Open(ctx context.Context, rawURL string) (telemetry.Store, Target, error) {
	target, err := ParseDatabaseURL(rawURL)
	if err != nil {
		return nil, Target{}, err
	}
	if target.Dialect == DialectMemory {
		return NewMemoryStore(target.MaxSamples, target.MaxAge), target, nil
	}

	d := dialects[target.Dialect]
	if target.Dialect == DialectSQLite && target.Path != ":memory:" {
		if dir := filepath.Dir(target.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, Target{}, fmt.Errorf("create sqlite directory: %w", err)
			}
		}
	}

	db, err := sql.Open(d.driver, target.DSN)
	if err != nil {
		return nil, Target{}, fmt.Errorf("open %s db: %w", d.name, err)
	}
	if target.Dialect == DialectSQLite {
		// Serialise writers; an in-memory database also lives on one connection.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, Target{}, fmt.Errorf("ping %s db: %w", d.name, err)
	}
	if err := ApplyMigrations(ctx, db, d, migrations.FS, string(d.name)); err != nil {
		_ = db.Close()
		return nil, Target{}, fmt.Errorf("run migrations: %w", err)
	}

	s, err := NewSQLStore(db, target.Dialect)
	if err != nil {
		_ = db.Close()
		return nil, Target{}, err
	}
	logging.Info().Str("database", target.Redacted).Str("dialect", string(target.Dialect)).Msg("store opened")
	return s, target, nil
}
