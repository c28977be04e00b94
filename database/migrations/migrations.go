// Package migrations brings a ledger database file up to the current schema.
//
// Each migration is an embedded sql/NNNN_name.sql script. Scripts are applied
// in ascending version order, each in its own transaction together with its
// row in the _migrations table, and are never rolled back. The runner is
// executed on every startup, so applied versions are skipped and the scripts
// themselves use IF NOT EXISTS.
package migrations

import (
	"context"
	"embed"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
)

//go:embed sql/*.sql
var embedded embed.FS

const trackingSchema = `
CREATE TABLE IF NOT EXISTS _migrations (
	version INTEGER PRIMARY KEY,
	name TEXT NOT NULL,
	applied_at TIMESTAMP NOT NULL
)
`

const insertMigrationSql = `
INSERT INTO _migrations (version, name, applied_at)
VALUES ($1, $2, $3);
`

type Migration struct {
	Version int
	Name    string
	SQL     string
}

// State pairs a known migration with when it was applied. AppliedAt is nil
// for pending migrations.
type State struct {
	Migration
	AppliedAt *time.Time
}

// MigrationError reports the unit that stopped a run.
type MigrationError struct {
	Version int
	Name    string
	Err     error
}

func (e *MigrationError) Error() string {
	return fmt.Sprintf("migration %04d_%s: %v", e.Version, e.Name, e.Err)
}

func (e *MigrationError) Unwrap() error {
	return e.Err
}

// All returns the embedded migrations sorted by version.
func All() ([]Migration, error) {
	sub, err := fs.Sub(embedded, "sql")
	if err != nil {
		return nil, err
	}
	return Load(sub)
}

// Load reads every *.sql file at the root of fsys. File names must look like
// 0001_create_accounts_table.sql; versions must be unique and positive.
func Load(fsys fs.FS) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}

	var list []Migration
	seen := make(map[int]string)
	for _, entry := range entries {
		if entry.IsDir() || path.Ext(entry.Name()) != ".sql" {
			continue
		}
		version, name, err := parseFileName(entry.Name())
		if err != nil {
			return nil, err
		}
		if prev, ok := seen[version]; ok {
			return nil, fmt.Errorf("duplicate migration version %d: %s and %s", version, prev, entry.Name())
		}
		seen[version] = entry.Name()

		data, err := fs.ReadFile(fsys, entry.Name())
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", entry.Name(), err)
		}
		list = append(list, Migration{Version: version, Name: name, SQL: string(data)})
	}

	sort.Slice(list, func(i, j int) bool { return list[i].Version < list[j].Version })
	return list, nil
}

func parseFileName(fileName string) (int, string, error) {
	base := strings.TrimSuffix(fileName, ".sql")
	prefix, name, ok := strings.Cut(base, "_")
	if !ok || name == "" {
		return 0, "", fmt.Errorf("migration file %s: expected NNNN_name.sql", fileName)
	}
	version, err := strconv.Atoi(prefix)
	if err != nil || version <= 0 {
		return 0, "", fmt.Errorf("migration file %s: invalid version %q", fileName, prefix)
	}
	return version, name, nil
}

// Run applies the embedded migrations. See Apply.
func Run(ctx context.Context, db *sqlx.DB, logger *slog.Logger) ([]Migration, error) {
	list, err := All()
	if err != nil {
		return nil, err
	}
	return Apply(ctx, db, list, logger)
}

// Apply runs every migration in list that has not yet been recorded, in
// ascending version order, and returns the ones it applied. The first failure
// stops the run; units after it are not attempted.
func Apply(ctx context.Context, db *sqlx.DB, list []Migration, logger *slog.Logger) ([]Migration, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	applied, err := appliedVersions(ctx, db)
	if err != nil {
		return nil, err
	}

	sorted := make([]Migration, len(list))
	copy(sorted, list)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Version < sorted[j].Version })

	var ran []Migration
	for _, m := range sorted {
		if _, ok := applied[m.Version]; ok {
			continue
		}
		if err := applyOne(ctx, db, m); err != nil {
			logger.Error("Migration failed", "version", m.Version, "name", m.Name, "error", err)
			return ran, &MigrationError{Version: m.Version, Name: m.Name, Err: err}
		}
		logger.Info("Applied migration", "version", m.Version, "name", m.Name)
		ran = append(ran, m)
	}
	return ran, nil
}

func applyOne(ctx context.Context, db *sqlx.DB, m Migration) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, insertMigrationSql, m.Version, m.Name, time.Now().UTC()); err != nil {
		return fmt.Errorf("record version: %w", err)
	}
	return tx.Commit()
}

func appliedVersions(ctx context.Context, db *sqlx.DB) (map[int]time.Time, error) {
	if _, err := db.ExecContext(ctx, trackingSchema); err != nil {
		return nil, fmt.Errorf("create _migrations table: %w", err)
	}

	var rows []struct {
		Version   int       `db:"version"`
		AppliedAt time.Time `db:"applied_at"`
	}
	if err := db.SelectContext(ctx, &rows, "SELECT version, applied_at FROM _migrations"); err != nil {
		return nil, fmt.Errorf("read _migrations: %w", err)
	}

	versions := make(map[int]time.Time, len(rows))
	for _, r := range rows {
		versions[r.Version] = r.AppliedAt
	}
	return versions, nil
}

// Status reports every embedded migration and whether it has been applied.
func Status(ctx context.Context, db *sqlx.DB) ([]State, error) {
	list, err := All()
	if err != nil {
		return nil, err
	}
	applied, err := appliedVersions(ctx, db)
	if err != nil {
		return nil, err
	}

	states := make([]State, 0, len(list))
	for _, m := range list {
		s := State{Migration: m}
		if at, ok := applied[m.Version]; ok {
			at := at
			s.AppliedAt = &at
		}
		states = append(states, s)
	}
	return states, nil
}
