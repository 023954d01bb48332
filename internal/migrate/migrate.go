// Package migrate applies the embedded SQL schema migrations with a
// version table and a dirty flag.
package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/emiliopalmerini/shinyhunt/internal/util"
	"github.com/emiliopalmerini/shinyhunt/migrations"
)

// ErrDirty is returned when a previous migration failed halfway.
var ErrDirty = errors.New("database is in dirty state")

// Migration is one numbered schema step with up and down SQL.
type Migration struct {
	Version int
	Name    string
	UpSQL   string
	DownSQL string
}

var upPattern = regexp.MustCompile(`^(\d+)_(.+)\.up\.sql$`)

// Load reads the up/down pairs in fsys, sorted by version. Down files are
// optional.
func Load(fsys fs.FS) ([]Migration, error) {
	var result []Migration

	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		matches := upPattern.FindStringSubmatch(path.Base(p))
		if matches == nil {
			return nil
		}

		version, err := strconv.Atoi(matches[1])
		if err != nil {
			return fmt.Errorf("bad migration version in %s: %w", p, err)
		}
		up, err := fs.ReadFile(fsys, p)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", p, err)
		}
		down, _ := fs.ReadFile(fsys, path.Join(path.Dir(p), fmt.Sprintf("%s_%s.down.sql", matches[1], matches[2])))

		result = append(result, Migration{
			Version: version,
			Name:    matches[2],
			UpSQL:   string(up),
			DownSQL: string(down),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	slices.SortFunc(result, func(a, b Migration) int { return a.Version - b.Version })
	for i := 1; i < len(result); i++ {
		if result[i].Version == result[i-1].Version {
			return nil, fmt.Errorf("duplicate migration version %d", result[i].Version)
		}
	}
	return result, nil
}

// Migrator runs migrations against one database, reporting progress to Out.
type Migrator struct {
	DB         *sql.DB
	Migrations []Migration
	Out        io.Writer
}

// New returns a Migrator over the embedded migrations.
func New(db *sql.DB, out io.Writer) (*Migrator, error) {
	all, err := Load(migrations.FS)
	if err != nil {
		return nil, fmt.Errorf("failed to load migrations: %w", err)
	}
	if out == nil {
		out = io.Discard
	}
	return &Migrator{DB: db, Migrations: all, Out: out}, nil
}

// Latest returns the highest known migration version.
func (m *Migrator) Latest() int {
	if len(m.Migrations) == 0 {
		return 0
	}
	return m.Migrations[len(m.Migrations)-1].Version
}

func (m *Migrator) ensureTable(ctx context.Context) error {
	_, err := m.DB.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			dirty INTEGER NOT NULL DEFAULT 0
		)
	`)
	return err
}

// Version returns the applied version and dirty state.
func (m *Migrator) Version(ctx context.Context) (int, bool, error) {
	if err := m.ensureTable(ctx); err != nil {
		return 0, false, fmt.Errorf("failed to create migrations table: %w", err)
	}
	var version, dirty int
	err := m.DB.QueryRowContext(ctx, `SELECT version, dirty FROM schema_migrations ORDER BY version DESC LIMIT 1`).Scan(&version, &dirty)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return version, dirty == 1, nil
}

func (m *Migrator) setVersion(ctx context.Context, version int, dirty bool) error {
	if _, err := m.DB.ExecContext(ctx, `DELETE FROM schema_migrations`); err != nil {
		return err
	}
	if version <= 0 {
		return nil
	}
	_, err := m.DB.ExecContext(ctx, `INSERT INTO schema_migrations (version, dirty) VALUES (?, ?)`, version, util.BoolToInt64(dirty))
	return err
}

// Up applies every pending migration and returns how many ran.
func (m *Migrator) Up(ctx context.Context) (int, error) {
	return m.To(ctx, m.Latest())
}

// To migrates up or down to target. It returns how many steps ran.
func (m *Migrator) To(ctx context.Context, target int) (int, error) {
	current, dirty, err := m.Version(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get current version: %w", err)
	}
	if dirty {
		return 0, fmt.Errorf("version %d: %w", current, ErrDirty)
	}
	if target < 0 || target > m.Latest() {
		return 0, fmt.Errorf("unknown target version %d (latest is %d)", target, m.Latest())
	}

	steps := 0
	switch {
	case target > current:
		for _, mig := range m.Migrations {
			if mig.Version <= current || mig.Version > target {
				continue
			}
			if err := m.run(ctx, mig, true); err != nil {
				return steps, err
			}
			steps++
		}
	case target < current:
		for _, mig := range slices.Backward(m.Migrations) {
			if mig.Version > current || mig.Version <= target {
				continue
			}
			if mig.DownSQL == "" {
				return steps, fmt.Errorf("no down migration for version %d", mig.Version)
			}
			if err := m.run(ctx, mig, false); err != nil {
				return steps, err
			}
			steps++
		}
	}
	return steps, nil
}

func (m *Migrator) run(ctx context.Context, mig Migration, up bool) error {
	direction, content, next := "up", mig.UpSQL, mig.Version
	if !up {
		direction, content, next = "down", mig.DownSQL, mig.Version-1
	}
	fmt.Fprintf(m.Out, "  %s %03d_%s\n", direction, mig.Version, mig.Name)

	if err := m.setVersion(ctx, mig.Version, true); err != nil {
		return fmt.Errorf("failed to set dirty flag: %w", err)
	}
	for _, stmt := range SplitSQL(content) {
		if _, err := m.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute migration %d %s: %w\nSQL: %s", mig.Version, direction, err, stmt)
		}
	}
	if err := m.setVersion(ctx, next, false); err != nil {
		return fmt.Errorf("failed to clear dirty flag: %w", err)
	}
	return nil
}

// SplitSQL splits a script on semicolons, dropping blank statements and
// full-line comments. Statements must not contain literal semicolons.
func SplitSQL(script string) []string {
	var out []string
	for _, raw := range strings.Split(script, ";") {
		var lines []string
		for _, line := range strings.Split(raw, "\n") {
			if strings.HasPrefix(strings.TrimSpace(line), "--") {
				continue
			}
			lines = append(lines, line)
		}
		if stmt := strings.TrimSpace(strings.Join(lines, "\n")); stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}

// RunAll applies every pending embedded migration silently.
func RunAll(ctx context.Context, db *sql.DB) error {
	m, err := New(db, nil)
	if err != nil {
		return err
	}
	_, err = m.Up(ctx)
	return err
}
