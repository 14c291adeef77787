// Package migrate applies the embedded schema migrations with golang-migrate.
package migrate

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

const defaultMigrationsTable = "schema_migrations"

//go:embed sql/*.sql
var migrationFS embed.FS

// Manager runs migrations against a single database.
type Manager struct {
	dsn             string
	migrationsTable string
}

// Option configures Manager.
type Option func(*Manager)

// WithMigrationsTable overrides the default migrations bookkeeping table.
func WithMigrationsTable(name string) Option {
	return func(m *Manager) {
		if name != "" {
			m.migrationsTable = name
		}
	}
}

// NewManager constructs a Manager for dsn.
func NewManager(dsn string, opts ...Option) (*Manager, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("database DSN is not set; configure HRM_DATABASE_URL or HRM_DATABASE_HOST")
	}
	m := &Manager{dsn: dsn, migrationsTable: defaultMigrationsTable}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Status describes the schema version recorded in the database.
type Status struct {
	Version uint
	Dirty   bool
	Latest  uint
}

// Up applies all pending migrations.
func (m *Manager) Up(ctx context.Context) error {
	return m.run(ctx, func(mg *migrate.Migrate) error { return mg.Up() })
}

// Down rolls back the most recent applied migration.
func (m *Manager) Down(ctx context.Context) error {
	return m.run(ctx, func(mg *migrate.Migrate) error { return mg.Steps(-1) })
}

// Status returns the applied version and the newest embedded one.
func (m *Manager) Status(ctx context.Context) (Status, error) {
	latest, err := LatestVersion()
	if err != nil {
		return Status{}, err
	}
	st := Status{Latest: latest}
	err = m.run(ctx, func(mg *migrate.Migrate) error {
		v, dirty, err := mg.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			return nil
		}
		if err != nil {
			return err
		}
		st.Version, st.Dirty = v, dirty
		return nil
	})
	return st, err
}

func (m *Manager) run(ctx context.Context, fn func(*migrate.Migrate) error) error {
	src, err := iofs.New(migrationFS, "sql")
	if err != nil {
		return fmt.Errorf("migrate source: %w", err)
	}
	dsn, err := withMigrationsTable(m.dsn, m.migrationsTable)
	if err != nil {
		return err
	}
	mg, err := migrate.NewWithSourceInstance("iofs", src, dsn)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	defer func() { _, _ = mg.Close() }()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			mg.GracefulStop <- true
		case <-done:
		}
	}()

	if err := fn(mg); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

// withMigrationsTable sets the x-migrations-table query parameter understood by
// the postgres driver.
func withMigrationsTable(dsn, table string) (string, error) {
	if table == defaultMigrationsTable {
		return dsn, nil
	}
	u, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("parse dsn: %w", err)
	}
	q := u.Query()
	q.Set("x-migrations-table", table)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// LatestVersion returns the highest embedded migration version.
func LatestVersion() (uint, error) {
	versions, err := embeddedVersions()
	if err != nil {
		return 0, err
	}
	if len(versions) == 0 {
		return 0, nil
	}
	return versions[len(versions)-1], nil
}

func embeddedVersions() ([]uint, error) {
	entries, err := fs.ReadDir(migrationFS, "sql")
	if err != nil {
		return nil, err
	}
	seen := map[uint]struct{}{}
	var versions []uint
	for _, e := range entries {
		name := e.Name()
		if !strings.HasSuffix(name, ".up.sql") {
			continue
		}
		prefix, _, ok := strings.Cut(name, "_")
		if !ok {
			return nil, fmt.Errorf("migration %s has no version prefix", name)
		}
		v, err := strconv.ParseUint(prefix, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("migration %s: %w", name, err)
		}
		if _, dup := seen[uint(v)]; dup {
			return nil, fmt.Errorf("duplicate migration version %d", v)
		}
		seen[uint(v)] = struct{}{}
		versions = append(versions, uint(v))
	}
	sort.Slice(versions, func(i, j int) bool { return versions[i] < versions[j] })
	return versions, nil
}
