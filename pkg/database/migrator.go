package database

import (
	"context"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

const migrationsTableName = "schema_migrations"

// Migration is one numbered script, e.g. "0002_properties.sql".
type Migration struct {
	Version int
	Name    string
}

// Migrator applies numbered SQL scripts from source in order, recording each
// applied version in the schema_migrations table.
type Migrator struct {
	store  *Store
	source fs.FS
	log    *zap.Logger
}

func NewMigrator(store *Store, source fs.FS, log *zap.Logger) *Migrator {
	return &Migrator{
		store:  store,
		source: source,
		log:    log,
	}
}

// All lists every migration in source, sorted by version.
func (m *Migrator) All() ([]Migration, error) {
	entries, err := fs.ReadDir(m.source, ".")
	if err != nil {
		return nil, err
	}

	var list []Migration
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		v, err := scriptVersion(e.Name())
		if err != nil {
			return nil, err
		}
		list = append(list, Migration{Version: v, Name: e.Name()})
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].Version < list[j].Version
	})
	return list, nil
}

// Pending lists the migrations newer than the store's current version.
func (m *Migrator) Pending(ctx context.Context) ([]Migration, error) {
	all, err := m.All()
	if err != nil {
		return nil, err
	}
	current, err := m.CurrentVersion(ctx)
	if err != nil {
		return nil, err
	}

	var pending []Migration
	for _, mig := range all {
		if mig.Version > current {
			pending = append(pending, mig)
		}
	}
	return pending, nil
}

// CurrentVersion returns the highest applied version, 0 for a new store.
func (m *Migrator) CurrentVersion(ctx context.Context) (int, error) {
	if err := m.ensureTable(ctx); err != nil {
		return 0, err
	}
	db, err := m.store.Conn()
	if err != nil {
		return 0, err
	}
	var v int
	if err := db.GetContext(ctx, &v, "SELECT COALESCE(MAX(version), 0) FROM "+migrationsTableName); err != nil {
		return 0, err
	}
	return v, nil
}

// Up applies every pending migration, each in its own transaction, and
// returns how many were applied.
func (m *Migrator) Up(ctx context.Context) (int, error) {
	pending, err := m.Pending(ctx)
	if err != nil {
		return 0, err
	}
	if len(pending) > 0 {
		m.log.Info("Bringing up schema migrations", zap.Int("migration_count", len(pending)))
	}

	applied := 0
	for _, mig := range pending {
		m.log.Debug("Executing schema migration", zap.String("migration_name", mig.Name))
		script, err := fs.ReadFile(m.source, mig.Name)
		if err != nil {
			return applied, err
		}
		if err := m.apply(ctx, mig, string(script)); err != nil {
			return applied, fmt.Errorf("migration %s: %w", mig.Name, err)
		}
		applied++
	}
	return applied, nil
}

func (m *Migrator) apply(ctx context.Context, mig Migration, script string) error {
	db, err := m.store.Conn()
	if err != nil {
		return err
	}
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, script); err != nil {
		tx.Rollback()
		return err
	}
	insert, args, err := m.store.Builder().
		Insert(migrationsTableName).
		Columns("version", "name", "applied_on").
		Values(mig.Version, mig.Name, time.Now().UTC()).
		ToSql()
	if err != nil {
		tx.Rollback()
		return err
	}
	if _, err := tx.ExecContext(ctx, insert, args...); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (m *Migrator) ensureTable(ctx context.Context) error {
	db, err := m.store.Conn()
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS `+migrationsTableName+` (
		version INTEGER NOT NULL PRIMARY KEY,
		name TEXT NOT NULL,
		applied_on TIMESTAMP NOT NULL
	)`)
	return err
}

// extract the version number as an integer from a file named like "0002_migration_name.sql"
func scriptVersion(filename string) (int, error) {
	vString := strings.Split(filename, "_")[0]
	vInt, err := strconv.Atoi(vString)
	if err != nil {
		return 0, fmt.Errorf("migration %q is not numbered: %w", filename, err)
	}

	return vInt, nil
}
