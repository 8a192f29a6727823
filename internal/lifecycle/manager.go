package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"propertyhub/internal/backup"
	"propertyhub/internal/repositories"
	"propertyhub/internal/secrets"
	"propertyhub/pkg/database"
)

var (
	// ErrMissingPassphrase means the store file is encrypted and the secret
	// store has no passphrase for it.
	ErrMissingPassphrase = errors.New("database is encrypted but no passphrase is available")
	// ErrMigrationFailed wraps any failure while bringing the schema up to date.
	ErrMigrationFailed = errors.New("database migration failed")
)

// HealthCheck probes an open store.
type HealthCheck func(ctx context.Context, store *database.Store) error

// Options configures a Manager.
type Options struct {
	// PassphraseKey names the secret holding the store passphrase.
	PassphraseKey string
	// Migrations is the numbered script source. Defaults to the embedded set.
	Migrations fs.FS
	// ExpectedVersion is the schema version this build expects. Defaults to
	// the highest migration number.
	ExpectedVersion string
	HealthCheck     HealthCheck
	Backup          backup.Options
}

// Result is what a successful start hands to the rest of the process.
type Result struct {
	Store   *database.Store
	Backups *backup.Service
	// Created is set when the store file did not exist (or was discarded).
	Created bool
	// Recovered is set when a backup replaced an unhealthy store.
	Recovered bool
	// RestoreApplied is set when a staged restore was promoted.
	RestoreApplied bool
}

// Manager brings the store to a usable state once per process start.
type Manager struct {
	secrets secrets.Store
	opts    Options
	log     *zap.Logger
}

func NewManager(secretStore secrets.Store, opts Options, log *zap.Logger) *Manager {
	if opts.Migrations == nil {
		opts.Migrations = database.Migrations()
	}
	if opts.HealthCheck == nil {
		opts.HealthCheck = func(ctx context.Context, store *database.Store) error {
			return store.CheckIntegrity(ctx)
		}
	}
	if opts.PassphraseKey == "" {
		opts.PassphraseKey = "database-passphrase"
	}
	return &Manager{
		secrets: secretStore,
		opts:    opts,
		log:     log.With(zap.String("component", "lifecycle")),
	}
}

// OpenDesktop runs the full start sequence for the sqlite file at path. Any
// returned error must stop the process.
func (m *Manager) OpenDesktop(ctx context.Context, path string) (*Result, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	store, err := database.OpenSQLite(path, "", m.log)
	if err != nil {
		return nil, err
	}
	res := &Result{
		Store:   store,
		Backups: backup.NewService(store, m.opts.Backup, m.log),
	}
	if err := m.startDesktop(ctx, res); err != nil {
		store.Close()
		return nil, err
	}
	return res, nil
}

func (m *Manager) startDesktop(ctx context.Context, res *Result) error {
	store, backups := res.Store, res.Backups

	applied, err := backups.ApplyStagedRestore()
	if err != nil {
		m.log.Error("Staged restore could not be applied", zap.Error(err))
	}
	res.RestoreApplied = applied

	if err := m.unlock(ctx, store); err != nil {
		return err
	}

	exists := fileExists(store.Path())
	if exists {
		if err := m.opts.HealthCheck(ctx, store); err != nil {
			m.log.Error("Database failed its health probe", zap.Error(err))
			recovered, err := m.recover(ctx, backups)
			if err != nil {
				return err
			}
			res.Recovered = recovered
			exists = recovered
		}
	}

	migrator := database.NewMigrator(store, m.opts.Migrations, m.log)
	migrated := false
	if exists {
		if migrated, err = m.migrateExisting(ctx, store, backups, migrator); err != nil {
			return err
		}
	} else {
		res.Created = true
		if err := m.createFresh(ctx, backups, migrator); err != nil {
			return err
		}
	}

	return m.reconcileVersion(ctx, store, migrator, migrated)
}

// unlock decides whether the file needs a passphrase and configures the store.
func (m *Manager) unlock(ctx context.Context, store *database.Store) error {
	encrypted, err := database.IsEncrypted(ctx, store.Path())
	if err != nil {
		return fmt.Errorf("detecting database encryption: %w", err)
	}

	key, keyErr := m.secrets.RetrieveKey(m.opts.PassphraseKey)
	if encrypted {
		if keyErr != nil || key == "" {
			if keyErr != nil && !errors.Is(keyErr, secrets.ErrKeyNotFound) {
				return fmt.Errorf("%w: %v", ErrMissingPassphrase, keyErr)
			}
			return ErrMissingPassphrase
		}
		m.log.Info("Database is encrypted, using passphrase from the secret store")
		return store.UseKey(key)
	}

	// a new file is created encrypted when a passphrase is already provisioned
	if !fileExists(store.Path()) && keyErr == nil && key != "" {
		return store.UseKey(key)
	}
	return nil
}

// recover tries every backup from newest to oldest. When none restores to a
// healthy store the damaged file is moved aside and false is returned.
func (m *Manager) recover(ctx context.Context, backups *backup.Service) (bool, error) {
	list, err := backups.ListBackups()
	if err != nil {
		m.log.Warn("Listing backups for recovery failed", zap.Error(err))
	}
	for _, b := range list {
		m.log.Info("Attempting recovery", zap.String("backup", b.Name))
		if err := backups.RestoreFromBackup(ctx, b.Path); err != nil {
			continue
		}
		if err := m.opts.HealthCheck(ctx, backups.Store()); err != nil {
			m.log.Warn("Restored backup is unhealthy too", zap.String("backup", b.Name), zap.Error(err))
			continue
		}
		m.log.Info("Database recovered from backup", zap.String("backup", b.Name))
		return true, nil
	}

	moved, err := backups.MoveAside("corrupted")
	if err != nil {
		return false, fmt.Errorf("moving corrupted database aside: %w", err)
	}
	m.log.Warn("No usable backup, starting with a fresh database", zap.String("corrupted", moved))
	return false, nil
}

// migrateExisting applies pending migrations behind a pre-migration backup
// and reports whether anything was applied.
func (m *Manager) migrateExisting(ctx context.Context, store *database.Store, backups *backup.Service, migrator *database.Migrator) (bool, error) {
	pending, err := migrator.Pending(ctx)
	if err != nil {
		return false, fmt.Errorf("%w: reading applied migrations: %w", ErrMigrationFailed, err)
	}
	if len(pending) == 0 {
		return false, nil
	}

	backupPath, err := backups.CreatePreMigrationBackup(ctx, len(pending))
	if err != nil || backupPath == "" {
		m.log.Warn("Continuing without a pre-migration backup; a failed migration cannot be rolled back")
	}

	if _, err := migrator.Up(ctx); err != nil {
		return false, fmt.Errorf("%w: %w", ErrMigrationFailed, multierr.Append(err, m.rollback(ctx, backups, backupPath)))
	}

	if err := m.opts.HealthCheck(ctx, store); err != nil {
		err = fmt.Errorf("health probe after migration: %w", err)
		return false, fmt.Errorf("%w: %w", ErrMigrationFailed, multierr.Append(err, m.rollback(ctx, backups, backupPath)))
	}

	m.log.Info("Database migrated", zap.Int("applied", len(pending)))
	return true, nil
}

func (m *Manager) rollback(ctx context.Context, backups *backup.Service, backupPath string) error {
	if backupPath == "" {
		return errors.New("no pre-migration backup to roll back to")
	}
	m.log.Warn("Rolling back to the pre-migration backup", zap.String("backup", backupPath))
	if err := backups.RestoreFromBackup(ctx, backupPath); err != nil {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}

func (m *Manager) createFresh(ctx context.Context, backups *backup.Service, migrator *database.Migrator) error {
	m.log.Info("Creating a new database")
	if _, err := migrator.Up(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrMigrationFailed, err)
	}
	if _, err := backups.CreateBackup(ctx, backup.ReasonInitialSetup); err != nil {
		m.log.Warn("Initial setup backup was not taken", zap.Error(err))
	}
	return nil
}

// OpenServer connects to postgres and brings the schema up to date. There
// are no file level backups in server mode.
func (m *Manager) OpenServer(ctx context.Context, url string) (*database.Store, error) {
	store, err := database.OpenPostgres(ctx, url, m.log)
	if err != nil {
		return nil, err
	}
	migrator := database.NewMigrator(store, m.opts.Migrations, m.log)
	applied, err := migrator.Up(ctx)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("%w: %w", ErrMigrationFailed, err)
	}
	if err := m.reconcileVersion(ctx, store, migrator, applied > 0); err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}

func (m *Manager) expectedVersion(migrator *database.Migrator) (string, error) {
	if m.opts.ExpectedVersion != "" {
		return m.opts.ExpectedVersion, nil
	}
	all, err := migrator.All()
	if err != nil {
		return "", err
	}
	if len(all) == 0 {
		return "0", nil
	}
	return strconv.Itoa(all[len(all)-1].Version), nil
}

// reconcileVersion records the expected schema version on first run or after
// this start applied migrations. Any other mismatch is only logged.
func (m *Manager) reconcileVersion(ctx context.Context, store *database.Store, migrator *database.Migrator, migrated bool) error {
	expected, err := m.expectedVersion(migrator)
	if err != nil {
		return err
	}
	versions := repositories.NewSchemaVersionRepo(store)

	latest, err := versions.Latest(ctx)
	if err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}
	if latest == nil {
		if _, err := versions.Record(ctx, expected, "initial schema"); err != nil {
			return fmt.Errorf("recording schema version: %w", err)
		}
		m.log.Info("Recorded schema version", zap.String("version", expected))
		return nil
	}
	if latest.Version != expected && migrated {
		if _, err := versions.Record(ctx, expected, "migrated from "+latest.Version); err != nil {
			return fmt.Errorf("recording schema version: %w", err)
		}
		m.log.Info("Recorded schema version", zap.String("version", expected), zap.String("previous", latest.Version))
		return nil
	}
	if latest.Version != expected {
		m.log.Warn("Schema version mismatch",
			zap.String("recorded", latest.Version),
			zap.String("expected", expected),
			zap.Time("applied_on", latest.AppliedOn))
	}
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
