package backup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"propertyhub/internal/metrics"
	"propertyhub/pkg/database"
)

// Reason tags why a backup was taken. It is part of the file name.
type Reason string

const (
	ReasonManual       Reason = "manual"
	ReasonPreMigration Reason = "pre-migration"
	ReasonScheduled    Reason = "scheduled"
	ReasonInitialSetup Reason = "initial-setup"
)

const (
	timestampLayout = "20060102_150405"
	// RestoreMarker is written beside the store file when a restore is staged.
	RestoreMarker = "restore_pending"

	labelCorrupted  = "corrupted"
	labelPreRestore = "prerestore"
	labelStaged     = "staged"
)

var (
	// ErrUnsupported is returned for file operations on a server-mode store.
	ErrUnsupported = errors.New("backups require a file backed store")
	// ErrNotFound is returned when the requested backup file does not exist.
	ErrNotFound = errors.New("backup not found")

	backupName = regexp.MustCompile(`_(\d{8}_\d{6})(?:_(\d+))?\.db$`)
)

// Options tunes the service. Zero values are replaced by the defaults.
type Options struct {
	Dir                string
	Retention          int
	CopyAttempts       int
	RetryDelay         time.Duration
	HandleReleaseDelay time.Duration
	Clock              clockwork.Clock
	Uploader           Uploader
	Metrics            *metrics.Metrics
}

// Info describes one backup artifact.
type Info struct {
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
	Size      int64     `json:"size"`
	seq       int
}

// Service takes, lists, prunes and restores copies of the sqlite store file.
type Service struct {
	store *database.Store
	opts  Options
	clock clockwork.Clock
	log   *zap.Logger
}

func NewService(store *database.Store, opts Options, log *zap.Logger) *Service {
	if opts.Dir == "" {
		opts.Dir = filepath.Join(filepath.Dir(store.Path()), "Backups")
	}
	if opts.Retention <= 0 {
		opts.Retention = 10
	}
	if opts.CopyAttempts <= 0 {
		opts.CopyAttempts = 3
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	return &Service{
		store: store,
		opts:  opts,
		clock: opts.Clock,
		log:   log.With(zap.String("component", "backup")),
	}
}

// Store is the store this service copies.
func (s *Service) Store() *database.Store { return s.store }

// Dir is the backup directory.
func (s *Service) Dir() string { return s.opts.Dir }

func (s *Service) baseName() string {
	name := filepath.Base(s.store.Path())
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// CreateBackup copies the store file into the backup directory and prunes old
// backups. On failure it returns an empty path and the error; callers treat
// that as "no backup available".
func (s *Service) CreateBackup(ctx context.Context, reason Reason) (string, error) {
	start := s.clock.Now()
	path, err := s.createBackup(ctx, reason)
	s.opts.Metrics.ObserveBackup(string(reason), s.clock.Since(start), err)
	if err != nil {
		s.log.Error("Backup failed", zap.String("reason", string(reason)), zap.Error(err))
		return "", err
	}
	s.log.Info("Backup created", zap.String("reason", string(reason)), zap.String("path", path))
	return path, nil
}

func (s *Service) createBackup(ctx context.Context, reason Reason) (string, error) {
	if !s.store.IsSQLite() {
		return "", ErrUnsupported
	}
	if _, err := os.Stat(s.store.Path()); err != nil {
		return "", fmt.Errorf("store file: %w", err)
	}
	if err := os.MkdirAll(s.opts.Dir, 0o755); err != nil {
		return "", err
	}

	if err := s.store.Checkpoint(ctx); err != nil {
		s.log.Warn("WAL checkpoint before backup failed", zap.Error(err))
	}

	now := s.clock.Now()
	dst, err := nextPath(s.opts.Dir, s.baseName()+"_", string(reason), now.Format(timestampLayout))
	if err != nil {
		return "", err
	}

	err = s.store.Offline(func() error {
		s.sleep(s.opts.HandleReleaseDelay)
		return s.copyWithRetry(s.store.Path(), dst)
	})
	if err != nil {
		os.Remove(dst)
		return "", err
	}
	if err := os.Chtimes(dst, now, now); err != nil {
		s.log.Warn("Setting backup timestamps failed", zap.String("path", dst), zap.Error(err))
	}

	if err := s.prune(dst); err != nil {
		s.log.Warn("Pruning backups failed", zap.Error(err))
	}

	if s.opts.Uploader != nil {
		if err := s.opts.Uploader.Upload(ctx, dst); err != nil {
			s.log.Warn("Off-site copy failed", zap.String("path", dst), zap.Error(err))
		}
	}
	return dst, nil
}

// CreatePreMigrationBackup backs up the store before pending migrations are
// applied. It is a no-op returning "" when nothing is pending.
func (s *Service) CreatePreMigrationBackup(ctx context.Context, pending int) (string, error) {
	if pending == 0 {
		return "", nil
	}
	s.log.Info("Taking pre-migration backup", zap.Int("pending_migrations", pending))
	return s.CreateBackup(ctx, ReasonPreMigration)
}

// ListBackups returns the backups of this store, newest first.
func (s *Service) ListBackups() ([]Info, error) {
	entries, err := os.ReadDir(s.opts.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	prefix := s.baseName() + "_"
	var list []Info
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ".db") {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue
		}
		info := Info{
			Name:      name,
			Path:      filepath.Join(s.opts.Dir, name),
			CreatedAt: fi.ModTime(),
			Size:      fi.Size(),
		}
		if m := backupName.FindStringSubmatchIndex(name); m != nil {
			ts := name[m[2]:m[3]]
			if t, err := time.ParseInLocation(timestampLayout, ts, s.clock.Now().Location()); err == nil {
				info.CreatedAt = t
			}
			if m[4] >= 0 {
				info.seq, _ = strconv.Atoi(name[m[4]:m[5]])
			}
			info.Reason = strings.TrimPrefix(name[:m[0]], prefix)
		}
		list = append(list, info)
	}

	sort.Slice(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		if a.seq != b.seq {
			return a.seq > b.seq
		}
		return a.Name > b.Name
	})
	return list, nil
}

// prune keeps the newest Retention backups. keep always counts as one of
// them and is never removed.
func (s *Service) prune(keep string) error {
	list, err := s.ListBackups()
	if err != nil {
		return err
	}
	kept := 0
	if keep != "" {
		kept = 1
	}
	var errs []error
	for _, old := range list {
		if old.Path == keep {
			continue
		}
		if kept < s.opts.Retention {
			kept++
			continue
		}
		if err := os.Remove(old.Path); err != nil && !os.IsNotExist(err) {
			errs = append(errs, err)
			continue
		}
		s.log.Debug("Pruned backup", zap.String("path", old.Path))
	}
	return errors.Join(errs...)
}

// RestoreFromBackup replaces the store file with the backup at path. The
// current file is kept beside the store under a unique "corrupted" name.
func (s *Service) RestoreFromBackup(ctx context.Context, path string) error {
	err := s.restore(path)
	s.opts.Metrics.ObserveRestore(err)
	if err != nil {
		s.log.Error("Restore failed", zap.String("backup", path), zap.Error(err))
		return err
	}
	s.log.Info("Store restored from backup", zap.String("backup", path))
	return nil
}

func (s *Service) restore(path string) error {
	if !s.store.IsSQLite() {
		return ErrUnsupported
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return err
	}
	return s.store.Offline(func() error {
		s.sleep(s.opts.HandleReleaseDelay)
		if _, err := s.moveAside(labelCorrupted); err != nil {
			return err
		}
		return s.copyWithRetry(path, s.store.Path())
	})
}

// MoveAside renames the store file to a unique "<basename>_<label>_<ts>.db"
// beside it and removes its WAL sidecars. It returns the new path, or "" if
// there was no store file.
func (s *Service) MoveAside(label string) (string, error) {
	if !s.store.IsSQLite() {
		return "", ErrUnsupported
	}
	var moved string
	err := s.store.Offline(func() error {
		s.sleep(s.opts.HandleReleaseDelay)
		var err error
		moved, err = s.moveAside(label)
		return err
	})
	if err != nil {
		return "", err
	}
	if moved != "" {
		s.log.Warn("Store file moved aside", zap.String("path", moved))
	}
	return moved, nil
}

// moveAside must run while the store is offline.
func (s *Service) moveAside(label string) (string, error) {
	src := s.store.Path()
	if _, err := os.Stat(src); err != nil {
		if os.IsNotExist(err) {
			removeSidecars(src)
			return "", nil
		}
		return "", err
	}
	dst, err := nextPath(filepath.Dir(src), s.baseName()+"_", label, s.clock.Now().Format(timestampLayout))
	if err != nil {
		return "", err
	}
	if err := os.Rename(src, dst); err != nil {
		return "", fmt.Errorf("moving store aside: %w", err)
	}
	removeSidecars(src)
	return dst, nil
}

// StageRestore copies path beside the store and writes the restore marker.
// The restore is applied by ApplyStagedRestore on the next start.
func (s *Service) StageRestore(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return err
	}
	dir := filepath.Dir(s.store.Path())
	staged := filepath.Join(dir, fmt.Sprintf("%s_%s.db", s.baseName(), labelStaged))
	if err := s.copyWithRetry(path, staged); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, RestoreMarker), []byte(staged), 0o600); err != nil {
		return err
	}
	s.log.Info("Restore staged", zap.String("backup", path), zap.String("staged", staged))
	return nil
}

// ApplyStagedRestore promotes a staged file if the restore marker exists. It
// reports whether a restore was applied.
func (s *Service) ApplyStagedRestore() (bool, error) {
	marker := filepath.Join(filepath.Dir(s.store.Path()), RestoreMarker)
	raw, err := os.ReadFile(marker)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	staged := strings.TrimSpace(string(raw))
	if _, err := os.Stat(staged); err != nil {
		os.Remove(marker)
		return false, fmt.Errorf("staged restore %q: %w", staged, err)
	}

	var moved string
	err = s.store.Offline(func() error {
		s.sleep(s.opts.HandleReleaseDelay)
		var err error
		if moved, err = s.moveAside(labelPreRestore); err != nil {
			return err
		}
		return os.Rename(staged, s.store.Path())
	})
	if err != nil {
		return false, err
	}
	if err := os.Remove(marker); err != nil {
		return true, err
	}
	s.log.Info("Applied staged restore", zap.String("staged", staged), zap.String("previous", moved))
	return true, nil
}

func (s *Service) copyWithRetry(src, dst string) error {
	var err error
	for attempt := 1; attempt <= s.opts.CopyAttempts; attempt++ {
		if attempt > 1 {
			s.sleep(s.opts.RetryDelay)
		}
		if err = copyFile(src, dst); err == nil {
			return nil
		}
		s.log.Warn("Copy failed",
			zap.String("src", src),
			zap.String("dst", dst),
			zap.Int("attempt", attempt),
			zap.Error(err))
	}
	return fmt.Errorf("copy %s after %d attempts: %w", filepath.Base(src), s.opts.CopyAttempts, err)
}

func (s *Service) sleep(d time.Duration) {
	if d > 0 {
		s.clock.Sleep(d)
	}
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp := dst + ".tmp"
	out, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(tmp)
		return err
	}
	if err := out.Sync(); err != nil {
		out.Close()
		os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dst)
}

// nextPath names a file stamped ts. The first file of a second is
// <prefix><label>_<ts>.db; later ones get _N with N one above the highest
// counter any label already used in that second, so the counter orders files
// taken within the same second even after older ones were pruned.
func nextPath(dir, prefix, label, ts string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil && !os.IsNotExist(err) {
		return "", err
	}
	highest := -1
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		m := backupName.FindStringSubmatch(name)
		if m == nil || m[1] != ts {
			continue
		}
		seq := 0
		if m[2] != "" {
			seq, _ = strconv.Atoi(m[2])
		}
		highest = max(highest, seq)
	}
	stem := prefix + label + "_" + ts
	if highest < 0 {
		return filepath.Join(dir, stem+".db"), nil
	}
	return filepath.Join(dir, fmt.Sprintf("%s_%d.db", stem, highest+1)), nil
}

func removeSidecars(path string) {
	for _, suffix := range []string{"-wal", "-shm"} {
		os.Remove(path + suffix)
	}
}
