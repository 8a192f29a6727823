package main

import (
	"context"
	"errors"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"propertyhub/internal/backup"
	"propertyhub/internal/config"
	"propertyhub/internal/lifecycle"
	"propertyhub/internal/metrics"
	"propertyhub/internal/secrets"
	"propertyhub/pkg/database"
)

// instance is an open store and everything built around it at start.
type instance struct {
	store    *database.Store
	backups  *backup.Service
	registry *prometheus.Registry
	metrics  *metrics.Metrics
}

func (r *instance) Close() error {
	return r.store.Close()
}

// bootstrap runs the database lifecycle. Any error is fatal for the process.
func bootstrap(ctx context.Context, cfg *config.Config, log *zap.Logger) (*instance, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	rt := &instance{registry: reg, metrics: metrics.New(reg)}

	mgr := lifecycle.NewManager(openSecrets(cfg, log), lifecycle.Options{
		PassphraseKey: cfg.Database.PassphraseKey,
		Backup: backup.Options{
			Dir:                cfg.BackupDir(),
			Retention:          cfg.Backup.Retention,
			CopyAttempts:       cfg.Backup.CopyAttempts,
			RetryDelay:         cfg.Backup.RetryDelay,
			HandleReleaseDelay: cfg.Backup.HandleReleaseDelay,
			Uploader:           offsiteUploader(ctx, cfg, log),
			Metrics:            rt.metrics,
		},
	}, log)

	if !cfg.DesktopMode() {
		store, err := mgr.OpenServer(ctx, cfg.Database.URL)
		if err != nil {
			return nil, err
		}
		rt.store = store
		return rt, nil
	}

	res, err := mgr.OpenDesktop(ctx, cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	rt.store, rt.backups = res.Store, res.Backups
	log.Info("Database ready",
		zap.String("path", res.Store.Path()),
		zap.Bool("encrypted", res.Store.Encrypted()),
		zap.Bool("created", res.Created),
		zap.Bool("recovered", res.Recovered),
		zap.Bool("restore_applied", res.RestoreApplied))
	return rt, nil
}

func openSecrets(cfg *config.Config, log *zap.Logger) secrets.Store {
	store, err := secrets.Open(cfg.Keyring.ServiceName, cfg.Keyring.FileDir)
	if err != nil {
		log.Warn("Secret store unavailable, encrypted databases cannot be opened", zap.Error(err))
		return secrets.Unavailable{Err: err}
	}
	return store
}

// offsiteUploader returns nil when no endpoint is configured or the client
// cannot be built; local backups still work.
func offsiteUploader(ctx context.Context, cfg *config.Config, log *zap.Logger) backup.Uploader {
	off := cfg.Backup.Offsite
	if off.Endpoint == "" || !cfg.DesktopMode() {
		return nil
	}
	host, _ := os.Hostname()
	uploader, err := backup.NewMinioUploader(backup.OffsiteConfig{
		Endpoint:  off.Endpoint,
		AccessKey: off.AccessKey,
		SecretKey: off.SecretKey,
		Bucket:    off.Bucket,
		UseSSL:    off.UseSSL,
		Prefix:    host,
	})
	if err != nil {
		log.Warn("Off-site backups disabled", zap.String("endpoint", off.Endpoint), zap.Error(err))
		return nil
	}
	if err := uploader.EnsureBucketExists(ctx); err != nil {
		log.Warn("Off-site bucket not ready", zap.String("bucket", off.Bucket), zap.Error(err))
	}
	return uploader
}

var errServerMode = errors.New("backups are only available for a sqlite store (database.driver=sqlite)")
