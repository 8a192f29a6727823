package jobs

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"propertyhub/internal/backup"
	"propertyhub/internal/metrics"
	"propertyhub/internal/repositories"
)

const (
	JobScheduledBackup = "scheduled-backup"
	JobOverdueSweep    = "overdue-invoice-sweep"
)

// Options sets the job intervals. A zero interval disables the job.
type Options struct {
	BackupInterval       time.Duration
	OverdueSweepInterval time.Duration
	Clock                clockwork.Clock
}

// Scheduler runs the periodic maintenance jobs. Every job runs in singleton
// mode so a slow run is never overlapped by the next one.
type Scheduler struct {
	scheduler gocron.Scheduler
	backups   *backup.Service
	invoices  repositories.InvoiceSweepRepository
	metrics   *metrics.Metrics
	clock     clockwork.Clock
	jobs      map[string]gocron.Job
	log       *zap.Logger
}

// NewScheduler registers the jobs. backups is nil in server mode, which
// disables scheduled backups.
func NewScheduler(backups *backup.Service, invoices repositories.InvoiceSweepRepository, m *metrics.Metrics, opts Options, log *zap.Logger) (*Scheduler, error) {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	log = log.With(zap.String("component", "jobs"))

	scheduler, err := gocron.NewScheduler(
		gocron.WithClock(opts.Clock),
		gocron.WithLocation(time.UTC),
		gocron.WithGlobalJobOptions(
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
			gocron.WithEventListeners(
				gocron.AfterJobRunsWithError(func(_ uuid.UUID, name string, err error) {
					log.Error("Job failed", zap.String("job", name), zap.Error(err))
				}),
			),
		),
	)
	if err != nil {
		return nil, err
	}

	s := &Scheduler{
		scheduler: scheduler,
		backups:   backups,
		invoices:  invoices,
		metrics:   m,
		clock:     opts.Clock,
		jobs:      make(map[string]gocron.Job),
		log:       log,
	}

	if backups != nil && opts.BackupInterval > 0 {
		if err := s.register(JobScheduledBackup, opts.BackupInterval, s.RunScheduledBackup); err != nil {
			return nil, err
		}
	}
	if invoices != nil && opts.OverdueSweepInterval > 0 {
		if err := s.register(JobOverdueSweep, opts.OverdueSweepInterval, s.SweepOverdue); err != nil {
			return nil, err
		}
	}
	log.Info("Registered background jobs", zap.Int("count", len(s.jobs)))
	return s, nil
}

func (s *Scheduler) register(name string, every time.Duration, task func(ctx context.Context) error) error {
	job, err := s.scheduler.NewJob(
		gocron.DurationJob(every),
		gocron.NewTask(task, context.Background()),
		gocron.WithName(name),
	)
	if err != nil {
		return err
	}
	s.jobs[name] = job
	return nil
}

// Names lists the registered jobs.
func (s *Scheduler) Names() []string {
	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	return names
}

func (s *Scheduler) Start() {
	s.log.Info("Starting background job scheduler")
	s.scheduler.Start()
}

// Stop waits for running jobs and stops the scheduler.
func (s *Scheduler) Stop() error {
	s.log.Info("Stopping background job scheduler")
	return s.scheduler.Shutdown()
}

// RunScheduledBackup takes a backup tagged "scheduled".
func (s *Scheduler) RunScheduledBackup(ctx context.Context) error {
	_, err := s.backups.CreateBackup(ctx, backup.ReasonScheduled)
	return err
}

// SweepOverdue moves unpaid invoices past their due date to overdue, across
// every organization.
func (s *Scheduler) SweepOverdue(ctx context.Context) error {
	n, err := s.invoices.MarkOverdue(ctx, s.clock.Now().UTC())
	if err != nil {
		return err
	}
	s.metrics.AddOverdue(n)
	if n > 0 {
		s.log.Info("Invoices marked overdue", zap.Int64("count", n))
	}
	return nil
}
