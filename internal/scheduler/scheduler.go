package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/grachmannico95/wallet-webhook/pkg/logger"
	"github.com/robfig/cron/v3"
)

// Purger removes transactions older than maxAge.
type Purger interface {
	Purge(ctx context.Context, maxAge time.Duration) (int, error)
}

// Scheduler runs the retention purge on a cron spec. Overlapping runs are
// skipped.
type Scheduler struct {
	cron   *cron.Cron
	purger Purger
	maxAge time.Duration
	spec   string
	logger *logger.Logger
}

func New(purger Purger, spec string, maxAge time.Duration, loc *time.Location, log *logger.Logger) (*Scheduler, error) {
	if loc == nil {
		loc = time.UTC
	}

	cl := cronLogger{log: log}
	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		purger: purger,
		maxAge: maxAge,
		spec:   spec,
		logger: log,
	}

	if _, err := s.cron.AddFunc(spec, func() {
		_, _ = s.RunOnce(context.Background())
	}); err != nil {
		return nil, fmt.Errorf("invalid retention schedule %q: %w", spec, err)
	}

	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info(context.Background(), "Retention scheduler started",
		"schedule", s.spec,
		"max_age", s.maxAge.String(),
	)
}

// Stop prevents new runs and waits for a running purge to finish.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()

	select {
	case <-done.Done():
		s.logger.Info(ctx, "Retention scheduler stopped")
		return nil
	case <-ctx.Done():
		s.logger.Warn(ctx, "Retention scheduler stop timeout")
		return ctx.Err()
	}
}

func (s *Scheduler) RunOnce(ctx context.Context) (int, error) {
	s.logger.Info(ctx, "Running scheduled retention purge")

	purged, err := s.purger.Purge(ctx, s.maxAge)
	if err != nil {
		s.logger.Error(ctx, "Scheduled purge failed",
			"error", err,
		)
		return 0, err
	}

	return purged, nil
}

// cronLogger routes cron's own messages through the application logger.
type cronLogger struct {
	log *logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug(context.Background(), "cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error(context.Background(), "cron: "+msg, append(keysAndValues, "error", err)...)
}
