package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// SchedulerService runs the periodic jobs: hint re-check, trash purge,
// inbox polling and backups.
type SchedulerService struct {
	cron    *cron.Cron
	ctx     context.Context
	cancel  context.CancelFunc
	timeout time.Duration
}

func NewSchedulerService(loc *time.Location, timeout time.Duration) *SchedulerService {
	ctx, cancel := context.WithCancel(context.Background())
	return &SchedulerService{
		cron:    cron.New(cron.WithLocation(loc), cron.WithSeconds()),
		ctx:     ctx,
		cancel:  cancel,
		timeout: timeout,
	}
}

// Schedule registers job under name. An empty spec leaves the job off.
// Runs of the same job never overlap.
func (s *SchedulerService) Schedule(name, spec string, job func(ctx context.Context) error) (cron.EntryID, error) {
	if spec == "" {
		slog.Info("job disabled", "job", name)
		return 0, nil
	}

	run := cron.FuncJob(func() {
		ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
		defer cancel()

		start := time.Now()
		err := job(ctx)
		if err != nil {
			slog.Error("job failed", "job", name, "error", err, "duration", time.Since(start))
			return
		}
		slog.Debug("job finished", "job", name, "duration", time.Since(start))
	})

	wrapped := cron.NewChain(cron.SkipIfStillRunning(cron.DiscardLogger)).Then(run)
	id, err := s.cron.AddJob(spec, wrapped)
	if err != nil {
		return 0, fmt.Errorf("invalid schedule %q for %s: %w", spec, name, err)
	}
	return id, nil
}

func (s *SchedulerService) Start() {
	s.cron.Start()
}

// Stop cancels running jobs and waits for them to return.
func (s *SchedulerService) Stop() {
	s.cancel()
	ctx := s.cron.Stop()
	<-ctx.Done()
}

func (s *SchedulerService) Entries() int {
	return len(s.cron.Entries())
}
