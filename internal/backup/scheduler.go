package backup

import (
	"context"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"
)

// Backuper produces one snapshot and returns where it was written.
type Backuper interface {
	Backup(ctx context.Context) (string, error)
}

// Scheduler runs a Backuper on a cron schedule. A run that is still in progress when the next tick fires
// causes that tick to be skipped.
type Scheduler struct {
	cron     *cron.Cron
	backuper Backuper
	log      *slog.Logger

	mu       sync.Mutex
	inflight bool
	lastPath string
}

func NewScheduler(b Backuper, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		cron:     cron.New(),
		backuper: b,
		log:      logger.With("component", "backup"),
	}
}

// Register adds a cron schedule. An empty schedule registers nothing.
func (s *Scheduler) Register(schedule string) error {
	if schedule == "" {
		return nil
	}
	_, err := s.cron.AddFunc(schedule, func() {
		_, _ = s.RunOnce(context.Background())
	})
	return err
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// RunOnce takes a snapshot unless one is already running, in which case it returns ("", nil).
func (s *Scheduler) RunOnce(ctx context.Context) (string, error) {
	s.mu.Lock()
	if s.inflight {
		s.mu.Unlock()
		s.log.Warn("backup skipped, previous run still in progress")
		return "", nil
	}
	s.inflight = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.inflight = false
		s.mu.Unlock()
	}()

	path, err := s.backuper.Backup(ctx)
	if err != nil {
		s.log.ErrorContext(ctx, "backup failed", "error", err)
		return "", err
	}
	s.mu.Lock()
	s.lastPath = path
	s.mu.Unlock()
	s.log.InfoContext(ctx, "backup written", "path", path)
	return path, nil
}

func (s *Scheduler) LastPath() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastPath
}
