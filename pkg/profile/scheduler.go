package profile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultSchedule rebuilds profiles once a night.
const DefaultSchedule = "0 4 * * *"

// Scheduler periodically rebuilds the profile of every user with chat history.
type Scheduler struct {
	cron       *cron.Cron
	maintainer *Maintainer
	history    History
	timeout    time.Duration
	logger     *slog.Logger
}

// NewScheduler creates a Scheduler running on a standard five-field cron
// schedule. An empty schedule selects DefaultSchedule.
func NewScheduler(maintainer *Maintainer, history History, schedule string, logger *slog.Logger) (*Scheduler, error) {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "profile-scheduler")

	s := &Scheduler{
		maintainer: maintainer,
		history:    history,
		timeout:    30 * time.Minute,
		logger:     logger,
	}
	cronLogger := cronLogger{logger}
	s.cron = cron.New(
		cron.WithLogger(cronLogger),
		cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
	)
	if _, err := s.cron.AddFunc(schedule, s.run); err != nil {
		return nil, fmt.Errorf("invalid profile refresh schedule %q: %w", schedule, err)
	}
	return s, nil
}

// Start begins running the schedule in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops the schedule and waits for a running rebuild to finish or ctx to end.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}

func (s *Scheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	_ = s.RunOnce(ctx)
}

// RunOnce rebuilds every known user's profile now. Per-user failures are
// logged and skipped; the returned count is the number of profiles written.
func (s *Scheduler) RunOnce(ctx context.Context) int {
	usernames, err := s.history.ListUsernames(ctx)
	if err != nil {
		s.logger.Error("listing users for profile refresh", "error", err)
		return 0
	}

	written := 0
	for _, username := range usernames {
		if ctx.Err() != nil {
			break
		}
		ok, err := s.maintainer.Rebuild(ctx, username)
		if err != nil {
			s.logger.Error("profile refresh failed", "username", username, "error", err)
			continue
		}
		if ok {
			written++
		}
	}
	s.logger.Info("profile refresh finished", "users", len(usernames), "written", written)
	return written
}

type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
