// Package scheduler provides cron-style scheduling for the nightly dataset
// rebuild.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/loansurv/backend/internal/domain/shared"
	"github.com/loansurv/backend/internal/domain/survival"
	"go.uber.org/zap"
)

// cronTickerInterval is the interval at which the cron scheduler checks for execution
const cronTickerInterval = 1 * time.Minute

// ErrInvalidConfig indicates an invalid scheduler configuration value
var ErrInvalidConfig = errors.New("invalid scheduler configuration")

// Rebuilder triggers one full dataset rebuild.
type Rebuilder interface {
	Rebuild(ctx context.Context) (*survival.RebuildResult, error)
}

// RebuildCronSchedulerConfig holds configuration for the cron-based rebuild scheduler
type RebuildCronSchedulerConfig struct {
	// Enabled indicates if the cron scheduler is enabled
	Enabled bool
	// CronHour is the hour (0-23) to run the nightly rebuild
	CronHour int
	// CronMinute is the minute (0-59) to run the nightly rebuild
	CronMinute int
	// DailyCronSchedule is the cron expression (parsed to extract hour/minute)
	DailyCronSchedule string
	// JobTimeout is the maximum time a rebuild can run
	JobTimeout time.Duration
}

// DefaultRebuildCronSchedulerConfig returns default cron scheduler configuration.
// Defaults to running at 3:00 AM daily, after the nightly source loads settle.
func DefaultRebuildCronSchedulerConfig() RebuildCronSchedulerConfig {
	return RebuildCronSchedulerConfig{
		Enabled:           true,
		CronHour:          3,
		CronMinute:        0,
		DailyCronSchedule: "0 3 * * *",
		JobTimeout:        30 * time.Minute,
	}
}

// ParseCronSchedule parses a cron expression "minute hour * * *" to extract hour and minute
// Returns defaults (3:00) if parsing fails or expression is empty
func ParseCronSchedule(cronExpr string) (hour, minute int, err error) {
	hour = 3
	minute = 0

	if cronExpr == "" {
		return hour, minute, nil
	}

	parts := strings.Fields(cronExpr)
	if len(parts) < 2 {
		return hour, minute, nil
	}

	if parts[0] != "*" {
		if val, parseErr := parseIntOrDefault(parts[0], 0); parseErr == nil {
			minute = val
		}
	}
	if parts[1] != "*" {
		if val, parseErr := parseIntOrDefault(parts[1], 3); parseErr == nil {
			hour = val
		}
	}

	if minute < 0 || minute > 59 {
		return 3, 0, fmt.Errorf("minute must be 0-59, got %d", minute)
	}
	if hour < 0 || hour > 23 {
		return 3, 0, fmt.Errorf("hour must be 0-23, got %d", hour)
	}

	return hour, minute, nil
}

// parseIntOrDefault parses an int string or returns default
func parseIntOrDefault(s string, defaultVal int) (int, error) {
	if s == "" || s == "*" {
		return defaultVal, nil
	}
	var val int
	for _, c := range s {
		if c < '0' || c > '9' {
			return defaultVal, ErrInvalidConfig
		}
		val = val*10 + int(c-'0')
	}
	return val, nil
}

// RebuildCronScheduler runs the dataset rebuild once a day at the configured
// time. Overlap protection is handled by the rebuild service's lock, so a
// manually triggered rebuild running at cron time simply wins.
type RebuildCronScheduler struct {
	config    RebuildCronSchedulerConfig
	rebuilder Rebuilder
	logger    *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool

	lastRunAt *time.Time
	nextRunAt *time.Time
}

// NewRebuildCronScheduler creates a new cron-based rebuild scheduler
func NewRebuildCronScheduler(
	config RebuildCronSchedulerConfig,
	rebuilder Rebuilder,
	logger *zap.Logger,
) *RebuildCronScheduler {
	return &RebuildCronScheduler{
		config:    config,
		rebuilder: rebuilder,
		logger:    logger.Named("rebuild_cron"),
	}
}

// Start starts the cron scheduler
func (s *RebuildCronScheduler) Start(ctx context.Context) error {
	if !s.config.Enabled {
		s.logger.Info("Rebuild cron scheduler disabled")
		return nil
	}

	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.calculateNextRunTime()

	s.wg.Add(1)
	go s.cronLoop(ctx)

	s.logger.Info("Rebuild cron scheduler started",
		zap.Int("cron_hour", s.config.CronHour),
		zap.Int("cron_minute", s.config.CronMinute),
		zap.Timep("next_run_at", s.nextRunAt),
	)

	return nil
}

// Stop stops the cron scheduler and waits for an in-flight rebuild to finish
func (s *RebuildCronScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Rebuild cron scheduler stopped")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Rebuild cron scheduler stop timed out")
		return ctx.Err()
	}
}

// IsRunning reports whether the scheduler loop is active
func (s *RebuildCronScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}

// NextRunAt returns the next scheduled run time, if any
func (s *RebuildCronScheduler) NextRunAt() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextRunAt
}

// LastRunAt returns the last run time, if any
func (s *RebuildCronScheduler) LastRunAt() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRunAt
}

// cronLoop runs the main cron loop
func (s *RebuildCronScheduler) cronLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(cronTickerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if s.shouldRun(now) {
				s.runRebuild(ctx)
				s.calculateNextRunTime()
			}
		}
	}
}

// shouldRun checks if the cron should run at the given time
func (s *RebuildCronScheduler) shouldRun(now time.Time) bool {
	return now.Hour() == s.config.CronHour && now.Minute() == s.config.CronMinute
}

// calculateNextRunTime calculates the next run time
func (s *RebuildCronScheduler) calculateNextRunTime() {
	now := time.Now()
	next := time.Date(now.Year(), now.Month(), now.Day(), s.config.CronHour, s.config.CronMinute, 0, 0, now.Location())

	if now.After(next) {
		next = next.AddDate(0, 0, 1)
	}

	s.mu.Lock()
	s.nextRunAt = &next
	s.mu.Unlock()
}

// runRebuild executes one scheduled rebuild
func (s *RebuildCronScheduler) runRebuild(ctx context.Context) {
	now := time.Now()
	s.mu.Lock()
	s.lastRunAt = &now
	s.mu.Unlock()

	jobCtx := ctx
	var cancel context.CancelFunc
	if s.config.JobTimeout > 0 {
		jobCtx, cancel = context.WithTimeout(ctx, s.config.JobTimeout)
		defer cancel()
	}

	s.logger.Info("Starting scheduled dataset rebuild")

	result, err := s.rebuilder.Rebuild(jobCtx)
	if err != nil {
		if errors.Is(err, shared.ErrRebuildInProgress) {
			s.logger.Info("Scheduled rebuild skipped, another rebuild is running")
			return
		}
		s.logger.Error("Scheduled dataset rebuild failed", zap.Error(err))
		return
	}

	s.logger.Info("Scheduled dataset rebuild finished",
		zap.String("run_id", result.RunID),
		zap.Int("rows", result.Rows),
		zap.Duration("duration", result.Duration),
	)
}
