package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/loansurv/backend/internal/domain/shared"
	"github.com/loansurv/backend/internal/domain/survival"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeRebuilder struct {
	calls atomic.Int32
	err   error
}

func (f *fakeRebuilder) Rebuild(ctx context.Context) (*survival.RebuildResult, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return &survival.RebuildResult{RunID: "run-1", Rows: 42, Duration: time.Second}, nil
}

func TestParseCronSchedule(t *testing.T) {
	tests := []struct {
		name       string
		expr       string
		wantHour   int
		wantMinute int
		wantErr    bool
	}{
		{"empty uses defaults", "", 3, 0, false},
		{"standard nightly", "0 3 * * *", 3, 0, false},
		{"custom time", "30 1 * * *", 1, 30, false},
		{"wildcards keep defaults", "* * * * *", 3, 0, false},
		{"too few fields", "5", 3, 0, false},
		{"hour out of range", "0 24 * * *", 3, 0, true},
		{"minute out of range", "61 3 * * *", 3, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hour, minute, err := ParseCronSchedule(tt.expr)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantHour, hour)
			assert.Equal(t, tt.wantMinute, minute)
		})
	}
}

func TestShouldRun(t *testing.T) {
	s := NewRebuildCronScheduler(RebuildCronSchedulerConfig{CronHour: 3, CronMinute: 0}, &fakeRebuilder{}, zap.NewNop())

	assert.True(t, s.shouldRun(time.Date(2026, 8, 27, 3, 0, 30, 0, time.UTC)))
	assert.False(t, s.shouldRun(time.Date(2026, 8, 27, 3, 1, 0, 0, time.UTC)))
	assert.False(t, s.shouldRun(time.Date(2026, 8, 27, 4, 0, 0, 0, time.UTC)))
}

func TestCalculateNextRunTime(t *testing.T) {
	s := NewRebuildCronScheduler(DefaultRebuildCronSchedulerConfig(), &fakeRebuilder{}, zap.NewNop())
	s.calculateNextRunTime()

	next := s.NextRunAt()
	require.NotNil(t, next)
	assert.Equal(t, 3, next.Hour())
	assert.Equal(t, 0, next.Minute())
	assert.True(t, next.After(time.Now()))
}

func TestRunRebuild(t *testing.T) {
	t.Run("records last run on success", func(t *testing.T) {
		rebuilder := &fakeRebuilder{}
		s := NewRebuildCronScheduler(DefaultRebuildCronSchedulerConfig(), rebuilder, zap.NewNop())

		s.runRebuild(context.Background())

		assert.Equal(t, int32(1), rebuilder.calls.Load())
		assert.NotNil(t, s.LastRunAt())
	})

	t.Run("tolerates a rebuild already in progress", func(t *testing.T) {
		rebuilder := &fakeRebuilder{err: shared.ErrRebuildInProgress}
		s := NewRebuildCronScheduler(DefaultRebuildCronSchedulerConfig(), rebuilder, zap.NewNop())

		s.runRebuild(context.Background())
		assert.Equal(t, int32(1), rebuilder.calls.Load())
	})

	t.Run("logs and continues on failure", func(t *testing.T) {
		rebuilder := &fakeRebuilder{err: errors.New("source unavailable")}
		s := NewRebuildCronScheduler(DefaultRebuildCronSchedulerConfig(), rebuilder, zap.NewNop())

		s.runRebuild(context.Background())
		assert.Equal(t, int32(1), rebuilder.calls.Load())
	})
}

func TestStartStop(t *testing.T) {
	t.Run("disabled scheduler does not start a loop", func(t *testing.T) {
		cfg := DefaultRebuildCronSchedulerConfig()
		cfg.Enabled = false
		s := NewRebuildCronScheduler(cfg, &fakeRebuilder{}, zap.NewNop())

		require.NoError(t, s.Start(context.Background()))
		assert.False(t, s.IsRunning())
	})

	t.Run("start and stop are idempotent", func(t *testing.T) {
		s := NewRebuildCronScheduler(DefaultRebuildCronSchedulerConfig(), &fakeRebuilder{}, zap.NewNop())

		ctx := context.Background()
		require.NoError(t, s.Start(ctx))
		require.NoError(t, s.Start(ctx))
		assert.True(t, s.IsRunning())
		require.NotNil(t, s.NextRunAt())

		stopCtx, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		require.NoError(t, s.Stop(stopCtx))
		require.NoError(t, s.Stop(stopCtx))
		assert.False(t, s.IsRunning())
	})
}
