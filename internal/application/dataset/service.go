package dataset

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/loansurv/backend/internal/domain/shared"
	"github.com/loansurv/backend/internal/domain/survival"
	"github.com/loansurv/backend/internal/infrastructure/cache"
	"go.uber.org/zap"
)

// RebuildMetrics receives rebuild outcomes for monitoring. Implemented by the
// telemetry package; a nil value disables recording.
type RebuildMetrics interface {
	RecordRebuild(ctx context.Context, rows int, duration time.Duration, success bool)
}

// RebuildService orchestrates one full dataset rebuild: extract, derive,
// materialize. At most one rebuild runs at a time; a concurrent trigger gets
// shared.ErrRebuildInProgress.
type RebuildService struct {
	reader  survival.SourceReader
	writer  survival.DatasetWriter
	runLog  survival.RunLog
	builder *survival.Builder
	lock    cache.RebuildLock
	logger  *zap.Logger
	metrics RebuildMetrics
}

// NewRebuildService creates a new RebuildService. metrics may be nil.
func NewRebuildService(
	reader survival.SourceReader,
	writer survival.DatasetWriter,
	runLog survival.RunLog,
	builder *survival.Builder,
	lock cache.RebuildLock,
	logger *zap.Logger,
	metrics RebuildMetrics,
) *RebuildService {
	return &RebuildService{
		reader:  reader,
		writer:  writer,
		runLog:  runLog,
		builder: builder,
		lock:    lock,
		logger:  logger.Named("rebuild"),
		metrics: metrics,
	}
}

// Rebuild runs the full pipeline and reports the produced row count. The
// rebuild has no internal retries; callers decide whether to re-trigger.
func (s *RebuildService) Rebuild(ctx context.Context) (*survival.RebuildResult, error) {
	acquired, err := s.lock.TryAcquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("rebuild lock: %w", err)
	}
	if !acquired {
		return nil, shared.ErrRebuildInProgress
	}
	defer func() {
		if err := s.lock.Release(context.WithoutCancel(ctx)); err != nil {
			s.logger.Warn("failed to release rebuild lock", zap.Error(err))
		}
	}()

	started := time.Now()
	runID := uuid.NewString()
	log := s.logger.With(zap.String("run_id", runID))
	log.Info("dataset rebuild started")

	apps, err := s.reader.Applications(ctx)
	if err != nil {
		s.record(ctx, 0, time.Since(started), false)
		return nil, fmt.Errorf("extract applications: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	agg, err := s.reader.AuxiliaryAggregates(ctx)
	if err != nil {
		s.record(ctx, 0, time.Since(started), false)
		return nil, fmt.Errorf("extract auxiliary aggregates: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	records := s.builder.Build(apps, agg)

	if err := s.writer.Replace(ctx, records); err != nil {
		s.record(ctx, 0, time.Since(started), false)
		return nil, fmt.Errorf("materialize dataset: %w", err)
	}

	result := &survival.RebuildResult{
		RunID:    runID,
		Rows:     len(records),
		Duration: time.Since(started),
		Started:  started,
	}

	// Run log failures do not undo a finished rebuild.
	if err := s.runLog.Record(ctx, *result); err != nil {
		log.Warn("failed to record rebuild run", zap.Error(err))
	}

	s.record(ctx, result.Rows, result.Duration, true)
	log.Info("dataset rebuild finished",
		zap.Int("rows", result.Rows),
		zap.Int("source_applications", len(apps)),
		zap.Duration("duration", result.Duration),
	)
	return result, nil
}

func (s *RebuildService) record(ctx context.Context, rows int, duration time.Duration, success bool) {
	if s.metrics != nil {
		s.metrics.RecordRebuild(ctx, rows, duration, success)
	}
}
