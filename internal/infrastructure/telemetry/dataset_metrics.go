package telemetry

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"go.opentelemetry.io/otel/metric"
)

// ErrMeterNil is returned when a nil meter is passed to a metrics constructor.
var ErrMeterNil = errors.New("NewDatasetMetrics: meter cannot be nil")

// DatasetMetrics tracks dataset rebuild activity: how often rebuilds run, how
// long they take, and how many rows the current dataset holds.
type DatasetMetrics struct {
	meter  metric.Meter
	logger *zap.Logger

	rebuildTotal    *Counter
	rebuildDuration *Histogram
	datasetRows     *Gauge
}

// DatasetMetricsConfig holds configuration for dataset metrics.
type DatasetMetricsConfig struct {
	Meter  metric.Meter
	Logger *zap.Logger
}

// NewDatasetMetrics creates a new DatasetMetrics instance.
func NewDatasetMetrics(cfg DatasetMetricsConfig) (*DatasetMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	dm := &DatasetMetrics{
		meter:  cfg.Meter,
		logger: logger,
	}

	var err error

	dm.rebuildTotal, err = NewCounter(cfg.Meter,
		"dataset_rebuild_total",
		"Total number of dataset rebuild attempts",
		"{rebuild}",
	)
	if err != nil {
		return nil, err
	}

	dm.rebuildDuration, err = NewHistogram(cfg.Meter, HistogramOpts{
		Name:        "dataset_rebuild_duration_seconds",
		Description: "Duration of dataset rebuilds",
		Unit:        "s",
		Boundaries:  RebuildDurationBuckets,
	})
	if err != nil {
		return nil, err
	}

	dm.datasetRows, err = NewGauge(cfg.Meter,
		"dataset_rows",
		"Row count of the live survival dataset after the last successful rebuild",
		"{row}",
	)
	if err != nil {
		return nil, err
	}

	return dm, nil
}

// RecordRebuild records the outcome of one rebuild attempt. The row gauge is
// only updated on success so a failed run does not report a phantom dataset.
func (dm *DatasetMetrics) RecordRebuild(ctx context.Context, rows int, duration time.Duration, success bool) {
	outcome := "failure"
	if success {
		outcome = "success"
	}

	dm.rebuildTotal.Inc(ctx, AttrOutcome.String(outcome))
	dm.rebuildDuration.RecordDuration(ctx, duration, AttrOutcome.String(outcome))

	if success {
		dm.datasetRows.Record(ctx, int64(rows))
	}
}
