package survival

import (
	"context"
	"time"
)

// SourceReader extracts the joined application log and the pre-aggregated
// auxiliary sources from the warehouse.
type SourceReader interface {
	// Applications returns one row per application with contract, customer
	// and region columns left-joined in.
	Applications(ctx context.Context) ([]ApplicationRecord, error)
	// AuxiliaryAggregates runs the independent aggregation passes over the
	// vehicle, collections and family-member sources.
	AuxiliaryAggregates(ctx context.Context) (Aggregates, error)
}

// DatasetWriter materializes a freshly built dataset, replacing the previous
// one atomically: concurrent readers see the old set or the new set in full,
// never a mixture.
type DatasetWriter interface {
	Replace(ctx context.Context, records []SurvivalRecord) error
}

// RecordFilter narrows a dataset read. Nil / zero fields are not applied.
type RecordFilter struct {
	Event     *bool
	RiskClass string
	Gender    string
}

// DatasetStats summarizes the current dataset for monitoring.
type DatasetStats struct {
	Total     int64
	Observed  int64
	Censored  int64
	MinTenure int
	MaxTenure int
	RebuiltAt *time.Time
}

// DatasetReader serves the materialized dataset to callers.
type DatasetReader interface {
	List(ctx context.Context, filter RecordFilter, offset, limit int) ([]SurvivalRecord, int64, error)
	Stats(ctx context.Context) (*DatasetStats, error)
}

// RebuildResult reports one completed rebuild run.
type RebuildResult struct {
	RunID    string
	Rows     int
	Duration time.Duration
	Started  time.Time
}

// RunLog keeps the history of completed rebuilds.
type RunLog interface {
	Record(ctx context.Context, result RebuildResult) error
	Last(ctx context.Context) (*RebuildResult, error)
}
