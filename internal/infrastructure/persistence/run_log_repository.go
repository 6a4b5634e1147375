package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/loansurv/backend/internal/domain/survival"
	"github.com/loansurv/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormRunLogRepository implements survival.RunLog using GORM
type GormRunLogRepository struct {
	db *gorm.DB
}

// NewGormRunLogRepository creates a new GormRunLogRepository
func NewGormRunLogRepository(db *gorm.DB) *GormRunLogRepository {
	return &GormRunLogRepository{db: db}
}

// Record appends one completed rebuild to the run log.
func (r *GormRunLogRepository) Record(ctx context.Context, result survival.RebuildResult) error {
	run := models.RebuildRun{
		RunID:      result.RunID,
		StartedAt:  result.Started,
		FinishedAt: result.Started.Add(result.Duration),
		Rows:       result.Rows,
	}
	if err := r.db.WithContext(ctx).Create(&run).Error; err != nil {
		return fmt.Errorf("failed to record rebuild run: %w", err)
	}
	return nil
}

// Last returns the most recently finished rebuild, or nil when none exists.
func (r *GormRunLogRepository) Last(ctx context.Context) (*survival.RebuildResult, error) {
	var run models.RebuildRun
	err := r.db.WithContext(ctx).
		Order("finished_at DESC").
		First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read rebuild run log: %w", err)
	}
	return &survival.RebuildResult{
		RunID:    run.RunID,
		Rows:     run.Rows,
		Duration: run.FinishedAt.Sub(run.StartedAt),
		Started:  run.StartedAt,
	}, nil
}
