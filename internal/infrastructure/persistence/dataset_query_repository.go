package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/loansurv/backend/internal/domain/survival"
	"github.com/loansurv/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormDatasetRepository implements survival.DatasetReader over the
// materialized survival_data table.
type GormDatasetRepository struct {
	db *gorm.DB
}

// NewGormDatasetRepository creates a new GormDatasetRepository
func NewGormDatasetRepository(db *gorm.DB) *GormDatasetRepository {
	return &GormDatasetRepository{db: db}
}

// List returns a page of dataset rows plus the total count under the filter.
func (r *GormDatasetRepository) List(ctx context.Context, filter survival.RecordFilter, offset, limit int) ([]survival.SurvivalRecord, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.SurvivalData{})
	query = applyFilter(query, filter)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count dataset rows: %w", err)
	}

	var rows []models.SurvivalData
	err := query.
		Order("app_id").
		Offset(offset).
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list dataset rows: %w", err)
	}

	records := make([]survival.SurvivalRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, fromSurvivalModel(row))
	}
	return records, total, nil
}

func applyFilter(query *gorm.DB, filter survival.RecordFilter) *gorm.DB {
	if filter.Event != nil {
		query = query.Where("event = ?", *filter.Event)
	}
	if filter.RiskClass != "" {
		query = query.Where("riskclass = ?", filter.RiskClass)
	}
	if filter.Gender != "" {
		query = query.Where("gender = ?", filter.Gender)
	}
	return query
}

// Stats summarizes the current dataset.
func (r *GormDatasetRepository) Stats(ctx context.Context) (*survival.DatasetStats, error) {
	stats := &survival.DatasetStats{}

	db := r.db.WithContext(ctx).Model(&models.SurvivalData{})
	if err := db.Count(&stats.Total).Error; err != nil {
		return nil, fmt.Errorf("failed to count dataset rows: %w", err)
	}

	if stats.Total > 0 {
		err := r.db.WithContext(ctx).Model(&models.SurvivalData{}).
			Where("event = ?", true).
			Count(&stats.Observed).Error
		if err != nil {
			return nil, fmt.Errorf("failed to count observed rows: %w", err)
		}
		stats.Censored = stats.Total - stats.Observed

		type bounds struct {
			Min int `gorm:"column:min"`
			Max int `gorm:"column:max"`
		}
		var b bounds
		err = r.db.WithContext(ctx).Model(&models.SurvivalData{}).
			Select("MIN(tenure) AS min, MAX(tenure) AS max").
			Scan(&b).Error
		if err != nil {
			return nil, fmt.Errorf("failed to compute tenure bounds: %w", err)
		}
		stats.MinTenure = b.Min
		stats.MaxTenure = b.Max
	}

	var lastRun models.RebuildRun
	err := r.db.WithContext(ctx).
		Order("finished_at DESC").
		First(&lastRun).Error
	if err == nil {
		stats.RebuiltAt = &lastRun.FinishedAt
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to read last rebuild run: %w", err)
	}

	return stats, nil
}
