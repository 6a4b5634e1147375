package persistence

import (
	"context"
	"fmt"

	"github.com/loansurv/backend/internal/domain/survival"
	"github.com/loansurv/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

const (
	datasetTable = "survival_data"
	stagingTable = "survival_data_staging"
	retiredTable = "survival_data_retired"
)

// GormDatasetWriter materializes the survival dataset through a staging
// table. The new result set is built fully in survival_data_staging and then
// renamed over the live table inside one transaction; Postgres DDL is
// transactional, so readers observe the old set or the new set, never a
// partial one.
type GormDatasetWriter struct {
	db        *gorm.DB
	batchSize int
}

// NewGormDatasetWriter creates a new GormDatasetWriter. batchSize bounds the
// multi-row insert size.
func NewGormDatasetWriter(db *gorm.DB, batchSize int) *GormDatasetWriter {
	if batchSize <= 0 {
		batchSize = 500
	}
	return &GormDatasetWriter{db: db, batchSize: batchSize}
}

// Replace implements survival.DatasetWriter. Records are inserted in the
// order given; the builder sorts by app_id, which keeps reruns over unchanged
// sources byte-identical.
func (w *GormDatasetWriter) Replace(ctx context.Context, records []survival.SurvivalRecord) error {
	return w.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("TRUNCATE TABLE " + stagingTable).Error; err != nil {
			return fmt.Errorf("failed to clear staging table: %w", err)
		}

		for start := 0; start < len(records); start += w.batchSize {
			end := start + w.batchSize
			if end > len(records) {
				end = len(records)
			}
			batch := make([]models.SurvivalData, 0, end-start)
			for _, rec := range records[start:end] {
				batch = append(batch, toSurvivalModel(rec))
			}
			if err := tx.Table(stagingTable).Create(&batch).Error; err != nil {
				return fmt.Errorf("failed to populate staging table: %w", err)
			}
		}

		// Three-way rename swap. The retired table becomes the next run's
		// staging table.
		if err := tx.Exec("ALTER TABLE " + datasetTable + " RENAME TO " + retiredTable).Error; err != nil {
			return fmt.Errorf("failed to retire live table: %w", err)
		}
		if err := tx.Exec("ALTER TABLE " + stagingTable + " RENAME TO " + datasetTable).Error; err != nil {
			return fmt.Errorf("failed to promote staging table: %w", err)
		}
		if err := tx.Exec("ALTER TABLE " + retiredTable + " RENAME TO " + stagingTable).Error; err != nil {
			return fmt.Errorf("failed to recycle retired table: %w", err)
		}
		return nil
	})
}

func toSurvivalModel(rec survival.SurvivalRecord) models.SurvivalData {
	return models.SurvivalData{
		Cliid:          rec.ClientID,
		AppID:          rec.AppID,
		ApDate:         rec.ApplicationDate,
		CloseDate:      rec.CloseDate,
		ContractPeriod: rec.ContractPeriod,
		PaidAmount:     rec.PaidAmount,
		InitialAmount:  rec.InitialAmount,
		ExpInt:         rec.ExpectedInterest,
		RiskClass:      rec.RiskClass,
		ServedDays:     rec.ServedDays,
		FicoScore:      rec.FicoScore,
		NpaidCount:     rec.PaidCount,
		NaplCount:      rec.ApplicationCount,
		NDpds:          rec.DelinquencyCount,
		MaxDpd:         rec.MaxDelinquency,
		Age:            rec.Age,
		Gender:         rec.Gender,
		NSalary:        rec.SalaryFlag,
		NVehicles:      rec.Vehicles,
		NDahk:          rec.CollectionCnt,
		NDependents:    rec.Dependents,
		BeenMarried:    rec.BeenMarried,
		SumDahk:        rec.CollectionsSum,
		MobileOperator: rec.MobileOperator,
		Marz:           rec.Region,
		Tenure:         rec.Tenure,
		Event:          rec.Event,
	}
}

func fromSurvivalModel(m models.SurvivalData) survival.SurvivalRecord {
	return survival.SurvivalRecord{
		ClientID:         m.Cliid,
		AppID:            m.AppID,
		ApplicationDate:  m.ApDate,
		CloseDate:        m.CloseDate,
		ContractPeriod:   m.ContractPeriod,
		PaidAmount:       m.PaidAmount,
		InitialAmount:    m.InitialAmount,
		ExpectedInterest: m.ExpInt,
		RiskClass:        m.RiskClass,
		ServedDays:       m.ServedDays,
		FicoScore:        m.FicoScore,
		PaidCount:        m.NpaidCount,
		ApplicationCount: m.NaplCount,
		DelinquencyCount: m.NDpds,
		MaxDelinquency:   m.MaxDpd,
		Age:              m.Age,
		Gender:           m.Gender,
		SalaryFlag:       m.NSalary,
		Vehicles:         m.NVehicles,
		CollectionCnt:    m.NDahk,
		Dependents:       m.NDependents,
		BeenMarried:      m.BeenMarried,
		CollectionsSum:   m.SumDahk,
		MobileOperator:   m.MobileOperator,
		Region:           m.Marz,
		Tenure:           m.Tenure,
		Event:            m.Event,
	}
}
