package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/loansurv/backend/internal/domain/survival"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GormSourceReader implements survival.SourceReader over the warehouse
// tables using GORM.
type GormSourceReader struct {
	db                *gorm.DB
	relationMarried   int
	relationDependent int
}

// NewGormSourceReader creates a new GormSourceReader. The relation codes
// select which family-member rows count as marriage history and dependents.
func NewGormSourceReader(db *gorm.DB, relationMarried, relationDependent int) *GormSourceReader {
	return &GormSourceReader{
		db:                db,
		relationMarried:   relationMarried,
		relationDependent: relationDependent,
	}
}

// applicationRow is the scan target for the joined application query.
// Nullable join columns are pointers so a missing match does not zero-fill
// silently at scan time.
type applicationRow struct {
	AppID          int64            `gorm:"column:app_id"`
	Cliid          int64            `gorm:"column:cliid"`
	ApDate         time.Time        `gorm:"column:ap_date"`
	AplStage       int              `gorm:"column:apl_stage"`
	ExpInt         decimal.Decimal  `gorm:"column:exp_int"`
	NpaidCount     int              `gorm:"column:npaidcount"`
	NaplCount      int              `gorm:"column:naplcount"`
	NDpds          int              `gorm:"column:n_dpds"`
	MaxDpd         int              `gorm:"column:max_dpd"`
	NSalary        float64          `gorm:"column:n_salary"`
	CloseDate      *time.Time       `gorm:"column:close_date"`
	RiskClass      *string          `gorm:"column:riskclass"`
	FicoScore      *int             `gorm:"column:ficoscore"`
	ContractPeriod *int             `gorm:"column:contractperiod"`
	PaidAmount     *decimal.Decimal `gorm:"column:paidamount"`
	InitialAmount  *decimal.Decimal `gorm:"column:initialamount"`
	BirthDate      *time.Time       `gorm:"column:birth_date"`
	Gender         *string          `gorm:"column:gender"`
	MobileOperator *string          `gorm:"column:mobile_operator"`
	Marz           *string          `gorm:"column:marz"`
}

// Applications returns one row per application, left-joined to the contract,
// customer and region tables. The auxiliary one-to-many sources are read
// separately through AuxiliaryAggregates to avoid fanning out these rows.
func (r *GormSourceReader) Applications(ctx context.Context) ([]survival.ApplicationRecord, error) {
	var rows []applicationRow
	err := r.db.WithContext(ctx).
		Table("consumer_main AS cm").
		Select(`cm.app_id, cm.cliid, cm.ap_date, cm.apl_stage, cm.exp_int,
			cm.npaidcount, cm.naplcount, cm.n_dpds, cm.max_dpd, cm.n_salary,
			hc.close_date, hc.riskclass, hc.ficoscore, hc.contractperiod, hc.paidamount, hc.initialamount,
			cc.birth_date, cc.gender, cc.mobile_operator, m.marz`).
		Joins("LEFT JOIN consumer_hc AS hc ON hc.app_id = cm.app_id").
		Joins("LEFT JOIN consumer_client AS cc ON cc.cliid = cm.cliid").
		Joins("LEFT JOIN marz AS m ON m.marz_id = cc.marz_id").
		Order("cm.app_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load application log: %w", err)
	}

	apps := make([]survival.ApplicationRecord, 0, len(rows))
	for _, row := range rows {
		apps = append(apps, row.toRecord())
	}
	return apps, nil
}

func (row applicationRow) toRecord() survival.ApplicationRecord {
	rec := survival.ApplicationRecord{
		AppID:            row.AppID,
		ClientID:         row.Cliid,
		ApplicationDate:  row.ApDate,
		Stage:            row.AplStage,
		ExpectedInterest: row.ExpInt,
		PaidCount:        row.NpaidCount,
		ApplicationCount: row.NaplCount,
		DelinquencyCount: row.NDpds,
		MaxDelinquency:   row.MaxDpd,
		SalaryFlag:       row.NSalary,
		CloseDate:        row.CloseDate,
		BirthDate:        row.BirthDate,
	}
	if row.RiskClass != nil {
		rec.RiskClass = *row.RiskClass
	}
	if row.FicoScore != nil {
		rec.FicoScore = *row.FicoScore
	}
	if row.ContractPeriod != nil {
		rec.ContractPeriod = *row.ContractPeriod
	}
	if row.PaidAmount != nil {
		rec.PaidAmount = *row.PaidAmount
	}
	if row.InitialAmount != nil {
		rec.InitialAmount = *row.InitialAmount
	}
	if row.Gender != nil {
		rec.Gender = *row.Gender
	}
	if row.MobileOperator != nil {
		rec.MobileOperator = *row.MobileOperator
	}
	if row.Marz != nil {
		rec.Region = *row.Marz
	}
	return rec
}

// AuxiliaryAggregates runs the four independent pre-aggregation passes. Each
// source collapses to a key→aggregate map before any merge happens, so a
// customer with many child rows still contributes exactly one base row.
func (r *GormSourceReader) AuxiliaryAggregates(ctx context.Context) (survival.Aggregates, error) {
	agg := survival.NewAggregates()

	type countRow struct {
		Key   int64 `gorm:"column:key"`
		Count int64 `gorm:"column:count"`
	}

	var vehicles []countRow
	err := r.db.WithContext(ctx).
		Table("eceng_vehicle_info").
		Select("app_id AS key, COUNT(*) AS count").
		Group("app_id").
		Scan(&vehicles).Error
	if err != nil {
		return agg, fmt.Errorf("failed to aggregate vehicle registrations: %w", err)
	}
	for _, row := range vehicles {
		agg.VehiclesByApp[row.Key] = row.Count
	}

	type cesRow struct {
		Key   int64           `gorm:"column:key"`
		Count int64           `gorm:"column:count"`
		Sum   decimal.Decimal `gorm:"column:sum"`
	}
	var cases []cesRow
	err = r.db.WithContext(ctx).
		Table("eceng_ces_data").
		Select("app_id AS key, COUNT(*) AS count, COALESCE(SUM(recoversum), 0) AS sum").
		Group("app_id").
		Scan(&cases).Error
	if err != nil {
		return agg, fmt.Errorf("failed to aggregate collections cases: %w", err)
	}
	for _, row := range cases {
		agg.CollectionsByApp[row.Key] = survival.CollectionStats{Count: row.Count, Sum: row.Sum}
	}

	var dependents []countRow
	err = r.db.WithContext(ctx).
		Table("consumer_family_members").
		Select("cliid AS key, COUNT(*) AS count").
		Where("relation = ?", r.relationDependent).
		Group("cliid").
		Scan(&dependents).Error
	if err != nil {
		return agg, fmt.Errorf("failed to aggregate dependents: %w", err)
	}
	for _, row := range dependents {
		agg.DependentsByClient[row.Key] = row.Count
	}

	var marriages []countRow
	err = r.db.WithContext(ctx).
		Table("consumer_family_members").
		Select("cliid AS key, COUNT(*) AS count").
		Where("relation = ?", r.relationMarried).
		Group("cliid").
		Scan(&marriages).Error
	if err != nil {
		return agg, fmt.Errorf("failed to aggregate marriage relations: %w", err)
	}
	for _, row := range marriages {
		agg.MarriagesByClient[row.Key] = row.Count
	}

	return agg, nil
}
