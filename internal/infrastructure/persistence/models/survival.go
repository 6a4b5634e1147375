package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// SurvivalData is one row of the materialized survival dataset. The table is
// fully derived: it is rebuilt wholesale and never patched in place.
type SurvivalData struct {
	Cliid          int64           `gorm:"column:cliid;index"`
	AppID          int64           `gorm:"column:app_id;primaryKey;autoIncrement:false"`
	ApDate         time.Time       `gorm:"column:ap_date"`
	CloseDate      time.Time       `gorm:"column:close_date"`
	ContractPeriod int             `gorm:"column:contractperiod"`
	PaidAmount     decimal.Decimal `gorm:"column:paidamount;type:numeric(14,2)"`
	InitialAmount  decimal.Decimal `gorm:"column:initialamount;type:numeric(14,2)"`
	ExpInt         decimal.Decimal `gorm:"column:exp_int;type:numeric(14,2)"`
	RiskClass      string          `gorm:"column:riskclass;size:16"`
	ServedDays     int             `gorm:"column:serveddays"`
	FicoScore      int             `gorm:"column:ficoscore"`
	NpaidCount     int             `gorm:"column:npaidcount"`
	NaplCount      int             `gorm:"column:naplcount"`
	NDpds          int             `gorm:"column:n_dpds"`
	MaxDpd         int             `gorm:"column:max_dpd"`
	Age            int             `gorm:"column:age"`
	Gender         string          `gorm:"column:gender;size:8"`
	NSalary        float64         `gorm:"column:n_salary"`
	NVehicles      int64           `gorm:"column:n_vehicles"`
	NDahk          int64           `gorm:"column:n_dahk"`
	NDependents    int64           `gorm:"column:n_dependents"`
	BeenMarried    int             `gorm:"column:been_married"`
	SumDahk        decimal.Decimal `gorm:"column:sum_dahk;type:numeric(14,2)"`
	MobileOperator string          `gorm:"column:mobile_operator;size:32"`
	Marz           string          `gorm:"column:marz;size:64"`
	Tenure         int             `gorm:"column:tenure"`
	Event          bool            `gorm:"column:event"`
}

func (SurvivalData) TableName() string { return "survival_data" }

// RebuildRun records one completed dataset rebuild for observability.
type RebuildRun struct {
	RunID      string    `gorm:"column:run_id;primaryKey;size:36"`
	StartedAt  time.Time `gorm:"column:started_at"`
	FinishedAt time.Time `gorm:"column:finished_at;index"`
	Rows       int       `gorm:"column:rows"`
}

func (RebuildRun) TableName() string { return "dataset_rebuild_runs" }
