package dataset

import (
	"context"
	"time"

	"github.com/loansurv/backend/internal/domain/survival"
	"github.com/shopspring/decimal"
)

// QueryService serves the materialized dataset to the HTTP layer.
type QueryService struct {
	reader survival.DatasetReader
}

// NewQueryService creates a new QueryService
func NewQueryService(reader survival.DatasetReader) *QueryService {
	return &QueryService{reader: reader}
}

// ListFilter defines the request filter for dataset reads
type ListFilter struct {
	Event     *bool  `form:"event"`
	RiskClass string `form:"riskclass"`
	Gender    string `form:"gender"`
	Page      int    `form:"page" binding:"omitempty,min=1"`
	PageSize  int    `form:"page_size" binding:"omitempty,min=1,max=1000"`
}

// RecordResponse is one dataset row as served over HTTP
type RecordResponse struct {
	Cliid          int64           `json:"cliid"`
	AppID          int64           `json:"app_id"`
	ApDate         time.Time       `json:"ap_date"`
	CloseDate      time.Time       `json:"close_date"`
	ContractPeriod int             `json:"contractperiod"`
	PaidAmount     decimal.Decimal `json:"paidamount"`
	InitialAmount  decimal.Decimal `json:"initialamount"`
	ExpInt         decimal.Decimal `json:"exp_int"`
	RiskClass      string          `json:"riskclass"`
	ServedDays     int             `json:"serveddays"`
	FicoScore      int             `json:"ficoscore"`
	NpaidCount     int             `json:"npaidcount"`
	NaplCount      int             `json:"naplcount"`
	NDpds          int             `json:"n_dpds"`
	MaxDpd         int             `json:"max_dpd"`
	Age            int             `json:"age"`
	Gender         string          `json:"gender"`
	NSalary        float64         `json:"n_salary"`
	NVehicles      int64           `json:"n_vehicles"`
	NDahk          int64           `json:"n_dahk"`
	NDependents    int64           `json:"n_dependents"`
	BeenMarried    int             `json:"been_married"`
	SumDahk        decimal.Decimal `json:"sum_dahk"`
	MobileOperator string          `json:"mobile_operator"`
	Marz           string          `json:"marz"`
	Tenure         int             `json:"tenure"`
	Event          bool            `json:"event"`
}

// RecordPage is a page of dataset rows
type RecordPage struct {
	Records  []RecordResponse `json:"records"`
	Total    int64            `json:"total"`
	Page     int              `json:"page"`
	PageSize int              `json:"page_size"`
}

// StatsResponse summarizes the current dataset
type StatsResponse struct {
	Total     int64      `json:"total"`
	Observed  int64      `json:"observed"`
	Censored  int64      `json:"censored"`
	MinTenure int        `json:"min_tenure"`
	MaxTenure int        `json:"max_tenure"`
	RebuiltAt *time.Time `json:"rebuilt_at,omitempty"`
}

const defaultPageSize = 100

// ListRecords returns a page of dataset rows under the filter.
func (s *QueryService) ListRecords(ctx context.Context, filter ListFilter) (*RecordPage, error) {
	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 {
		pageSize = defaultPageSize
	}

	domainFilter := survival.RecordFilter{
		Event:     filter.Event,
		RiskClass: filter.RiskClass,
		Gender:    filter.Gender,
	}

	records, total, err := s.reader.List(ctx, domainFilter, (page-1)*pageSize, pageSize)
	if err != nil {
		return nil, err
	}

	out := make([]RecordResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, toRecordResponse(rec))
	}
	return &RecordPage{
		Records:  out,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	}, nil
}

// GetStats returns dataset summary statistics.
func (s *QueryService) GetStats(ctx context.Context) (*StatsResponse, error) {
	stats, err := s.reader.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return &StatsResponse{
		Total:     stats.Total,
		Observed:  stats.Observed,
		Censored:  stats.Censored,
		MinTenure: stats.MinTenure,
		MaxTenure: stats.MaxTenure,
		RebuiltAt: stats.RebuiltAt,
	}, nil
}

func toRecordResponse(rec survival.SurvivalRecord) RecordResponse {
	return RecordResponse{
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
