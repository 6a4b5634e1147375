package survival

import (
	"time"

	"github.com/shopspring/decimal"
)

// ApplicationRecord is one joined row of the application log: the application
// itself plus the contract and customer columns pulled in by left-outer joins.
// Pointer fields stay nil when the join found no match; the builder applies
// the coalescing rules downstream.
type ApplicationRecord struct {
	AppID           int64
	ClientID        int64
	ApplicationDate time.Time
	Stage           int

	ExpectedInterest decimal.Decimal
	PaidCount        int
	ApplicationCount int
	DelinquencyCount int
	MaxDelinquency   int
	SalaryFlag       float64

	// Contract columns (consumer_hc); CloseDate is nil while the loan is open
	// or when no contract row exists for the application.
	CloseDate      *time.Time
	RiskClass      string
	FicoScore      int
	ContractPeriod int
	PaidAmount     decimal.Decimal
	InitialAmount  decimal.Decimal

	// Customer columns (consumer_client / marz).
	BirthDate      *time.Time
	Gender         string
	MobileOperator string
	Region         string
}

// CollectionStats aggregates collections/recovery cases for one application.
type CollectionStats struct {
	Count int64
	Sum   decimal.Decimal
}

// Aggregates holds the pre-aggregated auxiliary sources, one key→value map
// per source. Aggregating before the merge keeps one-to-many child rows from
// multiplying the base application rows.
type Aggregates struct {
	VehiclesByApp      map[int64]int64
	CollectionsByApp   map[int64]CollectionStats
	DependentsByClient map[int64]int64
	MarriagesByClient  map[int64]int64
}

// NewAggregates returns an Aggregates with all maps initialized.
func NewAggregates() Aggregates {
	return Aggregates{
		VehiclesByApp:      make(map[int64]int64),
		CollectionsByApp:   make(map[int64]CollectionStats),
		DependentsByClient: make(map[int64]int64),
		MarriagesByClient:  make(map[int64]int64),
	}
}

// SurvivalRecord is one output row of the survival dataset: the terminal
// closed contract of a customer in the observation year, its covariates, the
// time-to-event measurement and the censoring indicator.
type SurvivalRecord struct {
	ClientID        int64
	AppID           int64
	ApplicationDate time.Time
	CloseDate       time.Time
	ContractPeriod  int
	PaidAmount      decimal.Decimal
	InitialAmount   decimal.Decimal

	ExpectedInterest decimal.Decimal
	RiskClass        string
	ServedDays       int
	FicoScore        int
	PaidCount        int
	ApplicationCount int
	DelinquencyCount int
	MaxDelinquency   int

	Age            int
	Gender         string
	SalaryFlag     float64
	Vehicles       int64
	CollectionCnt  int64
	Dependents     int64
	BeenMarried    int
	CollectionsSum decimal.Decimal
	MobileOperator string
	Region         string

	// Tenure is whole days from contract close to the next application by the
	// same customer, or to the global observation cutoff when censored.
	Tenure int
	// Event is true when a later application exists (the "death" was
	// observed); false means the customer is right-censored.
	Event bool
}
