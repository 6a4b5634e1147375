package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ConsumerMain is the append-only loan application log.
type ConsumerMain struct {
	AppID         int64           `gorm:"column:app_id;primaryKey"`
	Cliid         int64           `gorm:"column:cliid;index"`
	ApDate        time.Time       `gorm:"column:ap_date;index"`
	ExpInt        decimal.Decimal `gorm:"column:exp_int;type:numeric(14,2)"`
	Status        string          `gorm:"column:status;size:32"`
	AplStage      int             `gorm:"column:apl_stage"`
	OriginDetails string          `gorm:"column:origin_details;size:255"`
	NpaidCount    int             `gorm:"column:npaidcount"`
	NaplCount     int             `gorm:"column:naplcount"`
	NDpds         int             `gorm:"column:n_dpds"`
	MaxDpd        int             `gorm:"column:max_dpd"`
	DstiIncome    float64         `gorm:"column:dsti_income"`
	Osm           float64         `gorm:"column:osm"`
	NSalary       float64         `gorm:"column:n_salary"`
}

func (ConsumerMain) TableName() string { return "consumer_main" }

// ConsumerHC is the contract record, one per funded application.
type ConsumerHC struct {
	LoanID         int64           `gorm:"column:loan_id;primaryKey"`
	AppID          int64           `gorm:"column:app_id;index"`
	IssueDate      *time.Time      `gorm:"column:issue_date"`
	CloseDate      *time.Time      `gorm:"column:close_date"`
	RiskClass      string          `gorm:"column:riskclass;size:16"`
	FicoScore      int             `gorm:"column:ficoscore"`
	ContractPeriod int             `gorm:"column:contractperiod"`
	PaidAmount     decimal.Decimal `gorm:"column:paidamount;type:numeric(14,2)"`
	InitialAmount  decimal.Decimal `gorm:"column:initialamount;type:numeric(14,2)"`
}

func (ConsumerHC) TableName() string { return "consumer_hc" }

// ConsumerClient is the customer reference table.
type ConsumerClient struct {
	Cliid          int64      `gorm:"column:cliid;primaryKey"`
	Gender         string     `gorm:"column:gender;size:8"`
	BirthDate      *time.Time `gorm:"column:birth_date"`
	MarzID         int        `gorm:"column:marz_id"`
	Phone          string     `gorm:"column:phone;size:32"`
	MobileOperator string     `gorm:"column:mobile_operator;size:32"`
	Email          string     `gorm:"column:email;size:128"`
}

func (ConsumerClient) TableName() string { return "consumer_client" }

// Marz is the region reference table.
type Marz struct {
	MarzID int    `gorm:"column:marz_id;primaryKey"`
	Marz   string `gorm:"column:marz;size:64"`
}

func (Marz) TableName() string { return "marz" }

// EcengVehicleInfo records vehicle registrations attached to an application.
type EcengVehicleInfo struct {
	ID           int64  `gorm:"column:id;primaryKey;autoIncrement"`
	AppID        int64  `gorm:"column:app_id;index"`
	VehicleMake  string `gorm:"column:vehicle_make;size:64"`
	VehicleModel string `gorm:"column:vehicle_model;size:64"`
	IssueYear    int    `gorm:"column:issue_year"`
}

func (EcengVehicleInfo) TableName() string { return "eceng_vehicle_info" }

// EcengCesData records collections/recovery cases attached to an application.
type EcengCesData struct {
	ID         int64           `gorm:"column:id;primaryKey;autoIncrement"`
	AppID      int64           `gorm:"column:app_id;index"`
	RecoverSum decimal.Decimal `gorm:"column:recoversum;type:numeric(14,2)"`
}

func (EcengCesData) TableName() string { return "eceng_ces_data" }

// ConsumerFamilyMember records one family relation of a customer. The
// relation code distinguishes spouses from dependents.
type ConsumerFamilyMember struct {
	ID       int64 `gorm:"column:id;primaryKey;autoIncrement"`
	Cliid    int64 `gorm:"column:cliid;index"`
	Relation int   `gorm:"column:relation"`
}

func (ConsumerFamilyMember) TableName() string { return "consumer_family_members" }
