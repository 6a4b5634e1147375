package survival

import (
	"sort"
	"time"
)

// BuilderConfig carries the cohort parameters of a dataset build. Values come
// from configuration; the builder itself has no defaults.
type BuilderConfig struct {
	// ObservationYear selects the cohort: the terminal application of each
	// customer must fall inside this calendar year.
	ObservationYear int
	// ClosedStage is the apl_stage value marking a fully closed application.
	ClosedStage int
}

// Builder derives the survival dataset from the joined application log.
// It is pure: no I/O, no clock, deterministic for a given input.
type Builder struct {
	cfg BuilderConfig
}

func NewBuilder(cfg BuilderConfig) *Builder {
	return &Builder{cfg: cfg}
}

// Build runs the full derivation: per-customer temporal ordering, event and
// tenure computation, covariate assembly with zero-coalescing, and terminal
// selection. The result is sorted by AppID ascending so that repeated builds
// over unchanged sources produce byte-identical output.
func (b *Builder) Build(apps []ApplicationRecord, agg Aggregates) []SurvivalRecord {
	byClient := make(map[int64][]ApplicationRecord)
	var cutoff time.Time
	for _, a := range apps {
		byClient[a.ClientID] = append(byClient[a.ClientID], a)
		if a.ApplicationDate.After(cutoff) {
			cutoff = a.ApplicationDate
		}
	}

	out := make([]SurvivalRecord, 0, len(byClient))
	for _, group := range byClient {
		sortChronological(group)
		rec, ok := b.terminalRecord(group, agg, cutoff)
		if ok {
			out = append(out, rec)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].AppID < out[j].AppID })
	return out
}

// sortChronological orders one customer's applications by application date,
// breaking date ties by app id so the pairwise scan is reproducible.
func sortChronological(group []ApplicationRecord) {
	sort.Slice(group, func(i, j int) bool {
		if group[i].ApplicationDate.Equal(group[j].ApplicationDate) {
			return group[i].AppID < group[j].AppID
		}
		return group[i].ApplicationDate.Before(group[j].ApplicationDate)
	})
}

// terminalRecord picks the customer's most recent application within the
// observation year and, when it qualifies (fully closed, non-negative tenure),
// assembles its output row. The group must already be in chronological order.
func (b *Builder) terminalRecord(group []ApplicationRecord, agg Aggregates, cutoff time.Time) (SurvivalRecord, bool) {
	term := -1
	for i, a := range group {
		if a.ApplicationDate.Year() == b.cfg.ObservationYear {
			term = i
		}
	}
	if term < 0 {
		return SurvivalRecord{}, false
	}

	app := group[term]
	if app.Stage != b.cfg.ClosedStage {
		return SurvivalRecord{}, false
	}
	event, tenure, ok := timeToEvent(group, term, cutoff)
	if !ok || tenure < 0 {
		return SurvivalRecord{}, false
	}

	return b.assemble(app, agg, tenure, event), true
}

// timeToEvent derives the censoring indicator and tenure for the application
// at position i of a chronologically ordered group. An application later in
// the ordering means the customer came back, so the event was observed;
// otherwise tenure runs to the global maximum application date. ok is false
// when the contract never closed, so no measurement exists.
func timeToEvent(group []ApplicationRecord, i int, cutoff time.Time) (event bool, tenure int, ok bool) {
	app := group[i]
	if app.CloseDate == nil {
		return false, 0, false
	}
	if i < len(group)-1 {
		return true, wholeDays(*app.CloseDate, group[i+1].ApplicationDate), true
	}
	return false, wholeDays(*app.CloseDate, cutoff), true
}

// assemble builds the output row for a qualified terminal application,
// applying the zero-coalescing rules for the auxiliary aggregates.
func (b *Builder) assemble(app ApplicationRecord, agg Aggregates, tenure int, event bool) SurvivalRecord {
	rec := SurvivalRecord{
		ClientID:        app.ClientID,
		AppID:           app.AppID,
		ApplicationDate: app.ApplicationDate,
		CloseDate:       *app.CloseDate,
		ContractPeriod:  app.ContractPeriod,
		PaidAmount:      app.PaidAmount,
		InitialAmount:   app.InitialAmount,

		ExpectedInterest: app.ExpectedInterest,
		RiskClass:        app.RiskClass,
		ServedDays:       wholeDays(app.ApplicationDate, *app.CloseDate),
		FicoScore:        app.FicoScore,
		PaidCount:        app.PaidCount,
		ApplicationCount: app.ApplicationCount,
		DelinquencyCount: app.DelinquencyCount,
		MaxDelinquency:   app.MaxDelinquency,

		Gender:         app.Gender,
		SalaryFlag:     app.SalaryFlag,
		MobileOperator: app.MobileOperator,
		Region:         app.Region,

		Tenure: tenure,
		Event:  event,
	}

	if app.BirthDate != nil {
		rec.Age = floorYears(*app.BirthDate, app.ApplicationDate)
	}
	rec.Vehicles = agg.VehiclesByApp[app.AppID]
	if cs, ok := agg.CollectionsByApp[app.AppID]; ok {
		rec.CollectionCnt = cs.Count
		rec.CollectionsSum = cs.Sum
	}
	rec.Dependents = agg.DependentsByClient[app.ClientID]
	// Marriage history is presence, not a count.
	if agg.MarriagesByClient[app.ClientID] > 0 {
		rec.BeenMarried = 1
	}
	return rec
}

// wholeDays returns the calendar-day difference to-from, ignoring time of day.
func wholeDays(from, to time.Time) int {
	f := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	t := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
	return int(t.Sub(f) / (24 * time.Hour))
}

// floorYears returns the completed whole years between birth and at.
func floorYears(birth, at time.Time) int {
	years := at.Year() - birth.Year()
	if at.Month() < birth.Month() || (at.Month() == birth.Month() && at.Day() < birth.Day()) {
		years--
	}
	return years
}
