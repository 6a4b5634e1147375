package survival

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func datePtr(y int, m time.Month, d int) *time.Time {
	t := date(y, m, d)
	return &t
}

func testBuilder() *Builder {
	return NewBuilder(BuilderConfig{ObservationYear: 2021, ClosedStage: 6})
}

func closedApp(appID, clientID int64, apDate time.Time, closeDate *time.Time) ApplicationRecord {
	return ApplicationRecord{
		AppID:           appID,
		ClientID:        clientID,
		ApplicationDate: apDate,
		Stage:           6,
		CloseDate:       closeDate,
	}
}

// cutoffApp is an open application from an unrelated customer, used to pin
// the global observation cutoff past the closes under test. Its own customer
// never qualifies (not closed).
func cutoffApp(apDate time.Time) ApplicationRecord {
	return ApplicationRecord{AppID: 9999, ClientID: 9999, ApplicationDate: apDate, Stage: 1}
}

func TestTimeToEvent_ObservedBetweenApplications(t *testing.T) {
	// Applications 2021-01-01 (closes 2021-06-01) and 2021-09-01: the first
	// application's event is observed, 92 days from close to the return.
	group := []ApplicationRecord{
		closedApp(1, 100, date(2021, 1, 1), datePtr(2021, 6, 1)),
		closedApp(2, 100, date(2021, 9, 1), datePtr(2022, 1, 1)),
	}

	event, tenure, ok := timeToEvent(group, 0, date(2021, 9, 1))
	require.True(t, ok)
	assert.True(t, event)
	assert.Equal(t, 92, tenure)

	// The second application is the in-year terminal, but it closed after the
	// observation cutoff: negative tenure, so the customer yields no row.
	got := testBuilder().Build(group, NewAggregates())
	assert.Empty(t, got)
}

func TestTimeToEvent_OpenContractHasNoMeasurement(t *testing.T) {
	group := []ApplicationRecord{
		closedApp(1, 100, date(2021, 1, 1), nil),
	}

	_, _, ok := timeToEvent(group, 0, date(2021, 12, 1))
	assert.False(t, ok)
}

func TestBuild_EventAcrossYearBoundary(t *testing.T) {
	// Terminal 2021 application closed 2021-06-01; the customer returns on
	// 2022-02-01. Later applications outside the observation year still count
	// as the event.
	apps := []ApplicationRecord{
		closedApp(1, 100, date(2021, 2, 1), datePtr(2021, 6, 1)),
		{AppID: 2, ClientID: 100, ApplicationDate: date(2022, 2, 1), Stage: 1},
	}

	got := testBuilder().Build(apps, NewAggregates())
	require.Len(t, got, 1)
	assert.True(t, got[0].Event)
	assert.Equal(t, int64(1), got[0].AppID)
	assert.Equal(t, 245, got[0].Tenure)
}

func TestBuild_TenureWholeDays(t *testing.T) {
	cases := []struct {
		name  string
		close time.Time
		next  time.Time
		want  int
	}{
		{"jun to sep", date(2021, 6, 1), date(2021, 9, 1), 92},
		{"mar to dec", date(2021, 3, 1), date(2021, 12, 1), 275},
		{"same day", date(2021, 6, 1), date(2021, 6, 1), 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, wholeDays(tc.close, tc.next))
		})
	}
}

func TestBuild_CensoredAgainstGlobalCutoff(t *testing.T) {
	// Customer 100 has a single application; the global max ap_date comes
	// from another customer's 2021-12-01 application.
	apps := []ApplicationRecord{
		closedApp(1, 100, date(2021, 1, 15), datePtr(2021, 3, 1)),
		{AppID: 2, ClientID: 200, ApplicationDate: date(2021, 12, 1), Stage: 1},
	}

	got := testBuilder().Build(apps, NewAggregates())
	require.Len(t, got, 1)
	rec := got[0]
	assert.False(t, rec.Event)
	assert.Equal(t, 275, rec.Tenure)
	assert.Equal(t, int64(100), rec.ClientID)
}

func TestBuild_NotClosedStageExcluded(t *testing.T) {
	app := closedApp(1, 100, date(2021, 5, 1), datePtr(2021, 8, 1))
	app.Stage = 3

	got := testBuilder().Build([]ApplicationRecord{app}, NewAggregates())
	assert.Empty(t, got)
}

func TestBuild_MissingCloseDateExcluded(t *testing.T) {
	app := closedApp(1, 100, date(2021, 5, 1), nil)

	got := testBuilder().Build([]ApplicationRecord{app}, NewAggregates())
	assert.Empty(t, got)
}

func TestBuild_NegativeTenureExcluded(t *testing.T) {
	// Contract closes after the censoring horizon; the row is dropped, not
	// clamped to zero.
	apps := []ApplicationRecord{
		closedApp(1, 100, date(2021, 1, 15), datePtr(2021, 12, 20)),
		{AppID: 2, ClientID: 200, ApplicationDate: date(2021, 12, 1), Stage: 1},
	}

	got := testBuilder().Build(apps, NewAggregates())
	assert.Empty(t, got)
}

func TestBuild_TerminalIsLatestInObservationYear(t *testing.T) {
	// Three applications in-year; only the most recent one is considered,
	// even though an earlier one also qualifies.
	apps := []ApplicationRecord{
		closedApp(1, 100, date(2021, 1, 10), datePtr(2021, 2, 10)),
		closedApp(2, 100, date(2021, 4, 10), datePtr(2021, 5, 10)),
		closedApp(3, 100, date(2021, 8, 10), datePtr(2021, 9, 10)),
		cutoffApp(date(2021, 12, 31)),
	}

	got := testBuilder().Build(apps, NewAggregates())
	require.Len(t, got, 1)
	assert.Equal(t, int64(3), got[0].AppID)
	assert.False(t, got[0].Event)
}

func TestBuild_ApDateTieBrokenByAppID(t *testing.T) {
	// Two same-day applications: the higher app id is terminal, the lower one
	// is its predecessor.
	apps := []ApplicationRecord{
		closedApp(7, 100, date(2021, 6, 1), datePtr(2021, 7, 1)),
		closedApp(3, 100, date(2021, 6, 1), datePtr(2021, 6, 15)),
		cutoffApp(date(2021, 12, 31)),
	}

	got := testBuilder().Build(apps, NewAggregates())
	require.Len(t, got, 1)
	assert.Equal(t, int64(7), got[0].AppID)
}

func TestBuild_AggregateCoalescing(t *testing.T) {
	app := closedApp(1, 100, date(2021, 5, 1), datePtr(2021, 8, 1))
	app.BirthDate = datePtr(1990, 6, 15)
	app.Gender = "F"
	app.Region = "Yerevan"

	t.Run("missing aggregates default to zero", func(t *testing.T) {
		got := testBuilder().Build([]ApplicationRecord{app, cutoffApp(date(2021, 12, 31))}, NewAggregates())
		require.Len(t, got, 1)
		rec := got[0]
		assert.Zero(t, rec.Vehicles)
		assert.Zero(t, rec.CollectionCnt)
		assert.Zero(t, rec.Dependents)
		assert.Zero(t, rec.BeenMarried)
		assert.True(t, rec.CollectionsSum.IsZero())
	})

	t.Run("present aggregates carried through", func(t *testing.T) {
		agg := NewAggregates()
		agg.VehiclesByApp[1] = 2
		agg.CollectionsByApp[1] = CollectionStats{Count: 3, Sum: decimal.NewFromInt(4500)}
		agg.DependentsByClient[100] = 2
		agg.MarriagesByClient[100] = 2

		got := testBuilder().Build([]ApplicationRecord{app, cutoffApp(date(2021, 12, 31))}, agg)
		require.Len(t, got, 1)
		rec := got[0]
		assert.Equal(t, int64(2), rec.Vehicles)
		assert.Equal(t, int64(3), rec.CollectionCnt)
		assert.True(t, decimal.NewFromInt(4500).Equal(rec.CollectionsSum))
		assert.Equal(t, int64(2), rec.Dependents)
		assert.Equal(t, 1, rec.BeenMarried, "marriage is presence, not count")
	})
}

func TestBuild_AgeAndServedDays(t *testing.T) {
	app := closedApp(1, 100, date(2021, 6, 1), datePtr(2021, 9, 1))
	app.BirthDate = datePtr(1990, 6, 15)

	got := testBuilder().Build([]ApplicationRecord{app, cutoffApp(date(2021, 12, 31))}, NewAggregates())
	require.Len(t, got, 1)
	// Birthday not yet reached at application date.
	assert.Equal(t, 30, got[0].Age)
	assert.Equal(t, 92, got[0].ServedDays)
}

func TestBuild_DeterministicOrderAcrossRuns(t *testing.T) {
	apps := []ApplicationRecord{
		closedApp(30, 300, date(2021, 3, 1), datePtr(2021, 4, 1)),
		closedApp(10, 100, date(2021, 5, 1), datePtr(2021, 6, 1)),
		closedApp(20, 200, date(2021, 7, 1), datePtr(2021, 8, 1)),
		cutoffApp(date(2021, 12, 31)),
	}

	b := testBuilder()
	first := b.Build(apps, NewAggregates())
	require.Len(t, first, 3)
	assert.Equal(t, int64(10), first[0].AppID)
	assert.Equal(t, int64(20), first[1].AppID)
	assert.Equal(t, int64(30), first[2].AppID)

	for i := 0; i < 5; i++ {
		again := b.Build(apps, NewAggregates())
		assert.Equal(t, first, again)
	}
}

func TestBuild_OnePerCustomer(t *testing.T) {
	apps := []ApplicationRecord{
		closedApp(1, 100, date(2021, 1, 10), datePtr(2021, 2, 10)),
		closedApp(2, 100, date(2021, 4, 10), datePtr(2021, 5, 10)),
		closedApp(3, 200, date(2021, 6, 10), datePtr(2021, 7, 10)),
		cutoffApp(date(2021, 12, 31)),
	}

	got := testBuilder().Build(apps, NewAggregates())
	require.Len(t, got, 2)
	assert.Equal(t, int64(100), got[0].ClientID)
	assert.Equal(t, int64(200), got[1].ClientID)
}
