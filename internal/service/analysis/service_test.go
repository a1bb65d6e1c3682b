package analysis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/capd-api/internal/model"
	"github.com/jwalitptl/capd-api/internal/repository/memory"
)

var clock = time.Date(2025, time.March, 15, 10, 0, 0, 0, time.Local)

func ptr[T any](v T) *T { return &v }

func fixedNow() time.Time { return clock }

type exchange struct {
	dialysate string
	volumeIn  float64
	volumeOut float64
	color     string
	status    model.TreatmentStatus
	date      time.Time
}

func seedExchange(t *testing.T, store *memory.Store, patientID int64, e exchange) int64 {
	t.Helper()
	ctx := context.Background()

	fill := &model.FillSession{PatientID: &patientID, Dialysate: &e.dialysate, VolumeIn: &e.volumeIn, InStarted: &e.date, InFinished: &e.date}
	require.NoError(t, store.FillSessions().Create(ctx, fill))
	drain := &model.DrainSession{PatientID: patientID, VolumeOut: &e.volumeOut, Color: e.color}
	require.NoError(t, store.DrainSessions().Create(ctx, drain))

	status := e.status
	if status == "" {
		status = model.TreatmentCompleted
	}
	tr := &model.Treatment{
		PatientID:     patientID,
		InID:          &fill.ID,
		OutID:         &drain.ID,
		Status:        status,
		Balance:       model.NewFluidBalance(e.volumeIn, e.volumeOut).Float(),
		TreatmentDate: e.date,
	}
	require.NoError(t, store.Treatments().Create(ctx, tr))
	return tr.ID
}

func newFixture(t *testing.T) (*memory.Store, *Service) {
	t.Helper()
	store := memory.NewStore()
	store.AddPatient(&model.Patient{ID: 7, UserID: 70})
	return store, NewService(store, fixedNow)
}

func TestMonthlyBagStats(t *testing.T) {
	store, svc := newFixture(t)
	store.AddPrescription(&model.Prescription{
		PatientID:         7,
		BagCountsRaw:      ptr("2,1,1"),
		BagPercentagesRaw: ptr("1.5,2.5,4.25"),
		CreatedAt:         clock.AddDate(0, -1, 0),
	})
	seedExchange(t, store, 7, exchange{dialysate: "2.5", volumeIn: 2000, volumeOut: 2100, color: "clear", date: clock})
	// last month and in-progress rows do not count
	seedExchange(t, store, 7, exchange{dialysate: "1.5", volumeIn: 2000, volumeOut: 2100, date: clock.AddDate(0, -1, 0)})
	seedExchange(t, store, 7, exchange{dialysate: "4.25", volumeIn: 2000, volumeOut: 2100, status: model.TreatmentInProgress, date: clock})

	stats, err := svc.MonthlyBagStats(context.Background(), 70)
	require.NoError(t, err)

	assert.Equal(t, BagCount{Prescribed: 2, Taken: 0, Remaining: 2}, stats.Details["1.5"])
	assert.Equal(t, BagCount{Prescribed: 1, Taken: 1, Remaining: 0}, stats.Details["2.5"])
	assert.Equal(t, BagCount{Prescribed: 1, Taken: 0, Remaining: 1}, stats.Details["4.25"])
	assert.Equal(t, BagCount{Prescribed: 4, Taken: 1, Remaining: 3}, stats.Total)
}

func TestMonthlyBagStats_NormalizesStoredDialysate(t *testing.T) {
	store, svc := newFixture(t)
	store.AddPrescription(&model.Prescription{
		PatientID:         7,
		BagCountsRaw:      ptr(`"1,1"`),
		BagPercentagesRaw: ptr(`"1.5%,2.5%"`),
	})
	seedExchange(t, store, 7, exchange{dialysate: "2.50", volumeIn: 2000, volumeOut: 2000, date: clock})
	seedExchange(t, store, 7, exchange{dialysate: "2.5%", volumeIn: 2000, volumeOut: 2000, date: clock})
	seedExchange(t, store, 7, exchange{dialysate: "7.5", volumeIn: 2000, volumeOut: 2000, date: clock})

	stats, err := svc.MonthlyBagStats(context.Background(), 70)
	require.NoError(t, err)

	assert.Equal(t, BagCount{Prescribed: 1, Taken: 2, Remaining: 0}, stats.Details["2.5"])
	assert.Equal(t, 2, stats.Total.Taken)
}

func TestMonthlyBagStats_NoPrescription(t *testing.T) {
	_, svc := newFixture(t)

	stats, err := svc.MonthlyBagStats(context.Background(), 70)
	require.NoError(t, err)
	assert.Equal(t, BagCount{}, stats.Total)
	assert.Len(t, stats.Details, 3)
}

func TestBalanceAnalysis(t *testing.T) {
	store, svc := newFixture(t)
	older := seedExchange(t, store, 7, exchange{dialysate: "2.5", volumeIn: 2050, volumeOut: 2300, date: clock.AddDate(0, 0, -1)})
	newer := seedExchange(t, store, 7, exchange{dialysate: "1.5", volumeIn: 2000, volumeOut: 1800, date: clock})

	rows, err := svc.BalanceAnalysis(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, newer, rows[0].TreatmentID)
	assert.Equal(t, -200.0, rows[0].Balance)
	assert.Equal(t, "Negative balance - Good fluid removal", rows[0].Interpretation)

	assert.Equal(t, older, rows[1].TreatmentID)
	assert.Equal(t, 250.0, rows[1].Balance)
	assert.Equal(t, "Positive balance - Possible fluid retention", rows[1].Interpretation)
	assert.Equal(t, model.BalanceStatusWarning, rows[1].Status)
}

func TestBalanceAnalysis_Limit(t *testing.T) {
	store, svc := newFixture(t)
	for i := 0; i < 12; i++ {
		seedExchange(t, store, 7, exchange{dialysate: "1.5", volumeIn: 2000, volumeOut: 2000, date: clock.AddDate(0, 0, -i)})
	}

	rows, err := svc.BalanceAnalysis(context.Background(), 7)
	require.NoError(t, err)
	assert.Len(t, rows, 10)
}

func TestFluidBalanceAnalysis(t *testing.T) {
	store, svc := newFixture(t)
	seedExchange(t, store, 7, exchange{dialysate: "2.5", volumeIn: 2050, volumeOut: 2300, color: "Hugas Isda", date: clock})
	seedExchange(t, store, 7, exchange{dialysate: "1.5", volumeIn: 2000, volumeOut: 2100, color: "clear", date: clock.AddDate(0, 0, -1)})
	seedExchange(t, store, 7, exchange{dialysate: "1.5", volumeIn: 2000, volumeOut: 1900, color: "yellow", date: clock.AddDate(0, -1, 0)})

	report, err := svc.FluidBalanceAnalysis(context.Background(), 70)
	require.NoError(t, err)
	require.Len(t, report.Treatments, 3)

	first := report.Treatments[0]
	assert.Equal(t, 250.0, first.Balance)
	assert.Equal(t, ColorRed, first.ColorAnalysis.Color)
	assert.Equal(t, 4, first.ColorAnalysis.Severity)
	assert.True(t, first.ColorAnalysis.HasInfectionRisk)
	assert.Equal(t, "2300 - 2050 = 250", first.Calculation)

	month := report.CurrentMonth
	assert.Equal(t, 2, month.TotalTreatments)
	assert.Equal(t, 1, month.FluidRetentionCount)
	assert.Equal(t, 50, month.FluidRetentionPercentage)
	assert.Equal(t, 1, month.InfectionRiskCount)
	assert.Equal(t, 50, month.InfectionRiskPercentage)
	assert.Equal(t, 1, month.ColorCounts[ColorRed])
	assert.Equal(t, 1, month.ColorCounts[ColorClear])
	assert.Equal(t, 0, month.ColorCounts[ColorYellow])

	assert.Equal(t, BalanceFormula, report.Formula)
	assert.Len(t, report.ColorInterpretation, 5)
}

func TestFluidBalanceAnalysis_NoPatient(t *testing.T) {
	_, svc := newFixture(t)

	report, err := svc.FluidBalanceAnalysis(context.Background(), 999)
	require.NoError(t, err)
	assert.Empty(t, report.Treatments)
	assert.Zero(t, report.CurrentMonth.TotalTreatments)
}

func TestMonthlyBalanceStats(t *testing.T) {
	store, svc := newFixture(t)
	seedExchange(t, store, 7, exchange{dialysate: "2.5", volumeIn: 2050, volumeOut: 2300, date: clock})
	seedExchange(t, store, 7, exchange{dialysate: "1.5", volumeIn: 2000, volumeOut: 1800, date: clock})
	seedExchange(t, store, 7, exchange{dialysate: "1.5", volumeIn: 2000, volumeOut: 1900, date: clock})
	seedExchange(t, store, 7, exchange{dialysate: "1.5", volumeIn: 2000, volumeOut: 3000, status: model.TreatmentInProgress, date: clock})

	report, err := svc.MonthlyBalanceStats(context.Background(), 70)
	require.NoError(t, err)

	stats := report.Stats
	assert.Equal(t, 3, stats.TotalTreatments)
	assert.Equal(t, 1, stats.PositiveBalanceCount)
	assert.Equal(t, 2, stats.NegativeBalanceCount)
	assert.Equal(t, -16.67, stats.AverageBalance)
	assert.Equal(t, 66.67, stats.FavorablePercentage)
	assert.True(t, stats.MajorityFavorable)
	assert.Len(t, report.Treatments, 3)
}

func TestMonthlyBalanceStats_NoPatient(t *testing.T) {
	_, svc := newFixture(t)

	report, err := svc.MonthlyBalanceStats(context.Background(), 999)
	require.NoError(t, err)
	assert.Zero(t, report.Stats.TotalTreatments)
	assert.Empty(t, report.Treatments)
}
