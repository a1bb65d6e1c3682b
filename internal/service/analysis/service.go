// Package analysis derives fluid-balance and drain-color reports from completed
// treatments.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jwalitptl/capd-api/internal/model"
	"github.com/jwalitptl/capd-api/internal/repository"
	"github.com/jwalitptl/capd-api/internal/service"
)

const (
	balanceAnalysisLimit      = 10
	fluidBalanceAnalysisLimit = 30
	monthlyReferenceLimit     = 10

	BalanceFormula = "Balance = VolumeOut - VolumeIn"
)

type AnalysisService interface {
	BalanceAnalysis(ctx context.Context, patientID int64) ([]*BalanceRow, error)
	FluidBalanceAnalysis(ctx context.Context, userID int64) (*FluidBalanceReport, error)
	MonthlyBagStats(ctx context.Context, userID int64) (*BagStats, error)
	MonthlyBalanceStats(ctx context.Context, userID int64) (*MonthlyBalanceReport, error)
}

// BalanceRow is one treatment with its recomputed balance.
type BalanceRow struct {
	TreatmentID    int64     `json:"treatment_id"`
	TreatmentDate  time.Time `json:"treatment_date"`
	VolumeIn       *float64  `json:"volume_in"`
	VolumeOut      *float64  `json:"volume_out"`
	StoredBalance  float64   `json:"stored_balance"`
	Balance        float64   `json:"balance"`
	Interpretation string    `json:"interpretation"`
	Status         string    `json:"status"`
}

type FluidBalanceRow struct {
	BalanceRow
	TreatmentStatus model.TreatmentStatus `json:"treatment_status"`
	Color           string                `json:"color"`
	Notes           string                `json:"notes"`
	Calculation     string                `json:"calculation"`
	ColorAnalysis   ColorRisk             `json:"color_analysis"`
}

type MonthAnalysis struct {
	TotalTreatments          int                 `json:"total_treatments"`
	FluidRetentionCount      int                 `json:"fluid_retention_count"`
	FluidRetentionPercentage int                 `json:"fluid_retention_percentage"`
	InfectionRiskCount       int                 `json:"infection_risk_count"`
	InfectionRiskPercentage  int                 `json:"infection_risk_percentage"`
	ColorCounts              map[ColorBucket]int `json:"color_counts"`
}

type FluidBalanceReport struct {
	Treatments          []*FluidBalanceRow `json:"treatments"`
	CurrentMonth        MonthAnalysis      `json:"current_month_analysis"`
	Formula             string             `json:"formula"`
	Interpretation      map[string]string  `json:"interpretation"`
	ColorInterpretation []ColorRisk        `json:"color_interpretation"`
}

type MonthlyBalanceReport struct {
	Stats      BalanceStats  `json:"monthly_stats"`
	Treatments []*BalanceRow `json:"treatments"`
}

type Service struct {
	store repository.Store
	now   func() time.Time
}

func NewService(store repository.Store, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{store: store, now: now}
}

// BalanceAnalysis lists the last treatments that carry both volumes, newest first.
func (s *Service) BalanceAnalysis(ctx context.Context, patientID int64) ([]*BalanceRow, error) {
	details, err := s.store.Treatments().ListDetails(ctx, model.TreatmentFilter{
		PatientID:      patientID,
		RequireVolumes: true,
		Newest:         true,
		Limit:          balanceAnalysisLimit,
	})
	if err != nil {
		return nil, service.StoreError(fmt.Errorf("failed to list treatments: %w", err), "treatment")
	}

	rows := make([]*BalanceRow, 0, len(details))
	for _, d := range details {
		rows = append(rows, balanceRow(d))
	}
	return rows, nil
}

// FluidBalanceAnalysis combines balance and color risk for the user's recent
// treatments. A user without a patient record yields an empty report.
func (s *Service) FluidBalanceAnalysis(ctx context.Context, userID int64) (*FluidBalanceReport, error) {
	report := &FluidBalanceReport{
		Treatments:          []*FluidBalanceRow{},
		CurrentMonth:        MonthAnalysis{ColorCounts: emptyColorCounts()},
		Formula:             BalanceFormula,
		Interpretation:      model.BalanceLegend,
		ColorInterpretation: ColorTable(),
	}

	patient, err := s.patientForUser(ctx, userID)
	if err != nil || patient == nil {
		return report, err
	}

	details, err := s.store.Treatments().ListDetails(ctx, model.TreatmentFilter{
		PatientID:      patient.ID,
		RequireVolumes: true,
		Newest:         true,
		Limit:          fluidBalanceAnalysisLimit,
	})
	if err != nil {
		return nil, service.StoreError(fmt.Errorf("failed to list treatments: %w", err), "treatment")
	}

	month := model.MonthOf(s.now())
	var current []*FluidBalanceRow
	for _, d := range details {
		if d.TreatmentDate.IsZero() {
			continue
		}
		row := &FluidBalanceRow{
			BalanceRow:      *balanceRow(d),
			TreatmentStatus: d.Status,
			Color:           d.ColorText(),
			ColorAnalysis:   ClassifyColor(d.ColorText()),
			Calculation: fmt.Sprintf("%s - %s = %s",
				formatVolume(*d.VolumeOut), formatVolume(*d.VolumeIn), formatVolume(d.FluidBalance().Float())),
		}
		if d.Notes != nil {
			row.Notes = *d.Notes
		}
		report.Treatments = append(report.Treatments, row)
		if sameMonth(d.TreatmentDate, month) {
			current = append(current, row)
		}
	}

	report.CurrentMonth = summarizeMonth(current)
	return report, nil
}

// MonthlyBagStats compares the latest prescription's bag schedule with the
// bags used by completed treatments this month.
func (s *Service) MonthlyBagStats(ctx context.Context, userID int64) (*BagStats, error) {
	prescribed := model.BagSchedule{}.Prescribed()
	prescription, err := s.store.Prescriptions().LatestByUser(ctx, userID)
	switch {
	case err == nil:
		prescribed = prescription.Schedule.Prescribed()
	case !errors.Is(err, repository.ErrNotFound):
		return nil, service.StoreError(fmt.Errorf("failed to get prescription: %w", err), "prescription")
	}

	raw, err := s.store.Treatments().TakenByDialysate(ctx, userID, model.MonthOf(s.now()))
	if err != nil {
		return nil, service.StoreError(fmt.Errorf("failed to count bags: %w", err), "treatment")
	}

	taken := make(map[model.Dialysate]int, len(raw))
	for value, n := range raw {
		if d, ok := model.ParseDialysate(value); ok {
			taken[d] += n
		}
	}

	stats := TallyBags(prescribed, taken)
	return &stats, nil
}

// MonthlyBalanceStats summarizes the sign of every completed treatment this
// calendar month.
func (s *Service) MonthlyBalanceStats(ctx context.Context, userID int64) (*MonthlyBalanceReport, error) {
	report := &MonthlyBalanceReport{Treatments: []*BalanceRow{}}

	patient, err := s.patientForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if patient == nil {
		report.Stats = SummarizeBalances(nil)
		return report, nil
	}

	month := model.MonthOf(s.now())
	details, err := s.store.Treatments().ListDetails(ctx, model.TreatmentFilter{
		PatientID: patient.ID,
		Status:    model.TreatmentCompleted,
		Dates:     &month,
		Newest:    true,
	})
	if err != nil {
		return nil, service.StoreError(fmt.Errorf("failed to list treatments: %w", err), "treatment")
	}

	balances := make([]model.FluidBalance, 0, len(details))
	for i, d := range details {
		balances = append(balances, d.FluidBalance())
		if i < monthlyReferenceLimit {
			report.Treatments = append(report.Treatments, balanceRow(d))
		}
	}
	report.Stats = SummarizeBalances(balances)
	return report, nil
}

// patientForUser returns nil without error when the user has no patient record.
func (s *Service) patientForUser(ctx context.Context, userID int64) (*model.Patient, error) {
	patient, err := s.store.Patients().GetByUserID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, service.StoreError(fmt.Errorf("failed to get patient: %w", err), "patient")
	}
	return patient, nil
}

func balanceRow(d *model.TreatmentDetail) *BalanceRow {
	b := d.FluidBalance()
	return &BalanceRow{
		TreatmentID:    d.TreatmentID,
		TreatmentDate:  d.TreatmentDate,
		VolumeIn:       d.VolumeIn,
		VolumeOut:      d.VolumeOut,
		StoredBalance:  d.Balance,
		Balance:        b.Float(),
		Interpretation: b.Interpretation(),
		Status:         b.Status(),
	}
}

func summarizeMonth(rows []*FluidBalanceRow) MonthAnalysis {
	m := MonthAnalysis{TotalTreatments: len(rows), ColorCounts: emptyColorCounts()}
	for _, r := range rows {
		if model.FluidBalance(r.Balance).Retention() {
			m.FluidRetentionCount++
		}
		if r.ColorAnalysis.HasInfectionRisk {
			m.InfectionRiskCount++
		}
		m.ColorCounts[r.ColorAnalysis.Color]++
	}
	m.FluidRetentionPercentage = percent(m.FluidRetentionCount, m.TotalTreatments)
	m.InfectionRiskPercentage = percent(m.InfectionRiskCount, m.TotalTreatments)
	return m
}

func emptyColorCounts() map[ColorBucket]int {
	counts := make(map[ColorBucket]int, len(ColorBuckets()))
	for _, b := range ColorBuckets() {
		counts[b] = 0
	}
	return counts
}

func sameMonth(t time.Time, month model.DateRange) bool {
	return t.Year() == month.From.Year() && t.Month() == month.From.Month()
}

func formatVolume(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
