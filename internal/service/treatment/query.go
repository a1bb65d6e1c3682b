package treatment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jwalitptl/capd-api/internal/model"
	"github.com/jwalitptl/capd-api/internal/repository"
	"github.com/jwalitptl/capd-api/internal/service"
)

const (
	historyDateLayout = "01/02/2006"
	historyTimeLayout = "03:04 PM"
)

// GetActiveFillSession returns the patient's open fill session, or nil.
func (s *Service) GetActiveFillSession(ctx context.Context, patientID int64) (*model.ActiveFillSession, error) {
	active, err := s.store.FillSessions().ActiveByPatient(ctx, patientID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, service.StoreError(fmt.Errorf("failed to get active fill session: %w", err), "fill session")
	}
	return active, nil
}

// TodayProgress counts today's completed exchanges against the prescribed
// daily total.
func (s *Service) TodayProgress(ctx context.Context, userID int64) (*Progress, error) {
	progress := &Progress{}

	patient, err := s.store.Patients().GetByUserID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return progress, nil
	}
	if err != nil {
		return nil, service.StoreError(fmt.Errorf("failed to get patient: %w", err), "patient")
	}

	progress.Completed, err = s.store.Treatments().CountCompleted(ctx, patient.ID, model.DayOf(s.now()))
	if err != nil {
		return nil, service.StoreError(fmt.Errorf("failed to count treatments: %w", err), "treatment")
	}

	prescription, err := s.store.Prescriptions().LatestByPatient(ctx, patient.ID)
	switch {
	case err == nil:
		progress.Total = prescription.DailyExchanges()
	case !errors.Is(err, repository.ErrNotFound):
		return nil, service.StoreError(fmt.Errorf("failed to get prescription: %w", err), "prescription")
	}
	return progress, nil
}

// History groups the user's treatments by day, newest day first. Sessions
// within a day keep chronological order and are numbered from 1.
func (s *Service) History(ctx context.Context, userID int64) ([]*HistoryDay, error) {
	patient, err := s.store.Patients().GetByUserID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return []*HistoryDay{}, nil
	}
	if err != nil {
		return nil, service.StoreError(fmt.Errorf("failed to get patient: %w", err), "patient")
	}

	details, err := s.store.Treatments().ListDetails(ctx, model.TreatmentFilter{PatientID: patient.ID})
	if err != nil {
		return nil, service.StoreError(fmt.Errorf("failed to list treatments: %w", err), "treatment")
	}

	var days []*HistoryDay
	byDate := map[string]*HistoryDay{}
	for _, d := range details {
		date := d.TreatmentDate.Format(historyDateLayout)
		day, ok := byDate[date]
		if !ok {
			day = &HistoryDay{Date: date, Sessions: []*HistorySession{}}
			byDate[date] = day
			days = append(days, day)
		}

		balance := d.FluidBalance()
		day.Sessions = append(day.Sessions, &HistorySession{
			No:               len(day.Sessions) + 1,
			TreatmentID:      d.TreatmentID,
			Balance:          balance.Float(),
			SerialNo:         d.BagSerialNumber,
			TimeStartedIn:    clockTime(d.InStarted),
			TimeCompletedIn:  clockTime(d.InFinished),
			VolumeIn:         d.VolumeIn,
			Dialysate:        d.Dialysate,
			TimeStartedOut:   clockTime(d.DrainStarted),
			TimeCompletedOut: clockTime(d.DrainFinished),
			VolumeOut:        d.VolumeOut,
			Color:            d.Color,
			Notes:            d.Notes,
			Status:           d.Status,
			Remarks:          balance.Remark(),
		})
		day.TotalBalance = service.Round2(day.TotalBalance + balance.Float())
	}

	// details are oldest first
	history := make([]*HistoryDay, 0, len(days))
	for i := len(days) - 1; i >= 0; i-- {
		history = append(history, days[i])
	}
	return history, nil
}

func clockTime(t *time.Time) *string {
	if t == nil || t.IsZero() {
		return nil
	}
	s := t.Format(historyTimeLayout)
	return &s
}
