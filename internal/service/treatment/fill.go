package treatment

import (
	"context"
	"errors"
	"fmt"

	"github.com/jwalitptl/capd-api/internal/model"
	"github.com/jwalitptl/capd-api/internal/repository"
	"github.com/jwalitptl/capd-api/internal/service"
	apperrors "github.com/jwalitptl/capd-api/pkg/errors"
)

const dialysateMessage = "must be one of 1.5, 2.5 or 4.25"

// StartFillSession opens a fill session and its in-progress treatment.
func (s *Service) StartFillSession(ctx context.Context, req *model.StartFillSessionRequest) (*StartResult, error) {
	fields := map[string]string{}
	if req.PatientID == 0 {
		fields["patient_id"] = "is required"
	}
	dialysate, ok := model.ParseDialysate(req.Dialysate)
	if !ok {
		fields["dialysate"] = dialysateMessage
	}
	if len(fields) > 0 {
		return nil, apperrors.NewValidation("validation failed", fields)
	}

	now := s.now()
	canonical := dialysate.String()
	volumeIn := req.VolumeIn
	fill := &model.FillSession{
		PatientID:       &req.PatientID,
		Dialysate:       &canonical,
		VolumeIn:        &volumeIn,
		Dwell:           req.Dwell,
		InStarted:       &now,
		BagSerialNumber: req.BagSerialNumber,
	}

	var treatment *model.Treatment
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		if err := tx.FillSessions().Create(ctx, fill); err != nil {
			return err
		}

		treatment = &model.Treatment{
			PatientID:       req.PatientID,
			InID:            &fill.ID,
			Status:          model.TreatmentInProgress,
			TreatmentDate:   now,
			BagSerialNumber: req.BagSerialNumber,
			Timestamps:      model.Timestamps{CreatedAt: now, UpdatedAt: now},
		}
		if err := tx.Treatments().Create(ctx, treatment); err != nil {
			return err
		}

		return service.Emit(ctx, tx, model.EventTreatmentStarted, map[string]interface{}{
			"treatment_id": treatment.ID,
			"in_id":        fill.ID,
			"patient_id":   req.PatientID,
			"dialysate":    canonical,
			"volume_in":    volumeIn,
		}, now)
	})
	if err != nil {
		return nil, service.StoreError(fmt.Errorf("failed to start fill session: %w", err), "fill session")
	}

	s.metrics.FillSessionsStarted.Inc()
	s.logger.Info("Fill session started",
		"treatment_id", treatment.ID,
		"in_id", fill.ID,
		"patient_id", req.PatientID,
		"dialysate", canonical)

	return &StartResult{TreatmentID: treatment.ID, InID: fill.ID, NeedsCompletion: true}, nil
}

// CompleteFillSession closes an open fill session with the measured volume. A
// finished session is immutable: a second completion is a conflict.
func (s *Service) CompleteFillSession(ctx context.Context, inID int64, req *model.CompleteFillSessionRequest) (*CompleteResult, error) {
	if req.ActualVolume == nil {
		return nil, apperrors.NewValidation("validation failed", map[string]string{"actual_volume": "is required"})
	}

	now := s.now()
	volume := *req.ActualVolume
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		completed, err := tx.FillSessions().Complete(ctx, inID, now, volume)
		if err != nil {
			return err
		}
		if !completed {
			if _, err := tx.FillSessions().Get(ctx, inID); err != nil {
				return err
			}
			return apperrors.NewConflict("fill session already completed", nil)
		}

		return service.Emit(ctx, tx, model.EventFillSessionCompleted, map[string]interface{}{
			"in_id":        inID,
			"volume_in":    volume,
			"completed_at": now,
		}, now)
	})
	if err != nil {
		return nil, service.StoreError(err, "fill session")
	}

	s.metrics.FillSessionsCompleted.Inc()
	s.logger.Info("Fill session completed", "in_id", inID, "volume_in", volume)

	return &CompleteResult{InID: inID, VolumeIn: volume, CompletedAt: now}, nil
}

// CreateFillSession inserts a fill session as given, without a treatment.
func (s *Service) CreateFillSession(ctx context.Context, req *model.CreateFillSessionRequest) (*model.FillSession, error) {
	fill := &model.FillSession{
		PatientID:       req.PatientID,
		VolumeIn:        req.VolumeIn,
		Dwell:           req.Dwell,
		InStarted:       req.InStarted,
		InFinished:      req.InFinished,
		BagSerialNumber: req.BagSerialNumber,
	}
	if req.Dialysate != nil && *req.Dialysate != "" {
		d, ok := model.ParseDialysate(*req.Dialysate)
		if !ok {
			return nil, apperrors.NewValidation("validation failed", map[string]string{"dialysate": dialysateMessage})
		}
		canonical := d.String()
		fill.Dialysate = &canonical
	}

	if err := s.store.FillSessions().Create(ctx, fill); err != nil {
		return nil, service.StoreError(fmt.Errorf("failed to create fill session: %w", err), "fill session")
	}
	return fill, nil
}

// GetFillSession returns nil when the session does not exist.
func (s *Service) GetFillSession(ctx context.Context, inID int64) (*model.FillSession, error) {
	fill, err := s.store.FillSessions().Get(ctx, inID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, service.StoreError(fmt.Errorf("failed to get fill session: %w", err), "fill session")
	}
	return fill, nil
}

// LatestFillSession returns the patient's newest fill session, or nil.
func (s *Service) LatestFillSession(ctx context.Context, patientID int64) (*model.FillSession, error) {
	fill, err := s.store.FillSessions().LatestByPatient(ctx, patientID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, service.StoreError(fmt.Errorf("failed to get latest fill session: %w", err), "fill session")
	}
	return fill, nil
}

func (s *Service) UpdateFillStarted(ctx context.Context, req *model.UpdateFillStartedRequest) error {
	if err := s.store.FillSessions().UpdateStarted(ctx, req.InID, req.InStarted); err != nil {
		return service.StoreError(err, "fill session")
	}
	s.logger.Info("Fill session start corrected", "in_id", req.InID, "in_started", req.InStarted)
	return nil
}

func (s *Service) UpdateFillFinished(ctx context.Context, req *model.UpdateFillFinishedRequest) error {
	if req.VolumeIn == nil {
		return apperrors.NewValidation("validation failed", map[string]string{"volume_in": "is required"})
	}
	if err := s.store.FillSessions().UpdateFinished(ctx, req.InID, req.InFinished, *req.VolumeIn); err != nil {
		return service.StoreError(err, "fill session")
	}
	s.logger.Info("Fill session finish corrected", "in_id", req.InID, "in_finished", req.InFinished, "volume_in", *req.VolumeIn)
	return nil
}
