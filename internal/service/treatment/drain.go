package treatment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/capd-api/internal/model"
	"github.com/jwalitptl/capd-api/internal/repository"
	"github.com/jwalitptl/capd-api/internal/service"
	"github.com/jwalitptl/capd-api/internal/service/analysis"
	apperrors "github.com/jwalitptl/capd-api/pkg/errors"
	"github.com/jwalitptl/capd-api/pkg/storage"
)

// alertSeverity is the lowest color severity that raises a drain color alert.
const alertSeverity = 3

// RecordDrainSession stores a complete drain session. A data URI exit-site
// image is uploaded first when an image store is configured.
func (s *Service) RecordDrainSession(ctx context.Context, req *model.RecordDrainSessionRequest) (*DrainResult, error) {
	if req.PatientID == 0 {
		return nil, apperrors.NewValidation("patient_id is required", map[string]string{"patient_id": "is required"})
	}

	image, err := s.storeImage(ctx, req.PatientID, req.ExitSiteImage)
	if err != nil {
		return nil, err
	}

	drain := &model.DrainSession{
		PatientID:     req.PatientID,
		DrainStarted:  req.DrainStarted,
		DrainFinished: req.DrainFinished,
		VolumeOut:     req.VolumeOut,
		Color:         req.Color,
		Notes:         req.Notes,
		ExitSiteImage: image,
	}

	var risk analysis.ColorRisk
	err = s.store.WithTx(ctx, func(tx repository.Store) error {
		var err error
		risk, err = s.insertDrain(ctx, tx, drain)
		return err
	})
	if err != nil {
		return nil, service.StoreError(fmt.Errorf("failed to record drain session: %w", err), "drain session")
	}

	s.drainRecorded(drain, risk)
	return &DrainResult{OutID: drain.ID, ExitSiteImage: image, ColorAnalysis: risk}, nil
}

// CreateTreatment inserts a fully formed treatment. The balance is computed
// when both sessions resolve with volumes; otherwise the supplied balance is kept.
func (s *Service) CreateTreatment(ctx context.Context, req *model.CreateTreatmentRequest) (*TreatmentResult, error) {
	now := s.now()
	fields := map[string]string{}
	if req.PatientID == 0 {
		fields["patient_id"] = "is required"
	}

	status := model.TreatmentCompleted
	if req.Status != "" {
		parsed, ok := model.ParseTreatmentStatus(req.Status)
		if !ok {
			fields["treatment_status"] = "must be one of in-progress, ongoing or completed"
		}
		status = parsed
	}

	date := now
	if req.TreatmentDate != "" {
		parsed, err := parseTreatmentDate(req.TreatmentDate, now.Location())
		if err != nil {
			fields["treatment_date"] = "must be a date formatted as 2006-01-02"
		}
		date = parsed
	}
	if len(fields) > 0 {
		return nil, apperrors.NewValidation("validation failed", fields)
	}

	serial := req.BagSerialNumber
	if serial == "" {
		serial = fmt.Sprintf("BAG-%d", now.UnixMilli())
	}

	var balance model.FluidBalance
	if req.Balance != nil {
		balance = model.FluidBalance(*req.Balance)
	}

	treatment := &model.Treatment{
		PatientID:       req.PatientID,
		InID:            req.InID,
		OutID:           req.OutID,
		Status:          status,
		TreatmentDate:   date,
		BagSerialNumber: serial,
		SolutionImage:   req.SolutionImage,
		DryNight:        req.DryNight,
		Timestamps:      model.Timestamps{CreatedAt: now, UpdatedAt: now},
	}

	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		if req.InID != nil && req.OutID != nil {
			computed, ok, err := sessionBalance(ctx, tx, *req.InID, *req.OutID)
			if err != nil {
				return err
			}
			if ok {
				balance = computed
			}
		}
		treatment.Balance = balance.Float()

		if err := tx.Treatments().Create(ctx, treatment); err != nil {
			return err
		}

		eventType := model.EventTreatmentStarted
		if status.Completed() {
			eventType = model.EventTreatmentCompleted
		}
		return service.Emit(ctx, tx, eventType, treatmentPayload(treatment, balance), now)
	})
	if err != nil {
		return nil, service.StoreError(fmt.Errorf("failed to create treatment: %w", err), "treatment")
	}

	if status.Completed() {
		s.metrics.TreatmentsCompleted.Inc()
	}
	s.logger.Info("Treatment created",
		"treatment_id", treatment.ID,
		"patient_id", treatment.PatientID,
		"status", string(status),
		"balance", balance.Float())

	return result(treatment, balance), nil
}

// FinishTreatment closes the fill session if it is still open, records the
// drain and completes the treatment in one transaction.
func (s *Service) FinishTreatment(ctx context.Context, req *model.FinishTreatmentRequest) (*TreatmentResult, error) {
	if req.VolumeOut == nil {
		return nil, apperrors.NewValidation("validation failed", map[string]string{"volume_out": "is required"})
	}
	var dialysate *string
	if req.Dialysate != nil && *req.Dialysate != "" {
		d, ok := model.ParseDialysate(*req.Dialysate)
		if !ok {
			return nil, apperrors.NewValidation("validation failed", map[string]string{"dialysate": dialysateMessage})
		}
		canonical := d.String()
		dialysate = &canonical
	}

	now := s.now()
	var (
		treatment *model.Treatment
		drain     *model.DrainSession
		risk      analysis.ColorRisk
		balance   model.FluidBalance
	)
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		var err error
		treatment, err = openTreatment(ctx, tx, req.TreatmentID)
		if err != nil {
			return err
		}

		var volumeIn float64
		if treatment.InID != nil {
			fill, err := tx.FillSessions().Get(ctx, *treatment.InID)
			if err != nil {
				return err
			}
			if fill.Open() {
				if req.VolumeIn != nil {
					fill.VolumeIn = req.VolumeIn
				}
				if dialysate != nil {
					fill.Dialysate = dialysate
				}
				if req.Dwell != nil {
					fill.Dwell = req.Dwell
				}
				fill.InFinished = &now
				if err := tx.FillSessions().Finish(ctx, fill); err != nil {
					return err
				}
			}
			if fill.VolumeIn != nil {
				volumeIn = *fill.VolumeIn
			}
		}

		drain = &model.DrainSession{
			PatientID:     treatment.PatientID,
			DrainStarted:  &now,
			DrainFinished: &now,
			VolumeOut:     req.VolumeOut,
			Color:         req.Color,
			Notes:         req.Notes,
		}
		if risk, err = s.insertDrain(ctx, tx, drain); err != nil {
			return err
		}

		balance = model.NewFluidBalance(volumeIn, *req.VolumeOut)
		return s.completeTreatment(ctx, tx, treatment, drain.ID, balance, now)
	})
	if err != nil {
		return nil, service.StoreError(err, "treatment")
	}

	s.drainRecorded(drain, risk)
	s.treatmentCompleted(treatment, balance)
	return result(treatment, balance), nil
}

// AttachDrain completes a treatment with an already recorded drain session.
func (s *Service) AttachDrain(ctx context.Context, treatmentID int64, req *model.AttachDrainRequest) (*TreatmentResult, error) {
	now := s.now()
	var (
		treatment *model.Treatment
		balance   model.FluidBalance
	)
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		var err error
		treatment, err = openTreatment(ctx, tx, treatmentID)
		if err != nil {
			return err
		}

		drain, err := tx.DrainSessions().Get(ctx, req.OutID)
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NewNotFound("drain session", err)
		}
		if err != nil {
			return err
		}

		balance = model.FluidBalance(treatment.Balance)
		if treatment.InID != nil {
			fill, err := tx.FillSessions().Get(ctx, *treatment.InID)
			if err != nil && !errors.Is(err, repository.ErrNotFound) {
				return err
			}
			if fill != nil && fill.VolumeIn != nil && drain.VolumeOut != nil {
				balance = model.NewFluidBalance(*fill.VolumeIn, *drain.VolumeOut)
			}
		}

		return s.completeTreatment(ctx, tx, treatment, drain.ID, balance, now)
	})
	if err != nil {
		return nil, service.StoreError(err, "treatment")
	}

	s.treatmentCompleted(treatment, balance)
	return result(treatment, balance), nil
}

// openTreatment loads a treatment that has not been completed yet.
func openTreatment(ctx context.Context, tx repository.Store, id int64) (*model.Treatment, error) {
	treatment, err := tx.Treatments().Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewNotFound("treatment", err)
	}
	if err != nil {
		return nil, err
	}
	if treatment.Status.Completed() {
		return nil, apperrors.NewConflict("treatment already completed", nil)
	}
	return treatment, nil
}

func (s *Service) completeTreatment(ctx context.Context, tx repository.Store, t *model.Treatment, outID int64, balance model.FluidBalance, now time.Time) error {
	if err := tx.Treatments().Complete(ctx, t.ID, outID, balance, now); err != nil {
		return err
	}
	t.OutID = &outID
	t.Status = model.TreatmentCompleted
	t.Balance = balance.Float()
	t.UpdatedAt = now

	return service.Emit(ctx, tx, model.EventTreatmentCompleted, treatmentPayload(t, balance), now)
}

// insertDrain writes the drain row and its events inside tx.
func (s *Service) insertDrain(ctx context.Context, tx repository.Store, drain *model.DrainSession) (analysis.ColorRisk, error) {
	risk := analysis.ClassifyColor(drain.Color)
	if err := tx.DrainSessions().Create(ctx, drain); err != nil {
		return risk, err
	}

	now := s.now()
	payload := map[string]interface{}{
		"out_id":     drain.ID,
		"patient_id": drain.PatientID,
		"volume_out": drain.VolumeOut,
		"color":      risk.Color,
		"severity":   risk.Severity,
	}
	if err := service.Emit(ctx, tx, model.EventDrainSessionRecorded, payload, now); err != nil {
		return risk, err
	}
	if risk.Severity >= alertSeverity {
		payload["risk_level"] = risk.RiskLevel
		payload["recommendation"] = risk.Recommendation
		if err := service.Emit(ctx, tx, model.EventDrainColorAlert, payload, now); err != nil {
			return risk, err
		}
	}
	return risk, nil
}

func (s *Service) drainRecorded(drain *model.DrainSession, risk analysis.ColorRisk) {
	s.metrics.DrainSessionsRecorded.Inc()
	s.metrics.DrainColors.WithLabelValues(string(risk.Color)).Inc()

	if risk.Severity >= alertSeverity {
		s.logger.Warn("High-risk drain color",
			"out_id", drain.ID,
			"patient_id", drain.PatientID,
			"color", drain.Color,
			"bucket", string(risk.Color),
			"severity", risk.Severity)
		return
	}
	s.logger.Info("Drain session recorded", "out_id", drain.ID, "patient_id", drain.PatientID, "bucket", string(risk.Color))
}

func (s *Service) treatmentCompleted(t *model.Treatment, balance model.FluidBalance) {
	s.metrics.TreatmentsCompleted.Inc()
	s.logger.Info("Treatment completed",
		"treatment_id", t.ID,
		"patient_id", t.PatientID,
		"balance", balance.Float(),
		"remark", balance.Remark())
}

// storeImage uploads data URI images and returns the value to persist.
func (s *Service) storeImage(ctx context.Context, patientID int64, image string) (*string, error) {
	image = strings.TrimSpace(image)
	if image == "" {
		return nil, nil
	}
	if s.images == nil || !storage.IsDataURI(image) {
		return &image, nil
	}

	uri, err := storage.ParseDataURI(image)
	if err != nil {
		return nil, apperrors.NewValidation("invalid exit site image", map[string]string{"exit_site_image": "must be a base64 data URI"})
	}

	key := fmt.Sprintf("%s%d/%s%s", s.imagePrefix, patientID, uuid.NewString(), uri.Extension())
	url, err := s.images.Put(ctx, key, uri.ContentType, uri.Data)
	if err != nil {
		return nil, apperrors.NewInternal(fmt.Errorf("failed to upload exit site image: %w", err))
	}
	return &url, nil
}

// sessionBalance computes the balance of two stored sessions. ok is false when
// either session is missing or has no volume.
func sessionBalance(ctx context.Context, tx repository.Store, inID, outID int64) (model.FluidBalance, bool, error) {
	fill, err := tx.FillSessions().Get(ctx, inID)
	if errors.Is(err, repository.ErrNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	drain, err := tx.DrainSessions().Get(ctx, outID)
	if errors.Is(err, repository.ErrNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	if fill.VolumeIn == nil || drain.VolumeOut == nil {
		return 0, false, nil
	}
	return model.NewFluidBalance(*fill.VolumeIn, *drain.VolumeOut), true, nil
}

func parseTreatmentDate(s string, loc *time.Location) (time.Time, error) {
	if t, err := time.ParseInLocation("2006-01-02", s, loc); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

func treatmentPayload(t *model.Treatment, balance model.FluidBalance) map[string]interface{} {
	return map[string]interface{}{
		"treatment_id": t.ID,
		"patient_id":   t.PatientID,
		"in_id":        t.InID,
		"out_id":       t.OutID,
		"status":       t.Status,
		"balance":      balance.Float(),
	}
}

func result(t *model.Treatment, balance model.FluidBalance) *TreatmentResult {
	return &TreatmentResult{
		TreatmentID:       t.ID,
		OutID:             t.OutID,
		Status:            t.Status,
		CalculatedBalance: balance.Float(),
		Remark:            balance.Remark(),
		Formula:           analysis.BalanceFormula,
	}
}
