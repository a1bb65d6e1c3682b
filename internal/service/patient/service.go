package patient

import (
	"context"
	"fmt"

	"github.com/jwalitptl/capd-api/internal/model"
	"github.com/jwalitptl/capd-api/internal/repository"
	"github.com/jwalitptl/capd-api/internal/service"
	apperrors "github.com/jwalitptl/capd-api/pkg/errors"
	"github.com/jwalitptl/capd-api/pkg/logger"
)

type PatientService interface {
	GetByUser(ctx context.Context, userID int64) (*model.Patient, error)
	GetStatus(ctx context.Context, userID int64) (model.SituationStatus, error)
	UpdateStatus(ctx context.Context, userID int64, status model.SituationStatus) error
}

type Service struct {
	repo   repository.PatientRepository
	logger *logger.Logger
}

func NewService(repo repository.PatientRepository, log *logger.Logger) *Service {
	return &Service{repo: repo, logger: log}
}

func (s *Service) GetByUser(ctx context.Context, userID int64) (*model.Patient, error) {
	patient, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, service.StoreError(fmt.Errorf("failed to get patient: %w", err), "patient")
	}
	return patient, nil
}

// GetStatus reports the patient's situation, AtHome when none was recorded.
func (s *Service) GetStatus(ctx context.Context, userID int64) (model.SituationStatus, error) {
	patient, err := s.GetByUser(ctx, userID)
	if err != nil {
		return "", err
	}
	return patient.Situation(), nil
}

func (s *Service) UpdateStatus(ctx context.Context, userID int64, status model.SituationStatus) error {
	if !status.Valid() {
		return apperrors.NewValidation("invalid status", map[string]string{
			"status": "must be one of AtHome, InEmergency or WaitToResponse",
		})
	}
	if err := s.repo.UpdateSituationByUserID(ctx, userID, status); err != nil {
		return service.StoreError(fmt.Errorf("failed to update patient status: %w", err), "patient")
	}

	s.logger.Info("Patient status updated", "user_id", userID, "status", string(status))
	return nil
}
