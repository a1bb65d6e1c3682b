package prescription

import (
	"context"
	"fmt"

	"github.com/jwalitptl/capd-api/internal/model"
	"github.com/jwalitptl/capd-api/internal/repository"
	"github.com/jwalitptl/capd-api/internal/service"
	apperrors "github.com/jwalitptl/capd-api/pkg/errors"
)

type PrescriptionService interface {
	LatestByPatient(ctx context.Context, patientID int64) (*model.Prescription, error)
	LatestByUser(ctx context.Context, userID int64) (*model.Prescription, error)
	ListByPatient(ctx context.Context, patientID int64, q model.PrescriptionListQuery) ([]*model.Prescription, error)
	MedicinesByPatient(ctx context.Context, patientID int64, q model.MedicineListQuery) ([]*model.PrescriptionMedicine, error)
	LatestMedicines(ctx context.Context, patientID int64) (*model.LatestMedicines, error)
}

type Service struct {
	patients      repository.PatientRepository
	prescriptions repository.PrescriptionRepository
	medicines     repository.PrescriptionMedicineRepository
}

func NewService(store repository.Store) *Service {
	return &Service{
		patients:      store.Patients(),
		prescriptions: store.Prescriptions(),
		medicines:     store.PrescriptionMedicines(),
	}
}

// LatestByPatient returns the most recently written prescription with its bag
// schedule parsed.
func (s *Service) LatestByPatient(ctx context.Context, patientID int64) (*model.Prescription, error) {
	p, err := s.prescriptions.LatestByPatient(ctx, patientID)
	if err != nil {
		return nil, service.StoreError(fmt.Errorf("failed to get prescription: %w", err), "prescription")
	}
	return p, nil
}

func (s *Service) LatestByUser(ctx context.Context, userID int64) (*model.Prescription, error) {
	p, err := s.prescriptions.LatestByUser(ctx, userID)
	if err != nil {
		return nil, service.StoreError(fmt.Errorf("failed to get prescription: %w", err), "prescription")
	}
	return p, nil
}

// ListByPatient returns the patient's prescriptions newest first, optionally
// limited to an inclusive range of upload days.
func (s *Service) ListByPatient(ctx context.Context, patientID int64, q model.PrescriptionListQuery) ([]*model.Prescription, error) {
	dates, bounded, err := q.Range()
	if err != nil {
		return nil, apperrors.NewValidation("invalid date range", map[string]string{
			"start_date": "must be a date in YYYY-MM-DD form",
		})
	}
	if bounded && !dates.To.After(dates.From) {
		return nil, apperrors.NewValidation("invalid date range", map[string]string{
			"end_date": "must not be before start_date",
		})
	}

	var filter *model.DateRange
	if bounded {
		filter = &dates
	}
	prescriptions, err := s.prescriptions.ListByPatient(ctx, patientID, filter)
	if err != nil {
		return nil, service.StoreError(fmt.Errorf("failed to list prescriptions: %w", err), "prescription")
	}
	return prescriptions, nil
}

// MedicinesByPatient lists prescribed medicines newest first. An unknown
// patient is NotFound; a patient without medicines gets an empty list.
func (s *Service) MedicinesByPatient(ctx context.Context, patientID int64, q model.MedicineListQuery) ([]*model.PrescriptionMedicine, error) {
	if _, err := s.patients.Get(ctx, patientID); err != nil {
		return nil, service.StoreError(err, "patient")
	}

	limit := q.Limit
	if limit <= 0 {
		limit = model.DefaultMedicineLimit
	}
	medicines, err := s.medicines.ListByPatient(ctx, patientID, limit)
	if err != nil {
		return nil, service.StoreError(fmt.Errorf("failed to list medicines: %w", err), "prescription medicine")
	}
	return medicines, nil
}

// LatestMedicines returns every medicine prescribed on the UTC day of the most
// recent prescription line.
func (s *Service) LatestMedicines(ctx context.Context, patientID int64) (*model.LatestMedicines, error) {
	result := &model.LatestMedicines{PatientID: patientID, Medicines: []*model.PrescriptionMedicine{}}

	newest, err := s.medicines.ListByPatient(ctx, patientID, 1)
	if err != nil {
		return nil, service.StoreError(fmt.Errorf("failed to get latest medicine: %w", err), "prescription medicine")
	}
	if len(newest) == 0 {
		return result, nil
	}

	day := model.DayOf(newest[0].CreatedAt.UTC())
	medicines, err := s.medicines.ListByPatientIn(ctx, patientID, day)
	if err != nil {
		return nil, service.StoreError(fmt.Errorf("failed to list medicines: %w", err), "prescription medicine")
	}
	result.LatestDate = &day.From
	result.Medicines = medicines
	return result, nil
}
