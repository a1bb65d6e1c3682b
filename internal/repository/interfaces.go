package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/capd-api/internal/model"
)

// All repository interfaces in one file
type (
	// Store is the persistence gateway. WithTx runs fn against a Store bound to a
	// single transaction; an error or panic in fn rolls every write back.
	Store interface {
		Patients() PatientRepository
		Prescriptions() PrescriptionRepository
		PrescriptionMedicines() PrescriptionMedicineRepository
		FillSessions() FillSessionRepository
		DrainSessions() DrainSessionRepository
		Treatments() TreatmentRepository
		DrainageCompletions() DrainageCompletionRepository
		Outbox() OutboxRepository
		WithTx(ctx context.Context, fn func(tx Store) error) error
		Ping(ctx context.Context) error
	}

	PatientRepository interface {
		Get(ctx context.Context, patientID int64) (*model.Patient, error)
		GetByUserID(ctx context.Context, userID int64) (*model.Patient, error)
		UpdateSituationByUserID(ctx context.Context, userID int64, status model.SituationStatus) error
	}

	PrescriptionRepository interface {
		LatestByPatient(ctx context.Context, patientID int64) (*model.Prescription, error)
		LatestByUser(ctx context.Context, userID int64) (*model.Prescription, error)
		// ListByPatient returns newest first; a nil range lists everything.
		ListByPatient(ctx context.Context, patientID int64, dates *model.DateRange) ([]*model.Prescription, error)
	}

	PrescriptionMedicineRepository interface {
		// ListByPatient returns at most limit rows, newest first.
		ListByPatient(ctx context.Context, patientID int64, limit int) ([]*model.PrescriptionMedicine, error)
		// ListByPatientIn returns the rows created within dates, by medicine name.
		ListByPatientIn(ctx context.Context, patientID int64, dates model.DateRange) ([]*model.PrescriptionMedicine, error)
	}

	FillSessionRepository interface {
		Create(ctx context.Context, session *model.FillSession) error
		Get(ctx context.Context, id int64) (*model.FillSession, error)
		LatestByPatient(ctx context.Context, patientID int64) (*model.FillSession, error)
		// Complete finishes an open session; it returns false when the session is
		// missing or already finished.
		Complete(ctx context.Context, id int64, finishedAt time.Time, volumeIn float64) (bool, error)
		Finish(ctx context.Context, session *model.FillSession) error
		UpdateStarted(ctx context.Context, id int64, startedAt time.Time) error
		UpdateFinished(ctx context.Context, id int64, finishedAt time.Time, volumeIn float64) error
		ActiveByPatient(ctx context.Context, patientID int64) (*model.ActiveFillSession, error)
	}

	DrainSessionRepository interface {
		Create(ctx context.Context, session *model.DrainSession) error
		Get(ctx context.Context, id int64) (*model.DrainSession, error)
	}

	TreatmentRepository interface {
		Create(ctx context.Context, treatment *model.Treatment) error
		Get(ctx context.Context, id int64) (*model.Treatment, error)
		Complete(ctx context.Context, id int64, outID int64, balance model.FluidBalance, updatedAt time.Time) error
		ListDetails(ctx context.Context, filter model.TreatmentFilter) ([]*model.TreatmentDetail, error)
		CountCompleted(ctx context.Context, patientID int64, dates model.DateRange) (int, error)
		// TakenByDialysate counts completed treatments per stored dialysate value.
		TakenByDialysate(ctx context.Context, userID int64, dates model.DateRange) (map[string]int, error)
	}

	DrainageCompletionRepository interface {
		Create(ctx context.Context, completion *model.DrainageCompletion) error
	}

	OutboxRepository interface {
		Create(ctx context.Context, event *model.OutboxEvent) error
		GetPendingEventsWithLock(ctx context.Context, limit int, now time.Time) ([]*model.OutboxEvent, error)
		UpdateStatus(ctx context.Context, id uuid.UUID, status model.OutboxStatus, errorMessage *string, retryAt *time.Time) error
		DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
	}

	// DeviceStateRepository holds volatile device telemetry. It is not durable and
	// starts empty on every process start.
	DeviceStateRepository interface {
		Activity() model.DeviceActivity
		SetActivity(status model.DeviceActivity)
		LatestWeight() model.WeightReading
		SetLatestWeight(reading model.WeightReading)
		DeviceStatus() model.DeviceStatus
		SetDeviceStatus(status model.DeviceStatus)
	}
)
