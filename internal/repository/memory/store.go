// Package memory provides process-local implementations of the repository
// interfaces. The Store backs `database.driver: memory` and the service tests.
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/jwalitptl/capd-api/internal/model"
	"github.com/jwalitptl/capd-api/internal/repository"
)

type state struct {
	patients      map[int64]*model.Patient
	prescriptions map[int64]*model.Prescription
	medicines     map[int64]*model.Medicine
	prescribed    map[int64]*model.PrescriptionMedicine
	fills         map[int64]*model.FillSession
	drains        map[int64]*model.DrainSession
	treatments    map[int64]*model.Treatment
	completions   map[int64]*model.DrainageCompletion
	outbox        map[uuid.UUID]*model.OutboxEvent
	// outboxSeq keeps insertion order for events sharing a timestamp.
	outboxSeq     map[uuid.UUID]int64
	seq           map[string]int64
}

func newState() *state {
	return &state{
		patients:      map[int64]*model.Patient{},
		prescriptions: map[int64]*model.Prescription{},
		medicines:     map[int64]*model.Medicine{},
		prescribed:    map[int64]*model.PrescriptionMedicine{},
		fills:         map[int64]*model.FillSession{},
		drains:        map[int64]*model.DrainSession{},
		treatments:    map[int64]*model.Treatment{},
		completions:   map[int64]*model.DrainageCompletion{},
		outbox:        map[uuid.UUID]*model.OutboxEvent{},
		outboxSeq:     map[uuid.UUID]int64{},
		seq:           map[string]int64{},
	}
}

func cloneMap[K comparable, V any](src map[K]*V) map[K]*V {
	dst := make(map[K]*V, len(src))
	for k, v := range src {
		c := *v
		dst[k] = &c
	}
	return dst
}

func (s *state) clone() *state {
	seq := make(map[string]int64, len(s.seq))
	for k, v := range s.seq {
		seq[k] = v
	}
	outboxSeq := make(map[uuid.UUID]int64, len(s.outboxSeq))
	for k, v := range s.outboxSeq {
		outboxSeq[k] = v
	}
	return &state{
		patients:      cloneMap(s.patients),
		prescriptions: cloneMap(s.prescriptions),
		medicines:     cloneMap(s.medicines),
		prescribed:    cloneMap(s.prescribed),
		fills:         cloneMap(s.fills),
		drains:        cloneMap(s.drains),
		treatments:    cloneMap(s.treatments),
		completions:   cloneMap(s.completions),
		outbox:        cloneMap(s.outbox),
		outboxSeq:     outboxSeq,
		seq:           seq,
	}
}

func (s *state) next(table string) int64 {
	s.seq[table]++
	return s.seq[table]
}

type shared struct {
	mu   sync.RWMutex
	txMu sync.Mutex
	data *state
}

// Store is an in-memory repository.Store. Transactions are serialized and
// rolled back by restoring a snapshot taken at Begin.
type Store struct {
	db *shared
	tx bool
}

func NewStore() *Store {
	return &Store{db: &shared{data: newState()}}
}

func (s *Store) Patients() repository.PatientRepository {
	return &patientRepository{db: s.db}
}

func (s *Store) Prescriptions() repository.PrescriptionRepository {
	return &prescriptionRepository{db: s.db}
}

func (s *Store) PrescriptionMedicines() repository.PrescriptionMedicineRepository {
	return &prescriptionMedicineRepository{db: s.db}
}

func (s *Store) FillSessions() repository.FillSessionRepository {
	return &fillSessionRepository{db: s.db}
}

func (s *Store) DrainSessions() repository.DrainSessionRepository {
	return &drainSessionRepository{db: s.db}
}

func (s *Store) Treatments() repository.TreatmentRepository {
	return &treatmentRepository{db: s.db}
}

func (s *Store) DrainageCompletions() repository.DrainageCompletionRepository {
	return &drainageCompletionRepository{db: s.db}
}

func (s *Store) Outbox() repository.OutboxRepository {
	return &outboxRepository{db: s.db}
}

func (s *Store) WithTx(ctx context.Context, fn func(tx repository.Store) error) error {
	if s.tx {
		return fn(s)
	}

	s.db.txMu.Lock()
	defer s.db.txMu.Unlock()

	s.db.mu.RLock()
	snapshot := s.db.data.clone()
	s.db.mu.RUnlock()

	rollback := func() {
		s.db.mu.Lock()
		s.db.data = snapshot
		s.db.mu.Unlock()
	}

	defer func() {
		if p := recover(); p != nil {
			rollback()
			panic(p)
		}
	}()

	if err := fn(&Store{db: s.db, tx: true}); err != nil {
		rollback()
		return err
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

// AddPatient seeds a patient row, assigning an id when zero.
func (s *Store) AddPatient(p *model.Patient) *model.Patient {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if p.ID == 0 {
		p.ID = s.db.data.next("patients")
	} else if p.ID > s.db.data.seq["patients"] {
		s.db.data.seq["patients"] = p.ID
	}
	c := *p
	s.db.data.patients[p.ID] = &c
	return p
}

// AddPrescription seeds a prescription row. Only the raw bag columns are kept;
// reads parse them the way the SQL store does.
func (s *Store) AddPrescription(p *model.Prescription) *model.Prescription {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if p.ID == 0 {
		p.ID = s.db.data.next("prescriptions")
	}
	c := *p
	c.BagCounts, c.BagPercentages, c.Schedule = nil, nil, nil
	s.db.data.prescriptions[p.ID] = &c
	return p
}

func (s *Store) AddMedicine(m *model.Medicine) *model.Medicine {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if m.ID == 0 {
		m.ID = s.db.data.next("medicines")
	}
	c := *m
	s.db.data.medicines[m.ID] = &c
	return m
}

// AddPrescriptionMedicine seeds a prescription_medicine row. The joined
// medicine columns are filled on read.
func (s *Store) AddPrescriptionMedicine(pm *model.PrescriptionMedicine) *model.PrescriptionMedicine {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if pm.ID == 0 {
		pm.ID = s.db.data.next("prescription_medicine")
	}
	if pm.UpdatedAt.IsZero() {
		pm.UpdatedAt = pm.CreatedAt
	}
	c := *pm
	c.MedicineName, c.MedicineForm, c.MedicineCategory = nil, nil, nil
	s.db.data.prescribed[pm.ID] = &c
	return pm
}
