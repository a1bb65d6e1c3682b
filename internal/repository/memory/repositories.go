package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/capd-api/internal/model"
	"github.com/jwalitptl/capd-api/internal/repository"
)

type patientRepository struct {
	db *shared
}

func (r *patientRepository) Get(ctx context.Context, patientID int64) (*model.Patient, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	p, ok := r.db.data.patients[patientID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := *p
	return &c, nil
}

func (r *patientRepository) GetByUserID(ctx context.Context, userID int64) (*model.Patient, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	var found *model.Patient
	for _, p := range r.db.data.patients {
		if p.UserID == userID && (found == nil || p.ID < found.ID) {
			found = p
		}
	}
	if found == nil {
		return nil, repository.ErrNotFound
	}
	c := *found
	return &c, nil
}

func (r *patientRepository) UpdateSituationByUserID(ctx context.Context, userID int64, status model.SituationStatus) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	updated := false
	for _, p := range r.db.data.patients {
		if p.UserID == userID {
			st := status
			p.SituationStatus = &st
			updated = true
		}
	}
	if !updated {
		return repository.ErrNotFound
	}
	return nil
}

type prescriptionRepository struct {
	db *shared
}

func (r *prescriptionRepository) LatestByPatient(ctx context.Context, patientID int64) (*model.Prescription, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	return r.latest(func(p *model.Prescription) bool { return p.PatientID == patientID })
}

func (r *prescriptionRepository) LatestByUser(ctx context.Context, userID int64) (*model.Prescription, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	patients := patientIDsForUser(r.db.data, userID)
	return r.latest(func(p *model.Prescription) bool { return patients[p.PatientID] })
}

func (r *prescriptionRepository) ListByPatient(ctx context.Context, patientID int64, dates *model.DateRange) ([]*model.Prescription, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	out := []*model.Prescription{}
	for _, p := range r.db.data.prescriptions {
		if p.PatientID != patientID || (dates != nil && !dates.Contains(p.CreatedAt)) {
			continue
		}
		c := *p
		c.ParseBags()
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

// latest expects the read lock to be held.
func (r *prescriptionRepository) latest(match func(*model.Prescription) bool) (*model.Prescription, error) {
	var found *model.Prescription
	for _, p := range r.db.data.prescriptions {
		if !match(p) {
			continue
		}
		if found == nil || p.CreatedAt.After(found.CreatedAt) ||
			(p.CreatedAt.Equal(found.CreatedAt) && p.ID > found.ID) {
			found = p
		}
	}
	if found == nil {
		return nil, repository.ErrNotFound
	}
	c := *found
	c.ParseBags()
	return &c, nil
}

type prescriptionMedicineRepository struct {
	db *shared
}

func (r *prescriptionMedicineRepository) ListByPatient(ctx context.Context, patientID int64, limit int) ([]*model.PrescriptionMedicine, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	out := r.collect(func(pm *model.PrescriptionMedicine) bool { return pm.PatientID == patientID })
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *prescriptionMedicineRepository) ListByPatientIn(ctx context.Context, patientID int64, dates model.DateRange) ([]*model.PrescriptionMedicine, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	out := r.collect(func(pm *model.PrescriptionMedicine) bool {
		return pm.PatientID == patientID && dates.Contains(pm.CreatedAt)
	})
	name := func(pm *model.PrescriptionMedicine) string {
		if pm.MedicineName == nil {
			return ""
		}
		return *pm.MedicineName
	}
	sort.Slice(out, func(i, j int) bool {
		if name(out[i]) != name(out[j]) {
			return name(out[i]) < name(out[j])
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// collect copies matching rows and joins the medicine catalogue. It expects
// the read lock to be held.
func (r *prescriptionMedicineRepository) collect(match func(*model.PrescriptionMedicine) bool) []*model.PrescriptionMedicine {
	out := []*model.PrescriptionMedicine{}
	for _, pm := range r.db.data.prescribed {
		if !match(pm) {
			continue
		}
		c := *pm
		if m, ok := r.db.data.medicines[pm.MedicineID]; ok {
			name := m.Name
			c.MedicineName, c.MedicineForm, c.MedicineCategory = &name, m.Form, m.Category
		}
		out = append(out, &c)
	}
	return out
}

func patientIDsForUser(s *state, userID int64) map[int64]bool {
	ids := map[int64]bool{}
	for _, p := range s.patients {
		if p.UserID == userID {
			ids[p.ID] = true
		}
	}
	return ids
}

type fillSessionRepository struct {
	db *shared
}

func (r *fillSessionRepository) Create(ctx context.Context, s *model.FillSession) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	s.ID = r.db.data.next("insolution")
	c := *s
	r.db.data.fills[s.ID] = &c
	return nil
}

func (r *fillSessionRepository) Get(ctx context.Context, id int64) (*model.FillSession, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	s, ok := r.db.data.fills[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := *s
	return &c, nil
}

func (r *fillSessionRepository) LatestByPatient(ctx context.Context, patientID int64) (*model.FillSession, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	var found *model.FillSession
	for _, s := range r.db.data.fills {
		if s.PatientID == nil || *s.PatientID != patientID {
			continue
		}
		if found == nil || startedAfter(s, found) {
			found = s
		}
	}
	if found == nil {
		return nil, repository.ErrNotFound
	}
	c := *found
	return &c, nil
}

// startedAfter orders fill sessions by in_started then id, newest first.
func startedAfter(a, b *model.FillSession) bool {
	switch {
	case a.InStarted != nil && b.InStarted == nil:
		return true
	case a.InStarted == nil && b.InStarted != nil:
		return false
	case a.InStarted != nil && !a.InStarted.Equal(*b.InStarted):
		return a.InStarted.After(*b.InStarted)
	}
	return a.ID > b.ID
}

func (r *fillSessionRepository) Complete(ctx context.Context, id int64, finishedAt time.Time, volumeIn float64) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	s, ok := r.db.data.fills[id]
	if !ok || s.InFinished != nil {
		return false, nil
	}
	s.InFinished = &finishedAt
	s.VolumeIn = &volumeIn
	return true, nil
}

func (r *fillSessionRepository) Finish(ctx context.Context, session *model.FillSession) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	s, ok := r.db.data.fills[session.ID]
	if !ok {
		return repository.ErrNotFound
	}
	s.Dialysate = session.Dialysate
	s.VolumeIn = session.VolumeIn
	s.Dwell = session.Dwell
	s.InFinished = session.InFinished
	return nil
}

func (r *fillSessionRepository) UpdateStarted(ctx context.Context, id int64, startedAt time.Time) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	s, ok := r.db.data.fills[id]
	if !ok {
		return repository.ErrNotFound
	}
	s.InStarted = &startedAt
	return nil
}

func (r *fillSessionRepository) UpdateFinished(ctx context.Context, id int64, finishedAt time.Time, volumeIn float64) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	s, ok := r.db.data.fills[id]
	if !ok {
		return repository.ErrNotFound
	}
	s.InFinished = &finishedAt
	s.VolumeIn = &volumeIn
	return nil
}

func (r *fillSessionRepository) ActiveByPatient(ctx context.Context, patientID int64) (*model.ActiveFillSession, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	var (
		fill      *model.FillSession
		treatment *model.Treatment
	)
	for _, t := range r.db.data.treatments {
		// the owning treatment decides the patient; fill rows may carry none
		if t.InID == nil || t.PatientID != patientID {
			continue
		}
		if status, ok := model.ParseTreatmentStatus(string(t.Status)); !ok || status != model.TreatmentInProgress {
			continue
		}
		s, ok := r.db.data.fills[*t.InID]
		if !ok || s.InFinished != nil {
			continue
		}
		if fill == nil || startedAfter(s, fill) {
			fill, treatment = s, t
		}
	}
	if fill == nil {
		return nil, repository.ErrNotFound
	}
	return &model.ActiveFillSession{
		InID:            fill.ID,
		InStarted:       fill.InStarted,
		Dialysate:       fill.Dialysate,
		Dwell:           fill.Dwell,
		TargetVolume:    fill.VolumeIn,
		TreatmentID:     treatment.ID,
		TreatmentStatus: model.TreatmentInProgress,
	}, nil
}

type drainSessionRepository struct {
	db *shared
}

func (r *drainSessionRepository) Create(ctx context.Context, s *model.DrainSession) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	s.ID = r.db.data.next("outsolution")
	c := *s
	r.db.data.drains[s.ID] = &c
	return nil
}

func (r *drainSessionRepository) Get(ctx context.Context, id int64) (*model.DrainSession, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	s, ok := r.db.data.drains[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := *s
	return &c, nil
}

type treatmentRepository struct {
	db *shared
}

func (r *treatmentRepository) Create(ctx context.Context, t *model.Treatment) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = t.CreatedAt
	}
	t.ID = r.db.data.next("treatment")
	c := *t
	if status, ok := model.ParseTreatmentStatus(string(c.Status)); ok {
		c.Status = status
	}
	r.db.data.treatments[t.ID] = &c
	return nil
}

func (r *treatmentRepository) Get(ctx context.Context, id int64) (*model.Treatment, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	t, ok := r.db.data.treatments[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := *t
	return &c, nil
}

func (r *treatmentRepository) Complete(ctx context.Context, id int64, outID int64, balance model.FluidBalance, updatedAt time.Time) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	t, ok := r.db.data.treatments[id]
	if !ok {
		return repository.ErrNotFound
	}
	t.OutID = &outID
	t.Balance = balance.Float()
	t.Status = model.TreatmentCompleted
	t.UpdatedAt = updatedAt
	return nil
}

func (r *treatmentRepository) ListDetails(ctx context.Context, f model.TreatmentFilter) ([]*model.TreatmentDetail, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	wantStatus, filterStatus := model.ParseTreatmentStatus(string(f.Status))

	details := []*model.TreatmentDetail{}
	for _, t := range r.db.data.treatments {
		if t.PatientID != f.PatientID {
			continue
		}
		if filterStatus && t.Status != wantStatus {
			continue
		}
		if f.Dates != nil && !inDates(t.TreatmentDate, *f.Dates) {
			continue
		}

		d := &model.TreatmentDetail{
			TreatmentID:     t.ID,
			PatientID:       t.PatientID,
			Status:          t.Status,
			Balance:         t.Balance,
			TreatmentDate:   t.TreatmentDate,
			BagSerialNumber: t.BagSerialNumber,
		}
		if t.InID != nil {
			if s, ok := r.db.data.fills[*t.InID]; ok {
				d.InStarted, d.InFinished, d.VolumeIn, d.Dialysate = s.InStarted, s.InFinished, s.VolumeIn, s.Dialysate
			}
		}
		if t.OutID != nil {
			if s, ok := r.db.data.drains[*t.OutID]; ok {
				color, notes := s.Color, s.Notes
				d.DrainStarted, d.DrainFinished, d.VolumeOut = s.DrainStarted, s.DrainFinished, s.VolumeOut
				d.Color, d.Notes = &color, &notes
			}
		}
		if f.RequireVolumes && !d.HasVolumes() {
			continue
		}
		details = append(details, d)
	}

	sort.Slice(details, func(i, j int) bool {
		a, b := details[i], details[j]
		if !a.TreatmentDate.Equal(b.TreatmentDate) {
			if f.Newest {
				return a.TreatmentDate.After(b.TreatmentDate)
			}
			return a.TreatmentDate.Before(b.TreatmentDate)
		}
		if f.Newest {
			return a.TreatmentID > b.TreatmentID
		}
		return a.TreatmentID < b.TreatmentID
	})
	if f.Limit > 0 && len(details) > f.Limit {
		details = details[:f.Limit]
	}
	return details, nil
}

// inDates compares calendar dates, matching the DATE column semantics of the SQL store.
func inDates(date time.Time, r model.DateRange) bool {
	day := date.Format("2006-01-02")
	return day >= r.From.Format("2006-01-02") && day < r.To.Format("2006-01-02")
}

func (r *treatmentRepository) CountCompleted(ctx context.Context, patientID int64, dates model.DateRange) (int, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	n := 0
	for _, t := range r.db.data.treatments {
		if t.PatientID == patientID && t.Status.Completed() && inDates(t.TreatmentDate, dates) {
			n++
		}
	}
	return n, nil
}

func (r *treatmentRepository) TakenByDialysate(ctx context.Context, userID int64, dates model.DateRange) (map[string]int, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	patients := patientIDsForUser(r.db.data, userID)
	taken := map[string]int{}
	for _, t := range r.db.data.treatments {
		if !patients[t.PatientID] || !t.Status.Completed() || !inDates(t.TreatmentDate, dates) || t.InID == nil {
			continue
		}
		s, ok := r.db.data.fills[*t.InID]
		if !ok || s.Dialysate == nil {
			continue
		}
		taken[*s.Dialysate]++
	}
	return taken, nil
}

type drainageCompletionRepository struct {
	db *shared
}

func (r *drainageCompletionRepository) Create(ctx context.Context, c *model.DrainageCompletion) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	c.ID = r.db.data.next("drainage_completions")
	cp := *c
	r.db.data.completions[c.ID] = &cp
	return nil
}

type outboxRepository struct {
	db *shared
}

func (r *outboxRepository) Create(ctx context.Context, event *model.OutboxEvent) error {
	if event == nil {
		return fmt.Errorf("event cannot be nil")
	}
	if event.Payload == nil {
		return fmt.Errorf("event payload cannot be nil")
	}

	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	event.UpdatedAt = event.CreatedAt
	event.Status = model.OutboxStatusPending
	c := *event
	r.db.data.outbox[event.ID] = &c
	r.db.data.outboxSeq[event.ID] = r.db.data.next("outbox")
	return nil
}

func (r *outboxRepository) GetPendingEventsWithLock(ctx context.Context, limit int, now time.Time) ([]*model.OutboxEvent, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	events := []*model.OutboxEvent{}
	for _, e := range r.db.data.outbox {
		if e.Status != model.OutboxStatusPending && e.Status != model.OutboxStatusRetry {
			continue
		}
		if e.RetryAt != nil && e.RetryAt.After(now) {
			continue
		}
		c := *e
		events = append(events, &c)
	}
	sortEvents(r.db.data, events)
	if limit > 0 && len(events) > limit {
		events = events[:limit]
	}
	return events, nil
}

func (r *outboxRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.OutboxStatus, errorMessage *string, retryAt *time.Time) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	e, ok := r.db.data.outbox[id]
	if !ok {
		return repository.ErrNotFound
	}
	now := time.Now()
	e.Status = status
	e.ErrorMessage = errorMessage
	e.RetryAt = retryAt
	e.UpdatedAt = now
	if status == model.OutboxStatusProcessed {
		e.ProcessedAt = &now
	}
	if status == model.OutboxStatusRetry || status == model.OutboxStatusFailed {
		e.RetryCount++
	}
	return nil
}

func (r *outboxRepository) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var n int64
	for id, e := range r.db.data.outbox {
		if e.Status == model.OutboxStatusProcessed && e.ProcessedAt != nil && e.ProcessedAt.Before(before) {
			delete(r.db.data.outbox, id)
			delete(r.db.data.outboxSeq, id)
			n++
		}
	}
	return n, nil
}

// Events returns a copy of every outbox row, oldest first.
func (s *Store) Events() []*model.OutboxEvent {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	events := make([]*model.OutboxEvent, 0, len(s.db.data.outbox))
	for _, e := range s.db.data.outbox {
		c := *e
		events = append(events, &c)
	}
	sortEvents(s.db.data, events)
	return events
}

func sortEvents(s *state, events []*model.OutboxEvent) {
	sort.Slice(events, func(i, j int) bool {
		a, b := events[i], events[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return s.outboxSeq[a.ID] < s.outboxSeq[b.ID]
	})
}

// Completions returns a copy of every drainage completion row.
func (s *Store) Completions() []*model.DrainageCompletion {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	out := make([]*model.DrainageCompletion, 0, len(s.db.data.completions))
	for _, c := range s.db.data.completions {
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
