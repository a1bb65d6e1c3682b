package sqldb

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/capd-api/internal/model"
)

type patientRepository struct {
	q sqlx.ExtContext
}

func (r *patientRepository) Get(ctx context.Context, patientID int64) (*model.Patient, error) {
	query := `
		SELECT patient_id, user_id, hospital_number, address, situation_status
		FROM patients
		WHERE patient_id = ?
	`
	var patient model.Patient
	if err := get(ctx, r.q, &patient, query, patientID); err != nil {
		return nil, wrap(err, "get patient")
	}
	return &patient, nil
}

func (r *patientRepository) GetByUserID(ctx context.Context, userID int64) (*model.Patient, error) {
	query := `
		SELECT patient_id, user_id, hospital_number, address, situation_status
		FROM patients
		WHERE user_id = ?
		ORDER BY patient_id
		LIMIT 1
	`
	var patient model.Patient
	if err := get(ctx, r.q, &patient, query, userID); err != nil {
		return nil, wrap(err, "get patient")
	}
	return &patient, nil
}

func (r *patientRepository) UpdateSituationByUserID(ctx context.Context, userID int64, status model.SituationStatus) error {
	query := `UPDATE patients SET situation_status = ? WHERE user_id = ?`
	return wrap(execOne(ctx, r.q, query, string(status), userID), "update patient status")
}

type prescriptionRepository struct {
	q sqlx.ExtContext
}

const prescriptionColumns = `
	pr.prescription_id, pr.patient_id, pr.doctor_id, pr.pd_total_exchanges,
	pr.pd_bag_counts, pr.pd_bag_percentages, pr.modality, pr.instructions, pr.created_at
`

func (r *prescriptionRepository) LatestByPatient(ctx context.Context, patientID int64) (*model.Prescription, error) {
	query := `SELECT ` + prescriptionColumns + `
		FROM prescriptions pr
		WHERE pr.patient_id = ?
		ORDER BY pr.created_at DESC, pr.prescription_id DESC
		LIMIT 1
	`
	return r.latest(ctx, query, patientID)
}

func (r *prescriptionRepository) LatestByUser(ctx context.Context, userID int64) (*model.Prescription, error) {
	query := `SELECT ` + prescriptionColumns + `
		FROM prescriptions pr
		JOIN patients p ON p.patient_id = pr.patient_id
		WHERE p.user_id = ?
		ORDER BY pr.created_at DESC, pr.prescription_id DESC
		LIMIT 1
	`
	return r.latest(ctx, query, userID)
}

func (r *prescriptionRepository) ListByPatient(ctx context.Context, patientID int64, dates *model.DateRange) ([]*model.Prescription, error) {
	query := `SELECT ` + prescriptionColumns + `
		FROM prescriptions pr
		WHERE pr.patient_id = ?`
	args := []interface{}{patientID}
	if dates != nil {
		query += ` AND pr.created_at >= ? AND pr.created_at < ?`
		args = append(args, dates.From, dates.To)
	}
	query += ` ORDER BY pr.created_at DESC, pr.prescription_id DESC`

	prescriptions := []*model.Prescription{}
	if err := selectAll(ctx, r.q, &prescriptions, query, args...); err != nil {
		return nil, wrap(err, "list prescriptions")
	}
	for _, p := range prescriptions {
		p.ParseBags()
	}
	return prescriptions, nil
}

func (r *prescriptionRepository) latest(ctx context.Context, query string, arg int64) (*model.Prescription, error) {
	var p model.Prescription
	if err := get(ctx, r.q, &p, query, arg); err != nil {
		return nil, wrap(err, "get prescription")
	}
	p.ParseBags()
	return &p, nil
}

type prescriptionMedicineRepository struct {
	q sqlx.ExtContext
}

const prescriptionMedicineColumns = `
	pm.id, pm.prescription_id, pm.patient_id, pm.doctor_id, pm.medicine_id,
	pm.dosage, pm.frequency, pm.duration, pm.instructions, pm.created_at, pm.updated_at,
	m.name AS medicine_name, m.form AS medicine_form, m.category AS medicine_category
`

func (r *prescriptionMedicineRepository) ListByPatient(ctx context.Context, patientID int64, limit int) ([]*model.PrescriptionMedicine, error) {
	query := `SELECT ` + prescriptionMedicineColumns + `
		FROM prescription_medicine pm
		LEFT JOIN medicines m ON m.medicine_id = pm.medicine_id
		WHERE pm.patient_id = ?
		ORDER BY pm.created_at DESC, pm.id DESC
		LIMIT ?
	`
	medicines := []*model.PrescriptionMedicine{}
	if err := selectAll(ctx, r.q, &medicines, query, patientID, limit); err != nil {
		return nil, wrap(err, "list prescription medicines")
	}
	return medicines, nil
}

func (r *prescriptionMedicineRepository) ListByPatientIn(ctx context.Context, patientID int64, dates model.DateRange) ([]*model.PrescriptionMedicine, error) {
	query := `SELECT ` + prescriptionMedicineColumns + `
		FROM prescription_medicine pm
		LEFT JOIN medicines m ON m.medicine_id = pm.medicine_id
		WHERE pm.patient_id = ?
			AND pm.created_at >= ? AND pm.created_at < ?
		ORDER BY m.name, pm.id
	`
	medicines := []*model.PrescriptionMedicine{}
	if err := selectAll(ctx, r.q, &medicines, query, patientID, dates.From, dates.To); err != nil {
		return nil, wrap(err, "list prescription medicines")
	}
	return medicines, nil
}
