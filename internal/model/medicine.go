package model

import "time"

type Medicine struct {
	ID          int64   `db:"medicine_id" json:"medicine_id"`
	Name        string  `db:"name" json:"name"`
	GenericName *string `db:"generic_name" json:"generic_name,omitempty"`
	Form        *string `db:"form" json:"form,omitempty"`
	Category    *string `db:"category" json:"category,omitempty"`
}

// PrescriptionMedicine is one medicine line of a prescription. The medicine
// columns are joined in and stay nil when the catalogue row is missing.
type PrescriptionMedicine struct {
	ID             int64     `db:"id" json:"id"`
	PrescriptionID int64     `db:"prescription_id" json:"prescription_id"`
	PatientID      int64     `db:"patient_id" json:"patient_id"`
	DoctorID       *int64    `db:"doctor_id" json:"doctor_id,omitempty"`
	MedicineID     int64     `db:"medicine_id" json:"medicine_id"`
	Dosage         *string   `db:"dosage" json:"dosage"`
	Frequency      *string   `db:"frequency" json:"frequency"`
	Duration       *string   `db:"duration" json:"duration"`
	Instructions   *string   `db:"instructions" json:"instructions"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`

	MedicineName     *string `db:"medicine_name" json:"medicine_name"`
	MedicineForm     *string `db:"medicine_form" json:"medicine_form"`
	MedicineCategory *string `db:"medicine_category" json:"medicine_category"`
}

// LatestMedicines holds every medicine prescribed on the most recent
// prescription day. LatestDate is nil when the patient has none.
type LatestMedicines struct {
	PatientID  int64                   `json:"patient_id"`
	LatestDate *time.Time              `json:"latest_date"`
	Medicines  []*PrescriptionMedicine `json:"medicines"`
}

const DefaultMedicineLimit = 50

type MedicineListQuery struct {
	Limit int `form:"limit" json:"limit" binding:"omitempty,min=1,max=500"`
}

// PrescriptionListQuery bounds the listing by upload day. Both dates are
// inclusive and must be given together.
type PrescriptionListQuery struct {
	StartDate string `form:"start_date" json:"start_date" binding:"required_with=EndDate,omitempty,datetime=2006-01-02"`
	EndDate   string `form:"end_date" json:"end_date" binding:"required_with=StartDate,omitempty,datetime=2006-01-02"`
}

// Range converts the query to a half-open UTC range; ok is false when no
// bounds were given.
func (q PrescriptionListQuery) Range() (r DateRange, ok bool, err error) {
	if q.StartDate == "" && q.EndDate == "" {
		return DateRange{}, false, nil
	}
	from, err := time.Parse(time.DateOnly, q.StartDate)
	if err != nil {
		return DateRange{}, false, err
	}
	to, err := time.Parse(time.DateOnly, q.EndDate)
	if err != nil {
		return DateRange{}, false, err
	}
	return DateRange{From: from, To: to.AddDate(0, 0, 1)}, true, nil
}
