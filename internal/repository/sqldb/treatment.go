package sqldb

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/capd-api/internal/model"
)

const dateLayout = "2006-01-02"

type treatmentRepository struct {
	q sqlx.ExtContext
}

func (r *treatmentRepository) Create(ctx context.Context, t *model.Treatment) error {
	now := time.Now()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = t.CreatedAt
	}

	query := `
		INSERT INTO treatment (
			patient_id, in_id, out_id, treatment_status, balances, treatment_date,
			bag_serial_number, solution_image, dry_night, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	id, err := insert(ctx, r.q, query, "treatment_id",
		t.PatientID,
		t.InID,
		t.OutID,
		t.Status,
		t.Balance,
		t.TreatmentDate.Format(dateLayout),
		t.BagSerialNumber,
		t.SolutionImage,
		t.DryNight,
		t.CreatedAt,
		t.UpdatedAt,
	)
	if err != nil {
		return wrap(err, "create treatment")
	}
	t.ID = id
	return nil
}

func (r *treatmentRepository) Get(ctx context.Context, id int64) (*model.Treatment, error) {
	query := `
		SELECT treatment_id, patient_id, in_id, out_id, treatment_status, balances, treatment_date,
			bag_serial_number, solution_image, dry_night, created_at, updated_at
		FROM treatment
		WHERE treatment_id = ?
	`
	var t model.Treatment
	if err := get(ctx, r.q, &t, query, id); err != nil {
		return nil, wrap(err, "get treatment")
	}
	return &t, nil
}

func (r *treatmentRepository) Complete(ctx context.Context, id int64, outID int64, balance model.FluidBalance, updatedAt time.Time) error {
	query := `
		UPDATE treatment
		SET out_id = ?, balances = ?, treatment_status = ?, updated_at = ?
		WHERE treatment_id = ?
	`
	err := execOne(ctx, r.q, query, outID, balance.Float(), string(model.TreatmentCompleted), updatedAt, id)
	return wrap(err, "complete treatment")
}

func (r *treatmentRepository) ListDetails(ctx context.Context, f model.TreatmentFilter) ([]*model.TreatmentDetail, error) {
	var (
		b    strings.Builder
		args []interface{}
	)
	b.WriteString(`
		SELECT t.treatment_id, t.patient_id, t.treatment_status, t.balances, t.treatment_date,
			t.bag_serial_number,
			i.in_started, i.in_finished, i.volume_in, i.dialysate,
			o.drain_started, o.drain_finished, o.volume_out, o.color, o.notes
		FROM treatment t
		LEFT JOIN insolution i ON i.in_id = t.in_id
		LEFT JOIN outsolution o ON o.out_id = t.out_id
		WHERE t.patient_id = ?`)
	args = append(args, f.PatientID)

	switch f.Status {
	case "":
	case model.TreatmentInProgress, model.TreatmentOngoing:
		b.WriteString(` AND t.treatment_status IN (?, ?)`)
		args = append(args, string(model.TreatmentInProgress), string(model.TreatmentOngoing))
	default:
		b.WriteString(` AND t.treatment_status = ?`)
		args = append(args, string(f.Status))
	}
	if f.Dates != nil {
		b.WriteString(` AND t.treatment_date >= ? AND t.treatment_date < ?`)
		args = append(args, f.Dates.From.Format(dateLayout), f.Dates.To.Format(dateLayout))
	}
	if f.RequireVolumes {
		b.WriteString(` AND i.volume_in IS NOT NULL AND o.volume_out IS NOT NULL`)
	}
	if f.Newest {
		b.WriteString(` ORDER BY t.treatment_date DESC, t.treatment_id DESC`)
	} else {
		b.WriteString(` ORDER BY t.treatment_date ASC, t.treatment_id ASC`)
	}
	if f.Limit > 0 {
		fmt.Fprintf(&b, ` LIMIT %d`, f.Limit)
	}

	details := []*model.TreatmentDetail{}
	if err := selectAll(ctx, r.q, &details, b.String(), args...); err != nil {
		return nil, wrap(err, "list treatments")
	}
	return details, nil
}

func (r *treatmentRepository) CountCompleted(ctx context.Context, patientID int64, dates model.DateRange) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM treatment
		WHERE patient_id = ?
			AND treatment_status = ?
			AND treatment_date >= ? AND treatment_date < ?
	`
	var n int
	err := get(ctx, r.q, &n, query, patientID, string(model.TreatmentCompleted),
		dates.From.Format(dateLayout), dates.To.Format(dateLayout))
	if err != nil {
		return 0, wrap(err, "count completed treatments")
	}
	return n, nil
}

func (r *treatmentRepository) TakenByDialysate(ctx context.Context, userID int64, dates model.DateRange) (map[string]int, error) {
	query := `
		SELECT i.dialysate AS dialysate, COUNT(*) AS taken
		FROM treatment t
		JOIN patients p ON p.patient_id = t.patient_id
		JOIN insolution i ON i.in_id = t.in_id
		WHERE p.user_id = ?
			AND t.treatment_status = ?
			AND t.treatment_date >= ? AND t.treatment_date < ?
		GROUP BY i.dialysate
	`
	var rows []struct {
		Dialysate *string `db:"dialysate"`
		Taken     int     `db:"taken"`
	}
	err := selectAll(ctx, r.q, &rows, query, userID, string(model.TreatmentCompleted),
		dates.From.Format(dateLayout), dates.To.Format(dateLayout))
	if err != nil {
		return nil, wrap(err, "count treatments by dialysate")
	}

	taken := make(map[string]int, len(rows))
	for _, row := range rows {
		if row.Dialysate == nil {
			continue
		}
		taken[*row.Dialysate] += row.Taken
	}
	return taken, nil
}
