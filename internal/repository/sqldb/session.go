package sqldb

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/capd-api/internal/model"
)

type fillSessionRepository struct {
	q sqlx.ExtContext
}

const fillSessionColumns = `in_id, patient_id, dialysate, volume_in, dwell, in_started, in_finished, bag_serial_number`

func (r *fillSessionRepository) Create(ctx context.Context, s *model.FillSession) error {
	query := `
		INSERT INTO insolution (patient_id, dialysate, volume_in, dwell, in_started, in_finished, bag_serial_number)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	id, err := insert(ctx, r.q, query, "in_id",
		s.PatientID,
		s.Dialysate,
		s.VolumeIn,
		s.Dwell,
		s.InStarted,
		s.InFinished,
		s.BagSerialNumber,
	)
	if err != nil {
		return wrap(err, "create fill session")
	}
	s.ID = id
	return nil
}

func (r *fillSessionRepository) Get(ctx context.Context, id int64) (*model.FillSession, error) {
	query := `SELECT ` + fillSessionColumns + ` FROM insolution WHERE in_id = ?`
	var s model.FillSession
	if err := get(ctx, r.q, &s, query, id); err != nil {
		return nil, wrap(err, "get fill session")
	}
	return &s, nil
}

func (r *fillSessionRepository) LatestByPatient(ctx context.Context, patientID int64) (*model.FillSession, error) {
	query := `SELECT ` + fillSessionColumns + `
		FROM insolution
		WHERE patient_id = ?
		ORDER BY in_started DESC, in_id DESC
		LIMIT 1
	`
	var s model.FillSession
	if err := get(ctx, r.q, &s, query, patientID); err != nil {
		return nil, wrap(err, "get latest fill session")
	}
	return &s, nil
}

func (r *fillSessionRepository) Complete(ctx context.Context, id int64, finishedAt time.Time, volumeIn float64) (bool, error) {
	query := `UPDATE insolution SET in_finished = ?, volume_in = ? WHERE in_id = ? AND in_finished IS NULL`
	res, err := r.q.ExecContext(ctx, r.q.Rebind(query), finishedAt, volumeIn, id)
	if err != nil {
		return false, wrap(err, "complete fill session")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, wrap(err, "complete fill session")
	}
	return n > 0, nil
}

func (r *fillSessionRepository) Finish(ctx context.Context, s *model.FillSession) error {
	query := `
		UPDATE insolution
		SET dialysate = ?, volume_in = ?, dwell = ?, in_finished = ?
		WHERE in_id = ?
	`
	return wrap(execOne(ctx, r.q, query, s.Dialysate, s.VolumeIn, s.Dwell, s.InFinished, s.ID), "finish fill session")
}

func (r *fillSessionRepository) UpdateStarted(ctx context.Context, id int64, startedAt time.Time) error {
	query := `UPDATE insolution SET in_started = ? WHERE in_id = ?`
	return wrap(execOne(ctx, r.q, query, startedAt, id), "update fill start")
}

func (r *fillSessionRepository) UpdateFinished(ctx context.Context, id int64, finishedAt time.Time, volumeIn float64) error {
	query := `UPDATE insolution SET in_finished = ?, volume_in = ? WHERE in_id = ?`
	return wrap(execOne(ctx, r.q, query, finishedAt, volumeIn, id), "update fill finish")
}

func (r *fillSessionRepository) ActiveByPatient(ctx context.Context, patientID int64) (*model.ActiveFillSession, error) {
	query := `
		SELECT i.in_id, i.in_started, i.dialysate, i.dwell, i.volume_in AS target_volume,
			t.treatment_id, t.treatment_status
		FROM insolution i
		JOIN treatment t ON t.in_id = i.in_id
		WHERE t.patient_id = ?
			AND i.in_finished IS NULL
			AND t.treatment_status IN (?, ?)
		ORDER BY i.in_started DESC, i.in_id DESC
		LIMIT 1
	`
	var s model.ActiveFillSession
	err := get(ctx, r.q, &s, query, patientID, string(model.TreatmentInProgress), string(model.TreatmentOngoing))
	if err != nil {
		return nil, wrap(err, "get active fill session")
	}
	return &s, nil
}

type drainSessionRepository struct {
	q sqlx.ExtContext
}

func (r *drainSessionRepository) Create(ctx context.Context, s *model.DrainSession) error {
	query := `
		INSERT INTO outsolution (patient_id, drain_started, drain_finished, volume_out, color, notes, exit_site_image)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	id, err := insert(ctx, r.q, query, "out_id",
		s.PatientID,
		s.DrainStarted,
		s.DrainFinished,
		s.VolumeOut,
		s.Color,
		s.Notes,
		s.ExitSiteImage,
	)
	if err != nil {
		return wrap(err, "create drain session")
	}
	s.ID = id
	return nil
}

func (r *drainSessionRepository) Get(ctx context.Context, id int64) (*model.DrainSession, error) {
	query := `
		SELECT out_id, patient_id, drain_started, drain_finished, volume_out, color, notes, exit_site_image
		FROM outsolution
		WHERE out_id = ?
	`
	var s model.DrainSession
	if err := get(ctx, r.q, &s, query, id); err != nil {
		return nil, wrap(err, "get drain session")
	}
	return &s, nil
}

type drainageCompletionRepository struct {
	q sqlx.ExtContext
}

func (r *drainageCompletionRepository) Create(ctx context.Context, c *model.DrainageCompletion) error {
	query := `
		INSERT INTO drainage_completions (in_id, volume_drained, target_volume, duration_seconds, completed_at)
		VALUES (?, ?, ?, ?, ?)
	`
	id, err := insert(ctx, r.q, query, "id",
		c.InID,
		c.VolumeDrained,
		c.TargetVolume,
		c.DurationSeconds,
		c.CompletedAt,
	)
	if err != nil {
		return wrap(err, "record drainage completion")
	}
	c.ID = id
	return nil
}
