package model

import (
	"time"
)

// FillSession is one infusion of dialysate (table insolution).
type FillSession struct {
	ID              int64      `db:"in_id" json:"in_id"`
	PatientID       *int64     `db:"patient_id" json:"patient_id,omitempty"`
	Dialysate       *string    `db:"dialysate" json:"dialysate"`
	VolumeIn        *float64   `db:"volume_in" json:"volume_in"`
	Dwell           *float64   `db:"dwell" json:"dwell"`
	InStarted       *time.Time `db:"in_started" json:"in_started"`
	InFinished      *time.Time `db:"in_finished" json:"in_finished"`
	BagSerialNumber string     `db:"bag_serial_number" json:"bag_serial_number"`
}

// Open reports whether the fill still awaits completion.
func (s *FillSession) Open() bool {
	return s.InFinished == nil
}

// DrainSession is one drain of effluent (table outsolution). It is written complete.
type DrainSession struct {
	ID            int64      `db:"out_id" json:"out_id"`
	PatientID     int64      `db:"patient_id" json:"patient_id"`
	DrainStarted  *time.Time `db:"drain_started" json:"drain_started"`
	DrainFinished *time.Time `db:"drain_finished" json:"drain_finished"`
	VolumeOut     *float64   `db:"volume_out" json:"volume_out"`
	Color         string     `db:"color" json:"color"`
	Notes         string     `db:"notes" json:"notes"`
	ExitSiteImage *string    `db:"exit_site_image" json:"exit_site_image,omitempty"`
}

// ActiveFillSession is an open fill joined to its treatment.
type ActiveFillSession struct {
	InID            int64           `db:"in_id" json:"in_id"`
	InStarted       *time.Time      `db:"in_started" json:"in_started"`
	Dialysate       *string         `db:"dialysate" json:"dialysate"`
	Dwell           *float64        `db:"dwell" json:"dwell"`
	TargetVolume    *float64        `db:"target_volume" json:"target_volume"`
	TreatmentID     int64           `db:"treatment_id" json:"treatment_id"`
	TreatmentStatus TreatmentStatus `db:"treatment_status" json:"treatment_status"`
}

// DrainageCompletion is the analytics trail of device-reported drains.
type DrainageCompletion struct {
	ID              int64     `db:"id" json:"id"`
	InID            *int64    `db:"in_id" json:"in_id"`
	VolumeDrained   float64   `db:"volume_drained" json:"volume_drained"`
	TargetVolume    float64   `db:"target_volume" json:"target_volume"`
	DurationSeconds float64   `db:"duration_seconds" json:"duration_seconds"`
	CompletedAt     time.Time `db:"completed_at" json:"completed_at"`
}

type StartFillSessionRequest struct {
	PatientID       int64    `json:"patient_id" binding:"required"`
	Dialysate       string   `json:"dialysate" binding:"required,dialysate"`
	VolumeIn        float64  `json:"volume_in" binding:"gte=0"`
	Dwell           *float64 `json:"dwell"`
	BagSerialNumber string   `json:"bag_serial_number"`
}

type CompleteFillSessionRequest struct {
	ActualVolume *float64 `json:"actual_volume" binding:"required,gte=0"`
}

type CreateFillSessionRequest struct {
	PatientID       *int64     `json:"patient_id"`
	Dialysate       *string    `json:"dialysate" binding:"omitempty,dialysate"`
	VolumeIn        *float64   `json:"volume_in"`
	Dwell           *float64   `json:"dwell"`
	InStarted       *time.Time `json:"in_started"`
	InFinished      *time.Time `json:"in_finished"`
	BagSerialNumber string     `json:"bag_serial_number"`
}

type UpdateFillStartedRequest struct {
	InID      int64     `json:"in_id" binding:"required"`
	InStarted time.Time `json:"in_started" binding:"required"`
}

type UpdateFillFinishedRequest struct {
	InID       int64     `json:"in_id" binding:"required"`
	InFinished time.Time `json:"in_finished" binding:"required"`
	VolumeIn   *float64  `json:"volume_in" binding:"required"`
}

type RecordDrainSessionRequest struct {
	PatientID     int64      `json:"patient_id" binding:"required"`
	DrainStarted  *time.Time `json:"drain_started"`
	DrainFinished *time.Time `json:"drain_finished"`
	VolumeOut     *float64   `json:"volume_out"`
	Color         string     `json:"color"`
	Notes         string     `json:"notes"`
	ExitSiteImage string     `json:"exit_site_image"`
}
