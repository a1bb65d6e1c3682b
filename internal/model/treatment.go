package model

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"
)

type TreatmentStatus string

const (
	TreatmentInProgress TreatmentStatus = "in-progress"
	TreatmentCompleted  TreatmentStatus = "completed"

	// TreatmentOngoing is the legacy spelling of TreatmentInProgress.
	TreatmentOngoing TreatmentStatus = "ongoing"
)

// ParseTreatmentStatus folds the legacy alias onto in-progress.
func ParseTreatmentStatus(s string) (TreatmentStatus, bool) {
	switch TreatmentStatus(strings.ToLower(strings.TrimSpace(s))) {
	case TreatmentInProgress, TreatmentOngoing:
		return TreatmentInProgress, true
	case TreatmentCompleted:
		return TreatmentCompleted, true
	}
	return "", false
}

func (s TreatmentStatus) Completed() bool {
	return s == TreatmentCompleted
}

func (s *TreatmentStatus) Scan(src interface{}) error {
	var raw string
	switch v := src.(type) {
	case nil:
		*s = ""
		return nil
	case string:
		raw = v
	case []byte:
		raw = string(v)
	default:
		return fmt.Errorf("cannot scan %T into TreatmentStatus", src)
	}
	if parsed, ok := ParseTreatmentStatus(raw); ok {
		*s = parsed
		return nil
	}
	*s = TreatmentStatus(raw)
	return nil
}

func (s TreatmentStatus) Value() (driver.Value, error) {
	if parsed, ok := ParseTreatmentStatus(string(s)); ok {
		return string(parsed), nil
	}
	return string(s), nil
}

// Treatment binds a fill session and, once drained, a drain session.
type Treatment struct {
	ID              int64           `db:"treatment_id" json:"treatment_id"`
	PatientID       int64           `db:"patient_id" json:"patient_id"`
	InID            *int64          `db:"in_id" json:"in_id"`
	OutID           *int64          `db:"out_id" json:"out_id"`
	Status          TreatmentStatus `db:"treatment_status" json:"treatment_status"`
	Balance         float64         `db:"balances" json:"balance"`
	TreatmentDate   time.Time       `db:"treatment_date" json:"treatment_date"`
	BagSerialNumber string          `db:"bag_serial_number" json:"bag_serial_number"`
	SolutionImage   *string         `db:"solution_image" json:"solution_image,omitempty"`
	DryNight        bool            `db:"dry_night" json:"dry_night"`
	Timestamps
}

// TreatmentDetail is a treatment joined to both of its sessions.
type TreatmentDetail struct {
	TreatmentID     int64           `db:"treatment_id"`
	PatientID       int64           `db:"patient_id"`
	Status          TreatmentStatus `db:"treatment_status"`
	Balance         float64         `db:"balances"`
	TreatmentDate   time.Time       `db:"treatment_date"`
	BagSerialNumber string          `db:"bag_serial_number"`
	InStarted       *time.Time      `db:"in_started"`
	InFinished      *time.Time      `db:"in_finished"`
	VolumeIn        *float64        `db:"volume_in"`
	Dialysate       *string         `db:"dialysate"`
	DrainStarted    *time.Time      `db:"drain_started"`
	DrainFinished   *time.Time      `db:"drain_finished"`
	VolumeOut       *float64        `db:"volume_out"`
	Color           *string         `db:"color"`
	Notes           *string         `db:"notes"`
}

// HasVolumes reports whether both sides of the exchange were measured.
func (d *TreatmentDetail) HasVolumes() bool {
	return d.VolumeIn != nil && d.VolumeOut != nil
}

// FluidBalance recomputes the balance from the session volumes.
func (d *TreatmentDetail) FluidBalance() FluidBalance {
	if !d.HasVolumes() {
		return FluidBalance(d.Balance)
	}
	return NewFluidBalance(*d.VolumeIn, *d.VolumeOut)
}

func (d *TreatmentDetail) ColorText() string {
	if d.Color == nil {
		return ""
	}
	return *d.Color
}

// TreatmentFilter narrows TreatmentDetail listings.
type TreatmentFilter struct {
	PatientID      int64
	Status         TreatmentStatus
	Dates          *DateRange
	RequireVolumes bool
	Newest         bool
	Limit          int
}

type CreateTreatmentRequest struct {
	PatientID       int64    `json:"patient_id" binding:"required"`
	InID            *int64   `json:"in_id"`
	OutID           *int64   `json:"out_id"`
	Status          string   `json:"treatment_status"`
	Balance         *float64 `json:"balance"`
	TreatmentDate   string   `json:"treatment_date"`
	BagSerialNumber string   `json:"bag_serial_number"`
	SolutionImage   *string  `json:"solution_image"`
	DryNight        bool     `json:"dry_night"`
}

type FinishTreatmentRequest struct {
	TreatmentID int64    `json:"treatment_id" binding:"required"`
	VolumeIn    *float64 `json:"volume_in"`
	Dialysate   *string  `json:"dialysate" binding:"omitempty,dialysate"`
	Dwell       *float64 `json:"dwell"`
	VolumeOut   *float64 `json:"volume_out" binding:"required"`
	Color       string   `json:"color"`
	Notes       string   `json:"notes"`
}

type AttachDrainRequest struct {
	OutID int64 `json:"out_id" binding:"required"`
}
