package model

import "time"

type DeviceActivity string

const (
	DeviceActive   DeviceActivity = "active"
	DeviceInactive DeviceActivity = "inactive"
)

type DeviceStatus struct {
	Connected        bool   `json:"connected"`
	DeviceID         string `json:"device_id"`
	LastSeen         string `json:"last_seen"`
	ScaleInitialized bool   `json:"scale_initialized"`
}

type WeightReading struct {
	Weight    float64 `json:"weight"`
	VolumeML  float64 `json:"volume_ml"`
	VolumeKL  float64 `json:"volume_kl"`
	Timestamp string  `json:"timestamp,omitempty"`
	IsStart   bool    `json:"is_start"`
	DeviceID  string  `json:"device_id,omitempty"`

	// Scale-side bookkeeping, passed through when the device sends it.
	InitialWeight *float64 `json:"initial_weight,omitempty"`
	DrainedVolume *float64 `json:"drained_volume,omitempty"`
}

// ScaleReport is the drain-trigger signal derived from one weight reading.
type ScaleReport struct {
	Weight   float64 `json:"weight"`
	Unit     string  `json:"unit"`
	VolumeML float64 `json:"volume_ml"`
	Trigger  bool    `json:"trigger"`
}

type ScaleWeightRequest struct {
	Weight        *float64 `json:"weight"`
	DeviceID      string   `json:"device_id"`
	VolumeML      *float64 `json:"volume_ml"`
	VolumeKL      *float64 `json:"volume_kl"`
	IsStart       *bool    `json:"is_start"`
	InitialWeight *float64 `json:"initial_weight"`
	DrainedVolume *float64 `json:"drained_volume"`
}

type DeviceActivityRequest struct {
	Status   string `json:"status"`
	DeviceID string `json:"device_id"`
}

type DeviceStatusRequest struct {
	Connected        *bool  `json:"connected"`
	DeviceID         string `json:"device_id"`
	LastSeen         string `json:"last_seen"`
	ScaleInitialized bool   `json:"scale_initialized"`
}

type ConnectDeviceRequest struct {
	DeviceID string `json:"device_id"`
}

type DrainageCompleteRequest struct {
	VolumeDrained *float64   `json:"volume_drained"`
	TargetVolume  *float64   `json:"target_volume"`
	Duration      *float64   `json:"duration"`
	Timestamp     *time.Time `json:"timestamp"`
	InID          *int64     `json:"in_id"`
}

type DrainageCompleteResult struct {
	InID           *int64    `json:"in_id"`
	VolumeDrained  float64   `json:"volume_drained"`
	TargetVolume   float64   `json:"target_volume"`
	Duration       float64   `json:"duration"`
	SessionUpdated bool      `json:"session_updated"`
	CompletionTime time.Time `json:"completion_time"`
}
