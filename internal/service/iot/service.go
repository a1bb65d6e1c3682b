// Package iot ingests scale telemetry from the drain device. Device state is
// volatile; only drainage completion touches the database.
package iot

import (
	"context"
	"strconv"
	"time"

	"github.com/jwalitptl/capd-api/internal/model"
	"github.com/jwalitptl/capd-api/internal/repository"
	"github.com/jwalitptl/capd-api/internal/service"
	apperrors "github.com/jwalitptl/capd-api/pkg/errors"
	"github.com/jwalitptl/capd-api/pkg/logger"
	"github.com/jwalitptl/capd-api/pkg/metrics"
)

const (
	DefaultDrainTriggerML = 2000

	msgDeviceID  = "Device ID is required"
	msgWeight    = "Weight is required and must be numeric"
	msgStatus    = "Status is required and must be active or inactive"
	msgConnected = "Connected status is required"
	msgDrained   = "Volume drained is required and must be a non-negative number"
	msgTarget    = "Target volume is required and must be a non-negative number"
	msgDuration  = "Duration is required and must be a non-negative number"
)

type IoTService interface {
	ReportScaleWeight(ctx context.Context, req *model.ScaleWeightRequest) (*model.ScaleReport, error)
	ReportDrainageComplete(ctx context.Context, req *model.DrainageCompleteRequest) (*model.DrainageCompleteResult, error)
	Activity() model.DeviceActivity
	SetActivity(req *model.DeviceActivityRequest) error
	LatestWeight() model.WeightReading
	DeviceStatus() model.DeviceStatus
	SetDeviceStatus(req *model.DeviceStatusRequest) error
	Connect(req *model.ConnectDeviceRequest) error
	Reminders(deviceID string) (string, error)
}

type Service struct {
	store          repository.Store
	devices        repository.DeviceStateRepository
	drainTriggerML float64
	logger         *logger.Logger
	metrics        *metrics.Metrics
	now            func() time.Time
}

func NewService(store repository.Store, devices repository.DeviceStateRepository, drainTriggerML float64, log *logger.Logger, m *metrics.Metrics) *Service {
	if drainTriggerML <= 0 {
		drainTriggerML = DefaultDrainTriggerML
	}
	return &Service{
		store:          store,
		devices:        devices,
		drainTriggerML: drainTriggerML,
		logger:         log,
		metrics:        m,
		now:            time.Now,
	}
}

// ReportScaleWeight keeps the latest reading and reports whether the measured
// volume has dropped to the drain trigger.
func (s *Service) ReportScaleWeight(ctx context.Context, req *model.ScaleWeightRequest) (*model.ScaleReport, error) {
	fields := map[string]string{}
	if req.Weight == nil {
		fields["weight"] = msgWeight
	}
	if req.DeviceID == "" {
		fields["device_id"] = msgDeviceID
	}
	if len(fields) > 0 {
		return nil, apperrors.NewUnprocessable("validation failed", fields)
	}

	weight := *req.Weight
	volumeML := weight * 1000
	if req.VolumeML != nil {
		volumeML = *req.VolumeML
	}
	volumeKL := volumeML / 1_000_000
	if req.VolumeKL != nil {
		volumeKL = *req.VolumeKL
	}
	isStart := weight > 0
	if req.IsStart != nil {
		isStart = *req.IsStart
	}

	now := s.now()
	s.devices.SetLatestWeight(model.WeightReading{
		Weight:    weight,
		VolumeML:  volumeML,
		VolumeKL:  volumeKL,
		Timestamp: now.Format(time.RFC3339),
		IsStart:   isStart,
		DeviceID:  req.DeviceID,

		InitialWeight: req.InitialWeight,
		DrainedVolume: req.DrainedVolume,
	})
	s.touch(req.DeviceID, now)

	trigger := volumeML <= s.drainTriggerML
	s.metrics.ScaleReadings.Inc()
	if trigger {
		s.metrics.ScaleTriggers.Inc()
	}
	s.logger.Debug("Scale reading", "device_id", req.DeviceID, "weight", weight, "volume_ml", volumeML, "trigger", trigger)

	return &model.ScaleReport{Weight: weight, Unit: "kg", VolumeML: volumeML, Trigger: trigger}, nil
}

// ReportDrainageComplete closes the correlated fill session with the target
// volume and appends the analytics row, in one transaction. A fill session
// that is already finished is left untouched.
func (s *Service) ReportDrainageComplete(ctx context.Context, req *model.DrainageCompleteRequest) (*model.DrainageCompleteResult, error) {
	fields := map[string]string{}
	if req.VolumeDrained == nil || *req.VolumeDrained < 0 {
		fields["volume_drained"] = msgDrained
	}
	if req.TargetVolume == nil || *req.TargetVolume < 0 {
		fields["target_volume"] = msgTarget
	}
	if req.Duration == nil || *req.Duration < 0 {
		fields["duration"] = msgDuration
	}
	if len(fields) > 0 {
		return nil, apperrors.NewUnprocessable("validation failed", fields)
	}
	volumeDrained, targetVolume, duration := *req.VolumeDrained, *req.TargetVolume, *req.Duration

	now := s.now()
	completedAt := now
	if req.Timestamp != nil && !req.Timestamp.IsZero() {
		completedAt = *req.Timestamp
	}

	updated := false
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		if req.InID != nil {
			var err error
			updated, err = tx.FillSessions().Complete(ctx, *req.InID, now, targetVolume)
			if err != nil {
				return err
			}
			if !updated {
				if _, err := tx.FillSessions().Get(ctx, *req.InID); err != nil {
					return err
				}
			} else if err := service.Emit(ctx, tx, model.EventFillSessionCompleted, map[string]interface{}{
				"in_id":        *req.InID,
				"volume_in":    targetVolume,
				"completed_at": now,
			}, now); err != nil {
				return err
			}
		}

		completion := &model.DrainageCompletion{
			InID:            req.InID,
			VolumeDrained:   volumeDrained,
			TargetVolume:    targetVolume,
			DurationSeconds: duration,
			CompletedAt:     completedAt,
		}
		if err := tx.DrainageCompletions().Create(ctx, completion); err != nil {
			return err
		}

		return service.Emit(ctx, tx, model.EventDrainageCompleted, map[string]interface{}{
			"completion_id":   completion.ID,
			"in_id":           req.InID,
			"volume_drained":  volumeDrained,
			"target_volume":   targetVolume,
			"duration":        duration,
			"session_updated": updated,
		}, now)
	})
	if err != nil {
		return nil, service.StoreError(err, "fill session")
	}

	if updated {
		s.metrics.FillSessionsCompleted.Inc()
	}
	s.metrics.DrainageCompletions.WithLabelValues(strconv.FormatBool(updated)).Inc()
	s.logger.Info("Drainage completed",
		"in_id", req.InID,
		"volume_drained", volumeDrained,
		"target_volume", targetVolume,
		"session_updated", updated)

	return &model.DrainageCompleteResult{
		InID:           req.InID,
		VolumeDrained:  volumeDrained,
		TargetVolume:   targetVolume,
		Duration:       duration,
		SessionUpdated: updated,
		CompletionTime: now,
	}, nil
}

func (s *Service) Activity() model.DeviceActivity {
	return s.devices.Activity()
}

func (s *Service) SetActivity(req *model.DeviceActivityRequest) error {
	fields := map[string]string{}
	status := model.DeviceActivity(req.Status)
	if status != model.DeviceActive && status != model.DeviceInactive {
		fields["status"] = msgStatus
	}
	if req.DeviceID == "" {
		fields["device_id"] = msgDeviceID
	}
	if len(fields) > 0 {
		return apperrors.NewUnprocessable("validation failed", fields)
	}

	s.devices.SetActivity(status)
	s.touch(req.DeviceID, s.now())
	s.logger.Info("Device treatment status changed", "device_id", req.DeviceID, "status", string(status))
	return nil
}

func (s *Service) LatestWeight() model.WeightReading {
	return s.devices.LatestWeight()
}

func (s *Service) DeviceStatus() model.DeviceStatus {
	return s.devices.DeviceStatus()
}

func (s *Service) SetDeviceStatus(req *model.DeviceStatusRequest) error {
	fields := map[string]string{}
	if req.Connected == nil {
		fields["connected"] = msgConnected
	}
	if req.DeviceID == "" {
		fields["device_id"] = msgDeviceID
	}
	if len(fields) > 0 {
		return apperrors.NewUnprocessable("validation failed", fields)
	}

	lastSeen := req.LastSeen
	if lastSeen == "" {
		lastSeen = s.now().Format(time.RFC3339)
	}
	s.devices.SetDeviceStatus(model.DeviceStatus{
		Connected:        *req.Connected,
		DeviceID:         req.DeviceID,
		LastSeen:         lastSeen,
		ScaleInitialized: req.ScaleInitialized,
	})
	s.logger.Info("Device status updated", "device_id", req.DeviceID, "connected", *req.Connected)
	return nil
}

func (s *Service) Connect(req *model.ConnectDeviceRequest) error {
	if req.DeviceID == "" {
		return apperrors.NewUnprocessable("validation failed", map[string]string{"device_id": msgDeviceID})
	}
	s.touch(req.DeviceID, s.now())
	s.logger.Info("Device connected", "device_id", req.DeviceID)
	return nil
}

// Reminders are not scheduled on the device; the empty string means none.
func (s *Service) Reminders(deviceID string) (string, error) {
	if deviceID == "" {
		return "", apperrors.NewUnprocessable("validation failed", map[string]string{"device_id": msgDeviceID})
	}
	return "", nil
}

// touch marks the device connected and seen now. The scale flag survives
// while the same device keeps reporting.
func (s *Service) touch(deviceID string, now time.Time) {
	prev := s.devices.DeviceStatus()
	s.devices.SetDeviceStatus(model.DeviceStatus{
		Connected:        true,
		DeviceID:         deviceID,
		LastSeen:         now.Format(time.RFC3339),
		ScaleInitialized: prev.DeviceID == deviceID && prev.ScaleInitialized,
	})
}
