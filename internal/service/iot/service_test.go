package iot

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/capd-api/internal/model"
	"github.com/jwalitptl/capd-api/internal/repository/memory"
	apperrors "github.com/jwalitptl/capd-api/pkg/errors"
	"github.com/jwalitptl/capd-api/pkg/logger"
	"github.com/jwalitptl/capd-api/pkg/metrics"
)

var clock = time.Date(2025, time.March, 15, 9, 30, 0, 0, time.UTC)

func ptr[T any](v T) *T { return &v }

type fixture struct {
	store   *memory.Store
	devices *memory.DeviceState
	svc     *Service
	metrics *metrics.Metrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	devices := memory.NewDeviceState(time.Minute)
	m := metrics.NewMetrics(prometheus.NewRegistry(), "test")
	svc := NewService(store, devices, 0, logger.NewLogger(&logger.Config{Level: logger.ErrorLevel, Output: io.Discard}), m)
	svc.now = func() time.Time { return clock }
	return &fixture{store: store, devices: devices, svc: svc, metrics: m}
}

func unprocessableFields(t *testing.T, err error) map[string]string {
	t.Helper()
	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, apperrors.ErrUnprocessable, appErr.Code)
	require.Equal(t, 422, appErr.StatusCode())
	return appErr.Fields
}

func TestReportScaleWeight(t *testing.T) {
	tests := []struct {
		name     string
		req      model.ScaleWeightRequest
		volumeML float64
		trigger  bool
	}{
		{"above trigger", model.ScaleWeightRequest{Weight: ptr(2.2), DeviceID: "esp32"}, 2200, false},
		{"at trigger", model.ScaleWeightRequest{Weight: ptr(2.0), DeviceID: "esp32"}, 2000, true},
		{"below trigger", model.ScaleWeightRequest{Weight: ptr(0.5), DeviceID: "esp32"}, 500, true},
		{"device volume wins", model.ScaleWeightRequest{Weight: ptr(2.5), VolumeML: ptr(1900.0), DeviceID: "esp32"}, 1900, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			report, err := f.svc.ReportScaleWeight(context.Background(), &tt.req)
			require.NoError(t, err)
			assert.Equal(t, tt.volumeML, report.VolumeML)
			assert.Equal(t, tt.trigger, report.Trigger)
			assert.Equal(t, "kg", report.Unit)

			reading := f.svc.LatestWeight()
			assert.Equal(t, tt.volumeML, reading.VolumeML)
			assert.Equal(t, tt.volumeML/1_000_000, reading.VolumeKL)
			assert.True(t, reading.IsStart)

			status := f.svc.DeviceStatus()
			assert.True(t, status.Connected)
			assert.Equal(t, "esp32", status.DeviceID)
			assert.Equal(t, clock.Format(time.RFC3339), status.LastSeen)
		})
	}
}

func TestReportScaleWeight_Validation(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.ReportScaleWeight(context.Background(), &model.ScaleWeightRequest{})
	fields := unprocessableFields(t, err)
	assert.Equal(t, msgWeight, fields["weight"])
	assert.Equal(t, msgDeviceID, fields["device_id"])

	assert.Zero(t, f.svc.LatestWeight().Weight)
	assert.False(t, f.svc.DeviceStatus().Connected)
	assert.Zero(t, testutil.ToFloat64(f.metrics.ScaleReadings))
}

func TestReportScaleWeight_KeepsScaleBookkeeping(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.ReportScaleWeight(context.Background(), &model.ScaleWeightRequest{
		Weight:        ptr(1.2),
		DeviceID:      "esp32",
		InitialWeight: ptr(2.1),
		DrainedVolume: ptr(900.0),
	})
	require.NoError(t, err)

	reading := f.svc.LatestWeight()
	require.NotNil(t, reading.InitialWeight)
	require.NotNil(t, reading.DrainedVolume)
	assert.Equal(t, 2.1, *reading.InitialWeight)
	assert.Equal(t, 900.0, *reading.DrainedVolume)
}

func TestReportScaleWeight_CustomTrigger(t *testing.T) {
	f := newFixture(t)
	f.svc.drainTriggerML = 500

	report, err := f.svc.ReportScaleWeight(context.Background(), &model.ScaleWeightRequest{Weight: ptr(1.0), DeviceID: "esp32"})
	require.NoError(t, err)
	assert.False(t, report.Trigger)
}

func TestReportDrainageComplete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	fill := &model.FillSession{PatientID: ptr(int64(7)), VolumeIn: ptr(2000.0), InStarted: ptr(clock.Add(-time.Hour))}
	require.NoError(t, f.store.FillSessions().Create(ctx, fill))

	res, err := f.svc.ReportDrainageComplete(ctx, &model.DrainageCompleteRequest{
		VolumeDrained: ptr(1980.0),
		TargetVolume:  ptr(2050.0),
		Duration:      ptr(600.0),
		InID:          &fill.ID,
	})
	require.NoError(t, err)
	assert.True(t, res.SessionUpdated)

	got, err := f.store.FillSessions().Get(ctx, fill.ID)
	require.NoError(t, err)
	assert.Equal(t, 2050.0, *got.VolumeIn)
	assert.Equal(t, clock, *got.InFinished)

	completions := f.store.Completions()
	require.Len(t, completions, 1)
	assert.Equal(t, 1980.0, completions[0].VolumeDrained)
	assert.Equal(t, clock, completions[0].CompletedAt)

	// a second report keeps the finished session as it was
	stamp := clock.Add(time.Minute)
	res, err = f.svc.ReportDrainageComplete(ctx, &model.DrainageCompleteRequest{
		VolumeDrained: ptr(1000.0),
		TargetVolume:  ptr(900.0),
		Duration:      ptr(60.0),
		Timestamp:     &stamp,
		InID:          &fill.ID,
	})
	require.NoError(t, err)
	assert.False(t, res.SessionUpdated)

	got, err = f.store.FillSessions().Get(ctx, fill.ID)
	require.NoError(t, err)
	assert.Equal(t, 2050.0, *got.VolumeIn)
	require.Len(t, f.store.Completions(), 2)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.DrainageCompletions.WithLabelValues("true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.DrainageCompletions.WithLabelValues("false")))
}

func TestReportDrainageComplete_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	fill := &model.FillSession{PatientID: ptr(int64(7)), VolumeIn: ptr(2000.0), InStarted: ptr(clock.Add(-time.Hour))}
	require.NoError(t, f.store.FillSessions().Create(ctx, fill))

	tests := []struct {
		name   string
		req    model.DrainageCompleteRequest
		fields []string
	}{
		{"only in_id", model.DrainageCompleteRequest{InID: &fill.ID}, []string{"volume_drained", "target_volume", "duration"}},
		{"missing target", model.DrainageCompleteRequest{VolumeDrained: ptr(1900.0), Duration: ptr(60.0), InID: &fill.ID}, []string{"target_volume"}},
		{"negative duration", model.DrainageCompleteRequest{VolumeDrained: ptr(1900.0), TargetVolume: ptr(2000.0), Duration: ptr(-1.0), InID: &fill.ID}, []string{"duration"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.ReportDrainageComplete(ctx, &tt.req)
			fields := unprocessableFields(t, err)
			assert.Len(t, fields, len(tt.fields))
			for _, name := range tt.fields {
				assert.Contains(t, fields, name)
			}
		})
	}

	got, err := f.store.FillSessions().Get(ctx, fill.ID)
	require.NoError(t, err)
	assert.Nil(t, got.InFinished)
	assert.Equal(t, 2000.0, *got.VolumeIn)
	assert.Empty(t, f.store.Completions())
	assert.Empty(t, f.store.Events())
}

func TestReportDrainageComplete_UnknownSession(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.ReportDrainageComplete(context.Background(), &model.DrainageCompleteRequest{
		VolumeDrained: ptr(100.0),
		TargetVolume:  ptr(100.0),
		Duration:      ptr(10.0),
		InID:          ptr(int64(404)),
	})
	assert.True(t, apperrors.IsNotFound(err))
	assert.Empty(t, f.store.Completions())
	assert.Empty(t, f.store.Events())
}

func TestReportDrainageComplete_WithoutSession(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.ReportDrainageComplete(context.Background(), &model.DrainageCompleteRequest{
		VolumeDrained: ptr(1500.0),
		TargetVolume:  ptr(2000.0),
		Duration:      ptr(30.0),
	})
	require.NoError(t, err)
	assert.False(t, res.SessionUpdated)
	require.Len(t, f.store.Completions(), 1)
	assert.Nil(t, f.store.Completions()[0].InID)

	events := f.store.Events()
	require.Len(t, events, 1)
	assert.Equal(t, model.EventDrainageCompleted, events[0].EventType)
}

func TestDeviceActivity(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, model.DeviceInactive, f.svc.Activity())

	require.NoError(t, f.svc.SetActivity(&model.DeviceActivityRequest{Status: "active", DeviceID: "esp32"}))
	assert.Equal(t, model.DeviceActive, f.svc.Activity())
	assert.True(t, f.svc.DeviceStatus().Connected)

	fields := unprocessableFields(t, f.svc.SetActivity(&model.DeviceActivityRequest{Status: "paused"}))
	assert.Equal(t, msgStatus, fields["status"])
	assert.Equal(t, msgDeviceID, fields["device_id"])
	assert.Equal(t, model.DeviceActive, f.svc.Activity())
}

func TestDeviceStatus(t *testing.T) {
	f := newFixture(t)

	fields := unprocessableFields(t, f.svc.SetDeviceStatus(&model.DeviceStatusRequest{DeviceID: "esp32"}))
	assert.Equal(t, msgConnected, fields["connected"])

	require.NoError(t, f.svc.SetDeviceStatus(&model.DeviceStatusRequest{Connected: ptr(false), DeviceID: "esp32", ScaleInitialized: true}))
	status := f.svc.DeviceStatus()
	assert.False(t, status.Connected)
	assert.True(t, status.ScaleInitialized)
	assert.Equal(t, clock.Format(time.RFC3339), status.LastSeen)

	require.NoError(t, f.svc.Connect(&model.ConnectDeviceRequest{DeviceID: "esp32"}))
	status = f.svc.DeviceStatus()
	assert.True(t, status.Connected)
	assert.True(t, status.ScaleInitialized)

	require.NoError(t, f.svc.Connect(&model.ConnectDeviceRequest{DeviceID: "esp32-b"}))
	assert.False(t, f.svc.DeviceStatus().ScaleInitialized)

	unprocessableFields(t, f.svc.Connect(&model.ConnectDeviceRequest{}))
}

func TestReminders(t *testing.T) {
	f := newFixture(t)

	reminders, err := f.svc.Reminders("esp32")
	require.NoError(t, err)
	assert.Equal(t, "", reminders)

	_, err = f.svc.Reminders("")
	unprocessableFields(t, err)
}
