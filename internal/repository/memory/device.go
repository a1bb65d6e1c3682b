package memory

import (
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/jwalitptl/capd-api/internal/model"
)

const (
	keyActivity     = "device:activity"
	keyLatestWeight = "device:weight"
	keyDeviceStatus = "device:status"
)

// DeviceState keeps the latest device telemetry in process memory. Weight
// readings expire after the configured TTL; activity and connection status
// live until overwritten or the process restarts.
type DeviceState struct {
	cache *cache.Cache
}

func NewDeviceState(readingTTL time.Duration) *DeviceState {
	if readingTTL <= 0 {
		readingTTL = cache.NoExpiration
	}
	return &DeviceState{
		cache: cache.New(readingTTL, 10*time.Minute),
	}
}

func (d *DeviceState) Activity() model.DeviceActivity {
	if v, found := d.cache.Get(keyActivity); found {
		return v.(model.DeviceActivity)
	}
	return model.DeviceInactive
}

func (d *DeviceState) SetActivity(status model.DeviceActivity) {
	d.cache.Set(keyActivity, status, cache.NoExpiration)
}

func (d *DeviceState) LatestWeight() model.WeightReading {
	if v, found := d.cache.Get(keyLatestWeight); found {
		return v.(model.WeightReading)
	}
	return model.WeightReading{}
}

func (d *DeviceState) SetLatestWeight(reading model.WeightReading) {
	d.cache.Set(keyLatestWeight, reading, cache.DefaultExpiration)
}

func (d *DeviceState) DeviceStatus() model.DeviceStatus {
	if v, found := d.cache.Get(keyDeviceStatus); found {
		return v.(model.DeviceStatus)
	}
	return model.DeviceStatus{}
}

func (d *DeviceState) SetDeviceStatus(status model.DeviceStatus) {
	d.cache.Set(keyDeviceStatus, status, cache.NoExpiration)
}
