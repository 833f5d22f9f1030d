// Package heartrate tracks the most recent heart-rate reading from
// whichever source is currently supplying one, and injects it into rower
// telemetry when the S4's own chest-strap receiver isn't reporting a BPM.
package heartrate

import (
	"sync"
	"time"
)

// staleAfter is how long a reading remains usable before GetHeartRate
// reports it as stale (0 BPM). It applies to every reading stored through
// UpdateHeartRate, whatever its source; the S4's own heart_rate register
// reaches snapshots through the rower aggregator and is not gated here.
const staleAfter = 10 * time.Second

// Source names where a BPM reading originated, for diagnostics and for
// choosing which source's battery/contact metadata to surface.
type Source string

const (
	SourceRower    Source = "rower"
	SourceBLE      Source = "ble"
	SourceANT      Source = "ant"
	SourceUnknown  Source = "unknown"
)

// Monitor holds the latest known heart-rate reading and associated BLE HRM
// metadata, gated by a freshness timeout so a strap that has gone out of
// range doesn't leave a stale BPM displayed forever.
type Monitor struct {
	mu sync.Mutex

	heartRate   int
	heartRateAt time.Time
	source      Source

	manufacturer       string
	model              string
	bodySensorLocation string
	skinContact        bool
	batteryLevel       int
}

// New returns an empty Monitor.
func New() *Monitor {
	return &Monitor{source: SourceUnknown}
}

// UpdateHeartRate records a new BPM reading from the given source.
func (m *Monitor) UpdateHeartRate(bpm int, source Source) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.heartRate = bpm
	m.heartRateAt = time.Now()
	m.source = source
}

// UpdateDeviceInfo records static/slow-changing BLE HRM characteristics.
func (m *Monitor) UpdateDeviceInfo(manufacturer, model, bodySensorLocation string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.manufacturer = manufacturer
	m.model = model
	m.bodySensorLocation = bodySensorLocation
}

// UpdateContactAndBattery records skin-contact and battery telemetry some
// straps report alongside BPM.
func (m *Monitor) UpdateContactAndBattery(skinContact bool, batteryLevel int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.skinContact = skinContact
	m.batteryLevel = batteryLevel
}

// GetHeartRate returns the current BPM, or 0 if no reading has ever arrived
// or the most recent one is older than staleAfter.
func (m *Monitor) GetHeartRate() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.heartRate <= 0 {
		return 0
	}
	if time.Since(m.heartRateAt) > staleAfter {
		return 0
	}
	return m.heartRate
}

// Snapshot is the read-only view of a Monitor's state exposed to
// telemetry consumers.
type Snapshot struct {
	HeartRate          int
	Source             Source
	Manufacturer       string
	Model              string
	BodySensorLocation string
	SkinContact        bool
	BatteryLevel       int
}

// Snapshot returns the monitor's current state as a value, applying the
// same freshness gate as GetHeartRate.
func (m *Monitor) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	hr := m.heartRate
	if hr > 0 && time.Since(m.heartRateAt) > staleAfter {
		hr = 0
	}
	return Snapshot{
		HeartRate:          hr,
		Source:             m.source,
		Manufacturer:       m.manufacturer,
		Model:              m.model,
		BodySensorLocation: m.bodySensorLocation,
		SkinContact:        m.skinContact,
		BatteryLevel:       m.batteryLevel,
	}
}

// InjectHeartRate idempotently fills heartRateBPM with the monitor's
// current reading, but only when the rower's own telemetry reports zero —
// the S4's chest-strap receiver always takes precedence over an external
// source when it is itself reporting a live BPM.
func (m *Monitor) InjectHeartRate(heartRateBPM int) int {
	if heartRateBPM > 0 {
		return heartRateBPM
	}
	return m.GetHeartRate()
}
