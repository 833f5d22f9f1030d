package heartrate

import (
	"testing"
	"time"
)

func TestGetHeartRateFreshReading(t *testing.T) {
	m := New()
	m.UpdateHeartRate(142, SourceBLE)
	if got := m.GetHeartRate(); got != 142 {
		t.Errorf("GetHeartRate() = %d, want 142", got)
	}
}

func TestGetHeartRateNoReading(t *testing.T) {
	m := New()
	if got := m.GetHeartRate(); got != 0 {
		t.Errorf("GetHeartRate() = %d, want 0 before any reading", got)
	}
}

func TestGetHeartRateStaleReading(t *testing.T) {
	m := New()
	m.UpdateHeartRate(142, SourceBLE)
	m.heartRateAt = time.Now().Add(-staleAfter - time.Second)
	if got := m.GetHeartRate(); got != 0 {
		t.Errorf("GetHeartRate() = %d, want 0 once the reading has gone stale", got)
	}
}

func TestInjectHeartRatePrefersRower(t *testing.T) {
	m := New()
	m.UpdateHeartRate(142, SourceBLE)
	if got := m.InjectHeartRate(128); got != 128 {
		t.Errorf("InjectHeartRate(128) = %d, want the rower's own 128", got)
	}
}

func TestInjectHeartRateFillsZero(t *testing.T) {
	m := New()
	m.UpdateHeartRate(142, SourceBLE)
	if got := m.InjectHeartRate(0); got != 142 {
		t.Errorf("InjectHeartRate(0) = %d, want 142 from the monitor", got)
	}
}

// TestInjectHeartRateIdempotent: injecting twice yields the same result as
// injecting once — the injection has no side effects on the monitor.
func TestInjectHeartRateIdempotent(t *testing.T) {
	m := New()
	m.UpdateHeartRate(142, SourceANT)
	first := m.InjectHeartRate(0)
	second := m.InjectHeartRate(first)
	if first != second {
		t.Errorf("repeated injection diverged: %d then %d", first, second)
	}
}

func TestSnapshotCarriesMetadata(t *testing.T) {
	m := New()
	m.UpdateHeartRate(95, SourceBLE)
	m.UpdateDeviceInfo("Polar", "H10", "chest")
	m.UpdateContactAndBattery(true, 80)

	snap := m.Snapshot()
	if snap.HeartRate != 95 || snap.Source != SourceBLE {
		t.Errorf("unexpected reading in snapshot: %+v", snap)
	}
	if snap.Manufacturer != "Polar" || snap.Model != "H10" || snap.BodySensorLocation != "chest" {
		t.Errorf("device info not carried: %+v", snap)
	}
	if !snap.SkinContact || snap.BatteryLevel != 80 {
		t.Errorf("contact/battery not carried: %+v", snap)
	}
}
