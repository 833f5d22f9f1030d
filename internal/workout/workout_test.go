package workout

import (
	"testing"

	"github.com/elp3dr/wrowfusion/internal/s4"
)

func TestBuilderIntervalWorkout(t *testing.T) {
	b := NewBuilder()
	b.UpdateIfFlagsChanged(uint16(ModeWorkoutDistanceInterval))

	events := []s4.Event{
		{Type: s4.EventMemoryRead, Field: "workout_intervals", Value: 5}, // -1 adjustment -> 4
		{Type: s4.EventMemoryRead, Field: "distance1_disp_flags", Value: int64(DistanceUnitMetres)},
		{Type: s4.EventMemoryRead, Field: "workout_work1", Value: 500},
		{Type: s4.EventMemoryRead, Field: "workout_rest1", Value: 60},
		{Type: s4.EventMemoryRead, Field: "workout_work2", Value: 500},
		{Type: s4.EventMemoryRead, Field: "workout_rest2", Value: 60},
	}
	for _, ev := range events {
		b.UpdateFromEvent(ev)
	}

	ok, err := b.IsValid()
	if !ok {
		t.Fatalf("expected valid workout, got error: %v", err)
	}

	def := b.Definition()
	if def.Intervals != 4 {
		t.Errorf("Intervals = %d, want 4", def.Intervals)
	}
	if def.Units != DistanceUnitMetres {
		t.Errorf("Units = %v, want metres", def.Units)
	}
	if def.Type != TypeDistanceInterval {
		t.Errorf("Type = %v, want distance_interval", def.Type)
	}
	if def.WorkTargets[1] != 500 || def.RestDurations[2] != 60 {
		t.Errorf("unexpected targets: %+v", def)
	}
}

// TestBuilderDistanceNeedsUnits mirrors the zone builder's unit gate: the
// work/rest registers can arrive before distance1_disp_flags, and a
// distance workout must stay invalid (so that register keeps being polled)
// until the unit resolves.
func TestBuilderDistanceNeedsUnits(t *testing.T) {
	b := NewBuilder()
	b.UpdateIfFlagsChanged(uint16(ModeWorkoutDistance))
	b.UpdateFromEvent(s4.Event{Type: s4.EventMemoryRead, Field: "workout_work1", Value: 2000})

	if ok, _ := b.IsValid(); ok {
		t.Fatal("distance workout without a resolved unit must be invalid")
	}

	b.UpdateFromEvent(s4.Event{Type: s4.EventMemoryRead, Field: "distance1_disp_flags", Value: int64(DistanceUnitKM)})
	if ok, err := b.IsValid(); !ok {
		t.Fatalf("expected valid distance workout once units resolve, got: %v", err)
	}
	if b.Definition().Units != DistanceUnitKM {
		t.Errorf("Units = %v, want km", b.Definition().Units)
	}
}

func TestBuilderIgnoresUnchangedFlags(t *testing.T) {
	b := NewBuilder()
	b.UpdateIfFlagsChanged(uint16(ModeWorkoutDuration))
	b.UpdateFromEvent(s4.Event{Type: s4.EventMemoryRead, Field: "workout_work1", Value: 1000})

	// Same flags again: must not reset accumulated state.
	b.UpdateIfFlagsChanged(uint16(ModeWorkoutDuration))
	if b.def.WorkTargets[1] != 1000 {
		t.Fatalf("unchanged flags wiped accumulated state: %+v", b.def)
	}
}

func TestBuilderInvalidMismatchedCount(t *testing.T) {
	b := NewBuilder()
	b.UpdateIfFlagsChanged(uint16(ModeWorkoutDurationInterval))
	b.UpdateFromEvent(s4.Event{Type: s4.EventMemoryRead, Field: "workout_intervals", Value: 3}) // -> 2
	b.UpdateFromEvent(s4.Event{Type: s4.EventMemoryRead, Field: "workout_work1", Value: 500})

	if ok, _ := b.IsValid(); ok {
		t.Fatal("expected invalid due to target/interval count mismatch")
	}
}

func TestSingleUnitRejectsMultiBit(t *testing.T) {
	if _, ok := SingleUnit(uint8(DistanceUnitMetres | DistanceUnitMiles)); ok {
		t.Fatal("expected SingleUnit to reject multiple set bits")
	}
	u, ok := SingleUnit(uint8(DistanceUnitKM))
	if !ok || u != DistanceUnitKM {
		t.Fatalf("SingleUnit(km) = %v, %v", u, ok)
	}
}

func TestZoneBuilderHeartRate(t *testing.T) {
	z := NewZoneBuilder()
	z.UpdateIfFlagsChanged(uint16(ModeZoneHeartRate))
	z.UpdateFromEvent(s4.Event{Type: s4.EventMemoryRead, Field: "zone_hr_upper", Value: 160})
	z.UpdateFromEvent(s4.Event{Type: s4.EventMemoryRead, Field: "zone_hr_lower", Value: 120})

	ok, err := z.IsValid()
	if !ok {
		t.Fatalf("expected valid zone, got: %v", err)
	}
	def := z.Definition()
	if def.Type != ZoneTypeHeartRate || def.UpperBound != 160 || def.LowerBound != 120 {
		t.Errorf("unexpected zone definition: %+v", def)
	}
}

func TestZoneBuilderIntensityNeedsUnits(t *testing.T) {
	z := NewZoneBuilder()
	z.UpdateIfFlagsChanged(uint16(ModeZoneIntensity))
	z.UpdateFromEvent(s4.Event{Type: s4.EventMemoryRead, Field: "zone_int_500m_upper", Value: 130})
	z.UpdateFromEvent(s4.Event{Type: s4.EventMemoryRead, Field: "zone_int_500m_lower", Value: 110})

	if ok, _ := z.IsValid(); ok {
		t.Fatal("intensity zone without a resolved unit must be invalid")
	}

	z.UpdateFromEvent(s4.Event{Type: s4.EventMemoryRead, Field: "intensity2_disp_flags", Value: int64(IntensityUnitSecs500m)})
	if ok, err := z.IsValid(); !ok {
		t.Fatalf("expected valid intensity zone once units resolve, got: %v", err)
	}
	def := z.Definition()
	if def.Type != ZoneTypeIntensity || def.UpperBound != 130 || def.LowerBound != 110 {
		t.Errorf("unexpected zone definition: %+v", def)
	}
}

// TestZoneBuilderMiscChangeForcesRebuild covers the console's misc-display
// register acting as the change proxy for locally-edited bounds: a change
// while a zone is active discards the accumulated bounds and asks the
// caller to re-poll them.
func TestZoneBuilderMiscChangeForcesRebuild(t *testing.T) {
	z := NewZoneBuilder()
	z.UpdateIfFlagsChanged(uint16(ModeZoneHeartRate))
	z.UpdateFromEvent(s4.Event{Type: s4.EventMemoryRead, Field: "misc_disp_flags", Value: 0x04})
	z.UpdateFromEvent(s4.Event{Type: s4.EventMemoryRead, Field: "zone_hr_upper", Value: 160})
	z.UpdateFromEvent(s4.Event{Type: s4.EventMemoryRead, Field: "zone_hr_lower", Value: 120})
	if ok, _ := z.IsValid(); !ok {
		t.Fatal("setup: expected valid zone")
	}

	if repoll := z.UpdateFromEvent(s4.Event{Type: s4.EventMemoryRead, Field: "misc_disp_flags", Value: 0x04}); repoll {
		t.Fatal("unchanged misc flags must not force a rebuild")
	}
	if repoll := z.UpdateFromEvent(s4.Event{Type: s4.EventMemoryRead, Field: "misc_disp_flags", Value: 0x05}); !repoll {
		t.Fatal("changed misc flags must force a rebuild")
	}
	if ok, _ := z.IsValid(); ok {
		t.Fatal("expected bounds discarded after misc flag change")
	}
}

func TestZoneBuilderInvalidBoundOrder(t *testing.T) {
	z := NewZoneBuilder()
	z.UpdateIfFlagsChanged(uint16(ModeZoneHeartRate))
	z.UpdateFromEvent(s4.Event{Type: s4.EventMemoryRead, Field: "zone_hr_upper", Value: 100})
	z.UpdateFromEvent(s4.Event{Type: s4.EventMemoryRead, Field: "zone_hr_lower", Value: 150})

	if ok, _ := z.IsValid(); ok {
		t.Fatal("expected invalid zone when lower bound exceeds upper")
	}
}
