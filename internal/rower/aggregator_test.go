package rower

import (
	"testing"
	"time"

	"github.com/elp3dr/wrowfusion/internal/s4"
)

// pulse feeds one pulse event stamped now, clearing the initial reset state
// and leaving the paddle turning for the assertions that follow.
func pulse(a *Aggregator) {
	a.HandleEvent(s4.Event{Type: s4.EventPulse, At: time.Now()})
}

func TestHandleEventAccumulatesDistanceAndWatts(t *testing.T) {
	a := New(Config{})
	pulse(a)

	a.HandleEvent(s4.Event{Type: s4.EventMemoryRead, Field: "total_distance", Value: 100})
	a.HandleEvent(s4.Event{Type: s4.EventStrokeStart})
	a.HandleEvent(s4.Event{Type: s4.EventMemoryRead, Field: "watts", Value: 150})
	a.HandleEvent(s4.Event{Type: s4.EventStrokeEnd})

	snap := a.Snapshot()
	if snap.DistanceMeters != 100 {
		t.Errorf("DistanceMeters = %v, want 100", snap.DistanceMeters)
	}
	if snap.StrokeCount != 1 {
		t.Errorf("StrokeCount = %d, want 1", snap.StrokeCount)
	}
	if snap.AvgWatts != 150 {
		t.Errorf("AvgWatts = %d, want 150", snap.AvgWatts)
	}
}

func TestMonotonicDistanceGuardDropsRegression(t *testing.T) {
	a := New(Config{})
	pulse(a)
	a.HandleEvent(s4.Event{Type: s4.EventMemoryRead, Field: "total_distance", Value: 500})
	a.HandleEvent(s4.Event{Type: s4.EventMemoryRead, Field: "total_distance", Value: 10})

	snap := a.Snapshot()
	if snap.DistanceMeters != 500 {
		t.Errorf("DistanceMeters regressed to %v, want monotonic 500", snap.DistanceMeters)
	}
}

// TestResetZeroesState: after a reset the
// published snapshot is all-zero, and stays that way — even as register
// reads arrive — until a pulse proves the paddle is turning again.
func TestResetZeroesState(t *testing.T) {
	a := New(Config{})
	pulse(a)
	a.HandleEvent(s4.Event{Type: s4.EventMemoryRead, Field: "total_distance", Value: 500})
	for i := 0; i < 50; i++ {
		a.HandleEvent(s4.Event{Type: s4.EventStrokeStart})
		a.HandleEvent(s4.Event{Type: s4.EventStrokeEnd})
	}
	if a.Snapshot().StrokeCount != 50 {
		t.Fatalf("setup: StrokeCount = %d, want 50", a.Snapshot().StrokeCount)
	}

	a.HandleEvent(s4.Event{Type: s4.EventReset})

	snap := a.Snapshot()
	if !snap.IsZeroed {
		t.Fatal("expected IsZeroed after reset")
	}
	if snap.DistanceMeters != 0 || snap.StrokeCount != 0 {
		t.Errorf("expected zeroed state, got %+v", snap)
	}

	// Register reads alone must not clear the zeroed state.
	a.HandleEvent(s4.Event{Type: s4.EventMemoryRead, Field: "total_distance", Value: 7})
	if !a.Snapshot().IsZeroed {
		t.Fatal("register read cleared the reset state; only a pulse should")
	}
	if a.Snapshot().DistanceMeters != 0 {
		t.Errorf("zeroed snapshot leaked distance: %v", a.Snapshot().DistanceMeters)
	}

	pulse(a)
	if a.Snapshot().IsZeroed {
		t.Fatal("expected reset cleared after a pulse")
	}
}

// TestPaddleStandstillDetection: a single
// pulse is processed, then a later, unrelated event is processed after the
// gap threshold has elapsed. The pulse monitor re-evaluates on every event,
// not just new pulses, so that later event alone must flip the paddle out
// of "turning" without needing another pulse to arrive.
func TestPaddleStandstillDetection(t *testing.T) {
	a := New(Config{})
	a.HandleEvent(s4.Event{Type: s4.EventStrokeStart})
	base := time.Now()
	a.HandleEvent(s4.Event{Type: s4.EventPulse, At: base})

	if a.Snapshot().IsStandstill {
		t.Fatal("expected paddle turning immediately after a pulse")
	}

	a.HandleEvent(s4.Event{Type: s4.EventMemoryRead, Field: "watts", Value: 0, At: base.Add(paddleGapThreshold * 3)})

	snap := a.Snapshot()
	if !snap.IsStandstill {
		t.Fatal("expected standstill once a later event is processed after the gap threshold has elapsed")
	}
}

// TestDistanceRecombination: total_distance_dec and total_distance arrive on
// independent polling cadences and must be recombined, not overwritten,
// with the monotonic guard applied to the recombined value rather than
// to either register in isolation.
func TestDistanceRecombination(t *testing.T) {
	a := New(Config{})
	pulse(a)
	a.HandleEvent(s4.Event{Type: s4.EventMemoryRead, Field: "total_distance_dec", Value: 0x5F})
	a.HandleEvent(s4.Event{Type: s4.EventMemoryRead, Field: "total_distance", Value: 0x8A})
	a.HandleEvent(s4.Event{Type: s4.EventMemoryRead, Field: "total_distance_dec", Value: 0x00})
	a.HandleEvent(s4.Event{Type: s4.EventMemoryRead, Field: "total_distance", Value: 0x8B})

	snap := a.Snapshot()
	if snap.DistanceMeters != 139 {
		t.Errorf("DistanceMeters = %v, want 139", snap.DistanceMeters)
	}
	if a.distanceCm != 13900 {
		t.Errorf("distanceCm = %d, want 13900", a.distanceCm)
	}
}

func TestStrokeRateFromAvgStrokePeriod(t *testing.T) {
	a := New(Config{})
	pulse(a)
	a.HandleEvent(s4.Event{Type: s4.EventMemoryRead, Field: "avg_time_stroke_whole", Value: 0x60})

	snap := a.Snapshot()
	if snap.StrokeRate != 25.0 {
		t.Errorf("StrokeRate = %v, want 25.0", snap.StrokeRate)
	}
}

func TestStrokeRatioFromDurations(t *testing.T) {
	a := New(Config{})
	pulse(a)
	// whole stroke 2400ms, drive 800ms:
	// ratio = (2400-800) / (800*1.25) = 1.6
	a.HandleEvent(s4.Event{Type: s4.EventMemoryRead, Field: "avg_time_stroke_whole", Value: 96})
	a.HandleEvent(s4.Event{Type: s4.EventMemoryRead, Field: "avg_time_stroke_pull", Value: 32})

	if got := a.Snapshot().StrokeRatio; got != 1.6 {
		t.Errorf("StrokeRatio = %v, want 1.6", got)
	}
}

func TestElapsedTimeMonotonicGuard(t *testing.T) {
	a := New(Config{})
	pulse(a)
	a.HandleEvent(s4.Event{Type: s4.EventMemoryRead, Field: "display_sec", Value: 10})
	a.HandleEvent(s4.Event{Type: s4.EventMemoryRead, Field: "display_sec_dec", Value: 0})
	first := a.Snapshot().ElapsedTime

	// A split-field read race makes seconds appear to go backwards; the
	// recomputation on display_sec_dec must not let elapsed time regress.
	a.HandleEvent(s4.Event{Type: s4.EventMemoryRead, Field: "display_sec", Value: 2})
	a.HandleEvent(s4.Event{Type: s4.EventMemoryRead, Field: "display_sec_dec", Value: 0})
	second := a.Snapshot().ElapsedTime

	if second < first {
		t.Errorf("ElapsedTime regressed: first=%v second=%v", first, second)
	}
}

func TestAvgWattsRollingWindow(t *testing.T) {
	a := New(Config{})
	pulse(a)
	wattsSeq := []int{100, 200, 300, 400, 500}
	for _, w := range wattsSeq {
		a.HandleEvent(s4.Event{Type: s4.EventStrokeStart})
		a.HandleEvent(s4.Event{Type: s4.EventMemoryRead, Field: "watts", Value: int64(w)})
		a.HandleEvent(s4.Event{Type: s4.EventStrokeEnd})
	}
	// last 4 strokes: 200,300,400,500 -> avg 350
	snap := a.Snapshot()
	if snap.AvgWatts != 350 {
		t.Errorf("AvgWatts = %d, want 350", snap.AvgWatts)
	}
}

// TestRollingWattsFourStrokes: the peak watts of each drive enters a
// 4-deep FIFO on stroke end, and the published
// instantaneous watts is the rounded mean of the FIFO.
func TestRollingWattsFourStrokes(t *testing.T) {
	a := New(Config{})
	pulse(a)

	strokes := [][]int64{{200, 300}, {500}, {400}, {100}}
	for _, readings := range strokes {
		a.HandleEvent(s4.Event{Type: s4.EventStrokeStart})
		for _, w := range readings {
			a.HandleEvent(s4.Event{Type: s4.EventMemoryRead, Field: "watts", Value: w})
		}
		a.HandleEvent(s4.Event{Type: s4.EventStrokeEnd})
	}

	// per-stroke maxima 300,500,400,100 -> mean 325
	if got := a.Snapshot().InstWatts; got != 325 {
		t.Errorf("InstWatts = %d, want 325", got)
	}
}

// TestConcept2PowerSource checks the alternative power source: watts derived
// from speed on each speed update instead of from the stroke FIFO.
func TestConcept2PowerSource(t *testing.T) {
	a := New(Config{UseConcept2Power: true})
	pulse(a)

	// 450 cm/s = 4.5 m/s; 2.80 * 4.5^3 = 255.15 -> 255.
	a.HandleEvent(s4.Event{Type: s4.EventMemoryRead, Field: "avg_distance_cmps", Value: 450})
	if got := a.Snapshot().InstWatts; got != 255 {
		t.Errorf("InstWatts = %d, want 255", got)
	}
}

func TestPaceFromRowerRegisterPreferred(t *testing.T) {
	a := New(Config{PreferRowerPace: true})
	pulse(a)
	a.HandleEvent(s4.Event{Type: s4.EventMemoryRead, Field: "avg_distance_cmps", Value: 400})
	a.HandleEvent(s4.Event{Type: s4.EventMemoryRead, Field: "500m_pace", Value: 124})

	if got := a.Snapshot().Pace500m; got != 124*time.Second {
		t.Errorf("Pace500m = %v, want 2m4s from the rower's own register", got)
	}
}

func TestPaceDerivedFromSpeed(t *testing.T) {
	a := New(Config{PreferRowerPace: false})
	pulse(a)
	a.HandleEvent(s4.Event{Type: s4.EventMemoryRead, Field: "avg_distance_cmps", Value: 400})
	a.HandleEvent(s4.Event{Type: s4.EventMemoryRead, Field: "500m_pace", Value: 124})

	// 50000cm / 400cm/s = 125s, regardless of the rower's own register.
	if got := a.Snapshot().Pace500m; got != 125*time.Second {
		t.Errorf("Pace500m = %v, want 125s derived from speed", got)
	}
}
