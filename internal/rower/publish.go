package rower

import (
	"fmt"

	"github.com/elp3dr/wrowfusion/internal/heartrate"
	"github.com/elp3dr/wrowfusion/internal/s4"
	"github.com/elp3dr/wrowfusion/internal/scheduler"
	"github.com/elp3dr/wrowfusion/internal/workout"
)

// Writer is the subset of s4.Rower needed to issue on-demand commands
// (currently just a session reset).
type Writer interface {
	Write(line string) error
}

// Adapter wires an Aggregator to the outside world: the serial command
// channel back to the S4, the scheduler's category gate, and the heart-rate
// monitor whose readings get folded into published snapshots. Everything
// outside internal/rower — the websocket API, the FTMS encoder, the session
// logger — talks to the aggregator only through an Adapter.
type Adapter struct {
	agg *Aggregator
	w   Writer
	gate *scheduler.Gate
	hr   *heartrate.Monitor
}

// NewAdapter binds an Aggregator to its transport/scheduler/heart-rate
// collaborators.
func NewAdapter(agg *Aggregator, w Writer, gate *scheduler.Gate, hr *heartrate.Monitor) *Adapter {
	return &Adapter{agg: agg, w: w, gate: gate, hr: hr}
}

// RequestReset sends the S4 reset command and clears local session state.
// The S4 itself will also emit a EventReset line, which HandleEvent treats
// idempotently, but resetting local state immediately keeps the externally
// observable session state consistent even if that line is delayed.
func (ad *Adapter) RequestReset() error {
	if err := ad.w.Write(s4.ResetLine); err != nil {
		return fmt.Errorf("rower: request reset: %w", err)
	}
	ad.agg.mu.Lock()
	ad.agg.resetLocked()
	ad.agg.mu.Unlock()
	return nil
}

// SetCategoryEnabled toggles whether the scheduler polls a MEMORY_MAP
// category, e.g. disabling "workout"/"zone" polling once a session ends to
// reduce USB chatter.
func (ad *Adapter) SetCategoryEnabled(cat s4.Category, enabled bool) {
	ad.gate.SetEnabled(cat, enabled)
}

// OnHeartRateUpdate feeds an externally-sourced BPM reading into the heart
// rate monitor, from which Snapshot's heart-rate injection draws when the
// S4 itself isn't reporting one.
func (ad *Adapter) OnHeartRateUpdate(bpm int, source heartrate.Source) {
	ad.hr.UpdateHeartRate(bpm, source)
}

// CurrentWorkout returns the workout definition accumulated this session.
func (ad *Adapter) CurrentWorkout() workout.Definition { return ad.agg.CurrentWorkout() }

// CurrentZone returns the zone definition accumulated this session.
func (ad *Adapter) CurrentZone() workout.ZoneDefinition { return ad.agg.CurrentZone() }

// Snapshot returns the current published view, with heart rate injected
// from the external monitor when the rower's own reading is zero. A zeroed
// (reset-pending) snapshot is left untouched so every field stays zero
// until the paddle turns again.
func (ad *Adapter) Snapshot() Snapshot {
	snap := ad.agg.Snapshot()
	if !snap.IsZeroed {
		snap.HeartRateBPM = ad.hr.InjectHeartRate(snap.HeartRateBPM)
	}
	return snap
}
