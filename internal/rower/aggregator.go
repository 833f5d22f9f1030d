// Package rower aggregates the stream of decoded S4 events into a single,
// consistent view of the current rowing session: distance, pace, stroke
// rate, workout/zone state, and the session-lifecycle bookkeeping (idle
// timeout, interval phase) derived on top of the raw memory reads.
package rower

import (
	"log"
	"math"
	"sync"
	"time"

	"github.com/elp3dr/wrowfusion/internal/s4"
	"github.com/elp3dr/wrowfusion/internal/scheduler"
	"github.com/elp3dr/wrowfusion/internal/workout"
)

// idleTimeout is how long with no stroke/pulse activity before a session is
// considered ended and eligible for an automatic reset.
const idleTimeout = 10 * time.Minute

// paddleGapThreshold is the maximum gap between successive pulse events
// before the paddle is considered to have stopped turning.
const paddleGapThreshold = 300 * time.Millisecond

// avgWattsWindow is the number of most-recent completed strokes averaged
// for AvgWatts.
const avgWattsWindow = 4

// Aggregator owns all mutable rowing state and is safe for concurrent use:
// one goroutine feeds it events via HandleEvent while any number of readers
// call Snapshot.
type Aggregator struct {
	mu sync.Mutex

	// Cumulative registers, as last read from the S4.
	distanceCm    int64 // monotonic max of every recombined (meters, dec) reading
	distMeters    int64 // last total_distance register value
	distDecCm     int64 // last total_distance_dec register value, already in cm
	strokeCount   int64
	calories      int64 // raw calories, as the register reports them
	displayHour   int
	displayMin    int
	displaySec    int
	displaySecDec int
	elapsedSecs   time.Duration // monotonic max, recomputed on display_sec_dec

	instWatts      int
	strokeMaxPower int // max watts seen so far during the in-progress drive
	wattsFIFO      [avgWattsWindow]int
	wattsIdx       int
	wattsN         int

	speedCmS     int
	pace500mSecs int64

	strokeRatePM   float64       // from avg_time_stroke_whole
	strokeDuration time.Duration // whole-stroke period, from avg_time_stroke_whole
	driveDuration  time.Duration // drive (pull) portion, from avg_time_stroke_pull
	strokeRatio    float64

	heartRateBPM int
	tankVolumeDl int // tank fill level in tenths of a litre

	phase Phase

	lastPulseAt   time.Time
	paddleTurning bool

	sessionState   SessionState
	lastActivityAt time.Time

	workoutFlags    uint16
	workoutBuilder  *workout.Builder
	zoneBuilder     *workout.ZoneBuilder
	workoutPhase    WorkoutPhase
	currentInterval int

	preferRowerPace  bool
	useConcept2Power bool

	// gate, when set via SetGate, lets the aggregator itself re-enable the
	// workout/zone polling categories the moment a new program starts being
	// declared and disable them again once the declaration is complete —
	// see setWorkoutCategories/setZoneCategories. nil in tests that exercise
	// HandleEvent/Snapshot without a scheduler.
	gate *scheduler.Gate
}

// Config controls aggregation policy choices left open by the hardware's
// behaviour.
type Config struct {
	// PreferRowerPace, when true, derives Pace500m from the S4's own
	// 500m_pace register when available rather than from speed_cm_s; the
	// rower's own pace computation handles brief paddle deceleration more
	// smoothly than recomputing it from instantaneous speed.
	PreferRowerPace bool

	// UseConcept2Power switches the published instantaneous watts from the
	// rolling per-stroke-max average (the default) to the Concept2 pace
	// formula 2.80 / (secs_per_metre)^3, recomputed on each speed update.
	UseConcept2Power bool
}

// New returns an Aggregator in its zeroed, reset state.
func New(cfg Config) *Aggregator {
	a := &Aggregator{
		workoutBuilder:   workout.NewBuilder(),
		zoneBuilder:      workout.NewZoneBuilder(),
		sessionState:     SessionReset,
		preferRowerPace:  cfg.PreferRowerPace,
		useConcept2Power: cfg.UseConcept2Power,
	}
	a.lastActivityAt = time.Now()
	return a
}

// SetGate binds the scheduler's category gate so the aggregator can
// re-enable workout/zone polling while a new program is being declared and
// disable it again once the declaration validates. Must be called
// before HandleEvent runs concurrently with it; main wires this once at
// startup.
func (a *Aggregator) SetGate(gate *scheduler.Gate) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.gate = gate
}

// setWorkoutCategories toggles polling of the registers that describe an
// interval program's work/rest targets and the distance-unit display flag
// the Builder needs to interpret them.
func (a *Aggregator) setWorkoutCategories(enabled bool) {
	if a.gate == nil {
		return
	}
	a.gate.SetEnabled(s4.CategoryWorkout, enabled)
	a.gate.SetEnabled(s4.CategoryDistance, enabled)
}

// setZoneCategories toggles polling of the registers that describe a
// configured training zone's bounds and unit.
func (a *Aggregator) setZoneCategories(enabled bool) {
	if a.gate == nil {
		return
	}
	a.gate.SetEnabled(s4.CategoryZone, enabled)
	a.gate.SetEnabled(s4.CategoryIntensity, enabled)
}

// HandleEvent folds one decoded S4 event into the aggregator's state. It is
// the single point of entry for the scheduler/transport goroutine and must
// not be called concurrently with itself.
func (a *Aggregator) HandleEvent(ev s4.Event) {
	a.mu.Lock()
	defer a.mu.Unlock()

	// Every incoming event re-enters the pulse monitor, not just
	// pulse events themselves: the paddle is only "turning" for as long as
	// the gap since the last pulse stays under paddleGapThreshold, and that
	// can lapse between pulses with no further pulse ever arriving to
	// notice it.
	a.updatePaddleMonitor(ev)

	switch ev.Type {
	case s4.EventStrokeStart:
		a.phase = PhaseDrive
		a.markActivity()

	case s4.EventStrokeEnd:
		a.phase = PhaseRecovery
		if a.strokeMaxPower > 0 {
			a.pushWatts(a.strokeMaxPower)
			a.strokeMaxPower = 0
			if !a.useConcept2Power {
				a.instWatts = a.avgWatts()
			}
		}
		a.strokeCount++
		a.markActivity()

	case s4.EventReset:
		a.resetLocked()

	case s4.EventMemoryRead:
		a.handleMemoryRead(ev)
	}
}

// markActivity refreshes the idle-timeout clock and restarts an ended
// session. It deliberately does not clear a pending reset: the published
// snapshot stays zeroed until a pulse proves the paddle is actually turning
// again, not merely that a register read arrived.
func (a *Aggregator) markActivity() {
	a.lastActivityAt = time.Now()
	if a.sessionState == SessionEnded {
		a.sessionState = SessionActive
	}
}

func (a *Aggregator) pushWatts(w int) {
	a.wattsFIFO[a.wattsIdx] = w
	a.wattsIdx = (a.wattsIdx + 1) % avgWattsWindow
	if a.wattsN < avgWattsWindow {
		a.wattsN++
	}
}

func (a *Aggregator) avgWatts() int {
	if a.wattsN == 0 {
		return 0
	}
	sum := 0
	for i := 0; i < a.wattsN; i++ {
		sum += a.wattsFIFO[i]
	}
	return int(math.Round(float64(sum) / float64(a.wattsN)))
}

// recomputeDistance recombines the two independently-polled distance
// registers (whole metres and the sub-metre cm remainder) and folds the
// result into distanceCm under the monotonic non-decreasing guard:
// split-field polling means either half can arrive stale relative to the
// other, so a recombination is only accepted when it doesn't go backwards.
func (a *Aggregator) recomputeDistance() {
	cm := a.distMeters*100 + a.distDecCm
	if cm > a.distanceCm {
		a.distanceCm = cm
	}
}

// updatePaddleMonitor re-evaluates paddleTurning against the gap since the
// last pulse, using ev's own timestamp as "now" so the check is accurate
// regardless of when HandleEvent happens to run. A gap of at most
// paddleGapThreshold means the flywheel is considered still turning; a
// longer gap, or no pulse recorded yet, means it has stopped, which
// downstream snapshot derivation uses to freeze distance/time display
// ("standstill") without needing the S4's own pace decay to reach zero. A
// pulse event additionally records its own timestamp and always leaves the
// paddle turning, and clears the reset-pending state.
func (a *Aggregator) updatePaddleMonitor(ev s4.Event) {
	now := ev.At
	if now.IsZero() {
		now = time.Now()
	}

	if a.lastPulseAt.IsZero() || now.Sub(a.lastPulseAt) > paddleGapThreshold {
		a.paddleTurning = false
	} else {
		a.paddleTurning = true
	}

	if ev.Type == s4.EventPulse {
		a.lastPulseAt = now
		a.paddleTurning = true
		a.lastActivityAt = time.Now()
		// A pulse is the one event that clears a pending reset.
		a.sessionState = SessionActive
	}
}

// handleMemoryRead applies one decoded register value to aggregator state,
// enforcing the monotonic-counter invariants the S4 otherwise doesn't
// guarantee across USB hiccups (a distance/time read that goes backwards
// without an intervening reset is treated as noise and dropped).
func (a *Aggregator) handleMemoryRead(ev s4.Event) {
	switch ev.Field {
	case "total_distance":
		a.distMeters = ev.Value
		a.recomputeDistance()
	case "total_distance_dec":
		// 0-95, already in cm (nearest 5cm), not a decimetre count.
		a.distDecCm = ev.Value
		a.recomputeDistance()
	case "watts":
		// Track the peak watts seen during the current drive; the rolling
		// average is built from one max-per-stroke sample, not every watts
		// reading, so a stroke's power doesn't get diluted by the lower
		// readings at the start/end of the pull. The published instantaneous
		// watts comes from the configured power source (see stroke-end and
		// the speed handler), never from this raw register directly.
		if a.phase == PhaseDrive && int(ev.Value) > a.strokeMaxPower {
			a.strokeMaxPower = int(ev.Value)
		}
	case "total_calories":
		if ev.Value >= a.calories || a.calories == 0 {
			a.calories = ev.Value
		}
	case "stroke_count":
		// The register is authoritative; SS/SE events advance the count
		// between polls but a read always wins.
		a.strokeCount = ev.Value
	case "tank_volume":
		a.tankVolumeDl = int(ev.Value)
	case "avg_distance_cmps":
		a.speedCmS = int(ev.Value)
		a.updateInstWatts()
	case "500m_pace":
		// Seconds per 500m, reported only while the S4 is displaying it.
		a.pace500mSecs = ev.Value
	case "avg_time_stroke_whole":
		// Register is in 25ms units; stroke_rate_pm = 60000 / (value*25ms).
		durMs := ev.Value * 25
		if durMs > 0 {
			a.strokeDuration = time.Duration(durMs) * time.Millisecond
			a.strokeRatePM = roundTo2(60000.0 / float64(durMs))
		} else {
			a.strokeDuration = 0
			a.strokeRatePM = 0
		}
		a.recomputeStrokeRatio()
	case "avg_time_stroke_pull":
		a.driveDuration = time.Duration(ev.Value*25) * time.Millisecond
		a.recomputeStrokeRatio()
	case "stroke_rate":
		// Deliberately ignored: deriving stroke rate from
		// avg_time_stroke_whole is more accurate than this register.
	case "heart_rate":
		a.heartRateBPM = int(ev.Value)
	case "intervals_remaining":
		a.currentInterval = int(ev.Value)
		if a.workoutBuilder.Definition().IntervalsSet {
			if ev.Value > 0 {
				a.workoutPhase = WorkoutPhaseWork
			} else {
				a.workoutPhase = WorkoutPhaseJustRow
			}
		}
	case "display_hr":
		a.displayHour = int(ev.Value)
	case "display_min":
		a.displayMin = int(ev.Value)
	case "display_sec":
		a.displaySec = int(ev.Value)
	case "display_sec_dec":
		a.displaySecDec = int(ev.Value)
		newElapsed := time.Duration(a.displayHour)*time.Hour +
			time.Duration(a.displayMin)*time.Minute +
			time.Duration(a.displaySec)*time.Second +
			time.Duration(a.displaySecDec)*100*time.Millisecond
		if newElapsed > a.elapsedSecs {
			a.elapsedSecs = newElapsed
		}

	case "workout_flags":
		// The same register packs both the workout-type bits and the
		// zone-kind bits; both builders are driven from this one read.
		a.workoutFlags = uint16(ev.Value)
		if a.workoutBuilder.UpdateIfFlagsChanged(a.workoutFlags) {
			// A new program just started being declared: re-enable the
			// registers that describe it until the declaration validates.
			a.setWorkoutCategories(true)
		}
		if a.zoneBuilder.UpdateIfFlagsChanged(a.workoutFlags) {
			a.setZoneCategories(true)
		}

	default:
		a.workoutBuilder.UpdateFromEvent(ev)
		if a.zoneBuilder.UpdateFromEvent(ev) {
			// The console's misc-display register changed while a zone is
			// active: the user edited bounds locally, so re-read them.
			a.setZoneCategories(true)
			return
		}
		if ok, _ := a.workoutBuilder.IsValid(); ok {
			a.setWorkoutCategories(false)
		}
		if ok, _ := a.zoneBuilder.IsValid(); ok {
			a.setZoneCategories(false)
		}
	}
}

// updateInstWatts recomputes the published instantaneous watts from the
// configured power source on a speed update. Exactly one source ever writes
// it: the Concept2 formula when configured, else the rolling per-stroke
// average.
func (a *Aggregator) updateInstWatts() {
	if a.useConcept2Power {
		if a.speedCmS <= 0 {
			a.instWatts = 0
			return
		}
		mps := float64(a.speedCmS) / 100.0
		a.instWatts = int(math.Round(2.80 * mps * mps * mps))
		return
	}
	if a.wattsN > 0 {
		a.instWatts = a.avgWatts()
	}
}

// recomputeStrokeRatio applies the documented WaterRower formula whenever
// both halves of the stroke timing are known and strictly positive:
// stroke_ratio = (stroke_duration - drive_duration) / (drive_duration * 1.25).
func (a *Aggregator) recomputeStrokeRatio() {
	if a.strokeDuration <= 0 || a.driveDuration <= 0 {
		return
	}
	ratio := float64(a.strokeDuration-a.driveDuration) / (float64(a.driveDuration) * 1.25)
	a.strokeRatio = roundTo2(ratio)
}

func roundTo2(v float64) float64 {
	return math.Round(v*100) / 100
}

// resetLocked clears all accumulated state back to its zero value. Called
// with mu held, either from an explicit RESET event or from RequestReset.
func (a *Aggregator) resetLocked() {
	a.distanceCm = 0
	a.distMeters = 0
	a.distDecCm = 0
	a.strokeCount = 0
	a.calories = 0
	a.displayHour, a.displayMin, a.displaySec, a.displaySecDec = 0, 0, 0, 0
	a.elapsedSecs = 0
	a.instWatts = 0
	a.strokeMaxPower = 0
	a.wattsFIFO = [avgWattsWindow]int{}
	a.wattsIdx, a.wattsN = 0, 0
	a.speedCmS = 0
	a.pace500mSecs = 0
	a.strokeRatePM = 0
	a.strokeDuration = 0
	a.driveDuration = 0
	a.strokeRatio = 0
	a.phase = PhaseRecovery
	a.paddleTurning = false
	a.lastPulseAt = time.Time{}
	a.sessionState = SessionReset
	a.workoutBuilder = workout.NewBuilder()
	a.zoneBuilder = workout.NewZoneBuilder()
	a.workoutPhase = WorkoutPhaseJustRow
	a.currentInterval = 0
	a.lastActivityAt = time.Now()
}

// CheckIdleTimeout ends the current session if no stroke or pulse activity
// has been observed for idleTimeout. It should be called periodically
// (e.g. once per low-frequency sweep) by the caller that owns the ticking.
func (a *Aggregator) CheckIdleTimeout() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.sessionState != SessionActive {
		return
	}
	if time.Since(a.lastActivityAt) > idleTimeout {
		log.Printf("[rower] idle timeout after %s, ending session", idleTimeout)
		a.sessionState = SessionEnded
	}
}

// SessionState reports the current session lifecycle state.
func (a *Aggregator) SessionState() SessionState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sessionState
}

// CurrentWorkout returns the workout definition accumulated so far in this
// session.
func (a *Aggregator) CurrentWorkout() workout.Definition {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.workoutBuilder.Definition()
}

// CurrentZone returns the zone definition accumulated so far in this
// session.
func (a *Aggregator) CurrentZone() workout.ZoneDefinition {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.zoneBuilder.Definition()
}
