package rower

import "time"

// Phase is where in the stroke cycle the rower currently is.
type Phase int

const (
	PhaseRecovery Phase = iota
	PhaseDrive
)

func (p Phase) String() string {
	if p == PhaseDrive {
		return "drive"
	}
	return "recovery"
}

// SessionState is the high-level session lifecycle, independent of stroke
// phase: a session starts the moment the paddle turns after a reset/idle
// period and ends when no activity has been seen for idleTimeout.
type SessionState int

const (
	SessionReset SessionState = iota
	SessionActive
	SessionEnded
)

func (s SessionState) String() string {
	switch s {
	case SessionActive:
		return "active"
	case SessionEnded:
		return "ended"
	default:
		return "reset"
	}
}

// WorkoutPhase distinguishes unstructured rowing from the work/rest legs of
// a programmed interval workout.
type WorkoutPhase int

const (
	WorkoutPhaseJustRow WorkoutPhase = iota
	WorkoutPhaseWork
	WorkoutPhaseRest
)

func (p WorkoutPhase) String() string {
	switch p {
	case WorkoutPhaseWork:
		return "work"
	case WorkoutPhaseRest:
		return "rest"
	default:
		return "just_row"
	}
}

// Snapshot is the published, read-only view of rower state at an instant,
// in the units and shape external consumers (FTMS, the websocket telemetry
// channel, the session logger) need.
type Snapshot struct {
	At time.Time

	// Cumulative totals since the last reset.
	DistanceMeters float64
	ElapsedTime    time.Duration
	StrokeCount    int
	CaloriesKCal   float64

	// Instantaneous / rolling-average rowing metrics.
	Phase        Phase
	StrokeRate   float64 // strokes/min, derived from avg_time_stroke_whole
	StrokeRatio  float64 // (stroke_duration - drive_duration) / (drive_duration * 1.25)
	SpeedCmS     int
	Pace500m     time.Duration
	InstWatts    int
	AvgWatts     int // rolling 4-stroke average

	HeartRateBPM int
	TankVolumeDl int // water tank fill level, tenths of a litre

	SessionState SessionState
	RowingState  string
	WorkoutPhase WorkoutPhase
	CurrentZone  int

	// IsZeroed is true from a reset until the next pulse event arrives;
	// IsStandstill is true outside that state whenever the paddle is not
	// turning (distance/time frozen, rates zeroed).
	IsZeroed     bool
	IsStandstill bool
}
