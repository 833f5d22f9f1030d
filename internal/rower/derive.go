package rower

import "time"

// Snapshot derives the current published view from the aggregator's raw
// accumulated state. There is deliberately one derivation path rather than
// three parallel "zeroed"/"live"/"standstill" builders: IsZeroed and
// IsStandstill are computed flags on the same Snapshot, and the selection
// rule is applied here so every consumer (FTMS encoder, websocket frame,
// session logger) sees the same variant.
func (a *Aggregator) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	// Reset pending: every numeric field is published as zero until a pulse
	// arrives, regardless of what register reads have trickled in since.
	if a.sessionState == SessionReset {
		return Snapshot{
			At:           time.Now(),
			Phase:        a.phase,
			SessionState: a.sessionState,
			RowingState:  "idle",
			WorkoutPhase: a.workoutPhase,
			IsZeroed:     true,
		}
	}

	// paddleTurning is kept current by updatePaddleMonitor on every event,
	// so standstill only needs to ask whether it's currently false.
	standstill := !a.paddleTurning

	snap := Snapshot{
		At:             time.Now(),
		DistanceMeters: float64(a.distanceCm) / 100.0,
		ElapsedTime:    a.elapsedSecs,
		StrokeCount:    int(a.strokeCount),
		CaloriesKCal:   float64(a.calories) / 1000.0,
		Phase:          a.phase,
		StrokeRate:     a.strokeRatePM,
		StrokeRatio:    a.strokeRatio,
		SpeedCmS:       a.speedCmS,
		InstWatts:      a.instWatts,
		AvgWatts:       a.avgWatts(),
		HeartRateBPM:   a.heartRateBPM,
		TankVolumeDl:   a.tankVolumeDl,
		SessionState:   a.sessionState,
		RowingState:    rowingState(a.paddleTurning),
		WorkoutPhase:   a.workoutPhase,
		CurrentZone:    a.currentInterval,
		IsStandstill:   standstill,
	}

	snap.Pace500m = a.derivePace()

	// The standstill variant is the live one with the instantaneous
	// quantities forced to zero; totals keep their frozen values.
	if standstill {
		snap.StrokeRate = 0
		snap.SpeedCmS = 0
		snap.InstWatts = 0
		snap.Pace500m = 0
	}

	return snap
}

// rowingState folds the paddle-turning boolean into the coarser
// idle/rowing state the websocket frame and session logger expose.
func rowingState(paddleTurning bool) string {
	if paddleTurning {
		return "rowing"
	}
	return "idle"
}

// derivePace returns the current 500m split, preferring the S4's own
// 500m_pace register (which smooths briefly-decelerating strokes more
// gracefully) when PreferRowerPace is set and the register has a sane
// value, falling back to a speed-derived calculation otherwise.
func (a *Aggregator) derivePace() time.Duration {
	if a.preferRowerPace && a.pace500mSecs > 0 {
		return time.Duration(a.pace500mSecs) * time.Second
	}
	if a.speedCmS <= 0 {
		return 0
	}
	// time for 500m (50000cm) at speedCmS cm/s.
	secs := 50000.0 / float64(a.speedCmS)
	return time.Duration(secs * float64(time.Second))
}
