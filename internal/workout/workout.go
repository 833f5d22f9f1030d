package workout

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/elp3dr/wrowfusion/internal/s4"
)

// Type classifies the overall shape of the programmed workout.
type Type int

const (
	TypeNone Type = iota
	TypeJustRow
	TypeDuration
	TypeDistance
	TypeDurationInterval
	TypeDistanceInterval
)

func (t Type) String() string {
	switch t {
	case TypeJustRow:
		return "just_row"
	case TypeDuration:
		return "duration"
	case TypeDistance:
		return "distance"
	case TypeDurationInterval:
		return "duration_interval"
	case TypeDistanceInterval:
		return "distance_interval"
	default:
		return "none"
	}
}

var intervalFieldRE = regexp.MustCompile(`^workout_(work|rest)(\d+)$`)

// Definition is the reassembled description of a programmed workout: its
// overall type plus, for interval workouts, the per-interval work/rest
// target durations or distances. Builder.IsValid reports whether it is
// complete.
type Definition struct {
	Type          Type
	IntervalsSet  bool
	Intervals     int
	Units         DistanceUnit
	WorkTargets   map[int]int64
	RestDurations map[int]int64
}

// Builder accumulates workout_flags changes and the individual register
// reads that describe an interval program, across many Event deliveries,
// and exposes the current best-known Definition.
type Builder struct {
	flags     Mode
	flagsSeen bool
	def       Definition
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	b := &Builder{}
	b.reset()
	return b
}

func (b *Builder) reset() {
	b.def = Definition{
		WorkTargets:   make(map[int]int64),
		RestDurations: make(map[int]int64),
	}
}

// UpdateIfFlagsChanged re-derives the workout's Type/IntervalsSet from a
// newly read workout_flags value, but only if bits this package cares about
// actually changed — a workout_flags read that only flips an unrelated
// display bit is a no-op. It reports whether a change was applied, so
// callers can re-enable polling of the registers that describe the new
// program.
func (b *Builder) UpdateIfFlagsChanged(raw uint16) bool {
	next := Mode(raw)
	if b.flagsSeen && ChangedWorkoutBits(b.flags, next) == 0 {
		return false
	}
	b.flags = next
	b.flagsSeen = true
	b.reset()

	switch {
	case next&ModeWorkoutDurationInterval != 0:
		b.def.Type = TypeDurationInterval
	case next&ModeWorkoutDistanceInterval != 0:
		b.def.Type = TypeDistanceInterval
	case next&ModeWorkoutDuration != 0:
		b.def.Type = TypeDuration
	case next&ModeWorkoutDistance != 0:
		b.def.Type = TypeDistance
	default:
		// No workout bits set: the rower is in free-rowing mode.
		b.def.Type = TypeJustRow
	}
	b.def.IntervalsSet = next.IsInterval()
	return true
}

// UpdateFromEvent folds one decoded memory_read Event into the
// in-progress Definition. Unrecognised fields are ignored so the Builder
// can simply be fed every memory_read event without filtering first.
func (b *Builder) UpdateFromEvent(ev s4.Event) {
	if ev.Type != s4.EventMemoryRead {
		return
	}

	switch ev.Field {
	case "workout_intervals":
		// The S4 reports one more than the actual interval count;
		// subtract 1 (floored at 0) to recover it.
		n := ev.Value - 1
		if n < 0 {
			n = 0
		}
		b.def.Intervals = int(n)
		return

	case "distance1_disp_flags":
		if unit, ok := SingleUnit(uint8(ev.Value)); ok {
			b.def.Units = unit
		}
		return
	}

	if m := intervalFieldRE.FindStringSubmatch(ev.Field); m != nil {
		idx, err := strconv.Atoi(m[2])
		if err != nil {
			return
		}
		if m[1] == "work" {
			b.def.WorkTargets[idx] = ev.Value
		} else {
			b.def.RestDurations[idx] = ev.Value
		}
	}
}

// IsValid reports whether the accumulated Definition is internally
// consistent: kind and units must agree, interval workouts must have
// exactly as many work+rest targets as the declared interval count, and a
// single-leg duration/distance workout must declare exactly one work target
// and no rest durations. Free rowing has nothing to reassemble and is
// trivially valid. Any interval-count mismatch — including the off-by-one
// some firmware revisions are rumoured to report — keeps the builder
// invalid so polling continues rather than guessing which convention is in
// play.
func (b *Builder) IsValid() (bool, error) {
	d := b.def
	got := len(d.WorkTargets) + len(d.RestDurations)

	if d.Type == TypeJustRow {
		return true, nil
	}
	if d.Type == TypeNone {
		return false, fmt.Errorf("workout: no workout type resolved yet")
	}
	if (d.Type == TypeDistance || d.Type == TypeDistanceInterval) && d.Units == 0 {
		// The distance targets are meaningless until distance1_disp_flags
		// resolves which unit they're counted in, and responses can arrive
		// in any order — stay invalid so that register keeps being polled.
		return false, fmt.Errorf("workout: distance workout with unresolved units")
	}
	if !d.IntervalsSet {
		if len(d.WorkTargets) != 1 || len(d.RestDurations) != 0 {
			return false, fmt.Errorf("workout: non-interval workout requires exactly one work target and no rest durations, got %d/%d", len(d.WorkTargets), len(d.RestDurations))
		}
		return true, nil
	}
	if d.Intervals == 0 {
		return false, fmt.Errorf("workout: interval workout with interval count 0")
	}
	if got != d.Intervals {
		return false, fmt.Errorf("workout: interval count mismatch: declared %d, have %d targets", d.Intervals, got)
	}
	return true, nil
}

// Definition returns a copy of the builder's current state.
func (b *Builder) Definition() Definition {
	d := b.def
	d.WorkTargets = make(map[int]int64, len(b.def.WorkTargets))
	for k, v := range b.def.WorkTargets {
		d.WorkTargets[k] = v
	}
	d.RestDurations = make(map[int]int64, len(b.def.RestDurations))
	for k, v := range b.def.RestDurations {
		d.RestDurations[k] = v
	}
	return d
}
