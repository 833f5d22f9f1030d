package main

import (
	"context"
	"log"
	"math"
	"time"

	"github.com/elp3dr/wrowfusion/internal/rower"
	"github.com/elp3dr/wrowfusion/internal/s4"
)

// demoRower drives an Aggregator with a simulated rowing session instead of
// a real S4, so the API/websocket/BLE surfaces can be exercised without
// hardware. It satisfies both the connectable (Open/Close) and
// rower.Writer interfaces main.go wires against a real s4.Rower, so the
// rest of main's wiring doesn't need to branch on demo mode beyond
// construction.
type demoRower struct {
	agg     *rower.Aggregator
	running bool
	t       float64 // virtual seconds since session start

	distanceCm  int64
	strokeCount int64
	calories    int64
}

func newDemoRower(agg *rower.Aggregator) *demoRower {
	return &demoRower{agg: agg}
}

func (d *demoRower) Open() error {
	d.running = true
	log.Printf("[s4] demo rower started")
	return nil
}

func (d *demoRower) Close() error {
	d.running = false
	return nil
}

// Write accepts commands the way the real transport would (RESET in
// particular), so rower.Adapter.RequestReset works unmodified against a
// demo session.
func (d *demoRower) Write(line string) error {
	if line == s4.ResetLine {
		d.t = 0
		d.distanceCm = 0
		d.strokeCount = 0
		d.calories = 0
	}
	return nil
}

// Run generates a simulated stroke roughly every 2.2 seconds (~27 spm) with
// gently varying power output, feeding decoded-shaped events straight into
// the aggregator the same way readLoop feeds events parsed from a real S4.
func (d *demoRower) Run(ctx context.Context) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	const strokePeriod = 2.2 // seconds
	lastStrokeAt := 0.0

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if !d.running {
			continue
		}

		d.t += 0.1

		// A real S4 emits P-packets every 25ms while the paddle turns;
		// one per 100ms tick keeps the pulse monitor comfortably inside
		// its 300ms gap threshold.
		d.agg.HandleEvent(s4.Event{Type: s4.EventPulse, At: time.Now()})

		watts := 140 + 30*math.Sin(d.t*0.2)
		speedCmS := 350 + 40*math.Sin(d.t*0.2)

		d.agg.HandleEvent(s4.Event{Type: s4.EventMemoryRead, Field: "watts", Value: int64(watts)})
		d.agg.HandleEvent(s4.Event{Type: s4.EventMemoryRead, Field: "avg_distance_cmps", Value: int64(speedCmS)})
		d.agg.HandleEvent(s4.Event{Type: s4.EventMemoryRead, Field: "heart_rate", Value: int64(130 + 10*math.Sin(d.t*0.05))})

		d.distanceCm += int64(speedCmS * 0.1)
		d.agg.HandleEvent(s4.Event{Type: s4.EventMemoryRead, Field: "total_distance", Value: d.distanceCm / 100})
		d.agg.HandleEvent(s4.Event{Type: s4.EventMemoryRead, Field: "total_distance_dec", Value: d.distanceCm % 100})

		// ~watts joules per tick (0.1s), 4.184 J/cal; register is raw cal.
		d.calories += int64(watts * 0.1 / 4.184)
		d.agg.HandleEvent(s4.Event{Type: s4.EventMemoryRead, Field: "total_calories", Value: d.calories})

		elapsed := int64(d.t)
		d.agg.HandleEvent(s4.Event{Type: s4.EventMemoryRead, Field: "display_hr", Value: elapsed / 3600})
		d.agg.HandleEvent(s4.Event{Type: s4.EventMemoryRead, Field: "display_min", Value: (elapsed / 60) % 60})
		d.agg.HandleEvent(s4.Event{Type: s4.EventMemoryRead, Field: "display_sec", Value: elapsed % 60})
		d.agg.HandleEvent(s4.Event{Type: s4.EventMemoryRead, Field: "display_sec_dec", Value: int64(math.Mod(d.t, 1) * 10)})

		if d.t-lastStrokeAt >= strokePeriod {
			lastStrokeAt = d.t
			const drivePortion = 0.7 // seconds, matches the StrokeEnd delay below

			d.agg.HandleEvent(s4.Event{Type: s4.EventStrokeStart, At: time.Now()})
			d.agg.HandleEvent(s4.Event{Type: s4.EventPulse, At: time.Now()})
			// avg_time_stroke_whole/_pull are in 25ms units; feeding them
			// alongside SS/SE lets the aggregator derive stroke_rate and
			// stroke_ratio the same way it would from a real S4.
			d.agg.HandleEvent(s4.Event{Type: s4.EventMemoryRead, Field: "avg_time_stroke_whole", Value: int64(strokePeriod * 1000 / 25)})
			d.agg.HandleEvent(s4.Event{Type: s4.EventMemoryRead, Field: "avg_time_stroke_pull", Value: int64(drivePortion * 1000 / 25)})
			time.AfterFunc(time.Duration(drivePortion*float64(time.Second)), func() {
				d.agg.HandleEvent(s4.Event{Type: s4.EventStrokeEnd, At: time.Now()})
			})
			d.strokeCount++
		}
	}
}
