// Package pulse drives a physical or simulated output line at a rate
// derived from the current heart rate, for equipment (older head units,
// some cadence trainers) that expects a pulse train rather than a BLE HRS
// notification.
package pulse

import (
	"context"
	"log"
	"time"
)

// Pulser is the output abstraction a Generator drives. A real
// implementation would toggle a GPIO line (e.g. via
// periph.io/x/conn/v3/gpio); this package only depends on the interface so
// it stays testable without hardware.
type Pulser interface {
	SetHigh(high bool) error
}

// pulseWidth is how long the line is held high per pulse.
const pulseWidth = 10 * time.Millisecond

// idlePoll is how often the generator re-checks the BPM source while idle
// (BPM == 0), so a newly-arriving heart rate is picked up promptly.
const idlePoll = 500 * time.Millisecond

// Source supplies the current heart rate in BPM; 0 means "no reading".
type Source interface {
	GetHeartRate() int
}

// Generator drives p high for pulseWidth once per heartbeat, at the period
// implied by the current BPM from src.
type Generator struct {
	p   Pulser
	src Source
}

// New returns a Generator driving p at the rate reported by src.
func New(p Pulser, src Source) *Generator {
	return &Generator{p: p, src: src}
}

// Run blocks, pulsing p until ctx is cancelled.
func (g *Generator) Run(ctx context.Context) error {
	for {
		bpm := g.src.GetHeartRate()
		if bpm <= 0 {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(idlePoll):
				continue
			}
		}

		period := time.Minute / time.Duration(bpm)
		if err := g.p.SetHigh(true); err != nil {
			log.Printf("[pulse] set high: %v", err)
		}
		select {
		case <-ctx.Done():
			_ = g.p.SetHigh(false)
			return nil
		case <-time.After(pulseWidth):
		}
		if err := g.p.SetHigh(false); err != nil {
			log.Printf("[pulse] set low: %v", err)
		}

		rest := period - pulseWidth
		if rest < 0 {
			rest = 0
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(rest):
		}
	}
}
