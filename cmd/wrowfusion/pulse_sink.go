package main

import "log"

// loggingPulser is the default pulse.Pulser when no GPIO library is wired
// in for the target board: it logs line transitions instead of driving
// hardware, so internal/pulse's timing logic runs (and can be watched in
// the logs) on any host.
type loggingPulser struct {
	pin string
}

func (p *loggingPulser) SetHigh(high bool) error {
	log.Printf("[pulse] %s -> %v", p.pin, high)
	return nil
}
