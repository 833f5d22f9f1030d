// Package scheduler drives the two cooperating polling loops that keep the
// S4's memory registers fresh: a high-frequency loop for rowing data and a
// low-frequency sweep for workout/zone/display state. Both loops share a
// single serial connection, so they are serialized through the S4 type's own
// write lock — the scheduler's job is pacing and category gating, not
// mutual exclusion.
package scheduler

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/elp3dr/wrowfusion/internal/s4"
)

const (
	// requestDelay paces successive IR requests so the S4's UART isn't
	// flooded; empirically 25ms between requests is reliable.
	requestDelay = 25 * time.Millisecond

	// lowFreqPause is the rest between full sweeps of the low-frequency
	// register set.
	lowFreqPause = 2 * time.Second

	// highFreqBurstSize triggers an optional short pause every N
	// high-frequency requests, giving the low-frequency loop a chance to
	// get a word in when both are runnable.
	highFreqBurstSize = 10
	highFreqPause     = 0 * time.Millisecond
)

// Writer is the subset of s4.Rower the scheduler needs: building and
// sending a memory-read request line.
type Writer interface {
	Write(line string) error
}

// Gate reports whether a given MEMORY_MAP category is currently enabled for
// polling. Disabling a category (e.g. "workout" once a session has ended)
// stops the corresponding registers from being requested without tearing
// down either loop.
type Gate struct {
	mu      sync.RWMutex
	enabled map[s4.Category]bool
}

// NewGate returns a Gate with rowing/state/program enabled and all other
// categories disabled; workout/zone registers are only worth polling
// while a program is being declared.
func NewGate() *Gate {
	g := &Gate{enabled: make(map[s4.Category]bool)}
	g.enabled[s4.CategoryRowing] = true
	g.enabled[s4.CategoryState] = true
	g.enabled[s4.CategoryProgram] = true
	return g
}

// SetEnabled turns polling of a category on or off.
func (g *Gate) SetEnabled(cat s4.Category, enabled bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.enabled[cat] = enabled
}

// IsEnabled reports whether cat is currently polled.
func (g *Gate) IsEnabled(cat s4.Category) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.enabled[cat]
}

// addressesByFrequency filters MEMORY_MAP addresses by frequency, preserving
// s4.OrderedAddresses' declaration order so clock components (deliberately
// listed MSB-first: 1E3, 1E2, 1E1, 1E0) are requested most-significant-digit
// first — minimising the chance a tick lands between component reads.
func addressesByFrequency(freq s4.Frequency) []string {
	var addrs []string
	for _, addr := range s4.OrderedAddresses() {
		field := s4.MemoryMap[addr]
		if field.Frequency == freq && !field.ExcludeFromPollLoop {
			addrs = append(addrs, addr)
		}
	}
	return addrs
}

// Scheduler owns the gate and runs the two poll loops until its context is
// cancelled.
type Scheduler struct {
	w    Writer
	gate *Gate

	highFreqAddrs []string
	lowFreqAddrs  []string
}

// New builds a Scheduler that writes requests through w, gated by gate.
func New(w Writer, gate *Gate) *Scheduler {
	return &Scheduler{
		w:             w,
		gate:          gate,
		highFreqAddrs: addressesByFrequency(s4.FreqHigh),
		lowFreqAddrs:  addressesByFrequency(s4.FreqLow),
	}
}

// Run starts the high- and low-frequency loops and blocks until ctx is
// cancelled. Write failures don't end the loops: the transport drops its
// port on error and the owning read loop reconnects, so the scheduler just
// backs off and keeps sweeping.
func (s *Scheduler) Run(ctx context.Context) error {
	done := make(chan struct{}, 2)

	go func() { s.runLoop(ctx, s.highFreqAddrs, highFreqBurstSize, highFreqPause, 0); done <- struct{}{} }()
	go func() { s.runLoop(ctx, s.lowFreqAddrs, 0, 0, lowFreqPause); done <- struct{}{} }()

	<-ctx.Done()
	<-done
	<-done
	return nil
}

// writeErrorBackoff is how long a loop rests after a failed request write,
// giving the transport time to reconnect before the next sweep hammers it.
const writeErrorBackoff = time.Second

// runLoop repeatedly sweeps addrs in order, skipping any whose category is
// currently gated off, pausing requestDelay between requests and
// sweepPause (when > 0) after a full sweep. When burstSize > 0, an additional
// burstPause is taken every burstSize requests within a sweep.
func (s *Scheduler) runLoop(ctx context.Context, addrs []string, burstSize int, burstPause, sweepPause time.Duration) {
	count := 0
	for {
		for _, addr := range addrs {
			field, ok := s4.MemoryMap[addr]
			if !ok || !s.gate.IsEnabled(field.Category) {
				continue
			}

			line, err := s4.RequestMemoryLine(addr)
			if err != nil {
				log.Printf("[scheduler] skipping %s: %v", addr, err)
				continue
			}
			if err := s.w.Write(line); err != nil {
				log.Printf("[scheduler] write %s: %v", line, err)
				select {
				case <-ctx.Done():
					return
				case <-time.After(writeErrorBackoff):
				}
				break
			}
			count++

			select {
			case <-ctx.Done():
				return
			case <-time.After(requestDelay):
			}

			if burstSize > 0 && burstPause > 0 && count%burstSize == 0 {
				select {
				case <-ctx.Done():
					return
				case <-time.After(burstPause):
				}
			}
		}

		if sweepPause > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(sweepPause):
			}
		}
	}
}
