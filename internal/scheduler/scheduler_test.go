package scheduler

import (
	"testing"

	"github.com/elp3dr/wrowfusion/internal/s4"
)

func indexOf(addrs []string, addr string) int {
	for i, a := range addrs {
		if a == addr {
			return i
		}
	}
	return -1
}

// TestHighFreqClockOrderMostSignificantFirst guards the polling-order
// contract: clock components must be requested hours-first so a tick
// between component reads can't assemble a backwards time.
func TestHighFreqClockOrderMostSignificantFirst(t *testing.T) {
	addrs := addressesByFrequency(s4.FreqHigh)

	order := []string{"1E3", "1E2", "1E1", "1E0"}
	prev := -1
	for _, addr := range order {
		i := indexOf(addrs, addr)
		if i < 0 {
			t.Fatalf("clock register %s missing from high-frequency sweep", addr)
		}
		if i < prev {
			t.Fatalf("clock register %s polled before its more significant sibling (sweep: %v)", addr, addrs)
		}
		prev = i
	}
}

func TestAddressesByFrequencyExcludesMarkedRegisters(t *testing.T) {
	for _, addr := range addressesByFrequency(s4.FreqHigh) {
		if s4.MemoryMap[addr].ExcludeFromPollLoop {
			t.Errorf("address %s is marked exclude_from_poll_loop but appears in the sweep", addr)
		}
	}
}

func TestGateDefaultsAndToggle(t *testing.T) {
	g := NewGate()
	if !g.IsEnabled(s4.CategoryRowing) {
		t.Error("rowing polling should be enabled by default")
	}
	if g.IsEnabled(s4.CategoryWorkout) {
		t.Error("workout polling should be disabled until a program is declared")
	}

	g.SetEnabled(s4.CategoryWorkout, true)
	if !g.IsEnabled(s4.CategoryWorkout) {
		t.Error("SetEnabled(workout, true) had no effect")
	}
	g.SetEnabled(s4.CategoryWorkout, false)
	if g.IsEnabled(s4.CategoryWorkout) {
		t.Error("SetEnabled(workout, false) had no effect")
	}
}
