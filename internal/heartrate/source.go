package heartrate

import (
	"context"
	"log"
)

// Reading is one BPM sample pushed by an external heart-rate source.
type Reading struct {
	BPM int
}

// ExternalSource is implemented by anything capable of supplying heart-rate
// readings from outside the S4 itself — a BLE HRM strap, an ANT+ receiver,
// or (in the degenerate case) the rower's own reading fed back through the
// same interface for uniform handling.
type ExternalSource interface {
	// Name identifies the source for logging.
	Name() string
	// Run blocks, pushing Readings to the supplied channel until ctx is
	// cancelled or an unrecoverable error occurs.
	Run(ctx context.Context, out chan<- Reading) error
}

// Pump reads from an ExternalSource and applies each Reading to the
// Monitor. It returns when Run does (ctx cancellation or error).
func Pump(ctx context.Context, src ExternalSource, m *Monitor, source Source) error {
	ch := make(chan Reading, 1)
	errCh := make(chan error, 1)
	go func() { errCh <- src.Run(ctx, ch) }()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errCh:
			return err
		case r := <-ch:
			m.UpdateHeartRate(r.BPM, source)
		}
	}
}

// RowerPassthrough is a trivial ExternalSource that never produces any
// readings: Run only blocks until ctx is cancelled. The rower's own
// chest-strap BPM (decoded from MEMORY_MAP's heart_rate register) does not
// pass through it; that value reaches the aggregator directly as a
// memory_read event.
type RowerPassthrough struct{}

func (RowerPassthrough) Name() string { return string(SourceRower) }

func (RowerPassthrough) Run(ctx context.Context, out chan<- Reading) error {
	<-ctx.Done()
	return nil
}

// BLEHRMSource is the ExternalSource for a standalone Bluetooth HRM strap,
// scanned and connected in the BLE central role. Actually talking to a
// strap needs a concrete BLE central stack (e.g. tinygo.org/x/bluetooth);
// wiring one is host-specific in the same way internal/bleserver's
// peripheral-role GATT stack is, so this stub only logs that the source is
// configured but inert, the way RowerPassthrough stands in for "rower".
type BLEHRMSource struct{}

func (BLEHRMSource) Name() string { return string(SourceBLE) }

func (BLEHRMSource) Run(ctx context.Context, out chan<- Reading) error {
	log.Printf("[heartrate] ble source configured but no BLE central stack is wired in; no readings will arrive")
	<-ctx.Done()
	return nil
}

// ANTHRMSource is the ExternalSource for an ANT+ heart-rate strap. As with
// BLEHRMSource, driving real hardware needs a concrete ANT+ USB stick
// driver; this stub keeps Pump's plumbing uniform across all configured
// sources without depending on one.
type ANTHRMSource struct{}

func (ANTHRMSource) Name() string { return string(SourceANT) }

func (ANTHRMSource) Run(ctx context.Context, out chan<- Reading) error {
	log.Printf("[heartrate] ant source configured but no ANT+ stack is wired in; no readings will arrive")
	<-ctx.Done()
	return nil
}
