// Package s4 implements the serial wire protocol spoken by the WaterRower
// S4 performance monitor, and the low-level transport used to talk to it.
package s4

import (
	"bufio"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"
)

const (
	baudRate      = 19200
	readTimeout   = 10 * time.Millisecond
	portScanMatch = "WR-S4"

	// helloTimeout bounds how long Open waits for the "_WR_" handshake
	// response after sending "USB"; its absence is not fatal, so this
	// only affects how long Open spends polling before giving up and
	// returning control to the poll loops regardless.
	helloTimeout = 500 * time.Millisecond
)

// Config holds connection configuration for the S4 transport.
type Config struct {
	PortPath string `yaml:"port_path" json:"portPath"` // overrides auto-discovery when non-empty
}

// Rower owns the serial connection to the S4. Open, Close and Write hold mu
// while they use the port, so command lines written by the high- and
// low-frequency poll loops never interleave mid-line. ReadLine takes mu only
// to fetch the current line scanner and then reads without holding it.
type Rower struct {
	cfg Config
	mu  sync.Mutex

	port   serial.Port
	reader *bufio.Scanner
}

// NewRower constructs a Rower bound to the given configuration. It does not
// open the port; call Open (directly, or via a retry wrapper) before use.
func NewRower(cfg Config) *Rower {
	return &Rower{cfg: cfg}
}

// Open discovers (if cfg.PortPath is empty) and opens the S4's serial port
// at the fixed 19200 8N1 the firmware requires, and arms a short read
// timeout so ReadLine never blocks the poll loops indefinitely.
func (r *Rower) Open() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	path := r.cfg.PortPath
	if path == "" {
		found, err := findPort()
		if err != nil {
			return err
		}
		path = found
	}

	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(path, mode)
	if err != nil {
		return fmt.Errorf("s4: open %s: %w", path, err)
	}
	if err := port.SetReadTimeout(readTimeout); err != nil {
		port.Close()
		return fmt.Errorf("s4: set read timeout: %w", err)
	}

	r.port = port
	r.reader = bufio.NewScanner(port)
	r.reader.Split(scanCRLFLines)
	log.Printf("[s4] connected to %s at %d baud", path, baudRate)

	r.shakeHandsLocked()
	return nil
}

// shakeHandsLocked sends the USB-mode handshake and waits briefly for the
// "_WR_" acknowledgement. Must be called with mu held, immediately after
// opening the port. The absence of "_WR_" is not fatal: the poll
// loops start regardless, since some firmware revisions only emit it
// intermittently.
func (r *Rower) shakeHandsLocked() {
	if _, err := r.port.Write([]byte(cmdUSBSync + "\r\n")); err != nil {
		log.Printf("[s4] handshake write failed: %v", err)
		return
	}
	deadline := time.Now().Add(helloTimeout)
	for time.Now().Before(deadline) {
		if !r.reader.Scan() {
			if err := r.reader.Err(); err != nil {
				log.Printf("[s4] handshake read error: %v", err)
				return
			}
			continue
		}
		if strings.HasPrefix(r.reader.Text(), "_WR_") {
			log.Printf("[s4] handshake acknowledged")
			r.requestModelInfoLocked()
			return
		}
	}
	log.Printf("[s4] no handshake ack within %s, continuing anyway", helloTimeout)
	r.requestModelInfoLocked()
}

// requestModelInfoLocked asks the monitor for its model/firmware version;
// the IV response is parsed by the read loop and logged for diagnostics.
func (r *Rower) requestModelInfoLocked() {
	if _, err := r.port.Write([]byte(cmdModelInfo + "\r\n")); err != nil {
		log.Printf("[s4] model info request failed: %v", err)
	}
}

// Close sends the EXIT command to release USB control mode, waits briefly
// for it to be flushed, then releases the serial port. Safe to call on an
// unopened or already-closed Rower.
func (r *Rower) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.port == nil {
		return nil
	}
	if _, err := r.port.Write([]byte(cmdExit + "\r\n")); err != nil {
		log.Printf("[s4] exit write failed: %v", err)
	} else {
		time.Sleep(50 * time.Millisecond)
	}
	err := r.port.Close()
	r.port = nil
	r.reader = nil
	return err
}

// IsConnected reports whether the port is currently open.
func (r *Rower) IsConnected() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.port != nil
}

// Write upper-cases and sends one command line (without CRLF, which is
// appended here) to the S4. Upper-casing matches the vendor firmware's
// case-sensitive command parser regardless of how callers spell a command.
func (r *Rower) Write(line string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.port == nil {
		return fmt.Errorf("s4: write %q: not connected", line)
	}
	_, err := r.port.Write([]byte(strings.ToUpper(line) + "\r\n"))
	if err != nil {
		// A write failure usually means the USB cable was pulled or the
		// monitor powered off; drop the port so IsConnected goes false and
		// the owning read loop re-enters the connect cycle.
		r.port.Close()
		r.port = nil
		r.reader = nil
		return fmt.Errorf("s4: write %q: %w", line, err)
	}
	return nil
}

// ReadLine blocks until one CRLF-terminated line is available or the
// configured read timeout elapses, returning ("", nil) on timeout so
// callers can distinguish "nothing yet" from a real error.
func (r *Rower) ReadLine() (string, error) {
	r.mu.Lock()
	reader := r.reader
	r.mu.Unlock()
	if reader == nil {
		return "", fmt.Errorf("s4: read: not connected")
	}
	if !reader.Scan() {
		if err := reader.Err(); err != nil {
			return "", fmt.Errorf("s4: read: %w", err)
		}
		// Scan returning false with no error means the underlying
		// serial.Port's read timeout elapsed with no data; not fatal.
		return "", nil
	}
	return reader.Text(), nil
}

// scanCRLFLines is a bufio.SplitFunc that splits on CRLF and strips it,
// unlike bufio.ScanLines which only recognises bare LF (and would leave a
// trailing \r on each line from this device).
func scanCRLFLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := strings.Index(string(data), "\r\n"); i >= 0 {
		return i + 2, data[0:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// findPort scans the system's serial ports once for one that looks like the
// S4's USB-CDC interface. The caller owns the retry cadence (the S4 may be
// powered on after this process starts), so a miss is an error, not a loop.
func findPort() (string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return "", fmt.Errorf("s4: list ports: %w", err)
	}
	for _, p := range ports {
		if strings.Contains(p, portScanMatch) {
			return p, nil
		}
	}
	// WR-S4 rarely appears in the port's device path itself on Linux (it
	// shows up as /dev/ttyACM*); fall back to the first ACM/usbmodem-style
	// port when no name match is found.
	for _, p := range ports {
		if strings.Contains(p, "ACM") || strings.Contains(p, "usbmodem") {
			return p, nil
		}
	}
	return "", fmt.Errorf("s4: no S4 serial port found")
}
