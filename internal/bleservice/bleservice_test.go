package bleservice

import (
	"testing"
	"time"

	"github.com/elp3dr/wrowfusion/internal/bleserver"
	"github.com/elp3dr/wrowfusion/internal/ftms"
	"github.com/elp3dr/wrowfusion/internal/heartrate"
	"github.com/elp3dr/wrowfusion/internal/rower"
	"github.com/elp3dr/wrowfusion/internal/s4"
	"github.com/elp3dr/wrowfusion/internal/scheduler"
)

type fakeWriter struct{ lines []string }

func (f *fakeWriter) Write(line string) error {
	f.lines = append(f.lines, line)
	return nil
}

type fakeChar struct {
	uuid     string
	value    []byte
	notified [][]byte
	onWrite  func(data []byte) ([]byte, error)
}

func (c *fakeChar) UUID() string { return c.uuid }

func (c *fakeChar) Notify(value []byte) error {
	c.notified = append(c.notified, value)
	return nil
}

func (c *fakeChar) SetValue(value []byte) error {
	c.value = value
	return nil
}

func (c *fakeChar) OnWrite(handler func(data []byte) ([]byte, error)) {
	c.onWrite = handler
}

func newTestPublisher() (*Publisher, map[string]*fakeChar, *rower.Aggregator) {
	agg := rower.New(rower.Config{})
	gate := scheduler.NewGate()
	agg.SetGate(gate)
	hr := heartrate.New()
	adapter := rower.NewAdapter(agg, &fakeWriter{}, gate, hr)

	chars := make(map[string]*fakeChar)
	factory := func(uuid string) bleserver.Characteristic {
		c := &fakeChar{uuid: uuid}
		chars[uuid] = c
		return c
	}

	pub := New(nil, adapter, "test", DeviceInfo{Manufacturer: "WaterRower", Model: "S4"}, factory)
	return pub, chars, agg
}

func TestNotifySkipsZeroedSession(t *testing.T) {
	pub, chars, _ := newTestPublisher()
	pub.notify()
	if n := len(chars[bleserver.CharUUIDRowerData].notified); n != 0 {
		t.Errorf("expected no notification before any stroke, got %d", n)
	}
}

func TestNotifyEncodesRowerData(t *testing.T) {
	pub, chars, agg := newTestPublisher()

	agg.HandleEvent(s4.Event{Type: s4.EventPulse, At: time.Now()})
	agg.HandleEvent(s4.Event{Type: s4.EventMemoryRead, Field: "total_distance", Value: 250})
	agg.HandleEvent(s4.Event{Type: s4.EventStrokeStart})
	agg.HandleEvent(s4.Event{Type: s4.EventMemoryRead, Field: "watts", Value: 120})
	agg.HandleEvent(s4.Event{Type: s4.EventStrokeEnd})

	pub.notify()
	rowerChar := chars[bleserver.CharUUIDRowerData]
	if len(rowerChar.notified) != 1 {
		t.Fatalf("expected one notification, got %d", len(rowerChar.notified))
	}
	if len(rowerChar.notified[0]) < 4 {
		t.Errorf("encoded rower data payload too short: %d bytes", len(rowerChar.notified[0]))
	}
}

func TestHandleControlPointReset(t *testing.T) {
	pub, _, _ := newTestPublisher()

	resp, err := pub.handleControlPoint([]byte{byte(ftms.OpReset)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	req, decErr := ftms.DecodeControlPoint(resp[1:2])
	if decErr != nil {
		t.Fatalf("response wasn't a valid echo of the opcode: %v", decErr)
	}
	if req.Opcode != ftms.OpReset {
		t.Errorf("echoed opcode = %v, want OpReset", req.Opcode)
	}
	if resp[2] != byte(ftms.ResultSuccess) {
		t.Errorf("result code = 0x%02X, want ResultSuccess", resp[2])
	}
}

func TestHandleControlPointStartStopNotSupported(t *testing.T) {
	pub, _, _ := newTestPublisher()

	for _, op := range []ftms.ControlPointOpcode{ftms.OpStartOrResume, ftms.OpStopOrPause} {
		resp, err := pub.handleControlPoint([]byte{byte(op)})
		if err != nil {
			t.Fatalf("opcode 0x%02X: unexpected error: %v", op, err)
		}
		if resp[2] != byte(ftms.ResultOpcodeNotSupported) {
			t.Errorf("opcode 0x%02X: result code = 0x%02X, want ResultOpcodeNotSupported", op, resp[2])
		}
	}
}

func TestHandleControlPointUnsupportedOpcode(t *testing.T) {
	pub, _, _ := newTestPublisher()

	resp, err := pub.handleControlPoint([]byte{byte(ftms.OpSetTargetPower), 0x0A, 0x00})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp[2] != byte(ftms.ResultOpcodeNotSupported) {
		t.Errorf("result code = 0x%02X, want ResultOpcodeNotSupported", resp[2])
	}
}
