package ftms

import (
	"encoding/binary"
	"testing"
)

func TestEncodeRowerDataHeartRateFlag(t *testing.T) {
	withHR := EncodeRowerData(RowerDataInput{HeartRateBPM: 140})
	without := EncodeRowerData(RowerDataInput{HeartRateBPM: 0})

	flagsWith := binary.LittleEndian.Uint16(withHR[0:2])
	flagsWithout := binary.LittleEndian.Uint16(without[0:2])

	if flagsWith&flagHeartRatePresent == 0 {
		t.Error("expected heart rate flag set when BPM > 0")
	}
	if flagsWithout&flagHeartRatePresent != 0 {
		t.Error("expected heart rate flag clear when BPM == 0")
	}
	if len(withHR) != len(without)+1 {
		t.Errorf("expected payload to grow by 1 byte with HR present: %d vs %d", len(withHR), len(without))
	}
}

func TestEncodeRowerDataStrokeRateScaling(t *testing.T) {
	data := EncodeRowerData(RowerDataInput{StrokeRate: 24.5})
	// stroke rate is the first byte after the 2-byte flags field.
	if data[2] != 49 {
		t.Errorf("encoded stroke rate byte = %d, want 49 (24.5*2)", data[2])
	}
}

func TestDecodeControlPointSimpleOpcodes(t *testing.T) {
	for _, op := range []ControlPointOpcode{OpRequestControl, OpReset, OpStartOrResume, OpStopOrPause} {
		req, err := DecodeControlPoint([]byte{byte(op)})
		if err != nil {
			t.Fatalf("opcode 0x%02X: unexpected error: %v", op, err)
		}
		if req.Opcode != op {
			t.Errorf("got opcode %v, want %v", req.Opcode, op)
		}
	}
}

func TestDecodeControlPointWithParameter(t *testing.T) {
	req, err := DecodeControlPoint([]byte{byte(OpSetTargetPower), 0xF4, 0x00}) // 244 decimal
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Param != 244 {
		t.Errorf("Param = %d, want 244", req.Param)
	}
}

func TestDecodeControlPointErrors(t *testing.T) {
	if _, err := DecodeControlPoint(nil); err == nil {
		t.Error("expected error for empty write")
	}
	if _, err := DecodeControlPoint([]byte{byte(OpSetTargetPower)}); err == nil {
		t.Error("expected error for missing parameter bytes")
	}
	if _, err := DecodeControlPoint([]byte{0xFE}); err == nil {
		t.Error("expected error for unrecognised opcode")
	}
}

func TestEncodeFeatureShape(t *testing.T) {
	data := EncodeFeature()
	if len(data) != 8 {
		t.Fatalf("feature value = %d bytes, want 8", len(data))
	}
	target := binary.LittleEndian.Uint32(data[4:8])
	if target != 0 {
		t.Errorf("target features = 0x%08X, want 0 (no training control)", target)
	}
}

func TestAdvertisementServiceDataDeclaresRower(t *testing.T) {
	data := AdvertisementServiceData()
	want := []byte{0x01, 0x10, 0x00}
	if len(data) != len(want) {
		t.Fatalf("service data = % x, want % x", data, want)
	}
	for i := range want {
		if data[i] != want[i] {
			t.Fatalf("service data = % x, want % x", data, want)
		}
	}
}

func TestEncodeRowerDataEnergySentinels(t *testing.T) {
	data := EncodeRowerData(RowerDataInput{})
	// Layout after the 2-byte flags: stroke rate (1), stroke count (2),
	// avg stroke rate (1), distance (3), inst pace (2), avg pace (2),
	// inst power (2), avg power (2) -> energy starts at offset 17.
	const energyOff = 17
	if got := binary.LittleEndian.Uint16(data[energyOff+2 : energyOff+4]); got != EnergyUnavailable16 {
		t.Errorf("energy-per-hour = 0x%04X, want sentinel 0x%04X", got, EnergyUnavailable16)
	}
	if got := data[energyOff+4]; got != EnergyUnavailable8 {
		t.Errorf("energy-per-min = 0x%02X, want sentinel 0x%02X", got, EnergyUnavailable8)
	}
}

func TestSafeDiv(t *testing.T) {
	if got := SafeDiv(10, 0); got != 0 {
		t.Errorf("SafeDiv(10,0) = %v, want 0", got)
	}
	if got := SafeDiv(10, 2); got != 5 {
		t.Errorf("SafeDiv(10,2) = %v, want 5", got)
	}
}
