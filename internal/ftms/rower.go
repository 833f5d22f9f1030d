// Package ftms implements the Bluetooth LE Fitness Machine Service "Rower
// Data" characteristic and the Heart Rate Service measurement
// characteristic, plus the FTMS Control Point opcode table. All functions
// here are pure encode/decode — no I/O, no GATT server state — so they can
// be exercised without any BLE stack.
package ftms

import "encoding/binary"

// RowerData flag bits, per the Bluetooth FTMS spec's Rower Data
// characteristic (§4.9 of the 1.0 spec). Only the subset this project
// populates is named; the rest of the 16-bit flag field is reserved/zero.
const (
	flagMoreData              uint16 = 1 << 0 // inverted: 0 = stroke rate+count present
	flagAverageStrokeRate     uint16 = 1 << 1
	flagTotalDistancePresent  uint16 = 1 << 2
	flagInstPacePresent       uint16 = 1 << 3
	flagAvgPacePresent        uint16 = 1 << 4
	flagInstPowerPresent      uint16 = 1 << 5
	flagAvgPowerPresent       uint16 = 1 << 6
	flagResistanceLevel       uint16 = 1 << 7
	flagExpendedEnergy        uint16 = 1 << 8
	flagHeartRatePresent      uint16 = 1 << 9
	flagMetabolicEquivalent   uint16 = 1 << 10
	flagElapsedTimePresent    uint16 = 1 << 11
	flagRemainingTimePresent  uint16 = 1 << 12
)

// Fitness Machine Feature bits (characteristic 0x2ACC, first 4 bytes of the
// 8-byte field; the second 4 bytes are target-setting features, all zero
// here since no training control is supported).
const (
	featTotalDistance  uint32 = 1 << 2
	featPace           uint32 = 1 << 5
	featExpendedEnergy uint32 = 1 << 9
	featHeartRate      uint32 = 1 << 10
	featElapsedTime    uint32 = 1 << 12
	featPower          uint32 = 1 << 14
)

// EncodeFeature builds the 8-byte little-endian Fitness Machine Feature
// value: the machine-features word describing what this rower reports,
// followed by an all-zero target-features word.
func EncodeFeature() []byte {
	features := featTotalDistance | featPace | featExpendedEnergy | featHeartRate | featElapsedTime | featPower
	buf := make([]byte, 0, 8)
	buf = binary.LittleEndian.AppendUint32(buf, features)
	buf = binary.LittleEndian.AppendUint32(buf, 0)
	return buf
}

// AdvertisementServiceData is the FTMS service-data payload advertised under
// UUID 0x1826: flags byte 0x01 (fitness machine available) followed by the
// little-endian machine-type bitfield with the rower bit (0x0010) set.
func AdvertisementServiceData() []byte {
	return []byte{0x01, 0x10, 0x00}
}

// Sentinels for energy sub-fields a machine cannot currently derive (e.g.
// energy-per-hour with zero elapsed time), per the FTMS data-not-available
// convention.
const (
	EnergyUnavailable16 uint16 = 0xFFFF
	EnergyUnavailable8  uint8  = 0xFF
)

// RowerDataInput is everything the encoder needs to build one Rower Data
// notification payload.
type RowerDataInput struct {
	StrokeRate        float64 // strokes/min; encoded at 0.5 resolution per spec
	StrokeCount       uint16
	AvgStrokeRate     float64
	TotalDistanceM    uint32 // metres, 24-bit field (truncated to 0xFFFFFF)
	InstPaceSecs      uint16 // seconds per 500m
	AvgPaceSecs       uint16
	InstPowerW        int16
	AvgPowerW         int16
	TotalEnergyKCal   uint16
	EnergyPerHourKCal uint16
	EnergyPerMinKCal  uint8
	HeartRateBPM      uint8
	ElapsedTimeSecs   uint16
}

// EncodeRowerData builds the flags+payload byte sequence for a Rower Data
// notification. Fields whose zero value is meaningless (e.g. power when the
// rower hasn't taken a stroke yet) are still encoded — callers decide
// whether to send a notification at all, not whether to omit a field from
// one.
func EncodeRowerData(in RowerDataInput) []byte {
	var flags uint16
	flags |= flagAverageStrokeRate
	flags |= flagTotalDistancePresent
	flags |= flagInstPacePresent
	flags |= flagAvgPacePresent
	flags |= flagInstPowerPresent
	flags |= flagAvgPowerPresent
	flags |= flagExpendedEnergy
	flags |= flagElapsedTimePresent
	if in.HeartRateBPM > 0 {
		flags |= flagHeartRatePresent
	}

	buf := make([]byte, 0, 32)
	buf = binary.LittleEndian.AppendUint16(buf, flags)

	// Stroke rate (0.5 resolution) + stroke count always present when
	// flagMoreData (bit 0) is clear, as here.
	buf = append(buf, uint8(in.StrokeRate*2))
	buf = binary.LittleEndian.AppendUint16(buf, in.StrokeCount)

	buf = append(buf, uint8(in.AvgStrokeRate*2))

	buf = append(buf, uint8(in.TotalDistanceM&0xFF), uint8((in.TotalDistanceM>>8)&0xFF), uint8((in.TotalDistanceM>>16)&0xFF))

	buf = binary.LittleEndian.AppendUint16(buf, in.InstPaceSecs)
	buf = binary.LittleEndian.AppendUint16(buf, in.AvgPaceSecs)

	buf = binary.LittleEndian.AppendUint16(buf, uint16(in.InstPowerW))
	buf = binary.LittleEndian.AppendUint16(buf, uint16(in.AvgPowerW))

	buf = binary.LittleEndian.AppendUint16(buf, in.TotalEnergyKCal)
	// Energy rates can't be derived until some time has elapsed; the FTMS
	// convention for a present-but-unavailable sub-field is the sentinel.
	perHour := in.EnergyPerHourKCal
	if perHour == 0 {
		perHour = EnergyUnavailable16
	}
	perMin := in.EnergyPerMinKCal
	if perMin == 0 {
		perMin = EnergyUnavailable8
	}
	buf = binary.LittleEndian.AppendUint16(buf, perHour)
	buf = append(buf, perMin)

	if flags&flagHeartRatePresent != 0 {
		buf = append(buf, in.HeartRateBPM)
	}

	buf = binary.LittleEndian.AppendUint16(buf, in.ElapsedTimeSecs)

	return buf
}

// EncodeHeartRateMeasurement builds the Heart Rate Service measurement
// characteristic payload (simple 8-bit BPM format; the spec's 16-bit
// variant is unused here since the S4/any BLE strap in play reports BPM
// well under 255).
func EncodeHeartRateMeasurement(bpm uint8) []byte {
	const flags = 0x00 // 8-bit value, no sensor contact/energy/RR fields
	return []byte{flags, bpm}
}

// SafeDiv divides a by b, returning 0 instead of NaN/Inf when b is zero —
// used throughout snapshot-to-wire conversion wherever an average is
// derived from a possibly-zero denominator (e.g. pace from zero speed).
func SafeDiv(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}
