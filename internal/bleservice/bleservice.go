// Package bleservice wires internal/ftms's pure wire encoding and
// internal/bleserver's GATT contract to a running rower.Adapter: it is the
// component that actually advertises the Fitness Machine, Heart Rate and
// Device Information services, notifies subscribers on a tick, and answers
// Control Point writes, the way internal/api wires the same Adapter to a
// websocket broadcast loop.
package bleservice

import (
	"context"
	"log"
	"time"

	"github.com/elp3dr/wrowfusion/internal/bleserver"
	"github.com/elp3dr/wrowfusion/internal/ftms"
	"github.com/elp3dr/wrowfusion/internal/rower"
)

// notifyInterval matches the 1Hz cadence FTMS rower data notifications
// conventionally use; finer than that just spends radio time on noise.
const notifyInterval = time.Second

// DeviceInfo holds the Device Information Service strings.
type DeviceInfo struct {
	Manufacturer     string
	Model            string
	SerialNumber     string
	HardwareRevision string
	FirmwareRevision string
	SoftwareRevision string
}

// CharFactory constructs a Characteristic for a UUID on the concrete GATT
// stack in use; the Publisher never constructs Characteristic values itself
// since their concrete type is stack-specific.
type CharFactory func(uuid string) bleserver.Characteristic

// Publisher advertises the FTMS Rower Data and HRS Measurement
// characteristics and keeps them updated from an Adapter's Snapshot.
type Publisher struct {
	gatt       bleserver.GATTServer
	adapter    *rower.Adapter
	deviceName string
	info       DeviceInfo
	newChar    CharFactory

	rowerChar   bleserver.Characteristic
	featureChar bleserver.Characteristic
	hrChar      bleserver.Characteristic
	controlPt   bleserver.Characteristic
}

// New returns a Publisher that will advertise as deviceName over gatt,
// source its notifications from adapter, and build its characteristics
// through newChar.
func New(gatt bleserver.GATTServer, adapter *rower.Adapter, deviceName string, info DeviceInfo, newChar CharFactory) *Publisher {
	return &Publisher{
		gatt:        gatt,
		adapter:     adapter,
		deviceName:  deviceName,
		info:        info,
		newChar:     newChar,
		rowerChar:   newChar(bleserver.CharUUIDRowerData),
		featureChar: newChar(bleserver.CharUUIDFTMSFeature),
		hrChar:      newChar(bleserver.CharUUIDHeartRateMeas),
		controlPt:   newChar(bleserver.CharUUIDFTMSControlPoint),
	}
}

// Run registers the FTMS/HRS/DIS services, starts advertising with the FTMS
// rower-mode service data, and notifies subscribers on a ticker until ctx is
// cancelled.
func (p *Publisher) Run(ctx context.Context) error {
	p.controlPt.OnWrite(p.handleControlPoint)
	if err := p.featureChar.SetValue(ftms.EncodeFeature()); err != nil {
		return err
	}

	if err := p.gatt.AddService(bleserver.ServiceUUIDFitnessMachine, []bleserver.Characteristic{p.rowerChar, p.featureChar, p.controlPt}); err != nil {
		return err
	}
	if err := p.gatt.AddService(bleserver.ServiceUUIDHeartRate, []bleserver.Characteristic{p.hrChar}); err != nil {
		return err
	}
	if err := p.addDeviceInformation(); err != nil {
		return err
	}

	serviceData := map[string][]byte{
		bleserver.ServiceUUIDFitnessMachine: ftms.AdvertisementServiceData(),
	}
	if err := p.gatt.Start(ctx, p.deviceName, []string{bleserver.ServiceUUIDFitnessMachine, bleserver.ServiceUUIDHeartRate}, serviceData); err != nil {
		return err
	}
	defer p.gatt.Stop()

	ticker := time.NewTicker(notifyInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			p.notify()
		}
	}
}

// addDeviceInformation registers the DIS with one read-only string
// characteristic per populated DeviceInfo field.
func (p *Publisher) addDeviceInformation() error {
	fields := []struct {
		uuid  string
		value string
	}{
		{bleserver.CharUUIDManufacturerName, p.info.Manufacturer},
		{bleserver.CharUUIDModelNumber, p.info.Model},
		{bleserver.CharUUIDSerialNumber, p.info.SerialNumber},
		{bleserver.CharUUIDHardwareRevision, p.info.HardwareRevision},
		{bleserver.CharUUIDFirmwareRevision, p.info.FirmwareRevision},
		{bleserver.CharUUIDSoftwareRevision, p.info.SoftwareRevision},
	}

	var chars []bleserver.Characteristic
	for _, f := range fields {
		if f.value == "" {
			continue
		}
		c := p.newChar(f.uuid)
		if err := c.SetValue([]byte(f.value)); err != nil {
			return err
		}
		chars = append(chars, c)
	}
	if len(chars) == 0 {
		return nil
	}
	return p.gatt.AddService(bleserver.ServiceUUIDDeviceInformation, chars)
}

func (p *Publisher) notify() {
	snap := p.adapter.Snapshot()
	if snap.IsZeroed {
		return
	}

	elapsedMin := snap.ElapsedTime.Minutes()
	avgStrokeRate := ftms.SafeDiv(float64(snap.StrokeCount), elapsedMin)
	avgPace := ftms.SafeDiv(500*snap.ElapsedTime.Seconds(), snap.DistanceMeters)
	energyPerHour := ftms.SafeDiv(snap.CaloriesKCal, snap.ElapsedTime.Hours())
	energyPerMin := ftms.SafeDiv(snap.CaloriesKCal, elapsedMin)

	in := ftms.RowerDataInput{
		StrokeRate:        snap.StrokeRate,
		StrokeCount:       uint16(snap.StrokeCount),
		AvgStrokeRate:     avgStrokeRate,
		TotalDistanceM:    uint32(snap.DistanceMeters),
		InstPaceSecs:      uint16(snap.Pace500m.Seconds()),
		AvgPaceSecs:       uint16(avgPace),
		InstPowerW:        int16(snap.InstWatts),
		AvgPowerW:         int16(snap.AvgWatts),
		TotalEnergyKCal:   uint16(snap.CaloriesKCal),
		EnergyPerHourKCal: uint16(energyPerHour),
		EnergyPerMinKCal:  uint8(energyPerMin),
		HeartRateBPM:      uint8(snap.HeartRateBPM),
		ElapsedTimeSecs:   uint16(snap.ElapsedTime.Seconds()),
	}
	if err := p.rowerChar.Notify(ftms.EncodeRowerData(in)); err != nil {
		log.Printf("[bleservice] rower data notify: %v", err)
	}

	if snap.HeartRateBPM > 0 {
		if err := p.hrChar.Notify(ftms.EncodeHeartRateMeasurement(uint8(snap.HeartRateBPM))); err != nil {
			log.Printf("[bleservice] heart rate notify: %v", err)
		}
	}
}

// handleControlPoint answers a Control Point write. Only the opcodes
// meaningful to a device that cannot be commanded to a target speed/power
// are honoured; the rest are decoded (so a well-formed response can still be
// sent) and rejected.
func (p *Publisher) handleControlPoint(data []byte) ([]byte, error) {
	req, err := ftms.DecodeControlPoint(data)
	if err != nil {
		if len(data) == 0 {
			return ftms.EncodeControlPointResponse(0, ftms.ResultInvalidParameter), nil
		}
		// Unrecognised opcodes, and target opcodes with a short parameter,
		// are not supported either.
		return ftms.EncodeControlPointResponse(req.Opcode, ftms.ResultOpcodeNotSupported), nil
	}

	switch req.Opcode {
	case ftms.OpRequestControl:
		return ftms.EncodeControlPointResponse(req.Opcode, ftms.ResultSuccess), nil

	case ftms.OpReset:
		if err := p.adapter.RequestReset(); err != nil {
			log.Printf("[bleservice] control point reset: %v", err)
			return ftms.EncodeControlPointResponse(req.Opcode, ftms.ResultOperationFailed), nil
		}
		return ftms.EncodeControlPointResponse(req.Opcode, ftms.ResultSuccess), nil

	default:
		// Includes OpStartOrResume/OpStopOrPause: the S4 has no remote
		// start/stop; only REQUEST_CONTROL and RESET reply success.
		return ftms.EncodeControlPointResponse(req.Opcode, ftms.ResultOpcodeNotSupported), nil
	}
}
