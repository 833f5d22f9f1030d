// Package bleserver defines the boundary between WRowFusion's telemetry
// model and an actual BLE GATT stack. It intentionally contains no
// transport code: wiring these interfaces to a real peripheral stack (e.g.
// github.com/paypal/gatt on Linux/BlueZ, or TinyGo's bluetooth package on a
// microcontroller target) is host-specific and out of scope here, but every
// FTMS/HRS byte this project produces (internal/ftms) is shaped to be
// handed directly to a Characteristic.Notify implementation.
package bleserver

import "context"

// ServiceUUID and characteristic UUIDs for the services WRowFusion
// advertises, per the Bluetooth SIG FTMS, HRS and DIS specifications.
const (
	ServiceUUIDFitnessMachine    = "00001826-0000-1000-8000-00805f9b34fb"
	ServiceUUIDHeartRate         = "0000180d-0000-1000-8000-00805f9b34fb"
	ServiceUUIDDeviceInformation = "0000180a-0000-1000-8000-00805f9b34fb"

	CharUUIDRowerData        = "00002ad1-0000-1000-8000-00805f9b34fb"
	CharUUIDFTMSControlPoint = "00002ad9-0000-1000-8000-00805f9b34fb"
	CharUUIDFTMSFeature      = "00002acc-0000-1000-8000-00805f9b34fb"
	CharUUIDHeartRateMeas    = "00002a37-0000-1000-8000-00805f9b34fb"

	CharUUIDManufacturerName = "00002a29-0000-1000-8000-00805f9b34fb"
	CharUUIDModelNumber      = "00002a24-0000-1000-8000-00805f9b34fb"
	CharUUIDSerialNumber     = "00002a25-0000-1000-8000-00805f9b34fb"
	CharUUIDHardwareRevision = "00002a27-0000-1000-8000-00805f9b34fb"
	CharUUIDFirmwareRevision = "00002a26-0000-1000-8000-00805f9b34fb"
	CharUUIDSoftwareRevision = "00002a28-0000-1000-8000-00805f9b34fb"
)

// Characteristic is a single GATT characteristic WRowFusion exposes.
// Implementations adapt a concrete BLE stack's notify/write-handling API to
// this shape.
type Characteristic interface {
	UUID() string
	// Notify pushes a new value to subscribed centrals. Returns
	// immediately if there are no subscribers.
	Notify(value []byte) error
	// SetValue stores the value returned to centrals that read this
	// characteristic (used for the static Feature and Device Information
	// values).
	SetValue(value []byte) error
	// OnWrite registers a handler invoked when a central writes to this
	// characteristic (used for the FTMS Control Point).
	OnWrite(handler func(data []byte) (response []byte, err error))
}

// Advertiser controls BLE advertising of the configured services.
// serviceData carries per-service advertisement payloads keyed by service
// UUID (the FTMS rower-mode declaration in particular).
type Advertiser interface {
	Start(ctx context.Context, deviceName string, serviceUUIDs []string, serviceData map[string][]byte) error
	Stop() error
}

// GATTServer is the full surface a concrete BLE stack adapter must
// implement to host WRowFusion's FTMS/HRS/DIS profile.
type GATTServer interface {
	Advertiser

	// AddService registers a service and its characteristics before
	// Start is called.
	AddService(serviceUUID string, characteristics []Characteristic) error
}
