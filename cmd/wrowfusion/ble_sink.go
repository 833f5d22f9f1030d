package main

import (
	"context"
	"log"

	"github.com/elp3dr/wrowfusion/internal/bleserver"
)

// loggingGATTServer is the default bleserver.GATTServer when no real BLE
// peripheral stack is wired in for the target board: it logs advertising
// state and notification payloads instead of driving a GATT server, so
// internal/bleservice's publish loop and Control Point handling run (and can
// be watched in the logs) on any host, the same way loggingPulser stands in
// for a real GPIO backend.
type loggingGATTServer struct {
	services map[string][]bleserver.Characteristic
}

func newLoggingGATTServer() *loggingGATTServer {
	return &loggingGATTServer{services: make(map[string][]bleserver.Characteristic)}
}

func (s *loggingGATTServer) AddService(serviceUUID string, chars []bleserver.Characteristic) error {
	s.services[serviceUUID] = chars
	log.Printf("[ble] registered service %s with %d characteristic(s)", serviceUUID, len(chars))
	return nil
}

func (s *loggingGATTServer) Start(ctx context.Context, deviceName string, serviceUUIDs []string, serviceData map[string][]byte) error {
	log.Printf("[ble] advertising %q with services %v, service data %v (no BLE stack wired in; notifications are logged only)", deviceName, serviceUUIDs, serviceData)
	return nil
}

func (s *loggingGATTServer) Stop() error {
	log.Printf("[ble] advertising stopped")
	return nil
}

// loggingCharacteristic is a bleserver.Characteristic that logs Notify
// payloads and never receives real writes (OnWrite's handler is retained so
// a future real adapter swap keeps Control Point wiring intact, but nothing
// here ever calls it).
type loggingCharacteristic struct {
	uuid    string
	handler func(data []byte) ([]byte, error)
}

func newLoggingCharacteristic(uuid string) *loggingCharacteristic {
	return &loggingCharacteristic{uuid: uuid}
}

func (c *loggingCharacteristic) UUID() string { return c.uuid }

func (c *loggingCharacteristic) Notify(value []byte) error {
	log.Printf("[ble] notify %s: % x", c.uuid, value)
	return nil
}

func (c *loggingCharacteristic) SetValue(value []byte) error {
	log.Printf("[ble] set value %s: % x", c.uuid, value)
	return nil
}

func (c *loggingCharacteristic) OnWrite(handler func(data []byte) (response []byte, err error)) {
	c.handler = handler
}
