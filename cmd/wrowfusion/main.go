// Command wrowfusion bridges a WaterRower S4 performance monitor's USB
// serial interface to a BLE FTMS/HRS telemetry surface and a local
// websocket/HTTP dashboard.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/elp3dr/wrowfusion/internal/api"
	"github.com/elp3dr/wrowfusion/internal/bleserver"
	"github.com/elp3dr/wrowfusion/internal/bleservice"
	"github.com/elp3dr/wrowfusion/internal/config"
	"github.com/elp3dr/wrowfusion/internal/heartrate"
	"github.com/elp3dr/wrowfusion/internal/pulse"
	"github.com/elp3dr/wrowfusion/internal/rower"
	"github.com/elp3dr/wrowfusion/internal/s4"
	"github.com/elp3dr/wrowfusion/internal/scheduler"
	"github.com/elp3dr/wrowfusion/internal/sessionlog"
	"github.com/elp3dr/wrowfusion/web"
)

// version is stamped at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	configPath := flag.String("config", "/etc/wrowfusion/config.yaml", "Path to config file")
	demo := flag.Bool("demo", false, "Run with a simulated S4 instead of opening a serial port")
	listenAddr := flag.String("listen", "", "Override listen address (e.g. :8080)")
	flag.Parse()

	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	log.Println("[main] wrowfusion starting")

	cfg := config.LoadConfig(*configPath)
	if *demo {
		cfg.S4.Demo = true
	}
	if *listenAddr != "" {
		cfg.Server.ListenAddr = *listenAddr
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("[main] received %v, shutting down", sig)
		cancel()
	}()

	agg := rower.New(rower.Config{
		PreferRowerPace:  cfg.Rower.PreferRowerPace,
		UseConcept2Power: cfg.Rower.UseConcept2Power,
	})
	gate := scheduler.NewGate()
	agg.SetGate(gate)
	hrMonitor := heartrate.New()

	var writer rower.Writer
	var transport connectable
	if cfg.S4.Demo {
		d := newDemoRower(agg)
		_ = d.Open()
		go d.Run(ctx)
		writer = d
		transport = d
	} else {
		s4Rower := s4.NewRower(s4.Config{PortPath: cfg.S4.PortPath})
		go readLoop(ctx, s4Rower, agg)

		sched := scheduler.New(s4Rower, gate)
		go func() {
			if err := sched.Run(ctx); err != nil {
				log.Printf("[scheduler] exited: %v", err)
			}
		}()

		writer = s4Rower
		transport = s4Rower
	}

	adapter := rower.NewAdapter(agg, writer, gate, hrMonitor)

	// When HeartRate.Source is "rower" (the default), no external pump is
	// needed: the S4's own heart_rate register already flows into the
	// aggregator via HandleEvent, and Adapter.Snapshot only consults
	// hrMonitor when that reading is zero. Any other source runs a Pump
	// goroutine that feeds hrMonitor independently.
	if src := externalHeartRateSource(cfg.HeartRate.Source); src != nil {
		go func() {
			if err := heartrate.Pump(ctx, src, hrMonitor, heartrate.Source(cfg.HeartRate.Source)); err != nil {
				log.Printf("[heartrate] pump exited: %v", err)
			}
		}()
	}

	if cfg.Pulse.Enabled {
		pulseGen := pulse.New(&loggingPulser{pin: cfg.Pulse.Pin}, hrMonitor)
		go func() {
			if err := pulseGen.Run(ctx); err != nil {
				log.Printf("[pulse] generator exited: %v", err)
			}
		}()
	}

	if cfg.BLE.Enabled {
		gatt := newLoggingGATTServer()
		info := bleservice.DeviceInfo{
			Manufacturer:     "WaterRower",
			Model:            "S4",
			SerialNumber:     "0000",
			HardwareRevision: "2.20",
			FirmwareRevision: "2.20",
			SoftwareRevision: version,
		}
		pub := bleservice.New(gatt, adapter, cfg.BLE.DeviceName, info,
			func(uuid string) bleserver.Characteristic { return newLoggingCharacteristic(uuid) })
		go func() {
			if err := pub.Run(ctx); err != nil {
				log.Printf("[ble] publisher exited: %v", err)
			}
		}()
	}

	go idleTimeoutWatchdog(ctx, agg)

	sessLog := sessionlog.New(sessionlog.Config{
		Enabled:    cfg.SessionLog.Enabled,
		Path:       cfg.SessionLog.Path,
		IntervalMs: cfg.SessionLog.IntervalMs,
	})

	srv := api.New(cfg, adapter, sessLog, web.FS)
	if err := srv.Run(ctx); err != nil {
		log.Printf("[main] api server exited: %v", err)
	}

	// Release USB control mode (EXIT) before the process goes away so the
	// monitor returns to standalone operation.
	if err := transport.Close(); err != nil {
		log.Printf("[main] transport close: %v", err)
	}
	log.Println("[main] shutdown complete")
}

// externalHeartRateSource resolves the configured HeartRate.Source to an
// ExternalSource to Pump, or nil when no external source is needed ("none"
// or the "rower" default, which flows heart_rate reads in through
// HandleEvent directly rather than through a Pump goroutine).
func externalHeartRateSource(source string) heartrate.ExternalSource {
	switch source {
	case "ble":
		return heartrate.BLEHRMSource{}
	case "ant":
		return heartrate.ANTHRMSource{}
	default:
		return nil
	}
}

// idleTimeoutWatchdog periodically asks the aggregator to check whether the
// session has gone idle long enough to end automatically.
func idleTimeoutWatchdog(ctx context.Context, agg *rower.Aggregator) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			agg.CheckIdleTimeout()
		}
	}
}

// readLoop owns the S4 connection's lifecycle: it (re)connects whenever the
// transport is down — including after a write failure dropped the port —
// then continuously reads lines and feeds decoded events to the aggregator.
// ReadLine returning ("", nil) on a read timeout is not an error — it just
// means nothing arrived within the poll interval.
func readLoop(ctx context.Context, r *s4.Rower, agg *rower.Aggregator) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if !r.IsConnected() {
			connectWithRetry(ctx, "s4", r)
			continue
		}

		line, err := r.ReadLine()
		if err != nil {
			log.Printf("[s4] read error: %v", err)
			time.Sleep(time.Second)
			continue
		}
		if line == "" {
			continue
		}

		ev, err := s4.ParseLine(line, time.Now())
		if err != nil {
			log.Printf("[s4] %v", err)
			continue
		}
		if ev.Type == s4.EventModelInfo {
			log.Printf("[s4] monitor reports %s", ev.Raw)
			continue
		}
		agg.HandleEvent(ev)
	}
}

// connectable is satisfied by s4.Rower (and the demo rower, trivially).
type connectable interface {
	Open() error
	Close() error
}

// connectRetryDelay is the fixed pause between connection attempts: one
// port scan every 5 seconds, retried indefinitely, so a monitor powered on
// minutes after the daemon is still picked up within one interval.
const connectRetryDelay = 5 * time.Second

// connectWithRetry attempts to connect every connectRetryDelay until it
// succeeds or ctx is cancelled.
func connectWithRetry(ctx context.Context, name string, c connectable) {
	attempt := 0

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := c.Open(); err != nil {
			attempt++
			log.Printf("[%s] connect attempt %d failed: %v (retry in %v)", name, attempt, err, connectRetryDelay)

			select {
			case <-ctx.Done():
				return
			case <-time.After(connectRetryDelay):
			}
		} else {
			log.Printf("[%s] connected successfully (attempt %d)", name, attempt+1)
			return
		}
	}
}
