// Package orchestrator starts the enabled workers, routes the shared
// broker/CSV channels between them, and performs the emergency modem reset
// on shutdown. Grounded on the teacher's internal/engine.Engine lifecycle
// (wg.Add/wg.Wait-before-close ordering, sequential stop-with-logged-errors
// in Stop), generalized from its db/lora/cloud/ota wiring to this design's
// broker/modem/sensor/csv/radio wiring.
package orchestrator

import (
	"fmt"
	"os"
	"sync"

	"github.com/BuzzVerse/rusty-beagle/internal/broker"
	"github.com/BuzzVerse/rusty-beagle/internal/config"
	"github.com/BuzzVerse/rusty-beagle/internal/csvlog"
	"github.com/BuzzVerse/rusty-beagle/internal/post"
	"github.com/BuzzVerse/rusty-beagle/internal/radio"
	"github.com/BuzzVerse/rusty-beagle/internal/rlog"
	"github.com/BuzzVerse/rusty-beagle/internal/sensor"
	"github.com/BuzzVerse/rusty-beagle/internal/shutdown"
)

// brokerQueueDepth and csvQueueDepth bound the in-process channels per the
// design's "bounded in-process channels" requirement; producers block once
// a queue is full rather than growing without limit.
const (
	brokerQueueDepth = 32
	csvQueueDepth    = 32
)

// csvDir is where range-test CSV artifacts land, per the design.
func csvDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "/home/debian"
	}
	return home + "/rusty-beagle-csv/"
}

// Orchestrator owns every worker for one run.
type Orchestrator struct {
	cfg        *config.Config
	healthy    post.Result
	resetPin   int
	brokerW    *broker.Worker
	csvW       *csvlog.Worker
	sensorW    *sensor.Worker
	radioW     *radio.Worker
	wg         sync.WaitGroup
	workerErrs chan error
}

// New builds an orchestrator that starts only the subsystems healthy says
// are both probed-OK and enabled in cfg. radioW and sensorW may already be
// wired to a live modem/BME280 handle by the caller (cmd/main.go), since
// those require platform-specific SPI/I2C/GPIO opens outside this package's
// remit.
func New(cfg *config.Config, healthy post.Result, radioW *radio.Worker, sensorW *sensor.Worker) *Orchestrator {
	resetPin := 0
	if cfg.LoRaConfig != nil {
		resetPin = cfg.LoRaConfig.ResetGPIO
	}

	o := &Orchestrator{
		cfg:        cfg,
		healthy:    healthy,
		resetPin:   resetPin,
		radioW:     radioW,
		sensorW:    sensorW,
		workerErrs: make(chan error, 4),
	}

	if healthy.MQTT && cfg.MQTTEnabled() {
		o.brokerW = broker.New(*cfg.MQTTConfig, brokerQueueDepth)
	}
	if cfg.LoRaConfig != nil && isRangeTest(cfg.LoRaConfig.Mode) {
		o.csvW = csvlog.New(csvDir(), *cfg.LoRaConfig, csvQueueDepth)
	}

	return o
}

func isRangeTest(mode config.Mode) bool {
	return mode == config.ModeRXRangeTest || mode == config.ModeTXRangeTest
}

// postStatusMessage is the one-shot broker item reporting which subsystems
// passed POST this run, pushed ahead of any sensor/radio traffic.
func (o *Orchestrator) postStatusMessage() broker.Message {
	deviceID := uint8(0)
	if o.cfg.MQTTConfig != nil {
		deviceID = o.cfg.MQTTConfig.DeviceID
	}
	return broker.Message{DeviceID: deviceID, Payload: o.healthy.BrokerPayload()}
}

// Start launches every enabled worker as its own goroutine, wiring the
// broker sender to whichever producers are active (radio, sensor) and the
// CSV sender to the radio worker when range-testing.
func (o *Orchestrator) Start() {
	if o.brokerW != nil {
		if o.radioW != nil {
			o.radioW.BrokerOut = o.brokerW.In
		}
		if o.sensorW != nil {
			o.sensorW.BrokerOut = o.brokerW.In
		}

		o.brokerW.In <- o.postStatusMessage()

		o.runWorker(func() error { return o.brokerW.Run() })
	}

	if o.csvW != nil {
		if o.radioW != nil {
			o.radioW.CSVOut = o.csvW.In
		}
		o.runWorker(func() error { return o.csvW.Run() })
	}

	if o.healthy.BME280 && o.cfg.BMEEnabled() && o.sensorW != nil {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			o.sensorW.Run()
		}()
	}

	if o.healthy.LoRa && o.cfg.LoRaEnabled() && o.radioW != nil {
		o.runWorker(func() error { return o.radioW.Run() })
	}
}

// runWorker runs fn in its own goroutine; a returned error is forwarded to
// workerErrs, which Wait treats as grounds for emergency shutdown.
func (o *Orchestrator) runWorker(fn func() error) {
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		if err := fn(); err != nil {
			select {
			case o.workerErrs <- err:
			default:
			}
		}
	}()
}

// Wait blocks until either a shutdown signal arrives or a worker reports a
// fatal error, then performs the emergency modem reset and returns. It
// never returns nil-vs-non-nil based on the worker wait group completing;
// normal operation runs forever until one of these two events occurs.
func (o *Orchestrator) Wait(sig shutdown.Chan) error {
	select {
	case s := <-sig:
		rlog.Info("orchestrator: received signal %v, shutting down", s)
	case err := <-o.workerErrs:
		rlog.Error("orchestrator: worker failed: %v", err)
	}

	if o.cfg.LoRaConfig != nil {
		if err := shutdown.EmergencyReset(o.resetPin); err != nil {
			rlog.Error("orchestrator: emergency reset: %v", err)
			return fmt.Errorf("orchestrator: emergency reset: %w", err)
		}
		rlog.Info("orchestrator: modem reset")
	}

	return nil
}
