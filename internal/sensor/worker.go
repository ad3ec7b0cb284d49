// Package sensor owns the BME280 handle and periodically samples it,
// packetising readings into protocol frames for the broker queue. Grounded
// on original_source/src/bme280.rs's BME280Sensor (measure, compress to
// wire units, print, thread_run ticker loop) over periph.io/x/devices/v3's
// own BME280 driver, the periph project's in-pack analogue of the
// original's linux_embedded_hal-backed bme280 crate.
package sensor

import (
	"fmt"
	"math"
	"time"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/bmxx80"

	"github.com/BuzzVerse/rusty-beagle/internal/broker"
	"github.com/BuzzVerse/rusty-beagle/internal/config"
	"github.com/BuzzVerse/rusty-beagle/internal/protocol"
	"github.com/BuzzVerse/rusty-beagle/internal/rlog"
)

// Worker owns an I2C bus and BME280 device for the lifetime of the run.
type Worker struct {
	cfg       config.BMEConfig
	bus       i2c.BusCloser
	dev       *bmxx80.Dev
	deviceID  uint8
	msgCount  uint8
	BrokerOut chan<- broker.Message
}

// Open opens the I2C bus and initializes the sensor at the configured
// 7-bit address.
func Open(cfg config.BMEConfig, deviceID uint8, brokerOut chan<- broker.Message) (*Worker, error) {
	bus, err := i2creg.Open(cfg.I2CBusPath)
	if err != nil {
		return nil, fmt.Errorf("sensor: open i2c bus %s: %w", cfg.I2CBusPath, err)
	}
	dev, err := bmxx80.NewI2C(bus, uint16(cfg.I2CAddress), &bmxx80.DefaultOpts)
	if err != nil {
		bus.Close()
		return nil, fmt.Errorf("sensor: init bme280 at 0x%02X: %w", cfg.I2CAddress, err)
	}
	return &Worker{cfg: cfg, bus: bus, dev: dev, deviceID: deviceID, BrokerOut: brokerOut}, nil
}

// Close releases the I2C bus.
func (w *Worker) Close() error {
	return w.bus.Close()
}

// Measure takes one reading and compresses it into wire units: temperature
// as round(°C*2), pressure as round(hPa-1000), humidity as round(%RH).
func (w *Worker) Measure() (protocol.BME280Payload, error) {
	var env physic.Env
	if err := w.dev.Sense(&env); err != nil {
		return protocol.BME280Payload{}, fmt.Errorf("sensor: read bme280: %w", err)
	}

	celsius := env.Temperature.Celsius()
	hPa := float64(env.Pressure) / float64(100*physic.Pascal)
	percentRH := float64(env.Humidity) / float64(physic.PercentRH)

	return compress(celsius, hPa, percentRH), nil
}

// compress maps a raw reading to the on-air wire units.
func compress(celsius, hPa, percentRH float64) protocol.BME280Payload {
	return protocol.BME280Payload{
		Temperature: uint8(int8(math.Round(celsius * 2))),
		Humidity:    uint8(math.Round(percentRH)),
		Pressure:    uint8(int8(math.Round(hPa - 1000))),
	}
}

// Run samples the sensor on the configured interval, printing diagnostics
// every cycle and, if the broker is wired in, pushing a BME280 frame onto
// BrokerOut. A measurement failure is logged and the loop continues — there
// is no retry backoff.
func (w *Worker) Run() {
	ticker := time.NewTicker(w.cfg.MeasurementPeriod())
	defer ticker.Stop()

	for {
		reading, err := w.Measure()
		if err != nil {
			rlog.Error("sensor: %v", err)
		} else {
			rlog.Info("sensor: temperature=%.1f°C pressure=%.1fhPa humidity=%.1f%%",
				float64(int8(reading.Temperature))/2.0, float64(int8(reading.Pressure))+1000.0, float64(reading.Humidity))

			if w.BrokerOut != nil {
				frame := protocol.Frame{
					Header: protocol.Header{
						Version:  0x33,
						DeviceID: w.deviceID,
						MsgID:    0x01,
						MsgCount: w.msgCount,
						DataType: protocol.DataTypeBME280,
					},
					Payload: reading,
				}
				w.msgCount++
				w.BrokerOut <- broker.Message{
					DeviceID: w.deviceID,
					Payload:  protocol.ToBrokerJSON(frame),
				}
			}
		}

		<-ticker.C
	}
}
