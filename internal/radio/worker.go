// Package radio drives a Modem in either RX or TX role, dispatching to the
// plain or range-test variant named by configuration. Grounded on
// original_source/src/lora.rs's LoRa trait and start_lora dispatcher
// (configure, display parameters, dispatch on mode) and sx1278.rs's
// receive/transmit/rt_receive/rt_transmit bodies, generalized so the two
// RX variants and the two TX variants share one loop parameterized by
// which queues they feed.
package radio

import (
	"encoding/hex"
	"fmt"
	"math"
	"time"

	"github.com/BuzzVerse/rusty-beagle/internal/broker"
	"github.com/BuzzVerse/rusty-beagle/internal/config"
	"github.com/BuzzVerse/rusty-beagle/internal/csvlog"
	"github.com/BuzzVerse/rusty-beagle/internal/modem"
	"github.com/BuzzVerse/rusty-beagle/internal/protocol"
	"github.com/BuzzVerse/rusty-beagle/internal/rlog"
)

// txCadence is the soak/bring-up transmit rate for non-test TX mode; see
// design notes on why this is bring-up behavior, not a production rate.
const txCadence = 2 * time.Second

// synthDeviceID is the fixed device_id stamped on TX-mode's synthesized
// payload, matching the original's "id: 255 for tests".
const synthDeviceID = 255

// Modem is the narrow capability set the radio worker needs from a driver.
// A second modem variant may be substituted as long as it honours this
// interface; *modem.Driver satisfies it structurally.
type Modem interface {
	ConfigureLoRa(cfg modem.RadioConfig, mode modem.Mode) error
	DisplayParameters() (string, error)
	GetMode() (byte, error)
	ReceivePacket() ([]byte, bool, error)
	SendPacket([]byte) error
	GetPacketSNR() (uint8, error)
	GetPacketRSSI() (int, error)
}

// Worker drives Modem in the role fixed by config.Mode at construction.
type Worker struct {
	modem Modem
	role  config.Mode
	cfg   modem.RadioConfig

	BrokerOut chan<- broker.Message
	CSVOut    chan<- csvlog.Item
}

// New builds a radio worker for the given role. brokerOut/csvOut may be nil
// when the corresponding subsystem isn't wired in; the worker simply skips
// pushing to a nil queue.
func New(m Modem, role config.Mode, cfg modem.RadioConfig, brokerOut chan<- broker.Message, csvOut chan<- csvlog.Item) *Worker {
	return &Worker{modem: m, role: role, cfg: cfg, BrokerOut: brokerOut, CSVOut: csvOut}
}

// Run configures the modem for this role, prints the parameter banner, and
// dispatches to the receive or transmit loop. It returns only on a fatal
// transfer error; the orchestrator treats that as grounds for emergency
// shutdown.
func (w *Worker) Run() error {
	mode := modem.ModeRX
	if w.role == config.ModeTX || w.role == config.ModeTXRangeTest {
		mode = modem.ModeTX
	}

	if err := w.modem.ConfigureLoRa(w.cfg, mode); err != nil {
		return fmt.Errorf("radio: configure: %w", err)
	}

	banner, err := w.modem.DisplayParameters()
	if err != nil {
		return fmt.Errorf("radio: display parameters: %w", err)
	}
	rlog.Info("radio: %s", banner)

	switch w.role {
	case config.ModeRX:
		return w.receiveLoop(true, false)
	case config.ModeRXRangeTest:
		return w.receiveLoop(true, true)
	case config.ModeTX:
		return w.transmitLoop(false)
	case config.ModeTXRangeTest:
		return w.transmitLoop(true)
	default:
		return fmt.Errorf("radio: unknown mode %q", w.role)
	}
}

// receiveLoop blocks on DIO0 rising edges, decodes each frame, and routes
// it to the broker and/or CSV queues. A CRC-marked frame is logged but
// never forwarded to the broker; it's still recorded to CSV as a marker so
// the range-test artifact reflects every reception attempt.
func (w *Worker) receiveLoop(toBroker, toCSV bool) error {
	for {
		payload, crcError, err := w.modem.ReceivePacket()
		if err != nil {
			rlog.Error("radio: receive packet: %v", err)
			return err
		}

		snr, err := w.modem.GetPacketSNR()
		if err != nil {
			return fmt.Errorf("radio: read snr: %w", err)
		}
		rssi, err := w.modem.GetPacketRSSI()
		if err != nil {
			return fmt.Errorf("radio: read rssi: %w", err)
		}

		if crcError {
			rlog.Error("radio: CRC_ERROR receiving %d bytes: %s (snr=%ddB rssi=%ddBm)", len(payload), hex.EncodeToString(payload), snr, rssi)
			if toCSV && w.CSVOut != nil {
				w.CSVOut <- csvlog.Item{CRCError: true}
			}
			continue
		}

		frame, decErr := protocol.Decode(payload)
		if decErr != nil {
			rlog.Error("radio: bad frame (%d bytes): %s: %v", len(payload), hex.EncodeToString(payload), decErr)
			continue
		}

		rlog.Info("radio: received %s snr=%ddB rssi=%ddBm", frame, snr, rssi)

		if toBroker && w.BrokerOut != nil {
			record := protocol.EnrichedRecord{Frame: frame, SNRdB: snr, RSSIdBm: int16(rssi)}
			w.BrokerOut <- broker.Message{
				DeviceID: frame.Header.DeviceID,
				Payload:  protocol.ToBrokerJSONEnriched(record),
			}
		}
		if toCSV && w.CSVOut != nil {
			f := frame
			w.CSVOut <- csvlog.Item{Frame: &f}
		}
	}
}

// transmitLoop sends a synthesized BME280 frame at the bring-up cadence.
// This is a soak/link-test mode, not production traffic: see the design
// notes on the 2s non-test TX cadence.
func (w *Worker) transmitLoop(toCSV bool) error {
	for {
		frame := synthFrame()
		if err := w.modem.SendPacket(protocol.Encode(frame)); err != nil {
			rlog.Error("radio: send packet: %v", err)
			return err
		}
		rlog.Info("radio: transmitted %s", frame)

		if toCSV && w.CSVOut != nil {
			f := frame
			w.CSVOut <- csvlog.Item{Frame: &f}
		}

		time.Sleep(txCadence)
	}
}

// synthFrame builds the fixed dummy BME280 reading the original transmits
// in TX mode: -3.2°C, 45.6%RH, 996.6hPa, compressed the same way a real
// sensor reading would be.
func synthFrame() protocol.Frame {
	const dummyTemperatureC = -3.2
	const dummyHumidityPct = 45.6
	const dummyPressureHPa = 996.6

	return protocol.Frame{
		Header: protocol.Header{
			Version:  0x33,
			DeviceID: synthDeviceID,
			MsgID:    0x11,
			MsgCount: 0x00,
			DataType: protocol.DataTypeBME280,
		},
		Payload: protocol.BME280Payload{
			Temperature: uint8(int8(math.Round(dummyTemperatureC * 2))),
			Humidity:    uint8(math.Round(dummyHumidityPct)),
			Pressure:    uint8(int8(math.Round(dummyPressureHPa - 1000))),
		},
	}
}
