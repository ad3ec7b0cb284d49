package radio

import (
	"bytes"
	"errors"
	"testing"

	"github.com/BuzzVerse/rusty-beagle/internal/broker"
	"github.com/BuzzVerse/rusty-beagle/internal/config"
	"github.com/BuzzVerse/rusty-beagle/internal/csvlog"
	"github.com/BuzzVerse/rusty-beagle/internal/modem"
	"github.com/BuzzVerse/rusty-beagle/internal/protocol"
)

// fakeModem is a scripted Modem double: ReceivePacket/SendPacket return from
// queues so tests can drive a fixed number of iterations before erroring out
// to stop the loop, mirroring the modem package's own fake SPI test style.
type fakeModem struct {
	rxPackets []fakeRx
	rxIdx     int

	sentPackets [][]byte
	sendErrAt   int
	sendCount   int

	snr  uint8
	rssi int

	configured bool
}

type fakeRx struct {
	payload  []byte
	crcError bool
}

func (m *fakeModem) ConfigureLoRa(cfg modem.RadioConfig, mode modem.Mode) error {
	m.configured = true
	return nil
}

func (m *fakeModem) DisplayParameters() (string, error) { return "fake params", nil }

func (m *fakeModem) GetMode() (byte, error) { return 5, nil }

func (m *fakeModem) ReceivePacket() ([]byte, bool, error) {
	if m.rxIdx >= len(m.rxPackets) {
		return nil, false, errors.New("no more fake packets")
	}
	p := m.rxPackets[m.rxIdx]
	m.rxIdx++
	return p.payload, p.crcError, nil
}

func (m *fakeModem) SendPacket(b []byte) error {
	m.sendCount++
	if m.sendErrAt != 0 && m.sendCount >= m.sendErrAt {
		return errors.New("fake send failure")
	}
	cp := make([]byte, len(b))
	copy(cp, b)
	m.sentPackets = append(m.sentPackets, cp)
	return nil
}

func (m *fakeModem) GetPacketSNR() (uint8, error)  { return m.snr, nil }
func (m *fakeModem) GetPacketRSSI() (int, error)   { return m.rssi, nil }

func TestReceiveLoopRoutesToBrokerAndCSV(t *testing.T) {
	frame := protocol.Frame{
		Header:  protocol.Header{Version: 0x33, DeviceID: 9, DataType: protocol.DataTypeBME280},
		Payload: protocol.BME280Payload{Temperature: 10, Humidity: 20, Pressure: 30},
	}
	m := &fakeModem{rxPackets: []fakeRx{{payload: protocol.Encode(frame)}}, snr: 5, rssi: 80}

	brokerOut := make(chan broker.Message, 1)
	csvOut := make(chan csvlog.Item, 1)
	w := New(m, config.ModeRXRangeTest, modem.RadioConfig{}, brokerOut, csvOut)

	if err := w.Run(); err == nil {
		t.Fatal("Run() error = nil, want error once packets are exhausted")
	}

	select {
	case msg := <-brokerOut:
		if msg.DeviceID != 9 {
			t.Errorf("broker message DeviceID = %d, want 9", msg.DeviceID)
		}
	default:
		t.Fatal("expected a broker message")
	}

	select {
	case item := <-csvOut:
		if item.CRCError {
			t.Fatal("csv item marked CRCError, want clean frame")
		}
	default:
		t.Fatal("expected a csv item")
	}
}

func TestReceiveLoopCRCErrorSkipsBroker(t *testing.T) {
	m := &fakeModem{rxPackets: []fakeRx{{crcError: true}}}

	brokerOut := make(chan broker.Message, 1)
	csvOut := make(chan csvlog.Item, 1)
	w := New(m, config.ModeRXRangeTest, modem.RadioConfig{}, brokerOut, csvOut)

	if err := w.Run(); err == nil {
		t.Fatal("Run() error = nil, want error once packets are exhausted")
	}

	select {
	case <-brokerOut:
		t.Fatal("CRC error frame must not reach broker")
	default:
	}

	select {
	case item := <-csvOut:
		if !item.CRCError {
			t.Fatal("expected a CRC_ERROR marker item")
		}
	default:
		t.Fatal("expected a csv item")
	}
}

func TestTransmitLoopSendsSynthFrame(t *testing.T) {
	m := &fakeModem{sendErrAt: 2}
	csvOut := make(chan csvlog.Item, 1)
	w := New(m, config.ModeTXRangeTest, modem.RadioConfig{}, nil, csvOut)

	if err := w.Run(); err == nil {
		t.Fatal("Run() error = nil, want error from fake send failure")
	}
	if !m.configured {
		t.Fatal("ConfigureLoRa was not called")
	}
	want := protocol.Encode(synthFrame())
	if len(m.sentPackets) != 1 || !bytes.Equal(m.sentPackets[0], want) {
		t.Fatalf("sent packets = % X, want one synthesized frame % X", m.sentPackets, want)
	}
}

func TestSynthFrameMatchesDummyReading(t *testing.T) {
	f := synthFrame()
	if f.Header.DeviceID != synthDeviceID {
		t.Errorf("DeviceID = %d, want %d", f.Header.DeviceID, synthDeviceID)
	}
	payload, ok := f.Payload.(protocol.BME280Payload)
	if !ok {
		t.Fatalf("Payload type = %T, want BME280Payload", f.Payload)
	}
	if int8(payload.Temperature) != -6 {
		t.Errorf("Temperature = %d, want -6", int8(payload.Temperature))
	}
}
