package post

import (
	"errors"
	"testing"
	"time"

	"periph.io/x/conn/v3/gpio"

	"github.com/BuzzVerse/rusty-beagle/internal/config"
	"github.com/BuzzVerse/rusty-beagle/internal/modem"
)

// fakeSPI emulates the SX127x register file; reset simulates the chip's
// power-on-reset register default (OP_MODE=0x09) the way real silicon
// would after its NRESET line is toggled, matching original_source's
// post_lora check of mode != 9.
type fakeSPI struct {
	regs [256]byte
}

const fakeOpModeAddr = 0x01
const fakeSpiWrite = 0x80

func (f *fakeSPI) Tx(w, r []byte) error {
	addr := w[0] &^ fakeSpiWrite
	if w[0]&fakeSpiWrite != 0 {
		f.regs[addr] = w[1]
	}
	if len(r) >= 2 {
		r[1] = f.regs[addr]
	}
	return nil
}

type fakeResetPin struct {
	spi *fakeSPI
}

func (p *fakeResetPin) Out(l gpio.Level) error {
	if l == gpio.Low {
		p.spi.regs[fakeOpModeAddr] = 0x09
	}
	return nil
}

type fakeEdgePin struct{}

func (p *fakeEdgePin) In(pull gpio.Pull, edge gpio.Edge) error { return nil }
func (p *fakeEdgePin) WaitForEdge(timeout time.Duration) bool  { return true }

func newFakeModem(t *testing.T, initialOpMode byte) (OpenModem, *fakeSPI) {
	t.Helper()
	spi := &fakeSPI{}
	spi.regs[fakeOpModeAddr] = initialOpMode
	reset := &fakeResetPin{spi: spi}
	dio0 := &fakeEdgePin{}

	return func() (*modem.Driver, func(), error) {
		d, err := modem.New(spi, reset, dio0)
		if err != nil {
			return nil, nil, err
		}
		return d, func() {}, nil
	}, spi
}

func TestProbeLoRaHealthy(t *testing.T) {
	openModem, _ := newFakeModem(t, 0x81)
	if !probeLoRa(openModem) {
		t.Fatal("probeLoRa() = false, want true for a responsive chip")
	}
}

func TestProbeLoRaDeadSPI(t *testing.T) {
	openModem, _ := newFakeModem(t, 0x00)
	if probeLoRa(openModem) {
		t.Fatal("probeLoRa() = true, want false when OP_MODE reads 0")
	}
}

func TestProbeBME(t *testing.T) {
	if !probeBME(func() error { return nil }) {
		t.Fatal("probeBME() = false, want true when openBME succeeds")
	}
	if probeBME(func() error { return errors.New("forced failure") }) {
		t.Fatal("probeBME() = true, want false when openBME fails")
	}
}

func TestRunReportsOffWhenSubsystemAbsent(t *testing.T) {
	cfg := &config.Config{}
	result := Run(cfg, func() (*modem.Driver, func(), error) {
		t.Fatal("openModem should not be called when lora_config is absent")
		return nil, nil, nil
	}, func() error {
		t.Fatal("openBME should not be called when bme_config is absent")
		return nil
	})

	if result.LoRa || result.MQTT || result.BME280 {
		t.Fatalf("Run() = %+v, want all false", result)
	}
}
