package modem

import (
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/spi"
)

// spiConn is the slice of periph.io/x/conn/v3/spi.Conn this driver needs;
// narrowed down for testability.
type spiConn interface {
	Tx(w, r []byte) error
}

// edgePin is the slice of periph.io/x/conn/v3/gpio.PinIO the DIO0 line needs.
type edgePin interface {
	In(pull gpio.Pull, edge gpio.Edge) error
	WaitForEdge(timeout time.Duration) bool
}

// outPin is the slice of periph.io/x/conn/v3/gpio.PinIO the reset line needs.
type outPin interface {
	Out(l gpio.Level) error
}

// RadioConfig is the on-air configuration applied by ConfigureLoRa.
type RadioConfig struct {
	FrequencyHz     uint32
	Bandwidth       Bandwidth
	CodingRate      CodingRate
	SpreadingFactor SpreadingFactor
	TxPower         int
}

// Mode is the modem's current operating role, picked by the radio worker.
type Mode int

const (
	ModeRX Mode = iota
	ModeTX
)

// Driver talks to a SemTech SX127x over SPI, with dedicated reset and DIO0
// GPIO lines.
type Driver struct {
	spi   spiConn
	reset outPin
	dio0  edgePin

	frequencyHz uint32
}

// New wraps an already-opened SPI connection and GPIO lines. The caller owns
// opening and closing the underlying bus/lines.
func New(conn spiConn, reset outPin, dio0 edgePin) (*Driver, error) {
	if err := dio0.In(gpio.PullNoChange, gpio.RisingEdge); err != nil {
		return nil, fmt.Errorf("modem: configure dio0 for rising edge: %w", err)
	}
	return &Driver{spi: conn, reset: reset, dio0: dio0}, nil
}

func (d *Driver) readReg(addr byte) (byte, error) {
	w := []byte{addr | spiRead, 0x00}
	r := make([]byte, 2)
	if err := d.spi.Tx(w, r); err != nil {
		return 0, fmt.Errorf("modem: read register 0x%02X: %w", addr, err)
	}
	return r[1], nil
}

func (d *Driver) writeReg(addr, value byte) error {
	w := []byte{addr | spiWrite, value}
	r := make([]byte, 2)
	if err := d.spi.Tx(w, r); err != nil {
		return fmt.Errorf("modem: write register 0x%02X: %w", addr, err)
	}
	return nil
}

// Reset pulses the reset line low for 5ms then high, settling for 10ms
// before any register access.
func (d *Driver) Reset() error {
	if err := d.reset.Out(gpio.Low); err != nil {
		return fmt.Errorf("modem: drive reset low: %w", err)
	}
	time.Sleep(resetLowDelay)
	if err := d.reset.Out(gpio.High); err != nil {
		return fmt.Errorf("modem: drive reset high: %w", err)
	}
	time.Sleep(resetWaitDelay)
	return nil
}

func (d *Driver) setMode(mode byte) error {
	if err := d.writeReg(regOpMode, modeLongRange|mode); err != nil {
		return err
	}
	time.Sleep(settleDelay)
	return nil
}

// Standby enters standby mode.
func (d *Driver) Standby() error { return d.setMode(modeStandby) }

// Sleep enters sleep mode.
func (d *Driver) Sleep() error { return d.setMode(modeSleep) }

func (d *Driver) receiveMode() error  { return d.setMode(modeRxContinuous) }
func (d *Driver) transmitMode() error { return d.setMode(modeTx) }

// OpMode reads back the raw op-mode register, used by POST.
func (d *Driver) OpMode() (byte, error) { return d.readReg(regOpMode) }

// GetMode reports the current mode bits, masking off the LongRange flag.
func (d *Driver) GetMode() (byte, error) {
	v, err := d.readReg(regOpMode)
	if err != nil {
		return 0, err
	}
	return v &^ modeLongRange, nil
}

// DisplayParameters renders a one-page banner of the modem's current
// configuration, the way the radio worker does at start-of-day.
func (d *Driver) DisplayParameters() (string, error) {
	freq, err := d.GetFrequency()
	if err != nil {
		return "", err
	}
	bw, err := d.GetBandwidth()
	if err != nil {
		return "", err
	}
	cr, err := d.GetCodingRate()
	if err != nil {
		return "", err
	}
	sf, err := d.GetSpreadingFactor()
	if err != nil {
		return "", err
	}
	mode, err := d.GetMode()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(
		"frequency=%d Hz bandwidth=%d coding_rate=4/%d spreading_factor=SF%d mode=0x%02X",
		freq, bw, cr, sf, mode,
	), nil
}

func (d *Driver) setFrequency(hz uint32) error {
	frf := (uint64(hz) << 19) / fxosc
	if err := d.writeReg(regFrfMSB, byte(frf>>16)); err != nil {
		return err
	}
	if err := d.writeReg(regFrfMid, byte(frf>>8)); err != nil {
		return err
	}
	if err := d.writeReg(regFrfLSB, byte(frf)); err != nil {
		return err
	}
	d.frequencyHz = hz
	return nil
}

// GetFrequency is the inverse of setFrequency, used by diagnostics and POST.
func (d *Driver) GetFrequency() (uint32, error) {
	msb, err := d.readReg(regFrfMSB)
	if err != nil {
		return 0, err
	}
	mid, err := d.readReg(regFrfMid)
	if err != nil {
		return 0, err
	}
	lsb, err := d.readReg(regFrfLSB)
	if err != nil {
		return 0, err
	}
	frf := uint64(msb)<<16 | uint64(mid)<<8 | uint64(lsb)
	return uint32((frf * fxosc) >> 19), nil
}

func (d *Driver) setBandwidth(b Bandwidth) error {
	cfg, err := d.readReg(regModemConfig1)
	if err != nil {
		return err
	}
	cfg = (cfg & 0x0F) | (byte(b) << 4)
	return d.writeReg(regModemConfig1, cfg)
}

// GetBandwidth reads back the configured bandwidth.
func (d *Driver) GetBandwidth() (Bandwidth, error) {
	cfg, err := d.readReg(regModemConfig1)
	if err != nil {
		return 0, err
	}
	return Bandwidth(cfg >> 4), nil
}

func (d *Driver) setCodingRate(c CodingRate) error {
	cfg, err := d.readReg(regModemConfig1)
	if err != nil {
		return err
	}
	cfg = (cfg & 0xF1) | ((byte(c) - 4) << 1)
	return d.writeReg(regModemConfig1, cfg)
}

// GetCodingRate reads back the configured coding rate.
func (d *Driver) GetCodingRate() (CodingRate, error) {
	cfg, err := d.readReg(regModemConfig1)
	if err != nil {
		return 0, err
	}
	return CodingRate(((cfg & 0x0E) >> 1) + 4), nil
}

func (d *Driver) setSpreadingFactor(s SpreadingFactor) error {
	cfg, err := d.readReg(regModemConfig2)
	if err != nil {
		return err
	}
	cfg = (cfg & 0x0F) | (byte(s) << 4)
	return d.writeReg(regModemConfig2, cfg)
}

// GetSpreadingFactor reads back the configured spreading factor.
func (d *Driver) GetSpreadingFactor() (SpreadingFactor, error) {
	cfg, err := d.readReg(regModemConfig2)
	if err != nil {
		return 0, err
	}
	return SpreadingFactor(cfg >> 4), nil
}

func (d *Driver) enableCRC() error {
	cfg, err := d.readReg(regModemConfig2)
	if err != nil {
		return err
	}
	return d.writeReg(regModemConfig2, cfg|0x04)
}

func (d *Driver) setTxPower(level int) error {
	clamped := level
	if clamped < 2 {
		clamped = 2
	}
	if clamped > 17 {
		clamped = 17
	}
	return d.writeReg(regPAConfig, paBoost|byte(clamped))
}

func (d *Driver) configDIO(mode Mode) error {
	if mode != ModeTX {
		return nil
	}
	cfg, err := d.readReg(regDioMapping1)
	if err != nil {
		return err
	}
	return d.writeReg(regDioMapping1, cfg|(0b01<<6))
}

// ConfigureLoRa runs the full bring-up sequence: reset, sleep, frequency,
// bandwidth, coding rate, spreading factor, CRC, TX power, and DIO mapping
// for the given role.
func (d *Driver) ConfigureLoRa(cfg RadioConfig, mode Mode) error {
	if err := d.Reset(); err != nil {
		return err
	}
	if err := d.Sleep(); err != nil {
		return err
	}
	if err := d.setFrequency(cfg.FrequencyHz); err != nil {
		return err
	}
	time.Sleep(settleDelay)
	if err := d.setBandwidth(cfg.Bandwidth); err != nil {
		return err
	}
	time.Sleep(settleDelay)
	if err := d.setCodingRate(cfg.CodingRate); err != nil {
		return err
	}
	time.Sleep(settleDelay)
	if err := d.setSpreadingFactor(cfg.SpreadingFactor); err != nil {
		return err
	}
	time.Sleep(settleDelay)
	if err := d.enableCRC(); err != nil {
		return err
	}
	time.Sleep(settleDelay)
	if err := d.setTxPower(cfg.TxPower); err != nil {
		return err
	}
	time.Sleep(settleDelay)
	if err := d.writeReg(regModemConfig3, 0x04); err != nil {
		return err
	}
	time.Sleep(settleDelay)
	if err := d.configDIO(mode); err != nil {
		return err
	}
	time.Sleep(settleDelay)
	return nil
}

func (d *Driver) readFIFO(n int) ([]byte, error) {
	out := make([]byte, n)
	for i := 0; i < n; i++ {
		b, err := d.readReg(regFifo)
		if err != nil {
			return nil, err
		}
		out[i] = b
	}
	return out, nil
}

func (d *Driver) writeFIFO(data []byte) error {
	for _, b := range data {
		if err := d.writeReg(regFifo, b); err != nil {
			return err
		}
	}
	return nil
}

// ReceivePacket blocks in RxContinuous mode until DIO0 rises, then drains the
// FIFO and returns to Sleep. The bool reports whether the CRC check failed;
// the bytes are still returned in that case.
func (d *Driver) ReceivePacket() ([]byte, bool, error) {
	if err := d.receiveMode(); err != nil {
		return nil, false, err
	}
	d.dio0.WaitForEdge(-1)

	flags, err := d.readReg(regIRQFlags)
	if err != nil {
		return nil, false, err
	}
	crcError := flags&irqPayloadCRCError != 0

	if err := d.Standby(); err != nil {
		return nil, false, err
	}

	n, err := d.readReg(regRxNbBytes)
	if err != nil {
		return nil, false, err
	}
	addr, err := d.readReg(regFifoRxCurrAddr)
	if err != nil {
		return nil, false, err
	}
	if err := d.writeReg(regFifoAddrPtr, addr); err != nil {
		return nil, false, err
	}

	payload, err := d.readFIFO(int(n))
	if err != nil {
		return nil, false, err
	}

	if err := d.Sleep(); err != nil {
		return nil, false, err
	}
	return payload, crcError, nil
}

// SendPacket writes the payload to the FIFO and blocks until DIO0 rises to
// signal TxDone, then returns to Sleep.
func (d *Driver) SendPacket(payload []byte) error {
	base, err := d.readReg(regFifoTxBaseAddr)
	if err != nil {
		return err
	}
	if err := d.writeReg(regFifoAddrPtr, base); err != nil {
		return err
	}
	if err := d.writeReg(regPayloadLength, byte(len(payload))); err != nil {
		return err
	}
	if err := d.writeFIFO(payload); err != nil {
		return err
	}
	if err := d.transmitMode(); err != nil {
		return err
	}
	d.dio0.WaitForEdge(-1)
	return d.Sleep()
}

// GetPacketSNR reports the signal-to-noise ratio of the last received
// packet. The computation (two's-complement negation of the raw register
// value, divided by four, both as unsigned bytes) matches the defining
// implementation bit-for-bit; whether this represents signed dB or the
// magnitude of a negative SNR is left to callers to interpret.
func (d *Driver) GetPacketSNR() (uint8, error) {
	raw, err := d.readReg(regPktSNRValue)
	if err != nil {
		return 0, err
	}
	return -raw / 4, nil
}

// GetPacketRSSI reports the received signal strength of the last received
// packet in dBm.
func (d *Driver) GetPacketRSSI() (int, error) {
	raw, err := d.readReg(regPktRSSIValue)
	if err != nil {
		return 0, err
	}
	if d.frequencyHz < 868_000_000 {
		return int(raw) - 164, nil
	}
	return int(raw) - 157, nil
}
