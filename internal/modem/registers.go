// Package modem drives a SemTech SX127x-family LoRa transceiver over SPI,
// with a reset line and a DIO0 interrupt line on GPIO.
package modem

import "time"

// Register addresses, as laid out on every SX1276/77/78/79 variant.
const (
	regFifo             = 0x00
	regOpMode           = 0x01
	regFrfMSB           = 0x06
	regFrfMid           = 0x07
	regFrfLSB           = 0x08
	regPAConfig         = 0x09
	regLNA              = 0x0C
	regFifoAddrPtr      = 0x0D
	regFifoTxBaseAddr   = 0x0E
	regFifoRxBaseAddr   = 0x0F
	regFifoRxCurrAddr   = 0x10
	regIRQFlags         = 0x12
	regRxNbBytes        = 0x13
	regPktSNRValue      = 0x19
	regPktRSSIValue     = 0x1A
	regModemConfig1     = 0x1D
	regModemConfig2     = 0x1E
	regPreambleMSB      = 0x20
	regPreambleLSB      = 0x21
	regPayloadLength    = 0x22
	regModemConfig3     = 0x26
	regRSSIWideband     = 0x2C
	regDetectOptimize   = 0x31
	regDetectThreshold  = 0x37
	regSyncWord         = 0x39
	regIRQFlags2        = 0x3F
	regDioMapping1      = 0x40
	regDioMapping2      = 0x41
	regVersion          = 0x42
)

// Direction bits ORed into the first SPI byte of every register access.
const (
	spiRead  = 0x00
	spiWrite = 0x80
)

// Operating mode values, always ORed with modeLongRange.
const (
	modeLongRange     = 0x80
	modeSleep         = 0x00
	modeStandby       = 0x01
	modeTx            = 0x03
	modeRxContinuous  = 0x05
)

const paBoost = 0x80

// Bits of regIRQFlags. Only irqPayloadCRCError is read, after an RxDone
// interrupt; DIO0 routing is set separately in regDioMapping1 (configDIO).
const (
	irqTxDoneMask      = 0x08
	irqRxDoneMask      = 0x40
	irqPayloadCRCError = 0x20
)

const (
	settleDelay = 10 * time.Millisecond
	resetLowDelay  = 5 * time.Millisecond
	resetWaitDelay = 10 * time.Millisecond
)

const fxosc = 32_000_000

// Bandwidth is the LoRa channel bandwidth, as encoded in the high nibble of
// regModemConfig1.
type Bandwidth uint8

const (
	Bandwidth7_8kHz Bandwidth = iota
	Bandwidth10_4kHz
	Bandwidth15_6kHz
	Bandwidth20_8kHz
	Bandwidth31_25kHz
	Bandwidth41_7kHz
	Bandwidth62_5kHz
	Bandwidth125kHz
	Bandwidth250kHz
	Bandwidth500kHz
)

// CodingRate is the LoRa forward error correction rate, 4/5 through 4/8.
type CodingRate uint8

const (
	CodingRate4_5 CodingRate = iota + 5
	CodingRate4_6
	CodingRate4_7
	CodingRate4_8
)

// SpreadingFactor is the LoRa spreading factor, SF7 through SF12.
type SpreadingFactor uint8

const (
	SpreadingFactor7 SpreadingFactor = iota + 7
	SpreadingFactor8
	SpreadingFactor9
	SpreadingFactor10
	SpreadingFactor11
	SpreadingFactor12
)
