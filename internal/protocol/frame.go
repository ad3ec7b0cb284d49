// Package protocol implements the on-air wire format for telemetry frames:
// a fixed 5-byte header followed by a tagged payload variant.
package protocol

import (
	"encoding/binary"
	"fmt"
	"unicode/utf8"
)

// HeaderSize is the fixed number of bytes preceding the payload.
const HeaderSize = 5

// MaxFrameLen is the largest total frame length accepted on the air.
const MaxFrameLen = 64

// MinFrameLen is the smallest total frame length that can hold a header.
const MinFrameLen = HeaderSize

// DataType discriminates the payload variant carried by a frame.
type DataType uint8

const (
	DataTypeBME280 DataType = 1
	DataTypeBMA400 DataType = 2
	DataTypeMQ2    DataType = 3
	DataTypeGPS    DataType = 4
	DataTypeSMS    DataType = 32
)

// Header is the fixed 5-byte prefix of every frame.
type Header struct {
	Version   uint8
	DeviceID  uint8
	MsgID     uint8
	MsgCount  uint8
	DataType  DataType
}

// Frame is a decoded header plus its typed payload.
type Frame struct {
	Header  Header
	Payload Payload
}

// Payload is implemented by each of the five wire variants.
type Payload interface {
	encode() []byte
	dataType() DataType
}

// BME280Payload carries compressed-unit environmental readings.
// Temperature is round(°C*2), Pressure is round(hPa-1000), Humidity is round(%RH).
type BME280Payload struct {
	Temperature uint8
	Humidity    uint8
	Pressure    uint8
}

// BMA400Payload carries raw three-axis accelerometer counts.
type BMA400Payload struct {
	X, Y, Z uint64
}

// MQ2Payload carries a gas-sensor reading.
type MQ2Payload struct {
	GasType uint8
	Value   [16]byte // u128 LE
}

// GPSPayload carries a fix.
type GPSPayload struct {
	Status    uint8
	Altitude  uint16
	Latitude  int32
	Longitude int32
}

// SMSPayload carries free-form UTF-8 text.
type SMSPayload struct {
	Text string
}

func (p BME280Payload) dataType() DataType { return DataTypeBME280 }
func (p BMA400Payload) dataType() DataType { return DataTypeBMA400 }
func (p MQ2Payload) dataType() DataType    { return DataTypeMQ2 }
func (p GPSPayload) dataType() DataType    { return DataTypeGPS }
func (p SMSPayload) dataType() DataType    { return DataTypeSMS }

func (p BME280Payload) encode() []byte {
	return []byte{p.Temperature, p.Humidity, p.Pressure}
}

func (p BMA400Payload) encode() []byte {
	buf := make([]byte, 24)
	binary.LittleEndian.PutUint64(buf[0:8], p.X)
	binary.LittleEndian.PutUint64(buf[8:16], p.Y)
	binary.LittleEndian.PutUint64(buf[16:24], p.Z)
	return buf
}

func (p MQ2Payload) encode() []byte {
	buf := make([]byte, 17)
	buf[0] = p.GasType
	copy(buf[1:], p.Value[:])
	return buf
}

func (p GPSPayload) encode() []byte {
	buf := make([]byte, 11)
	buf[0] = p.Status
	binary.LittleEndian.PutUint16(buf[1:3], p.Altitude)
	binary.LittleEndian.PutUint32(buf[3:7], uint32(p.Latitude))
	binary.LittleEndian.PutUint32(buf[7:11], uint32(p.Longitude))
	return buf
}

func (p SMSPayload) encode() []byte {
	return []byte(p.Text)
}

// payload length rules, per data type. SMS is a range, not a fixed length.
const (
	bme280PayloadLen = 3
	bma400PayloadLen = 24
	mq2PayloadLen    = 17
	gpsPayloadLen    = 11
	smsMinPayloadLen = 1
)

// Encode always succeeds for a well-formed in-memory frame.
func Encode(f Frame) []byte {
	out := make([]byte, HeaderSize, HeaderSize+len(f.Payload.encode()))
	out[0] = f.Header.Version
	out[1] = f.Header.DeviceID
	out[2] = f.Header.MsgID
	out[3] = f.Header.MsgCount
	out[4] = uint8(f.Header.DataType)
	return append(out, f.Payload.encode()...)
}

// Decode validates length and tag, then extracts the payload.
func Decode(b []byte) (Frame, error) {
	if len(b) < MinFrameLen {
		return Frame{}, &ShortHeaderError{Len: len(b)}
	}

	h := Header{
		Version:  b[0],
		DeviceID: b[1],
		MsgID:    b[2],
		MsgCount: b[3],
		DataType: DataType(b[4]),
	}
	body := b[HeaderSize:]

	switch h.DataType {
	case DataTypeBME280:
		if len(body) != bme280PayloadLen {
			return Frame{}, lengthMismatch(h.DataType, bme280PayloadLen+HeaderSize, len(b))
		}
		return Frame{Header: h, Payload: BME280Payload{
			Temperature: body[0],
			Humidity:    body[1],
			Pressure:    body[2],
		}}, nil

	case DataTypeBMA400:
		if len(body) != bma400PayloadLen {
			return Frame{}, lengthMismatch(h.DataType, bma400PayloadLen+HeaderSize, len(b))
		}
		return Frame{Header: h, Payload: BMA400Payload{
			X: binary.LittleEndian.Uint64(body[0:8]),
			Y: binary.LittleEndian.Uint64(body[8:16]),
			Z: binary.LittleEndian.Uint64(body[16:24]),
		}}, nil

	case DataTypeMQ2:
		if len(body) != mq2PayloadLen {
			return Frame{}, lengthMismatch(h.DataType, mq2PayloadLen+HeaderSize, len(b))
		}
		var val [16]byte
		copy(val[:], body[1:])
		return Frame{Header: h, Payload: MQ2Payload{
			GasType: body[0],
			Value:   val,
		}}, nil

	case DataTypeGPS:
		if len(body) != gpsPayloadLen {
			return Frame{}, lengthMismatch(h.DataType, gpsPayloadLen+HeaderSize, len(b))
		}
		return Frame{Header: h, Payload: GPSPayload{
			Status:    body[0],
			Altitude:  binary.LittleEndian.Uint16(body[1:3]),
			Latitude:  int32(binary.LittleEndian.Uint32(body[3:7])),
			Longitude: int32(binary.LittleEndian.Uint32(body[7:11])),
		}}, nil

	case DataTypeSMS:
		if len(body) < smsMinPayloadLen || len(body) > MaxFrameLen-HeaderSize {
			return Frame{}, lengthMismatch(h.DataType, HeaderSize+smsMinPayloadLen, len(b))
		}
		if !isValidUTF8(body) {
			return Frame{}, &BadUTF8Error{}
		}
		return Frame{Header: h, Payload: SMSPayload{Text: string(body)}}, nil

	default:
		return Frame{}, &UnknownTagError{Tag: uint8(h.DataType)}
	}
}

func isValidUTF8(b []byte) bool {
	return utf8.Valid(b)
}

func lengthMismatch(dt DataType, expected, actual int) error {
	return &LengthMismatchError{Tag: uint8(dt), Expected: expected, Actual: actual}
}

// String renders the frame the way the CSV worker's "Packet" column expects:
// a debug-style representation, not the wire bytes.
func (f Frame) String() string {
	return fmt.Sprintf("Frame{version:%d id:%d msg_id:%d msg_count:%d data_type:%d payload:%+v}",
		f.Header.Version, f.Header.DeviceID, f.Header.MsgID, f.Header.MsgCount, f.Header.DataType, f.Payload)
}

// EnrichedRecord bundles a decoded frame with modem-reported link quality.
// It only ever exists in-process; it never appears on the wire.
type EnrichedRecord struct {
	Frame   Frame
	SNRdB   uint8
	RSSIdBm int16
}
