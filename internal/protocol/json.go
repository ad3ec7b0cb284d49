package protocol

import "math/big"

// ToBrokerJSON renders a frame as the human-oriented object the broker
// worker publishes: keyed by payload-variant name, physical units
// uncompressed.
func ToBrokerJSON(f Frame) map[string]interface{} {
	return map[string]interface{}{variantName(f.Header.DataType): payloadFields(f.Payload)}
}

// ToBrokerJSONEnriched wraps the payload object alongside a META block
// carrying the modem's SNR/RSSI for the reception.
func ToBrokerJSONEnriched(r EnrichedRecord) map[string]interface{} {
	out := ToBrokerJSON(r.Frame)
	out["META"] = map[string]interface{}{
		"snr":  r.SNRdB,
		"rssi": r.RSSIdBm,
	}
	return out
}

func variantName(dt DataType) string {
	switch dt {
	case DataTypeBME280:
		return "BME280"
	case DataTypeBMA400:
		return "BMA400"
	case DataTypeMQ2:
		return "MQ2"
	case DataTypeGPS:
		return "GPS"
	case DataTypeSMS:
		return "SMS"
	default:
		return "UNKNOWN"
	}
}

func payloadFields(p Payload) map[string]interface{} {
	switch v := p.(type) {
	case BME280Payload:
		return map[string]interface{}{
			"temperature": float64(int8(v.Temperature)) / 2.0,
			"humidity":    v.Humidity,
			"pressure":    float64(int8(v.Pressure)) + 1000.0,
		}
	case BMA400Payload:
		return map[string]interface{}{"x": v.X, "y": v.Y, "z": v.Z}
	case MQ2Payload:
		return map[string]interface{}{"gas_type": v.GasType, "value": u128String(v.Value)}
	case GPSPayload:
		return map[string]interface{}{
			"status":    v.Status,
			"altitude":  v.Altitude,
			"latitude":  float64(v.Latitude) / 1e5,
			"longitude": float64(v.Longitude) / 1e5,
		}
	case SMSPayload:
		return map[string]interface{}{"text": v.Text}
	default:
		return map[string]interface{}{}
	}
}

// u128String renders a little-endian 16-byte value as a decimal string;
// MQ2's value field doesn't fit in any Go integer type.
func u128String(le [16]byte) string {
	be := make([]byte, 16)
	for i := range le {
		be[15-i] = le[i]
	}
	return new(big.Int).SetBytes(be).String()
}
