package protocol

import (
	"math"
	"testing"
)

func TestToBrokerJSONBME280NegativeTemperature(t *testing.T) {
	f := Frame{
		Header: Header{DataType: DataTypeBME280},
		Payload: BME280Payload{
			Temperature: uint8(int8(math.Round(-3.2 * 2))), // -6 -> 250
			Humidity:    46,
			Pressure:    uint8(int8(math.Round(996.6 - 1000))), // -3 -> 253
		},
	}

	out := ToBrokerJSON(f)
	bme, ok := out["BME280"].(map[string]interface{})
	if !ok {
		t.Fatalf("ToBrokerJSON()[\"BME280\"] type = %T, want map", out["BME280"])
	}

	if got := bme["temperature"].(float64); got != -3.0 {
		t.Errorf("temperature = %v, want -3.0", got)
	}
	if got := bme["pressure"].(float64); got != 997.0 {
		t.Errorf("pressure = %v, want 997.0", got)
	}
	if got := bme["humidity"].(uint8); got != 46 {
		t.Errorf("humidity = %v, want 46", got)
	}
}

func TestToBrokerJSONEnrichedAddsMeta(t *testing.T) {
	r := EnrichedRecord{
		Frame: Frame{
			Header:  Header{DataType: DataTypeBME280},
			Payload: BME280Payload{Temperature: 46, Humidity: 45, Pressure: 67},
		},
		SNRdB:   5,
		RSSIdBm: -90,
	}

	out := ToBrokerJSONEnriched(r)
	meta, ok := out["META"].(map[string]interface{})
	if !ok {
		t.Fatalf("ToBrokerJSONEnriched()[\"META\"] type = %T, want map", out["META"])
	}
	if meta["snr"].(uint8) != 5 {
		t.Errorf("snr = %v, want 5", meta["snr"])
	}
	if meta["rssi"].(int16) != -90 {
		t.Errorf("rssi = %v, want -90", meta["rssi"])
	}
}

func TestU128StringRoundTrip(t *testing.T) {
	le := [16]byte{1} // value 1, little-endian
	if got := u128String(le); got != "1" {
		t.Errorf("u128String(1) = %q, want \"1\"", got)
	}
}
