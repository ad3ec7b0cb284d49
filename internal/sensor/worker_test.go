package sensor

import "testing"

func TestCompress(t *testing.T) {
	got := compress(23.4, 1067.3, 45.2)
	want := struct{ Temperature, Humidity, Pressure uint8 }{
		Temperature: 47, // round(23.4*2) = 47
		Humidity:    45, // round(45.2)
		Pressure:    67, // round(1067.3-1000)
	}
	if got.Temperature != want.Temperature {
		t.Errorf("Temperature = %d, want %d", got.Temperature, want.Temperature)
	}
	if got.Humidity != want.Humidity {
		t.Errorf("Humidity = %d, want %d", got.Humidity, want.Humidity)
	}
	if got.Pressure != want.Pressure {
		t.Errorf("Pressure = %d, want %d", got.Pressure, want.Pressure)
	}
}

func TestCompressNegativeTemperature(t *testing.T) {
	got := compress(-3.2, 996.6, 45.6)
	if int8(got.Temperature) != -6 {
		t.Errorf("Temperature = %d, want -6", int8(got.Temperature))
	}
	if int8(got.Pressure) != -3 {
		t.Errorf("Pressure = %d, want -3", int8(got.Pressure))
	}
}
