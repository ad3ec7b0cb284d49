package config

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleTOML = `
[mqtt_config]
ip = "10.0.0.5"
port = "1883"
login = "gateway"
password = "secret"
topic = "devices/{device_id}/telemetry"
device_id = 7
reconnect_interval = 5
enabled = true

[bme_config]
i2c_bus_path = "/dev/i2c-1"
i2c_address = 118
measurement_interval = 60
enabled = true

[lora_config]
chip = "SX1278"
mode = "RX"
reset_gpio = 65
dio0_gpio = 66

[lora_config.spi_config]
spidev_path = "/dev/spidev0.0"
bits_per_word = 8
max_speed_hz = 500000
lsb_first = false
spi_mode = 0

[lora_config.radio_config]
frequency = 868100000
bandwidth = 7
coding_rate = 1
spreading_factor = 7
tx_power = 14
`

func writeTemp(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "conf.toml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeTemp(t, sampleTOML)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if !cfg.MQTTEnabled() {
		t.Fatalf("MQTTEnabled() = false, want true")
	}
	if !cfg.BMEEnabled() {
		t.Fatalf("BMEEnabled() = false, want true")
	}
	if !cfg.LoRaEnabled() {
		t.Fatalf("LoRaEnabled() = false, want true")
	}

	if cfg.MQTTConfig.DeviceID != 7 {
		t.Errorf("DeviceID = %d, want 7", cfg.MQTTConfig.DeviceID)
	}
	if cfg.LoRaConfig.Mode != ModeRX {
		t.Errorf("Mode = %q, want RX", cfg.LoRaConfig.Mode)
	}
	if cfg.LoRaConfig.RadioConfig.Frequency != 868100000 {
		t.Errorf("Frequency = %d, want 868100000", cfg.LoRaConfig.RadioConfig.Frequency)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatal("Load() on missing file: want error, got nil")
	}
}

func TestSubsystemDisabledWhenAbsent(t *testing.T) {
	cfg := &Config{}
	if cfg.MQTTEnabled() || cfg.BMEEnabled() || cfg.LoRaEnabled() {
		t.Fatal("empty Config reports a subsystem enabled")
	}
}

func TestSubsystemDisabledByFlag(t *testing.T) {
	cfg := &Config{MQTTConfig: &MQTTConfig{Enabled: false}}
	if cfg.MQTTEnabled() {
		t.Fatal("MQTTEnabled() = true with enabled=false")
	}
}

func TestGPIOName(t *testing.T) {
	cases := []struct {
		pin  int
		want string
	}{
		{0, "GPIO0_0"},
		{65, "GPIO2_1"},
		{66, "GPIO2_2"},
	}
	for _, c := range cases {
		if got := GPIOName(c.pin); got != c.want {
			t.Errorf("GPIOName(%d) = %q, want %q", c.pin, got, c.want)
		}
	}
}

func TestReconnectDelay(t *testing.T) {
	c := MQTTConfig{ReconnectInterval: 5}
	if c.ReconnectDelay().Seconds() != 5 {
		t.Errorf("ReconnectDelay() = %v, want 5s", c.ReconnectDelay())
	}
}

func TestMeasurementPeriod(t *testing.T) {
	c := BMEConfig{MeasurementInterval: 60}
	if c.MeasurementPeriod().Seconds() != 60 {
		t.Errorf("MeasurementPeriod() = %v, want 60s", c.MeasurementPeriod())
	}
}
