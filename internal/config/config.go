// Package config loads the single TOML document that describes which
// subsystems are enabled and how they're wired, mirroring the shape of the
// original rusty_beagle conf.toml.
package config

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/BuzzVerse/rusty-beagle/internal/modem"
)

// Chip names a supported modem chip. Only SX1278 is modelled; the field
// exists so a future chip can be selected the same way the original's
// Chip enum allowed.
type Chip string

const ChipSX1278 Chip = "SX1278"

// Mode selects the radio worker's role.
type Mode string

const (
	ModeRX            Mode = "RX"
	ModeTX            Mode = "TX"
	ModeRXRangeTest   Mode = "RX_RANGE_TEST"
	ModeTXRangeTest   Mode = "TX_RANGE_TEST"
)

// MQTTConfig configures the broker worker. Topic may contain the literal
// substring "{device_id}", substituted per-message.
type MQTTConfig struct {
	IP                string `toml:"ip"`
	Port              string `toml:"port"`
	Login             string `toml:"login"`
	Password          string `toml:"password"`
	Topic             string `toml:"topic"`
	DeviceID          uint8  `toml:"device_id"`
	ReconnectInterval uint64 `toml:"reconnect_interval"`
	Enabled           bool   `toml:"enabled"`
}

// ReconnectDelay is ReconnectInterval as a time.Duration.
func (c MQTTConfig) ReconnectDelay() time.Duration {
	return time.Duration(c.ReconnectInterval) * time.Second
}

// BMEConfig configures the sensor worker.
type BMEConfig struct {
	I2CBusPath          string `toml:"i2c_bus_path"`
	I2CAddress          uint8  `toml:"i2c_address"`
	MeasurementInterval uint64 `toml:"measurement_interval"`
	Enabled             bool   `toml:"enabled"`
}

// MeasurementPeriod is MeasurementInterval as a time.Duration.
func (c BMEConfig) MeasurementPeriod() time.Duration {
	return time.Duration(c.MeasurementInterval) * time.Second
}

// SPIConfig describes how the modem's SPI device node should be opened.
type SPIConfig struct {
	SpidevPath  string `toml:"spidev_path"`
	BitsPerWord uint8  `toml:"bits_per_word"`
	MaxSpeedHz  uint32 `toml:"max_speed_hz"`
	LSBFirst    bool   `toml:"lsb_first"`
	SPIMode     uint8  `toml:"spi_mode"`
}

// RadioConfig is the immutable-after-start on-air configuration.
type RadioConfig struct {
	Frequency       uint64              `toml:"frequency"`
	Bandwidth       modem.Bandwidth     `toml:"bandwidth"`
	CodingRate      modem.CodingRate    `toml:"coding_rate"`
	SpreadingFactor modem.SpreadingFactor `toml:"spreading_factor"`
	TxPower         uint8               `toml:"tx_power"`
}

// ToDriverConfig adapts the TOML shape to the modem package's RadioConfig.
func (r RadioConfig) ToDriverConfig() modem.RadioConfig {
	return modem.RadioConfig{
		FrequencyHz:     uint32(r.Frequency),
		Bandwidth:       r.Bandwidth,
		CodingRate:      r.CodingRate,
		SpreadingFactor: r.SpreadingFactor,
		TxPower:         int(r.TxPower),
	}
}

// LoRaConfig configures the modem driver and radio worker.
type LoRaConfig struct {
	Chip        Chip        `toml:"chip"`
	Mode        Mode        `toml:"mode"`
	ResetGPIO   int         `toml:"reset_gpio"`
	DIO0GPIO    int         `toml:"dio0_gpio"`
	SPIConfig   SPIConfig   `toml:"spi_config"`
	RadioConfig RadioConfig `toml:"radio_config"`
}

// Config is the top-level document. Every field is optional; a nil pointer
// means the corresponding subsystem is disabled regardless of its own
// Enabled flag.
type Config struct {
	MQTTConfig *MQTTConfig `toml:"mqtt_config"`
	BMEConfig  *BMEConfig  `toml:"bme_config"`
	LoRaConfig *LoRaConfig `toml:"lora_config"`
}

// MQTTEnabled reports whether the broker subsystem should be probed/started.
func (c *Config) MQTTEnabled() bool {
	return c.MQTTConfig != nil && c.MQTTConfig.Enabled
}

// BMEEnabled reports whether the sensor subsystem should be probed/started.
func (c *Config) BMEEnabled() bool {
	return c.BMEConfig != nil && c.BMEConfig.Enabled
}

// LoRaEnabled reports whether the radio subsystem should be probed/started.
func (c *Config) LoRaEnabled() bool {
	return c.LoRaConfig != nil
}

// Load reads and parses a TOML config file at path.
func Load(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("config: load %s: %w", path, err)
	}
	return &cfg, nil
}

// GPIOLine derives the (gpiochip index, line offset) pair the platform's
// gpiochip/libgpiod interface expects from a flat SoC pin number, as laid
// out in the 32-line-per-chip convention this design assumes.
func GPIOLine(pin int) (chip, line int) {
	return pin / 32, pin % 32
}

// GPIOName renders the periph.io gpioreg lookup name for a flat SoC pin
// number, e.g. pin 65 -> "GPIO2_1" (gpiochip2, line 1). Both the driver's
// bring-up and the orchestrator's emergency reset resolve the reset line
// through this same name.
func GPIOName(pin int) string {
	chip, line := GPIOLine(pin)
	return fmt.Sprintf("GPIO%d_%d", chip, line)
}
