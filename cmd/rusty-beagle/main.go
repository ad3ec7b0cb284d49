// Command rusty-beagle is the long-range radio telemetry gateway: it reads
// a TOML config naming which subsystems are enabled, runs the power-on
// self-test, and then drives the configured sensor/radio/broker/CSV
// workers until a termination signal arrives. Grounded on the teacher's
// cmd/agsys-controller/main.go (cobra root command, config load, signal
// wait, lifecycle Start/Stop), with the --config flag replaced by a
// positional config-path argument per the design, and SIGQUIT added
// alongside SIGINT/SIGTERM.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"

	"github.com/BuzzVerse/rusty-beagle/internal/config"
	"github.com/BuzzVerse/rusty-beagle/internal/modem"
	"github.com/BuzzVerse/rusty-beagle/internal/orchestrator"
	"github.com/BuzzVerse/rusty-beagle/internal/post"
	"github.com/BuzzVerse/rusty-beagle/internal/radio"
	"github.com/BuzzVerse/rusty-beagle/internal/rlog"
	"github.com/BuzzVerse/rusty-beagle/internal/sensor"
	"github.com/BuzzVerse/rusty-beagle/internal/shutdown"
)

const defaultConfigPath = "./conf.toml"

var rootCmd = &cobra.Command{
	Use:           "rusty-beagle [config-path]",
	Short:         "Long-range radio telemetry gateway",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func main() {
	if len(os.Args) > 2 {
		fmt.Fprintln(os.Stderr, "usage: rusty-beagle [config-path]")
		os.Exit(-1)
	}

	if err := rootCmd.Execute(); err != nil {
		rlog.Error("%v", err)
		os.Exit(-1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	rlog.Init()

	path := defaultConfigPath
	if len(args) == 1 {
		path = args[0]
	}

	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if _, err := host.Init(); err != nil {
		return fmt.Errorf("init periph host: %w", err)
	}

	openModem := func() (*modem.Driver, func(), error) {
		return openModemHandle(cfg.LoRaConfig)
	}

	openBME := func() error {
		if cfg.BMEConfig == nil {
			return fmt.Errorf("bme_config not set")
		}
		w, err := sensor.Open(*cfg.BMEConfig, deviceID(cfg), nil)
		if err != nil {
			return err
		}
		defer w.Close()
		_, err = w.Measure()
		return err
	}

	healthy := post.Run(cfg, openModem, openBME)

	var radioW *radio.Worker
	var modemCloser func()
	if healthy.LoRa && cfg.LoRaEnabled() {
		driver, closeFn, err := openModem()
		if err != nil {
			return fmt.Errorf("open modem for run: %w", err)
		}
		modemCloser = closeFn
		radioW = radio.New(driver, cfg.LoRaConfig.Mode, cfg.LoRaConfig.RadioConfig.ToDriverConfig(), nil, nil)
	}
	if modemCloser != nil {
		defer modemCloser()
	}

	var sensorW *sensor.Worker
	if healthy.BME280 && cfg.BMEEnabled() {
		w, err := sensor.Open(*cfg.BMEConfig, deviceID(cfg), nil)
		if err != nil {
			return fmt.Errorf("open sensor for run: %w", err)
		}
		defer w.Close()
		sensorW = w
	}

	orch := orchestrator.New(cfg, healthy, radioW, sensorW)
	orch.Start()

	sig := shutdown.Listen()
	if err := orch.Wait(sig); err != nil {
		return err
	}

	os.Exit(0)
	return nil
}

func deviceID(cfg *config.Config) uint8 {
	if cfg.MQTTConfig != nil {
		return cfg.MQTTConfig.DeviceID
	}
	return 0
}

// openModemHandle opens the SPI device and the two GPIO lines the modem
// driver needs, per lora_config. The caller owns the returned close
// function; it releases the SPI port (GPIO lines have no explicit close in
// periph.io's model beyond process exit).
func openModemHandle(lc *config.LoRaConfig) (*modem.Driver, func(), error) {
	if lc == nil {
		return nil, nil, fmt.Errorf("lora_config not set")
	}

	port, err := spireg.Open(lc.SPIConfig.SpidevPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open spi port %s: %w", lc.SPIConfig.SpidevPath, err)
	}

	mode := spi.Mode(lc.SPIConfig.SPIMode)
	if lc.SPIConfig.LSBFirst {
		mode |= spi.LSBFirst
	}
	conn, err := port.Connect(int64(lc.SPIConfig.MaxSpeedHz)*int64(1), mode, int(lc.SPIConfig.BitsPerWord))
	if err != nil {
		port.Close()
		return nil, nil, fmt.Errorf("connect spi: %w", err)
	}

	resetPin := gpioreg.ByName(config.GPIOName(lc.ResetGPIO))
	if resetPin == nil {
		port.Close()
		return nil, nil, fmt.Errorf("no such reset gpio line %s", config.GPIOName(lc.ResetGPIO))
	}
	dio0Pin := gpioreg.ByName(config.GPIOName(lc.DIO0GPIO))
	if dio0Pin == nil {
		port.Close()
		return nil, nil, fmt.Errorf("no such dio0 gpio line %s", config.GPIOName(lc.DIO0GPIO))
	}
	if err := dio0Pin.In(gpio.PullNoChange, gpio.RisingEdge); err != nil {
		port.Close()
		return nil, nil, fmt.Errorf("configure dio0: %w", err)
	}

	d, err := modem.New(conn, resetPin, dio0Pin)
	if err != nil {
		port.Close()
		return nil, nil, err
	}

	return d, func() { port.Close() }, nil
}
