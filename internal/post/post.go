// Package post implements the power-on self-test: before any worker
// starts, probe each enabled subsystem and report a pass/fail bitmap.
// Grounded on original_source/src/post.rs almost verbatim — the
// dual-echo pass/fail banner, the three post_* probes, and the exact
// LoRa accept/reject logic (mode==0 means SPI is dead, mode!=9 after
// reset means GPIO is dead).
package post

import (
	"fmt"
	"net"
	"os"
	"time"

	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"

	"github.com/BuzzVerse/rusty-beagle/internal/config"
	"github.com/BuzzVerse/rusty-beagle/internal/modem"
	"github.com/BuzzVerse/rusty-beagle/internal/rlog"
)

// Result is the {lora, mqtt, bme280} health bitmap. A subsystem runs iff
// Result says healthy AND it is enabled in configuration.
type Result struct {
	LoRa    bool
	MQTT    bool
	BME280  bool
}

// BrokerPayload renders the bitmap as the one-shot status message the
// orchestrator pushes onto the broker queue once, ahead of any sensor or
// radio traffic, so a subscriber can see what passed POST this run.
func (r Result) BrokerPayload() map[string]interface{} {
	return map[string]interface{}{
		"POST": map[string]interface{}{
			"lora":   r.LoRa,
			"mqtt":   r.MQTT,
			"bme280": r.BME280,
		},
	}
}

// OpenModem constructs a transient modem handle for the duration of the
// LoRa probe; POST and cmd/rusty-beagle both open a modem, so it's injected
// rather than hardcoded to keep post.go free of platform-specific SPI/GPIO
// open calls.
type OpenModem func() (*modem.Driver, func(), error)

// Run probes every subsystem enabled in cfg and reports which are healthy.
// A subsystem absent from cfg, or disabled there, is reported unhealthy
// without being probed.
func Run(cfg *config.Config, openModem OpenModem, openBME func() error) Result {
	fmt.Println(bannerRule)

	var result Result

	if cfg.LoRaEnabled() {
		result.LoRa = probeLoRa(openModem)
	} else {
		reportOff("SPI POST")
		reportOff("GPIO POST")
	}

	if cfg.BMEEnabled() {
		result.BME280 = probeBME(openBME)
	} else {
		reportOff("BME280 POST")
	}

	if cfg.MQTTEnabled() {
		result.MQTT = probeInternet()
	} else {
		reportOff("MQTT POST")
	}

	fmt.Println(bannerRule)
	fmt.Println()

	return result
}

const bannerRule = "--------------------------------------------------------------------------------"

func reportOff(label string) {
	line := fmt.Sprintf("[ OFF ] %s", label)
	fmt.Println(line)
	rlog.Info("%s", line)
}

func reportOK(label string) {
	line := fmt.Sprintf("[ OK ] %s", label)
	fmt.Println(line)
	rlog.Info("%s", line)
}

func reportErr(label string, err error) {
	line := fmt.Sprintf("[ ERR ] %s", label)
	fmt.Println(line)
	rlog.Error("%s: %v", line, err)
}

// probeLoRa opens a transient modem, reads OP_MODE, forces standby then
// reset, and reads OP_MODE again. mode==0 on the first read means the SPI
// path is dead; a post-reset value other than 9 (0x09, the chip's reset
// default: Standby with the low-frequency bit set and LongRange clear)
// means the GPIO reset path is dead.
func probeLoRa(openModem OpenModem) bool {
	d, closeFn, err := openModem()
	if err != nil {
		reportErr("SPI POST", err)
		return false
	}
	defer closeFn()

	mode, err := d.OpMode()
	if err != nil || mode == 0 {
		reportErr("SPI POST", fmt.Errorf("unable to IO via SPI: %w", err))
		return false
	}

	if err := d.Standby(); err != nil {
		reportErr("SPI POST", err)
		return false
	}
	if err := d.Reset(); err != nil {
		reportErr("GPIO POST", err)
		return false
	}

	mode, err = d.OpMode()
	if err != nil || mode == 0 {
		reportErr("SPI POST", fmt.Errorf("unable to IO via SPI: %w", err))
		return false
	}
	if mode != 9 {
		reportErr("GPIO POST", fmt.Errorf("unable to IO via GPIO: op_mode=0x%02X", mode))
		return false
	}

	reportOK("SPI POST")
	reportOK("GPIO POST")
	return true
}

func probeBME(openBME func() error) bool {
	if err := openBME(); err != nil {
		reportErr("BME280 POST", err)
		return false
	}
	reportOK("BME280 POST")
	return true
}

// probeInternet is a cheap connectivity check: one ICMP echo to a
// well-known public IP with a 1s timeout, standing in for broker
// reachability without needing real MQTT credentials at POST time.
func probeInternet() bool {
	target := net.IPv4(1, 1, 1, 1)

	conn, err := icmp.ListenPacket("ip4:icmp", "0.0.0.0")
	if err != nil {
		reportErr("MQTT POST", fmt.Errorf("open icmp socket: %w", err))
		return false
	}
	defer conn.Close()

	msg := icmp.Message{
		Type: ipv4.ICMPTypeEcho,
		Code: 0,
		Body: &icmp.Echo{
			ID:   os.Getpid() & 0xffff,
			Seq:  1,
			Data: make([]byte, 24),
		},
	}
	wb, err := msg.Marshal(nil)
	if err != nil {
		reportErr("MQTT POST", fmt.Errorf("marshal icmp echo: %w", err))
		return false
	}

	if err := conn.SetDeadline(time.Now().Add(1 * time.Second)); err != nil {
		reportErr("MQTT POST", err)
		return false
	}
	if _, err := conn.WriteTo(wb, &net.IPAddr{IP: target}); err != nil {
		reportErr("MQTT POST", fmt.Errorf("unable to connect to internet: %w", err))
		return false
	}

	rb := make([]byte, 1500)
	if _, _, err := conn.ReadFrom(rb); err != nil {
		reportErr("MQTT POST", fmt.Errorf("unable to connect to internet: %w", err))
		return false
	}

	reportOK("MQTT POST")
	return true
}
