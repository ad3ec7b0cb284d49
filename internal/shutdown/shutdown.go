// Package shutdown converts OS termination signals into an in-process
// event, and performs the emergency modem reset that doesn't require a
// live driver instance. Grounded on original_source/src/{signals,
// graceful_shutdown}.rs almost verbatim — this is a small, exactly
// specified piece of the original with no teacher analogue to generalize
// from.
package shutdown

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"

	"github.com/BuzzVerse/rusty-beagle/internal/config"
)

// resetLowDelay and resetWaitDelay mirror the modem package's own reset
// timing; emergency reset toggles the same way the driver's Reset does,
// just without a driver instance to call it through.
const (
	resetLowDelay  = 5 * time.Millisecond
	resetWaitDelay = 10 * time.Millisecond
)

// Chan is a one-slot shutdown channel: the first signal delivered is the
// only one that matters, since the orchestrator exits the process shortly
// after observing it.
type Chan chan os.Signal

// Listen registers interest in SIGINT, SIGQUIT, and SIGTERM and returns a
// channel that receives the first one delivered.
func Listen() Chan {
	ch := make(Chan, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGQUIT, syscall.SIGTERM)
	return ch
}

// EmergencyReset re-acquires the modem's reset GPIO line directly from
// config — bypassing the driver, which may be blocked inside a kernel read
// at shutdown time — and toggles it low-5ms-high, leaving the modem in a
// reset state. The line is not explicitly released: periph.io's gpioreg
// lines have no close call, so the handle lasts until process exit.
func EmergencyReset(resetPin int) error {
	name := config.GPIOName(resetPin)

	pin := gpioreg.ByName(name)
	if pin == nil {
		return fmt.Errorf("shutdown: no such gpio line %s", name)
	}

	if err := pin.Out(gpio.Low); err != nil {
		return fmt.Errorf("shutdown: drive reset low: %w", err)
	}
	time.Sleep(resetLowDelay)

	if err := pin.Out(gpio.High); err != nil {
		return fmt.Errorf("shutdown: drive reset high: %w", err)
	}
	time.Sleep(resetWaitDelay)

	return nil
}
