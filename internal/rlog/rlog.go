// Package rlog is the process-wide logger. Every line is printed to stdout
// (Info) or stderr (Error) and, when the syslog socket could be opened, also
// written to the platform syslog facility under the process tag
// "rusty_beagle" — the same dual stderr+syslog echo the original's
// error_log! macro performed at every POST/driver failure site.
package rlog

import (
	"fmt"
	"log"
	"log/syslog"
	"os"
)

const tag = "rusty_beagle"

var sysWriter *syslog.Writer

// Init opens the syslog connection. It never returns an error to the
// caller: if syslog is unavailable (e.g. running off-target during
// development) it prints one notice and logging degrades to the
// stdout/stderr echo alone.
func Init() {
	w, err := syslog.New(syslog.LOG_INFO|syslog.LOG_DAEMON, tag)
	if err != nil {
		log.Printf("rlog: syslog unavailable, logging to stderr only: %v", err)
		return
	}
	sysWriter = w
}

// Info logs an informational line to stdout and, if available, syslog.
func Info(format string, args ...interface{}) {
	line := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stdout, line)
	if sysWriter != nil {
		sysWriter.Info(line)
	}
}

// Error logs an error line to stderr and, if available, syslog. This is
// the dual-echo idiom used throughout POST and the workers: every fatal
// or recoverable error is both printed for an attended session and
// recorded for an unattended one.
func Error(format string, args ...interface{}) {
	line := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, line)
	if sysWriter != nil {
		sysWriter.Err(line)
	}
}
