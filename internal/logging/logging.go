// Package logging configures the pterm logger shared by every ChanStream package.
package logging

import (
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/pterm/pterm"
)

const (
	EnvLogLevel     = "CHANSTREAM_LOG_LEVEL"
	EnvLogTimestamp = "CHANSTREAM_LOG_TIMESTAMP"
	EnvLogNoColor   = "CHANSTREAM_LOG_NOCOLOR"
)

// Profile selects the defaults Configure applies.
type Profile int

const (
	ProfileRuntime Profile = iota
	ProfileTest
)

var (
	configureOnce sync.Once
	shared        = pterm.DefaultLogger.WithLevel(pterm.LogLevelInfo)
)

// Logger returns the process-wide logger.
func Logger() *pterm.Logger {
	return shared
}

// Discard returns a logger that drops everything.
func Discard() *pterm.Logger {
	return pterm.DefaultLogger.WithWriter(io.Discard).WithLevel(pterm.LogLevelDisabled)
}

// ConfigureRuntime applies the Info-level, timestamped defaults.
func ConfigureRuntime() {
	Configure(ProfileRuntime)
}

// ConfigureTests applies the Debug-level defaults without timestamps.
func ConfigureTests() {
	Configure(ProfileTest)
}

// Configure applies the profile defaults and env overrides once per process.
// The shared logger is updated in place, so loggers handed out earlier by
// Logger see the new settings.
func Configure(profile Profile) {
	configureOnce.Do(func() {
		l := pterm.DefaultLogger
		l.MaxWidth = 1000
		l.TimeFormat = "02 Jan 15:04:05"
		switch profile {
		case ProfileTest:
			l.Level = pterm.LogLevelDebug
			l.ShowTime = false
		default:
			l.Level = pterm.LogLevelInfo
			l.ShowTime = true
		}
		applyEnvOverrides(&l)
		*shared = l
	})
}

// SetLevel overrides the shared level, e.g. from a config file.
func SetLevel(raw string) bool {
	lvl, ok := ParseLevel(raw)
	if ok {
		shared.Level = lvl
	}
	return ok
}

func applyEnvOverrides(l *pterm.Logger) {
	if lvl, ok := ParseLevel(os.Getenv(EnvLogLevel)); ok {
		l.Level = lvl
	}
	if v, ok := parseBool(os.Getenv(EnvLogTimestamp)); ok {
		l.ShowTime = v
	}
	if v, ok := parseBool(os.Getenv(EnvLogNoColor)); ok && v {
		pterm.DisableColor()
	}
}

// ParseLevel maps a level name to a pterm level.
func ParseLevel(raw string) (pterm.LogLevel, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return pterm.LogLevelInfo, false
	case "trace":
		return pterm.LogLevelTrace, true
	case "debug":
		return pterm.LogLevelDebug, true
	case "info":
		return pterm.LogLevelInfo, true
	case "warn", "warning":
		return pterm.LogLevelWarn, true
	case "error":
		return pterm.LogLevelError, true
	case "disabled", "off", "none":
		return pterm.LogLevelDisabled, true
	default:
		return pterm.LogLevelInfo, false
	}
}

func parseBool(raw string) (bool, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}
