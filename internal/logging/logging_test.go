package logging

import (
	"testing"

	"github.com/pterm/pterm"
)

func TestParseLevel(t *testing.T) {
	cases := []struct {
		raw  string
		want pterm.LogLevel
		ok   bool
	}{
		{"", pterm.LogLevelInfo, false},
		{"debug", pterm.LogLevelDebug, true},
		{" WARN ", pterm.LogLevelWarn, true},
		{"warning", pterm.LogLevelWarn, true},
		{"off", pterm.LogLevelDisabled, true},
		{"loud", pterm.LogLevelInfo, false},
	}
	for _, tc := range cases {
		got, ok := ParseLevel(tc.raw)
		if got != tc.want || ok != tc.ok {
			t.Fatalf("ParseLevel(%q) = %v,%v want %v,%v", tc.raw, got, ok, tc.want, tc.ok)
		}
	}
}

func TestParseBool(t *testing.T) {
	if v, ok := parseBool("true"); !v || !ok {
		t.Fatalf("expected true,true")
	}
	if _, ok := parseBool("maybe"); ok {
		t.Fatalf("expected parse failure")
	}
	if _, ok := parseBool(" "); ok {
		t.Fatalf("expected empty to be unset")
	}
}

func TestDiscardIsSilent(t *testing.T) {
	l := Discard()
	if l.Level != pterm.LogLevelDisabled {
		t.Fatalf("expected disabled level, got %v", l.Level)
	}
	l.Info("dropped", l.Args("k", 1))
}

func TestConfigureUpdatesEarlierLoggers(t *testing.T) {
	t.Setenv(EnvLogLevel, "error")
	t.Setenv(EnvLogTimestamp, "")
	t.Setenv(EnvLogNoColor, "")

	before := Logger()
	ConfigureTests()
	if Logger() != before {
		t.Fatalf("Configure replaced the shared logger")
	}
	if before.Level != pterm.LogLevelError {
		t.Fatalf("earlier logger level = %v, want error", before.Level)
	}
	if before.ShowTime {
		t.Fatalf("test profile should hide timestamps")
	}
}
