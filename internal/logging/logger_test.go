package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"DEBUG", zerolog.DebugLevel},
		{" warn ", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"info", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
		{"verbose", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseLevel(tt.input); got != tt.expected {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestInitWriterLevelPrecedence(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.GlobalLevel())

	t.Setenv(LevelEnvVar, "error")
	var buf bytes.Buffer

	InitWriter(&buf, "")
	if got := zerolog.GlobalLevel(); got != zerolog.ErrorLevel {
		t.Errorf("env level: got %v, want error", got)
	}

	InitWriter(&buf, "debug")
	if got := zerolog.GlobalLevel(); got != zerolog.DebugLevel {
		t.Errorf("explicit level: got %v, want debug", got)
	}
}

func TestStartupLoggerLog(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.GlobalLevel())
	saved := log.Logger
	defer func() { log.Logger = saved }()

	var buf bytes.Buffer
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	log.Logger = zerolog.New(&buf)

	NewStartupLogger("leafscan").
		Version("1.2.3").
		Config("serverURL", "http://localhost:8000").
		Feature("session", true).
		Log()

	out := buf.String()
	for _, want := range []string{`"name":"leafscan"`, `"version":"1.2.3"`, `"serverURL":"http://localhost:8000"`, `"session":true`, "Startup complete"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %s:\n%s", want, out)
		}
	}
}
