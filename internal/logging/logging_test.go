package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/Sparsa/bup/internal/config"
)

func TestNew_DefaultLevelFiltersInfo(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, nil)
	l.Info().Msg("hidden")
	l.Warn().Msg("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info message logged at default level: %q", out)
	}
	if !strings.Contains(out, "shown") {
		t.Errorf("warn message missing: %q", out)
	}
}

func TestNew_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, &config.LogConfig{Level: "debug", Format: "json"})
	Component(l, "runner").Debug().Str(FieldRunID, "abc").Msg("started")

	out := buf.String()
	for _, want := range []string{`"component":"runner"`, `"run_id":"abc"`, `"message":"started"`} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %s", out, want)
		}
	}
}

func TestNew_BadLevelFallsBackToWarn(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, &config.LogConfig{Level: "loud"})
	l.Info().Msg("hidden")
	if buf.Len() != 0 {
		t.Errorf("unexpected output %q", buf.String())
	}
}

func TestOrNop(t *testing.T) {
	if OrNop(nil) == nil {
		t.Fatal("OrNop(nil) returned nil")
	}
	OrNop(nil).Error().Msg("discarded")
}
