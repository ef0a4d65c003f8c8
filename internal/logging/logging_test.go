package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/optiohire/optiohire-api/internal/config"
)

func TestNew_DevelopmentEmitsDebug(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, config.RuntimeConfig{Mode: config.ModeDevelopment})

	if !logger.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("development logger should enable debug")
	}

	logger.Debug("hello")
	if !strings.Contains(buf.String(), "hello") {
		t.Errorf("debug entry not written: %q", buf.String())
	}
}

func TestNew_ProductionIsJSONAtInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, config.RuntimeConfig{Mode: config.ModeProduction})

	if logger.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("production logger should not enable debug by default")
	}

	logger.Info("hello", slog.String("k", "v"))
	out := buf.String()
	if !strings.Contains(out, `"msg":"hello"`) {
		t.Errorf("production output is not JSON: %q", out)
	}
}

func TestNew_LevelOverride(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, config.RuntimeConfig{Mode: config.ModeProduction, LogLevel: "debug"})

	if !logger.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("explicit log_level override should win over mode default")
	}

	logger = New(&buf, config.RuntimeConfig{Mode: config.ModeDevelopment, LogLevel: "error"})
	if logger.Enabled(context.Background(), slog.LevelWarn) {
		t.Error("error override should disable warn")
	}
}
