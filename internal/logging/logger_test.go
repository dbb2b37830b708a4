package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestNewLoggerDefaultsToTextAtInfo(t *testing.T) {
	logger := NewLogger(nil)
	if logger == nil {
		t.Fatal("NewLogger(nil) returned nil")
	}
}

func TestLoggerWithFieldsAttachesRankAndComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&Config{Level: LevelDebug, Output: &buf})

	rankLogger := logger.WithFields("rank", 3)
	rankLogger.Info("write phase complete")

	output := buf.String()
	if !strings.Contains(output, "rank=3") {
		t.Errorf("expected rank=3 in output, got: %s", output)
	}

	buf.Reset()
	phaseLogger := rankLogger.WithFields("phase", "write")
	phaseLogger.Debug("stonewall fired")

	output = buf.String()
	if !strings.Contains(output, "rank=3") || !strings.Contains(output, "phase=write") {
		t.Errorf("expected both rank=3 and phase=write in output, got: %s", output)
	}
}

func TestLoggerKeyValueArgsBecomeFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&Config{Level: LevelDebug, Output: &buf})

	logger.Warn("file size mismatch", "expected", 1024, "actual", 900)

	output := buf.String()
	if !strings.Contains(output, "expected=1024") || !strings.Contains(output, "actual=900") {
		t.Errorf("expected both fields in output, got: %s", output)
	}
}

func TestGlobalLoggerFunctions(t *testing.T) {
	var buf bytes.Buffer
	SetDefault(NewLogger(&Config{Level: LevelDebug, Output: &buf}))

	Debug("debug message", "key", "value")
	output := buf.String()
	if !strings.Contains(output, "debug message") || !strings.Contains(output, "key=value") {
		t.Errorf("expected debug message, got: %s", output)
	}

	buf.Reset()
	Info("info message")
	if !strings.Contains(buf.String(), "info message") {
		t.Errorf("expected info message, got: %s", buf.String())
	}

	buf.Reset()
	Warn("warning message")
	if !strings.Contains(buf.String(), "warning message") {
		t.Errorf("expected warning message, got: %s", buf.String())
	}

	buf.Reset()
	Error("error message")
	if !strings.Contains(buf.String(), "error message") {
		t.Errorf("expected error message, got: %s", buf.String())
	}
}
