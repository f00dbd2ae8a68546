package logger

import (
	"bytes"
	"strings"
	"testing"
)

func TestNew_JSONFormat(t *testing.T) {
	log := New(LoggingConfig{Level: "debug", Format: "json"})
	var buf bytes.Buffer
	log.SetOutput(&buf)

	log.WithField("request_id", "abc").Info("hello")

	out := buf.String()
	if !strings.Contains(out, `"request_id":"abc"`) {
		t.Fatalf("expected structured field in output, got %q", out)
	}
	if !strings.Contains(out, `"msg":"hello"`) {
		t.Fatalf("expected message in output, got %q", out)
	}
}

func TestNew_InvalidLevelFallsBack(t *testing.T) {
	log := New(LoggingConfig{Level: "nonsense"})
	var buf bytes.Buffer
	log.SetOutput(&buf)

	log.Debug("should be suppressed at info level")
	if buf.Len() != 0 {
		t.Fatalf("debug output not suppressed: %q", buf.String())
	}

	log.Info("visible")
	if buf.Len() == 0 {
		t.Fatal("expected info output")
	}
}

func TestNewDefault_ComponentField(t *testing.T) {
	log := NewDefault("worker")
	var buf bytes.Buffer
	log.SetOutput(&buf)

	log.Warn("spinning down")
	if !strings.Contains(buf.String(), "worker") {
		t.Fatalf("expected component field, got %q", buf.String())
	}
}
