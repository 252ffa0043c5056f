package log

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("invalid JSON line %q: %v", line, err)
		}
		out = append(out, m)
	}
	return out
}

func TestLogger_JSONFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerWithWriter("dev-1", &buf)

	l.Component("session").Info("upload started", map[string]any{"chunk_count": 3})

	lines := decodeLines(t, &buf)
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1", len(lines))
	}
	m := lines[0]
	if m["message"] != "upload started" {
		t.Errorf("message = %v", m["message"])
	}
	if m["level"] != "info" {
		t.Errorf("level = %v, want info", m["level"])
	}
	if m["device_id"] != "dev-1" {
		t.Errorf("device_id = %v, want dev-1", m["device_id"])
	}
	if m["component"] != "session" {
		t.Errorf("component = %v, want session", m["component"])
	}
	if _, ok := m["timestamp"]; !ok {
		t.Error("missing timestamp")
	}
	fields, ok := m["fields"].(map[string]any)
	if !ok || fields["chunk_count"] != float64(3) {
		t.Errorf("fields = %v", m["fields"])
	}
}

func TestLogger_SetLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerWithWriter("dev-1", &buf)
	child := l.Component("device")

	if err := l.SetLevel("warn"); err != nil {
		t.Fatalf("SetLevel failed: %v", err)
	}
	child.Debug("hidden", nil)
	child.Info("hidden", nil)
	child.Warn("shown", nil)

	lines := decodeLines(t, &buf)
	if len(lines) != 1 || lines[0]["message"] != "shown" {
		t.Errorf("lines = %v, want only the warning", lines)
	}

	if err := l.SetLevel("loud"); err == nil {
		t.Error("SetLevel should reject unknown levels")
	}
}

func TestLogger_WithOutput(t *testing.T) {
	var first, second bytes.Buffer
	l := NewLoggerWithWriter("dev-2", &first)
	l.WithOutput(&second).Error("moved", nil)

	if first.Len() != 0 {
		t.Error("original writer should be untouched")
	}
	lines := decodeLines(t, &second)
	if len(lines) != 1 || lines[0]["device_id"] != "dev-2" {
		t.Errorf("lines = %v", lines)
	}
}

func TestLogger_NilSafe(t *testing.T) {
	var l *Logger
	l.Debug("x", nil)
	l.Info("x", nil)
	l.Warn("x", nil)
	l.Error("x", nil)
	l.Component("c").Info("x", nil)
	l.Sugar().Infof("x %d", 1)
	if err := l.SetLevel("info"); err != nil {
		t.Errorf("SetLevel on nil = %v", err)
	}
	if err := l.Sync(); err != nil {
		t.Errorf("Sync on nil = %v", err)
	}
}
