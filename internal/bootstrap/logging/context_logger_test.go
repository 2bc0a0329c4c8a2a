package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestWithAttrsOverridesByKey(t *testing.T) {
	ctx := WithAttrs(context.Background(), slog.String("component", "a"), slog.String("session_id", "s1"))
	ctx = WithAttrs(ctx, slog.String("component", "b"))

	attrs := Attrs(ctx)
	if len(attrs) != 2 {
		t.Fatalf("Attrs() len = %d, want 2", len(attrs))
	}
	if attrs[0].Key != "component" || attrs[0].Value.String() != "b" {
		t.Fatalf("Attrs()[0] = %v", attrs[0])
	}
}

func TestNewLoggerJSONWritesContextAttrs(t *testing.T) {
	var buf bytes.Buffer
	ctx := WithLogger(context.Background(), NewLogger(&buf, "json", "debug"))
	ctx = WithAttrs(ctx, slog.String("component", "usecase.notes"))

	Debug(ctx, "job claimed", slog.String("job_id", "j1"))

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode log line: %v (%q)", err, buf.String())
	}
	if line["component"] != "usecase.notes" || line["job_id"] != "j1" || line["msg"] != "job claimed" {
		t.Fatalf("log line = %v", line)
	}
}

func TestNewLoggerHonorsLevel(t *testing.T) {
	var buf bytes.Buffer
	ctx := WithLogger(context.Background(), NewLogger(&buf, "text", "warn"))

	Info(ctx, "hidden")
	Warn(ctx, "shown")

	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, "shown") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestParseLevelDefaultsToInfo(t *testing.T) {
	if ParseLevel("nonsense") != slog.LevelInfo {
		t.Fatalf("ParseLevel() should default to info")
	}
	if ParseLevel(" ERROR ") != slog.LevelError {
		t.Fatalf("ParseLevel() should trim and lowercase")
	}
}
