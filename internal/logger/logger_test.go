package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected valid JSON log output, got error: %v\nraw output: %s", err, buf.String())
	}
	return entry
}

func TestSetup_ReturnsJSONLogger(t *testing.T) {
	var buf bytes.Buffer
	l := Setup(&buf)

	if l == nil {
		t.Fatal("expected non-nil logger")
	}

	l.Info("test message", slog.String("key", "value"))

	entry := decodeLine(t, &buf)
	if entry["msg"] != "test message" {
		t.Errorf("msg = %q, want %q", entry["msg"], "test message")
	}
	if entry["key"] != "value" {
		t.Errorf("key = %q, want %q", entry["key"], "value")
	}
	if _, ok := entry["time"]; !ok {
		t.Error("expected 'time' field in JSON log output")
	}
}

func TestSetup_IncludesServiceName(t *testing.T) {
	var buf bytes.Buffer
	Setup(&buf).Info("test")

	entry := decodeLine(t, &buf)
	if entry["service"] != "kanux-gateway" {
		t.Errorf("service = %v, want %q", entry["service"], "kanux-gateway")
	}
}

func TestSetup_LevelField(t *testing.T) {
	var buf bytes.Buffer
	l := Setup(&buf)

	l.Warn("warning test")

	entry := decodeLine(t, &buf)
	if entry["level"] != "WARN" {
		t.Errorf("level = %q, want %q", entry["level"], "WARN")
	}
}

func TestSetup_DebugIsSuppressed(t *testing.T) {
	var buf bytes.Buffer
	Setup(&buf).Debug("discarding stale plan response")

	if buf.Len() != 0 {
		t.Errorf("debug logs should be suppressed at info level, got %s", buf.String())
	}
}

func TestSetup_GuardDecisionAttributes(t *testing.T) {
	var buf bytes.Buffer
	l := Setup(&buf)

	l.Warn("route guard denied",
		slog.String("guard", "role:company"),
		slog.String("user_id", "u-123"),
		slog.String("redirect_to", "/company/access-denied"),
		slog.Int("status", 303),
	)

	entry := decodeLine(t, &buf)
	if entry["guard"] != "role:company" {
		t.Errorf("guard = %q, want %q", entry["guard"], "role:company")
	}
	if entry["redirect_to"] != "/company/access-denied" {
		t.Errorf("redirect_to = %q", entry["redirect_to"])
	}
	if entry["status"] != float64(303) {
		t.Errorf("status = %v, want %v", entry["status"], 303)
	}
}

func TestSetupDefault_SetsGlobalLogger(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	SetupDefault(&buf)

	slog.Default().Info("global test", slog.String("test_key", "test_val"))

	entry := decodeLine(t, &buf)
	if entry["msg"] != "global test" {
		t.Errorf("msg = %q, want %q", entry["msg"], "global test")
	}
	if entry["test_key"] != "test_val" {
		t.Errorf("test_key = %q, want %q", entry["test_key"], "test_val")
	}
}

func TestComponent_AddsComponentAttribute(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	SetupDefault(&buf)

	Component("cleanup").Info("done")

	entry := decodeLine(t, &buf)
	if entry["component"] != "cleanup" {
		t.Errorf("component = %v, want %q", entry["component"], "cleanup")
	}
	if entry["service"] != "kanux-gateway" {
		t.Errorf("service = %v, want %q", entry["service"], "kanux-gateway")
	}
}

func TestRequestID_RoundTrip(t *testing.T) {
	if got := RequestIDFromContext(context.Background()); got != "" {
		t.Errorf("RequestIDFromContext(empty) = %q, want empty", got)
	}

	ctx := WithRequestID(context.Background(), "req-1")
	if got := RequestIDFromContext(ctx); got != "req-1" {
		t.Errorf("RequestIDFromContext = %q, want %q", got, "req-1")
	}
}
