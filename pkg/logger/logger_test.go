package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestLoggerInit(t *testing.T) {
	if err := Init(); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}
	defer func() {
		if err := Sync(); err != nil {
			t.Errorf("failed to sync logger: %v", err)
		}
	}()

	if Get() == nil {
		t.Fatal("logger is nil after initialization")
	}
}

func TestLoggerJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	if err := Init(WithOutput(&buf), WithFormat("json"), WithCaller(false)); err != nil {
		t.Fatalf("init: %v", err)
	}

	Named("tracker").Info(context.Background(), "run ended",
		String("run_id", "r1"),
		Int64("steps", 128),
		Bool("territory", true),
		Duration("took", time.Second),
		Error(errors.New("boom")),
	)

	var rec map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &rec); err != nil {
		t.Fatalf("output is not json: %v (%q)", err, buf.String())
	}
	if rec["msg"] != "run ended" {
		t.Errorf("msg = %v", rec["msg"])
	}
	if rec["component"] != "tracker" {
		t.Errorf("component = %v", rec["component"])
	}
	if rec["run_id"] != "r1" {
		t.Errorf("run_id = %v", rec["run_id"])
	}
	if rec["error"] != "boom" {
		t.Errorf("error = %v", rec["error"])
	}
	if _, ok := rec["source"]; ok {
		t.Errorf("source should be omitted when caller is disabled")
	}
}

func TestLoggerLevel(t *testing.T) {
	var buf bytes.Buffer
	if err := Init(WithOutput(&buf)); err != nil {
		t.Fatalf("init: %v", err)
	}
	ctx := context.Background()

	Get().Debug(ctx, "hidden")
	if strings.Contains(buf.String(), "hidden") {
		t.Fatalf("debug record emitted at info level")
	}

	if err := SetLevelString("debug"); err != nil {
		t.Fatalf("set level: %v", err)
	}
	Get().Debug(ctx, "visible")
	if !strings.Contains(buf.String(), "visible") {
		t.Fatalf("debug record missing after SetLevelString(debug)")
	}
	if !strings.Contains(buf.String(), "source=") {
		t.Fatalf("source attribute missing: %q", buf.String())
	}

	if err := SetLevelString("loud"); err == nil {
		t.Fatalf("expected error for unknown level")
	}
	_ = SetLevelString("info")
}

func TestNop(t *testing.T) {
	l := Nop().Named("x")
	l.Error(context.Background(), "dropped")
}
