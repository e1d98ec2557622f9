package logger

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
)

func TestLoggerInit(t *testing.T) {
	if err := Init(); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}
	if Get() == nil {
		t.Fatal("logger is nil after initialization")
	}

	if err := Init(WithFormat("yaml")); err == nil {
		t.Fatal("expected an error for an unknown format")
	}
}

func TestLoggerTextOutput(t *testing.T) {
	var buf bytes.Buffer
	if err := Init(WithWriter(&buf)); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}
	_ = SetLevelString("info")

	ctx := context.Background()
	Get().Info(ctx, "ranked track", String("artist", "Björk"), Int("weight", 60))
	Get().Debug(ctx, "hidden")

	out := buf.String()
	if !strings.Contains(out, "ranked track") || !strings.Contains(out, "weight=60") {
		t.Errorf("unexpected output: %q", out)
	}
	if strings.Contains(out, "hidden") {
		t.Errorf("debug entry should be filtered at info level: %q", out)
	}
}

func TestLoggerJSONWithFields(t *testing.T) {
	var buf bytes.Buffer
	if err := Init(WithWriter(&buf), WithFormat("json")); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}

	l := Named("aggregate").With(String("run_id", "r-1"))
	l.Warn(context.Background(), "dropped", Error(errors.New("boom")), Bool("skipped", true))

	out := buf.String()
	for _, want := range []string{`"component":"aggregate"`, `"run_id":"r-1"`, `"skipped":true`, `"msg":"dropped"`} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %s", out, want)
		}
	}
}

func TestSetLevelString(t *testing.T) {
	for _, lvl := range []string{"debug", "INFO", "warning", "error", ""} {
		if err := SetLevelString(lvl); err != nil {
			t.Errorf("level %q: unexpected error %v", lvl, err)
		}
	}
	if err := SetLevelString("verbose"); err == nil {
		t.Error("expected error for unknown level")
	}
	_ = SetLevelString("info")
}

func TestNop(t *testing.T) {
	l := Nop()
	l.Error(context.Background(), "nothing to see")
	if l.Named("x") == nil {
		t.Fatal("named nop logger is nil")
	}
}
