package logx

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestLoggerWithFields(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := NewJSON(&buf, "debug").With(String("comp", "scheduler"))
	log.Info("post armed", String("post_id", "post_abc"), Int("channels", 2), Err(errors.New("boom")))

	var m map[string]any
	if err := json.Unmarshal(buf.Bytes(), &m); err != nil {
		t.Fatalf("unmarshal: %v (%q)", err, buf.String())
	}
	if m["comp"] != "scheduler" || m["post_id"] != "post_abc" || m["err"] != "boom" {
		t.Fatalf("unexpected fields: %v", m)
	}
	if m["message"] != "post armed" {
		t.Fatalf("message=%v", m["message"])
	}
}

func TestLevelFiltering(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := NewJSON(&buf, "warn")
	log.Debug("hidden")
	log.Info("hidden")
	log.Warn("shown")
	if strings.Count(buf.String(), "\n") != 1 || !strings.Contains(buf.String(), "shown") {
		t.Fatalf("unexpected output %q", buf.String())
	}
	if log.Enabled(LevelInfo) {
		t.Fatalf("info should be disabled at warn level")
	}
}

func TestZeroLoggerIsNop(t *testing.T) {
	t.Parallel()

	var l Logger
	if !l.IsZero() {
		t.Fatalf("zero logger should report IsZero")
	}
	l.Error("nothing happens")
	if Nop().IsZero() {
		t.Fatalf("Nop logger is not zero")
	}
}

func TestFormatTelegramLine(t *testing.T) {
	t.Parallel()

	got := formatTelegramLine([]byte(`{"level":"error","time":"x","message":"delivery failed","post_id":"p1","channel":-100}`))
	want := "[ERROR] delivery failed\n- channel=-100\n- post_id=p1"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
	if got := formatTelegramLine([]byte("not json\n")); got != "not json" {
		t.Fatalf("raw line: %q", got)
	}
}
