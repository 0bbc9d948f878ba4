package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNewWritesJSON(t *testing.T) {
	root := t.TempDir()
	t.Setenv("FORMPIPE_LOG_LEVEL", "")
	undo := zap.ReplaceGlobals(zap.NewNop())
	defer undo()

	now := func() time.Time { return time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC) }
	log, err := New(root, Options{Level: zapcore.DebugLevel, Now: now})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	log.Debugw("form submitted", "form_id", 7)
	_ = log.Sync()

	raw, err := os.ReadFile(filepath.Join(root, "logs", "2026-03-14.log"))
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	var found bool
	for _, line := range bytes.Split(bytes.TrimSpace(raw), []byte("\n")) {
		var entry map[string]any
		if err := json.Unmarshal(line, &entry); err != nil {
			t.Fatalf("line is not JSON: %q", line)
		}
		if entry["msg"] == "form submitted" {
			found = entry["level"] == "debug" && entry["form_id"] == float64(7)
		}
	}
	if !found {
		t.Fatalf("debug entry missing:\n%s", raw)
	}
}

func TestNewBadLevel(t *testing.T) {
	t.Setenv("FORMPIPE_LOG_LEVEL", "loud")
	if _, err := New(t.TempDir(), Options{}); err == nil {
		t.Fatalf("bad level accepted")
	}
}
