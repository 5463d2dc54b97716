package logger

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLevels(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer Close()

	SetLevel(LevelWarn)
	Debug("hidden %d", 1)
	Info("hidden %d", 2)
	Warn("kept %d", 3)
	Error("kept %d", 4)
	SetLevel(LevelInfo)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("messages below the level leaked: %q", out)
	}
	for _, want := range []string{"[WARN] kept 3", "[ERROR] kept 4"} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q should contain %q", out, want)
		}
	}
	if GetWriter() != &buf {
		t.Error("GetWriter should return the configured output")
	}
}

func TestInitAndClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")
	if err := Init(path); err != nil {
		t.Fatalf("Init: %v", err)
	}
	Info("connected to %s", "127.0.0.1:9008")
	Close()
	Info("after close")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "[INFO] connected to 127.0.0.1:9008") {
		t.Errorf("log file %q missing message", data)
	}
	if strings.Contains(string(data), "after close") {
		t.Error("nothing should be written after Close")
	}
	if GetWriter() != io.Discard {
		t.Error("closed logger should discard")
	}
}

func TestInitBadPath(t *testing.T) {
	if err := Init(filepath.Join(t.TempDir(), "missing", "run.log")); err == nil {
		t.Error("expected error for a missing directory")
	}
}
