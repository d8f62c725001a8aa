package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", DefaultFile)
	logger, err := New("debug", path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Debug("hello from test")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "hello from test") {
		t.Errorf("log file missing record: %s", data)
	}
}

func TestNewLevelFilters(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFile)
	logger, err := New("warn", path)
	if err != nil {
		t.Fatal(err)
	}
	logger.Info("quiet")
	logger.Warn("loud")
	_ = logger.Sync()

	data, _ := os.ReadFile(path)
	if strings.Contains(string(data), "quiet") {
		t.Error("info record should be filtered at warn level")
	}
	if !strings.Contains(string(data), "loud") {
		t.Error("warn record missing")
	}
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	if _, err := New("chatty", filepath.Join(t.TempDir(), "x.log")); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestNewEmptyPathIsNop(t *testing.T) {
	logger, err := New("info", "")
	if err != nil || logger == nil {
		t.Fatalf("New: %v", err)
	}
	logger.Info("dropped")
}
