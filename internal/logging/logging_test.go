package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tetherview/tetherview/internal/config"
)

func TestNewWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "tetherview.log")
	logger, closer, err := New(config.LogConfig{File: path, Level: "info"})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	logger.WithPrefix("preview").Warn("frame fetch failed", "err", "timeout")
	logger.Debug("hidden")
	closer.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	out := string(data)
	if !strings.Contains(out, "frame fetch failed") {
		t.Errorf("log file missing warn line: %q", out)
	}
	if !strings.Contains(out, "preview") {
		t.Errorf("log file missing prefix: %q", out)
	}
	if strings.Contains(out, "hidden") {
		t.Errorf("debug line written at info level: %q", out)
	}
}

func TestNewRejectsBadLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.log")
	if _, _, err := New(config.LogConfig{File: path, Level: "loud"}); err == nil {
		t.Fatal("New() with unknown level should return error")
	}
}
