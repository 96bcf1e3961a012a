package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestNewSetsLevelAndFormat(t *testing.T) {
	cfg := Config{Level: "debug", Format: "json", Output: "stdout"}
	log := New(cfg)
	if log.GetLevel().String() != "debug" {
		t.Fatalf("expected level debug, got %s", log.GetLevel())
	}
	if _, ok := log.Formatter.(*logrus.JSONFormatter); !ok {
		t.Fatalf("expected JSON formatter, got %T", log.Formatter)
	}
}

func TestNewFallsBackToInfoOnBadLevel(t *testing.T) {
	log := New(Config{Level: "nonsense"})
	if log.GetLevel().String() != "info" {
		t.Fatalf("expected level info, got %s", log.GetLevel())
	}
}

func TestNewCreatesLogFile(t *testing.T) {
	originalWD, _ := os.Getwd()
	t.Cleanup(func() { _ = os.Chdir(originalWD) })

	temp := t.TempDir()
	if err := os.Chdir(temp); err != nil {
		t.Fatalf("chdir: %v", err)
	}

	log := New(Config{Level: "info", Format: "text", Output: "file", FilePrefix: "test"})
	log.Info("hello")

	path := filepath.Join("logs", "test.log")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("expected log file: %v", err)
	}
	if len(data) == 0 {
		t.Fatalf("expected log file to contain data")
	}
}

func TestNewDefaultStampsComponent(t *testing.T) {
	log := NewDefault("core")
	if entry := log.WithField("k", "v"); entry == nil {
		t.Fatal("expected entry")
	}
	var buf bytes.Buffer
	log.SetOutput(&buf)
	log.WithField("k", "v").Info("hello")
	if !strings.Contains(buf.String(), "component=core") {
		t.Fatalf("expected component field in %q", buf.String())
	}
}
