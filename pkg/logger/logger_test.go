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
	cfg := LoggingConfig{Level: "debug", Format: "json", Output: "stdout"}
	log := New(cfg)
	if log.GetLevel().String() != "debug" {
		t.Fatalf("expected level debug, got %s", log.GetLevel())
	}
	if _, ok := log.Formatter.(*logrus.JSONFormatter); !ok {
		t.Fatalf("expected JSON formatter, got %T", log.Formatter)
	}
}

func TestNewCreatesLogFile(t *testing.T) {
	originalWD, _ := os.Getwd()
	t.Cleanup(func() { _ = os.Chdir(originalWD) })

	temp := t.TempDir()
	if err := os.Chdir(temp); err != nil {
		t.Fatalf("chdir: %v", err)
	}

	log := New(LoggingConfig{Level: "info", Format: "text", Output: "file", FilePrefix: "test"})
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

func TestNewDefaultsFilePrefixToSnsim(t *testing.T) {
	originalWD, _ := os.Getwd()
	t.Cleanup(func() { _ = os.Chdir(originalWD) })

	temp := t.TempDir()
	if err := os.Chdir(temp); err != nil {
		t.Fatalf("chdir: %v", err)
	}

	log := New(LoggingConfig{Level: "info", Format: "text", Output: "file"})
	log.Info("hello")

	path := filepath.Join("logs", "snsim.log")
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected default log file %s: %v", path, err)
	}
}

func TestNewDefaultStampsComponentField(t *testing.T) {
	log := NewDefault("scenario")

	var buf bytes.Buffer
	log.SetOutput(&buf)
	log.SetFormatter(&logrus.JSONFormatter{})
	log.Info("loaded")

	if got := buf.String(); !strings.Contains(got, `"component":"scenario"`) {
		t.Fatalf("expected component field in output, got %q", got)
	}
}

func TestWithTickAndWithScenarioTagFields(t *testing.T) {
	log := NewDefault("engine")

	entry := log.WithTick(7)
	if entry.Data["tick"] != 7 {
		t.Fatalf("expected tick field 7, got %v", entry.Data["tick"])
	}

	entry = log.WithScenario("scenario.xml")
	if entry.Data["scenario"] != "scenario.xml" {
		t.Fatalf("expected scenario field, got %v", entry.Data["scenario"])
	}
}
