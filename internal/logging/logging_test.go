package logging_test

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/raysh454/redline/internal/logging"
)

type logLine struct {
	Level     string         `json:"level"`
	Msg       string         `json:"msg"`
	Component string         `json:"component"`
	Time      string         `json:"time"`
	Fields    map[string]any `json:"fields"`
}

func decodeLine(t *testing.T, buf *bytes.Buffer) logLine {
	t.Helper()
	raw := strings.TrimSpace(buf.String())
	var entry logLine
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		t.Fatalf("output is not one JSON line: %v (%q)", err, raw)
	}
	return entry
}

func TestWriterLogger_EmitsJSONLines(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	logger := logging.NewWriterLogger("Redline", &buf)

	logger.Info("report loaded", logging.Field{Key: "version", Value: 3})

	entry := decodeLine(t, &buf)
	if entry.Level != "info" || entry.Msg != "report loaded" {
		t.Errorf("unexpected entry: %+v", entry)
	}
	if entry.Component != "Redline" {
		t.Errorf("component lost: %q", entry.Component)
	}
	if entry.Time == "" {
		t.Error("entry carries no timestamp")
	}
	if entry.Fields["version"] != float64(3) {
		t.Errorf("field lost: %v", entry.Fields)
	}
}

func TestWriterLogger_WithCarriesPersistentFields(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	child := logging.NewWriterLogger("Redline", &buf).
		With(logging.Field{Key: "component", Value: "controller"},
			logging.Field{Key: "report_id", Value: 7})

	child.Warn("switch failed", logging.Field{Key: "version", Value: 2})

	entry := decodeLine(t, &buf)
	if entry.Level != "warn" {
		t.Errorf("unexpected level %q", entry.Level)
	}
	if entry.Component != "controller" {
		t.Errorf("component field must rename the child logger, got %q", entry.Component)
	}
	if entry.Fields["report_id"] != float64(7) || entry.Fields["version"] != float64(2) {
		t.Errorf("persistent or call fields lost: %v", entry.Fields)
	}
}
