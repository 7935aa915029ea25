package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(WARN, false)
	l.SetOutput(&buf)

	l.Debug("debug msg")
	l.Info("info msg")
	l.Warn("warn msg")
	l.Error("error msg")

	out := buf.String()
	if strings.Contains(out, "debug msg") || strings.Contains(out, "info msg") {
		t.Errorf("messages below WARN should be filtered, got: %s", out)
	}
	if !strings.Contains(out, "warn msg") || !strings.Contains(out, "error msg") {
		t.Errorf("WARN and ERROR should pass, got: %s", out)
	}
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(INFO, true)
	l.SetOutput(&buf)

	l.WithComponent("poller").Info("cycle done", map[string]interface{}{"jobs": 3})

	var entry LogEntry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v (%s)", err, buf.String())
	}
	if entry.Level != "INFO" || entry.Message != "cycle done" {
		t.Errorf("unexpected entry: %+v", entry)
	}
	if entry.Component != "poller" {
		t.Errorf("component = %q, want poller", entry.Component)
	}
	if entry.Fields["jobs"] != float64(3) {
		t.Errorf("fields = %v, want jobs=3", entry.Fields)
	}
}

func TestWithFieldPropagates(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(INFO, true)
	l.SetOutput(&buf)

	l.WithField("host", "head01").Info("connected")

	var entry LogEntry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if entry.Fields["host"] != "head01" {
		t.Errorf("fields = %v, want host=head01", entry.Fields)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug":   DEBUG,
		"INFO":    INFO,
		"warning": WARN,
		"ERROR":   ERROR,
		"fatal":   FATAL,
		"bogus":   INFO,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
