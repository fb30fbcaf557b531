package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"silent", LevelSilent, false},
		{"error", LevelError, false},
		{"info", LevelInfo, false},
		{"INFO", LevelInfo, false},
		{"", LevelInfo, false},
		{"verbose", LevelVerbose, false},
		{"debug", LevelDebug, false},
		{"chatty", LevelInfo, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestFileMirrorAndPrefix(t *testing.T) {
	path := filepath.Join(t.TempDir(), "master.log")

	log, err := NewLogger(LevelDebug, path)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	child := log.WithPrefix("plc-east")
	child.Info("connected to %s", "10.0.0.5:502")
	child.Debug("tick %d", 7)
	if err := log.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	out := string(data)
	if !strings.Contains(out, "[plc-east] INFO: connected to 10.0.0.5:502") {
		t.Errorf("info line missing or unprefixed:\n%s", out)
	}
	if !strings.Contains(out, "DEBUG: tick 7") {
		t.Errorf("debug line missing:\n%s", out)
	}
}

func TestLevelFiltersFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "master.log")

	log, err := NewLogger(LevelInfo, path)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	log.Debug("should not appear")
	log.Info("should appear")
	log.Close()

	data, _ := os.ReadFile(path)
	out := string(data)
	if strings.Contains(out, "should not appear") {
		t.Error("debug line logged at info level")
	}
	if !strings.Contains(out, "should appear") {
		t.Error("info line suppressed at info level")
	}
}
