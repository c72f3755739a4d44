package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewWritesRotatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "movieclub.log")
	logger, err := New(Options{Level: "debug", File: path})
	if err != nil {
		t.Fatalf("New() unexpected error: %v", err)
	}
	logger.Info("review submitted")
	_ = logger.Sync()

	payload, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(payload), `"msg":"review submitted"`) {
		t.Fatalf("log file missing JSON entry: %s", payload)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		raw     string
		want    string
		wantErr bool
	}{
		{"", "info", false},
		{"DEBUG", "debug", false},
		{" warn ", "warn", false},
		{"verbose", "", true},
	}
	for _, tt := range tests {
		level, err := parseLevel(tt.raw)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("parseLevel(%q) expected error", tt.raw)
			}
			continue
		}
		if err != nil {
			t.Fatalf("parseLevel(%q) unexpected error: %v", tt.raw, err)
		}
		if level.String() != tt.want {
			t.Fatalf("parseLevel(%q) = %s, want %s", tt.raw, level, tt.want)
		}
	}
}
