package shared

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

func TestParseLevel(t *testing.T) {
	tc := []struct {
		in   string
		want log.Level
	}{
		{in: "debug", want: log.DebugLevel},
		{in: " WARN ", want: log.WarnLevel},
		{in: "warning", want: log.WarnLevel},
		{in: "error", want: log.ErrorLevel},
		{in: "", want: log.InfoLevel},
		{in: "verbose", want: log.InfoLevel},
	}

	for _, tt := range tc {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParseLevel(tt.in); got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestLoggers(t *testing.T) {
	t.Run("NewLogger writes key values", func(t *testing.T) {
		var buf bytes.Buffer
		logger := WithLogger(NewLogger(&buf), "slot", 5)
		logger.Info("polling")

		out := buf.String()
		if !strings.Contains(out, "polling") || !strings.Contains(out, "slot=5") {
			t.Errorf("unexpected log output %q", out)
		}
	})

	t.Run("SetLogLevel filters", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLogger(&buf)
		SetLogLevel(logger, log.ErrorLevel)
		logger.Info("hidden")
		if buf.Len() != 0 {
			t.Errorf("expected info to be filtered, got %q", buf.String())
		}
	})

	t.Run("NewFileLogger", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "logs", "multiverse.log")
		logger, closer, err := NewFileLogger(LoggingConfig{File: path, MaxSizeMB: 1})
		if err != nil {
			t.Fatalf("failed to create file logger: %v", err)
		}
		logger.Info("hello", "k", "v")
		if err := closer.Close(); err != nil {
			t.Fatalf("failed to close log file: %v", err)
		}

		content := mustRead(t, path)
		if !strings.Contains(content, "hello") {
			t.Errorf("expected log file to contain message, got %q", content)
		}
	})

	t.Run("NewFileLogger requires path", func(t *testing.T) {
		if _, _, err := NewFileLogger(LoggingConfig{}); err == nil {
			t.Error("expected error for empty path")
		}
	})
}

func TestIDs(t *testing.T) {
	id := GenerateID()
	if !IsUUID(id) {
		t.Errorf("expected %q to be a UUID", id)
	}
	if GenerateID() == id {
		t.Error("expected unique IDs")
	}
	if IsUUID("not-a-uuid") {
		t.Error("expected invalid UUID to be rejected")
	}
}

func TestMarshalJSON(t *testing.T) {
	v := map[string]int{"credits": 10}

	compact, err := MarshalJSON(v, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(compact) != `{"credits":10}` {
		t.Errorf("unexpected compact output %s", compact)
	}

	pretty, err := MarshalJSON(v, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(string(pretty), "\n  \"credits\": 10") {
		t.Errorf("unexpected pretty output %s", pretty)
	}
}

func TestOpenCommand(t *testing.T) {
	orig := getRuntime
	defer func() { getRuntime = orig }()

	tc := []struct {
		goos string
		bin  string
	}{
		{goos: "darwin", bin: "open"},
		{goos: "linux", bin: "xdg-open"},
		{goos: "windows", bin: "cmd"},
	}
	for _, tt := range tc {
		t.Run(tt.goos, func(t *testing.T) {
			getRuntime = func() string { return tt.goos }
			cmd, err := openCommand("/tmp/slot-1.jpg")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if filepath.Base(cmd.Args[0]) != tt.bin {
				t.Errorf("expected %s, got %s", tt.bin, cmd.Args[0])
			}
			if cmd.Args[len(cmd.Args)-1] != "/tmp/slot-1.jpg" {
				t.Errorf("expected target as last arg, got %v", cmd.Args)
			}
		})
	}

	t.Run("unsupported", func(t *testing.T) {
		getRuntime = func() string { return "plan9" }
		if err := OpenPath("x"); err == nil {
			t.Error("expected unsupported platform error")
		}
	})
}

func mustRead(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read %s: %v", path, err)
	}
	return string(data)
}
