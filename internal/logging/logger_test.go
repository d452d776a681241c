package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    zerolog.Level
		wantErr bool
	}{
		{"", zerolog.InfoLevel, false},
		{"DEBUG", zerolog.DebugLevel, false},
		{" warning ", zerolog.WarnLevel, false},
		{"trace", zerolog.TraceLevel, false},
		{"loud", zerolog.NoLevel, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Fatalf("ParseLevel(%q) err = %v", tt.in, err)
		}
		if err == nil && got != tt.want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestInitWritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "leasedesk.log")
	if err := Init(Config{Level: "info", Format: "console", File: path}); err != nil {
		t.Fatalf("Init: %v", err)
	}
	t.Cleanup(func() {
		_ = Close()
		_ = Init(Config{Level: "info", Format: "json", Output: os.Stderr})
	})

	logger := WithActor(Component("workflow"), "user-1")
	logger.Info().Str("request_id", "r-1").Msg("request submitted")
	logger.Debug().Msg("hidden")
	if err := Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 1 {
		t.Fatalf("log lines = %q", lines)
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("file log is not JSON: %v", err)
	}
	if entry["component"] != "workflow" || entry["actor_id"] != "user-1" || entry["message"] != "request submitted" {
		t.Fatalf("entry = %v", entry)
	}
}

func TestInitRejectsUnknownLevel(t *testing.T) {
	if err := Init(Config{Level: "chatty"}); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

func TestFromContextFallsBack(t *testing.T) {
	var buf bytes.Buffer
	fallback := zerolog.New(&buf)
	got := FromContext(context.Background(), fallback)
	got.Error().Msg("fallback")
	if !strings.Contains(buf.String(), "fallback") {
		t.Fatal("expected fallback logger")
	}
	buf.Reset()

	var scoped bytes.Buffer
	ctx := WithContext(context.Background(), zerolog.New(&scoped).With().Str("request_id", "req_1").Logger())
	logger := FromContext(ctx, fallback)
	logger.Error().Msg("boom")
	if buf.Len() != 0 || !strings.Contains(scoped.String(), `"request_id":"req_1"`) {
		t.Fatalf("fallback=%q scoped=%q", buf.String(), scoped.String())
	}
}
