// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.HasPrefix(out.String(), "irc-slack-relay unknown") {
		t.Errorf("version output = %q", out.String())
	}
}

func TestRootCommand_RejectsExtraArgs(t *testing.T) {
	cmd := newRootCommand()
	cmd.SetArgs([]string{"a.json", "b.json"})
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected an error for two config paths")
	}
}

func TestRootCommand_InvalidConfigFails(t *testing.T) {
	t.Setenv("RELAY_SLACK_TOKEN", "")
	dir := t.TempDir()
	incomplete := filepath.Join(dir, "config.json")
	if err := os.WriteFile(incomplete, []byte("{}"), 0o600); err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name    string
		path    string
		wantErr string
	}{
		{"incomplete file", incomplete, "missing required config field"},
		{"missing file", filepath.Join(dir, "absent.yaml"), "read config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := newRootCommand()
			cmd.SetArgs([]string{tt.path})
			err := cmd.Execute()
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Execute = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name  string
		level string
		debug bool
		want  zerolog.Level
	}{
		{"default", "", false, zerolog.InfoLevel},
		{"configured", "warn", false, zerolog.WarnLevel},
		{"debug flag wins", "warn", true, zerolog.DebugLevel},
		{"unknown level", "loud", false, zerolog.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			log := newLogger(&buf, tt.level, tt.debug, true)
			if log.GetLevel() != tt.want {
				t.Errorf("level = %v, want %v", log.GetLevel(), tt.want)
			}
		})
	}

	var buf bytes.Buffer
	log := newLogger(&buf, "", false, true)
	log.Info().Str("k", "v").Msg("hello")
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("JSON output expected, got %q: %v", buf.String(), err)
	}
	if entry["message"] != "hello" || entry["k"] != "v" {
		t.Errorf("unexpected entry %v", entry)
	}
}
