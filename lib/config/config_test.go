// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "parley.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("writing config file: %v", err)
	}
	return path
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
homeserver:
  url: https://matrix.example.org
  server_name: example.org
account:
  user_id: "@alice:example.org"
  access_token_file: /run/secrets/parley-token
send:
  disable_markdown: true
upload:
  max_bytes: 10485760
`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	if cfg.Homeserver.URL != "https://matrix.example.org" {
		t.Errorf("homeserver.url = %q", cfg.Homeserver.URL)
	}
	if cfg.Homeserver.ServerName != "example.org" {
		t.Errorf("homeserver.server_name = %q", cfg.Homeserver.ServerName)
	}
	if cfg.Account.UserID != "@alice:example.org" {
		t.Errorf("account.user_id = %q", cfg.Account.UserID)
	}
	if !cfg.Send.DisableMarkdown {
		t.Error("send.disable_markdown should be true")
	}
	if cfg.Upload.MaxBytes != 10485760 {
		t.Errorf("upload.max_bytes = %d", cfg.Upload.MaxBytes)
	}
}

func TestLoadFile_HomeExpansion(t *testing.T) {
	path := writeConfig(t, `
homeserver:
  url: http://localhost:6167
account:
  access_token_file: ${HOME}/.config/parley/token
`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if strings.Contains(cfg.Account.AccessTokenFile, "${HOME}") {
		t.Errorf("access_token_file not expanded: %q", cfg.Account.AccessTokenFile)
	}
}

func TestLoadFile_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "missing homeserver url",
			content: "account:\n  user_id: \"@a:b\"\n",
			wantErr: "homeserver.url is required",
		},
		{
			name:    "bad url scheme",
			content: "homeserver:\n  url: matrix.example.org\n",
			wantErr: "must start with http",
		},
		{
			name:    "bad user id",
			content: "homeserver:\n  url: http://localhost\naccount:\n  user_id: alice\n",
			wantErr: "account.user_id",
		},
		{
			name:    "negative max bytes",
			content: "homeserver:\n  url: http://localhost\nupload:\n  max_bytes: -1\n",
			wantErr: "upload.max_bytes",
		},
		{
			name:    "malformed yaml",
			content: "homeserver: [",
			wantErr: "parsing config file",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			path := writeConfig(t, test.content)
			_, err := LoadFile(path)
			if err == nil {
				t.Fatalf("expected error containing %q, got nil", test.wantErr)
			}
			if !strings.Contains(err.Error(), test.wantErr) {
				t.Errorf("error %q does not contain %q", err, test.wantErr)
			}
		})
	}
}

func TestLoad_RequiresEnv(t *testing.T) {
	t.Setenv("PARLEY_CONFIG", "")
	if _, err := Load(); err == nil {
		t.Fatal("Load without PARLEY_CONFIG should fail")
	}

	path := writeConfig(t, "homeserver:\n  url: http://localhost:6167\n")
	t.Setenv("PARLEY_CONFIG", path)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Homeserver.URL != "http://localhost:6167" {
		t.Errorf("homeserver.url = %q", cfg.Homeserver.URL)
	}
}
