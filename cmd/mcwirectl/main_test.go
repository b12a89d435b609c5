package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/danmuck/mcwire/internal/testutil/testlog"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := rootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestConfigInitThenValidate(t *testing.T) {
	testlog.Start(t)
	path := filepath.Join(t.TempDir(), "config.toml")

	out, err := execute(t, "config", "init", path)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	if !strings.Contains(out, path) {
		t.Fatalf("unexpected output: %q", out)
	}
	if _, err := execute(t, "config", "init", path); err == nil {
		t.Fatalf("expected init to refuse overwrite")
	}
	if _, err := execute(t, "config", "init", "--force", path); err != nil {
		t.Fatalf("config init --force: %v", err)
	}

	out, err = execute(t, "config", "validate", path)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	if !strings.Contains(out, "0.0.0.0:25565") {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestConfigValidateRejectsBadFile(t *testing.T) {
	testlog.Start(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(`read_timeout = "later"`), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := execute(t, "config", "validate", path); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestResolveConfigFlagOverrides(t *testing.T) {
	testlog.Start(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("port = 25570\nadmin_listen_addr = \"127.0.0.1:9225\"\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	cmd := serveCmd()
	if err := cmd.ParseFlags([]string{"--config", path, "--port", "25600", "--admin", ""}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	opts := serveOptions{configPath: path, port: 25600}
	cfg, err := resolveConfig(cmd, opts)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if cfg.Server.ListenAddr != "0.0.0.0:25600" {
		t.Fatalf("listen addr=%q", cfg.Server.ListenAddr)
	}
	if cfg.Admin.ListenAddr != "" {
		t.Fatalf("admin should be disabled by flag, got %q", cfg.Admin.ListenAddr)
	}
}

func TestResolveConfigMissingDefaultFileUsesDefaults(t *testing.T) {
	testlog.Start(t)
	cmd := serveCmd()
	opts := serveOptions{configPath: filepath.Join(t.TempDir(), "config.toml")}
	cfg, err := resolveConfig(cmd, opts)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if cfg.Server.ListenAddr != "0.0.0.0:25565" {
		t.Fatalf("listen addr=%q", cfg.Server.ListenAddr)
	}
}

func TestResolveConfigMissingExplicitFileFails(t *testing.T) {
	testlog.Start(t)
	cmd := serveCmd()
	path := filepath.Join(t.TempDir(), "nope.toml")
	if err := cmd.ParseFlags([]string{"--config", path}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	if _, err := resolveConfig(cmd, serveOptions{configPath: path}); err == nil {
		t.Fatalf("expected error for missing explicit config")
	}
}
