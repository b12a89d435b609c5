package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/danmuck/mcwire/internal/testutil/testlog"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadOverlaysDefinedKeys(t *testing.T) {
	testlog.Start(t)
	path := writeConfig(t, `
port = 25570
max_connections = 8
compression_threshold = 256
read_timeout = "5s"
admin_listen_addr = "127.0.0.1:9300"
admin_metrics_token = "scrape"

[status]
motd = "hello"
max_players = 20

[[status.sample]]
name = "thinkofdeath"
id = "4566e69f-c907-48ee-8d71-d7ba5aa00d20"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.ListenAddr != "0.0.0.0:25570" {
		t.Fatalf("listen addr=%q", cfg.Server.ListenAddr)
	}
	if cfg.Server.MaxConns != 8 {
		t.Fatalf("max conns=%d", cfg.Server.MaxConns)
	}
	if !cfg.Server.Session.Compression.Enabled() || cfg.Server.Session.Compression.Threshold != 256 {
		t.Fatalf("compression=%+v", cfg.Server.Session.Compression)
	}
	if cfg.Server.Session.ReadTimeout != 5*time.Second {
		t.Fatalf("read timeout=%s", cfg.Server.Session.ReadTimeout)
	}
	if cfg.Server.Session.WriteTimeout != 10*time.Second {
		t.Fatalf("write timeout should keep default, got %s", cfg.Server.Session.WriteTimeout)
	}
	if cfg.Admin.ListenAddr != "127.0.0.1:9300" {
		t.Fatalf("admin addr=%q", cfg.Admin.ListenAddr)
	}
	if cfg.Admin.MetricsToken != "scrape" {
		t.Fatalf("metrics token=%q", cfg.Admin.MetricsToken)
	}

	doc := cfg.Server.Session.Status()
	if doc.Description.Text != "hello" || doc.Players.Max != 20 {
		t.Fatalf("status=%+v", doc)
	}
	if doc.Version.Protocol != 759 {
		t.Fatalf("protocol should keep default, got %d", doc.Version.Protocol)
	}
	if len(doc.Players.Sample) != 1 || doc.Players.Sample[0].ID.String() != "4566e69f-c907-48ee-8d71-d7ba5aa00d20" {
		t.Fatalf("sample=%+v", doc.Players.Sample)
	}
}

func TestLoadAddrOverridesPort(t *testing.T) {
	testlog.Start(t)
	path := writeConfig(t, "port = 1\naddr = \"127.0.0.1:4000\"\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.ListenAddr != "127.0.0.1:4000" {
		t.Fatalf("listen addr=%q", cfg.Server.ListenAddr)
	}
}

func TestLoadEmptyFileUsesDefaults(t *testing.T) {
	testlog.Start(t)
	cfg, err := Load(writeConfig(t, ""))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.ListenAddr != "0.0.0.0:25565" {
		t.Fatalf("listen addr=%q", cfg.Server.ListenAddr)
	}
	if cfg.Server.Session.Compression.Enabled() {
		t.Fatalf("compression should default to disabled")
	}
	if cfg.Admin.ListenAddr != "" {
		t.Fatalf("admin should default to disabled, got %q", cfg.Admin.ListenAddr)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	testlog.Start(t)
	cases := map[string]string{
		"bad duration":  `read_timeout = "soon"`,
		"negative max":  `max_connections = -1`,
		"unknown key":   `listen_port = 1`,
		"bad uuid":      "[[status.sample]]\nname = \"a\"\nid = \"nope\"\n",
		"nameless user": "[[status.sample]]\nid = \"4566e69f-c907-48ee-8d71-d7ba5aa00d20\"\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			if !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	testlog.Start(t)
	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestTemplateLoads(t *testing.T) {
	testlog.Start(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := WriteTemplate(path, false); err != nil {
		t.Fatalf("write template: %v", err)
	}
	if err := WriteTemplate(path, false); err == nil {
		t.Fatalf("expected refusal to overwrite")
	}
	if err := WriteTemplate(path, true); err != nil {
		t.Fatalf("overwrite template: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load template: %v", err)
	}
	if cfg.Admin.ListenAddr != "127.0.0.1:9225" {
		t.Fatalf("admin addr=%q", cfg.Admin.ListenAddr)
	}
	if cfg.Server.Session.LoginDisconnectReason == "" {
		t.Fatalf("expected login disconnect reason from template")
	}
}
