package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/mcwire/internal/admin"
	"github.com/danmuck/mcwire/internal/protocol/frame"
	"github.com/danmuck/mcwire/internal/protocol/session"
	"github.com/danmuck/mcwire/internal/server"
	"github.com/google/uuid"
)

var ErrInvalidConfig = errors.New("config: invalid")

// Config is the resolved runtime configuration for mcwirectl.
type Config struct {
	Server server.Config
	// Admin is disabled when ListenAddr is empty.
	Admin  admin.Config
	Status session.StatusDocument
}

// fileConfig is the config.toml key mapping.
type fileConfig struct {
	Port                  int          `toml:"port"`
	Addr                  string       `toml:"addr"`
	MaxConnections        int          `toml:"max_connections"`
	CompressionThreshold  int32        `toml:"compression_threshold"`
	ReadTimeout           string       `toml:"read_timeout"`
	WriteTimeout          string       `toml:"write_timeout"`
	KeepOpenAfterPong     bool         `toml:"keep_open_after_pong"`
	LoginDisconnectReason string       `toml:"login_disconnect_reason"`
	AdminListenAddr       string       `toml:"admin_listen_addr"`
	AdminCORSOrigins      []string     `toml:"admin_cors_origins"`
	AdminMetricsToken     string       `toml:"admin_metrics_token"`
	Status                statusConfig `toml:"status"`
}

type statusConfig struct {
	VersionName   string         `toml:"version_name"`
	Protocol      int32          `toml:"protocol"`
	MaxPlayers    int            `toml:"max_players"`
	OnlinePlayers int            `toml:"online_players"`
	MOTD          string         `toml:"motd"`
	PreviewsChat  bool           `toml:"previews_chat"`
	Sample        []samplePlayer `toml:"sample"`
}

type samplePlayer struct {
	Name string `toml:"name"`
	ID   string `toml:"id"`
}

func Default() Config {
	return Config{
		Server: server.DefaultConfig(),
		Status: session.DefaultStatus(),
	}
}

// Load decodes path and overlays every defined key onto Default.
func Load(path string) (Config, error) {
	cfg := Default()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load config (%s): %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("load config (%s): %w: unknown key %q", path, ErrInvalidConfig, undecoded[0].String())
	}

	if meta.IsDefined("port") {
		cfg.Server.ListenAddr = server.ListenAddrForPort(raw.Port)
	}
	if meta.IsDefined("addr") {
		cfg.Server.ListenAddr = strings.TrimSpace(raw.Addr)
	}
	if meta.IsDefined("max_connections") {
		cfg.Server.MaxConns = raw.MaxConnections
	}
	if meta.IsDefined("compression_threshold") {
		cfg.Server.Session.Compression = frame.Compression{Threshold: raw.CompressionThreshold}
	}
	if meta.IsDefined("read_timeout") {
		d, err := parseDuration("read_timeout", raw.ReadTimeout)
		if err != nil {
			return Config{}, err
		}
		cfg.Server.Session.ReadTimeout = d
	}
	if meta.IsDefined("write_timeout") {
		d, err := parseDuration("write_timeout", raw.WriteTimeout)
		if err != nil {
			return Config{}, err
		}
		cfg.Server.Session.WriteTimeout = d
	}
	if meta.IsDefined("keep_open_after_pong") {
		cfg.Server.Session.KeepOpenAfterPong = raw.KeepOpenAfterPong
	}
	if meta.IsDefined("login_disconnect_reason") {
		cfg.Server.Session.LoginDisconnectReason = strings.TrimSpace(raw.LoginDisconnectReason)
	}
	if meta.IsDefined("admin_listen_addr") {
		cfg.Admin.ListenAddr = strings.TrimSpace(raw.AdminListenAddr)
	}
	if meta.IsDefined("admin_cors_origins") {
		cfg.Admin.CORSOrigins = raw.AdminCORSOrigins
	}
	if meta.IsDefined("admin_metrics_token") {
		cfg.Admin.MetricsToken = strings.TrimSpace(raw.AdminMetricsToken)
	}
	if err := overlayStatus(&cfg.Status, meta, raw.Status); err != nil {
		return Config{}, err
	}

	cfg.Server.Session.Status = session.StaticStatus(cfg.Status)
	if err := Validate(cfg); err != nil {
		return Config{}, fmt.Errorf("load config (%s): %w", path, err)
	}
	return cfg, nil
}

func overlayStatus(doc *session.StatusDocument, meta toml.MetaData, raw statusConfig) error {
	if meta.IsDefined("status", "version_name") {
		doc.Version.Name = raw.VersionName
	}
	if meta.IsDefined("status", "protocol") {
		doc.Version.Protocol = raw.Protocol
	}
	if meta.IsDefined("status", "max_players") {
		doc.Players.Max = raw.MaxPlayers
	}
	if meta.IsDefined("status", "online_players") {
		doc.Players.Online = raw.OnlinePlayers
	}
	if meta.IsDefined("status", "motd") {
		doc.Description.Text = raw.MOTD
	}
	if meta.IsDefined("status", "previews_chat") {
		doc.PreviewsChat = raw.PreviewsChat
	}
	if meta.IsDefined("status", "sample") {
		sample := make([]session.StatusPlayer, 0, len(raw.Sample))
		for i, p := range raw.Sample {
			id, err := uuid.Parse(strings.TrimSpace(p.ID))
			if err != nil {
				return fmt.Errorf("%w: status.sample[%d].id: %w", ErrInvalidConfig, i, err)
			}
			sample = append(sample, session.StatusPlayer{Name: strings.TrimSpace(p.Name), ID: id})
		}
		doc.Players.Sample = sample
	}
	return nil
}

// Validate rejects configurations the server cannot run with.
func Validate(cfg Config) error {
	if strings.TrimSpace(cfg.Server.ListenAddr) == "" {
		return fmt.Errorf("%w: listen address is required", ErrInvalidConfig)
	}
	if cfg.Server.MaxConns < 0 {
		return fmt.Errorf("%w: max_connections must be >= 0", ErrInvalidConfig)
	}
	if cfg.Server.Session.ReadTimeout < 0 || cfg.Server.Session.WriteTimeout < 0 {
		return fmt.Errorf("%w: timeouts must be >= 0", ErrInvalidConfig)
	}
	if cfg.Status.Players.Max < 0 || cfg.Status.Players.Online < 0 {
		return fmt.Errorf("%w: player counts must be >= 0", ErrInvalidConfig)
	}
	for i, p := range cfg.Status.Players.Sample {
		if p.Name == "" {
			return fmt.Errorf("%w: status.sample[%d].name is required", ErrInvalidConfig, i)
		}
	}
	return nil
}

func parseDuration(key, raw string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", ErrInvalidConfig, key, err)
	}
	return d, nil
}
