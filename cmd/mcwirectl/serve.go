package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/danmuck/mcwire/internal/admin"
	"github.com/danmuck/mcwire/internal/config"
	"github.com/danmuck/mcwire/internal/observability"
	"github.com/danmuck/mcwire/internal/server"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

type serveOptions struct {
	configPath string
	port       int
	addr       string
	adminAddr  string
}

func serveCmd() *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the protocol listener",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd, opts)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg)
		},
	}

	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "config.toml", "path to config.toml")
	cmd.Flags().IntVarP(&opts.port, "port", "p", 0, "listen on 0.0.0.0:<port>")
	cmd.Flags().StringVar(&opts.addr, "addr", "", "listen address, overrides --port")
	cmd.Flags().StringVar(&opts.adminAddr, "admin", "", "admin HTTP listen address")

	return cmd
}

// resolveConfig loads the config file and applies flag overrides. A missing
// default config file falls back to built-in defaults.
func resolveConfig(cmd *cobra.Command, opts serveOptions) (config.Config, error) {
	cfg := config.Default()
	if _, err := os.Stat(opts.configPath); err == nil {
		cfg, err = config.Load(opts.configPath)
		if err != nil {
			return config.Config{}, err
		}
	} else if cmd.Flags().Changed("config") {
		return config.Config{}, fmt.Errorf("config %s: %w", opts.configPath, err)
	}

	if cmd.Flags().Changed("port") {
		cfg.Server.ListenAddr = server.ListenAddrForPort(opts.port)
	}
	if cmd.Flags().Changed("addr") {
		cfg.Server.ListenAddr = opts.addr
	}
	if cmd.Flags().Changed("admin") {
		cfg.Admin.ListenAddr = opts.adminAddr
	}
	if err := config.Validate(cfg); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func runServe(ctx context.Context, cfg config.Config) error {
	observability.InitLogger("mcwirectl")
	observability.RegisterMetrics()

	srv := server.New(cfg.Server)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().
			Str("addr", cfg.Server.ListenAddr).
			Int("max_conns", cfg.Server.MaxConns).
			Int32("compression_threshold", cfg.Server.Session.Compression.Threshold).
			Msg("protocol listener starting")
		return srv.ListenAndServe(gctx)
	})

	if cfg.Admin.ListenAddr != "" {
		adm := admin.New(cfg.Admin, srv)
		g.Go(func() error {
			return adm.Serve(gctx)
		})
	}

	err := g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("mcwirectl stopped")
		return err
	}
	log.Info().Msg("mcwirectl stopped")
	return nil
}
