package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/telescopiosnaescola/argus/internal/appinfo"
	"github.com/telescopiosnaescola/argus/internal/config"
	"github.com/telescopiosnaescola/argus/internal/session"
	"github.com/telescopiosnaescola/argus/internal/timesync"
	"github.com/telescopiosnaescola/argus/pkg/api"
	"github.com/telescopiosnaescola/argus/pkg/realtime"
)

var (
	flagConfig  string
	flagBaseURL string
	flagVerbose bool
)

// app bundles the wired client components. Built once per invocation in
// the persistent pre-run, shared by every subcommand.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	sessions *session.Store
	client   *api.Client
	info     *appinfo.Cache
	clock    *timesync.Service

	channel *realtime.Client
}

var portal *app

var rootCmd = &cobra.Command{
	Use:   "argus",
	Short: "Client for the Argus remote telescope scheduling portal",
	Long: `argus schedules observations on a remotely operated telescope.

It talks to the portal's REST API for accounts, plans and results, and
to its realtime channel for coordinate visibility checks and live
telescope status.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(flagConfig)
		if err != nil {
			return err
		}
		if flagBaseURL != "" {
			cfg.BaseURL = flagBaseURL
		}
		if flagVerbose {
			cfg.LogLevel = "debug"
		}

		logger, err := newLogger(cfg.LogLevel)
		if err != nil {
			return fmt.Errorf("failed to create logger: %w", err)
		}

		sessions, err := session.NewStore(cfg.StateDir, logger)
		if err != nil {
			return err
		}

		client := api.NewClient(cfg.BaseURL, sessions, logger)
		portal = &app{
			cfg:      cfg,
			logger:   logger,
			sessions: sessions,
			client:   client,
			info:     appinfo.NewCache(client, logger),
			clock:    timesync.NewService(client, cfg.SyncInterval, logger),
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if portal != nil {
			if portal.channel != nil {
				portal.channel.Disconnect()
			}
			_ = portal.logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "path to config file")
	rootCmd.PersistentFlags().StringVar(&flagBaseURL, "base-url", "", "portal base URL (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
}

func newLogger(level string) (*zap.Logger, error) {
	if level == "debug" {
		return zap.NewDevelopment()
	}
	// The CLI prints results on stdout; keep structured logs quiet
	// unless something goes wrong.
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stderr"}
	switch level {
	case "warn":
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		cfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	return cfg.Build()
}

// realtimeChannel connects the websocket channel on first use.
func (a *app) realtimeChannel(cmd *cobra.Command) (*realtime.Client, error) {
	if a.channel == nil {
		channel, err := realtime.NewClient(a.cfg.BaseURL, a.sessions, a.logger)
		if err != nil {
			return nil, err
		}
		a.channel = channel
	}
	if err := a.channel.Connect(cmd.Context()); err != nil {
		return nil, fmt.Errorf("failed to open realtime channel: %w", err)
	}
	return a.channel, nil
}

// requireLogin fails fast with a friendly message instead of a server
// round trip when no session is stored.
func (a *app) requireLogin() error {
	if !a.sessions.Authenticated() {
		return fmt.Errorf("not logged in, run \"argus login\" first")
	}
	return nil
}
