package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/avonarret22/whatsapp-bot-template/internal/config"
	"github.com/avonarret22/whatsapp-bot-template/internal/domain"
	"github.com/avonarret22/whatsapp-bot-template/internal/events"
	"github.com/avonarret22/whatsapp-bot-template/internal/feature"
	"github.com/avonarret22/whatsapp-bot-template/internal/history"
	"github.com/avonarret22/whatsapp-bot-template/internal/metrics"
	"github.com/avonarret22/whatsapp-bot-template/internal/pipeline"
	"github.com/avonarret22/whatsapp-bot-template/internal/server"
	"github.com/avonarret22/whatsapp-bot-template/internal/tenant"

	"github.com/spf13/cobra"
)

var (
	version    = "1.0.0"
	logger     *slog.Logger
	configPath string // overridable via --config flag
)

func main() {
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	root := &cobra.Command{
		Use:   "botd",
		Short: "Multi-tenant WhatsApp bot engine",
		Long:  "botd serves WhatsApp conversations for many tenants from one process, each tenant driven by its own YAML document.",
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.json (default: ~/.botd/config.json)")

	root.AddCommand(initCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(statusCmd())
	root.AddCommand(tenantsCmd())
	root.AddCommand(configCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// resolveConfigPath returns the config path from --config flag or default.
func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultConfigPath()
}

func loadConfig() (*config.Config, error) {
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Warn("config not found, using defaults", "path", cfgPath, "err", err)
		cfg = config.Defaults()
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize config and tenant directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgDir := config.DefaultConfigDir()
			cfgPath := config.DefaultConfigPath()
			if err := os.MkdirAll(cfgDir, 0o755); err != nil {
				return err
			}
			cfg := config.Defaults()
			if err := config.Save(cfgPath, cfg); err != nil {
				return err
			}
			if err := os.MkdirAll(config.ExpandPath(cfg.Tenants.Dir), 0o755); err != nil {
				return err
			}
			logger.Info("initialized", "config", cfgPath, "tenants_dir", cfg.Tenants.Dir)
			return nil
		},
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the webhook server",
		Long:  "Loads every tenant document, wires the message pipeline and serves the carrier webhook until interrupted.",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyLogLevel(cfg.App.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tenants := tenant.NewRegistry(config.ExpandPath(cfg.Tenants.Dir), logger)
	if err := tenants.Load(); err != nil {
		return fmt.Errorf("load tenants: %w", err)
	}
	metrics.TenantsLoaded.Set(int64(tenants.Count()))
	logger.Info("tenants loaded", "count", tenants.Count())

	available := feature.NewAvailable(logger)
	available.Register(feature.CapabilityAIReply, feature.NewAIReply)

	var store domain.HistoryStore
	if cfg.History.Enabled {
		sqlStore, err := history.NewSQLiteStore(config.ExpandPath(cfg.History.DBPath), logger)
		if err != nil {
			return fmt.Errorf("history store: %w", err)
		}
		store = sqlStore
	} else {
		store = history.NewNoopStore()
	}
	defer store.Close()

	var publisher events.Publisher
	if cfg.Events.Enabled && cfg.Events.URL != "" {
		amqpPub, err := events.NewAMQPPublisher(cfg.Events.URL, cfg.Events.Exchange, logger)
		if err != nil {
			logger.Warn("event publisher unavailable, events disabled", "err", err)
			publisher = events.NewNoopPublisher()
		} else {
			publisher = amqpPub
		}
	} else {
		publisher = events.NewNoopPublisher()
	}
	defer publisher.Close()

	pipe := pipeline.New(pipeline.Config{
		Tenants:   tenants,
		Available: available,
		Resolver:  pipeline.Fixed{TenantID: cfg.App.DefaultTenantID},
		History:   store,
		Events:    publisher,
		Logger:    logger,
		MaxTurns:  cfg.History.MaxTurns,
	})

	srv := server.New(server.Config{
		Config:    cfg,
		Pipeline:  pipe,
		Tenants:   tenants,
		Available: available,
		Logger:    logger,
		Version:   version,
	})

	return srv.Start(ctx)
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show engine status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				logger.Info("config", "path", cfgPath, "loaded", false)
				cfg = config.Defaults()
			} else {
				logger.Info("config", "path", cfgPath, "loaded", true)
			}
			tenants := tenant.NewRegistry(config.ExpandPath(cfg.Tenants.Dir), logger)
			if err := tenants.Load(); err != nil {
				return err
			}
			logger.Info("tenants", "count", tenants.Count(), "ids", tenants.List())
			logger.Info("history", "enabled", cfg.History.Enabled, "db", cfg.History.DBPath)
			logger.Info("events", "enabled", cfg.Events.Enabled, "exchange", cfg.Events.Exchange)
			return nil
		},
	}
}

func tenantsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenants",
		Short: "Inspect tenant documents",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List loaded tenants",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			tenants := tenant.NewRegistry(config.ExpandPath(cfg.Tenants.Dir), logger)
			if err := tenants.Load(); err != nil {
				return err
			}
			for _, id := range tenants.List() {
				tcfg, err := tenants.Get(id)
				if err != nil {
					continue
				}
				fmt.Printf("%s\t%s\t%s\n", tcfg.TenantID, tcfg.Plan, tcfg.DisplayName())
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Load every tenant document and report problems",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			tenants := tenant.NewRegistry(config.ExpandPath(cfg.Tenants.Dir), logger)
			if err := tenants.Load(); err != nil {
				return err
			}
			logger.Info("validation complete", "tenants", tenants.Count())
			return nil
		},
	})

	return cmd
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "View configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get [path]",
		Short: "Get a config value (e.g. server.port)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			val, err := config.GetByPath(cfg, args[0])
			if err != nil {
				return err
			}
			data, _ := json.MarshalIndent(val, "", "  ")
			fmt.Println(string(data))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List all config values with secrets masked",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			data, _ := json.MarshalIndent(config.Sanitize(cfg), "", "  ")
			fmt.Println(string(data))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show config file path",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(resolveConfigPath())
		},
	})

	return cmd
}

func applyLogLevel(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)
}
