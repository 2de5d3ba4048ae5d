package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Clhikari/astrbot-plugin-office-assistant/internal/analyzer"
	"github.com/Clhikari/astrbot-plugin-office-assistant/internal/assistant"
	"github.com/Clhikari/astrbot-plugin-office-assistant/internal/bus"
	"github.com/Clhikari/astrbot-plugin-office-assistant/internal/channel"
	"github.com/Clhikari/astrbot-plugin-office-assistant/internal/config"
	"github.com/Clhikari/astrbot-plugin-office-assistant/internal/office"
	"github.com/Clhikari/astrbot-plugin-office-assistant/internal/pdfconv"
	"github.com/Clhikari/astrbot-plugin-office-assistant/internal/preview"
	"github.com/Clhikari/astrbot-plugin-office-assistant/internal/provider"
	"github.com/Clhikari/astrbot-plugin-office-assistant/internal/storage"
	"github.com/Clhikari/astrbot-plugin-office-assistant/internal/template"
	"github.com/Clhikari/astrbot-plugin-office-assistant/internal/tool"
	"github.com/Clhikari/astrbot-plugin-office-assistant/internal/workpool"
)

var (
	version    = "0.1.0"
	logger     *slog.Logger
	configPath string
)

func main() {
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	root := &cobra.Command{
		Use:   "office-assistant",
		Short: "Chat bot that generates and converts office documents",
		Long:  "office-assistant detects file-generation requests in chat messages, coalesces attachment bursts, and produces Word, Excel, PowerPoint and PDF files.",
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.json (default: ~/.office-assistant/config.json)")

	root.AddCommand(initCmd())
	root.AddCommand(gatewayCmd())
	root.AddCommand(chatCmd())
	root.AddCommand(configCmd())
	root.AddCommand(doctorCmd())
	root.AddCommand(backupCmd())
	root.AddCommand(restoreCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultConfigPath()
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize config, workspace and template directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			if err := os.MkdirAll(filepath.Dir(cfgPath), 0o755); err != nil {
				return err
			}
			cfg := config.Defaults()
			if err := config.Save(cfgPath, cfg); err != nil {
				return err
			}
			for _, dir := range []string{
				config.ExpandPath(cfg.General.Workspace),
				config.ExpandPath(cfg.General.TemplateDir),
			} {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return err
				}
			}
			logger.Info("initialized",
				"config", cfgPath,
				"workspace", cfg.General.Workspace,
				"templates", cfg.General.TemplateDir)
			return nil
		},
	}
}

func gatewayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gateway",
		Short: "Start the bot gateway (Telegram + assistant)",
		Long:  "Starts the enabled channels and the assistant pipeline. Press Ctrl+C to stop.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGateway(false)
		},
	}
}

func chatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Interactive terminal chat (use /attach <path> to add files)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGateway(true)
		},
	}
}

// runGateway wires the whole pipeline. With cli set, the terminal channel
// replaces Telegram.
func runGateway(cli bool) error {
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		if !cli {
			return fmt.Errorf("load config: %w", err)
		}
		logger.Warn("config not found, using defaults", "path", cfgPath, "err", err)
		cfg = config.Defaults()
		cfg.General.Workspace = config.ExpandPath(cfg.General.Workspace)
		cfg.General.TemplateDir = config.ExpandPath(cfg.General.TemplateDir)
		cfg.Storage.DBPath = config.ExpandPath(cfg.Storage.DBPath)
	}

	if err := setupLogging(cfg); err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.General.Workspace, 0o755); err != nil {
		return fmt.Errorf("create workspace: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	queue := bus.New(cfg.General.QueueSize, logger)
	defer queue.Close()

	store, err := storage.NewSQLiteStore(cfg.Storage.DBPath, logger)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer store.Close()

	pool := workpool.New(cfg.Convert.Workers)

	generator := office.NewGenerator(cfg.General.Workspace, pool, logger)
	plain := office.NewPlainGenerator(cfg.General.Workspace, logger)
	converter := pdfconv.New(pdfconv.Options{
		Workspace:       cfg.General.Workspace,
		LibreOfficePath: cfg.Convert.LibreOfficePath,
		Timeout:         time.Duration(cfg.Convert.TimeoutSeconds) * time.Second,
		EnableChrome:    cfg.Convert.EnableChrome,
	}, pool, logger)

	var previewer *preview.Generator
	if cfg.Features.EnablePreview {
		previewer = preview.New(logger)
	}

	tpls, err := template.LoadFromDirectory(cfg.General.TemplateDir, logger)
	if err != nil {
		logger.Warn("cannot load templates", "dir", cfg.General.TemplateDir, "err", err)
	}
	templates := template.NewRegistry(tpls)

	prov := provider.NewOpenAI(provider.OpenAIConfig{
		APIKey:  cfg.Provider.APIKey,
		APIBase: cfg.Provider.APIBase,
		Model:   cfg.Provider.Model,
		Timeout: time.Duration(cfg.Provider.TimeoutSeconds) * time.Second,
		Logger:  logger,
	})
	if err := prov.Healthy(ctx); err != nil {
		logger.Warn("provider unhealthy at startup", "provider", prov.Name(), "err", err)
	} else {
		logger.Info("provider healthy", "provider", prov.Name(), "model", cfg.Provider.Model)
	}

	registry := tool.NewRegistry(logger)
	a := assistant.New(assistant.Options{
		Config:    cfg,
		Queue:     queue,
		Provider:  prov,
		Analyzer:  analyzer.New(prov, cfg.Features.EnableOfficeFiles, logger),
		Tools:     registry,
		Store:     store,
		Preview:   previewer,
		Converter: converter,
		Logger:    logger,
	})
	registerTools(cfg, registry, generator, plain, converter, templates, a.DeliverFile)

	go a.Run(ctx)

	var channels []interface{ Stop() error }

	if cli {
		cliCh := channel.NewCLI(channel.CLIOptions{Logger: logger})
		err := cliCh.Start(ctx, queue)
		stop()
		return err
	}

	if cfg.Channels.Telegram.Enabled && cfg.Channels.Telegram.Token != "" {
		tg := channel.NewTelegram(channel.TelegramOptions{
			Token:     cfg.Channels.Telegram.Token,
			Workspace: cfg.General.Workspace,
			AllowFrom: cfg.Channels.Telegram.AllowFrom,
			ParseMode: cfg.Channels.Telegram.ParseMode,
			MaxFileMB: cfg.Features.MaxFileSizeMB,
			Logger:    logger,
		})
		channels = append(channels, tg)
		go func() {
			if err := tg.Start(ctx, queue); err != nil {
				logger.Error("telegram channel error", "err", err)
			}
		}()
		logger.Info("telegram channel enabled")
	} else {
		logger.Warn("no channel enabled; set channels.telegram in the config or use 'chat'")
	}

	logger.Info("gateway started", "version", version)
	<-ctx.Done()
	logger.Info("shutting down gateway")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for _, ch := range channels {
			ch.Stop()
		}
		pool.Wait()
	}()
	select {
	case <-done:
		logger.Info("shutdown complete")
		return nil
	case <-shutdownCtx.Done():
		logger.Warn("shutdown timed out, forcing exit")
		return fmt.Errorf("shutdown timed out")
	}
}

// registerTools wires every file-producing tool through the assistant's
// delivery sink.
func registerTools(
	cfg *config.Config,
	registry *tool.Registry,
	generator *office.Generator,
	plain *office.PlainGenerator,
	converter *pdfconv.Converter,
	templates *template.Registry,
	sink tool.FileSink,
) {
	ws := cfg.General.Workspace
	maxBytes := int64(cfg.Features.MaxFileSizeMB) << 20

	registry.Register(tool.NewListFilesTool(ws))
	registry.Register(tool.NewReadFileTool(ws, maxBytes))
	registry.Register(tool.NewWriteFileTool(plain, generator, cfg.Features.EnableOfficeFiles, sink))
	registry.Register(tool.NewDeleteFileTool(ws))

	if cfg.Features.EnableOfficeFiles {
		registry.Register(tool.NewCreateOfficeFileTool(generator, templates, sink))
	}
	if cfg.Features.EnablePDFConvert {
		registry.Register(tool.NewConvertToPDFTool(converter, ws, sink))
		registry.Register(tool.NewConvertFromPDFTool(converter, ws, sink))
	}
}

// setupLogging rebuilds the global logger from the config: level, and an
// optional log file alongside stderr.
func setupLogging(cfg *config.Config) error {
	var level slog.Level
	switch cfg.General.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var w io.Writer = os.Stderr
	if cfg.General.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.General.LogFile), 0o755); err != nil {
			return fmt.Errorf("create log directory: %w", err)
		}
		f, err := os.OpenFile(cfg.General.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		w = io.MultiWriter(os.Stderr, f)
	}

	logger = slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return nil
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "View and modify configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get [path]",
		Short: "Get a config value (e.g. buffer.fullWindowMs)",
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
		Use:   "set [path] [value]",
		Short: "Set a config value (e.g. buffer.fullWindowMs 3000)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := config.SetByPath(cfg, args[0], args[1]); err != nil {
				return fmt.Errorf("set value: %w", err)
			}
			if err := config.Save(cfgPath, cfg); err != nil {
				return fmt.Errorf("save config: %w", err)
			}
			logger.Info("config updated", "path", args[0], "value", args[1], "file", cfgPath)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List all config values (secrets masked)",
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
