package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"

	"github.com/Clhikari/astrbot-plugin-office-assistant/internal/config"
	"github.com/Clhikari/astrbot-plugin-office-assistant/internal/pdfconv"
	"github.com/Clhikari/astrbot-plugin-office-assistant/internal/preview"
	"github.com/Clhikari/astrbot-plugin-office-assistant/internal/provider"
	"github.com/Clhikari/astrbot-plugin-office-assistant/internal/workpool"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Run diagnostic checks on the installation",
		Long: `Verifies configuration, workspace, database, provider and the external
conversion backends (LibreOffice, pdftoppm). Reports pass/fail per check.`,
		RunE: runDoctor,
	}
}

func runDoctor(cmd *cobra.Command, args []string) error {
	cfgPath := resolveConfigPath()
	fmt.Printf("office-assistant doctor v%s\n", version)
	fmt.Printf("----------------------------------------\n\n")

	passed, warned, failed := 0, 0, 0

	if _, err := os.Stat(cfgPath); err != nil {
		printFail("Config file", fmt.Sprintf("not found at %s", cfgPath))
		fmt.Printf("\nRun 'office-assistant init' to create a default configuration.\n")
		return nil
	}
	printPass("Config file", cfgPath)
	passed++

	cfg, err := config.Load(cfgPath)
	if err != nil {
		printFail("Config validation", err.Error())
		fmt.Printf("\n%d passed, %d failed\n", passed, failed+1)
		return nil
	}
	printPass("Config validation", "valid")
	passed++

	if info, err := os.Stat(cfg.General.Workspace); err != nil {
		printFail("Workspace", fmt.Sprintf("not found: %s", cfg.General.Workspace))
		failed++
	} else if !info.IsDir() {
		printFail("Workspace", fmt.Sprintf("not a directory: %s", cfg.General.Workspace))
		failed++
	} else {
		printPass("Workspace", cfg.General.Workspace)
		passed++
	}

	if err := checkDatabase(cfg.Storage.DBPath); err != nil {
		printFail("Database", err.Error())
		failed++
	} else {
		printPass("Database", cfg.Storage.DBPath)
		passed++
	}

	// Conversion backends. The converter probes for LibreOffice itself.
	conv := pdfconv.New(pdfconv.Options{
		Workspace:       cfg.General.Workspace,
		LibreOfficePath: cfg.Convert.LibreOfficePath,
		EnableChrome:    cfg.Convert.EnableChrome,
	}, workpool.New(1), logger)
	if missing := conv.MissingDependencies(); len(missing) == 0 {
		printPass("PDF conversion", "all backends available")
		passed++
	} else {
		for _, m := range missing {
			printWarn("PDF conversion", m)
			warned++
		}
	}

	if cfg.Features.EnablePreview {
		if preview.New(logger).Available() {
			printPass("Preview", "pdftoppm found")
			passed++
		} else {
			printWarn("Preview", "pdftoppm not found, previews disabled")
			warned++
		}
	}

	if info, err := os.Stat(cfg.General.TemplateDir); err != nil || !info.IsDir() {
		printWarn("Templates", fmt.Sprintf("directory missing: %s", cfg.General.TemplateDir))
		warned++
	} else {
		printPass("Templates", cfg.General.TemplateDir)
		passed++
	}

	// Provider reachability.
	prov := provider.NewOpenAI(provider.OpenAIConfig{
		APIKey:  cfg.Provider.APIKey,
		APIBase: cfg.Provider.APIBase,
		Model:   cfg.Provider.Model,
		Timeout: 10 * time.Second,
		Logger:  logger,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := prov.Healthy(ctx); err != nil {
		printWarn("Provider", fmt.Sprintf("%s: %v", cfg.Provider.APIBase, err))
		warned++
	} else {
		printPass("Provider", fmt.Sprintf("%s (%s)", cfg.Provider.APIBase, cfg.Provider.Model))
		passed++
	}

	if cfg.Channels.Telegram.Enabled && cfg.Channels.Telegram.Token == "" {
		printFail("Telegram", "enabled but no token configured")
		failed++
	} else if cfg.Channels.Telegram.Enabled {
		printPass("Telegram", "token configured")
		passed++
	} else {
		printWarn("Telegram", "disabled")
		warned++
	}

	if cfg.Buffer.ObserveWindowMs == 0 && cfg.Buffer.FullWindowMs == 0 {
		printWarn("Buffering", "disabled, split file+text messages will not coalesce")
		warned++
	} else {
		printPass("Buffering", fmt.Sprintf("observe %dms, full %dms",
			cfg.Buffer.ObserveWindowMs, cfg.Buffer.FullWindowMs))
		passed++
	}

	fmt.Printf("\n----------------------------------------\n")
	fmt.Printf("Results: %d passed, %d warnings, %d failed\n", passed, warned, failed)
	if failed > 0 {
		fmt.Printf("\nPlease fix the failed checks before running the bot.\n")
		return fmt.Errorf("%d check(s) failed", failed)
	}
	if warned > 0 {
		fmt.Printf("\nThe bot should work but consider fixing the warnings.\n")
	} else {
		fmt.Printf("\nAll checks passed.\n")
	}
	return nil
}

func checkDatabase(dbPath string) error {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return fmt.Errorf("cannot create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return fmt.Errorf("cannot open: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("cannot ping: %w", err)
	}
	if _, err := db.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS _doctor_test (id INTEGER PRIMARY KEY)"); err != nil {
		return fmt.Errorf("not writable: %w", err)
	}
	db.ExecContext(ctx, "DROP TABLE IF EXISTS _doctor_test")
	return nil
}

func printPass(check, detail string) {
	fmt.Printf("  [PASS] %-20s %s\n", check, detail)
}

func printFail(check, detail string) {
	fmt.Printf("  [FAIL] %-20s %s\n", check, detail)
}

func printWarn(check, detail string) {
	fmt.Printf("  [WARN] %-20s %s\n", check, detail)
}
