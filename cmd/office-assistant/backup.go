package main

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Clhikari/astrbot-plugin-office-assistant/internal/config"
	"github.com/Clhikari/astrbot-plugin-office-assistant/internal/office"
)

// Archive layout: config.json and history.db at the root, generated files
// under workspace/.
const workspacePrefix = "workspace/"

func backupCmd() *cobra.Command {
	var outputPath string
	var includeWorkspace bool

	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Archive config, file history and optionally the workspace",
		Long: `Creates a compressed .tar.gz archive containing the configuration, the
SQLite history database and, with --workspace, every generated file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			if outputPath == "" {
				backupDir := filepath.Join(config.DefaultConfigDir(), "backups")
				if err := os.MkdirAll(backupDir, 0o755); err != nil {
					return fmt.Errorf("cannot create backup directory: %w", err)
				}
				ts := time.Now().Format("20060102-150405")
				outputPath = filepath.Join(backupDir, fmt.Sprintf("office-assistant-%s.tar.gz", ts))
			}

			type entry struct {
				path string
				name string // name inside the archive
			}
			var entries []entry

			if _, err := os.Stat(cfgPath); err == nil {
				entries = append(entries, entry{cfgPath, "config.json"})
			}
			if _, err := os.Stat(cfg.Storage.DBPath); err == nil {
				entries = append(entries, entry{cfg.Storage.DBPath, filepath.Base(cfg.Storage.DBPath)})
				// WAL mode keeps recent writes in sidecar files.
				for _, suffix := range []string{"-wal", "-shm"} {
					if _, err := os.Stat(cfg.Storage.DBPath + suffix); err == nil {
						entries = append(entries, entry{
							cfg.Storage.DBPath + suffix,
							filepath.Base(cfg.Storage.DBPath) + suffix,
						})
					}
				}
			}
			if includeWorkspace {
				dirEntries, err := os.ReadDir(cfg.General.Workspace)
				if err != nil && !os.IsNotExist(err) {
					return fmt.Errorf("read workspace: %w", err)
				}
				for _, de := range dirEntries {
					if de.IsDir() {
						continue
					}
					entries = append(entries, entry{
						filepath.Join(cfg.General.Workspace, de.Name()),
						workspacePrefix + de.Name(),
					})
				}
			}

			if len(entries) == 0 {
				return fmt.Errorf("nothing to back up (config: %s, db: %s)", cfgPath, cfg.Storage.DBPath)
			}

			out, err := os.Create(outputPath)
			if err != nil {
				return err
			}
			defer out.Close()
			gz := gzip.NewWriter(out)
			defer gz.Close()
			tw := tar.NewWriter(gz)
			defer tw.Close()

			var total int64
			for _, e := range entries {
				n, err := addFileToTar(tw, e.path, e.name)
				if err != nil {
					return fmt.Errorf("add %s: %w", e.path, err)
				}
				total += n
			}

			fmt.Printf("Backup created: %s\n", outputPath)
			fmt.Printf("Files included: %d (%s)\n", len(entries), office.FormatFileSize(total))
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "output file path (default: ~/.office-assistant/backups/office-assistant-<timestamp>.tar.gz)")
	cmd.Flags().BoolVar(&includeWorkspace, "workspace", false, "include generated workspace files")
	return cmd
}

func restoreCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "restore <file.tar.gz>",
		Short: "Restore config, history and workspace from a backup archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			archivePath := args[0]
			cfgPath := resolveConfigPath()

			cfg, err := config.Load(cfgPath)
			if err != nil {
				// Restoring onto a fresh machine: fall back to defaults for
				// target paths.
				cfg = config.Defaults()
				cfg.General.Workspace = config.ExpandPath(cfg.General.Workspace)
				cfg.Storage.DBPath = config.ExpandPath(cfg.Storage.DBPath)
			}

			if !force {
				if _, err := os.Stat(cfgPath); err == nil {
					fmt.Printf("WARNING: this will overwrite existing data.\n")
					fmt.Printf("  Config:   %s\n", cfgPath)
					fmt.Printf("  Database: %s\n", cfg.Storage.DBPath)
					fmt.Printf("Use --force to proceed.\n")
					return fmt.Errorf("restore aborted")
				}
			}

			restored, err := extractArchive(archivePath, cfgPath, cfg.Storage.DBPath, cfg.General.Workspace)
			if err != nil {
				return fmt.Errorf("restore failed: %w", err)
			}

			fmt.Printf("Restore completed from: %s\n", archivePath)
			for _, f := range restored {
				fmt.Printf("  - %s\n", f)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing data without warning")
	return cmd
}

func addFileToTar(tw *tar.Writer, path, name string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, err
	}
	header, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return 0, err
	}
	header.Name = name

	if err := tw.WriteHeader(header); err != nil {
		return 0, err
	}
	return io.Copy(tw, f)
}

func extractArchive(archivePath, cfgPath, dbPath, workspace string) ([]string, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("not a valid gzip file: %w", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	var restored []string
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		base := filepath.Base(header.Name)
		var target string
		switch {
		case strings.HasPrefix(header.Name, workspacePrefix):
			target = filepath.Join(workspace, base)
		case base == "config.json":
			target = cfgPath
		case strings.HasSuffix(base, ".db"):
			target = dbPath
		case strings.HasSuffix(base, ".db-wal"):
			target = dbPath + "-wal"
		case strings.HasSuffix(base, ".db-shm"):
			target = dbPath + "-shm"
		default:
			target = filepath.Join(filepath.Dir(cfgPath), base)
		}

		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return nil, err
		}
		out, err := os.Create(target)
		if err != nil {
			return nil, fmt.Errorf("create %s: %w", target, err)
		}
		if _, err := io.Copy(out, tr); err != nil {
			out.Close()
			return nil, fmt.Errorf("extract %s: %w", target, err)
		}
		out.Close()
		restored = append(restored, target)
	}
	return restored, nil
}
