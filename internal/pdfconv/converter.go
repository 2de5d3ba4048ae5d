// Package pdfconv converts documents to and from PDF. Office formats go
// through a headless LibreOffice subprocess; HTML can alternatively render
// through headless Chrome; PDF extraction back to Word and Excel runs
// in-process.
package pdfconv

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/Clhikari/astrbot-plugin-office-assistant/internal/workpool"
)

// libreOfficeCandidates are tried in order when no path is configured.
var libreOfficeCandidates = []string{
	"soffice",
	"libreoffice",
	"/usr/bin/soffice",
	"/usr/bin/libreoffice",
	"/opt/libreoffice/program/soffice",
	"/Applications/LibreOffice.app/Contents/MacOS/soffice",
	`C:\Program Files\LibreOffice\program\soffice.exe`,
}

// officeSuffixes are the input formats LibreOffice converts to PDF.
var officeSuffixes = map[string]bool{
	".docx": true, ".doc": true,
	".xlsx": true, ".xls": true,
	".pptx": true, ".ppt": true,
}

// Options configures a Converter.
type Options struct {
	Workspace       string
	LibreOfficePath string // explicit binary path, skips the candidate search
	Timeout         time.Duration
	EnableChrome    bool // render HTML through headless Chrome instead of LibreOffice
}

// Converter runs document conversions through the shared worker pool.
type Converter struct {
	opts        Options
	libreoffice string
	pool        *workpool.Pool
	logger      *slog.Logger
}

func New(opts Options, pool *workpool.Pool, logger *slog.Logger) *Converter {
	if opts.Timeout <= 0 {
		opts.Timeout = 2 * time.Minute
	}
	c := &Converter{
		opts:   opts,
		pool:   pool,
		logger: logger.With("component", "pdfconv"),
	}
	c.libreoffice = c.findLibreOffice()

	caps := c.Capabilities()
	c.logger.Info("converter initialized",
		"libreoffice", c.libreoffice,
		"office_to_pdf", caps["office_to_pdf"],
		"html_to_pdf", caps["html_to_pdf"])
	return c
}

func (c *Converter) findLibreOffice() string {
	if c.opts.LibreOfficePath != "" {
		if path, err := exec.LookPath(c.opts.LibreOfficePath); err == nil {
			return path
		}
		c.logger.Warn("configured libreoffice path not found", "path", c.opts.LibreOfficePath)
		return ""
	}
	for _, candidate := range libreOfficeCandidates {
		if path, err := exec.LookPath(candidate); err == nil {
			return path
		}
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate
		}
	}
	c.logger.Warn("libreoffice not found, office to pdf conversion unavailable")
	return ""
}

// Capabilities reports which conversion directions are currently usable.
func (c *Converter) Capabilities() map[string]bool {
	return map[string]bool{
		"office_to_pdf": c.libreoffice != "",
		"html_to_pdf":   c.libreoffice != "" || c.opts.EnableChrome,
		"pdf_to_word":   true,
		"pdf_to_excel":  true,
	}
}

// MissingDependencies lists install hints for unavailable conversions.
func (c *Converter) MissingDependencies() []string {
	var missing []string
	if c.libreoffice == "" {
		missing = append(missing, "LibreOffice (apt-get install libreoffice-writer libreoffice-calc libreoffice-impress)")
	}
	return missing
}

// CanConvertToPDF reports whether the file at path has a convertible format.
func (c *Converter) CanConvertToPDF(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	if officeSuffixes[ext] {
		return c.libreoffice != ""
	}
	switch ext {
	case ".html", ".htm":
		return c.opts.EnableChrome || c.libreoffice != ""
	case ".txt", ".md":
		return c.libreoffice != ""
	}
	return false
}

// ToPDF converts the input document to PDF in the workspace and returns the
// output path.
func (c *Converter) ToPDF(ctx context.Context, inputPath string) (string, error) {
	if _, err := os.Stat(inputPath); err != nil {
		return "", fmt.Errorf("input file: %w", err)
	}
	ext := strings.ToLower(filepath.Ext(inputPath))

	if (ext == ".html" || ext == ".htm") && c.opts.EnableChrome {
		return c.htmlToPDFChrome(ctx, inputPath)
	}
	if !c.CanConvertToPDF(inputPath) {
		return "", fmt.Errorf("no backend available to convert %s to pdf", ext)
	}
	return c.officeToPDF(ctx, inputPath)
}

func (c *Converter) officeToPDF(ctx context.Context, inputPath string) (string, error) {
	outputPath := filepath.Join(c.opts.Workspace, stem(inputPath)+".pdf")

	err := c.pool.Run(ctx, func() error {
		runCtx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()

		cmd := exec.CommandContext(runCtx, c.libreoffice,
			"--headless", "--invisible", "--nologo", "--nofirststartwizard",
			"--convert-to", "pdf",
			"--outdir", c.opts.Workspace,
			inputPath)
		out, err := cmd.CombinedOutput()
		if runCtx.Err() != nil {
			return fmt.Errorf("libreoffice timed out after %s", c.opts.Timeout)
		}
		if err != nil {
			return fmt.Errorf("libreoffice: %w: %s", err, strings.TrimSpace(string(out)))
		}
		if _, err := os.Stat(outputPath); err != nil {
			return fmt.Errorf("libreoffice produced no output: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	c.logger.Info("converted to pdf", "input", inputPath, "output", outputPath)
	return outputPath, nil
}

// stem returns the filename without directory or extension.
func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
