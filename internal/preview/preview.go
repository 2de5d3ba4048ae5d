// Package preview renders first-page PNG previews of PDF files using the
// pdftoppm tool from poppler-utils.
package preview

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

const defaultDPI = 150

// Generator shells out to pdftoppm for rendering. Office files must be
// converted to PDF first.
type Generator struct {
	pdftoppm string
	dpi      int
	timeout  time.Duration
	logger   *slog.Logger
}

func New(logger *slog.Logger) *Generator {
	g := &Generator{
		dpi:     defaultDPI,
		timeout: 30 * time.Second,
		logger:  logger.With("component", "preview"),
	}
	if path, err := exec.LookPath("pdftoppm"); err == nil {
		g.pdftoppm = path
	} else {
		g.logger.Warn("pdftoppm not found, previews unavailable")
	}
	return g
}

// Available reports whether preview rendering can work on this host.
func (g *Generator) Available() bool {
	return g.pdftoppm != ""
}

// FromPDF renders the first page of pdfPath as a PNG next to the source
// file and returns the image path.
func (g *Generator) FromPDF(ctx context.Context, pdfPath string) (string, error) {
	if g.pdftoppm == "" {
		return "", fmt.Errorf("pdftoppm not installed")
	}
	if strings.ToLower(filepath.Ext(pdfPath)) != ".pdf" {
		return "", fmt.Errorf("preview input must be a pdf, got %s", filepath.Ext(pdfPath))
	}
	if _, err := os.Stat(pdfPath); err != nil {
		return "", fmt.Errorf("input file: %w", err)
	}

	// pdftoppm appends the page number itself, so pass a prefix and rename.
	prefix := strings.TrimSuffix(pdfPath, filepath.Ext(pdfPath)) + "_preview"

	runCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, g.pdftoppm,
		"-png",
		"-f", "1", "-l", "1",
		"-r", fmt.Sprint(g.dpi),
		"-singlefile",
		pdfPath, prefix)
	if out, err := cmd.CombinedOutput(); err != nil {
		if runCtx.Err() != nil {
			return "", fmt.Errorf("pdftoppm timed out after %s", g.timeout)
		}
		return "", fmt.Errorf("pdftoppm: %w: %s", err, strings.TrimSpace(string(out)))
	}

	outputPath := prefix + ".png"
	if _, err := os.Stat(outputPath); err != nil {
		return "", fmt.Errorf("pdftoppm produced no output: %w", err)
	}

	g.logger.Info("preview generated", "pdf", pdfPath, "image", outputPath)
	return outputPath, nil
}
