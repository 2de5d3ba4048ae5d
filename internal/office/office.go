// Package office generates Word, Excel and PowerPoint documents from
// structured or free-form text content.
package office

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/Clhikari/astrbot-plugin-office-assistant/internal/workpool"
)

// Kind identifies an office document family.
type Kind string

const (
	KindWord       Kind = "word"
	KindExcel      Kind = "excel"
	KindPowerPoint Kind = "powerpoint"
)

// Extensions maps each document kind to its file extension.
var Extensions = map[Kind]string{
	KindWord:       ".docx",
	KindExcel:      ".xlsx",
	KindPowerPoint: ".pptx",
}

// KindFromString resolves user- and model-supplied type names to a Kind.
func KindFromString(s string) (Kind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "word", "doc", "docx", "document":
		return KindWord, true
	case "excel", "xls", "xlsx", "spreadsheet", "sheet":
		return KindExcel, true
	case "powerpoint", "ppt", "pptx", "presentation", "slides":
		return KindPowerPoint, true
	}
	return "", false
}

// Generator writes office documents into the workspace directory. Document
// writers run through the shared worker pool since they block on disk.
type Generator struct {
	workspace string
	pool      *workpool.Pool
	logger    *slog.Logger
}

func NewGenerator(workspace string, pool *workpool.Pool, logger *slog.Logger) *Generator {
	return &Generator{
		workspace: workspace,
		pool:      pool,
		logger:    logger.With("component", "office"),
	}
}

// Generate builds a document of the given kind and returns its path. The raw
// content may be a JSON document matching the kind's content schema, or free
// text that gets parsed with the kind's fallback format.
func (g *Generator) Generate(ctx context.Context, kind Kind, filename, raw string) (string, error) {
	ext, ok := Extensions[kind]
	if !ok {
		return "", fmt.Errorf("unsupported document kind %q", kind)
	}
	if err := os.MkdirAll(g.workspace, 0o755); err != nil {
		return "", fmt.Errorf("create workspace: %w", err)
	}

	name := Sanitize(filename)
	if !strings.HasSuffix(strings.ToLower(name), ext) {
		name += ext
	}
	path := UniquePath(g.workspace, name)

	err := g.pool.Run(ctx, func() error {
		switch kind {
		case KindWord:
			return WriteWord(path, DecodeWordContent(raw))
		case KindExcel:
			return WriteExcel(path, DecodeExcelContent(raw))
		case KindPowerPoint:
			return WriteSlides(path, DecodeSlideContent(raw))
		default:
			return fmt.Errorf("unsupported document kind %q", kind)
		}
	})
	if err != nil {
		os.Remove(path)
		return "", fmt.Errorf("generate %s document: %w", kind, err)
	}

	g.logger.Info("document generated", "kind", kind, "path", path)
	return path, nil
}
