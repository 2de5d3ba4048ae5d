package office

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// textExtensions maps model-reported file types to extensions for plain
// text output. Unknown types fall back to .txt.
var textExtensions = map[string]string{
	"python":     ".py",
	"javascript": ".js",
	"typescript": ".ts",
	"java":       ".java",
	"cpp":        ".cpp",
	"c":          ".c",
	"go":         ".go",
	"html":       ".html",
	"css":        ".css",
	"json":       ".json",
	"xml":        ".xml",
	"yaml":       ".yaml",
	"markdown":   ".md",
	"text":       ".txt",
	"csv":        ".csv",
	"sql":        ".sql",
	"shell":      ".sh",
	"batch":      ".bat",
}

// PlainGenerator writes non-office files (code, markdown, csv and the like)
// into the workspace.
type PlainGenerator struct {
	workspace string
	logger    *slog.Logger
}

func NewPlainGenerator(workspace string, logger *slog.Logger) *PlainGenerator {
	return &PlainGenerator{workspace: workspace, logger: logger.With("component", "plainfile")}
}

// Generate writes content to a sanitized, uniquely named file and returns
// its path.
func (p *PlainGenerator) Generate(fileType, filename, content string) (string, error) {
	if err := os.MkdirAll(p.workspace, 0o755); err != nil {
		return "", fmt.Errorf("create workspace: %w", err)
	}

	ext, ok := textExtensions[strings.ToLower(strings.TrimSpace(fileType))]
	if !ok {
		ext = ".txt"
	}

	name := Sanitize(filename)
	if !strings.HasSuffix(strings.ToLower(name), ext) {
		name += ext
	}

	path := UniquePath(p.workspace, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}

	p.logger.Info("file generated", "type", fileType, "path", path)
	return path, nil
}
