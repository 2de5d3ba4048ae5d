// Package tool implements the LLM-invocable file operations: workspace file
// management, office document generation and PDF conversion.
package tool

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Clhikari/astrbot-plugin-office-assistant/internal/domain"
	"github.com/Clhikari/astrbot-plugin-office-assistant/internal/office"
)

// FileSink receives the path of every file a tool produces, so the caller
// can deliver it to the chat and record it in history. The context is the
// one the tool ran under, carrying the caller's delivery target.
type FileSink func(ctx context.Context, path string)

// textSuffixes are the file types read_file returns as text. Everything
// else is reported as binary.
var textSuffixes = map[string]bool{
	".txt": true, ".md": true, ".log": true,
	".py": true, ".js": true, ".ts": true, ".go": true,
	".c": true, ".cpp": true, ".h": true, ".java": true,
	".json": true, ".yaml": true, ".yml": true, ".toml": true,
	".xml": true, ".csv": true, ".html": true, ".css": true,
	".sql": true, ".sh": true, ".bat": true,
}

// resolvePath resolves a file path relative to the workspace and prevents traversal.
func resolvePath(workspace, path string) (string, error) {
	path = strings.TrimSpace(path)
	if !filepath.IsAbs(path) && workspace != "" {
		path = filepath.Join(workspace, path)
	}
	resolved, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("resolve path: %w", err)
	}
	// Enforce workspace restriction to prevent directory traversal.
	if workspace != "" {
		wsAbs, err := filepath.Abs(workspace)
		if err != nil {
			return "", fmt.Errorf("resolve workspace: %w", err)
		}
		if !strings.HasPrefix(resolved, wsAbs+string(filepath.Separator)) && resolved != wsAbs {
			return "", fmt.Errorf("path %q is outside workspace %q", resolved, wsAbs)
		}
	}
	return resolved, nil
}

// --- ListFilesTool ---

// ListFilesTool lists the workspace files, newest first.
type ListFilesTool struct {
	workspace string
}

func NewListFilesTool(workspace string) *ListFilesTool {
	return &ListFilesTool{workspace: workspace}
}

func (t *ListFilesTool) Name() string { return "list_files" }
func (t *ListFilesTool) Description() string {
	return "List all files in the bot workspace with their sizes, newest first."
}
func (t *ListFilesTool) Parameters() map[string]any {
	return ToolParameters(map[string]Param{}, nil)
}

func (t *ListFilesTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	entries, err := os.ReadDir(t.workspace)
	if err != nil {
		if os.IsNotExist(err) {
			return "The workspace is empty.", nil
		}
		return "", fmt.Errorf("list workspace: %w", err)
	}

	type fileEntry struct {
		name  string
		size  int64
		mtime int64
	}
	var files []fileEntry
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, fileEntry{e.Name(), info.Size(), info.ModTime().UnixNano()})
	}
	if len(files) == 0 {
		return "The workspace is empty.", nil
	}
	sort.Slice(files, func(i, j int) bool { return files[i].mtime > files[j].mtime })

	lines := []string{"Workspace files:"}
	for _, f := range files {
		lines = append(lines, fmt.Sprintf("- %s (%s)", f.name, office.FormatFileSize(f.size)))
	}
	return strings.Join(lines, "\n"), nil
}

// --- ReadFileTool ---

// ReadFileTool returns the content of a text file in the workspace.
type ReadFileTool struct {
	workspace string
	maxBytes  int64
}

func NewReadFileTool(workspace string, maxBytes int64) *ReadFileTool {
	if maxBytes <= 0 {
		maxBytes = 20 << 20
	}
	return &ReadFileTool{workspace: workspace, maxBytes: maxBytes}
}

func (t *ReadFileTool) Name() string { return "read_file" }
func (t *ReadFileTool) Description() string {
	return "Read the contents of a text file in the workspace."
}
func (t *ReadFileTool) Parameters() map[string]any {
	return ToolParameters(
		map[string]Param{
			"filename": {Type: "string", Description: "Name of the file to read"},
		},
		[]string{"filename"},
	)
}

func (t *ReadFileTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	filename := ArgsString(args, "filename")
	if filename == "" {
		return "", fmt.Errorf("missing argument: filename")
	}
	resolved, err := resolvePath(t.workspace, filename)
	if err != nil {
		return "", err
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return fmt.Sprintf("File %q does not exist.", filename), nil
	}
	if info.Size() > t.maxBytes {
		return fmt.Sprintf("File %q is too large to read (%s).",
			filename, office.FormatFileSize(info.Size())), nil
	}
	if !textSuffixes[strings.ToLower(filepath.Ext(resolved))] {
		return fmt.Sprintf("File %q is binary and cannot be read as text.", filename), nil
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	return string(data), nil
}

// --- WriteFileTool ---

// WriteFileTool creates a file in the workspace. Office types route through
// the document generator, everything else is written as plain text.
type WriteFileTool struct {
	plain        *office.PlainGenerator
	generator    *office.Generator
	enableOffice bool
	sink         FileSink
}

func NewWriteFileTool(plain *office.PlainGenerator, generator *office.Generator, enableOffice bool, sink FileSink) *WriteFileTool {
	return &WriteFileTool{
		plain:        plain,
		generator:    generator,
		enableOffice: enableOffice,
		sink:         sink,
	}
}

func (t *WriteFileTool) Name() string { return "write_file" }
func (t *WriteFileTool) Description() string {
	return "Create a file in the workspace and send it to the user. Supports text formats and, when enabled, word/excel/powerpoint."
}
func (t *WriteFileTool) Parameters() map[string]any {
	return ToolParameters(
		map[string]Param{
			"filename":  {Type: "string", Description: "Filename without extension"},
			"content":   {Type: "string", Description: "File content. For office types, structured JSON or plain text"},
			"file_type": {Type: "string", Description: "File type, e.g. text, markdown, python, word, excel, powerpoint"},
		},
		[]string{"filename", "content"},
	)
}

func (t *WriteFileTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	filename := ArgsString(args, "filename")
	content := ArgsString(args, "content")
	fileType := strings.ToLower(ArgsString(args, "file_type"))
	if filename == "" {
		return "", fmt.Errorf("missing argument: filename")
	}
	if fileType == "" {
		fileType = "text"
	}

	var path string
	var err error
	if kind, ok := office.KindFromString(fileType); ok {
		if !t.enableOffice {
			return "Office file generation is disabled in the configuration.", nil
		}
		path, err = t.generator.Generate(ctx, kind, filename, content)
	} else {
		path, err = t.plain.Generate(fileType, filename, content)
	}
	if err != nil {
		return "", err
	}

	if t.sink != nil {
		t.sink(ctx, path)
	}
	return fmt.Sprintf("File %q created and sent to the user.", filepath.Base(path)), nil
}

// --- DeleteFileTool ---

// DeleteFileTool removes a file from the workspace.
type DeleteFileTool struct {
	workspace string
}

func NewDeleteFileTool(workspace string) *DeleteFileTool {
	return &DeleteFileTool{workspace: workspace}
}

func (t *DeleteFileTool) Name() string { return "delete_file" }
func (t *DeleteFileTool) Description() string {
	return "Permanently delete a file from the workspace."
}
func (t *DeleteFileTool) Parameters() map[string]any {
	return ToolParameters(
		map[string]Param{
			"filename": {Type: "string", Description: "Name of the file to delete"},
		},
		[]string{"filename"},
	)
}

func (t *DeleteFileTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	filename := ArgsString(args, "filename")
	if filename == "" {
		return "", fmt.Errorf("missing argument: filename")
	}
	resolved, err := resolvePath(t.workspace, filename)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(resolved); err != nil {
		return fmt.Sprintf("File %q does not exist.", filename), nil
	}
	if err := os.Remove(resolved); err != nil {
		return "", fmt.Errorf("delete file: %w", err)
	}
	return fmt.Sprintf("File %q deleted.", filename), nil
}

// Compile-time interface checks.
var (
	_ domain.Tool = (*ListFilesTool)(nil)
	_ domain.Tool = (*ReadFileTool)(nil)
	_ domain.Tool = (*WriteFileTool)(nil)
	_ domain.Tool = (*DeleteFileTool)(nil)
)
