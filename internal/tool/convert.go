package tool

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/Clhikari/astrbot-plugin-office-assistant/internal/domain"
	"github.com/Clhikari/astrbot-plugin-office-assistant/internal/pdfconv"
)

// ConvertToPDFTool converts a workspace document to PDF.
type ConvertToPDFTool struct {
	converter *pdfconv.Converter
	workspace string
	sink      FileSink
}

func NewConvertToPDFTool(converter *pdfconv.Converter, workspace string, sink FileSink) *ConvertToPDFTool {
	return &ConvertToPDFTool{converter: converter, workspace: workspace, sink: sink}
}

func (t *ConvertToPDFTool) Name() string { return "convert_to_pdf" }
func (t *ConvertToPDFTool) Description() string {
	return "Convert a Word, Excel, PowerPoint or HTML file in the workspace to PDF and send it to the user."
}
func (t *ConvertToPDFTool) Parameters() map[string]any {
	return ToolParameters(
		map[string]Param{
			"filename": {Type: "string", Description: "Name of the workspace file to convert"},
		},
		[]string{"filename"},
	)
}

func (t *ConvertToPDFTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	filename := ArgsString(args, "filename")
	if filename == "" {
		return "", fmt.Errorf("missing argument: filename")
	}
	resolved, err := resolvePath(t.workspace, filename)
	if err != nil {
		return "", err
	}
	if !t.converter.CanConvertToPDF(resolved) {
		missing := strings.Join(t.converter.MissingDependencies(), "; ")
		if missing == "" {
			return fmt.Sprintf("File type of %q cannot be converted to PDF.", filename), nil
		}
		return fmt.Sprintf("PDF conversion is unavailable, missing: %s", missing), nil
	}

	path, err := t.converter.ToPDF(ctx, resolved)
	if err != nil {
		return "", err
	}
	if t.sink != nil {
		t.sink(ctx, path)
	}
	return fmt.Sprintf("Converted %q to %q and sent it to the user.",
		filename, filepath.Base(path)), nil
}

// ConvertFromPDFTool extracts a PDF into a Word or Excel document.
type ConvertFromPDFTool struct {
	converter *pdfconv.Converter
	workspace string
	sink      FileSink
}

func NewConvertFromPDFTool(converter *pdfconv.Converter, workspace string, sink FileSink) *ConvertFromPDFTool {
	return &ConvertFromPDFTool{converter: converter, workspace: workspace, sink: sink}
}

func (t *ConvertFromPDFTool) Name() string { return "convert_from_pdf" }
func (t *ConvertFromPDFTool) Description() string {
	return "Convert a PDF in the workspace to a Word document (text) or Excel spreadsheet (tables) and send it to the user."
}
func (t *ConvertFromPDFTool) Parameters() map[string]any {
	return ToolParameters(
		map[string]Param{
			"filename": {Type: "string", Description: "Name of the PDF file to convert"},
			"target":   {Type: "string", Description: "Target format: word or excel"},
		},
		[]string{"filename", "target"},
	)
}

func (t *ConvertFromPDFTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	filename := ArgsString(args, "filename")
	target := ArgsString(args, "target")
	if filename == "" {
		return "", fmt.Errorf("missing argument: filename")
	}
	resolved, err := resolvePath(t.workspace, filename)
	if err != nil {
		return "", err
	}
	if !strings.EqualFold(filepath.Ext(resolved), ".pdf") {
		return fmt.Sprintf("File %q is not a PDF.", filename), nil
	}

	path, err := t.converter.FromPDF(ctx, resolved, target)
	if err != nil {
		return "", err
	}
	if t.sink != nil {
		t.sink(ctx, path)
	}
	return fmt.Sprintf("Converted %q to %q and sent it to the user.",
		filename, filepath.Base(path)), nil
}

var (
	_ domain.Tool = (*ConvertToPDFTool)(nil)
	_ domain.Tool = (*ConvertFromPDFTool)(nil)
)
