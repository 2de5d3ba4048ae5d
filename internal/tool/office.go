package tool

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/Clhikari/astrbot-plugin-office-assistant/internal/domain"
	"github.com/Clhikari/astrbot-plugin-office-assistant/internal/office"
	"github.com/Clhikari/astrbot-plugin-office-assistant/internal/template"
)

// CreateOfficeFileTool generates Word, Excel or PowerPoint documents,
// optionally starting from a named template.
type CreateOfficeFileTool struct {
	generator *office.Generator
	templates *template.Registry
	sink      FileSink
}

func NewCreateOfficeFileTool(generator *office.Generator, templates *template.Registry, sink FileSink) *CreateOfficeFileTool {
	return &CreateOfficeFileTool{
		generator: generator,
		templates: templates,
		sink:      sink,
	}
}

func (t *CreateOfficeFileTool) Name() string { return "create_office_file" }
func (t *CreateOfficeFileTool) Description() string {
	return "Create a Word, Excel or PowerPoint document and send it to the user. Content may be structured JSON or plain text."
}
func (t *CreateOfficeFileTool) Parameters() map[string]any {
	return ToolParameters(
		map[string]Param{
			"file_type": {Type: "string", Description: "word, excel or powerpoint"},
			"filename":  {Type: "string", Description: "Filename without extension"},
			"content":   {Type: "string", Description: "Structured JSON matching the file type, or free text"},
			"template":  {Type: "string", Description: "Optional name of a document template to use as the base"},
		},
		[]string{"file_type", "filename"},
	)
}

func (t *CreateOfficeFileTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	fileType := ArgsString(args, "file_type")
	filename := ArgsString(args, "filename")
	content := ArgsString(args, "content")
	templateName := ArgsString(args, "template")

	kind, ok := office.KindFromString(fileType)
	if !ok {
		return "", fmt.Errorf("unknown office file type %q, use word, excel or powerpoint", fileType)
	}

	if templateName != "" && t.templates != nil {
		tpl, found := t.templates.Get(templateName)
		if !found {
			names := make([]string, 0)
			for _, known := range t.templates.List() {
				names = append(names, known.Name)
			}
			return fmt.Sprintf("Template %q not found. Available templates: %s",
				templateName, strings.Join(names, ", ")), nil
		}
		if tplKind, ok := office.KindFromString(tpl.Kind); ok {
			kind = tplKind
		}
		if filename == "" {
			filename = tpl.Filename
		}
		if content == "" {
			content = tpl.Content
		}
	}

	path, err := t.generator.Generate(ctx, kind, filename, content)
	if err != nil {
		return "", err
	}

	if t.sink != nil {
		t.sink(ctx, path)
	}
	return fmt.Sprintf("Document %q created and sent to the user.", filepath.Base(path)), nil
}

var _ domain.Tool = (*CreateOfficeFileTool)(nil)
