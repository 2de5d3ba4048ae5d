// Package analyzer asks the LLM whether a message wants a file generated,
// and expands short descriptions into full file content.
package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Clhikari/astrbot-plugin-office-assistant/internal/domain"
)

// FileIntent is the model's verdict on one message.
type FileIntent struct {
	NeedsFile bool     `json:"needs_file"`
	FileInfo  FileInfo `json:"file_info"`
}

// FileInfo describes the file the model thinks the user wants.
type FileInfo struct {
	Type        string `json:"type"`
	Filename    string `json:"filename"`
	Content     string `json:"content"`
	Description string `json:"description"`
}

// Analyzer wraps the provider with the intent and content prompts.
type Analyzer struct {
	provider          domain.Provider
	enableOfficeFiles bool
	logger            *slog.Logger
}

func New(provider domain.Provider, enableOfficeFiles bool, logger *slog.Logger) *Analyzer {
	return &Analyzer{
		provider:          provider,
		enableOfficeFiles: enableOfficeFiles,
		logger:            logger.With("component", "analyzer"),
	}
}

const analysisPromptFormat = `Analyze the following user message and decide whether the user wants a file generated.

User message:
%s

Reply with this JSON structure and nothing else:
{
  "needs_file": true/false,
  "file_info": {
    "type": "file type",
    "filename": "suggested filename without extension",
    "content": "file content or structured data",
    "description": "short description"
  }
}

Supported file types:
- python, javascript, java, cpp, html, css, json, xml, yaml, markdown, text, csv, sql%s

A file is wanted when:
1. The user explicitly asks to generate, create, save or export a file
2. The user asks for code or a document to be saved
3. The user asks for a Word/Excel/PowerPoint file
4. The user describes content that should be written to a file

For office files the content field holds structured data:
- word: {"title": "Title", "paragraphs": ["paragraph 1", "paragraph 2"]}
- excel: {"sheets": [{"name": "Sheet1", "data": [["A1", "B1"], ["A2", "B2"]]}]}
- powerpoint: {"slides": [{"title": "Title", "content": ["point 1", "point 2"]}]}

If no file is wanted, reply {"needs_file": false}`

const officeTypesHint = `
- word: Word document (.docx)
- excel: Excel spreadsheet (.xlsx)
- powerpoint: PowerPoint presentation (.pptx)`

// AnalyzeMessage returns the model's file intent for message, or nil when
// the model decides no file is wanted or its answer cannot be parsed.
func (a *Analyzer) AnalyzeMessage(ctx context.Context, message string) (*FileIntent, error) {
	hint := ""
	if a.enableOfficeFiles {
		hint = officeTypesHint
	}
	prompt := fmt.Sprintf(analysisPromptFormat, message, hint)

	resp, err := a.provider.Chat(ctx, domain.ChatRequest{
		Messages: []domain.Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return nil, fmt.Errorf("intent analysis: %w", err)
	}

	text := StripCodeFences(resp.Content)
	a.logger.Debug("intent analysis result", "response", truncate(text, 200))

	var intent FileIntent
	if err := json.Unmarshal([]byte(text), &intent); err != nil {
		a.logger.Warn("cannot parse intent response", "err", err, "response", truncate(text, 200))
		return nil, nil
	}
	if !intent.NeedsFile {
		return nil, nil
	}
	return &intent, nil
}

// GenerateContent expands a short description into full file content. On
// provider failure the description itself is returned so generation can
// still proceed.
func (a *Analyzer) GenerateContent(ctx context.Context, fileType, description string) string {
	var prompt string
	switch fileType {
	case "word", "excel", "powerpoint":
		prompt = buildOfficePrompt(fileType, description)
	default:
		prompt = fmt.Sprintf(`Generate complete %s file content from the user's description.

User description: %s

Output the file content directly, with no explanation and no markdown code fences.`, fileType, description)
	}

	resp, err := a.provider.Chat(ctx, domain.ChatRequest{
		Messages: []domain.Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		a.logger.Warn("content generation failed, using raw description", "err", err)
		return description
	}
	return StripCodeFences(resp.Content)
}

func buildOfficePrompt(fileType, description string) string {
	var schema string
	switch fileType {
	case "word":
		schema = `{"title": "Document title", "paragraphs": ["paragraph 1", "paragraph 2"]}`
	case "excel":
		schema = `{"sheets": [{"name": "Sheet1", "data": [["column 1", "column 2"], ["value 1", "value 2"]]}]}`
	case "powerpoint":
		schema = `{"slides": [{"title": "Slide title", "content": ["point 1", "point 2"]}]}`
	}
	return fmt.Sprintf(`Generate the structured data for a %s file from the user's description.

User description: %s

Output JSON in this shape and nothing else:
%s`, fileType, description, schema)
}

// StripCodeFences removes markdown code fence markers the model tends to
// wrap JSON answers in.
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
