package tool

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/Clhikari/astrbot-plugin-office-assistant/internal/domain"
)

type fakeTool struct {
	name   string
	result string
}

func (f *fakeTool) Name() string                { return f.name }
func (f *fakeTool) Description() string         { return "fake" }
func (f *fakeTool) Parameters() map[string]any  { return ToolParameters(map[string]Param{}, nil) }
func (f *fakeTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	return f.result, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRegistryExecute(t *testing.T) {
	r := NewRegistry(testLogger())
	r.Register(&fakeTool{name: "list_files", result: "ok"})

	out, err := r.Execute(context.Background(), "list_files", nil)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if out != "ok" {
		t.Fatalf("out = %q", out)
	}

	if _, err := r.Execute(context.Background(), "nope", nil); err == nil {
		t.Fatal("expected error for unknown tool")
	}
}

func TestRegistryDefinitions(t *testing.T) {
	r := NewRegistry(testLogger())
	r.Register(&fakeTool{name: "a"})
	r.Register(&fakeTool{name: "b"})

	defs := r.GetDefinitions()
	if len(defs) != 2 {
		t.Fatalf("got %d definitions, want 2", len(defs))
	}
	for _, d := range defs {
		if d.Parameters == nil {
			t.Fatalf("definition %q missing parameters", d.Name)
		}
	}
}

func TestToolParameters(t *testing.T) {
	schema := ToolParameters(
		map[string]Param{"path": {Type: "string", Description: "a path"}},
		[]string{"path"},
	)
	if schema["type"] != "object" {
		t.Fatalf("type = %v", schema["type"])
	}
	req, ok := schema["required"].([]string)
	if !ok || len(req) != 1 || req[0] != "path" {
		t.Fatalf("required = %v", schema["required"])
	}
}

func TestArgsString(t *testing.T) {
	args := map[string]any{"s": "text", "n": 42.0}
	if got := ArgsString(args, "s"); got != "text" {
		t.Fatalf("string arg = %q", got)
	}
	if got := ArgsString(args, "n"); got != "42" {
		t.Fatalf("number arg = %q", got)
	}
	if got := ArgsString(nil, "s"); got != "" {
		t.Fatalf("nil args = %q", got)
	}
}

var _ domain.Tool = (*fakeTool)(nil)
