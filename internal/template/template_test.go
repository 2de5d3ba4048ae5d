package template

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLoadFromDirectory(t *testing.T) {
	dir := t.TempDir()

	report := `name: weekly-report
kind: word
description: Weekly status report
filename: weekly_report
content: |
  Weekly Report

  Summary goes here.
`
	if err := os.WriteFile(filepath.Join(dir, "report.yaml"), []byte(report), 0o644); err != nil {
		t.Fatal(err)
	}
	// Name and kind fall back to defaults when omitted.
	if err := os.WriteFile(filepath.Join(dir, "notes.yml"), []byte("content: hello\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	// Non-YAML files are ignored.
	if err := os.WriteFile(filepath.Join(dir, "readme.txt"), []byte("skip"), 0o644); err != nil {
		t.Fatal(err)
	}

	templates, err := LoadFromDirectory(dir, testLogger())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(templates) != 2 {
		t.Fatalf("loaded %d templates, want 2", len(templates))
	}

	r := NewRegistry(templates)
	tpl, ok := r.Get("Weekly-Report")
	if !ok {
		t.Fatal("weekly-report not found")
	}
	if tpl.Kind != "word" || tpl.Filename != "weekly_report" {
		t.Fatalf("template = %+v", tpl)
	}

	fallback, ok := r.Get("notes")
	if !ok {
		t.Fatal("notes template should take its name from the filename")
	}
	if fallback.Kind != "word" {
		t.Fatalf("kind fallback = %q", fallback.Kind)
	}
}

func TestLoadFromDirectory_Missing(t *testing.T) {
	templates, err := LoadFromDirectory(filepath.Join(t.TempDir(), "absent"), testLogger())
	if err != nil {
		t.Fatalf("missing dir should not error: %v", err)
	}
	if templates != nil {
		t.Fatalf("expected nil templates, got %v", templates)
	}
}

func TestLoadFromDirectory_MalformedFileSkipped(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte(":\n  - ["), 0o644); err != nil {
		t.Fatal(err)
	}
	templates, err := LoadFromDirectory(dir, testLogger())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(templates) != 0 {
		t.Fatalf("malformed file should be skipped, got %v", templates)
	}
}

func TestRegistryList(t *testing.T) {
	r := NewRegistry([]Template{{Name: "b"}, {Name: "a"}})
	list := r.List()
	if len(list) != 2 || list[0].Name != "a" || list[1].Name != "b" {
		t.Fatalf("list = %v", list)
	}
}
