package preview

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFromPDF_RejectsNonPDF(t *testing.T) {
	g := New(testLogger())
	g.pdftoppm = "/usr/bin/true" // pretend the tool exists

	if _, err := g.FromPDF(context.Background(), "file.docx"); err == nil {
		t.Fatal("expected error for non-pdf input")
	}
}

func TestFromPDF_MissingTool(t *testing.T) {
	g := New(testLogger())
	g.pdftoppm = ""

	if g.Available() {
		t.Fatal("generator should report unavailable")
	}
	if _, err := g.FromPDF(context.Background(), "file.pdf"); err == nil {
		t.Fatal("expected error when pdftoppm is missing")
	}
}

func TestFromPDF_MissingInput(t *testing.T) {
	g := New(testLogger())
	g.pdftoppm = "/usr/bin/true"

	missing := filepath.Join(t.TempDir(), "gone.pdf")
	if _, err := g.FromPDF(context.Background(), missing); err == nil {
		t.Fatal("expected error for missing input file")
	}
}

func TestFromPDF_RealTool(t *testing.T) {
	g := New(testLogger())
	if !g.Available() {
		t.Skip("pdftoppm not installed")
	}

	// Minimal one-page PDF.
	pdf := []byte("%PDF-1.4\n" +
		"1 0 obj<</Type/Catalog/Pages 2 0 R>>endobj\n" +
		"2 0 obj<</Type/Pages/Kids[3 0 R]/Count 1>>endobj\n" +
		"3 0 obj<</Type/Page/Parent 2 0 R/MediaBox[0 0 200 200]>>endobj\n" +
		"trailer<</Root 1 0 R>>\n")
	path := filepath.Join(t.TempDir(), "one.pdf")
	if err := os.WriteFile(path, pdf, 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := g.FromPDF(context.Background(), path)
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if _, err := os.Stat(out); err != nil {
		t.Fatalf("output image missing: %v", err)
	}
}
