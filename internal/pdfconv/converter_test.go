package pdfconv

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/Clhikari/astrbot-plugin-office-assistant/internal/workpool"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newOfflineConverter builds a converter that is guaranteed not to find a
// LibreOffice binary, so tests behave the same on hosts that have one.
func newOfflineConverter(t *testing.T, enableChrome bool) *Converter {
	t.Helper()
	return New(Options{
		Workspace:       t.TempDir(),
		LibreOfficePath: "definitely-not-a-real-soffice-binary",
		EnableChrome:    enableChrome,
	}, workpool.New(1), testLogger())
}

func TestStem(t *testing.T) {
	if got := stem("/tmp/report.v2.docx"); got != "report.v2" {
		t.Fatalf("stem = %q", got)
	}
	if got := stem("noext"); got != "noext" {
		t.Fatalf("stem = %q", got)
	}
}

func TestFindLibreOffice_ExplicitPath(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("script-based fake binary")
	}
	dir := t.TempDir()
	bin := filepath.Join(dir, "soffice")
	if err := os.WriteFile(bin, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatal(err)
	}

	c := New(Options{Workspace: dir, LibreOfficePath: bin}, workpool.New(1), testLogger())
	if c.libreoffice != bin {
		t.Fatalf("libreoffice = %q, want %q", c.libreoffice, bin)
	}
	if !c.Capabilities()["office_to_pdf"] {
		t.Fatal("office_to_pdf should be available")
	}
}

func TestCapabilitiesWithoutBackends(t *testing.T) {
	c := newOfflineConverter(t, false)
	caps := c.Capabilities()
	if caps["office_to_pdf"] {
		t.Fatal("office_to_pdf should be unavailable")
	}
	if caps["html_to_pdf"] {
		t.Fatal("html_to_pdf should be unavailable without chrome")
	}
	if !caps["pdf_to_word"] || !caps["pdf_to_excel"] {
		t.Fatal("pdf extraction should always be available")
	}
	if len(c.MissingDependencies()) == 0 {
		t.Fatal("expected a missing dependency hint")
	}
}

func TestCanConvertToPDF(t *testing.T) {
	c := newOfflineConverter(t, true)
	if c.CanConvertToPDF("doc.docx") {
		t.Fatal("docx needs libreoffice")
	}
	if !c.CanConvertToPDF("page.html") {
		t.Fatal("html should convert through chrome")
	}
	if c.CanConvertToPDF("image.png") {
		t.Fatal("png is not convertible")
	}
}

func TestToPDF_MissingInput(t *testing.T) {
	c := newOfflineConverter(t, false)
	if _, err := c.ToPDF(context.Background(), "/nonexistent/file.docx"); err == nil {
		t.Fatal("expected error for missing input")
	}
}

func TestToPDF_NoBackend(t *testing.T) {
	c := newOfflineConverter(t, false)
	input := filepath.Join(t.TempDir(), "doc.docx")
	if err := os.WriteFile(input, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := c.ToPDF(context.Background(), input)
	if err == nil || !strings.Contains(err.Error(), "no backend") {
		t.Fatalf("expected no-backend error, got %v", err)
	}
}

func TestFromPDF_UnsupportedTarget(t *testing.T) {
	c := newOfflineConverter(t, false)
	if _, err := c.FromPDF(context.Background(), "in.pdf", "powerpoint"); err == nil {
		t.Fatal("expected error for unsupported target")
	}
}
