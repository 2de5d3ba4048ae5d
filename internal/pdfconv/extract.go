package pdfconv

import (
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/Clhikari/astrbot-plugin-office-assistant/internal/office"
)

// FromPDF converts a PDF to the given target format ("word" or "excel") and
// returns the output path.
func (c *Converter) FromPDF(ctx context.Context, inputPath, target string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(target)) {
	case "word", "docx":
		return c.pdfToWord(ctx, inputPath)
	case "excel", "xlsx":
		return c.pdfToExcel(ctx, inputPath)
	}
	return "", fmt.Errorf("unsupported conversion target %q, use word or excel", target)
}

// pdfToWord extracts the text of each page into a Word document, one
// paragraph per text block.
func (c *Converter) pdfToWord(ctx context.Context, inputPath string) (string, error) {
	outputPath := office.UniquePath(c.opts.Workspace, stem(inputPath)+".docx")

	err := c.pool.Run(ctx, func() error {
		f, reader, err := pdf.Open(inputPath)
		if err != nil {
			return fmt.Errorf("open pdf: %w", err)
		}
		defer f.Close()

		var paragraphs []string
		fonts := make(map[string]*pdf.Font)
		for i := 1; i <= reader.NumPage(); i++ {
			p := reader.Page(i)
			if p.V.IsNull() {
				continue
			}
			text, err := p.GetPlainText(fonts)
			if err != nil {
				c.logger.Warn("page text extraction failed", "page", i, "error", err)
				continue
			}
			if text = strings.TrimSpace(text); text != "" {
				paragraphs = append(paragraphs, text)
			}
		}
		if len(paragraphs) == 0 {
			paragraphs = []string{"(no extractable text found in PDF)"}
		}

		return office.WriteWord(outputPath, office.WordContent{
			Paragraphs: office.StringList(paragraphs),
		})
	})
	if err != nil {
		return "", fmt.Errorf("pdf to word: %w", err)
	}

	c.logger.Info("converted pdf to word", "input", inputPath, "output", outputPath)
	return outputPath, nil
}

// pdfToExcel reconstructs rows from the positioned text of each page and
// writes them to one worksheet per page. Columns come out as one cell per
// text run, which is coarse but workable for simple tabular PDFs.
func (c *Converter) pdfToExcel(ctx context.Context, inputPath string) (string, error) {
	outputPath := office.UniquePath(c.opts.Workspace, stem(inputPath)+".xlsx")

	err := c.pool.Run(ctx, func() error {
		f, reader, err := pdf.Open(inputPath)
		if err != nil {
			return fmt.Errorf("open pdf: %w", err)
		}
		defer f.Close()

		var sheets []office.SheetContent
		for i := 1; i <= reader.NumPage(); i++ {
			p := reader.Page(i)
			if p.V.IsNull() {
				continue
			}
			rows, err := p.GetTextByRow()
			if err != nil {
				c.logger.Warn("page row extraction failed", "page", i, "error", err)
				continue
			}

			var data [][]any
			for _, row := range rows {
				var cells []any
				for _, word := range row.Content {
					if s := strings.TrimSpace(word.S); s != "" {
						cells = append(cells, s)
					}
				}
				if len(cells) > 0 {
					data = append(data, cells)
				}
			}
			if len(data) > 0 {
				sheets = append(sheets, office.SheetContent{
					Name: fmt.Sprintf("Page%d", i),
					Data: data,
				})
			}
		}
		if len(sheets) == 0 {
			sheets = []office.SheetContent{{
				Name: "Sheet1",
				Data: [][]any{{"(no table data found in PDF)"}},
			}}
		}

		return office.WriteExcel(outputPath, office.ExcelContent{Sheets: sheets})
	})
	if err != nil {
		return "", fmt.Errorf("pdf to excel: %w", err)
	}

	c.logger.Info("converted pdf to excel", "input", inputPath, "output", outputPath)
	return outputPath, nil
}
