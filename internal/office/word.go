package office

import (
	"fmt"
	"os"
	"strings"

	"github.com/fumiama/go-docx"
)

// WriteWord renders content as a .docx file at path.
func WriteWord(path string, content WordContent) error {
	doc := docx.New().WithDefaultTheme()

	if content.Title != "" {
		title := doc.AddParagraph().Justification("center")
		title.AddText(content.Title).Size("36").Bold()
	}

	for _, text := range content.Paragraphs {
		if strings.TrimSpace(text) == "" {
			continue
		}
		doc.AddParagraph().AddText(text)
	}

	if len(content.Table) > 0 {
		cols := 0
		for _, row := range content.Table {
			if len(row) > cols {
				cols = len(row)
			}
		}
		tbl := doc.AddTable(len(content.Table), cols, 0, nil)
		for i, row := range content.Table {
			for j, cell := range row {
				tbl.TableRows[i].TableCells[j].AddParagraph().AddText(fmt.Sprint(cell))
			}
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := doc.WriteTo(f); err != nil {
		return fmt.Errorf("write docx: %w", err)
	}
	return nil
}
