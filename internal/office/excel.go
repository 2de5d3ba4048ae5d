package office

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

// WriteExcel renders content as an .xlsx file at path.
func WriteExcel(path string, content ExcelContent) error {
	f := excelize.NewFile()
	defer f.Close()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"DDDDDD"}, Pattern: 1},
		Alignment: &excelize.Alignment{
			Horizontal: "left",
			Vertical:   "center",
		},
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	sheets := content.Sheets
	if len(sheets) == 0 {
		sheets = []SheetContent{{Name: "Sheet1", Data: [][]any{{"(no data)"}}}}
	}

	for i, sheet := range sheets {
		name := sheet.Name
		if name == "" {
			name = fmt.Sprintf("Sheet%d", i+1)
		}
		if i == 0 {
			// Rename the default sheet instead of creating a second one.
			if name != "Sheet1" {
				if err := f.SetSheetName("Sheet1", name); err != nil {
					return fmt.Errorf("rename sheet: %w", err)
				}
			}
		} else if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("create sheet %q: %w", name, err)
		}

		for rowIdx, row := range sheet.Data {
			for colIdx, value := range row {
				cell, err := excelize.CoordinatesToCellName(colIdx+1, rowIdx+1)
				if err != nil {
					return err
				}
				if err := f.SetCellValue(name, cell, value); err != nil {
					return fmt.Errorf("set cell %s: %w", cell, err)
				}
			}
			if rowIdx == 0 && len(row) > 0 {
				last, _ := excelize.CoordinatesToCellName(len(row), 1)
				if err := f.SetCellStyle(name, "A1", last, headerStyle); err != nil {
					return fmt.Errorf("style header row: %w", err)
				}
			}
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}
