package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// extractExcel renders each non-empty row as tab-separated cells. Workbooks with more
// than one sheet get the sheet name as a heading line before its rows.
func extractExcel(content []byte) (string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return "", fmt.Errorf("open Excel: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	lines := make([]string, 0)
	for _, sheet := range sheets {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return "", fmt.Errorf("get rows for sheet %q: %w", sheet, err)
		}
		if len(sheets) > 1 && len(rows) > 0 {
			lines = append(lines, sheet)
		}
		for _, row := range rows {
			cells := make([]string, len(row))
			empty := true
			for i, c := range row {
				cells[i] = strings.TrimSpace(c)
				if cells[i] != "" {
					empty = false
				}
			}
			if !empty {
				lines = append(lines, strings.Join(cells, "\t"))
			}
		}
	}
	return strings.Join(lines, "\n"), nil
}
