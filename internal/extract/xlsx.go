package extract

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// extractXlsx walks every sheet row by row, joining cell values with
// tabs. Sheets are separated by headers so the producers can tell which
// table a value came from.
func extractXlsx(data []byte) (string, error) {
	f, err := xlsx.OpenBinary(data)
	if err != nil {
		return "", eris.Wrap(err, "extract: open xlsx")
	}

	var b strings.Builder
	for i, sheet := range f.Sheets {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "## Sheet: %s\n", sheet.Name)

		for _, row := range sheet.Rows {
			cells := make([]string, len(row.Cells))
			for j, cell := range row.Cells {
				cells[j] = cell.String()
			}
			line := strings.TrimSpace(strings.Join(cells, "\t"))
			if line != "" {
				b.WriteString(line + "\n")
			}
		}
	}

	return strings.TrimSpace(b.String()), nil
}
