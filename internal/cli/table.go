package cli

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"
)

const (
	columnGap = 2
	// Free-text cells (addresses, decline reasons, notification bodies) are
	// cut to this many columns.
	maxCellWidth = 48
)

// writeTable renders rows under headers. Widths are measured in terminal
// columns so names in wide scripts stay aligned. A column whose cells are
// all numeric (prices, floors, signing order) is right-aligned.
func writeTable(out io.Writer, headers []string, rows [][]string) error {
	cols := len(headers)
	for _, row := range rows {
		cols = max(cols, len(row))
	}
	if cols == 0 {
		return nil
	}

	cells := make([][]string, 0, len(rows)+1)
	if len(headers) > 0 {
		cells = append(cells, headers)
	}
	for _, row := range rows {
		fitted := make([]string, cols)
		for i := range fitted {
			if i < len(row) {
				fitted[i] = runewidth.Truncate(row[i], maxCellWidth, "…")
			}
		}
		cells = append(cells, fitted)
	}

	widths := make([]int, cols)
	numeric := make([]bool, cols)
	for i := range numeric {
		numeric[i] = len(rows) > 0
	}
	for r, row := range cells {
		for i, cell := range row {
			widths[i] = max(widths[i], runewidth.StringWidth(cell))
			if r == 0 && len(headers) > 0 {
				continue
			}
			if !isNumericCell(cell) {
				numeric[i] = false
			}
		}
	}

	w := bufio.NewWriter(out)
	for _, row := range cells {
		var line strings.Builder
		for i := 0; i < cols; i++ {
			cell := ""
			if i < len(row) {
				cell = row[i]
			}
			pad := strings.Repeat(" ", widths[i]-runewidth.StringWidth(cell))
			if numeric[i] {
				line.WriteString(pad + cell)
			} else {
				line.WriteString(cell)
				if i < cols-1 {
					line.WriteString(pad)
				}
			}
			if i < cols-1 {
				line.WriteString(strings.Repeat(" ", columnGap))
			}
		}
		if _, err := w.WriteString(strings.TrimRight(line.String(), " ") + "\n"); err != nil {
			return err
		}
	}
	return w.Flush()
}

// isNumericCell treats "-" (unset) as compatible with a numeric column.
func isNumericCell(cell string) bool {
	if cell == "-" {
		return true
	}
	_, err := strconv.ParseFloat(cell, 64)
	return err == nil
}

func formatYesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
