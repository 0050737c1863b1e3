package stats

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

// FormatTable lays out rows under headers with space-separated, padded
// columns. Columns listed in rightAlignCols are right aligned. When maxWidth
// is positive each line is truncated to that display width.
func FormatTable(headers []string, rows [][]string, rightAlignCols map[int]bool, maxWidth int) []string {
	colCount := len(headers)
	for _, row := range rows {
		if len(row) > colCount {
			colCount = len(row)
		}
	}
	if colCount == 0 {
		return nil
	}

	widths := make([]int, colCount)
	for i, header := range headers {
		widths[i] = runewidth.StringWidth(header)
	}
	for _, row := range rows {
		for i, cell := range row {
			if w := runewidth.StringWidth(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}

	lines := make([]string, 0, len(rows)+1)
	if len(headers) > 0 {
		lines = append(lines, formatRow(headers, widths, rightAlignCols, maxWidth))
	}
	for _, row := range rows {
		lines = append(lines, formatRow(row, widths, rightAlignCols, maxWidth))
	}
	return lines
}

func formatRow(row []string, widths []int, rightAlignCols map[int]bool, maxWidth int) string {
	var b strings.Builder
	for i, width := range widths {
		cell := ""
		if i < len(row) {
			cell = row[i]
		}
		if i > 0 {
			b.WriteByte(' ')
		}
		if rightAlignCols[i] {
			b.WriteString(runewidth.FillLeft(cell, width))
		} else {
			b.WriteString(runewidth.FillRight(cell, width))
		}
	}
	line := b.String()
	if maxWidth > 0 && runewidth.StringWidth(line) > maxWidth {
		line = runewidth.Truncate(line, maxWidth, "")
	}
	return line
}
