package extractor

import (
	"fmt"
	"strconv"
	"strings"
)

// table is a header row plus data rows, in source order.
type table struct {
	columns []string
	rows    [][]string
}

// newTable takes the first non-blank row as the header. Data rows wider than the header
// get extra "Unnamed: <idx>" columns so no value is dropped.
func newTable(raw [][]string) (table, error) {
	for len(raw) > 0 && isBlankRow(raw[0]) {
		raw = raw[1:]
	}
	if len(raw) == 0 {
		return table{}, fmt.Errorf("no columns to parse")
	}

	width := len(raw[0])
	for _, row := range raw[1:] {
		if n := usedWidth(row); n > width {
			width = n
		}
	}
	header := make([]string, width)
	copy(header, raw[0])
	return table{
		columns: normalizeHeader(header),
		rows:    raw[1:],
	}, nil
}

// usedWidth ignores trailing blank cells, e.g. from a dangling CSV delimiter.
func usedWidth(row []string) int {
	n := len(row)
	for n > 0 && strings.TrimSpace(row[n-1]) == "" {
		n--
	}
	return n
}

// normalizeHeader names blank columns "Unnamed: <idx>" and suffixes duplicates with ".1", ".2".
func normalizeHeader(header []string) []string {
	out := make([]string, len(header))
	seen := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimSpace(name)
		if name == "" {
			name = "Unnamed: " + strconv.Itoa(i)
		}
		if n, ok := seen[name]; ok {
			seen[name] = n + 1
			name = name + "." + strconv.Itoa(n+1)
		} else {
			seen[name] = 0
		}
		out[i] = name
	}
	return out
}

func (t table) render(stem string) string {
	var b strings.Builder
	b.WriteString("Información del archivo ")
	b.WriteString(stem)
	b.WriteString(":\n")

	for _, row := range t.rows {
		if isBlankRow(row) {
			continue
		}
		b.WriteString("- ")
		for i, col := range t.columns {
			if i > 0 {
				b.WriteString(", ")
			}
			value := ""
			if i < len(row) {
				value = strings.TrimSpace(row[i])
			}
			b.WriteString(col)
			b.WriteString(": ")
			b.WriteString(value)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
