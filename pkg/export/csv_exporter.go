package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"
)

// Dataset defines tabular export content. Cell values may span several lines.
type Dataset struct {
	Title   string
	Headers []string
	Rows    []map[string]string
}

// CSVExporter renders Dataset records into CSV bytes.
type CSVExporter struct {
	delimiter rune
}

// NewCSVExporter builds a CSV exporter. A zero delimiter means comma.
func NewCSVExporter(delimiter rune) *CSVExporter {
	if delimiter == 0 {
		delimiter = ','
	}
	return &CSVExporter{delimiter: delimiter}
}

// Render produces CSV encoded bytes for the dataset. Multi-line cells are joined with " / ".
func (e *CSVExporter) Render(data Dataset) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("csv requires at least one header")
	}
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)
	writer.Comma = e.delimiter
	if err := writer.Write(data.Headers); err != nil {
		return nil, fmt.Errorf("write csv headers: %w", err)
	}
	for _, row := range data.Rows {
		record := make([]string, len(data.Headers))
		for i, header := range data.Headers {
			record[i] = flatten(row[header])
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

func flatten(value string) string {
	lines := strings.Split(value, "\n")
	parts := lines[:0]
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			parts = append(parts, line)
		}
	}
	return strings.Join(parts, " / ")
}
