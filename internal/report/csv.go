package report

import (
	"bytes"
	"encoding/csv"
	"fmt"

	"github.com/atinyakov/commlog/internal/models"
)

// CSV renders comma-separated reports that spreadsheet tools open directly.
type CSV struct{}

// ContentType implements Renderer.
func (CSV) ContentType() string { return "text/csv; charset=utf-8" }

// Extension implements Renderer.
func (CSV) Extension() string { return "csv" }

// Single implements Renderer.
func (c CSV) Single(l models.Log) ([]byte, error) {
	return c.write([]models.Log{l})
}

// Summary implements Renderer. The title is not part of the CSV body.
func (c CSV) Summary(_ string, logs []models.Log) ([]byte, error) {
	return c.write(logs)
}

func (CSV) write(logs []models.Log) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(Columns); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	for _, l := range logs {
		if err := w.Write(Row(l)); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}
