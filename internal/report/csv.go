// Package report renders the per-run summary artifacts.
package report

import (
	"fmt"
	"os"

	"github.com/eastgenomics/sc-wgs-monitoring/internal/domain"
	"github.com/jszwec/csvutil"
)

// CSVWriter writes the run summary consumed by the Confluence import.
type CSVWriter struct{}

func NewCSVWriter() *CSVWriter {
	return &CSVWriter{}
}

func (w *CSVWriter) WriteSummary(path string, rows []domain.SummaryRow) error {
	data, err := csvutil.Marshal(rows)
	if err != nil {
		return fmt.Errorf("failed to marshal summary rows: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write summary csv: %w", err)
	}

	return nil
}
