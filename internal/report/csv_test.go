package report_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/eastgenomics/sc-wgs-monitoring/internal/domain"
	"github.com/eastgenomics/sc-wgs-monitoring/internal/report"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVWriter_WriteSummary(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "250101_sc_wgs_workbooks.csv")

	writer := report.NewCSVWriter()

	err := writer.WriteSummary(path, []domain.SummaryRow{
		{Name: "S001", DateJobStarted: "250101"},
		{Name: "S002", DateJobStarted: "250101"},
	})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "name,date_job_started\nS001,250101\nS002,250101\n", string(data))
}
