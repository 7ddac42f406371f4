package export

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"gridloss/internal/lossengine/application"
	"gridloss/internal/lossengine/domain/network"
	"gridloss/internal/lossengine/domain/record"
	"gridloss/internal/lossengine/infrastructure/sample"
)

func sampleSnapshot(t *testing.T) *application.Snapshot {
	t.Helper()
	model, results, err := network.Compute(record.NormalizeAll(sample.Records(), record.DefaultFieldSet()))
	require.NoError(t, err)
	return &application.Snapshot{
		ID:       "3b0f4c8e-0000-4000-8000-000000000001",
		Version:  7,
		Source:   sample.SourceName,
		BuiltAt:  time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
		RowCount: 240,
		Model:    model,
		Results:  results,
	}
}

func TestBuildResultsCSV(t *testing.T) {
	snap := sampleSnapshot(t)
	data, err := Build(FormatCSV, snap)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 31)
	assert.Equal(t, strings.Join(ResultColumns, ","), lines[0])
	assert.Equal(t, "F001,220,200,9.09,192,12.73,,,,", lines[1])
	assert.Equal(t, "F001,,,,,,F001DT001,50,48,4", lines[7])
}

func TestBuildResultsXLSX(t *testing.T) {
	snap := sampleSnapshot(t)
	data, err := Build(FormatXLSX, snap)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{"summary", "regions", "results"}, f.GetSheetList())

	version, err := f.GetCellValue("summary", "B3")
	require.NoError(t, err)
	assert.Equal(t, "7", version)

	regions, err := f.GetRows("regions")
	require.NoError(t, err)
	require.Len(t, regions, 4)
	assert.Equal(t, "Region 1", regions[1][0])

	results, err := f.GetRows("results")
	require.NoError(t, err)
	assert.Len(t, results, 31)
}

func TestWriteSummarySheet(t *testing.T) {
	snap := sampleSnapshot(t)
	f := excelize.NewFile()
	defer f.Close()

	require.NoError(t, writeSummarySheet(f, "Sheet1", snap))
	rows, err := f.GetRows("Sheet1")
	require.NoError(t, err)
	require.Len(t, rows, 17)
	assert.Equal(t, []string{"Energy Loss Report"}, rows[0])
	assert.Equal(t, []string{"Source", sample.SourceName}, rows[3])
	assert.Equal(t, "Loss Feeder to Consumer (%)", rows[14][0])

	err = writeSummarySheet(f, "missing", snap)
	var notExist excelize.ErrSheetNotExist
	assert.ErrorAs(t, err, &notExist)
	assert.ErrorContains(t, err, "summary row 1")
}

func TestBuildResultsPDF(t *testing.T) {
	data, err := Build(FormatPDF, sampleSnapshot(t))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF")))
}

func TestBuild_Errors(t *testing.T) {
	_, err := Build("docx", sampleSnapshot(t))
	assert.ErrorIs(t, err, ErrUnknownFormat)
	_, err = Build(FormatCSV, nil)
	assert.Error(t, err)
	assert.Equal(t, "text/csv", ContentType(FormatCSV))
}
