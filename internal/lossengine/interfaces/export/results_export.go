package export

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	"gridloss/internal/lossengine/application"
	"gridloss/internal/lossengine/domain/network"
)

// Supported export formats.
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
	FormatPDF  = "pdf"
)

// ErrUnknownFormat is returned for an unsupported export format.
var ErrUnknownFormat = errors.New("export: unknown format")

// ResultColumns are the flattened loss table headers.
var ResultColumns = []string{
	"Feeder_Code",
	"Feeder_E",
	"Sum_DT_E",
	"Feeder_to_DT_Loss",
	"Sum_Cons_E",
	"Feeder_to_Cons_Loss",
	"DT_Code",
	"DT_E",
	"Sum_Cons_E_for_DT",
	"DT_to_Cons_Loss",
}

// ContentType returns the MIME type of a format.
func ContentType(format string) string {
	switch format {
	case FormatCSV:
		return "text/csv"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatPDF:
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}

// Build renders a snapshot in the given format.
func Build(format string, snap *application.Snapshot) ([]byte, error) {
	if snap == nil || snap.Model == nil {
		return nil, errors.New("export: nil snapshot")
	}
	switch format {
	case FormatCSV:
		return BuildResultsCSV(snap.Results)
	case FormatXLSX:
		return BuildResultsXLSX(snap)
	case FormatPDF:
		return BuildResultsPDF(snap)
	default:
		return nil, ErrUnknownFormat
	}
}

// BuildResultsCSV renders the flattened table. Empty cells stand for values
// that are not applicable or unknown.
func BuildResultsCSV(rows []network.ResultRow) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(ResultColumns); err != nil {
		return nil, err
	}
	for _, row := range rows {
		if err := w.Write(resultCells(row)); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildResultsXLSX renders summary, regions and results sheets.
func BuildResultsXLSX(snap *application.Snapshot) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	summarySheet := "summary"
	regionsSheet := "regions"
	resultsSheet := "results"
	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(regionsSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(resultsSheet); err != nil {
		return nil, err
	}

	if err := writeSummarySheet(f, summarySheet, snap); err != nil {
		return nil, err
	}

	regionHeader := []any{"Region", "Feeders", "DTs", "Meters", "Feeder Energy", "DT Energy", "Consumer Energy",
		"Loss F-DT (%)", "Loss DT-C (%)", "Loss F-C (%)", "SLA Daily (%)", "SLA Load (%)"}
	if err := f.SetSheetRow(regionsSheet, "A1", &regionHeader); err != nil {
		return nil, err
	}
	for i, region := range snap.Model.Regions {
		m := region.Metrics
		values := []any{region.Name, m.Feeders, m.DTs, m.Meters, m.FeederEnergy, m.DTEnergy, m.ConsumerEnergy,
			m.LossFdt, m.LossDtc, m.LossFc, m.SLADailyPct, m.SLALoadPct}
		if err := f.SetSheetRow(regionsSheet, fmt.Sprintf("A%d", i+2), &values); err != nil {
			return nil, err
		}
	}

	resultHeader := make([]any, len(ResultColumns))
	for i, c := range ResultColumns {
		resultHeader[i] = c
	}
	if err := f.SetSheetRow(resultsSheet, "A1", &resultHeader); err != nil {
		return nil, err
	}
	for i, row := range snap.Results {
		values := []any{
			row.FeederCode, numberCell(row.FeederE), numberCell(row.SumDTE), numberCell(row.FeederToDTLoss),
			numberCell(row.SumConsE), numberCell(row.FeederToConsLoss), row.DTCode, numberCell(row.DTE),
			numberCell(row.SumConsEForDT), numberCell(row.DTToConsLoss),
		}
		if err := f.SetSheetRow(resultsSheet, fmt.Sprintf("A%d", i+2), &values); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// writeSummarySheet fills sheet with one label/value pair per row.
func writeSummarySheet(f *excelize.File, sheet string, snap *application.Snapshot) error {
	totals := snap.Model.Totals
	summary := [][]any{
		{"Energy Loss Report"},
		{"Snapshot", snap.ID},
		{"Version", snap.Version},
		{"Source", snap.Source},
		{"Built", snap.BuiltAt.Format(time.RFC3339)},
		{"Rows", snap.RowCount},
		{"Feeders", totals.Feeders},
		{"DTs", totals.DTs},
		{"Meters", totals.Meters},
		{"Feeder Energy", totals.FeederEnergy},
		{"DT Energy", totals.DTEnergy},
		{"Consumer Energy", totals.ConsumerEnergy},
		{"Loss Feeder to DT (%)", totals.LossFdt},
		{"Loss DT to Consumer (%)", totals.LossDtc},
		{"Loss Feeder to Consumer (%)", totals.LossFc},
		{"SLA Daily (%)", totals.SLADailyPct},
		{"SLA Load (%)", totals.SLALoadPct},
	}
	for i, line := range summary {
		if err := f.SetSheetRow(sheet, fmt.Sprintf("A%d", i+1), &line); err != nil {
			return fmt.Errorf("export: summary row %d: %w", i+1, err)
		}
	}
	return nil
}

// BuildResultsPDF renders the region table followed by the feeder rows of
// the flattened table.
func BuildResultsPDF(snap *application.Snapshot) ([]byte, error) {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	totals := snap.Model.Totals
	pdf.Cell(0, 8, "Energy Loss Report")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Snapshot: %s (v%d)", snap.ID, snap.Version))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Source: %s", snap.Source))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Built: %s", snap.BuiltAt.Format(time.RFC3339)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Feeders %d / DTs %d / Meters %d / Rows %d", totals.Feeders, totals.DTs, totals.Meters, snap.RowCount))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Loss F-DT %.2f%%  DT-C %.2f%%  F-C %.2f%%", totals.LossFdt, totals.LossDtc, totals.LossFc))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("SLA daily %.2f%%  load %.2f%%", totals.SLADailyPct, totals.SLALoadPct))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 9)
	for _, h := range []string{"Region", "Feeders", "DTs", "Meters", "Feeder E", "DT E", "Cons E", "F-DT %", "DT-C %", "F-C %", "SLA D %", "SLA L %"} {
		pdf.CellFormat(22, 6, h, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 9)
	for _, region := range snap.Model.Regions {
		m := region.Metrics
		pdf.CellFormat(22, 6, region.Name, "1", 0, "L", false, 0, "")
		for _, v := range []string{
			strconv.Itoa(m.Feeders), strconv.Itoa(m.DTs), strconv.Itoa(m.Meters),
			fmt.Sprintf("%.2f", m.FeederEnergy), fmt.Sprintf("%.2f", m.DTEnergy), fmt.Sprintf("%.2f", m.ConsumerEnergy),
			fmt.Sprintf("%.2f", m.LossFdt), fmt.Sprintf("%.2f", m.LossDtc), fmt.Sprintf("%.2f", m.LossFc),
			fmt.Sprintf("%.2f", m.SLADailyPct), fmt.Sprintf("%.2f", m.SLALoadPct),
		} {
			pdf.CellFormat(22, 6, v, "1", 0, "R", false, 0, "")
		}
		pdf.Ln(-1)
	}

	pdf.Ln(6)
	pdf.SetFont("Arial", "B", 9)
	for _, h := range []string{"Feeder", "Feeder E", "Sum DT E", "F-DT Loss %", "Sum Cons E", "F-C Loss %"} {
		pdf.CellFormat(30, 6, h, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 9)
	for _, row := range snap.Results {
		if !row.IsFeederRow() {
			continue
		}
		pdf.CellFormat(30, 6, row.FeederCode, "1", 0, "L", false, 0, "")
		for _, v := range []*float64{row.FeederE, row.SumDTE, row.FeederToDTLoss, row.SumConsE, row.FeederToConsLoss} {
			pdf.CellFormat(30, 6, formatNumber(v), "1", 0, "R", false, 0, "")
		}
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func resultCells(row network.ResultRow) []string {
	return []string{
		row.FeederCode,
		formatNumber(row.FeederE),
		formatNumber(row.SumDTE),
		formatNumber(row.FeederToDTLoss),
		formatNumber(row.SumConsE),
		formatNumber(row.FeederToConsLoss),
		row.DTCode,
		formatNumber(row.DTE),
		formatNumber(row.SumConsEForDT),
		formatNumber(row.DTToConsLoss),
	}
}

func formatNumber(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func numberCell(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}
