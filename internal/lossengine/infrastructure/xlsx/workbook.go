package xlsx

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"gridloss/internal/lossengine/domain/record"
)

// ErrNoSheet is returned when a workbook has no worksheet.
var ErrNoSheet = errors.New("xlsx: workbook has no sheet")

// PickSheet returns the first sheet whose name contains "data", ignoring
// case, or the first sheet.
func PickSheet(names []string) string {
	for _, name := range names {
		if strings.Contains(strings.ToLower(name), "data") {
			return name
		}
	}
	if len(names) == 0 {
		return ""
	}
	return names[0]
}

// ReadRecords parses a workbook. The first row of the chosen sheet holds the
// headers; every later non-blank row becomes one record with blank cells set
// to nil. Cell values are kept as their raw text.
func ReadRecords(r io.Reader) ([]record.Record, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("xlsx: open: %w", err)
	}
	defer func() { _ = f.Close() }()
	return readFile(f)
}

func readFile(f *excelize.File) ([]record.Record, error) {
	sheet := PickSheet(f.GetSheetList())
	if sheet == "" {
		return nil, ErrNoSheet
	}
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("xlsx: read sheet %q: %w", sheet, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	headers := rows[0]
	records := make([]record.Record, 0, len(rows)-1)
	for _, cells := range rows[1:] {
		if blank(cells) {
			continue
		}
		rec := make(record.Record, len(headers))
		for i, header := range headers {
			rec[i] = record.Field{Header: strings.TrimSpace(header)}
			if i < len(cells) && cells[i] != "" {
				rec[i].Value = cells[i]
			}
		}
		records = append(records, rec)
	}
	return records, nil
}

func blank(cells []string) bool {
	for _, cell := range cells {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// WriteRecords writes headers and rows to a single-sheet workbook.
func WriteRecords(w io.Writer, sheet string, headers []string, rows [][]any) error {
	if sheet == "" {
		sheet = "Data"
	}
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return err
	}

	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return err
	}
	header := make([]any, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	if err := sw.SetRow("A1", header); err != nil {
		return err
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, row); err != nil {
			return err
		}
	}
	if err := sw.Flush(); err != nil {
		return err
	}
	return f.Write(w)
}

// WorkbookSource loads records from a workbook on disk.
type WorkbookSource struct {
	Path string
}

// Name implements application.RecordSource.
func (s WorkbookSource) Name() string { return filepath.Base(s.Path) }

// Load implements application.RecordSource.
func (s WorkbookSource) Load(ctx context.Context) ([]record.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.Path == "" {
		return nil, errors.New("xlsx: empty workbook path")
	}
	f, err := excelize.OpenFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("xlsx: open %s: %w", s.Path, err)
	}
	defer func() { _ = f.Close() }()
	return readFile(f)
}

// UploadSource loads records from an uploaded workbook body.
type UploadSource struct {
	SourceName string
	Body       []byte
}

// Name implements application.RecordSource.
func (s UploadSource) Name() string {
	if s.SourceName == "" {
		return "upload"
	}
	return s.SourceName
}

// Load implements application.RecordSource.
func (s UploadSource) Load(ctx context.Context) ([]record.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(s.Body) == 0 {
		return nil, errors.New("xlsx: empty upload")
	}
	return ReadRecords(bytes.NewReader(s.Body))
}
