// Package sample generates the reference feeder/DT/meter dataset. It is served
// whenever the configured workbook cannot be read and by lossctl sample.
package sample

import (
	"context"
	"fmt"

	"gridloss/internal/lossengine/domain/record"
)

// SourceName identifies snapshots built from the generated dataset.
const SourceName = "sample"

// Headers are the canonical workbook columns, in sheet order.
var Headers = []string{
	"Region Name",
	"Feeder Name",
	"Feeder Code",
	"Feeder Day2 reading",
	"Feeder Day1 reading",
	"MF Feeder",
	"DT Name",
	"DT Code",
	"DT Day2 Reading",
	"DT Day1 Reading",
	"MF DT",
	"Meter No.",
	"Meter Day1 Reading",
	"Meter Day2 Reading",
	"Daily energy",
	"Load Data",
}

const (
	feedersPerRegion = 2
	dtsPerFeeder     = 4
	metersPerDT      = 10
)

var (
	regions = []string{"Region 1", "Region 2", "Region 3"}

	feederReadings = map[string][2]int{
		"F001": {5100, 5320},
		"F002": {6200, 6430},
		"F003": {7300, 7530},
		"F004": {8400, 8630},
		"F005": {9500, 9730},
		"F006": {10600, 10830},
	}

	dtReadings = [dtsPerFeeder][2]int{
		{1000, 1050},
		{2000, 2050},
		{3000, 3050},
		{4000, 4050},
	}

	meterAdvances = [metersPerDT]int{5, 4, 6, 3, 7, 5, 6, 4, 4, 4}
)

// Rows returns the dataset as sheet rows aligned with Headers.
func Rows() [][]any {
	rows := make([][]any, 0, len(regions)*feedersPerRegion*dtsPerFeeder*metersPerDT)
	feederIndex := 0
	for _, region := range regions {
		for f := 0; f < feedersPerRegion; f++ {
			feederIndex++
			feederCode := fmt.Sprintf("F%03d", feederIndex)
			feeder := feederReadings[feederCode]
			for d := 1; d <= dtsPerFeeder; d++ {
				dtCode := fmt.Sprintf("%sDT%03d", feederCode, d)
				dt := dtReadings[d-1]
				for m := 1; m <= metersPerDT; m++ {
					day1 := 100 * m
					rows = append(rows, []any{
						region,
						"Feeder " + feederCode,
						feederCode,
						feeder[1],
						feeder[0],
						1,
						"DT " + dtCode,
						dtCode,
						dt[1],
						dt[0],
						1,
						fmt.Sprintf("MTR-%s-%02d", dtCode, m),
						day1,
						day1 + meterAdvances[m-1],
						yesNo(m%2 == 1),
						yesNo(m%2 == 0),
					})
				}
			}
		}
	}
	return rows
}

// Records returns the dataset as source rows.
func Records() []record.Record {
	rows := Rows()
	records := make([]record.Record, 0, len(rows))
	for _, row := range rows {
		rec := make(record.Record, len(Headers))
		for i, header := range Headers {
			rec[i] = record.Field{Header: header, Value: row[i]}
		}
		records = append(records, rec)
	}
	return records
}

// Source serves the generated dataset as a record source.
type Source struct{}

// Name implements application.RecordSource.
func (Source) Name() string { return SourceName }

// Load implements application.RecordSource.
func (Source) Load(ctx context.Context) ([]record.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return Records(), nil
}

func yesNo(v bool) string {
	if v {
		return "Yes"
	}
	return "No"
}
