package network

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gridloss/internal/lossengine/domain/record"
)

// row is a test fixture in the canonical workbook layout. Nil readings are
// written as blank cells.
type row struct {
	region                 string
	feeder                 string
	feederDay1, feederDay2 any
	feederMF               any
	dt                     string
	dtDay1, dtDay2         any
	dtMF                   any
	meter                  string
	meterDay1, meterDay2   any
	daily, load            string
}

func (r row) record() record.Record {
	return record.Record{
		{Header: "Region Name", Value: r.region},
		{Header: "Feeder Name", Value: "Feeder " + r.feeder},
		{Header: "Feeder Code", Value: r.feeder},
		{Header: "Feeder Day2 reading", Value: r.feederDay2},
		{Header: "Feeder Day1 reading", Value: r.feederDay1},
		{Header: "MF Feeder", Value: r.feederMF},
		{Header: "DT Name", Value: "DT " + r.dt},
		{Header: "DT Code", Value: r.dt},
		{Header: "DT Day2 Reading", Value: r.dtDay2},
		{Header: "DT Day1 Reading", Value: r.dtDay1},
		{Header: "MF DT", Value: r.dtMF},
		{Header: "Meter No.", Value: r.meter},
		{Header: "Meter Day1 Reading", Value: r.meterDay1},
		{Header: "Meter Day2 Reading", Value: r.meterDay2},
		{Header: "Daily energy", Value: r.daily},
		{Header: "Load Data", Value: r.load},
	}
}

func readings(rows ...row) []record.Reading {
	records := make([]record.Record, 0, len(rows))
	for _, r := range rows {
		records = append(records, r.record())
	}
	return record.NormalizeAll(records, record.DefaultFieldSet())
}

func scenarioRows() []row {
	return []row{
		{region: "R1", feeder: "F1", feederDay1: 100.0, feederDay2: 150.0, feederMF: 1.0,
			dt: "D1", dtDay1: 40.0, dtDay2: 70.0, dtMF: 1.0,
			meter: "M1", meterDay1: 0.0, meterDay2: 10.0, daily: "Yes", load: "Yes"},
		{region: "R1", feeder: "F1", feederDay1: 100.0, feederDay2: 150.0, feederMF: 1.0,
			dt: "D1", dtDay1: 40.0, dtDay2: 70.0, dtMF: 1.0,
			meter: "M2", meterDay1: 0.0, meterDay2: 15.0, daily: "Yes", load: "Yes"},
	}
}

func mustCompute(t *testing.T, rows ...row) (*Model, []ResultRow) {
	t.Helper()
	model, results, err := Compute(readings(rows...))
	require.NoError(t, err)
	return model, results
}

func TestCompute_EndToEndScenario(t *testing.T) {
	model, results := mustCompute(t, scenarioRows()...)

	region, ok := model.Region("R1")
	require.True(t, ok)
	feeder, ok := model.Feeder("F1")
	require.True(t, ok)
	dt, ok := model.DT("D1")
	require.True(t, ok)

	assert.Equal(t, 30.0, dt.Metrics.DTEnergy, "latched DT reading wins over the meter sum")
	assert.Equal(t, 25.0, dt.Metrics.ConsumerEnergy)
	assert.Equal(t, 16.67, dt.Metrics.LossDtc)
	assert.Equal(t, 2, dt.Metrics.Meters)

	assert.Equal(t, 50.0, feeder.Metrics.FeederEnergy)
	assert.Equal(t, 30.0, feeder.Metrics.DTEnergy)
	assert.Equal(t, 40.0, feeder.Metrics.LossFdt)
	assert.Equal(t, 16.67, feeder.Metrics.LossDtc)
	assert.Equal(t, 50.0, feeder.Metrics.LossFc)

	assert.Equal(t, 100.0, region.Metrics.SLADailyPct)
	assert.Equal(t, 100.0, region.Metrics.SLALoadPct)
	assert.Equal(t, 1, region.Metrics.Feeders)
	assert.Equal(t, 1, region.Metrics.DTs)
	assert.Equal(t, 2, region.Metrics.Meters)

	assert.Equal(t, region.Metrics, model.Totals)

	require.Len(t, results, 2)
	fr := results[0]
	assert.True(t, fr.IsFeederRow())
	assert.Equal(t, "F1", fr.FeederCode)
	require.NotNil(t, fr.FeederE)
	assert.Equal(t, 50.0, *fr.FeederE)
	assert.Equal(t, 30.0, *fr.SumDTE)
	assert.Equal(t, 40.0, *fr.FeederToDTLoss)
	assert.Equal(t, 25.0, *fr.SumConsE)
	assert.Equal(t, 50.0, *fr.FeederToConsLoss)
	assert.Nil(t, fr.DTE)
	assert.Nil(t, fr.SumConsEForDT)
	assert.Nil(t, fr.DTToConsLoss)

	dr := results[1]
	assert.False(t, dr.IsFeederRow())
	assert.Equal(t, "F1", dr.FeederCode)
	assert.Equal(t, "D1", dr.DTCode)
	assert.Equal(t, 30.0, *dr.DTE)
	assert.Equal(t, 25.0, *dr.SumConsEForDT)
	assert.Equal(t, 16.67, *dr.DTToConsLoss)
	assert.Nil(t, dr.FeederE)
	assert.Nil(t, dr.SumDTE)
	assert.Nil(t, dr.FeederToDTLoss)
}

func TestCompute_SLADenominatorSwitch(t *testing.T) {
	base := row{region: "R", feeder: "F", dt: "D", meterDay1: 0.0, meterDay2: 1.0}
	first := base
	first.meter, first.daily = "M1", "Yes"
	second := base
	second.meter, second.daily = "M2", "No"
	repeat := base
	repeat.meter, repeat.daily = "M1", "Yes"

	model, _ := mustCompute(t, first, second, repeat)

	region, _ := model.Region("R")
	feeder, _ := model.Feeder("F")
	assert.Equal(t, 66.67, region.Metrics.SLADailyPct, "region SLA counts raw rows")
	assert.Equal(t, 50.0, feeder.Metrics.SLADailyPct, "feeder SLA counts distinct meters")
	assert.Equal(t, SLACounters{TotalRows: 3, DailyYes: 2}, model.SLA)
}

func TestCompute_LossNullVersusZero(t *testing.T) {
	model, results := mustCompute(t, row{
		region: "R", feeder: "F", feederDay1: 100.0, feederDay2: 100.0,
		dt: "D", dtDay1: 10.0, dtDay2: 20.0,
		meter: "M", meterDay1: 1.0, meterDay2: 5.0,
	})

	feeder, _ := model.Feeder("F")
	require.NotNil(t, feeder.Energy)
	assert.Equal(t, 0.0, *feeder.Energy)
	assert.Equal(t, 0.0, feeder.Metrics.FeederEnergy)
	assert.Equal(t, 0.0, feeder.Metrics.LossFdt)

	require.True(t, results[0].IsFeederRow())
	require.NotNil(t, results[0].FeederE)
	assert.Equal(t, 0.0, *results[0].FeederE)
	assert.Nil(t, results[0].FeederToDTLoss)
	assert.Nil(t, results[0].FeederToConsLoss)
}

func TestBuild_DuplicateMeterRows(t *testing.T) {
	model, _ := mustCompute(t,
		row{region: "R", feeder: "F", dt: "D", meter: "M", meterDay1: 0.0, meterDay2: 10.0, daily: "Yes"},
		row{region: "R", feeder: "F", dt: "D", meter: "M", meterDay1: 0.0, meterDay2: 99.0, daily: "No", load: "Yes"},
	)

	require.Len(t, model.Lookups.Meters, 1)
	meter, _ := model.Meter("M")
	assert.Equal(t, 10.0, *meter.Energy)
	assert.Equal(t, MeterSLA{Daily: true, Load: false}, meter.SLA)
	assert.Equal(t, 2, model.SLA.TotalRows)
	assert.Equal(t, 1, model.SLA.DailyYes)
	assert.Equal(t, 1, model.SLA.LoadYes)

	dt, _ := model.DT("D")
	assert.Len(t, dt.Meters, 1)
	feeder, _ := model.Feeder("F")
	assert.Len(t, feeder.Meters, 1)
}

func TestBuild_LatchFirstComputableReading(t *testing.T) {
	model, _ := mustCompute(t,
		row{region: "R", feeder: "F", dt: "D", meter: "M1"},
		row{region: "R", feeder: "F", feederDay1: 10.0, feederDay2: 30.0, dt: "D", dtDay1: 1.0, dtDay2: 6.0, meter: "M2"},
		row{region: "R", feeder: "F", feederDay1: 10.0, feederDay2: 90.0, dt: "D", dtDay1: 1.0, dtDay2: 100.0, meter: "M3"},
	)

	feeder, _ := model.Feeder("F")
	dt, _ := model.DT("D")
	require.NotNil(t, feeder.Energy)
	require.NotNil(t, dt.Energy)
	assert.Equal(t, 20.0, *feeder.Energy)
	assert.Equal(t, 5.0, *dt.Energy)
}

func TestAggregate_FallsBackToChildSums(t *testing.T) {
	model, results := mustCompute(t,
		row{region: "R", feeder: "F", dt: "D1", meter: "M1", meterDay1: 0.0, meterDay2: 4.0},
		row{region: "R", feeder: "F", dt: "D1", meter: "M2", meterDay1: 0.0, meterDay2: 6.0},
		row{region: "R", feeder: "F", dt: "D2", dtDay1: 0.0, dtDay2: 20.0, meter: "M3", meterDay1: 0.0, meterDay2: 15.0},
	)

	d1, _ := model.DT("D1")
	assert.Nil(t, d1.Energy)
	assert.Equal(t, 10.0, d1.Metrics.DTEnergy)
	assert.Equal(t, 0.0, d1.Metrics.LossDtc)

	feeder, _ := model.Feeder("F")
	assert.Nil(t, feeder.Energy)
	assert.Equal(t, 30.0, feeder.Metrics.DTEnergy)
	assert.Equal(t, 30.0, feeder.Metrics.FeederEnergy)
	assert.Equal(t, 25.0, feeder.Metrics.ConsumerEnergy)
	assert.Equal(t, 0.0, feeder.Metrics.LossFdt)
	assert.Equal(t, 16.67, feeder.Metrics.LossFc)

	// the flattened table never uses fallback sums
	require.Len(t, results, 3)
	assert.Nil(t, results[0].FeederE)
	assert.Equal(t, 20.0, *results[0].SumDTE)
	assert.Nil(t, results[0].FeederToDTLoss)
	assert.Equal(t, "D1", results[1].DTCode)
	assert.Nil(t, results[1].DTE)
	assert.Equal(t, 10.0, *results[1].SumConsEForDT)
	assert.Nil(t, results[1].DTToConsLoss)
	assert.Equal(t, 25.0, *results[2].DTToConsLoss)
}

func TestFlatten_ExcludesNegativeAssets(t *testing.T) {
	model, results := mustCompute(t,
		row{region: "R", feeder: "F", feederDay1: 0.0, feederDay2: 100.0,
			dt: "D1", dtDay1: 0.0, dtDay2: 50.0, dtMF: -1.0, meter: "M1", meterDay1: 0.0, meterDay2: 5.0},
		row{region: "R", feeder: "F", feederDay1: 0.0, feederDay2: 100.0,
			dt: "D2", dtDay1: 0.0, dtDay2: 40.0, meter: "M2", meterDay1: 0.0, meterDay2: 5.0},
	)

	d1, _ := model.DT("D1")
	require.NotNil(t, d1.Energy)
	assert.Equal(t, -50.0, *d1.Energy)
	feeder, _ := model.Feeder("F")
	assert.Equal(t, -10.0, feeder.Metrics.DTEnergy, "the aggregator keeps the asset")

	assert.Equal(t, 40.0, *results[0].SumDTE, "the flattener drops it")
	assert.Equal(t, 60.0, *results[0].FeederToDTLoss)
	assert.Nil(t, results[1].DTE)
	assert.Nil(t, results[1].DTToConsLoss)
}

func TestBuild_PlaceholderEntities(t *testing.T) {
	model := Build(record.NormalizeAll([]record.Record{{}, {}}, record.DefaultFieldSet()))

	require.Len(t, model.Regions, 1)
	assert.Equal(t, record.UnknownRegion, model.Regions[0].Name)
	_, ok := model.Feeder(record.UnknownFeeder)
	assert.True(t, ok)
	_, ok = model.DT(record.UnknownDT)
	assert.True(t, ok)
	_, ok = model.Meter(record.UnknownMeter)
	assert.True(t, ok)
	assert.Equal(t, 2, model.SLA.TotalRows)
}

func TestBuild_FirstSeenOrder(t *testing.T) {
	model, results := mustCompute(t,
		row{region: "B", feeder: "F2", dt: "D2", meter: "M2"},
		row{region: "A", feeder: "F1", dt: "D1", meter: "M1"},
		row{region: "B", feeder: "F3", dt: "D3", meter: "M3"},
	)

	require.Len(t, model.Regions, 2)
	assert.Equal(t, "B", model.Regions[0].Name)
	assert.Equal(t, "A", model.Regions[1].Name)
	require.Len(t, model.Regions[0].Feeders, 2)
	assert.Equal(t, "F2", model.Regions[0].Feeders[0].ID)
	assert.Equal(t, "F3", model.Regions[0].Feeders[1].ID)

	codes := make([]string, 0, len(results))
	for _, r := range results {
		codes = append(codes, r.FeederCode+"/"+r.DTCode)
	}
	assert.Equal(t, []string{"F2/", "F1/", "F3/", "F2/D2", "F1/D1", "F3/D3"}, codes)
}

func TestCompute_Idempotent(t *testing.T) {
	rows := append(scenarioRows(), row{region: "R2", feeder: "F9", dt: "D9", meter: "M9", meterDay1: 3.0, meterDay2: 7.0, load: "Yes"})

	first, firstResults := mustCompute(t, rows...)
	second, secondResults := mustCompute(t, rows...)

	assert.Equal(t, first.Totals, second.Totals)
	assert.Equal(t, first.SLA, second.SLA)
	require.Len(t, second.Regions, len(first.Regions))
	for i := range first.Regions {
		assert.Equal(t, first.Regions[i].Metrics, second.Regions[i].Metrics)
	}
	assertSameEntities(t, first, second)
	assert.Equal(t, firstResults, secondResults)
}

// assertSameEntities compares every feeder, DT and meter of two models by
// identifier, whatever order they were created in.
func assertSameEntities(t *testing.T, want, got *Model) {
	t.Helper()
	require.Len(t, got.Lookups.Feeders, len(want.Lookups.Feeders))
	for _, feeder := range want.Lookups.Feeders {
		other, ok := got.Feeder(feeder.ID)
		require.True(t, ok, feeder.ID)
		assert.Equal(t, feeder.Metrics, other.Metrics, feeder.ID)
		assert.Equal(t, feeder.Energy, other.Energy, feeder.ID)
		assert.Equal(t, feeder.Region, other.Region, feeder.ID)
	}
	require.Len(t, got.Lookups.DTs, len(want.Lookups.DTs))
	for _, dt := range want.Lookups.DTs {
		other, ok := got.DT(dt.ID)
		require.True(t, ok, dt.ID)
		assert.Equal(t, dt.Metrics, other.Metrics, dt.ID)
		assert.Equal(t, dt.Energy, other.Energy, dt.ID)
		assert.Equal(t, dt.FeederID, other.FeederID, dt.ID)
	}
	require.Len(t, got.Lookups.Meters, len(want.Lookups.Meters))
	for _, meter := range want.Lookups.Meters {
		other, ok := got.Meter(meter.ID)
		require.True(t, ok, meter.ID)
		assert.Equal(t, meter.Energy, other.Energy, meter.ID)
		assert.Equal(t, meter.SLA, other.SLA, meter.ID)
	}
}

func TestCompute_RowOrderInvariance(t *testing.T) {
	rows := append(scenarioRows(),
		row{region: "R1", feeder: "F2", feederDay1: 0.0, feederDay2: 80.0, dt: "D2", dtDay1: 0.0, dtDay2: 70.0,
			meter: "M3", meterDay1: 0.0, meterDay2: 30.0, daily: "No", load: "Yes"},
		row{region: "R2", feeder: "F3", dt: "D3", meter: "M4", meterDay1: 0.0, meterDay2: 12.0, daily: "Yes"},
	)
	reversed := make([]row, len(rows))
	for i, r := range rows {
		reversed[len(rows)-1-i] = r
	}

	forward, forwardResults := mustCompute(t, rows...)
	backward, backwardResults := mustCompute(t, reversed...)

	assert.Equal(t, forward.SLA, backward.SLA)
	assert.Equal(t, forward.Totals, backward.Totals)
	for _, region := range forward.Regions {
		other, ok := backward.Region(region.Name)
		require.True(t, ok)
		assert.Equal(t, region.SLA, other.SLA)
		assert.Equal(t, region.Metrics, other.Metrics)
	}
	assertSameEntities(t, forward, backward)
	assert.ElementsMatch(t, forwardResults, backwardResults)
}

func TestAggregate_NilModel(t *testing.T) {
	assert.ErrorIs(t, Aggregate(nil), ErrNilModel)
	assert.ErrorIs(t, Aggregate(&Model{}), ErrNilModel)
}
