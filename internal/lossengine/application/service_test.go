package application_test

import (
	"bytes"
	"context"
	"errors"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gridloss/internal/lossengine/application"
	"gridloss/internal/lossengine/application/eventbus"
	"gridloss/internal/lossengine/application/events"
	"gridloss/internal/lossengine/domain/network"
	"gridloss/internal/lossengine/domain/record"
	"gridloss/internal/lossengine/infrastructure/memory"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

type brokenSource struct{}

func (brokenSource) Name() string { return "broken.xlsx" }

func (brokenSource) Load(context.Context) ([]record.Record, error) {
	return nil, errors.New("open broken.xlsx: no such file")
}

func reading(region, feeder string, feederDay2 float64, dt string, dtDay2 float64, meter string, meterDay2 float64, daily, load string) record.Record {
	return record.FromMap(map[string]any{
		"Region Name":         region,
		"Feeder Code":         feeder,
		"Feeder Day1 reading": 0.0,
		"Feeder Day2 reading": feederDay2,
		"DT Code":             dt,
		"DT Day1 Reading":     0.0,
		"DT Day2 Reading":     dtDay2,
		"Meter No.":           meter,
		"Meter Day1 Reading":  0.0,
		"Meter Day2 Reading":  meterDay2,
		"Daily energy":        daily,
		"Load Data":           load,
	})
}

func fixture() []record.Record {
	return []record.Record{
		reading("North", "F1", 100, "D1", 98, "M1", 50, "Yes", "Yes"),
		reading("North", "F1", 100, "D1", 98, "M2", 45, "Yes", "No"),
		reading("North", "F1", 100, "D1", 98, "D2", 1, "Yes", "Yes"),
		reading("South", "F2", 100, "D2", 90, "M3", 80, "No", "No"),
		reading("East", "F3", 100, "D3", 100, "M4", 99, "Yes", "Yes"),
	}
}

type harness struct {
	repo    *memory.SnapshotRepository
	bus     *eventbus.InMemoryBus
	rebuild *application.RebuildService
	query   *application.QueryService
	built   []events.SnapshotRebuilt
	failed  []events.RebuildFailed
}

func newHarness(t *testing.T, opts ...application.RebuildOption) *harness {
	t.Helper()
	h := &harness{
		repo: memory.NewSnapshotRepository(0),
		bus:  eventbus.NewInMemoryBus(),
	}
	eventbus.On(h.bus, func(_ context.Context, evt events.SnapshotRebuilt) error {
		h.built = append(h.built, evt)
		return nil
	})
	eventbus.On(h.bus, func(_ context.Context, evt events.RebuildFailed) error {
		h.failed = append(h.failed, evt)
		return nil
	})

	base := []application.RebuildOption{
		application.WithClock(fixedClock{now: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)}),
		application.WithLogger(log.New(&bytes.Buffer{}, "", 0)),
	}
	var err error
	h.rebuild, err = application.NewRebuildService(h.repo, h.bus, append(base, opts...)...)
	require.NoError(t, err)
	h.query, err = application.NewQueryService(h.repo, network.DefaultBands())
	require.NoError(t, err)
	return h
}

func TestNewRebuildService_RejectsNilDependencies(t *testing.T) {
	_, err := application.NewRebuildService(nil, eventbus.NewInMemoryBus())
	assert.Error(t, err)
	_, err = application.NewRebuildService(memory.NewSnapshotRepository(0), nil)
	assert.Error(t, err)
	_, err = application.NewQueryService(memory.NewSnapshotRepository(0), network.Bands{LossGreenMax: 9, LossAmberMax: 1})
	assert.ErrorIs(t, err, network.ErrInvalidThresholds)
}

func TestRebuild_PublishesVersionedSnapshots(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first, err := h.rebuild.Rebuild(ctx, "upload", fixture())
	require.NoError(t, err)
	second, err := h.rebuild.Rebuild(ctx, "upload", fixture()[:1])
	require.NoError(t, err)

	assert.Equal(t, int64(1), first.Version)
	assert.Equal(t, int64(2), second.Version)
	assert.NotEqual(t, first.ID, second.ID)
	assert.NotSame(t, first.Model, second.Model)
	assert.Equal(t, int64(2), h.rebuild.Version())

	require.Len(t, h.built, 2)
	assert.Equal(t, first.ID, h.built[0].SnapshotID)
	assert.Equal(t, 5, h.built[0].RowCount)
	assert.Equal(t, 3, h.built[0].Regions)
	assert.Equal(t, 1, h.built[1].Regions)

	// the earlier snapshot is untouched by the later rebuild
	old, err := h.query.Snapshot(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, old.Model.Regions, 3)

	summary, err := h.query.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), summary.Version)
	assert.Equal(t, 1, summary.RowCount)
}

func TestRebuildFrom_UsesFallbackSource(t *testing.T) {
	h := newHarness(t, application.WithFallback(application.StaticSource{SourceName: "sample", Records: fixture()}))

	snap, err := h.rebuild.RebuildFrom(context.Background(), brokenSource{})
	require.NoError(t, err)
	assert.True(t, snap.Fallback)
	assert.Equal(t, "sample", snap.Source)
	require.Len(t, h.built, 1)
	assert.True(t, h.built[0].Fallback)
	assert.Empty(t, h.failed)
}

func TestRebuildFrom_WithoutFallbackKeepsPreviousSnapshot(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.rebuild.Rebuild(ctx, "upload", fixture())
	require.NoError(t, err)

	_, err = h.rebuild.RebuildFrom(ctx, brokenSource{})
	require.Error(t, err)
	require.Len(t, h.failed, 1)
	assert.Equal(t, "broken.xlsx", h.failed[0].Source)

	latest, err := h.query.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), latest.Version)

	_, err = h.rebuild.RebuildFrom(ctx, nil)
	assert.ErrorIs(t, err, application.ErrNilSource)
}

func TestQuery_NoSnapshotYet(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.query.Summary(ctx)
	assert.ErrorIs(t, err, application.ErrSnapshotNotFound)
	_, err = h.query.Search(ctx, "M1")
	assert.ErrorIs(t, err, application.ErrSnapshotNotFound)
}

func TestQuery_AtPinsVersion(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.rebuild.Rebuild(ctx, "upload", fixture())
	require.NoError(t, err)
	_, err = h.rebuild.Rebuild(ctx, "upload", fixture()[:1])
	require.NoError(t, err)

	pinned := h.query.At(1)
	assert.Equal(t, int64(1), pinned.Version())
	assert.Zero(t, h.query.Version())

	summary, err := pinned.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), summary.Version)
	assert.Equal(t, 3, summary.Regions)

	rows, err := pinned.Regions(ctx, application.RegionQuery{})
	require.NoError(t, err)
	assert.Len(t, rows, 3)

	latest, err := h.query.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), latest.Version)

	versions, err := h.query.Versions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, versions)

	_, err = h.query.At(9).Summary(ctx)
	assert.ErrorIs(t, err, application.ErrVersionNotFound)
	assert.NotErrorIs(t, err, application.ErrSnapshotNotFound)
}

func TestQuery_RegionsFilterAndSort(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.rebuild.Rebuild(ctx, "upload", fixture())
	require.NoError(t, err)

	names := func(rows []application.RegionRow) []string {
		out := make([]string, 0, len(rows))
		for _, r := range rows {
			out = append(out, r.Region)
		}
		return out
	}

	rows, err := h.query.Regions(ctx, application.RegionQuery{})
	require.NoError(t, err)
	assert.Equal(t, []string{"North", "South", "East"}, names(rows))
	assert.Equal(t, 4.0, rows[0].LossFc)
	assert.Equal(t, network.BandAmber, rows[0].LossBand)
	assert.Equal(t, network.BandRed, rows[1].SLABand)

	rows, err = h.query.Regions(ctx, application.RegionQuery{SortKey: "lossFc"})
	require.NoError(t, err)
	assert.Equal(t, []string{"East", "North", "South"}, names(rows))

	rows, err = h.query.Regions(ctx, application.RegionQuery{SortKey: "lossFc", Descending: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"South", "North", "East"}, names(rows))

	rows, err = h.query.Regions(ctx, application.RegionQuery{SortKey: "region"})
	require.NoError(t, err)
	assert.Equal(t, []string{"East", "North", "South"}, names(rows))

	rows, err = h.query.Regions(ctx, application.RegionQuery{LossBand: network.BandRed})
	require.NoError(t, err)
	assert.Equal(t, []string{"South"}, names(rows))

	rows, err = h.query.Regions(ctx, application.RegionQuery{SLABand: network.BandGreen})
	require.NoError(t, err)
	assert.Equal(t, []string{"North", "East"}, names(rows))

	rows, err = h.query.Regions(ctx, application.RegionQuery{Region: "East"})
	require.NoError(t, err)
	assert.Equal(t, []string{"East"}, names(rows))

	_, err = h.query.Regions(ctx, application.RegionQuery{SortKey: "colour"})
	assert.ErrorIs(t, err, application.ErrInvalidSortKey)
	assert.Contains(t, application.SortKeys(), "slaDaily")
}

func TestQuery_SearchOrder(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.rebuild.Rebuild(ctx, "upload", fixture())
	require.NoError(t, err)

	cases := []struct {
		term string
		want application.Match
	}{
		{term: "M3", want: application.Match{Kind: application.KindMeter, ID: "M3"}},
		{term: " D2 ", want: application.Match{Kind: application.KindMeter, ID: "D2"}},
		{term: "D3", want: application.Match{Kind: application.KindDT, ID: "D3"}},
		{term: "F2", want: application.Match{Kind: application.KindFeeder, ID: "F2"}},
		{term: "South", want: application.Match{Kind: application.KindRegion, ID: "South"}},
	}
	for _, tc := range cases {
		got, err := h.query.Search(ctx, tc.term)
		require.NoError(t, err, tc.term)
		assert.Equal(t, tc.want, got, tc.term)
	}

	_, err = h.query.Search(ctx, "nowhere")
	assert.ErrorIs(t, err, application.ErrNoMatch)
	_, err = h.query.Search(ctx, "  ")
	assert.ErrorIs(t, err, application.ErrEmptyQuery)
}

func TestQuery_Entities(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.rebuild.Rebuild(ctx, "upload", fixture())
	require.NoError(t, err)

	region, err := h.query.Region(ctx, "North")
	require.NoError(t, err)
	assert.Equal(t, []string{"F1"}, region.Feeders)
	assert.Equal(t, 3, region.SLA.TotalRows)

	feeder, err := h.query.Feeder(ctx, "F1")
	require.NoError(t, err)
	assert.Equal(t, []string{"D1"}, feeder.DTs)
	assert.Equal(t, 2.0, feeder.Metrics.LossFdt)
	assert.Equal(t, network.BandAmber, feeder.LossBand)

	dt, err := h.query.DT(ctx, "D1")
	require.NoError(t, err)
	assert.Equal(t, "North", dt.Region)
	assert.Equal(t, []string{"M1", "M2", "D2"}, dt.Meters)

	meter, err := h.query.Meter(ctx, "M4")
	require.NoError(t, err)
	assert.Equal(t, "East", meter.Region)
	assert.Equal(t, "D3", meter.DTID)
	require.NotNil(t, meter.Energy)
	assert.Equal(t, 99.0, *meter.Energy)

	_, err = h.query.Feeder(ctx, "F404")
	assert.ErrorIs(t, err, application.ErrNotFound)

	results, err := h.query.Results(ctx, "F2")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.True(t, results[0].IsFeederRow())
	assert.Equal(t, "D2", results[1].DTCode)
}
