package application

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/samber/lo"

	"gridloss/internal/lossengine/domain/network"
)

// Entity kinds returned by Search.
const (
	KindMeter  = "meter"
	KindDT     = "dt"
	KindFeeder = "feeder"
	KindRegion = "region"
)

// Summary describes the latest snapshot at network level.
type Summary struct {
	SnapshotID string              `json:"snapshotId"`
	Version    int64               `json:"version"`
	Source     string              `json:"source"`
	Fallback   bool                `json:"fallback"`
	BuiltAt    time.Time           `json:"builtAt"`
	RowCount   int                 `json:"rowCount"`
	Regions    int                 `json:"regions"`
	Totals     network.Metrics     `json:"totals"`
	SLA        network.SLACounters `json:"sla"`
	LossBand   network.Band        `json:"lossBand"`
	SLABand    network.Band        `json:"slaBand"`
}

// RegionRow is one line of the region table.
type RegionRow struct {
	Region         string       `json:"region"`
	Feeders        int          `json:"feeders"`
	DTs            int          `json:"dts"`
	Meters         int          `json:"meters"`
	FeederEnergy   float64      `json:"feederEnergy"`
	DTEnergy       float64      `json:"dtEnergy"`
	ConsumerEnergy float64      `json:"consumerEnergy"`
	LossFdt        float64      `json:"lossFdt"`
	LossDtc        float64      `json:"lossDtc"`
	LossFc         float64      `json:"lossFc"`
	SLADaily       float64      `json:"slaDaily"`
	SLALoad        float64      `json:"slaLoad"`
	LossBand       network.Band `json:"lossBand"`
	SLABand        network.Band `json:"slaBand"`
}

// RegionQuery filters and orders the region table. Empty fields do not filter.
type RegionQuery struct {
	Region     string
	LossBand   network.Band
	SLABand    network.Band
	SortKey    string
	Descending bool
}

// RegionView is a region with its feeder identifiers.
type RegionView struct {
	Name     string              `json:"name"`
	Metrics  network.Metrics     `json:"metrics"`
	SLA      network.SLACounters `json:"sla"`
	Feeders  []string            `json:"feeders"`
	LossBand network.Band        `json:"lossBand"`
	SLABand  network.Band        `json:"slaBand"`
}

// FeederView is a feeder with its transformer identifiers.
type FeederView struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Region   string          `json:"region"`
	Energy   *float64        `json:"energy"`
	Metrics  network.Metrics `json:"metrics"`
	DTs      []string        `json:"dts"`
	LossBand network.Band    `json:"lossBand"`
	SLABand  network.Band    `json:"slaBand"`
}

// DTView is a transformer with its meter identifiers.
type DTView struct {
	ID       string            `json:"id"`
	Name     string            `json:"name"`
	FeederID string            `json:"feederId"`
	Region   string            `json:"region"`
	Energy   *float64          `json:"energy"`
	Metrics  network.DTMetrics `json:"metrics"`
	Meters   []string          `json:"meters"`
	LossBand network.Band      `json:"lossBand"`
	SLABand  network.Band      `json:"slaBand"`
}

// MeterView is a consumer meter with its ancestry.
type MeterView struct {
	ID       string                `json:"id"`
	DTID     string                `json:"dtId"`
	FeederID string                `json:"feederId"`
	Region   string                `json:"region"`
	Readings network.MeterReadings `json:"readings"`
	Energy   *float64              `json:"energy"`
	SLA      network.MeterSLA      `json:"sla"`
}

// Match identifies the entity a search term resolved to.
type Match struct {
	Kind string `json:"kind"`
	ID   string `json:"id"`
}

var regionSortKeys = map[string]func(RegionRow) any{
	"region":         func(r RegionRow) any { return r.Region },
	"feeders":        func(r RegionRow) any { return float64(r.Feeders) },
	"dts":            func(r RegionRow) any { return float64(r.DTs) },
	"meters":         func(r RegionRow) any { return float64(r.Meters) },
	"feederEnergy":   func(r RegionRow) any { return r.FeederEnergy },
	"dtEnergy":       func(r RegionRow) any { return r.DTEnergy },
	"consumerEnergy": func(r RegionRow) any { return r.ConsumerEnergy },
	"lossFdt":        func(r RegionRow) any { return r.LossFdt },
	"lossDtc":        func(r RegionRow) any { return r.LossDtc },
	"lossFc":         func(r RegionRow) any { return r.LossFc },
	"slaDaily":       func(r RegionRow) any { return r.SLADaily },
	"slaLoad":        func(r RegionRow) any { return r.SLALoad },
}

// SortKeys lists the accepted RegionQuery sort keys.
func SortKeys() []string {
	keys := lo.Keys(regionSortKeys)
	slices.Sort(keys)
	return keys
}

// QueryService answers read queries from the latest snapshot, or from one
// retained version when pinned with At.
type QueryService struct {
	repo    SnapshotRepository
	bands   network.Bands
	version int64
}

// NewQueryService constructs a query service.
func NewQueryService(repo SnapshotRepository, bands network.Bands) (*QueryService, error) {
	if repo == nil {
		return nil, errors.New("query service: nil repository")
	}
	if err := bands.Validate(); err != nil {
		return nil, err
	}
	return &QueryService{repo: repo, bands: bands}, nil
}

// Bands returns the thresholds used to classify values.
func (s *QueryService) Bands() network.Bands { return s.bands }

// Latest returns the latest snapshot.
func (s *QueryService) Latest(ctx context.Context) (*Snapshot, error) {
	return s.repo.Latest(ctx)
}

// Snapshot returns a snapshot by version.
func (s *QueryService) Snapshot(ctx context.Context, version int64) (*Snapshot, error) {
	snap, err := s.repo.Get(ctx, version)
	if errors.Is(err, ErrSnapshotNotFound) {
		return nil, fmt.Errorf("%w: %d", ErrVersionNotFound, version)
	}
	return snap, err
}

// At returns a service whose reads resolve against the given version.
// Zero keeps following the latest snapshot.
func (s *QueryService) At(version int64) *QueryService {
	pinned := *s
	pinned.version = version
	return &pinned
}

// Versions lists the retained snapshot versions in ascending order.
func (s *QueryService) Versions(ctx context.Context) ([]int64, error) {
	return s.repo.Versions(ctx)
}

// Version reports the pinned version, or zero when following the latest.
func (s *QueryService) Version() int64 { return s.version }

// Current returns the snapshot reads resolve against.
func (s *QueryService) Current(ctx context.Context) (*Snapshot, error) {
	if s.version > 0 {
		return s.Snapshot(ctx, s.version)
	}
	return s.repo.Latest(ctx)
}

// Summary returns the network-level view of the current snapshot.
func (s *QueryService) Summary(ctx context.Context) (Summary, error) {
	snap, err := s.Current(ctx)
	if err != nil {
		return Summary{}, err
	}
	return s.SummaryOf(snap), nil
}

// SummaryOf describes a given snapshot, which need not be the latest.
func (s *QueryService) SummaryOf(snap *Snapshot) Summary {
	totals := snap.Model.Totals
	return Summary{
		SnapshotID: snap.ID,
		Version:    snap.Version,
		Source:     snap.Source,
		Fallback:   snap.Fallback,
		BuiltAt:    snap.BuiltAt,
		RowCount:   snap.RowCount,
		Regions:    len(snap.Model.Regions),
		Totals:     totals,
		SLA:        snap.Model.SLA,
		LossBand:   s.bands.Loss(&totals.LossFc),
		SLABand:    s.bands.SLA(&totals.SLADailyPct),
	}
}

// Regions returns the filtered and ordered region table.
func (s *QueryService) Regions(ctx context.Context, q RegionQuery) ([]RegionRow, error) {
	var sortValue func(RegionRow) any
	if q.SortKey != "" {
		fn, ok := regionSortKeys[q.SortKey]
		if !ok {
			return nil, ErrInvalidSortKey
		}
		sortValue = fn
	}

	snap, err := s.Current(ctx)
	if err != nil {
		return nil, err
	}

	rows := lo.FilterMap(snap.Model.Regions, func(region *network.Region, _ int) (RegionRow, bool) {
		row := s.regionRow(region)
		if q.Region != "" && row.Region != q.Region {
			return row, false
		}
		if q.LossBand != network.BandNone && row.LossBand != q.LossBand {
			return row, false
		}
		if q.SLABand != network.BandNone && row.SLABand != q.SLABand {
			return row, false
		}
		return row, true
	})

	if sortValue != nil {
		slices.SortStableFunc(rows, func(a, b RegionRow) int {
			c := compareValues(sortValue(a), sortValue(b))
			if q.Descending {
				return -c
			}
			return c
		})
	}
	return rows, nil
}

// Region returns a region by exact name.
func (s *QueryService) Region(ctx context.Context, name string) (RegionView, error) {
	snap, err := s.Current(ctx)
	if err != nil {
		return RegionView{}, err
	}
	region, ok := snap.Model.Region(name)
	if !ok {
		return RegionView{}, ErrNotFound
	}
	return RegionView{
		Name:     region.Name,
		Metrics:  region.Metrics,
		SLA:      region.SLA,
		Feeders:  lo.Map(region.Feeders, func(f *network.Feeder, _ int) string { return f.ID }),
		LossBand: s.bands.Loss(&region.Metrics.LossFc),
		SLABand:  s.bands.SLA(&region.Metrics.SLADailyPct),
	}, nil
}

// Feeder returns a feeder by code.
func (s *QueryService) Feeder(ctx context.Context, id string) (FeederView, error) {
	snap, err := s.Current(ctx)
	if err != nil {
		return FeederView{}, err
	}
	feeder, ok := snap.Model.Feeder(id)
	if !ok {
		return FeederView{}, ErrNotFound
	}
	return FeederView{
		ID:       feeder.ID,
		Name:     feeder.Name,
		Region:   feeder.Region,
		Energy:   feeder.Energy,
		Metrics:  feeder.Metrics,
		DTs:      lo.Map(feeder.DTs, func(dt *network.DT, _ int) string { return dt.ID }),
		LossBand: s.bands.Loss(&feeder.Metrics.LossFc),
		SLABand:  s.bands.SLA(&feeder.Metrics.SLADailyPct),
	}, nil
}

// DT returns a transformer by code.
func (s *QueryService) DT(ctx context.Context, id string) (DTView, error) {
	snap, err := s.Current(ctx)
	if err != nil {
		return DTView{}, err
	}
	dt, ok := snap.Model.DT(id)
	if !ok {
		return DTView{}, ErrNotFound
	}
	view := DTView{
		ID:       dt.ID,
		Name:     dt.Name,
		FeederID: dt.FeederID,
		Energy:   dt.Energy,
		Metrics:  dt.Metrics,
		Meters:   lo.Map(dt.Meters, func(m *network.Meter, _ int) string { return m.ID }),
		LossBand: s.bands.Loss(&dt.Metrics.LossDtc),
		SLABand:  s.bands.SLA(&dt.Metrics.SLADailyPct),
	}
	if feeder, ok := snap.Model.Feeder(dt.FeederID); ok {
		view.Region = feeder.Region
	}
	return view, nil
}

// Meter returns a consumer meter by number.
func (s *QueryService) Meter(ctx context.Context, id string) (MeterView, error) {
	snap, err := s.Current(ctx)
	if err != nil {
		return MeterView{}, err
	}
	meter, ok := snap.Model.Meter(id)
	if !ok {
		return MeterView{}, ErrNotFound
	}
	view := MeterView{
		ID:       meter.ID,
		DTID:     meter.DTID,
		FeederID: meter.FeederID,
		Readings: meter.Readings,
		Energy:   meter.Energy,
		SLA:      meter.SLA,
	}
	if feeder, ok := snap.Model.Feeder(meter.FeederID); ok {
		view.Region = feeder.Region
	}
	return view, nil
}

// Search resolves an exact identifier, trying meters first, then
// transformers, feeders and finally region names.
func (s *QueryService) Search(ctx context.Context, term string) (Match, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return Match{}, ErrEmptyQuery
	}
	snap, err := s.Current(ctx)
	if err != nil {
		return Match{}, err
	}
	if _, ok := snap.Model.Meter(term); ok {
		return Match{Kind: KindMeter, ID: term}, nil
	}
	if _, ok := snap.Model.DT(term); ok {
		return Match{Kind: KindDT, ID: term}, nil
	}
	if _, ok := snap.Model.Feeder(term); ok {
		return Match{Kind: KindFeeder, ID: term}, nil
	}
	if _, ok := snap.Model.Region(term); ok {
		return Match{Kind: KindRegion, ID: term}, nil
	}
	return Match{}, ErrNoMatch
}

// Results returns the flattened loss table, optionally restricted to one feeder.
func (s *QueryService) Results(ctx context.Context, feederCode string) ([]network.ResultRow, error) {
	snap, err := s.Current(ctx)
	if err != nil {
		return nil, err
	}
	if feederCode == "" {
		return snap.Results, nil
	}
	return lo.Filter(snap.Results, func(row network.ResultRow, _ int) bool {
		return row.FeederCode == feederCode
	}), nil
}

func (s *QueryService) regionRow(region *network.Region) RegionRow {
	m := region.Metrics
	return RegionRow{
		Region:         region.Name,
		Feeders:        m.Feeders,
		DTs:            m.DTs,
		Meters:         m.Meters,
		FeederEnergy:   m.FeederEnergy,
		DTEnergy:       m.DTEnergy,
		ConsumerEnergy: m.ConsumerEnergy,
		LossFdt:        m.LossFdt,
		LossDtc:        m.LossDtc,
		LossFc:         m.LossFc,
		SLADaily:       m.SLADailyPct,
		SLALoad:        m.SLALoadPct,
		LossBand:       s.bands.Loss(&m.LossFc),
		SLABand:        s.bands.SLA(&m.SLADailyPct),
	}
}

func compareValues(a, b any) int {
	switch av := a.(type) {
	case string:
		bv, _ := b.(string)
		return strings.Compare(av, bv)
	case float64:
		bv, _ := b.(float64)
		return cmp.Compare(av, bv)
	default:
		return 0
	}
}
