package application

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"gridloss/internal/lossengine/application/eventbus"
	"gridloss/internal/lossengine/application/events"
	"gridloss/internal/lossengine/domain/network"
	"gridloss/internal/lossengine/domain/record"
	"gridloss/internal/observability/metrics"
)

// RebuildService turns raw rows into published snapshots. Rebuilds are
// serialized so versions are strictly increasing and each snapshot is built
// from a fresh model.
type RebuildService struct {
	mu       sync.Mutex
	repo     SnapshotRepository
	bus      eventbus.EventBus
	fields   record.FieldSet
	fallback RecordSource
	clock    Clock
	logger   *log.Logger
	version  int64
}

// RebuildOption customizes the rebuild service.
type RebuildOption func(*RebuildService)

// WithFieldSet replaces the default header candidates.
func WithFieldSet(fields record.FieldSet) RebuildOption {
	return func(s *RebuildService) {
		s.fields = fields
	}
}

// WithFallback assigns the source used when the requested one cannot be loaded.
func WithFallback(source RecordSource) RebuildOption {
	return func(s *RebuildService) {
		s.fallback = source
	}
}

// WithClock assigns a clock.
func WithClock(clock Clock) RebuildOption {
	return func(s *RebuildService) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithLogger assigns a logger.
func WithLogger(logger *log.Logger) RebuildOption {
	return func(s *RebuildService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewRebuildService constructs a rebuild service.
func NewRebuildService(repo SnapshotRepository, bus eventbus.EventBus, opts ...RebuildOption) (*RebuildService, error) {
	if repo == nil {
		return nil, errors.New("rebuild service: nil repository")
	}
	if bus == nil {
		return nil, errors.New("rebuild service: nil event bus")
	}
	service := &RebuildService{
		repo:   repo,
		bus:    bus,
		fields: record.DefaultFieldSet(),
		clock:  systemClock{},
		logger: log.Default(),
	}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// Rebuild normalizes the rows, recomputes the whole hierarchy and publishes
// the result as the latest snapshot.
func (s *RebuildService) Rebuild(ctx context.Context, source string, records []record.Record) (*Snapshot, error) {
	return s.rebuild(ctx, source, false, records)
}

// RebuildFrom loads rows from src and rebuilds. When src fails and a fallback
// source is configured, the fallback rows are used instead and the snapshot
// is marked as such.
func (s *RebuildService) RebuildFrom(ctx context.Context, src RecordSource) (*Snapshot, error) {
	if src == nil {
		return nil, ErrNilSource
	}
	records, err := src.Load(ctx)
	if err == nil {
		return s.rebuild(ctx, src.Name(), false, records)
	}
	if s.fallback == nil || ctx.Err() != nil {
		s.publishFailed(ctx, src.Name(), err)
		metrics.ObserveRebuild(metrics.ResultError, 0)
		return nil, fmt.Errorf("load %s: %w", src.Name(), err)
	}

	s.logger.Printf("rebuild source %s error: %v; using %s", src.Name(), err, s.fallback.Name())
	fallbackRecords, fallbackErr := s.fallback.Load(ctx)
	if fallbackErr != nil {
		s.publishFailed(ctx, src.Name(), fallbackErr)
		metrics.ObserveRebuild(metrics.ResultError, 0)
		return nil, errors.Join(fmt.Errorf("load %s: %w", src.Name(), err), fmt.Errorf("load %s: %w", s.fallback.Name(), fallbackErr))
	}
	return s.rebuild(ctx, s.fallback.Name(), true, fallbackRecords)
}

// Version returns the version of the last snapshot this service stored.
func (s *RebuildService) Version() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

func (s *RebuildService) rebuild(ctx context.Context, source string, fallback bool, records []record.Record) (snap *Snapshot, err error) {
	start := time.Now()
	defer func() {
		result := metrics.ResultSuccess
		switch {
		case err != nil:
			result = metrics.ResultError
		case fallback:
			result = metrics.ResultFallback
		}
		metrics.ObserveRebuild(result, time.Since(start))
	}()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	readings := record.NormalizeAll(records, s.fields)
	model, results, err := network.Compute(readings)
	if err != nil {
		s.publishFailed(ctx, source, err)
		return nil, err
	}

	snap = &Snapshot{
		ID:       uuid.NewString(),
		Version:  s.version + 1,
		Source:   source,
		Fallback: fallback,
		BuiltAt:  s.clock.Now(),
		RowCount: len(records),
		Model:    model,
		Results:  results,
	}
	if err := s.repo.Save(ctx, snap); err != nil {
		s.publishFailed(ctx, source, err)
		return nil, err
	}
	s.version = snap.Version

	metrics.AddRowsIngested(source, len(records))
	metrics.SetSnapshot(snap.Version, len(model.Regions), model.Totals.Feeders, model.Totals.DTs, model.Totals.Meters,
		model.Totals.LossFdt, model.Totals.LossDtc, model.Totals.LossFc)

	evt := events.SnapshotRebuilt{
		SnapshotID: snap.ID,
		Version:    snap.Version,
		Source:     source,
		Fallback:   fallback,
		RowCount:   snap.RowCount,
		Regions:    len(model.Regions),
		Feeders:    model.Totals.Feeders,
		DTs:        model.Totals.DTs,
		Meters:     model.Totals.Meters,
		LossFc:     model.Totals.LossFc,
		SLADaily:   model.Totals.SLADailyPct,
		OccurredAt: snap.BuiltAt,
	}
	if err := s.bus.Publish(ctx, evt); err != nil {
		s.logger.Printf("publish snapshot rebuilt error: %v", err)
	}
	s.logger.Printf("snapshot v%d built from %s: rows=%d feeders=%d dts=%d meters=%d",
		snap.Version, source, snap.RowCount, model.Totals.Feeders, model.Totals.DTs, model.Totals.Meters)
	return snap, nil
}

func (s *RebuildService) publishFailed(ctx context.Context, source string, cause error) {
	s.logger.Printf("rebuild %s error: %v", source, cause)
	evt := events.RebuildFailed{Source: source, Reason: cause.Error(), OccurredAt: s.clock.Now()}
	if err := s.bus.Publish(context.WithoutCancel(ctx), evt); err != nil {
		s.logger.Printf("publish rebuild failed error: %v", err)
	}
}
