package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"gridloss/internal/lossengine/application"
)

// SnapshotRepository keeps snapshots in process memory. Only the most recent
// retain snapshots are kept; zero or less keeps all of them.
type SnapshotRepository struct {
	mu     sync.RWMutex
	retain int
	data   map[int64]*application.Snapshot
	latest int64
}

// NewSnapshotRepository constructs a repository.
func NewSnapshotRepository(retain int) *SnapshotRepository {
	return &SnapshotRepository{
		retain: retain,
		data:   make(map[int64]*application.Snapshot),
	}
}

// Save stores a snapshot. Versions must be positive; saving an older version
// never moves Latest backwards.
func (r *SnapshotRepository) Save(ctx context.Context, snap *application.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if snap == nil || snap.Model == nil {
		return errors.New("memory snapshot repo: nil snapshot")
	}
	if snap.Version <= 0 {
		return errors.New("memory snapshot repo: invalid version")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[snap.Version] = snap
	if snap.Version > r.latest {
		r.latest = snap.Version
	}
	r.evict()
	return nil
}

// Latest returns the snapshot with the highest version.
func (r *SnapshotRepository) Latest(ctx context.Context) (*application.Snapshot, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	snap := r.data[r.latest]
	if snap == nil {
		return nil, application.ErrSnapshotNotFound
	}
	return snap, nil
}

// Get loads a snapshot by version.
func (r *SnapshotRepository) Get(ctx context.Context, version int64) (*application.Snapshot, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	snap := r.data[version]
	if snap == nil {
		return nil, application.ErrSnapshotNotFound
	}
	return snap, nil
}

// Versions lists stored versions in ascending order.
func (r *SnapshotRepository) Versions(ctx context.Context) ([]int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	versions := make([]int64, 0, len(r.data))
	for v := range r.data {
		versions = append(versions, v)
	}
	sort.Slice(versions, func(i, j int) bool { return versions[i] < versions[j] })
	return versions, nil
}

func (r *SnapshotRepository) evict() {
	if r.retain <= 0 || len(r.data) <= r.retain {
		return
	}
	versions := make([]int64, 0, len(r.data))
	for v := range r.data {
		versions = append(versions, v)
	}
	sort.Slice(versions, func(i, j int) bool { return versions[i] < versions[j] })
	for _, v := range versions[:len(versions)-r.retain] {
		delete(r.data, v)
	}
}
