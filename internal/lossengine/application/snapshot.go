package application

import (
	"context"
	"time"

	"gridloss/internal/lossengine/domain/network"
	"gridloss/internal/lossengine/domain/record"
)

// Snapshot is the immutable outcome of one rebuild. A new input always
// produces a new snapshot; readers holding an older one keep a consistent
// view.
type Snapshot struct {
	ID       string              `json:"id"`
	Version  int64               `json:"version"`
	Source   string              `json:"source"`
	Fallback bool                `json:"fallback"`
	BuiltAt  time.Time           `json:"builtAt"`
	RowCount int                 `json:"rowCount"`
	Model    *network.Model      `json:"model"`
	Results  []network.ResultRow `json:"results"`
}

// SnapshotRepository stores rebuilt snapshots.
type SnapshotRepository interface {
	Save(ctx context.Context, snapshot *Snapshot) error
	Latest(ctx context.Context) (*Snapshot, error)
	Get(ctx context.Context, version int64) (*Snapshot, error)
	Versions(ctx context.Context) ([]int64, error)
}

// RecordSource yields raw input rows for a rebuild.
type RecordSource interface {
	Name() string
	Load(ctx context.Context) ([]record.Record, error)
}

// StaticSource serves rows already held in memory.
type StaticSource struct {
	SourceName string
	Records    []record.Record
}

// Name implements RecordSource.
func (s StaticSource) Name() string { return s.SourceName }

// Load implements RecordSource.
func (s StaticSource) Load(ctx context.Context) ([]record.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.Records, nil
}

// Clock provides time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }
