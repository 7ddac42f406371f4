package events

import "time"

// SnapshotRebuilt is emitted after a snapshot has been stored and become the
// latest one readers see.
type SnapshotRebuilt struct {
	SnapshotID string    `json:"snapshotId"`
	Version    int64     `json:"version"`
	Source     string    `json:"source"`
	Fallback   bool      `json:"fallback"`
	RowCount   int       `json:"rowCount"`
	Regions    int       `json:"regions"`
	Feeders    int       `json:"feeders"`
	DTs        int       `json:"dts"`
	Meters     int       `json:"meters"`
	LossFc     float64   `json:"lossFc"`
	SLADaily   float64   `json:"slaDaily"`
	OccurredAt time.Time `json:"occurredAt"`
}

// RebuildFailed is emitted when a rebuild could not produce a snapshot. The
// previous snapshot, if any, stays current.
type RebuildFailed struct {
	Source     string    `json:"source"`
	Reason     string    `json:"reason"`
	OccurredAt time.Time `json:"occurredAt"`
}
