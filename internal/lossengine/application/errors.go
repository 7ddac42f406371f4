package application

import "errors"

var (
	// ErrSnapshotNotFound is returned when no snapshot matches the request.
	ErrSnapshotNotFound = errors.New("lossengine: snapshot not found")
	// ErrVersionNotFound is returned when a requested version was never built
	// or has been evicted.
	ErrVersionNotFound = errors.New("lossengine: snapshot version not found")
	// ErrNoMatch is returned when a search term matches no entity.
	ErrNoMatch = errors.New("lossengine: no matching entity")
	// ErrNotFound is returned when an entity id is unknown in the snapshot being read.
	ErrNotFound = errors.New("lossengine: entity not found")
	// ErrEmptyQuery is returned for a blank search term.
	ErrEmptyQuery = errors.New("lossengine: empty query")
	// ErrInvalidSortKey is returned when a region table sort key is unknown.
	ErrInvalidSortKey = errors.New("lossengine: invalid sort key")
	// ErrNilSource is returned when a rebuild is requested without a source.
	ErrNilSource = errors.New("lossengine: nil record source")
)
