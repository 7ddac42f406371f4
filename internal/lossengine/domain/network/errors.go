package network

import "errors"

var (
	// ErrNilModel is returned when metrics are requested before a model was built.
	ErrNilModel = errors.New("network: nil model")
	// ErrInvalidThresholds is returned when band thresholds are out of order.
	ErrInvalidThresholds = errors.New("network: invalid band thresholds")
)
