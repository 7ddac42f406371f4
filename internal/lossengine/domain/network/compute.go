package network

import "gridloss/internal/lossengine/domain/record"

// Compute runs one full rebuild: build, aggregate, flatten.
func Compute(readings []record.Reading) (*Model, []ResultRow, error) {
	model := Build(readings)
	if err := Aggregate(model); err != nil {
		return nil, nil, err
	}
	return model, Flatten(model), nil
}
