package network

import (
	"math"
	"math/big"

	"github.com/shopspring/decimal"
)

// Energy returns the multiplier-adjusted delta between two cumulative
// readings. A negative delta is a register reset and counts as zero.
// It returns nil when either reading is unknown.
func Energy(day1, day2 *float64, multiplier float64) *float64 {
	if day1 == nil || day2 == nil {
		return nil
	}
	if !finite(*day1) || !finite(*day2) {
		return nil
	}
	base := Round2(*day2 - *day1)
	if !finite(base) {
		return nil
	}
	base = math.Max(0, base)
	if !finite(multiplier) {
		multiplier = 1
	}
	e := Round2(base * multiplier)
	return &e
}

// Round2 rounds the exact binary value of v half away from zero to two
// decimal places, so 1.005 (stored as 1.00499...) becomes 1.00.
func Round2(v float64) float64 {
	if !finite(v) {
		return v
	}
	exact, err := decimal.NewFromString(new(big.Float).SetFloat64(v).Text('f', 40))
	if err != nil {
		return v
	}
	return exact.Round(2).InexactFloat64()
}

// Pct returns part/whole as a percentage, or 0 for an empty whole.
func Pct(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return Round2(float64(part) / float64(whole) * 100)
}

// LossPct returns the share of input not accounted for by output. A zero or
// NaN input yields 0.
func LossPct(input, output float64) float64 {
	if input == 0 || math.IsNaN(input) {
		return 0
	}
	return Round2((input - output) / input * 100)
}

// LossOrNull is LossPct for the flattened results: an unknown or zero input
// yields nil instead of 0.
func LossOrNull(input *float64, compared float64) *float64 {
	if input == nil || *input == 0 {
		return nil
	}
	loss := Round2((*input - compared) / *input * 100)
	return &loss
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func floatPtr(v float64) *float64 {
	return &v
}
