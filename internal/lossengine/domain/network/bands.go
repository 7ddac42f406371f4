package network

import "strings"

// Band is a traffic-light status for a percentage.
type Band string

const (
	BandNone  Band = ""
	BandGreen Band = "GREEN"
	BandAmber Band = "AMBER"
	BandRed   Band = "RED"
)

// Bands holds the status thresholds, in percent.
// Loss: below LossGreenMax is green, up to LossAmberMax is amber.
// SLA: from SLAGreenMin is green, from SLAAmberMin is amber.
type Bands struct {
	LossGreenMax float64 `yaml:"loss_green_max" json:"lossGreenMax"`
	LossAmberMax float64 `yaml:"loss_amber_max" json:"lossAmberMax"`
	SLAGreenMin  float64 `yaml:"sla_green_min" json:"slaGreenMin"`
	SLAAmberMin  float64 `yaml:"sla_amber_min" json:"slaAmberMin"`
}

// DefaultBands returns the standard thresholds.
func DefaultBands() Bands {
	return Bands{LossGreenMax: 2, LossAmberMax: 5, SLAGreenMin: 95, SLAAmberMin: 85}
}

// Validate checks threshold ordering.
func (b Bands) Validate() error {
	if b.LossGreenMax > b.LossAmberMax || b.SLAAmberMin > b.SLAGreenMin {
		return ErrInvalidThresholds
	}
	return nil
}

// Loss classifies a loss percentage. Nil has no band.
func (b Bands) Loss(pct *float64) Band {
	if pct == nil || !finite(*pct) {
		return BandNone
	}
	switch {
	case *pct < b.LossGreenMax:
		return BandGreen
	case *pct <= b.LossAmberMax:
		return BandAmber
	default:
		return BandRed
	}
}

// SLA classifies an SLA percentage. Nil has no band.
func (b Bands) SLA(pct *float64) Band {
	if pct == nil || !finite(*pct) {
		return BandNone
	}
	switch {
	case *pct >= b.SLAGreenMin:
		return BandGreen
	case *pct >= b.SLAAmberMin:
		return BandAmber
	default:
		return BandRed
	}
}

// ParseBand parses a band name case-insensitively.
func ParseBand(value string) (Band, bool) {
	switch Band(strings.ToUpper(strings.TrimSpace(value))) {
	case BandGreen:
		return BandGreen, true
	case BandAmber:
		return BandAmber, true
	case BandRed:
		return BandRed, true
	default:
		return BandNone, false
	}
}
