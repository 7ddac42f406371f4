package network

import "github.com/samber/lo"

// Aggregate derives metrics for every entity of a built model, innermost
// level first: each level falls back to the sum of the level below when it
// has no latched reading of its own.
func Aggregate(m *Model) error {
	if m == nil || m.Lookups.FeederByID == nil {
		return ErrNilModel
	}

	for _, region := range m.Regions {
		for _, feeder := range region.Feeders {
			for _, dt := range feeder.DTs {
				aggregateDT(dt)
			}
		}
		for _, feeder := range region.Feeders {
			aggregateFeeder(feeder)
		}
		aggregateRegion(region)
	}
	aggregateTotals(m)
	return nil
}

func aggregateDT(dt *DT) {
	consumer := consumerEnergy(dt.Meters)
	energy := consumer
	if dt.Energy != nil {
		energy = *dt.Energy
	}

	dt.Metrics = DTMetrics{
		Meters:         len(dt.Meters),
		DTEnergy:       energy,
		ConsumerEnergy: consumer,
		LossDtc:        LossPct(energy, consumer),
		SLADailyPct:    Pct(countDaily(dt.Meters), len(dt.Meters)),
		SLALoadPct:     Pct(countLoad(dt.Meters), len(dt.Meters)),
	}
}

// aggregateFeeder expects the feeder's DTs to be aggregated already.
func aggregateFeeder(feeder *Feeder) {
	dtEnergy := lo.SumBy(feeder.DTs, func(dt *DT) float64 { return dt.Metrics.DTEnergy })
	feederEnergy := dtEnergy
	if feeder.Energy != nil {
		feederEnergy = *feeder.Energy
	}
	consumer := consumerEnergy(feeder.Meters)

	feeder.Metrics = Metrics{
		Feeders:        1,
		DTs:            len(feeder.DTs),
		Meters:         len(feeder.Meters),
		FeederEnergy:   feederEnergy,
		DTEnergy:       dtEnergy,
		ConsumerEnergy: consumer,
		LossFdt:        LossPct(feederEnergy, dtEnergy),
		LossDtc:        LossPct(dtEnergy, consumer),
		LossFc:         LossPct(feederEnergy, consumer),
		SLADailyPct:    Pct(countDaily(feeder.Meters), len(feeder.Meters)),
		SLALoadPct:     Pct(countLoad(feeder.Meters), len(feeder.Meters)),
	}
}

// aggregateRegion sums feeder metrics; SLA uses the region's raw-row counters.
func aggregateRegion(region *Region) {
	metrics := sumMetrics(lo.Map(region.Feeders, func(f *Feeder, _ int) Metrics { return f.Metrics }))
	metrics.Feeders = len(region.Feeders)
	region.Metrics = derive(metrics, region.SLA)
}

func aggregateTotals(m *Model) {
	metrics := sumMetrics(lo.Map(m.Regions, func(r *Region, _ int) Metrics { return r.Metrics }))
	m.Totals = derive(metrics, m.SLA)
}

func sumMetrics(items []Metrics) Metrics {
	return Metrics{
		Feeders:        lo.SumBy(items, func(x Metrics) int { return x.Feeders }),
		DTs:            lo.SumBy(items, func(x Metrics) int { return x.DTs }),
		Meters:         lo.SumBy(items, func(x Metrics) int { return x.Meters }),
		FeederEnergy:   lo.SumBy(items, func(x Metrics) float64 { return x.FeederEnergy }),
		DTEnergy:       lo.SumBy(items, func(x Metrics) float64 { return x.DTEnergy }),
		ConsumerEnergy: lo.SumBy(items, func(x Metrics) float64 { return x.ConsumerEnergy }),
	}
}

func derive(metrics Metrics, sla SLACounters) Metrics {
	metrics.LossFdt = LossPct(metrics.FeederEnergy, metrics.DTEnergy)
	metrics.LossDtc = LossPct(metrics.DTEnergy, metrics.ConsumerEnergy)
	metrics.LossFc = LossPct(metrics.FeederEnergy, metrics.ConsumerEnergy)
	metrics.SLADailyPct = Pct(sla.DailyYes, sla.TotalRows)
	metrics.SLALoadPct = Pct(sla.LoadYes, sla.TotalRows)
	return metrics
}

func consumerEnergy(meters []*Meter) float64 {
	return lo.SumBy(meters, func(m *Meter) float64 {
		if m.Energy == nil {
			return 0
		}
		return *m.Energy
	})
}

func countDaily(meters []*Meter) int {
	return lo.CountBy(meters, func(m *Meter) bool { return m.SLA.Daily })
}

func countLoad(meters []*Meter) int {
	return lo.CountBy(meters, func(m *Meter) bool { return m.SLA.Load })
}
