package network

// ResultRow is one line of the flattened loss table. Feeder-anchored rows
// leave the DT columns empty and DT-anchored rows leave the feeder columns
// empty.
type ResultRow struct {
	FeederCode       string   `json:"Feeder_Code"`
	FeederE          *float64 `json:"Feeder_E"`
	SumDTE           *float64 `json:"Sum_DT_E"`
	FeederToDTLoss   *float64 `json:"Feeder_to_DT_Loss"`
	SumConsE         *float64 `json:"Sum_Cons_E"`
	FeederToConsLoss *float64 `json:"Feeder_to_Cons_Loss"`
	DTCode           string   `json:"DT_Code"`
	DTE              *float64 `json:"DT_E"`
	SumConsEForDT    *float64 `json:"Sum_Cons_E_for_DT"`
	DTToConsLoss     *float64 `json:"DT_to_Cons_Loss"`
}

// IsFeederRow reports whether the row is anchored on a feeder.
func (r ResultRow) IsFeederRow() bool { return r.DTCode == "" }

// Flatten sums the latched asset energies directly from the lookups, without
// reusing the aggregated metrics. Unknown or negative energies are left out
// of every sum.
func Flatten(m *Model) []ResultRow {
	if m == nil {
		return nil
	}

	sumConsByDT := make(map[string]float64, len(m.Lookups.DTs))
	sumConsByFeeder := make(map[string]float64, len(m.Lookups.Feeders))
	for _, meter := range m.Lookups.Meters {
		e, ok := usable(meter.Energy)
		if !ok {
			continue
		}
		sumConsByDT[meter.DTID] += e
		sumConsByFeeder[meter.FeederID] += e
	}

	sumDTByFeeder := make(map[string]float64, len(m.Lookups.Feeders))
	for _, dt := range m.Lookups.DTs {
		if e, ok := usable(dt.Energy); ok {
			sumDTByFeeder[dt.FeederID] += e
		}
	}

	rows := make([]ResultRow, 0, len(m.Lookups.Feeders)+len(m.Lookups.DTs))
	for _, feeder := range m.Lookups.Feeders {
		var feederE *float64
		if e, ok := usable(feeder.Energy); ok {
			feederE = floatPtr(e)
		}
		sumDT := sumDTByFeeder[feeder.ID]
		sumCons := sumConsByFeeder[feeder.ID]
		rows = append(rows, ResultRow{
			FeederCode:       feeder.ID,
			FeederE:          feederE,
			SumDTE:           floatPtr(sumDT),
			FeederToDTLoss:   LossOrNull(feederE, sumDT),
			SumConsE:         floatPtr(sumCons),
			FeederToConsLoss: LossOrNull(feederE, sumCons),
		})
	}

	for _, dt := range m.Lookups.DTs {
		var dtE *float64
		if e, ok := usable(dt.Energy); ok {
			dtE = floatPtr(e)
		}
		sumCons := sumConsByDT[dt.ID]
		rows = append(rows, ResultRow{
			FeederCode:    dt.FeederID,
			DTCode:        dt.ID,
			DTE:           dtE,
			SumConsEForDT: floatPtr(sumCons),
			DTToConsLoss:  LossOrNull(dtE, sumCons),
		})
	}
	return rows
}

func usable(e *float64) (float64, bool) {
	if e == nil || *e < 0 {
		return 0, false
	}
	return *e, true
}
