package network

import "gridloss/internal/lossengine/domain/record"

// Build folds normalized readings into a fresh hierarchy. Rows are never
// dropped: every row counts toward the SLA totals, and rows without
// identifiers land on placeholder entities.
func Build(readings []record.Reading) *Model {
	m := &Model{Lookups: newLookups()}
	for _, reading := range readings {
		m.fold(reading)
	}
	return m
}

func (m *Model) fold(r record.Reading) {
	feederEnergy := Energy(r.FeederDay1, r.FeederDay2, r.FeederMF)
	dtEnergy := Energy(r.DTDay1, r.DTDay2, r.DTMF)

	m.SLA.add(r.DailyEnergy, r.LoadData)

	region := m.regionFor(r.Region)
	region.SLA.add(r.DailyEnergy, r.LoadData)

	feeder := m.feederFor(region, r)
	dt := m.dtFor(feeder, r)
	m.meterFor(feeder, dt, r)

	if feeder.Energy == nil && feederEnergy != nil {
		feeder.Energy = feederEnergy
	}
	if dt.Energy == nil && dtEnergy != nil {
		dt.Energy = dtEnergy
	}
}

func (m *Model) regionFor(name string) *Region {
	if region, ok := m.Lookups.RegionByName[name]; ok {
		return region
	}
	region := &Region{Name: name}
	m.Lookups.RegionByName[name] = region
	m.Regions = append(m.Regions, region)
	return region
}

func (m *Model) feederFor(region *Region, r record.Reading) *Feeder {
	if feeder, ok := m.Lookups.FeederByID[r.FeederCode]; ok {
		return feeder
	}
	feeder := &Feeder{ID: r.FeederCode, Name: r.FeederName, Region: region.Name}
	m.Lookups.FeederByID[feeder.ID] = feeder
	m.Lookups.Feeders = append(m.Lookups.Feeders, feeder)
	region.Feeders = append(region.Feeders, feeder)
	return feeder
}

func (m *Model) dtFor(feeder *Feeder, r record.Reading) *DT {
	if dt, ok := m.Lookups.DTByID[r.DTCode]; ok {
		return dt
	}
	dt := &DT{ID: r.DTCode, Name: r.DTName, FeederID: feeder.ID}
	m.Lookups.DTByID[dt.ID] = dt
	m.Lookups.DTs = append(m.Lookups.DTs, dt)
	feeder.DTs = append(feeder.DTs, dt)
	return dt
}

func (m *Model) meterFor(feeder *Feeder, dt *DT, r record.Reading) *Meter {
	if meter, ok := m.Lookups.MeterByID[r.MeterNo]; ok {
		return meter
	}
	meter := &Meter{
		ID:       r.MeterNo,
		Readings: MeterReadings{Day1: r.MeterDay1, Day2: r.MeterDay2},
		Energy:   Energy(r.MeterDay1, r.MeterDay2, 1),
		SLA:      MeterSLA{Daily: r.DailyEnergy, Load: r.LoadData},
		DTID:     dt.ID,
		FeederID: feeder.ID,
	}
	m.Lookups.MeterByID[meter.ID] = meter
	m.Lookups.Meters = append(m.Lookups.Meters, meter)
	dt.Meters = append(dt.Meters, meter)
	feeder.Meters = append(feeder.Meters, meter)
	return meter
}
