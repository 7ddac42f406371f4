package network

// SLACounters counts raw input rows and how many of them carried each flag.
type SLACounters struct {
	TotalRows int `json:"totalRows"`
	DailyYes  int `json:"dailyYes"`
	LoadYes   int `json:"loadYes"`
}

func (c *SLACounters) add(daily, load bool) {
	c.TotalRows++
	if daily {
		c.DailyYes++
	}
	if load {
		c.LoadYes++
	}
}

// Metrics are the derived values of a feeder, a region or the whole network.
type Metrics struct {
	Feeders        int     `json:"feeders"`
	DTs            int     `json:"dts"`
	Meters         int     `json:"meters"`
	FeederEnergy   float64 `json:"feederEnergy"`
	DTEnergy       float64 `json:"dtEnergy"`
	ConsumerEnergy float64 `json:"consumerEnergy"`
	LossFdt        float64 `json:"lossFdt"`
	LossDtc        float64 `json:"lossDtc"`
	LossFc         float64 `json:"lossFc"`
	SLADailyPct    float64 `json:"slaDailyPct"`
	SLALoadPct     float64 `json:"slaLoadPct"`
}

// DTMetrics are the derived values of a distribution transformer.
type DTMetrics struct {
	Meters         int     `json:"meters"`
	DTEnergy       float64 `json:"dtEnergy"`
	ConsumerEnergy float64 `json:"consumerEnergy"`
	LossDtc        float64 `json:"lossDtc"`
	SLADailyPct    float64 `json:"slaDailyPct"`
	SLALoadPct     float64 `json:"slaLoadPct"`
}

// Region groups feeders by region name.
type Region struct {
	Name    string      `json:"name"`
	Feeders []*Feeder   `json:"feeders"`
	SLA     SLACounters `json:"sla"`
	Metrics Metrics     `json:"metrics"`
}

// Feeder is a distribution line supplying transformers. Meters lists the
// meters billed under the feeder, whichever DT they hang off.
type Feeder struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Region string `json:"region"`
	// Energy is latched from the first row with a computable feeder delta.
	Energy  *float64 `json:"energy"`
	DTs     []*DT    `json:"dts"`
	Meters  []*Meter `json:"meters"`
	Metrics Metrics  `json:"metrics"`
}

// DT is a distribution transformer.
type DT struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	FeederID string `json:"feederId"`
	// Energy is latched from the first row with a computable DT delta.
	Energy  *float64  `json:"energy"`
	Meters  []*Meter  `json:"meters"`
	Metrics DTMetrics `json:"metrics"`
}

// MeterReadings are the two cumulative register values of a meter.
type MeterReadings struct {
	Day1 *float64 `json:"day1"`
	Day2 *float64 `json:"day2"`
}

// MeterSLA holds the flags of the row that created the meter.
type MeterSLA struct {
	Daily bool `json:"daily"`
	Load  bool `json:"load"`
}

// Meter is a consumer meter, the leaf of the hierarchy.
type Meter struct {
	ID       string        `json:"id"`
	Readings MeterReadings `json:"readings"`
	Energy   *float64      `json:"energy"`
	SLA      MeterSLA      `json:"sla"`
	DTID     string        `json:"dtId"`
	FeederID string        `json:"feederId"`
}

// Lookups index entities by identifier. The ordered slices keep creation order.
type Lookups struct {
	RegionByName map[string]*Region
	FeederByID   map[string]*Feeder
	DTByID       map[string]*DT
	MeterByID    map[string]*Meter

	Feeders []*Feeder
	DTs     []*DT
	Meters  []*Meter
}

func newLookups() Lookups {
	return Lookups{
		RegionByName: make(map[string]*Region),
		FeederByID:   make(map[string]*Feeder),
		DTByID:       make(map[string]*DT),
		MeterByID:    make(map[string]*Meter),
	}
}

// Model is the network hierarchy built from one ingestion.
type Model struct {
	Regions []*Region   `json:"regions"`
	Lookups Lookups     `json:"-"`
	SLA     SLACounters `json:"sla"`
	Totals  Metrics     `json:"totals"`
}

// Region returns a region by name.
func (m *Model) Region(name string) (*Region, bool) {
	if m == nil {
		return nil, false
	}
	r, ok := m.Lookups.RegionByName[name]
	return r, ok
}

// Feeder returns a feeder by id.
func (m *Model) Feeder(id string) (*Feeder, bool) {
	if m == nil {
		return nil, false
	}
	f, ok := m.Lookups.FeederByID[id]
	return f, ok
}

// DT returns a transformer by id.
func (m *Model) DT(id string) (*DT, bool) {
	if m == nil {
		return nil, false
	}
	d, ok := m.Lookups.DTByID[id]
	return d, ok
}

// Meter returns a meter by id.
func (m *Model) Meter(id string) (*Meter, bool) {
	if m == nil {
		return nil, false
	}
	meter, ok := m.Lookups.MeterByID[id]
	return meter, ok
}
