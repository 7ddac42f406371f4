package record

// Placeholder identifiers used when a row carries no usable value.
const (
	UnknownRegion = "Unknown"
	UnknownFeeder = "F-?"
	UnknownDT     = "DT-?"
	UnknownMeter  = "M-?"
)

// Field names accepted by FieldSet.Override.
const (
	FieldRegion      = "region"
	FieldFeederCode  = "feeder_code"
	FieldFeederName  = "feeder_name"
	FieldFeederDay1  = "feeder_day1"
	FieldFeederDay2  = "feeder_day2"
	FieldFeederMF    = "feeder_mf"
	FieldDTCode      = "dt_code"
	FieldDTName      = "dt_name"
	FieldDTDay1      = "dt_day1"
	FieldDTDay2      = "dt_day2"
	FieldDTMF        = "dt_mf"
	FieldMeterNo     = "meter_no"
	FieldMeterDay1   = "meter_day1"
	FieldMeterDay2   = "meter_day2"
	FieldDailyEnergy = "daily_energy"
	FieldLoadData    = "load_data"
)

// FieldSet holds the ordered candidate headers for each logical field.
type FieldSet struct {
	Region      []string
	FeederCode  []string
	FeederName  []string
	FeederDay1  []string
	FeederDay2  []string
	FeederMF    []string
	DTCode      []string
	DTName      []string
	DTDay1      []string
	DTDay2      []string
	DTMF        []string
	MeterNo     []string
	MeterDay1   []string
	MeterDay2   []string
	DailyEnergy []string
	LoadData    []string
}

// DefaultFieldSet returns the header synonyms seen in field workbooks.
func DefaultFieldSet() FieldSet {
	return FieldSet{
		Region:      []string{"Region Name", "Region", "RegionName"},
		FeederCode:  []string{"Feeder Code", "FeederId", "Feeder Code.", "Feeder Code ", "Feeder"},
		FeederName:  []string{"Feeder Name", "Feeder"},
		FeederDay1:  []string{"Feeder Day1 reading", "Feeder Day1 Read", "Feeder Day1"},
		FeederDay2:  []string{"Feeder Day2 reading", "Feeder Day2 Read", "Feeder Day2"},
		FeederMF:    []string{"MF Feeder", "Feeder MF", "MF Feed"},
		DTCode:      []string{"DT Code", "DTId", "DT Code "},
		DTName:      []string{"DT Name", "DT"},
		DTDay1:      []string{"DT Day1 Reading", "DT Day1", "DT Day1 Read"},
		DTDay2:      []string{"DT Day2 Reading", "DT Day2", "DT Day2 Read"},
		DTMF:        []string{"MF DT", "DT MF", "MF"},
		MeterNo:     []string{"Meter No", "Meter No.", "Meter Number", "Meter N", "Meter"},
		MeterDay1:   []string{"Meter Day1 Reading", "Meter Day1", "Day1", "Reading Day1"},
		MeterDay2:   []string{"Meter Day2 Reading", "Meter Day2", "Day2", "Reading Day2"},
		DailyEnergy: []string{"Daily energy", "Daily Energy", "Daily_energy"},
		LoadData:    []string{"Load Data", "LoadData", "Load_Data"},
	}
}

// Override replaces candidate lists by field name. Unknown names and empty
// lists are ignored; the names that were not applied are returned.
func (s FieldSet) Override(overrides map[string][]string) (FieldSet, []string) {
	var unknown []string
	for name, candidates := range overrides {
		if len(candidates) == 0 {
			continue
		}
		target := s.field(name)
		if target == nil {
			unknown = append(unknown, name)
			continue
		}
		*target = append([]string(nil), candidates...)
	}
	return s, unknown
}

func (s *FieldSet) field(name string) *[]string {
	switch name {
	case FieldRegion:
		return &s.Region
	case FieldFeederCode:
		return &s.FeederCode
	case FieldFeederName:
		return &s.FeederName
	case FieldFeederDay1:
		return &s.FeederDay1
	case FieldFeederDay2:
		return &s.FeederDay2
	case FieldFeederMF:
		return &s.FeederMF
	case FieldDTCode:
		return &s.DTCode
	case FieldDTName:
		return &s.DTName
	case FieldDTDay1:
		return &s.DTDay1
	case FieldDTDay2:
		return &s.DTDay2
	case FieldDTMF:
		return &s.DTMF
	case FieldMeterNo:
		return &s.MeterNo
	case FieldMeterDay1:
		return &s.MeterDay1
	case FieldMeterDay2:
		return &s.MeterDay2
	case FieldDailyEnergy:
		return &s.DailyEnergy
	case FieldLoadData:
		return &s.LoadData
	default:
		return nil
	}
}

// Reading is a normalized source row. Nil readings are unknown.
type Reading struct {
	Region string

	FeederCode string
	FeederName string
	FeederDay1 *float64
	FeederDay2 *float64
	FeederMF   float64

	DTCode string
	DTName string
	DTDay1 *float64
	DTDay2 *float64
	DTMF   float64

	MeterNo   string
	MeterDay1 *float64
	MeterDay2 *float64

	DailyEnergy bool
	LoadData    bool
}

// Normalize extracts a typed reading from a record. It never fails: missing
// or malformed fields take their defaults.
func Normalize(rec Record, fields FieldSet) Reading {
	one := 1.0
	feederCode := rec.String(fields.FeederCode, UnknownFeeder)
	dtCode := rec.String(fields.DTCode, UnknownDT)

	return Reading{
		Region: rec.String(fields.Region, UnknownRegion),

		FeederCode: feederCode,
		FeederName: rec.String(fields.FeederName, feederCode),
		FeederDay1: rec.Number(fields.FeederDay1, nil),
		FeederDay2: rec.Number(fields.FeederDay2, nil),
		FeederMF:   *rec.Number(fields.FeederMF, &one),

		DTCode: dtCode,
		DTName: rec.String(fields.DTName, dtCode),
		DTDay1: rec.Number(fields.DTDay1, nil),
		DTDay2: rec.Number(fields.DTDay2, nil),
		DTMF:   *rec.Number(fields.DTMF, &one),

		MeterNo:   rec.String(fields.MeterNo, UnknownMeter),
		MeterDay1: rec.Number(fields.MeterDay1, nil),
		MeterDay2: rec.Number(fields.MeterDay2, nil),

		DailyEnergy: rec.YesNo(fields.DailyEnergy),
		LoadData:    rec.YesNo(fields.LoadData),
	}
}

// NormalizeAll normalizes records in order.
func NormalizeAll(records []Record, fields FieldSet) []Reading {
	readings := make([]Reading, 0, len(records))
	for _, rec := range records {
		readings = append(readings, Normalize(rec, fields))
	}
	return readings
}
