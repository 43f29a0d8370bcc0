package state

// State is the published sensor payload for one meter. Pointer fields so
// values the current tick could not produce are left out entirely instead
// of reading as zero.
type State struct {
	MeterNumber       *string  `json:"meterNumber,omitempty"`
	LatestReading     *float64 `json:"latestReading,omitempty"`
	LastReadingDate   *string  `json:"lastReadingDate,omitempty"`
	Cil               *string  `json:"cil,omitempty"`
	DailyTotal        *float64 `json:"dailyTotal,omitempty"`
	WeeklyTotal       *float64 `json:"weeklyTotal,omitempty"`
	MonthlyTotal      *float64 `json:"monthlyTotal,omitempty"`
	CumulativeTotal   *float64 `json:"cumulativeTotal,omitempty"`
	LastProcessedDate *string  `json:"lastProcessedDate,omitempty"`
	NegativeCount     *int64   `json:"negativeCount,omitempty"`
	AdjustmentsTotal  *float64 `json:"adjustmentsTotal,omitempty"`
	ReadingCount      *int64   `json:"readingCount,omitempty"`
}

func (s State) Map() map[string]interface{} {
	m := make(map[string]interface{})
	if s.MeterNumber != nil {
		m["meterNumber"] = *s.MeterNumber
	}
	if s.LatestReading != nil {
		m["latestReading"] = *s.LatestReading
	}
	if s.LastReadingDate != nil {
		m["lastReadingDate"] = *s.LastReadingDate
	}
	if s.Cil != nil {
		m["cil"] = *s.Cil
	}
	if s.DailyTotal != nil {
		m["dailyTotal"] = *s.DailyTotal
	}
	if s.WeeklyTotal != nil {
		m["weeklyTotal"] = *s.WeeklyTotal
	}
	if s.MonthlyTotal != nil {
		m["monthlyTotal"] = *s.MonthlyTotal
	}
	if s.CumulativeTotal != nil {
		m["cumulativeTotal"] = *s.CumulativeTotal
	}
	if s.LastProcessedDate != nil {
		m["lastProcessedDate"] = *s.LastProcessedDate
	}
	if s.NegativeCount != nil {
		m["negativeCount"] = *s.NegativeCount
	}
	if s.AdjustmentsTotal != nil {
		m["adjustmentsTotal"] = *s.AdjustmentsTotal
	}
	if s.ReadingCount != nil {
		m["readingCount"] = *s.ReadingCount
	}

	return m
}
