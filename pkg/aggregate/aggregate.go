package aggregate

import (
	"sort"
	"time"

	"github.com/aquamon-pt/aquamon/pkg/reading"
	"github.com/sirupsen/logrus"
)

// maxEchoedReadings caps the readings kept on the snapshot for attribute
// echo. Totals always cover the whole window.
const maxEchoedReadings = 100

// Snapshot holds the derived values for one window of readings.
type Snapshot struct {
	LatestReading    *float64
	LastReadingDate  string
	Cil              string
	DailyTotal       float64
	WeeklyTotal      float64
	MonthlyTotal     float64
	NegativeCount    int
	AdjustmentsTotal float64
	ReadingCount     int
	Readings         []reading.Reading
}

// Aggregate computes totals relative to now. The day bucket starts at local
// midnight, the week bucket seven days before that and the month bucket at
// the first of the current month. Negative readings are always counted and
// summed into AdjustmentsTotal; with filterNegative set they are excluded
// from the bucket totals and the totals are clamped at zero.
func Aggregate(window []reading.Reading, now time.Time, filterNegative bool) *Snapshot {
	snap := &Snapshot{}
	if len(window) == 0 {
		return snap
	}

	sorted := make([]reading.Reading, len(window))
	copy(sorted, window)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.After(sorted[j].Timestamp)
	})

	latest := sorted[0]
	snap.LatestReading = &latest.Consumption
	snap.LastReadingDate = latest.Date
	snap.Cil = latest.Cil
	snap.ReadingCount = len(sorted)

	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	weekStart := dayStart.AddDate(0, 0, -7)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())

	for _, r := range sorted {
		if r.Consumption < 0 {
			snap.NegativeCount++
			snap.AdjustmentsTotal += r.Consumption
			if filterNegative {
				continue
			}
		}
		if !r.Timestamp.Before(dayStart) {
			snap.DailyTotal += r.Consumption
		}
		if !r.Timestamp.Before(weekStart) {
			snap.WeeklyTotal += r.Consumption
		}
		if !r.Timestamp.Before(monthStart) {
			snap.MonthlyTotal += r.Consumption
		}
	}

	if filterNegative {
		snap.DailyTotal = clampZero(snap.DailyTotal)
		snap.WeeklyTotal = clampZero(snap.WeeklyTotal)
		snap.MonthlyTotal = clampZero(snap.MonthlyTotal)
	}

	if snap.NegativeCount > 0 {
		logrus.WithFields(logrus.Fields{
			"count":       snap.NegativeCount,
			"adjustments": snap.AdjustmentsTotal,
			"filtered":    filterNegative,
		}).Info("window contains negative readings")
	}

	snap.Readings = sorted
	if len(snap.Readings) > maxEchoedReadings {
		snap.Readings = snap.Readings[:maxEchoedReadings]
	}

	return snap
}

func clampZero(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}
