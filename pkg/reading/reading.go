package reading

import (
	"fmt"
	"strings"
	"time"

	"github.com/aquamon-pt/aquamon/pkg/portal"
	"github.com/sirupsen/logrus"
)

// TimestampLayout is used when persisting the dedup high-water mark.
// Fractional seconds survive the round trip so comparisons stay exact.
const TimestampLayout = "2006-01-02T15:04:05.999999999"

// The portal emits fixed offset suffixes on reading dates. They are
// stripped and the rest is read as a naive local instant, matching how the
// dates behave everywhere else in the portal UI.
var offsetReplacer = strings.NewReplacer("+00:00", "", "+01:00", "")

var layouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
}

// Reading is a normalized consumption reading. Date keeps the raw portal
// string for attribute passthrough.
type Reading struct {
	Timestamp   time.Time
	Consumption float64
	Cil         string
	Date        string
}

func ParseDate(s string) (time.Time, error) {
	cleaned := strings.TrimSpace(offsetReplacer.Replace(s))
	for _, layout := range layouts {
		t, err := time.ParseInLocation(layout, cleaned, time.Local)
		if err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparsable reading date %q", s)
}

func Normalize(rec portal.ReadingRecord) (Reading, error) {
	ts, err := ParseDate(rec.Date)
	if err != nil {
		return Reading{}, err
	}
	return Reading{
		Timestamp:   ts,
		Consumption: rec.Consumption,
		Cil:         rec.Cil,
		Date:        rec.Date,
	}, nil
}

// NormalizeAll converts a raw fetch into readings. Records with unparsable
// dates are dropped, the dropped count is returned for metrics.
func NormalizeAll(recs []portal.ReadingRecord) ([]Reading, int) {
	readings := make([]Reading, 0, len(recs))
	dropped := 0
	for _, rec := range recs {
		r, err := Normalize(rec)
		if err != nil {
			logrus.Warnf("skipping reading: %v", err)
			dropped++
			continue
		}
		readings = append(readings, r)
	}
	return readings, dropped
}

func FormatTimestamp(t time.Time) string {
	return t.Format(TimestampLayout)
}

func ParseTimestamp(s string) (time.Time, error) {
	return time.ParseInLocation(TimestampLayout, s, time.Local)
}
