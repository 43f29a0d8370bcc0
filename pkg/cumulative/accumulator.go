package cumulative

import (
	"fmt"
	"strconv"
	"time"

	"github.com/aquamon-pt/aquamon/pkg/reading"
	"github.com/aquamon-pt/aquamon/pkg/store"
	"github.com/sirupsen/logrus"
)

// Policy controls whether the high-water mark advances on ticks whose
// incremental sum is not positive. With PolicyAdvanceOnPositive a window of
// zeroes is rescanned next tick, with PolicyAdvanceAlways it is marked
// processed either way.
type Policy string

var PolicyAdvanceOnPositive = Policy("advance-on-positive")
var PolicyAdvanceAlways = Policy("advance-always")

func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case PolicyAdvanceOnPositive, PolicyAdvanceAlways:
		return Policy(s), nil
	}
	return "", fmt.Errorf("unknown cumulative policy %q", s)
}

// Accumulator folds rolling windows of readings into a monotonically
// non-decreasing lifetime total. Readings at or before the high-water mark
// are already counted and never contribute again. Single writer, the per
// meter loop serializes all calls.
type Accumulator struct {
	policy Policy

	value         float64
	lastProcessed time.Time
	hasLast       bool
}

func New(policy Policy) *Accumulator {
	return &Accumulator{policy: policy}
}

// Restore applies persisted state. A value that does not parse resets the
// accumulator to zero and discards the timestamp too: restoring only the
// high-water mark would skip all past readings while the counter starts at
// zero.
func (a *Accumulator) Restore(e store.Entry) {
	v, err := strconv.ParseFloat(e.Value, 64)
	if err != nil {
		logrus.Warnf("could not restore cumulative value %q, starting over from zero", e.Value)
		a.value = 0
		a.lastProcessed = time.Time{}
		a.hasLast = false
		return
	}
	a.value = v

	a.lastProcessed = time.Time{}
	a.hasLast = false
	if e.LastProcessed == "" {
		return
	}
	t, err := reading.ParseTimestamp(e.LastProcessed)
	if err != nil {
		logrus.Warnf("could not restore last processed timestamp %q, clearing it", e.LastProcessed)
		return
	}
	a.lastProcessed = t
	a.hasLast = true
}

// Ingest scans a window, sums consumption from readings strictly newer than
// the high-water mark and commits the sum when it is positive. Returns the
// amount added to the total.
func (a *Accumulator) Ingest(window []reading.Reading) float64 {
	incremental := 0.0
	maxSeen := a.lastProcessed
	hasMax := a.hasLast

	for _, r := range window {
		if a.hasLast && !r.Timestamp.After(a.lastProcessed) {
			continue // already counted
		}
		incremental += r.Consumption
		if !hasMax || r.Timestamp.After(maxSeen) {
			maxSeen = r.Timestamp
			hasMax = true
		}
	}

	if incremental > 0 {
		a.value += incremental
		a.lastProcessed = maxSeen
		a.hasLast = true
		return incremental
	}

	if a.policy == PolicyAdvanceAlways && hasMax {
		a.lastProcessed = maxSeen
		a.hasLast = true
	}
	return 0
}

func (a *Accumulator) Value() float64 {
	return a.value
}

// Displayed is the sink facing value, nil until the total is positive so a
// fresh counter renders as unknown instead of zero.
func (a *Accumulator) Displayed() *float64 {
	if a.value > 0 {
		v := a.value
		return &v
	}
	return nil
}

func (a *Accumulator) LastProcessed() (time.Time, bool) {
	return a.lastProcessed, a.hasLast
}

// Export returns the entry Restore accepts back.
func (a *Accumulator) Export() store.Entry {
	e := store.Entry{
		Value: strconv.FormatFloat(a.value, 'f', -1, 64),
	}
	if a.hasLast {
		e.LastProcessed = reading.FormatTimestamp(a.lastProcessed)
	}
	return e
}
