package sink

import (
	"github.com/aquamon-pt/aquamon/pkg/api/v1/meter"
	"github.com/aquamon-pt/aquamon/pkg/state"
)

// Sink publishes sensor data for monitored meters.
type Sink interface {
	// Announce registers the meter's sensors with the consumer. Called once
	// per meter before the first publish.
	Announce(m *meter.Meter) error
	Publish(m *meter.Meter, s *state.State) error
	Available(m *meter.Meter, online bool) error
	Close() error
}
