package dummy

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/aquamon-pt/aquamon/pkg/api/v1/meter"
	"github.com/aquamon-pt/aquamon/pkg/state"
)

// Dummy records everything published to it. Used by tests and for running
// without a broker, everything still lands in the log.
type Dummy struct {
	sync.Mutex
	announced []string
	states    map[string]*state.State
	online    map[string]bool
	publishes int
}

func New() *Dummy {
	return &Dummy{
		states: make(map[string]*state.State),
		online: make(map[string]bool),
	}
}

func (d *Dummy) Announce(m *meter.Meter) error {
	d.Lock()
	d.announced = append(d.announced, m.Number)
	d.Unlock()
	logrus.Infof("dummy: Announce %s", m.Number)
	return nil
}

func (d *Dummy) Publish(m *meter.Meter, s *state.State) error {
	d.Lock()
	d.states[m.Number] = s
	d.publishes++
	d.Unlock()
	logrus.WithFields(logrus.Fields(s.Map())).Infof("dummy: Publish %s", m.Number)
	return nil
}

func (d *Dummy) Available(m *meter.Meter, online bool) error {
	d.Lock()
	d.online[m.Number] = online
	d.Unlock()
	logrus.Infof("dummy: Available %s %t", m.Number, online)
	return nil
}

func (d *Dummy) Close() error {
	return nil
}

func (d *Dummy) Announced() []string {
	d.Lock()
	defer d.Unlock()
	return append([]string(nil), d.announced...)
}

func (d *Dummy) LastState(number string) *state.State {
	d.Lock()
	defer d.Unlock()
	return d.states[number]
}

func (d *Dummy) Online(number string) bool {
	d.Lock()
	defer d.Unlock()
	return d.online[number]
}

func (d *Dummy) Publishes() int {
	d.Lock()
	defer d.Unlock()
	return d.publishes
}
