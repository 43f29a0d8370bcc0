package app

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/aquamon-pt/aquamon/pkg/aggregate"
	"github.com/aquamon-pt/aquamon/pkg/alarm"
	"github.com/aquamon-pt/aquamon/pkg/api/v1/config"
	"github.com/aquamon-pt/aquamon/pkg/api/v1/meter"
	"github.com/aquamon-pt/aquamon/pkg/api/v1/types"
	"github.com/aquamon-pt/aquamon/pkg/cumulative"
	"github.com/aquamon-pt/aquamon/pkg/httpapi"
	"github.com/aquamon-pt/aquamon/pkg/metrics"
	"github.com/aquamon-pt/aquamon/pkg/portal"
	"github.com/aquamon-pt/aquamon/pkg/reading"
	"github.com/aquamon-pt/aquamon/pkg/sink"
	"github.com/aquamon-pt/aquamon/pkg/sink/dummy"
	"github.com/aquamon-pt/aquamon/pkg/sink/embedded"
	mqttsink "github.com/aquamon-pt/aquamon/pkg/sink/mqtt"
	"github.com/aquamon-pt/aquamon/pkg/state"
	"github.com/aquamon-pt/aquamon/pkg/store"
	"github.com/aquamon-pt/aquamon/pkg/version"
)

type App struct {
	wg     *sync.WaitGroup
	config *config.CliConfig

	client *portal.Client
	sink   sink.Sink
	store  *store.Store
	cache  *meter.Cache

	interval     time.Duration
	accumulators map[string]*cumulative.Accumulator
	alarms       map[string]*alarm.ActiveAlarms
}

func New(config *config.CliConfig) *App {
	return &App{
		wg:           &sync.WaitGroup{},
		config:       config,
		cache:        meter.NewCache(),
		accumulators: make(map[string]*cumulative.Accumulator),
		alarms:       make(map[string]*alarm.ActiveAlarms),
	}
}

// SetSink overrides the configured sink. Used by tests.
func (a *App) SetSink(s sink.Sink) {
	a.sink = s
}

func (a *App) Start(ctx context.Context) error {
	logrus.Infof("starting aquamon %s", version.Version)

	interval, err := time.ParseDuration(a.config.UpdateInterval)
	if err != nil {
		return fmt.Errorf("error parsing updateinterval: %w", err)
	}
	a.interval = interval

	policy, err := cumulative.ParsePolicy(a.config.CumulativePolicy)
	if err != nil {
		return err
	}

	a.client = portal.New(a.config.Server, a.config.APIKey, a.config.Username, a.config.Password, a.config.TokenFile)
	err = a.client.LoadToken()
	if err != nil {
		return err
	}

	a.store = store.New(a.config.StateFile)
	err = a.store.Load()
	if err != nil {
		logrus.Warnf("error loading state file, starting with empty state: %v", err)
	}

	meters, err := a.resolveMeters(ctx)
	if err != nil {
		return err
	}
	if len(meters) == 0 {
		return fmt.Errorf("no meters configured or discovered")
	}

	if a.sink == nil {
		a.sink, err = a.newSink(ctx)
		if err != nil {
			return err
		}
	}

	for _, m := range meters {
		m := m
		acc := cumulative.New(policy)
		if entry, ok := a.store.Get(m.Number); ok {
			acc.Restore(entry)
		}
		a.accumulators[m.Number] = acc
		a.alarms[m.Number] = &alarm.ActiveAlarms{}

		err = a.sink.Announce(&m)
		if err != nil {
			return err
		}

		a.wg.Add(1)
		go a.meterLoop(ctx, &m)
	}

	if a.config.HTTPAddress != "" {
		httpapi.New(a.config.HTTPAddress, a.cache, a.ActiveAlarms).Start(ctx, a.wg)
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		<-ctx.Done()
		err := a.sink.Close()
		if err != nil {
			logrus.Error(err)
		}
	}()

	return nil
}

func (a *App) Wait() {
	a.wg.Wait()
}

// ActiveAlarms lists active alarms across all meters.
func (a *App) ActiveAlarms() []string {
	all := []string{}
	for number, alarms := range a.alarms {
		for _, s := range alarms.Active() {
			all = append(all, fmt.Sprintf("%s: %s", number, s))
		}
	}
	sort.Strings(all)
	return all
}

// resolveMeters returns the configured meters, discovering the subscription
// and meter list from the portal when configuration leaves them out.
func (a *App) resolveMeters(ctx context.Context) ([]meter.Meter, error) {
	configured, err := a.config.Meters()
	if err != nil {
		return nil, err
	}

	meters := make([]meter.Meter, 0, len(configured))
	for _, m := range configured {
		meters = append(meters, meter.Meter{Number: m.Number, SubscriptionID: m.SubscriptionID, Name: m.Name})
	}

	if len(meters) == 0 {
		meters, err = a.discoverMeters(ctx)
		if err != nil {
			return nil, err
		}
	}

	missing := false
	for _, m := range meters {
		if m.SubscriptionID == "" {
			missing = true
		}
	}
	if missing {
		subID, err := a.firstSubscriptionID(ctx)
		if err != nil {
			return nil, err
		}
		for i := range meters {
			if meters[i].SubscriptionID == "" {
				meters[i].SubscriptionID = subID
			}
		}
	}
	return meters, nil
}

func (a *App) firstSubscriptionID(ctx context.Context) (string, error) {
	subs := a.client.Subscriptions(ctx)
	if len(subs) == 0 {
		return "", fmt.Errorf("no subscription id configured and none discovered")
	}
	id := subs[0].Identifier()
	logrus.Infof("using subscription %s", id)
	return id, nil
}

func (a *App) discoverMeters(ctx context.Context) ([]meter.Meter, error) {
	subID, err := a.firstSubscriptionID(ctx)
	if err != nil {
		return nil, err
	}

	infos, err := a.client.Meters(ctx, subID)
	if err != nil {
		return nil, err
	}

	meters := make([]meter.Meter, 0, len(infos))
	for _, info := range infos {
		number := info.Number()
		if number == "" {
			continue
		}
		sid := info.Subscription()
		if sid == "" {
			sid = subID
		}
		meters = append(meters, meter.Meter{Number: number, SubscriptionID: sid})
		logrus.Infof("discovered meter %s", number)
	}
	return meters, nil
}

func (a *App) newSink(ctx context.Context) (sink.Sink, error) {
	switch types.SinkType(a.config.Sink) {
	case types.SinkTypeMQTT:
		return mqttsink.New(a.config.MQTTBroker, a.config.MQTTPrefix, a.config.DiscoveryPrefix)
	case types.SinkTypeEmbedded:
		return embedded.Start(ctx, a.wg, a.config.EmbeddedAddress, a.config.MQTTPrefix, a.config.DiscoveryPrefix)
	case types.SinkTypeDummy:
		return dummy.New(), nil
	}
	return nil, fmt.Errorf("unknown sink type: %s", a.config.Sink)
}

// meterLoop serializes all work for one meter. First refresh runs right
// away, later ones on the interval boundary.
func (a *App) meterLoop(ctx context.Context, m *meter.Meter) {
	defer a.wg.Done()
	delay := nextDelay(time.Now(), a.interval)
	timer := time.NewTimer(delay)
	a.refresh(ctx, m)
	logrus.Debugf("meter %s: next refresh in %s", m.Number, delay)
	for {
		select {
		case <-timer.C:
			timer.Reset(nextDelay(time.Now(), a.interval))
			a.refresh(ctx, m)
		case <-ctx.Done():
			return
		}
	}
}

func (a *App) refresh(ctx context.Context, m *meter.Meter) {
	start := time.Now()
	err := a.tick(ctx, m)
	metrics.ObserveTick(m.Number, time.Since(start), err)

	alarms := a.alarms[m.Number]
	if err != nil {
		if ctx.Err() != nil {
			return // shutting down
		}
		if alarms.Add(err.Error()) {
			logrus.Errorf("meter %s: %v", m.Number, err)
		} else {
			logrus.Debugf("meter %s: still failing: %v", m.Number, err)
		}
		err = a.sink.Available(m, false)
		if err != nil {
			logrus.Error(err)
		}
		return
	}

	if alarms.Clear() {
		logrus.Infof("meter %s: refresh recovered", m.Number)
	}
	err = a.sink.Available(m, true)
	if err != nil {
		logrus.Error(err)
	}
}

// tick is one full refresh: fetch the window, derive totals, fold into the
// cumulative counter, persist and publish. Nothing is committed when the
// fetch fails.
func (a *App) tick(ctx context.Context, m *meter.Meter) error {
	records, err := a.client.Consumption(ctx, m.Number, m.SubscriptionID, a.config.HistoryDays)
	if err != nil {
		return fmt.Errorf("error fetching consumption: %w", err)
	}

	window, dropped := reading.NormalizeAll(records)
	snap := aggregate.Aggregate(window, time.Now(), a.config.FilterNegative)
	metrics.ObserveWindow(m.Number, len(records), dropped, snap.NegativeCount)

	acc := a.accumulators[m.Number]
	added := acc.Ingest(window)
	if added > 0 {
		logrus.WithFields(logrus.Fields{
			"meter": m.Number,
			"added": added,
			"total": acc.Value(),
		}).Debug("cumulative total advanced")
	}
	err = a.store.Put(m.Number, acc.Export())
	if err != nil {
		return fmt.Errorf("error persisting cumulative state: %w", err)
	}
	metrics.SetCumulative(m.Number, acc.Value())

	st := buildState(m, snap, acc)
	err = a.sink.Publish(m, st)
	if err != nil {
		return fmt.Errorf("error publishing state: %w", err)
	}
	a.cache.Set(m.Number, st)
	return nil
}

func buildState(m *meter.Meter, snap *aggregate.Snapshot, acc *cumulative.Accumulator) *state.State {
	st := &state.State{
		MeterNumber:      pointer(m.Number),
		LatestReading:    snap.LatestReading,
		DailyTotal:       pointer(snap.DailyTotal),
		WeeklyTotal:      pointer(snap.WeeklyTotal),
		MonthlyTotal:     pointer(snap.MonthlyTotal),
		NegativeCount:    pointer(int64(snap.NegativeCount)),
		AdjustmentsTotal: pointer(snap.AdjustmentsTotal),
		ReadingCount:     pointer(int64(snap.ReadingCount)),
		CumulativeTotal:  acc.Displayed(),
	}
	if snap.LastReadingDate != "" {
		st.LastReadingDate = pointer(snap.LastReadingDate)
	}
	if snap.Cil != "" {
		st.Cil = pointer(snap.Cil)
	}
	if t, ok := acc.LastProcessed(); ok {
		st.LastProcessedDate = pointer(reading.FormatTimestamp(t))
	}
	return st
}
