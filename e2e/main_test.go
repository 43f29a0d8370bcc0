package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/fortnoxab/gohtmock"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"github.com/aquamon-pt/aquamon/pkg/api/v1/config"
	"github.com/aquamon-pt/aquamon/pkg/app"
	"github.com/aquamon-pt/aquamon/pkg/sink/dummy"
)

func testConfig(serverURL, dir string) *config.CliConfig {
	return &config.CliConfig{
		Server:           serverURL,
		APIKey:           "test-key",
		Username:         "user@example.com",
		Password:         "secret",
		MeterNumber:      "123456",
		SubscriptionID:   "sub-1",
		UpdateInterval:   "15m",
		HistoryDays:      90,
		FilterNegative:   true,
		CumulativePolicy: "advance-on-positive",
		StateFile:        filepath.Join(dir, "state.json"),
		TokenFile:        filepath.Join(dir, "token"),
		Sink:             "dummy",
		LogLevel:         "debug",
	}
}

// consumptionBody builds a window with one reading today and one yesterday.
func consumptionBody(now time.Time) (string, time.Time, time.Time) {
	today := time.Date(now.Year(), now.Month(), now.Day(), 10, 0, 0, 0, time.Local)
	yesterday := today.AddDate(0, 0, -1)
	body := fmt.Sprintf(`[
  {"date": "%s+00:00", "consumption": 150, "cil": "PT123"},
  {"date": "%s+00:00", "consumption": 200}
]`, today.Format("2006-01-02T15:04:05"), yesterday.Format("2006-01-02T15:04:05"))
	return body, today, yesterday
}

func TestFullRefreshFlow(t *testing.T) {
	logrus.SetLevel(logrus.DebugLevel)
	mock := gohtmock.New()
	dir := t.TempDir()

	conf := testConfig(mock.URL(), dir)
	conf.HTTPAddress = "127.0.0.1:18099"

	a := app.New(conf)
	d := dummy.New()
	a.SetSink(d)

	mock.Mock("/login", "").SetMethod("POST").SetHeader("X-Auth-Token", "tok-1")
	body, today, yesterday := consumptionBody(time.Now())
	mock.Mock("/History/consumo/carga", body)

	ctx, cancel := context.WithCancel(context.TODO())
	defer cancel()
	err := a.Start(ctx)
	assert.NoError(t, err)

	WaitFor(t, time.Second, "first publish", func() bool {
		return d.LastState("123456") != nil
	})

	st := d.LastState("123456")
	if st == nil {
		t.Fatal("no state published")
	}
	assert.Equal(t, 150.0, *st.LatestReading)
	assert.Equal(t, "PT123", *st.Cil)
	assert.Equal(t, 150.0, *st.DailyTotal)
	assert.Equal(t, 350.0, *st.WeeklyTotal)
	expectedMonthly := 150.0
	if yesterday.Month() == today.Month() {
		expectedMonthly = 350.0
	}
	assert.Equal(t, expectedMonthly, *st.MonthlyTotal)
	assert.Equal(t, 350.0, *st.CumulativeTotal)
	assert.Equal(t, int64(2), *st.ReadingCount)
	assert.True(t, d.Online("123456"))
	assert.Equal(t, []string{"123456"}, d.Announced())

	// token and cumulative state hit disk
	b, err := os.ReadFile(conf.TokenFile)
	assert.NoError(t, err)
	assert.Equal(t, "tok-1", string(b))

	b, err = os.ReadFile(conf.StateFile)
	assert.NoError(t, err)
	assert.Contains(t, string(b), `"value": "350"`)

	// http api serves the published state
	WaitFor(t, time.Second, "http api up", func() bool {
		resp, err := http.Get("http://127.0.0.1:18099/health")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		return resp.StatusCode == 200
	})

	resp, err := http.Get("http://127.0.0.1:18099/api/v1/meters/123456")
	assert.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, 200, resp.StatusCode)

	var published struct {
		LatestReading   float64 `json:"latestReading"`
		CumulativeTotal float64 `json:"cumulativeTotal"`
	}
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&published))
	assert.Equal(t, 150.0, published.LatestReading)
	assert.Equal(t, 350.0, published.CumulativeTotal)

	mock.AssertCallCount(t, "POST", "/login", 1)
	mock.AssertCallCount(t, "GET", "/History/consumo/carga", 1)
	mock.AssertMocksCalled(t)
}

func TestExpiredTokenIsReplacedMidFlight(t *testing.T) {
	logrus.SetLevel(logrus.DebugLevel)
	mock := gohtmock.New()
	dir := t.TempDir()

	// stale token on disk from an earlier run
	conf := testConfig(mock.URL(), dir)
	assert.NoError(t, os.WriteFile(conf.TokenFile, []byte("tok-stale"), 0644))

	a := app.New(conf)
	d := dummy.New()
	a.SetSink(d)

	mock.Mock("/login", "").SetMethod("POST").SetHeader("X-Auth-Token", "tok-fresh")
	body, _, _ := consumptionBody(time.Now())
	mock.Mock("/History/consumo/carga", body,
		func(r *http.Request) int {
			return 401
		}, func(r *http.Request) int {
			assert.Equal(t, "tok-fresh", r.Header.Get("X-Auth-Token"))
			return 200
		})

	ctx, cancel := context.WithCancel(context.TODO())
	defer cancel()
	err := a.Start(ctx)
	assert.NoError(t, err)

	WaitFor(t, time.Second, "publish after relogin", func() bool {
		return d.LastState("123456") != nil
	})

	st := d.LastState("123456")
	if st == nil {
		t.Fatal("no state published")
	}
	assert.Equal(t, 350.0, *st.CumulativeTotal)
	assert.True(t, d.Online("123456"))
	assert.Len(t, a.ActiveAlarms(), 0)

	mock.AssertCallCount(t, "POST", "/login", 1)
	mock.AssertCallCount(t, "GET", "/History/consumo/carga", 2)
	mock.AssertMocksCalled(t)
}

func TestRestartResumesCumulative(t *testing.T) {
	logrus.SetLevel(logrus.DebugLevel)
	dir := t.TempDir()

	// first run counts the whole window
	mock1 := gohtmock.New()
	conf1 := testConfig(mock1.URL(), dir)

	a1 := app.New(conf1)
	d1 := dummy.New()
	a1.SetSink(d1)

	mock1.Mock("/login", "").SetMethod("POST").SetHeader("X-Auth-Token", "tok-1")
	body, _, _ := consumptionBody(time.Now())
	mock1.Mock("/History/consumo/carga", body)

	ctx1, cancel1 := context.WithCancel(context.TODO())
	err := a1.Start(ctx1)
	assert.NoError(t, err)

	WaitFor(t, time.Second, "first run publish", func() bool {
		return d1.LastState("123456") != nil
	})
	st1 := d1.LastState("123456")
	if st1 == nil {
		t.Fatal("no state published on first run")
	}
	assert.Equal(t, 350.0, *st1.CumulativeTotal)

	cancel1()
	a1.Wait()

	// second run sees the same window again and must not double count
	mock2 := gohtmock.New()
	conf2 := testConfig(mock2.URL(), dir)

	a2 := app.New(conf2)
	d2 := dummy.New()
	a2.SetSink(d2)

	// no login mock: the persisted token is reused
	mock2.Mock("/History/consumo/carga", body)

	ctx2, cancel2 := context.WithCancel(context.TODO())
	defer cancel2()
	err = a2.Start(ctx2)
	assert.NoError(t, err)

	WaitFor(t, time.Second, "second run publish", func() bool {
		return d2.LastState("123456") != nil
	})

	st := d2.LastState("123456")
	if st == nil {
		t.Fatal("no state published on second run")
	}
	assert.Equal(t, 350.0, *st.CumulativeTotal)
	assert.NotNil(t, st.LastProcessedDate)

	mock2.AssertCallCount(t, "GET", "/History/consumo/carga", 1)
	mock2.AssertMocksCalled(t)
}

func TestMeterDiscovery(t *testing.T) {
	logrus.SetLevel(logrus.DebugLevel)
	mock := gohtmock.New()
	dir := t.TempDir()

	conf := testConfig(mock.URL(), dir)
	conf.MeterNumber = ""
	conf.SubscriptionID = ""

	a := app.New(conf)
	d := dummy.New()
	a.SetSink(d)

	mock.Mock("/login", "").SetMethod("POST").SetHeader("X-Auth-Token", "tok-1")
	mock.Mock("/Subscription/listSubscriptions", `[{"subscriptionId": "sub-9"}]`)
	mock.Mock("/leituras/getContadores", `[{"chaveContador": {"numeroContador": "777"}, "subscriptionId": "sub-9"}]`)
	body, _, _ := consumptionBody(time.Now())
	mock.Mock("/History/consumo/carga", body)

	ctx, cancel := context.WithCancel(context.TODO())
	defer cancel()
	err := a.Start(ctx)
	assert.NoError(t, err)

	WaitFor(t, time.Second, "discovered meter publish", func() bool {
		return d.LastState("777") != nil
	})

	st := d.LastState("777")
	if st == nil {
		t.Fatal("no state published for discovered meter")
	}
	assert.Equal(t, 150.0, *st.LatestReading)
	assert.Equal(t, []string{"777"}, d.Announced())

	mock.AssertCallCount(t, "GET", "/Subscription/listSubscriptions", 1)
	mock.AssertCallCount(t, "GET", "/leituras/getContadores", 1)
	mock.AssertMocksCalled(t)
}

func TestEmbeddedBrokerPublishes(t *testing.T) {
	logrus.SetLevel(logrus.DebugLevel)
	mock := gohtmock.New()
	dir := t.TempDir()

	conf := testConfig(mock.URL(), dir)
	conf.Sink = "embedded"
	conf.EmbeddedAddress = "127.0.0.1:18883"
	conf.MQTTPrefix = "aquamon"
	conf.DiscoveryPrefix = "homeassistant"

	a := app.New(conf)

	mock.Mock("/login", "").SetMethod("POST").SetHeader("X-Auth-Token", "tok-1")
	body, _, _ := consumptionBody(time.Now())
	mock.Mock("/History/consumo/carga", body)

	ctx, cancel := context.WithCancel(context.TODO())
	defer cancel()
	err := a.Start(ctx)
	assert.NoError(t, err)

	opts := pahomqtt.NewClientOptions().
		AddBroker("tcp://127.0.0.1:18883").
		SetClientID("e2e-subscriber")
	client := pahomqtt.NewClient(opts)
	token := client.Connect()
	token.Wait()
	assert.NoError(t, token.Error())
	defer client.Disconnect(100)

	stateMsg := make(chan []byte, 1)
	token = client.Subscribe("aquamon/123456/state", 0, func(c pahomqtt.Client, msg pahomqtt.Message) {
		select {
		case stateMsg <- msg.Payload():
		default:
		}
	})
	token.Wait()
	assert.NoError(t, token.Error())

	select {
	case payload := <-stateMsg:
		assert.Contains(t, string(payload), `"latestReading":150`)
		assert.Contains(t, string(payload), `"cumulativeTotal":350`)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for state message")
	}

	discoveryMsg := make(chan []byte, 1)
	token = client.Subscribe("homeassistant/sensor/aquamon_123456/daily_consumption/config", 0, func(c pahomqtt.Client, msg pahomqtt.Message) {
		select {
		case discoveryMsg <- msg.Payload():
		default:
		}
	})
	token.Wait()
	assert.NoError(t, token.Error())

	select {
	case payload := <-discoveryMsg:
		assert.Contains(t, string(payload), `"state_topic":"aquamon/123456/state"`)
		assert.Contains(t, string(payload), `"device_class":"water"`)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for discovery message")
	}
}

func WaitFor(t *testing.T, timeout time.Duration, msg string, ok func() bool) {
	end := time.Now().Add(timeout)
	for {
		if end.Before(time.Now()) {
			t.Errorf("timeout waiting for: %s", msg)
			return
		}
		time.Sleep(10 * time.Millisecond)
		if ok() {
			return
		}
	}
}
