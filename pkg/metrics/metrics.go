package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ticksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aquamon_ticks_total",
		Help: "Completed refresh ticks by meter and result.",
	}, []string{"meter", "result"})

	tickDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "aquamon_tick_duration_seconds",
		Help:    "Duration of a refresh tick.",
		Buckets: prometheus.DefBuckets,
	}, []string{"meter"})

	readingsFetched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aquamon_readings_fetched_total",
		Help: "Raw readings returned by the portal.",
	}, []string{"meter"})

	readingsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aquamon_readings_dropped_total",
		Help: "Readings dropped because the date would not parse.",
	}, []string{"meter"})

	portalRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aquamon_portal_requests_total",
		Help: "Requests sent to the portal by endpoint and status code.",
	}, []string{"endpoint", "status"})

	cumulativeLitres = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "aquamon_cumulative_litres",
		Help: "Lifetime cumulative consumption counter.",
	}, []string{"meter"})

	windowNegatives = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "aquamon_window_negative_readings",
		Help: "Negative readings present in the current window.",
	}, []string{"meter"})
)

func ObserveTick(meter string, d time.Duration, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	ticksTotal.WithLabelValues(meter, result).Inc()
	tickDuration.WithLabelValues(meter).Observe(d.Seconds())
}

func ObserveWindow(meter string, fetched, dropped, negatives int) {
	readingsFetched.WithLabelValues(meter).Add(float64(fetched))
	readingsDropped.WithLabelValues(meter).Add(float64(dropped))
	windowNegatives.WithLabelValues(meter).Set(float64(negatives))
}

func PortalRequest(endpoint string, status int) {
	portalRequests.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()
}

func SetCumulative(meter string, litres float64) {
	cumulativeLitres.WithLabelValues(meter).Set(litres)
}
