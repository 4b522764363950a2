package perf

import (
	"expvar"
	"net/http"

	"github.com/encodeous/metric"
	"github.com/prometheus/client_golang/prometheus"
)

// Counter feeds a windowed rate and a process-lifetime prometheus total from the same increments.
type Counter struct {
	rate  metric.Metric
	total prometheus.Counter
}

func newCounter(name, help string) *Counter {
	c := &Counter{
		rate: metric.NewCounter("10s1s"),
		total: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bgpr",
			Name:      name,
			Help:      help,
		}),
	}
	Registry.MustRegister(c.total)
	return c
}

func (c *Counter) Add(n float64) {
	c.rate.Add(n)
	c.total.Add(n)
}

func (c *Counter) String() string {
	return c.rate.String()
}

var (
	Registry = prometheus.NewRegistry()

	RoundLatency = metric.NewHistogram("1m1s")
	PhaseLatency = metric.NewHistogram("1m1s")

	AnnouncementsReceived = newCounter("announcements_received_total", "Announcements queued at a routing process.")
	AnnouncementsSent     = newCounter("announcements_sent_total", "Announcements exported to a neighbour.")
	AnnouncementsDropped  = newCounter("announcements_dropped_total", "Announcements discarded for a loop or a poisoned path.")
	RoutesInstalled       = newCounter("routes_installed_total", "Best route changes across all routing processes.")

	Rounds = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "bgpr",
		Name:      "rounds_total",
		Help:      "Completed propagation rounds.",
	})
)

func init() {
	Registry.MustRegister(Rounds)

	http.Handle("/debug/metrics", metric.Handler(metric.Exposed))
	expvar.Publish("bgpr:Received/s", AnnouncementsReceived)
	expvar.Publish("bgpr:Sent/s", AnnouncementsSent)
	expvar.Publish("bgpr:Dropped/s", AnnouncementsDropped)
	expvar.Publish("bgpr:Installed/s", RoutesInstalled)
	expvar.Publish("bgpr:RoundLatency (ms)", RoundLatency)
	expvar.Publish("bgpr:PhaseLatency (µs)", PhaseLatency)
}
