package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters and gauges for the video wall server.
type Metrics struct {
	registry           *prometheus.Registry
	requestsTotal      prometheus.Counter
	configPushesTotal  prometheus.Counter
	heartbeatsTotal    prometheus.Counter
	sceneRestoresTotal prometheus.Counter
	onlineScreens      prometheus.Gauge
	liveCameras        prometheus.Gauge
	errorsTotal        prometheus.Counter
}

// New creates and registers Prometheus metrics for the orchestration server.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	requestsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "wall_requests_total",
		Help: "Total number of HTTP requests received",
	})
	configPushesTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "wall_config_pushes_total",
		Help: "Total number of configuration snapshots pushed to display nodes",
	})
	heartbeatsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "wall_heartbeats_total",
		Help: "Total number of heartbeats received from display nodes",
	})
	sceneRestoresTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "wall_scene_restores_total",
		Help: "Total number of scene restore operations applied",
	})
	onlineScreens := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "wall_online_screens",
		Help: "Number of display nodes currently online",
	})
	liveCameras := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "wall_live_cameras",
		Help: "Number of cameras currently reported live",
	})
	errorsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "wall_errors_total",
		Help: "Total number of HTTP responses with error status (4xx or 5xx)",
	})

	registry.MustRegister(
		requestsTotal,
		configPushesTotal,
		heartbeatsTotal,
		sceneRestoresTotal,
		onlineScreens,
		liveCameras,
		errorsTotal,
	)

	return &Metrics{
		registry:           registry,
		requestsTotal:      requestsTotal,
		configPushesTotal:  configPushesTotal,
		heartbeatsTotal:    heartbeatsTotal,
		sceneRestoresTotal: sceneRestoresTotal,
		onlineScreens:      onlineScreens,
		liveCameras:        liveCameras,
		errorsTotal:        errorsTotal,
	}
}

// IncRequests increments the total request counter.
func (m *Metrics) IncRequests() {
	m.requestsTotal.Inc()
}

// IncConfigPushes increments the config push counter.
func (m *Metrics) IncConfigPushes() {
	m.configPushesTotal.Inc()
}

// IncHeartbeats increments the heartbeat counter.
func (m *Metrics) IncHeartbeats() {
	m.heartbeatsTotal.Inc()
}

// IncSceneRestores increments the scene restore counter.
func (m *Metrics) IncSceneRestores() {
	m.sceneRestoresTotal.Inc()
}

// SetOnlineScreens sets the online screens gauge.
func (m *Metrics) SetOnlineScreens(n int) {
	m.onlineScreens.Set(float64(n))
}

// SetLiveCameras sets the live cameras gauge.
func (m *Metrics) SetLiveCameras(n int) {
	m.liveCameras.Set(float64(n))
}

// IncErrors increments the errors counter.
func (m *Metrics) IncErrors() {
	m.errorsTotal.Inc()
}

// Handler returns an http.Handler that serves Prometheus metrics.
// updateGauges is called before each scrape to refresh gauge values
// (e.g. online screens, live cameras).
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}
