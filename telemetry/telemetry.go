package telemetry

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const defaultPort = 2112

const (
	LoginDuration      = "happytime_login_duration"
	ClockDuration      = "happytime_clock_duration"
	AttendanceDuration = "happytime_attendance_duration"
	Busy               = "happytime_busy"
	LoginFailures      = "happytime_login_failures_total"
	ClockFailures      = "happytime_clock_failures_total"
	AttendanceFailures = "happytime_attendance_failures_total"
)

// Measurements collects measurements for prometheus.
type Measurements struct {
	mux        sync.RWMutex
	factory    promauto.Factory
	gatherer   prometheus.Gatherer
	histograms map[string]prometheus.Observer
	gauge      map[string]prometheus.Gauge
	counters   map[string]prometheus.Counter
}

// New creates Measurements registering every entity in its own registry.
func New() *Measurements {
	reg := prometheus.NewRegistry()
	return &Measurements{
		factory:    promauto.With(reg),
		gatherer:   reg,
		histograms: make(map[string]prometheus.Observer),
		gauge:      make(map[string]prometheus.Gauge),
		counters:   make(map[string]prometheus.Counter),
	}
}

// RegisterPunchClock creates the entities recorded by the punch clock.
func (m *Measurements) RegisterPunchClock() {
	m.CreateUpdateObservableHistogram(LoginDuration, "Login pipeline duration in microseconds.")
	m.CreateUpdateObservableHistogram(ClockDuration, "Clock pipeline duration in microseconds.")
	m.CreateUpdateObservableHistogram(AttendanceDuration, "Attendance refresh duration in microseconds.")
	m.CreateUpdateObservableGauge(Busy, "Number of running pipelines.")
	m.CreateUpdateObservableCounter(LoginFailures, "Number of failed logins.")
	m.CreateUpdateObservableCounter(ClockFailures, "Number of failed clock requests.")
	m.CreateUpdateObservableCounter(AttendanceFailures, "Number of failed attendance refreshes.")
}

// CreateUpdateObservableHistogram creates an observable histogram unless it already exists.
func (m *Measurements) CreateUpdateObservableHistogram(name, description string) {
	m.mux.Lock()
	defer m.mux.Unlock()
	if _, ok := m.histograms[name]; ok {
		return
	}
	m.histograms[name] = m.factory.NewHistogram(prometheus.HistogramOpts{
		Name:    name,
		Help:    description,
		Buckets: prometheus.ExponentialBuckets(10_000, 2, 12),
	})
}

// RecordHistogramTime records histogram time if entity with given name exists.
func (m *Measurements) RecordHistogramTime(name string, t time.Duration) bool {
	m.mux.RLock()
	defer m.mux.RUnlock()
	if v, ok := m.histograms[name]; ok {
		v.Observe(float64(t.Microseconds()))
		return true
	}
	return false
}

// CreateUpdateObservableGauge creates an observable gauge unless it already exists.
func (m *Measurements) CreateUpdateObservableGauge(name, description string) {
	m.mux.Lock()
	defer m.mux.Unlock()
	if _, ok := m.gauge[name]; ok {
		return
	}
	m.gauge[name] = m.factory.NewGauge(prometheus.GaugeOpts{
		Name: name,
		Help: description,
	})
}

// IncrementGauge increments gauge if entity with given name exists.
func (m *Measurements) IncrementGauge(name string) bool {
	m.mux.RLock()
	defer m.mux.RUnlock()
	if v, ok := m.gauge[name]; ok {
		v.Inc()
		return true
	}
	return false
}

// DecrementGauge decrements gauge if entity with given name exists.
func (m *Measurements) DecrementGauge(name string) bool {
	m.mux.RLock()
	defer m.mux.RUnlock()
	if v, ok := m.gauge[name]; ok {
		v.Dec()
		return true
	}
	return false
}

// CreateUpdateObservableCounter creates an observable counter unless it already exists.
func (m *Measurements) CreateUpdateObservableCounter(name, description string) {
	m.mux.Lock()
	defer m.mux.Unlock()
	if _, ok := m.counters[name]; ok {
		return
	}
	m.counters[name] = m.factory.NewCounter(prometheus.CounterOpts{
		Name: name,
		Help: description,
	})
}

// IncrementCounter increments counter if entity with given name exists.
func (m *Measurements) IncrementCounter(name string) bool {
	m.mux.RLock()
	defer m.mux.RUnlock()
	if v, ok := m.counters[name]; ok {
		v.Inc()
		return true
	}
	return false
}

// Handler serves the collected measurements in the prometheus exposition format.
func (m *Measurements) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Run starts the server with prometheus telemetry endpoint and returns Measurements
// with the punch clock entities registered. The server stops when ctx is done and
// cancels the context when it cannot listen. Default port of 2112 is used if port value is set to 0.
func Run(ctx context.Context, cancel context.CancelFunc, port int) (*Measurements, error) {
	if port > 65535 || port < 0 {
		return nil, fmt.Errorf("port range allowed is from 1 to 65535, received %d", port)
	}
	if port == 0 {
		port = defaultPort
	}

	m := New()
	m.RegisterPunchClock()

	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			cancel()
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		srv.Shutdown(shutdownCtx) //nolint:errcheck
	}()

	return m, nil
}
