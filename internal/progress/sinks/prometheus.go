package sinks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/sitegen-portal/internal/generation"
	"github.com/JakeFAU/sitegen-portal/internal/progress"
)

// PrometheusSink exports generation progress metrics via Prometheus. It owns
// the collectors for runs started/finished/running and per-event counters.
type PrometheusSink struct {
	events        *prometheus.CounterVec
	runsStarted   prometheus.Counter
	runsFinished  *prometheus.CounterVec
	runsRunning   prometheus.Gauge
	runDuration   *prometheus.HistogramVec
	progressValue *prometheus.HistogramVec

	tracker *runTracker
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_generation_events_total",
			Help: "Status transitions partitioned by external event name and mapped status.",
		}, []string{"event", "status"}),
		runsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "portal_generation_runs_started_total",
			Help: "Generation runs observed for the first time.",
		}),
		runsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_generation_runs_finished_total",
			Help: "Generation runs that reached a terminal status, partitioned by result.",
		}, []string{"result"}),
		runsRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "portal_generation_runs_running",
			Help: "Generation runs seen but not yet terminal.",
		}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "portal_generation_run_duration_seconds",
			Help:    "Time from first to terminal status per run.",
			Buckets: []float64{15, 30, 60, 120, 180, 300, 600, 1200},
		}, []string{"result"}),
		progressValue: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "portal_generation_progress_percent",
			Help:    "Reported progress values partitioned by status.",
			Buckets: []float64{0, 10, 25, 50, 60, 100},
		}, []string{"status"}),
		tracker: newRunTracker(),
	}
	for _, collector := range []prometheus.Collector{
		s.events,
		s.runsStarted,
		s.runsFinished,
		s.runsRunning,
		s.runDuration,
		s.progressValue,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the Prometheus collectors using the provided batch.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		status := string(evt.Record.Status)
		s.events.WithLabelValues(evt.Name, status).Inc()
		s.progressValue.WithLabelValues(status).Observe(float64(evt.Record.Progress))

		if s.tracker.start(evt.ClientID, evt.TS) {
			s.runsStarted.Inc()
			s.runsRunning.Inc()
		}
		if !evt.Terminal() {
			continue
		}
		result := "success"
		if evt.Record.Status == generation.StatusError {
			result = "error"
		}
		s.runsFinished.WithLabelValues(result).Inc()
		if started, ok := s.tracker.complete(evt.ClientID); ok {
			s.runsRunning.Dec()
			if d := evt.TS.Sub(started); d > 0 {
				s.runDuration.WithLabelValues(result).Observe(d.Seconds())
			}
		}
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}

type runTracker struct {
	mu      sync.Mutex
	running map[string]time.Time
}

func newRunTracker() *runTracker {
	return &runTracker{running: make(map[string]time.Time)}
}

// start records the first sighting of id and reports whether it was new.
func (t *runTracker) start(id string, at time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; ok {
		return false
	}
	t.running[id] = at
	return true
}

func (t *runTracker) complete(id string) (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	at, ok := t.running[id]
	if ok {
		delete(t.running, id)
	}
	return at, ok
}
