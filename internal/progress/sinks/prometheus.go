package sinks

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sigmetapp/seohqs-sub000/internal/progress"
)

// PrometheusSink exports analysis progress metrics. It owns all
// collectors for analyses started/completed/running plus scan counters.
type PrometheusSink struct {
	analysesStarted   prometheus.Counter
	analysesCompleted *prometheus.CounterVec
	analysesRunning   prometheus.Gauge
	analysisRuntime   *prometheus.HistogramVec

	linesProcessed prometheus.Counter
	botVisits      prometheus.Counter

	tracker *runTracker
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		analysesStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "loganalyzer_analyses_started_total",
			Help: "Total analyses that have started.",
		}),
		analysesCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "loganalyzer_analyses_completed_total",
			Help: "Total analyses completed partitioned by result.",
		}, []string{"result"}),
		analysesRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "loganalyzer_analyses_running",
			Help: "Current number of running analyses.",
		}),
		analysisRuntime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "loganalyzer_analysis_runtime_seconds",
			Help:    "Wall time per completed analysis.",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		}, []string{"result"}),
		linesProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "loganalyzer_lines_processed_total",
			Help: "Log lines scanned across completed analyses.",
		}),
		botVisits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "loganalyzer_bot_visits_total",
			Help: "Crawler visits matched across completed analyses.",
		}),
		tracker: newRunTracker(),
	}
	for _, collector := range []prometheus.Collector{
		s.analysesStarted,
		s.analysesCompleted,
		s.analysesRunning,
		s.analysisRuntime,
		s.linesProcessed,
		s.botVisits,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the collectors using the provided batch. Safe for
// concurrent use.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		s.consumeEvent(evt)
	}
	return nil
}

func (s *PrometheusSink) consumeEvent(evt progress.Event) {
	switch evt.Stage {
	case progress.StageAnalysisStart:
		s.analysesStarted.Inc()
		if s.tracker.start(evt.RunID) {
			s.analysesRunning.Inc()
		}
		return
	case progress.StageAnalysisDone:
		s.analysesCompleted.WithLabelValues("success").Inc()
		s.observeTerminal(evt, "success")
	case progress.StageAnalysisError:
		s.analysesCompleted.WithLabelValues("error").Inc()
		s.observeTerminal(evt, "error")
	case progress.StageAnalysisTick:
		return
	}
	if s.tracker.complete(evt.RunID) {
		s.analysesRunning.Dec()
	}
}

func (s *PrometheusSink) observeTerminal(evt progress.Event, label string) {
	if evt.Dur > 0 {
		s.analysisRuntime.WithLabelValues(label).Observe(evt.Dur.Seconds())
	}
	if evt.LinesProcessed > 0 {
		s.linesProcessed.Add(float64(evt.LinesProcessed))
	}
	if evt.BotVisits > 0 {
		s.botVisits.Add(float64(evt.BotVisits))
	}
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}

type runTracker struct {
	mu      sync.Mutex
	running map[[16]byte]struct{}
}

func newRunTracker() *runTracker {
	return &runTracker{running: make(map[[16]byte]struct{})}
}

func (t *runTracker) start(id [16]byte) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; ok {
		return false
	}
	t.running[id] = struct{}{}
	return true
}

func (t *runTracker) complete(id [16]byte) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; !ok {
		return false
	}
	delete(t.running, id)
	return true
}
