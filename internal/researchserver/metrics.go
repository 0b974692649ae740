package researchserver

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/anatolykoptev/go_research/internal/research"
)

var (
	runsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "research_runs_total",
			Help: "Total research runs by outcome",
		},
		[]string{"outcome"}, // answered, no_results, invalid, canceled, error
	)

	runDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "research_run_duration_seconds",
			Help:    "Research run latency in seconds",
			Buckets: []float64{1, 2, 5, 10, 20, 30, 60, 120, 300, 600},
		},
		[]string{"outcome"},
	)

	searchAttempts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "research_search_attempts_total",
			Help: "Total search attempts across research runs",
		},
	)
)

// Runner answers one research question.
type Runner interface {
	Run(ctx context.Context, q research.Question) (research.Result, error)
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, q research.Question) (research.Result, error)

func (f RunnerFunc) Run(ctx context.Context, q research.Question) (research.Result, error) {
	return f(ctx, q)
}

// Instrument wraps r so every run is counted and timed.
func Instrument(r Runner) Runner {
	if _, ok := r.(instrumented); ok {
		return r
	}
	return instrumented{next: r}
}

type instrumented struct{ next Runner }

func (i instrumented) Run(ctx context.Context, q research.Question) (research.Result, error) {
	start := time.Now()
	res, err := i.next.Run(ctx, q)
	outcome := Outcome(res, err)
	runsTotal.WithLabelValues(outcome).Inc()
	runDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	if res.SearchAttempts > 0 {
		searchAttempts.Add(float64(res.SearchAttempts))
	}
	return res, err
}

// Outcome classifies a run for metrics and logs.
func Outcome(res research.Result, err error) string {
	switch {
	case errors.Is(err, research.ErrInvalidQuestion):
		return "invalid"
	case errors.Is(err, research.ErrCanceled):
		return "canceled"
	case err != nil:
		return "error"
	case res.Failed():
		return "no_results"
	default:
		return "answered"
	}
}
