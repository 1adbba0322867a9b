package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/local/djvutailor/internal/command"
)

var (
	pagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "djvutailor",
			Name:      "pages_total",
			Help:      "Pages handled, by kind and result (ok, error, skipped)",
		},
		[]string{"kind", "result"},
	)

	pageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "djvutailor",
			Name:      "page_duration_seconds",
			Help:      "Full classify+encode duration per page, by kind",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	commandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "djvutailor",
			Name:      "commands_total",
			Help:      "External tool invocations, by tool and result",
		},
		[]string{"tool", "result"},
	)

	commandDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "djvutailor",
			Name:      "command_duration_seconds",
			Help:      "External tool run time, by tool",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"tool"},
	)
)

// Init registers collectors.
func Init() {
	prometheus.MustRegister(pagesTotal, pageDuration, commandsTotal, commandDuration)
}

// Handler returns the http.Handler for /metrics.
func Handler() http.Handler { return promhttp.Handler() }

// Serve exposes /metrics on addr for long batch runs. Best effort: a busy
// port is logged and ignored.
func Serve(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
			log.Warn().Err(err).Str("addr", addr).Msg("metrics listener failed")
		}
	}()
}

func IncPage(kind, result string) { pagesTotal.WithLabelValues(kind, result).Inc() }

func ObservePage(kind string, dur time.Duration) {
	pageDuration.WithLabelValues(kind).Observe(dur.Seconds())
}

func observeCommand(tool, result string, dur time.Duration) {
	commandsTotal.WithLabelValues(tool, result).Inc()
	commandDuration.WithLabelValues(tool).Observe(dur.Seconds())
}

// InstrumentedRunner decorates a command.Runner with per-tool counters and
// duration histograms.
type InstrumentedRunner struct {
	Inner command.Runner
}

func (r InstrumentedRunner) Run(ctx context.Context, stdin []byte, name string, args ...string) ([]byte, []byte, error) {
	start := time.Now()
	stdout, stderr, err := r.Inner.Run(ctx, stdin, name, args...)
	result := "ok"
	if err != nil {
		result = "error"
	}
	observeCommand(name, result, time.Since(start))
	return stdout, stderr, err
}
