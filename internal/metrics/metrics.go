// Package metrics records sync pass outcomes as Prometheus metrics.
// The CLI is short-lived, so the registry is written out as a node-exporter textfile after each pass.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"tasksync/internal/syncer"
)

// Recorder implements syncer.Recorder on its own registry.
type Recorder struct {
	reg *prometheus.Registry

	Passes        *prometheus.CounterVec
	Pulled        prometheus.Gauge
	Pushed        prometheus.Gauge
	Errors        prometheus.Gauge
	Success       prometheus.Gauge
	Duration      prometheus.Gauge
	LastTimestamp prometheus.Gauge
}

// New creates a recorder with all metrics registered.
func New() *Recorder {
	r := &Recorder{
		reg: prometheus.NewRegistry(),
		Passes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tasksync_passes_total",
				Help: "Sync passes run, by result",
			},
			[]string{"result"},
		),
		Pulled: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tasksync_last_pass_pulled",
			Help: "Remote tasks imported by the last pass",
		}),
		Pushed: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tasksync_last_pass_pushed",
			Help: "Local tasks exported by the last pass",
		}),
		Errors: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tasksync_last_pass_errors",
			Help: "Errors reported by the last pass",
		}),
		Success: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tasksync_last_pass_success",
			Help: "1 if the last pass succeeded, 0 otherwise",
		}),
		Duration: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tasksync_last_pass_duration_seconds",
			Help: "Wall time of the last pass",
		}),
		LastTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tasksync_last_pass_timestamp_seconds",
			Help: "Unix time the last pass finished",
		}),
	}
	r.reg.MustRegister(r.Passes, r.Pulled, r.Pushed, r.Errors, r.Success, r.Duration, r.LastTimestamp)
	return r
}

// ObservePass implements syncer.Recorder.
func (r *Recorder) ObservePass(res syncer.Result, at time.Time) {
	result := "failed"
	if res.Success {
		result = "success"
	}
	r.Passes.WithLabelValues(result).Inc()

	r.Pulled.Set(float64(res.Pulled))
	r.Pushed.Set(float64(res.Pushed))
	r.Errors.Set(float64(len(res.Errors)))
	r.Duration.Set(res.Duration.Seconds())
	r.LastTimestamp.Set(float64(at.Unix()))
	if res.Success {
		r.Success.Set(1)
	} else {
		r.Success.Set(0)
	}
}

// Registry exposes the registry for callers that serve or gather it.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.reg
}

// WriteTextfile writes the current values to path atomically.
func (r *Recorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.reg)
}
