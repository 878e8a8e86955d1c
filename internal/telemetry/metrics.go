// Package telemetry exports engine stage metrics to Prometheus and sets up
// the process logger.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/san-kum/polysim/internal/sim"
)

const namespace = "polysim"

// Metrics is a sim.Observer recording stage counts, steps and throughput.
type Metrics struct {
	registry *prometheus.Registry

	stagesStarted  *prometheus.CounterVec
	stagesFinished *prometheus.CounterVec
	steps          *prometheus.CounterVec
	stageDuration  *prometheus.HistogramVec
	tps            *prometheus.GaugeVec
	timestep       prometheus.Gauge
	running        prometheus.Gauge
}

var _ sim.Observer = (*Metrics)(nil)

// NewMetrics registers the collectors on a fresh registry. constLabels are
// attached to every series, typically the job id.
func NewMetrics(constLabels prometheus.Labels) *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		stagesStarted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   namespace,
				Name:        "stages_started_total",
				Help:        "Stages started, by stage name",
				ConstLabels: constLabels,
			},
			[]string{"stage"},
		),
		stagesFinished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   namespace,
				Name:        "stages_finished_total",
				Help:        "Stages finished, by stage name and status",
				ConstLabels: constLabels,
			},
			[]string{"stage", "status"},
		),
		steps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   namespace,
				Name:        "steps_total",
				Help:        "Timesteps advanced, by integration method",
				ConstLabels: constLabels,
			},
			[]string{"method"},
		),
		stageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace:   namespace,
				Name:        "stage_duration_seconds",
				Help:        "Wall time of finished stages",
				ConstLabels: constLabels,
				Buckets:     prometheus.ExponentialBuckets(0.01, 4, 10),
			},
			[]string{"stage"},
		),
		tps: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace:   namespace,
				Name:        "timesteps_per_second",
				Help:        "Throughput of the last finished stage",
				ConstLabels: constLabels,
			},
			[]string{"stage"},
		),
		timestep: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "timestep",
			Help:        "Engine timestep after the last stage event",
			ConstLabels: constLabels,
		}),
		running: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "stages_running",
			Help:        "Stages currently running",
			ConstLabels: constLabels,
		}),
	}
	reg.MustRegister(
		m.stagesStarted,
		m.stagesFinished,
		m.steps,
		m.stageDuration,
		m.tps,
		m.timestep,
		m.running,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) StageStarted(st sim.Stage) {
	m.stagesStarted.WithLabelValues(st.Name).Inc()
	m.timestep.Set(float64(st.StartTimestep))
	m.running.Inc()
}

func (m *Metrics) StageFinished(st sim.Stage, err error) {
	m.running.Dec()
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.stagesFinished.WithLabelValues(st.Name, status).Inc()
	if st.EndTimestep >= st.StartTimestep {
		m.steps.WithLabelValues(st.Method).Add(float64(st.EndTimestep - st.StartTimestep))
	}
	m.timestep.Set(float64(st.EndTimestep))
	if err == nil {
		m.stageDuration.WithLabelValues(st.Name).Observe(st.Elapsed.Seconds())
		m.tps.WithLabelValues(st.Name).Set(st.TPS)
	}
}

// WriteTextfile dumps the registry in the text exposition format for the
// node exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
