// Package monitor exports optimizer telemetry to Prometheus. It implements
// the generation-observer hook; the engine never depends on it.
package monitor

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/theraloop/theraloop-go/pkg/gepa"
)

// GenerationMetrics publishes the per-generation Pareto parents: one gauge per
// parent per objective, the front size, and a running generation counter.
type GenerationMetrics struct {
	parentScore *prometheus.GaugeVec
	frontSize   prometheus.Gauge
	generations prometheus.Counter
}

// NewGenerationMetrics creates the collectors and registers them with reg.
func NewGenerationMetrics(reg prometheus.Registerer) *GenerationMetrics {
	m := &GenerationMetrics{
		parentScore: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "gepa_parent_score",
				Help: "Objective scores of the Pareto parents of the latest generation.",
			},
			[]string{"generation", "parent", "objective"},
		),
		frontSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gepa_front_size",
			Help: "Number of candidates on the latest Pareto front.",
		}),
		generations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gepa_generations_total",
			Help: "Total number of completed generation selections.",
		}),
	}
	reg.MustRegister(m.parentScore, m.frontSize, m.generations)
	return m
}

// Observer returns the hook to install on the optimizer.
func (m *GenerationMetrics) Observer() gepa.Observer {
	return func(generation int, parents []*gepa.Candidate) {
		gen := strconv.Itoa(generation)
		for i, p := range parents {
			if p.Score == nil {
				continue
			}
			parent := strconv.Itoa(i)
			m.parentScore.WithLabelValues(gen, parent, "exact").Set(p.Score.Exact)
			m.parentScore.WithLabelValues(gen, parent, "grounding").Set(p.Score.Grounding)
			m.parentScore.WithLabelValues(gen, parent, "confidence").Set(p.Score.Confidence)
		}
		m.frontSize.Set(float64(len(parents)))
		m.generations.Inc()
	}
}
