// Package metrics exports the cutflow of a run as Prometheus metrics.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "l1tnp"

// Collector counts events and mc_weight per checkpoint and chunks and probes
// per run. It is safe for concurrent use and implements tnp.Observer.
type Collector struct {
	registry *prometheus.Registry

	events  *prometheus.CounterVec
	weights *prometheus.GaugeVec
	chunks  *prometheus.CounterVec
	probes  prometheus.Counter
	process *prometheus.GaugeVec
}

func New(dataset string) *Collector {
	labels := prometheus.Labels{"dataset": dataset}
	c := &Collector{
		registry: prometheus.NewRegistry(),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "checkpoint_events_total",
			Help:        "Events surviving each reduction checkpoint.",
			ConstLabels: labels,
		}, []string{"stage"}),
		// Gauges, since simulated weights may be negative.
		weights: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "checkpoint_mc_weight_sum",
			Help:        "Sum of mc_weight of simulated events surviving each checkpoint.",
			ConstLabels: labels,
		}, []string{"stage"}),
		chunks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "chunks_total",
			Help:        "Chunks processed, by outcome.",
			ConstLabels: labels,
		}, []string{"outcome"}),
		probes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "probes_total",
			Help:        "Probe records written.",
			ConstLabels: labels,
		}),
		process: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "process_mc_weight_sum",
			Help:        "Sum of mc_weight of selected simulated events per process.",
			ConstLabels: labels,
		}, []string{"process_id"}),
	}
	c.registry.MustRegister(c.events, c.weights, c.chunks, c.probes, c.process)
	return c
}

func (c *Collector) ObserveCheckpoint(stage string, events int, sumMCWeight float64, isMC bool) {
	c.events.WithLabelValues(stage).Add(float64(events))
	if isMC {
		c.weights.WithLabelValues(stage).Add(sumMCWeight)
	}
}

func (c *Collector) ChunkDone(err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	c.chunks.WithLabelValues(outcome).Inc()
}

func (c *Collector) ProbesWritten(n int) {
	c.probes.Add(float64(n))
}

// SetProcessWeights records the final per-process weight sums.
func (c *Collector) SetProcessWeights(sums map[int64]float64) {
	for pid, w := range sums {
		c.process.WithLabelValues(strconv.FormatInt(pid, 10)).Set(w)
	}
}

func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// WriteTextfile writes the metrics in the text exposition format, for the
// node exporter textfile collector.
func (c *Collector) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	return nil
}
