// Package metrics counts boots and relay verdicts in Prometheus form.
package metrics

import (
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

const namespace = "escalate"

// Recorder owns a private registry so independent relays never share
// counters.
type Recorder struct {
	reg     *prometheus.Registry
	boots   *prometheus.CounterVec
	results *prometheus.CounterVec
	relays  *prometheus.CounterVec
}

// NewRecorder creates a recorder with all collectors registered.
func NewRecorder() *Recorder {
	r := &Recorder{
		reg: prometheus.NewRegistry(),
		boots: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "boots_total",
			Help:      "Boot lifetimes finished, by classified reset cause.",
		}, []string{"cause"}),
		results: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "boot_results_total",
			Help:      "Boot lifetimes ended, by how they ended.",
		}, []string{"result"}),
		relays: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relays_total",
			Help:      "Completed relays, by verdict.",
		}, []string{"verdict"}),
	}
	r.reg.MustRegister(r.boots, r.results, r.relays)
	return r
}

// ObserveBoot counts one finished lifetime.
func (r *Recorder) ObserveBoot(cause, result string) {
	r.boots.WithLabelValues(cause).Inc()
	r.results.WithLabelValues(result).Inc()
}

// ObserveRelay counts one relay verdict.
func (r *Recorder) ObserveRelay(verdict string) {
	r.relays.WithLabelValues(verdict).Inc()
}

// Registry exposes the underlying registry, e.g. for an HTTP handler.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.reg
}

// WriteText writes all metrics in the Prometheus text exposition format.
func (r *Recorder) WriteText(w io.Writer) error {
	families, err := r.reg.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return fmt.Errorf("encode %s: %w", mf.GetName(), err)
		}
	}
	return nil
}
