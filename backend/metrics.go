package backend

import (
	"fmt"
	"sort"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/viant/robinhood/value"
)

// Metrics is the generic option space's backend-provided GC surface (spec
// §4.G: "GC (backend-provided)"), rendered as a prometheus.Registry a
// backend can opt into and expose through get_attribute("metrics", ...)
// rather than a bespoke counter struct, the way prysmaticlabs-prysm wires
// Prometheus throughout beacon-chain.
type Metrics struct {
	registry      *prometheus.Registry
	filterCalls   prometheus.Counter
	updateCalls   prometheus.Counter
	eventsApplied prometheus.Counter
}

// NewMetrics builds a Metrics instance with counters namespaced under
// subsystem (typically the backend's Name()).
func NewMetrics(subsystem string) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		filterCalls: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "robinhood", Subsystem: subsystem, Name: "filter_calls_total",
			Help: "Number of Filter invocations served by this backend.",
		}),
		updateCalls: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "robinhood", Subsystem: subsystem, Name: "update_calls_total",
			Help: "Number of Update invocations served by this backend.",
		}),
		eventsApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "robinhood", Subsystem: subsystem, Name: "events_applied_total",
			Help: "Number of fsevents successfully applied across all Update calls.",
		}),
	}
	m.registry.MustRegister(m.filterCalls, m.updateCalls, m.eventsApplied)
	return m
}

// ObserveFilter records one Filter call.
func (m *Metrics) ObserveFilter() { m.filterCalls.Inc() }

// ObserveUpdate records one Update call having applied n events.
func (m *Metrics) ObserveUpdate(n int) {
	m.updateCalls.Inc()
	m.eventsApplied.Add(float64(n))
}

// Snapshot gathers the registry's current metric families into
// name/value pairs, sorted by name and capped at max (spec §4.G:
// "get_attribute(name, arg, max)").
func (m *Metrics) Snapshot(max int) ([]value.Pair, error) {
	families, err := m.registry.Gather()
	if err != nil {
		return nil, fmt.Errorf("gathering metrics: %w", err)
	}
	pairs := make([]value.Pair, 0, len(families))
	for _, fam := range families {
		for _, metric := range fam.GetMetric() {
			var v float64
			switch {
			case metric.GetCounter() != nil:
				v = metric.GetCounter().GetValue()
			case metric.GetGauge() != nil:
				v = metric.GetGauge().GetValue()
			default:
				continue
			}
			pairs = append(pairs, value.Pair{Key: fam.GetName(), Value: value.NewUint64(uint64(v))})
		}
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].Key < pairs[j].Key })
	if max > 0 && len(pairs) > max {
		pairs = pairs[:max]
	}
	return pairs, nil
}
