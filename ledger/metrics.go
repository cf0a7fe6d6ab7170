package ledger

import "github.com/prometheus/client_golang/prometheus"

const namespace = "soundgrid"

// Collector exposes a Ledger to Prometheus.
type Collector struct {
	ledger   *Ledger
	units    *prometheus.Desc
	nodeSets *prometheus.Desc
	handles  *prometheus.Desc
	cleanups *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector wraps l for registration with a prometheus.Registerer.
func NewCollector(l *Ledger) *Collector {
	return &Collector{
		ledger: l,
		units: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "active_units"),
			"Live sound-producing units, including cached instances.",
			nil, nil),
		nodeSets: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "active_node_sets"),
			"Connected pan/gain node-sets.",
			nil, nil),
		handles: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "active_handles"),
			"Disposable clip handles held by instances.",
			nil, nil),
		cleanups: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "forced_cleanups_total"),
			"Forced cleanups since start.",
			nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.units
	ch <- c.nodeSets
	ch <- c.handles
	ch <- c.cleanups
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.ledger.Snapshot()
	ch <- prometheus.MustNewConstMetric(c.units, prometheus.GaugeValue, float64(s.Units))
	ch <- prometheus.MustNewConstMetric(c.nodeSets, prometheus.GaugeValue, float64(s.NodeSets))
	ch <- prometheus.MustNewConstMetric(c.handles, prometheus.GaugeValue, float64(s.Handles))
	ch <- prometheus.MustNewConstMetric(c.cleanups, prometheus.CounterValue, float64(c.ledger.Cleanups()))
}
