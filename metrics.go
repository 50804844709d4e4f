package flowbuf

import (
	"github.com/prometheus/client_golang/prometheus"
)

type metricDesc struct {
	desc      *prometheus.Desc
	valueType prometheus.ValueType
	value     func(s *Stats) float64
}

// statsCollector exports Stats snapshots. Values are read at scrape time
// so the hot paths only pay for the atomic counters.
type statsCollector struct {
	source  func() Stats
	metrics []metricDesc
}

func newStatsCollector(name string, source func() Stats) *statsCollector {
	labels := prometheus.Labels{"buffer": name}
	desc := func(metric, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName("flowbuf", "buffer", metric), help, nil, labels)
	}

	return &statsCollector{
		source: source,
		metrics: []metricDesc{
			{desc("capacity", "Allocated buffer capacity in items"), prometheus.GaugeValue,
				func(s *Stats) float64 { return float64(s.Capacity) }},
			{desc("readers", "Number of attached readers"), prometheus.GaugeValue,
				func(s *Stats) float64 { return float64(s.Readers) }},
			{desc("backlog", "Published items not yet consumed by the slowest reader"), prometheus.GaugeValue,
				func(s *Stats) float64 { return float64(s.Backlog) }},
			{desc("published_items_total", "Total number of items published"), prometheus.CounterValue,
				func(s *Stats) float64 { return float64(s.Published) }},
			{desc("publishes_total", "Total number of successful publish operations"), prometheus.CounterValue,
				func(s *Stats) float64 { return float64(s.Publishes) }},
			{desc("try_publish_failures_total", "Total number of non-blocking publish attempts rejected"), prometheus.CounterValue,
				func(s *Stats) float64 { return float64(s.TryPublishFailures) }},
			{desc("reserve_failures_total", "Total number of output range reservations rejected for lack of space"), prometheus.CounterValue,
				func(s *Stats) float64 { return float64(s.ReserveFailures) }},
			{desc("publish_waits_total", "Total number of blocking publishes that had to wait for space"), prometheus.CounterValue,
				func(s *Stats) float64 { return float64(s.PublishWaits) }},
			{desc("consumes_total", "Total number of successful consume operations"), prometheus.CounterValue,
				func(s *Stats) float64 { return float64(s.Consumes) }},
			{desc("consumed_items_total", "Total number of items consumed across readers"), prometheus.CounterValue,
				func(s *Stats) float64 { return float64(s.ConsumedItems) }},
			{desc("consume_failures_total", "Total number of consume operations beyond the available items"), prometheus.CounterValue,
				func(s *Stats) float64 { return float64(s.ConsumeFailures) }},
			{desc("readers_attached_total", "Total number of readers attached"), prometheus.CounterValue,
				func(s *Stats) float64 { return float64(s.ReadersAttached) }},
			{desc("readers_detached_total", "Total number of readers detached"), prometheus.CounterValue,
				func(s *Stats) float64 { return float64(s.ReadersDetached) }},
		},
	}
}

func (c *statsCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, m := range c.metrics {
		ch <- m.desc
	}
}

func (c *statsCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.source()
	for _, m := range c.metrics {
		ch <- prometheus.MustNewConstMetric(m.desc, m.valueType, m.value(&s))
	}
}
