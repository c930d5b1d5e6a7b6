package statsweb

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/so5go/so5"
)

// Collector adapts a so5.StatsRepository to prometheus.Collector: each
// StatsValue becomes a gauge named "so5_<name>" with its Labels as the
// metric's label set. Label sets are read fresh on every Collect, since
// dispatchers and coops register/unregister DataSources as agents come and
// go.
type Collector struct {
	repo *so5.StatsRepository
}

// NewCollector wraps repo for registration with a prometheus.Registerer.
func NewCollector(repo *so5.StatsRepository) *Collector {
	return &Collector{repo: repo}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	// Dynamic label sets mean metrics are self-described per Collect call
	// instead of up front; Prometheus permits this for collectors that
	// implement Collect without a fixed Desc list.
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for _, v := range c.repo.Snapshot() {
		labelNames := make([]string, 0, len(v.Labels))
		labelValues := make([]string, 0, len(v.Labels))
		for k, lv := range v.Labels {
			labelNames = append(labelNames, k)
			labelValues = append(labelValues, lv)
		}
		desc := prometheus.NewDesc("so5_"+v.Name, "so5 run-time stats data source", labelNames, nil)
		metric, err := prometheus.NewConstMetric(desc, prometheus.GaugeValue, v.Value, labelValues...)
		if err != nil {
			continue
		}
		ch <- metric
	}
}
