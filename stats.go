package afxdp

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/penguintech/afxdp/xdp"
)

// statsSource is implemented by DeviceQueue and UserSocket: anything with
// a bound AF_XDP fd it can read XDP_STATISTICS from.
type statsSource interface {
	Statistics() (xdp.Statistics, error)
}

// StatsCollector adapts a DeviceQueue's or UserSocket's kernel-reported
// statistics to a prometheus.Collector.
type StatsCollector struct {
	source    statsSource
	label     string
	dropped   *prometheus.Desc
	rxInvalid *prometheus.Desc
	txInvalid *prometheus.Desc
	rxFull    *prometheus.Desc
	fillEmpty *prometheus.Desc
	txEmpty   *prometheus.Desc
}

// NewStatsCollector builds a collector over source, labelling every metric
// with label (typically "<ifname>/<queue>").
func NewStatsCollector(source statsSource, label string) *StatsCollector {
	constLabels := prometheus.Labels{"queue": label}
	return &StatsCollector{
		source:    source,
		label:     label,
		dropped:   prometheus.NewDesc("afxdp_rx_dropped_total", "Packets dropped on receive.", nil, constLabels),
		rxInvalid: prometheus.NewDesc("afxdp_rx_invalid_total", "Invalid descriptors observed on receive.", nil, constLabels),
		txInvalid: prometheus.NewDesc("afxdp_tx_invalid_total", "Invalid descriptors observed on transmit.", nil, constLabels),
		rxFull:    prometheus.NewDesc("afxdp_rx_ring_full_total", "Times the receive ring was full.", nil, constLabels),
		fillEmpty: prometheus.NewDesc("afxdp_rx_fill_empty_total", "Times the fill ring was empty.", nil, constLabels),
		txEmpty:   prometheus.NewDesc("afxdp_tx_ring_empty_total", "Times the transmit ring was empty.", nil, constLabels),
	}
}

// Describe implements prometheus.Collector.
func (c *StatsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.dropped
	ch <- c.rxInvalid
	ch <- c.txInvalid
	ch <- c.rxFull
	ch <- c.fillEmpty
	ch <- c.txEmpty
}

// Collect implements prometheus.Collector. Failures reading the socket
// option are logged and otherwise swallowed: a scrape should not fail the
// whole process just because one queue's fd went away.
func (c *StatsCollector) Collect(ch chan<- prometheus.Metric) {
	stats, err := c.source.Statistics()
	if err != nil {
		Log.WithError(err).WithField("queue", c.label).Warn("afxdp: statistics scrape failed")
		return
	}

	ch <- prometheus.MustNewConstMetric(c.dropped, prometheus.CounterValue, float64(stats.RxDropped))
	ch <- prometheus.MustNewConstMetric(c.rxInvalid, prometheus.CounterValue, float64(stats.RxInvalid))
	ch <- prometheus.MustNewConstMetric(c.txInvalid, prometheus.CounterValue, float64(stats.TxInvalid))
	ch <- prometheus.MustNewConstMetric(c.rxFull, prometheus.CounterValue, float64(stats.RxRingFull))
	ch <- prometheus.MustNewConstMetric(c.fillEmpty, prometheus.CounterValue, float64(stats.RxFillEmpty))
	ch <- prometheus.MustNewConstMetric(c.txEmpty, prometheus.CounterValue, float64(stats.TxRingEmpty))
}
