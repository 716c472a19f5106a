package internal

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics は1回の抽出で集計するカウンタ
// CLIは常駐しないので、終了時にtextfile形式で書き出す
type Metrics struct {
	registry       *prometheus.Registry
	PacketsRead    prometheus.Counter
	PacketsSkipped prometheus.Counter
	FramesWritten  prometheus.Counter
	DecodeSeconds  prometheus.Histogram
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		PacketsRead: factory.NewCounter(prometheus.CounterOpts{
			Name: "extract_packets_read_total",
			Help: "Packets read from the container, all streams",
		}),
		PacketsSkipped: factory.NewCounter(prometheus.CounterOpts{
			Name: "extract_packets_skipped_total",
			Help: "Packets discarded because they belong to a non-selected stream",
		}),
		FramesWritten: factory.NewCounter(prometheus.CounterOpts{
			Name: "extract_frames_written_total",
			Help: "Decoded frames handed to the frame sink",
		}),
		DecodeSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "extract_decode_seconds",
			Help:    "Time spent feeding one packet and draining its frames",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		}),
	}
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteFile writes all metrics in the Prometheus text format, suitable for
// the node_exporter textfile collector.
func (m *Metrics) WriteFile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
