package capture

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts captures. A nil *Metrics records nothing.
type Metrics struct {
	started  prometheus.Counter
	finished *prometheus.CounterVec
	bytes    prometheus.Counter
	active   prometheus.Gauge
}

// NewMetrics registers the capture metrics on reg; a nil reg yields nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return nil
	}

	m := &Metrics{
		started: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "voicedrop_captures_started_total",
			Help: "Audio captures opened.",
		}),
		finished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "voicedrop_captures_finished_total",
			Help: "Audio captures finalized, by end reason.",
		}, []string{"result"}),
		bytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "voicedrop_capture_bytes_total",
			Help: "PCM bytes written to capture files.",
		}),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "voicedrop_captures_active",
			Help: "Captures currently being written.",
		}),
	}
	reg.MustRegister(m.started, m.finished, m.bytes, m.active)
	return m
}

func (m *Metrics) captureStarted() {
	if m == nil {
		return
	}
	m.started.Inc()
	m.active.Inc()
}

func (m *Metrics) captureFinished(res Result) {
	if m == nil {
		return
	}
	result := string(res.Reason)
	if res.Err != nil {
		result = string(WriteFailed)
	}
	m.finished.WithLabelValues(result).Inc()
	m.bytes.Add(float64(res.Bytes))
	m.active.Dec()
}
