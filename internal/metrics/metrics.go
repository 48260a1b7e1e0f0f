package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// ScanMetrics tracks transfer scan progress. A nil *ScanMetrics is valid and records nothing.
type ScanMetrics struct {
	ChunksRequested *prometheus.CounterVec
	ChunkShrinks    *prometheus.CounterVec
	WindowsSkipped  *prometheus.CounterVec
	EventsEmitted   *prometheus.CounterVec
	BlocksConsumed  *prometheus.CounterVec
	ChunkSize       *prometheus.GaugeVec
	TokensCompleted prometheus.Counter
	TokensFailed    prometheus.Counter
	ActiveTasks     prometheus.Gauge
}

func NewScanMetrics() *ScanMetrics {
	return &ScanMetrics{
		ChunksRequested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "transfer_scanner_chunks_requested_total",
			Help: "Total number of log range requests issued",
		}, []string{"token"}),
		ChunkShrinks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "transfer_scanner_chunk_shrinks_total",
			Help: "Total number of chunk size reductions by reason",
		}, []string{"reason"}),
		WindowsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "transfer_scanner_windows_skipped_total",
			Help: "Minimum-size windows skipped after repeated transient failures",
		}, []string{"token"}),
		EventsEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "transfer_scanner_events_emitted_total",
			Help: "Total number of transfer events written",
		}, []string{"token"}),
		BlocksConsumed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "transfer_scanner_blocks_consumed_total",
			Help: "Total number of blocks covered by completed windows",
		}, []string{"token"}),
		ChunkSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "transfer_scanner_chunk_size_blocks",
			Help: "Current chunk size per token",
		}, []string{"token"}),
		TokensCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "transfer_scanner_tokens_completed_total",
			Help: "Total number of tokens scanned to the latest block",
		}),
		TokensFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "transfer_scanner_tokens_failed_total",
			Help: "Total number of token scans aborted by a fatal error",
		}),
		ActiveTasks: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "transfer_scanner_active_tasks",
			Help: "Number of token scans currently running",
		}),
	}
}

// Register registers all collectors on reg.
func (m *ScanMetrics) Register(reg prometheus.Registerer) error {
	if m == nil {
		return nil
	}
	for _, c := range []prometheus.Collector{
		m.ChunksRequested, m.ChunkShrinks, m.WindowsSkipped, m.EventsEmitted,
		m.BlocksConsumed, m.ChunkSize, m.TokensCompleted, m.TokensFailed, m.ActiveTasks,
	} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (m *ScanMetrics) ChunkRequested(token string) {
	if m == nil {
		return
	}
	m.ChunksRequested.WithLabelValues(token).Inc()
}

func (m *ScanMetrics) Shrunk(reason string) {
	if m == nil {
		return
	}
	m.ChunkShrinks.WithLabelValues(reason).Inc()
}

func (m *ScanMetrics) Skipped(token string) {
	if m == nil {
		return
	}
	m.WindowsSkipped.WithLabelValues(token).Inc()
}

func (m *ScanMetrics) Emitted(token string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.EventsEmitted.WithLabelValues(token).Add(float64(n))
}

func (m *ScanMetrics) Consumed(token string, blocks uint64) {
	if m == nil {
		return
	}
	m.BlocksConsumed.WithLabelValues(token).Add(float64(blocks))
}

func (m *ScanMetrics) SetChunkSize(token string, size uint64) {
	if m == nil {
		return
	}
	m.ChunkSize.WithLabelValues(token).Set(float64(size))
}

func (m *ScanMetrics) TaskStarted() {
	if m == nil {
		return
	}
	m.ActiveTasks.Inc()
}

// TaskFinished records the end of a token scan.
func (m *ScanMetrics) TaskFinished(failed bool) {
	if m == nil {
		return
	}
	m.ActiveTasks.Dec()
	if failed {
		m.TokensFailed.Inc()
		return
	}
	m.TokensCompleted.Inc()
}
