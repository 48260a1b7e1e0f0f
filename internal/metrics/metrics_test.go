package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsAreNoops(t *testing.T) {
	var m *ScanMetrics
	m.ChunkRequested("0x1")
	m.Shrunk("too_large")
	m.Emitted("0x1", 3)
	m.TaskStarted()
	m.TaskFinished(true)
	require.NoError(t, m.Register(prometheus.NewRegistry()))
}

func TestScanMetricsRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewScanMetrics()
	require.NoError(t, m.Register(reg))

	m.ChunkRequested("0x1")
	m.ChunkRequested("0x1")
	m.Consumed("0x1", 5001)
	m.TaskStarted()
	m.TaskFinished(false)

	require.Equal(t, 2.0, testutil.ToFloat64(m.ChunksRequested.WithLabelValues("0x1")))
	require.Equal(t, 5001.0, testutil.ToFloat64(m.BlocksConsumed.WithLabelValues("0x1")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.TokensCompleted))
	require.Equal(t, 0.0, testutil.ToFloat64(m.ActiveTasks))

	require.Error(t, m.Register(reg), "double registration must fail")
}
