package prom

import (
	"strings"
	"testing"
	"time"

	"github.com/juvenn/kairosdb-writer/report"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rcrowley/go-metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmitter(t *testing.T) {
	reg := prometheus.NewRegistry()
	em, err := NewEmitter(reg)
	require.NoError(t, err)
	assert.Equal(t, 0, testutil.CollectAndCount(em))

	require.NoError(t, em.Emit(
		report.Datum{Name: "kairosdb.sent", Type: report.TypeCounter, Labels: map[string]string{"host": "web01"},
			Fields: map[string]float64{"count": 42}},
		report.Datum{Name: "kairosdb.dropped", Type: report.TypeCounter, Labels: map[string]string{"host": "web01"},
			Fields: map[string]float64{"count": 3}},
	))
	assert.Equal(t, 2, testutil.CollectAndCount(em))

	expected := `
# HELP kairosdb_writer_kairosdb_sent_count counter kairosdb.sent count
# TYPE kairosdb_writer_kairosdb_sent_count gauge
kairosdb_writer_kairosdb_sent_count{host="web01"} 42
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "kairosdb_writer_kairosdb_sent_count"))
}

func TestEmitterWithReporter(t *testing.T) {
	reg := prometheus.NewRegistry()
	em, err := NewEmitter(reg)
	require.NoError(t, err)

	rep, err := report.NewReporter(newRegistry(), time.Hour, report.WithEmitters(em))
	require.NoError(t, err)
	require.NoError(t, rep.Close())
	assert.Equal(t, 1, testutil.CollectAndCount(em, "kairosdb_writer_kairosdb_errored_count"))
}

func newRegistry() metrics.Registry {
	reg := metrics.NewRegistry()
	metrics.GetOrRegisterCounter("kairosdb.errored", reg).Inc(1)
	return reg
}
