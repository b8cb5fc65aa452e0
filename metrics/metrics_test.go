package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func newTestMetrics() *Metrics {
	return New(func(o *Options) {
		o.Registerer = prometheus.NewRegistry()
	})
}

func TestMetrics_Record(t *testing.T) {
	m := newTestMetrics()

	m.RecordRun("success")
	m.RecordRun("success")
	m.RecordRun("failed")
	m.RecordWave()
	m.RecordStage("skipped")
	m.RecordBatch(25 * time.Millisecond)
	m.RecordSweep(3)
	m.RecordCacheHit()
	m.RecordCacheMiss()
	m.TaskStarted()
	m.TaskStarted()
	m.TaskFinished()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.WavesTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StagesTotal.WithLabelValues("skipped")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StoreSweepsTotal))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.StoreSweptTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheHitsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheMissesTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TasksInFlight))
}

func TestMetrics_NilReceiverNoOps(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.RecordRun("success")
		m.RecordWave()
		m.RecordStage("failed")
		m.RecordBatch(time.Millisecond)
		m.RecordSweep(1)
		m.RecordCacheHit()
		m.RecordCacheMiss()
		m.RecordCacheEviction()
		m.TaskStarted()
		m.TaskFinished()
	})
}
