package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.SetConnections("observer", 2)
	m.Event("want-connect", "ok")
	m.Event("want-connect", "ok")
	m.Event("want-connect", "target-not-found")
	m.Admission("admitted")
	m.SetEdges(3)
	m.SetStreams(1)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.connections.WithLabelValues("observer")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.events.WithLabelValues("want-connect", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.events.WithLabelValues("want-connect", "target-not-found")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.admissions.WithLabelValues("admitted")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.edges))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.streams))

	n, err := testutil.GatherAndCount(reg)
	assert.NoError(t, err)
	assert.Equal(t, 6, n)
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.SetConnections("observer", 1)
		m.Event("ping", "ok")
		m.Admission("no-token")
		m.SetEdges(1)
		m.SetStreams(1)
	})
}
