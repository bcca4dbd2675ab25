package metrics_test

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HerbHall/stratum/metrics"
)

func TestRecorderObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec, err := metrics.NewRecorder(reg)
	require.NoError(t, err)

	start := time.Now()
	rec.Observe("records", "create", start, nil)
	rec.Observe("records", "create", start, nil)
	rec.Observe("records", "create", start, errors.New("boom"))
	rec.Observe("records", "get_list", start, nil)

	families, err := reg.Gather()
	require.NoError(t, err)

	found := map[string]bool{}
	for _, mf := range families {
		found[mf.GetName()] = true
	}
	assert.True(t, found["stratum_queries_total"])
	assert.True(t, found["stratum_query_errors_total"])
	assert.True(t, found["stratum_query_duration_seconds"])

	queries, err := promtest.GatherAndCount(reg, "stratum_queries_total")
	require.NoError(t, err)
	assert.Equal(t, 2, queries, "one series per table/op pair")
}

func TestRecorderCountsErrorsSeparately(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec, err := metrics.NewRecorder(reg)
	require.NoError(t, err)

	start := time.Now()
	rec.Observe("records", "create", start, nil)
	rec.Observe("records", "create", start, errors.New("boom"))

	families, err := reg.Gather()
	require.NoError(t, err)

	values := map[string]float64{}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			if m.GetCounter() != nil {
				values[mf.GetName()] += m.GetCounter().GetValue()
			}
		}
	}
	assert.Equal(t, 2.0, values["stratum_queries_total"])
	assert.Equal(t, 1.0, values["stratum_query_errors_total"])
}

func TestRecorderNilIsSafe(t *testing.T) {
	var rec *metrics.Recorder
	rec.Observe("records", "create", time.Now(), nil)
	rec.Observe("records", "create", time.Now(), errors.New("boom"))
}

func TestNewRecorderDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := metrics.NewRecorder(reg)
	require.NoError(t, err)

	_, err = metrics.NewRecorder(reg)
	require.Error(t, err)
}
