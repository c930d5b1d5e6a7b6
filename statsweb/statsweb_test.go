package statsweb

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/so5go/so5"
)

func TestRouterServesStatsSnapshot(t *testing.T) {
	repo := so5.NewStatsRepository()
	repo.Register(so5.DataSourceFunc{
		SourceName: "demo",
		CollectFn: func() []so5.StatsValue {
			return []so5.StatsValue{{Name: "queue_depth", Value: 3, Labels: map[string]string{"coop": "x"}}}
		},
	})

	req := httptest.NewRequest("GET", "/stats", nil)
	rec := httptest.NewRecorder()
	NewRouter(repo).ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	var values []so5.StatsValue
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &values))
	require.Len(t, values, 1)
	assert.Equal(t, "queue_depth", values[0].Name)
	assert.Equal(t, 3.0, values[0].Value)
}

func TestCollectorEmitsPrometheusMetrics(t *testing.T) {
	repo := so5.NewStatsRepository()
	repo.Register(so5.DataSourceFunc{
		SourceName: "demo",
		CollectFn: func() []so5.StatsValue {
			return []so5.StatsValue{{Name: "agent_count", Value: 2, Labels: map[string]string{"coop": "y"}}}
		},
	})

	c := NewCollector(repo)
	ch := make(chan prometheus.Metric, 4)
	c.Collect(ch)
	close(ch)

	var metrics []prometheus.Metric
	for m := range ch {
		metrics = append(metrics, m)
	}
	require.Len(t, metrics, 1)

	var m dto.Metric
	require.NoError(t, metrics[0].Write(&m))
	assert.Equal(t, 2.0, m.GetGauge().GetValue())
}
