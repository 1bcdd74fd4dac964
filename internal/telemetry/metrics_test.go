package telemetry_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/khal/internal/telemetry"
)

func TestMetrics_Observe(t *testing.T) {
	m := telemetry.NewMetrics()

	m.Observe("sqlite", "load", telemetry.ResultOK, time.Now())
	m.Observe("sqlite", "load", telemetry.ResultOK, time.Now())
	m.Observe("workbook", "write_task", telemetry.ResultConflict, time.Now())

	assert.Equal(t, 2.0, testutil.ToFloat64(m.StoreOperations.WithLabelValues("sqlite", "load", telemetry.ResultOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StoreOperations.WithLabelValues("workbook", "write_task", telemetry.ResultConflict)))
	assert.Equal(t, 2, testutil.CollectAndCount(m.StoreLatency))
}

func TestMetrics_WriteTextfile(t *testing.T) {
	m := telemetry.NewMetrics()
	m.Conflicts.Inc()
	m.SkippedRows.WithLabelValues("Affairs").Add(3)

	path := filepath.Join(t.TempDir(), "khal.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.True(t, strings.Contains(text, "khal_conflicts_total 1"))
	assert.True(t, strings.Contains(text, `khal_workbook_skipped_rows_total{sheet="Affairs"} 3`))
}
