package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)

	c.Attempt("correct")
	c.Attempt("correct")
	c.Attempt("too_far")
	c.Skip()
	c.Conflict("progress")
	c.AdminAction("pause")
	c.Login("team", false)

	require.Equal(t, 2.0, testutil.ToFloat64(c.attempts.WithLabelValues("correct")))
	require.Equal(t, 1.0, testutil.ToFloat64(c.attempts.WithLabelValues("too_far")))
	require.Equal(t, 1.0, testutil.ToFloat64(c.skips))
	require.Equal(t, 1.0, testutil.ToFloat64(c.conflicts.WithLabelValues("progress")))
	require.Equal(t, 1.0, testutil.ToFloat64(c.adminActions.WithLabelValues("pause")))
	require.Equal(t, 1.0, testutil.ToFloat64(c.logins.WithLabelValues("team", "failure")))

	n, err := testutil.GatherAndCount(reg)
	require.NoError(t, err)
	require.Equal(t, 6, n)
}
