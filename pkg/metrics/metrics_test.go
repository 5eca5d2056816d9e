package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister(t *testing.T) {
	r := prometheus.NewRegistry()
	Register(r)
	// 重复注册不应 panic
	assert.NotPanics(t, func() { Register(r) })
	assert.Equal(t, r, GetRegisterer())

	SessionTerminations.WithLabelValues(TerminateReasonExit).Inc()
	SessionsAccepted.Inc()
	BroadcastLatency.Observe(0.5)

	families, err := r.Gather()
	require.NoError(t, err)
	names := make(map[string]struct{}, len(families))
	for _, f := range families {
		names[f.GetName()] = struct{}{}
	}
	assert.Contains(t, names, "roomchat_session_terminations_total")
	assert.Contains(t, names, "roomchat_session_accepted_total")
	assert.Contains(t, names, "roomchat_broadcast_latency_ms")

	assert.Equal(t, float64(1), testutil.ToFloat64(SessionTerminations.WithLabelValues(TerminateReasonExit)))
}
