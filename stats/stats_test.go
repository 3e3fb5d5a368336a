package stats

import (
	"context"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestCounters(t *testing.T) {
	s := New(prometheus.NewRegistry())

	s.CycleDone(4, 200*time.Millisecond)
	s.CycleDone(3, 100*time.Millisecond)
	s.QueryFailed("ses", "quota")

	assert.Equal(t, 2.0, testutil.ToFloat64(s.cycles))
	assert.Equal(t, 7.0, testutil.ToFloat64(s.readings))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.queryErrors.WithLabelValues("ses", "quota")))
	assert.Equal(t, 0.0, testutil.ToFloat64(s.queryErrors.WithLabelValues("ses", "send_statistics")))
}

func TestNilStatsIsNoop(t *testing.T) {
	var s *Stats
	assert.NotPanics(t, func() {
		s.CycleDone(1, time.Second)
		s.QueryFailed("ses", "quota")
	})
}

func TestServe(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg).CycleDone(2, time.Millisecond)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, ln, reg, zap.NewNop()) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "ceilometer_cycles_total 1")
	assert.Contains(t, string(body), "ceilometer_readings_total 2")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
