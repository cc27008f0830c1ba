package service

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/infra/op-tester/metrics"
	"github.com/ethereum-optimism/infra/op-tester/types"
)

func TestHealthzHandler(t *testing.T) {
	srv := httptest.NewServer(NewHealthzServer(log.NewLogger(log.DiscardHandler())).Handler())
	defer srv.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/healthz", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://example.com")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", string(body))
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestMetricsHandler(t *testing.T) {
	metrics.RecordTest("service-suite", types.TestStatusPass, time.Millisecond)

	srv := httptest.NewServer((&MetricsServer{}).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `op_tester_tests_total{result="pass",suite="service-suite"}`)
}

func TestServiceShutdownWithoutStart(t *testing.T) {
	s := New(log.NewLogger(log.DiscardHandler()), Config{})
	s.Start(context.Background())
	assert.NotPanics(t, s.Shutdown)
}
