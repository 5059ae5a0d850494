package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/iufc-admission-api/internal/service"
)

func TestMetricsHandlerReady(t *testing.T) {
	healthy := NewMetricsHandler(service.NewMetricsService(), map[string]HealthCheck{
		"postgres": func(ctx context.Context) error { return nil },
	})
	c, w := newJSONContext(http.MethodGet, "/readyz", nil, nil)
	healthy.Ready(c)
	require.Equal(t, http.StatusOK, w.Code)

	degraded := NewMetricsHandler(nil, map[string]HealthCheck{
		"postgres": func(ctx context.Context) error { return nil },
		"redis":    func(ctx context.Context) error { return errors.New("connection refused") },
	})
	c, w = newJSONContext(http.MethodGet, "/readyz", nil, nil)
	degraded.Ready(c)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	body := decodeEnvelope(t, w)
	require.Equal(t, "connection refused", body["checks"].(map[string]interface{})["redis"])
}

func TestMetricsHandlerSnapshot(t *testing.T) {
	metrics := service.NewMetricsService()
	metrics.RecordPublish(service.OutcomeSuccess)
	handler := NewMetricsHandler(metrics, nil)

	c, w := newJSONContext(http.MethodGet, "/metrics/snapshot", nil, nil)
	handler.Snapshot(c)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"registrationsPublished":1`)
}
