package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthReportsComponents(t *testing.T) {
	s := NewServer("analytics", ":0", map[string]Checker{
		"bus":   func(context.Context) error { return nil },
		"store": func(context.Context) error { return nil },
	})

	rec := httptest.NewRecorder()
	s.handleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "analytics", resp.Service)
	assert.Equal(t, "up", resp.Components["bus"])
	assert.Equal(t, "up", resp.Components["store"])
}

func TestHealthDegradedOnFailingProbe(t *testing.T) {
	s := NewServer("notifier", ":0", map[string]Checker{
		"bus":   func(context.Context) error { return nil },
		"store": func(context.Context) error { return errors.New("connection refused") },
	})

	rec := httptest.NewRecorder()
	s.handleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var resp healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "degraded", resp.Status)
	assert.Contains(t, resp.Components["store"], "connection refused")
}
