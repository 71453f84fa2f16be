package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"powerpulse/internal/model"
	"powerpulse/internal/registry"
	"powerpulse/internal/service"
	"powerpulse/internal/store"
)

// newTestMux wires the handler against an empty registry: routing and error
// mapping are testable without a trained model set.
func newTestMux(t *testing.T) *http.ServeMux {
	t.Helper()
	svc := service.New(store.New(), registry.New(), time.Hour, nil, nil, zap.NewNop())
	h := NewHandler(svc, nil, zap.NewNop())
	mux := http.NewServeMux()
	h.Routes(mux)
	return mux
}

func doRequest(t *testing.T, mux *http.ServeMux, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	mux := newTestMux(t)
	rec := doRequest(t, mux, http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestRegions(t *testing.T) {
	mux := newTestMux(t)
	rec := doRequest(t, mux, http.MethodGet, "/api/regions", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var out []struct {
		ID    string `json:"id"`
		Name  string `json:"name"`
		Total bool   `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out, len(model.Regions))

	ids := make(map[string]bool, len(out))
	totals := 0
	for _, r := range out {
		ids[r.ID] = true
		assert.NotEmpty(t, r.Name)
		if r.Total {
			totals++
		}
	}
	assert.True(t, ids["DELHI"])
	assert.Equal(t, 1, totals)
}

func TestPredict_NoModelsIs503(t *testing.T) {
	mux := newTestMux(t)
	body := `{"temperature_2m":34.5,"relative_humidity_2m":62,"wind_speed_10m":2.5,"time":"18:00","date":"2025-06-02"}`

	for _, path := range []string{"/api/predict", "/api/v2/predict"} {
		rec := doRequest(t, mux, http.MethodPost, path, body)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, path)
		assert.Contains(t, rec.Body.String(), "no trained model set", path)
	}
}

func TestPredict_BadRequests(t *testing.T) {
	mux := newTestMux(t)

	t.Run("invalid JSON", func(t *testing.T) {
		rec := doRequest(t, mux, http.MethodPost, "/api/predict", "{not json")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "invalid JSON body")
	})

	t.Run("malformed timestamp", func(t *testing.T) {
		rec := doRequest(t, mux, http.MethodPost, "/api/predict",
			`{"time":"25:99","date":"2025-06-02"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown region", func(t *testing.T) {
		rec := doRequest(t, mux, http.MethodPost, "/api/predict",
			`{"time":"18:00","date":"2025-06-02","region":"MUMBAI"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "MUMBAI")
	})

	t.Run("wrong method", func(t *testing.T) {
		rec := doRequest(t, mux, http.MethodGet, "/api/predict", "")
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})
}

func TestForecastDay_BadQuery(t *testing.T) {
	mux := newTestMux(t)

	rec := doRequest(t, mux, http.MethodGet, "/api/forecast?date=02-06-2025", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid date")

	rec = doRequest(t, mux, http.MethodGet, "/api/forecast?date=2025-06-02&regions=DELHI,NOWHERE", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "NOWHERE")
}

func TestForecastDay_NoModelsIs503(t *testing.T) {
	mux := newTestMux(t)
	rec := doRequest(t, mux, http.MethodGet, "/api/forecast?date=2025-06-02", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
