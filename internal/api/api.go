// Package api exposes the prediction service over JSON HTTP.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"powerpulse/internal/model"
	"powerpulse/internal/service"
)

// Handler serves the JSON prediction API.
type Handler struct {
	svc     *service.Service
	weather service.WeatherSource
	logger  *zap.Logger
}

func NewHandler(svc *service.Service, weather service.WeatherSource, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, weather: weather, logger: logger}
}

// Routes registers every API route on mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.health)
	mux.HandleFunc("POST /api/predict", h.predict)
	mux.HandleFunc("POST /api/v2/predict", h.predictV2)
	mux.HandleFunc("GET /api/regions", h.regions)
	mux.HandleFunc("GET /api/forecast", h.forecastDay)
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) predict(w http.ResponseWriter, r *http.Request) {
	p, ok := h.runPredict(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, service.Response{PredictedDemandMW: p.PredictedLoadMW})
}

func (h *Handler) predictV2(w http.ResponseWriter, r *http.Request) {
	p, ok := h.runPredict(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, service.ResponseV2{
		PredictedDemandMW: p.PredictedLoadMW,
		SequencePred:      p.SequencePred,
		WeatherPred:       p.WeatherPred,
	})
}

func (h *Handler) runPredict(w http.ResponseWriter, r *http.Request) (model.Prediction, bool) {
	var req service.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return model.Prediction{}, false
	}

	p, err := h.svc.Predict(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return model.Prediction{}, false
	}
	return p, true
}

func (h *Handler) regions(w http.ResponseWriter, r *http.Request) {
	type regionOut struct {
		ID    model.Region `json:"id"`
		Name  string       `json:"name"`
		Total bool         `json:"total"`
	}
	out := make([]regionOut, 0, len(model.Regions))
	for _, reg := range model.Regions {
		info := model.RegionCatalog[reg]
		out = append(out, regionOut{ID: reg, Name: info.Name, Total: info.Total})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) forecastDay(w http.ResponseWriter, r *http.Request) {
	dateStr := r.URL.Query().Get("date")
	if dateStr == "" {
		dateStr = time.Now().UTC().Format("2006-01-02")
	}
	date, err := time.ParseInLocation("2006-01-02", dateStr, time.UTC)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date "+dateStr)
		return
	}

	var regions []model.Region
	if raw := r.URL.Query().Get("regions"); raw != "" {
		for _, name := range strings.Split(raw, ",") {
			reg, ok := model.ParseRegion(strings.TrimSpace(name))
			if !ok {
				writeError(w, http.StatusBadRequest, "unknown region "+name)
				return
			}
			regions = append(regions, reg)
		}
	}

	day, err := h.svc.ForecastDay(r.Context(), h.weather, date, regions)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, day)
}

// writeServiceError maps prediction failures onto HTTP statuses. Requests
// fail whole; no degraded responses are served.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		unavailable *model.UnavailableWindowError
		featErr     *model.FeatureError
	)
	switch {
	case errors.Is(err, service.ErrNoModels):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.As(err, &unavailable):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &featErr):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error("Prediction request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("Failed to encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
