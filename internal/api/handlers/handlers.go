package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/dvloznov/finance-insights/internal/api/middleware"
	"github.com/dvloznov/finance-insights/internal/auth"
	"github.com/dvloznov/finance-insights/internal/insights"
	"github.com/dvloznov/finance-insights/internal/provider"
)

const (
	MessageRateLimited = "Too many requests. Try again later."
	maxBodyBytes       = 1 << 16
)

// Insights is the part of insights.Service the handlers use.
type Insights interface {
	ScanRecurring(ctx context.Context, req insights.Request) (*insights.RecurringResponse, error)
	Coach(ctx context.Context, req insights.Request) (*insights.CoachResponse, error)
	Forecast(ctx context.Context, req insights.ForecastRequest) (*insights.ForecastResponse, error)
}

// InsightsHandler handles the recurring, coach and forecast endpoints.
type InsightsHandler struct {
	svc Insights
	log zerolog.Logger
}

// NewInsightsHandler creates a new insights handler.
func NewInsightsHandler(svc Insights, log zerolog.Logger) *InsightsHandler {
	return &InsightsHandler{svc: svc, log: log}
}

// Routes mounts the insights endpoints on r. Callers are expected to install
// the auth middleware first.
func (h *InsightsHandler) Routes(r chi.Router) {
	r.Post("/ai/recurring/scan", h.ScanRecurring)
	r.Post("/ai/coach", h.Coach)
	r.Post("/predict", h.Forecast)
}

type analysisBody struct {
	Days     *int   `json:"days"`
	FreeOnly bool   `json:"freeOnly"`
	Provider string `json:"provider"`
}

type forecastBody struct {
	Days      *int `json:"days"`
	UseGemini bool `json:"useGemini"`
	UseOpenAI bool `json:"useOpenAI"`
	FreeOnly  bool `json:"freeOnly"`
}

// ScanRecurring handles POST /api/ai/recurring/scan
func (h *InsightsHandler) ScanRecurring(w http.ResponseWriter, r *http.Request) {
	var body analysisBody
	if !decodeBody(w, r, &body) {
		return
	}
	userID, _ := auth.UserIDFromContext(r.Context())

	resp, err := h.svc.ScanRecurring(r.Context(), insights.Request{
		UserID:   userID,
		Days:     body.Days,
		FreeOnly: body.FreeOnly,
		Provider: provider.ParseName(body.Provider),
	})
	if err != nil {
		h.writeServiceError(w, r, err, "Failed to scan recurring charges")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, resp)
}

// Coach handles POST /api/ai/coach
func (h *InsightsHandler) Coach(w http.ResponseWriter, r *http.Request) {
	var body analysisBody
	if !decodeBody(w, r, &body) {
		return
	}
	userID, _ := auth.UserIDFromContext(r.Context())

	resp, err := h.svc.Coach(r.Context(), insights.Request{
		UserID:   userID,
		Days:     body.Days,
		FreeOnly: body.FreeOnly,
		Provider: provider.ParseName(body.Provider),
	})
	if err != nil {
		h.writeServiceError(w, r, err, "Failed to build coaching tips")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, resp)
}

// Forecast handles POST /api/predict
func (h *InsightsHandler) Forecast(w http.ResponseWriter, r *http.Request) {
	var body forecastBody
	if !decodeBody(w, r, &body) {
		return
	}
	userID, _ := auth.UserIDFromContext(r.Context())

	resp, err := h.svc.Forecast(r.Context(), insights.ForecastRequest{
		UserID:    userID,
		Days:      body.Days,
		UseGemini: body.UseGemini,
		UseOpenAI: body.UseOpenAI,
		FreeOnly:  body.FreeOnly,
	})
	if err != nil {
		h.writeServiceError(w, r, err, "Failed to build forecast")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, resp)
}

func (h *InsightsHandler) writeServiceError(w http.ResponseWriter, r *http.Request, err error, message string) {
	switch {
	case errors.Is(err, insights.ErrRateLimited):
		middleware.WriteMessage(w, http.StatusTooManyRequests, MessageRateLimited)
	case errors.Is(err, insights.ErrUnauthenticated):
		middleware.WriteError(w, http.StatusUnauthorized, "Unauthorized")
	default:
		h.log.Error().
			Err(err).
			Str("path", r.URL.Path).
			Str("request_id", middleware.RequestIDFromContext(r.Context())).
			Msg(message)
		middleware.WriteError(w, http.StatusInternalServerError, message)
	}
}

// decodeBody reads an optional JSON body into v. An empty body keeps the
// zero value, which selects the defaults.
func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

// Health handles GET /health
func Health(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}
