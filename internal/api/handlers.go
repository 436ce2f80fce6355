package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/skybrief/turbcast/internal/advisory"
	"github.com/skybrief/turbcast/internal/config"
	"github.com/skybrief/turbcast/internal/flightdata"
	"github.com/skybrief/turbcast/internal/forecast"
	"github.com/skybrief/turbcast/internal/websocket"
	"github.com/skybrief/turbcast/pkg/logger"
)

// Handler contains the API handlers
type Handler struct {
	forecastService *forecast.Service
	advisoryService *advisory.Service
	wsServer        *websocket.Server
	config          *config.Config
	logger          *logger.Logger
	validate        *validator.Validate
	startedAt       time.Time
}

// NewHandler creates a new API handler. advisoryService may be nil when
// the advisory endpoint is disabled.
func NewHandler(forecastService *forecast.Service, advisoryService *advisory.Service, wsServer *websocket.Server, cfg *config.Config, log *logger.Logger) *Handler {
	validate := validator.New()
	validate.RegisterValidation("flightno", func(fl validator.FieldLevel) bool {
		return forecast.ValidFlightNumber(flightdata.Normalize(fl.Field().String()))
	})

	return &Handler{
		forecastService: forecastService,
		advisoryService: advisoryService,
		wsServer:        wsServer,
		config:          cfg,
		logger:          log.Named("api-handler"),
		validate:        validate,
		startedAt:       time.Now(),
	}
}

type lookupRequest struct {
	FlightNumber string `json:"flight_number" validate:"required,flightno"`
}

// Lookup answers with the basic forecast right away and schedules the full
// computation in the background.
func (h *Handler) Lookup(w http.ResponseWriter, r *http.Request) {
	var req lookupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		http.Error(w, "Invalid flight number: expected airline code plus number, e.g. BA117", http.StatusBadRequest)
		return
	}

	f, err := h.forecastService.GetBasic(r.Context(), req.FlightNumber)
	if err != nil {
		h.respondForecastError(w, req.FlightNumber, err)
		return
	}

	h.respondJSON(w, http.StatusOK, f)
}

// GetForecast returns the full observation-correlated forecast
func (h *Handler) GetForecast(w http.ResponseWriter, r *http.Request) {
	flightNumber := chi.URLParam(r, "flightNumber")

	f, err := h.forecastService.GetFull(r.Context(), flightNumber)
	if err != nil {
		h.respondForecastError(w, flightNumber, err)
		return
	}

	h.respondJSON(w, http.StatusOK, f)
}

// GetAdvisory returns a plain-language summary of the full forecast
func (h *Handler) GetAdvisory(w http.ResponseWriter, r *http.Request) {
	if h.advisoryService == nil {
		http.Error(w, "Advisory service not available", http.StatusServiceUnavailable)
		return
	}

	flightNumber := chi.URLParam(r, "flightNumber")

	f, err := h.forecastService.GetFull(r.Context(), flightNumber)
	if err != nil {
		h.respondForecastError(w, flightNumber, err)
		return
	}

	text, err := h.advisoryService.Advise(r.Context(), f)
	if err != nil {
		h.logger.Error("Advisory generation failed",
			logger.String("flight", f.FlightNumber),
			logger.Error(err))
		http.Error(w, "Failed to generate advisory", http.StatusBadGateway)
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]any{
		"flight_number": f.FlightNumber,
		"advisory":      text,
		"forecast":      f,
	})
}

// GetCacheStats returns the forecast cache counters
func (h *Handler) GetCacheStats(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, h.forecastService.Cache().GetStats())
}

// ClearCache drops every cached forecast
func (h *Handler) ClearCache(w http.ResponseWriter, r *http.Request) {
	removed := h.forecastService.Cache().Clear()
	h.logger.Info("Cache cleared via API", logger.Int("removed", removed))
	h.respondJSON(w, http.StatusOK, map[string]any{"removed": removed})
}

// Health reports liveness
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": time.Since(h.startedAt).Round(time.Second).String(),
	})
}

// WebSocket upgrades the connection and hands it to the hub
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	h.wsServer.HandleConnection(w, r)
}

func (h *Handler) respondForecastError(w http.ResponseWriter, flightNumber string, err error) {
	switch {
	case errors.Is(err, forecast.ErrInvalidFlightNumber):
		http.Error(w, "Invalid flight number", http.StatusBadRequest)
	case errors.Is(err, flightdata.ErrFlightNotFound):
		http.Error(w, "Flight not found", http.StatusNotFound)
	default:
		h.logger.Error("Forecast request failed",
			logger.String("flight", flightNumber),
			logger.Error(err))
		http.Error(w, "Failed to compute forecast", http.StatusInternalServerError)
	}
}

func (h *Handler) respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("Failed to encode response", logger.Error(err))
	}
}
