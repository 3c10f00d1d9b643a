// internal/handler/forecast_handler.go
package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/unclebandit/directmail-scheduler/internal/controller"
	"github.com/unclebandit/directmail-scheduler/internal/logger"
	"github.com/unclebandit/directmail-scheduler/internal/service"
)

// ForecastHandler serves the read-only forecast endpoints.
type ForecastHandler struct {
	Service *service.ForecastService
	Log     *logger.Logger
	Now     func() time.Time
}

// NewForecastHandler creates a ForecastHandler backed by svc
func NewForecastHandler(svc *service.ForecastService, log *logger.Logger) *ForecastHandler {
	return &ForecastHandler{Service: svc, Log: log, Now: time.Now}
}

func (h *ForecastHandler) Routes(r chi.Router) {
	r.Get("/forecast", h.DashboardHandler)
	r.Get("/campaigns/{id}/forecast", h.CampaignForecastHandler)
}

// DashboardHandler returns the aggregate forecast. ?source=live estimates
// pending letters from the record source instead of stored leads.
func (h *ForecastHandler) DashboardHandler(w http.ResponseWriter, r *http.Request) {
	live := strings.EqualFold(r.URL.Query().Get("source"), "live")

	dashboard, err := h.Service.Dashboard(r.Context(), h.now(), live)
	if err != nil {
		h.Log.DatabaseError("forecast dashboard", err)
		http.Error(w, "failed to compute forecast: "+err.Error(), controller.StatusFor(err))
		return
	}

	controller.WriteJSON(w, http.StatusOK, dashboard)
}

// CampaignForecastHandler returns the forecast of a single campaign by ID
func (h *ForecastHandler) CampaignForecastHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := controller.CampaignID(w, r)
	if !ok {
		return
	}

	forecast, err := h.Service.ForCampaign(r.Context(), id, h.now())
	if err != nil {
		http.Error(w, "failed to compute forecast: "+err.Error(), controller.StatusFor(err))
		return
	}

	controller.WriteJSON(w, http.StatusOK, forecast)
}

func (h *ForecastHandler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}
