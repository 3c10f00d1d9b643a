// internal/controller/campaign_controller.go
package controller

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	appErrors "github.com/unclebandit/directmail-scheduler/internal/errors"
	"github.com/unclebandit/directmail-scheduler/internal/logger"
	"github.com/unclebandit/directmail-scheduler/internal/service"
)

type CampaignController struct {
	CampaignService *service.CampaignService
	Worker          *service.Worker
	Log             *logger.Logger
	Now             func() time.Time
}

// Routes mounts the campaign endpoints on r.
func (c *CampaignController) Routes(r chi.Router) {
	r.Get("/campaigns", c.ListCampaigns)
	r.Get("/campaigns/{id}", c.GetCampaignDetails)
	r.Post("/campaigns/{id}/run", c.RunCampaign)
}

func (c *CampaignController) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	campaigns, err := c.CampaignService.ListCampaigns(r.Context(), c.now())
	if err != nil {
		c.fail(w, "list campaigns", err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"data":  campaigns,
		"count": len(campaigns),
	})
}

func (c *CampaignController) GetCampaignDetails(w http.ResponseWriter, r *http.Request) {
	id, ok := CampaignID(w, r)
	if !ok {
		return
	}

	campaign, err := c.CampaignService.GetCampaignDetails(r.Context(), id, c.now())
	if err != nil {
		c.fail(w, "get campaign", err)
		return
	}

	WriteJSON(w, http.StatusOK, campaign)
}

// RunCampaign runs one campaign cycle now, ignoring its RunAt and weekday gates.
func (c *CampaignController) RunCampaign(w http.ResponseWriter, r *http.Request) {
	id, ok := CampaignID(w, r)
	if !ok {
		return
	}

	run, err := c.Worker.RunCampaign(r.Context(), id)
	if err != nil {
		c.fail(w, "run campaign", err)
		return
	}

	WriteJSON(w, http.StatusOK, run)
}

func (c *CampaignController) fail(w http.ResponseWriter, op string, err error) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError && c.Log != nil {
		c.Log.DatabaseError(op, err)
	}
	http.Error(w, err.Error(), status)
}

func (c *CampaignController) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// CampaignID parses the {id} URL parameter, writing 400 when it is not a positive integer.
func CampaignID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		http.Error(w, "invalid campaign id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

// StatusFor maps engine errors to HTTP status codes.
func StatusFor(err error) int {
	var notFound *appErrors.ErrCampaignNotFound
	switch {
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.Is(err, appErrors.ErrCampaignBusy):
		return http.StatusConflict
	case appErrors.Is(err, appErrors.KindConfigMissing):
		return http.StatusServiceUnavailable
	case appErrors.Is(err, appErrors.KindSourceUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
