package analytics_api

import (
	"fmt"
	"net/http"
	"time"

	"ms-darshan/internal/analytics"
	"ms-darshan/internal/apperrors"
	"ms-darshan/internal/auth"
	"ms-darshan/internal/logger"
	"ms-darshan/internal/utils"

	"github.com/go-chi/chi/v5"
)

// Handler serves booking reports to admins
type Handler struct {
	Service *analytics.Service
	Logger  *logger.Logger
}

func NewHandler(service *analytics.Service, logger *logger.Logger) *Handler {
	return &Handler{Service: service, Logger: logger}
}

func (h *Handler) RegisterRoutes(r chi.Router, g auth.Guards) {
	r.Route("/api/analytics", func(r chi.Router) {
		r.Use(g.Authn, g.Admin)
		r.Get("/temples/{templeId}", h.GetTempleAnalytics)
		r.Post("/temples/batch", h.GetBatchAnalytics)
	})
}

type batchRequest struct {
	TempleIDs []string `json:"templeIds"`
	StartDate string   `json:"startDate"`
	EndDate   string   `json:"endDate"`
}

func (h *Handler) GetTempleAnalytics(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, to, err := parseBounds(q.Get("startDate"), q.Get("endDate"))
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	report, err := h.Service.TempleAnalytics(r.Context(), chi.URLParam(r, "templeId"), from, to)
	if err != nil {
		h.fail(w, "temple analytics", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "", report)
}

func (h *Handler) GetBatchAnalytics(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, err)
		return
	}
	from, to, err := parseBounds(req.StartDate, req.EndDate)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	report, err := h.Service.BatchAnalytics(r.Context(), req.TempleIDs, from, to)
	if err != nil {
		h.fail(w, "batch analytics", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "", report)
}

// parseBounds reads optional day bounds; endDate is inclusive.
func parseBounds(start, end string) (*time.Time, *time.Time, error) {
	var from, to *time.Time
	if start != "" {
		d, err := utils.ParseDate(start)
		if err != nil {
			return nil, nil, apperrors.Validation("invalid startDate %q", start)
		}
		from = &d
	}
	if end != "" {
		d, err := utils.ParseDate(end)
		if err != nil {
			return nil, nil, apperrors.Validation("invalid endDate %q", end)
		}
		d = d.Add(24 * time.Hour)
		to = &d
	}
	return from, to, nil
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if utils.IsServerError(err) {
		h.Logger.Error("ANALYTICS", fmt.Sprintf("%s: %v", op, err))
	}
	utils.WriteError(w, err)
}
