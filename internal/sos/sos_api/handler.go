package sos_api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"ms-darshan/internal/auth"
	"ms-darshan/internal/logger"
	"ms-darshan/internal/models"
	sos "ms-darshan/internal/sos/service"
	"ms-darshan/internal/sse"
	"ms-darshan/internal/utils"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	SOSService *sos.SOSService
	Live       *sse.Emitter
	// CreateLimit throttles alert creation; nil disables it.
	CreateLimit func(http.Handler) http.Handler
	Logger      *logger.Logger
}

func NewHandler(svc *sos.SOSService, live *sse.Emitter, createLimit func(http.Handler) http.Handler, log *logger.Logger) *Handler {
	return &Handler{SOSService: svc, Live: live, CreateLimit: createLimit, Logger: log}
}

func (h *Handler) RegisterRoutes(r chi.Router, g auth.Guards) {
	r.Route("/api/sos", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(g.Authn)
			if h.CreateLimit != nil {
				r.With(h.CreateLimit).Post("/create", h.Create)
			} else {
				r.Post("/create", h.Create)
			}
			r.Get("/my-alerts", h.MyAlerts)
			r.Put("/{id}/cancel", h.Cancel)
		})

		r.Group(func(r chi.Router) {
			r.Use(g.Authn, g.Admin)
			r.Get("/all", h.List)
			r.Get("/stats", h.Stats)
			r.Get("/stream", h.Stream)
			r.Put("/{id}/acknowledge", h.Acknowledge)
			r.Put("/{id}/in-progress", h.MarkInProgress)
			r.Put("/{id}/resolve", h.Resolve)
		})
	})
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateSOSRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, err)
		return
	}
	alert, err := h.SOSService.Create(r.Context(), auth.UserID(r.Context()), req)
	if err != nil {
		h.fail(w, "create sos", err)
		return
	}
	utils.WriteSuccess(w, http.StatusCreated, "SOS alert created successfully. Admin team has been notified!", alert)
}

// List accepts status as a comma separated list, plus priority, type, page and limit.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := models.SOSFilter{
		Priority: models.SOSPriority(q.Get("priority")),
		Type:     models.SOSType(q.Get("type")),
	}
	for _, s := range strings.Split(q.Get("status"), ",") {
		if s = strings.TrimSpace(s); s != "" {
			f.Statuses = append(f.Statuses, models.SOSStatus(s))
		}
	}
	f.Page, _ = strconv.Atoi(q.Get("page"))
	f.Limit, _ = strconv.Atoi(q.Get("limit"))

	page, err := h.SOSService.List(r.Context(), f)
	if err != nil {
		h.fail(w, "list sos", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "", page)
}

func (h *Handler) MyAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.SOSService.MyAlerts(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		h.fail(w, "my sos alerts", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, fmt.Sprintf("%d alerts", len(alerts)), alerts)
}

func (h *Handler) Acknowledge(w http.ResponseWriter, r *http.Request) {
	alert, err := h.SOSService.Acknowledge(r.Context(), chi.URLParam(r, "id"), auth.UserID(r.Context()))
	if err != nil {
		h.fail(w, "acknowledge sos", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "SOS acknowledged", alert)
}

func (h *Handler) MarkInProgress(w http.ResponseWriter, r *http.Request) {
	alert, err := h.SOSService.MarkInProgress(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, "sos in-progress", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "SOS marked as in-progress", alert)
}

func (h *Handler) Resolve(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ResolutionNotes string `json:"resolutionNotes"`
	}
	if r.ContentLength != 0 {
		if err := utils.DecodeJSON(r, &body); err != nil {
			utils.WriteError(w, err)
			return
		}
	}
	alert, err := h.SOSService.Resolve(r.Context(), chi.URLParam(r, "id"), body.ResolutionNotes)
	if err != nil {
		h.fail(w, "resolve sos", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "SOS resolved successfully", alert)
}

func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	alert, err := h.SOSService.Cancel(r.Context(), chi.URLParam(r, "id"), auth.UserID(r.Context()))
	if err != nil {
		h.fail(w, "cancel sos", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "SOS alert cancelled", alert)
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.SOSService.Stats(r.Context())
	if err != nil {
		h.fail(w, "sos stats", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "", stats)
}

// Stream pushes sos-alert and sos-updated events to admin dashboards.
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	sse.Serve(w, r, h.Live, sse.AdminTopic, h.Logger)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if utils.IsServerError(err) {
		h.Logger.Error("API", fmt.Sprintf("%s: %v", op, err))
	}
	utils.WriteError(w, err)
}
