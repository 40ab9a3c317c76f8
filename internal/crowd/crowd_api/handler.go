package crowd_api

import (
	"fmt"
	"net/http"
	"time"

	"ms-darshan/internal/auth"
	crowd "ms-darshan/internal/crowd/service"
	"ms-darshan/internal/logger"
	"ms-darshan/internal/models"
	"ms-darshan/internal/prediction"
	"ms-darshan/internal/sse"
	"ms-darshan/internal/utils"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	CrowdService *crowd.CrowdService
	Gateway      *prediction.Gateway
	Live         *sse.Emitter
	Logger       *logger.Logger
}

func NewHandler(svc *crowd.CrowdService, g *prediction.Gateway, live *sse.Emitter, log *logger.Logger) *Handler {
	return &Handler{CrowdService: svc, Gateway: g, Live: live, Logger: log}
}

// RegisterRoutes mounts the crowd endpoints under /api/crowd.
func (h *Handler) RegisterRoutes(r chi.Router, g auth.Guards) {
	r.Route("/api/crowd", func(r chi.Router) {
		r.Get("/current/{templeId}", h.Current)
		r.Get("/today/{templeId}", h.Today)
		r.Get("/predict/{templeId}", h.Predict)
		r.Get("/stream/{templeId}", h.Stream)

		r.Group(func(r chi.Router) {
			r.Use(g.Authn, g.Admin)
			r.Post("/update", h.Update)
			r.Get("/analytics/{templeId}", h.Analytics)
		})
	})
}

func (h *Handler) Current(w http.ResponseWriter, r *http.Request) {
	sample, err := h.CrowdService.Current(r.Context(), chi.URLParam(r, "templeId"), r.URL.Query().Get("zone"))
	if err != nil {
		h.fail(w, "current crowd", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "", sample)
}

func (h *Handler) Today(w http.ResponseWriter, r *http.Request) {
	hourly, err := h.CrowdService.TodayHourly(r.Context(), chi.URLParam(r, "templeId"))
	if err != nil {
		h.fail(w, "today's crowd", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "", hourly)
}

func (h *Handler) Predict(w http.ResponseWriter, r *http.Request) {
	res, err := h.Gateway.Hourly(r.Context(), chi.URLParam(r, "templeId"))
	if err != nil {
		h.fail(w, "crowd prediction", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "", res)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var req models.CrowdSampleRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, err)
		return
	}
	sample, err := h.CrowdService.RecordSample(r.Context(), req)
	if err != nil {
		h.fail(w, "update crowd", err)
		return
	}
	utils.WriteSuccess(w, http.StatusCreated, "Crowd data updated", sample)
}

func (h *Handler) Analytics(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, err := optionalDate(q.Get("startDate"))
	if err != nil {
		utils.WriteFail(w, http.StatusBadRequest, err.Error())
		return
	}
	to, err := optionalDate(q.Get("endDate"))
	if err != nil {
		utils.WriteFail(w, http.StatusBadRequest, err.Error())
		return
	}
	rows, err := h.CrowdService.Analytics(r.Context(), chi.URLParam(r, "templeId"), from, to)
	if err != nil {
		h.fail(w, "crowd analytics", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "", rows)
}

func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	sse.Serve(w, r, h.Live, sse.CrowdTopic(chi.URLParam(r, "templeId")), h.Logger)
}

func optionalDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	d, err := utils.ParseDate(s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if utils.IsServerError(err) {
		h.Logger.Error("API", fmt.Sprintf("%s: %v", op, err))
	}
	utils.WriteError(w, err)
}
