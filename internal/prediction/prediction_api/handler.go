package prediction_api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"ms-darshan/internal/auth"
	"ms-darshan/internal/logger"
	"ms-darshan/internal/prediction"
	"ms-darshan/internal/utils"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	Gateway *prediction.Gateway
	Logger  *logger.Logger
}

func NewHandler(g *prediction.Gateway, log *logger.Logger) *Handler {
	return &Handler{Gateway: g, Logger: log}
}

func (h *Handler) RegisterRoutes(r chi.Router, _ auth.Guards) {
	r.Post("/api/prediction/next-day/{templeId}", h.NextDay)
}

// NextDay forwards the feature payload. An empty body is an empty payload.
func (h *Handler) NextDay(w http.ResponseWriter, r *http.Request) {
	features := map[string]interface{}{}
	if err := json.NewDecoder(r.Body).Decode(&features); err != nil && !errors.Is(err, io.EOF) {
		utils.WriteFail(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	res, err := h.Gateway.NextDay(r.Context(), chi.URLParam(r, "templeId"), features)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("next-day prediction: %v", err))
		utils.WriteError(w, err)
		return
	}
	msg := ""
	if res.Fallback {
		msg = "Prediction service unavailable, showing historical average"
	}
	utils.WriteSuccess(w, http.StatusOK, msg, res)
}
