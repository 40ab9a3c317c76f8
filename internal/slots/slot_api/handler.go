package slot_api

import (
	"fmt"
	"net/http"

	"ms-darshan/internal/auth"
	"ms-darshan/internal/logger"
	"ms-darshan/internal/models"
	slots "ms-darshan/internal/slots/service"
	"ms-darshan/internal/utils"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	SlotService *slots.SlotService
	Logger      *logger.Logger
}

func NewHandler(svc *slots.SlotService, log *logger.Logger) *Handler {
	return &Handler{SlotService: svc, Logger: log}
}

// RegisterRoutes mounts the slot endpoints under /api/queue.
func (h *Handler) RegisterRoutes(r chi.Router, g auth.Guards) {
	r.Route("/api/queue", func(r chi.Router) {
		r.Get("/temple/{templeId}", h.ListTempleSlots)
		r.Get("/{id}", h.GetSlot)
		// {id} is the row id for CRUD and the slotId for add/remove.
		r.With(g.Authn).Post("/{id}/add", h.AddBooking)
		r.With(g.Authn).Post("/{id}/remove", h.RemoveBooking)

		r.Group(func(r chi.Router) {
			r.Use(g.Authn, g.Admin)
			r.Post("/", h.CreateSlot)
			r.Put("/{id}", h.UpdateSlot)
			r.Delete("/{id}", h.DeleteSlot)
		})
	})
}

func (h *Handler) CreateSlot(w http.ResponseWriter, r *http.Request) {
	var req models.CreateSlotRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, err)
		return
	}
	slot, err := h.SlotService.CreateSlot(r.Context(), req)
	if err != nil {
		h.fail(w, "create slot", err)
		return
	}
	utils.WriteSuccess(w, http.StatusCreated, "Slot created", slot)
}

func (h *Handler) ListTempleSlots(w http.ResponseWriter, r *http.Request) {
	list, err := h.SlotService.ListTempleSlots(r.Context(), chi.URLParam(r, "templeId"))
	if err != nil {
		h.fail(w, "list slots", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "", list)
}

func (h *Handler) GetSlot(w http.ResponseWriter, r *http.Request) {
	slot, err := h.SlotService.GetSlot(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, "get slot", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "", slot)
}

func (h *Handler) UpdateSlot(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateSlotRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, err)
		return
	}
	slot, err := h.SlotService.UpdateSlot(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		h.fail(w, "update slot", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Slot updated", slot)
}

func (h *Handler) DeleteSlot(w http.ResponseWriter, r *http.Request) {
	if err := h.SlotService.DeleteSlot(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, "delete slot", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Slot deleted", nil)
}

func (h *Handler) AddBooking(w http.ResponseWriter, r *http.Request) {
	slot, err := h.SlotService.AddBooking(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, "add booking", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Booking confirmed", slot)
}

func (h *Handler) RemoveBooking(w http.ResponseWriter, r *http.Request) {
	slot, err := h.SlotService.RemoveBooking(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, "remove booking", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Booking removed", slot)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if utils.IsServerError(err) {
		h.Logger.Error("API", fmt.Sprintf("%s: %v", op, err))
	}
	utils.WriteError(w, err)
}
