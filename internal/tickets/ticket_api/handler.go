package ticket_api

import (
	"fmt"
	"net/http"
	"time"

	"ms-darshan/internal/auth"
	"ms-darshan/internal/logger"
	"ms-darshan/internal/models"
	"ms-darshan/internal/queue"
	tickets "ms-darshan/internal/tickets/service"
	"ms-darshan/internal/utils"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	TicketService *tickets.TicketService
	Queue         *queue.StatusService
	Logger        *logger.Logger
	Now           func() time.Time
}

func NewHandler(svc *tickets.TicketService, q *queue.StatusService, log *logger.Logger) *Handler {
	return &Handler{TicketService: svc, Queue: q, Logger: log, Now: time.Now}
}

// RegisterRoutes mounts the ticket endpoints under /api/tickets.
func (h *Handler) RegisterRoutes(r chi.Router, g auth.Guards) {
	r.Route("/api/tickets", func(r chi.Router) {
		r.Get("/slots", h.GetAvailableSlots)
		r.Get("/queue/{templeId}", h.GetQueueStatus)

		r.Group(func(r chi.Router) {
			r.Use(g.Authn)
			r.Post("/book", h.BookTicket)
			r.Get("/my-tickets", h.GetMyTickets)
			r.Put("/{id}/cancel", h.CancelTicket)
			r.Get("/{id}/pdf", h.DownloadPDF)
		})

		r.Group(func(r chi.Router) {
			r.Use(g.Authn, g.Admin)
			r.Put("/{id}/checkin", h.CheckIn)
			r.Put("/{id}/complete", h.Complete)
			r.Put("/{id}/no-show", h.MarkNoShow)
			r.Post("/checkin/scan", h.ScanCheckIn)
		})
	})
}

func (h *Handler) BookTicket(w http.ResponseWriter, r *http.Request) {
	var req models.BookTicketRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, err)
		return
	}
	ticket, err := h.TicketService.BookTicket(r.Context(), auth.UserID(r.Context()), req)
	if err != nil {
		h.fail(w, "book ticket", err)
		return
	}
	utils.WriteSuccess(w, http.StatusCreated, "Ticket booked successfully", ticket)
}

func (h *Handler) GetMyTickets(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	list, err := h.TicketService.GetMyTickets(r.Context(), auth.UserID(r.Context()),
		models.TicketStatus(q.Get("status")), q.Get("upcoming") == "true")
	if err != nil {
		h.fail(w, "list tickets", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, fmt.Sprintf("%d tickets", len(list)), list)
}

func (h *Handler) GetAvailableSlots(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	grid, err := h.TicketService.GetAvailableSlots(r.Context(), q.Get("templeId"), q.Get("date"))
	if err != nil {
		h.fail(w, "available slots", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "", grid)
}

func (h *Handler) CancelTicket(w http.ResponseWriter, r *http.Request) {
	ticket, err := h.TicketService.CancelTicket(r.Context(), chi.URLParam(r, "id"), auth.UserID(r.Context()))
	if err != nil {
		h.fail(w, "cancel ticket", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Ticket cancelled successfully", ticket)
}

func (h *Handler) CheckIn(w http.ResponseWriter, r *http.Request) {
	ticket, err := h.TicketService.CheckIn(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, "check in", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Check-in successful", ticket)
}

func (h *Handler) Complete(w http.ResponseWriter, r *http.Request) {
	ticket, err := h.TicketService.Complete(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, "complete ticket", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Darshan completed", ticket)
}

func (h *Handler) MarkNoShow(w http.ResponseWriter, r *http.Request) {
	ticket, err := h.TicketService.MarkNoShow(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, "mark no-show", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Ticket marked as no-show", ticket)
}

type scanRequest struct {
	Token string `json:"token"`
}

func (h *Handler) ScanCheckIn(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, err)
		return
	}
	ticket, err := h.TicketService.ScanCheckIn(r.Context(), req.Token)
	if err != nil {
		h.fail(w, "scan check-in", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Check-in successful", ticket)
}

func (h *Handler) DownloadPDF(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	doc, err := h.TicketService.TicketPDF(r.Context(), id, auth.UserID(r.Context()))
	if err != nil {
		h.fail(w, "ticket pdf", err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=darshan-%s.pdf", id))
	w.WriteHeader(http.StatusOK)
	w.Write(doc)
}

func (h *Handler) GetQueueStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.Queue.Status(r.Context(), chi.URLParam(r, "templeId"), h.Now())
	if err != nil {
		h.fail(w, "queue status", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "", status)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if utils.IsServerError(err) {
		h.Logger.Error("API", fmt.Sprintf("%s: %v", op, err))
	}
	utils.WriteError(w, err)
}
