package tickets

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ms-darshan/internal/apperrors"
	"ms-darshan/internal/config"
	"ms-darshan/internal/logger"
	"ms-darshan/internal/models"
	"ms-darshan/internal/tickets/pdf"
	"ms-darshan/internal/tickets/qr"
	"ms-darshan/internal/utils"

	"github.com/google/uuid"
)

type TicketDBLayer interface {
	CreateWithQueueNumber(ctx context.Context, t *models.Ticket, capacity int, prepare func(*models.Ticket) error) error
	GetTicketByID(ctx context.Context, id string) (*models.Ticket, error)
	GetTicketForUser(ctx context.Context, id, userID string) (*models.Ticket, error)
	UpdateTicketStatus(ctx context.Context, t *models.Ticket, from models.TicketStatus) error
	ListTicketsByUser(ctx context.Context, userID string, filter models.TicketFilter) ([]models.Ticket, error)
	CountActiveBySlot(ctx context.Context, templeID string, from, to time.Time) (map[time.Time]int, error)
}

type EventPublisher interface {
	PublishTicketEvent(ctx context.Context, eventType string, t models.Ticket) error
}

// QueueInvalidator drops cached queue snapshots for a temple.
type QueueInvalidator interface {
	Invalidate(ctx context.Context, templeID string, slotTime time.Time)
}

type TicketService struct {
	DB      TicketDBLayer
	QR      *qr.QRGenerator
	Events  EventPublisher
	Queue   QueueInvalidator
	Booking config.BookingConfig
	Logger  *logger.Logger
	Now     func() time.Time
}

func NewTicketService(db TicketDBLayer, qrGen *qr.QRGenerator, events EventPublisher, queue QueueInvalidator, booking config.BookingConfig, log *logger.Logger) *TicketService {
	return &TicketService{
		DB:      db,
		QR:      qrGen,
		Events:  events,
		Queue:   queue,
		Booking: booking,
		Logger:  log,
		Now:     time.Now,
	}
}

func (s *TicketService) now() time.Time {
	return s.Now().UTC().Truncate(time.Second)
}

func (s *TicketService) validateBooking(req *models.BookTicketRequest) (time.Time, error) {
	req.TempleID = strings.TrimSpace(req.TempleID)
	if req.TempleID == "" {
		return time.Time{}, apperrors.Validation("templeId is required")
	}
	if !s.Booking.IsKnownTemple(req.TempleID) {
		return time.Time{}, apperrors.Validation("unknown templeId %q", req.TempleID)
	}
	if req.DarshanType == "" {
		req.DarshanType = models.DarshanRegular
	}
	if !req.DarshanType.Valid() {
		return time.Time{}, apperrors.Validation("invalid darshanType %q", req.DarshanType)
	}
	if req.PriorityCategory == "" {
		req.PriorityCategory = models.PriorityNone
	}
	if !req.PriorityCategory.Valid() {
		return time.Time{}, apperrors.Validation("invalid priorityCategory %q", req.PriorityCategory)
	}
	if req.NumberOfPeople < models.MinPartySize || req.NumberOfPeople > models.MaxPartySize {
		return time.Time{}, apperrors.Validation("numberOfPeople must be between %d and %d", models.MinPartySize, models.MaxPartySize)
	}
	if req.SlotTime == "" {
		return time.Time{}, apperrors.Validation("slotTime is required")
	}
	slotTime, err := utils.ParseSlotTime(req.SlotTime)
	if err != nil {
		return time.Time{}, apperrors.Validation("%v", err)
	}
	return slotTime, nil
}

// BookTicket reserves a place for userID. The capacity check, queue number and
// insert are one store transaction; the QR code is sealed inside it so it carries
// the assigned number.
func (s *TicketService) BookTicket(ctx context.Context, userID string, req models.BookTicketRequest) (*models.Ticket, error) {
	slotTime, err := s.validateBooking(&req)
	if err != nil {
		return nil, err
	}

	now := s.now()
	ticket := &models.Ticket{
		TicketID:            uuid.NewString(),
		UserID:              userID,
		TempleID:            req.TempleID,
		DarshanType:         req.DarshanType,
		SlotTime:            slotTime,
		NumberOfPeople:      req.NumberOfPeople,
		PriorityCategory:    req.PriorityCategory,
		Status:              models.TicketPending,
		PaymentStatus:       models.PaymentPending,
		SpecialRequirements: req.SpecialRequirements,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	err = s.DB.CreateWithQueueNumber(ctx, ticket, s.Booking.TicketSlotCapacity, func(t *models.Ticket) error {
		code, err := s.QR.DataURL(models.QRPayload{TicketID: t.TicketID, UserID: t.UserID, QueueNumber: t.QueueNumber})
		if err != nil {
			return fmt.Errorf("generate QR code: %w", err)
		}
		t.QRCode = code
		return nil
	})
	if err != nil {
		if errors.Is(err, apperrors.ErrSlotFull) {
			return nil, err
		}
		return nil, fmt.Errorf("book ticket: %w", err)
	}

	s.Logger.LogBooking("TICKET_BOOKED", ticket.TicketID,
		fmt.Sprintf("temple=%s slot=%s queue=%d people=%d", ticket.TempleID, ticket.SlotTime.Format(time.RFC3339), ticket.QueueNumber, ticket.NumberOfPeople))
	s.afterChange(ctx, models.EventTicketBooked, *ticket)
	return ticket, nil
}

// CancelTicket cancels a ticket owned by userID. Slot counters are not touched.
func (s *TicketService) CancelTicket(ctx context.Context, ticketID, userID string) (*models.Ticket, error) {
	ticket, err := s.DB.GetTicketForUser(ctx, ticketID, userID)
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, *ticket, CancelTransition, models.EventTicketCancelled)
}

func (s *TicketService) CheckIn(ctx context.Context, ticketID string) (*models.Ticket, error) {
	ticket, err := s.DB.GetTicketByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, *ticket, CheckInTransition, models.EventTicketCheckedIn)
}

func (s *TicketService) Complete(ctx context.Context, ticketID string) (*models.Ticket, error) {
	ticket, err := s.DB.GetTicketByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, *ticket, CompleteTransition, models.EventTicketCompleted)
}

func (s *TicketService) MarkNoShow(ctx context.Context, ticketID string) (*models.Ticket, error) {
	ticket, err := s.DB.GetTicketByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, *ticket, NoShowTransition, models.EventTicketNoShow)
}

// ScanCheckIn checks in the ticket sealed in a scanned QR token.
func (s *TicketService) ScanCheckIn(ctx context.Context, token string) (*models.Ticket, error) {
	payload, err := s.QR.Decrypt(strings.TrimSpace(token))
	if err != nil {
		s.Logger.LogSecurity("QR_REJECTED", err.Error())
		return nil, apperrors.Validation("Invalid QR code")
	}
	ticket, err := s.DB.GetTicketByID(ctx, payload.TicketID)
	if err != nil {
		return nil, err
	}
	if ticket.UserID != payload.UserID || ticket.QueueNumber != payload.QueueNumber {
		s.Logger.LogSecurity("QR_MISMATCH", fmt.Sprintf("ticket=%s", ticket.TicketID))
		return nil, apperrors.Validation("Invalid QR code")
	}
	return s.apply(ctx, *ticket, CheckInTransition, models.EventTicketCheckedIn)
}

type transition func(models.Ticket, time.Time) (models.Ticket, error)

func (s *TicketService) apply(ctx context.Context, current models.Ticket, next transition, eventType string) (*models.Ticket, error) {
	updated, err := next(current, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.DB.UpdateTicketStatus(ctx, &updated, current.Status); err != nil {
		if errors.Is(err, apperrors.ErrInvalidTransition) || errors.Is(err, apperrors.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("update ticket %s: %w", updated.TicketID, err)
	}
	s.Logger.LogBooking(strings.ToUpper(strings.ReplaceAll(eventType, ".", "_")), updated.TicketID,
		fmt.Sprintf("%s -> %s", current.Status, updated.Status))
	s.afterChange(ctx, eventType, updated)
	return &updated, nil
}

// GetMyTickets lists userID's tickets, newest slot first. upcoming keeps only
// slots at or after now.
func (s *TicketService) GetMyTickets(ctx context.Context, userID string, status models.TicketStatus, upcoming bool) ([]models.Ticket, error) {
	if status != "" && !status.Valid() {
		return nil, apperrors.Validation("invalid status %q", status)
	}
	filter := models.TicketFilter{Status: status}
	if upcoming {
		now := s.now()
		filter.FromTime = &now
	}
	tickets, err := s.DB.ListTicketsByUser(ctx, userID, filter)
	if err != nil {
		return nil, fmt.Errorf("list tickets for %s: %w", userID, err)
	}
	return tickets, nil
}

// GetAvailableSlots lays out the opening-hours grid for date in slot-duration steps
// and reports what is left of the per-slot ticket capacity.
func (s *TicketService) GetAvailableSlots(ctx context.Context, templeID, date string) ([]models.SlotAvailability, error) {
	if templeID == "" || date == "" {
		return nil, apperrors.Validation("Temple ID and date are required")
	}
	day, err := utils.ParseDate(date)
	if err != nil {
		return nil, apperrors.Validation("%v", err)
	}
	step := s.Booking.SlotDuration
	if step <= 0 {
		step = 30 * time.Minute
	}

	open := day.Add(time.Duration(s.Booking.OpeningHour) * time.Hour)
	closing := day.Add(time.Duration(s.Booking.ClosingHour) * time.Hour)
	counts, err := s.DB.CountActiveBySlot(ctx, templeID, open, closing)
	if err != nil {
		return nil, fmt.Errorf("count bookings for %s: %w", templeID, err)
	}

	capacity := s.Booking.TicketSlotCapacity
	grid := make([]models.SlotAvailability, 0)
	for at := open; at.Before(closing); at = at.Add(step) {
		booked := counts[at]
		available := capacity - booked
		if available < 0 {
			available = 0
		}
		grid = append(grid, models.SlotAvailability{
			Time:        at,
			Available:   available,
			Total:       capacity,
			IsAvailable: booked < capacity,
		})
	}
	return grid, nil
}

// TicketPDF renders the pass for a ticket owned by userID.
func (s *TicketService) TicketPDF(ctx context.Context, ticketID, userID string) ([]byte, error) {
	ticket, err := s.DB.GetTicketForUser(ctx, ticketID, userID)
	if err != nil {
		return nil, err
	}
	var png []byte
	if ticket.QRCode != "" {
		png, err = qr.DecodeDataURL(ticket.QRCode)
		if err != nil {
			s.Logger.Warn("BOOKING", fmt.Sprintf("ticket %s has an unreadable QR code: %v", ticket.TicketID, err))
		}
	}
	return pdf.GenerateTicketPDF(pdf.TicketPDFData{
		Ticket:         *ticket,
		TempleName:     ticket.TempleID,
		QRCodePngBytes: png,
	})
}

func (s *TicketService) afterChange(ctx context.Context, eventType string, t models.Ticket) {
	if s.Queue != nil {
		s.Queue.Invalidate(ctx, t.TempleID, t.SlotTime)
	}
	if s.Events == nil {
		return
	}
	if err := s.Events.PublishTicketEvent(ctx, eventType, t); err != nil {
		s.Logger.Warn("BOOKING", fmt.Sprintf("ticket event %s for %s not published: %v", eventType, t.TicketID, err))
	}
}
