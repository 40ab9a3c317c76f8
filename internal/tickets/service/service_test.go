package tickets_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"ms-darshan/internal/apperrors"
	"ms-darshan/internal/config"
	"ms-darshan/internal/database/dbtest"
	"ms-darshan/internal/logger"
	"ms-darshan/internal/models"
	ticket_db "ms-darshan/internal/tickets/db"
	"ms-darshan/internal/tickets/qr"
	tickets "ms-darshan/internal/tickets/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockTicketDBLayer struct {
	mock.Mock
}

func (m *MockTicketDBLayer) CreateWithQueueNumber(ctx context.Context, t *models.Ticket, capacity int, prepare func(*models.Ticket) error) error {
	args := m.Called(t, capacity)
	if err := args.Error(0); err != nil {
		return err
	}
	t.QueueNumber = args.Int(1)
	return prepare(t)
}

func (m *MockTicketDBLayer) GetTicketByID(ctx context.Context, id string) (*models.Ticket, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Ticket), args.Error(1)
}

func (m *MockTicketDBLayer) GetTicketForUser(ctx context.Context, id, userID string) (*models.Ticket, error) {
	args := m.Called(id, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Ticket), args.Error(1)
}

func (m *MockTicketDBLayer) UpdateTicketStatus(ctx context.Context, t *models.Ticket, from models.TicketStatus) error {
	return m.Called(t, from).Error(0)
}

func (m *MockTicketDBLayer) ListTicketsByUser(ctx context.Context, userID string, filter models.TicketFilter) ([]models.Ticket, error) {
	args := m.Called(userID, filter)
	return args.Get(0).([]models.Ticket), args.Error(1)
}

func (m *MockTicketDBLayer) CountActiveBySlot(ctx context.Context, templeID string, from, to time.Time) (map[time.Time]int, error) {
	args := m.Called(templeID, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[time.Time]int), args.Error(1)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishTicketEvent(ctx context.Context, eventType string, t models.Ticket) error {
	return m.Called(eventType, t.TicketID).Error(0)
}

type recordingQueue struct {
	temples []string
}

func (q *recordingQueue) Invalidate(ctx context.Context, templeID string, slotTime time.Time) {
	q.temples = append(q.temples, templeID)
}

var fixedNow = time.Date(2024, 1, 1, 5, 0, 0, 0, time.UTC)

func booking() config.BookingConfig {
	return config.BookingConfig{
		TempleIDs:          []string{"kedarnath", "badrinath"},
		TicketSlotCapacity: 100,
		SlotDuration:       30 * time.Minute,
		OpeningHour:        6,
		ClosingHour:        21,
	}
}

func newService(db *MockTicketDBLayer, pub *MockPublisher, queue *recordingQueue) *tickets.TicketService {
	var events tickets.EventPublisher
	if pub != nil {
		events = pub
	}
	var inv tickets.QueueInvalidator
	if queue != nil {
		inv = queue
	}
	svc := tickets.NewTicketService(db, qr.NewQRGenerator("test-secret"), events, inv, booking(), logger.NewNopLogger())
	svc.Now = func() time.Time { return fixedNow }
	return svc
}

func validRequest() models.BookTicketRequest {
	return models.BookTicketRequest{
		TempleID:       "kedarnath",
		DarshanType:    models.DarshanRegular,
		SlotTime:       "2024-01-01T06:00:00Z",
		NumberOfPeople: 2,
	}
}

func TestBookTicket_AssignsQueueNumberAndQR(t *testing.T) {
	db := new(MockTicketDBLayer)
	pub := new(MockPublisher)
	queue := &recordingQueue{}
	svc := newService(db, pub, queue)

	db.On("CreateWithQueueNumber", mock.AnythingOfType("*models.Ticket"), 100).Return(nil, 3)
	pub.On("PublishTicketEvent", models.EventTicketBooked, mock.Anything).Return(nil)

	ticket, err := svc.BookTicket(context.Background(), "user-1", validRequest())
	require.NoError(t, err)
	assert.Equal(t, 3, ticket.QueueNumber)
	assert.Equal(t, models.TicketPending, ticket.Status)
	assert.Equal(t, models.PriorityNone, ticket.PriorityCategory)
	assert.Equal(t, time.Date(2024, 1, 1, 6, 0, 0, 0, time.UTC), ticket.SlotTime)

	png, err := qr.DecodeDataURL(ticket.QRCode)
	require.NoError(t, err)
	assert.NotEmpty(t, png)
	assert.Equal(t, []string{"kedarnath"}, queue.temples)
	db.AssertExpectations(t)
	pub.AssertExpectations(t)
}

func TestBookTicket_SlotFull(t *testing.T) {
	db := new(MockTicketDBLayer)
	svc := newService(db, nil, nil)
	db.On("CreateWithQueueNumber", mock.Anything, 100).
		Return(apperrors.SlotFull("This slot is fully booked. Please choose another time."), 0)

	_, err := svc.BookTicket(context.Background(), "user-1", validRequest())
	assert.ErrorIs(t, err, apperrors.ErrSlotFull)
	assert.Equal(t, "This slot is fully booked. Please choose another time.", apperrors.MessageFor(err))
}

func TestBookTicket_Validation(t *testing.T) {
	svc := newService(new(MockTicketDBLayer), nil, nil)

	cases := map[string]func(r *models.BookTicketRequest){
		"unknown temple": func(r *models.BookTicketRequest) { r.TempleID = "atlantis" },
		"too many":       func(r *models.BookTicketRequest) { r.NumberOfPeople = 11 },
		"nobody":         func(r *models.BookTicketRequest) { r.NumberOfPeople = 0 },
		"bad type":       func(r *models.BookTicketRequest) { r.DarshanType = "express" },
		"bad priority":   func(r *models.BookTicketRequest) { r.PriorityCategory = "royal" },
		"bad slot time":  func(r *models.BookTicketRequest) { r.SlotTime = "tomorrow" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			req := validRequest()
			mutate(&req)
			_, err := svc.BookTicket(context.Background(), "user-1", req)
			assert.ErrorIs(t, err, apperrors.ErrValidation)
		})
	}
}

func TestBookTicket_StoreError(t *testing.T) {
	db := new(MockTicketDBLayer)
	svc := newService(db, nil, nil)
	db.On("CreateWithQueueNumber", mock.Anything, 100).Return(errors.New("connection reset"), 0)

	_, err := svc.BookTicket(context.Background(), "user-1", validRequest())
	require.Error(t, err)
	assert.Equal(t, 500, apperrors.StatusFor(err))
}

func TestCancelTicket(t *testing.T) {
	db := new(MockTicketDBLayer)
	pub := new(MockPublisher)
	svc := newService(db, pub, nil)

	existing := &models.Ticket{TicketID: "t-1", UserID: "user-1", TempleID: "kedarnath", Status: models.TicketConfirmed}
	db.On("GetTicketForUser", "t-1", "user-1").Return(existing, nil)
	db.On("UpdateTicketStatus", mock.MatchedBy(func(t *models.Ticket) bool {
		return t.Status == models.TicketCancelled
	}), models.TicketConfirmed).Return(nil)
	pub.On("PublishTicketEvent", models.EventTicketCancelled, "t-1").Return(errors.New("broker down"))

	ticket, err := svc.CancelTicket(context.Background(), "t-1", "user-1")
	require.NoError(t, err)
	assert.Equal(t, models.TicketCancelled, ticket.Status)
	db.AssertExpectations(t)
}

func TestCancelTicket_NotOwned(t *testing.T) {
	db := new(MockTicketDBLayer)
	svc := newService(db, nil, nil)
	db.On("GetTicketForUser", "t-1", "user-2").Return(nil, apperrors.NotFound("Ticket not found"))

	_, err := svc.CancelTicket(context.Background(), "t-1", "user-2")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	db.AssertNotCalled(t, "UpdateTicketStatus", mock.Anything, mock.Anything)
}

func TestCancelTicket_Terminal(t *testing.T) {
	for _, status := range []models.TicketStatus{models.TicketCompleted, models.TicketCancelled} {
		db := new(MockTicketDBLayer)
		svc := newService(db, nil, nil)
		db.On("GetTicketForUser", "t-1", "user-1").Return(&models.Ticket{TicketID: "t-1", Status: status}, nil)

		_, err := svc.CancelTicket(context.Background(), "t-1", "user-1")
		assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)
		assert.Equal(t, "Cannot cancel this ticket", apperrors.MessageFor(err))
	}
}

func TestCheckInAndComplete(t *testing.T) {
	db := new(MockTicketDBLayer)
	svc := newService(db, nil, nil)

	pending := &models.Ticket{TicketID: "t-1", Status: models.TicketPending}
	db.On("GetTicketByID", "t-1").Return(pending, nil).Once()
	db.On("UpdateTicketStatus", mock.Anything, models.TicketPending).Return(nil)

	checked, err := svc.CheckIn(context.Background(), "t-1")
	require.NoError(t, err)
	assert.Equal(t, models.TicketConfirmed, checked.Status)
	require.NotNil(t, checked.CheckInTime)
	assert.Equal(t, fixedNow, *checked.CheckInTime)

	db.On("GetTicketByID", "t-1").Return(checked, nil).Once()
	db.On("UpdateTicketStatus", mock.Anything, models.TicketConfirmed).Return(nil)

	done, err := svc.Complete(context.Background(), "t-1")
	require.NoError(t, err)
	assert.Equal(t, models.TicketCompleted, done.Status)
	require.NotNil(t, done.CompletedTime)
}

func TestTransitions(t *testing.T) {
	pending := models.Ticket{Status: models.TicketPending}

	_, err := tickets.CompleteTransition(pending, fixedNow)
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)

	noShow, err := tickets.NoShowTransition(pending, fixedNow)
	require.NoError(t, err)
	assert.Equal(t, models.TicketNoShow, noShow.Status)

	_, err = tickets.CheckInTransition(noShow, fixedNow)
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)

	cancelled, err := tickets.CancelTransition(noShow, fixedNow)
	require.NoError(t, err)
	assert.Equal(t, models.TicketCancelled, cancelled.Status)
}

func TestScanCheckIn(t *testing.T) {
	db := new(MockTicketDBLayer)
	svc := newService(db, nil, nil)
	gen := qr.NewQRGenerator("test-secret")

	ticket := &models.Ticket{TicketID: "t-1", UserID: "user-1", QueueNumber: 4, Status: models.TicketPending}
	db.On("GetTicketByID", "t-1").Return(ticket, nil)
	db.On("UpdateTicketStatus", mock.Anything, models.TicketPending).Return(nil)

	token, err := gen.Encrypt(models.QRPayload{TicketID: "t-1", UserID: "user-1", QueueNumber: 4})
	require.NoError(t, err)
	checked, err := svc.ScanCheckIn(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, models.TicketConfirmed, checked.Status)

	forged, err := gen.Encrypt(models.QRPayload{TicketID: "t-1", UserID: "user-9", QueueNumber: 4})
	require.NoError(t, err)
	_, err = svc.ScanCheckIn(context.Background(), forged)
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = svc.ScanCheckIn(context.Background(), "not-a-token")
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestGetMyTickets_Upcoming(t *testing.T) {
	db := new(MockTicketDBLayer)
	svc := newService(db, nil, nil)
	db.On("ListTicketsByUser", "user-1", mock.MatchedBy(func(f models.TicketFilter) bool {
		return f.FromTime != nil && f.FromTime.Equal(fixedNow) && f.Status == models.TicketPending
	})).Return([]models.Ticket{{TicketID: "t-1"}}, nil)

	list, err := svc.GetMyTickets(context.Background(), "user-1", models.TicketPending, true)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = svc.GetMyTickets(context.Background(), "user-1", "lost", false)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestGetAvailableSlots(t *testing.T) {
	db := new(MockTicketDBLayer)
	svc := newService(db, nil, nil)
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	six := day.Add(6 * time.Hour)
	sixThirty := six.Add(30 * time.Minute)

	db.On("CountActiveBySlot", "kedarnath", six, day.Add(21*time.Hour)).
		Return(map[time.Time]int{six: 100, sixThirty: 40}, nil)

	grid, err := svc.GetAvailableSlots(context.Background(), "kedarnath", "2024-01-01")
	require.NoError(t, err)
	require.Len(t, grid, 30)

	assert.Equal(t, six, grid[0].Time)
	assert.Equal(t, 0, grid[0].Available)
	assert.False(t, grid[0].IsAvailable)
	assert.Equal(t, 60, grid[1].Available)
	assert.True(t, grid[1].IsAvailable)
	assert.Equal(t, 100, grid[29].Available)
	assert.Equal(t, day.Add(20*time.Hour+30*time.Minute), grid[29].Time)

	_, err = svc.GetAvailableSlots(context.Background(), "", "2024-01-01")
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	assert.Equal(t, "Temple ID and date are required", apperrors.MessageFor(err))
}

func TestTicketPDF(t *testing.T) {
	db := new(MockTicketDBLayer)
	svc := newService(db, nil, nil)
	gen := qr.NewQRGenerator("test-secret")
	code, err := gen.DataURL(models.QRPayload{TicketID: "t-1", UserID: "user-1", QueueNumber: 1})
	require.NoError(t, err)

	db.On("GetTicketForUser", "t-1", "user-1").Return(&models.Ticket{
		TicketID: "t-1", UserID: "user-1", TempleID: "kedarnath", QueueNumber: 1,
		DarshanType: models.DarshanVIP, SlotTime: fixedNow, NumberOfPeople: 2, QRCode: code,
	}, nil)

	doc, err := svc.TicketPDF(context.Background(), "t-1", "user-1")
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(doc[:4]))
}

func TestBookTicket_ZonelessSlotTimeOnStore(t *testing.T) {
	store := &ticket_db.DB{Bun: dbtest.NewSQLite(t, (*models.Ticket)(nil))}
	svc := tickets.NewTicketService(store, qr.NewQRGenerator("test-secret"), nil, nil, booking(), logger.NewNopLogger())
	svc.Now = func() time.Time { return fixedNow }

	req := models.BookTicketRequest{
		TempleID:       "kedarnath",
		DarshanType:    models.DarshanRegular,
		SlotTime:       "2024-01-01T06:00",
		NumberOfPeople: 2,
	}
	for i := 1; i <= 3; i++ {
		ticket, err := svc.BookTicket(context.Background(), "user-1", req)
		require.NoError(t, err)
		assert.Equal(t, i, ticket.QueueNumber)
		assert.Equal(t, time.Date(2024, 1, 1, 6, 0, 0, 0, time.UTC), ticket.SlotTime)
	}
}
