package slot_api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ms-darshan/internal/auth"
	"ms-darshan/internal/config"
	"ms-darshan/internal/database/dbtest"
	"ms-darshan/internal/logger"
	"ms-darshan/internal/models"
	slot_db "ms-darshan/internal/slots/db"
	slots "ms-darshan/internal/slots/service"
	"ms-darshan/internal/slots/slot_api"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tokenVerifier accepts "admin" and "user" as literal bearer tokens.
type tokenVerifier struct{}

func (tokenVerifier) Verify(_ context.Context, raw string) (*auth.Identity, error) {
	switch raw {
	case "admin":
		return &auth.Identity{UserID: "admin-1", Roles: []string{"admin"}}, nil
	case "user":
		return &auth.Identity{UserID: "user-1"}, nil
	}
	return nil, errors.New("bad token")
}

type envelope struct {
	Success bool             `json:"success"`
	Message string           `json:"message"`
	Data    models.QueueSlot `json:"data"`
}

func setup(t *testing.T) (http.Handler, *slot_db.DB) {
	store := &slot_db.DB{Bun: dbtest.NewSQLite(t, (*models.QueueSlot)(nil))}
	log := logger.NewNopLogger()
	svc := slots.NewSlotService(store, nil, config.BookingConfig{
		TempleIDs:           []string{"kedarnath"},
		DefaultSlotCapacity: 50,
	}, log)

	r := chi.NewRouter()
	slot_api.NewHandler(svc, log).RegisterRoutes(r, auth.NewGuards(tokenVerifier{}, "admin", log))
	return r, store
}

func do(t *testing.T, h http.Handler, method, path, token, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec, env
}

func TestAddToFullSlot(t *testing.T) {
	h, store := setup(t)
	now := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, store.CreateSlot(context.Background(), &models.QueueSlot{
		ID: "row-1", TempleID: "kedarnath", SlotID: "slot1", StartTime: "06:00", EndTime: "07:00",
		MaxCapacity: 50, BookedCount: 50, CreatedAt: now, UpdatedAt: now,
	}))

	rec, env := do(t, h, http.MethodPost, "/api/queue/slot1/add", "user", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, env.Success)
	assert.Equal(t, "Slot is full", env.Message)

	slot, err := store.GetSlotBySlotID(context.Background(), "slot1")
	require.NoError(t, err)
	assert.Equal(t, 50, slot.BookedCount)
}

func TestSlotLifecycle(t *testing.T) {
	h, _ := setup(t)

	rec, env := do(t, h, http.MethodPost, "/api/queue/", "user",
		`{"templeId":"kedarnath","slotId":"slot1","startTime":"06:00","endTime":"07:00","maxCapacity":2}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, env = do(t, h, http.MethodPost, "/api/queue/", "admin",
		`{"templeId":"kedarnath","slotId":"slot1","startTime":"06:00","endTime":"07:00","maxCapacity":2}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	rowID := env.Data.ID

	rec, env = do(t, h, http.MethodPost, "/api/queue/slot1/add", "user", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Booking confirmed", env.Message)
	assert.Equal(t, 1, env.Data.BookedCount)

	rec, env = do(t, h, http.MethodPost, "/api/queue/slot1/remove", "user", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Booking removed", env.Message)
	assert.Equal(t, 0, env.Data.BookedCount)

	rec, env = do(t, h, http.MethodPost, "/api/queue/slot1/remove", "user", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, env.Data.BookedCount)

	rec, env = do(t, h, http.MethodGet, "/api/queue/"+rowID, "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "slot1", env.Data.SlotID)

	rec, env = do(t, h, http.MethodPost, "/api/queue/nope/add", "user", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Slot not found", env.Message)

	rec, _ = do(t, h, http.MethodDelete, "/api/queue/"+rowID, "admin", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestListTempleSlots(t *testing.T) {
	h, store := setup(t)
	now := time.Now().UTC().Truncate(time.Second)
	for _, id := range []string{"slot1", "slot2"} {
		require.NoError(t, store.CreateSlot(context.Background(), &models.QueueSlot{
			ID: "row-" + id, TempleID: "kedarnath", SlotID: id, MaxCapacity: 50, CreatedAt: now, UpdatedAt: now,
		}))
	}

	req := httptest.NewRequest(http.MethodGet, "/api/queue/temple/kedarnath", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Success bool               `json:"success"`
		Data    []models.QueueSlot `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Len(t, body.Data, 2)
}
