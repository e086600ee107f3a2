package service

import (
	"context"
	"testing"
	"time"

	"github.com/Shivanand-hulikatti/event-seat-registration/internal/apperr"
	"github.com/Shivanand-hulikatti/event-seat-registration/internal/ledger"
	"github.com/Shivanand-hulikatti/event-seat-registration/internal/model"
	"github.com/Shivanand-hulikatti/event-seat-registration/internal/repository"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupEvents(t *testing.T) (*EventService, *RegistrationService, *repository.MemoryStore) {
	t.Helper()
	store := repository.NewMemoryStore()
	events := NewEventService(store, store)
	events.now = func() time.Time { return testNow }
	regs := NewRegistrationService(store, ledger.New(discardLogger()), nil, discardLogger())
	regs.now = func() time.Time { return testNow }
	return events, regs, store
}

func TestCreateEvent_Validation(t *testing.T) {
	svc, _, _ := setupEvents(t)
	ctx := context.Background()
	future := testNow.Add(time.Hour)

	tests := []struct {
		name string
		req  model.CreateEventRequest
	}{
		{"blank name", model.CreateEventRequest{Name: "  ", Capacity: 10, StartTime: future}},
		{"zero capacity", model.CreateEventRequest{Name: "Meetup", Capacity: 0, StartTime: future}},
		{"capacity too large", model.CreateEventRequest{Name: "Meetup", Capacity: 100_001, StartTime: future}},
		{"missing start", model.CreateEventRequest{Name: "Meetup", Capacity: 10}},
		{"start in past", model.CreateEventRequest{Name: "Meetup", Capacity: 10, StartTime: testNow.Add(-time.Minute)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateEvent(ctx, tt.req)
			assert.Equal(t, apperr.KindInvalid, apperr.KindOf(err))
		})
	}
}

func TestCreateEvent(t *testing.T) {
	svc, _, store := setupEvents(t)

	e, err := svc.CreateEvent(context.Background(), model.CreateEventRequest{
		Name:        "  Go Meetup ",
		Description: "talks",
		Capacity:    50,
		StartTime:   testNow.Add(time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, "Go Meetup", e.Name)
	assert.Equal(t, 0, e.SeatsTaken)
	_, err = uuid.Parse(e.ID)
	assert.NoError(t, err)

	stored, err := store.GetByID(context.Background(), e.ID)
	require.NoError(t, err)
	assert.Equal(t, 50, stored.Capacity)
}

func TestGetEvent(t *testing.T) {
	svc, regs, store := setupEvents(t)
	ctx := context.Background()
	eventID := seedEvent(t, store, 3, testNow.Add(time.Hour))

	_, err := regs.Register(ctx, "alice", eventID)
	require.NoError(t, err)

	view, err := svc.GetEvent(ctx, eventID, "alice")
	require.NoError(t, err)
	assert.True(t, view.IsRegistered)
	assert.Equal(t, 2, view.AvailableSeats)

	view, err = svc.GetEvent(ctx, eventID, "bob")
	require.NoError(t, err)
	assert.False(t, view.IsRegistered)

	view, err = svc.GetEvent(ctx, eventID, "")
	require.NoError(t, err)
	assert.False(t, view.IsRegistered)

	_, err = svc.GetEvent(ctx, uuid.NewString(), "")
	assert.ErrorIs(t, err, apperr.ErrEventNotFound)

	_, err = svc.GetEvent(ctx, "nope", "")
	assert.Equal(t, apperr.KindInvalid, apperr.KindOf(err))
}

func TestListEvents(t *testing.T) {
	svc, regs, store := setupEvents(t)
	ctx := context.Background()
	first := seedEvent(t, store, 3, testNow.Add(time.Hour))
	second := seedEvent(t, store, 3, testNow.Add(2*time.Hour))

	_, err := regs.Register(ctx, "alice", second)
	require.NoError(t, err)

	list, err := svc.ListEvents(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, list.Events, 2)
	assert.Equal(t, first, list.Events[0].ID)
	assert.Equal(t, second, list.Events[1].ID)
	assert.True(t, list.Events[1].IsRegistered)
	assert.Equal(t, 2, list.Events[1].AvailableSeats)
	assert.Equal(t, []string{second}, list.UserRegistrations)

	anon, err := svc.ListEvents(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, anon.UserRegistrations)
}

func TestListRegistrations(t *testing.T) {
	svc, regs, store := setupEvents(t)
	ctx := context.Background()
	eventID := seedEvent(t, store, 3, testNow.Add(time.Hour))

	_, err := regs.Register(ctx, "alice", eventID)
	require.NoError(t, err)

	list, err := svc.ListRegistrations(ctx, eventID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "alice", list[0].UserID)

	_, err = svc.ListRegistrations(ctx, uuid.NewString())
	assert.ErrorIs(t, err, apperr.ErrEventNotFound)
}
