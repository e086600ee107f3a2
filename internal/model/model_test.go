package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventSeats(t *testing.T) {
	e := Event{ID: "e1", Capacity: 2, SeatsTaken: 1}
	assert.Equal(t, 1, e.AvailableSeats())
	require.NoError(t, e.CheckSeats())

	e.SeatsTaken = 2
	assert.Zero(t, e.AvailableSeats())
	require.NoError(t, e.CheckSeats())

	e.SeatsTaken = 3
	assert.Error(t, e.CheckSeats())

	e.SeatsTaken = -1
	assert.Error(t, e.CheckSeats())
}

func TestEventHasStarted(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	e := Event{StartTime: now}
	assert.True(t, e.HasStarted(now), "an event starting right now is closed")
	assert.True(t, e.HasStarted(now.Add(time.Second)))
	assert.False(t, e.HasStarted(now.Add(-time.Second)))
}

func TestRegistrationTransitions(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r := Registration{State: StateRegistered, RegisteredAt: t0}

	t1 := t0.Add(time.Hour)
	r.Cancel(t1)
	assert.Equal(t, StateCancelled, r.State)
	require.NotNil(t, r.CancelledAt)
	assert.Equal(t, t1, *r.CancelledAt)
	assert.Equal(t, t0, r.RegisteredAt)

	t2 := t1.Add(time.Hour)
	r.Reactivate(t2)
	assert.Equal(t, StateRegistered, r.State)
	assert.Nil(t, r.CancelledAt)
	assert.Equal(t, t2, r.RegisteredAt)
	assert.Equal(t, t2, r.UpdatedAt)
}

func TestRegistrationStateValid(t *testing.T) {
	assert.True(t, StateAttended.Valid())
	assert.False(t, RegistrationState("pending").Valid())
}
