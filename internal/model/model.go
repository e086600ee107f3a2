// Package model defines the core domain types for the event registration system.
package model

import (
	"fmt"
	"time"
)

// Event represents an event with a finite number of seats.
type Event struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Capacity    int       `json:"capacity"`
	SeatsTaken  int       `json:"seats_taken"`
	StartTime   time.Time `json:"start_time"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// AvailableSeats returns the number of seats still free.
func (e *Event) AvailableSeats() int {
	return e.Capacity - e.SeatsTaken
}

// HasStarted reports whether the event is closed for new registrations at now.
func (e *Event) HasStarted(now time.Time) bool {
	return !e.StartTime.After(now)
}

// CheckSeats returns an error if the seat count is outside [0, capacity].
func (e *Event) CheckSeats() error {
	if e.SeatsTaken < 0 || e.SeatsTaken > e.Capacity {
		return fmt.Errorf("event %s: seats_taken=%d outside [0, %d]", e.ID, e.SeatsTaken, e.Capacity)
	}
	return nil
}

// RegistrationState is the lifecycle state of a registration record.
type RegistrationState string

const (
	StateRegistered RegistrationState = "registered"
	StateCancelled  RegistrationState = "cancelled"
	// StateAttended is terminal and set by check-in, outside this service.
	StateAttended RegistrationState = "attended"
)

// Valid reports whether s is a known state.
func (s RegistrationState) Valid() bool {
	switch s {
	case StateRegistered, StateCancelled, StateAttended:
		return true
	}
	return false
}

// Registration is the single record for a (user, event) pair. It is reused on
// re-registration and never deleted.
type Registration struct {
	ID           string            `json:"id"`
	UserID       string            `json:"user_id"`
	EventID      string            `json:"event_id"`
	State        RegistrationState `json:"state"`
	RegisteredAt time.Time         `json:"registered_at"`
	CancelledAt  *time.Time        `json:"cancelled_at,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// Reactivate moves a cancelled record back to registered.
func (r *Registration) Reactivate(now time.Time) {
	r.State = StateRegistered
	r.RegisteredAt = now
	r.CancelledAt = nil
	r.UpdatedAt = now
}

// Cancel moves a registered record to cancelled.
func (r *Registration) Cancel(now time.Time) {
	r.State = StateCancelled
	r.CancelledAt = &now
	r.UpdatedAt = now
}

// UserRegistration joins a registration with the event it refers to.
type UserRegistration struct {
	Registration Registration `json:"registration"`
	Event        Event        `json:"event"`
}

// CreateEventRequest is the payload for creating a new event.
type CreateEventRequest struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Capacity    int       `json:"capacity"`
	StartTime   time.Time `json:"start_time"`
}

// EventView is an event as shown to a caller.
type EventView struct {
	Event
	AvailableSeats int  `json:"available_seats"`
	IsRegistered   bool `json:"is_registered"`
}

// EventList is the response for GET /events.
type EventList struct {
	Events            []EventView `json:"events"`
	UserRegistrations []string    `json:"user_registrations"`
}

// RegistrationResponse is returned by the register and cancel endpoints.
type RegistrationResponse struct {
	Outcome        string        `json:"outcome"`
	Message        string        `json:"message"`
	Registration   *Registration `json:"registration,omitempty"`
	AvailableSeats int           `json:"available_seats"`
}

// DashboardEntry is one registered event on a user's dashboard.
type DashboardEntry struct {
	EventView
	RegistrationID string    `json:"registration_id"`
	RegisteredAt   time.Time `json:"registered_at"`
}

// DashboardStats aggregates a user's registrations.
type DashboardStats struct {
	TotalRegistered int `json:"total_registered"`
	UpcomingCount   int `json:"upcoming_count"`
	PastCount       int `json:"past_count"`
	TotalCancelled  int `json:"total_cancelled"`
}

// Dashboard is the "my events" view for a user.
type Dashboard struct {
	Upcoming []DashboardEntry `json:"upcoming"`
	Past     []DashboardEntry `json:"past"`
	Stats    DashboardStats   `json:"stats"`
}

// ErrorResponse is a standard JSON error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}
