// Package service implements business logic, validation, and orchestration
// between HTTP handlers and the repository layer.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Shivanand-hulikatti/event-seat-registration/internal/apperr"
	"github.com/Shivanand-hulikatti/event-seat-registration/internal/model"
	"github.com/Shivanand-hulikatti/event-seat-registration/internal/repository"
	"github.com/google/uuid"
)

// maxCapacity caps the seats of a single event.
const maxCapacity = 100_000

// EventService serves event reads and creation. It never writes seat counts.
type EventService struct {
	events        repository.EventStore
	registrations repository.RegistrationStore
	now           func() time.Time
}

// NewEventService constructs an EventService with its dependencies.
func NewEventService(events repository.EventStore, registrations repository.RegistrationStore) *EventService {
	return &EventService{
		events:        events,
		registrations: registrations,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// CreateEvent validates the request and delegates to the repository.
func (s *EventService) CreateEvent(ctx context.Context, req model.CreateEventRequest) (*model.Event, error) {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return nil, apperr.Invalid("event name is required")
	}
	if req.Capacity <= 0 {
		return nil, apperr.Invalid("capacity must be a positive integer")
	}
	if req.Capacity > maxCapacity {
		return nil, apperr.Invalid("capacity cannot exceed 100,000")
	}
	if req.StartTime.IsZero() {
		return nil, apperr.Invalid("start_time is required")
	}
	now := s.now()
	if !req.StartTime.After(now) {
		return nil, apperr.Invalid("start_time must be in the future")
	}

	event := &model.Event{
		ID:          uuid.NewString(),
		Name:        req.Name,
		Description: strings.TrimSpace(req.Description),
		Capacity:    req.Capacity,
		StartTime:   req.StartTime.UTC(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.events.Create(ctx, event); err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}
	return event, nil
}

// ListEvents returns all events. When userID is set, the ids of events the
// user holds a seat for are returned alongside.
func (s *EventService) ListEvents(ctx context.Context, userID string) (*model.EventList, error) {
	events, err := s.events.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}

	registered := map[string]bool{}
	list := &model.EventList{Events: make([]model.EventView, 0, len(events)), UserRegistrations: []string{}}
	if userID != "" {
		regs, err := s.registrations.ListByUser(ctx, userID, model.StateRegistered)
		if err != nil {
			return nil, fmt.Errorf("list user registrations: %w", err)
		}
		for _, ur := range regs {
			registered[ur.Event.ID] = true
		}
	}

	for _, e := range events {
		list.Events = append(list.Events, model.EventView{
			Event:          e,
			AvailableSeats: e.AvailableSeats(),
			IsRegistered:   registered[e.ID],
		})
		if registered[e.ID] {
			list.UserRegistrations = append(list.UserRegistrations, e.ID)
		}
	}
	return list, nil
}

// GetEvent returns a single event by ID, marking whether userID holds a seat.
func (s *EventService) GetEvent(ctx context.Context, id, userID string) (*model.EventView, error) {
	id, err := normalizeEventID(id)
	if err != nil {
		return nil, err
	}
	event, err := s.events.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperr.ErrEventNotFound) {
			return nil, apperr.ErrEventNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}

	view := &model.EventView{Event: *event, AvailableSeats: event.AvailableSeats()}
	if userID != "" {
		reg, err := s.registrations.Find(ctx, userID, id)
		switch {
		case errors.Is(err, apperr.ErrNotRegistered):
		case err != nil:
			return nil, fmt.Errorf("find registration: %w", err)
		default:
			view.IsRegistered = reg.State == model.StateRegistered
		}
	}
	return view, nil
}

// ListRegistrations returns all registrations for an event.
func (s *EventService) ListRegistrations(ctx context.Context, eventID string) ([]model.Registration, error) {
	eventID, err := normalizeEventID(eventID)
	if err != nil {
		return nil, err
	}
	if _, err := s.events.GetByID(ctx, eventID); err != nil {
		return nil, err
	}
	return s.registrations.ListByEvent(ctx, eventID)
}
