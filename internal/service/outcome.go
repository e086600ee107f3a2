package service

import (
	"github.com/Shivanand-hulikatti/event-seat-registration/internal/apperr"
	"github.com/Shivanand-hulikatti/event-seat-registration/internal/model"
)

// Outcome is the typed result of Register or Cancel.
type Outcome int

const (
	OutcomeCreated Outcome = iota + 1
	OutcomeAlreadyRegistered
	OutcomeEventFull
	OutcomeEventInPast
	OutcomeEventNotFound
	OutcomeCancelled
	OutcomeNotRegistered
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCreated:
		return "created"
	case OutcomeAlreadyRegistered:
		return "already_registered"
	case OutcomeEventFull:
		return "event_full"
	case OutcomeEventInPast:
		return "event_in_past"
	case OutcomeEventNotFound:
		return "event_not_found"
	case OutcomeCancelled:
		return "cancelled"
	case OutcomeNotRegistered:
		return "not_registered"
	default:
		return "unknown"
	}
}

// OK reports whether the outcome changed state.
func (o Outcome) OK() bool {
	return o == OutcomeCreated || o == OutcomeCancelled
}

// Err maps a failed outcome onto the error taxonomy; nil for OK outcomes.
func (o Outcome) Err() error {
	switch o {
	case OutcomeAlreadyRegistered:
		return apperr.ErrAlreadyRegistered
	case OutcomeEventFull:
		return apperr.ErrEventFull
	case OutcomeEventInPast:
		return apperr.ErrEventInPast
	case OutcomeEventNotFound:
		return apperr.ErrEventNotFound
	case OutcomeNotRegistered:
		return apperr.ErrNotRegistered
	}
	return nil
}

// Result is returned by Register and Cancel.
type Result struct {
	Outcome Outcome
	// Registration is the record after the transition; nil unless OK.
	Registration *model.Registration
	// AvailableSeats is capacity minus seats taken as seen by the
	// operation; zero when the event was not found.
	AvailableSeats int
}
