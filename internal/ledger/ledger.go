// Package ledger owns the authoritative seat count of an event.
//
// The ledger never reads the count and writes it back in two steps. Each
// Counter implementation performs the capacity check and the increment as one
// indivisible operation (a conditional UPDATE in PostgreSQL, a per-event mutex
// in memory), so two callers racing for the last seat cannot both win.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Shivanand-hulikatti/event-seat-registration/internal/apperr"
	"github.com/Shivanand-hulikatti/event-seat-registration/internal/metrics"
)

// Seats is a snapshot of an event's counter.
type Seats struct {
	Capacity int
	Taken    int
}

// Available returns capacity minus seats taken.
func (s Seats) Available() int {
	return s.Capacity - s.Taken
}

func (s Seats) valid() bool {
	return s.Capacity > 0 && s.Taken >= 0 && s.Taken <= s.Capacity
}

// Counter performs the atomic counter updates. Implementations return
// apperr.ErrEventNotFound when the event does not exist.
type Counter interface {
	// IncrementSeats adds one seat if seats taken is below capacity, in a
	// single atomic step. applied is false when the event was full; seats is
	// the counter after the call either way.
	IncrementSeats(ctx context.Context, eventID string) (seats Seats, applied bool, err error)
	// DecrementSeats removes one seat, never going below zero.
	DecrementSeats(ctx context.Context, eventID string) (Seats, error)
}

// Outcome is the typed result of a ledger operation.
type Outcome int

const (
	Reserved Outcome = iota + 1
	Released
	Full
	NotFound
)

func (o Outcome) String() string {
	switch o {
	case Reserved:
		return "reserved"
	case Released:
		return "released"
	case Full:
		return "full"
	case NotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Ledger applies reservations and releases through a Counter and checks
// every result against the seat invariant.
type Ledger struct {
	log *slog.Logger
}

// New constructs a Ledger.
func New(logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{log: logger.With("component", "ledger")}
}

// TryReserveSeat takes one seat if one is free.
func (l *Ledger) TryReserveSeat(ctx context.Context, c Counter, eventID string) (Seats, Outcome, error) {
	seats, applied, err := c.IncrementSeats(ctx, eventID)
	if err != nil {
		if errors.Is(err, apperr.ErrEventNotFound) {
			return Seats{}, NotFound, nil
		}
		return Seats{}, 0, fmt.Errorf("reserve seat: %w", err)
	}
	if err := l.check(eventID, "reserve", seats); err != nil {
		return seats, 0, err
	}
	if !applied {
		return seats, Full, nil
	}
	return seats, Reserved, nil
}

// ReleaseSeat gives one seat back. Releasing when no seat is taken is a
// no-op so that replays are harmless.
func (l *Ledger) ReleaseSeat(ctx context.Context, c Counter, eventID string) (Seats, Outcome, error) {
	seats, err := c.DecrementSeats(ctx, eventID)
	if err != nil {
		if errors.Is(err, apperr.ErrEventNotFound) {
			return Seats{}, NotFound, nil
		}
		return Seats{}, 0, fmt.Errorf("release seat: %w", err)
	}
	if err := l.check(eventID, "release", seats); err != nil {
		return seats, 0, err
	}
	return seats, Released, nil
}

// check rejects counters outside [0, capacity]. The value is reported, not
// clamped: a bad count means serialization is broken somewhere.
func (l *Ledger) check(eventID, op string, s Seats) error {
	if s.valid() {
		return nil
	}
	metrics.LedgerFault()
	l.log.Error("seat invariant violated",
		"event_id", eventID,
		"operation", op,
		"capacity", s.Capacity,
		"seats_taken", s.Taken,
	)
	return fmt.Errorf("%s seat for event %s: taken=%d capacity=%d: %w",
		op, eventID, s.Taken, s.Capacity, apperr.ErrInconsistent)
}
