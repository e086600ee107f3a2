package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/Shivanand-hulikatti/event-seat-registration/internal/apperr"
	"github.com/Shivanand-hulikatti/event-seat-registration/internal/ledger"
	"github.com/Shivanand-hulikatti/event-seat-registration/internal/metrics"
	"github.com/Shivanand-hulikatti/event-seat-registration/internal/model"
	"github.com/Shivanand-hulikatti/event-seat-registration/internal/notify"
	"github.com/Shivanand-hulikatti/event-seat-registration/internal/repository"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Notifier receives committed transitions.
type Notifier interface {
	Publish(ctx context.Context, c notify.Change) error
}

// RegistrationService is the registration state machine. It is the only
// caller of the capacity ledger.
type RegistrationService struct {
	registrations repository.RegistrationStore
	ledger        *ledger.Ledger
	notifier      Notifier
	log           *slog.Logger
	now           func() time.Time
}

// NewRegistrationService constructs a RegistrationService. notifier may be nil.
func NewRegistrationService(
	registrations repository.RegistrationStore,
	l *ledger.Ledger,
	notifier Notifier,
	logger *slog.Logger,
) *RegistrationService {
	if logger == nil {
		logger = slog.Default()
	}
	return &RegistrationService{
		registrations: registrations,
		ledger:        l,
		notifier:      notifier,
		log:           logger.With("component", "registration"),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// Register reserves a seat for userID at eventID.
//
// The event lookup, the record lookup, the seat reservation and the record
// write all run in one event-scoped transaction, so concurrent calls for the
// same pair or the last seat are serialised. Business failures are reported
// through Result.Outcome with a nil error; the error is reserved for invalid
// input and storage faults.
func (s *RegistrationService) Register(ctx context.Context, userID, eventID string) (Result, error) {
	userID, eventID, err := validatePair(userID, eventID)
	if err != nil {
		return Result{}, err
	}

	start := time.Now()
	var res Result
	err = s.registrations.InEventTx(ctx, eventID, func(ctx context.Context, tx repository.Tx) error {
		res = Result{}
		event, err := tx.LockEvent(ctx)
		if err != nil {
			if errors.Is(err, apperr.ErrEventNotFound) {
				res.Outcome = OutcomeEventNotFound
				return nil
			}
			return err
		}
		if err := event.CheckSeats(); err != nil {
			return s.inconsistent(event, err)
		}
		res.AvailableSeats = event.AvailableSeats()

		now := s.now()
		if event.HasStarted(now) {
			res.Outcome = OutcomeEventInPast
			return nil
		}

		reg, err := tx.FindRegistration(ctx, userID)
		switch {
		case errors.Is(err, apperr.ErrNotRegistered):
			reg = nil
		case err != nil:
			return err
		case reg.State != model.StateCancelled:
			// registered, or attended which is terminal.
			res.Outcome = OutcomeAlreadyRegistered
			return nil
		}

		seats, out, err := s.ledger.TryReserveSeat(ctx, tx, eventID)
		if err != nil {
			return err
		}
		switch out {
		case ledger.Full:
			res.Outcome = OutcomeEventFull
			res.AvailableSeats = seats.Available()
			return nil
		case ledger.NotFound:
			res.Outcome = OutcomeEventNotFound
			res.AvailableSeats = 0
			return nil
		}

		if reg == nil {
			reg = &model.Registration{
				ID:           uuid.NewString(),
				UserID:       userID,
				EventID:      eventID,
				State:        model.StateRegistered,
				RegisteredAt: now,
				CreatedAt:    now,
				UpdatedAt:    now,
			}
			if err := tx.InsertRegistration(ctx, reg); err != nil {
				// A conflicting insert rolls the seat back with the tx.
				return err
			}
		} else {
			reg.Reactivate(now)
			if err := tx.UpdateRegistration(ctx, reg); err != nil {
				return err
			}
		}

		res.Outcome = OutcomeCreated
		res.Registration = reg
		res.AvailableSeats = seats.Available()
		return nil
	})
	if errors.Is(err, apperr.ErrAlreadyRegistered) {
		// The reserved seat rolled back with the tx; the count read under
		// the lock is still the current one.
		res, err = Result{Outcome: OutcomeAlreadyRegistered, AvailableSeats: res.AvailableSeats}, nil
	}

	return s.finish(ctx, "register", eventID, start, res, err)
}

// Cancel releases userID's seat at eventID.
//
// The state change and the seat release commit in the same transaction:
// either both are visible or neither is, so seats cannot leak or be
// released twice.
func (s *RegistrationService) Cancel(ctx context.Context, userID, eventID string) (Result, error) {
	userID, eventID, err := validatePair(userID, eventID)
	if err != nil {
		return Result{}, err
	}

	start := time.Now()
	var res Result
	err = s.registrations.InEventTx(ctx, eventID, func(ctx context.Context, tx repository.Tx) error {
		res = Result{}
		event, err := tx.LockEvent(ctx)
		if err != nil {
			if errors.Is(err, apperr.ErrEventNotFound) {
				res.Outcome = OutcomeNotRegistered
				return nil
			}
			return err
		}
		if err := event.CheckSeats(); err != nil {
			return s.inconsistent(event, err)
		}
		res.AvailableSeats = event.AvailableSeats()

		reg, err := tx.FindRegistration(ctx, userID)
		if err != nil {
			if errors.Is(err, apperr.ErrNotRegistered) {
				res.Outcome = OutcomeNotRegistered
				return nil
			}
			return err
		}
		if reg.State != model.StateRegistered {
			res.Outcome = OutcomeNotRegistered
			return nil
		}

		reg.Cancel(s.now())
		if err := tx.UpdateRegistration(ctx, reg); err != nil {
			return err
		}

		seats, out, err := s.ledger.ReleaseSeat(ctx, tx, eventID)
		if err != nil {
			return err
		}
		if out == ledger.NotFound {
			// The row is locked by this transaction; it cannot vanish.
			return fmt.Errorf("release seat for event %s: %w", eventID, apperr.ErrEventNotFound)
		}

		res.Outcome = OutcomeCancelled
		res.Registration = reg
		res.AvailableSeats = seats.Available()
		return nil
	})

	return s.finish(ctx, "cancel", eventID, start, res, err)
}

// finish records metrics and emits notifications after the transaction has
// resolved. Nothing here can change the outcome.
func (s *RegistrationService) finish(ctx context.Context, op, eventID string, start time.Time, res Result, err error) (Result, error) {
	if err != nil {
		label := "error"
		if apperr.IsTransient(err) {
			label = "transient"
		}
		metrics.ObserveOperation(op, label, time.Since(start))
		if apperr.IsTransient(err) {
			s.log.Warn(op+" failed, retryable", "event_id", eventID, "error", err)
		} else {
			s.log.Error(op+" failed", "event_id", eventID, "error", err)
		}
		return Result{}, fmt.Errorf("%s: %w", op, err)
	}

	metrics.ObserveOperation(op, res.Outcome.String(), time.Since(start))
	if !res.Outcome.OK() {
		return res, nil
	}

	metrics.SetSeatsAvailable(eventID, res.AvailableSeats)
	s.log.Info(op+" committed",
		"event_id", eventID,
		"user_id", res.Registration.UserID,
		"registration_id", res.Registration.ID,
		"available_seats", res.AvailableSeats,
	)
	if s.notifier != nil {
		change := notify.Change{
			RegistrationID: res.Registration.ID,
			UserID:         res.Registration.UserID,
			EventID:        eventID,
			State:          string(res.Registration.State),
			AvailableSeats: res.AvailableSeats,
			OccurredAt:     res.Registration.UpdatedAt,
		}
		if err := s.notifier.Publish(context.WithoutCancel(ctx), change); err != nil {
			s.log.Warn("publish registration change", "event_id", eventID, "error", err)
		}
	}
	return res, nil
}

func (s *RegistrationService) inconsistent(event *model.Event, cause error) error {
	metrics.LedgerFault()
	s.log.Error("seat invariant violated on read",
		"event_id", event.ID,
		"capacity", event.Capacity,
		"seats_taken", event.SeatsTaken,
	)
	return fmt.Errorf("%w: %w", apperr.ErrInconsistent, cause)
}

// Dashboard returns the user's registered events split into upcoming and
// past, with aggregate counts. Pure read.
func (s *RegistrationService) Dashboard(ctx context.Context, userID string) (*model.Dashboard, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, apperr.Invalid("user id is required")
	}

	var (
		registered []model.UserRegistration
		cancelled  int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		registered, err = s.registrations.ListByUser(gctx, userID, model.StateRegistered)
		return err
	})
	g.Go(func() error {
		var err error
		cancelled, err = s.registrations.CountByUser(gctx, userID, model.StateCancelled)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("dashboard: %w", err)
	}

	now := s.now()
	d := &model.Dashboard{
		Upcoming: []model.DashboardEntry{},
		Past:     []model.DashboardEntry{},
	}
	for _, ur := range registered {
		entry := model.DashboardEntry{
			EventView: model.EventView{
				Event:          ur.Event,
				AvailableSeats: ur.Event.AvailableSeats(),
				IsRegistered:   true,
			},
			RegistrationID: ur.Registration.ID,
			RegisteredAt:   ur.Registration.RegisteredAt,
		}
		if ur.Event.StartTime.Before(now) {
			d.Past = append(d.Past, entry)
		} else {
			d.Upcoming = append(d.Upcoming, entry)
		}
	}
	sort.SliceStable(d.Upcoming, func(i, j int) bool {
		return d.Upcoming[i].StartTime.Before(d.Upcoming[j].StartTime)
	})
	sort.SliceStable(d.Past, func(i, j int) bool {
		return d.Past[i].StartTime.After(d.Past[j].StartTime)
	})

	d.Stats = model.DashboardStats{
		TotalRegistered: len(registered),
		UpcomingCount:   len(d.Upcoming),
		PastCount:       len(d.Past),
		TotalCancelled:  cancelled,
	}
	return d, nil
}

func validatePair(userID, eventID string) (string, string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", "", apperr.Invalid("user id is required")
	}
	eventID, err := normalizeEventID(eventID)
	if err != nil {
		return "", "", err
	}
	return userID, eventID, nil
}

// normalizeEventID accepts any UUID spelling and returns the canonical form.
func normalizeEventID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", apperr.Invalid("event id is required")
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return "", apperr.Invalid("invalid event id")
	}
	return parsed.String(), nil
}
