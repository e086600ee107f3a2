// Package repository implements persistence for events and registrations.
// The PostgreSQL backend uses pgx directly (no ORM); the in-memory backend
// serves tests and single-process deployments.
package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Shivanand-hulikatti/event-seat-registration/internal/apperr"
	"github.com/Shivanand-hulikatti/event-seat-registration/internal/ledger"
	"github.com/Shivanand-hulikatti/event-seat-registration/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// EventStore reads and creates events. Seat counts are only written through
// a Tx.
type EventStore interface {
	Create(ctx context.Context, event *model.Event) error
	List(ctx context.Context) ([]model.Event, error)
	GetByID(ctx context.Context, id string) (*model.Event, error)
}

// RegistrationStore owns registration records and the transaction boundary
// that ties them to the seat counter.
type RegistrationStore interface {
	// InEventTx runs fn in a transaction scoped to one event. All writes made
	// through tx commit together when fn returns nil and are discarded
	// otherwise, including when ctx is cancelled before commit.
	InEventTx(ctx context.Context, eventID string, fn TxFunc) error
	Find(ctx context.Context, userID, eventID string) (*model.Registration, error)
	ListByUser(ctx context.Context, userID string, state model.RegistrationState) ([]model.UserRegistration, error)
	CountByUser(ctx context.Context, userID string, state model.RegistrationState) (int, error)
	ListByEvent(ctx context.Context, eventID string) ([]model.Registration, error)
}

// TxFunc is the body of an event-scoped transaction.
type TxFunc func(ctx context.Context, tx Tx) error

// Tx exposes the writes allowed inside an event-scoped transaction. The seat
// counter and the registration records of the event are the only shared
// mutable state, and they are mutated nowhere else.
type Tx interface {
	ledger.Counter
	// LockEvent loads the event and holds it exclusively until the
	// transaction ends. Returns apperr.ErrEventNotFound.
	LockEvent(ctx context.Context) (*model.Event, error)
	// FindRegistration returns the user's record for the locked event or
	// apperr.ErrNotRegistered.
	FindRegistration(ctx context.Context, userID string) (*model.Registration, error)
	// InsertRegistration returns apperr.ErrAlreadyRegistered if a record for
	// the pair already exists.
	InsertRegistration(ctx context.Context, reg *model.Registration) error
	UpdateRegistration(ctx context.Context, reg *model.Registration) error
}

// classify marks retryable PostgreSQL failures as transient.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", // serialization_failure
			"40P01", // deadlock_detected
			"55P03", // lock_not_available
			"57014": // query_canceled (statement or lock timeout)
			return apperr.Transient(err)
		}
		if strings.HasPrefix(pgErr.Code, "08") { // connection exception
			return apperr.Transient(err)
		}
		return err
	}
	// An abandoned request is retryable, the same as on the memory store.
	if pgconn.Timeout(err) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return apperr.Transient(err)
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

const eventColumns = `id, name, description, capacity, seats_taken, start_time, created_at, updated_at`

func scanEvent(row pgx.Row) (*model.Event, error) {
	var e model.Event
	if err := row.Scan(&e.ID, &e.Name, &e.Description, &e.Capacity, &e.SeatsTaken,
		&e.StartTime, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	return &e, nil
}

// EventRepository handles persistence for events.
type EventRepository struct {
	db *pgxpool.Pool
}

// NewEventRepository constructs an EventRepository.
func NewEventRepository(db *pgxpool.Pool) *EventRepository {
	return &EventRepository{db: db}
}

// Create inserts a new event. The caller assigns the id and timestamps.
func (r *EventRepository) Create(ctx context.Context, event *model.Event) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO events (`+eventColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		event.ID, event.Name, event.Description, event.Capacity, event.SeatsTaken,
		event.StartTime, event.CreatedAt, event.UpdatedAt,
	)
	if err != nil {
		return classify(fmt.Errorf("insert event: %w", err))
	}
	return nil
}

// List returns all events ordered by start time.
func (r *EventRepository) List(ctx context.Context) ([]model.Event, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+eventColumns+`
		 FROM events
		 ORDER BY start_time ASC, id ASC`,
	)
	if err != nil {
		return nil, classify(fmt.Errorf("list events: %w", err))
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, *e)
	}
	return events, classify(rows.Err())
}

// GetByID returns a single event or apperr.ErrEventNotFound.
func (r *EventRepository) GetByID(ctx context.Context, id string) (*model.Event, error) {
	e, err := scanEvent(r.db.QueryRow(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.ErrEventNotFound
		}
		return nil, classify(fmt.Errorf("get event: %w", err))
	}
	return e, nil
}
