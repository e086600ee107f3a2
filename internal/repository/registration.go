package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Shivanand-hulikatti/event-seat-registration/internal/apperr"
	"github.com/Shivanand-hulikatti/event-seat-registration/internal/ledger"
	"github.com/Shivanand-hulikatti/event-seat-registration/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RegistrationRepository handles persistence for registrations and owns the
// event-scoped transaction boundary.
type RegistrationRepository struct {
	db          *pgxpool.Pool
	lockTimeout time.Duration
}

// NewRegistrationRepository constructs a RegistrationRepository. A positive
// lockTimeout bounds how long a transaction waits for the event row lock;
// exceeding it surfaces as a transient error.
func NewRegistrationRepository(db *pgxpool.Pool, lockTimeout time.Duration) *RegistrationRepository {
	return &RegistrationRepository{db: db, lockTimeout: lockTimeout}
}

// InEventTx runs fn inside a single PostgreSQL transaction.
//
// Concurrency model: LockEvent takes SELECT … FOR UPDATE on the event row, so
// every register/cancel for the same event is serialised behind it while
// other events proceed in parallel. The seat increment is additionally a
// conditional UPDATE (seats_taken < capacity), the unique (user_id, event_id)
// key backs the one-record-per-pair rule, and a CHECK constraint on the
// table rejects any count outside [0, capacity]. The registration write and
// the counter write share this transaction, so a cancel can never leave a
// seat leaked or released twice.
func (r *RegistrationRepository) InEventTx(ctx context.Context, eventID string, fn TxFunc) (err error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return classify(fmt.Errorf("begin transaction: %w", err))
	}
	// Ensure the transaction is always resolved, even if ctx was cancelled.
	defer func() {
		if err != nil {
			_ = tx.Rollback(context.WithoutCancel(ctx))
		}
	}()

	if r.lockTimeout > 0 {
		// SET does not accept bind parameters.
		if _, err = tx.Exec(ctx, fmt.Sprintf("SET LOCAL lock_timeout = %d", r.lockTimeout.Milliseconds())); err != nil {
			return classify(fmt.Errorf("set lock timeout: %w", err))
		}
	}

	if err = fn(ctx, &pgTx{tx: tx, eventID: eventID}); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return classify(fmt.Errorf("commit transaction: %w", err))
	}
	return nil
}

// Find returns the record for a pair or apperr.ErrNotRegistered.
func (r *RegistrationRepository) Find(ctx context.Context, userID, eventID string) (*model.Registration, error) {
	reg, err := scanRegistration(r.db.QueryRow(ctx,
		`SELECT `+registrationColumns+`
		 FROM registrations WHERE user_id = $1 AND event_id = $2`,
		userID, eventID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.ErrNotRegistered
		}
		return nil, classify(fmt.Errorf("find registration: %w", err))
	}
	return reg, nil
}

// ListByUser returns the user's records in the given state joined with their
// events, most recently registered first.
func (r *RegistrationRepository) ListByUser(ctx context.Context, userID string, state model.RegistrationState) ([]model.UserRegistration, error) {
	rows, err := r.db.Query(ctx,
		`SELECT r.id, r.user_id, r.event_id, r.state, r.registered_at, r.cancelled_at, r.created_at, r.updated_at,
		        e.id, e.name, e.description, e.capacity, e.seats_taken, e.start_time, e.created_at, e.updated_at
		 FROM registrations r
		 JOIN events e ON e.id = r.event_id
		 WHERE r.user_id = $1 AND r.state = $2
		 ORDER BY r.registered_at DESC`,
		userID, state,
	)
	if err != nil {
		return nil, classify(fmt.Errorf("list user registrations: %w", err))
	}
	defer rows.Close()

	var out []model.UserRegistration
	for rows.Next() {
		var ur model.UserRegistration
		reg, ev := &ur.Registration, &ur.Event
		if err := rows.Scan(
			&reg.ID, &reg.UserID, &reg.EventID, &reg.State, &reg.RegisteredAt, &reg.CancelledAt, &reg.CreatedAt, &reg.UpdatedAt,
			&ev.ID, &ev.Name, &ev.Description, &ev.Capacity, &ev.SeatsTaken, &ev.StartTime, &ev.CreatedAt, &ev.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan user registration: %w", err)
		}
		out = append(out, ur)
	}
	return out, classify(rows.Err())
}

// CountByUser counts the user's records in the given state.
func (r *RegistrationRepository) CountByUser(ctx context.Context, userID string, state model.RegistrationState) (int, error) {
	var n int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM registrations WHERE user_id = $1 AND state = $2`,
		userID, state,
	).Scan(&n)
	if err != nil {
		return 0, classify(fmt.Errorf("count user registrations: %w", err))
	}
	return n, nil
}

// ListByEvent returns all records for an event, oldest first.
func (r *RegistrationRepository) ListByEvent(ctx context.Context, eventID string) ([]model.Registration, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+registrationColumns+`
		 FROM registrations
		 WHERE event_id = $1
		 ORDER BY created_at ASC`,
		eventID,
	)
	if err != nil {
		return nil, classify(fmt.Errorf("list registrations: %w", err))
	}
	defer rows.Close()

	var regs []model.Registration
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, fmt.Errorf("scan registration: %w", err)
		}
		regs = append(regs, *reg)
	}
	return regs, classify(rows.Err())
}

const registrationColumns = `id, user_id, event_id, state, registered_at, cancelled_at, created_at, updated_at`

func scanRegistration(row pgx.Row) (*model.Registration, error) {
	var reg model.Registration
	if err := row.Scan(&reg.ID, &reg.UserID, &reg.EventID, &reg.State,
		&reg.RegisteredAt, &reg.CancelledAt, &reg.CreatedAt, &reg.UpdatedAt); err != nil {
		return nil, err
	}
	if !reg.State.Valid() {
		return nil, fmt.Errorf("registration %s: %w: unknown state %q", reg.ID, apperr.ErrInconsistent, reg.State)
	}
	return &reg, nil
}

// pgTx is the Tx handed to InEventTx callbacks.
type pgTx struct {
	tx      pgx.Tx
	eventID string
}

var _ Tx = (*pgTx)(nil)

func (t *pgTx) LockEvent(ctx context.Context) (*model.Event, error) {
	e, err := scanEvent(t.tx.QueryRow(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = $1 FOR UPDATE`, t.eventID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.ErrEventNotFound
		}
		return nil, classify(fmt.Errorf("lock event row: %w", err))
	}
	return e, nil
}

// IncrementSeats checks and increments in one statement; no rows means the
// event is either full or missing, which a second read disambiguates.
func (t *pgTx) IncrementSeats(ctx context.Context, eventID string) (ledger.Seats, bool, error) {
	var s ledger.Seats
	err := t.tx.QueryRow(ctx,
		`UPDATE events
		 SET seats_taken = seats_taken + 1, updated_at = now()
		 WHERE id = $1 AND seats_taken < capacity
		 RETURNING capacity, seats_taken`,
		eventID,
	).Scan(&s.Capacity, &s.Taken)
	if err == nil {
		return s, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return s, false, classify(fmt.Errorf("increment seats_taken: %w", err))
	}

	err = t.tx.QueryRow(ctx,
		`SELECT capacity, seats_taken FROM events WHERE id = $1`, eventID,
	).Scan(&s.Capacity, &s.Taken)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return s, false, apperr.ErrEventNotFound
		}
		return s, false, classify(fmt.Errorf("read seats_taken: %w", err))
	}
	return s, false, nil
}

func (t *pgTx) DecrementSeats(ctx context.Context, eventID string) (ledger.Seats, error) {
	var s ledger.Seats
	err := t.tx.QueryRow(ctx,
		`UPDATE events
		 SET seats_taken = GREATEST(seats_taken - 1, 0), updated_at = now()
		 WHERE id = $1
		 RETURNING capacity, seats_taken`,
		eventID,
	).Scan(&s.Capacity, &s.Taken)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return s, apperr.ErrEventNotFound
		}
		return s, classify(fmt.Errorf("decrement seats_taken: %w", err))
	}
	return s, nil
}

func (t *pgTx) FindRegistration(ctx context.Context, userID string) (*model.Registration, error) {
	reg, err := scanRegistration(t.tx.QueryRow(ctx,
		`SELECT `+registrationColumns+`
		 FROM registrations WHERE user_id = $1 AND event_id = $2`,
		userID, t.eventID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.ErrNotRegistered
		}
		return nil, classify(fmt.Errorf("find registration: %w", err))
	}
	return reg, nil
}

func (t *pgTx) InsertRegistration(ctx context.Context, reg *model.Registration) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO registrations (`+registrationColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		reg.ID, reg.UserID, reg.EventID, reg.State, reg.RegisteredAt, reg.CancelledAt, reg.CreatedAt, reg.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperr.ErrAlreadyRegistered
		}
		return classify(fmt.Errorf("insert registration: %w", err))
	}
	return nil
}

func (t *pgTx) UpdateRegistration(ctx context.Context, reg *model.Registration) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE registrations
		 SET state = $2, registered_at = $3, cancelled_at = $4, updated_at = $5
		 WHERE id = $1`,
		reg.ID, reg.State, reg.RegisteredAt, reg.CancelledAt, reg.UpdatedAt,
	)
	if err != nil {
		return classify(fmt.Errorf("update registration: %w", err))
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotRegistered
	}
	return nil
}
