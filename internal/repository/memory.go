package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/Shivanand-hulikatti/event-seat-registration/internal/apperr"
	"github.com/Shivanand-hulikatti/event-seat-registration/internal/ledger"
	"github.com/Shivanand-hulikatti/event-seat-registration/internal/model"
)

type pairKey struct {
	userID  string
	eventID string
}

// MemoryStore implements EventStore and RegistrationStore in process memory.
//
// InEventTx holds a mutex per event for the whole callback and stages every
// write on a private copy, which is published under the store lock only if
// the callback succeeds and ctx is still live. Transactions on different
// events only contend on that short publish step.
type MemoryStore struct {
	mu     sync.RWMutex
	events map[string]model.Event
	regs   map[pairKey]model.Registration

	locks sync.Map // event id -> *sync.Mutex
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		events: make(map[string]model.Event),
		regs:   make(map[pairKey]model.Registration),
	}
}

var (
	_ EventStore        = (*MemoryStore)(nil)
	_ RegistrationStore = (*MemoryStore)(nil)
)

func (s *MemoryStore) Create(ctx context.Context, event *model.Event) error {
	if err := event.CheckSeats(); err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[event.ID]; ok {
		return fmt.Errorf("insert event: duplicate id %s", event.ID)
	}
	s.events[event.ID] = *event
	return nil
}

func (s *MemoryStore) List(ctx context.Context) ([]model.Event, error) {
	s.mu.RLock()
	events := make([]model.Event, 0, len(s.events))
	for _, e := range s.events {
		events = append(events, e)
	}
	s.mu.RUnlock()

	sort.Slice(events, func(i, j int) bool {
		if !events[i].StartTime.Equal(events[j].StartTime) {
			return events[i].StartTime.Before(events[j].StartTime)
		}
		return events[i].ID < events[j].ID
	})
	return events, nil
}

func (s *MemoryStore) GetByID(ctx context.Context, id string) (*model.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.events[id]
	if !ok {
		return nil, apperr.ErrEventNotFound
	}
	return &e, nil
}

func (s *MemoryStore) Find(ctx context.Context, userID, eventID string) (*model.Registration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	reg, ok := s.regs[pairKey{userID, eventID}]
	if !ok {
		return nil, apperr.ErrNotRegistered
	}
	return &reg, nil
}

func (s *MemoryStore) ListByUser(ctx context.Context, userID string, state model.RegistrationState) ([]model.UserRegistration, error) {
	s.mu.RLock()
	var out []model.UserRegistration
	for k, reg := range s.regs {
		if k.userID != userID || reg.State != state {
			continue
		}
		ev, ok := s.events[k.eventID]
		if !ok {
			continue
		}
		out = append(out, model.UserRegistration{Registration: reg, Event: ev})
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].Registration.RegisteredAt.After(out[j].Registration.RegisteredAt)
	})
	return out, nil
}

func (s *MemoryStore) CountByUser(ctx context.Context, userID string, state model.RegistrationState) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for k, reg := range s.regs {
		if k.userID == userID && reg.State == state {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) ListByEvent(ctx context.Context, eventID string) ([]model.Registration, error) {
	s.mu.RLock()
	var regs []model.Registration
	for k, reg := range s.regs {
		if k.eventID == eventID {
			regs = append(regs, reg)
		}
	}
	s.mu.RUnlock()

	sort.Slice(regs, func(i, j int) bool {
		return regs[i].CreatedAt.Before(regs[j].CreatedAt)
	})
	return regs, nil
}

// eventLock returns the mutex for an existing event. Unknown events get no
// entry, so the lock map is bounded by the number of events.
func (s *MemoryStore) eventLock(eventID string) (*sync.Mutex, bool) {
	s.mu.RLock()
	_, ok := s.events[eventID]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	l, _ := s.locks.LoadOrStore(eventID, &sync.Mutex{})
	return l.(*sync.Mutex), true
}

func (s *MemoryStore) InEventTx(ctx context.Context, eventID string, fn TxFunc) error {
	lock, exists := s.eventLock(eventID)
	if exists {
		lock.Lock()
		defer lock.Unlock()
	}

	if err := ctx.Err(); err != nil {
		return apperr.Transient(fmt.Errorf("begin transaction: %w", err))
	}

	tx := &memoryTx{store: s, eventID: eventID, missing: !exists, staged: make(map[pairKey]model.Registration)}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	// A caller that gave up before commit leaves no trace.
	if err := ctx.Err(); err != nil {
		return apperr.Transient(fmt.Errorf("commit transaction: %w", err))
	}
	if !exists {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if tx.event != nil && tx.dirty {
		s.events[eventID] = *tx.event
	}
	for k, reg := range tx.staged {
		s.regs[k] = reg
	}
	return nil
}

// memoryTx stages writes for one event until InEventTx commits them.
type memoryTx struct {
	store   *MemoryStore
	eventID string
	// missing is set when the event did not exist at begin; the tx then
	// sees it as absent throughout and commits nothing.
	missing bool
	event   *model.Event
	dirty   bool
	staged  map[pairKey]model.Registration
}

var _ Tx = (*memoryTx)(nil)

func (t *memoryTx) load(eventID string) (*model.Event, error) {
	if eventID != t.eventID {
		return nil, fmt.Errorf("event %s is not locked by this transaction", eventID)
	}
	if t.missing {
		return nil, apperr.ErrEventNotFound
	}
	if t.event != nil {
		return t.event, nil
	}
	t.store.mu.RLock()
	e, ok := t.store.events[eventID]
	t.store.mu.RUnlock()
	if !ok {
		return nil, apperr.ErrEventNotFound
	}
	t.event = &e
	return t.event, nil
}

func (t *memoryTx) LockEvent(ctx context.Context) (*model.Event, error) {
	e, err := t.load(t.eventID)
	if err != nil {
		return nil, err
	}
	cp := *e
	return &cp, nil
}

func (t *memoryTx) IncrementSeats(ctx context.Context, eventID string) (ledger.Seats, bool, error) {
	e, err := t.load(eventID)
	if err != nil {
		return ledger.Seats{}, false, err
	}
	if e.SeatsTaken >= e.Capacity {
		return ledger.Seats{Capacity: e.Capacity, Taken: e.SeatsTaken}, false, nil
	}
	e.SeatsTaken++
	t.dirty = true
	return ledger.Seats{Capacity: e.Capacity, Taken: e.SeatsTaken}, true, nil
}

func (t *memoryTx) DecrementSeats(ctx context.Context, eventID string) (ledger.Seats, error) {
	e, err := t.load(eventID)
	if err != nil {
		return ledger.Seats{}, err
	}
	if e.SeatsTaken > 0 {
		e.SeatsTaken--
		t.dirty = true
	}
	return ledger.Seats{Capacity: e.Capacity, Taken: e.SeatsTaken}, nil
}

func (t *memoryTx) lookup(k pairKey) (model.Registration, bool) {
	if reg, ok := t.staged[k]; ok {
		return reg, true
	}
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	reg, ok := t.store.regs[k]
	return reg, ok
}

func (t *memoryTx) FindRegistration(ctx context.Context, userID string) (*model.Registration, error) {
	reg, ok := t.lookup(pairKey{userID, t.eventID})
	if !ok {
		return nil, apperr.ErrNotRegistered
	}
	return &reg, nil
}

func (t *memoryTx) InsertRegistration(ctx context.Context, reg *model.Registration) error {
	if reg.EventID != t.eventID {
		return fmt.Errorf("insert registration: event %s is not locked by this transaction", reg.EventID)
	}
	if t.missing {
		return apperr.ErrEventNotFound
	}
	if !reg.State.Valid() {
		return fmt.Errorf("insert registration: unknown state %q", reg.State)
	}
	k := pairKey{reg.UserID, reg.EventID}
	if _, ok := t.lookup(k); ok {
		return apperr.ErrAlreadyRegistered
	}
	t.staged[k] = *reg
	return nil
}

func (t *memoryTx) UpdateRegistration(ctx context.Context, reg *model.Registration) error {
	if !reg.State.Valid() {
		return fmt.Errorf("update registration: unknown state %q", reg.State)
	}
	k := pairKey{reg.UserID, reg.EventID}
	cur, ok := t.lookup(k)
	if !ok || cur.ID != reg.ID {
		return apperr.ErrNotRegistered
	}
	t.staged[k] = *reg
	return nil
}
