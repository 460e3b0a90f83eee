package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tripweave/tripweave/planner"
)

// Memory is an in-memory store for tests and dev mode. It implements
// UserStore, ItineraryStore, and planner.CallRecorder. All values are
// copied on the way in and out, so callers never share memory with the
// store.
type Memory struct {
	mu          sync.RWMutex
	users       map[string]*User  // keyed by id
	emails      map[string]string // normalized email -> id
	itineraries map[string]memItinerary
	calls       []planner.CallRecord
	nextSeq     uint64
}

// memItinerary carries an insertion sequence so listing stays newest-first
// even when creation timestamps collide.
type memItinerary struct {
	rec *Itinerary
	seq uint64
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		users:       make(map[string]*User),
		emails:      make(map[string]string),
		itineraries: make(map[string]memItinerary),
	}
}

// CreateUser inserts a new account, filling ID and CreatedAt.
func (m *Memory) CreateUser(_ context.Context, u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	email := normalizeEmail(u.Email)
	if _, taken := m.emails[email]; taken {
		return ErrEmailTaken
	}
	u.ID = uuid.New().String()
	u.Email = email
	u.CreatedAt = time.Now().UTC()

	cp := *u
	m.users[u.ID] = &cp
	m.emails[email] = u.ID
	return nil
}

// GetUser retrieves a user by id.
func (m *Memory) GetUser(_ context.Context, id string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

// GetUserByEmail retrieves a user by normalized email.
func (m *Memory) GetUserByEmail(_ context.Context, email string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.emails[normalizeEmail(email)]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *m.users[id]
	return &cp, nil
}

// CreateItinerary inserts a generation result, filling ID and CreatedAt.
func (m *Memory) CreateItinerary(_ context.Context, it *Itinerary) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	it.ID = uuid.New().String()
	it.CreatedAt = time.Now().UTC()

	cp := *it
	cp.Payload = it.Payload.Clone()
	m.nextSeq++
	m.itineraries[it.ID] = memItinerary{rec: &cp, seq: m.nextSeq}
	return nil
}

// GetItinerary retrieves one itinerary owned by userID.
func (m *Memory) GetItinerary(_ context.Context, userID, id string) (*Itinerary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.itineraries[id]
	if !ok || e.rec.UserID != userID {
		return nil, ErrNotFound
	}
	return copyItinerary(e.rec), nil
}

// ListItineraries returns one page of the user's itineraries, newest first,
// plus the total count.
func (m *Memory) ListItineraries(_ context.Context, userID string, limit, offset int) ([]*Itinerary, int, error) {
	limit, offset = clampPage(limit, offset)

	m.mu.RLock()
	defer m.mu.RUnlock()

	entries := make([]memItinerary, 0, len(m.itineraries))
	for _, e := range m.itineraries {
		if e.rec.UserID == userID {
			entries = append(entries, e)
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq > entries[j].seq })

	total := len(entries)
	if offset >= total {
		return []*Itinerary{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	items := make([]*Itinerary, 0, end-offset)
	for _, e := range entries[offset:end] {
		items = append(items, copyItinerary(e.rec))
	}
	return items, total, nil
}

// DeleteItinerary removes one itinerary owned by userID.
func (m *Memory) DeleteItinerary(_ context.Context, userID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.itineraries[id]
	if !ok || e.rec.UserID != userID {
		return ErrNotFound
	}
	delete(m.itineraries, id)
	return nil
}

// RecordCall appends one generation run to the in-memory call log.
func (m *Memory) RecordCall(_ context.Context, rec planner.CallRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, rec)
	return nil
}

// Calls returns a copy of all recorded generation calls.
func (m *Memory) Calls() []planner.CallRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]planner.CallRecord(nil), m.calls...)
}

func copyItinerary(it *Itinerary) *Itinerary {
	cp := *it
	cp.Payload = it.Payload.Clone()
	return &cp
}
