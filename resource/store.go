package resource

import (
	"sync"
	"time"

	"github.com/lithammer/shortuuid/v4"
)

// Slot identifies which of the two live buffers a handle occupies.
type Slot string

const (
	SlotInput  Slot = "input"
	SlotOutput Slot = "output"
)

// Handle is a temporary reference to an in-memory byte buffer, addressable
// by an unguessable token until it is revoked.
type Handle struct {
	Token     string
	Slot      Slot
	Name      string
	MIME      string
	Data      []byte
	CreatedAt time.Time
}

// Store tracks at most one live handle per slot. Publishing into an occupied
// slot revokes the previous handle first, so repeated selections and attempts
// never accumulate live buffers.
type Store struct {
	mu      sync.Mutex
	bySlot  map[Slot]*Handle
	byToken map[string]*Handle
}

func NewStore() *Store {
	return &Store{
		bySlot:  make(map[Slot]*Handle),
		byToken: make(map[string]*Handle),
	}
}

// Publish creates a new handle for slot, revoking any handle it supersedes.
func (s *Store) Publish(slot Slot, name, mime string, data []byte) *Handle {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.bySlot[slot]; ok {
		delete(s.byToken, prev.Token)
		delete(s.bySlot, slot)
	}

	h := &Handle{
		Token:     shortuuid.New(),
		Slot:      slot,
		Name:      name,
		MIME:      mime,
		Data:      data,
		CreatedAt: time.Now(),
	}
	s.bySlot[slot] = h
	s.byToken[h.Token] = h
	return h
}

// Get resolves a live handle by token.
func (s *Store) Get(token string) (*Handle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.byToken[token]
	return h, ok
}

// Current returns the live handle for a slot, if any.
func (s *Store) Current(slot Slot) (*Handle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.bySlot[slot]
	return h, ok
}

// Revoke drops the handle occupying slot. Returns false if the slot was empty.
func (s *Store) Revoke(slot Slot) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.bySlot[slot]
	if !ok {
		return false
	}
	delete(s.byToken, h.Token)
	delete(s.bySlot, slot)
	return true
}

// RevokeAll clears every tracked handle.
func (s *Store) RevokeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bySlot = make(map[Slot]*Handle)
	s.byToken = make(map[string]*Handle)
}

// Live reports how many handles are currently tracked.
func (s *Store) Live() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byToken)
}
