package bot

import (
	"sync"
	"time"
)

type ackKey struct {
	chatID    int64
	messageID int
}

type ackEntry struct {
	users   map[int64]struct{}
	expires time.Time
}

// AckStore remembers which users acknowledged a broadcast message. Entries
// expire ttl after the first acknowledgement.
type AckStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[ackKey]*ackEntry
	now     func() time.Time
}

func NewAckStore(ttl time.Duration) *AckStore {
	return &AckStore{ttl: ttl, entries: map[ackKey]*ackEntry{}, now: time.Now}
}

// Mark records userID for the message and reports whether this is the
// user's first acknowledgement.
func (s *AckStore) Mark(chatID int64, messageID int, userID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.sweep(now)

	key := ackKey{chatID: chatID, messageID: messageID}
	e, ok := s.entries[key]
	if !ok {
		e = &ackEntry{users: map[int64]struct{}{}, expires: now.Add(s.ttl)}
		s.entries[key] = e
	}
	if _, seen := e.users[userID]; seen {
		return false
	}
	e.users[userID] = struct{}{}
	return true
}

func (s *AckStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// sweep must be called with mu held.
func (s *AckStore) sweep(now time.Time) {
	for k, e := range s.entries {
		if !now.Before(e.expires) {
			delete(s.entries, k)
		}
	}
}
