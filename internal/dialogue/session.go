// Package dialogue implements the per-subject conversation state
// machine behind the WhatsApp webhook.  Each inbound message advances
// the sender's session by exactly one stage; the terminal stage hands
// a completed draft request to the booking engine.  Sessions are
// process-lifetime only: losing one costs the user a few messages,
// never a reservation.
package dialogue

import (
	"sync"
	"time"

	"github.com/pickleplay/court-reservation/internal/model"
)

// Stage names one step of the booking conversation.
type Stage string

const (
	StageMenu             Stage = "menu"
	StageChooseDate       Stage = "choose_date"
	StageChoosePartySize  Stage = "choose_party_size"
	StageChooseSlot       Stage = "choose_slot"
	StageChooseCourt      Stage = "choose_court"
	StageConfirmSummary   Stage = "confirm_summary"
	StagePaymentPending   Stage = "payment_pending"
	StageAvailabilityDate Stage = "availability_date"
	StageAfterAvail       Stage = "after_availability"
)

// DateOption pairs a machine date with its menu label.
type DateOption struct {
	Value   string // YYYY-MM-DD
	Display string // e.g. "11 Mar"
}

// Draft accumulates the reservation request one stage at a time.
type Draft struct {
	Date      string
	PartySize int
	Slot      model.TimeSlot
	Court     model.Court
}

// Session is one subject's conversation state.  The option slices
// cache the menus last shown so a numeric reply can be resolved even
// when the catalog changes between turns.
type Session struct {
	Stage Stage
	Draft Draft

	DateOptions  []DateOption
	SlotOptions  []model.TimeSlot
	CourtOptions []model.Court

	// ReservationID is set once confirm_summary creates the draft and
	// payment_pending operates on it.
	ReservationID uint64

	LastSeen time.Time
}

// SessionStore maps subject handles to their live sessions.  It is an
// in-memory map with an idle timeout: a session untouched for longer
// than the TTL is treated as gone, so an abandoned conversation
// restarts from the menu instead of resuming mid-flow days later.
// The clock is injectable for tests.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
	ttl      time.Duration
	now      func() time.Time
}

// DefaultSessionTTL is how long an idle conversation survives.
const DefaultSessionTTL = 30 * time.Minute

// NewSessionStore builds a store.  A non-positive ttl falls back to
// DefaultSessionTTL; a nil clock falls back to time.Now.
func NewSessionStore(ttl time.Duration, now func() time.Time) *SessionStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	if now == nil {
		now = time.Now
	}
	return &SessionStore{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		now:      now,
	}
}

// Get returns the live session for a subject, refreshing its idle
// timer.  Expired sessions are discarded and reported as absent.
func (s *SessionStore) Get(subject string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[subject]
	if !ok {
		return nil, false
	}
	if s.now().Sub(sess.LastSeen) > s.ttl {
		delete(s.sessions, subject)
		return nil, false
	}
	sess.LastSeen = s.now()
	return sess, true
}

// Reset discards any existing session for the subject and returns a
// fresh one at the menu stage.
func (s *SessionStore) Reset(subject string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := &Session{Stage: StageMenu, LastSeen: s.now()}
	s.sessions[subject] = sess
	return sess
}

// Delete removes a subject's session, if any.
func (s *SessionStore) Delete(subject string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, subject)
}

// Purge drops every session idle past the TTL and returns how many
// were removed.  Get already hides expired sessions; Purge exists so a
// periodic pass can bound the map's memory.
func (s *SessionStore) Purge() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := s.now().Add(-s.ttl)
	n := 0
	for subject, sess := range s.sessions {
		if sess.LastSeen.Before(cutoff) {
			delete(s.sessions, subject)
			n++
		}
	}
	return n
}

// Len reports the number of live sessions, expired included until the
// next Purge.
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
