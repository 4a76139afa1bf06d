package app

import (
	"sync"

	"github.com/aulalive/signaling/internal/core"
	"github.com/aulalive/signaling/internal/domain"
)

// SessionState is the lifecycle state of a connection.
type SessionState int

const (
	// StateConnecting is the initial state: no room or identity yet.
	StateConnecting SessionState = iota
	// StateJoined means the session is registered in a room.
	StateJoined
	// StateClosed is terminal.
	StateClosed
)

// Session is the per-connection state: identity, room, role and the
// liveness flag. It holds a non-owning reference to the transport used
// only to request sends. All mutation goes through transition methods.
type Session struct {
	ID core.SessionID

	mu    sync.Mutex
	state SessionState
	user  domain.Participant
	room  domain.RoomID
	alive bool
	conn  core.SignalConn
}

// NewSession returns a session in the Connecting state. A fresh
// connection counts as alive until the first probe goes unanswered.
func NewSession(id core.SessionID, conn core.SignalConn) *Session {
	return &Session{ID: id, conn: conn, alive: true}
}

func (s *Session) Conn() core.SignalConn { return s.conn }

func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// User returns the joined identity; the zero Participant before join.
func (s *Session) User() domain.Participant {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

// Room returns the bound room id, false until a join was processed.
func (s *Session) Room() (domain.RoomID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.room, s.state == StateJoined
}

// Join moves the session to Joined with the given room and identity.
// Returns false if the session is already closed.
func (s *Session) Join(room domain.RoomID, user domain.Participant) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return false
	}
	s.state = StateJoined
	s.room = room
	s.user = user
	return true
}

// Close moves the session to Closed and reports the membership it held
// so the caller can run the registry cleanup. The second return is
// false when the session was never joined, the third when it was
// already closed (Close is idempotent).
func (s *Session) Close() (domain.RoomID, domain.Participant, bool, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return "", domain.Participant{}, false, false
	}
	wasJoined := s.state == StateJoined
	s.state = StateClosed
	return s.room, s.user, wasJoined, true
}

// MarkAlive records a heartbeat reply.
func (s *Session) MarkAlive() {
	s.mu.Lock()
	s.alive = true
	s.mu.Unlock()
}

// Expire clears the liveness flag and reports whether it was set.
func (s *Session) Expire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	alive := s.alive
	s.alive = false
	return alive
}
