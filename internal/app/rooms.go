package app

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/aulalive/signaling/internal/domain"
)

// room holds the membership of one room in insertion order. Reusing a
// member id overwrites the session but keeps the original position.
type room struct {
	id      domain.RoomID
	members map[domain.UserID]*Session
	order   []domain.UserID
}

// MemberSnap is one member of a membership snapshot.
type MemberSnap struct {
	UserID  domain.UserID
	Session *Session
}

// RoomInfo is a read-only view for the statistics reporter.
type RoomInfo struct {
	ID          domain.RoomID
	MemberCount int
}

// RoomRegistry maps room ids to their member sessions. A room with
// zero members does not exist: it is deleted on the transition to
// empty. One lock guards the whole table so that notification fan-out
// observes a consistent snapshot relative to concurrent adds/removes.
type RoomRegistry struct {
	mu    sync.RWMutex
	rooms map[domain.RoomID]*room
}

func NewRoomRegistry() *RoomRegistry {
	return &RoomRegistry{rooms: make(map[domain.RoomID]*room)}
}

// getOrCreate must be called with the write lock held.
func (r *RoomRegistry) getOrCreate(id domain.RoomID) *room {
	if rm, ok := r.rooms[id]; ok {
		return rm
	}
	rm := &room{id: id, members: make(map[domain.UserID]*Session)}
	r.rooms[id] = rm
	log.Info().Str("module", "app.rooms").Str("room", string(id)).Msg("room created")
	return rm
}

// AddMember inserts the session, creating the room on first use.
// A reused id overwrites silently: last writer wins. A session that
// already closed is declined, so a join racing a concurrent close
// cannot strand a dead member in the room. Reports whether the
// insert happened.
func (r *RoomRegistry) AddMember(roomID domain.RoomID, userID domain.UserID, sess *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if sess.State() == StateClosed {
		log.Warn().Str("module", "app.rooms").Str("room", string(roomID)).
			Str("user", string(userID)).Msg("declined closed session")
		return false
	}
	rm := r.getOrCreate(roomID)
	if _, ok := rm.members[userID]; !ok {
		rm.order = append(rm.order, userID)
	}
	rm.members[userID] = sess
	log.Info().Str("module", "app.rooms").Str("room", string(roomID)).Str("user", string(userID)).Msg("member added")
	return true
}

// RemoveMember removes the member and deletes the room when it becomes
// empty. It is a no-op when the room or member is absent, or when the
// id has been overwritten by a different session since (so a replaced
// session's close cannot evict its replacement). Reports whether a
// removal happened.
func (r *RoomRegistry) RemoveMember(roomID domain.RoomID, userID domain.UserID, sess *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	rm, ok := r.rooms[roomID]
	if !ok {
		return false
	}
	cur, ok := rm.members[userID]
	if !ok || (sess != nil && cur != sess) {
		return false
	}
	delete(rm.members, userID)
	for i, id := range rm.order {
		if id == userID {
			rm.order = append(rm.order[:i], rm.order[i+1:]...)
			break
		}
	}
	log.Info().Str("module", "app.rooms").Str("room", string(roomID)).Str("user", string(userID)).Msg("member removed")
	if len(rm.members) == 0 {
		delete(r.rooms, roomID)
		log.Info().Str("module", "app.rooms").Str("room", string(roomID)).Msg("room empty, deleted")
	}
	return true
}

// Member looks up a single member session.
func (r *RoomRegistry) Member(roomID domain.RoomID, userID domain.UserID) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rm, ok := r.rooms[roomID]
	if !ok {
		return nil, false
	}
	sess, ok := rm.members[userID]
	return sess, ok
}

// MembersExcept returns a snapshot of the current members other than
// the given one, in insertion order.
func (r *RoomRegistry) MembersExcept(roomID domain.RoomID, userID domain.UserID) []MemberSnap {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rm, ok := r.rooms[roomID]
	if !ok {
		return nil
	}
	out := make([]MemberSnap, 0, len(rm.members))
	for _, id := range rm.order {
		if id == userID {
			continue
		}
		out = append(out, MemberSnap{UserID: id, Session: rm.members[id]})
	}
	return out
}

// Exists reports whether the room is currently in the registry.
func (r *RoomRegistry) Exists(roomID domain.RoomID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.rooms[roomID]
	return ok
}

// List returns per-room member counts.
func (r *RoomRegistry) List() []RoomInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]RoomInfo, 0, len(r.rooms))
	for id, rm := range r.rooms {
		out = append(out, RoomInfo{ID: id, MemberCount: len(rm.members)})
	}
	return out
}
