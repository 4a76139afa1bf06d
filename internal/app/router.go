package app

import (
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/aulalive/signaling/internal/core"
	"github.com/aulalive/signaling/internal/domain"
)

// Router interprets inbound messages and drives the room registry and
// session lifecycles. One message is processed at a time per sending
// session; the transport adapter guarantees that by calling
// HandleMessage from a single reader per connection.
type Router struct {
	Registry *Registry
	Rooms    *RoomRegistry
}

func NewRouter(registry *Registry, rooms *RoomRegistry) *Router {
	return &Router{Registry: registry, Rooms: rooms}
}

// HandleMessage dispatches one inbound frame. Unparsable JSON is
// logged and discarded; the connection stays open. Any unrecognized
// type carrying a target is a content-agnostic relay.
func (r *Router) HandleMessage(s *Session, data core.Frame) {
	var env struct {
		Type   string `json:"type"`
		Target string `json:"target"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		log.Error().Err(err).Str("module", "app.router").Str("sid", string(s.ID)).Msg("bad json")
		return
	}

	switch env.Type {
	case "join":
		r.handleJoin(s, data)
	case "mute_participant":
		r.handleMute(s, data)
	case "remove_participant":
		r.handleRemove(s, data)
	case "test_mode_changed":
		r.handleTestMode(s, data)
	case "leave":
		log.Info().Str("module", "app.router").Str("sid", string(s.ID)).Msg("leave requested")
		r.HandleClose(s)
	case "call_ended":
		r.handleCallEnded(s, data)
	default:
		if env.Target != "" {
			r.relay(s, domain.UserID(env.Target), env.Type, data)
			return
		}
		log.Warn().Str("module", "app.router").Str("type", env.Type).Msg("unknown signal")
	}
}

func (r *Router) handleJoin(s *Session, data core.Frame) {
	var p struct {
		RoomID    string `json:"roomId"`
		UserID    string `json:"userId"`
		IsTeacher bool   `json:"isTeacher"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "app.router").Msg("bad join payload")
		return
	}
	if p.RoomID == "" || p.UserID == "" {
		return
	}

	// A session belongs to at most one room: a re-join detaches from
	// the current room first, with the usual departure fan-out.
	if _, joined := s.Room(); joined {
		r.detach(s)
	}

	roomID := domain.RoomID(p.RoomID)
	user := domain.Participant{ID: domain.UserID(p.UserID), IsTeacher: p.IsTeacher}
	if !s.Join(roomID, user) {
		return
	}
	if !r.Rooms.AddMember(roomID, user.ID, s) {
		// A concurrent close won the race; nothing to announce.
		return
	}

	peers := r.Rooms.MembersExcept(roomID, user.ID)
	users := make([]domain.UserID, 0, len(peers))
	for _, peer := range peers {
		users = append(users, peer.UserID)
	}

	r.sendJSON(s, struct {
		Type  string          `json:"type"`
		Users []domain.UserID `json:"users"`
	}{"room_users", users})

	for _, peer := range peers {
		r.sendJSON(peer.Session, struct {
			Type   string        `json:"type"`
			UserID domain.UserID `json:"userId"`
		}{"user_joined", user.ID})
	}

	log.Info().Str("module", "app.router").Str("room", p.RoomID).Str("user", p.UserID).
		Bool("teacher", p.IsTeacher).Msg("joined room")
}

// relay forwards the frame verbatim to the target member of the
// sender's room, with a sender field stamped in. The router never
// inspects the payload beyond type and target.
func (r *Router) relay(s *Session, target domain.UserID, msgType string, data core.Frame) {
	roomID, joined := s.Room()
	if !joined {
		r.sendTargetNotFound(s, target)
		return
	}
	peer, ok := r.Rooms.Member(roomID, target)
	if !ok {
		r.sendTargetNotFound(s, target)
		return
	}

	var msg map[string]any
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Error().Err(err).Str("module", "app.router").Msg("bad relay payload")
		return
	}
	msg["sender"] = s.User().ID
	b, err := json.Marshal(msg)
	if err != nil {
		log.Error().Err(err).Str("module", "app.router").Msg("relay marshal")
		return
	}

	log.Debug().Str("module", "app.router").Str("type", msgType).
		Str("from", string(s.User().ID)).Str("to", string(target)).Msg("relaying")
	if err := peer.Conn().TrySend(b); err != nil {
		log.Warn().Err(err).Str("module", "app.router").Str("target", string(target)).
			Msg("relay delivery failed, tearing target down")
		r.HandleClose(peer)
	}
}

func (r *Router) sendTargetNotFound(s *Session, target domain.UserID) {
	r.sendJSON(s, map[string]any{
		"type":    "error",
		"message": fmt.Sprintf("%s not found in room", target),
	})
}

// HandleClose runs the terminal transition: the session leaves its
// room, remaining members learn of the departure and the room is
// deleted when empty. Safe to call more than once; closing a session
// that never joined has no registry side effects.
func (r *Router) HandleClose(s *Session) {
	roomID, user, wasJoined, ok := s.Close()
	if !ok {
		return
	}
	if wasJoined && r.Rooms.RemoveMember(roomID, user.ID, s) {
		for _, m := range r.Rooms.MembersExcept(roomID, user.ID) {
			r.sendJSON(m.Session, struct {
				Type   string        `json:"type"`
				UserID domain.UserID `json:"userId"`
			}{"user_left", user.ID})
		}
		log.Info().Str("module", "app.router").Str("room", string(roomID)).
			Str("user", string(user.ID)).Msg("left room")
	}
	r.Registry.Unbind(s.ID)
	s.Conn().Close()
}

// detach removes a joined session from its room without closing it,
// used when a live connection joins another room.
func (r *Router) detach(s *Session) {
	roomID, joined := s.Room()
	if !joined {
		return
	}
	user := s.User()
	if r.Rooms.RemoveMember(roomID, user.ID, s) {
		for _, m := range r.Rooms.MembersExcept(roomID, user.ID) {
			r.sendJSON(m.Session, struct {
				Type   string        `json:"type"`
				UserID domain.UserID `json:"userId"`
			}{"user_left", user.ID})
		}
	}
}

// sendJSON is best effort: a failed send is logged and otherwise
// ignored by fan-out paths. Reports whether the send was accepted.
func (r *Router) sendJSON(s *Session, v any) bool {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "app.router").Msg("sendJSON marshal")
		return false
	}
	if err := s.Conn().TrySend(b); err != nil {
		log.Warn().Err(err).Str("module", "app.router").Str("sid", string(s.ID)).Msg("send failed")
		return false
	}
	return true
}
