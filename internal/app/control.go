package app

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/aulalive/signaling/internal/core"
	"github.com/aulalive/signaling/internal/domain"
)

// Control messages: mute, remove, test mode and call end. Permission
// violations are dropped silently, with no feedback to either party.

func (r *Router) handleMute(s *Session, data core.Frame) {
	var p struct {
		Target string `json:"target"`
		Mute   bool   `json:"mute"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "app.control").Msg("bad mute payload")
		return
	}
	user := s.User()
	target := domain.UserID(p.Target)

	// Teachers may mute anyone; everyone may mute themselves.
	if !user.IsTeacher && user.ID != target {
		log.Info().Str("module", "app.control").Str("user", string(user.ID)).
			Str("target", p.Target).Msg("mute denied")
		return
	}

	roomID, joined := s.Room()
	if !joined {
		return
	}
	peer, ok := r.Rooms.Member(roomID, target)
	if !ok {
		return
	}

	r.sendJSON(peer, struct {
		Type   string        `json:"type"`
		Target domain.UserID `json:"target"`
		Mute   bool          `json:"mute"`
	}{"mute_participant", target, p.Mute})

	for _, m := range r.Rooms.MembersExcept(roomID, user.ID) {
		if m.UserID == target {
			continue
		}
		r.sendJSON(m.Session, struct {
			Type   string        `json:"type"`
			UserID domain.UserID `json:"userId"`
			Muted  bool          `json:"muted"`
		}{"participant_muted", target, p.Mute})
	}
	log.Info().Str("module", "app.control").Str("by", string(user.ID)).
		Str("target", p.Target).Bool("mute", p.Mute).Msg("mute applied")
}

func (r *Router) handleRemove(s *Session, data core.Frame) {
	var p struct {
		Target string `json:"target"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "app.control").Msg("bad remove payload")
		return
	}
	user := s.User()
	if !user.IsTeacher {
		log.Info().Str("module", "app.control").Str("user", string(user.ID)).
			Str("target", p.Target).Msg("remove denied")
		return
	}

	roomID, joined := s.Room()
	if !joined {
		return
	}
	target := domain.UserID(p.Target)
	peer, ok := r.Rooms.Member(roomID, target)
	if !ok {
		return
	}

	r.sendJSON(peer, struct {
		Type   string        `json:"type"`
		Target domain.UserID `json:"target"`
	}{"remove_participant", target})

	for _, m := range r.Rooms.MembersExcept(roomID, user.ID) {
		if m.UserID == target {
			continue
		}
		r.sendJSON(m.Session, struct {
			Type   string        `json:"type"`
			UserID domain.UserID `json:"userId"`
		}{"participant_removed", target})
	}

	log.Info().Str("module", "app.control").Str("by", string(user.ID)).
		Str("target", p.Target).Msg("participant removed")
	r.HandleClose(peer)
}

func (r *Router) handleTestMode(s *Session, data core.Frame) {
	var p struct {
		IsTestMode bool   `json:"isTestMode"`
		StudentID  string `json:"studentId"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "app.control").Msg("bad test mode payload")
		return
	}
	user := s.User()
	if !user.IsTeacher {
		log.Info().Str("module", "app.control").Str("user", string(user.ID)).Msg("test mode denied")
		return
	}
	roomID, joined := s.Room()
	if !joined {
		return
	}

	for _, m := range r.Rooms.MembersExcept(roomID, user.ID) {
		r.sendJSON(m.Session, struct {
			Type       string `json:"type"`
			IsTestMode bool   `json:"isTestMode"`
			StudentID  string `json:"studentId,omitempty"`
		}{"test_mode_changed", p.IsTestMode, p.StudentID})
	}
	log.Info().Str("module", "app.control").Str("by", string(user.ID)).
		Bool("test_mode", p.IsTestMode).Str("student", p.StudentID).Msg("test mode changed")
}

// handleCallEnded broadcasts to the payload room, not the sender's
// bound room.
func (r *Router) handleCallEnded(s *Session, data core.Frame) {
	var p struct {
		RoomID string `json:"roomId"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "app.control").Msg("bad call_ended payload")
		return
	}
	if p.RoomID == "" {
		return
	}
	user := s.User()
	for _, m := range r.Rooms.MembersExcept(domain.RoomID(p.RoomID), user.ID) {
		r.sendJSON(m.Session, struct {
			Type string `json:"type"`
		}{"call_ended"})
	}
	log.Info().Str("module", "app.control").Str("by", string(user.ID)).
		Str("room", p.RoomID).Msg("call ended")
}
