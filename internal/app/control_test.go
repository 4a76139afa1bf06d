package app_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aulalive/signaling/internal/app"
)

// classroom wires a teacher and two students into one room.
func classroom(t *testing.T, h *harness) (teacher, student1, student2 *app.Session, tc, s1c, s2c *fakeConn) {
	t.Helper()
	teacher, tc = h.connect("s-teacher")
	student1, s1c = h.connect("s-student1")
	student2, s2c = h.connect("s-student2")
	h.join(t, teacher, "class-1", "teacher", true)
	h.join(t, student1, "class-1", "maria", false)
	h.join(t, student2, "class-1", "omar", false)
	return
}

func countByType(t *testing.T, c *fakeConn, msgType string) int {
	t.Helper()
	n := 0
	for _, m := range c.messages(t) {
		if m["type"] == msgType {
			n++
		}
	}
	return n
}

func TestMuteByTeacher(t *testing.T) {
	h := newHarness()
	teacher, _, _, tc, s1c, s2c := classroom(t, h)

	before := len(tc.messages(t))
	h.router.HandleMessage(teacher, frame(t, map[string]any{
		"type": "mute_participant", "target": "maria", "mute": true,
	}))

	got := s1c.lastMessage(t)
	assert.Equal(t, "mute_participant", got["type"])
	assert.Equal(t, "maria", got["target"])
	assert.Equal(t, true, got["mute"])

	side := s2c.lastMessage(t)
	assert.Equal(t, "participant_muted", side["type"])
	assert.Equal(t, "maria", side["userId"])
	assert.Equal(t, true, side["muted"])

	// Sender gets nothing, target gets no participant_muted.
	assert.Len(t, tc.messages(t), before)
	assert.Equal(t, 0, countByType(t, s1c, "participant_muted"))
}

func TestMuteByStudentOnPeerIsDropped(t *testing.T) {
	h := newHarness()
	_, student1, _, tc, s1c, s2c := classroom(t, h)

	before := [3]int{len(tc.messages(t)), len(s1c.messages(t)), len(s2c.messages(t))}
	h.router.HandleMessage(student1, frame(t, map[string]any{
		"type": "mute_participant", "target": "omar", "mute": true,
	}))

	assert.Len(t, tc.messages(t), before[0])
	assert.Len(t, s1c.messages(t), before[1])
	assert.Len(t, s2c.messages(t), before[2])
}

func TestSelfMuteIsAllowed(t *testing.T) {
	h := newHarness()
	_, student1, _, _, s1c, s2c := classroom(t, h)

	h.router.HandleMessage(student1, frame(t, map[string]any{
		"type": "mute_participant", "target": "maria", "mute": true,
	}))

	got := s1c.lastMessage(t)
	assert.Equal(t, "mute_participant", got["type"])
	side := s2c.lastMessage(t)
	assert.Equal(t, "participant_muted", side["type"])
	assert.Equal(t, "maria", side["userId"])
}

func TestMuteUnknownTargetIsNoOp(t *testing.T) {
	h := newHarness()
	teacher, _, _, _, s1c, s2c := classroom(t, h)

	before := [2]int{len(s1c.messages(t)), len(s2c.messages(t))}
	h.router.HandleMessage(teacher, frame(t, map[string]any{
		"type": "mute_participant", "target": "ghost", "mute": true,
	}))

	assert.Len(t, s1c.messages(t), before[0])
	assert.Len(t, s2c.messages(t), before[1])
}

func TestRemoveByTeacher(t *testing.T) {
	h := newHarness()
	teacher, student1, _, _, s1c, s2c := classroom(t, h)

	h.router.HandleMessage(teacher, frame(t, map[string]any{
		"type": "remove_participant", "target": "maria",
	}))

	removed := false
	for _, m := range s1c.messages(t) {
		if m["type"] == "remove_participant" {
			assert.Equal(t, "maria", m["target"])
			removed = true
		}
	}
	require.True(t, removed)

	assert.Equal(t, 1, countByType(t, s2c, "participant_removed"))
	assert.Equal(t, 1, countByType(t, s2c, "user_left"))

	assert.Equal(t, app.StateClosed, student1.State())
	_, stillThere := h.rooms.Member("class-1", "maria")
	assert.False(t, stillThere)
}

func TestRemoveByStudentIsDropped(t *testing.T) {
	h := newHarness()
	teacher, student1, _, _, _, _ := classroom(t, h)

	h.router.HandleMessage(student1, frame(t, map[string]any{
		"type": "remove_participant", "target": "teacher",
	}))

	assert.Equal(t, app.StateJoined, teacher.State())
	_, stillThere := h.rooms.Member("class-1", "teacher")
	assert.True(t, stillThere)
}

func TestTestModeBroadcastByTeacher(t *testing.T) {
	h := newHarness()
	teacher, _, _, tc, s1c, s2c := classroom(t, h)

	before := len(tc.messages(t))
	h.router.HandleMessage(teacher, frame(t, map[string]any{
		"type": "test_mode_changed", "isTestMode": true, "studentId": "maria",
	}))

	for _, c := range []*fakeConn{s1c, s2c} {
		got := c.lastMessage(t)
		assert.Equal(t, "test_mode_changed", got["type"])
		assert.Equal(t, true, got["isTestMode"])
		assert.Equal(t, "maria", got["studentId"])
	}
	assert.Len(t, tc.messages(t), before)
}

func TestTestModeOmitsEmptyStudent(t *testing.T) {
	h := newHarness()
	teacher, _, _, _, s1c, _ := classroom(t, h)

	h.router.HandleMessage(teacher, frame(t, map[string]any{
		"type": "test_mode_changed", "isTestMode": false,
	}))

	got := s1c.lastMessage(t)
	assert.Equal(t, "test_mode_changed", got["type"])
	assert.Equal(t, false, got["isTestMode"])
	_, present := got["studentId"]
	assert.False(t, present)
}

func TestTestModeByStudentIsDropped(t *testing.T) {
	h := newHarness()
	_, student1, _, tc, _, s2c := classroom(t, h)

	before := [2]int{len(tc.messages(t)), len(s2c.messages(t))}
	h.router.HandleMessage(student1, frame(t, map[string]any{
		"type": "test_mode_changed", "isTestMode": true,
	}))

	assert.Len(t, tc.messages(t), before[0])
	assert.Len(t, s2c.messages(t), before[1])
}

func TestCallEndedUsesPayloadRoom(t *testing.T) {
	h := newHarness()
	_, _, _, tc, s1c, s2c := classroom(t, h)

	// The sender sits in another room entirely; the payload room id
	// decides who hears the call end.
	outsider, outsiderConn := h.connect("s-outsider")
	h.join(t, outsider, "class-2", "outsider", false)

	h.router.HandleMessage(outsider, frame(t, map[string]any{
		"type": "call_ended", "roomId": "class-1",
	}))

	for _, c := range []*fakeConn{tc, s1c, s2c} {
		got := c.lastMessage(t)
		assert.Equal(t, "call_ended", got["type"])
	}
	assert.Equal(t, 0, countByType(t, outsiderConn, "call_ended"))
}

func TestCallEndedMissingRoomIsNoOp(t *testing.T) {
	h := newHarness()
	teacher, _, _, _, s1c, _ := classroom(t, h)

	before := len(s1c.messages(t))
	h.router.HandleMessage(teacher, frame(t, map[string]any{"type": "call_ended"}))
	assert.Len(t, s1c.messages(t), before)
}
