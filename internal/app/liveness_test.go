package app_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aulalive/signaling/internal/app"
)

func TestSweepProbesBeforeEvicting(t *testing.T) {
	h := newHarness()
	sess, conn := h.connect("s1")
	h.join(t, sess, "class-1", "alice", false)

	monitor := app.NewLivenessMonitor(h.registry, time.Second)

	// First sweep: the fresh connection is alive, so it only gets a probe.
	monitor.Sweep()
	assert.Equal(t, 1, conn.pingCount())
	assert.False(t, conn.wasTerminated())
	assert.Equal(t, app.StateJoined, sess.State())
}

func TestSweepEvictsUnresponsiveConnection(t *testing.T) {
	h := newHarness()
	quiet, quietConn := h.connect("s-quiet")
	peer, peerConn := h.connect("s-peer")
	h.join(t, quiet, "class-1", "alice", false)
	h.join(t, peer, "class-1", "bob", false)

	// Termination surfaces as a transport close notification.
	quietConn.onTerminate = func() { h.router.HandleClose(quiet) }
	peerConn.onTerminate = func() { h.router.HandleClose(peer) }

	monitor := app.NewLivenessMonitor(h.registry, time.Second)

	monitor.Sweep() // probe both
	peer.MarkAlive()
	monitor.Sweep() // quiet never answered: evicted

	assert.True(t, quietConn.wasTerminated())
	assert.False(t, peerConn.wasTerminated())
	assert.Equal(t, app.StateClosed, quiet.State())

	left := peerConn.lastMessage(t)
	assert.Equal(t, "user_left", left["type"])
	assert.Equal(t, "alice", left["userId"])

	_, stillThere := h.rooms.Member("class-1", "alice")
	assert.False(t, stillThere)
}

func TestPongKeepsConnectionAlive(t *testing.T) {
	h := newHarness()
	sess, conn := h.connect("s1")
	h.join(t, sess, "class-1", "alice", false)

	monitor := app.NewLivenessMonitor(h.registry, time.Second)
	for i := 0; i < 3; i++ {
		monitor.Sweep()
		sess.MarkAlive() // heartbeat reply before the next sweep
	}

	assert.Equal(t, 3, conn.pingCount())
	assert.False(t, conn.wasTerminated())
	assert.Equal(t, app.StateJoined, sess.State())
}

func TestEvictedSessionLeavesRegistry(t *testing.T) {
	h := newHarness()
	sess, conn := h.connect("s1")
	h.join(t, sess, "class-1", "alice", false)
	conn.onTerminate = func() { h.router.HandleClose(sess) }

	monitor := app.NewLivenessMonitor(h.registry, time.Second)
	monitor.Sweep()
	monitor.Sweep()

	require.True(t, conn.wasTerminated())
	assert.Equal(t, 0, h.registry.Len())
	assert.False(t, h.rooms.Exists("class-1"))
}
