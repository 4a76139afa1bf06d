package core

// Frame is a single UTF-8 JSON text frame.
type Frame []byte

// SessionID identifies one transport connection, minted before any join.
type SessionID string

// SignalConn abstracts the outbound side of a client connection.
// Owned by the adapter; the adapter must Close() it. Sends are
// non-blocking best-effort: a send that cannot be delivered fails
// immediately and is never retried.
type SignalConn interface {
	TrySend(Frame) error
	// Ping sends a transport-level heartbeat probe.
	Ping() error
	// Close shuts the connection down gracefully.
	Close()
	// Terminate drops the connection without a close handshake. The
	// transport's close notification drives the session cleanup.
	Terminate()
}
