// Package domain contains entity without logic, just meta-data
package domain

type (
	// UserID is an opaque participant identifier, unique within one room only.
	UserID string
	// RoomID is an opaque room identifier.
	RoomID string
)

// Participant is the identity a connection assumes when it joins a room.
// The id and role never change for the lifetime of the session.
type Participant struct {
	ID        UserID `json:"userId"`
	IsTeacher bool   `json:"isTeacher"`
}
