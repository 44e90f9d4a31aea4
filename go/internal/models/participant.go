package models

import "time"

// Role labels are positional and fixed: seat 0 is always the ronin, seat 1
// the shogun. Participants never pick a role.
type Role string

const (
	RoleRonin  Role = "ronin"
	RoleShogun Role = "shogun"
	RoleNone   Role = ""
)

// RoleForSeat returns the role label for a seat index in a room's player list.
func RoleForSeat(seat int) Role {
	switch seat {
	case 0:
		return RoleRonin
	case 1:
		return RoleShogun
	default:
		return RoleNone
	}
}

// Participant is one connected player. It is owned by the gateway's session
// registry for the lifetime of the connection; rooms reference it but do not
// own it.
type Participant struct {
	ID   string `json:"id"`
	Name string `json:"name"`

	// RoomCode is the code of the room currently occupied, empty when none.
	RoomCode string `json:"-"`

	// Ready is only meaningful while the room is in the lobby phase.
	Ready bool `json:"ready"`

	// PressedAt is the per-round press timestamp, cleared at every round start.
	PressedAt *time.Time `json:"-"`
}
