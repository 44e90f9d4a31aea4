package match

import "errors"

// User-facing rejections. None of these are fatal: a rejected action leaves
// room state untouched and the caller's connection open.
var (
	// ErrRoomNotFound is returned when a join references an unknown code.
	ErrRoomNotFound = errors.New("room not found")

	// ErrRoomFull is returned when a third distinct participant tries to join.
	ErrRoomFull = errors.New("room full")

	// ErrNotHost is returned when a host-gated control is called by a guest.
	ErrNotHost = errors.New("only the host can do that")

	// ErrInvalidPhase is returned when an action is illegal in the room's
	// current phase.
	ErrInvalidPhase = errors.New("not allowed in this phase")

	// ErrOpponentNotReady is returned when the host starts a match before the
	// other participant readied up.
	ErrOpponentNotReady = errors.New("waiting for opponent to be ready")
)
