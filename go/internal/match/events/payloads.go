// Package events defines the server→client event catalog. Every event is a
// self-describing JSON record with a type discriminator; timestamps on the
// wire are Unix milliseconds.
package events

// Type discriminates server→client events.
type Type string

const (
	TypeHello         Type = "hello"
	TypeError         Type = "error"
	TypeJoined        Type = "joined"
	TypeRoomState     Type = "room_state"
	TypeRoundStarting Type = "round_starting"
	TypeSignal        Type = "signal"
	TypeRoundResult   Type = "round_result"
	TypeMatchOver     Type = "match_over"
	TypePong          Type = "pong"
	TypeOpponentPing  Type = "opponent_ping"
)

// Round result reasons.
const (
	ReasonEarly  = "early"
	ReasonSignal = "signal"
)

// Player is the public view of a room member.
type Player struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Role  string `json:"role"`
	Ready bool   `json:"ready"`
}

// Hello greets a freshly opened connection.
type Hello struct {
	Type    Type   `json:"type"`
	Message string `json:"message"`
}

// Error reports a rejected action; the connection stays open.
type Error struct {
	Type    Type   `json:"type"`
	Message string `json:"message"`
}

// Joined confirms room membership to the joining participant only.
type Joined struct {
	Type          Type   `json:"type"`
	ParticipantID string `json:"participantId"`
	RoomID        string `json:"roomId"`
}

// RoomState is the full lobby/room snapshot broadcast after every membership
// or settings change.
type RoomState struct {
	Type            Type           `json:"type"`
	Players         []Player       `json:"players"`
	Scores          map[string]int `json:"scores"`
	Phase           string         `json:"phase"`
	BestOf          int            `json:"bestOf"`
	HostID          string         `json:"hostId,omitempty"`
	PlannedSignalAt *int64         `json:"plannedSignalAt,omitempty"`
}

// RoundStarting announces a new round. PlannedSignalAt is informational: it
// exists for optional client countdowns and is never authoritative.
type RoundStarting struct {
	Type            Type   `json:"type"`
	Round           int    `json:"round"`
	PlannedSignalAt *int64 `json:"plannedSignalAt,omitempty"`
}

// Signal carries the authoritative signal timestamp.
type Signal struct {
	Type Type  `json:"type"`
	T    int64 `json:"t"`
}

// RoundResult reports a concluded round, by foul or by reaction.
type RoundResult struct {
	Type     Type            `json:"type"`
	Round    int             `json:"round"`
	Reason   string          `json:"reason"`
	EarlyBy  *string         `json:"earlyBy,omitempty"`
	WinnerID *string         `json:"winnerId"`
	Frames   map[string]*int `json:"frames"`
	Scores   map[string]int  `json:"scores"`
}

// MatchOver reports a completed match with its final tally.
type MatchOver struct {
	Type     Type           `json:"type"`
	BestOf   int            `json:"bestOf"`
	WinnerID string         `json:"winnerId"`
	Scores   map[string]int `json:"scores"`
}

// Pong echoes a client ping probe.
type Pong struct {
	Type Type  `json:"type"`
	T    int64 `json:"t"`
}

// OpponentPing relays one member's self-reported latency to the whole room.
type OpponentPing struct {
	Type          Type   `json:"type"`
	ParticipantID string `json:"participantId"`
	PingMs        int    `json:"pingMs"`
}
