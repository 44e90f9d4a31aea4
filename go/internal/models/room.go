package models

import (
	"sync"
	"time"
)

// Phase is the room's current point in the round life-cycle.
type Phase string

const (
	PhaseLobby    Phase = "lobby"
	PhaseStaring  Phase = "staring"
	PhaseWaiting  Phase = "waiting"
	PhaseSignaled Phase = "signaled"
	PhaseResult   Phase = "result"
)

const (
	// MaxPlayers is the hard cap on distinct participants per room.
	MaxPlayers = 2

	// DefaultBestOf is the match length used when none was chosen.
	DefaultBestOf = 5
)

// TimerHandle is a cancellable one-shot timer owned by a room. Rooms keep
// their outstanding handles so a phase change can cancel them in bulk before
// scheduling new ones.
type TimerHandle interface {
	Cancel()
}

// Room is the aggregate a match is played in. All mutation, whether from an
// inbound action or a timer callback, happens with Mu held, which serializes
// the two event sources per room.
type Room struct {
	Mu sync.Mutex

	// Code is the external handle other participants use to join.
	Code string

	// Players holds at most MaxPlayers participants in join order; the first
	// joiner is conventionally player one.
	Players []*Participant

	Scores map[string]int
	Phase  Phase
	Round  int
	BestOf int
	HostID string

	// Per-round transient state, reset at every round start.
	Frames          map[string]*int
	SignalAt        *time.Time // sole authority for reaction measurement
	PlannedSignalAt *time.Time // informational only, for client countdowns
	RoundStartAt    *time.Time
	EarlyBy         *string
	WinnerID        *string

	// InfiniteStaring suspends the automatic signal schedule indefinitely.
	InfiniteStaring bool

	Timers []TimerHandle
}

// PlayerByID returns the member with the given id, or nil.
func (r *Room) PlayerByID(id string) *Participant {
	for _, p := range r.Players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// Opponent returns the member other than id, or nil when alone.
func (r *Room) Opponent(id string) *Participant {
	for _, p := range r.Players {
		if p.ID != id {
			return p
		}
	}
	return nil
}

// TargetWins is the score needed to win the match: floor(bestOf/2)+1.
func (r *Room) TargetWins() int {
	bo := r.BestOf
	if bo == 0 {
		bo = DefaultBestOf
	}
	return bo/2 + 1
}

// MatchWinnerID returns the id of the first player at or past the target
// score, or empty when the match is still open.
func (r *Room) MatchWinnerID() string {
	tw := r.TargetWins()
	for _, p := range r.Players {
		if r.Scores[p.ID] >= tw {
			return p.ID
		}
	}
	return ""
}

// NormalizeBestOf coerces n to a supported match length. Anything outside
// {5, 7, 10} falls back to the default.
func NormalizeBestOf(n int) int {
	switch n {
	case 5, 7, 10:
		return n
	default:
		return DefaultBestOf
	}
}
