// Package match implements the authoritative state machine for a two-player
// reaction duel: lobby membership, host-gated match controls, the timed round
// cycle, press arbitration and scoring.
package match

import (
	"time"

	"github.com/duelgrounds/quickdraw/go/internal/match/events"
	"github.com/duelgrounds/quickdraw/go/internal/models"
	"github.com/duelgrounds/quickdraw/go/internal/rooms"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Notifier delivers events to room members. It is called with the room lock
// held and must not block; delivery failure to one member must not affect
// the others.
type Notifier interface {
	// Broadcast sends an event to every current member of the room.
	Broadcast(room *models.Room, event any)
	// Send sends an event to a single participant.
	Send(participantID string, event any)
}

// Config holds the engine's timing knobs. The defaults reproduce the
// tournament timing; tests shrink them.
type Config struct {
	// StaringDuration is the fixed floor before fouls start to count.
	StaringDuration time.Duration
	// SignalDelayMin/Max bound the uniformly drawn extra delay between
	// entering the waiting phase and the signal.
	SignalDelayMin time.Duration
	SignalDelayMax time.Duration
	// PostRoundDelay separates a round result from the next round or the
	// match-over announcement.
	PostRoundDelay time.Duration
}

// DefaultConfig returns the standard duel timing.
func DefaultConfig() Config {
	return Config{
		StaringDuration: 4000 * time.Millisecond,
		SignalDelayMin:  3000 * time.Millisecond,
		SignalDelayMax:  15000 * time.Millisecond,
		PostRoundDelay:  4000 * time.Millisecond,
	}
}

// Engine advances rooms through the round life-cycle. Inbound participant
// actions and elapsed timers are the only two things that mutate a room, and
// both are serialized through the room's mutex.
type Engine struct {
	store    *rooms.Store
	notifier Notifier
	clock    clockwork.Clock
	cfg      Config
}

// NewEngine creates an engine. Use clockwork.NewRealClock() in production and
// a fake clock in tests.
func NewEngine(store *rooms.Store, notifier Notifier, clock clockwork.Clock, cfg Config) *Engine {
	if cfg == (Config{}) {
		cfg = DefaultConfig()
	}
	return &Engine{
		store:    store,
		notifier: notifier,
		clock:    clock,
		cfg:      cfg,
	}
}

// CreateRoom allocates a fresh room with the creator as host and sole member.
// A creator still sitting in another room leaves it first.
func (e *Engine) CreateRoom(p *models.Participant) *models.Room {
	if p.RoomCode != "" {
		e.Leave(p)
	}

	room := e.store.Allocate()
	room.Mu.Lock()
	defer room.Mu.Unlock()

	room.HostID = p.ID
	e.addMemberLocked(room, p)

	log.Info().Str("room", room.Code).Str("participant", p.ID).Int("best_of", room.BestOf).Msg("room created by participant")
	e.notifier.Send(p.ID, events.Joined{Type: events.TypeJoined, ParticipantID: p.ID, RoomID: room.Code})
	e.broadcastStateLocked(room)
	return room
}

// Join adds p to the room with the given code. Re-joining a room p already
// occupies is a no-op membership-wise; joining a different room leaves the
// old one first. A hostless room adopts the joiner as host.
func (e *Engine) Join(code string, p *models.Participant) error {
	room, ok := e.store.Get(code)
	if !ok {
		return ErrRoomNotFound
	}

	// Check capacity before tearing down existing membership, so a failed
	// join into a full room leaves the joiner where they were.
	room.Mu.Lock()
	full := len(room.Players) >= models.MaxPlayers && room.PlayerByID(p.ID) == nil
	room.Mu.Unlock()
	if full {
		return ErrRoomFull
	}

	if p.RoomCode != "" && p.RoomCode != code {
		e.Leave(p)
	}

	room.Mu.Lock()
	defer room.Mu.Unlock()
	if len(room.Players) >= models.MaxPlayers && room.PlayerByID(p.ID) == nil {
		return ErrRoomFull
	}

	e.addMemberLocked(room, p)
	if room.HostID == "" {
		room.HostID = p.ID
	}

	log.Info().Str("room", room.Code).Str("participant", p.ID).Str("host", room.HostID).Msg("participant joined")
	e.notifier.Send(p.ID, events.Joined{Type: events.TypeJoined, ParticipantID: p.ID, RoomID: room.Code})
	e.broadcastStateLocked(room)
	return nil
}

// Leave removes p from its room: any in-flight round is torn down, the room
// returns to the lobby, and the host seat is reassigned if p held it.
// Disconnects route through here too.
func (e *Engine) Leave(p *models.Participant) {
	code := p.RoomCode
	if code == "" {
		return
	}
	room, ok := e.store.Get(code)
	if !ok {
		p.RoomCode = ""
		return
	}
	room.Mu.Lock()
	defer room.Mu.Unlock()

	// Timer callbacks write participant fields under the room lock, so they
	// are only cleared inside the critical section.
	p.RoomCode = ""
	p.Ready = false
	p.PressedAt = nil

	for i, m := range room.Players {
		if m.ID == p.ID {
			room.Players = append(room.Players[:i], room.Players[i+1:]...)
			break
		}
	}
	delete(room.Scores, p.ID)
	e.resetToLobbyLocked(room, false)

	oldHost := room.HostID
	if room.HostID == p.ID {
		if len(room.Players) > 0 {
			room.HostID = room.Players[0].ID
		} else {
			room.HostID = ""
		}
	}

	log.Info().
		Str("room", room.Code).
		Str("participant", p.ID).
		Str("old_host", oldHost).
		Str("host", room.HostID).
		Int("remaining", len(room.Players)).
		Msg("participant left")
	e.broadcastStateLocked(room)
}

// SetReady updates p's lobby ready flag. Only legal in the lobby phase.
func (e *Engine) SetReady(p *models.Participant, ready bool) error {
	room, ok := e.roomOf(p)
	if !ok {
		return nil
	}
	room.Mu.Lock()
	defer room.Mu.Unlock()

	if room.Phase != models.PhaseLobby {
		return ErrInvalidPhase
	}
	p.Ready = ready
	log.Info().Str("room", room.Code).Str("participant", p.ID).Bool("ready", ready).Msg("ready flag set")
	e.broadcastStateLocked(room)
	return nil
}

// SetBestOf changes the match length. Host only, lobby only; unsupported
// values coerce to the default.
func (e *Engine) SetBestOf(p *models.Participant, n int) error {
	room, ok := e.roomOf(p)
	if !ok {
		return nil
	}
	room.Mu.Lock()
	defer room.Mu.Unlock()

	if room.HostID != p.ID {
		return ErrNotHost
	}
	if room.Phase != models.PhaseLobby {
		return ErrInvalidPhase
	}
	prev := room.BestOf
	room.BestOf = models.NormalizeBestOf(n)
	log.Info().Str("room", room.Code).Int("from", prev).Int("to", room.BestOf).Msg("best-of changed")
	e.broadcastStateLocked(room)
	return nil
}

// StartMatch begins a match: host only, lobby only, both seats filled, and
// the non-host participant ready. The host's own ready flag is irrelevant.
func (e *Engine) StartMatch(p *models.Participant) error {
	room, ok := e.roomOf(p)
	if !ok {
		return nil
	}
	room.Mu.Lock()
	defer room.Mu.Unlock()

	if room.HostID != p.ID {
		return ErrNotHost
	}
	if room.Phase != models.PhaseLobby {
		return ErrInvalidPhase
	}
	opponent := room.Opponent(room.HostID)
	if len(room.Players) != models.MaxPlayers || opponent == nil || !opponent.Ready {
		return ErrOpponentNotReady
	}

	cancelTimers(room)
	for _, m := range room.Players {
		room.Scores[m.ID] = 0
		m.PressedAt = nil
	}
	room.Round = 0

	log.Info().Str("room", room.Code).Str("host", p.ID).Int("best_of", room.BestOf).Msg("match started")
	e.startRoundLocked(room)
	return nil
}

// ForceStop aborts whatever is in progress and returns the room to the lobby
// with zeroed scores. Host only, legal in any phase.
func (e *Engine) ForceStop(p *models.Participant) error {
	room, ok := e.roomOf(p)
	if !ok {
		return nil
	}
	room.Mu.Lock()
	defer room.Mu.Unlock()

	if room.HostID != p.ID {
		return ErrNotHost
	}
	e.resetToLobbyLocked(room, true)
	log.Info().Str("room", room.Code).Str("host", p.ID).Msg("match force-stopped")
	e.broadcastStateLocked(room)
	return nil
}

// ReportPing relays a participant's self-measured latency to the whole room.
func (e *Engine) ReportPing(p *models.Participant, pingMs int) {
	room, ok := e.roomOf(p)
	if !ok {
		return
	}
	room.Mu.Lock()
	defer room.Mu.Unlock()

	if pingMs < 0 {
		pingMs = 0
	}
	e.notifier.Broadcast(room, events.OpponentPing{
		Type:          events.TypeOpponentPing,
		ParticipantID: p.ID,
		PingMs:        pingMs,
	})
}

func (e *Engine) roomOf(p *models.Participant) (*models.Room, bool) {
	if p.RoomCode == "" {
		return nil, false
	}
	return e.store.Get(p.RoomCode)
}

// addMemberLocked seats p in the room (idempotently), unready by default,
// with a zeroed score entry.
func (e *Engine) addMemberLocked(room *models.Room, p *models.Participant) {
	p.RoomCode = room.Code
	p.Ready = false
	if room.PlayerByID(p.ID) == nil {
		room.Players = append(room.Players, p)
	}
	if _, ok := room.Scores[p.ID]; !ok {
		room.Scores[p.ID] = 0
	}
}

// resetToLobbyLocked cancels all outstanding timers, clears every per-round
// field and ready flag, and puts the room back in the lobby phase. Scores are
// zeroed only when asked: leaving keeps the remaining player's tally, while
// force-stop and match-over wipe it.
func (e *Engine) resetToLobbyLocked(room *models.Room, zeroScores bool) {
	cancelTimers(room)
	room.Phase = models.PhaseLobby
	room.Round = 0
	room.Frames = make(map[string]*int)
	room.SignalAt = nil
	room.PlannedSignalAt = nil
	room.RoundStartAt = nil
	room.EarlyBy = nil
	room.WinnerID = nil
	for _, m := range room.Players {
		m.Ready = false
		m.PressedAt = nil
	}
	if zeroScores {
		for id := range room.Scores {
			room.Scores[id] = 0
		}
	}
}

// broadcastStateLocked publishes the room snapshot all clients render from.
func (e *Engine) broadcastStateLocked(room *models.Room) {
	players := make([]events.Player, 0, len(room.Players))
	for i, m := range room.Players {
		players = append(players, events.Player{
			ID:    m.ID,
			Name:  m.Name,
			Role:  string(models.RoleForSeat(i)),
			Ready: m.Ready,
		})
	}
	e.notifier.Broadcast(room, events.RoomState{
		Type:            events.TypeRoomState,
		Players:         players,
		Scores:          copyScores(room.Scores),
		Phase:           string(room.Phase),
		BestOf:          room.BestOf,
		HostID:          room.HostID,
		PlannedSignalAt: unixMsPtr(room.PlannedSignalAt),
	})
}

func copyScores(scores map[string]int) map[string]int {
	out := make(map[string]int, len(scores))
	for id, s := range scores {
		out[id] = s
	}
	return out
}

func copyFrames(frames map[string]*int) map[string]*int {
	out := make(map[string]*int, len(frames))
	for id, f := range frames {
		out[id] = f
	}
	return out
}

func unixMsPtr(t *time.Time) *int64 {
	if t == nil {
		return nil
	}
	ms := t.UnixMilli()
	return &ms
}
