package match

import (
	"sync"
	"testing"
	"time"

	"github.com/duelgrounds/quickdraw/go/internal/match/events"
	"github.com/duelgrounds/quickdraw/go/internal/models"
	"github.com/duelgrounds/quickdraw/go/internal/rooms"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureNotifier records every delivered event for inspection.
type captureNotifier struct {
	mu     sync.Mutex
	events []any
}

func (n *captureNotifier) Broadcast(_ *models.Room, event any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func (n *captureNotifier) Send(_ string, event any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func eventsOf[T any](n *captureNotifier) []T {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []T
	for _, ev := range n.events {
		if e, ok := ev.(T); ok {
			out = append(out, e)
		}
	}
	return out
}

type fixture struct {
	engine   *Engine
	notifier *captureNotifier
	clock    *clockwork.FakeClock
	p1, p2   *models.Participant
}

// testConfig pins the random delay so the signal time is deterministic.
func testConfig() Config {
	return Config{
		StaringDuration: 4000 * time.Millisecond,
		SignalDelayMin:  5000 * time.Millisecond,
		SignalDelayMax:  5000 * time.Millisecond,
		PostRoundDelay:  4000 * time.Millisecond,
	}
}

func newFixture() *fixture {
	notifier := &captureNotifier{}
	clock := clockwork.NewFakeClock()
	return &fixture{
		engine:   NewEngine(rooms.NewStore(), notifier, clock, testConfig()),
		notifier: notifier,
		clock:    clock,
		p1:       &models.Participant{ID: "p1", Name: "One"},
		p2:       &models.Participant{ID: "p2", Name: "Two"},
	}
}

// startDuel builds a two-player room and starts the match.
func (f *fixture) startDuel(t *testing.T) *models.Room {
	t.Helper()
	room := f.engine.CreateRoom(f.p1)
	require.NoError(t, f.engine.Join(room.Code, f.p2))
	require.NoError(t, f.engine.SetReady(f.p2, true))
	require.NoError(t, f.engine.StartMatch(f.p1))
	return room
}

func (f *fixture) phase(room *models.Room) models.Phase {
	room.Mu.Lock()
	defer room.Mu.Unlock()
	return room.Phase
}

func (f *fixture) waitPhase(t *testing.T, room *models.Room, want models.Phase) {
	t.Helper()
	require.Eventually(t, func() bool {
		return f.phase(room) == want
	}, time.Second, time.Millisecond, "phase never reached %s", want)
}

// toWaiting advances past the staring floor.
func (f *fixture) toWaiting(t *testing.T, room *models.Room) {
	t.Helper()
	f.clock.Advance(4000 * time.Millisecond)
	f.waitPhase(t, room, models.PhaseWaiting)
}

// toSignaled advances through staring and the pinned signal delay.
func (f *fixture) toSignaled(t *testing.T, room *models.Room) {
	t.Helper()
	f.toWaiting(t, room)
	f.clock.Advance(5000 * time.Millisecond)
	f.waitPhase(t, room, models.PhaseSignaled)
}

func TestRoomNeverExceedsTwoPlayers(t *testing.T) {
	f := newFixture()
	p3 := &models.Participant{ID: "p3", Name: "Three"}

	room := f.engine.CreateRoom(f.p1)
	require.NoError(t, f.engine.Join(room.Code, f.p2))
	require.ErrorIs(t, f.engine.Join(room.Code, p3), ErrRoomFull)

	// Re-joining the same room is an idempotent no-op membership-wise.
	require.NoError(t, f.engine.Join(room.Code, f.p2))

	room.Mu.Lock()
	defer room.Mu.Unlock()
	assert.Len(t, room.Players, 2)
	assert.Equal(t, "p1", room.Players[0].ID)
	assert.Equal(t, "p2", room.Players[1].ID)
}

func TestJoinUnknownRoom(t *testing.T) {
	f := newFixture()
	require.ErrorIs(t, f.engine.Join("0000", f.p1), ErrRoomNotFound)
}

func TestJoinSwitchesRooms(t *testing.T) {
	f := newFixture()
	roomA := f.engine.CreateRoom(f.p1)
	roomB := f.engine.CreateRoom(f.p2)

	require.NoError(t, f.engine.Join(roomA.Code, f.p2))

	roomB.Mu.Lock()
	assert.Empty(t, roomB.Players)
	assert.Empty(t, roomB.HostID)
	roomB.Mu.Unlock()

	roomA.Mu.Lock()
	defer roomA.Mu.Unlock()
	assert.Len(t, roomA.Players, 2)
	assert.Equal(t, roomA.Code, f.p2.RoomCode)
}

func TestStartMatchGuards(t *testing.T) {
	f := newFixture()
	room := f.engine.CreateRoom(f.p1)

	// Alone: no opponent to be ready.
	require.ErrorIs(t, f.engine.StartMatch(f.p1), ErrOpponentNotReady)

	require.NoError(t, f.engine.Join(room.Code, f.p2))
	require.ErrorIs(t, f.engine.StartMatch(f.p2), ErrNotHost)
	require.ErrorIs(t, f.engine.StartMatch(f.p1), ErrOpponentNotReady)
	assert.Equal(t, models.PhaseLobby, f.phase(room))

	require.NoError(t, f.engine.SetReady(f.p2, true))
	require.NoError(t, f.engine.StartMatch(f.p1))
	assert.Equal(t, models.PhaseStaring, f.phase(room))

	// Already running.
	require.ErrorIs(t, f.engine.StartMatch(f.p1), ErrInvalidPhase)
}

func TestSetReadyOnlyInLobby(t *testing.T) {
	f := newFixture()
	f.startDuel(t)
	require.ErrorIs(t, f.engine.SetReady(f.p2, false), ErrInvalidPhase)
}

func TestPressDuringStaringIsIgnored(t *testing.T) {
	f := newFixture()
	room := f.startDuel(t)

	f.engine.Press(f.p1)

	room.Mu.Lock()
	defer room.Mu.Unlock()
	assert.Equal(t, models.PhaseStaring, room.Phase)
	assert.Equal(t, 0, room.Scores["p1"])
	assert.Equal(t, 0, room.Scores["p2"])
	assert.Nil(t, room.Frames["p1"])
	assert.Empty(t, eventsOf[events.RoundResult](f.notifier))
}

func TestEarlyPressDuringWaiting(t *testing.T) {
	f := newFixture()
	room := f.startDuel(t)
	f.toWaiting(t, room)

	f.engine.Press(f.p1)

	room.Mu.Lock()
	assert.Equal(t, models.PhaseResult, room.Phase)
	require.NotNil(t, room.EarlyBy)
	assert.Equal(t, "p1", *room.EarlyBy)
	assert.Equal(t, 0, room.Scores["p1"])
	assert.Equal(t, 1, room.Scores["p2"])
	room.Mu.Unlock()

	results := eventsOf[events.RoundResult](f.notifier)
	require.Len(t, results, 1)
	assert.Equal(t, events.ReasonEarly, results[0].Reason)
	require.NotNil(t, results[0].EarlyBy)
	assert.Equal(t, "p1", *results[0].EarlyBy)
	require.NotNil(t, results[0].WinnerID)
	assert.Equal(t, "p2", *results[0].WinnerID)
	assert.Nil(t, results[0].Frames["p1"])
	assert.Nil(t, results[0].Frames["p2"])

	// The cancelled signal timer never fires.
	assert.Empty(t, eventsOf[events.Signal](f.notifier))
}

func TestReactionFramesAndWinner(t *testing.T) {
	f := newFixture()
	room := f.startDuel(t)
	f.toSignaled(t, room)

	signals := eventsOf[events.Signal](f.notifier)
	require.Len(t, signals, 1)
	assert.Equal(t, f.clock.Now().UnixMilli(), signals[0].T)

	// Presses at T+50ms and T+67ms measure 3 and 4 frames at 60fps.
	f.clock.Advance(50 * time.Millisecond)
	f.engine.Press(f.p1)
	f.clock.Advance(17 * time.Millisecond)
	f.engine.Press(f.p2)

	assert.Equal(t, models.PhaseResult, f.phase(room))
	results := eventsOf[events.RoundResult](f.notifier)
	require.Len(t, results, 1)
	assert.Equal(t, events.ReasonSignal, results[0].Reason)
	require.NotNil(t, results[0].Frames["p1"])
	require.NotNil(t, results[0].Frames["p2"])
	assert.Equal(t, 3, *results[0].Frames["p1"])
	assert.Equal(t, 4, *results[0].Frames["p2"])
	require.NotNil(t, results[0].WinnerID)
	assert.Equal(t, "p1", *results[0].WinnerID)
	assert.Equal(t, 1, results[0].Scores["p1"])
	assert.Equal(t, 0, results[0].Scores["p2"])
}

func TestGraceTimerConcludesSoloPress(t *testing.T) {
	f := newFixture()
	room := f.startDuel(t)
	f.toSignaled(t, room)

	f.clock.Advance(50 * time.Millisecond)
	f.engine.Press(f.p1)
	assert.Equal(t, models.PhaseSignaled, f.phase(room))

	f.clock.Advance(concludeGrace)
	f.waitPhase(t, room, models.PhaseResult)

	results := eventsOf[events.RoundResult](f.notifier)
	require.Len(t, results, 1)
	require.NotNil(t, results[0].WinnerID)
	assert.Equal(t, "p1", *results[0].WinnerID)
	assert.Nil(t, results[0].Frames["p2"])
}

func TestEqualFramesIsADraw(t *testing.T) {
	f := newFixture()
	room := f.startDuel(t)
	f.toSignaled(t, room)

	f.clock.Advance(30 * time.Millisecond)
	f.engine.Press(f.p1)
	f.engine.Press(f.p2)

	assert.Equal(t, models.PhaseResult, f.phase(room))
	results := eventsOf[events.RoundResult](f.notifier)
	require.Len(t, results, 1)
	assert.Equal(t, events.ReasonSignal, results[0].Reason)
	assert.Nil(t, results[0].WinnerID)
	assert.Equal(t, 0, results[0].Scores["p1"])
	assert.Equal(t, 0, results[0].Scores["p2"])
}

func TestRepeatPressIsIgnored(t *testing.T) {
	f := newFixture()
	room := f.startDuel(t)
	f.toSignaled(t, room)

	f.clock.Advance(20 * time.Millisecond)
	f.engine.Press(f.p1)
	f.clock.Advance(5 * time.Millisecond)
	f.engine.Press(f.p1)

	room.Mu.Lock()
	defer room.Mu.Unlock()
	require.NotNil(t, room.Frames["p1"])
	assert.Equal(t, framesFromDelta(20*time.Millisecond), *room.Frames["p1"])
}

func TestBestOfFiveCompletion(t *testing.T) {
	f := newFixture()
	room := f.startDuel(t)

	// p1 fouls three rounds in a row; p2 reaches the target of 3.
	for round := 1; round <= 3; round++ {
		f.waitPhase(t, room, models.PhaseStaring)
		f.toWaiting(t, room)
		f.engine.Press(f.p1)
		assert.Equal(t, models.PhaseResult, f.phase(room))
		if round < 3 {
			f.clock.Advance(4000 * time.Millisecond)
		}
	}

	room.Mu.Lock()
	assert.Equal(t, 3, room.Scores["p2"])
	room.Mu.Unlock()

	f.clock.Advance(4000 * time.Millisecond)
	f.waitPhase(t, room, models.PhaseLobby)

	overs := eventsOf[events.MatchOver](f.notifier)
	require.Len(t, overs, 1)
	assert.Equal(t, "p2", overs[0].WinnerID)
	assert.Equal(t, 5, overs[0].BestOf)
	assert.Equal(t, 3, overs[0].Scores["p2"])
	assert.Equal(t, 0, overs[0].Scores["p1"])

	room.Mu.Lock()
	defer room.Mu.Unlock()
	assert.Equal(t, 0, room.Scores["p1"])
	assert.Equal(t, 0, room.Scores["p2"])
	assert.Equal(t, 0, room.Round)
	assert.False(t, f.p1.Ready)
	assert.False(t, f.p2.Ready)
}

func TestBestOfNormalization(t *testing.T) {
	f := newFixture()
	room := f.engine.CreateRoom(f.p1)
	require.NoError(t, f.engine.Join(room.Code, f.p2))

	require.ErrorIs(t, f.engine.SetBestOf(f.p2, 7), ErrNotHost)

	require.NoError(t, f.engine.SetBestOf(f.p1, 6))
	assert.Equal(t, 5, room.BestOf)
	require.NoError(t, f.engine.SetBestOf(f.p1, 7))
	assert.Equal(t, 7, room.BestOf)
	require.NoError(t, f.engine.SetBestOf(f.p1, 10))
	assert.Equal(t, 10, room.BestOf)
}

func TestInfiniteStaringSuppressesSignal(t *testing.T) {
	f := newFixture()
	room := f.engine.CreateRoom(f.p1)
	require.NoError(t, f.engine.Join(room.Code, f.p2))
	require.NoError(t, f.engine.SetReady(f.p2, true))

	f.engine.SetInfiniteStaring(f.p1, true)
	require.NoError(t, f.engine.StartMatch(f.p1))

	starts := eventsOf[events.RoundStarting](f.notifier)
	require.Len(t, starts, 1)
	assert.Nil(t, starts[0].PlannedSignalAt)

	f.clock.Advance(60 * time.Second)
	assert.Equal(t, models.PhaseStaring, f.phase(room))
	assert.Empty(t, eventsOf[events.Signal](f.notifier))

	// Disabling mid-staring moves straight to waiting and arms the signal.
	f.engine.SetInfiniteStaring(f.p1, false)
	assert.Equal(t, models.PhaseWaiting, f.phase(room))
	room.Mu.Lock()
	assert.NotNil(t, room.PlannedSignalAt)
	room.Mu.Unlock()

	f.clock.Advance(5000 * time.Millisecond)
	f.waitPhase(t, room, models.PhaseSignaled)
	assert.Len(t, eventsOf[events.Signal](f.notifier), 1)
}

func TestPressOtherMirrorsTie(t *testing.T) {
	f := newFixture()
	room := f.startDuel(t)
	f.toSignaled(t, room)

	f.clock.Advance(40 * time.Millisecond)
	f.engine.Press(f.p1)
	f.engine.PressOther(f.p1)

	results := eventsOf[events.RoundResult](f.notifier)
	require.Len(t, results, 1)
	assert.Nil(t, results[0].WinnerID)
	require.NotNil(t, results[0].Frames["p1"])
	require.NotNil(t, results[0].Frames["p2"])
	assert.Equal(t, *results[0].Frames["p1"], *results[0].Frames["p2"])
	assert.Equal(t, 0, results[0].Scores["p1"])
	assert.Equal(t, 0, results[0].Scores["p2"])
}

func TestPressOtherWithoutOwnPress(t *testing.T) {
	f := newFixture()
	room := f.startDuel(t)
	f.toSignaled(t, room)

	f.clock.Advance(40 * time.Millisecond)
	f.engine.PressOther(f.p2)

	assert.Equal(t, models.PhaseResult, f.phase(room))
	results := eventsOf[events.RoundResult](f.notifier)
	require.Len(t, results, 1)
	assert.Nil(t, results[0].WinnerID)
	require.NotNil(t, results[0].Frames["p1"])
	require.NotNil(t, results[0].Frames["p2"])
	assert.Equal(t, *results[0].Frames["p1"], *results[0].Frames["p2"])
}

func TestPressOtherOutsideSignaledIsNoop(t *testing.T) {
	f := newFixture()
	room := f.startDuel(t)
	f.toWaiting(t, room)

	f.engine.PressOther(f.p1)
	assert.Equal(t, models.PhaseWaiting, f.phase(room))
	assert.Empty(t, eventsOf[events.RoundResult](f.notifier))
}

func TestHostReassignmentOnLeave(t *testing.T) {
	f := newFixture()
	room := f.engine.CreateRoom(f.p1)
	require.NoError(t, f.engine.Join(room.Code, f.p2))

	f.engine.Leave(f.p1)
	room.Mu.Lock()
	assert.Equal(t, "p2", room.HostID)
	assert.Len(t, room.Players, 1)
	room.Mu.Unlock()

	f.engine.Leave(f.p2)
	room.Mu.Lock()
	defer room.Mu.Unlock()
	assert.Empty(t, room.HostID)
	assert.Empty(t, room.Players)
}

func TestLeaveMidMatchResetsRoom(t *testing.T) {
	f := newFixture()
	room := f.startDuel(t)
	f.toWaiting(t, room)

	f.engine.Leave(f.p2)

	room.Mu.Lock()
	assert.Equal(t, models.PhaseLobby, room.Phase)
	assert.Equal(t, 0, room.Round)
	_, stillScored := room.Scores["p2"]
	assert.False(t, stillScored)
	room.Mu.Unlock()

	// The cancelled signal timer never fires after the reset.
	f.clock.Advance(20 * time.Second)
	assert.Equal(t, models.PhaseLobby, f.phase(room))
	assert.Empty(t, eventsOf[events.Signal](f.notifier))
}

func TestLeaveConcurrentWithPostRoundTimer(t *testing.T) {
	f := newFixture()
	room := f.startDuel(t)
	f.toWaiting(t, room)

	// Foul ends the round and arms the post-round timer.
	f.engine.Press(f.p2)
	require.Equal(t, models.PhaseResult, f.phase(room))

	// Leave races the timer: whichever wins the room lock, the other must
	// observe its effects rather than stale participant state.
	done := make(chan struct{})
	go func() {
		defer close(done)
		f.engine.Leave(f.p2)
	}()
	f.clock.Advance(4000 * time.Millisecond)
	<-done

	f.waitPhase(t, room, models.PhaseLobby)
	room.Mu.Lock()
	defer room.Mu.Unlock()
	assert.Len(t, room.Players, 1)
	assert.Equal(t, "p1", room.HostID)
	assert.Empty(t, f.p2.RoomCode)
	assert.False(t, f.p2.Ready)
	assert.Nil(t, f.p2.PressedAt)
}

func TestForceStop(t *testing.T) {
	f := newFixture()
	room := f.startDuel(t)
	f.toWaiting(t, room)

	require.ErrorIs(t, f.engine.ForceStop(f.p2), ErrNotHost)
	require.NoError(t, f.engine.ForceStop(f.p1))

	room.Mu.Lock()
	defer room.Mu.Unlock()
	assert.Equal(t, models.PhaseLobby, room.Phase)
	assert.Equal(t, 0, room.Round)
	assert.Equal(t, 0, room.Scores["p1"])
	assert.Equal(t, 0, room.Scores["p2"])
	assert.False(t, f.p2.Ready)
}

func TestFramesFromDelta(t *testing.T) {
	tests := []struct {
		delta time.Duration
		want  int
	}{
		{0, 0},
		{8 * time.Millisecond, 0},
		{9 * time.Millisecond, 1},
		{17 * time.Millisecond, 1},
		{25 * time.Millisecond, 2},
		{50 * time.Millisecond, 3},
		{67 * time.Millisecond, 4},
		{100 * time.Millisecond, 6},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, framesFromDelta(tt.delta), "delta %v", tt.delta)
	}
}

func TestReportPingRelaysToRoom(t *testing.T) {
	f := newFixture()
	room := f.engine.CreateRoom(f.p1)
	require.NoError(t, f.engine.Join(room.Code, f.p2))

	f.engine.ReportPing(f.p1, 42)
	f.engine.ReportPing(f.p2, -5)

	pings := eventsOf[events.OpponentPing](f.notifier)
	require.Len(t, pings, 2)
	assert.Equal(t, "p1", pings[0].ParticipantID)
	assert.Equal(t, 42, pings[0].PingMs)
	assert.Equal(t, 0, pings[1].PingMs)
}
