package match

import (
	"math"
	"math/rand/v2"
	"time"

	"github.com/duelgrounds/quickdraw/go/internal/match/events"
	"github.com/duelgrounds/quickdraw/go/internal/models"
	"github.com/rs/zerolog/log"
)

// frameDuration is one logical frame at 60 fps. Reaction latency is reported
// as whole frames, rounded to nearest.
const frameDuration = time.Second / 60

// concludeGrace is one frame plus slack. After the first press of a round a
// conclusion is delayed by this much so a near-simultaneous second press can
// land in the same tick window instead of being reported as no response.
const concludeGrace = 19 * time.Millisecond

func framesFromDelta(d time.Duration) int {
	return int(math.Round(float64(d) / float64(frameDuration)))
}

// startRoundLocked begins the next round: bumps the counter, resets per-round
// state, enters staring and arms the staring→waiting→signal timer chain.
// While infinite staring is on, no planned timestamp is computed and no timer
// is armed; the round holds in staring until toggled off.
func (e *Engine) startRoundLocked(room *models.Room) {
	if len(room.Players) < models.MaxPlayers {
		return
	}

	room.Round++
	room.Phase = models.PhaseStaring
	room.SignalAt = nil
	room.PlannedSignalAt = nil
	room.EarlyBy = nil
	room.WinnerID = nil
	room.Frames = make(map[string]*int, len(room.Players))
	for _, m := range room.Players {
		room.Frames[m.ID] = nil
		m.PressedAt = nil
	}

	now := e.clock.Now()
	room.RoundStartAt = &now
	total := e.cfg.StaringDuration + e.randomSignalDelay()
	if !room.InfiniteStaring {
		planned := now.Add(total)
		room.PlannedSignalAt = &planned
	}

	e.notifier.Broadcast(room, events.RoundStarting{
		Type:            events.TypeRoundStarting,
		Round:           room.Round,
		PlannedSignalAt: unixMsPtr(room.PlannedSignalAt),
	})
	log.Info().
		Str("room", room.Code).
		Int("round", room.Round).
		Dur("staring", e.cfg.StaringDuration).
		Dur("total", total).
		Msg("round starting")

	if room.InfiniteStaring {
		log.Info().Str("room", room.Code).Int("round", room.Round).Msg("infinite staring on, holding staring phase")
		return
	}

	staring := e.cfg.StaringDuration
	e.schedule(room, staring, func(r *models.Room) {
		r.Phase = models.PhaseWaiting
		e.broadcastStateLocked(r)
		log.Info().Str("room", r.Code).Int("round", r.Round).Dur("to_signal", total-staring).Msg("waiting for signal")
		e.schedule(r, total-staring, e.issueSignalLocked)
	})
}

// randomSignalDelay draws the extra delay uniformly, inclusive of both
// bounds, at millisecond granularity.
func (e *Engine) randomSignalDelay() time.Duration {
	minMs := e.cfg.SignalDelayMin.Milliseconds()
	maxMs := e.cfg.SignalDelayMax.Milliseconds()
	if maxMs <= minMs {
		return time.Duration(minMs) * time.Millisecond
	}
	return time.Duration(minMs+rand.Int64N(maxMs-minMs+1)) * time.Millisecond
}

// issueSignalLocked stamps the authoritative signal time and broadcasts it.
// Skipped if the room lost a player or the round already ended on a foul.
func (e *Engine) issueSignalLocked(room *models.Room) {
	if len(room.Players) < models.MaxPlayers {
		return
	}
	if room.EarlyBy != nil {
		return
	}
	room.Phase = models.PhaseSignaled
	now := e.clock.Now()
	room.SignalAt = &now
	log.Info().Str("room", room.Code).Int("round", room.Round).Time("signal_at", now).Msg("signal issued")
	e.notifier.Broadcast(room, events.Signal{Type: events.TypeSignal, T: now.UnixMilli()})
}

// Press handles a participant's button press. What it means depends entirely
// on the phase: ignored while staring, a foul while waiting, a timed reaction
// while signaled, nothing otherwise.
func (e *Engine) Press(p *models.Participant) {
	room, ok := e.roomOf(p)
	if !ok {
		return
	}
	room.Mu.Lock()
	defer room.Mu.Unlock()

	if len(room.Players) < models.MaxPlayers {
		return
	}

	switch room.Phase {
	case models.PhaseStaring:
		// Grace window: too early to even count as a foul.
		return

	case models.PhaseWaiting:
		log.Info().Str("room", room.Code).Int("round", room.Round).Str("participant", p.ID).Msg("early press")
		cancelTimers(room)
		e.endRoundEarlyLocked(room, p.ID)

	case models.PhaseSignaled:
		if room.SignalAt == nil || p.PressedAt != nil {
			return
		}
		now := e.clock.Now()
		p.PressedAt = &now
		delta := now.Sub(*room.SignalAt)
		if delta < 0 {
			delta = 0
		}
		f := framesFromDelta(delta)
		room.Frames[p.ID] = &f
		log.Info().
			Str("room", room.Code).
			Int("round", room.Round).
			Str("participant", p.ID).
			Dur("delta", delta).
			Int("frames", f).
			Msg("press recorded")

		opponent := room.Opponent(p.ID)
		if opponent != nil && opponent.PressedAt != nil {
			e.concludeBySignalLocked(room)
		} else {
			e.schedule(room, concludeGrace, e.concludeBySignalLocked)
		}
	}
}

// endRoundEarlyLocked ends the round on a foul, crediting the opponent.
func (e *Engine) endRoundEarlyLocked(room *models.Room, earlyID string) {
	room.Phase = models.PhaseResult
	early := earlyID
	room.EarlyBy = &early
	if opponent := room.Opponent(earlyID); opponent != nil {
		winner := opponent.ID
		room.WinnerID = &winner
		room.Scores[opponent.ID]++
	} else {
		room.WinnerID = nil
	}

	log.Info().
		Str("room", room.Code).
		Int("round", room.Round).
		Str("early_by", earlyID).
		Msg("round ended early")
	e.notifier.Broadcast(room, events.RoundResult{
		Type:     events.TypeRoundResult,
		Round:    room.Round,
		Reason:   events.ReasonEarly,
		EarlyBy:  room.EarlyBy,
		WinnerID: room.WinnerID,
		Frames:   copyFrames(room.Frames),
		Scores:   copyScores(room.Scores),
	})
	e.schedulePostRoundLocked(room)
}

// concludeBySignalLocked compares both reactions and settles the round. Only
// valid while signaled; a stale grace timer firing after the round already
// concluded falls through here harmlessly.
func (e *Engine) concludeBySignalLocked(room *models.Room) {
	if room.Phase != models.PhaseSignaled {
		return
	}
	cancelTimers(room)
	room.Phase = models.PhaseResult

	room.WinnerID = nil
	if len(room.Players) >= models.MaxPlayers {
		id0, id1 := room.Players[0].ID, room.Players[1].ID
		f0, f1 := room.Frames[id0], room.Frames[id1]
		switch {
		case f0 != nil && f1 != nil:
			if *f0 < *f1 {
				room.WinnerID = &id0
			} else if *f1 < *f0 {
				room.WinnerID = &id1
			}
		case f0 != nil:
			room.WinnerID = &id0
		case f1 != nil:
			room.WinnerID = &id1
		}
	}
	if room.WinnerID != nil {
		room.Scores[*room.WinnerID]++
	}

	winner := "draw"
	if room.WinnerID != nil {
		winner = *room.WinnerID
	}
	log.Info().
		Str("room", room.Code).
		Int("round", room.Round).
		Str("winner", winner).
		Msg("round concluded by signal")
	e.notifier.Broadcast(room, events.RoundResult{
		Type:     events.TypeRoundResult,
		Round:    room.Round,
		Reason:   events.ReasonSignal,
		WinnerID: room.WinnerID,
		Frames:   copyFrames(room.Frames),
		Scores:   copyScores(room.Scores),
	})
	e.schedulePostRoundLocked(room)
}

// schedulePostRoundLocked queues either the match-over announcement or the
// next round, both after the fixed post-round delay.
func (e *Engine) schedulePostRoundLocked(room *models.Room) {
	winnerID := room.MatchWinnerID()
	if winnerID == "" {
		log.Info().Str("room", room.Code).Int("round", room.Round).Dur("in", e.cfg.PostRoundDelay).Msg("next round queued")
		e.schedule(room, e.cfg.PostRoundDelay, e.startRoundLocked)
		return
	}

	log.Info().Str("room", room.Code).Str("winner", winnerID).Msg("match decided")
	e.schedule(room, e.cfg.PostRoundDelay, func(r *models.Room) {
		e.notifier.Broadcast(r, events.MatchOver{
			Type:     events.TypeMatchOver,
			BestOf:   r.BestOf,
			WinnerID: winnerID,
			Scores:   copyScores(r.Scores),
		})
		e.resetToLobbyLocked(r, true)
		e.broadcastStateLocked(r)
	})
}
