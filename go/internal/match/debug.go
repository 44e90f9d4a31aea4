package match

import (
	"github.com/duelgrounds/quickdraw/go/internal/models"
	"github.com/rs/zerolog/log"
)

// Development affordances. Clients rely on these, so they are part of the
// contract; they are deliberately not host-gated.

// SetInfiniteStaring toggles the flag that suspends the automatic signal
// schedule. Enabling mid-staring cancels the pending chain; disabling while
// still staring moves straight to waiting with a fresh random delay.
func (e *Engine) SetInfiniteStaring(p *models.Participant, enable bool) {
	room, ok := e.roomOf(p)
	if !ok {
		return
	}
	room.Mu.Lock()
	defer room.Mu.Unlock()

	room.InfiniteStaring = enable
	log.Info().Str("room", room.Code).Str("participant", p.ID).Bool("enabled", enable).Msg("infinite staring toggled")

	if room.Phase != models.PhaseStaring {
		return
	}
	if enable {
		cancelTimers(room)
		room.PlannedSignalAt = nil
		return
	}

	delay := e.randomSignalDelay()
	planned := e.clock.Now().Add(delay)
	room.PlannedSignalAt = &planned
	room.Phase = models.PhaseWaiting
	e.broadcastStateLocked(room)
	log.Info().Str("room", room.Code).Int("round", room.Round).Dur("to_signal", delay).Msg("infinite staring off, waiting for signal")
	e.schedule(room, delay, e.issueSignalLocked)
}

// PressOther manufactures a simultaneous press during the signaled phase. If
// the caller already pressed, their exact press time and frame count are
// mirrored onto the opponent, producing a tie by construction; otherwise both
// participants are stamped with the current instant. No-op in any other phase.
func (e *Engine) PressOther(p *models.Participant) {
	room, ok := e.roomOf(p)
	if !ok {
		return
	}
	room.Mu.Lock()
	defer room.Mu.Unlock()

	me := room.PlayerByID(p.ID)
	opponent := room.Opponent(p.ID)
	if me == nil || opponent == nil {
		return
	}
	if room.Phase != models.PhaseSignaled || room.SignalAt == nil {
		return
	}

	if me.PressedAt != nil {
		delta := me.PressedAt.Sub(*room.SignalAt)
		if delta < 0 {
			delta = 0
		}
		f := framesFromDelta(delta)
		pressedAt := *me.PressedAt
		opponent.PressedAt = &pressedAt
		room.Frames[opponent.ID] = &f
		log.Info().Str("room", room.Code).Int("round", room.Round).Int("frames", f).Msg("mirrored press onto opponent")
		e.concludeBySignalLocked(room)
		return
	}

	now := e.clock.Now()
	delta := now.Sub(*room.SignalAt)
	if delta < 0 {
		delta = 0
	}
	f := framesFromDelta(delta)
	mine, theirs := f, f
	myTime, theirTime := now, now
	me.PressedAt = &myTime
	opponent.PressedAt = &theirTime
	room.Frames[me.ID] = &mine
	room.Frames[opponent.ID] = &theirs
	log.Info().Str("room", room.Code).Int("round", room.Round).Int("frames", f).Msg("simulated simultaneous press")
	e.concludeBySignalLocked(room)
}
