package match

import (
	"sync"
	"time"

	"github.com/duelgrounds/quickdraw/go/internal/models"
	"github.com/jonboulle/clockwork"
)

// roomTimer is a cancellable one-shot timer registered on a room. A fired
// timer only runs its callback if it is still registered, so a handle
// cancelled by a later phase can never corrupt that phase.
type roomTimer struct {
	timer  clockwork.Timer
	cancel chan struct{}
	once   sync.Once
}

func (t *roomTimer) Cancel() {
	t.once.Do(func() { close(t.cancel) })
}

// schedule arms a one-shot timer for the room. Must be called with the room
// lock held; fn likewise runs with the room lock held.
func (e *Engine) schedule(room *models.Room, d time.Duration, fn func(*models.Room)) {
	rt := &roomTimer{
		timer:  e.clock.NewTimer(d),
		cancel: make(chan struct{}),
	}
	room.Timers = append(room.Timers, rt)

	go func() {
		select {
		case <-rt.timer.Chan():
			room.Mu.Lock()
			defer room.Mu.Unlock()
			// A cancel may have raced the firing; only proceed while the
			// handle is still registered.
			if !unregisterTimer(room, rt) {
				return
			}
			fn(room)
		case <-rt.cancel:
			stopAndDrainTimer(rt.timer)
		}
	}()
}

// cancelTimers cancels every outstanding timer for the room. Must be called
// with the room lock held; every phase transition goes through here before
// scheduling anything new.
func cancelTimers(room *models.Room) {
	for _, h := range room.Timers {
		h.Cancel()
	}
	room.Timers = room.Timers[:0]
}

// unregisterTimer removes rt from the room's handle set, reporting whether it
// was still registered.
func unregisterTimer(room *models.Room, rt *roomTimer) bool {
	for i, h := range room.Timers {
		if h == rt {
			room.Timers = append(room.Timers[:i], room.Timers[i+1:]...)
			return true
		}
	}
	return false
}

// stopAndDrainTimer safely stops a timer and drains its channel, following
// the pattern from the time.Timer.Stop documentation.
func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}
