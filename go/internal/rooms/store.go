package rooms

import (
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/duelgrounds/quickdraw/go/internal/models"
	"github.com/rs/zerolog/log"
)

// Store owns the mapping from room code to Room. Rooms are created lazily and
// live for the lifetime of the process; there is no eviction, so growth is
// bounded only by how many rooms get created.
type Store struct {
	mu    sync.RWMutex
	rooms map[string]*models.Room
}

// NewStore creates an empty room store.
func NewStore() *Store {
	return &Store{
		rooms: make(map[string]*models.Room),
	}
}

// Allocate creates a new room in the lobby phase under a freshly drawn code
// and returns it. Codes are 4-digit numeric strings in [1000, 9999]; a draw
// colliding with a live room is retried before the room becomes observable.
func (s *Store) Allocate() *models.Room {
	s.mu.Lock()
	defer s.mu.Unlock()

	var code string
	for {
		code = fmt.Sprintf("%d", 1000+rand.IntN(9000))
		if _, taken := s.rooms[code]; !taken {
			break
		}
	}

	room := &models.Room{
		Code:   code,
		Scores: make(map[string]int),
		Phase:  models.PhaseLobby,
		BestOf: models.DefaultBestOf,
		Frames: make(map[string]*int),
	}
	s.rooms[code] = room

	log.Info().Str("room", code).Int("total_rooms", len(s.rooms)).Msg("room created")
	return room
}

// Get looks up a room by code.
func (s *Store) Get(code string) (*models.Room, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, ok := s.rooms[code]
	return room, ok
}

// Count returns the number of live rooms.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms)
}
