package rooms

import (
	"regexp"
	"testing"

	"github.com/duelgrounds/quickdraw/go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocateCreatesLobbyRoom(t *testing.T) {
	s := NewStore()
	room := s.Allocate()

	assert.Regexp(t, regexp.MustCompile(`^[1-9][0-9]{3}$`), room.Code)
	assert.Equal(t, models.PhaseLobby, room.Phase)
	assert.Equal(t, models.DefaultBestOf, room.BestOf)
	assert.Empty(t, room.Players)
	assert.Empty(t, room.Scores)

	got, ok := s.Get(room.Code)
	require.True(t, ok)
	assert.Same(t, room, got)
}

func TestAllocateDrawsUniqueCodes(t *testing.T) {
	s := NewStore()
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		room := s.Allocate()
		require.False(t, seen[room.Code], "duplicate code %s", room.Code)
		seen[room.Code] = true
	}
	assert.Equal(t, 200, s.Count())
}

func TestGetUnknownCode(t *testing.T) {
	s := NewStore()
	_, ok := s.Get("1234")
	assert.False(t, ok)
}
