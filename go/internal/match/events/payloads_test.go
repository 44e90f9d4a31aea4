package events

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Clients distinguish "did not press" (null) from "absent"; the optional
// countdown timestamp must disappear entirely when unset.
func TestRoundResultWireShape(t *testing.T) {
	three := 3
	winner := "p1"
	data, err := json.Marshal(RoundResult{
		Type:     TypeRoundResult,
		Round:    2,
		Reason:   ReasonSignal,
		WinnerID: &winner,
		Frames:   map[string]*int{"p1": &three, "p2": nil},
		Scores:   map[string]int{"p1": 1, "p2": 0},
	})
	require.NoError(t, err)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.JSONEq(t, `{"p1":3,"p2":null}`, string(raw["frames"]))
	assert.NotContains(t, string(data), "earlyBy")
}

func TestRoundStartingOmitsUnplannedSignal(t *testing.T) {
	data, err := json.Marshal(RoundStarting{Type: TypeRoundStarting, Round: 1})
	require.NoError(t, err)
	assert.NotContains(t, string(data), "plannedSignalAt")

	at := int64(1700000000000)
	data, err = json.Marshal(RoundStarting{Type: TypeRoundStarting, Round: 1, PlannedSignalAt: &at})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"plannedSignalAt":1700000000000`)
}

func TestDrawRoundResultKeepsNullWinner(t *testing.T) {
	data, err := json.Marshal(RoundResult{
		Type:   TypeRoundResult,
		Round:  1,
		Reason: ReasonSignal,
		Frames: map[string]*int{},
		Scores: map[string]int{},
	})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"winnerId":null`)
}
