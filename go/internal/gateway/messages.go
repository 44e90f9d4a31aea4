package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Client→server actions. Every inbound frame is a JSON record with a type
// discriminator; DecodeAction validates the required fields for each type
// before anything is dispatched, so a malformed record is rejected at the
// boundary instead of propagating missing fields into the engine.

type CreateRoomAction struct{}

type JoinAction struct {
	RoomID string `json:"roomId"`
}

type SetReadyAction struct {
	Ready bool `json:"ready"`
}

type SetBestOfAction struct {
	BestOf int `json:"bestOf"`
}

type StartMatchAction struct{}

type ForceStopAction struct{}

type PressAction struct{}

type PingAction struct {
	T int64 `json:"t"`
}

type ReportPingAction struct {
	PingMs float64 `json:"pingMs"`
}

type SelectCharacterAction struct{}

type SetInfiniteStaringAction struct {
	Enable bool `json:"enable"`
}

type PressOtherAction struct{}

// Protocol-level rejections. These go back to the client as error events;
// the connection always survives them.
var (
	errInvalidJSON    = errors.New("invalid JSON")
	errInvalidMessage = errors.New("invalid message")
	errRoomIDRequired = errors.New("roomId required")
)

// DecodeAction parses one inbound frame into its typed action. The returned
// error carries the exact message sent back to the client.
func DecodeAction(data []byte) (any, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, errInvalidJSON
	}
	if head.Type == "" {
		return nil, errInvalidMessage
	}

	switch head.Type {
	case "create_room":
		return &CreateRoomAction{}, nil

	case "join":
		var a JoinAction
		if err := json.Unmarshal(data, &a); err != nil {
			return nil, errInvalidMessage
		}
		a.RoomID = strings.TrimSpace(a.RoomID)
		if a.RoomID == "" {
			return nil, errRoomIDRequired
		}
		return &a, nil

	case "set_ready":
		var a SetReadyAction
		if err := json.Unmarshal(data, &a); err != nil {
			return nil, errInvalidMessage
		}
		return &a, nil

	case "set_best_of":
		var a SetBestOfAction
		if err := json.Unmarshal(data, &a); err != nil {
			return nil, errInvalidMessage
		}
		return &a, nil

	case "start_match":
		return &StartMatchAction{}, nil

	case "force_stop":
		return &ForceStopAction{}, nil

	case "press":
		return &PressAction{}, nil

	case "ping":
		var a PingAction
		if err := json.Unmarshal(data, &a); err != nil {
			return nil, errInvalidMessage
		}
		return &a, nil

	case "report_ping":
		var a ReportPingAction
		if err := json.Unmarshal(data, &a); err != nil {
			return nil, errInvalidMessage
		}
		return &a, nil

	case "select_character":
		return &SelectCharacterAction{}, nil

	case "debug_set_infinite_staring":
		var a SetInfiniteStaringAction
		if err := json.Unmarshal(data, &a); err != nil {
			return nil, errInvalidMessage
		}
		return &a, nil

	case "debug_press_other":
		return &PressOtherAction{}, nil

	default:
		return nil, fmt.Errorf("unknown message type: %s", head.Type)
	}
}
