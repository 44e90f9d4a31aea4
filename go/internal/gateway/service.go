package gateway

import (
	"math"
	"time"

	"github.com/duelgrounds/quickdraw/go/internal/match"
	"github.com/duelgrounds/quickdraw/go/internal/match/events"
	"github.com/rs/zerolog/log"
)

const welcomeMessage = "Welcome to the quickdraw duel server"

// Positional seating is an intentional design constraint, not a bug.
const roleSelectionDisabled = "Role selection is disabled. Player 1 is the ronin, player 2 is the shogun."

// Service routes decoded client actions into the match engine and maps
// engine rejections back to error events. It is the ConnectionManager's
// MessageHandler.
type Service struct {
	engine  *match.Engine
	manager *ConnectionManager
}

// NewService wires the gateway: the manager delivers inbound frames here,
// and the engine broadcasts through the manager.
func NewService(engine *match.Engine, manager *ConnectionManager) *Service {
	s := &Service{
		engine:  engine,
		manager: manager,
	}
	manager.SetHandler(s)
	return s
}

// Manager exposes the connection manager, mainly for stats endpoints.
func (s *Service) Manager() *ConnectionManager {
	return s.manager
}

// Greet sends the hello event to a freshly opened connection.
func (s *Service) Greet(c *Connection) {
	c.SendEvent(events.Hello{Type: events.TypeHello, Message: welcomeMessage})
}

// HandleMessage decodes and dispatches one inbound frame. Anything malformed
// or unrecognized gets an error reply; the connection always stays open.
func (s *Service) HandleMessage(c *Connection, data []byte) {
	action, err := DecodeAction(data)
	if err != nil {
		log.Debug().
			Str("connection_id", c.ID).
			Str("participant", c.Participant.ID).
			Err(err).
			Msg("rejected inbound message")
		s.sendError(c, err.Error())
		return
	}

	p := c.Participant
	switch a := action.(type) {
	case *CreateRoomAction:
		s.engine.CreateRoom(p)

	case *JoinAction:
		err = s.engine.Join(a.RoomID, p)

	case *SetReadyAction:
		err = s.engine.SetReady(p, a.Ready)

	case *SetBestOfAction:
		err = s.engine.SetBestOf(p, a.BestOf)

	case *StartMatchAction:
		err = s.engine.StartMatch(p)

	case *ForceStopAction:
		err = s.engine.ForceStop(p)

	case *PressAction:
		s.engine.Press(p)

	case *PingAction:
		t := a.T
		if t == 0 {
			t = time.Now().UnixMilli()
		}
		c.SendEvent(events.Pong{Type: events.TypePong, T: t})

	case *ReportPingAction:
		s.engine.ReportPing(p, int(math.Floor(a.PingMs)))

	case *SelectCharacterAction:
		s.sendError(c, roleSelectionDisabled)

	case *SetInfiniteStaringAction:
		s.engine.SetInfiniteStaring(p, a.Enable)

	case *PressOtherAction:
		s.engine.PressOther(p)
	}

	if err != nil {
		s.sendError(c, err.Error())
	}
}

// HandleDisconnect treats a dropped connection as an implicit leave.
func (s *Service) HandleDisconnect(c *Connection) {
	log.Info().
		Str("connection_id", c.ID).
		Str("participant", c.Participant.ID).
		Str("room", c.Participant.RoomCode).
		Msg("connection closed")
	s.engine.Leave(c.Participant)
}

func (s *Service) sendError(c *Connection, message string) {
	c.SendEvent(events.Error{Type: events.TypeError, Message: message})
}
