package minecraft

import (
	"time"

	"protonmc/internal/model"
)

// EventType classifies what happened to a server.
type EventType string

const (
	EventConsole     EventType = "console"
	EventState       EventType = "state"
	EventStartFailed EventType = "start_failed"
	EventPlayerJoin  EventType = "player_join"
	EventPlayerLeave EventType = "player_leave"
	EventAchievement EventType = "player_achievement"
)

// Event is published by instances to every registered Sink.
type Event struct {
	Type   EventType
	Server string
	Time   time.Time
	Line   string
	State  model.ServerState
	Player string
	Detail string
	Err    error
}

// Sink consumes server events. Implementations must not block.
type Sink interface {
	HandleEvent(Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Event)

func (f SinkFunc) HandleEvent(e Event) { f(e) }
