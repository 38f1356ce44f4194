package ws

import (
	"encoding/json"
)

// Inbound event types, as sent by the chat widget and the admin panel.
const (
	EventUserJoined     = "user joined"
	EventChatMessage    = "chat message"
	EventImage          = "image"
	EventAgentMessage   = "agent message"
	EventAdminConnected = "admin connected"
	EventRequestHistory = "request chat history"
	EventCloseChat      = "close chat"
	EventRenameUser     = "rename user"
	EventDisconnect     = "disconnect"
)

// Outbound event types pushed to connections.
const (
	PushSession      = "session"
	PushChatMessage  = "chat message"
	PushImage        = "image"
	PushAdminMessage = "admin message"
	PushAdminImage   = "admin image"
	PushChatHistory  = "chat history"
	PushChatClosed   = "chat closed"
	PushNameUpdated  = "name updated"
	PushUserList     = "user list"
)

// endUserEvents are the only events accepted from unauthenticated connections.
var endUserEvents = map[string]bool{
	EventUserJoined:  true,
	EventChatMessage: true,
	EventImage:       true,
}

var knownEvents = map[string]bool{
	EventUserJoined:     true,
	EventChatMessage:    true,
	EventImage:          true,
	EventAgentMessage:   true,
	EventAdminConnected: true,
	EventRequestHistory: true,
	EventCloseChat:      true,
	EventRenameUser:     true,
	EventDisconnect:     true,
}

// MetricLabel keeps metric label values bounded: unknown event types are
// reported as "unknown".
func MetricLabel(eventType string) string {
	if knownEvents[eventType] {
		return eventType
	}
	return "unknown"
}

// Event is a message pushed to a connection.
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Conn is a live push channel to one party.
type Conn interface {
	ID() string
	Push(event *Event) error
}

// Inbound is one event received from a connection, ready for routing.
// Agent holds the authenticated agent username and is empty for end-users.
type Inbound struct {
	Conn  Conn
	Agent string
	Type  string
	Data  json.RawMessage
}

// Dispatcher receives inbound events from the hub.
type Dispatcher interface {
	Submit(ev Inbound)
}

// clientEvent is the envelope of an incoming websocket message.
type clientEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}
