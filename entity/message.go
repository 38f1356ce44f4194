package entity

import (
	"time"
)

type Sender string

const (
	SenderEndUser Sender = "User"
	SenderAgent   Sender = "Agent"
	SenderBot     Sender = "Bot"
	SenderSystem  Sender = "System"
)

// Marker tags a System message that records a lifecycle transition.
type Marker string

const (
	MarkerNone     Marker = ""
	MarkerStarted  Marker = "started"
	MarkerOpened   Marker = "opened"
	MarkerReopened Marker = "reopened"
	MarkerClosed   Marker = "closed"
)

const StatusClosed = "closed"

// Message is one immutable entry of a user's chat history.
type Message struct {
	ID          string    `json:"id,omitempty" bson:"-"`
	UserID      string    `json:"userId" bson:"user_id"`
	DisplayName string    `json:"username,omitempty" bson:"display_name"`
	Sender      Sender    `json:"sender" bson:"sender"`
	Text        string    `json:"message,omitempty" bson:"text,omitempty"`
	Image       string    `json:"image,omitempty" bson:"image,omitempty"`
	Marker      Marker    `json:"marker,omitempty" bson:"marker,omitempty"`
	Status      string    `json:"status,omitempty" bson:"status,omitempty"`
	CreatedAt   time.Time `json:"timestamp" bson:"created_at"`
}

func (m *Message) IsImage() bool {
	return m.Image != ""
}

func (m *Message) IsClosing() bool {
	return m.Status == StatusClosed
}

// IsLifecycle reports whether the message decides the open/closed state.
func (m *Message) IsLifecycle() bool {
	switch m.Marker {
	case MarkerStarted, MarkerReopened, MarkerClosed:
		return true
	}
	return false
}

// CountsAsActivity reports whether the message moves the conversation's
// last activity time. Closing markers and agent-viewed markers do not.
func (m *Message) CountsAsActivity() bool {
	return !m.IsClosing() && m.Marker != MarkerOpened
}

// MessageFilter selects messages for deletion. Zero fields match anything.
type MessageFilter struct {
	Status string
	Before time.Time
}

func (f MessageFilter) Match(m *Message) bool {
	if f.Status != "" && m.Status != f.Status {
		return false
	}
	if !f.Before.IsZero() && !m.CreatedAt.Before(f.Before) {
		return false
	}
	return true
}
