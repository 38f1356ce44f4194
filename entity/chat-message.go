package entity

import (
	"time"
)

// ChatDigest is the per-user projection of a history used to build the chat list.
type ChatDigest struct {
	UserID        string    `json:"user_id" bson:"user_id"`
	DisplayName   string    `json:"display_name" bson:"display_name"`
	FirstAt       time.Time `json:"first_at" bson:"first_at"`
	LastActivity  time.Time `json:"last_activity" bson:"last_activity"`
	LastText      string    `json:"last_text" bson:"last_text"`
	LastLifecycle Marker    `json:"last_lifecycle" bson:"last_lifecycle"`
}

func (d *ChatDigest) IsClosed() bool {
	return d.LastLifecycle == MarkerClosed
}

// ConversationSummary is one row of the admin chat list.
type ConversationSummary struct {
	UserID           string    `json:"userId"`
	DisplayName      string    `json:"username"`
	LastActivityTime time.Time `json:"lastActivityTime"`
	LastMessage      string    `json:"lastMessage,omitempty"`
	IsClosed         bool      `json:"isClosed"`
	Online           bool      `json:"online"`
}

// Digest folds an ordered history into its ChatDigest.
func Digest(userID string, messages []Message) ChatDigest {
	d := ChatDigest{UserID: userID}
	for i := range messages {
		m := &messages[i]
		if i == 0 {
			d.FirstAt = m.CreatedAt
		}
		if m.DisplayName != "" {
			d.DisplayName = m.DisplayName
		}
		if m.CountsAsActivity() {
			d.LastActivity = m.CreatedAt
			if m.IsImage() {
				d.LastText = "[image]"
			} else {
				d.LastText = m.Text
			}
		}
		if m.IsLifecycle() {
			d.LastLifecycle = m.Marker
		}
	}
	return d
}

// IsClosed reports whether the most recent lifecycle marker closes the chat.
// An empty history is open.
func IsClosed(messages []Message) bool {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].IsLifecycle() {
			return messages[i].Marker == MarkerClosed
		}
	}
	return false
}
