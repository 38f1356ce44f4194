package entity

import (
	"ChatRelay/internal/lib/validate"
)

// Inbound payloads. Field names follow the widget's socket protocol.

type JoinPayload struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"username" validate:"required"`
}

type UserMessagePayload struct {
	UserID  string `json:"userId" validate:"required"`
	Sender  string `json:"sender" validate:"required"`
	Message string `json:"message" validate:"required"`
}

type ImagePayload struct {
	UserID string `json:"userId" validate:"required"`
	Sender string `json:"sender" validate:"required"`
	Image  string `json:"image" validate:"required"`
}

type AgentMessagePayload struct {
	UserID  string `json:"userId" validate:"required"`
	Message string `json:"message" validate:"required"`
}

type HistoryRequestPayload struct {
	UserID string `json:"userId" validate:"required"`
}

type ClosePayload struct {
	UserID        string `json:"userId" validate:"required"`
	AgentUsername string `json:"agentUsername"`
}

type RenamePayload struct {
	UserID      string `json:"userId" validate:"required"`
	DisplayName string `json:"newUsername" validate:"required"`
}

func (p *JoinPayload) Validate() error         { return validate.Struct(p) }
func (p *UserMessagePayload) Validate() error  { return validate.Struct(p) }
func (p *ImagePayload) Validate() error        { return validate.Struct(p) }
func (p *AgentMessagePayload) Validate() error { return validate.Struct(p) }
func (p *HistoryRequestPayload) Validate() error {
	return validate.Struct(p)
}
func (p *ClosePayload) Validate() error  { return validate.Struct(p) }
func (p *RenamePayload) Validate() error { return validate.Struct(p) }

// SenderFromRole maps the role sent by a widget to a Sender. Anything that is
// not an agent or bot is treated as the end-user.
func SenderFromRole(role string) Sender {
	switch Sender(role) {
	case SenderAgent:
		return SenderAgent
	case SenderBot:
		return SenderBot
	}
	return SenderEndUser
}

// History is the payload of a full history replay.
type History struct {
	UserID   string    `json:"userId"`
	Messages []Message `json:"messages"`
}

// SessionInfo is pushed to an end-user connection after joining or renaming.
type SessionInfo struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"username"`
}
