package sharing

import (
	"time"

	"github.com/goalnest/goalnest/internal/model"
)

const (
	StatusOK    = "ok"
	StatusError = "error"
)

const (
	MessageShare  = "share"
	MessageUpdate = "update"
)

// Envelope is the body of every relay response. Fields that do not apply to
// an endpoint are left empty.
type Envelope struct {
	Status         string        `json:"status"`
	Error          string        `json:"error,omitempty"`
	RelID          string        `json:"relId,omitempty"`
	RelationshipID string        `json:"relationshipId,omitempty"`
	InviteToken    string        `json:"inviteToken,omitempty"`
	AccessToken    string        `json:"accessToken,omitempty"`
	Accepted       bool          `json:"accepted,omitempty"`
	Peer           *Peer         `json:"peer,omitempty"`
	ShareMessage   *Message      `json:"shareMessage,omitempty"`
	Messages       []Message     `json:"messages,omitempty"`
	GoalHints      []HintPayload `json:"goalHints,omitempty"`
}

type Peer struct {
	InstallID string `json:"installId" validate:"required"`
	Name      string `json:"name" validate:"required,max=100"`
}

// Identity is this installation as it calls the relay. Token is the access
// token the relay issued on first contact; it travels in the Authorization
// header only.
type Identity struct {
	Peer
	Token string `json:"-"`
}

type GoalPayload struct {
	ID           string `json:"id" validate:"required"`
	Title        string `json:"title" validate:"required"`
	Color        string `json:"color"`
	ParentGoalID string `json:"parentGoalId"`
}

type Message struct {
	ID       string      `json:"id"`
	Seq      int64       `json:"seq"`
	RelID    string      `json:"relId"`
	Type     string      `json:"type"`
	SenderID string      `json:"senderId"`
	Goal     GoalPayload `json:"goal"`
	SentAt   time.Time   `json:"sentAt"`
}

type HintPayload struct {
	Title       string `json:"title"`
	Duration    string `json:"duration,omitempty"`
	ParentTitle string `json:"parentTitle,omitempty"`
}

// Request bodies.

type CreateRelationshipRequest struct {
	Peer
}

type AcceptRelationshipRequest struct {
	InviteToken string `json:"inviteToken" validate:"required"`
	Peer
}

type SendMessageRequest struct {
	RelID    string      `json:"relId" validate:"required"`
	SenderID string      `json:"senderId" validate:"required"`
	Type     string      `json:"type" validate:"required,oneof=share update"`
	Goal     GoalPayload `json:"goal"`
}

type HintsRequest struct {
	Title       string `json:"title" validate:"required"`
	ParentTitle string `json:"parentTitle"`
}

func GoalPayloadFrom(goal *model.Goal) GoalPayload {
	return GoalPayload{
		ID:           goal.ID,
		Title:        goal.Title,
		Color:        goal.Color,
		ParentGoalID: goal.ParentGoalID,
	}
}
