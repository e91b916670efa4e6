package service

import (
	"context"
	"time"

	"github.com/goalnest/goalnest/internal/model"
	"github.com/goalnest/goalnest/internal/sharing"
)

// EventPublisher receives the typed event of every completed transition.
type EventPublisher interface {
	Publish(event model.Event)
}

// Relay is the remote sharing service as the workflow uses it.
type Relay interface {
	CreateRelationship(ctx context.Context, self sharing.Identity) (*sharing.Envelope, error)
	AcceptRelationship(ctx context.Context, token string, self sharing.Identity) (*sharing.Envelope, error)
	RelationshipStatus(ctx context.Context, relID string, self sharing.Identity) (*sharing.Envelope, error)
	SendMessage(ctx context.Context, self sharing.Identity, msg sharing.SendMessageRequest) (*sharing.Message, error)
	Messages(ctx context.Context, self sharing.Identity, after int64) ([]sharing.Message, error)
}

// HintProvider computes sub-goal suggestions for a goal.
type HintProvider interface {
	Hints(ctx context.Context, goal *model.Goal, parentTitle string) ([]model.GoalHint, error)
}

// EditPropagator forwards a changed goal to its participants, skipping the
// contact the change came from.
type EditPropagator interface {
	PropagateEdit(ctx context.Context, goal *model.Goal, skipContactID string)
}

// Clock returns the current time. Services store UTC.
type Clock func() time.Time

func systemClock() time.Time {
	return time.Now().UTC()
}

type nopPublisher struct{}

func (nopPublisher) Publish(model.Event) {}

func publish(events EventPublisher, action model.Action, goalID string, ancestry []string, at time.Time) {
	events.Publish(model.Event{
		Action:   action,
		GoalID:   goalID,
		Ancestry: ancestry,
		At:       at,
	})
}
