package model

import "time"

const (
	SharedGoalPending      = "pending"
	SharedGoalCollaborated = "collaborated"
)

// SharedGoal is a goal received from a contact that has not (yet) been turned
// into a collaborated copy.
type SharedGoal struct {
	ID             string    `db:"id" json:"id"`
	RelationshipID string    `db:"relationship_id" json:"relationshipId"`
	ContactID      string    `db:"contact_id" json:"contactId"`
	SourceGoalID   string    `db:"source_goal_id" json:"sourceGoalId"`
	Title          string    `db:"title" json:"title"`
	Color          string    `db:"color" json:"color"`
	Status         string    `db:"status" json:"status"`
	ReceivedAt     time.Time `db:"received_at" json:"receivedAt"`
}

// AsGoal renders the share the way goal lists show it.
func (s *SharedGoal) AsGoal() *Goal {
	var participants []string
	if s.ContactID != "" {
		participants = []string{s.ContactID}
	}
	return &Goal{
		ID:                   s.ID,
		Title:                s.Title,
		ParentGoalID:         RootGoalID,
		TypeOfGoal:           GoalTypeShared,
		Color:                s.Color,
		Participants:         participants,
		CreatedAt:            s.ReceivedAt,
		UpdatedAt:            s.ReceivedAt,
		SourceGoalID:         s.SourceGoalID,
		SourceRelationshipID: s.RelationshipID,
	}
}
