package model

import (
	"time"
)

const RootGoalID = "root"

const (
	GoalTypeMine         = "myGoal"
	GoalTypeShared       = "shared"
	GoalTypeCollaborated = "collaborated"
)

type Goal struct {
	ID           string    `db:"id" json:"id"`
	Title        string    `db:"title" json:"title"`
	ParentGoalID string    `db:"parent_goal_id" json:"parentGoalId"`
	TypeOfGoal   string    `db:"type_of_goal" json:"typeOfGoal"`
	Archived     bool      `db:"archived" json:"archived"`
	Color        string    `db:"color" json:"color"`
	Participants []string  `db:"-" json:"participants"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time `db:"updated_at" json:"updatedAt"`

	// Set on collaborated copies: the goal id on the sharing side and the
	// relationship it arrived through.
	SourceGoalID         string `db:"source_goal_id" json:"sourceGoalId,omitempty"`
	SourceRelationshipID string `db:"source_relationship_id" json:"sourceRelationshipId,omitempty"`
}

func (g *Goal) IsRoot() bool {
	return g.ParentGoalID == "" || g.ParentGoalID == RootGoalID
}

func (g *Goal) IsShared() bool {
	return len(g.Participants) > 0
}
