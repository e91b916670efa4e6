package model

import "time"

// Action tags the last state transition so that views know what to refresh.
type Action string

const (
	ActionNone             Action = "none"
	ActionGoalCreated      Action = "goalCreated"
	ActionGoalUpdated      Action = "goalUpdated"
	ActionGoalMoved        Action = "goalMoved"
	ActionGoalArchived     Action = "goalArchived"
	ActionGoalUnarchived   Action = "goalUnarchived"
	ActionGoalDeleted      Action = "goalDeleted"
	ActionGoalRestored     Action = "goalRestored"
	ActionGoalShared       Action = "goalShared"
	ActionGoalColabRequest Action = "goalColabRequest"
	ActionShareReceived    Action = "shareReceived"
	ActionContactAdded     Action = "contactAdded"
	ActionContactAccepted  Action = "contactAccepted"
	ActionHintsUpdated     Action = "hintsUpdated"
)

type Event struct {
	Action   Action    `json:"action"`
	GoalID   string    `json:"goalId,omitempty"`
	Ancestry []string  `json:"ancestry,omitempty"`
	At       time.Time `json:"at"`
}
