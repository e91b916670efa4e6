package model

import "time"

type HintRecord struct {
	ID            string     `db:"id" json:"id"`
	GoalID        string     `db:"goal_id" json:"goalItemId"`
	HintEnabled   bool       `db:"hint_enabled" json:"hintEnabled"`
	LastCheckedAt time.Time  `db:"last_checked_at" json:"lastCheckedDate"`
	NextCheckAt   time.Time  `db:"next_check_at" json:"nextCheckDate"`
	GoalHints     []GoalHint `db:"-" json:"goalHints"`
	Dismissed     []GoalHint `db:"-" json:"deletedGoalHints"`
}

// GoalHint is one suggested sub-goal. Dismissed hints carry no ID.
type GoalHint struct {
	ID          string `db:"id" json:"id,omitempty"`
	Title       string `db:"title" json:"title"`
	Duration    string `db:"duration" json:"duration,omitempty"`
	ParentTitle string `db:"parent_title" json:"parentTitle,omitempty"`
}
