package model

import "time"

type Contact struct {
	ID             string    `db:"id" json:"id"`
	Name           string    `db:"name" json:"name"`
	Email          string    `db:"email" json:"email,omitempty"`
	RelationshipID string    `db:"relationship_id" json:"relationshipId"`
	Accepted       bool      `db:"accepted" json:"accepted"`
	CreatedAt      time.Time `db:"created_at" json:"createdAt"`
}

// Invitation is what the inviting side holds after creating a contact
// placeholder: the link to hand over and the pending contact it is bound to.
type Invitation struct {
	Link    string   `json:"link"`
	Token   string   `json:"token"`
	Contact *Contact `json:"contact"`
}
