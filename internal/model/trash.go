package model

import "time"

type TrashItem struct {
	Goal
	DeletedAt time.Time `json:"deletedAt"`
}

// ExpiresAt is when the item stops being restorable.
func (t *TrashItem) ExpiresAt(retention time.Duration) time.Time {
	return t.DeletedAt.Add(retention)
}
