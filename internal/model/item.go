package model

import "time"

// DefaultOwnerID owns every item when the tracker runs without accounts.
const DefaultOwnerID int64 = 1

// Item is a tracked game or book.
type Item struct {
	ID        int64      `json:"id"`
	OwnerID   int64      `json:"owner_id"`
	Kind      Kind       `json:"-"`
	Title     string     `json:"title"`
	Author    string     `json:"author,omitempty"`
	Status    Status     `json:"status"`
	Notes     string     `json:"notes"`
	Rating    *int       `json:"rating"`
	Reason    string     `json:"reason"`
	Progress  string     `json:"progress,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	EndedAt   *time.Time `json:"ended_at"`
}

// ItemCreate holds the fields accepted when adding an item.
// An empty Status means the kind's limited status.
type ItemCreate struct {
	Title    string
	Author   string
	Status   Status
	Notes    string
	Rating   *int
	Reason   string
	Progress string
}

// ItemUpdate holds a partial update. Nil fields are left untouched.
// ClearRating removes the rating and wins over Rating.
type ItemUpdate struct {
	Title       *string
	Author      *string
	Status      *Status
	Notes       *string
	Rating      *int
	ClearRating bool
	Reason      *string
	Progress    *string
}

// Rating bounds.
const (
	MinRating = 0
	MaxRating = 10
)
