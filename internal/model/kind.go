package model

import (
	"encoding/json"
	"fmt"
	"slices"
)

// Kind names a tracked collection.
type Kind string

// Kinds.
const (
	KindGame Kind = "game"
	KindBook Kind = "book"
)

// Status is an item lifecycle state.
type Status string

// Statuses. Active is limited for games, Reading for books.
const (
	StatusActive    Status = "active"
	StatusReading   Status = "reading"
	StatusPaused    Status = "paused"
	StatusCasual    Status = "casual"
	StatusReference Status = "reference"
	StatusPlanned   Status = "planned"
	StatusFinished  Status = "finished"
	StatusDropped   Status = "dropped"
)

// Kinds lists every supported kind in display order.
var Kinds = []Kind{KindGame, KindBook}

// ParseKind accepts the singular or plural kind name.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "game", "games":
		return KindGame, nil
	case "book", "books":
		return KindBook, nil
	}
	return "", fmt.Errorf("unknown kind %q", s)
}

// Plural returns the collection name, used as the JSON file key.
func (k Kind) Plural() string {
	return string(k) + "s"
}

// LimitedStatus is the status capped by the owner's limit.
func (k Kind) LimitedStatus() Status {
	if k == KindBook {
		return StatusReading
	}
	return StatusActive
}

// Statuses returns the kind's statuses, limited first and terminal last.
func (k Kind) Statuses() []Status {
	if k == KindBook {
		return []Status{StatusReading, StatusPaused, StatusReference, StatusPlanned, StatusFinished, StatusDropped}
	}
	return []Status{StatusActive, StatusPaused, StatusCasual, StatusPlanned, StatusFinished, StatusDropped}
}

// ValidStatus reports whether s belongs to the kind.
func (k Kind) ValidStatus(s Status) bool {
	return slices.Contains(k.Statuses(), s)
}

// MaxTitleLen is the maximum title length in runes.
func (k Kind) MaxTitleLen() int {
	if k == KindBook {
		return 200
	}
	return 100
}

// HasAuthor reports whether items of this kind carry an author.
func (k Kind) HasAuthor() bool { return k == KindBook }

// HasProgress reports whether items of this kind carry free-text progress.
func (k Kind) HasProgress() bool { return k == KindBook }

// IsTerminal reports whether s ends an item's lifecycle.
func IsTerminal(s Status) bool {
	return s == StatusFinished || s == StatusDropped
}

// Counts summarises an owner's items per non-terminal status.
type Counts struct {
	Count    int            // items in the limited status
	Limit    int            // the owner's limit
	ByStatus map[Status]int // other non-terminal statuses
}

// MarshalJSON flattens the counts into {count, limit, <status>_count...}.
func (c Counts) MarshalJSON() ([]byte, error) {
	out := map[string]int{
		"count": c.Count,
		"limit": c.Limit,
	}
	for s, n := range c.ByStatus {
		out[string(s)+"_count"] = n
	}
	return json.Marshal(out)
}
