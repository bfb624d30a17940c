// Package tracker holds the status and limit rules shared by every storage backend.
package tracker

import (
	"context"

	"github.com/erazemk/gametracker/internal/model"
)

// Store owns the items of one kind. Implementations serialise mutations
// so a check and its write are never interleaved with another mutation.
type Store interface {
	Kind() model.Kind
	ListGrouped(ctx context.Context, ownerID int64) (map[model.Status][]model.Item, error)
	ListAll(ctx context.Context, ownerID int64) ([]model.Item, error)
	Counts(ctx context.Context, ownerID int64) (*model.Counts, error)
	Add(ctx context.Context, ownerID int64, c model.ItemCreate) (*model.Item, error)
	Update(ctx context.Context, ownerID, id int64, u model.ItemUpdate) (*model.Item, error)
	Delete(ctx context.Context, ownerID, id int64) error
	SetLimit(ctx context.Context, ownerID int64, limit int) (*model.Counts, error)
	Total(ctx context.Context, status model.Status) (int, error)
}

// Default limits.
const (
	DefaultLimit    = 3
	DefaultMaxLimit = 20
)

// Policy bounds the limits an owner may choose.
type Policy struct {
	MaxLimit int
}

// CheckLimit rejects limits outside [1, MaxLimit].
func (p Policy) CheckLimit(limit int) error {
	max := p.MaxLimit
	if max <= 0 {
		max = DefaultMaxLimit
	}
	if limit < 1 || limit > max {
		return &InvalidLimitError{Limit: limit, Max: max}
	}
	return nil
}
