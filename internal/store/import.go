package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/erazemk/gametracker/internal/db"
	"github.com/erazemk/gametracker/internal/model"
	"github.com/erazemk/gametracker/internal/tracker"
)

// ImportItems copies items into the database for an owner, keeping their
// status and timestamps. Items get new ids. A positive limit replaces the
// owner's limit for the kind. Nothing is written if an item is invalid or
// the owner would end up with more items in the limited status than the
// limit allows.
func ImportItems(ctx context.Context, d *db.DB, kind model.Kind, ownerID int64, items []model.Item, limit int) (int, error) {
	checked := make([]model.Item, 0, len(items))
	incoming := 0
	for _, raw := range items {
		raw.Kind = kind
		it, err := tracker.CheckStored(raw)
		if err != nil {
			return 0, fmt.Errorf("importing %s %d: %w", kind, it.ID, err)
		}
		if it.Status == kind.LimitedStatus() {
			incoming++
		}
		checked = append(checked, it)
	}

	s := NewItems(d, kind, tracker.Policy{}, 0)
	err := s.withOwnerLock(ctx, ownerID, func(tx *sql.Tx) error {
		effective := limit
		if effective <= 0 {
			var err error
			if effective, err = s.limit(ctx, tx, ownerID); err != nil {
				return err
			}
		}
		existing, err := s.countLimited(ctx, tx, ownerID)
		if err != nil {
			return err
		}
		if err := tracker.CheckLimitCovers(kind, effective, existing+incoming); err != nil {
			return err
		}

		for _, it := range checked {
			_, err := tx.ExecContext(ctx, d.Rebind(
				`INSERT INTO items (kind, owner_id, title, author, status, notes, rating, reason, progress, created_at, ended_at)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
				string(kind), ownerID, it.Title, it.Author, string(it.Status), it.Notes,
				nullInt(it.Rating), it.Reason, it.Progress, it.CreatedAt, nullTime(it.EndedAt),
			)
			if err != nil {
				return fmt.Errorf("importing %s %d: %w", kind, it.ID, err)
			}
		}

		if limit > 0 {
			return upsertLimit(ctx, d, tx, ownerID, kind, limit)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(checked), nil
}
