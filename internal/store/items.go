package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/erazemk/gametracker/internal/db"
	"github.com/erazemk/gametracker/internal/model"
	"github.com/erazemk/gametracker/internal/tracker"
)

const itemColumns = `id, owner_id, title, author, status, notes, rating, reason, progress, created_at, ended_at`

// Items is a tracker.Store over the items table, scoped to one kind.
type Items struct {
	db           *db.DB
	kind         model.Kind
	policy       tracker.Policy
	defaultLimit int
	now          func() time.Time
}

var _ tracker.Store = (*Items)(nil)

// NewItems returns the SQL store for one kind of item.
func NewItems(d *db.DB, kind model.Kind, policy tracker.Policy, defaultLimit int) *Items {
	if defaultLimit <= 0 {
		defaultLimit = tracker.DefaultLimit
	}
	return &Items{db: d, kind: kind, policy: policy, defaultLimit: defaultLimit, now: time.Now}
}

// Kind returns the kind of item this store holds.
func (s *Items) Kind() model.Kind { return s.kind }

type scanner interface {
	Scan(dest ...any) error
}

func scanItem(sc scanner, kind model.Kind) (model.Item, error) {
	it := model.Item{Kind: kind}
	var rating sql.NullInt64
	var ended sql.NullTime
	err := sc.Scan(&it.ID, &it.OwnerID, &it.Title, &it.Author, &it.Status, &it.Notes,
		&rating, &it.Reason, &it.Progress, &it.CreatedAt, &ended)
	if err != nil {
		return it, err
	}
	if rating.Valid {
		r := int(rating.Int64)
		it.Rating = &r
	}
	if ended.Valid {
		t := ended.Time
		it.EndedAt = &t
	}
	return it, nil
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Items) query(ctx context.Context, q querier, where string, args ...any) ([]model.Item, error) {
	rows, err := q.QueryContext(ctx, s.db.Rebind(
		`SELECT `+itemColumns+` FROM items WHERE owner_id = ? AND kind = ?`+where+` ORDER BY id`), args...)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", s.kind.Plural(), err)
	}
	defer rows.Close()

	var items []model.Item
	for rows.Next() {
		it, err := scanItem(rows, s.kind)
		if err != nil {
			return nil, fmt.Errorf("scanning %s: %w", s.kind, err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// ListAll returns the owner's items ordered by id.
func (s *Items) ListAll(ctx context.Context, ownerID int64) ([]model.Item, error) {
	return s.query(ctx, s.db, "", ownerID, string(s.kind))
}

// ListGrouped returns the owner's items bucketed by status.
func (s *Items) ListGrouped(ctx context.Context, ownerID int64) (map[model.Status][]model.Item, error) {
	items, err := s.ListAll(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return tracker.GroupByStatus(s.kind, items), nil
}

// Counts returns the owner's per-status counts and limit.
func (s *Items) Counts(ctx context.Context, ownerID int64) (*model.Counts, error) {
	return s.counts(ctx, s.db, ownerID)
}

func (s *Items) counts(ctx context.Context, q querier, ownerID int64) (*model.Counts, error) {
	limit, err := s.limit(ctx, q, ownerID)
	if err != nil {
		return nil, err
	}

	rows, err := q.QueryContext(ctx, s.db.Rebind(
		`SELECT status, COUNT(*) FROM items WHERE owner_id = ? AND kind = ? GROUP BY status`),
		ownerID, string(s.kind),
	)
	if err != nil {
		return nil, fmt.Errorf("counting %s: %w", s.kind.Plural(), err)
	}
	defer rows.Close()

	tally := map[model.Status]int{}
	for rows.Next() {
		var status model.Status
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scanning count: %w", err)
		}
		tally[status] = n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tracker.NewCounts(s.kind, limit, tally), nil
}

func (s *Items) limit(ctx context.Context, q querier, ownerID int64) (int, error) {
	var limit int
	err := q.QueryRowContext(ctx, s.db.Rebind(
		`SELECT value FROM limits WHERE owner_id = ? AND kind = ?`), ownerID, string(s.kind),
	).Scan(&limit)
	if errors.Is(err, sql.ErrNoRows) {
		return s.defaultLimit, nil
	}
	if err != nil {
		return 0, fmt.Errorf("getting %s limit: %w", s.kind, err)
	}
	return limit, nil
}

// Add creates an item.
func (s *Items) Add(ctx context.Context, ownerID int64, c model.ItemCreate) (*model.Item, error) {
	var item model.Item
	err := s.withOwnerLock(ctx, ownerID, func(tx *sql.Tx) error {
		limit, err := s.limit(ctx, tx, ownerID)
		if err != nil {
			return err
		}
		limited, err := s.query(ctx, tx, " AND status = ?", ownerID, string(s.kind), string(s.kind.LimitedStatus()))
		if err != nil {
			return err
		}

		item, err = tracker.PrepareAdd(s.kind, ownerID, c, limited, limit, s.now())
		if err != nil {
			return err
		}

		err = tx.QueryRowContext(ctx, s.db.Rebind(
			`INSERT INTO items (kind, owner_id, title, author, status, notes, rating, reason, progress, created_at, ended_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`),
			string(s.kind), item.OwnerID, item.Title, item.Author, string(item.Status), item.Notes,
			nullInt(item.Rating), item.Reason, item.Progress, item.CreatedAt, nullTime(item.EndedAt),
		).Scan(&item.ID)
		if err != nil {
			return fmt.Errorf("creating %s: %w", s.kind, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// Update applies a partial update to an item.
func (s *Items) Update(ctx context.Context, ownerID, id int64, u model.ItemUpdate) (*model.Item, error) {
	var next model.Item
	err := s.withOwnerLock(ctx, ownerID, func(tx *sql.Tx) error {
		cur, err := scanItem(tx.QueryRowContext(ctx, s.db.Rebind(
			`SELECT `+itemColumns+` FROM items WHERE id = ? AND owner_id = ? AND kind = ?`),
			id, ownerID, string(s.kind),
		), s.kind)
		if errors.Is(err, sql.ErrNoRows) {
			return &tracker.NotFoundError{Kind: s.kind, ID: id}
		}
		if err != nil {
			return fmt.Errorf("getting %s: %w", s.kind, err)
		}

		limit, err := s.limit(ctx, tx, ownerID)
		if err != nil {
			return err
		}
		limited, err := s.query(ctx, tx, " AND status = ?", ownerID, string(s.kind), string(s.kind.LimitedStatus()))
		if err != nil {
			return err
		}

		next, err = tracker.ApplyUpdate(cur, u, limited, limit, s.now())
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, s.db.Rebind(
			`UPDATE items SET title = ?, author = ?, status = ?, notes = ?, rating = ?, reason = ?,
			 progress = ?, ended_at = ? WHERE id = ?`),
			next.Title, next.Author, string(next.Status), next.Notes, nullInt(next.Rating), next.Reason,
			next.Progress, nullTime(next.EndedAt), id,
		)
		if err != nil {
			return fmt.Errorf("updating %s: %w", s.kind, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &next, nil
}

// Delete removes an item.
func (s *Items) Delete(ctx context.Context, ownerID, id int64) error {
	result, err := s.db.ExecContext(ctx, s.db.Rebind(
		`DELETE FROM items WHERE id = ? AND owner_id = ? AND kind = ?`), id, ownerID, string(s.kind),
	)
	if err != nil {
		return fmt.Errorf("deleting %s: %w", s.kind, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting %s: %w", s.kind, err)
	}
	if n == 0 {
		return &tracker.NotFoundError{Kind: s.kind, ID: id}
	}
	return nil
}

// SetLimit changes the owner's limit for this kind.
func (s *Items) SetLimit(ctx context.Context, ownerID int64, limit int) (*model.Counts, error) {
	if err := s.policy.CheckLimit(limit); err != nil {
		return nil, err
	}

	var counts *model.Counts
	err := s.withOwnerLock(ctx, ownerID, func(tx *sql.Tx) error {
		n, err := s.countLimited(ctx, tx, ownerID)
		if err != nil {
			return err
		}
		if err := tracker.CheckLimitCovers(s.kind, limit, n); err != nil {
			return err
		}
		if err := upsertLimit(ctx, s.db, tx, ownerID, s.kind, limit); err != nil {
			return err
		}
		counts, err = s.counts(ctx, tx, ownerID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return counts, nil
}

func (s *Items) countLimited(ctx context.Context, q querier, ownerID int64) (int, error) {
	var n int
	err := q.QueryRowContext(ctx, s.db.Rebind(
		`SELECT COUNT(*) FROM items WHERE owner_id = ? AND kind = ? AND status = ?`),
		ownerID, string(s.kind), string(s.kind.LimitedStatus()),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting %s: %w", s.kind.Plural(), err)
	}
	return n, nil
}

// Total counts items in a status across all owners.
func (s *Items) Total(ctx context.Context, status model.Status) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, s.db.Rebind(
		`SELECT COUNT(*) FROM items WHERE kind = ? AND status = ?`), string(s.kind), string(status),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting %s: %w", s.kind.Plural(), err)
	}
	return n, nil
}

// withOwnerLock runs fn in a transaction that holds the owner's lock for this
// kind, so concurrent mutations cannot both pass the limit check. SQLite gets
// this from BEGIN IMMEDIATE, PostgreSQL from a transaction advisory lock.
func (s *Items) withOwnerLock(ctx context.Context, ownerID int64, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	if s.db.Dialect == db.Postgres {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, lockKey(s.kind, ownerID)); err != nil {
			return fmt.Errorf("locking owner %d: %w", ownerID, err)
		}
	}

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func lockKey(kind model.Kind, ownerID int64) int64 {
	key := ownerID * 2
	if kind == model.KindBook {
		key++
	}
	return key
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsertLimit(ctx context.Context, d *db.DB, ex execer, ownerID int64, kind model.Kind, limit int) error {
	_, err := ex.ExecContext(ctx, d.Rebind(
		`INSERT INTO limits (owner_id, kind, value) VALUES (?, ?, ?)
		 ON CONFLICT (owner_id, kind) DO UPDATE SET value = excluded.value`),
		ownerID, string(kind), limit,
	)
	if err != nil {
		return fmt.Errorf("setting %s limit: %w", kind, err)
	}
	return nil
}

func nullInt(p *int) any {
	if p == nil {
		return nil
	}
	return int64(*p)
}

func nullTime(p *time.Time) any {
	if p == nil {
		return nil
	}
	return *p
}
