// Package filestore keeps one kind of item in a single JSON file.
package filestore

import (
	"bytes"
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/erazemk/gametracker/internal/model"
	"github.com/erazemk/gametracker/internal/tracker"
	"github.com/fsnotify/fsnotify"
	"github.com/gofrs/flock"
)

// Options configures a Store.
type Options struct {
	Path         string
	Kind         model.Kind
	Policy       tracker.Policy
	DefaultLimit int

	// OnSave runs after every successful mutation, with the store lock held.
	// It must not block.
	OnSave func(kind model.Kind)

	// Now overrides the clock in tests.
	Now func() time.Time
}

// Store is a tracker.Store backed by a JSON file. Every operation runs under
// one mutex, and each mutation writes the whole file before it returns.
type Store struct {
	mu     sync.Mutex
	kind   model.Kind
	path   string
	policy tracker.Policy
	onSave func(model.Kind)
	now    func() time.Time
	lock   *flock.Flock

	items  map[int64]model.Item
	nextID int64
	limit  int
	last   []byte // bytes of the last write or load
}

var _ tracker.Store = (*Store)(nil)

// Open loads the data file at opts.Path, creating it if missing, and takes
// an exclusive lock so no other process writes the same file.
func Open(opts Options) (*Store, error) {
	path, err := filepath.Abs(opts.Path)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", opts.Path, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	lock := flock.New(path + ".lock")
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("locking %s: %w", path, err)
	}
	if !ok {
		return nil, fmt.Errorf("%s is in use by another process", path)
	}

	s := &Store{
		kind:   opts.Kind,
		path:   path,
		policy: opts.Policy,
		onSave: opts.OnSave,
		now:    opts.Now,
		lock:   lock,
		items:  map[int64]model.Item{},
		nextID: 1,
		limit:  opts.DefaultLimit,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.limit <= 0 {
		s.limit = tracker.DefaultLimit
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if err := s.write(); err != nil {
			lock.Unlock()
			return nil, err
		}
	case err != nil:
		lock.Unlock()
		return nil, fmt.Errorf("reading %s: %w", path, err)
	default:
		if err := s.apply(data); err != nil {
			lock.Unlock()
			return nil, err
		}
	}

	return s, nil
}

// Close releases the file lock.
func (s *Store) Close() error {
	return s.lock.Unlock()
}

// Kind returns the kind of item this store holds.
func (s *Store) Kind() model.Kind { return s.kind }

// Path returns the absolute path of the data file.
func (s *Store) Path() string { return s.path }

// ListGrouped returns the owner's items bucketed by status.
func (s *Store) ListGrouped(_ context.Context, ownerID int64) (map[model.Status][]model.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return tracker.GroupByStatus(s.kind, s.ownedLocked(ownerID)), nil
}

// ListAll returns the owner's items ordered by id.
func (s *Store) ListAll(_ context.Context, ownerID int64) ([]model.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ownedLocked(ownerID), nil
}

// Counts returns the owner's per-status counts and limit.
func (s *Store) Counts(_ context.Context, ownerID int64) (*model.Counts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.countsLocked(ownerID), nil
}

// Add creates an item.
func (s *Store) Add(_ context.Context, ownerID int64, c model.ItemCreate) (*model.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, err := tracker.PrepareAdd(s.kind, ownerID, c, s.limitedLocked(ownerID), s.limit, s.now())
	if err != nil {
		return nil, err
	}
	item.ID = s.nextID
	s.items[item.ID] = item
	s.nextID++

	if err := s.save(); err != nil {
		delete(s.items, item.ID)
		s.nextID--
		return nil, err
	}
	return &item, nil
}

// Update applies a partial update to an item.
func (s *Store) Update(_ context.Context, ownerID, id int64, u model.ItemUpdate) (*model.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.items[id]
	if !ok || cur.OwnerID != ownerID {
		return nil, &tracker.NotFoundError{Kind: s.kind, ID: id}
	}

	next, err := tracker.ApplyUpdate(cur, u, s.limitedLocked(ownerID), s.limit, s.now())
	if err != nil {
		return nil, err
	}
	s.items[id] = next

	if err := s.save(); err != nil {
		s.items[id] = cur
		return nil, err
	}
	return &next, nil
}

// Delete removes an item.
func (s *Store) Delete(_ context.Context, ownerID, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.items[id]
	if !ok || cur.OwnerID != ownerID {
		return &tracker.NotFoundError{Kind: s.kind, ID: id}
	}
	delete(s.items, id)

	if err := s.save(); err != nil {
		s.items[id] = cur
		return err
	}
	return nil
}

// SetLimit changes the limit. A file holds a single limit, shared by every
// owner in it, so it may not drop below any owner's limited count.
func (s *Store) SetLimit(_ context.Context, ownerID int64, limit int) (*model.Counts, error) {
	if err := s.policy.CheckLimit(limit); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := tracker.CheckLimitCovers(s.kind, limit, maxLimited(s.kind, s.items)); err != nil {
		return nil, err
	}

	prev := s.limit
	s.limit = limit
	if err := s.save(); err != nil {
		s.limit = prev
		return nil, err
	}
	return s.countsLocked(ownerID), nil
}

// Total counts items in a status across all owners.
func (s *Store) Total(_ context.Context, status model.Status) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, it := range s.items {
		if it.Status == status {
			n++
		}
	}
	return n, nil
}

// Reload re-reads the data file, discarding in-memory state.
func (s *Store) Reload() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", s.path, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.apply(data)
}

// Replace validates data, writes it as the new data file and reloads from it.
// Data that fails to load leaves the file and the store untouched. OnSave is
// not called.
func (s *Store) Replace(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.last
	if err := s.apply(data); err != nil {
		return err
	}
	if err := writeFileAtomic(s.path, data); err != nil {
		if rerr := s.apply(prev); rerr != nil {
			slog.Error("restoring store after failed replace", "path", s.path, "error", rerr)
		}
		return err
	}
	return nil
}

// Watch reloads the store whenever the data file is changed by someone
// else. The watcher is set up before Watch returns and stops with ctx.
func (s *Store) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	// Watch the directory; atomic renames replace the file's inode.
	if err := w.Add(filepath.Dir(s.path)); err != nil {
		w.Close()
		return fmt.Errorf("watching %s: %w", filepath.Dir(s.path), err)
	}

	go func() {
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != s.path || !ev.Has(fsnotify.Write|fsnotify.Create) {
					continue
				}
				changed, err := s.reloadIfChanged()
				if err != nil {
					slog.Warn("reloading data file", "path", s.path, "error", err)
					continue
				}
				if changed {
					slog.Info("data file changed on disk, reloaded", "kind", s.kind, "path", s.path)
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				slog.Warn("watching data file", "path", s.path, "error", err)
			}
		}
	}()
	return nil
}

func (s *Store) reloadIfChanged() (bool, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if bytes.Equal(data, s.last) {
		return false, nil
	}
	if err := s.apply(data); err != nil {
		return false, err
	}
	return true, nil
}

// apply replaces in-memory state with the decoded file. Caller holds mu.
func (s *Store) apply(data []byte) error {
	d, err := Decode(data, s.kind)
	if err != nil {
		return err
	}

	items := make(map[int64]model.Item, len(d.Items))
	for _, it := range d.Items {
		items[it.ID] = it
	}
	limit := s.limit
	if d.Limit > 0 {
		limit = d.Limit
	}
	if err := tracker.CheckLimitCovers(s.kind, limit, maxLimited(s.kind, items)); err != nil {
		return fmt.Errorf("%s: %w", s.path, err)
	}

	s.items = items
	s.nextID = d.NextID
	s.limit = limit
	s.last = data
	return nil
}

// save writes the file and fires the save hook. Caller holds mu.
func (s *Store) save() error {
	if err := s.write(); err != nil {
		return err
	}
	if s.onSave != nil {
		s.onSave(s.kind)
	}
	return nil
}

func (s *Store) write() error {
	d := &Data{NextID: s.nextID, Limit: s.limit}
	for _, it := range s.items {
		d.Items = append(d.Items, it)
	}
	data, err := Encode(s.kind, d)
	if err != nil {
		return err
	}
	if err := writeFileAtomic(s.path, data); err != nil {
		return fmt.Errorf("saving %s: %w", s.kind.Plural(), err)
	}
	s.last = data
	return nil
}

func (s *Store) ownedLocked(ownerID int64) []model.Item {
	var out []model.Item
	for _, it := range s.items {
		if it.OwnerID == ownerID {
			out = append(out, it)
		}
	}
	slices.SortFunc(out, func(a, b model.Item) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

// maxLimited returns the largest per-owner count of items in the limited
// status.
func maxLimited(kind model.Kind, items map[int64]model.Item) int {
	per := map[int64]int{}
	n := 0
	for _, it := range items {
		if it.Status == kind.LimitedStatus() {
			per[it.OwnerID]++
			n = max(n, per[it.OwnerID])
		}
	}
	return n
}

func (s *Store) limitedLocked(ownerID int64) []model.Item {
	return tracker.FilterLimited(s.kind, s.ownedLocked(ownerID))
}

func (s *Store) countsLocked(ownerID int64) *model.Counts {
	tally := map[model.Status]int{}
	for _, it := range s.items {
		if it.OwnerID == ownerID {
			tally[it.Status]++
		}
	}
	return tracker.NewCounts(s.kind, s.limit, tally)
}
