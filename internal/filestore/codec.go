package filestore

import (
	"bytes"
	"cmp"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"time"

	"github.com/erazemk/gametracker/internal/model"
	"github.com/erazemk/gametracker/internal/tracker"
)

// Data is the decoded content of a data file.
type Data struct {
	Items  []model.Item
	NextID int64
	Limit  int
}

// record is the on-disk shape of one item. Name and UserID are only read,
// for files written by older versions.
type record struct {
	ID        int64        `json:"id"`
	OwnerID   *int64       `json:"owner_id,omitempty"`
	UserID    *int64       `json:"user_id,omitempty"`
	Title     string       `json:"title,omitempty"`
	Name      string       `json:"name,omitempty"`
	Author    string       `json:"author,omitempty"`
	Status    model.Status `json:"status"`
	Notes     string       `json:"notes"`
	Rating    *int         `json:"rating"`
	Reason    string       `json:"reason"`
	Progress  string       `json:"progress,omitempty"`
	CreatedAt string       `json:"created_at"`
	EndedAt   *string      `json:"ended_at"`
}

// Layouts accepted for timestamps. Older files carry naive local times.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

func parseTime(s string) (time.Time, error) {
	for i, layout := range timeLayouts {
		var (
			t   time.Time
			err error
		)
		if i == 0 {
			t, err = time.Parse(layout, s)
		} else {
			t, err = time.ParseInLocation(layout, s, time.Local)
		}
		if err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}

func (r record) item(kind model.Kind, key string) (model.Item, error) {
	it := model.Item{
		ID:       r.ID,
		OwnerID:  model.DefaultOwnerID,
		Kind:     kind,
		Title:    r.Title,
		Author:   r.Author,
		Status:   r.Status,
		Notes:    r.Notes,
		Rating:   r.Rating,
		Reason:   r.Reason,
		Progress: r.Progress,
	}
	if it.ID == 0 {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			return it, fmt.Errorf("item key %q: %w", key, err)
		}
		it.ID = id
	}
	switch {
	case r.OwnerID != nil:
		it.OwnerID = *r.OwnerID
	case r.UserID != nil:
		it.OwnerID = *r.UserID
	}
	if it.Title == "" {
		it.Title = r.Name
	}
	if r.CreatedAt != "" {
		t, err := parseTime(r.CreatedAt)
		if err != nil {
			return it, fmt.Errorf("item %d created_at: %w", it.ID, err)
		}
		it.CreatedAt = t
	}
	if r.EndedAt != nil && *r.EndedAt != "" {
		t, err := parseTime(*r.EndedAt)
		if err != nil {
			return it, fmt.Errorf("item %d ended_at: %w", it.ID, err)
		}
		it.EndedAt = &t
	}
	return it, nil
}

func newRecord(it model.Item) record {
	owner := it.OwnerID
	r := record{
		ID:        it.ID,
		OwnerID:   &owner,
		Title:     it.Title,
		Author:    it.Author,
		Status:    it.Status,
		Notes:     it.Notes,
		Rating:    it.Rating,
		Reason:    it.Reason,
		Progress:  it.Progress,
		CreatedAt: it.CreatedAt.Format(time.RFC3339Nano),
	}
	if it.EndedAt != nil {
		s := it.EndedAt.Format(time.RFC3339Nano)
		r.EndedAt = &s
	}
	return r
}

// Decode parses a data file of the given kind. A zero Limit means the file
// did not set one.
func Decode(data []byte, kind model.Kind) (*Data, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing %s file: %w", kind, err)
	}

	d := &Data{}
	if msg, ok := raw["next_id"]; ok {
		if err := json.Unmarshal(msg, &d.NextID); err != nil {
			return nil, fmt.Errorf("parsing next_id: %w", err)
		}
	}
	if msg, ok := raw["limit"]; ok {
		if err := json.Unmarshal(msg, &d.Limit); err != nil {
			return nil, fmt.Errorf("parsing limit: %w", err)
		}
	}

	var records map[string]record
	if msg, ok := raw[kind.Plural()]; ok {
		if err := json.Unmarshal(msg, &records); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", kind.Plural(), err)
		}
	}

	var maxID int64
	for key, r := range records {
		it, err := r.item(kind, key)
		if err != nil {
			return nil, err
		}
		if it, err = tracker.CheckStored(it); err != nil {
			return nil, fmt.Errorf("%s %d: %w", kind, it.ID, err)
		}
		d.Items = append(d.Items, it)
		maxID = max(maxID, it.ID)
	}
	slices.SortFunc(d.Items, func(a, b model.Item) int { return cmp.Compare(a.ID, b.ID) })

	// Ids are never reused, even if next_id was lost or edited by hand.
	if d.NextID <= maxID {
		d.NextID = maxID + 1
	}
	return d, nil
}

// Encode renders d in the data file format: UTF-8, two-space indent.
func Encode(kind model.Kind, d *Data) ([]byte, error) {
	records := make(map[string]record, len(d.Items))
	for _, it := range d.Items {
		records[strconv.FormatInt(it.ID, 10)] = newRecord(it)
	}
	out := map[string]any{
		kind.Plural(): records,
		"next_id":     d.NextID,
		"limit":       d.Limit,
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return nil, fmt.Errorf("encoding %s file: %w", kind, err)
	}
	return buf.Bytes(), nil
}

// ReadFile reads and decodes a data file.
func ReadFile(path string, kind model.Kind) (*Data, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Decode(data, kind)
}

// writeFileAtomic replaces path with data via a synced temp file and rename.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("setting file mode: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}
