package tracker

import (
	"cmp"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/erazemk/gametracker/internal/model"
	"golang.org/x/text/cases"
)

// FoldTitle returns the form titles are compared in for uniqueness.
func FoldTitle(title string) string {
	return cases.Fold().String(strings.TrimSpace(title))
}

// PrepareAdd validates c and builds the item to insert. limited holds the
// owner's items currently in the kind's limited status. The returned item has
// no ID; the backend assigns one when it persists the item.
func PrepareAdd(kind model.Kind, ownerID int64, c model.ItemCreate, limited []model.Item, limit int, now time.Time) (model.Item, error) {
	title, err := validateTitle(kind, c.Title)
	if err != nil {
		return model.Item{}, err
	}

	status := c.Status
	if status == "" {
		status = kind.LimitedStatus()
	}
	if err := validateStatus(kind, status); err != nil {
		return model.Item{}, err
	}
	if err := validateRating(c.Rating); err != nil {
		return model.Item{}, err
	}

	if status == kind.LimitedStatus() {
		if err := checkLimit(kind, limited, 0, limit); err != nil {
			return model.Item{}, err
		}
		if err := checkDuplicate(kind, limited, 0, title); err != nil {
			return model.Item{}, err
		}
	}

	item := model.Item{
		OwnerID:   ownerID,
		Kind:      kind,
		Title:     title,
		Status:    status,
		Notes:     c.Notes,
		Rating:    copyInt(c.Rating),
		Reason:    c.Reason,
		CreatedAt: now,
	}
	if kind.HasAuthor() {
		item.Author = strings.TrimSpace(c.Author)
	}
	if kind.HasProgress() {
		item.Progress = c.Progress
	}
	if model.IsTerminal(status) {
		ended := now
		item.EndedAt = &ended
	}
	return item, nil
}

// ApplyUpdate returns cur with u applied. cur itself is never modified, so a
// rejected update leaves the stored item untouched. limited holds the owner's
// items currently in the limited status and may include cur.
func ApplyUpdate(cur model.Item, u model.ItemUpdate, limited []model.Item, limit int, now time.Time) (model.Item, error) {
	kind := cur.Kind
	next := cur

	effective := cur.Status
	if u.Status != nil {
		if err := validateStatus(kind, *u.Status); err != nil {
			return cur, err
		}
		effective = *u.Status
	}
	if err := validateRating(u.Rating); err != nil {
		return cur, err
	}

	if u.Title != nil {
		title, err := validateTitle(kind, *u.Title)
		if err != nil {
			return cur, err
		}
		if effective == kind.LimitedStatus() {
			if err := checkDuplicate(kind, limited, cur.ID, title); err != nil {
				return cur, err
			}
		}
		next.Title = title
	}

	if u.Status != nil && *u.Status != cur.Status {
		status := *u.Status
		if status == kind.LimitedStatus() {
			if err := checkLimit(kind, limited, cur.ID, limit); err != nil {
				return cur, err
			}
			if u.Title == nil {
				if err := checkDuplicate(kind, limited, cur.ID, cur.Title); err != nil {
					return cur, err
				}
			}
		}

		switch {
		case model.IsTerminal(status) && !model.IsTerminal(cur.Status):
			ended := now
			next.EndedAt = &ended
		case !model.IsTerminal(status):
			next.EndedAt = nil
		}
		next.Status = status
	}

	if u.Notes != nil {
		next.Notes = *u.Notes
	}
	switch {
	case u.ClearRating:
		next.Rating = nil
	case u.Rating != nil:
		next.Rating = copyInt(u.Rating)
	}
	if u.Reason != nil {
		next.Reason = *u.Reason
	}
	if u.Author != nil && kind.HasAuthor() {
		next.Author = strings.TrimSpace(*u.Author)
	}
	if u.Progress != nil && kind.HasProgress() {
		next.Progress = *u.Progress
	}
	return next, nil
}

// CheckLimitCovers rejects a limit lower than count, the number of items
// already in the kind's limited status.
func CheckLimitCovers(kind model.Kind, limit, count int) error {
	if count > limit {
		return &InvalidLimitError{Kind: kind, Limit: limit, Count: count}
	}
	return nil
}

// CheckStored validates an item read from a data file and repairs its end
// time: terminal statuses get one (falling back to the creation time), open
// statuses lose it.
func CheckStored(it model.Item) (model.Item, error) {
	if err := validateStatus(it.Kind, it.Status); err != nil {
		return it, err
	}
	if err := validateRating(it.Rating); err != nil {
		return it, err
	}
	switch {
	case model.IsTerminal(it.Status) && it.EndedAt == nil:
		ended := it.CreatedAt
		it.EndedAt = &ended
	case !model.IsTerminal(it.Status):
		it.EndedAt = nil
	}
	return it, nil
}

// FilterLimited returns the items in the kind's limited status.
func FilterLimited(kind model.Kind, items []model.Item) []model.Item {
	var out []model.Item
	for _, it := range items {
		if it.Status == kind.LimitedStatus() {
			out = append(out, it)
		}
	}
	return out
}

// GroupByStatus buckets items by status. Every status of the kind gets a
// (possibly empty) list. Open statuses are newest first by creation time,
// terminal statuses newest first by end time.
func GroupByStatus(kind model.Kind, items []model.Item) map[model.Status][]model.Item {
	groups := make(map[model.Status][]model.Item, len(kind.Statuses()))
	for _, s := range kind.Statuses() {
		groups[s] = []model.Item{}
	}
	for _, it := range items {
		if _, ok := groups[it.Status]; ok {
			groups[it.Status] = append(groups[it.Status], it)
		}
	}
	for _, list := range groups {
		slices.SortStableFunc(list, func(a, b model.Item) int {
			if c := sortTime(b).Compare(sortTime(a)); c != 0 {
				return c
			}
			return cmp.Compare(b.ID, a.ID)
		})
	}
	return groups
}

// NewCounts builds counts from a per-status tally.
func NewCounts(kind model.Kind, limit int, tally map[model.Status]int) *model.Counts {
	c := &model.Counts{
		Count:    tally[kind.LimitedStatus()],
		Limit:    limit,
		ByStatus: map[model.Status]int{},
	}
	for _, s := range kind.Statuses() {
		if s == kind.LimitedStatus() || model.IsTerminal(s) {
			continue
		}
		c.ByStatus[s] = tally[s]
	}
	return c
}

func sortTime(it model.Item) time.Time {
	if model.IsTerminal(it.Status) && it.EndedAt != nil {
		return *it.EndedAt
	}
	return it.CreatedAt
}

func checkLimit(kind model.Kind, limited []model.Item, excludeID int64, limit int) error {
	n := 0
	for _, it := range limited {
		if it.ID != excludeID {
			n++
		}
	}
	if n >= limit {
		return &LimitExceededError{Kind: kind, Limit: limit}
	}
	return nil
}

func checkDuplicate(kind model.Kind, limited []model.Item, excludeID int64, title string) error {
	folded := FoldTitle(title)
	for _, it := range limited {
		if it.ID != excludeID && FoldTitle(it.Title) == folded {
			return &DuplicateNameError{Kind: kind, Title: title}
		}
	}
	return nil
}

func validateTitle(kind model.Kind, title string) (string, error) {
	t := strings.TrimSpace(title)
	if t == "" {
		return "", &ValidationError{Field: "title", Reason: "must not be empty"}
	}
	if n := utf8.RuneCountInString(t); n > kind.MaxTitleLen() {
		return "", &ValidationError{Field: "title", Reason: "too long"}
	}
	return t, nil
}

func validateStatus(kind model.Kind, s model.Status) error {
	if !kind.ValidStatus(s) {
		return &ValidationError{Field: "status", Reason: "unknown status " + string(s)}
	}
	return nil
}

func validateRating(r *int) error {
	if r != nil && (*r < model.MinRating || *r > model.MaxRating) {
		return &ValidationError{Field: "rating", Reason: "must be between 0 and 10"}
	}
	return nil
}

func copyInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
