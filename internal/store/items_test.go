package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/erazemk/gametracker/internal/db"
	"github.com/erazemk/gametracker/internal/model"
	"github.com/erazemk/gametracker/internal/tracker"
)

func ptr[T any](v T) *T { return &v }

func newGames(t *testing.T) (*Items, *db.DB) {
	t.Helper()
	database := db.NewTestDB(t)
	return NewItems(database, model.KindGame, tracker.Policy{MaxLimit: 20}, 3), database
}

func TestAddAndList(t *testing.T) {
	games, _ := newGames(t)
	ctx := context.Background()

	g, err := games.Add(ctx, 1, model.ItemCreate{Title: " Celeste ", Rating: ptr(9), Notes: "hard"})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if g.ID == 0 {
		t.Error("expected id to be assigned")
	}
	if g.Title != "Celeste" {
		t.Errorf("expected trimmed title, got %q", g.Title)
	}

	grouped, err := games.ListGrouped(ctx, 1)
	if err != nil {
		t.Fatalf("ListGrouped: %v", err)
	}
	if len(grouped) != 6 {
		t.Errorf("expected 6 status groups, got %d", len(grouped))
	}
	active := grouped[model.StatusActive]
	if len(active) != 1 {
		t.Fatalf("expected 1 active game, got %d", len(active))
	}
	if active[0].Rating == nil || *active[0].Rating != 9 || active[0].Notes != "hard" {
		t.Errorf("fields not round-tripped: %+v", active[0])
	}
	if active[0].EndedAt != nil {
		t.Error("active game should have no ended_at")
	}
}

func TestLimitScenario(t *testing.T) {
	games, _ := newGames(t)
	ctx := context.Background()

	if _, err := games.SetLimit(ctx, 1, 1); err != nil {
		t.Fatalf("SetLimit: %v", err)
	}
	a, err := games.Add(ctx, 1, model.ItemCreate{Title: "A"})
	if err != nil {
		t.Fatalf("Add A: %v", err)
	}
	if _, err := games.Add(ctx, 1, model.ItemCreate{Title: "B"}); !errors.Is(err, tracker.ErrLimitExceeded) {
		t.Fatalf("expected ErrLimitExceeded, got %v", err)
	}

	fin, err := games.Update(ctx, 1, a.ID, model.ItemUpdate{Status: ptr(model.StatusFinished)})
	if err != nil {
		t.Fatalf("finish A: %v", err)
	}
	if fin.EndedAt == nil {
		t.Fatal("expected ended_at after finishing")
	}

	if _, err := games.Add(ctx, 1, model.ItemCreate{Title: "B"}); err != nil {
		t.Fatalf("Add B after finishing A: %v", err)
	}

	// Reopening A would exceed the limit again and must leave it finished.
	if _, err := games.Update(ctx, 1, a.ID, model.ItemUpdate{Status: ptr(model.StatusActive)}); !errors.Is(err, tracker.ErrLimitExceeded) {
		t.Fatalf("expected ErrLimitExceeded, got %v", err)
	}
	grouped, _ := games.ListGrouped(ctx, 1)
	if len(grouped[model.StatusFinished]) != 1 {
		t.Error("rejected update should not move the item")
	}
}

func TestDuplicateTitle(t *testing.T) {
	games, _ := newGames(t)
	ctx := context.Background()

	games.Add(ctx, 1, model.ItemCreate{Title: "Foo"})
	if _, err := games.Add(ctx, 1, model.ItemCreate{Title: "foo "}); !errors.Is(err, tracker.ErrDuplicateName) {
		t.Fatalf("expected ErrDuplicateName, got %v", err)
	}

	c, _ := games.Counts(ctx, 1)
	if c.Count != 1 {
		t.Errorf("expected count 1, got %d", c.Count)
	}
}

func TestEndedAtLifecycle(t *testing.T) {
	games, _ := newGames(t)
	ctx := context.Background()

	g, _ := games.Add(ctx, 1, model.ItemCreate{Title: "A", Status: model.StatusFinished})
	if g.EndedAt == nil {
		t.Fatal("create in finished should set ended_at")
	}
	first := *g.EndedAt

	games.now = func() time.Time { return first.Add(time.Hour) }
	dropped, err := games.Update(ctx, 1, g.ID, model.ItemUpdate{Status: ptr(model.StatusDropped)})
	if err != nil {
		t.Fatalf("drop: %v", err)
	}
	if dropped.EndedAt == nil || !dropped.EndedAt.Equal(first) {
		t.Errorf("terminal to terminal should keep ended_at, got %v", dropped.EndedAt)
	}

	planned, err := games.Update(ctx, 1, g.ID, model.ItemUpdate{Status: ptr(model.StatusPlanned)})
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if planned.EndedAt != nil {
		t.Error("non-terminal status should clear ended_at")
	}

	items, _ := games.ListAll(ctx, 1)
	if items[0].EndedAt != nil {
		t.Error("cleared ended_at not persisted")
	}
}

func TestDeleteAndNotFound(t *testing.T) {
	games, _ := newGames(t)
	ctx := context.Background()

	g, _ := games.Add(ctx, 1, model.ItemCreate{Title: "A"})
	if err := games.Delete(ctx, 2, g.ID); !errors.Is(err, tracker.ErrNotFound) {
		t.Errorf("delete by another owner: got %v", err)
	}
	if err := games.Delete(ctx, 1, g.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := games.Delete(ctx, 1, g.ID); !errors.Is(err, tracker.ErrNotFound) {
		t.Errorf("second delete: got %v", err)
	}
	if _, err := games.Update(ctx, 1, g.ID, model.ItemUpdate{Notes: ptr("x")}); !errors.Is(err, tracker.ErrNotFound) {
		t.Errorf("update deleted: got %v", err)
	}
}

func TestKindsAreSeparate(t *testing.T) {
	games, database := newGames(t)
	books := NewItems(database, model.KindBook, tracker.Policy{}, 3)
	ctx := context.Background()

	g, _ := games.Add(ctx, 1, model.ItemCreate{Title: "Dune"})
	b, err := books.Add(ctx, 1, model.ItemCreate{Title: "Dune", Author: "Frank Herbert", Progress: "ch. 3"})
	if err != nil {
		t.Fatalf("book Add: %v", err)
	}
	if b.Status != model.StatusReading {
		t.Errorf("book default status = %q, want reading", b.Status)
	}

	if err := books.Delete(ctx, 1, g.ID); !errors.Is(err, tracker.ErrNotFound) {
		t.Errorf("deleting a game through the book store: got %v", err)
	}

	list, _ := books.ListAll(ctx, 1)
	if len(list) != 1 || list[0].Author != "Frank Herbert" || list[0].Progress != "ch. 3" {
		t.Errorf("book not round-tripped: %+v", list)
	}
	if n, _ := games.Total(ctx, model.StatusActive); n != 1 {
		t.Errorf("active games total = %d, want 1", n)
	}
	if n, _ := books.Total(ctx, model.StatusReading); n != 1 {
		t.Errorf("reading books total = %d, want 1", n)
	}
}

func TestSetLimitValidation(t *testing.T) {
	games, _ := newGames(t)
	ctx := context.Background()

	if _, err := games.SetLimit(ctx, 1, 0); !errors.Is(err, tracker.ErrInvalidLimit) {
		t.Errorf("SetLimit(0): got %v", err)
	}
	if _, err := games.SetLimit(ctx, 1, 21); !errors.Is(err, tracker.ErrInvalidLimit) {
		t.Errorf("SetLimit(21): got %v", err)
	}

	c, err := games.SetLimit(ctx, 1, 7)
	if err != nil {
		t.Fatalf("SetLimit(7): %v", err)
	}
	if c.Limit != 7 {
		t.Errorf("limit = %d, want 7", c.Limit)
	}
	if _, ok := c.ByStatus[model.StatusCasual]; !ok {
		t.Error("expected casual count in response")
	}

	// Limits are per owner.
	other, _ := games.Counts(ctx, 2)
	if other.Limit != 3 {
		t.Errorf("owner 2 limit = %d, want default 3", other.Limit)
	}
}

func TestConcurrentAddsRespectLimit(t *testing.T) {
	games, _ := newGames(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	ok := 0
	for i := range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := games.Add(ctx, 1, model.ItemCreate{Title: "game " + string(rune('a'+i))})
			if err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if ok != 3 {
		t.Errorf("%d adds succeeded, want 3", ok)
	}
	c, _ := games.Counts(ctx, 1)
	if c.Count != 3 {
		t.Errorf("active count = %d, want 3", c.Count)
	}
}

func TestImportItems(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	ended := time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC)

	items := []model.Item{
		{ID: 10, Title: "Old", Status: model.StatusFinished, CreatedAt: ended.Add(-time.Hour), EndedAt: &ended},
		{ID: 11, Title: "Current", Status: model.StatusActive, CreatedAt: ended},
	}
	n, err := ImportItems(ctx, database, model.KindGame, 5, items, 2)
	if err != nil {
		t.Fatalf("ImportItems: %v", err)
	}
	if n != 2 {
		t.Errorf("imported %d, want 2", n)
	}

	games := NewItems(database, model.KindGame, tracker.Policy{}, 3)
	c, _ := games.Counts(ctx, 5)
	if c.Count != 1 || c.Limit != 2 {
		t.Errorf("counts after import = %+v", c)
	}
	grouped, _ := games.ListGrouped(ctx, 5)
	fin := grouped[model.StatusFinished]
	if len(fin) != 1 || fin[0].EndedAt == nil || !fin[0].EndedAt.Equal(ended) {
		t.Errorf("finished game not imported with ended_at: %+v", fin)
	}
}

func TestSetLimitBelowActiveCount(t *testing.T) {
	games, _ := newGames(t)
	ctx := context.Background()

	for _, title := range []string{"A", "B", "C"} {
		if _, err := games.Add(ctx, 1, model.ItemCreate{Title: title}); err != nil {
			t.Fatalf("Add %s: %v", title, err)
		}
	}

	if _, err := games.SetLimit(ctx, 1, 1); !errors.Is(err, tracker.ErrInvalidLimit) {
		t.Fatalf("SetLimit(1) = %v, want ErrInvalidLimit", err)
	}
	c, _ := games.Counts(ctx, 1)
	if c.Count != 3 || c.Limit != 3 {
		t.Errorf("counts after rejected limit = %+v", c)
	}

	// Another owner's items do not count.
	if _, err := games.SetLimit(ctx, 2, 1); err != nil {
		t.Errorf("SetLimit(1) for owner 2: %v", err)
	}
}

func TestImportItemsValidates(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	games := NewItems(database, model.KindGame, tracker.Policy{}, 3)
	if _, err := games.Add(ctx, 5, model.ItemCreate{Title: "Existing"}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	active := []model.Item{
		{ID: 1, Title: "A", Status: model.StatusActive, CreatedAt: time.Now()},
		{ID: 2, Title: "B", Status: model.StatusActive, CreatedAt: time.Now()},
	}
	if _, err := ImportItems(ctx, database, model.KindGame, 5, active, 2); !errors.Is(err, tracker.ErrInvalidLimit) {
		t.Errorf("import over limit = %v, want ErrInvalidLimit", err)
	}

	unknown := []model.Item{{ID: 3, Title: "C", Status: model.StatusReading, CreatedAt: time.Now()}}
	if _, err := ImportItems(ctx, database, model.KindGame, 5, unknown, 0); !errors.Is(err, tracker.ErrValidation) {
		t.Errorf("import with book status = %v, want ErrValidation", err)
	}

	items, _ := games.ListAll(ctx, 5)
	if len(items) != 1 {
		t.Errorf("rejected imports wrote items: %+v", items)
	}
	if c, _ := games.Counts(ctx, 5); c.Limit != 3 {
		t.Errorf("rejected import changed limit to %d", c.Limit)
	}

	// Finished items without an end time get their creation time.
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	done := []model.Item{{ID: 4, Title: "D", Status: model.StatusFinished, CreatedAt: created}}
	if _, err := ImportItems(ctx, database, model.KindGame, 5, done, 0); err != nil {
		t.Fatalf("ImportItems: %v", err)
	}
	grouped, _ := games.ListGrouped(ctx, 5)
	fin := grouped[model.StatusFinished]
	if len(fin) != 1 || fin[0].EndedAt == nil || !fin[0].EndedAt.Equal(created) {
		t.Errorf("finished items = %+v", fin)
	}
}
