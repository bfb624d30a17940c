package web

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/erazemk/gametracker/internal/filestore"
	"github.com/erazemk/gametracker/internal/model"
	"github.com/erazemk/gametracker/internal/tracker"
)

func openStore(t *testing.T, kind model.Kind) *filestore.Store {
	t.Helper()
	s, err := filestore.Open(filestore.Options{
		Path:   filepath.Join(t.TempDir(), kind.Plural()+".json"),
		Kind:   kind,
		Policy: tracker.Policy{MaxLimit: 20},
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func get(t *testing.T, h http.Handler, path string) (int, string) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	body, _ := io.ReadAll(rec.Body)
	return rec.Code, string(body)
}

func TestIndexListsItemsInSingleUserMode(t *testing.T) {
	games := openStore(t, model.KindGame)
	books := openStore(t, model.KindBook)
	if _, err := games.Add(context.Background(), model.DefaultOwnerID, model.ItemCreate{Title: "Outer <Wilds>"}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	h, err := NewRouter("gametracker", false, games, books)
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}

	code, body := get(t, h, "/")
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if !strings.Contains(body, "Outer &lt;Wilds&gt;") {
		t.Error("index should list the escaped game title")
	}
	if !strings.Contains(body, "1 of 3 active") {
		t.Error("index should show the active count")
	}
}

func TestIndexHidesItemsInMultiUserMode(t *testing.T) {
	games := openStore(t, model.KindGame)
	games.Add(context.Background(), model.DefaultOwnerID, model.ItemCreate{Title: "Celeste"})

	h, err := NewRouter("gametracker", true, games)
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}

	_, body := get(t, h, "/")
	if strings.Contains(body, "Celeste") {
		t.Error("multi-user index must not list items")
	}
	if !strings.Contains(body, "/api/auth/login") {
		t.Error("multi-user index should point at the login endpoint")
	}
}

func TestStaticAndUnknownPaths(t *testing.T) {
	h, err := NewRouter("gametracker", false)
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}

	if code, _ := get(t, h, "/static/style.css"); code != http.StatusOK {
		t.Errorf("stylesheet: expected 200, got %d", code)
	}
	if code, _ := get(t, h, "/nope"); code != http.StatusNotFound {
		t.Errorf("unknown path: expected 404, got %d", code)
	}
}
