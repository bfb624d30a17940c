package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
	"golang.org/x/crypto/bcrypt"

	"github.com/erazemk/gametracker/internal/db"
	"github.com/erazemk/gametracker/internal/filestore"
	"github.com/erazemk/gametracker/internal/model"
	"github.com/erazemk/gametracker/internal/store"
	"github.com/erazemk/gametracker/internal/tracker"
)

const testJWTSecret = "test-secret"

func serve(t *testing.T, d Deps) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(SecurityHeaders(NewRouter(d)))
	t.Cleanup(server.Close)
	return server
}

// setupFileServer runs in single-user mode on JSON file stores.
func setupFileServer(t *testing.T) *httptest.Server {
	t.Helper()
	dir := t.TempDir()
	open := func(kind model.Kind, name string) *filestore.Store {
		s, err := filestore.Open(filestore.Options{
			Path:   filepath.Join(dir, name),
			Kind:   kind,
			Policy: tracker.Policy{MaxLimit: 20},
		})
		if err != nil {
			t.Fatalf("opening %s store: %v", kind, err)
		}
		t.Cleanup(func() { s.Close() })
		return s
	}
	return serve(t, Deps{
		Games:          open(model.KindGame, "games_data.json"),
		Books:          open(model.KindBook, "books_data.json"),
		SingleUserName: "default",
		AppName:        "gametracker",
	})
}

// setupDBServer runs in multi-user mode with one registered user and
// returns that user's token.
func setupDBServer(t *testing.T) (*httptest.Server, *db.DB, string) {
	t.Helper()
	database := db.NewTestDB(t)
	policy := tracker.Policy{MaxLimit: 20}
	server := serve(t, Deps{
		Games:        store.NewItems(database, model.KindGame, policy, 3),
		Books:        store.NewItems(database, model.KindBook, policy, 3),
		DB:           database,
		JWTSecret:    testJWTSecret,
		DefaultLimit: 3,
		AppName:      "gametracker",
	})

	resp := doJSON(t, "POST", server.URL+"/api/auth/register", "", map[string]string{
		"username": "alice", "email": "alice@example.com", "password": "password1",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	return server, database, login(t, server, "alice", "password1")
}

func login(t *testing.T, server *httptest.Server, username, password string) string {
	t.Helper()
	resp := doJSON(t, "POST", server.URL+"/api/auth/login", "", map[string]string{
		"username": username, "password": password,
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login failed: %d", resp.StatusCode)
	}

	var out loginResponse
	json.NewDecoder(resp.Body).Decode(&out)
	if out.AccessToken == "" || out.TokenType != "bearer" || out.ExpiresIn <= 0 {
		t.Fatalf("unexpected login response %+v", out)
	}
	return out.AccessToken
}

func doJSON(t *testing.T, method, url, token string, body any) *http.Response {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	return v
}

func TestGamesFlowSingleUser(t *testing.T) {
	server := setupFileServer(t)

	// Limit of one makes the second active game fail.
	resp := doJSON(t, "POST", server.URL+"/api/settings/limit", "", map[string]int{"limit": 1})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("set limit: expected 200, got %d", resp.StatusCode)
	}
	counts := decode[map[string]int](t, resp)
	if counts["limit"] != 1 {
		t.Errorf("limit = %d, want 1", counts["limit"])
	}

	resp = doJSON(t, "POST", server.URL+"/api/games", "", map[string]string{"title": "Celeste"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("create: expected 200, got %d", resp.StatusCode)
	}
	first := decode[model.Item](t, resp)

	resp = doJSON(t, "POST", server.URL+"/api/games", "", map[string]string{"name": "Hades"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("over limit: expected 400, got %d", resp.StatusCode)
	}
	errBody := decode[map[string]string](t, resp)
	if !strings.Contains(errBody["error"], "limit") {
		t.Errorf("error = %q", errBody["error"])
	}

	// Finishing the first frees the slot.
	resp = doJSON(t, "PATCH", server.URL+"/api/games/"+itoa(first.ID), "", map[string]string{"status": "finished"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update: expected 200, got %d", resp.StatusCode)
	}
	updated := decode[model.Item](t, resp)
	if updated.EndedAt == nil {
		t.Error("finished game should have ended_at")
	}

	resp = doJSON(t, "POST", server.URL+"/api/games", "", map[string]string{"name": "Hades"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("create after finish: expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doJSON(t, "GET", server.URL+"/api/games", "", nil)
	groups := decode[map[string][]model.Item](t, resp)
	if len(groups["active"]) != 1 || len(groups["finished"]) != 1 || groups["dropped"] == nil {
		t.Errorf("groups = %v", groups)
	}

	resp = doJSON(t, "GET", server.URL+"/api/active-count", "", nil)
	counts = decode[map[string]int](t, resp)
	if counts["count"] != 1 || counts["limit"] != 1 {
		t.Errorf("counts = %v", counts)
	}
}

func TestDuplicateAndNotFound(t *testing.T) {
	server := setupFileServer(t)

	resp := doJSON(t, "POST", server.URL+"/api/books", "", map[string]string{"title": "Dune", "author": "Herbert"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("create: expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doJSON(t, "POST", server.URL+"/api/books", "", map[string]string{"title": "dune "})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("duplicate: expected 400, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doJSON(t, "DELETE", server.URL+"/api/books/99", "", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("delete missing: expected 404, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doJSON(t, "PATCH", server.URL+"/api/books/abc", "", map[string]string{"notes": "x"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad id: expected 400, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doJSON(t, "POST", server.URL+"/api/books/settings/limit", "", map[string]int{"limit": 0})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("limit 0: expected 400, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestDeleteReturnsSuccess(t *testing.T) {
	server := setupFileServer(t)

	resp := doJSON(t, "POST", server.URL+"/api/games", "", map[string]string{"title": "Tunic"})
	item := decode[model.Item](t, resp)

	resp = doJSON(t, "DELETE", server.URL+"/api/games/"+itoa(item.ID), "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete: expected 200, got %d", resp.StatusCode)
	}
	body := decode[map[string]bool](t, resp)
	if !body["success"] {
		t.Errorf("body = %v", body)
	}
}

func TestHealth(t *testing.T) {
	server := setupFileServer(t)

	resp := doJSON(t, "POST", server.URL+"/api/games", "", map[string]string{"title": "Celeste"})
	resp.Body.Close()

	resp = doJSON(t, "GET", server.URL+"/health", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if resp.Header.Get("X-Content-Type-Options") != "nosniff" {
		t.Error("missing security headers")
	}
	health := decode[healthResponse](t, resp)
	if health.Status != "healthy" || health.ActiveGames != 1 || health.ReadingBooks != 0 {
		t.Errorf("health = %+v", health)
	}
}

func TestSingleUserHasNoAccountEndpoints(t *testing.T) {
	server := setupFileServer(t)

	resp := doJSON(t, "POST", server.URL+"/api/auth/login", "", map[string]string{"username": "a", "password": "b"})
	if resp.StatusCode != http.StatusNotFound && resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("login in single-user mode: got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doJSON(t, "GET", server.URL+"/api/auth/me", "", nil)
	me := decode[model.User](t, resp)
	if me.ID != model.DefaultOwnerID || me.Username != "default" {
		t.Errorf("me = %+v", me)
	}
}

func TestSyncNotConfigured(t *testing.T) {
	server := setupFileServer(t)

	resp := doJSON(t, "GET", server.URL+"/api/sync/status", "", nil)
	status := decode[map[string]any](t, resp)
	if status["enabled"] != false {
		t.Errorf("status = %v", status)
	}

	resp = doJSON(t, "POST", server.URL+"/api/sync/push", "", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("push: expected 400, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestExportFormats(t *testing.T) {
	server := setupFileServer(t)

	resp := doJSON(t, "POST", server.URL+"/api/games", "", map[string]string{"title": "Celeste"})
	resp.Body.Close()
	resp = doJSON(t, "POST", server.URL+"/api/books", "", map[string]string{"title": "Dune"})
	resp.Body.Close()

	resp = doJSON(t, "POST", server.URL+"/api/export", "", map[string]any{"include_books": false})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("json export: expected 200, got %d", resp.StatusCode)
	}
	disposition := resp.Header.Get("Content-Disposition")
	if !strings.HasPrefix(disposition, `attachment; filename="gametracker_export_default_`) || !strings.HasSuffix(disposition, `.json"`) {
		t.Errorf("Content-Disposition = %q", disposition)
	}
	out := decode[map[string]json.RawMessage](t, resp)
	if _, ok := out["games"]; !ok {
		t.Error("export missing games")
	}
	if _, ok := out["books"]; ok {
		t.Error("export should not include books")
	}

	resp = doJSON(t, "POST", server.URL+"/api/export", "", map[string]string{"format": "xlsx"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("xlsx export: expected 200, got %d", resp.StatusCode)
	}
	defer resp.Body.Close()
	f, err := excelize.OpenReader(resp.Body)
	if err != nil {
		t.Fatalf("opening xlsx: %v", err)
	}
	defer f.Close()
	if sheets := f.GetSheetList(); len(sheets) != 2 {
		t.Errorf("sheets = %v", sheets)
	}

	resp = doJSON(t, "POST", server.URL+"/api/export", "", map[string]string{"format": "pdf"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("pdf export: expected 400, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestRegisterAndLogin(t *testing.T) {
	server, _, token := setupDBServer(t)

	resp := doJSON(t, "POST", server.URL+"/api/auth/register", "", map[string]string{
		"username": "alice", "email": "other@example.com", "password": "password1",
	})
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("duplicate register: expected 409, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doJSON(t, "POST", server.URL+"/api/auth/register", "", map[string]string{
		"username": "bob", "email": "bob@example.com", "password": "short",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("short password: expected 400, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doJSON(t, "POST", server.URL+"/api/auth/login", "", map[string]string{"username": "alice", "password": "wrong"})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("bad password: expected 401, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Email works as the login name.
	resp = doJSON(t, "POST", server.URL+"/api/auth/login", "", map[string]string{"email": "alice@example.com", "password": "password1"})
	if resp.StatusCode != http.StatusOK {
		t.Errorf("email login: expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doJSON(t, "GET", server.URL+"/api/auth/me", token, nil)
	me := decode[model.User](t, resp)
	if me.Username != "alice" || !me.Active {
		t.Errorf("me = %+v", me)
	}
}

func TestUnauthenticatedAccess(t *testing.T) {
	server, _, _ := setupDBServer(t)

	resp, _ := http.Get(server.URL + "/api/games")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 for unauthenticated request, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doJSON(t, "GET", server.URL+"/api/games", "not-a-token", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 for garbage token, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestLogoutRevokesToken(t *testing.T) {
	server, _, token := setupDBServer(t)

	resp := doJSON(t, "POST", server.URL+"/api/auth/logout", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("logout: expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doJSON(t, "GET", server.URL+"/api/games", token, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 after logout, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestDisabledUserIsForbidden(t *testing.T) {
	server, database, token := setupDBServer(t)

	user, err := store.GetUserByLogin(context.Background(), database, "alice")
	if err != nil || user == nil {
		t.Fatalf("GetUserByLogin: %v", err)
	}
	if err := store.SetUserActive(context.Background(), database, user.ID, false); err != nil {
		t.Fatalf("SetUserActive: %v", err)
	}

	resp := doJSON(t, "GET", server.URL+"/api/games", token, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("existing token: expected 403, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doJSON(t, "POST", server.URL+"/api/auth/login", "", map[string]string{"username": "alice", "password": "password1"})
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("login: expected 403, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestUsersSeeOnlyTheirItems(t *testing.T) {
	server, database, aliceToken := setupDBServer(t)

	hash, _ := bcrypt.GenerateFromPassword([]byte("password2"), bcrypt.DefaultCost)
	if _, err := store.CreateUser(context.Background(), database, "bob", "bob@example.com", string(hash), 3); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	bobToken := login(t, server, "bob", "password2")

	resp := doJSON(t, "POST", server.URL+"/api/games", aliceToken, map[string]string{"title": "Celeste"})
	item := decode[model.Item](t, resp)

	// Both may track the same title.
	resp = doJSON(t, "POST", server.URL+"/api/games", bobToken, map[string]string{"title": "Celeste"})
	if resp.StatusCode != http.StatusOK {
		t.Errorf("bob create: expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doJSON(t, "DELETE", server.URL+"/api/games/"+itoa(item.ID), bobToken, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("bob deleting alice's game: expected 404, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doJSON(t, "GET", server.URL+"/api/active-count", aliceToken, nil)
	counts := decode[map[string]int](t, resp)
	if counts["count"] != 1 || counts["limit"] != 3 {
		t.Errorf("alice counts = %v", counts)
	}
}

func TestCORS(t *testing.T) {
	handler := CORS("https://tracker.example")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodOptions, "/api/games", nil)
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Errorf("preflight: expected 204, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "https://tracker.example" {
		t.Errorf("allow origin = %q", rec.Header().Get("Access-Control-Allow-Origin"))
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/games", nil))
	if rec.Code != http.StatusTeapot {
		t.Errorf("simple request: expected handler status, got %d", rec.Code)
	}
}

func itoa(id int64) string { return strconv.FormatInt(id, 10) }

func TestLimitCannotDropBelowActiveCount(t *testing.T) {
	server := setupFileServer(t)

	for _, title := range []string{"A", "B"} {
		resp := doJSON(t, "POST", server.URL+"/api/games", "", map[string]string{"title": title})
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("create %s: expected 200, got %d", title, resp.StatusCode)
		}
		resp.Body.Close()
	}

	resp := doJSON(t, "POST", server.URL+"/api/settings/limit", "", map[string]int{"limit": 1})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("limit below count: expected 400, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doJSON(t, "GET", server.URL+"/api/active-count", "", nil)
	counts := decode[map[string]int](t, resp)
	if counts["count"] != 2 || counts["limit"] != 3 {
		t.Errorf("counts = %v", counts)
	}
}

func TestRatingCanBeCleared(t *testing.T) {
	server := setupFileServer(t)

	resp := doJSON(t, "POST", server.URL+"/api/games", "", map[string]any{"title": "Celeste", "rating": 8})
	item := decode[model.Item](t, resp)
	url := server.URL + "/api/games/" + itoa(item.ID)

	resp = doJSON(t, "PATCH", url, "", map[string]string{"notes": "b-sides"})
	item = decode[model.Item](t, resp)
	if item.Rating == nil || *item.Rating != 8 {
		t.Fatalf("omitted rating should be kept, got %v", item.Rating)
	}

	resp = doJSON(t, "PATCH", url, "", map[string]any{"rating": nil})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("clear rating: expected 200, got %d", resp.StatusCode)
	}
	item = decode[model.Item](t, resp)
	if item.Rating != nil {
		t.Errorf("rating = %d, want cleared", *item.Rating)
	}
}
