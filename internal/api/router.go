package api

import (
	"net/http"
	"time"

	"github.com/erazemk/gametracker/internal/db"
	"github.com/erazemk/gametracker/internal/ghsync"
	"github.com/erazemk/gametracker/internal/tracker"
)

// Deps holds what the router serves. DB is nil in single-user mode, which
// disables the account endpoints and skips token checks.
type Deps struct {
	Games          tracker.Store
	Books          tracker.Store
	DB             *db.DB
	JWTSecret      string
	TokenTTL       time.Duration
	DefaultLimit   int
	SingleUserName string
	AppName        string
	Syncer         *ghsync.Syncer
}

// NewRouter creates the API router with all endpoints registered.
func NewRouter(d Deps) http.Handler {
	mux := http.NewServeMux()

	authHandler := &AuthHandler{
		DB:             d.DB,
		JWTSecret:      d.JWTSecret,
		TokenTTL:       d.TokenTTL,
		DefaultLimit:   d.DefaultLimit,
		SingleUserName: d.SingleUserName,
	}
	gamesHandler := &ItemsHandler{Store: d.Games}
	booksHandler := &ItemsHandler{Store: d.Books}
	exportHandler := &ExportHandler{AppName: d.AppName, Stores: []tracker.Store{d.Games, d.Books}}
	syncHandler := &SyncHandler{Syncer: d.Syncer}
	healthHandler := &HealthHandler{Games: d.Games, Books: d.Books}

	authMW := AuthMiddleware(d.JWTSecret, d.DB, d.SingleUserName)

	// Public.
	mux.HandleFunc("GET /health", healthHandler.Health)
	if d.DB != nil {
		mux.HandleFunc("POST /api/auth/register", authHandler.Register)
		mux.HandleFunc("POST /api/auth/login", authHandler.Login)
		mux.Handle("POST /api/auth/logout", authMW(http.HandlerFunc(authHandler.Logout)))
		mux.Handle("PUT /api/auth/password", authMW(http.HandlerFunc(authHandler.ChangePassword)))
	}
	mux.Handle("GET /api/auth/me", authMW(http.HandlerFunc(authHandler.Me)))

	// Games.
	mux.Handle("GET /api/games", authMW(http.HandlerFunc(gamesHandler.List)))
	mux.Handle("POST /api/games", authMW(http.HandlerFunc(gamesHandler.Create)))
	mux.Handle("PATCH /api/games/{id}", authMW(http.HandlerFunc(gamesHandler.Update)))
	mux.Handle("DELETE /api/games/{id}", authMW(http.HandlerFunc(gamesHandler.Delete)))
	mux.Handle("GET /api/active-count", authMW(http.HandlerFunc(gamesHandler.Counts)))
	mux.Handle("POST /api/settings/limit", authMW(http.HandlerFunc(gamesHandler.SetLimit)))

	// Books.
	mux.Handle("GET /api/books", authMW(http.HandlerFunc(booksHandler.List)))
	mux.Handle("POST /api/books", authMW(http.HandlerFunc(booksHandler.Create)))
	mux.Handle("PATCH /api/books/{id}", authMW(http.HandlerFunc(booksHandler.Update)))
	mux.Handle("DELETE /api/books/{id}", authMW(http.HandlerFunc(booksHandler.Delete)))
	mux.Handle("GET /api/reading-count", authMW(http.HandlerFunc(booksHandler.Counts)))
	mux.Handle("POST /api/books/settings/limit", authMW(http.HandlerFunc(booksHandler.SetLimit)))

	mux.Handle("POST /api/export", authMW(http.HandlerFunc(exportHandler.Export)))

	// GitHub sync.
	mux.Handle("GET /api/sync/status", authMW(http.HandlerFunc(syncHandler.Status)))
	mux.Handle("POST /api/sync/pull", authMW(http.HandlerFunc(syncHandler.Pull)))
	mux.Handle("POST /api/sync/push", authMW(http.HandlerFunc(syncHandler.Push)))

	return mux
}
