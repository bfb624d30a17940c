package api

import (
	"net/http"

	"github.com/erazemk/gametracker/internal/model"
	"github.com/erazemk/gametracker/internal/tracker"
)

// HealthHandler reports liveness along with tracker-wide totals.
type HealthHandler struct {
	Games tracker.Store
	Books tracker.Store
}

type healthResponse struct {
	Status       string `json:"status"`
	Message      string `json:"message"`
	ActiveGames  int    `json:"active_games"`
	ReadingBooks int    `json:"reading_books"`
}

// Health handles GET /health.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	games, err := h.Games.Total(r.Context(), model.StatusActive)
	if err != nil {
		jsonResponse(w, http.StatusServiceUnavailable, healthResponse{Status: "unhealthy", Message: "games store unavailable"})
		return
	}
	books, err := h.Books.Total(r.Context(), model.StatusReading)
	if err != nil {
		jsonResponse(w, http.StatusServiceUnavailable, healthResponse{Status: "unhealthy", Message: "books store unavailable"})
		return
	}
	jsonResponse(w, http.StatusOK, healthResponse{
		Status:       "healthy",
		Message:      "tracker is running",
		ActiveGames:  games,
		ReadingBooks: books,
	})
}
