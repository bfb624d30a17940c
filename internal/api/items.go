package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/erazemk/gametracker/internal/model"
	"github.com/erazemk/gametracker/internal/tracker"
)

// ItemsHandler serves the endpoints of one kind.
type ItemsHandler struct {
	Store tracker.Store
}

// createItemRequest accepts "name" as a legacy alias for "title".
type createItemRequest struct {
	Title    string       `json:"title"`
	Name     string       `json:"name"`
	Author   string       `json:"author"`
	Status   model.Status `json:"status"`
	Notes    string       `json:"notes"`
	Rating   *int         `json:"rating"`
	Reason   string       `json:"reason"`
	Progress string       `json:"progress"`
}

type updateItemRequest struct {
	Title    *string       `json:"title"`
	Name     *string       `json:"name"`
	Author   *string       `json:"author"`
	Status   *model.Status `json:"status"`
	Notes    *string       `json:"notes"`
	Rating   nullableInt   `json:"rating"`
	Reason   *string       `json:"reason"`
	Progress *string       `json:"progress"`
}

// nullableInt tells an omitted field from an explicit null.
type nullableInt struct {
	Set   bool
	Value *int
}

func (n *nullableInt) UnmarshalJSON(data []byte) error {
	n.Set = true
	if string(data) == "null" {
		n.Value = nil
		return nil
	}
	var v int
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	n.Value = &v
	return nil
}

type limitRequest struct {
	Limit *int `json:"limit"`
}

func ownerID(r *http.Request) int64 {
	if claims := GetClaims(r.Context()); claims != nil {
		return claims.UserID
	}
	return model.DefaultOwnerID
}

// List handles GET /api/{kind}s.
func (h *ItemsHandler) List(w http.ResponseWriter, r *http.Request) {
	groups, err := h.Store.ListGrouped(r.Context(), ownerID(r))
	if err != nil {
		storeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, groups)
}

// Counts handles the count endpoints.
func (h *ItemsHandler) Counts(w http.ResponseWriter, r *http.Request) {
	counts, err := h.Store.Counts(r.Context(), ownerID(r))
	if err != nil {
		storeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, counts)
}

// Create handles POST /api/{kind}s.
func (h *ItemsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createItemRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	title := req.Title
	if title == "" {
		title = req.Name
	}

	item, err := h.Store.Add(r.Context(), ownerID(r), model.ItemCreate{
		Title:    title,
		Author:   req.Author,
		Status:   req.Status,
		Notes:    req.Notes,
		Rating:   req.Rating,
		Reason:   req.Reason,
		Progress: req.Progress,
	})
	if err != nil {
		storeError(w, r, err)
		return
	}

	slog.Info(string(h.Store.Kind())+" created", "id", item.ID, "title", item.Title, "status", item.Status, "owner", item.OwnerID)
	jsonResponse(w, http.StatusOK, item)
}

// Update handles PATCH /api/{kind}s/{id}.
func (h *ItemsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid id")
		return
	}

	var req updateItemRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	title := req.Title
	if title == nil {
		title = req.Name
	}

	item, err := h.Store.Update(r.Context(), ownerID(r), id, model.ItemUpdate{
		Title:       title,
		Author:      req.Author,
		Status:      req.Status,
		Notes:       req.Notes,
		Rating:      req.Rating.Value,
		ClearRating: req.Rating.Set && req.Rating.Value == nil,
		Reason:      req.Reason,
		Progress:    req.Progress,
	})
	if err != nil {
		storeError(w, r, err)
		return
	}

	slog.Info(string(h.Store.Kind())+" updated", "id", item.ID, "status", item.Status, "owner", item.OwnerID)
	jsonResponse(w, http.StatusOK, item)
}

// Delete handles DELETE /api/{kind}s/{id}.
func (h *ItemsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid id")
		return
	}

	if err := h.Store.Delete(r.Context(), ownerID(r), id); err != nil {
		storeError(w, r, err)
		return
	}

	slog.Info(string(h.Store.Kind())+" deleted", "id", id, "owner", ownerID(r))
	jsonResponse(w, http.StatusOK, map[string]bool{"success": true})
}

// SetLimit handles the limit settings endpoints and returns the refreshed
// counts.
func (h *ItemsHandler) SetLimit(w http.ResponseWriter, r *http.Request) {
	var req limitRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Limit == nil {
		jsonError(w, http.StatusBadRequest, "limit required")
		return
	}

	counts, err := h.Store.SetLimit(r.Context(), ownerID(r), *req.Limit)
	if err != nil {
		storeError(w, r, err)
		return
	}

	slog.Info(string(h.Store.Kind())+" limit changed", "limit", *req.Limit, "owner", ownerID(r))
	jsonResponse(w, http.StatusOK, counts)
}
