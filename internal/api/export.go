package api

import (
	"bytes"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/erazemk/gametracker/internal/export"
	"github.com/erazemk/gametracker/internal/tracker"
)

// ExportHandler renders an owner's items as a download.
type ExportHandler struct {
	AppName string
	Stores  []tracker.Store
}

type exportRequest struct {
	IncludeGames *bool  `json:"include_games"`
	IncludeBooks *bool  `json:"include_books"`
	Format       string `json:"format"`
}

func (req exportRequest) includes(plural string) bool {
	var p *bool
	switch plural {
	case "games":
		p = req.IncludeGames
	case "books":
		p = req.IncludeBooks
	}
	return p == nil || *p
}

// Export handles POST /api/export.
func (h *ExportHandler) Export(w http.ResponseWriter, r *http.Request) {
	var req exportRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	format, err := export.ParseFormat(req.Format)
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	claims := GetClaims(r.Context())
	e := &export.Export{Username: claims.Username, ExportedAt: time.Now()}
	for _, s := range h.Stores {
		if !req.includes(s.Kind().Plural()) {
			continue
		}
		items, err := s.ListAll(r.Context(), claims.UserID)
		if err != nil {
			storeError(w, r, err)
			return
		}
		e.Datasets = append(e.Datasets, export.Dataset{Kind: s.Kind(), Items: items})
	}
	if len(e.Datasets) == 0 {
		jsonError(w, http.StatusBadRequest, "nothing selected for export")
		return
	}

	var buf bytes.Buffer
	if err := export.Write(&buf, e, format); err != nil {
		slog.Error("rendering export", "format", format, "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to render export")
		return
	}

	name := export.Filename(h.AppName, e.Username, e.ExportedAt, format)
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		slog.Warn("writing export", "error", err)
		return
	}

	slog.Info("data exported", "user", e.Username, "format", format, "file", name)
}
