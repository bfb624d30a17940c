package api

import (
	"log/slog"
	"net/http"

	"github.com/erazemk/gametracker/internal/ghsync"
	"github.com/erazemk/gametracker/internal/model"
)

// SyncHandler exposes GitHub file sync. Syncer is nil when sync is not
// configured.
type SyncHandler struct {
	Syncer *ghsync.Syncer
}

type syncResult struct {
	Kind    model.Kind `json:"kind"`
	Success bool       `json:"success"`
	Error   string     `json:"error,omitempty"`
}

// kinds returns the kinds selected by the optional ?kind= parameter.
func (h *SyncHandler) kinds(r *http.Request) ([]model.Kind, error) {
	q := r.URL.Query().Get("kind")
	if q == "" {
		return h.Syncer.Kinds(), nil
	}
	k, err := model.ParseKind(q)
	if err != nil {
		return nil, err
	}
	return []model.Kind{k}, nil
}

// Status handles GET /api/sync/status.
func (h *SyncHandler) Status(w http.ResponseWriter, r *http.Request) {
	if h.Syncer == nil {
		jsonResponse(w, http.StatusOK, map[string]any{"enabled": false, "files": []ghsync.FileStatus{}})
		return
	}
	jsonResponse(w, http.StatusOK, map[string]any{"enabled": true, "files": h.Syncer.Status(r.Context())})
}

// Pull handles POST /api/sync/pull.
func (h *SyncHandler) Pull(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, "pull")
}

// Push handles POST /api/sync/push.
func (h *SyncHandler) Push(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, "push")
}

func (h *SyncHandler) run(w http.ResponseWriter, r *http.Request, op string) {
	if h.Syncer == nil {
		jsonError(w, http.StatusBadRequest, "github sync is not configured")
		return
	}
	kinds, err := h.kinds(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	ok := true
	results := make([]syncResult, 0, len(kinds))
	for _, kind := range kinds {
		var err error
		if op == "pull" {
			err = h.Syncer.Pull(r.Context(), kind)
		} else {
			err = h.Syncer.Push(r.Context(), kind)
		}
		res := syncResult{Kind: kind, Success: err == nil}
		if err != nil {
			ok = false
			res.Error = err.Error()
			slog.Warn("github "+op+" failed", "kind", kind, "error", err)
		}
		results = append(results, res)
	}

	status := http.StatusOK
	if !ok {
		status = http.StatusBadGateway
	}
	jsonResponse(w, status, map[string]any{"success": ok, "results": results})
}
