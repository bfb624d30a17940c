// Package web serves the HTML landing page.
package web

import (
	"log/slog"
	"net/http"

	"github.com/erazemk/gametracker/internal/model"
	"github.com/erazemk/gametracker/internal/tracker"
	webembed "github.com/erazemk/gametracker/web"
)

// Server holds the landing page dependencies.
type Server struct {
	AppName   string
	MultiUser bool
	Stores    []tracker.Store
	Templates *Templates
}

type group struct {
	Status model.Status
	Items  []model.Item
}

type section struct {
	Heading       string
	LimitedStatus model.Status
	Counts        *model.Counts
	Groups        []group
}

type indexData struct {
	Title     string
	AppName   string
	MultiUser bool
	Sections  []section
}

// NewRouter creates the page router. Item lists are only shown in
// single-user mode, where they need no credentials.
func NewRouter(appName string, multiUser bool, stores ...tracker.Store) (http.Handler, error) {
	templates, err := LoadTemplates()
	if err != nil {
		return nil, err
	}
	static, err := webembed.StaticFS()
	if err != nil {
		return nil, err
	}

	s := &Server{AppName: appName, MultiUser: multiUser, Stores: stores, Templates: templates}

	mux := http.NewServeMux()
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.FS(static))))
	mux.HandleFunc("GET /{$}", s.Index)
	return mux, nil
}

// Index handles GET /.
func (s *Server) Index(w http.ResponseWriter, r *http.Request) {
	data := indexData{Title: "Home", AppName: s.AppName, MultiUser: s.MultiUser}

	if !s.MultiUser {
		for _, st := range s.Stores {
			kind := st.Kind()
			sec := section{Heading: kind.Plural(), LimitedStatus: kind.LimitedStatus()}

			counts, err := st.Counts(r.Context(), model.DefaultOwnerID)
			if err != nil {
				slog.Error("failed to count items for index", "kind", kind, "error", err)
			}
			sec.Counts = counts

			groups, err := st.ListGrouped(r.Context(), model.DefaultOwnerID)
			if err != nil {
				slog.Error("failed to list items for index", "kind", kind, "error", err)
			}
			for _, status := range kind.Statuses() {
				sec.Groups = append(sec.Groups, group{Status: status, Items: groups[status]})
			}
			data.Sections = append(data.Sections, sec)
		}
	}

	s.Templates.Render(w, "index.html", data)
}
