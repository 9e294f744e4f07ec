package api

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"html/template"
	"log"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/kdimtricp/moviegpt/internal/discovery"
	"github.com/kdimtricp/moviegpt/internal/models"
	"github.com/kdimtricp/moviegpt/internal/search"
)

const (
	sessionCookieName = "moviegpt_session"
	posterSize        = "w342"
	historyPageSize   = 50
)

//go:embed templates/*.html
var templateFS embed.FS

type HistoryLister interface {
	ListRecent(ctx context.Context, limit int) ([]models.SearchRecord, error)
	Count(ctx context.Context) (int, error)
}

type App struct {
	Discovery *discovery.Service
	// History is nil when search history is disabled.
	History HistoryLister
	TMDb    *search.TMDbClient

	templates *template.Template
}

// NewApp parses the page templates once. tmdb supplies poster URLs.
func NewApp(svc *discovery.Service, history HistoryLister, tmdb *search.TMDbClient) (*App, error) {
	app := &App{
		Discovery: svc,
		History:   history,
		TMDb:      tmdb,
	}

	tmpl, err := template.New("").Funcs(template.FuncMap{
		"poster": func(path string) string {
			return app.TMDb.GetImageURL(path, posterSize)
		},
		"ago": humanize.Time,
		"stamp": func(t time.Time) string {
			return t.Local().Format("Jan 2, 2006 15:04")
		},
		"ms": func(d time.Duration) int64 {
			return d.Milliseconds()
		},
	}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	app.templates = tmpl

	return app, nil
}

type pageData struct {
	Title          string
	State          discovery.State
	HistoryEnabled bool
}

func PingHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("pong"))
}

func (app *App) HomeHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := app.sessionID(w, r)
	app.render(w, "base.html", app.page(app.currentState(sessionID)))
}

// SearchHandler runs a search cycle for the form value q. HTMX requests get
// only the results partial.
func (app *App) SearchHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := app.sessionID(w, r)
	state := app.Discovery.Search(r.Context(), sessionID, r.FormValue("q"))

	if r.Header.Get("HX-Request") == "true" {
		app.render(w, "results", state)
		return
	}

	app.render(w, "base.html", app.page(state))
}

func (app *App) HistoryHandler(w http.ResponseWriter, r *http.Request) {
	if app.History == nil {
		http.Error(w, "Search history is disabled", http.StatusNotFound)
		return
	}

	records, err := app.History.ListRecent(r.Context(), historyPageSize)
	if err != nil {
		log.Printf("[API] Error loading history: %v", err)
		http.Error(w, "Error loading history", http.StatusInternalServerError)
		return
	}

	total, err := app.History.Count(r.Context())
	if err != nil {
		log.Printf("[API] Error counting history: %v", err)
		http.Error(w, "Error loading history", http.StatusInternalServerError)
		return
	}

	data := struct {
		Title   string
		Total   int
		Records []models.SearchRecord
	}{
		Title:   "MovieGPT history",
		Total:   total,
		Records: records,
	}

	app.render(w, "history.html", data)
}

type searchRequest struct {
	Query string `json:"query"`
}

func (app *App) APISearchHandler(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}

	sessionID := app.sessionID(w, r)
	state := app.Discovery.Search(r.Context(), sessionID, req.Query)

	writeJSON(w, http.StatusOK, state)
}

func (app *App) APIStateHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := app.sessionID(w, r)
	writeJSON(w, http.StatusOK, app.currentState(sessionID))
}

// currentState tolerates cookies for sessions the service no longer knows.
func (app *App) currentState(sessionID string) discovery.State {
	if state, ok := app.Discovery.GetState(sessionID); ok {
		return state
	}
	return discovery.State{SessionID: sessionID, Movies: []search.Movie{}}
}

func (app *App) page(state discovery.State) pageData {
	return pageData{
		Title:          "MovieGPT",
		State:          state,
		HistoryEnabled: app.History != nil,
	}
}

// sessionID returns the caller's session, issuing a cookie for new visitors
// and for cookies that do not hold a session id.
func (app *App) sessionID(w http.ResponseWriter, r *http.Request) string {
	if cookie, err := r.Cookie(sessionCookieName); err == nil {
		if _, err := uuid.Parse(cookie.Value); err == nil {
			return cookie.Value
		}
	}

	id := app.Discovery.NewSession()
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}

func (app *App) render(w http.ResponseWriter, name string, data any) {
	var buf bytes.Buffer
	if err := app.templates.ExecuteTemplate(&buf, name, data); err != nil {
		log.Printf("[API] Error rendering %s: %v", name, err)
		http.Error(w, "Error rendering template", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	buf.WriteTo(w)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[API] Error encoding response: %v", err)
	}
}
