package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(app *App) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/", app.HomeHandler)
	r.Get("/ping", PingHandler)

	r.Get("/search", app.SearchHandler)
	r.Post("/search", app.SearchHandler)
	r.Get("/history", app.HistoryHandler)

	r.Route("/api", func(r chi.Router) {
		r.Post("/search", app.APISearchHandler)
		r.Get("/state", app.APIStateHandler)
	})

	return r
}
