// Package httpapi exposes the reminder service over HTTP.
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/notexe/reminderd/internal/reminder"
)

// Principal headers. Authentication happens in front of this service; the
// gateway forwards the verified identity in these headers.
const (
	HeaderPrincipalID    = "X-Principal-ID"
	HeaderPrincipalRoles = "X-Principal-Roles"
)

type App struct {
	Service *reminder.Service
}

// NewRouter builds the HTTP handler.
func NewRouter(app *App, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", HeaderPrincipalID, HeaderPrincipalRoles},
		MaxAge:         int((10 * time.Minute).Seconds()),
	}))

	RegisterRoutes(r, app)
	return r
}

func RegisterRoutes(r chi.Router, app *App) {
	r.Get("/healthz", healthHandler)

	r.Route("/reminders", func(r chi.Router) {
		r.Post("/", app.createReminder)
		r.Get("/", app.listReminders)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", app.getReminder)
			r.Patch("/", app.updateReminder)
			r.Delete("/", app.deleteReminder)
			r.Post("/complete", app.completeReminder)
			r.Post("/acknowledge", app.acknowledgeReminder)
			r.Post("/cancel", app.cancelReminder)
			r.Post("/resynthesize", app.resynthesizeReminder)
		})
	})
}
