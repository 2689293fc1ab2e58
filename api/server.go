/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/punch/*            Clock events, status, anomalies
  /api/weekly-admin/*     Manager week view, approvals, week locks
  /api/snapshots/*        Schedule snapshot version chains
  /api/scenarios/*        Demo scenarios
  /api/reset              Database reset (dev only)

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public;
  identity comes from request bodies and must be enforced upstream.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Punch routes: the clock ledger and what derives from it
		r.Route("/punch", func(r chi.Router) {
			r.Post("/clock-in", h.ClockIn)
			r.Post("/clock-out", h.ClockOut)
			r.Post("/pause-in", h.PauseIn)
			r.Post("/pause-out", h.PauseOut)
			r.Get("/status/{staffId}", h.GetStatus)
			r.Get("/time-events/{staffId}", h.GetTimeEvents)
			r.Get("/deltas/{staffId}", h.GetDeltas)
			r.Get("/anomalies/{venueId}", h.GetAnomalies)
			r.Patch("/anomalies/{anomalyId}/resolve", h.ResolveAnomaly)
		})

		// Weekly admin routes: the manager's end-of-week workflow
		r.Route("/weekly-admin/{venueId}", func(r chi.Router) {
			r.Get("/", h.GetWeeklyAdmin)
			r.Patch("/resolve-anomaly", h.ResolveAnomalyAdmin)
			r.Post("/reconcile", h.ReconcileExtraHours)
			r.Post("/approve-extra-hours", h.ApproveExtraHours)
			r.Post("/lock-week", h.LockWeek)
			r.Post("/unlock-week", h.UnlockWeek)
			r.Post("/close-week", h.CloseWeek)
		})

		// Snapshot routes: version chains of planned schedules
		r.Route("/snapshots", func(r chi.Router) {
			r.Post("/", h.CreateSnapshot)
			r.Post("/versions", h.NewSnapshotVersion)
			r.Get("/staff-shifts", h.GetStaffShifts)
			r.Get("/{id}", h.GetSnapshot)
			r.Put("/{id}", h.UpdateSnapshot)
			r.Delete("/{id}", h.DeleteSnapshot)
			r.Post("/{id}/publish", h.PublishSnapshot)
			r.Post("/{id}/lock", h.LockSnapshot)
			r.Post("/{id}/archive", h.ArchiveSnapshot)
			r.Get("/{id}/history", h.GetSnapshotHistory)
		})

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
			r.Post("/reset", h.ResetDatabase)
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return r
}
