// Package httpserver is the REST transport of the notes API.
package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/and161185/tenant-notes/internal/errs"
	"github.com/and161185/tenant-notes/internal/model"
	"github.com/and161185/tenant-notes/internal/ratelimit"
	"github.com/and161185/tenant-notes/internal/service"
)

// Pinger reports whether the database is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps collects the transport's collaborators.
type Deps struct {
	Auth    service.AuthService
	Notes   service.NoteService
	Tenants service.TenantService
	DB      Pinger
	Logger  *zap.Logger

	// Cookie is the policy used when clearing cookies on logout.
	Cookie     model.CookiePolicy
	CORSOrigin string
	TrustXFF   bool

	// AuthLimiter throttles the unauthenticated auth routes; nil disables it.
	AuthLimiter *ratelimit.Store
	AuthStats   ratelimit.StatsRecorder
}

// Server holds handlers and their dependencies.
type Server struct {
	auth     service.AuthService
	notes    service.NoteService
	tenants  service.TenantService
	db       Pinger
	log      *zap.Logger
	cookie   model.CookiePolicy
	trustXFF bool
}

// New builds the Server.
func New(d Deps) *Server {
	log := d.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		auth:     d.Auth,
		notes:    d.Notes,
		tenants:  d.Tenants,
		db:       d.DB,
		log:      log,
		cookie:   d.Cookie,
		trustXFF: d.TrustXFF,
	}
}

// NewRouter wires every route of the API.
func NewRouter(d Deps) http.Handler {
	s := New(d)
	origin := d.CORSOrigin
	if origin == "" {
		origin = "*"
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(RequestLogger(s.log))
	r.Use(s.Recoverer)
	r.Use(CORS(origin))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, r, errs.New(errs.ErrNotFound, "Route not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, envelope{
			StatusCode: http.StatusMethodNotAllowed,
			Message:    "Method not allowed",
		})
	})

	r.Get("/healthz", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			if d.AuthLimiter != nil {
				r.Use(ratelimit.Middleware(ratelimit.Options{
					Store:              d.AuthLimiter,
					Stats:              d.AuthStats,
					TrustXForwardedFor: d.TrustXFF,
					Reject: func(w http.ResponseWriter, r *http.Request, _ time.Duration) {
						s.writeError(w, r, errs.ErrRateLimited)
					},
				}))
			}
			r.Post("/auth/register", s.handleRegister)
			r.Post("/auth/login", s.handleLogin)
			r.Post("/auth/refresh-token", s.handleRefresh)
		})

		r.Group(func(r chi.Router) {
			r.Use(s.RequireAuth)
			r.Post("/auth/logout", s.handleLogout)
			r.Get("/users/me", s.handleMe)

			r.Get("/notes", s.handleListNotes)
			r.Post("/notes", s.handleCreateNote)
			r.Get("/notes/{noteId}", s.handleGetNote)
			r.Put("/notes/{noteId}", s.handleUpdateNote)
			r.Delete("/notes/{noteId}", s.handleDeleteNote)

			r.Get("/tenants/{tenantId}/usage", s.handleUsage)
			r.Post("/tenants/{tenantId}/upgrade", s.handleUpgrade)
		})
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.db.Ping(ctx); err != nil {
			s.log.Warn("health check failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, envelope{
				StatusCode: http.StatusServiceUnavailable,
				Message:    "Database unavailable",
			})
			return
		}
	}
	writeOK(w, http.StatusOK, "OK", map[string]string{"status": "ok"})
}
