// Package web provides the HTTP server and handlers for the sensor table UI.
package web

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"
	"time"

	"github.com/JonMunkholm/ParkingTable/internal/config"
	"github.com/JonMunkholm/ParkingTable/internal/core"
	"github.com/JonMunkholm/ParkingTable/internal/logging"
	appmw "github.com/JonMunkholm/ParkingTable/internal/web/middleware"
	"github.com/JonMunkholm/ParkingTable/internal/web/templates"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
)

// Server is the HTTP server for the sensor table.
type Server struct {
	sessions *core.Sessions
	backend  *core.LimitedBackend
	cfg      *config.Config
	router   *chi.Mux
	server   *http.Server

	limiters []*rateLimiter
}

// NewServer creates a new Server instance. backend is the limiter the
// session tables share; its state is reported by /healthz.
func NewServer(sessions *core.Sessions, backend *core.LimitedBackend, cfg *config.Config) *Server {
	s := &Server{
		sessions: sessions,
		backend:  backend,
		cfg:      cfg,
		router:   chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(appmw.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(appmw.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))
	s.router.Use(middleware.Timeout(s.cfg.Server.RequestTimeout))

	// Security hardening
	s.router.Use(securityHeaders(s.cfg.Security.EnableCSP))

	if origins := s.cfg.Security.AllowedOrigins; len(origins) > 0 {
		s.router.Use(cors.New(cors.Options{
			AllowedOrigins: origins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
			AllowedHeaders: []string{
				"Content-Type", "Accept",
				"HX-Request", "HX-Trigger", "HX-Target", "HX-Current-URL",
			},
			ExposedHeaders:   []string{"HX-Retarget", "HX-Reswap", "Content-Disposition"},
			AllowCredentials: !slices.Contains(origins, "*"),
			MaxAge:           300,
		}).Handler)
	}

	if s.cfg.Rate.Enabled {
		s.router.Use(s.newLimiter(s.cfg.Rate.RequestsPerMinute))
	}
}

// isPageRequest reports whether r opens the UI. Clients without a session
// cookie must open the page before calling the API.
func isPageRequest(r *http.Request) bool {
	return r.Method == http.MethodGet && (r.URL.Path == "/" || r.URL.Path == "/table")
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)

	s.router.Group(func(r chi.Router) {
		r.Use(appmw.Session(s.sessions, appmw.SessionOptions{
			TTL:           s.cfg.Table.SessionTTL,
			LoadTimeout:   s.cfg.Table.LoadTimeout,
			Secure:        s.cfg.Security.SecureCookies,
			StartsSession: isPageRequest,
		}))

		// Pages
		r.Get("/", s.handlePage)
		r.Get("/table", s.handleTablePartial)

		r.Route("/api", func(r chi.Router) {
			r.Get("/table", s.handleGetTable)
			r.Get("/columns", s.handleColumns)

			r.Post("/search", s.handleSearch)
			r.Post("/page-size", s.handlePageSize)
			r.Post("/page/{action}", s.handlePageAction)
			r.Post("/reload", s.handleReload)

			// Backend round trips get a tighter budget
			r.Group(func(r chi.Router) {
				if s.cfg.Rate.Enabled {
					r.Use(s.newLimiter(s.cfg.Rate.MutationLimit))
				}
				r.Delete("/records/{id}", s.handleDeleteRecord)
				r.Get("/export", s.handleExport)
			})
		})
	})
}

func (s *Server) newLimiter(perMinute int) func(http.Handler) http.Handler {
	rl := newRateLimiter(perMinute, time.Minute)
	s.limiters = append(s.limiters, rl)
	return rl.middleware(func(w http.ResponseWriter, r *http.Request) {
		s.respondError(w, r, errRateLimited, http.StatusTooManyRequests)
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server and its background goroutines.
func (s *Server) Shutdown(ctx context.Context) error {
	for _, rl := range s.limiters {
		rl.Stop()
	}
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// securityHeaders adds security headers to all responses.
func securityHeaders(enableCSP bool) func(http.Handler) http.Handler {
	// htmx is served from unpkg; everything else is inline or same-origin
	csp := "default-src 'self'; script-src 'self' 'unsafe-inline' https://unpkg.com; style-src 'self' 'unsafe-inline'; img-src 'self' data:; font-src 'self'"

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Prevent MIME type sniffing
			w.Header().Set("X-Content-Type-Options", "nosniff")

			// Prevent clickjacking
			w.Header().Set("X-Frame-Options", "DENY")

			if enableCSP {
				w.Header().Set("Content-Security-Policy", csp)
			}

			// Control referrer information
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

			next.ServeHTTP(w, r)
		})
	}
}

// writeJSON encodes v as JSON with the given status.
// Logs encoding errors since headers are already sent.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.FromContext(r.Context()).Error("json encode error", "error", err)
	}
}

// renderView writes the table state: the #sensor-table fragment for htmx and
// browsers, JSON for API clients.
func (s *Server) renderView(w http.ResponseWriter, r *http.Request, table *core.RecordTable, status int) {
	view := table.View()

	if !isHTMX(r) && wantsJSON(r) {
		writeJSON(w, r, status, view)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := templates.TablePartial(view, core.Columns).Render(r.Context(), w); err != nil {
		logging.FromContext(r.Context()).Error("render table", "error", err)
	}
}
