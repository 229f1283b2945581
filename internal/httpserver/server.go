// internal/httpserver/server.go
//
// HTTP server wiring for the hangman backend.
// Responsibilities:
//   - Router + middleware (request IDs, request log, panic recovery,
//     timeouts, JSON, CORS).
//   - Service endpoints: "/", "/health", "/version", "/time".
//   - Public API: register/login, dictionaries, global stats, leaderboard.
//   - Authenticated API: sessions, games, guesses, per-user stats.
//
// Notes:
//   - Sessions and games are visible only to their owner; others get 403.
//   - POST create-session and create-game honour Idempotency-Key.
//   - Errors are JSON {"error": code, "message": text} with a status derived
//     from the error family.

package httpserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/podut/hangman-server/internal/auth"
	"github.com/podut/hangman-server/internal/engine"
	"github.com/podut/hangman-server/internal/stats"
	"github.com/podut/hangman-server/internal/words"
)

// Dictionaries lists the available word lists.
type Dictionaries interface {
	List(activeOnly bool) []*words.Dictionary
}

type Options struct {
	ClientOrigin     string
	DefaultMaxMisses int
	IdempotencyTTL   time.Duration
	Version          string

	// CookieName carries the token for browser clients; empty disables
	// the cookie. SecureCookies marks it Secure with SameSite=None.
	CookieName    string
	SecureCookies bool
	Now              func() time.Time
}

// Server bundles the router and the services behind it.
type Server struct {
	r    *chi.Mux
	http *http.Server

	engine *engine.Engine
	stats  *stats.Aggregator
	auth   *auth.Service
	dicts  Dictionaries
	idem   *idempotencyCache
	opts   Options
}

// New constructs a Server, installs middleware, and registers routes.
func New(eng *engine.Engine, agg *stats.Aggregator, authSvc *auth.Service, dicts Dictionaries, opts Options) *Server {
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	if opts.DefaultMaxMisses <= 0 {
		opts.DefaultMaxMisses = 6
	}
	if opts.IdempotencyTTL <= 0 {
		opts.IdempotencyTTL = time.Hour
	}
	if opts.ClientOrigin == "" {
		opts.ClientOrigin = "http://localhost:5173"
	}
	s := &Server{
		r:      chi.NewRouter(),
		engine: eng,
		stats:  agg,
		auth:   authSvc,
		dicts:  dicts,
		idem:   newIdempotencyCache(opts.IdempotencyTTL, opts.Now),
		opts:   opts,
	}

	// --- middleware ---
	s.r.Use(chimw.RequestID)
	s.r.Use(chimw.RealIP)
	s.r.Use(requestLogger)
	s.r.Use(chimw.Recoverer)
	s.r.Use(chimw.Timeout(10 * time.Second))
	s.r.Use(jsonContentType)
	s.r.Use(s.cors)

	// --- diagnostics ---
	s.r.Get("/", s.handleIndex)
	s.r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	})
	s.r.Get("/version", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"service": "hangman-go", "version": s.opts.Version})
	})
	s.r.Get("/time", func(w http.ResponseWriter, r *http.Request) {
		now := s.opts.Now()
		writeJSON(w, http.StatusOK, map[string]any{"now": now.Format(time.RFC3339Nano), "unix": now.Unix()})
	})

	s.r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/register", s.handleRegister)
		r.Post("/auth/login", s.handleLogin)
		r.Post("/auth/logout", s.handleLogout)
		r.Get("/dictionaries", s.handleDictionaries)
		r.Get("/stats/global", s.handleGlobalStats)
		r.Get("/leaderboard", s.handleLeaderboard)

		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth)
			r.Get("/users/me", s.handleMe)
			r.Get("/users/{userID}/stats", s.handleUserStats)
			s.mountSessions(r)
		})
	})

	// JSON 404/405 for easier debugging
	s.r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not_found", Message: "no route for " + r.URL.Path})
	})
	s.r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: "method_not_allowed", Message: r.Method + " " + r.URL.Path})
	})

	return s
}

// Handler exposes the router (useful for tests).
func (s *Server) Handler() http.Handler { return s.r }

// Start serves HTTP on addr until Shutdown is called.
func (s *Server) Start(addr string) error {
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"service": "hangman-go",
		"endpoints": []string{
			"/health", "/version", "/time",
			"POST /api/v1/auth/register", "POST /api/v1/auth/login", "GET /api/v1/users/me",
			"GET /api/v1/dictionaries",
			"/api/v1/sessions", "/api/v1/sessions/{sessionID}/games",
			"GET /api/v1/users/{userID}/stats", "GET /api/v1/stats/global", "GET /api/v1/leaderboard",
		},
	})
}

func (s *Server) handleDictionaries(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"dictionaries": mapSlice(s.dicts.List(true), newDictionaryView),
	})
}

// ----------------------------- middleware ----------------------------------

// jsonContentType sets a default JSON Content-Type header on all responses.
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		next.ServeHTTP(w, r)
	})
}

// cors enables credentialed CORS for the configured client origin.
func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Origin", s.opts.ClientOrigin)
		w.Header().Set("Access-Control-Allow-Credentials", "true")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+IdempotencyHeader)
		w.Header().Set("Access-Control-Expose-Headers", "Link, X-Total-Count, X-Request-Id")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requestLogger logs one line per request with status and duration.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		reqID := chimw.GetReqID(r.Context())
		if reqID != "" {
			ww.Header().Set("X-Request-Id", reqID)
		}
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		ev := log.Info()
		if status >= http.StatusInternalServerError {
			ev = log.Warn()
		}
		ev.Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Str("request_id", reqID).
			Msg("request")
	})
}
