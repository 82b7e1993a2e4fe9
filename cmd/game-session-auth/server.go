package main

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wrale/game-session-auth/cmd/game-session-auth/handlers/common"
	"github.com/wrale/game-session-auth/cmd/game-session-auth/handlers/device"
	"github.com/wrale/game-session-auth/cmd/game-session-auth/handlers/health"
	"github.com/wrale/game-session-auth/cmd/game-session-auth/handlers/redirect"
	"github.com/wrale/game-session-auth/cmd/game-session-auth/handlers/refresh"
	"github.com/wrale/game-session-auth/cmd/game-session-auth/handlers/token"
	"github.com/wrale/game-session-auth/internal/deviceflow"
	"github.com/wrale/game-session-auth/internal/logging"
	"github.com/wrale/game-session-auth/internal/ratelimit"
)

const defaultRequestTimeout = 45 * time.Second

type server struct {
	cfg      Config
	router   *chi.Mux
	services *services
	store    deviceflow.Store
	locks    refresh.Locker
	polls    token.Locker
	limiter  *ratelimit.Limiter
}

func newServer(cfg Config, logger *slog.Logger, svc *services, store deviceflow.Store, locks refresh.Locker, polls token.Locker) *server {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	srv := &server{
		cfg:      cfg,
		router:   chi.NewRouter(),
		services: svc,
		store:    store,
		locks:    locks,
		polls:    polls,
		limiter: ratelimit.New(ratelimit.Config{
			RequestsPerMinute: cfg.RateLimitPerMinute,
			Burst:             cfg.RateLimitBurst,
			OnLimit:           writeRateLimited,
		}),
	}

	srv.router.Use(middleware.RequestID)
	srv.router.Use(middleware.RealIP)
	srv.router.Use(logging.HTTPMiddleware(logger))
	srv.router.Use(middleware.Recoverer)
	srv.router.Use(middleware.Timeout(timeout))

	srv.routes()
	return srv
}

func (s *server) routes() {
	s.router.Method(http.MethodGet, "/health", health.New(map[string]health.Checker{
		"session_store": s.store,
	}).WithVersion(Version))

	loginCfg := redirect.Config{
		Identity:    s.services.identity,
		Accounts:    s.services.accounts,
		RedirectURI: s.cfg.RedirectURI,
	}

	s.router.Group(func(r chi.Router) {
		r.Use(s.limiter.Middleware)

		r.Method(http.MethodGet, "/login/url", redirect.NewURLHandler(loginCfg))
		r.Method(http.MethodPost, "/login/code", redirect.NewCodeHandler(loginCfg))

		r.Method(http.MethodPost, "/device/code", device.New(s.services.poller, s.store))
		r.Method(http.MethodPost, "/device/token", token.New(token.Config{
			Poller:   s.services.poller,
			Store:    s.store,
			Accounts: s.services.accounts,
			Locks:    s.polls,
		}))
	})

	s.router.Method(http.MethodPost, "/account/refresh", refresh.New(s.services.accounts, s.locks))
}

func writeRateLimited(w http.ResponseWriter, _ *http.Request) {
	common.WriteErrorStatus(w, http.StatusTooManyRequests, ratelimit.ErrorCode, ratelimit.ErrorDescription)
}

// ServeHTTP lets the server be used directly with httptest
func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
