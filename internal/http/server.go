package httpserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/Clark-Hu/movieclub/internal/account"
	"github.com/Clark-Hu/movieclub/internal/auth"
	"github.com/Clark-Hu/movieclub/internal/config"
	"github.com/Clark-Hu/movieclub/internal/repository"
	"github.com/Clark-Hu/movieclub/internal/review"
	"github.com/Clark-Hu/movieclub/internal/store"
)

// Deps are the collaborators the HTTP layer dispatches to.
type Deps struct {
	Config   config.Config
	Store    *store.Store
	Repo     *repository.Repository
	Reviews  *review.Service
	Accounts *account.Service
	Auth     *auth.Authenticator
	Logger   *zap.Logger
}

// Server wires HTTP routing, middleware, and handlers.
type Server struct {
	cfg      config.Config
	store    *store.Store
	repo     *repository.Repository
	reviews  *review.Service
	accounts *account.Service
	auth     *auth.Authenticator
	logger   *zap.Logger
	router   chi.Router
	httpSrv  *http.Server
}

// New constructs the HTTP server with base middleware and routes.
func New(deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)

	s := &Server{
		cfg:      deps.Config,
		store:    deps.Store,
		repo:     deps.Repo,
		reviews:  deps.Reviews,
		accounts: deps.Accounts,
		auth:     deps.Auth,
		logger:   logger.Named("http"),
		router:   r,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.router.Get("/healthz", s.handleHealthz)

	s.router.Route("/auth", func(r chi.Router) {
		r.Post("/register", s.handleRegister)
		r.Post("/login", s.handleLogin)
		r.With(s.requireSession).Post("/logout", s.handleLogout)
	})

	s.router.Route("/me", func(r chi.Router) {
		r.Use(s.requireSession)
		r.Get("/", s.handleMe)
		r.Patch("/profile", s.handleEditProfile)
		r.Put("/general", s.handleUpdateGeneral)
		r.Put("/password", s.handleChangePassword)
		r.Post("/watchlist/{movieID}", s.handleAddToList(listWatchlist))
		r.Delete("/watchlist/{movieID}", s.handleRemoveFromList(listWatchlist))
		r.Post("/favourites/{movieID}", s.handleAddToList(listFavourites))
		r.Delete("/favourites/{movieID}", s.handleRemoveFromList(listFavourites))
	})

	s.router.Route("/users/{userID}", func(r chi.Router) {
		r.Get("/", s.handleGetUser)
		r.Get("/reviews", s.handleListUserReviews)
		r.Get("/watchlist", s.handleListUserList(listWatchlist))
		r.Get("/favourites", s.handleListUserList(listFavourites))
	})

	s.router.Route("/movies", func(r chi.Router) {
		r.Get("/", s.handleListMovies)
		r.With(s.requireAdmin).Post("/", s.handleCreateMovie)
		r.Route("/{movieID}", func(r chi.Router) {
			r.Get("/", s.handleGetMovie)
			r.Get("/reviews", s.handleListMovieReviews)
			r.With(s.requireSession).Post("/reviews", s.handleSubmitReview)
			r.With(s.requireSession).Get("/reviews/mine", s.handleGetMyReview)
			r.With(s.requireSession).Patch("/reviews/mine", s.handleUpdateMyReview)
		})
	})
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start boots the HTTP server and blocks until ctx is done or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	s.httpSrv = &http.Server{
		Addr:         ":" + s.cfg.Port,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.cfg.ReadTimeoutSecs) * time.Second,
		WriteTimeout: time.Duration(s.cfg.WriteTimeoutSecs) * time.Second,
		IdleTimeout:  time.Duration(s.cfg.IdleTimeoutSecs) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.httpSrv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.store.HealthCheck(ctx); err != nil {
		s.logger.Warn("health check failed", zap.Error(err))
		s.respondError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "Database unreachable")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
