// Package server provides the HTTP API for the eligibility intake flow.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/eligibility-intake/internal/app"
	"github.com/jonathan/eligibility-intake/internal/auth"
	"github.com/jonathan/eligibility-intake/internal/config"
	"github.com/jonathan/eligibility-intake/internal/db"
	"github.com/jonathan/eligibility-intake/internal/server/middleware"
	"github.com/jonathan/eligibility-intake/internal/server/ratelimit"
	"github.com/jonathan/eligibility-intake/internal/submissions"
	"github.com/jonathan/eligibility-intake/internal/webhook"
)

// Cookie names used by the client flow.
const (
	ClientCookie = "intake_client"
	TokenCookie  = "intake_token"
)

const (
	maxBodyBytes    = 1 << 20
	shutdownTimeout = 30 * time.Second
)

// Server represents the HTTP server
type Server struct {
	httpServer *http.Server
	registry   *app.Registry
	subs       SubmissionStore
	tokens     middleware.TokenValidator
	limiter    *ratelimit.Limiter
	ping       func(context.Context) error
	closers    []func()

	tokenTTL      time.Duration
	secureCookies bool
	heartbeat     time.Duration
	shutdown      chan struct{}

	log *zap.Logger
}

// Deps are the collaborators a Server routes requests to.
type Deps struct {
	Registry    *app.Registry
	Submissions SubmissionStore
	Tokens      middleware.TokenValidator
	TokenTTL    time.Duration
	Limiter     *ratelimit.Limiter // nil disables rate limiting
	Ping        func(context.Context) error
	Heartbeat   time.Duration
	// Closers run in order when the server stops.
	Closers []func()
}

// New connects to the database and wires every service the server needs.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Server, error) {
	database, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	passwordConfig, err := config.NewPasswordConfig()
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to create password config: %w", err)
	}
	jwtConfig, err := config.NewJWTConfig()
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to create JWT config: %w", err)
	}
	tokens := auth.NewJWTService(jwtConfig)
	authService := auth.NewService(database, passwordConfig, tokens, log)

	dispatcher := webhook.New(webhook.Options{
		URL:         cfg.WebhookURL,
		Timeout:     cfg.WebhookTimeout(),
		MaxInFlight: int64(cfg.WebhookMaxInFlight),
	}, log)
	repo := submissions.New(database, dispatcher, log)

	registry := app.NewRegistry(app.Deps{
		Auth:     authService,
		Notifier: dispatcher,
		Repo:     repo,
		Options: app.Options{
			ResumePolicy: cfg.PendingResumePolicy,
			Payment:      cfg.Payment,
		},
		SessionTimeout: cfg.SessionTimeout(),
		IdleTTL:        cfg.ClientIdleTTL(),
		AnonymousTTL:   cfg.AnonymousTTL(),
		MaxClients:     cfg.MaxClients,
	}, log)

	return NewWithDeps(cfg, Deps{
		Registry:    registry,
		Submissions: repo,
		Tokens:      tokens.AsTokenValidator(),
		TokenTTL:    tokens.TTL(),
		Limiter:     ratelimit.NewLimiter(ratelimit.LoadConfig()),
		Ping:        database.Ping,
		Closers:     []func(){registry.Close, dispatcher.Close, database.Close},
	}, log), nil
}

// NewWithDeps creates a server around already-built collaborators.
func NewWithDeps(cfg *config.Config, deps Deps, log *zap.Logger) *Server {
	s := &Server{
		registry:      deps.Registry,
		subs:          deps.Submissions,
		tokens:        deps.Tokens,
		limiter:       deps.Limiter,
		ping:          deps.Ping,
		closers:       deps.Closers,
		tokenTTL:      deps.TokenTTL,
		secureCookies: cfg.SecureCookies,
		heartbeat:     deps.Heartbeat,
		shutdown:      make(chan struct{}),
		log:           log.Named("server"),
	}
	if s.heartbeat <= 0 {
		s.heartbeat = DefaultHeartbeat
	}

	s.httpServer = &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Port),
		Handler:     s.Handler(),
		ReadTimeout: 30 * time.Second,
		// No WriteTimeout: view streams stay open.
		IdleTimeout: 60 * time.Second,
	}
	s.httpServer.RegisterOnShutdown(func() { close(s.shutdown) })
	return s
}

// Handler returns the routed handler with every middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/form/options", s.handleFormOptions)

	// Client flow
	mux.HandleFunc("GET /api/view", s.handleView)
	mux.HandleFunc("GET /api/view/stream", s.handleViewStream)
	mux.HandleFunc("POST /api/form/submit", s.handleSubmitForm)
	mux.HandleFunc("POST /api/auth/show", s.handleShowAuth)
	mux.HandleFunc("POST /api/auth/cancel", s.handleCancelAuth)
	mux.HandleFunc("POST /api/auth/signup", s.handleSignUp)
	mux.HandleFunc("POST /api/auth/signin", s.handleSignIn)
	mux.HandleFunc("POST /api/auth/signout", s.handleSignOut)
	mux.HandleFunc("POST /api/dashboard/form", s.handleOpenForm)
	mux.HandleFunc("POST /api/dashboard/form/close", s.handleCloseForm)
	mux.HandleFunc("POST /api/dashboard/draft", s.handleSaveDraft)
	mux.HandleFunc("POST /api/dashboard/submit", s.handleDashboardSubmit)
	mux.HandleFunc("POST /api/dashboard/edit/{ref}", s.handleEdit)
	mux.HandleFunc("DELETE /api/dashboard/submissions/{ref}", s.handleDashboardDelete)
	mux.HandleFunc("POST /api/completed/start-new", s.handleStartNew)

	// Token-authenticated REST
	authed := middleware.AuthMiddleware(s.tokens, TokenCookie)
	mux.Handle("GET /api/submissions", authed(http.HandlerFunc(s.handleListSubmissions)))
	mux.Handle("GET /api/submissions/latest", authed(http.HandlerFunc(s.handleLatestSubmission)))
	mux.Handle("GET /api/submissions/{ref}", authed(http.HandlerFunc(s.handleGetSubmission)))
	mux.Handle("PUT /api/submissions/{ref}", authed(http.HandlerFunc(s.handleUpdateSubmission)))
	mux.Handle("DELETE /api/submissions/{ref}", authed(http.HandlerFunc(s.handleDeleteSubmission)))

	var h http.Handler = s.withCORS(mux)
	h = s.withLogging(h)
	if s.limiter != nil {
		h = s.limiter.Middleware(s.log)(h)
	}
	return s.withRecovery(h)
}

// Start serves requests and sweeps idle clients until ctx ends or the
// process is interrupted, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.log.Info("server starting", zap.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return s.registry.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		s.log.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	})

	err := g.Wait()
	s.Close()
	s.log.Info("server stopped")
	return err
}

// Close releases the rate limiter and every closer. It does not stop a
// running listener; cancel Start's context for that.
func (s *Server) Close() {
	if s.limiter != nil {
		s.limiter.Stop()
	}
	for _, closeFn := range s.closers {
		closeFn()
	}
	s.closers = nil
}

// withCORS adds CORS headers
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the response status for request logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// withLogging adds request logging
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("remote", r.RemoteAddr),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

// withRecovery turns a handler panic into a 500.
func (s *Server) withRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				s.log.Error("handler panic", zap.Any("panic", rec), zap.String("path", r.URL.Path))
				s.errorResponse(w, http.StatusInternalServerError, "Internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.ping != nil {
		if err := s.ping(r.Context()); err != nil {
			s.log.Warn("health check failed", zap.Error(err))
			s.jsonResponse(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error("error encoding JSON response", zap.Error(err))
	}
}

// errorResponse writes an error JSON response
func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]string{"error": message})
}

// failure writes the error envelope for err, logging unexpected kinds.
func (s *Server) failure(w http.ResponseWriter, err error) {
	status := HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed", zap.Error(err))
	}
	body := map[string]any{"error": ErrorMessage(err)}
	if fields := fieldErrors(err); fields != nil {
		body["fields"] = fields
	}
	s.jsonResponse(w, status, body)
}

// decodeJSON reads a bounded JSON body into v, answering 400 on failure.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}
