package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/gatehouse/gatehouse/internal/config"
	"github.com/gatehouse/gatehouse/internal/handler"
	"github.com/gatehouse/gatehouse/internal/model"
	"github.com/gatehouse/gatehouse/internal/openapi"
	"github.com/gatehouse/gatehouse/internal/server/middleware"
	"github.com/gatehouse/gatehouse/internal/service"
	"github.com/gatehouse/gatehouse/internal/store"
	"github.com/gatehouse/gatehouse/internal/token"
)

// Server is the top-level HTTP server. It owns the chi router, the store,
// the token codec, and the fixed middleware pipeline around every route:
// API-token resolution, audit capture, then the auth gate, in that order.
type Server struct {
	cfg        config.AppConfig
	router     chi.Router
	store      *store.Store
	codec      *token.Codec
	resolver   *service.Resolver
	httpServer *http.Server
	logger     *slog.Logger
}

// New creates a Server with all routes and middleware wired, ready to
// listen. Call ListenAndServe to start accepting connections.
func New(cfg config.AppConfig, st *store.Store, logger *slog.Logger) *Server {
	codec := token.NewCodec(cfg.Auth.Secret, cfg.Auth.Prefix)
	s := &Server{
		cfg:      cfg,
		store:    st,
		codec:    codec,
		resolver: service.NewResolver(st, codec, logger),
		logger:   logger,
	}
	s.setupRouter()
	return s
}

func (s *Server) setupRouter() {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(s.logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.CORS.AllowOrigins,
		AllowedMethods:   s.cfg.CORS.AllowMethods,
		AllowedHeaders:   s.cfg.CORS.AllowHeaders,
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	// Health checks and the OpenAPI document stay outside the auth
	// pipeline.
	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)
	r.Get("/openapi.json", openapi.NewHandler().ServeSpec)

	// The per-request pipeline. Order is load-bearing: the resolver may
	// inject an Authorization header the audit trail and gate then see;
	// audit buffers the response so its "rsp" record holds exactly what
	// the client receives, including gate rejections.
	r.Group(func(r chi.Router) {
		r.Use(middleware.APIToken(s.resolver, s.codec))
		r.Use(middleware.Audit(s.store, s.codec, s.logger))
		r.Use(middleware.AuthGate(s.store, s.codec, s.cfg.Auth.Whitelist, s.logger))

		userHandler := handler.NewUserHandler(s.store, s.codec, s.cfg.Auth, s.logger)
		tokenHandler := handler.NewUserTokenHandler(s.store, s.logger)
		grantHandler := handler.NewGrantHandler(s.store, s.logger)

		r.Post("/user/register", userHandler.Register)
		r.Post("/user/login", userHandler.Login)
		r.Get("/user/info", userHandler.Info)
		r.Get("/user/all", userHandler.ListAll)
		r.Delete("/delete/{user}", userHandler.Delete)
		r.Put("/update_name/{user}/{phone}", userHandler.UpdatePhone)
		r.Post("/update_user_info", userHandler.UpdateAll)
		r.Post("/get_user", userHandler.Find)

		r.Get("/user_token/all", tokenHandler.List)
		r.Get("/user_token/info/{userID}", tokenHandler.Info)
		r.Post("/user_token/add", tokenHandler.Add)
		r.Put("/user_token/update", tokenHandler.Update)
		r.Delete("/user_token/delete/{userID}", tokenHandler.Delete)

		r.Get("/token_uri/all", grantHandler.List)
		r.Get("/token_uri/uri_list/{tokenID}", grantHandler.URIList)
		r.Post("/token_uri/add", grantHandler.Add)
		r.Put("/token_uri/update_status", grantHandler.UpdateStatus)
		r.Put("/token_uri/update_expire", grantHandler.UpdateExpire)
		r.Delete("/token_uri/delete/{id}", grantHandler.Delete)
	})

	s.router = r
}

// writeEnvelope writes the uniform response envelope with the HTTP status
// doubling as the business code, the way the router-level catchers report
// unroutable requests.
func writeEnvelope(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(model.APIResponse{Code: status, Msg: msg})
}

// handleHealthz is a liveness probe.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

// handleReadyz reports ready once the database answers a ping.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := s.store.Ping(r.Context()); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"status":"degraded"}`))
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

// ListenAndServe starts the HTTP server and blocks until SIGINT or SIGTERM,
// then drains in-flight requests before returning.
func (s *Server) ListenAndServe() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "addr", addr, "env", s.cfg.EnvName)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server listen: %w", err)
	case <-ctx.Done():
		s.logger.Info("shutdown signal received, draining connections...")
	}

	timeout := 30 * time.Second
	if d, err := time.ParseDuration(s.cfg.Server.ShutdownTimeout); err == nil {
		timeout = d
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	s.logger.Info("server stopped")
	return nil
}

// Router returns the underlying chi router, useful for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// ServeHTTP implements http.Handler, delegating to the router.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
