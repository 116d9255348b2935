// Package api exposes the dossier engine over HTTP.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/pinwater/waterwatch/internal/cache"
	"github.com/pinwater/waterwatch/internal/config"
	"github.com/pinwater/waterwatch/internal/dossier"
	"github.com/pinwater/waterwatch/internal/health"
	"github.com/pinwater/waterwatch/pkg/geocode"
)

// Server wires the HTTP surface to the engine components.
type Server struct {
	assembler *dossier.Assembler
	locator   geocode.Client
	coord     *cache.Coordinator
	store     *cache.Store
	health    *health.Registry
	cfg       config.ServerConfig
}

func NewServer(
	assembler *dossier.Assembler,
	locator geocode.Client,
	coord *cache.Coordinator,
	store *cache.Store,
	healthReg *health.Registry,
	cfg config.ServerConfig,
) *Server {
	return &Server{
		assembler: assembler,
		locator:   locator,
		coord:     coord,
		store:     store,
		health:    healthReg,
		cfg:       cfg,
	}
}

// Routes builds the router with middleware and every endpoint mounted.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	r.Use(requestID)
	r.Use(requestLogger)

	r.Get("/healthz", s.handleHealthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/report", s.handleReport)
		r.Get("/signals", s.handleSignals)
		r.Route("/cache/{domain}", func(r chi.Router) {
			r.Post("/build", s.handleCacheBuild)
			r.Get("/status", s.handleCacheStatus)
			r.Get("/", s.handleCacheBulk)
		})
	})
	return r
}

// ListenAndServe runs the server until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", s.cfg.Port),
		Handler: s.Routes(),
	}

	go func() {
		<-ctx.Done()
		zap.L().Info("api: shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(),
			time.Duration(s.cfg.ShutdownTimeout)*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			zap.L().Warn("api: shutdown", zap.Error(err))
		}
	}()

	zap.L().Info("api: listening", zap.Int("port", s.cfg.Port))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return eris.Wrap(err, "api: listen")
	}
	return nil
}

type ctxKey string

const requestIDKey ctxKey = "request_id"

func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		id, _ := r.Context().Value(requestIDKey).(string)
		zap.L().Info("api: request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", id),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}
