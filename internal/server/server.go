package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/playperu/geohunt/internal/admin"
	"github.com/playperu/geohunt/internal/clock"
	"github.com/playperu/geohunt/internal/events"
	"github.com/playperu/geohunt/internal/metrics"
	"github.com/playperu/geohunt/internal/progression"
	"github.com/playperu/geohunt/internal/store"
)

// Deps are the services the HTTP API is built on.
type Deps struct {
	Logger   *slog.Logger
	Store    *store.Store
	Engine   *progression.Engine
	Admin    *admin.Service
	Broker   *events.Broker
	Clock    clock.Source
	Metrics  *metrics.Collector
	Gatherer prometheus.Gatherer

	SPADir     string
	LoginRate  rate.Limit
	LoginBurst int
}

type Server struct {
	srv    *http.Server
	logger *slog.Logger
}

// New builds the server. Each mount function may attach extra routes, such
// as dependency health checks owned by main.
func New(addr string, d Deps, mounts ...func(chi.Router)) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           newRouter(d, mounts...),
			ReadHeaderTimeout: 5 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		logger: d.Logger,
	}
}

func newRouter(d Deps, mounts ...func(chi.Router)) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(peerAddress)
	r.Use(middleware.RealIP)
	r.Use(newStructuredLogger(d.Logger))
	r.Use(middleware.Recoverer)

	for _, m := range mounts {
		m(r)
	}
	addRoutes(r, d)
	return r
}

func (s *Server) Run(_ context.Context) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.srv.Addr, err)
	}

	err = s.srv.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}

func newStructuredLogger(logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				logger.Info("http request",
					"method", r.Method,
					"path", r.URL.Path,
					"status", ww.Status(),
					"bytes", ww.BytesWritten(),
					"duration_ms", time.Since(start).Milliseconds(),
					"request_id", middleware.GetReqID(r.Context()),
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
