package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/memberhub/achievement-service/pkg/dto"
	"github.com/memberhub/achievement-service/pkg/logging"
)

// Version is reported by the health endpoints.
const Version = "v0.1.0"

const (
	requestTimeout   = 60 * time.Second
	readinessTimeout = 3 * time.Second
)

// Check reports whether a dependency is reachable.
type Check func(ctx context.Context) error

// Options configures NewRouter.
type Options struct {
	Service string
	Logger  *zap.Logger
	// Readiness checks run on every /readyz call, concurrently.
	Readiness map[string]Check
}

// NewRouter returns a chi router with request id, zap access logging, panic recovery and
// the /healthz and /readyz endpoints. register mounts the service routes.
func NewRouter(opts Options, register func(r chi.Router)) *chi.Mux {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(accessLog(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, dto.HealthResponse{Status: dto.StatusOK, Service: opts.Service, Version: Version})
	})
	r.Get("/readyz", func(w http.ResponseWriter, req *http.Request) {
		ctx, cancel := context.WithTimeout(req.Context(), readinessTimeout)
		defer cancel()

		checks, healthy := runChecks(ctx, opts.Readiness)
		resp := dto.HealthResponse{Status: dto.StatusOK, Service: opts.Service, Version: Version, Checks: checks}
		status := http.StatusOK
		if !healthy {
			resp.Status = dto.StatusDegraded
			status = http.StatusServiceUnavailable
			logging.WithRequestID(req.Context(), logger).Warn("readiness check failed", zap.Any("checks", checks))
		}
		writeJSON(w, status, resp)
	})

	if register != nil {
		register(r)
	}

	return r
}

func runChecks(ctx context.Context, checks map[string]Check) (map[string]string, bool) {
	results := make(map[string]string, len(checks))
	healthy := true

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	for name, check := range checks {
		g.Go(func() error {
			result := dto.StatusOK
			if err := check(ctx); err != nil {
				result = err.Error()
			}
			mu.Lock()
			defer mu.Unlock()
			results[name] = result
			if result != dto.StatusOK {
				healthy = false
			}
			return nil
		})
	}
	_ = g.Wait()
	return results, healthy
}

// accessLog writes one structured line per request.
func accessLog(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				fields := []zap.Field{
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("latency", time.Since(start)),
				}
				l := logging.WithRequestID(r.Context(), logger)
				if ww.Status() >= http.StatusInternalServerError {
					l.Warn("request completed", fields...)
					return
				}
				l.Info("request completed", fields...)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
