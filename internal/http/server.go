package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"bilan/internal/cache"
	applog "bilan/internal/log"
	"bilan/internal/middleware/ratelimit"
	"bilan/internal/middleware/security"
	"bilan/internal/middleware/trace"
	"bilan/internal/services"
)

// Deps are the collaborators of the HTTP server. Ready and Caches may be
// nil.
type Deps struct {
	Budget    *services.BudgetService
	Revenues  *services.RevenueService
	Logger    *applog.Logger
	Ready     func(ctx context.Context) error
	Caches    *cache.Manager
	RateLimit ratelimit.Config
}

type Server struct {
	http.Server
	budget   *services.BudgetService
	revenues *services.RevenueService
	ready    func(ctx context.Context) error
	caches   *cache.Manager
	limiter  *ratelimit.Limiter
	tracer   *trace.Middleware
	now      func() time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// http.Server.
func NewServer(addr string, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	logger = logger.WithComponent(applog.ComponentHTTP)

	clientIP := security.NewClientIP()
	s := &Server{
		budget:   deps.Budget,
		revenues: deps.Revenues,
		ready:    deps.Ready,
		caches:   deps.Caches,
		limiter:  ratelimit.NewLimiter(deps.RateLimit),
		tracer:   trace.NewMiddleware(logger, clientIP.Extract),
		now:      time.Now,
	}

	// writes are limited per owner, falling back to the client address
	limited := s.limiter.Middleware(func(r *http.Request) string {
		if id, err := ownerID(r); err == nil {
			return "user:" + id
		}
		return "ip:" + clientIP.Extract(r)
	}, func(w http.ResponseWriter, r *http.Request) {
		applog.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded")
		writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "rate limit exceeded"})
	})
	write := func(h http.HandlerFunc) http.Handler { return limited(h) }

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /api/budget", s.handleGetBudget)
	mux.HandleFunc("GET /api/budget/summary", s.handleGetSummary)
	mux.Handle("POST /api/budget/items", write(s.handleCreateItem))
	mux.Handle("PATCH /api/budget/items/{id}", write(s.handleUpdateItem))
	mux.Handle("DELETE /api/budget/items/{id}", write(s.handleDeleteItem))
	mux.Handle("POST /api/budget/reorder", write(s.handleReorder))

	mux.HandleFunc("GET /api/revenues", s.handleListRevenues)
	mux.Handle("POST /api/revenues", write(s.handleCreateRevenue))
	mux.Handle("DELETE /api/revenues/{id}", write(s.handleDeleteRevenue))

	mux.HandleFunc("GET /api/balance", s.handleBalance)

	s.Addr = addr
	s.Handler = security.Headers(security.DefaultHeadersConfig())(s.tracer.Middleware(mux))
	s.ReadHeaderTimeout = 10 * time.Second
	return s
}

// Shutdown stops background routines and then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		if s.caches != nil {
			s.caches.Stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// Metrics exposes the request counters of the trace middleware.
func (s *Server) Metrics() trace.Metrics {
	return s.tracer.GetMetrics()
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			applog.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", "error", err)
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
