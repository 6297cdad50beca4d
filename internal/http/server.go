package http

import (
	"context"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"birthdaymemo/internal/core"
	applog "birthdaymemo/internal/log"
	"birthdaymemo/internal/metrics"
	"birthdaymemo/internal/middleware/ratelimit"
	"birthdaymemo/internal/middleware/security"
	"birthdaymemo/internal/middleware/trace"
	appweb "birthdaymemo/web"
)

// MemoService is what the handlers need from the record layer.
type MemoService interface {
	Load(ctx context.Context, username string) (core.Record, error)
	Save(ctx context.Context, username string, session *core.FormSession) ([]core.Role, error)
}

// Pinger reports backend readiness for /readyz.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Options struct {
	// Registry receives the server's collectors and backs /metrics. A fresh
	// registry is created when nil.
	Registry           *prometheus.Registry
	Metrics            *metrics.Metrics
	RateLimitPerMinute int
	// TrustedProxies are CIDRs trusted to set X-Forwarded-For, on top of
	// loopback and private networks.
	TrustedProxies     []string
	Logger             *applog.Logger
	Ready              Pinger
	// Now is used for the default year; tests pin it.
	Now func() time.Time
}

type Server struct {
	http.Server
	templates *template.Template
	memos     MemoService
	ready     Pinger
	metrics   *metrics.Metrics
	limiter   *ratelimit.Limiter
	now       func() time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes, templates and middleware.
func NewServer(addr string, memos MemoService, opts Options) *Server {
	reg := opts.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	m := opts.Metrics
	if m == nil {
		m = metrics.New(reg)
	}
	logger := opts.Logger
	if logger == nil {
		logger = applog.FromContext(context.Background())
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	mux := http.NewServeMux()
	s := &Server{
		memos:   memos,
		ready:   opts.Ready,
		metrics: m,
		limiter: ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		now:     now,
	}

	t, err := template.ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		logger.WithComponent(applog.ComponentTemplate).Error("Failed parsing templates", "error", err)
	}
	s.templates = t

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		logger.Warn("Failed to mount embedded static FS", "error", err)
	}

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("POST /memo", s.handleSave)
	mux.HandleFunc("POST /memo/grandchildren", s.handleAddGrandchild)
	mux.HandleFunc("GET /ui/form", s.handleFormPartial)
	mux.HandleFunc("GET /ui/history", s.handleHistoryPartial)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	ips := security.NewClientIPResolver()
	for _, cidr := range opts.TrustedProxies {
		if err := ips.AddTrustedProxy(cidr); err != nil {
			logger.Warn("Ignoring trusted proxy", "cidr", cidr, "error", err)
		}
	}
	onLimit := func(w http.ResponseWriter, r *http.Request) {
		logger.WarnContext(r.Context(), "Rate limit exceeded",
			applog.FieldClientIP, ips.ExtractClientIP(r), applog.FieldPath, r.URL.Path)
		ErrorResponse(http.StatusTooManyRequests, "Too many requests. Please try again later.").Write(w)
	}

	var handler http.Handler = mux
	handler = s.limiter.Middleware(ips.ExtractClientIP, onLimit)(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = trace.NewMiddleware(ips.ExtractClientIP, m, logger.WithComponent(applog.ComponentHTTP)).Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Shutdown stops the rate limiter and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		slog.InfoContext(ctx, "Shutting down HTTP server", "rate_limited_clients", s.limiter.ActiveClients())
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}
