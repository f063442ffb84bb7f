package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"formgate/pkg/config"
	"formgate/pkg/httpx"
	"formgate/pkg/logx"
	"formgate/pkg/metrics"
	"formgate/pkg/ratelimit"
	"formgate/pkg/store"
	"formgate/pkg/stream"
	"formgate/pkg/telemetry"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type Server struct {
	Config              config.Config
	Store               *store.FileStore
	Guard               *ratelimit.Guard
	Metrics             *metrics.Registry
	Events              *stream.Hub
	Log                 *logx.Logger
	TrustedProxyCIDRs   []*net.IPNet
	MaxRequestBodyBytes int64
	RetentionInterval   time.Duration
}

type initTelemetryFunc func(ctx context.Context, service string) (func(context.Context) error, error)
type openRedisFunc func(ctx context.Context) (*redis.Client, error)
type listenFunc func(server *http.Server) error
type startLoopsFunc func(ctx context.Context, s *Server)

// Testable variables for main()
var (
	logFatalf      = log.Fatalf
	initTelemetryG = telemetry.Init
	openRedisFnG   = openRedis
	listenFnG      = func(server *http.Server) error { return server.ListenAndServe() }
	startLoopsFnG  = func(ctx context.Context, s *Server) {
		if s.Config.Logging.AutoCleanup {
			go s.retentionLoop(ctx)
		}
		go s.gaugeLoop(ctx)
	}
	notifyContext = func() (context.Context, context.CancelFunc) {
		return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	}
)

func main() {
	if err := runServer(initTelemetryG, openRedisFnG, listenFnG, startLoopsFnG); err != nil {
		logFatalf("formgate: %v", err)
	}
}

func runServer(initTelemetry initTelemetryFunc, openRedisFn openRedisFunc, listen listenFunc, startLoops startLoopsFunc) error {
	ctx, stop := notifyContext()
	defer stop()

	shutdownTelemetry, err := initTelemetry(ctx, "formgate")
	if err != nil {
		return err
	}
	defer func() { _ = shutdownTelemetry(context.Background()) }()

	cfgPath := env("CONFIG_PATH", "config.json")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Printf("config unavailable, using defaults: %v", err)
	}
	if err := config.ValidateProduction(env("ENVIRONMENT", env("APP_ENV", "")), cfg); err != nil {
		return err
	}

	logger := logx.New(cfg.Logging.LogLevel, cfg.Logging.LogToFile, env("LOG_PATH", "formgate.log"))
	defer func() { _ = logger.Close() }()

	s := &Server{
		Config:              cfg,
		Store:               store.NewFileStore(env("DATA_PATH", "submissions.json")),
		Metrics:             metrics.NewRegistry(),
		Events:              stream.NewHub(),
		Log:                 logger,
		TrustedProxyCIDRs:   parseCIDRs(env("TRUSTED_PROXY_CIDRS", "")),
		MaxRequestBodyBytes: int64(envInt("MAX_REQUEST_BODY_BYTES", 1<<20)),
		RetentionInterval:   time.Second * time.Duration(envInt("RETENTION_INTERVAL_SEC", 3600)),
	}
	if s.MaxRequestBodyBytes <= 0 {
		s.MaxRequestBodyBytes = 1 << 20
	}

	window := time.Second * time.Duration(envInt("RATE_LIMIT_WINDOW_SEC", 60))
	if window <= 0 {
		window = time.Minute
	}
	var limiter ratelimit.Limiter
	if cfg.Security.EnableRateLimiting {
		redisClient, err := openRedisFn(ctx)
		if err != nil {
			log.Printf("redis unavailable, using in-memory rate limiting: %v", err)
			redisClient = nil
		}
		if redisClient != nil {
			defer redisClient.Close()
			limiter = ratelimit.NewRedis(redisClient, window)
		} else {
			limiter = ratelimit.NewSlidingWindow(window)
		}
	}
	s.Guard = ratelimit.NewGuard(limiter, cfg.Security.MaxRequestsPerMinute, cfg.Security.BlockSuspiciousIPs)

	r := s.router()

	if startLoops != nil {
		startLoops(ctx, s)
	}

	addr := env("ADDR", ":8080")
	log.Printf("formgate listening on %s", addr)
	server := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: envDurationSec("HTTP_READ_HEADER_TIMEOUT_SEC", 5),
		ReadTimeout:       envDurationSec("HTTP_READ_TIMEOUT_SEC", 15),
		WriteTimeout:      envDurationSec("HTTP_WRITE_TIMEOUT_SEC", 30),
		IdleTimeout:       envDurationSec("HTTP_IDLE_TIMEOUT_SEC", 120),
	}
	if listen == nil {
		return errors.New("listen function required")
	}
	errCh := make(chan error, 1)
	go func() { errCh <- listen(server) }()
	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
		log.Printf("formgate shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), envDurationSec("HTTP_SHUTDOWN_TIMEOUT_SEC", 10))
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}

func (s *Server) router() chi.Router {
	r := chi.NewRouter()
	r.Use(httpx.CORSMiddleware(env("CORS_ALLOWED_ORIGINS", "")))
	r.Use(httpx.SecurityHeadersMiddleware)
	r.Use(s.metricsMiddleware)
	r.Use(telemetry.HTTPMiddleware("formgate"))
	r.Use(s.limitRequestBodyMiddleware)
	r.Use(s.rateLimitMiddleware)
	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		httpx.Error(w, http.StatusNotFound, "Endpoint not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		httpx.Error(w, http.StatusNotFound, "Endpoint not found")
	})

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "formgate"})
	})
	r.Get("/metrics", s.Metrics.Handler())
	r.Get("/metrics/prometheus", s.Metrics.PrometheusHandler())

	r.Get("/", s.handleForm)
	r.Post("/submit", s.handleSubmit)
	r.Get("/view-data", s.handleViewData)
	if s.Config.Features.EnableStatistics {
		r.Get("/statistics", s.handleStatistics)
	}
	if s.Config.Features.EnableExport {
		r.Get("/export", s.handleExport)
	}
	if s.Config.Features.EnableAPI {
		r.Get("/api/submissions", s.handleAPISubmissions)
	}
	if s.Config.Features.RealTimeUpdates {
		r.Get("/ws", s.handleStream)
	}
	return r
}

func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if !s.Config.Security.EnableRateLimiting || s.Guard == nil {
			next.ServeHTTP(w, req)
			return
		}
		clientIP := s.clientIP(req)
		decision := s.Guard.Admit(clientIP)
		if !decision.Allowed {
			if decision.Count == 0 {
				s.Metrics.IncOutcome(metrics.OutcomeBlocked)
			} else {
				s.Metrics.IncOutcome(metrics.OutcomeRateLimited)
			}
			s.Log.Warn("rate limit rejection client=%s count=%d limit=%d", clientIP, decision.Count, decision.Limit)
			httpx.Error(w, http.StatusTooManyRequests, "Too many requests")
			return
		}
		next.ServeHTTP(w, req)
	})
}

func (s *Server) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, req)
		s.Metrics.Observe(req.URL.Path, rec.status, time.Since(start))
		s.Log.Request(req.Method, req.URL.Path, s.clientIP(req), uuid.NewString())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) limitRequestBodyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if s.MaxRequestBodyBytes > 0 && req.Body != nil {
			req.Body = http.MaxBytesReader(w, req.Body, s.MaxRequestBodyBytes)
		}
		next.ServeHTTP(w, req)
	})
}

func (s *Server) retentionLoop(ctx context.Context) {
	s.runRetention()
	interval := s.RetentionInterval
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runRetention()
		}
	}
}

func (s *Server) runRetention() {
	days := s.Config.Logging.CleanupAfterDays
	if days <= 0 {
		days = 30
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	removed, err := s.Store.PruneOlderThan(cutoff)
	if err != nil {
		s.Log.Error("retention run failed: %v", err)
		return
	}
	if removed > 0 {
		s.Log.Info("retention removed %d records older than %d days", removed, days)
		s.Events.Publish(stream.RetentionPruned(removed))
	}
}

func (s *Server) gaugeLoop(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	s.updateGauges()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.updateGauges()
		}
	}
}

func (s *Server) updateGauges() {
	s.Metrics.SetGauge("store_records", float64(s.Store.Count()))
	if s.Guard != nil && s.Guard.Blocked != nil {
		s.Metrics.SetGauge("blocked_clients", float64(s.Guard.Blocked.Len()))
	}
}

func (s *Server) clientIP(r *http.Request) string {
	remoteIP := parseIP(r.RemoteAddr)
	if remoteIP == "" {
		remoteIP = r.RemoteAddr
	}
	if remoteIP != "" && s.isTrustedProxy(remoteIP) {
		if xff := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); xff != "" {
			parts := strings.Split(xff, ",")
			if len(parts) > 0 {
				candidate := parseIP(strings.TrimSpace(parts[0]))
				if candidate != "" {
					return candidate
				}
			}
		}
		if realIP := parseIP(strings.TrimSpace(r.Header.Get("X-Real-IP"))); realIP != "" {
			return realIP
		}
	}
	if remoteIP == "" {
		return "unknown"
	}
	return remoteIP
}

func (s *Server) isTrustedProxy(ipStr string) bool {
	if len(s.TrustedProxyCIDRs) == 0 {
		return false
	}
	ip := net.ParseIP(strings.TrimSpace(ipStr))
	if ip == nil {
		return false
	}
	for _, cidr := range s.TrustedProxyCIDRs {
		if cidr.Contains(ip) {
			return true
		}
	}
	return false
}

func parseIP(addr string) string {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return ""
	}
	if host, _, err := net.SplitHostPort(addr); err == nil && host != "" {
		return host
	}
	if net.ParseIP(addr) != nil {
		return addr
	}
	return ""
}

func splitNonEmpty(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseCIDRs(raw string) []*net.IPNet {
	var out []*net.IPNet
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if _, cidr, err := net.ParseCIDR(part); err == nil {
			out = append(out, cidr)
		}
	}
	return out
}

func openRedis(ctx context.Context) (*redis.Client, error) {
	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		return nil, errors.New("REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       envInt("REDIS_DB", 0),
	})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func envInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func envDurationSec(k string, def int) time.Duration {
	return time.Second * time.Duration(envInt(k, def))
}
