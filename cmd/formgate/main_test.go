package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"formgate/pkg/config"
	"formgate/pkg/logx"
	"formgate/pkg/metrics"
	"formgate/pkg/ratelimit"
	"formgate/pkg/store"
	"formgate/pkg/stream"

	"github.com/redis/go-redis/v9"
)

func noopTelemetry(context.Context, string) (func(context.Context) error, error) {
	return func(context.Context) error { return nil }, nil
}

func noRedis(context.Context) (*redis.Client, error) {
	return nil, errors.New("redis not configured")
}

func setTestEnv(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("CONFIG_PATH", filepath.Join(dir, "missing-config.json"))
	t.Setenv("DATA_PATH", filepath.Join(dir, "submissions.json"))
	t.Setenv("LOG_PATH", filepath.Join(dir, "formgate.log"))
	t.Setenv("ENVIRONMENT", "")
	t.Setenv("APP_ENV", "")
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
}

func TestRunServerStartStop(t *testing.T) {
	setTestEnv(t)
	listen := func(server *http.Server) error { return http.ErrServerClosed }
	if err := runServer(noopTelemetry, noRedis, listen, nil); err != nil {
		t.Fatalf("runServer: %v", err)
	}
}

func TestRunServerListenError(t *testing.T) {
	setTestEnv(t)
	boom := errors.New("bind failed")
	listen := func(server *http.Server) error { return boom }
	if err := runServer(noopTelemetry, noRedis, listen, nil); !errors.Is(err, boom) {
		t.Fatalf("expected listen error, got %v", err)
	}
}

func TestRunServerTelemetryError(t *testing.T) {
	setTestEnv(t)
	boom := errors.New("exporter unreachable")
	badTelemetry := func(context.Context, string) (func(context.Context) error, error) {
		return nil, boom
	}
	listen := func(server *http.Server) error { return http.ErrServerClosed }
	if err := runServer(badTelemetry, noRedis, listen, nil); !errors.Is(err, boom) {
		t.Fatalf("expected telemetry error, got %v", err)
	}
}

func TestRunServerNilListen(t *testing.T) {
	setTestEnv(t)
	if err := runServer(noopTelemetry, noRedis, nil, nil); err == nil {
		t.Fatal("expected error without a listen function")
	}
}

func TestRunServerProductionRejectsWeakConfig(t *testing.T) {
	setTestEnv(t)
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.json")
	weak := `{"security":{"enableRateLimiting":true,"maxRequestsPerMinute":10,"blockSuspiciousIPs":true,"enableCSRF":false}}`
	if err := os.WriteFile(cfgPath, []byte(weak), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CONFIG_PATH", cfgPath)
	t.Setenv("ENVIRONMENT", "production")
	listen := func(server *http.Server) error { return http.ErrServerClosed }
	if err := runServer(noopTelemetry, noRedis, listen, nil); err == nil {
		t.Fatal("production run with CSRF disabled should refuse to start")
	}
}

func TestMainExitsOnError(t *testing.T) {
	setTestEnv(t)
	called := false
	origFatalf, origListen := logFatalf, listenFnG
	defer func() { logFatalf, listenFnG = origFatalf, origListen }()
	logFatalf = func(format string, v ...interface{}) { called = true }
	listenFnG = func(server *http.Server) error { return errors.New("bind failed") }
	main()
	if !called {
		t.Fatal("main should report fatal errors")
	}
}

func TestClientIPTrustedProxy(t *testing.T) {
	s := &Server{TrustedProxyCIDRs: parseCIDRs("10.0.0.0/8")}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.1.2.3:4567"
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.1.2.3")
	if got := s.clientIP(req); got != "203.0.113.9" {
		t.Fatalf("trusted proxy should yield forwarded address, got %q", got)
	}

	req2 := httptest.NewRequest(http.MethodGet, "/", nil)
	req2.RemoteAddr = "198.51.100.7:4567"
	req2.Header.Set("X-Forwarded-For", "203.0.113.9")
	if got := s.clientIP(req2); got != "198.51.100.7" {
		t.Fatalf("untrusted peer must not spoof via headers, got %q", got)
	}

	req3 := httptest.NewRequest(http.MethodGet, "/", nil)
	req3.RemoteAddr = "10.1.2.3:4567"
	req3.Header.Set("X-Real-IP", "203.0.113.42")
	if got := s.clientIP(req3); got != "203.0.113.42" {
		t.Fatalf("X-Real-IP fallback failed, got %q", got)
	}
}

func TestParseCIDRs(t *testing.T) {
	got := parseCIDRs("10.0.0.0/8, not-a-cidr, 192.168.0.0/16,")
	if len(got) != 2 {
		t.Fatalf("expected 2 networks, got %d", len(got))
	}
}

func TestSplitNonEmpty(t *testing.T) {
	got := splitNonEmpty(" a, ,b,, c ")
	if len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Fatalf("unexpected parts: %v", got)
	}
}

func TestRunRetention(t *testing.T) {
	cfg := config.Default()
	cfg.Logging.CleanupAfterDays = 30
	s := &Server{
		Config:  cfg,
		Store:   store.NewFileStore(filepath.Join(t.TempDir(), "submissions.json")),
		Metrics: metrics.NewRegistry(),
		Events:  stream.NewHub(),
		Log:     logx.New("quiet", false, ""),
	}
	s.Guard = ratelimit.NewGuard(nil, 10, false)
	now := time.Now().UTC()
	_ = s.Store.Append(store.Submission{ID: "old", Timestamp: now.AddDate(0, 0, -45)})
	_ = s.Store.Append(store.Submission{ID: "new", Timestamp: now})

	s.runRetention()

	records, _ := s.Store.LoadAll()
	if len(records) != 1 || records[0].ID != "new" {
		t.Fatalf("expected only the recent record to survive, got %+v", records)
	}
}

func TestUpdateGauges(t *testing.T) {
	s := &Server{
		Store:   store.NewFileStore(filepath.Join(t.TempDir(), "submissions.json")),
		Metrics: metrics.NewRegistry(),
	}
	s.Guard = ratelimit.NewGuard(ratelimit.NewSlidingWindow(time.Minute), 10, true)
	s.Guard.Blocked.Add("192.0.2.1")
	_ = s.Store.Append(store.Submission{ID: "g1", Timestamp: time.Now().UTC()})

	s.updateGauges()

	snap := s.Metrics.Snapshot()
	if snap.Gauges["store_records"] != 1 {
		t.Fatalf("store_records gauge = %v", snap.Gauges["store_records"])
	}
	if snap.Gauges["blocked_clients"] != 1 {
		t.Fatalf("blocked_clients gauge = %v", snap.Gauges["blocked_clients"])
	}
}

func TestCSRFTokenValidation(t *testing.T) {
	token, err := newCSRFToken()
	if err != nil {
		t.Fatalf("newCSRFToken: %v", err)
	}
	if len(token) != 64 || !validCSRFToken(token) {
		t.Fatalf("generated token should validate: %q", token)
	}
	for _, bad := range []string{"", "short", token[:63], token + "0", "G" + token[1:]} {
		if validCSRFToken(bad) {
			t.Fatalf("token %q should not validate", bad)
		}
	}
}

func TestParseResearchMetadata(t *testing.T) {
	if meta := parseResearchMetadata(""); len(meta) != 0 {
		t.Fatalf("empty input should yield empty map, got %v", meta)
	}
	if meta := parseResearchMetadata("{broken"); len(meta) != 0 {
		t.Fatalf("malformed input should yield empty map, got %v", meta)
	}
	meta := parseResearchMetadata(`{"autofillUsed":true}`)
	if !metadataBool(meta, "autofillUsed") {
		t.Fatal("flag lost in parse")
	}
	if metadataBool(meta, "missing") {
		t.Fatal("absent keys read as false")
	}
}
