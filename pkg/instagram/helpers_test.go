package instagram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"igcrawler/pkg/config"
	"igcrawler/pkg/logger"
)

// sleepRecorder stands in for real waits
type sleepRecorder struct {
	mu      sync.Mutex
	waits   []time.Duration
	onSleep func()
}

func (s *sleepRecorder) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.waits = append(s.waits, d)
	hook := s.onSleep
	s.mu.Unlock()
	if hook != nil {
		hook()
	}
	return ctx.Err()
}

func (s *sleepRecorder) Waits() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.waits...)
}

// mockRoundTripper allows us to intercept HTTP requests
type mockRoundTripper struct {
	handler func(req *http.Request) (*http.Response, error)
}

func (m *mockRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	return m.handler(req)
}

func hostOf(srv *httptest.Server) string {
	u, _ := url.Parse(srv.URL)
	return u.Host
}

func testConfig(host string) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Instagram.Scheme = "http"
	cfg.Instagram.Host = host
	cfg.Instagram.IPhoneHost = "iphone.invalid"
	cfg.Query.Sleep = false
	return cfg
}

type testEnv struct {
	ctx    *Context
	srv    *httptest.Server
	sleeps *sleepRecorder
	log    *logger.TestLogger
}

func newTestEnv(t *testing.T, handler http.Handler, mutate ...func(*config.Config)) *testEnv {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := testConfig(hostOf(srv))
	for _, m := range mutate {
		m(cfg)
	}
	sleeps := &sleepRecorder{}
	log := logger.NewTestLogger()
	c := NewContext(Options{
		Config:    cfg,
		Transport: srv.Client().Transport,
		Delay:     NoDelay{},
		Sleep:     sleeps.Sleep,
		Logger:    log,
	})
	return &testEnv{ctx: c, srv: srv, sleeps: sleeps, log: log}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
