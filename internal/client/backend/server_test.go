package backend

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/require"

	"github.com/stephanschabuss97-design/Gesundheits-berwachung-sub000/internal/timex"
)

var epoch = time.Date(2026, 3, 2, 7, 30, 0, 0, time.UTC)

const (
	testEmail    = "alice@example.com"
	testPassword = "secret"
	testAnonKey  = "anon-key"
)

// fakeServer is a minimal auth + storage API.
type fakeServer struct {
	mu            sync.Mutex
	counts        map[string]int
	issued        int
	rejectRefresh bool
	refreshGate   chan struct{}
	lastAuth      string
	lastBody      map[string]any
	storage       func(w http.ResponseWriter, r *http.Request)
}

func newFakeServer(t *testing.T) (*fakeServer, *httptest.Server) {
	t.Helper()
	fs := &fakeServer{counts: map[string]int{}}
	srv := httptest.NewServer(fs)
	t.Cleanup(srv.Close)
	return fs, srv
}

func (s *fakeServer) count(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[key]
}

func (s *fakeServer) hit(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts[key]++
}

func (s *fakeServer) currentToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fmt.Sprintf("access-%d", s.issued)
}

func (s *fakeServer) issue(w http.ResponseWriter) {
	s.mu.Lock()
	s.issued++
	n := s.issued
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{
		"access_token":  fmt.Sprintf("access-%d", n),
		"refresh_token": fmt.Sprintf("refresh-%d", n),
		"expires_in":    3600,
		"user":          map[string]string{"id": "u-alice", "email": testEmail},
	})
}

func (s *fakeServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("apikey") != testAnonKey {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "no api key"})
		return
	}
	s.mu.Lock()
	s.lastAuth = r.Header.Get("Authorization")
	s.mu.Unlock()

	switch {
	case r.URL.Path == "/auth/v1/token" && r.URL.Query().Get("grant_type") == "password":
		s.hit("password")
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["email"] != testEmail || body["password"] != testPassword {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "invalid_grant", "error_description": "Invalid login credentials",
			})
			return
		}
		s.issue(w)

	case r.URL.Path == "/auth/v1/token" && r.URL.Query().Get("grant_type") == "refresh_token":
		s.hit("refresh")
		s.mu.Lock()
		gate, reject := s.refreshGate, s.rejectRefresh
		s.mu.Unlock()
		if gate != nil {
			<-gate
		}
		if reject {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error_description": "Invalid Refresh Token"})
			return
		}
		s.issue(w)

	case r.URL.Path == "/auth/v1/user":
		s.hit("user")
		if r.Header.Get("Authorization") != "Bearer "+s.currentToken() {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"msg": "bad token"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"id": "u-alice", "email": testEmail})

	case r.URL.Path == "/auth/v1/logout":
		s.hit("logout")
		w.WriteHeader(http.StatusNoContent)

	case r.URL.Path == "/auth/v1/health":
		s.hit("health")
		writeJSON(w, http.StatusOK, map[string]string{"name": "auth"})

	case strings.HasPrefix(r.URL.Path, "/rest/v1/"):
		s.hit("rest")
		if r.Body != nil {
			var body map[string]any
			if json.NewDecoder(r.Body).Decode(&body) == nil {
				s.mu.Lock()
				s.lastBody = body
				s.mu.Unlock()
			}
		}
		s.mu.Lock()
		storage := s.storage
		s.mu.Unlock()
		if storage != nil {
			storage(w, r)
			return
		}
		writeJSON(w, http.StatusOK, []any{})

	default:
		http.NotFound(w, r)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func newTestClient(t *testing.T, url string, opts ...Option) (*Client, *timex.FakeClock) {
	t.Helper()
	clock := timex.NewFakeClock(epoch)
	base := []Option{
		WithClock(clock),
		WithBackoff(func() backoff.BackOff { return backoff.WithMaxRetries(&backoff.ZeroBackOff{}, 3) }),
	}
	c, err := NewClient(url, testAnonKey, append(base, opts...)...)
	require.NoError(t, err)
	return c, clock
}

func (s *fakeServer) configure(fn func(s *fakeServer)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s)
}

func (s *fakeServer) body() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastBody
}

func (s *fakeServer) authHeader() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastAuth
}
