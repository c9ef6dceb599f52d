package validate

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ppiankov/readmecheck/internal/cache"
	"github.com/ppiankov/readmecheck/internal/model"
)

func init() {
	// Disable retry sleep in all tests for fast execution
	validateSleepFunc = func(d time.Duration) {}
}

func testConfig() *model.Config {
	cfg := model.DefaultConfig()
	cfg.RateLimiting.RequestsPerSecond = 0
	cfg.HTTP.Timeout = 5 * time.Second
	return cfg
}

// serve answers robots.txt with 404 and counts the remaining requests in hits
func serve(t *testing.T, hits *atomic.Int32, h http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if hits != nil {
			hits.Add(1)
		}
		h(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestValidator_Alive(t *testing.T) {
	srv := serve(t, nil, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			t.Errorf("Expected HEAD request, got %s", r.Method)
		}
		if ua := r.Header.Get("User-Agent"); !strings.HasPrefix(ua, "readmecheck/") {
			t.Errorf("Unexpected User-Agent %q", ua)
		}
		w.WriteHeader(http.StatusOK)
	})

	v := NewValidator(testConfig(), nil, nil)
	got := v.CheckLinks(context.Background(), []string{srv.URL + "/ok"})

	if len(got) != 1 {
		t.Fatalf("Expected 1 result, got %d", len(got))
	}
	if !got[0].Alive || got[0].Dead {
		t.Errorf("Expected alive link, got %+v", got[0])
	}
	if got[0].StatusCode != http.StatusOK {
		t.Errorf("Expected status code 200, got %d", got[0].StatusCode)
	}
}

func TestValidator_Dead(t *testing.T) {
	for _, code := range []int{http.StatusNotFound, http.StatusGone} {
		srv := serve(t, nil, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(code)
		})

		got := NewValidator(testConfig(), nil, nil).CheckLinks(context.Background(), []string{srv.URL + "/gone"})
		if got[0].Alive || !got[0].Dead {
			t.Errorf("HTTP %d: expected dead link, got %+v", code, got[0])
		}
	}
}

func TestValidator_HeadRefusedFallsBackToGet(t *testing.T) {
	var (
		mu      sync.Mutex
		methods []string
	)
	srv := serve(t, nil, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		methods = append(methods, r.Method)
		mu.Unlock()
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	got := NewValidator(testConfig(), nil, nil).CheckLinks(context.Background(), []string{srv.URL})
	if !got[0].Alive {
		t.Errorf("Expected alive after GET fallback, got %+v", got[0])
	}
	mu.Lock()
	defer mu.Unlock()
	if strings.Join(methods, ",") != "HEAD,GET" {
		t.Errorf("Expected HEAD then GET, got %v", methods)
	}
}

func TestValidator_RetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	srv := serve(t, &hits, func(w http.ResponseWriter, r *http.Request) {
		if hits.Load() < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	got := NewValidator(testConfig(), nil, nil).CheckLinks(context.Background(), []string{srv.URL})
	if !got[0].Alive {
		t.Errorf("Expected success on third attempt, got %+v", got[0])
	}
	if hits.Load() != 3 {
		t.Errorf("Expected 3 attempts, got %d", hits.Load())
	}
}

func TestValidator_RetriesExhausted(t *testing.T) {
	var hits atomic.Int32
	srv := serve(t, &hits, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	got := NewValidator(testConfig(), nil, nil).CheckLinks(context.Background(), []string{srv.URL})
	if got[0].Alive || got[0].Dead {
		t.Errorf("Expected neither alive nor dead, got %+v", got[0])
	}
	if got[0].StatusCode != http.StatusBadGateway {
		t.Errorf("Expected 502, got %d", got[0].StatusCode)
	}
	if hits.Load() != validateMaxRetries {
		t.Errorf("Expected %d attempts, got %d", validateMaxRetries, hits.Load())
	}
}

func TestValidator_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	got := NewValidator(testConfig(), nil, nil).CheckLinks(context.Background(), []string{url})
	if got[0].Alive || got[0].Dead {
		t.Errorf("Transport failures are neither alive nor dead, got %+v", got[0])
	}
	if got[0].Error == "" {
		t.Error("Expected an error message")
	}
}

func TestValidator_RobotsDisallow(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			_, _ = w.Write([]byte("User-agent: *\nDisallow: /private\n"))
			return
		}
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	got := NewValidator(testConfig(), nil, nil).CheckLinks(context.Background(),
		[]string{srv.URL + "/private/page", srv.URL + "/public"})

	if got[0].Skipped == "" {
		t.Errorf("Expected disallowed link to be skipped, got %+v", got[0])
	}
	if !got[1].Alive {
		t.Errorf("Expected allowed link to be checked, got %+v", got[1])
	}
	if hits.Load() != 1 {
		t.Errorf("Expected only the allowed page to be requested, got %d requests", hits.Load())
	}
}

func TestValidator_CachesDefinitiveResults(t *testing.T) {
	var hits atomic.Int32
	srv := serve(t, &hits, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	c := cache.NewMemoryCache(time.Minute, time.Minute)
	v := NewValidator(testConfig(), c, nil)

	first := v.CheckLinks(context.Background(), []string{srv.URL + "/x"})
	second := v.CheckLinks(context.Background(), []string{srv.URL + "/x"})

	if hits.Load() != 1 {
		t.Errorf("Expected one request, got %d", hits.Load())
	}
	if first[0] != second[0] {
		t.Errorf("Cached result differs: %+v vs %+v", first[0], second[0])
	}
}

func TestValidator_PreservesOrder(t *testing.T) {
	srv := serve(t, nil, func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/dead") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	urls := []string{srv.URL + "/a", srv.URL + "/dead1", srv.URL + "/b", srv.URL + "/dead2"}
	got := NewValidator(testConfig(), nil, nil).CheckLinks(context.Background(), urls)

	for i, st := range got {
		if st.URL != urls[i] {
			t.Errorf("Result %d: expected %s, got %s", i, urls[i], st.URL)
		}
		wantAlive := !strings.Contains(urls[i], "dead")
		if st.Alive != wantAlive {
			t.Errorf("Result %d: expected alive=%v, got %+v", i, wantAlive, st)
		}
	}
}

func TestValidator_Cancelled(t *testing.T) {
	srv := serve(t, nil, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got := NewValidator(testConfig(), nil, nil).CheckLinks(ctx, []string{srv.URL + "/a", srv.URL + "/b"})
	for _, st := range got {
		if st.Alive {
			t.Errorf("Expected no successful checks after cancellation, got %+v", st)
		}
		if st.Error == "" {
			t.Errorf("Expected an error after cancellation, got %+v", st)
		}
	}
}

func TestValidator_Empty(t *testing.T) {
	got := NewValidator(testConfig(), nil, nil).CheckLinks(context.Background(), nil)
	if len(got) != 0 {
		t.Errorf("Expected no results, got %d", len(got))
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		status model.LinkStatus
		want   bool
	}{
		{model.LinkStatus{StatusCode: 503}, true},
		{model.LinkStatus{StatusCode: 429}, true},
		{model.LinkStatus{StatusCode: 404}, false},
		{model.LinkStatus{StatusCode: 200}, false},
		{model.LinkStatus{Error: "dial tcp: connection refused"}, true},
		{model.LinkStatus{Error: "Client.Timeout exceeded"}, true},
		{model.LinkStatus{Error: "no such host"}, false},
	}
	for _, tt := range tests {
		if got := isRetryable(tt.status); got != tt.want {
			t.Errorf("isRetryable(%+v) = %v, want %v", tt.status, got, tt.want)
		}
	}
}
