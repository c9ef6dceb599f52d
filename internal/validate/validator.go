package validate

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/readmecheck/internal/cache"
	"github.com/ppiankov/readmecheck/internal/model"
	"github.com/ppiankov/readmecheck/internal/util"
	"github.com/ppiankov/readmecheck/internal/worker"
)

const (
	validateMaxRetries = 3
	cacheNamespace     = "link"
)

// validateSleepFunc is the sleep function used between retries (injectable for tests)
var validateSleepFunc = time.Sleep

// Validator checks external URLs found in documentation
type Validator struct {
	httpClient *http.Client
	maxWorkers int
	userAgent  string
	limiter    *worker.Limiter
	robots     *util.RobotsChecker
	cache      cache.Cache
	cacheTTL   time.Duration
	logger     *zap.Logger
}

// NewValidator builds a validator from the HTTP, rate limiting and
// concurrency settings. c may be nil to disable caching.
func NewValidator(cfg *model.Config, c cache.Cache, logger *zap.Logger) *Validator {
	if logger == nil {
		logger = zap.NewNop()
	}
	maxWorkers := cfg.Concurrency.LinkWorkers
	if maxWorkers <= 0 {
		maxWorkers = 8
	}
	timeout := cfg.HTTP.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy: util.NewProxyFunc(cfg.HTTP.HTTPProxy, cfg.HTTP.HTTPSProxy, cfg.HTTP.NoProxy),
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 5 {
				return fmt.Errorf("stopped after 5 redirects")
			}
			return nil
		},
	}

	return &Validator{
		httpClient: client,
		maxWorkers: maxWorkers,
		userAgent:  cfg.HTTP.UserAgent,
		limiter:    worker.NewLimiter(cfg.RateLimiting.RequestsPerSecond, cfg.RateLimiting.BurstSize),
		robots:     util.NewRobotsChecker(cfg.HTTP.UserAgent, client, timeout),
		cache:      c,
		cacheTTL:   cfg.Cache.DiskTTL,
		logger:     logger,
	}
}

// CheckLinks checks every URL concurrently and returns one status per input,
// in input order
func (v *Validator) CheckLinks(ctx context.Context, urls []string) []model.LinkStatus {
	results := make([]model.LinkStatus, len(urls))
	if len(urls) == 0 {
		return results
	}

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, v.maxWorkers)

	for i, u := range urls {
		wg.Add(1)
		go func(idx int, rawURL string) {
			defer wg.Done()

			select {
			case <-ctx.Done():
				results[idx] = model.LinkStatus{URL: rawURL, Error: "context cancelled"}
				return
			case semaphore <- struct{}{}:
			}
			defer func() { <-semaphore }()

			results[idx] = v.check(ctx, rawURL)
		}(i, u)
	}

	wg.Wait()

	dead := 0
	for _, r := range results {
		if !r.Alive && r.Skipped == "" {
			dead++
		}
	}
	v.logger.Info("external links checked", zap.Int("links", len(urls)), zap.Int("unreachable", dead))
	return results
}

// check resolves one URL through the cache, robots.txt and the host limiter
func (v *Validator) check(ctx context.Context, rawURL string) model.LinkStatus {
	key := cache.Key(cacheNamespace, rawURL)
	if status, ok := v.cached(key); ok {
		return status
	}

	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return model.LinkStatus{URL: rawURL, Dead: true, Error: "invalid URL"}
	}

	allowed, crawlDelay, err := v.robots.CanFetch(ctx, rawURL)
	if err == nil {
		if !allowed {
			return model.LinkStatus{URL: rawURL, Skipped: "disallowed by robots.txt"}
		}
		if crawlDelay > 0 {
			v.limiter.SetCrawlDelay(parsed.Host, crawlDelay)
		}
	}

	status := v.checkWithRetry(ctx, rawURL)
	if isDefinitive(status) {
		v.store(key, status)
	}
	return status
}

func (v *Validator) checkWithRetry(ctx context.Context, rawURL string) model.LinkStatus {
	var status model.LinkStatus
	for attempt := 0; attempt < validateMaxRetries; attempt++ {
		if err := v.limiter.Wait(ctx, rawURL); err != nil {
			return model.LinkStatus{URL: rawURL, Error: fmt.Sprintf("rate limit: %v", err)}
		}
		status = v.checkSingle(ctx, rawURL)
		if !isRetryable(status) || ctx.Err() != nil {
			return status
		}
		if attempt < validateMaxRetries-1 {
			backoff := time.Duration(1<<uint(attempt)) * time.Second
			v.logger.Debug("retrying link", zap.String("url", rawURL), zap.Duration("backoff", backoff))
			validateSleepFunc(backoff)
		}
	}
	return status
}

// checkSingle sends HEAD and falls back to GET for servers that refuse HEAD
func (v *Validator) checkSingle(ctx context.Context, rawURL string) model.LinkStatus {
	status := model.LinkStatus{URL: rawURL}

	code, err := v.do(ctx, http.MethodHead, rawURL)
	if err == nil && headRefused(code) {
		code, err = v.do(ctx, http.MethodGet, rawURL)
	}
	if err != nil {
		status.Error = fmt.Sprintf("request failed: %v", err)
		return status
	}

	status.StatusCode = code
	switch {
	case code >= 200 && code < 400:
		status.Alive = true
	case code == http.StatusNotFound || code == http.StatusGone:
		status.Dead = true
	}
	return status
}

func (v *Validator) do(ctx context.Context, method, rawURL string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	if v.userAgent != "" {
		req.Header.Set("User-Agent", v.userAgent)
	}

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	_ = resp.Body.Close()
	return resp.StatusCode, nil
}

func (v *Validator) cached(key string) (model.LinkStatus, bool) {
	if v.cache == nil {
		return model.LinkStatus{}, false
	}
	data, ok := v.cache.Get(key)
	if !ok {
		return model.LinkStatus{}, false
	}
	var status model.LinkStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return model.LinkStatus{}, false
	}
	return status, true
}

func (v *Validator) store(key string, status model.LinkStatus) {
	if v.cache == nil {
		return
	}
	data, err := json.Marshal(status)
	if err != nil {
		return
	}
	if err := v.cache.Set(key, data, v.cacheTTL); err != nil {
		v.logger.Debug("cache write failed", zap.String("url", status.URL), zap.Error(err))
	}
}

func headRefused(code int) bool {
	return code == http.StatusMethodNotAllowed || code == http.StatusForbidden || code == http.StatusNotImplemented
}

// isDefinitive reports results worth caching: a clear answer from the server
func isDefinitive(status model.LinkStatus) bool {
	return status.Alive || status.Dead
}

// isRetryable returns true for results that indicate transient failures
func isRetryable(status model.LinkStatus) bool {
	if status.StatusCode >= 500 && status.StatusCode < 600 {
		return true
	}
	if status.StatusCode == http.StatusTooManyRequests {
		return true
	}
	return status.Error != "" && isRetryableNetworkError(status.Error)
}

func isRetryableNetworkError(errMsg string) bool {
	s := strings.ToLower(errMsg)
	return strings.Contains(s, "timeout") ||
		strings.Contains(s, "connection refused") ||
		strings.Contains(s, "connection reset")
}
