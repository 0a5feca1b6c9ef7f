package http

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/damir5/kosarica-sub000/internal/http/ratelimit"
)

// Headers sent with every portal request. Several chains serve different
// (or no) content to clients that do not look like a browser.
const (
	UserAgent    = "Mozilla/5.0 (compatible; PriceTracker/1.0)"
	AcceptHeader = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"
)

// Client is an HTTP client with rate limiting and retry logic
type Client struct {
	httpClient  *http.Client
	rateLimiter *ratelimit.RateLimiter
	config      ratelimit.Config
}

// NewClient creates a new HTTP client with rate limiting
func NewClient(config ratelimit.Config) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		rateLimiter: ratelimit.NewRateLimiter(config),
		config:      config,
	}
}

// NewClientDefault creates a new HTTP client with default rate limiting
func NewClientDefault() *Client {
	return NewClient(ratelimit.DefaultConfig())
}

// Get performs a GET request with rate limiting and retry logic
func (c *Client) Get(url string) (*http.Response, error) {
	return c.Do("GET", url, nil)
}

// Head performs a HEAD request with rate limiting and retry logic
func (c *Client) Head(url string) (*http.Response, error) {
	return c.Do("HEAD", url, nil)
}

// Do performs an HTTP request with rate limiting and retry logic
func (c *Client) Do(method, url string, body io.Reader) (*http.Response, error) {
	var lastStatus int
	var lastErr error

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if err := c.rateLimiter.Throttle(context.Background()); err != nil {
			return nil, fmt.Errorf("rate limiter error: %w", err)
		}

		req, err := http.NewRequest(method, url, body)
		if err != nil {
			return nil, fmt.Errorf("invalid request for %s: %w", url, err)
		}
		req.Header.Set("User-Agent", UserAgent)
		req.Header.Set("Accept", AcceptHeader)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			if attempt < c.config.MaxRetries {
				time.Sleep(ratelimit.CalculateBackoff(attempt, c.config))
				continue
			}
			break
		}

		lastStatus = resp.StatusCode

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return resp, nil
		}

		// Non-retryable status fails immediately
		if !ratelimit.IsRetryableStatus(resp.StatusCode) {
			resp.Body.Close()
			return nil, &ratelimit.FetchRetryError{
				URL:        url,
				Attempts:   attempt + 1,
				LastStatus: resp.StatusCode,
			}
		}

		if attempt == c.config.MaxRetries {
			resp.Body.Close()
			break
		}

		var backoff time.Duration
		if resp.StatusCode == 429 {
			retryAfter := resp.Header.Get("Retry-After")
			var retryAfterPtr *string
			if retryAfter != "" {
				retryAfterPtr = &retryAfter
			}
			backoff = ratelimit.CalculateRateLimitBackoff(attempt, c.config, retryAfterPtr)
		} else {
			backoff = ratelimit.CalculateBackoff(attempt, c.config)
		}

		resp.Body.Close()
		time.Sleep(backoff)
	}

	return nil, &ratelimit.FetchRetryError{
		URL:        url,
		Attempts:   c.config.MaxRetries + 1,
		LastStatus: lastStatus,
		LastError:  lastErr,
	}
}

// GetBytes performs a GET request and returns the response body as bytes
func (c *Client) GetBytes(url string) ([]byte, error) {
	resp, err := c.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return data, nil
}

// GetConfig returns the current rate limit config
func (c *Client) GetConfig() ratelimit.Config {
	return c.config
}

// SetConfig updates the rate limit config
func (c *Client) SetConfig(config ratelimit.Config) {
	c.config = config
	c.rateLimiter.SetConfig(config)
}

// ComputeSha256 computes the SHA256 hash of the given data
func ComputeSha256(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}
