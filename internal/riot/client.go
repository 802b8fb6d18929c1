package riot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/flor3z/matchlog/internal/metrics"
)

const breakerName = "riot-api"

// Options configures a Client. Zero values fall back to development-key defaults.
type Options struct {
	APIKey   string
	Region   string // regional routing value for account and match endpoints, e.g. "americas"
	Platform string // platform routing value for summoner and league endpoints, e.g. "na1"

	RequestsPerSecond     int
	RequestsPerTwoMinutes int
	Timeout               time.Duration

	// Base URL overrides, used by tests
	RegionalBaseURL string
	PlatformBaseURL string
	HTTPClient      *http.Client
}

// Client is a Riot Games API client with rate limiting
type Client struct {
	apiKey       string
	httpClient   *http.Client
	regionalBase string
	platformBase string
	timeout      time.Duration

	// Riot enforces two application windows; both must admit a request
	shortLimiter *rate.Limiter
	longLimiter  *rate.Limiter

	cb *gobreaker.CircuitBreaker[[]byte]
}

// NewClient creates a new Riot API client
func NewClient(opts Options) *Client {
	if opts.Region == "" {
		opts.Region = "americas"
	}
	if opts.Platform == "" {
		opts.Platform = "na1"
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = 20
	}
	if opts.RequestsPerTwoMinutes <= 0 {
		opts.RequestsPerTwoMinutes = 100
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.RegionalBaseURL == "" {
		opts.RegionalBaseURL = fmt.Sprintf("https://%s.api.riotgames.com", opts.Region)
	}
	if opts.PlatformBaseURL == "" {
		opts.PlatformBaseURL = fmt.Sprintf("https://%s.api.riotgames.com", opts.Platform)
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}

	metrics.CircuitBreakerState.WithLabelValues(breakerName).Set(0)

	return &Client{
		apiKey:       opts.APIKey,
		httpClient:   httpClient,
		regionalBase: opts.RegionalBaseURL,
		platformBase: opts.PlatformBaseURL,
		timeout:      opts.Timeout,
		shortLimiter: rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), opts.RequestsPerSecond),
		longLimiter: rate.NewLimiter(
			rate.Every(2*time.Minute/time.Duration(opts.RequestsPerTwoMinutes)),
			opts.RequestsPerTwoMinutes,
		),
		cb: newBreaker(),
	}
}

func newBreaker() *gobreaker.CircuitBreaker[[]byte] {
	return gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// A missing match or an exhausted budget says nothing about provider health
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrNotFound) || errors.Is(err, ErrRateLimited)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("Circuit breaker state change", "name", name, "from", from.String(), "to", to.String())
			metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
		},
	})
}

// wait blocks until both limiters admit a request or the context gives up
func (c *Client) wait(ctx context.Context) error {
	if err := c.shortLimiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrRateLimited, err)
	}
	if err := c.longLimiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrRateLimited, err)
	}
	return nil
}

// get performs a GET request and decodes the JSON response
func (c *Client) get(ctx context.Context, endpoint, rawURL string, query url.Values, result any) error {
	body, err := c.getRaw(ctx, endpoint, rawURL, query)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// getRaw performs a rate-limited, breaker-guarded GET and returns the body
func (c *Client) getRaw(ctx context.Context, endpoint, rawURL string, query url.Values) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.wait(ctx); err != nil {
		metrics.ProviderRequests.WithLabelValues(endpoint, "throttled").Inc()
		return nil, err
	}

	body, err := c.cb.Execute(func() ([]byte, error) {
		return c.doRequest(ctx, rawURL, query)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		err = fmt.Errorf("%w: %w", ErrTransient, err)
	}
	metrics.ProviderRequests.WithLabelValues(endpoint, outcome(err)).Inc()
	return body, err
}

// doRequest performs one HTTP round trip
func (c *Client) doRequest(ctx context.Context, rawURL string, query url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if len(query) > 0 {
		req.URL.RawQuery = query.Encode()
	}

	// Add API key header
	req.Header.Set("X-Riot-Token", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: request failed: %w", ErrTransient, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %w", ErrTransient, err)
	}

	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(body)}
		if resp.StatusCode == http.StatusTooManyRequests {
			if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil {
				apiErr.RetryAfter = time.Duration(secs) * time.Second
			}
		}
		return nil, apiErr
	}

	return body, nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrTransient):
		return "transient"
	default:
		return "error"
	}
}
