package registry

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"sitegen/internal/company/metrics"
	"sitegen/internal/company/models"
	"sitegen/pkg/domain"
)

const (
	defaultTimeout   = 10 * time.Second
	defaultUserAgent = "sitegen/1.0"
	maxBodyBytes     = 2 << 20
)

// Client fetches company records from the registry with a single GET per
// lookup. It never retries; callers own retry policy.
type Client struct {
	baseURL    string
	userAgent  string
	timeout    time.Duration
	insecure   bool
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
	metrics    *metrics.Metrics
}

// Option configures the Client.
type Option func(*Client)

// WithTimeout bounds each lookup, including reading the body.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithUserAgent sets the User-Agent header sent to the registry.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithInsecureSkipVerify disables TLS certificate verification on the default
// transport. Ignored when WithHTTPClient is used.
func WithInsecureSkipVerify(skip bool) Option {
	return func(c *Client) {
		c.insecure = skip
	}
}

// WithHTTPClient replaces the HTTP client (tests, custom transports).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithRateLimit throttles outbound lookups to perSecond with the given burst.
// A non-positive rate disables throttling.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(c *Client) {
		if perSecond <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithCircuitBreaker opens the circuit after maxFailures consecutive transport
// failures and probes again after cooldown. Zero maxFailures disables it.
// Not-found and unexpected-status answers prove the registry is reachable and
// do not count as failures.
func WithCircuitBreaker(maxFailures uint32, cooldown time.Duration) Option {
	return func(c *Client) {
		if maxFailures == 0 {
			c.breaker = nil
			return
		}
		c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "registry",
			MaxRequests: 1,
			Timeout:     cooldown,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= maxFailures
			},
			IsSuccessful: func(err error) bool {
				return err == nil || GetCategory(err) != ErrorRemote
			},
		})
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// New creates a registry client for baseURL (e.g. https://minhareceita.org).
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: defaultUserAgent,
		timeout:   defaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		if c.insecure {
			transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in via config
		}
		c.httpClient = &http.Client{Transport: transport}
	}
	return c
}

// Lookup fetches the record for cnpj. Errors are *RegistryError values.
func (c *Client) Lookup(ctx context.Context, cnpj domain.CNPJ) (*models.CompanyRecord, error) {
	start := time.Now()
	record, err := c.lookup(ctx, cnpj)
	outcome := "ok"
	if err != nil {
		outcome = string(GetCategory(err))
	}
	c.metrics.ObserveRegistryRequest(outcome, time.Since(start))
	return record, err
}

func (c *Client) lookup(ctx context.Context, cnpj domain.CNPJ) (*models.CompanyRecord, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, newError(ErrorRemote, cnpj.String(), "rate limiter wait aborted", err)
		}
	}
	if c.breaker == nil {
		return c.fetch(ctx, cnpj)
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.fetch(ctx, cnpj)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, newError(ErrorRemote, cnpj.String(), "circuit breaker open", err)
	}
	if err != nil {
		return nil, err
	}
	return result.(*models.CompanyRecord), nil
}

func (c *Client) fetch(ctx context.Context, cnpj domain.CNPJ) (*models.CompanyRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	url := c.baseURL + "/" + cnpj.String()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, newError(ErrorRemote, cnpj.String(), "build request", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, newError(ErrorRemote, cnpj.String(), "request failed", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return nil, newError(ErrorNotFound, cnpj.String(), "cnpj not found in registry", nil)
	case resp.StatusCode != http.StatusOK:
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		e := newError(ErrorUnexpectedStatus, cnpj.String(), "registry returned an error", nil)
		e.StatusCode = resp.StatusCode
		return nil, e
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, newError(ErrorRemote, cnpj.String(), "read response body", err)
	}
	return parseRecord(cnpj, body)
}

// parseRecord decodes a 200 body. An empty object counts as malformed: the
// registry never answers 200 without data for a known company.
func parseRecord(cnpj domain.CNPJ, body []byte) (*models.CompanyRecord, error) {
	var record models.CompanyRecord
	if err := json.Unmarshal(body, &record); err != nil {
		return nil, newError(ErrorMalformedResponse, cnpj.String(), "decode response", err)
	}
	if record.IsEmpty() {
		return nil, newError(ErrorMalformedResponse, cnpj.String(), "empty response", nil)
	}
	if record.CNPJ == "" {
		record.CNPJ = cnpj.String()
	}
	return &record, nil
}

// String identifies the client in logs.
func (c *Client) String() string {
	return fmt.Sprintf("registry(%s)", c.baseURL)
}
