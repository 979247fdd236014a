package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	fhttp "github.com/bogdanfinn/fhttp"
	tls_client "github.com/bogdanfinn/tls-client"
	"github.com/bogdanfinn/tls-client/profiles"

	"github.com/sitesync/sitesync/internal/cache"
	"github.com/sitesync/sitesync/internal/domain"
)

// Client is a stealth HTTP client using tls-client. Responses for GET
// requests are cached by normalized URL when a cache is configured.
type Client struct {
	tlsClient    tls_client.HttpClient
	userAgent    string
	retrier      *Retrier
	cache        domain.Cache
	cacheEnabled bool
	cacheTTL     time.Duration
}

// ClientOptions contains options for creating a Client
type ClientOptions struct {
	Timeout     time.Duration
	MaxRetries  int
	EnableCache bool
	CacheTTL    time.Duration
	Cache       domain.Cache
	UserAgent   string
	ProxyURL    string
}

// DefaultClientOptions returns default client options
func DefaultClientOptions() ClientOptions {
	return ClientOptions{
		Timeout:     30 * time.Second,
		MaxRetries:  3,
		EnableCache: true,
		CacheTTL:    12 * time.Hour,
	}
}

// NewClient creates a new stealth HTTP client
func NewClient(opts ClientOptions) (*Client, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}

	// The TLS client timeout bounds the whole exchange including slow
	// wiki backends, so keep it well above the per-request timeout.
	tlsTimeout := opts.Timeout * 3
	if tlsTimeout < 3*time.Minute {
		tlsTimeout = 3 * time.Minute
	}

	tlsOpts := []tls_client.HttpClientOption{
		tls_client.WithTimeoutSeconds(int(tlsTimeout.Seconds())),
		tls_client.WithClientProfile(profiles.Chrome_131),
		tls_client.WithRandomTLSExtensionOrder(),
		tls_client.WithNotFollowRedirects(),
	}

	if opts.ProxyURL != "" {
		tlsOpts = append(tlsOpts, tls_client.WithProxyUrl(opts.ProxyURL))
	}

	tlsClient, err := tls_client.NewHttpClient(tls_client.NewNoopLogger(), tlsOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create tls client: %w", err)
	}

	retrier := NewRetrier(RetrierOptions{
		MaxRetries:      opts.MaxRetries,
		InitialInterval: 1 * time.Second,
		MaxInterval:     30 * time.Second,
		Multiplier:      2.0,
	})

	return &Client{
		tlsClient:    tlsClient,
		userAgent:    opts.UserAgent,
		retrier:      retrier,
		cache:        opts.Cache,
		cacheEnabled: opts.EnableCache,
		cacheTTL:     opts.CacheTTL,
	}, nil
}

// Get fetches content from a URL
func (c *Client) Get(ctx context.Context, url string) (*domain.Response, error) {
	return c.GetWithHeaders(ctx, url, nil)
}

// GetWithHeaders fetches content with custom headers
func (c *Client) GetWithHeaders(ctx context.Context, url string, extraHeaders map[string]string) (*domain.Response, error) {
	if c.cacheEnabled && c.cache != nil {
		if cached, err := c.getFromCache(ctx, url); err == nil && cached != nil {
			return cached, nil
		}
	}

	var resp *domain.Response
	err := c.retrier.Retry(ctx, func() error {
		var err error
		resp, err = c.doRequest(ctx, url, extraHeaders)
		return err
	})
	if err != nil {
		return nil, err
	}

	if c.cacheEnabled && c.cache != nil && resp != nil {
		_ = c.saveToCache(ctx, url, resp)
	}

	return resp, nil
}

func (c *Client) doRequest(ctx context.Context, targetURL string, extraHeaders map[string]string) (*domain.Response, error) {
	req, err := fhttp.NewRequestWithContext(ctx, fhttp.MethodGet, targetURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for k, v := range StealthHeaders(c.userAgent) {
		req.Header.Set(k, v)
	}
	for k, v := range extraHeaders {
		req.Header.Set(k, v)
	}

	resp, err := c.tlsClient.Do(req)
	if err != nil {
		return nil, &domain.FetchError{
			URL: targetURL,
			Err: fmt.Errorf("request failed: %w", err),
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		fetchErr := domain.NewFetchError(targetURL, resp.StatusCode, fmt.Errorf("HTTP %d", resp.StatusCode))
		if ShouldRetryStatus(resp.StatusCode) {
			return nil, &domain.RetryableError{
				Err:        fetchErr,
				RetryAfter: int(ParseRetryAfter(resp.Header.Get("Retry-After")).Seconds()),
			}
		}
		return nil, fetchErr
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	// Convert fhttp.Header to net/http.Header
	httpHeaders := make(http.Header)
	for k, v := range resp.Header {
		httpHeaders[k] = v
	}

	return &domain.Response{
		StatusCode:  resp.StatusCode,
		Body:        body,
		Headers:     httpHeaders,
		ContentType: resp.Header.Get("Content-Type"),
		URL:         targetURL,
	}, nil
}

// Close releases client resources
func (c *Client) Close() error {
	c.tlsClient.CloseIdleConnections()
	return nil
}

func (c *Client) getFromCache(ctx context.Context, url string) (*domain.Response, error) {
	data, err := c.cache.Get(ctx, cache.GenerateKey(url))
	if err != nil {
		return nil, err
	}

	return &domain.Response{
		StatusCode:  http.StatusOK,
		Body:        data,
		ContentType: "text/html",
		URL:         url,
		FromCache:   true,
	}, nil
}

func (c *Client) saveToCache(ctx context.Context, url string, resp *domain.Response) error {
	return c.cache.Set(ctx, cache.GenerateKey(url), resp.Body, c.cacheTTL)
}
