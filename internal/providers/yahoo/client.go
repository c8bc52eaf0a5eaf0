// Package yahoo fetches stock quotes from the Yahoo Finance chart and
// quoteSummary APIs. Fundamentals calls require a cookie+crumb session,
// established once per refresh cycle and reused for every symbol.
package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"sector-view-api/internal/models"
	"sector-view-api/internal/types"
)

const providerName = "yahoo"

const userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// Client is a Yahoo Finance API client
type Client struct {
	chartBaseURL string
	quoteBaseURL string
	authBaseURL  string
	httpClient   *http.Client
	rateLimiter  *rate.Limiter

	mu    sync.RWMutex
	crumb string
}

// Config represents Yahoo client configuration
type Config struct {
	ChartBaseURL string
	QuoteBaseURL string
	AuthBaseURL  string
	Timeout      time.Duration
	RateLimit    int // requests per minute
}

// NewClient creates a new Yahoo Finance client
func NewClient(config *Config) *Client {
	if config == nil {
		config = &Config{}
	}
	if config.ChartBaseURL == "" {
		config.ChartBaseURL = "https://query1.finance.yahoo.com"
	}
	if config.QuoteBaseURL == "" {
		config.QuoteBaseURL = "https://query2.finance.yahoo.com"
	}
	if config.AuthBaseURL == "" {
		config.AuthBaseURL = "https://fc.yahoo.com"
	}
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}
	if config.RateLimit == 0 {
		config.RateLimit = 600
	}

	jar, _ := cookiejar.New(nil)

	return &Client{
		chartBaseURL: config.ChartBaseURL,
		quoteBaseURL: config.QuoteBaseURL,
		authBaseURL:  config.AuthBaseURL,
		httpClient: &http.Client{
			Timeout: config.Timeout,
			Jar:     jar,
		},
		rateLimiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(config.RateLimit)), 1),
	}
}

// Connect establishes a session: cookies from the auth host, then a crumb
// using those cookies. Must be called before FetchQuote.
func (c *Client) Connect(ctx context.Context) error {
	// The auth host answers with an error page; only its cookies matter.
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.authBaseURL, nil)
	if err != nil {
		return fmt.Errorf("yahoo: init session: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("yahoo: init session: %w", err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	body, err := c.get(ctx, c.quoteBaseURL+"/v1/test/getcrumb")
	if err != nil {
		return fmt.Errorf("yahoo: fetch crumb: %w", err)
	}

	crumb := strings.TrimSpace(string(body))
	if crumb == "" || strings.Contains(crumb, "Unauthorized") || strings.Contains(crumb, "Too Many") {
		return fmt.Errorf("yahoo: crumb fetch rejected: %q", crumb)
	}

	c.mu.Lock()
	c.crumb = crumb
	c.mu.Unlock()
	return nil
}

// FetchQuote retrieves a combined quote for one stock: price data from the
// chart API and fundamentals from the quoteSummary API. Transient failures
// are retried with exponential backoff within the request context.
func (c *Client) FetchQuote(ctx context.Context, stockID int, symbol string) (*models.StockQuote, error) {
	c.mu.RLock()
	crumb := c.crumb
	c.mu.RUnlock()
	if crumb == "" {
		return nil, fmt.Errorf("yahoo: no session, call Connect first")
	}

	var chart chartResponse
	chartURL := fmt.Sprintf("%s/v8/finance/chart/%s?range=1d&interval=1d", c.chartBaseURL, symbol)
	if err := c.getJSON(ctx, chartURL, &chart); err != nil {
		return nil, fmt.Errorf("yahoo: chart %s: %w", symbol, err)
	}

	var summary quoteSummaryResponse
	summaryURL := fmt.Sprintf(
		"%s/v10/finance/quoteSummary/%s?modules=defaultKeyStatistics,summaryDetail,summaryProfile,price&crumb=%s",
		c.quoteBaseURL, symbol, crumb,
	)
	if err := c.getJSON(ctx, summaryURL, &summary); err != nil {
		return nil, fmt.Errorf("yahoo: quoteSummary %s: %w", symbol, err)
	}

	return buildQuote(stockID, symbol, &chart, &summary)
}

// getJSON performs a rate-limited GET with retries and decodes the body.
func (c *Client) getJSON(ctx context.Context, url string, dest interface{}) error {
	operation := func() error {
		body, err := c.get(ctx, url)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(body, dest); err != nil {
			return backoff.Permanent(types.NewProviderError(providerName, types.ErrorCodeBadPayload, err.Error(), false))
		}
		return nil
	}

	strategy := backoff.NewExponentialBackOff()
	strategy.MaxElapsedTime = 30 * time.Second

	return backoff.Retry(operation, backoff.WithContext(strategy, ctx))
}

func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait cancelled: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var provErr error = types.FromHTTPStatus(providerName, resp.StatusCode)
		if !types.IsRetryableError(provErr) {
			return nil, backoff.Permanent(provErr)
		}
		return nil, provErr
	}

	return body, nil
}
