package osm

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const DefaultEndpoint = "https://overpass-api.de/api/interpreter"

type ClientConfig struct {
	Endpoint    string
	MaxAttempts int
	RetryDelay  time.Duration
	TimeoutSec  int
	HTTPClient  *http.Client
}

// Client talks to an Overpass API endpoint. Failed calls are retried with a
// flat delay between attempts.
type Client struct {
	endpoint    string
	maxAttempts int
	retryDelay  time.Duration
	timeoutSec  int
	httpClient  *http.Client
	log         *logrus.Entry
}

func NewClient(cfg ClientConfig) *Client {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.TimeoutSec <= 0 {
		cfg.TimeoutSec = DefaultTimeoutSec
	}
	if cfg.HTTPClient == nil {
		// leave headroom over the server-side timeout
		cfg.HTTPClient = &http.Client{Timeout: time.Duration(cfg.TimeoutSec+10) * time.Second}
	}
	return &Client{
		endpoint:    cfg.Endpoint,
		maxAttempts: cfg.MaxAttempts,
		retryDelay:  cfg.RetryDelay,
		timeoutSec:  cfg.TimeoutSec,
		httpClient:  cfg.HTTPClient,
		log:         logrus.WithField("component", "overpass"),
	}
}

// FetchBuildings queries buildings in q.BBox.
func (c *Client) FetchBuildings(ctx context.Context, q BuildingQuery) (*QueryResult, error) {
	if q.TimeoutSec <= 0 {
		q.TimeoutSec = c.timeoutSec
	}
	return c.Query(ctx, BuildBuildingQuery(q))
}

// FetchStreets queries named streets in q.BBox.
func (c *Client) FetchStreets(ctx context.Context, q StreetQuery) (*QueryResult, error) {
	if q.TimeoutSec <= 0 {
		q.TimeoutSec = c.timeoutSec
	}
	return c.Query(ctx, BuildStreetQuery(q))
}

// Query runs an Overpass QL query. After maxAttempts failures it returns a
// *QueryFailedError wrapping the last error. Context cancellation stops the
// loop immediately and is returned as is.
func (c *Client) Query(ctx context.Context, ql string) (*QueryResult, error) {
	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		res, err := c.post(ctx, ql)
		if err == nil {
			if res.Dropped > 0 {
				c.log.Infof("Dropped %d elements without valid coordinates", res.Dropped)
			}
			return res, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		lastErr = err
		c.log.WithError(err).Warnf("Overpass attempt %d/%d failed", attempt, c.maxAttempts)

		if attempt == c.maxAttempts {
			break
		}
		if err := sleep(ctx, c.retryDelay); err != nil {
			return nil, err
		}
	}
	return nil, &QueryFailedError{Attempts: c.maxAttempts, Err: lastErr}
}

func (c *Client) post(ctx context.Context, ql string) (*QueryResult, error) {
	form := url.Values{"data": {ql}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("overpass request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := string(body)
		if len(snippet) > 200 {
			snippet = snippet[:200]
		}
		return nil, &statusError{StatusCode: resp.StatusCode, Body: snippet}
	}

	res, err := ParseResponse(body)
	if err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return res, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
