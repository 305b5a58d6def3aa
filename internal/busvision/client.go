// Package busvision talks to the Bus-Vision approach page: it fetches the
// markup for a stop pair and extracts the next vehicle's status.
package busvision

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sakaguchiii/bus-notification/internal/domain"
)

const (
	// DefaultBaseURL is the Sanco Bus-Vision view root.
	DefaultBaseURL = "https://bus-vision.jp/sanco/view/"

	approachPage = "approach.html"
	maxBodySize  = 2 << 20
	userAgent    = "bus-notification/1.0"
)

// CodeLookup maps a stop name to its code.
type CodeLookup interface {
	Code(name string) (string, bool)
}

// Options configures a Client. Zero values select defaults.
type Options struct {
	BaseURL      string
	Timeout      time.Duration
	RatePerSec   float64
	Burst        int
	MaxRetries   int
	RetryBackoff time.Duration
	HTTPClient   *http.Client
}

// Client fetches approach pages. It is safe for concurrent use; all
// callers share one rate limiter.
type Client struct {
	base       *url.URL
	stops      CodeLookup
	http       *http.Client
	limiter    *rate.Limiter
	maxRetries int
	retryBase  time.Duration
	log        *zap.Logger
}

// NewClient creates a Client resolving stop names through stops.
func NewClient(stops CodeLookup, log *zap.Logger, opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	base, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.RatePerSec <= 0 {
		opts.RatePerSec = 2
	}
	if opts.Burst <= 0 {
		opts.Burst = 2
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 500 * time.Millisecond
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: opts.Timeout}
	}
	return &Client{
		base:       base,
		stops:      stops,
		http:       hc,
		limiter:    rate.NewLimiter(rate.Limit(opts.RatePerSec), opts.Burst),
		maxRetries: opts.MaxRetries,
		retryBase:  opts.RetryBackoff,
		log:        log,
	}, nil
}

// ApproachURL builds the approach query for a stop code pair.
func (c *Client) ApproachURL(fromCode, toCode string) string {
	u := c.base.ResolveReference(&url.URL{Path: approachPage})
	q := url.Values{}
	q.Set("stopCdFrom", fromCode)
	q.Set("stopCdTo", toCode)
	q.Set("addSearchDetail", "false")
	q.Set("searchHour", "null")
	q.Set("searchMinute", "null")
	q.Set("searchAD", "-1")
	q.Set("searchVehicleTypeCd", "null")
	q.Set("searchCorpCd", "null")
	q.Set("lang", "0")
	u.RawQuery = q.Encode()
	return u.String()
}

// Fetch returns the approach page markup for a boarding/alighting pair.
// Errors wrap domain.ErrUnresolvedStop or domain.ErrFetchFailed.
func (c *Client) Fetch(ctx context.Context, boarding, alighting string) (string, error) {
	from, ok := c.stops.Code(boarding)
	if !ok {
		return "", fmt.Errorf("%w: %q", domain.ErrUnresolvedStop, boarding)
	}
	to, ok := c.stops.Code(alighting)
	if !ok {
		return "", fmt.Errorf("%w: %q", domain.ErrUnresolvedStop, alighting)
	}
	target := c.ApproachURL(from, to)

	var body string
	op := func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		b, err := c.get(ctx, target)
		if err != nil {
			return err
		}
		body = b
		return nil
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = c.retryBase
	eb.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(c.maxRetries)), ctx)

	notify := func(err error, wait time.Duration) {
		c.log.Debug("approach fetch retry",
			zap.String("url", target),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	}
	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrFetchFailed, err)
	}
	return body, nil
}

type statusError struct{ code int }

func (e *statusError) Error() string { return fmt.Sprintf("unexpected status %d", e.code) }

func (c *Client) get(ctx context.Context, target string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", backoff.Permanent(err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return "", backoff.Permanent(err)
		}
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))
		serr := &statusError{code: resp.StatusCode}
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return "", serr
		}
		return "", backoff.Permanent(serr)
	}

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return "", err
	}
	return string(b), nil
}
