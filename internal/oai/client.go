package oai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Doer lets callers swap the underlying HTTP client, e.g. for tests.
type Doer interface {
	Do(*http.Request) (*http.Response, error)
}

// Pacer is the single chokepoint for request spacing. The client calls it
// exactly once per physical request, retries included. *RateLimiter
// satisfies it.
type Pacer interface {
	Wait(ctx context.Context) error
}

// Options configure a Client. Zero values fall back to the documented
// defaults.
type Options struct {
	Endpoint string
	// Prefix is the metadata profile, default oai_dc.
	Prefix string
	// MaxRetries is the number of attempts per physical request, default 3.
	MaxRetries int
	// RetryAfter is the wait between attempts, default 5s.
	RetryAfter time.Duration
	// MaxPages bounds the resumption loop defensively, default 1024. Broken
	// resumptionToken implementations exist in the wild; without a cap a
	// non-terminating loop becomes a process-level hang.
	MaxPages int
	// UserAgent identifies the harvester to the endpoint.
	UserAgent string
	// Timeout for a single HTTP exchange, default 60s.
	Timeout time.Duration
}

func (o *Options) applyDefaults() {
	if o.Prefix == "" {
		o.Prefix = DefaultPrefix
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = 3
	}
	if o.RetryAfter <= 0 {
		o.RetryAfter = 5 * time.Second
	}
	if o.MaxPages <= 0 {
		o.MaxPages = 1024
	}
	if o.UserAgent == "" {
		o.UserAgent = "arhida/" + Version
	}
	if o.Timeout <= 0 {
		o.Timeout = 60 * time.Second
	}
}

// Version of the harvester, reported in the User-Agent.
const Version = "0.3.0"

// Client turns one logical ListRecords query into however many paced,
// retried physical requests the endpoint requires.
type Client struct {
	opts    Options
	doer    Doer
	limiter Pacer
	log     *slog.Logger
}

// NewClient creates a client backed by a plain http.Client.
func NewClient(opts Options, limiter Pacer, logger *slog.Logger) *Client {
	opts.applyDefaults()
	return &Client{
		opts:    opts,
		doer:    &http.Client{Timeout: opts.Timeout},
		limiter: limiter,
		log:     logger,
	}
}

// NewClientDoer creates a client with a user-supplied HTTP delegate.
func NewClientDoer(opts Options, limiter Pacer, doer Doer, logger *slog.Logger) *Client {
	opts.applyDefaults()
	return &Client{opts: opts, doer: doer, limiter: limiter, log: logger}
}

// ListRecords drains one logical query, following resumption tokens until
// the endpoint signals completion. The empty-result signal yields an empty
// slice and no error. On failure the returned *Error carries the kind the
// caller dispatches on.
func (c *Client) ListRecords(ctx context.Context, set string, from, until time.Time) ([]Record, error) {
	req := Request{
		Endpoint: c.opts.Endpoint,
		Prefix:   c.opts.Prefix,
		Set:      set,
		From:     from,
		Until:    until,
	}
	var records []Record
	for page := 0; ; page++ {
		if page == c.opts.MaxPages {
			return nil, &Error{Kind: ProtocolAnomaly, Err: ErrTooManyPages}
		}
		result, err := c.fetchPage(ctx, req.URL())
		if err != nil {
			return nil, err
		}
		if result.EmptyResult() {
			return records, nil
		}
		if result.Skipped > 0 {
			c.log.Warn("records without identifier discarded",
				"set", set, "count", result.Skipped)
		}
		records = append(records, result.Records...)
		if result.ResumptionToken == "" {
			return records, nil
		}
		// Continuation carries the token alone.
		req = Request{Endpoint: c.opts.Endpoint, ResumptionToken: result.ResumptionToken}
	}
}

// retryableStatus: the endpoint uses 503 for load shedding and 429 when the
// request spacing was violated. Everything else >= 400 is a rejection.
func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code == http.StatusServiceUnavailable
}

// fetchPage performs one physical request with retries. The pacer runs
// before every attempt; transient outcomes (transport failure, 429/503,
// undecodable body) are retried up to MaxRetries, then escalated as
// Exhausted.
func (c *Client) fetchPage(ctx context.Context, link string) (ParseResult, error) {
	var lastErr error
	for attempt := 1; attempt <= c.opts.MaxRetries; attempt++ {
		if attempt > 1 {
			c.log.Warn("request failed, retrying",
				"attempt", attempt, "max", c.opts.MaxRetries, "error", lastErr)
			if err := sleep(ctx, c.opts.RetryAfter); err != nil {
				return ParseResult{}, err
			}
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return ParseResult{}, err
		}
		result, err := c.fetchOnce(ctx, link)
		if err != nil {
			if ctx.Err() != nil {
				return ParseResult{}, ctx.Err()
			}
			var oe *Error
			if errors.As(err, &oe) {
				return ParseResult{}, err
			}
			lastErr = err
			continue
		}
		if result.ErrorCode == ErrCodeParseFailure {
			lastErr = fmt.Errorf("%s: %s", result.ErrorCode, result.ErrorMessage)
			continue
		}
		if result.IsError() && !result.EmptyResult() {
			return ParseResult{}, &Error{
				Kind:    ProtocolError,
				Code:    result.ErrorCode,
				Message: result.ErrorMessage,
			}
		}
		return result, nil
	}
	return ParseResult{}, &Error{Kind: Exhausted, Err: lastErr}
}

// fetchOnce performs a single HTTP exchange and decodes the body. Plain
// errors are retryable, *Error values are final.
func (c *Client) fetchOnce(ctx context.Context, link string) (ParseResult, error) {
	c.log.Debug("GET", "url", link)
	hreq, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return ParseResult{}, &Error{Kind: Rejected, Err: err}
	}
	hreq.Header.Set("User-Agent", c.opts.UserAgent)
	resp, err := c.doer.Do(hreq)
	if err != nil {
		return ParseResult{}, fmt.Errorf("transport: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return ParseResult{}, fmt.Errorf("read body: %w", err)
	}
	switch {
	case retryableStatus(resp.StatusCode):
		return ParseResult{}, fmt.Errorf("status %d", resp.StatusCode)
	case resp.StatusCode >= 400:
		return ParseResult{}, &Error{Kind: Rejected, Status: resp.StatusCode}
	}
	return ParseListRecords(body), nil
}

// sleep is a context-aware time.Sleep.
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
