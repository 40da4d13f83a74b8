// Package api is the client for the backup service REST API: filtered and
// paginated listings, restore submissions and task reads.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	apperrors "github.com/coveworks/bulk-restore/internal/errors"
	"github.com/coveworks/bulk-restore/internal/retry"
	"github.com/coveworks/bulk-restore/internal/version"
)

// Config carries everything needed to construct a Client.
type Config struct {
	// BaseURL is the service endpoint; a bare hostname defaults to https.
	BaseURL string
	// Token is the bearer token sent on every request.
	Token string
	// Timeout bounds a single HTTP exchange (default 2m).
	Timeout time.Duration
	// Retry controls transport-level retries of idempotent calls.
	Retry retry.Options
	// PageLimit is the page size requested from listing endpoints (default 100).
	PageLimit int
}

// Client talks to the backup service. Listing calls retry transient
// transport failures; restore submissions are sent exactly once.
type Client struct {
	baseURL   string
	token     string
	http      *http.Client
	ro        retry.Options
	pageLimit int
}

// New validates the config and returns a ready Client.
func New(cfg Config) (*Client, error) {
	base, err := normalizeBaseURL(cfg.BaseURL)
	if err != nil {
		return nil, err
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	limit := cfg.PageLimit
	if limit <= 0 {
		limit = 100
	}
	return &Client{
		baseURL:   base,
		token:     cfg.Token,
		http:      &http.Client{Timeout: timeout},
		ro:        cfg.Retry,
		pageLimit: limit,
	}, nil
}

// normalizeBaseURL accepts a full URL or a bare hostname and returns a
// scheme-qualified base with no trailing slash, query or fragment.
func normalizeBaseURL(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", apperrors.NewValidationError("base url", "must not be empty")
	}
	if !strings.Contains(s, "://") {
		s = "https://" + s
	}
	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return "", apperrors.NewValidationError("base url", "not a valid URL: "+raw)
	}
	u.Path = strings.TrimRight(u.Path, "/")
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}

type statusError struct {
	StatusCode int
	Reason     string
	Body       string
	RetryAfter time.Duration
}

func (e statusError) Error() string { return fmt.Sprintf("http status %d", e.StatusCode) }

func newStatusError(resp *http.Response) statusError {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	return statusError{
		StatusCode: resp.StatusCode,
		Reason:     http.StatusText(resp.StatusCode),
		Body:       strings.TrimSpace(string(data)),
		RetryAfter: parseRetryAfter(resp),
	}
}

// parseRetryAfter supports seconds and HTTP-date.
func parseRetryAfter(resp *http.Response) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if s, err := strconv.Atoi(v); err == nil {
			return time.Duration(s) * time.Second
		}
		if t, err := http.ParseTime(v); err == nil {
			return time.Until(t)
		}
	}
	return 0
}

// isRetryable returns true if the error should be retried: network timeouts,
// throttling, request timeouts and server-side failures.
func isRetryable(err error) bool {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	var se statusError
	if errors.As(err, &se) {
		if se.StatusCode == http.StatusTooManyRequests ||
			se.StatusCode == http.StatusRequestTimeout ||
			(se.StatusCode >= 500 && se.StatusCode <= 599) {
			return true
		}
	}
	return false
}

// classify maps an exhausted transport error to the shared taxonomy:
// credential rejections become AuthError, other non-success statuses
// APIError carrying the backend's reason and body.
func classify(err error, op string) error {
	if err == nil {
		return nil
	}
	var se statusError
	if errors.As(err, &se) {
		if se.StatusCode == http.StatusUnauthorized || se.StatusCode == http.StatusForbidden {
			return apperrors.NewAuthError(op, se)
		}
		return apperrors.NewAPIError(se.StatusCode, se.Reason, se.Body)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// waitRetryAfter honors a Retry-After hint by sleeping before the error is
// handed back to the retry loop.
func waitRetryAfter(ctx context.Context, fn func(context.Context) error) error {
	err := fn(ctx)
	var se statusError
	if errors.As(err, &se) && se.RetryAfter > 0 {
		timer := time.NewTimer(se.RetryAfter)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return err
}

// getJSON performs a GET with retries and decodes the 2xx body into T.
func getJSON[T any](ctx context.Context, c *Client, action, path string, query url.Values) (T, error) {
	var out T
	attempt := 0
	doOnce := func(ctx context.Context) error {
		attempt++
		u := c.baseURL + path
		if len(query) > 0 {
			u += "?" + query.Encode()
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
		if err != nil {
			return err
		}
		c.setHeaders(req)

		resp, err := c.http.Do(req)
		if err != nil {
			log.Debug().Err(err).Str("action", action).Int("attempt", attempt).Msg("request error")
			return err
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			se := newStatusError(resp)
			log.Debug().Int("status", se.StatusCode).Dur("retry_after", se.RetryAfter).
				Str("action", action).Int("attempt", attempt).Msg("non-2xx response")
			return se
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}

	err := retry.Do(ctx, c.ro, isRetryable, func(ctx context.Context) error {
		return waitRetryAfter(ctx, doOnce)
	})
	if err != nil {
		return out, classify(err, action)
	}
	return out, nil
}

// postJSON performs a single POST (no retries: submissions are not
// idempotent) and decodes the 2xx body into T.
func postJSON[T any](ctx context.Context, c *Client, action, path string, body any) (T, error) {
	var out T
	payload, err := json.Marshal(body)
	if err != nil {
		return out, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return out, err
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		log.Debug().Err(err).Str("action", action).Msg("request error")
		return out, classify(err, action)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		se := newStatusError(resp)
		log.Debug().Int("status", se.StatusCode).Str("action", action).Msg("non-2xx response")
		return out, classify(se, action)
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return out, fmt.Errorf("decode response: %w", err)
	}
	return out, nil
}

func (c *Client) setHeaders(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
}
