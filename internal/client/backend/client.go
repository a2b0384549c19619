package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/singleflight"

	"github.com/stephanschabuss97-design/Gesundheits-berwachung-sub000/internal/client/models"
	"github.com/stephanschabuss97-design/Gesundheits-berwachung-sub000/internal/common"
	"github.com/stephanschabuss97-design/Gesundheits-berwachung-sub000/internal/logging"
	"github.com/stephanschabuss97-design/Gesundheits-berwachung-sub000/internal/timex"
)

const (
	DefaultHeaderTTL = 5 * time.Minute

	retryMaxElapsed = 10 * time.Second
	maxErrorBody    = 4 << 10
)

// SessionStore persists the serialized session between runs.
type SessionStore interface {
	GetConf(ctx context.Context, key string) ([]byte, error)
	PutConf(ctx context.Context, key string, value []byte) error
	DeleteConf(ctx context.Context, key string) error
}

// Client talks to one backend project.
type Client struct {
	baseURL   *url.URL
	anonKey   string
	http      *http.Client
	clock     timex.Clock
	logger    logging.Logger
	headerTTL time.Duration
	store     SessionStore
	onAuthErr func(ctx context.Context, err error)
	// newBackoff returns a fresh policy per call; BackOff values are stateful.
	newBackoff func() backoff.BackOff

	mu      sync.Mutex
	session *models.Session

	lmu       sync.Mutex
	listeners map[uint64]func(models.AuthEvent, *models.Session)
	nextID    uint64

	headers headerCache
	group   singleflight.Group
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option { return func(c *Client) { c.http = h } }

func WithClock(clock timex.Clock) Option { return func(c *Client) { c.clock = clock } }

func WithLogger(l logging.Logger) Option { return func(c *Client) { c.logger = l } }

func WithHeaderTTL(d time.Duration) Option { return func(c *Client) { c.headerTTL = d } }

// WithSessionStore persists the session under the "auth_session" key.
func WithSessionStore(s SessionStore) Option { return func(c *Client) { c.store = s } }

// WithAuthFailureHandler is called when a storage call is still rejected
// after refreshing credentials.
func WithAuthFailureHandler(fn func(ctx context.Context, err error)) Option {
	return func(c *Client) { c.onAuthErr = fn }
}

// WithBackoff overrides the retry policy for transient failures.
func WithBackoff(fn func() backoff.BackOff) Option { return func(c *Client) { c.newBackoff = fn } }

func NewClient(baseURL, anonKey string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse backend url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("backend url %q: scheme and host required", baseURL)
	}

	c := &Client{
		baseURL:   u,
		anonKey:   anonKey,
		http:      &http.Client{Timeout: 15 * time.Second},
		clock:     timex.Real(),
		logger:    logging.Nop(),
		headerTTL: DefaultHeaderTTL,
		newBackoff: func() backoff.BackOff {
			bo := backoff.NewExponentialBackOff()
			bo.MaxElapsedTime = retryMaxElapsed
			return bo
		},
		listeners: make(map[uint64]func(models.AuthEvent, *models.Session)),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("module", "backend")
	return c, nil
}

// BaseURL returns the project URL.
func (c *Client) BaseURL() *url.URL {
	u := *c.baseURL
	return &u
}

func (c *Client) AnonKey() string { return c.anonKey }

type request struct {
	method  string
	path    string
	query   url.Values
	body    any
	headers http.Header
	// retry retries transient failures; off for non-idempotent writes.
	retry bool
}

// send performs one attempt and maps the response status to an error.
func (c *Client) send(ctx context.Context, r request, out any) error {
	u := c.baseURL.JoinPath(r.path)
	if len(r.query) > 0 {
		u.RawQuery = r.query.Encode()
	}

	var body io.Reader
	if r.body != nil {
		b, err := json.Marshal(r.body)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("encode request: %w", err))
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, u.String(), body)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("build request: %w", err))
	}
	for k, vs := range r.headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if req.Header.Get(common.APIKeyHeaderName) == "" {
		req.Header.Set(common.APIKeyHeaderName, c.anonKey)
	}
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		return fmt.Errorf("%w: %v", common.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var eb errorBody
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		if json.Unmarshal(raw, &eb) != nil || eb.text() == "" {
			eb.Message = strings.TrimSpace(string(raw))
		}
		return &HTTPError{StatusCode: resp.StatusCode, Message: eb.text()}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return backoff.Permanent(fmt.Errorf("decode %s: %w", r.path, err))
	}
	return nil
}

// do runs r, retrying transient failures with exponential backoff when
// r.retry is set.
func (c *Client) do(ctx context.Context, r request, out any) error {
	if !r.retry {
		return unwrapPermanent(c.send(ctx, r, out))
	}

	attempt := 0
	op := func() error {
		attempt++
		err := c.send(ctx, r, out)
		var p *backoff.PermanentError
		if err == nil || errors.As(err, &p) || errors.Is(err, common.ErrUnavailable) {
			return err
		}
		return backoff.Permanent(err)
	}
	notify := func(err error, wait time.Duration) {
		c.logger.Debug(ctx, "retrying backend call", "path", r.path, "attempt", attempt, "wait", wait, "error", err)
	}
	return unwrapPermanent(backoff.RetryNotify(op, backoff.WithContext(c.newBackoff(), ctx), notify))
}

func unwrapPermanent(err error) error {
	var p *backoff.PermanentError
	if errors.As(err, &p) {
		return p.Err
	}
	return err
}

// Health checks that the auth API answers.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, request{method: http.MethodGet, path: "/auth/v1/health"}, nil)
}
