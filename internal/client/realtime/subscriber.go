package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"

	"github.com/stephanschabuss97-design/Gesundheits-berwachung-sub000/internal/logging"
)

const (
	DefaultHeartbeat = 25 * time.Second
	writeTimeout     = 10 * time.Second
)

// TokenSource supplies the bearer token sent with each channel join.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

// Subscriber holds one websocket connection joined to a channel per table.
type Subscriber struct {
	wsURL     string
	tokens    TokenSource
	tables    []string
	onChange  func(table string)
	logger    logging.Logger
	heartbeat time.Duration
	dialer    *websocket.Dialer
	// newBackoff returns a fresh reconnect policy per Setup.
	newBackoff func() backoff.BackOff

	mu       sync.Mutex
	cancel   context.CancelFunc
	done     chan struct{}
	joined   map[string]bool
	connects int
}

type Option func(*Subscriber)

func WithLogger(l logging.Logger) Option { return func(s *Subscriber) { s.logger = l } }

func WithHeartbeat(d time.Duration) Option { return func(s *Subscriber) { s.heartbeat = d } }

func WithDialer(d *websocket.Dialer) Option { return func(s *Subscriber) { s.dialer = d } }

func WithBackoff(fn func() backoff.BackOff) Option { return func(s *Subscriber) { s.newBackoff = fn } }

// NewSubscriber returns a subscriber for the project at baseURL (http or
// https). onChange is called from the read loop; it must not block.
func NewSubscriber(baseURL, anonKey string, tokens TokenSource, tables []string, onChange func(table string), opts ...Option) (*Subscriber, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("realtime: parse url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	}
	u = u.JoinPath("/realtime/v1/websocket")
	q := u.Query()
	q.Set("apikey", anonKey)
	q.Set("vsn", "1.0.0")
	u.RawQuery = q.Encode()

	s := &Subscriber{
		wsURL:     u.String(),
		tokens:    tokens,
		tables:    append([]string(nil), tables...),
		onChange:  onChange,
		logger:    logging.Nop(),
		heartbeat: DefaultHeartbeat,
		dialer:    websocket.DefaultDialer,
		newBackoff: func() backoff.BackOff {
			bo := backoff.NewExponentialBackOff()
			bo.InitialInterval = time.Second
			bo.MaxInterval = 30 * time.Second
			bo.MaxElapsedTime = 0
			return bo
		},
		joined: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("module", "realtime")
	return s, nil
}

// Setup (re)starts the subscription. It returns once the connection loop is
// running; connection errors are retried in the background.
func (s *Subscriber) Setup(ctx context.Context) error {
	if err := s.Teardown(ctx); err != nil {
		return err
	}
	if len(s.tables) == 0 {
		return nil
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})

	s.mu.Lock()
	s.cancel = cancel
	s.done = done
	s.mu.Unlock()

	go func() {
		defer close(done)
		s.run(runCtx)
	}()
	return nil
}

// Teardown stops the subscription and waits for the connection to close.
func (s *Subscriber) Teardown(ctx context.Context) error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Joined reports whether the channel for table has been acknowledged on
// the current connection.
func (s *Subscriber) Joined(table string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.joined[table]
}

// Connects is the number of successful dials.
func (s *Subscriber) Connects() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connects
}

func (s *Subscriber) run(ctx context.Context) {
	bo := s.newBackoff()
	for {
		err := s.connect(ctx, bo)
		if ctx.Err() != nil {
			return
		}
		wait := bo.NextBackOff()
		if wait == backoff.Stop {
			s.logger.Error(ctx, "realtime gave up reconnecting", "error", err)
			return
		}
		s.logger.Warn(ctx, "realtime connection lost", "error", err, "retry_in", wait)

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

// conn serializes writes; gorilla connections allow one concurrent writer.
type conn struct {
	mu sync.Mutex
	ws *websocket.Conn
}

func (c *conn) send(m message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.ws.WriteJSON(m)
}

func (s *Subscriber) connect(ctx context.Context, bo backoff.BackOff) error {
	token := ""
	if s.tokens != nil {
		t, err := s.tokens.AccessToken(ctx)
		if err != nil {
			return fmt.Errorf("realtime: access token: %w", err)
		}
		token = t
	}

	ws, _, err := s.dialer.DialContext(ctx, s.wsURL, nil)
	if err != nil {
		return fmt.Errorf("realtime: dial: %w", err)
	}
	c := &conn{ws: ws}

	s.mu.Lock()
	s.connects++
	s.joined = make(map[string]bool)
	s.mu.Unlock()

	connCtx, stop := context.WithCancel(ctx)
	defer stop()
	go func() {
		<-connCtx.Done()
		if ctx.Err() != nil {
			for _, t := range s.tables {
				_ = c.send(leaveMessage(t))
			}
		}
		_ = ws.Close()
	}()

	refs := make(map[string]string, len(s.tables))
	for _, t := range s.tables {
		m := joinMessage(t, token)
		refs[m.Ref] = t
		if err := c.send(m); err != nil {
			return fmt.Errorf("realtime: join %s: %w", t, err)
		}
	}
	go s.heartbeats(connCtx, c)

	for {
		var m message
		if err := ws.ReadJSON(&m); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("realtime: read: %w", err)
		}
		s.handle(ctx, m, refs, bo)
	}
}

func (s *Subscriber) heartbeats(ctx context.Context, c *conn) {
	t := time.NewTicker(s.heartbeat)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := c.send(heartbeatMessage()); err != nil {
				s.logger.Debug(ctx, "heartbeat failed", "error", err)
				return
			}
		}
	}
}

func (s *Subscriber) handle(ctx context.Context, m message, refs map[string]string, bo backoff.BackOff) {
	switch m.Event {
	case eventReply:
		table, ok := refs[m.Ref]
		if !ok {
			return
		}
		var p replyPayload
		if json.Unmarshal(m.Payload, &p) != nil || p.Status != "ok" {
			s.logger.Warn(ctx, "channel join refused", "table", table, "payload", string(m.Payload))
			return
		}
		s.mu.Lock()
		s.joined[table] = true
		s.mu.Unlock()
		bo.Reset()
		s.logger.Debug(ctx, "channel joined", "table", table)

	case eventChanges, "INSERT", "UPDATE", "DELETE":
		table := tableOf(m.Topic)
		var p changePayload
		if json.Unmarshal(m.Payload, &p) == nil && p.Data.Table != "" {
			table = p.Data.Table
		}
		if s.onChange != nil {
			logging.Guard(ctx, s.logger, "realtime change", func() { s.onChange(table) })
		}
	}
}
