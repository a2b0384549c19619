package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/stephanschabuss97-design/Gesundheits-berwachung-sub000/internal/client/models"
	"github.com/stephanschabuss97-design/Gesundheits-berwachung-sub000/internal/common"
	"github.com/stephanschabuss97-design/Gesundheits-berwachung-sub000/internal/logging"
)

const sessionKey = "auth_session"

// SignInWithPassword logs in and emits SIGNED_IN.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*models.Session, error) {
	var tr tokenResponse
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/v1/token",
		query:  url.Values{"grant_type": {"password"}},
		body:   map[string]string{"email": email, "password": password},
	}, &tr)
	if err != nil {
		var he *HTTPError
		if errors.As(err, &he) && (he.StatusCode == http.StatusBadRequest || he.StatusCode == http.StatusUnauthorized) {
			return nil, fmt.Errorf("%w: %s", ErrInvalidCredentials, he.Message)
		}
		return nil, err
	}

	sess, err := tr.session(c.clock.Now())
	if err != nil {
		return nil, err
	}
	c.setSession(ctx, sess)
	c.logger.Info(ctx, "signed in", "user", sess.User.ID)
	c.emit(ctx, models.EventSignedIn, sess)
	return copySession(sess), nil
}

// SignOut revokes the session remotely (best effort), drops it locally and
// emits SIGNED_OUT.
func (c *Client) SignOut(ctx context.Context) error {
	sess := c.current()
	if sess == nil {
		return nil
	}

	err := c.do(ctx, request{
		method:  http.MethodPost,
		path:    "/auth/v1/logout",
		headers: c.bearer(sess.AccessToken),
	}, nil)
	if err != nil {
		c.logger.Warn(ctx, "remote logout failed", "error", err)
	}

	c.setSession(ctx, nil)
	c.emit(ctx, models.EventSignedOut, nil)
	return nil
}

// ForgetSession drops the local session after the backend kept rejecting
// it. Unlike SignOut it makes no remote call and emits no auth event.
func (c *Client) ForgetSession(ctx context.Context) {
	if c.current() == nil {
		return
	}
	c.logger.Warn(ctx, "dropping rejected session")
	c.setSession(ctx, nil)
}

// Restore loads the persisted session, refreshing it when expired, and
// emits INITIAL_SESSION with the result.
func (c *Client) Restore(ctx context.Context) (*models.Session, error) {
	sess, err := c.loadSession(ctx)
	if err != nil {
		c.logger.Warn(ctx, "persisted session unreadable", "error", err)
	}
	if sess != nil {
		c.mu.Lock()
		c.session = sess
		c.mu.Unlock()
	}

	current, err := c.GetSession(ctx)
	if err != nil {
		// Keep the stored session for the next attempt; report it as-is.
		current = copySession(c.current())
	}
	c.emit(ctx, models.EventInitialSession, current)
	return current, err
}

// GetSession returns the current session, refreshing it first when the
// access token has expired. No session is (nil, nil).
func (c *Client) GetSession(ctx context.Context) (*models.Session, error) {
	sess := c.current()
	if sess == nil {
		return nil, nil
	}
	if !sess.Expired(c.clock.Now()) {
		return copySession(sess), nil
	}

	refreshed, err := c.RefreshSession(ctx)
	if errors.Is(err, common.ErrUnauthorized) || errors.Is(err, common.ErrRefreshTokenMissing) {
		return nil, nil
	}
	return refreshed, err
}

// GetUser asks the auth API who the current token belongs to.
func (c *Client) GetUser(ctx context.Context) (*models.User, error) {
	sess, err := c.GetSession(ctx)
	if err != nil || sess == nil {
		return nil, err
	}

	var u models.User
	err = c.do(ctx, request{
		method:  http.MethodGet,
		path:    "/auth/v1/user",
		headers: c.bearer(sess.AccessToken),
		retry:   true,
	}, &u)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// RefreshSession exchanges the refresh token. Concurrent calls share one
// request. A rejected refresh token ends the session with SIGNED_OUT and
// returns an error matching common.ErrUnauthorized.
func (c *Client) RefreshSession(ctx context.Context) (*models.Session, error) {
	v, err, _ := c.group.Do("refresh", func() (any, error) {
		return c.refresh(ctx)
	})
	if err != nil {
		return nil, err
	}
	return copySession(v.(*models.Session)), nil
}

func (c *Client) refresh(ctx context.Context) (*models.Session, error) {
	cur := c.current()
	if cur == nil || cur.RefreshToken == "" {
		return nil, common.ErrRefreshTokenMissing
	}

	var tr tokenResponse
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/v1/token",
		query:  url.Values{"grant_type": {"refresh_token"}},
		body:   map[string]string{"refresh_token": cur.RefreshToken},
		retry:  true,
	}, &tr)
	if err != nil {
		var he *HTTPError
		if errors.As(err, &he) && he.StatusCode < 500 {
			c.logger.Warn(ctx, "refresh token rejected, signing out", "status", he.StatusCode)
			c.setSession(ctx, nil)
			c.emit(ctx, models.EventSignedOut, nil)
			return nil, fmt.Errorf("%w: refresh rejected", common.ErrUnauthorized)
		}
		return nil, err
	}

	sess, err := tr.session(c.clock.Now())
	if err != nil {
		return nil, err
	}
	c.setSession(ctx, sess)
	c.emit(ctx, models.EventTokenRefreshed, sess)
	return sess, nil
}

// OnAuthStateChange registers fn for auth events. Events are delivered
// synchronously on the goroutine that caused them.
func (c *Client) OnAuthStateChange(fn func(event models.AuthEvent, sess *models.Session)) (unsubscribe func()) {
	c.lmu.Lock()
	defer c.lmu.Unlock()
	c.nextID++
	id := c.nextID
	c.listeners[id] = fn
	return func() {
		c.lmu.Lock()
		defer c.lmu.Unlock()
		delete(c.listeners, id)
	}
}

// AccessToken returns the bearer token for realtime joins: the session
// token, or the anon key when logged out.
func (c *Client) AccessToken(ctx context.Context) (string, error) {
	sess, err := c.GetSession(ctx)
	if err != nil {
		return "", err
	}
	if sess == nil {
		return c.anonKey, nil
	}
	return sess.AccessToken, nil
}

func (c *Client) emit(ctx context.Context, event models.AuthEvent, sess *models.Session) {
	c.lmu.Lock()
	fns := make([]func(models.AuthEvent, *models.Session), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.lmu.Unlock()

	for _, fn := range fns {
		logging.Guard(ctx, c.logger, "auth listener", func() { fn(event, copySession(sess)) })
	}
}

func (c *Client) current() *models.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// setSession replaces the session, persists it and drops cached headers.
func (c *Client) setSession(ctx context.Context, sess *models.Session) {
	c.mu.Lock()
	c.session = sess
	c.mu.Unlock()
	c.InvalidateHeaders()

	if c.store == nil {
		return
	}
	if sess == nil {
		if err := c.store.DeleteConf(ctx, sessionKey); err != nil {
			c.logger.Warn(ctx, "failed to forget session", "error", err)
		}
		return
	}
	b, err := json.Marshal(sess)
	if err == nil {
		err = c.store.PutConf(ctx, sessionKey, b)
	}
	if err != nil {
		c.logger.Warn(ctx, "failed to persist session", "error", err)
	}
}

func (c *Client) loadSession(ctx context.Context) (*models.Session, error) {
	if c.store == nil {
		return nil, nil
	}
	b, err := c.store.GetConf(ctx, sessionKey)
	if err != nil || len(b) == 0 {
		return nil, err
	}
	var sess models.Session
	if err := json.Unmarshal(b, &sess); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	if sess.AccessToken == "" {
		return nil, nil
	}
	return &sess, nil
}

func (c *Client) bearer(token string) http.Header {
	h := http.Header{}
	h.Set(common.APIKeyHeaderName, c.anonKey)
	h.Set(common.AuthorizationHeaderName, "Bearer "+token)
	return h
}

func copySession(s *models.Session) *models.Session {
	if s == nil {
		return nil
	}
	cp := *s
	return &cp
}
