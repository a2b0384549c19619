package backend

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/stephanschabuss97-design/Gesundheits-berwachung-sub000/internal/common"
)

type headerCache struct {
	mu      sync.Mutex
	headers http.Header
	expires time.Time
	loads   int

	// gen is bumped by every invalidation. A load only stores its result
	// when the generation it started under is still current.
	gen uint64
}

// Headers returns the request headers for storage calls. They are cached
// for the header TTL and concurrent misses share a single load.
func (c *Client) Headers(ctx context.Context) (http.Header, error) {
	now := c.clock.Now()

	c.headers.mu.Lock()
	if c.headers.headers != nil && now.Before(c.headers.expires) {
		h := c.headers.headers.Clone()
		c.headers.mu.Unlock()
		return h, nil
	}
	gen := c.headers.gen
	c.headers.mu.Unlock()

	v, err, _ := c.group.Do("headers:"+strconv.FormatUint(gen, 10), func() (any, error) {
		return c.loadHeaders(ctx, gen)
	})
	if err != nil {
		return nil, err
	}
	return v.(http.Header).Clone(), nil
}

func (c *Client) loadHeaders(ctx context.Context, gen uint64) (http.Header, error) {
	sess, err := c.GetSession(ctx)
	if err != nil {
		return nil, err
	}
	token := c.anonKey
	if sess != nil {
		token = sess.AccessToken
	}
	h := http.Header{}
	h.Set(common.APIKeyHeaderName, c.anonKey)
	h.Set(common.AuthorizationHeaderName, "Bearer "+token)

	c.headers.mu.Lock()
	defer c.headers.mu.Unlock()
	c.headers.loads++
	if gen != c.headers.gen {
		return h, nil
	}
	c.headers.headers = h
	c.headers.expires = c.clock.Now().Add(c.headerTTL)
	return h, nil
}

// InvalidateHeaders drops the cached headers. Loads already in flight are
// not cached, and later callers do not join them.
func (c *Client) InvalidateHeaders() {
	c.headers.mu.Lock()
	defer c.headers.mu.Unlock()
	c.headers.headers = nil
	c.headers.gen++
}

// HeaderLoads is the number of header loads so far.
func (c *Client) HeaderLoads() int {
	c.headers.mu.Lock()
	defer c.headers.mu.Unlock()
	return c.headers.loads
}
