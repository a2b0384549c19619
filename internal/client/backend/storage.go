package backend

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/stephanschabuss97-design/Gesundheits-berwachung-sub000/internal/common"
	"github.com/stephanschabuss97-design/Gesundheits-berwachung-sub000/internal/logging"
)

// Select reads rows of table filtered by query (PostgREST syntax, e.g.
// "day=gte.2026-01-01") into out.
func (c *Client) Select(ctx context.Context, table string, query url.Values, out any) error {
	return c.authorized(ctx, request{
		method: http.MethodGet,
		path:   "/rest/v1/" + url.PathEscape(table),
		query:  query,
		retry:  true,
	}, out)
}

// Insert writes row into table and decodes the stored representation into
// out when out is not nil. Inserts are not retried on transient failures.
func (c *Client) Insert(ctx context.Context, table string, row any, out any) error {
	h := http.Header{}
	if out != nil {
		h.Set("Prefer", "return=representation")
	} else {
		h.Set("Prefer", "return=minimal")
	}
	return c.authorized(ctx, request{
		method:  http.MethodPost,
		path:    "/rest/v1/" + url.PathEscape(table),
		body:    row,
		headers: h,
	}, out)
}

// RPC calls a stored procedure.
func (c *Client) RPC(ctx context.Context, fn string, args any, out any) error {
	if args == nil {
		args = map[string]any{}
	}
	return c.authorized(ctx, request{
		method: http.MethodPost,
		path:   "/rest/v1/rpc/" + url.PathEscape(fn),
		body:   args,
		retry:  true,
	}, out)
}

// authorized runs r with the cached headers. A 401/403 invalidates them,
// refreshes the session and retries once; a second rejection goes to the
// auth failure handler.
func (c *Client) authorized(ctx context.Context, r request, out any) error {
	err := c.withHeaders(ctx, r, out)
	if !errors.Is(err, common.ErrUnauthorized) {
		return err
	}

	c.logger.Info(ctx, "storage call rejected, refreshing credentials", "path", r.path)
	c.InvalidateHeaders()
	if _, rerr := c.RefreshSession(ctx); rerr != nil {
		c.logger.Warn(ctx, "credential refresh failed", "error", rerr)
	}

	err = c.withHeaders(ctx, r, out)
	if errors.Is(err, common.ErrUnauthorized) && c.onAuthErr != nil {
		logging.Guard(ctx, c.logger, "auth failure handler", func() { c.onAuthErr(ctx, err) })
	}
	return err
}

func (c *Client) withHeaders(ctx context.Context, r request, out any) error {
	h, err := c.Headers(ctx)
	if err != nil {
		return err
	}
	for k, vs := range r.headers {
		h[k] = vs
	}
	r.headers = h
	return c.do(ctx, r, out)
}
