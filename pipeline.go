package goAuthClient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/MrEthical07/goAuthClient/refresh"
	"github.com/MrEthical07/goAuthClient/session"
	"github.com/MrEthical07/goAuthClient/token"
)

// NewRequest builds a request for [Client.Do], resolving path against the
// configured base URL. Bodies supplied as *bytes.Buffer, *bytes.Reader, or
// *strings.Reader are replayable, which the pipeline needs for its single
// authorization retry; other body types forfeit the retry.
func (c *Client) NewRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	if c == nil || c.store == nil {
		return nil, ErrClientNotReady
	}
	if len(path) > 0 && path[0] != '/' {
		path = "/" + path
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	c.decorate(ctx, req)

	return req, nil
}

// Do sends an authenticated request. The current credential is attached as a
// bearer header, refreshing it first when the local validity check fails. If
// the server still rejects the request as unauthorized, one refresh and one
// redispatch are attempted; a second rejection tears the session down and
// surfaces [ErrAuth]. Network failures surface as [ErrTransport] untouched by
// any retry logic.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if c == nil || c.store == nil {
		return nil, ErrClientNotReady
	}
	ctx := req.Context()

	credential, err := c.credentialFor(ctx)
	if err != nil {
		return nil, c.failAuth(ctx, err)
	}

	resp, err := c.dispatch(req, credential, false)
	if err != nil {
		return nil, err
	}
	if !authRejected(resp.StatusCode) {
		return resp, nil
	}

	// Server-side invalidation despite local validity (clock skew, revocation).
	// One refresh, one redispatch, never a third.
	drain(resp)
	c.log.Debug().
		Str("request_id", req.Header.Get("X-Request-ID")).
		Int("status", resp.StatusCode).
		Msg("authorization rejected, refreshing once")

	credential, err = c.coordinator.Do(ctx)
	if err != nil {
		return nil, c.failAuth(ctx, err)
	}

	c.metrics.Inc(MetricRequestRetried)
	resp, err = c.dispatch(req, credential, true)
	if err != nil {
		return nil, err
	}
	if authRejected(resp.StatusCode) {
		drain(resp)
		return nil, c.failAuth(ctx, fmt.Errorf("status %d after refresh", resp.StatusCode))
	}

	return resp, nil
}

// credentialFor returns a credential that passed the local validity check,
// running a refresh cycle first when it did not.
func (c *Client) credentialFor(ctx context.Context) (string, error) {
	sess, err := c.store.Get(ctx)
	if err == nil && token.Valid(sess, time.Now(), c.config.Token.ValidityMargin) {
		return sess.Credential, nil
	}
	if err != nil && errors.Is(err, session.ErrRedisUnavailable) {
		return "", err
	}
	if err != nil && errors.Is(err, session.ErrCorrupt) {
		c.metrics.Inc(MetricSessionCorrupt)
	}

	return c.coordinator.Do(ctx)
}

// dispatch sends req with the credential attached. The retry dispatch clones
// the request and replays the body through GetBody.
func (c *Client) dispatch(req *http.Request, credential string, retry bool) (*http.Response, error) {
	send := req
	if retry {
		send = req.Clone(req.Context())
		if req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, fmt.Errorf("%w: replay request body: %v", ErrTransport, err)
			}
			send.Body = body
		} else if req.Body != nil {
			// Non-replayable body: the one allowed retry cannot be taken.
			return nil, c.failAuth(req.Context(), errors.New("unauthorized and request body not replayable"))
		}
	}
	send.Header.Set("Authorization", "Bearer "+credential)

	resp, err := c.http.Do(send)
	if err != nil {
		c.metrics.Inc(MetricTransportFailure)
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	return resp, nil
}

// failAuth converts an unrecoverable authentication failure into a session
// teardown plus a surfaced [ErrAuth]. Store unavailability, throttling and
// context cancellation pass through untouched: none of them is an
// authentication verdict on the stored session.
func (c *Client) failAuth(ctx context.Context, cause error) error {
	switch {
	case errors.Is(cause, session.ErrRedisUnavailable),
		errors.Is(cause, refresh.ErrThrottled),
		errors.Is(cause, context.Canceled),
		errors.Is(cause, context.DeadlineExceeded):
		return cause
	}

	c.metrics.Inc(MetricAuthFailure)
	c.teardown(ctx, cause)
	return fmt.Errorf("%w: %v", ErrAuth, cause)
}

func authRejected(status int) bool {
	return status == http.StatusUnauthorized || status == http.StatusForbidden
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	_ = resp.Body.Close()
}
