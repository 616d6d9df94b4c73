package generichttp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/cenkalti/backoff"
	"golang.org/x/time/rate"
)

// HTTPError is a non-2xx reply from a remote node
type HTTPError struct {
	Code int
	Msg  string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("remote replied %d %s: %s", e.Code, http.StatusText(e.Code), e.Msg)
}

// StatusCode satisfies StatusCoder, so a remote 4xx is relayed to our own
// client unchanged
func (e *HTTPError) StatusCode() int { return e.Code }

// Client talks JSON to other nodes.  Requests are paced by a rate limiter.
// Do retries with exponential backoff on transport errors and 5xx replies;
// Send is for requests that must not be applied twice and only retries when
// the remote could not be dialed
type Client struct {
	// Timeout bounds each call, including retries
	Timeout time.Duration

	// HTTP is the client used for requests
	HTTP *http.Client

	limiter *rate.Limiter
}

// NewClient returns a client sending at most maxRate requests per second.
// maxRate <= 0 is unlimited
func NewClient(maxRate float64) *Client {
	lim := rate.Inf
	if maxRate > 0 {
		lim = rate.Limit(maxRate)
	}
	return &Client{
		Timeout: 5 * time.Second,
		HTTP:    &http.Client{Timeout: 2 * time.Second},
		limiter: rate.NewLimiter(lim, 1),
	}
}

// Do sends in, if not nil, as the JSON body of a request and decodes the
// reply into out, if not nil.  The request may reach the remote more than once
func (c *Client) Do(method, url string, in, out interface{}) error {
	return c.do(method, url, in, out, true)
}

// Send is Do for a request that is not idempotent, such as a relative move.
// Once the connection is up the request is never repeated
func (c *Client) Send(method, url string, in, out interface{}) error {
	return c.do(method, url, in, out, false)
}

// dialError is true if err happened before any byte reached the remote
func dialError(err error) bool {
	var oe *net.OpError
	return errors.As(err, &oe) && oe.Op == "dial"
}

func (c *Client) do(method, url string, in, out interface{}, idempotent bool) error {
	ctx, cancel := context.WithTimeout(context.Background(), c.Timeout)
	defer cancel()
	var body []byte
	if in != nil {
		var err error
		if body, err = json.Marshal(in); err != nil {
			return err
		}
	}
	op := func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		if in != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		resp, err := c.HTTP.Do(req)
		if err != nil {
			if ctx.Err() != nil || !(idempotent || dialError(err)) {
				return backoff.Permanent(err)
			}
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 300 {
			msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			herr := &HTTPError{Code: resp.StatusCode, Msg: string(bytes.TrimSpace(msg))}
			if resp.StatusCode >= 500 && idempotent {
				return herr
			}
			return backoff.Permanent(herr)
		}
		if out == nil {
			return nil
		}
		if err = json.NewDecoder(resp.Body).Decode(out); err != nil {
			return backoff.Permanent(err)
		}
		return nil
	}
	// the remote nodes do not like being connection thrashed
	return backoff.Retry(op, backoff.WithContext(&backoff.ExponentialBackOff{
		InitialInterval:     25 * time.Millisecond,
		RandomizationFactor: 0.,
		Multiplier:          2.,
		MaxInterval:         1 * time.Second,
		MaxElapsedTime:      c.Timeout,
		Clock:               backoff.SystemClock}, ctx))
}
