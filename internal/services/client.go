package services

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
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/desertthunder/trackx/internal/shared"
)

// Client defaults, applied when [ClientOptions] leaves a field zero.
const (
	DefaultRateLimit   = 2
	DefaultRatePeriod  = time.Second
	DefaultMaxAttempts = 3
	DefaultRetryDelay  = time.Second
	DefaultTimeout     = 60 * time.Second
	DefaultReadTimeout = 20 * time.Second

	logContentLimit = 256
)

var errReadStall = errors.New("response body stalled")

// DecodeMode selects how a response body is exposed on [Response].
type DecodeMode int

const (
	// DecodeJSON keeps a valid JSON body as raw JSON and degrades anything else to text.
	DecodeJSON DecodeMode = iota
	DecodeText
	DecodeBytes
)

// Request describes one logical call. A zero MaxAttempts or RetryDelay uses the client default.
type Request struct {
	Method string
	URL    string
	Query  url.Values
	Header http.Header
	Body   any // marshaled as JSON when non-nil

	Decode DecodeMode
	// Target, when set with DecodeJSON, is filled from the body. A body that does not
	// unmarshal into it is a retryable decode failure.
	Target any
	// Validate accepts or rejects a response. Nil accepts every response.
	Validate func(status int, content []byte) bool

	MaxAttempts int
	RetryDelay  time.Duration
}

// Response is a validated, decoded response.
type Response struct {
	Status   int
	Header   http.Header
	Content  []byte
	Raw      json.RawMessage // set when Decode is DecodeJSON and the body is valid JSON
	Text     string          // set for DecodeText, or DecodeJSON with a non-JSON body
	Attempts int
}

// IsJSON reports whether the body decoded as JSON.
func (r *Response) IsJSON() bool { return r.Raw != nil }

// JSON unmarshals the raw JSON body into v.
func (r *Response) JSON(v any) error {
	if r.Raw == nil {
		return fmt.Errorf("%w: response body is not JSON", shared.ErrDecode)
	}
	if err := json.Unmarshal(r.Raw, v); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrDecode, err)
	}
	return nil
}

// StatusOK is a Validate predicate accepting only HTTP 200.
func StatusOK(status int, _ []byte) bool { return status == http.StatusOK }

// ClientOptions configures a [Client].
type ClientOptions struct {
	RateLimit   int           // requests allowed per RatePeriod
	RatePeriod  time.Duration // window for RateLimit
	MaxAttempts int
	RetryDelay  time.Duration
	Timeout     time.Duration // total bound on one attempt, body included
	ReadTimeout time.Duration // bound on waiting for headers and on each body read
	UserAgent   string

	Logger *log.Logger
	// Transport overrides the pooled transport. The client does not close an injected transport.
	Transport http.RoundTripper
	// TokenSource, when set, authorizes every request with its bearer token.
	TokenSource oauth2.TokenSource
}

// OptionsFromConfig maps the [client] config section onto [ClientOptions].
func OptionsFromConfig(cfg shared.ClientConfig, logger *log.Logger) ClientOptions {
	return ClientOptions{
		RateLimit:   cfg.RateLimit,
		RatePeriod:  cfg.RatePeriod,
		MaxAttempts: cfg.MaxAttempts,
		RetryDelay:  cfg.RetryDelay,
		Timeout:     cfg.Timeout,
		ReadTimeout: cfg.ReadTimeout,
		UserAgent:   cfg.UserAgent,
		Logger:      logger,
	}
}

func (o ClientOptions) withDefaults() ClientOptions {
	if o.RateLimit <= 0 {
		o.RateLimit = DefaultRateLimit
	}
	if o.RatePeriod <= 0 {
		o.RatePeriod = DefaultRatePeriod
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultMaxAttempts
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = DefaultRetryDelay
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = DefaultReadTimeout
	}
	if o.Logger == nil {
		o.Logger = log.New(io.Discard)
	}
	return o
}

// Client is a throttled, retrying HTTP client.
//
// Every attempt, retries included, waits on a limiter shared by all calls made
// through the same client, so at most RateLimit attempts start in any RatePeriod.
// A Client is safe for concurrent use.
type Client struct {
	opts      ClientOptions
	http      *http.Client
	transport *http.Transport // nil when injected
	limiter   *rate.Limiter
	logger    *log.Logger
	closed    atomic.Bool
}

// NewClient opens a session: one connection pool and one limiter.
func NewClient(opts ClientOptions) *Client {
	opts = opts.withDefaults()

	c := &Client{
		opts:    opts,
		limiter: rate.NewLimiter(rate.Every(opts.RatePeriod/time.Duration(opts.RateLimit)), 1),
		logger:  opts.Logger,
	}

	rt := opts.Transport
	if rt == nil {
		c.transport = &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           (&net.Dialer{Timeout: opts.ReadTimeout, KeepAlive: 30 * time.Second}).DialContext,
			ForceAttemptHTTP2:     true,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   opts.RateLimit * 2,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   opts.ReadTimeout,
			ResponseHeaderTimeout: opts.ReadTimeout,
		}
		rt = c.transport
	}
	if opts.TokenSource != nil {
		rt = &oauth2.Transport{Source: opts.TokenSource, Base: rt}
	}

	c.http = &http.Client{Transport: rt, Timeout: opts.Timeout}
	return c
}

// Close releases the connection pool. Later calls fail with [shared.ErrClientClosed].
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	if c.transport != nil {
		c.transport.CloseIdleConnections()
	}
	return nil
}

// WithClient opens a client, runs fn, and closes the client on every exit path.
func WithClient(opts ClientOptions, fn func(*Client) error) error {
	c := NewClient(opts)
	defer c.Close()
	return fn(c)
}

// attempt is the per-call retry state.
type attempt struct {
	method    string
	url       string
	remaining int
	delay     time.Duration
	number    int
}

// Execute sends req, retrying transport, validation and decode failures with a fixed delay.
//
// Exhaustion returns a *[shared.RequestError] carrying the last failure. Cancelling ctx
// stops further attempts.
func (c *Client) Execute(ctx context.Context, req Request) (*Response, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	target, err := buildURL(req.URL, req.Query)
	if err != nil {
		return nil, &shared.RequestError{Kind: shared.ErrTransport, Method: method, URL: req.URL, Err: err}
	}

	if c.closed.Load() {
		return nil, &shared.RequestError{Kind: shared.ErrClientClosed, Method: method, URL: target}
	}

	var body []byte
	if req.Body != nil {
		if body, err = json.Marshal(req.Body); err != nil {
			return nil, &shared.RequestError{Kind: shared.ErrTransport, Method: method, URL: target, Err: fmt.Errorf("failed to encode body: %w", err)}
		}
	}

	st := attempt{method: method, url: target, remaining: req.MaxAttempts, delay: req.RetryDelay}
	if st.remaining <= 0 {
		st.remaining = c.opts.MaxAttempts
	}
	if st.delay <= 0 {
		st.delay = c.opts.RetryDelay
	}

	var (
		lastKind   error
		lastErr    error
		lastStatus int
		made       int
	)

	for st.remaining > 0 {
		st.remaining--
		st.number++

		if st.number > 1 {
			if err := sleep(ctx, st.delay); err != nil {
				lastKind, lastErr = shared.ErrTransport, err
				break
			}
		}

		if c.closed.Load() {
			lastKind, lastErr = shared.ErrClientClosed, nil
			break
		}

		if err := c.limiter.Wait(ctx); err != nil {
			lastKind, lastErr = shared.ErrTransport, err
			break
		}

		resp, fail := c.do(ctx, req, st, body)
		made++
		if fail == nil {
			resp.Attempts = st.number
			return resp, nil
		}

		lastKind, lastErr = fail.kind, fail.err
		var content []byte
		if resp != nil {
			lastStatus = resp.Status
			content = resp.Content
		}
		c.logFailure(st, lastStatus, content, fail.err)

		if ctx.Err() != nil {
			break
		}
	}

	return nil, &shared.RequestError{
		Kind:     lastKind,
		Method:   method,
		URL:      target,
		Status:   lastStatus,
		Attempts: made,
		Err:      lastErr,
	}
}

// failure classifies one failed attempt.
type failure struct {
	kind error
	err  error
}

func fail(kind, err error) *failure { return &failure{kind: kind, err: err} }

// do performs one attempt. A non-nil response is returned alongside validation and decode
// failures so the status and content can be logged.
func (c *Client) do(ctx context.Context, req Request, st attempt, body []byte) (*Response, *failure) {
	attemptCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	httpReq, err := http.NewRequestWithContext(attemptCtx, st.method, st.url, reader)
	if err != nil {
		return nil, fail(shared.ErrTransport, fmt.Errorf("failed to create request: %w", err))
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	if body != nil && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if c.opts.UserAgent != "" && httpReq.Header.Get("User-Agent") == "" {
		httpReq.Header.Set("User-Agent", c.opts.UserAgent)
	}

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fail(transportKind(err), err)
	}
	defer httpResp.Body.Close()

	content, err := readBody(httpResp.Body, c.opts.ReadTimeout, cancel)
	if err != nil {
		if errors.Is(context.Cause(attemptCtx), errReadStall) {
			return nil, fail(shared.ErrTimeout, fmt.Errorf("%w after %s", errReadStall, c.opts.ReadTimeout))
		}
		return nil, fail(transportKind(err), fmt.Errorf("failed to read response: %w", err))
	}

	resp := &Response{Status: httpResp.StatusCode, Header: httpResp.Header, Content: content}
	switch req.Decode {
	case DecodeJSON:
		if json.Valid(content) {
			resp.Raw = json.RawMessage(content)
		} else {
			resp.Text = string(content)
		}
	case DecodeText:
		resp.Text = string(content)
	}

	if req.Validate != nil && !req.Validate(resp.Status, content) {
		return resp, fail(shared.ErrValidation, fmt.Errorf("response rejected with status %d", resp.Status))
	}

	if req.Decode == DecodeJSON && req.Target != nil {
		if err := resp.JSON(req.Target); err != nil {
			return resp, fail(shared.ErrDecode, err)
		}
	}

	return resp, nil
}

func (c *Client) logFailure(st attempt, status int, content []byte, err error) {
	c.logger.Warn("request attempt failed",
		"method", st.method,
		"url", st.url,
		"attempt", st.number,
		"remaining", st.remaining,
		"status", status,
		"content", shared.Truncate(string(content), logContentLimit),
		"error", err,
	)
	c.logger.Debug("request failure stack", "url", st.url, "stack", string(debug.Stack()))
}

// stallReader cancels the attempt when no read completes within d.
type stallReader struct {
	r     io.Reader
	timer *time.Timer
	d     time.Duration
}

func (s *stallReader) Read(p []byte) (int, error) {
	s.timer.Reset(s.d)
	return s.r.Read(p)
}

func readBody(r io.Reader, d time.Duration, cancel context.CancelCauseFunc) ([]byte, error) {
	timer := time.AfterFunc(d, func() { cancel(errReadStall) })
	defer timer.Stop()
	return io.ReadAll(&stallReader{r: r, timer: timer, d: d})
}

func transportKind(err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return shared.ErrTimeout
	}
	return shared.ErrTransport
}

func buildURL(raw string, query url.Values) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", raw, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("invalid url %q: scheme and host are required", raw)
	}
	if len(query) > 0 {
		q := u.Query()
		for k, vs := range query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

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
