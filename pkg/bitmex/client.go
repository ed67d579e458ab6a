package bitmex

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"net"
	"net/http"

	"github.com/rs/zerolog"

	"bitmexrest/internal/auth"
	httpClient "bitmexrest/internal/http"
	"bitmexrest/internal/ratelimit"
	"bitmexrest/pkg/core"
)

// Client is a BitMEX REST client. It is safe for concurrent use; all callers
// share one throttle.
type Client struct {
	config     *core.Config
	httpClient *httpClient.Client
	governor   *ratelimit.Governor
	protocol   *Protocol
	clock      ratelimit.Clock
	logger     zerolog.Logger
}

// New creates a Client for config. Credentials are optional; endpoints that
// need them fail with a configuration error before any request is sent.
func New(config *core.Config, opts ...Option) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, core.NewConfigurationError(core.ErrCodeInvalidConfig, "validate config: "+err.Error()).WithCause(err)
	}

	options := &Options{
		Logger: zerolog.Nop(),
		Clock:  ratelimit.SystemClock{},
	}
	for _, opt := range opts {
		opt(options)
	}

	logger := options.Logger
	if config.LogLevel != "" {
		if lvl, err := zerolog.ParseLevel(config.LogLevel); err == nil {
			logger = logger.Level(lvl)
		}
	}
	logger = logger.With().
		Str("exchange", core.ExchangeName).
		Str("network", config.Network.String()).
		Logger()

	hc, err := httpClient.NewClient(&httpClient.Config{
		BaseURL:   config.Endpoint(),
		Timeout:   config.Timeout,
		UserAgent: config.UserAgent,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create http client: %w", err)
	}

	return &Client{
		config:     config,
		httpClient: hc,
		governor: ratelimit.NewGovernor(
			ratelimit.WithClock(options.Clock),
			ratelimit.WithLogger(logger),
		),
		protocol: NewProtocol(),
		clock:    options.Clock,
		logger:   logger,
	}, nil
}

// Name returns the exchange identifier "bitmex".
func (c *Client) Name() string {
	return c.protocol.Name()
}

// Governor returns the throttle shared by all requests of this client.
func (c *Client) Governor() *ratelimit.Governor {
	return c.governor
}

// Close releases the underlying HTTP client.
func (c *Client) Close() error {
	return c.httpClient.Close()
}

// Do sends req and decodes a successful JSON response into result, which may be nil.
// Requests are dispatched one at a time: each waits for the throttle, is signed
// when credentials are configured, and feeds the response's rate-limit headers
// back into the throttle before the next one may leave.
func (c *Client) Do(ctx context.Context, req *core.Request, result any) error {
	verb := req.Verb()
	if req.RequireAuth && !c.config.HasCredentials() {
		return core.NewConfigurationError(core.ErrCodeNoCredentials,
			fmt.Sprintf("%s %s requires API credentials", verb, req.Path)).
			WithCause(core.ErrNoCredentials)
	}

	body, err := req.EncodeBody()
	if err != nil {
		return invalidRequest(err.Error(), err)
	}
	uri := req.URI()

	release, err := c.governor.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("throttle wait: %w", err)
	}
	defer release()

	headers := map[string]string{"Accept": "application/json"}
	if body != nil {
		headers["Content-Type"] = "application/json"
	}
	maps.Copy(headers, req.Headers)
	if c.config.HasCredentials() {
		creds := c.config.Credentials
		expires := auth.Expires(c.clock.Now(), c.config.ExpiresGrace)
		signed := auth.NewHeaders(creds.APIKey, creds.APISecret, verb, auth.SigningPath(uri), expires, body)
		maps.Copy(headers, signed.Map())
	}

	resp, err := c.httpClient.Do(ctx, verb, uri, body, httpClient.WithHeaders(headers))
	if err != nil {
		return transportError(err)
	}

	c.governor.Observe(resp.Header)
	if resp.StatusCode == http.StatusTooManyRequests {
		if d, ok := ratelimit.ParseRetryAfter(resp.Header, c.clock.Now()); ok {
			c.governor.Hold(d)
		}
	}
	release()

	if err := c.protocol.ParseResponse(resp, result); err != nil {
		var exErr *core.ExchangeError
		if errors.As(err, &exErr) {
			c.logger.Warn().
				Int("status", resp.StatusCode).
				Str("reason", http.StatusText(resp.StatusCode)).
				Str("message", exErr.Message).
				Str("method", verb).
				Str("path", req.Path).
				Msg("request failed")
		}
		return err
	}
	return nil
}

func transportError(err error) error {
	if errors.Is(err, core.ErrClientClosed) {
		return core.NewExchangeError(core.ErrorTypeUnknown, 0, err.Error()).
			WithCode(core.ErrCodeClientClosed).
			WithCause(err)
	}

	errType := core.ErrorTypeNetwork
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		errType = core.ErrorTypeTimeout
	}
	return core.NewExchangeError(errType, 0, err.Error()).WithCause(err)
}
