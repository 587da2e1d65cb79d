// Package identity is the HTTP client of the remote identity gate.
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"banking-services/config"
	"banking-services/internal/core/domain"
	"banking-services/internal/core/ports"
	"banking-services/pkg/requestctx"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultBreakerFailures = 5
	maxBodyBytes           = 64 << 10
)

// HTTPClient is satisfied by *http.Client.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// AuthenticateResponse is the gate's JSON body for GET /authenticate/{customer_id}.
type AuthenticateResponse struct {
	CustomerID    string `json:"customer_id"`
	Authenticated *bool  `json:"authenticated"`
}

// Client implements ports.IdentityGate over HTTP.
//
// Only transport failures, timeouts, 429 and 5xx count as unreachable. Those
// are retried with exponential backoff inside the call timeout and feed the
// circuit breaker. A 404 is a rejection and is never retried.
type Client struct {
	baseURL    string
	timeout    time.Duration
	maxRetries uint

	httpClient HTTPClient
	tokens     ports.TokenService
	subject    string
	newBackOff func() backoff.BackOff
	breaker    *gobreaker.CircuitBreaker
	propagator propagation.TextMapPropagator
	tp         trace.TracerProvider
	tracer     trace.Tracer
	log        zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithServiceToken signs every call with a bearer token issued for subject.
func WithServiceToken(tokens ports.TokenService, subject string) Option {
	return func(c *Client) {
		c.tokens = tokens
		c.subject = subject
	}
}

// WithPropagator sets the propagator the transport uses to inject trace context.
func WithPropagator(p propagation.TextMapPropagator) Option {
	return func(c *Client) { c.propagator = p }
}

// WithTracerProvider sets the provider for the call span and the outbound HTTP span.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Client) { c.tp = tp }
}

// WithBackOff sets the retry schedule factory.
func WithBackOff(fn func() backoff.BackOff) Option {
	return func(c *Client) { c.newBackOff = fn }
}

// NewClient creates an identity gate client.
func NewClient(cfg config.IdentityConfig, log zerolog.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		timeout:    cfg.Timeout,
		maxRetries: cfg.MaxRetries,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 50 * time.Millisecond
			b.MaxInterval = 500 * time.Millisecond
			return b
		},
		propagator: otel.GetTextMapPropagator(),
		tp:         otel.GetTracerProvider(),
		log:        log.With().Str("component", "identity_client").Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.tracer = c.tp.Tracer("banking-services/identity")
	c.httpClient = &http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport,
			otelhttp.WithTracerProvider(c.tp),
			otelhttp.WithPropagators(c.propagator),
		),
	}

	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = defaultBreakerFailures
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "identity-gate",
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
				Msg("identity gate circuit breaker state changed")
		},
	})
	return c
}

type gateAnswer struct {
	outcome domain.AuthOutcome
	err     error
}

// Authenticate asks the gate whether customerID is recognized.
func (c *Client) Authenticate(ctx context.Context, customerID string) (domain.AuthOutcome, error) {
	ctx, span := c.tracer.Start(ctx, "identity.Authenticate",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("customer.id", customerID)),
	)
	defer span.End()

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	// Malformed answers pass through the breaker as successes: the gate is up.
	res, err := c.breaker.Execute(func() (interface{}, error) {
		outcome, err := c.authenticateWithRetry(ctx, customerID)
		if errors.Is(err, domain.ErrIdentityUnreachable) {
			return nil, err
		}
		return gateAnswer{outcome: outcome, err: err}, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			err = fmt.Errorf("%w: %w", domain.ErrIdentityUnreachable, err)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "identity gate unreachable")
		return "", err
	}

	answer := res.(gateAnswer)
	if answer.err != nil {
		span.RecordError(answer.err)
		span.SetStatus(codes.Error, "identity gate malformed response")
		return "", answer.err
	}
	span.SetAttributes(attribute.String("auth.outcome", string(answer.outcome)))
	return answer.outcome, nil
}

func (c *Client) authenticateWithRetry(ctx context.Context, customerID string) (domain.AuthOutcome, error) {
	attempt := 0
	op := func() (domain.AuthOutcome, error) {
		attempt++
		outcome, err := c.call(ctx, customerID)
		if err == nil {
			return outcome, nil
		}
		if errors.Is(err, domain.ErrIdentityUnreachable) {
			c.log.Debug().Err(err).Int("attempt", attempt).Msg("identity gate call failed")
			return "", err
		}
		return "", backoff.Permanent(err)
	}

	outcome, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(c.newBackOff()),
		backoff.WithMaxTries(c.maxRetries+1),
	)
	if err != nil {
		// A deadline hit while waiting between attempts surfaces as a bare context error.
		if !errors.Is(err, domain.ErrIdentityUnreachable) && !errors.Is(err, domain.ErrIdentityMalformed) {
			err = fmt.Errorf("%w: %w", domain.ErrIdentityUnreachable, err)
		}
		return "", err
	}
	return outcome, nil
}

func (c *Client) call(ctx context.Context, customerID string) (domain.AuthOutcome, error) {
	endpoint := c.baseURL + "/authenticate/" + url.PathEscape(customerID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("%w: build request: %w", domain.ErrIdentityUnreachable, err)
	}
	req.Header.Set("Accept", "application/json")
	if id := requestctx.RequestIDFromContext(ctx); id != "" {
		req.Header.Set(requestctx.HeaderRequestID, id)
	}
	if c.tokens != nil {
		token, _, err := c.tokens.Generate(c.subject)
		if err != nil {
			return "", fmt.Errorf("%w: sign service token: %w", domain.ErrIdentityUnreachable, err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrIdentityUnreachable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("%w: read body: %w", domain.ErrIdentityUnreachable, err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return decodeAuthenticated(body, customerID)
	case resp.StatusCode == http.StatusNotFound:
		return domain.AuthOutcomeRejected, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError:
		return "", fmt.Errorf("%w: status %d", domain.ErrIdentityUnreachable, resp.StatusCode)
	default:
		return "", fmt.Errorf("%w: unexpected status %d", domain.ErrIdentityMalformed, resp.StatusCode)
	}
}

func decodeAuthenticated(body []byte, customerID string) (domain.AuthOutcome, error) {
	var payload AuthenticateResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("%w: decode body: %w", domain.ErrIdentityMalformed, err)
	}
	if payload.CustomerID != customerID {
		return "", fmt.Errorf("%w: answer is for customer %q", domain.ErrIdentityMalformed, payload.CustomerID)
	}
	if payload.Authenticated == nil || !*payload.Authenticated {
		return "", fmt.Errorf("%w: 200 without authenticated=true", domain.ErrIdentityMalformed)
	}
	return domain.AuthOutcomeAuthenticated, nil
}

var _ ports.IdentityGate = (*Client)(nil)
