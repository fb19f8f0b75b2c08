package custodian

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker/v2"

	dErrors "medivault/pkg/domain-errors"
)

// Client fronts a KeyService with bounded retries and a circuit breaker.
// Key generation is idempotent and side-effect-free on the custodian side,
// so retrying is safe; the breaker keeps a dead custodian from stacking
// retry sleeps onto every upload.
type Client struct {
	service KeyService
	breaker *gobreaker.CircuitBreaker[any]
	logger  *slog.Logger

	maxRetries      uint64
	initialInterval time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithMaxRetries bounds the number of retry attempts after the first call.
func WithMaxRetries(n uint64) Option {
	return func(c *Client) { c.maxRetries = n }
}

// WithInitialInterval sets the first backoff interval.
func WithInitialInterval(d time.Duration) Option {
	return func(c *Client) { c.initialInterval = d }
}

// NewClient wraps a KeyService collaborator.
func NewClient(service KeyService, opts ...Option) (*Client, error) {
	if service == nil {
		return nil, errors.New("key service is required")
	}

	c := &Client{
		service:         service,
		logger:          slog.Default(),
		maxRetries:      3,
		initialInterval: 50 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.breaker = gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:    "key-custodian",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("key custodian circuit state changed",
				"breaker", name, "from", from.String(), "to", to.String())
		},
	})

	return c, nil
}

// IssueDataKey requests a fresh data-encryption key. Called once per logical
// record; issued keys are never cached or reused.
func (c *Client) IssueDataKey(ctx context.Context) (*DataKey, error) {
	result, err := c.execute(ctx, "generate_data_key", func(ctx context.Context) (any, error) {
		return c.service.GenerateDataKey(ctx)
	})
	if err != nil {
		return nil, err
	}
	return result.(*DataKey), nil
}

// Unwrap recovers the plaintext form of a stored wrapped key.
func (c *Client) Unwrap(ctx context.Context, wrapped []byte) ([]byte, error) {
	if len(wrapped) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "wrapped key is required")
	}
	result, err := c.execute(ctx, "unwrap", func(ctx context.Context) (any, error) {
		return c.service.Unwrap(ctx, wrapped)
	})
	if err != nil {
		return nil, err
	}
	return result.([]byte), nil
}

func (c *Client) execute(ctx context.Context, op string, call func(context.Context) (any, error)) (any, error) {
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(
			backoff.WithInitialInterval(c.initialInterval),
		), c.maxRetries),
		ctx,
	)

	var result any
	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		out, err := c.breaker.Execute(func() (any, error) {
			return call(ctx)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				// Breaker is open; further retries just burn the budget.
				return backoff.Permanent(err)
			}
			if dErrors.HasCode(err, dErrors.CodeValidation) {
				return backoff.Permanent(err)
			}
			c.logger.Warn("key custodian call failed",
				"operation", op, "attempt", attempt, "error", err)
			return err
		}
		result = out
		return nil
	}, policy)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeValidation) {
			return nil, err
		}
		return nil, dErrors.Wrap(err, dErrors.CodeCustodianUnavailable, "key custodian unavailable")
	}
	return result, nil
}
