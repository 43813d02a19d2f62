// Package ledger talks to the external chain status service. The ledger is
// display-only for this system: identity correctness never depends on it,
// so every read degrades to the last known snapshot instead of failing.
package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"persona/internal/platform/metrics"
	dErrors "persona/pkg/domain-errors"
	"persona/pkg/platform/circuit"
)

const requestTimeout = 3 * time.Second

// Status is a chain status snapshot.
type Status struct {
	NetworkID   string    `json:"network_id"`
	BlockHeight int64     `json:"block_height"`
	Degraded    bool      `json:"degraded"`
	CheckedAt   time.Time `json:"checked_at"`
}

// Client fetches chain status and balances. Status never returns an error:
// a failed fetch trips the breaker and serves the cached snapshot marked
// degraded. Balance is different: it feeds a user-visible number, so a
// failure there is surfaced as retryable rather than papered over.
type Client struct {
	baseURL string
	http    *http.Client
	breaker *circuit.Breaker
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	mu     sync.RWMutex
	cached Status
}

// Option configures the Client.
type Option func(*Client)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithMetrics enables metric emission.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithHTTPClient overrides the HTTP client (tests).
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// NewClient constructs a ledger client for the given base URL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: requestTimeout},
		breaker: circuit.New("ledger", circuit.WithFailureThreshold(3)),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	c.cached = Status{Degraded: true}
	return c
}

// Status returns the current chain status, or the cached snapshot marked
// degraded when the service is unreachable or the breaker is open.
func (c *Client) Status(ctx context.Context) Status {
	if c.breaker.IsOpen() {
		// Probe anyway; successes while open are what close the breaker.
		if status, err := c.fetchStatus(ctx); err == nil {
			if usePrimary, change := c.breaker.RecordSuccess(); usePrimary {
				if change.Closed {
					c.logger.InfoContext(ctx, "ledger circuit closed")
				}
				return c.store(status)
			}
		} else {
			c.breaker.RecordFailure()
		}
		return c.degraded()
	}

	status, err := c.fetchStatus(ctx)
	if err != nil {
		if _, change := c.breaker.RecordFailure(); change.Opened {
			c.logger.WarnContext(ctx, "ledger circuit opened", "error", err)
		}
		return c.degraded()
	}
	c.breaker.RecordSuccess()
	return c.store(status)
}

// Balance fetches the on-chain balance for an address. Unlike Status this
// returns an error: callers cache the prior value themselves and must know
// the fetch failed.
func (c *Client) Balance(ctx context.Context, address string) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/balance/%s", c.baseURL, address), nil)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "could not build balance request")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeUnavailable, "ledger unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, dErrors.New(dErrors.CodeUnavailable,
			fmt.Sprintf("ledger returned status %d", resp.StatusCode))
	}

	var body struct {
		Balance float64 `json:"balance"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeUnavailable, "malformed ledger response")
	}
	return body.Balance, nil
}

func (c *Client) fetchStatus(ctx context.Context) (Status, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/status", nil)
	if err != nil {
		return Status{}, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return Status{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Status{}, fmt.Errorf("ledger returned status %d", resp.StatusCode)
	}

	var body struct {
		NetworkID   string `json:"network_id"`
		BlockHeight int64  `json:"block_height"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Status{}, err
	}
	return Status{
		NetworkID:   body.NetworkID,
		BlockHeight: body.BlockHeight,
		CheckedAt:   c.now().UTC(),
	}, nil
}

func (c *Client) store(status Status) Status {
	c.mu.Lock()
	c.cached = status
	c.mu.Unlock()
	return status
}

func (c *Client) degraded() Status {
	if c.metrics != nil {
		c.metrics.IncrementLedgerDegradations()
	}
	c.mu.RLock()
	snapshot := c.cached
	c.mu.RUnlock()
	snapshot.Degraded = true
	return snapshot
}
