package socket

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/aretw0/scoserv/pkg/domain"
	"github.com/aretw0/scoserv/pkg/ports"
)

// DefaultTimeout bounds connecting to the engine and the exchange itself.
const DefaultTimeout = 10 * time.Second

// Client dispatches runs to an engine server.
type Client struct {
	addr    string
	timeout time.Duration
	dialer  net.Dialer
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// NewClient creates a client for the engine listening on addr (host:port).
func NewClient(addr string, opts ...ClientOption) *Client {
	c := &Client{addr: addr, timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(c)
	}
	c.dialer.Timeout = c.timeout
	return c
}

var _ ports.Dispatcher = (*Client)(nil)

// Submit sends req and waits for the engine's acknowledgement. Connection
// failures and non-200 responses wrap domain.ErrDispatch; a non-200
// response also matches *StatusError.
func (c *Client) Submit(ctx context.Context, req domain.RunRequest) error {
	conn, err := c.dialer.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrDispatch, err)
	}
	defer conn.Close()

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrDispatch, err)
	}

	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return fmt.Errorf("%w: failed to send request: %w", domain.ErrDispatch, err)
	}

	var resp Response
	if err := json.NewDecoder(io.LimitReader(conn, maxMessageSize)).Decode(&resp); err != nil {
		return fmt.Errorf("%w: failed to read response: %w", domain.ErrDispatch, err)
	}
	if resp.Status != http.StatusOK {
		return fmt.Errorf("%w: %w", domain.ErrDispatch, &StatusError{Status: resp.Status, Message: resp.Message})
	}
	return nil
}
