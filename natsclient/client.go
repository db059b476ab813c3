package natsclient

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/c360/flowkit/errors"
)

// ConnectionStatus is the client's view of the NATS connection.
type ConnectionStatus int

// Connection status values.
const (
	StatusDisconnected ConnectionStatus = iota
	StatusConnecting
	StatusConnected
	StatusReconnecting
	StatusClosed
)

func (s ConnectionStatus) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusReconnecting:
		return "reconnecting"
	case StatusClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Client manages a NATS connection and its JetStream context.
type Client struct {
	url    string
	logger *slog.Logger

	conn *nats.Conn
	js   jetstream.JetStream

	maxReconnects int
	reconnectWait time.Duration
	pingInterval  time.Duration
	timeout       time.Duration
	drainTimeout  time.Duration
	clientName    string

	onDisconnect func(error)
	onReconnect  func()

	mu     sync.RWMutex
	status ConnectionStatus
}

// NewClient creates a NATS client for the given URL. The client does not
// connect until Connect is called.
func NewClient(url string, opts ...ClientOption) (*Client, error) {
	if url == "" {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "natsclient", "NewClient", "url is required")
	}

	c := &Client{
		url:           url,
		logger:        slog.Default(),
		maxReconnects: -1,
		reconnectWait: 2 * time.Second,
		pingInterval:  30 * time.Second,
		timeout:       5 * time.Second,
		drainTimeout:  30 * time.Second,
		clientName:    "flowkit",
		status:        StatusDisconnected,
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, errors.WrapInvalid(err, "natsclient", "NewClient", "apply option")
		}
	}
	return c, nil
}

// URL returns the configured NATS server URL.
func (c *Client) URL() string { return c.url }

// Status returns the current connection status.
func (c *Client) Status() ConnectionStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

func (c *Client) setStatus(status ConnectionStatus) {
	c.mu.Lock()
	c.status = status
	c.mu.Unlock()
}

// IsConnected reports whether the underlying connection is currently up.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn != nil && c.conn.IsConnected()
}

// Connect establishes the NATS connection and JetStream context.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.conn != nil {
		c.mu.Unlock()
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "natsclient", "Connect", "already connected")
	}
	c.status = StatusConnecting
	c.mu.Unlock()

	conn, err := nats.Connect(c.url, c.connectionOptions(ctx)...)
	if err != nil {
		c.setStatus(StatusDisconnected)
		return errors.WrapTransient(err, "natsclient", "Connect", "connect to NATS")
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		c.setStatus(StatusDisconnected)
		return errors.WrapFatal(err, "natsclient", "Connect", "create JetStream context")
	}

	c.mu.Lock()
	c.conn = conn
	c.js = js
	c.status = StatusConnected
	c.mu.Unlock()

	c.logger.Info("connected to NATS", "url", c.url)
	return nil
}

func (c *Client) connectionOptions(ctx context.Context) []nats.Option {
	opts := []nats.Option{
		nats.Name(c.clientName),
		nats.MaxReconnects(c.maxReconnects),
		nats.ReconnectWait(c.reconnectWait),
		nats.PingInterval(c.pingInterval),
		nats.Timeout(c.timeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			c.setStatus(StatusReconnecting)
			c.logger.Warn("NATS disconnected", "error", err)
			if c.onDisconnect != nil {
				c.onDisconnect(err)
			}
		}),
		nats.ReconnectHandler(func(conn *nats.Conn) {
			c.setStatus(StatusConnected)
			c.logger.Info("NATS reconnected", "url", conn.ConnectedUrl())
			if c.onReconnect != nil {
				c.onReconnect()
			}
		}),
		nats.ClosedHandler(func(*nats.Conn) {
			c.setStatus(StatusClosed)
		}),
	}
	if deadline, ok := ctx.Deadline(); ok {
		opts = append(opts, nats.Timeout(time.Until(deadline)))
	}
	return opts
}

// Close drains and closes the connection. Safe to call on a client that
// never connected.
func (c *Client) Close(ctx context.Context) error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.js = nil
	c.mu.Unlock()

	if conn == nil {
		return nil
	}

	done := make(chan error, 1)
	go func() {
		done <- conn.Drain()
	}()

	select {
	case err := <-done:
		if err != nil {
			conn.Close()
			c.setStatus(StatusClosed)
			return errors.WrapTransient(err, "natsclient", "Close", "drain connection")
		}
	case <-time.After(c.drainTimeout):
		conn.Close()
		c.setStatus(StatusClosed)
		return errors.WrapTransient(errors.ErrShuttingDown, "natsclient", "Close", "drain timed out")
	case <-ctx.Done():
		conn.Close()
		c.setStatus(StatusClosed)
		return errors.WrapTransient(ctx.Err(), "natsclient", "Close", "close interrupted")
	}

	c.setStatus(StatusClosed)
	c.logger.Info("NATS connection closed")
	return nil
}

// JetStream returns the JetStream context, or an error when not connected.
func (c *Client) JetStream() (jetstream.JetStream, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.js == nil {
		return nil, errors.WrapTransient(errors.ErrNoConnection, "natsclient", "JetStream", "not connected")
	}
	return c.js, nil
}

// CreateKeyValueBucket creates the KV bucket, or binds to it when it
// already exists.
func (c *Client) CreateKeyValueBucket(ctx context.Context, cfg jetstream.KeyValueConfig) (jetstream.KeyValue, error) {
	js, err := c.JetStream()
	if err != nil {
		return nil, err
	}

	bucket, err := js.CreateKeyValue(ctx, cfg)
	if err == nil {
		return bucket, nil
	}

	// concurrent creation by another editor instance is fine
	bucket, bindErr := js.KeyValue(ctx, cfg.Bucket)
	if bindErr != nil {
		return nil, errors.WrapTransient(err, "natsclient", "CreateKeyValueBucket", "create KV bucket")
	}
	return bucket, nil
}

// GetKeyValueBucket binds to an existing KV bucket.
func (c *Client) GetKeyValueBucket(ctx context.Context, name string) (jetstream.KeyValue, error) {
	js, err := c.JetStream()
	if err != nil {
		return nil, err
	}

	bucket, err := js.KeyValue(ctx, name)
	if err != nil {
		return nil, errors.WrapTransient(
			errors.ErrBucketNotFound, "natsclient", "GetKeyValueBucket", "bind KV bucket "+name)
	}
	return bucket, nil
}
