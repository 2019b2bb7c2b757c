// Package inject delivers Beast frames to a readsb-compatible TCP ingest
// port, reconnecting with bounded exponential backoff.
package inject

import (
	"bytes"
	"fmt"
	"net"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/eastham/mesh-adsb/internal/metrics"
)

// connState is the connection lifecycle state.
type connState int

const (
	stateDisconnected connState = iota
	stateConnecting
	stateConnected
	stateBackoff
)

const (
	initialBackoff = 250 * time.Millisecond
	maxBackoff     = 5 * time.Second
)

// Options bound the client's retry behavior.
type Options struct {
	ConnectTimeout time.Duration
	WriteTimeout   time.Duration
	// Repeat writes each pair this many times; tar1090 renders a target
	// more promptly when the pair arrives twice.
	Repeat int
	// MaxAttempts bounds delivery attempts per pair. Frames that cannot
	// be delivered within the bound are dropped, never queued: staleness
	// beats backlog.
	MaxAttempts int
}

// Client owns one persistent TCP connection to the ingest port. It is used
// from the single pipeline consumer loop and holds no lock of its own.
type Client struct {
	addr    string
	opts    Options
	logger  *logrus.Logger
	metrics *metrics.Metrics

	conn    net.Conn
	state   connState
	backoff time.Duration
}

// NewClient creates a client for addr. The connection is established
// lazily on the first send.
func NewClient(addr string, opts Options, m *metrics.Metrics, logger *logrus.Logger) *Client {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 5 * time.Second
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 5 * time.Second
	}
	if opts.Repeat <= 0 {
		opts.Repeat = 1
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	return &Client{
		addr:    addr,
		opts:    opts,
		logger:  logger,
		metrics: m,
		state:   stateDisconnected,
		backoff: initialBackoff,
	}
}

// SendPair writes an even/odd frame pair atomically: both frames go out in
// a single write (repeated per Options.Repeat), so a receiver never sees
// half a pair from a torn delivery. On failure the connection is rebuilt
// and the full pair is rewritten, up to the attempt bound.
func (c *Client) SendPair(frames [][]byte) error {
	var buf bytes.Buffer
	for i := 0; i < c.opts.Repeat; i++ {
		for _, f := range frames {
			buf.Write(f)
		}
	}

	var lastErr error
	for attempt := 0; attempt < c.opts.MaxAttempts; attempt++ {
		if c.state == stateBackoff {
			time.Sleep(c.backoff)
			c.backoff *= 2
			if c.backoff > maxBackoff {
				c.backoff = maxBackoff
			}
			c.state = stateDisconnected
		}

		if c.conn == nil {
			if err := c.connect(); err != nil {
				lastErr = err
				c.state = stateBackoff
				continue
			}
		}

		_ = c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
		if _, err := c.conn.Write(buf.Bytes()); err != nil {
			c.logger.WithError(err).Info("readsb write failed, reconnecting")
			c.dropConn()
			lastErr = err
			c.state = stateBackoff
			continue
		}

		c.backoff = initialBackoff
		c.metrics.FramesInjected.Add(float64(len(frames) * c.opts.Repeat))
		return nil
	}

	c.metrics.InjectFailures.Inc()
	return fmt.Errorf("inject: delivery to %s failed after %d attempts: %w",
		c.addr, c.opts.MaxAttempts, lastErr)
}

func (c *Client) connect() error {
	c.state = stateConnecting
	c.metrics.Reconnects.Inc()

	conn, err := net.DialTimeout("tcp", c.addr, c.opts.ConnectTimeout)
	if err != nil {
		c.state = stateDisconnected
		return fmt.Errorf("inject: connect %s: %w", c.addr, err)
	}

	c.logger.WithField("addr", c.addr).Info("Connected to readsb")
	c.conn = conn
	c.state = stateConnected
	return nil
}

func (c *Client) dropConn() {
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.state = stateDisconnected
}

// Close tears down the connection.
func (c *Client) Close() {
	c.dropConn()
}
