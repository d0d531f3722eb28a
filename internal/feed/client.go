// Package feed keeps a persistent connection to the backend's live
// attendance feed and reconnects after a fixed delay whenever it drops.
package feed

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/faceattend/attendance-console/internal/config"
	"github.com/faceattend/attendance-console/internal/logging"
	"github.com/faceattend/attendance-console/internal/metrics"
)

const writeWait = 10 * time.Second

// Handler receives feed lifecycle events. Calls are made from the feed's
// goroutine, one at a time.
type Handler interface {
	FeedOpened()
	FeedMessage(data []byte)
	FeedError(err error)
	FeedClosed()
}

// Client manages the WebSocket connection to the live feed
type Client struct {
	url     string
	config  config.FeedConfig
	dialer  *websocket.Dialer
	handler Handler
	log     *zap.Logger

	// after schedules the reconnect timer; replaced in tests
	after func(time.Duration) <-chan time.Time

	mu           sync.Mutex
	conn         *websocket.Conn
	connected    bool
	reconnecting bool
	lastError    error
	lastSeen     time.Time
	attempts     int
	pending      int
}

// NewClient creates a feed client for url
func NewClient(url string, cfg config.FeedConfig, handler Handler, log *zap.Logger) *Client {
	return &Client{
		url:     url,
		config:  cfg,
		dialer:  websocket.DefaultDialer,
		handler: handler,
		log:     logging.OrNop(log).Named("feed"),
		after:   time.After,
	}
}

// Status returns the current connection status
func (c *Client) Status() ConnectionStatus {
	c.mu.Lock()
	defer c.mu.Unlock()

	errStr := ""
	if c.lastError != nil {
		errStr = c.lastError.Error()
	}

	return ConnectionStatus{
		URL:               c.url,
		Connected:         c.connected,
		Reconnecting:      c.reconnecting,
		LastError:         errStr,
		LastSeen:          c.lastSeen,
		Attempts:          c.attempts,
		PendingReconnects: c.pending,
	}
}

// Run connects and reconnects until ctx is cancelled. Reconnection is
// attempted forever, each time after ReconnectDelay plus a random jitter.
func (c *Client) Run(ctx context.Context) error {
	for {
		c.session(ctx)
		if ctx.Err() != nil {
			return nil
		}

		delay := c.nextDelay()
		c.mu.Lock()
		c.reconnecting = true
		c.pending++
		c.mu.Unlock()

		c.log.Info("feed closed, reconnecting", zap.Duration("delay", delay))

		select {
		case <-ctx.Done():
			c.mu.Lock()
			c.pending--
			c.mu.Unlock()
			return nil
		case <-c.after(delay):
		}

		c.mu.Lock()
		c.pending--
		c.mu.Unlock()
	}
}

func (c *Client) nextDelay() time.Duration {
	delay := c.config.ReconnectDelay
	if c.config.ReconnectJitter > 0 {
		delay += rand.N(c.config.ReconnectJitter)
	}
	return delay
}

// session runs one connection from dial to close
func (c *Client) session(ctx context.Context) {
	c.mu.Lock()
	c.attempts++
	c.mu.Unlock()

	c.log.Debug("connecting", zap.String("url", c.url))

	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		err = fmt.Errorf("dial failed: %w", err)
		c.setDisconnected(err)
		c.log.Warn("feed connection failed", zap.Error(err))
		metrics.FeedDisconnects.Inc()
		c.handler.FeedError(err)
		c.handler.FeedClosed()
		return
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.reconnecting = false
	c.lastError = nil
	c.lastSeen = time.Now()
	c.mu.Unlock()

	metrics.FeedConnects.Inc()
	c.log.Info("feed connected", zap.String("url", c.url))
	c.handler.FeedOpened()

	err = c.serve(ctx, conn)
	c.setDisconnected(err)
	if ctx.Err() != nil {
		return
	}
	metrics.FeedDisconnects.Inc()
	c.handler.FeedClosed()
}

func (c *Client) setDisconnected(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	c.conn = nil
	if err != nil {
		c.lastError = err
	}
}

// serve runs the read loop alongside the ping loop until either ends
func (c *Client) serve(ctx context.Context, conn *websocket.Conn) error {
	defer conn.Close()

	conn.SetPongHandler(func(string) error {
		c.touch()
		return nil
	})

	readErr := make(chan error, 1)
	go func() {
		readErr <- c.readLoop(conn)
	}()

	var ticker <-chan time.Time
	if c.config.PingInterval > 0 {
		t := time.NewTicker(c.config.PingInterval)
		defer t.Stop()
		ticker = t.C
	}

	for {
		select {
		case <-ctx.Done():
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
			conn.Close()
			<-readErr
			return nil

		case err := <-readErr:
			return err

		case <-ticker:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				c.log.Warn("feed ping failed", zap.Error(err))
				conn.Close()
				<-readErr
				c.handler.FeedError(err)
				return err
			}
		}
	}
}

// readLoop hands every inbound message to the handler. Unexpected close
// errors are reported as transport errors; normal closes are not.
func (c *Client) readLoop(conn *websocket.Conn) error {
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) || errors.Is(err, websocket.ErrCloseSent) {
				return nil
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Warn("feed read error", zap.Error(err))
				c.handler.FeedError(err)
			}
			return err
		}

		c.touch()
		c.handler.FeedMessage(message)
	}
}

func (c *Client) touch() {
	c.mu.Lock()
	c.lastSeen = time.Now()
	c.mu.Unlock()
}
