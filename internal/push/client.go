package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/mediasync/internal/shared"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBuffer     = 16
	inboundBuffer  = 64
)

// Dialer opens push connections to the transfer service.
type Dialer struct {
	URL              string
	Token            string
	HandshakeTimeout time.Duration
	Logger           *log.Logger
}

// NewDialer creates a Dialer for url. A non-empty token is sent as a bearer Authorization header.
func NewDialer(url, token string, handshakeTimeout time.Duration, logger *log.Logger) *Dialer {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Dialer{URL: url, Token: token, HandshakeTimeout: handshakeTimeout, Logger: logger}
}

// Dial performs the websocket handshake and starts the client pumps.
//
// Errors wrap [shared.ErrConnectFailed].
func (d *Dialer) Dial(ctx context.Context) (*Client, error) {
	if d.URL == "" {
		return nil, fmt.Errorf("%w: push url is not configured", shared.ErrConnectFailed)
	}

	ws := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: d.HandshakeTimeout,
	}

	header := http.Header{}
	if d.Token != "" {
		header.Set("Authorization", "Bearer "+d.Token)
	}

	conn, resp, err := ws.DialContext(ctx, d.URL, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("%w: handshake returned status %d: %v", shared.ErrConnectFailed, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("%w: %v", shared.ErrConnectFailed, err)
	}

	return NewClient(conn, d.Logger), nil
}

// Client is one live push connection.
//
// Inbound frames are delivered on [Client.Messages]; the channel is closed when the connection ends.
// [Client.Done] is closed at the same time and [Client.Err] tells a local close (nil) from a lost connection.
type Client struct {
	conn   *websocket.Conn
	logger *log.Logger

	messages chan Message
	send     chan Message
	done     chan struct{}

	once sync.Once
	mu   sync.Mutex
	err  error
}

// NewClient wraps an established connection and starts its read and write pumps.
func NewClient(conn *websocket.Conn, logger *log.Logger) *Client {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	c := &Client{
		conn:     conn,
		logger:   shared.WithLogger(logger, "component", "push"),
		messages: make(chan Message, inboundBuffer),
		send:     make(chan Message, sendBuffer),
		done:     make(chan struct{}),
	}

	go c.readPump()
	go c.writePump()

	return c
}

func (c *Client) Messages() <-chan Message { return c.messages }

func (c *Client) Done() <-chan struct{} { return c.done }

// Err returns the cause of an unexpected close, or nil while open and after [Client.Close].
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// SendActivity queues an activity frame without blocking.
func (c *Client) SendActivity(at time.Time) error {
	select {
	case <-c.done:
		return shared.ErrNotConnected
	default:
	}

	select {
	case c.send <- ActivityMessage(at):
		return nil
	default:
		return shared.ErrSendQueueFull
	}
}

// Close ends the connection locally. It is safe to call more than once.
func (c *Client) Close() error {
	var err error
	c.once.Do(func() {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		close(c.done)
		err = c.conn.Close()
	})
	return err
}

func (c *Client) fail(cause error) {
	c.once.Do(func() {
		c.mu.Lock()
		c.err = fmt.Errorf("%w: %v", shared.ErrConnectionLost, cause)
		c.mu.Unlock()

		c.logger.Warn("push connection lost", "err", cause)
		close(c.done)
		_ = c.conn.Close()
	})
}

func (c *Client) readPump() {
	defer close(c.messages)

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				err = errors.New("server closed the connection")
			}
			c.fail(err)
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))

		msg, err := Decode(data)
		if err != nil {
			c.logger.Debug("dropping push frame", "err", err)
			continue
		}

		select {
		case c.messages <- msg:
		case <-c.done:
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return

		case msg := <-c.send:
			payload, err := json.Marshal(msg)
			if err != nil {
				c.logger.Error("failed to marshal push frame", "err", err)
				continue
			}

			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.fail(err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.fail(err)
				return
			}
		}
	}
}
