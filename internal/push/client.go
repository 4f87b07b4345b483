package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	xlog "sltk-monitor/internal/log"
)

var ErrClosed = errors.New("push channel closed")

type Options struct {
	Header           http.Header
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	// PingInterval enables keepalive pings; the connection is considered dead
	// when no pong arrives within two intervals. Zero disables it.
	PingInterval time.Duration
	EventBuffer  int
}

func (o Options) withDefaults() Options {
	if o.HandshakeTimeout <= 0 {
		o.HandshakeTimeout = 10 * time.Second
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 5 * time.Second
	}
	if o.EventBuffer <= 0 {
		o.EventBuffer = 32
	}
	return o
}

// Client is one long-lived push channel connection.
type Client struct {
	conn   *websocket.Conn
	opts   Options
	log    zerolog.Logger
	events chan Event

	writeMu   sync.Mutex
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

func Dial(ctx context.Context, url string, opts Options) (*Client, error) {
	opts = opts.withDefaults()
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: opts.HandshakeTimeout,
		ReadBufferSize:   64 * 1024,
		WriteBufferSize:  16 * 1024,
	}
	conn, resp, err := dialer.DialContext(ctx, url, opts.Header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial push channel %s: %w (HTTP %d)", url, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial push channel %s: %w", url, err)
	}

	c := &Client{
		conn:   conn,
		opts:   opts,
		log:    xlog.WithComponent("push").With().Str(xlog.FieldURL, url).Logger(),
		events: make(chan Event, opts.EventBuffer),
		done:   make(chan struct{}),
	}
	if opts.PingInterval > 0 {
		pongWait := 2 * opts.PingInterval
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		c.wg.Add(1)
		go c.pingLoop()
	}
	c.wg.Add(1)
	go c.readLoop()
	c.log.Debug().Msg("push channel connected")
	return c, nil
}

// Events yields server notifications in receive order. The channel closes
// when the connection ends; an unexpected end is reported as a final
// EventError first.
func (c *Client) Events() <-chan Event {
	return c.events
}

func (c *Client) Monitor(ctx context.Context, groupID string) error {
	return c.send(ctx, MsgTypeMonitor, groupID)
}

func (c *Client) StopMonitor(ctx context.Context, groupID string) error {
	return c.send(ctx, MsgTypeStopMonitor, groupID)
}

// Ping sends an application-level ping. The backend answers with pong,
// which is not surfaced as an event.
func (c *Client) Ping(ctx context.Context) error {
	return c.send(ctx, MsgTypePing, nil)
}

func (c *Client) send(ctx context.Context, msgType string, payload any) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	msg, err := newMessage(msgType, uuid.NewString(), payload)
	if err != nil {
		return err
	}

	deadline := time.Now().Add(c.opts.WriteTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(deadline)
	if err := c.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("send %s: %w", msgType, err)
	}
	c.log.Debug().Str(xlog.FieldEvent, msgType).Str(xlog.FieldMessageID, msg.ID).Msg("push message sent")
	return nil
}

func (c *Client) readLoop() {
	defer c.wg.Done()
	defer close(c.events)

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
				return
			default:
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Warn().Err(err).Msg("push channel lost")
			}
			c.deliver(Event{Kind: EventError, Message: "push channel disconnected: " + err.Error()})
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.log.Warn().Err(err).Msg("discarding malformed push frame")
			continue
		}
		ev, ok, err := decodeEvent(msg)
		if err != nil {
			c.log.Warn().Err(err).Str(xlog.FieldEvent, msg.Type).Msg("discarding invalid push payload")
			continue
		}
		if !ok {
			c.log.Debug().Str(xlog.FieldEvent, msg.Type).Msg("ignoring push message")
			continue
		}
		if !c.deliver(ev) {
			return
		}
	}
}

func (c *Client) deliver(ev Event) bool {
	select {
	case c.events <- ev:
		return true
	case <-c.done:
		return false
	}
}

func (c *Client) pingLoop() {
	defer c.wg.Done()
	t := time.NewTicker(c.opts.PingInterval)
	defer t.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-t.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.opts.WriteTimeout)); err != nil {
				c.log.Debug().Err(err).Msg("keepalive ping failed")
				return
			}
		}
	}
}

// Close sends a close frame, tears the connection down and waits for the
// reader to exit. Safe to call more than once.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session ended"),
			time.Now().Add(time.Second),
		)
		err = c.conn.Close()
		c.wg.Wait()
	})
	return err
}
