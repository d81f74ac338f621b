// Package ws owns the per-connection lifecycle around the hub: a client
// moves Connecting -> Open -> Closed, Closed is terminal, and
// unregistration happens at most once no matter how the connection dies.
package ws

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/services"
)

type State int32

const (
	StateConnecting State = iota
	StateOpen
	StateClosed
)

var (
	errClosed   = fmt.Errorf("connection closed")
	errSlowSink = fmt.Errorf("send buffer full")
)

// Timeouts controls the pump deadlines for one connection.
type Timeouts struct {
	Write        time.Duration
	Pong         time.Duration
	PingInterval time.Duration
}

// Client is one live websocket connection. It implements contract.EventSink:
// Send never blocks, buffering outbound frames in a channel drained by the
// write pump; a full buffer or a closed connection is reported as a failed
// delivery and the hub reaps the sink.
type Client struct {
	log     *slog.Logger
	conn    *websocket.Conn
	hub     contract.IHub
	service services.IChatService

	send chan []byte
	done chan struct{}

	state     atomic.Int32
	closeOnce sync.Once

	readLimit int64
	timeouts  Timeouts
}

func NewClient(log *slog.Logger, conn *websocket.Conn, hub contract.IHub, service services.IChatService, sendBuffer int, readLimit int64, timeouts Timeouts) *Client {
	return &Client{
		log:       log.With("remote", conn.RemoteAddr().String()),
		conn:      conn,
		hub:       hub,
		service:   service,
		send:      make(chan []byte, sendBuffer),
		done:      make(chan struct{}),
		readLimit: readLimit,
		timeouts:  timeouts,
	}
}

func (c *Client) State() State {
	return State(c.state.Load())
}

// Start completes the handshake path: the client transitions to Open, joins
// the hub, and both pumps run until the connection dies.
func (c *Client) Start() {
	c.state.Store(int32(StateOpen))
	c.hub.Register(c)
	go c.writePump()
	go c.readPump()
}

// Send delivers one frame to this connection's outbound path. It returns an
// error for a closed connection or a persistently slow client; it never
// blocks the caller.
func (c *Client) Send(frame []byte) error {
	if c.State() == StateClosed {
		return errClosed
	}
	select {
	case c.send <- frame:
		return nil
	case <-c.done:
		return errClosed
	default:
		return errSlowSink
	}
}

// terminate performs the single transition to Closed. Every failure path
// funnels here; the sync.Once guarantees the hub sees at most one
// unregister per connection lifetime.
func (c *Client) terminate() {
	c.closeOnce.Do(func() {
		c.state.Store(int32(StateClosed))
		c.hub.Unregister(c)
		close(c.done)
		_ = c.conn.Close()
	})
}

func (c *Client) readPump() {
	defer c.terminate()

	c.conn.SetReadLimit(c.readLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.timeouts.Pong))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.timeouts.Pong))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Warn("Unexpected close", "err", err)
			} else {
				c.log.Debug("Connection closed", "err", err)
			}
			return
		}
		c.handleFrame(raw)
	}
}

// handleFrame is the ingress path for one inbound frame. Decode and
// validation failures stay local to this connection; only an accepted
// record reaches the hub.
func (c *Client) handleFrame(raw []byte) {
	candidate, err := domain.DecodeChat(raw)
	if err != nil {
		c.log.Debug("Discarding malformed frame", "err", err)
		c.notifyError(err)
		return
	}
	if _, err := c.service.PostMessage(candidate); err != nil {
		c.log.Debug("Message not accepted", "err", err)
		c.notifyError(err)
	}
}

func (c *Client) notifyError(err error) {
	if sendErr := c.Send(domain.EncodeError(err.Error())); sendErr != nil {
		c.log.Debug("Error notice lost", "err", sendErr)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(c.timeouts.PingInterval)
	defer func() {
		ticker.Stop()
		c.terminate()
	}()

	for {
		select {
		case frame := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.timeouts.Write))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.log.Debug("Write failed", "err", err)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.timeouts.Write))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.log.Debug("Ping failed", "err", err)
				return
			}
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.timeouts.Write))
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}
