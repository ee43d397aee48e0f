// Package transport is the outermost layer: the three WebSocket endpoints
// (chat, pong match, tournament) and the REST surface, built on gorilla/mux
// and gorilla/websocket. It owns nothing domain-specific; it adapts HTTP/WS
// to the actor messages chat.Hub, match.Registry, invite.Broker, and
// tournament.Registry already understand.
package transport

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 45 * time.Second
	sendBufferSize = 64
)

// Close codes the socket endpoints use.
const (
	CloseClean        = 1000
	CloseBackpressure = 1009
	CloseBadRequest   = 4400
	CloseAuth         = 4401
	CloseNotFound     = 4404
	CloseRateLimit    = 4429
)

// Conn wraps one gorilla/websocket connection with a bounded outbound queue
// so a slow client backs up its own mailbox-style buffer rather than ever
// blocking the writer goroutine that drains it — the same non-blocking-send
// shape every actor mailbox in this process uses, extended to the wire.
// Exceeding the buffer closes the socket with 1009 rather than stalling
// whichever tick loop or command queue is broadcasting to it.
type Conn struct {
	ws  *websocket.Conn
	log *zap.SugaredLogger

	mu       sync.Mutex
	send     chan []byte
	closed   bool
	closeMsg []byte // close frame the write pump sends once send is drained
}

// NewConn wraps ws and starts its write pump. Callers must call ReadLoop
// (blocking) to drive the read side and clean up on return.
func NewConn(ws *websocket.Conn, log *zap.SugaredLogger) *Conn {
	c := &Conn{ws: ws, log: log, send: make(chan []byte, sendBufferSize)}
	go c.writePump()
	return c
}

// Send satisfies chat.Conn, match.Conn, and tournament.Conn identically:
// all three are the structural one-method `Send(v interface{}) error`
// interface, so a single Conn type backs every socket endpoint.
func (c *Conn) Send(v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return websocket.ErrCloseSent
	}
	select {
	case c.send <- payload:
		c.mu.Unlock()
		return nil
	default:
		c.mu.Unlock()
		c.CloseWithCode(CloseBackpressure, "send queue full")
		return websocket.ErrCloseSent
	}
}

// CloseWithCode queues a close frame with code/reason behind the frames
// already queued; the write pump sends it after them and then tears the
// socket down. Safe to call more than once.
func (c *Conn) CloseWithCode(code int, reason string) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.closeMsg = websocket.FormatCloseMessage(code, reason)
	close(c.send)
	c.mu.Unlock()
}

func (c *Conn) writePump() {
	defer c.ws.Close()
	for payload := range c.send {
		c.ws.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.ws.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
	// send is only closed by CloseWithCode, which set closeMsg first.
	c.ws.WriteControl(websocket.CloseMessage, c.closeMsg, time.Now().Add(writeWait))
}

// ReadLoop drives inbound frames until the socket closes, invoking handle
// for each. The read deadline is refreshed on every inbound frame and on
// protocol pongs, so a client that keeps up its periodic application-level
// ping stays connected while a fully silent one is dropped after pongWait.
func (c *Conn) ReadLoop(handle func(raw []byte)) {
	c.ws.SetReadLimit(8192)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		handle(raw)
	}
}
