// Package websocket carries the event channel protocol over gorilla websockets.
// One Connection is one identity channel: a verified identity and a duplex event stream.
package websocket

import (
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"chat-relay/infrastructure/wire"
	"chat-relay/services"
	"context"
	stdErrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// KeepAlive bounds how long a silent peer is kept.
type KeepAlive struct {
	PingPeriod time.Duration
	PongWait   time.Duration
	WriteWait  time.Duration
}

func DefaultKeepAlive() KeepAlive {
	return KeepAlive{
		PingPeriod: 54 * time.Second,
		PongWait:   60 * time.Second,
		WriteWait:  10 * time.Second,
	}
}

const maxFrameSize = 64 * 1024

// Connection is the EventSink of one websocket.
// Frames from the client are handled one at a time on the read loop,
// so the sends of one channel keep their order.
type Connection struct {
	log       *slog.Logger
	identity  domain.Identity
	service   services.IChatService
	keepAlive KeepAlive
	onClose   func(*Connection)

	conn              *websocket.Conn
	ctx               context.Context
	cancel            context.CancelFunc
	readLoopDone      chan struct{}
	writeLoopDone     chan struct{}
	outgoing          chan *websocket.PreparedMessage
	close             chan struct{}
	beginClosingOnce  sync.Once
	finishClosingOnce sync.Once
	loggedIn          atomic.Bool
}

func NewConnection(log *slog.Logger, identity domain.Identity, service services.IChatService,
	bufferSize int, keepAlive KeepAlive, onClose func(*Connection)) *Connection {
	return &Connection{
		log:           log.With("identity", identity),
		identity:      identity,
		service:       service,
		keepAlive:     keepAlive,
		onClose:       onClose,
		readLoopDone:  make(chan struct{}),
		writeLoopDone: make(chan struct{}),
		outgoing:      make(chan *websocket.PreparedMessage, bufferSize),
		close:         make(chan struct{}),
	}
}

// Serve takes ownership of the given connection and begins reading / writing to it.
func (c *Connection) Serve(ctx context.Context, conn *websocket.Conn) {
	c.conn = conn
	c.ctx, c.cancel = context.WithCancel(ctx)
	go c.readLoop()
	go c.writeLoop()
}

// Identity is the identity verified at upgrade time.
func (c *Connection) Identity() domain.Identity {
	return c.identity
}

// Consume enqueues the event without blocking.
// A full buffer or a closing connection means the receiver is unreachable.
func (c *Connection) Consume(ctx context.Context, evt event.DomainEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-c.close:
		return errors.ErrChannelClosed
	default:
	}
	data, err := wire.EncodeEvent(evt)
	if err != nil {
		return fmt.Errorf("unable to encode %s: %w", evt.EventName(), err)
	}
	prepared, err := websocket.NewPreparedMessage(websocket.TextMessage, data)
	if err != nil {
		return fmt.Errorf("error preparing message: %w", err)
	}
	select {
	case c.outgoing <- prepared:
		return nil
	default:
		return errors.ErrSendBufferFull
	}
}

// Close closes the connection and waits for both loops to end.
func (c *Connection) Close() {
	c.beginClosing()
	c.finishClosing()
}

// Done is closed once the connection started closing.
func (c *Connection) Done() <-chan struct{} {
	return c.close
}

func (c *Connection) readLoop() {
	defer close(c.readLoopDone)
	defer c.beginClosing()

	c.conn.SetReadLimit(maxFrameSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.keepAlive.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.keepAlive.PongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure,
				websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				select {
				case <-c.close:
				default:
					c.log.Warn("Websocket read error", "error", err)
				}
			}
			return
		}
		c.handleFrame(data)
	}
}

func (c *Connection) handleFrame(data []byte) {
	frame, err := wire.DecodeFrame(data)
	if err != nil {
		c.log.Info("Malformed frame received", "error", err)
		c.sendError(fmt.Errorf("%w: malformed frame", errors.ErrValidation))
		return
	}

	switch frame.Event {
	case wire.LoginEvent:
		c.handleLogin(frame)
	case wire.GetUsersEvent:
		c.service.RequestUsers(c.ctx, c)
	case wire.PrivateMessageEvent:
		c.handlePrivateMessage(frame)
	case wire.GetMessagesEvent:
		c.handleGetMessages(frame)
	default:
		c.log.Info("Unknown event received", "event", frame.Event)
		c.sendError(fmt.Errorf("%w: unknown event %q", errors.ErrValidation, frame.Event))
	}
}

func (c *Connection) handleLogin(frame wire.Frame) {
	var identity string
	if err := wire.Unmarshal(frame.Data, &identity); err != nil {
		c.sendError(fmt.Errorf("%w: login expects an identity", errors.ErrValidation))
		return
	}
	if domain.Identity(identity) != c.identity {
		c.log.Warn("Login refused for another identity", "requested", identity)
		c.sendError(fmt.Errorf("%w: cannot log in as %q", errors.ErrForbidden, identity))
		return
	}
	c.loggedIn.Store(true)
	c.service.Login(c.identity, c)
}

func (c *Connection) handlePrivateMessage(frame wire.Frame) {
	if !c.loggedIn.Load() {
		c.sendError(errors.ErrNotLoggedIn)
		return
	}
	var request wire.PrivateMessageRequest
	if err := wire.Unmarshal(frame.Data, &request); err != nil {
		c.sendError(fmt.Errorf("%w: private message expects {to, text}", errors.ErrValidation))
		return
	}
	_, err := c.service.SendMessage(c.ctx, domain.SendMessageCommand{
		From: c.identity,
		To:   domain.Identity(request.To),
		Text: request.Text,
	}, c)
	if err != nil {
		c.sendError(err)
	}
}

func (c *Connection) handleGetMessages(frame wire.Frame) {
	var request wire.GetMessagesRequest
	if err := wire.Unmarshal(frame.Data, &request); err != nil {
		c.sendError(fmt.Errorf("%w: get messages expects {from, to}", errors.ErrValidation))
		return
	}
	messages, err := c.service.GetMessages(c.ctx, domain.GetHistoryCommand{
		Requester: c.identity,
		A:         domain.Identity(request.From),
		B:         domain.Identity(request.To),
	})
	if err != nil {
		c.sendError(err)
		return
	}
	if err := c.Consume(c.ctx, event.ChatHistory{Messages: messages}); err != nil {
		c.log.Warn("Chat history not delivered", "error", err)
	}
}

func (c *Connection) sendError(err error) {
	if consumeErr := c.Consume(c.ctx, event.Failure{Message: err.Error()}); consumeErr != nil {
		c.log.Debug("Error frame not delivered", "error", consumeErr)
	}
}

func (c *Connection) writeLoop() {
	defer c.finishClosing()
	defer close(c.writeLoopDone)
	defer c.conn.Close()

	ticker := time.NewTicker(c.keepAlive.PingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg := <-c.outgoing:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.keepAlive.WriteWait))
			if err := c.conn.WritePreparedMessage(msg); err != nil {
				c.logWriteError(err)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.keepAlive.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logWriteError(err)
				return
			}
		case <-c.close:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(c.keepAlive.WriteWait))
			return
		}
	}
}

func (c *Connection) logWriteError(err error) {
	if !websocket.IsCloseError(err, websocket.CloseAbnormalClosure, websocket.CloseGoingAway) &&
		!stdErrors.Is(err, websocket.ErrCloseSent) {
		c.log.Warn("Websocket write error", "error", err)
	}
}

func (c *Connection) beginClosing() {
	c.beginClosingOnce.Do(func() {
		close(c.close)
	})
}

// finishClosing runs once both loops are done: the identity is detached
// only if this connection is still the registered one.
func (c *Connection) finishClosing() {
	<-c.readLoopDone
	<-c.writeLoopDone
	c.finishClosingOnce.Do(func() {
		if c.loggedIn.Load() {
			c.service.Logout(c.identity, c)
		}
		c.cancel()
		if c.onClose != nil {
			c.onClose(c)
		}
		c.log.Debug("Connection closed")
	})
}
