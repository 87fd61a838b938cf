package ws

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"tasktango/internal/codec"
	"tasktango/internal/models"
)

const pingPeriod = 30 * time.Second

var ErrConnectionClosed = errors.New("connection closed")

type wsConnection interface {
	Close() error
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
}

type frameHandler interface {
	HandleFrame(data []byte)
}

// Connection is one live websocket session. Incoming text frames go to the handler,
// outgoing messages are encoded once and written by the main loop.
type Connection struct {
	ID         string
	ws         wsConnection
	handler    frameHandler
	fromServer chan []byte
	outbox     chan []byte
	errorCh    chan error
	done       chan struct{}
	pingPeriod time.Duration
}

func NewConnection(handler frameHandler, ws wsConnection) *Connection {
	return &Connection{
		ID:         uuid.NewString(),
		ws:         ws,
		handler:    handler,
		fromServer: make(chan []byte),
		outbox:     make(chan []byte, 16),
		errorCh:    make(chan error, 2),
		done:       make(chan struct{}),
		pingPeriod: pingPeriod,
	}
}

// Send encodes msg and queues it for writing. Invalid messages are rejected before anything is queued.
func (c *Connection) Send(ctx context.Context, msg models.Outgoing) error {
	frame, err := codec.EncodeOutgoing(msg)
	if err != nil {
		return err
	}
	// A closed connection must never accept a frame, even with room left in the outbox.
	select {
	case <-c.done:
		return ErrConnectionClosed
	default:
	}
	select {
	case c.outbox <- frame:
		return nil
	case <-c.done:
		return ErrConnectionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Connection) Handle(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer func() {
		close(c.done)
		close(c.fromServer)
		close(c.errorCh)
	}()

	slog.Info("websocket connected", "conn_id", c.ID)

	var wg sync.WaitGroup
	wg.Go(func() {
		c.errorCh <- c.pumpMessages(ctx)
		cancel()
	})

	wg.Go(func() {
		c.errorCh <- c.mainLoop(ctx)
		cancel()
	})

	var err error
	select {
	case err = <-c.errorCh:
	case <-ctx.Done():
	}
	_ = c.ws.Close()
	wg.Wait()

	slog.Info("websocket disconnected", "conn_id", c.ID, "error", err)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	return nil
}

func (c *Connection) pumpMessages(ctx context.Context) error {
	for {
		messageType, data, err := c.ws.ReadMessage()
		if err != nil {
			return err
		}
		if messageType != websocket.TextMessage {
			continue
		}
		select {
		case c.fromServer <- data:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Connection) mainLoop(ctx context.Context) error {
	ticker := time.NewTicker(c.pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case frame := <-c.fromServer:
			c.handler.HandleFrame(frame)
		case frame := <-c.outbox:
			if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				return err
			}
		case <-ticker.C:
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return err
			}
		case <-ctx.Done():
			return nil
		}
	}
}
