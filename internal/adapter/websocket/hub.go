package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/brainwavecollective/vibe-eyes/internal/adapter/metrics"
	"github.com/brainwavecollective/vibe-eyes/internal/domain"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	defaultMaxClients = 50
	sendBuffer        = 16
	writeTimeout      = 5 * time.Second
)

// ErrHubStopped is returned by hub operations after Stop.
var ErrHubStopped = errors.New("websocket hub stopped")

// --- Command types ---

type hubCmd interface{ hubCmd() }

type cmdRegister struct {
	id    uuid.UUID
	conn  *websocket.Conn
	errCh chan error
}

func (cmdRegister) hubCmd() {}

type cmdUnregister struct {
	id uuid.UUID
}

func (cmdUnregister) hubCmd() {}

type cmdBroadcast struct {
	data []byte
}

func (cmdBroadcast) hubCmd() {}

type cmdClientCount struct {
	replyCh chan int
}

func (cmdClientCount) hubCmd() {}

type cmdStop struct{}

func (cmdStop) hubCmd() {}

// --- Per-connection writer ---

type clientWriter struct {
	conn   *websocket.Conn
	sendCh chan []byte
	done   chan struct{}
}

func newClientWriter(conn *websocket.Conn) *clientWriter {
	cw := &clientWriter{
		conn:   conn,
		sendCh: make(chan []byte, sendBuffer),
		done:   make(chan struct{}),
	}
	go cw.run()
	return cw
}

func (cw *clientWriter) run() {
	for {
		select {
		case msg := <-cw.sendCh:
			_ = cw.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := cw.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-cw.done:
			return
		}
	}
}

func (cw *clientWriter) stop() {
	close(cw.done)
	_ = cw.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(time.Second))
	cw.conn.Close()
}

// --- Hub ---

// Hub fans frames out to every connected websocket client. All state is owned
// by a single actor goroutine; the public methods send it commands.
type Hub struct {
	cmdCh      chan hubCmd
	stopped    chan struct{}
	clients    map[uuid.UUID]*clientWriter
	maxClients int
	metrics    *metrics.WebSocketMetrics
}

type HubOption func(*Hub)

// WithMaxClients caps the number of simultaneous clients.
func WithMaxClients(n int) HubOption {
	return func(h *Hub) {
		if n > 0 {
			h.maxClients = n
		}
	}
}

// WithMetrics records connection and delivery counts.
func WithMetrics(m *metrics.WebSocketMetrics) HubOption {
	return func(h *Hub) { h.metrics = m }
}

func NewHub(opts ...HubOption) *Hub {
	hub := &Hub{
		cmdCh:      make(chan hubCmd, 256),
		stopped:    make(chan struct{}),
		clients:    make(map[uuid.UUID]*clientWriter),
		maxClients: defaultMaxClients,
	}
	for _, opt := range opts {
		opt(hub)
	}
	go hub.run()
	return hub
}

func (h *Hub) run() {
	defer close(h.stopped)
	for cmd := range h.cmdCh {
		switch c := cmd.(type) {
		case cmdRegister:
			h.handleRegister(c)
		case cmdUnregister:
			h.handleUnregister(c.id)
		case cmdBroadcast:
			h.handleBroadcast(c)
		case cmdClientCount:
			c.replyCh <- len(h.clients)
		case cmdStop:
			h.handleStop()
			return
		}
	}
}

func (h *Hub) handleRegister(c cmdRegister) {
	if len(h.clients) >= h.maxClients {
		slog.Warn("Rejecting websocket client", "client_id", c.id, "max_clients", h.maxClients)
		c.conn.Close()
		c.errCh <- fmt.Errorf("max clients (%d) reached", h.maxClients)
		return
	}
	h.clients[c.id] = newClientWriter(c.conn)
	h.setActive()
	slog.Debug("Websocket client registered", "client_id", c.id, "clients", len(h.clients))
	c.errCh <- nil
}

func (h *Hub) handleUnregister(id uuid.UUID) {
	cw, exists := h.clients[id]
	if !exists {
		return
	}
	cw.stop()
	delete(h.clients, id)
	h.setActive()
	slog.Debug("Websocket client unregistered", "client_id", id, "clients", len(h.clients))
}

func (h *Hub) handleBroadcast(c cmdBroadcast) {
	var slow []uuid.UUID
	for id, cw := range h.clients {
		select {
		case cw.sendCh <- c.data:
			if h.metrics != nil {
				h.metrics.MessagesPublished.Inc()
			}
		default:
			slow = append(slow, id)
		}
	}

	for _, id := range slow {
		slog.Warn("Disconnecting slow websocket client", "client_id", id)
		if h.metrics != nil {
			h.metrics.MessagesDropped.Inc()
		}
		h.handleUnregister(id)
	}
}

func (h *Hub) handleStop() {
	for id, cw := range h.clients {
		cw.stop()
		delete(h.clients, id)
	}
	h.setActive()
}

func (h *Hub) setActive() {
	if h.metrics != nil {
		h.metrics.ActiveConnections.Set(float64(len(h.clients)))
	}
}

// send delivers a command unless the hub has stopped or ctx is done.
func (h *Hub) send(ctx context.Context, cmd hubCmd) error {
	select {
	case <-h.stopped:
		return ErrHubStopped
	default:
	}
	select {
	case h.cmdCh <- cmd:
		return nil
	case <-h.stopped:
		return ErrHubStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// --- Public API ---

// Register adds conn under id. The hub owns conn afterwards and closes it on
// unregister, slow delivery or Stop.
func (h *Hub) Register(id uuid.UUID, conn *websocket.Conn) error {
	errCh := make(chan error, 1)
	if err := h.send(context.Background(), cmdRegister{id: id, conn: conn, errCh: errCh}); err != nil {
		conn.Close()
		return err
	}
	select {
	case err := <-errCh:
		return err
	case <-h.stopped:
		return ErrHubStopped
	}
}

func (h *Hub) Unregister(id uuid.UUID) {
	_ = h.send(context.Background(), cmdUnregister{id: id})
}

// Emit implements domain.FrameEmitter by broadcasting the frame as JSON.
func (h *Hub) Emit(ctx context.Context, frame domain.Frame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("failed to marshal frame: %w", err)
	}
	return h.send(ctx, cmdBroadcast{data: data})
}

func (h *Hub) ClientCount() int {
	replyCh := make(chan int, 1)
	if err := h.send(context.Background(), cmdClientCount{replyCh: replyCh}); err != nil {
		return 0
	}
	select {
	case n := <-replyCh:
		return n
	case <-h.stopped:
		return 0
	}
}

// Stop disconnects every client and ends the actor. It is safe to call more than once.
func (h *Hub) Stop() {
	_ = h.send(context.Background(), cmdStop{})
	<-h.stopped
}
