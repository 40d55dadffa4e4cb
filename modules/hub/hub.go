// Package hub is the websocket message bus between the service, its UI and
// the audio engine. Delivery is best-effort.
package hub

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/grafana/dskit/services"

	"github.com/zachfi/nowplaying/pkg/metadata"
)

const module = "hub"

type client struct {
	id   string
	conn *websocket.Conn
	send chan Message
}

type Hub struct {
	services.Service
	cfg    Config
	logger *slog.Logger

	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}

	inbox   chan Envelope
	stopped chan struct{}
}

func New(cfg Config, logger slog.Logger) (*Hub, error) {
	cfg.applyDefaults()

	h := &Hub{
		cfg:    cfg,
		logger: logger.With("module", module),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     cfg.checkOrigin,
		},
		clients: make(map[*client]struct{}),
		inbox:   make(chan Envelope, cfg.InboxBuffer),
		stopped: make(chan struct{}),
	}

	h.Service = services.NewBasicService(nil, h.running, h.stopping)

	return h, nil
}

func (cfg Config) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	for _, prefix := range cfg.AllowedOrigins {
		if strings.HasPrefix(origin, prefix) {
			return true
		}
	}

	return false
}

// Envelopes returns the inbound message channel.
func (h *Hub) Envelopes() <-chan Envelope {
	return h.inbox
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) running(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

func (h *Hub) stopping(_ error) error {
	close(h.stopped)

	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		h.removeLocked(c)
	}

	h.logger.Info("stopped")
	return nil
}

// ServeHTTP upgrades the request and serves the client until it
// disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "err", err)
		return
	}

	c := &client{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan Message, h.cfg.SendBuffer),
	}

	if !h.add(c) {
		_ = conn.Close()
		return
	}
	defer h.remove(c)

	go h.writer(c)

	h.logger.Debug("client connected", "client", c.id, "remote", r.RemoteAddr)

	for {
		var m Message
		if err := conn.ReadJSON(&m); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("client read failed", "client", c.id, "err", err)
			}
			return
		}

		if m.Type == "" {
			continue
		}
		metricMessages.WithLabelValues("in", string(m.Type)).Inc()

		env := Envelope{
			Message: m,
			From:    c.id,
			Reply:   func(resp Message) { h.sendTo(c, resp) },
		}

		select {
		case h.inbox <- env:
		case <-h.stopped:
			return
		}
	}
}

func (h *Hub) writer(c *client) {
	ticker := time.NewTicker(h.cfg.PingInterval)
	defer ticker.Stop()
	defer c.conn.Close()

	for {
		select {
		case m, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}

			if err := c.conn.WriteJSON(m); err != nil {
				h.logger.Debug("client write failed", "client", c.id, "err", err)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) add(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	select {
	case <-h.stopped:
		return false
	default:
	}

	h.clients[c] = struct{}{}
	metricClients.Inc()
	return true
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

func (h *Hub) removeLocked(c *client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
	metricClients.Dec()
}

// Broadcast queues m for every connected client. Clients whose queue is full
// miss the message.
func (h *Hub) Broadcast(m Message) {
	h.broadcast(m, "")
}

// Forward relays an inbound message to every client except its sender.
func (h *Hub) Forward(env Envelope) {
	h.broadcast(env.Message, env.From)
}

func (h *Hub) broadcast(m Message, except string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	metricMessages.WithLabelValues("out", string(m.Type)).Inc()

	for c := range h.clients {
		if c.id == except {
			continue
		}
		h.queueLocked(c, m)
	}
}

func (h *Hub) sendTo(c *client, m Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c]; !ok {
		return
	}
	metricMessages.WithLabelValues("out", string(m.Type)).Inc()
	h.queueLocked(c, m)
}

func (h *Hub) queueLocked(c *client, m Message) {
	select {
	case c.send <- m:
	default:
		metricDropped.Inc()
		h.logger.Debug("client queue full, dropping message", "client", c.id, "type", m.Type)
	}
}

// MetadataUpdate tells the UI about a new now playing value. A nil res
// clears the display.
func (h *Hub) MetadataUpdate(res *metadata.Result, station metadata.Station) {
	h.Broadcast(Message{Type: MetadataUpdate, Metadata: res, Station: &station})
}

func (h *Hub) StationChanged(station metadata.Station) {
	h.Broadcast(Message{Type: StationChanged, Station: &station})
}

func (h *Hub) PlayAudio(station metadata.Station) {
	h.Broadcast(Message{Type: PlayAudio, Station: &station})
}

func (h *Hub) PauseAudio() {
	h.Broadcast(Message{Type: PauseAudio})
}

func (h *Hub) StopAudio() {
	h.Broadcast(Message{Type: StopAudio})
}

func (h *Hub) SetVolume(v float64) {
	h.Broadcast(Message{Type: SetVolume, Volume: &v})
}
