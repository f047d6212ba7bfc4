package web

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// FeedEvent is pushed to every live-feed client after a prediction.
type FeedEvent struct {
	Timestamp    time.Time `json:"timestamp"`
	RequestID    string    `json:"request_id,omitempty"`
	Variety      string    `json:"variety"`
	YieldKg      float64   `json:"yield_kg_per_palm"`
	ModelVersion string    `json:"model_version"`
	Outliers     []string  `json:"outliers,omitempty"`
}

// FeedMetrics is the subset of metrics the feed reports.
type FeedMetrics interface {
	FeedClientsSet(int)
}

// Feed streams prediction events to WebSocket clients. Publish never blocks
// the prediction path; events are dropped when the buffer is full.
type Feed struct {
	upgrader  websocket.Upgrader
	clients   map[*websocket.Conn]bool
	clientsMu sync.RWMutex
	events    chan FeedEvent
	stop      chan struct{}
	stopOnce  sync.Once
	metrics   FeedMetrics
}

func NewFeed(metrics FeedMetrics) *Feed {
	f := &Feed{
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		clients:  make(map[*websocket.Conn]bool),
		events:   make(chan FeedEvent, 100),
		stop:     make(chan struct{}),
		metrics:  metrics,
	}
	go f.broadcaster()
	return f
}

// Publish queues ev for broadcast.
func (f *Feed) Publish(ev FeedEvent) {
	select {
	case f.events <- ev:
	default:
		log.Debug().Msg("feed buffer full, dropping prediction event")
	}
}

// Clients returns the number of connected clients.
func (f *Feed) Clients() int {
	f.clientsMu.RLock()
	defer f.clientsMu.RUnlock()
	return len(f.clients)
}

// register adds conn unless the feed is closed. The stop check runs under
// clientsMu so a concurrent Close either sees the client or refuses it.
func (f *Feed) register(conn *websocket.Conn) bool {
	f.clientsMu.Lock()
	defer f.clientsMu.Unlock()

	select {
	case <-f.stop:
		return false
	default:
	}
	f.clients[conn] = true
	return true
}

// Close disconnects every client and stops the broadcaster.
func (f *Feed) Close() {
	f.stopOnce.Do(func() {
		close(f.stop)

		f.clientsMu.Lock()
		for client := range f.clients {
			client.Close()
		}
		f.clients = make(map[*websocket.Conn]bool)
		f.clientsMu.Unlock()
		f.reportClients()
	})
}

func (f *Feed) broadcaster() {
	for {
		select {
		case ev := <-f.events:
			f.broadcast(ev)
		case <-f.stop:
			return
		}
	}
}

func (f *Feed) broadcast(ev FeedEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal feed event")
		return
	}

	f.clientsMu.Lock()
	dropped := false
	for client := range f.clients {
		client.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := client.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Debug().Err(err).Msg("dropping feed client")
			client.Close()
			delete(f.clients, client)
			dropped = true
		}
	}
	f.clientsMu.Unlock()

	if dropped {
		f.reportClients()
	}
}

func (f *Feed) reportClients() {
	if f.metrics != nil {
		f.metrics.FeedClientsSet(f.Clients())
	}
}

// handleWebSocket upgrades the connection and keeps it registered until the
// client goes away.
func (f *Feed) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("failed to upgrade feed connection")
		return
	}

	if !f.register(conn) {
		conn.Close()
		return
	}
	f.reportClients()

	defer func() {
		f.clientsMu.Lock()
		if f.clients[conn] {
			delete(f.clients, conn)
			conn.Close()
		}
		f.clientsMu.Unlock()
		f.reportClients()
	}()

	// Clients only listen; reading detects the disconnect.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
