// SPDX-License-Identifier: MIT
package transport

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	applog "spectro/internal/log"
	"spectro/internal/pipeline"
)

// broadcastQueueDepth bounds snapshots waiting for slow clients. When
// the queue is full, new snapshots are dropped; spectrum frames are
// ephemeral and a stale one has no value.
const broadcastQueueDepth = 64

// WebSocketBroadcaster serves display snapshots as JSON over a
// WebSocket endpoint at /spectrum. Every connected client receives
// every broadcast; a client that errors on write is dropped.
type WebSocketBroadcaster struct {
	addr      string
	upgrader  websocket.Upgrader
	clients   map[*websocket.Conn]bool
	clientsMu sync.Mutex
	broadcast chan *pipeline.Snapshot
	server    *http.Server
}

// NewWebSocketBroadcaster creates a broadcaster and starts its HTTP
// server on addr immediately.
func NewWebSocketBroadcaster(addr string) *WebSocketBroadcaster {
	b := &WebSocketBroadcaster{
		addr: addr,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Local visualization tool; any origin may connect.
				return true
			},
		},
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan *pipeline.Snapshot, broadcastQueueDepth),
	}
	b.start()
	return b
}

func (b *WebSocketBroadcaster) start() {
	mux := http.NewServeMux()
	mux.HandleFunc("/spectrum", b.handleSpectrum)

	b.server = &http.Server{
		Addr:    b.addr,
		Handler: mux,
	}

	go func() {
		applog.Infof("WebSocket: serving /spectrum on %s", b.addr)
		if err := b.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			applog.Errorf("WebSocket: server error: %v", err)
		}
	}()

	go b.pump()
}

func (b *WebSocketBroadcaster) handleSpectrum(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		applog.Warnf("WebSocket: upgrade failed: %v", err)
		return
	}

	b.clientsMu.Lock()
	b.clients[conn] = true
	total := len(b.clients)
	b.clientsMu.Unlock()
	applog.Infof("WebSocket: client connected, total %d", total)

	// The protocol is one-way; the read loop only exists to notice the
	// client going away.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				b.drop(conn)
				return
			}
		}
	}()
}

func (b *WebSocketBroadcaster) drop(conn *websocket.Conn) {
	b.clientsMu.Lock()
	if _, ok := b.clients[conn]; ok {
		delete(b.clients, conn)
		applog.Infof("WebSocket: client disconnected, total %d", len(b.clients))
	}
	b.clientsMu.Unlock()
	conn.Close()
}

// pump fans queued snapshots out to every connected client.
func (b *WebSocketBroadcaster) pump() {
	for snap := range b.broadcast {
		b.clientsMu.Lock()
		for client := range b.clients {
			if err := client.WriteJSON(snap); err != nil {
				applog.Debugf("WebSocket: write failed, dropping client: %v", err)
				client.Close()
				delete(b.clients, client)
			}
		}
		b.clientsMu.Unlock()
	}
}

// Send queues a snapshot for broadcast. When the queue is full the
// snapshot is dropped rather than blocking the publisher.
func (b *WebSocketBroadcaster) Send(snap *pipeline.Snapshot) error {
	select {
	case b.broadcast <- snap:
	default:
	}
	return nil
}

// Close disconnects all clients and shuts the HTTP server down.
func (b *WebSocketBroadcaster) Close() error {
	b.clientsMu.Lock()
	for client := range b.clients {
		client.Close()
	}
	b.clients = make(map[*websocket.Conn]bool)
	b.clientsMu.Unlock()

	close(b.broadcast)
	if b.server != nil {
		return b.server.Close()
	}
	return nil
}

var _ Transport = (*WebSocketBroadcaster)(nil)
