package transport

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	applog "reactive/internal/log"
)

// WebSocketTransport broadcasts events to all connected clients. The
// visualization front-end connects here instead of polling audio.peek.
//
// Thread safety: a mutex protects the client map; broadcasts go through a
// buffered channel so Send never blocks the publish loop.
type WebSocketTransport struct {
	addr      string
	upgrader  websocket.Upgrader
	clients   map[*websocket.Conn]bool
	clientsMu sync.Mutex
	broadcast chan any
	server    *http.Server
	closeOnce sync.Once

	handlerMu sync.RWMutex
	handler   CommandHandler
}

// CommandHandler processes a client command and returns its response map.
type CommandHandler func(name string, args map[string]any) map[string]any

// commandRequest is the inbound client message shape. The id is echoed back
// so clients can match responses to requests.
type commandRequest struct {
	ID   int            `json:"id"`
	Cmd  string         `json:"cmd"`
	Args map[string]any `json:"args"`
}

type commandResponse struct {
	ID     int            `json:"id"`
	Result map[string]any `json:"result"`
}

var _ Transport = (*WebSocketTransport)(nil)

// NewWebSocketTransport creates the transport and starts its HTTP server on
// the given port. Clients connect to /events.
func NewWebSocketTransport(port string) *WebSocketTransport {
	t := &WebSocketTransport{
		addr: ":" + port,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // Local visualization clients only.
			},
		},
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan any, 256),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/events", t.handleWebSocket)
	t.server = &http.Server{Addr: t.addr, Handler: mux}

	go func() {
		applog.Infof("Transport: WebSocket event server listening on %s", t.addr)
		if err := t.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			applog.Errorf("Transport: WebSocket server error: %v", err)
		}
	}()
	go t.handleBroadcasts()

	return t
}

func (t *WebSocketTransport) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := t.upgrader.Upgrade(w, r, nil)
	if err != nil {
		applog.Errorf("Transport: WebSocket upgrade error: %v", err)
		return
	}

	t.clientsMu.Lock()
	t.clients[conn] = true
	total := len(t.clients)
	t.clientsMu.Unlock()
	applog.Debugf("Transport: client connected, total: %d", total)

	// The read loop dispatches client commands and detects disconnects.
	go func() {
		for {
			var req commandRequest
			if err := conn.ReadJSON(&req); err != nil {
				t.clientsMu.Lock()
				delete(t.clients, conn)
				t.clientsMu.Unlock()
				conn.Close()
				return
			}
			if req.Cmd == "" {
				continue
			}

			t.handlerMu.RLock()
			handler := t.handler
			t.handlerMu.RUnlock()
			if handler == nil {
				continue
			}

			result := handler(req.Cmd, req.Args)

			// Replies share the broadcast write lock so concurrent writes
			// never interleave on one connection.
			t.clientsMu.Lock()
			if t.clients[conn] {
				if err := conn.WriteJSON(commandResponse{ID: req.ID, Result: result}); err != nil {
					delete(t.clients, conn)
					conn.Close()
				}
			}
			t.clientsMu.Unlock()
		}
	}()
}

// SetCommandHandler installs the dispatcher for inbound client commands.
// Messages arriving before a handler is set are dropped.
func (t *WebSocketTransport) SetCommandHandler(handler CommandHandler) {
	t.handlerMu.Lock()
	t.handler = handler
	t.handlerMu.Unlock()
}

func (t *WebSocketTransport) handleBroadcasts() {
	for data := range t.broadcast {
		t.clientsMu.Lock()
		for client := range t.clients {
			if err := client.WriteJSON(data); err != nil {
				client.Close()
				delete(t.clients, client)
			}
		}
		t.clientsMu.Unlock()
	}
}

// Send queues data for broadcast. If the queue is full the event is dropped;
// consumers resynchronize via sequence numbers.
func (t *WebSocketTransport) Send(data any) error {
	select {
	case t.broadcast <- data:
	default:
	}
	return nil
}

// Close shuts down the server and all client connections. Idempotent.
func (t *WebSocketTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.broadcast)
		t.clientsMu.Lock()
		for client := range t.clients {
			client.Close()
			delete(t.clients, client)
		}
		t.clientsMu.Unlock()
		err = t.server.Close()
	})
	return err
}
