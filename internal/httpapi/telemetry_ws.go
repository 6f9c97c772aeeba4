package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/orrery-labs/inkframe/internal/telemetry"
)

// telemetryHub fans out Frame messages to every connected
// /api/telemetry/ws client. It implements actor.Sink so the
// application router can subscribe it to the "telemetry" topic the
// same way internal/telemetry.Store is subscribed, grounded on the
// teacher's internal/homeassistant.WSClient connection-management
// style (mutex-guarded writes, one send at a time per connection) but
// turned around server-side via gorilla/websocket's Upgrader.
type telemetryHub struct {
	mu     sync.Mutex
	conns  map[*websocket.Conn]struct{}
	logger *slog.Logger
}

func newTelemetryHub(logger *slog.Logger) *telemetryHub {
	return &telemetryHub{conns: make(map[*websocket.Conn]struct{}), logger: logger}
}

// Accept implements actor.Sink: it broadcasts any Frame to every
// connected client, dropping (and closing) any connection whose write
// fails.
func (h *telemetryHub) Accept(msg any) error {
	f, ok := msg.(telemetry.Frame)
	if !ok {
		return nil
	}
	data, err := json.Marshal(f)
	if err != nil {
		return nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.conns {
		if err := c.WriteMessage(websocket.TextMessage, data); err != nil {
			h.logger.Warn("telemetry ws: write failed, dropping client", "error", err)
			c.Close()
			delete(h.conns, c)
		}
	}
	return nil
}

func (h *telemetryHub) add(c *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[c] = struct{}{}
}

func (h *telemetryHub) remove(c *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, c)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// The GUI shell is served from the same origin as the API in
	// every deployment spec.md describes; cross-origin browser clients
	// are not a supported configuration.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleTelemetryWS upgrades the connection and registers it with the
// hub. It blocks reading (and discarding) client frames purely to
// detect disconnects; the hub pushes frames from the other direction.
func (s *Server) handleTelemetryWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("telemetry ws: upgrade failed", "error", err)
		return
	}
	s.telemetryHub.add(conn)
	defer func() {
		s.telemetryHub.remove(conn)
		conn.Close()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
