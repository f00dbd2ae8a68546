package httpapi

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/sudoku-arena/arena-api/internal/app/metrics"
	"github.com/sudoku-arena/arena-api/internal/app/services/sudokus"
	"github.com/sudoku-arena/arena-api/internal/middleware"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsPingInterval = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// origin policy is enforced by the CORS middleware in front
	CheckOrigin: func(*http.Request) bool { return true },
}

// statusStream upgrades to WebSocket and forwards solver status events for
// one puzzle until the client disconnects.
func (h *handler) statusStream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := mux.Vars(r)["id"]

	// visibility check before upgrading
	status, err := h.app.Sudokus.Status(ctx, middleware.GetUserID(ctx), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	events, unsubscribe, err := h.app.Publisher.Subscribe(ctx, sudokus.StatusChannel(id))
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	defer unsubscribe()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	metrics.WebSocketOpened()
	defer metrics.WebSocketClosed()

	// current status first so late subscribers do not miss the final state
	initial := sudokus.StatusEvent{SudokuID: id, Status: status}
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	if err := conn.WriteJSON(initial); err != nil {
		return
	}

	// drain reads so close frames and pongs are processed
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(wsPingInterval)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-events:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, raw); err != nil {
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
