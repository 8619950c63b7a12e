package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/earnings-extractor/client/internal/models"
)

// WebSocket message types
const (
	// Client -> Server messages
	MsgTypePing = "ping"

	// Server -> Client messages
	MsgTypeState      = "state"
	MsgTypeProcessing = "processing"
	MsgTypeHistory    = "history"
	MsgTypePong       = "pong"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsSendBuffer   = 16
)

// StateMessage carries both panels. It is the body of GET /state and of
// every websocket push.
type StateMessage struct {
	Type           string                    `json:"type,omitempty"`
	Processing     models.ProcessingSnapshot `json:"processing"`
	History        models.HistoryView        `json:"history"`
	HistoryLoading bool                      `json:"historyLoading"`
	Timestamp      int64                     `json:"timestamp"`
}

// clientMessage is what browsers send.
type clientMessage struct {
	Type string `json:"type"`
}

type wsClient struct {
	conn *websocket.Conn
	send chan StateMessage
}

// WebSocketHandler pushes a StateMessage to every connected browser after
// each transition of either controller.
type WebSocketHandler struct {
	processing ProcessingService
	history    HistoryService
	logger     zerolog.Logger
	upgrader   websocket.Upgrader

	mu      sync.Mutex
	clients map[*wsClient]struct{}
	unsubs  []func()
}

// NewWebSocketHandler creates the handler and subscribes it to both
// controllers. Call Close to unsubscribe.
func NewWebSocketHandler(proc ProcessingService, hist HistoryService, logger zerolog.Logger) *WebSocketHandler {
	wsh := &WebSocketHandler{
		processing: proc,
		history:    hist,
		logger:     logger,
		upgrader: websocket.Upgrader{
			// the UI is served from the same local origin
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 64 * 1024,
		},
		clients: make(map[*wsClient]struct{}),
	}

	wsh.unsubs = append(wsh.unsubs,
		proc.Subscribe(func(snap models.ProcessingSnapshot) {
			wsh.broadcast(StateMessage{
				Type:           MsgTypeProcessing,
				Processing:     snap,
				History:        hist.View(),
				HistoryLoading: hist.Loading(),
				Timestamp:      time.Now().UnixMilli(),
			})
		}),
		hist.Subscribe(func(view models.HistoryView) {
			wsh.broadcast(StateMessage{
				Type:           MsgTypeHistory,
				Processing:     proc.Snapshot(),
				History:        view,
				HistoryLoading: hist.Loading(),
				Timestamp:      time.Now().UnixMilli(),
			})
		}),
	)
	return wsh
}

// HandleGetState returns the current state of both panels.
func (wsh *WebSocketHandler) HandleGetState(c echo.Context) error {
	return c.JSON(http.StatusOK, wsh.current(""))
}

// HandleWebSocket upgrades the connection, sends the current state and
// then forwards every transition until the client goes away.
func (wsh *WebSocketHandler) HandleWebSocket(c echo.Context) error {
	conn, err := wsh.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	client := &wsClient{
		conn: conn,
		send: make(chan StateMessage, wsSendBuffer),
	}

	wsh.mu.Lock()
	wsh.clients[client] = struct{}{}
	wsh.mu.Unlock()

	wsh.logger.Debug().Str("remote", c.RealIP()).Msg("websocket client connected")

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		wsh.writeLoop(client)
	}()

	wsh.enqueue(client, wsh.current(MsgTypeState))

	for {
		var msg clientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsh.logger.Warn().Err(err).Msg("websocket connection error")
			}
			break
		}
		if msg.Type == MsgTypePing {
			wsh.enqueue(client, StateMessage{Type: MsgTypePong, Timestamp: time.Now().UnixMilli()})
		}
	}

	wsh.remove(client)
	<-writerDone
	wsh.logger.Debug().Msg("websocket client disconnected")
	return nil
}

// Clients returns the number of connected browsers.
func (wsh *WebSocketHandler) Clients() int {
	wsh.mu.Lock()
	defer wsh.mu.Unlock()
	return len(wsh.clients)
}

// Close unsubscribes from the controllers and disconnects every client.
func (wsh *WebSocketHandler) Close() {
	wsh.mu.Lock()
	unsubs := wsh.unsubs
	wsh.unsubs = nil
	for client := range wsh.clients {
		delete(wsh.clients, client)
		close(client.send)
	}
	wsh.mu.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}
}

func (wsh *WebSocketHandler) current(msgType string) StateMessage {
	return StateMessage{
		Type:           msgType,
		Processing:     wsh.processing.Snapshot(),
		History:        wsh.history.View(),
		HistoryLoading: wsh.history.Loading(),
		Timestamp:      time.Now().UnixMilli(),
	}
}

func (wsh *WebSocketHandler) writeLoop(client *wsClient) {
	defer client.conn.Close()
	for msg := range client.send {
		client.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := client.conn.WriteJSON(msg); err != nil {
			wsh.logger.Debug().Err(err).Msg("websocket write failed")
			// closing unblocks the reader, which then removes the client
			client.conn.Close()
			for range client.send {
			}
			return
		}
	}
	client.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(wsWriteTimeout))
}

// broadcast drops clients whose buffer is full.
func (wsh *WebSocketHandler) broadcast(msg StateMessage) {
	wsh.mu.Lock()
	defer wsh.mu.Unlock()

	for client := range wsh.clients {
		select {
		case client.send <- msg:
		default:
			wsh.logger.Warn().Msg("dropping slow websocket client")
			delete(wsh.clients, client)
			close(client.send)
		}
	}
}

func (wsh *WebSocketHandler) enqueue(client *wsClient, msg StateMessage) {
	wsh.mu.Lock()
	defer wsh.mu.Unlock()

	if _, ok := wsh.clients[client]; !ok {
		return
	}
	select {
	case client.send <- msg:
	default:
		delete(wsh.clients, client)
		close(client.send)
	}
}

func (wsh *WebSocketHandler) remove(client *wsClient) {
	wsh.mu.Lock()
	defer wsh.mu.Unlock()

	if _, ok := wsh.clients[client]; ok {
		delete(wsh.clients, client)
		close(client.send)
	}
}
