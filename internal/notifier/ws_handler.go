package notifier

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// Время, разрешенное для записи сообщения клиенту.
	writeWait = 10 * time.Second
	// Время, разрешенное для чтения следующего pong сообщения от клиента.
	pongWait = 60 * time.Second
	// Отправлять пинги клиенту с этим периодом. Должно быть меньше pongWait.
	pingPeriod = (pongWait * 9) / 10
	// Максимальный размер сообщения, разрешенный от клиента.
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origin проверяется CORS-слоем API
		return true
	},
}

// WebSocketHandler обрабатывает запросы на установку WebSocket соединения.
type WebSocketHandler struct {
	manager *ConnectionManager
	logger  *zap.Logger
}

// NewWebSocketHandler создает новый обработчик WebSocket.
func NewWebSocketHandler(manager *ConnectionManager, logger *zap.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		manager: manager,
		logger:  logger.Named("WebSocketHandler"),
	}
}

// ServeWS обрабатывает входящий HTTP запрос для WebSocket. Идентификатор
// пользователя приходит от вышестоящего auth-прокси в заголовке X-User-ID
// (или query-параметром user_id для локальной разработки).
func (h *WebSocketHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		userID = r.URL.Query().Get("user_id")
	}
	if userID == "" {
		h.logger.Warn("Missing user identifier for WebSocket connection")
		http.Error(w, "Unauthorized: missing user id", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade connection", zap.String("userID", userID), zap.Error(err))
		// Не пишем ошибку в http.ResponseWriter, так как upgrader уже это сделал
		return
	}

	h.logger.Info("WebSocket connection established", zap.String("userID", userID))

	client := &Client{
		UserID: userID,
		Conn:   conn,
		send:   make(chan []byte, 256), // Буферизованный канал для отправки
	}

	h.manager.RegisterClient(client)

	go client.writePump(h.logger.With(zap.String("userID", userID)))
	go client.readPump(h.manager, h.logger.With(zap.String("userID", userID)))
}

// readPump откачивает сообщения от WebSocket соединения. Клиентские
// сообщения игнорируются: канал уведомлений односторонний.
func (c *Client) readPump(manager *ConnectionManager, logger *zap.Logger) {
	defer func() {
		manager.UnregisterClient(c.UserID)
		_ = c.Conn.Close()
	}()
	c.Conn.SetReadLimit(maxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn("WebSocket read error", zap.Error(err))
			} else {
				logger.Info("WebSocket connection closed")
			}
			break
		}
		logger.Warn("Received unexpected message from client (ignored)", zap.ByteString("message", message))
	}
}

// writePump откачивает сообщения из канала send в WebSocket соединение.
func (c *Client) writePump(logger *zap.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case message, ok := <-c.send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				logger.Error("Failed to write message", zap.Error(err))
				return
			}

		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				logger.Warn("Failed to send ping", zap.Error(err))
				return
			}
		}
	}
}
