// Package notifier доставляет уведомления о результатах редактирования
// подключенным клиентам по WebSocket.
package notifier

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Client представляет собой одно WebSocket соединение с идентификатором пользователя.
type Client struct {
	UserID string
	Conn   *websocket.Conn
	send   chan []byte // Канал для отправки сообщений этому клиенту
}

// EditNotification сообщение клиенту о смене статуса изображения.
type EditNotification struct {
	Type         string  `json:"type"` // "edit_result"
	TaskID       string  `json:"taskId"`
	ImageID      string  `json:"imageId"`
	ProjectID    string  `json:"projectId"`
	Status       string  `json:"status"`
	ResultURL    *string `json:"resultUrl,omitempty"`
	ErrorMessage *string `json:"errorMessage,omitempty"`
}

// ConnectionManager управляет активными WebSocket соединениями.
type ConnectionManager struct {
	clients    map[string]*Client // Карта userID -> Client
	register   chan *Client
	unregister chan string
	mu         sync.RWMutex
	logger     *zap.Logger
}

// NewConnectionManager создает и запускает новый менеджер соединений.
func NewConnectionManager(logger *zap.Logger) *ConnectionManager {
	m := &ConnectionManager{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan string),
		logger:     logger.Named("ConnectionManager"),
	}
	go m.run() // Запускаем цикл управления в отдельной горутине
	return m
}

// run обрабатывает регистрацию/дерегистрацию клиентов.
func (m *ConnectionManager) run() {
	m.logger.Info("ConnectionManager started")
	for {
		select {
		case client := <-m.register:
			m.mu.Lock()
			// Если клиент с таким UserID уже есть, закрываем старое соединение
			if oldClient, ok := m.clients[client.UserID]; ok {
				m.logger.Info("Closing previous connection for user", zap.String("userID", client.UserID))
				close(oldClient.send)
				_ = oldClient.Conn.Close()
			}
			m.clients[client.UserID] = client
			m.mu.Unlock()
			m.logger.Info("Client registered", zap.String("userID", client.UserID))

		case userID := <-m.unregister:
			m.mu.Lock()
			if client, ok := m.clients[userID]; ok {
				delete(m.clients, userID)
				close(client.send)
				// Соединение закрывается в readPump клиента
			}
			m.mu.Unlock()
			m.logger.Info("Client unregistered", zap.String("userID", userID))
		}
	}
}

// RegisterClient регистрирует нового клиента.
func (m *ConnectionManager) RegisterClient(client *Client) {
	m.register <- client
}

// UnregisterClient удаляет клиента.
func (m *ConnectionManager) UnregisterClient(userID string) {
	m.unregister <- userID
}

// SendToUser отправляет сообщение конкретному пользователю.
// Возвращает true, если пользователь онлайн и сообщение поставлено в очередь.
func (m *ConnectionManager) SendToUser(userID string, message []byte) bool {
	m.mu.RLock()
	client, ok := m.clients[userID]
	m.mu.RUnlock()

	if !ok {
		m.logger.Debug("User is offline, notification dropped", zap.String("userID", userID))
		return false
	}

	select {
	case client.send <- message:
		return true
	default:
		// Канал переполнен или закрыт (клиент отключается)
		m.logger.Warn("Failed to queue message: send buffer full or client disconnecting",
			zap.String("userID", userID))
		return false
	}
}

// Notify сериализует уведомление и отправляет его пользователю.
func (m *ConnectionManager) Notify(userID string, n EditNotification) bool {
	data, err := json.Marshal(n)
	if err != nil {
		m.logger.Error("Failed to marshal notification", zap.Error(err))
		return false
	}
	return m.SendToUser(userID, data)
}
