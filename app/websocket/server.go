package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"RestoPOS/app/models"
	"RestoPOS/app/services"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/grandcat/zeroconf"
)

// MessageType represents the type of WebSocket message
type MessageType string

const (
	TypeOrderNew       MessageType = "order_new"
	TypeOrderUpdate    MessageType = "order_update"
	TypeOrderReady     MessageType = "order_ready"
	TypeOrderCancelled MessageType = "order_cancelled"
	TypeTableUpdate    MessageType = "table_update"
	TypeKitchenOrder   MessageType = "kitchen_order"
	TypeKitchenUpdate  MessageType = "kitchen_update" // kitchen moves an order to PREPARING or READY
	TypeStockAlert     MessageType = "stock_alert"
	TypeShiftUpdate    MessageType = "shift_update"
	TypeSnapshot       MessageType = "snapshot"
	TypeNotification   MessageType = "notification"
	TypeHeartbeat      MessageType = "heartbeat"
	TypeAuthResponse   MessageType = "auth_response"
)

// ClientType represents the type of connected client
type ClientType string

const (
	ClientPOS     ClientType = "pos"
	ClientKitchen ClientType = "kitchen"
	ClientWaiter  ClientType = "waiter"
)

// Message represents a WebSocket message
type Message struct {
	Type      MessageType     `json:"type"`
	ClientID  string          `json:"client_id,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// Client represents a connected WebSocket client
type Client struct {
	ID          string
	Type        ClientType
	Connection  *websocket.Conn
	Send        chan []byte
	Server      *Server
	ConnectedAt time.Time
	RemoteAddr  string
}

// Options configures the LAN server
type Options struct {
	Port           int
	AllowedOrigins []string
	PublicURL      string
	EnableMDNS     bool
}

// Server is the LAN hub for POS, kitchen and waiter clients. It serves the
// REST API and forwards committed store events to the connected clients.
type Server struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	upgrader   websocket.Upgrader
	mu         sync.RWMutex

	opts   Options
	store  *services.Store
	logger *services.LoggerService
	rest   *RESTHandlers

	httpServer *http.Server
	done       chan struct{} // closed when the hub loop exits
}

// NewServer creates a new WebSocket server on top of store
func NewServer(opts Options, store *services.Store, logger *services.LoggerService, deps Dependencies) *Server {
	s := &Server{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		opts:       opts,
		store:      store,
		logger:     logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// Allow connections from local network
				return true
			},
		},
	}
	s.rest = NewRESTHandlers(store, s, logger, opts.PublicURL, deps)
	return s
}

// Handler returns the HTTP handler serving /ws, /health, /metrics and the REST API
func (s *Server) Handler() http.Handler {
	return s.rest.Router(s.opts.AllowedOrigins)
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	go s.run(ctx)

	if s.opts.EnableMDNS {
		go s.startMDNS(ctx)
	}

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.opts.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logInfo("WebSocket server starting", fmt.Sprintf("port=%d", s.opts.Port))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := s.httpServer.Shutdown(shutdownCtx)
	s.closeClients()
	return err
}

// startMDNS announces the POS server via mDNS/Zeroconf
func (s *Server) startMDNS(ctx context.Context) {
	server, err := zeroconf.Register(
		"RestoPOS Server",       // Service instance name
		"_posserver._tcp",       // Service type
		"local.",                // Domain
		s.opts.Port,             // Port
		[]string{"version=2.0"}, // TXT records
		nil,                     // Network interfaces (nil = all)
	)
	if err != nil {
		s.logError("mDNS: Failed to register service", err)
		return
	}
	s.logInfo("mDNS: POS Server announced on _posserver._tcp.local")

	<-ctx.Done()
	server.Shutdown()
	s.logInfo("mDNS: Service announcement stopped")
}

// closeClients drops every connection. Send channels stay open because the
// read pumps may still reply while they wind down.
func (s *Server) closeClients() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, client := range s.clients {
		client.Connection.Close()
		delete(s.clients, id)
	}
}

// run handles the main server loop
func (s *Server) run(ctx context.Context) {
	defer close(s.done)
	ticker := time.NewTicker(30 * time.Second) // Heartbeat every 30 seconds
	defer ticker.Stop()

	for {
		select {
		case client := <-s.register:
			s.mu.Lock()
			s.clients[client.ID] = client
			s.mu.Unlock()
			s.logInfo("Client registered", fmt.Sprintf("id=%s type=%s", client.ID, client.Type))
			s.sendAuthResponse(client, true, "Connected successfully")

		case client := <-s.unregister:
			s.mu.Lock()
			if _, ok := s.clients[client.ID]; ok {
				delete(s.clients, client.ID)
				close(client.Send)
				s.logInfo("Client unregistered", client.ID)
			}
			s.mu.Unlock()

		case <-ticker.C:
			s.sendHeartbeat()

		case <-ctx.Done():
			return
		}
	}
}

// handleWebSocket handles WebSocket connection upgrades
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	clientType := ClientType(r.URL.Query().Get("type"))
	switch clientType {
	case ClientPOS, ClientKitchen, ClientWaiter:
	default:
		clientType = ClientPOS
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logError("WebSocket upgrade error", err)
		return
	}

	client := &Client{
		ID:          uuid.NewString(),
		Type:        clientType,
		Connection:  conn,
		Send:        make(chan []byte, 256),
		Server:      s,
		ConnectedAt: time.Now(),
		RemoteAddr:  r.RemoteAddr,
	}

	select {
	case s.register <- client:
	case <-s.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// readPump handles reading messages from the client
func (c *Client) readPump() {
	defer func() {
		select {
		case c.Server.unregister <- c:
		case <-c.Server.done:
		}
		c.Connection.Close()
	}()

	c.Connection.SetReadLimit(64 * 1024)
	c.Connection.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.Connection.SetPongHandler(func(string) error {
		c.Connection.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, messageBytes, err := c.Connection.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Server.logError("WebSocket error", err)
			}
			break
		}

		var message Message
		if err := json.Unmarshal(messageBytes, &message); err != nil {
			c.Server.logWarning("Error parsing message", err.Error())
			continue
		}
		c.handleMessage(&message)
	}
}

// writePump handles writing messages to the client
func (c *Client) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.Connection.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Connection.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.Connection.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Connection.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.Connection.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.Connection.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.Server.done:
			return
		}
	}
}

// KitchenUpdateData is sent by kitchen clients to move an order along
type KitchenUpdateData struct {
	OrderID string             `json:"order_id"`
	Status  models.OrderStatus `json:"status"`
}

// handleMessage handles incoming messages from clients
func (c *Client) handleMessage(message *Message) {
	switch message.Type {
	case TypeHeartbeat:
		c.sendMessage(Message{
			Type:      TypeHeartbeat,
			Timestamp: time.Now(),
			Data:      json.RawMessage(`{"status":"alive"}`),
		})

	case TypeKitchenUpdate:
		if c.Type != ClientKitchen {
			c.Server.logWarning("Kitchen update from non kitchen client", c.ID)
			return
		}
		c.handleKitchenUpdate(message)

	default:
		c.Server.logWarning("Unknown message type", string(message.Type))
	}
}

// handleKitchenUpdate applies a kitchen status change through the store. The
// resulting event reaches every client through Notify.
func (c *Client) handleKitchenUpdate(message *Message) {
	var data KitchenUpdateData
	if err := json.Unmarshal(message.Data, &data); err != nil {
		c.Server.logWarning("Error parsing kitchen update", err.Error())
		return
	}
	if data.Status != models.OrderStatusPreparing && data.Status != models.OrderStatusReady {
		c.sendNotification(fmt.Sprintf("kitchen may not set status %s", data.Status))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	result, err := c.Server.store.UpdateOrderStatus(ctx, data.OrderID, data.Status)
	if err != nil {
		c.sendNotification(err.Error())
		return
	}
	if !result.Changed() {
		c.sendNotification(result.Message)
	}
}

func (c *Client) sendNotification(text string) {
	data, _ := json.Marshal(map[string]string{"message": text})
	c.sendMessage(Message{Type: TypeNotification, Timestamp: time.Now(), Data: data})
}

// sendMessage sends a message to the client
func (c *Client) sendMessage(message Message) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}

	select {
	case c.Send <- data:
		return nil
	default:
		return fmt.Errorf("client send channel is full")
	}
}

// Notify forwards a committed store event to the interested clients
func (s *Server) Notify(event services.Event) {
	message, targets := routeEvent(event)
	if message.Type == "" {
		return
	}
	s.broadcastTo(message, targets...)
}

// routeEvent maps a store event to a message and the client types that get it.
// No targets means everyone.
func routeEvent(event services.Event) (Message, []ClientType) {
	data, err := json.Marshal(event)
	if err != nil {
		return Message{}, nil
	}
	message := Message{Timestamp: event.At, Data: data}

	switch event.Type {
	case services.EventOrderCreated:
		message.Type = TypeOrderNew
		return message, []ClientType{ClientKitchen, ClientPOS, ClientWaiter}

	case services.EventItemsAppended:
		message.Type = TypeKitchenOrder
		return message, []ClientType{ClientKitchen, ClientPOS}

	case services.EventOrderStatus:
		message.Type = TypeOrderUpdate
		if event.Order != nil {
			switch event.Order.Status {
			case models.OrderStatusCancelled:
				message.Type = TypeOrderCancelled
			case models.OrderStatusReady:
				message.Type = TypeOrderReady
			}
		}
		return message, nil

	case services.EventOrderUpdated:
		message.Type = TypeOrderUpdate
		return message, nil

	case services.EventTableUpdated:
		message.Type = TypeTableUpdate
		return message, nil

	case services.EventLowStock:
		message.Type = TypeStockAlert
		return message, []ClientType{ClientPOS}

	case services.EventShiftOpened, services.EventShiftClosed, services.EventCashRecorded:
		message.Type = TypeShiftUpdate
		return message, []ClientType{ClientPOS}

	case services.EventCashDropped:
		message.Type = TypeNotification
		return message, []ClientType{ClientPOS}

	case services.EventSnapshotAbsorbed:
		message.Type = TypeSnapshot
		return message, nil
	}
	return Message{}, nil
}

// broadcastTo sends message to clients of the given types, or to all clients
// when no type is given. Full client buffers are skipped.
func (s *Server) broadcastTo(message Message, types ...ClientType) {
	data, err := json.Marshal(message)
	if err != nil {
		return
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, client := range s.clients {
		if len(types) > 0 && !containsType(types, client.Type) {
			continue
		}
		select {
		case client.Send <- data:
		default:
			s.logWarning("Failed to send to client", client.ID)
		}
	}
}

func containsType(types []ClientType, t ClientType) bool {
	for _, candidate := range types {
		if candidate == t {
			return true
		}
	}
	return false
}

// sendHeartbeat sends heartbeat to all clients
func (s *Server) sendHeartbeat() {
	s.broadcastTo(Message{
		Type:      TypeHeartbeat,
		Timestamp: time.Now(),
		Data:      json.RawMessage(`{"ping":"pong"}`),
	})
}

// sendAuthResponse sends authentication response to a client
func (s *Server) sendAuthResponse(client *Client, success bool, message string) {
	data, _ := json.Marshal(map[string]interface{}{
		"success":   success,
		"message":   message,
		"client_id": client.ID,
	})

	client.sendMessage(Message{
		Type:      TypeAuthResponse,
		Timestamp: time.Now(),
		Data:      data,
	})
}

// ClientCounts returns the number of connected clients per type
func (s *Server) ClientCounts() map[ClientType]int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := map[ClientType]int{ClientPOS: 0, ClientKitchen: 0, ClientWaiter: 0}
	for _, client := range s.clients {
		counts[client.Type]++
	}
	return counts
}

func (s *Server) logInfo(message string, details ...string) {
	if s.logger != nil {
		s.logger.LogInfo(message, details...)
	}
}

func (s *Server) logWarning(message string, details ...string) {
	if s.logger != nil {
		s.logger.LogWarning(message, details...)
	}
}

func (s *Server) logError(message string, err error) {
	if s.logger != nil {
		s.logger.LogError(message, err)
	}
}
