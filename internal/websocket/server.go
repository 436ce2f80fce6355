package websocket

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/skybrief/turbcast/pkg/logger"
)

// Message types exchanged with clients
const (
	MessageTypeForecastComplete = "forecast_complete" // Server pushes a finished full forecast
	MessageTypeSubscribe        = "subscribe"         // Client subscribes to a flight number
	MessageTypeUnsubscribe      = "unsubscribe"       // Client drops a subscription
	MessageTypeSubscribed       = "subscribed"        // Server acknowledges a subscription
)

// Message is the wire format for both directions
type Message struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

// Client is one connected websocket peer. A client with no subscriptions
// receives every forecast event; subscribing narrows the stream to the
// named flights.
type Client struct {
	conn      *websocket.Conn
	send      chan *Message
	server    *Server
	mu        sync.Mutex
	closed    bool
	flights   map[string]bool
	closeChan chan struct{}
}

// Server is the websocket hub: it tracks clients and fans forecast events
// out to the interested ones.
type Server struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan *Message
	upgrader   websocket.Upgrader
	logger     *logger.Logger
	mu         sync.RWMutex
}

// NewServer creates a new websocket hub
func NewServer(log *logger.Logger) *Server {
	return &Server{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *Message),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		logger: log.Named("web-socket"),
	}
}

// Run processes register, unregister and broadcast events. Call it in its
// own goroutine; it runs until the process exits.
func (s *Server) Run() {
	s.logger.Info("Starting WebSocket hub")

	for {
		select {
		case client := <-s.register:
			s.mu.Lock()
			s.clients[client] = true
			count := len(s.clients)
			s.mu.Unlock()
			s.logger.Debug("Client registered", logger.Int("client_count", count))

		case client := <-s.unregister:
			s.mu.Lock()
			if _, ok := s.clients[client]; ok {
				delete(s.clients, client)
				client.mu.Lock()
				client.closed = true
				client.mu.Unlock()
				close(client.send)
			}
			count := len(s.clients)
			s.mu.Unlock()
			s.logger.Debug("Client unregistered", logger.Int("client_count", count))

		case message := <-s.broadcast:
			s.dispatch(message)
		}
	}
}

// dispatch delivers one message to every interested client. Clients whose
// send buffer is full are dropped rather than blocking the hub.
func (s *Server) dispatch(message *Message) {
	var stale []*Client

	s.mu.RLock()
	for client := range s.clients {
		if !client.wants(message) {
			continue
		}
		select {
		case client.send <- message:
		default:
			stale = append(stale, client)
		}
	}
	s.mu.RUnlock()

	if len(stale) == 0 {
		return
	}
	s.mu.Lock()
	for _, client := range stale {
		if _, ok := s.clients[client]; ok {
			delete(s.clients, client)
			client.mu.Lock()
			if !client.closed {
				client.closed = true
				close(client.send)
			}
			client.mu.Unlock()
		}
	}
	s.mu.Unlock()
}

// HandleConnection upgrades an HTTP request and starts the client pumps
func (s *Server) HandleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade connection",
			logger.Error(err),
			logger.String("remote_addr", r.RemoteAddr))
		return
	}

	client := &Client{
		conn:      conn,
		send:      make(chan *Message, 64),
		server:    s,
		flights:   make(map[string]bool),
		closeChan: make(chan struct{}),
	}

	s.register <- client

	go client.readPump()
	go client.writePump()
}

// Broadcast queues a message for delivery to interested clients
func (s *Server) Broadcast(message *Message) {
	s.broadcast <- message
}

// wants reports whether the client should receive the message. Forecast
// events are filtered by subscription; everything else passes through.
func (c *Client) wants(message *Message) bool {
	if message.Type != MessageTypeForecastComplete {
		return true
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.flights) == 0 {
		return true
	}
	flight, _ := message.Data["flight_number"].(string)
	return c.flights[flight]
}

func (c *Client) readPump() {
	defer func() {
		c.server.unregister <- c
		c.conn.Close()
	}()

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.server.logger.Error("WebSocket read error", logger.Error(err))
			}
			return
		}

		var message Message
		if err := json.Unmarshal(raw, &message); err != nil {
			c.server.logger.Error("Failed to parse WebSocket message", logger.Error(err))
			continue
		}

		c.handle(&message)
	}
}

// handle processes a client-originated message
func (c *Client) handle(message *Message) {
	flight, _ := message.Data["flight_number"].(string)
	flight = strings.ToUpper(strings.TrimSpace(flight))

	switch message.Type {
	case MessageTypeSubscribe:
		if flight == "" {
			return
		}
		c.mu.Lock()
		c.flights[flight] = true
		c.mu.Unlock()
		c.reply(&Message{
			Type: MessageTypeSubscribed,
			Data: map[string]any{"flight_number": flight},
		})

	case MessageTypeUnsubscribe:
		c.mu.Lock()
		delete(c.flights, flight)
		c.mu.Unlock()

	default:
		c.server.logger.Debug("Ignoring unknown message type",
			logger.String("type", message.Type))
	}
}

// reply queues a message for this client only
func (c *Client) reply(message *Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- message:
	default:
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			data, err := json.Marshal(message)
			if err != nil {
				c.server.logger.Error("Failed to marshal message", logger.Error(err))
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-c.closeChan:
			return
		}
	}
}
