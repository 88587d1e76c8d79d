// Package dashboard provides a read-only WebSocket fan-out for the shared
// worship document.
//
// The server broadcasts sync status changes, adopted document versions and
// audit entries to connected viewers. It is an outbound surface for local
// displays, never a replication channel: clients cannot write through it,
// and the remote store is still reconciled by polling.
package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"louvor/internal/engine"
	"louvor/internal/schema"

	"github.com/coder/websocket"
)

// MessageType defines the type of a broadcast message.
type MessageType string

const (
	// MessageTypeStatus carries a sync status change.
	MessageTypeStatus MessageType = "status_change"
	// MessageTypeDocument carries a full document version, sent whenever
	// the in-memory document is replaced.
	MessageTypeDocument MessageType = "document_update"
	// MessageTypeLogEntry carries one audit entry for a local mutation.
	MessageTypeLogEntry MessageType = "log_entry"
)

// Message is one broadcast frame.
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// StatusData is the payload of a status_change message.
type StatusData struct {
	Status engine.Status `json:"status"`
}

// DocumentData is the payload of a document_update message.
type DocumentData struct {
	Document *schema.Document `json:"document"`
}

// LogEntryData is the payload of a log_entry message.
type LogEntryData struct {
	Entry schema.AuditEntry `json:"entry"`
}

// SnapshotFunc supplies the current status and document for the welcome
// frames sent to a freshly connected viewer.
type SnapshotFunc func() (engine.Status, *schema.Document)

// Config holds server configuration.
type Config struct {
	// Port to listen on. Port 0 picks a random free port.
	Port int

	// Snapshot supplies initial state for new connections. Optional.
	Snapshot SnapshotFunc

	// Logger for server activity.
	Logger *log.Logger
}

// Server accepts WebSocket viewers and fans engine events out to them.
type Server struct {
	addr     string
	snapshot SnapshotFunc
	listener net.Listener
	server   *http.Server

	clients   map[*websocket.Conn]bool
	clientsMu sync.RWMutex

	broadcast chan Message

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	logger *log.Logger
}

// NewServer creates a dashboard server from config.
func NewServer(config *Config) *Server {
	if config == nil {
		config = &Config{}
	}
	logger := config.Logger
	if logger == nil {
		logger = log.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Server{
		addr:      fmt.Sprintf(":%d", config.Port),
		snapshot:  config.Snapshot,
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan Message, 100),
		ctx:       ctx,
		cancel:    cancel,
		logger:    logger,
	}
}

// SetSnapshot installs the snapshot supplier. Must be called before Start.
func (s *Server) SetSnapshot(fn SnapshotFunc) {
	s.snapshot = fn
}

// Start begins serving. It returns once the listener is up.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = ln

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/", s.handleRoot)

	s.server = &http.Server{
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	s.wg.Add(1)
	go s.broadcastLoop()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.logger.Printf("dashboard listening on %s", ln.Addr())
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Printf("dashboard server error: %v", err)
		}
	}()

	return nil
}

// Stop closes all viewer connections and shuts the server down.
func (s *Server) Stop() error {
	s.cancel()

	s.clientsMu.Lock()
	for conn := range s.clients {
		_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
		delete(s.clients, conn)
	}
	s.clientsMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("dashboard shutdown error: %w", err)
	}

	s.wg.Wait()
	return nil
}

// Broadcast queues a message for every connected viewer. Never blocks; the
// message is dropped when the queue is full.
func (s *Server) Broadcast(msg Message) {
	select {
	case s.broadcast <- msg:
	case <-s.ctx.Done():
	default:
		s.logger.Println("broadcast queue full, dropping message")
	}
}

func (s *Server) broadcastLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return

		case msg := <-s.broadcast:
			if msg.Timestamp.IsZero() {
				msg.Timestamp = time.Now()
			}
			data, err := json.Marshal(msg)
			if err != nil {
				s.logger.Printf("failed to marshal message: %v", err)
				continue
			}

			s.clientsMu.RLock()
			conns := make([]*websocket.Conn, 0, len(s.clients))
			for conn := range s.clients {
				conns = append(conns, conn)
			}
			s.clientsMu.RUnlock()

			for _, conn := range conns {
				if err := s.write(conn, data); err != nil {
					s.removeClient(conn)
				}
			}
		}
	}
}

func (s *Server) write(conn *websocket.Conn, data []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, data)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"}, // local viewers only
	})
	if err != nil {
		s.logger.Printf("websocket upgrade failed: %v", err)
		return
	}

	s.clientsMu.Lock()
	s.clients[conn] = true
	count := len(s.clients)
	s.clientsMu.Unlock()
	s.logger.Printf("viewer connected (total: %d)", count)

	// New viewers get the current state before any broadcasts.
	if s.snapshot != nil {
		status, doc := s.snapshot()
		s.sendSnapshot(conn, status, doc)
	}

	go s.readLoop(conn)
}

func (s *Server) sendSnapshot(conn *websocket.Conn, status engine.Status, doc *schema.Document) {
	for _, msg := range []Message{
		newMessage(MessageTypeStatus, StatusData{Status: status}),
		newMessage(MessageTypeDocument, DocumentData{Document: doc}),
	} {
		data, err := json.Marshal(msg)
		if err != nil {
			s.logger.Printf("failed to marshal snapshot: %v", err)
			return
		}
		if err := s.write(conn, data); err != nil {
			s.removeClient(conn)
			return
		}
	}
}

// readLoop keeps the connection alive and notices disconnects. Incoming
// frames are discarded; the dashboard is read-only.
func (s *Server) readLoop(conn *websocket.Conn) {
	defer s.removeClient(conn)

	for {
		if _, _, err := conn.Read(s.ctx); err != nil {
			return
		}
	}
}

func (s *Server) removeClient(conn *websocket.Conn) {
	s.clientsMu.Lock()
	if _, exists := s.clients[conn]; !exists {
		s.clientsMu.Unlock()
		return
	}
	delete(s.clients, conn)
	count := len(s.clients)
	s.clientsMu.Unlock()

	_ = conn.Close(websocket.StatusNormalClosure, "")
	s.logger.Printf("viewer disconnected (total: %d)", count)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.clientsMu.RLock()
	count := len(s.clients)
	s.clientsMu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"viewers": count,
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	_, _ = fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head>
    <title>Louvor</title>
</head>
<body>
    <h1>Louvor dashboard</h1>
    <p>WebSocket endpoint: <code>ws://%s/ws</code></p>
    <p>Health check: <a href="/health">/health</a></p>
    <p>Connect a WebSocket client to follow the worship list live.</p>
</body>
</html>`, r.Host)
}

// Addr returns the bound listen address.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// ViewerCount returns the current number of connected viewers.
func (s *Server) ViewerCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}

func newMessage(t MessageType, payload interface{}) Message {
	data, _ := json.Marshal(payload)
	return Message{Type: t, Timestamp: time.Now(), Data: data}
}

// Notifier adapts the server to the engine's event hook. All methods are
// non-blocking, as the engine requires.

// StatusChanged implements engine.Notifier.
func (s *Server) StatusChanged(status engine.Status) {
	s.Broadcast(newMessage(MessageTypeStatus, StatusData{Status: status}))
}

// DocumentUpdated implements engine.Notifier.
func (s *Server) DocumentUpdated(doc *schema.Document) {
	s.Broadcast(newMessage(MessageTypeDocument, DocumentData{Document: doc}))
}

// EntryLogged implements engine.Notifier.
func (s *Server) EntryLogged(entry schema.AuditEntry) {
	s.Broadcast(newMessage(MessageTypeLogEntry, LogEntryData{Entry: entry}))
}
