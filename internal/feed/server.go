// Package feed broadcasts refresh activity to WebSocket clients.
//
// An external viewer connects to /ws and receives a hello message with the
// current session states, then one message per change signal and per
// session spawn, failure and exit.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
)

// MessageType names a feed message.
type MessageType string

const (
	MessageTypeHello          MessageType = "hello"
	MessageTypeChange         MessageType = "change"
	MessageTypeSessionSpawned MessageType = "session_spawned"
	MessageTypeSessionFailed  MessageType = "session_failed"
	MessageTypeSessionExited  MessageType = "session_exited"
)

// Message is one feed frame.
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// clientQueue is how many frames a client may fall behind before it is
// disconnected.
const clientQueue = 64

// writeTimeout bounds a single frame write.
const writeTimeout = 5 * time.Second

// client is one connected viewer with its own writer goroutine.
type client struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
	gone chan struct{}
}

func (c *client) drop() {
	c.once.Do(func() { close(c.gone) })
}

// Server accepts viewers and fans messages out to them.
type Server struct {
	addr   string
	logger *log.Logger

	listener net.Listener
	http     *http.Server

	mu      sync.Mutex
	clients map[*client]struct{}
	hello   func() Message

	sent   atomic.Uint64
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Config holds server configuration.
type Config struct {
	// Addr to listen on (default: 127.0.0.1:7777). Port 0 picks a free port.
	Addr string
	// Logger for connection activity.
	Logger *log.Logger
}

// DefaultConfig returns the default server configuration.
func DefaultConfig() *Config {
	return &Config{
		Addr:   "127.0.0.1:7777",
		Logger: log.New(os.Stderr, "[feed] ", log.LstdFlags),
	}
}

// NewServer creates a server. Nothing listens until Start.
func NewServer(cfg *Config) *Server {
	def := DefaultConfig()
	if cfg == nil {
		cfg = def
	}
	s := &Server{
		addr:    cfg.Addr,
		logger:  cfg.Logger,
		clients: make(map[*client]struct{}),
	}
	if s.addr == "" {
		s.addr = def.Addr
	}
	if s.logger == nil {
		s.logger = def.Logger
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	return s
}

// SetHello installs the function that builds the greeting for new clients.
func (s *Server) SetHello(fn func() Message) {
	s.mu.Lock()
	s.hello = fn
	s.mu.Unlock()
}

// Start listens and serves /ws and /health in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = ln

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.serveWS)
	mux.HandleFunc("/health", s.serveHealth)
	s.http = &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.logger.Printf("listening on %s", ln.Addr())
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Printf("ERROR: serve: %v", err)
		}
	}()
	return nil
}

// Stop disconnects every client and shuts the listener down.
func (s *Server) Stop() error {
	s.cancel()

	s.mu.Lock()
	for c := range s.clients {
		c.drop()
		delete(s.clients, c)
	}
	s.mu.Unlock()

	if s.http == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	err := s.http.Shutdown(ctx)
	s.wg.Wait()
	if err != nil {
		return fmt.Errorf("failed to stop feed: %w", err)
	}
	return nil
}

// Broadcast encodes msg once and queues it for every client. It never
// blocks: a client whose queue is full is disconnected.
func (s *Server) Broadcast(msg Message) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	frame, err := json.Marshal(msg)
	if err != nil {
		s.logger.Printf("ERROR: encode %s: %v", msg.Type, err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		select {
		case c.send <- frame:
		default:
			s.logger.Printf("WARNING: client fell %d messages behind, disconnecting", clientQueue)
			delete(s.clients, c)
			c.drop()
		}
	}
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"localhost:*", "127.0.0.1:*"},
	})
	if err != nil {
		s.logger.Printf("WARNING: websocket upgrade failed: %v", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, clientQueue), gone: make(chan struct{})}

	// the hello is queued under the lock so no broadcast can overtake it
	s.mu.Lock()
	msg := Message{Type: MessageTypeHello, Timestamp: time.Now()}
	if s.hello != nil {
		msg = s.hello()
	}
	if frame, err := json.Marshal(msg); err == nil {
		c.send <- frame
	}
	s.clients[c] = struct{}{}
	n := len(s.clients)
	s.mu.Unlock()
	s.logger.Printf("client connected (%d total)", n)

	go s.discardReads(c)
	s.writeLoop(c)
}

// writeLoop owns all writes to c. It returns when c is dropped or a write
// fails, and closes the connection.
func (s *Server) writeLoop(c *client) {
	defer func() {
		s.remove(c)
		_ = c.conn.Close(websocket.StatusGoingAway, "")
	}()
	for {
		select {
		case <-c.gone:
			return
		case <-s.ctx.Done():
			return
		case frame := <-c.send:
			ctx, cancel := context.WithTimeout(s.ctx, writeTimeout)
			err := c.conn.Write(ctx, websocket.MessageText, frame)
			cancel()
			if err != nil {
				return
			}
			s.sent.Add(1)
		}
	}
}

// discardReads notices disconnects. Client messages are ignored.
func (s *Server) discardReads(c *client) {
	defer c.drop()
	for {
		if _, _, err := c.conn.Read(s.ctx); err != nil {
			return
		}
	}
}

func (s *Server) remove(c *client) {
	s.mu.Lock()
	_, ok := s.clients[c]
	delete(s.clients, c)
	n := len(s.clients)
	s.mu.Unlock()
	c.drop()
	if ok {
		s.logger.Printf("client disconnected (%d total)", n)
	}
}

func (s *Server) serveHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"clients": s.Clients(),
		"sent":    s.sent.Load(),
	})
}

// Addr returns the listening address, or the configured one before Start.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Clients returns how many viewers are connected.
func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}
