package feed

import (
	"encoding/json"
	"io"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/gish-sh/gish/internal/session"
	"github.com/gish-sh/gish/internal/watch"
)

// ChangeData describes a coalesced change signal
type ChangeData struct {
	Seq       uint64    `json:"seq"`
	Events    int       `json:"events"`
	Path      string    `json:"path,omitempty"`
	Triggered time.Time `json:"triggered"`
}

// SessionData describes one session lifecycle event
type SessionData struct {
	Role     string `json:"role"`
	Label    string `json:"label"`
	SpawnID  string `json:"spawn_id"`
	State    string `json:"state"`
	Command  string `json:"command,omitempty"`
	Dir      string `json:"dir"`
	Pid      int    `json:"pid,omitempty"`
	ExitCode *int   `json:"exit_code,omitempty"`
	Error    string `json:"error,omitempty"`
	// Output is the pane content at exit.
	Output string `json:"output,omitempty"`
}

// HelloData greets a new client with the current state
type HelloData struct {
	Root     string        `json:"root"`
	Sessions []SessionData `json:"sessions"`
}

// Snapshotter returns the captured output of a session's pane.
type Snapshotter func(role session.Role) string

// Handler turns watcher and session events into feed messages.
// Its On* methods are called from the control loop; the hello message is
// built on server goroutines, so the state it reads is guarded.
type Handler struct {
	server   *Server
	root     string
	snapshot Snapshotter
	logger   *log.Logger

	mu     sync.Mutex
	states map[string]SessionData
}

// NewHandler creates a handler for server. snapshot may be nil.
func NewHandler(server *Server, root string, snapshot Snapshotter, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	h := &Handler{
		server:   server,
		root:     root,
		snapshot: snapshot,
		logger:   logger,
		states:   make(map[string]SessionData),
	}
	server.SetHello(h.hello)
	return h
}

// OnChange broadcasts a change signal.
func (h *Handler) OnChange(sig watch.Signal) {
	h.send(MessageTypeChange, ChangeData{
		Seq:       sig.Seq,
		Events:    sig.Events,
		Path:      sig.Path,
		Triggered: sig.Trigger,
	})
}

// OnSessionEvent broadcasts a session lifecycle event. Exit messages carry
// the pane output.
func (h *Handler) OnSessionEvent(ev session.Event) {
	s := ev.Session
	inv := s.Invocation()
	data := SessionData{
		Role:    string(s.Role),
		Label:   s.Label,
		SpawnID: ev.SpawnID,
		State:   s.State().String(),
		Command: inv.Command,
		Dir:     inv.Dir,
		Pid:     ev.Pid,
	}

	var typ MessageType
	switch ev.Kind {
	case session.EventSpawned:
		typ = MessageTypeSessionSpawned
	case session.EventFailed:
		typ = MessageTypeSessionFailed
		if ev.Err != nil {
			data.Error = ev.Err.Error()
		}
	case session.EventExited:
		typ = MessageTypeSessionExited
		code := ev.ExitCode
		data.ExitCode = &code
		if h.snapshot != nil {
			data.Output = h.snapshot(s.Role)
		}
	default:
		return
	}

	h.mu.Lock()
	state := data
	state.Output = ""
	h.states[data.Role] = state
	h.mu.Unlock()

	h.send(typ, data)
}

func (h *Handler) hello() Message {
	h.mu.Lock()
	sessions := make([]SessionData, 0, len(h.states))
	for _, s := range h.states {
		sessions = append(sessions, s)
	}
	h.mu.Unlock()
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].Role < sessions[j].Role })

	data, _ := json.Marshal(HelloData{Root: h.root, Sessions: sessions})
	return Message{Type: MessageTypeHello, Timestamp: time.Now(), Data: data}
}

func (h *Handler) send(typ MessageType, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		h.logger.Printf("ERROR: failed to marshal %s: %v", typ, err)
		return
	}
	h.server.Broadcast(Message{Type: typ, Timestamp: time.Now(), Data: data})
}
