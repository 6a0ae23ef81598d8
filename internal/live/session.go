package live

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"brasa/internal/prep"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	maxMessage = 64 * 1024
)

// Adjuster redistributes a plan around excluded proteins.
type Adjuster interface {
	Adjust(ctx context.Context, plan prep.Plan, excluded []string) (*prep.Plan, error)
}

// Message is what the server sends on a live session.
type Message struct {
	Type    string     `json:"type"`
	Session string     `json:"session"`
	Plan    *prep.Plan `json:"plan,omitempty"`
	Error   string     `json:"error,omitempty"`
}

const (
	TypePlan  = "plan"
	TypeError = "error"
)

// Request is what a client sends: the full set of proteins out of stock.
// An empty list re-includes everything.
type Request struct {
	Excluded []string `json:"excluded"`
}

// Handler upgrades HTTP requests into live exclusion sessions.
type Handler struct {
	adjuster Adjuster
	upgrader websocket.Upgrader
}

// NewHandler creates a Handler. A nil checkOrigin accepts every origin.
func NewHandler(adjuster Adjuster, checkOrigin func(r *http.Request) bool) *Handler {
	if checkOrigin == nil {
		checkOrigin = func(r *http.Request) bool { return true }
	}
	return &Handler{
		adjuster: adjuster,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
	}
}

// session maintains one websocket connection over one base plan.
type session struct {
	id       string
	conn     *websocket.Conn
	send     chan []byte
	done     chan struct{}
	base     prep.Plan
	adjuster Adjuster
}

// Serve upgrades the connection and streams plan, then one redistributed
// plan per client request. Exclusions always apply to the base plan.
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request, plan prep.Plan) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[live] failed to upgrade connection: %v", err)
		return
	}

	s := &session{
		id:       uuid.NewString(),
		conn:     conn,
		send:     make(chan []byte, 16),
		done:     make(chan struct{}),
		base:     plan,
		adjuster: h.adjuster,
	}
	log.Printf("[live] session %s opened for store %d on %s (read only: %t)", s.id, plan.StoreID, plan.Date, plan.ReadOnly)

	s.push(Message{Type: TypePlan, Plan: &s.base})
	go s.writePump()
	go s.readPump()
}

// readPump handles client requests in order. It owns s.send and closes it
// on exit, which stops writePump.
func (s *session) readPump() {
	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		close(s.send)
		log.Printf("[live] session %s closed", s.id)
	}()

	s.conn.SetReadLimit(maxMessage)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[live] session %s read error: %v", s.id, err)
			}
			return
		}
		if !s.handle(ctx, message) {
			return
		}
	}
}

// handle answers one client request. It reports false once the writer is gone.
func (s *session) handle(ctx context.Context, message []byte) bool {
	var req Request
	if err := json.Unmarshal(message, &req); err != nil {
		return s.push(Message{Type: TypeError, Error: "invalid message: expected {\"excluded\": [...]}"})
	}
	if s.base.ReadOnly {
		return s.push(Message{Type: TypeError, Error: "plan for " + s.base.Date + " is locked"})
	}
	plan, err := s.adjuster.Adjust(ctx, s.base, req.Excluded)
	if err != nil {
		return s.push(Message{Type: TypeError, Error: err.Error()})
	}
	return s.push(Message{Type: TypePlan, Plan: plan})
}

// push queues msg for writePump, waiting while the buffer is full. Messages
// are never dropped; a client that stops reading hits the write deadline and
// the session ends. push reports false once writePump has exited.
func (s *session) push(msg Message) bool {
	msg.Session = s.id
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("[live] session %s failed to encode message: %v", s.id, err)
		return true
	}
	select {
	case s.send <- data:
		return true
	case <-s.done:
		return false
	}
}

func (s *session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		close(s.done)
		s.conn.Close()
	}()

	for {
		select {
		case message, ok := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
