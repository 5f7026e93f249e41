package channel

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"tabchat/domain/chat"
	"tabchat/internal/session"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	outboundDepth  = 16
)

// Server upgrades HTTP requests to the bidirectional chat channel and binds
// each connection to its session. Inbound messages are handled strictly in
// arrival order; the session mutex additionally serializes them against any
// concurrent channel for the same session.
type Server struct {
	upgrader   websocket.Upgrader
	renderHTML func(string) string
}

// NewServer builds a channel server. renderHTML converts a response message
// to HTML for clients that render rich text; it may be nil.
func NewServer(renderHTML func(string) string) *Server {
	return &Server{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		renderHTML: renderHTML,
	}
}

// conn wraps the websocket with a guarded outbound queue so the session's
// async export notifications never race the read loop's shutdown.
type conn struct {
	ws       *websocket.Conn
	outbound chan chat.AgentResponse

	mu     sync.Mutex
	closed bool
}

// push enqueues a response for the writer goroutine. Responses are dropped
// when the channel is gone or the queue is full; the client can always poll
// the job endpoint instead.
func (c *conn) push(response chat.AgentResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.outbound <- response:
	default:
		log.Printf("[Channel] Outbound queue full, dropping message")
	}
}

func (c *conn) shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.outbound)
}

// Serve upgrades the request and pumps messages until the peer disconnects.
// It blocks for the lifetime of the connection.
func (srv *Server) Serve(w http.ResponseWriter, r *http.Request, s *session.Session) error {
	ws, err := srv.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	c := &conn{ws: ws, outbound: make(chan chat.AgentResponse, outboundDepth)}
	s.SetEmitter(func(response chat.AgentResponse) {
		srv.decorate(&response)
		c.push(response)
	})
	log.Printf("[Channel] Session %s connected", s.ID())

	done := make(chan struct{})
	go srv.writeLoop(c, done)

	srv.readLoop(r, s, c)

	s.ClearEmitter()
	c.shutdown()
	<-done
	ws.Close()
	log.Printf("[Channel] Session %s disconnected", s.ID())
	return nil
}

func (srv *Server) readLoop(r *http.Request, s *session.Session, c *conn) {
	c.ws.SetReadLimit(maxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var inbound chat.Inbound
		if err := c.ws.ReadJSON(&inbound); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[Channel] Session %s read error: %v", s.ID(), err)
			}
			return
		}
		if inbound.Text == "" {
			c.push(chat.AgentResponse{Error: "empty message", Message: "Say something like \"filter region to West\" or \"pivot sales by month\"."})
			continue
		}

		response := s.ApplyUtterance(r.Context(), inbound.Text)
		srv.decorate(&response)
		c.push(response)
	}
}

func (srv *Server) writeLoop(c *conn, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case response, ok := <-c.outbound:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteJSON(response); err != nil {
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (srv *Server) decorate(response *chat.AgentResponse) {
	if srv.renderHTML != nil && response.Message != "" {
		response.MessageHTML = srv.renderHTML(response.Message)
	}
}
