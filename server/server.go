// Package server exposes the memory engine over a websocket chat
// endpoint. Each connection gets its own session engine; the memory
// store behind it is shared across connections.
package server

import (
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/evermind-ai/recall/engine"
	"github.com/evermind-ai/recall/llm"
	"github.com/evermind-ai/recall/memory"
)

// Frame types exchanged over the websocket.
const (
	FrameChat     = "chat"
	FrameReply    = "reply"
	FrameMemorize = "memorize"
	FrameRecall   = "recall"
	FrameForget   = "forget"
	FrameResult   = "result"
	FrameError    = "error"
)

// ClientFrame is a message from the client.
type ClientFrame struct {
	Type  string `json:"type"`
	Text  string `json:"text,omitempty"`
	Limit int    `json:"limit,omitempty"`
}

// ServerFrame is a message to the client.
type ServerFrame struct {
	Type     string                `json:"type"`
	Text     string                `json:"text,omitempty"`
	Memories []memory.SearchResult `json:"memories,omitempty"`
	Count    int                   `json:"count,omitempty"`
}

// Server serves chat sessions over websockets.
type Server struct {
	gen        llm.Client
	store      memory.Store
	engineOpts []engine.Option
	upgrader   websocket.Upgrader
}

// New creates a server. Engine options apply to every session.
func New(gen llm.Client, store memory.Store, opts ...engine.Option) *Server {
	return &Server{
		gen:        gen,
		store:      store,
		engineOpts: opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}
}

// Handler returns the HTTP handler: /ws for chat, /health for liveness.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/health", s.handleHealth)
	return mux
}

// Run serves on addr until the listener fails.
func (s *Server) Run(addr string) error {
	log.Printf("[SERVER] Listening on %s", addr)
	return http.ListenAndServe(addr, s.Handler())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// handleWS runs one conversational session per connection.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[SERVER] Upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	eng := engine.New(s.gen, s.store, s.engineOpts...)
	ctx := r.Context()

	for {
		var frame ClientFrame
		if err := conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[SERVER] Read failed: %v", err)
			}
			return
		}

		var out ServerFrame
		switch frame.Type {
		case FrameChat, "":
			reply, err := eng.Chat(ctx, frame.Text)
			if err != nil {
				out = ServerFrame{Type: FrameError, Text: llm.UserMessage(err)}
				break
			}
			out = ServerFrame{Type: FrameReply, Text: reply.Text, Memories: reply.Memories}

		case FrameMemorize:
			count, err := eng.Memorize(ctx)
			if err != nil {
				out = ServerFrame{Type: FrameError, Text: llm.UserMessage(err)}
				break
			}
			out = ServerFrame{Type: FrameResult, Count: count}

		case FrameRecall:
			limit := frame.Limit
			if limit <= 0 {
				limit = engine.DefaultSearchLimit
			}
			memories, err := eng.Recall(ctx, frame.Text, limit)
			if err != nil {
				out = ServerFrame{Type: FrameError, Text: err.Error()}
				break
			}
			out = ServerFrame{Type: FrameResult, Memories: memories, Count: len(memories)}

		case FrameForget:
			count, err := eng.Forget(ctx)
			if err != nil {
				out = ServerFrame{Type: FrameError, Text: "Failed to clear memories."}
				break
			}
			out = ServerFrame{Type: FrameResult, Count: count}

		default:
			out = ServerFrame{Type: FrameError, Text: "unknown frame type: " + frame.Type}
		}

		if err := conn.WriteJSON(out); err != nil {
			log.Printf("[SERVER] Write failed: %v", err)
			return
		}
	}
}
