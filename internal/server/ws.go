package server

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/sophiahq/sophia-gateway/internal/llm"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WSMessage is one frame on the chat websocket
type WSMessage struct {
	Type      string `json:"type"` // message, response, error
	Content   string `json:"content"`
	Task      string `json:"task,omitempty"`
	Model     string `json:"model,omitempty"`
	Provider  string `json:"provider,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

// wsChatHandler runs a chat conversation over a websocket. One session per
// connection; each incoming frame routes through the completion path.
func (s *Server) wsChatHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	sess := s.sessions.Create(r.URL.Query().Get("user"))
	defer s.sessions.Delete(sess.ID)

	for {
		var msg WSMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("websocket read failed", "error", err)
			}
			return
		}
		if msg.Type != "message" || msg.Content == "" {
			continue
		}

		_ = s.sessions.AddMessage(sess.ID, "user", msg.Content)

		resp, err := s.router.Complete(r.Context(), &llm.Request{
			Task:      msg.Task,
			Model:     msg.Model,
			Prompt:    msg.Content,
			SessionID: sess.ID,
		})
		if err != nil {
			s.logger.Error("websocket completion failed", "error", err)
			_ = conn.WriteJSON(WSMessage{Type: "error", Content: err.Error(), SessionID: sess.ID})
			continue
		}

		_ = s.sessions.AddMessage(sess.ID, "assistant", resp.Content)
		_ = conn.WriteJSON(WSMessage{
			Type:      "response",
			Content:   resp.Content,
			Model:     resp.Model,
			Provider:  resp.Provider,
			SessionID: sess.ID,
		})
	}
}
