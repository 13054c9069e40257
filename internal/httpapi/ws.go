package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/voxhome/assist-service/internal/conversation"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type WSMessage struct {
	Type    string          `json:"type"`
	Content string          `json:"content,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	if claims == nil {
		writeJSONError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	userID, _ := uuid.Parse(claims.Subject)
	sess := &ChatSession{
		conn:     conn,
		userID:   userID,
		userName: claims.Name,
		userRole: claims.Role,
		handler:  h,
	}

	sess.run()
}

// ChatSession is one websocket connection. A session holds at most one
// conversation and at most one in-flight turn at a time; "new_conversation"
// detaches the thread and the next message starts a fresh one. Turns run off
// the read loop so a "cancel" frame can abort them mid-flight (barge-in).
type ChatSession struct {
	conn     *websocket.Conn
	userID   uuid.UUID
	userName string
	userRole string
	handler  *Handler

	writeMu sync.Mutex

	mu             sync.Mutex
	conversationID *uuid.UUID
	turnActive     bool
	cancelFunc     context.CancelFunc

	turns sync.WaitGroup
}

func (s *ChatSession) run() {
	for {
		_, msgBytes, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Warn("websocket read failed", "error", err)
			}
			break
		}

		var msg WSMessage
		if err := json.Unmarshal(msgBytes, &msg); err != nil {
			s.sendError("Invalid message format")
			continue
		}

		switch msg.Type {
		case "message":
			s.startTurn(msg.Content)
		case "cancel":
			s.cancelTurn()
		case "new_conversation":
			s.mu.Lock()
			s.conversationID = nil
			s.mu.Unlock()
			s.send(WSMessage{Type: "conversation_cleared"})
		}
	}
	// Connection gone: abort any in-flight turn and wait for it before the
	// deferred close tears the connection down under it.
	s.cancelTurn()
	s.turns.Wait()
}

// startTurn hands the turn to its own goroutine. The read loop must stay on
// the socket while the model works, otherwise a cancel frame cannot be read
// until the turn it is meant to abort has already finished.
func (s *ChatSession) startTurn(content string) {
	if strings.TrimSpace(content) == "" {
		return
	}

	s.mu.Lock()
	if s.turnActive {
		s.mu.Unlock()
		s.sendError("Still working on the previous request. Cancel it or wait for it to finish.")
		return
	}
	s.turnActive = true
	s.mu.Unlock()

	s.turns.Add(1)
	go func() {
		defer s.turns.Done()
		s.handleMessage(content)
		s.mu.Lock()
		s.turnActive = false
		s.mu.Unlock()
	}()
}

func (s *ChatSession) cancelTurn() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelFunc != nil {
		s.cancelFunc()
	}
}

func (s *ChatSession) handleMessage(content string) {
	h := s.handler
	if h == nil || h.loop == nil {
		s.sendError("assistant not configured")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	s.mu.Lock()
	s.cancelFunc = cancel
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.cancelFunc = nil
		s.mu.Unlock()
		cancel()
	}()

	s.mu.Lock()
	convPtr := s.conversationID
	s.mu.Unlock()

	if convPtr == nil {
		conv, err := h.resolveConversation(ctx, s.userID, s.userRole, "", content)
		if err != nil {
			s.sendError("Failed to create conversation")
			return
		}
		s.mu.Lock()
		s.conversationID = &conv.ID
		s.mu.Unlock()
		convPtr = &conv.ID
		s.send(WSMessage{Type: "conversation_created", Content: conv.ID.String()})
	}
	convID := *convPtr

	history := h.loadHistory(ctx, convID)

	if h.store != nil {
		if _, err := h.store.AppendMessage(ctx, convID, "user", content, nil); err != nil {
			slog.Warn("failed to save user message", "error", err)
		}
	}

	s.send(WSMessage{Type: "typing"})

	turn := h.runTurn(ctx, convID, s.userName, content, history)

	if turn.Status != conversation.StatusCompleted {
		if ctx.Err() == context.Canceled {
			s.send(WSMessage{Type: "cancelled"})
			return
		}
		h.persistAssistantReply(ctx, convID, failedTurnReply, turn)
		s.send(WSMessage{Type: "token", Content: failedTurnReply})
		s.send(WSMessage{Type: "done"})
		return
	}

	h.persistAssistantReply(ctx, convID, turn.FinalText, turn)
	s.send(WSMessage{Type: "token", Content: turn.FinalText})
	s.send(WSMessage{Type: "done"})
}

func (s *ChatSession) send(msg WSMessage) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.conn.WriteJSON(msg)
}

func (s *ChatSession) sendError(message string) {
	s.send(WSMessage{Type: "error", Content: message})
}
