package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Conversation groups the turns of one chat thread.
type Conversation struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Message is one persisted transcript entry. ToolCalls holds the raw
// tool-call/result JSON for assistant and tool roles.
type Message struct {
	ID             uuid.UUID       `json:"id"`
	ConversationID uuid.UUID       `json:"conversation_id"`
	Role           string          `json:"role"`
	Content        string          `json:"content"`
	ToolCalls      json.RawMessage `json:"tool_calls,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Store persists conversations and their transcripts. The conversation
// loop's in-memory turn state stays authoritative while a turn runs;
// persistence happens at turn boundaries.
type Store struct {
	db *DB
}

func NewStore(db *DB) *Store {
	return &Store{db: db}
}

// CreateConversation starts a new thread, titling it from the first
// utterance.
func (s *Store) CreateConversation(ctx context.Context, userID uuid.UUID, firstUtterance string) (*Conversation, error) {
	conv := &Conversation{
		ID:        uuid.New(),
		UserID:    userID,
		Title:     titleFrom(firstUtterance),
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO assist_conversations (id, user_id, title, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		conv.ID, conv.UserID, conv.Title, conv.CreatedAt, conv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return conv, nil
}

// GetConversation returns a conversation or nil when it does not exist.
func (s *Store) GetConversation(ctx context.Context, id uuid.UUID) (*Conversation, error) {
	conv := &Conversation{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, title, created_at, updated_at FROM assist_conversations WHERE id = $1`,
		id,
	).Scan(&conv.ID, &conv.UserID, &conv.Title, &conv.CreatedAt, &conv.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return conv, nil
}

// ListConversations returns a user's threads, most recent first.
func (s *Store) ListConversations(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*Conversation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, title, created_at, updated_at
		 FROM assist_conversations
		 WHERE user_id = $1
		 ORDER BY updated_at DESC
		 LIMIT $2 OFFSET $3`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var conversations []*Conversation
	for rows.Next() {
		conv := &Conversation{}
		if err := rows.Scan(&conv.ID, &conv.UserID, &conv.Title, &conv.CreatedAt, &conv.UpdatedAt); err != nil {
			return nil, err
		}
		conversations = append(conversations, conv)
	}
	return conversations, rows.Err()
}

// DeleteConversation removes a thread and its messages.
func (s *Store) DeleteConversation(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM assist_conversations WHERE id = $1`, id)
	return err
}

// Touch bumps a conversation's updated_at.
func (s *Store) Touch(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE assist_conversations SET updated_at = NOW() WHERE id = $1`, id)
	return err
}

// AppendMessage persists one transcript entry.
func (s *Store) AppendMessage(ctx context.Context, conversationID uuid.UUID, role, content string, toolCalls json.RawMessage) (*Message, error) {
	msg := &Message{
		ID:             uuid.New(),
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		ToolCalls:      toolCalls,
		CreatedAt:      time.Now(),
	}

	var toolCallsParam interface{}
	if len(toolCalls) > 0 {
		toolCallsParam = string(toolCalls)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO assist_messages (id, conversation_id, role, content, tool_calls, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		msg.ID, msg.ConversationID, msg.Role, msg.Content, toolCallsParam, msg.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// History returns the last n messages of a conversation in chronological
// order.
func (s *Store) History(ctx context.Context, conversationID uuid.UUID, n int) ([]*Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, conversation_id, role, content, tool_calls, created_at
		 FROM assist_messages
		 WHERE conversation_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2`,
		conversationID, n,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []*Message
	for rows.Next() {
		msg := &Message{}
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.Role, &msg.Content, &msg.ToolCalls, &msg.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Query is newest-first for the LIMIT; callers want chronological.
	return chronological(messages), nil
}

// chronological reverses a newest-first page in place so it reads oldest
// to newest.
func chronological(messages []*Message) []*Message {
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages
}

// titleFrom derives a conversation title from its first utterance. Long
// utterances are truncated on a rune boundary so multi-byte text stays
// valid UTF-8.
func titleFrom(utterance string) string {
	title := strings.TrimSpace(utterance)
	if title == "" {
		return "New conversation"
	}
	if runes := []rune(title); len(runes) > 50 {
		title = string(runes[:47]) + "..."
	}
	return title
}
