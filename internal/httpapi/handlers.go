package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/voxhome/assist-service/internal/catalog"
	"github.com/voxhome/assist-service/internal/config"
	"github.com/voxhome/assist-service/internal/conversation"
	"github.com/voxhome/assist-service/internal/llm"
	"github.com/voxhome/assist-service/internal/repository"
	"github.com/voxhome/assist-service/internal/session"
)

// failedTurnReply is what the user hears when a turn fails. The real error is
// logged; it is never spoken back.
const failedTurnReply = "Sorry, I couldn't complete that request. Please try again."

type Handler struct {
	config    *config.Config
	llmClient *llm.Client
	catalog   *catalog.Catalog
	loop      *conversation.Controller
	store     *repository.Store
	sessions  *session.Store
}

func NewHandler(cfg *config.Config, llmClient *llm.Client, cat *catalog.Catalog, loop *conversation.Controller, store *repository.Store, sessions *session.Store) *Handler {
	return &Handler{
		config:    cfg,
		llmClient: llmClient,
		catalog:   cat,
		loop:      loop,
		store:     store,
		sessions:  sessions,
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]interface{}{"error": message})
}

func parseIntQuery(r *http.Request, key string, def int) int {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	available := false
	if h.llmClient != nil {
		ok, _ := h.llmClient.Available(ctx)
		available = ok
	}

	model := ""
	if h.config != nil {
		model = h.config.WorkersModel
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":          "ok",
		"service":         "assist-service",
		"model":           model,
		"model_available": available,
	})
}

// ListTools exposes the tool catalog the model sees: name, description and
// the argument schema, in stable order.
func (h *Handler) ListTools(w http.ResponseWriter, r *http.Request) {
	if h.catalog == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "tool catalog not configured")
		return
	}

	defs := h.catalog.List()
	tools := make([]map[string]interface{}, 0, len(defs))
	for _, def := range defs {
		tools = append(tools, map[string]interface{}{
			"name":        def.Name,
			"description": def.Description,
			"parameters":  def.JSONSchema(),
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"tools": tools})
}

type ConverseRequest struct {
	ConversationID string `json:"conversation_id,omitempty"`
	Message        string `json:"message"`
}

type ConverseResponse struct {
	ConversationID string `json:"conversation_id"`
	TurnID         string `json:"turn_id"`
	Status         string `json:"status"`
	Rounds         int    `json:"rounds"`
	Reply          string `json:"reply"`
}

// Converse runs one full turn synchronously: the websocket endpoint is the
// interactive path, this one serves voice frontends that want one
// request/response exchange.
func (h *Handler) Converse(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	if claims == nil {
		writeJSONError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if h.loop == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "assistant not configured")
		return
	}

	var req ConverseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeJSONError(w, http.StatusBadRequest, "message is required")
		return
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid user")
		return
	}

	ctx := r.Context()

	conv, err := h.resolveConversation(ctx, userID, claims.Role, req.ConversationID, req.Message)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	history := h.loadHistory(ctx, conv.ID)

	if h.store != nil {
		if _, err := h.store.AppendMessage(ctx, conv.ID, "user", req.Message, nil); err != nil {
			writeJSONError(w, http.StatusInternalServerError, "failed to save message")
			return
		}
	}

	turn := h.runTurn(ctx, conv.ID, claims.Name, req.Message, history)

	reply := turn.FinalText
	if turn.Status != conversation.StatusCompleted {
		reply = failedTurnReply
	}
	h.persistAssistantReply(ctx, conv.ID, reply, turn)

	writeJSON(w, http.StatusOK, ConverseResponse{
		ConversationID: conv.ID.String(),
		TurnID:         turn.ID.String(),
		Status:         string(turn.Status),
		Rounds:         turn.Rounds,
		Reply:          reply,
	})
}

// resolveConversation loads the thread named by the request or starts a new
// one.
func (h *Handler) resolveConversation(ctx context.Context, userID uuid.UUID, role, conversationID, firstUtterance string) (*repository.Conversation, error) {
	if h.store == nil {
		// No persistence configured: synthesize an unsaved thread.
		return &repository.Conversation{ID: uuid.New(), UserID: userID}, nil
	}

	if conversationID != "" {
		convID, err := uuid.Parse(conversationID)
		if err != nil {
			return nil, errInvalidConversation
		}
		conv, err := h.store.GetConversation(ctx, convID)
		if err != nil || conv == nil {
			return nil, errInvalidConversation
		}
		if conv.UserID != userID && role != "admin" {
			return nil, errInvalidConversation
		}
		return conv, nil
	}

	return h.store.CreateConversation(ctx, userID, firstUtterance)
}

var errInvalidConversation = jsonError("unknown conversation")

type jsonError string

func (e jsonError) Error() string { return string(e) }

// runTurn assembles the system prompt for this turn and drives the loop.
func (h *Handler) runTurn(ctx context.Context, convID uuid.UUID, userName, utterance string, history []llm.Message) *conversation.Turn {
	lastEntity, _ := h.sessions.LastEntity(ctx, convID.String())
	prompt := conversation.BuildSystemPrompt(conversation.PromptContext{
		UserName:     userName,
		LastEntityID: lastEntity,
	})

	turn, _ := h.loop.Run(ctx, prompt, utterance, history)

	if id := lastTargetedEntity(turn); id != "" {
		_ = h.sessions.RememberEntity(ctx, convID.String(), id)
	}
	return turn
}

// loadHistory converts stored transcript entries to model messages. Tool
// entries are replayed as-is so the model keeps its grounding across turns.
func (h *Handler) loadHistory(ctx context.Context, convID uuid.UUID) []llm.Message {
	if h.store == nil {
		return nil
	}
	msgs, err := h.store.History(ctx, convID, 20)
	if err != nil {
		return nil
	}
	out := make([]llm.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, llm.Message{Role: m.Role, Content: m.Content})
	}
	return out
}

func (h *Handler) persistAssistantReply(ctx context.Context, convID uuid.UUID, reply string, turn *conversation.Turn) {
	if h.store == nil {
		return
	}
	_, _ = h.store.AppendMessage(ctx, convID, "assistant", reply, toolActivity(turn))
	_ = h.store.Touch(ctx, convID)
}

// toolActivity gathers the tool results of a turn for the transcript record.
func toolActivity(turn *conversation.Turn) json.RawMessage {
	if turn == nil {
		return nil
	}
	var entries []json.RawMessage
	for _, m := range turn.Transcript {
		if m.Role == "tool" {
			entries = append(entries, json.RawMessage(m.Content))
		}
	}
	if len(entries) == 0 {
		return nil
	}
	b, err := json.Marshal(entries)
	if err != nil {
		return nil
	}
	return b
}

// lastTargetedEntity returns the entity a turn acted on, when it acted on
// exactly one. Used to resolve "it" in the next utterance.
func lastTargetedEntity(turn *conversation.Turn) string {
	if turn == nil {
		return ""
	}
	last := ""
	for _, m := range turn.Transcript {
		if m.Role != "tool" {
			continue
		}
		var res struct {
			Outcome string `json:"outcome"`
			Payload struct {
				TargetIDs []string `json:"target_ids"`
			} `json:"payload"`
		}
		if err := json.Unmarshal([]byte(m.Content), &res); err != nil {
			continue
		}
		if res.Outcome == "success" && len(res.Payload.TargetIDs) == 1 {
			last = res.Payload.TargetIDs[0]
		}
	}
	return last
}

func (h *Handler) ListConversations(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	if claims == nil {
		writeJSONError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if h.store == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "conversation store not configured")
		return
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid user")
		return
	}

	limit := parseIntQuery(r, "limit", 50)
	offset := parseIntQuery(r, "offset", 0)

	conversations, err := h.store.ListConversations(r.Context(), userID, limit, offset)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to list conversations")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"conversations": conversations})
}

func (h *Handler) GetConversation(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	if claims == nil {
		writeJSONError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if h.store == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "conversation store not configured")
		return
	}

	convID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid conversation ID")
		return
	}

	conv, err := h.store.GetConversation(r.Context(), convID)
	if err != nil || conv == nil {
		writeJSONError(w, http.StatusNotFound, "conversation not found")
		return
	}

	userID, _ := uuid.Parse(claims.Subject)
	if conv.UserID != userID && claims.Role != "admin" {
		writeJSONError(w, http.StatusForbidden, "forbidden")
		return
	}

	messages, err := h.store.History(r.Context(), convID, 200)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to list messages")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"conversation": conv,
		"messages":     messages,
	})
}

func (h *Handler) DeleteConversation(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	if claims == nil {
		writeJSONError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if h.store == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "conversation store not configured")
		return
	}

	convID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid conversation ID")
		return
	}

	conv, err := h.store.GetConversation(r.Context(), convID)
	if err != nil || conv == nil {
		writeJSONError(w, http.StatusNotFound, "conversation not found")
		return
	}

	userID, _ := uuid.Parse(claims.Subject)
	if conv.UserID != userID && claims.Role != "admin" {
		writeJSONError(w, http.StatusForbidden, "forbidden")
		return
	}

	if err := h.store.DeleteConversation(r.Context(), convID); err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to delete conversation")
		return
	}
	_ = h.sessions.Forget(r.Context(), convID.String())

	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *Handler) AdminStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	available := false
	if h.llmClient != nil {
		ok, _ := h.llmClient.Available(ctx)
		available = ok
	}

	toolCount := 0
	if h.catalog != nil {
		toolCount = len(h.catalog.List())
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"service":         "assist-service",
		"model":           h.config.WorkersModel,
		"model_available": available,
		"max_tool_rounds": h.config.MaxToolRounds,
		"round_timeout":   h.config.RoundTimeout.String(),
		"tools":           toolCount,
	})
}
