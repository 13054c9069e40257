package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

const defaultBaseURL = "https://api.cloudflare.com/client/v4/accounts/%s/ai/run"

// Message is one transcript entry.
type Message struct {
	Role    string `json:"role"` // "system", "user", "assistant", "tool"
	Content string `json:"content"`
}

// Reply is one model round: either final text or one or more tool calls.
type Reply struct {
	Text      string
	ToolCalls []ToolCall
}

// Client talks to the Workers AI inference API. Transport concerns beyond a
// request timeout (retries, backoff, rate limits) are out of scope here.
type Client struct {
	baseURL   string
	apiToken  string
	model     string
	maxTokens int
	http      *http.Client
}

// NewClient creates a Workers AI client. baseURL overrides the hosted
// endpoint when non-empty (tests point it at a local server).
func NewClient(baseURL, accountID, apiToken, model string, maxTokens int) *Client {
	if baseURL == "" {
		baseURL = fmt.Sprintf(defaultBaseURL, accountID)
	}
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiToken:  apiToken,
		model:     model,
		maxTokens: maxTokens,
		http:      &http.Client{Timeout: 2 * time.Minute},
	}
}

// Model returns the configured model name.
func (c *Client) Model() string { return c.model }

type converseRequest struct {
	Messages  []Message        `json:"messages"`
	MaxTokens int              `json:"max_tokens"`
	Tools     []ToolDefinition `json:"tools,omitempty"`
}

type apiEnvelope struct {
	Success bool            `json:"success"`
	Result  json.RawMessage `json:"result"`
	Errors  []apiError      `json:"errors"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type converseResult struct {
	Response  string         `json:"response"`
	ToolCalls []wireToolCall `json:"tool_calls"`
}

type wireToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// Converse sends the transcript and tool catalog and returns the model's
// reply. Any error here is a transport failure: the caller treats it as
// unrecoverable within the turn.
func (c *Client) Converse(ctx context.Context, messages []Message, tools []ToolDefinition) (*Reply, error) {
	payload := converseRequest{
		Messages:  messages,
		MaxTokens: c.maxTokens,
		Tools:     tools,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+c.model, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("workers ai error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var envelope apiEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if !envelope.Success {
		if len(envelope.Errors) > 0 {
			return nil, fmt.Errorf("workers ai error %d: %s", envelope.Errors[0].Code, envelope.Errors[0].Message)
		}
		return nil, fmt.Errorf("workers ai request failed")
	}

	var result converseResult
	if err := json.Unmarshal(envelope.Result, &result); err != nil {
		return nil, fmt.Errorf("failed to decode result: %w", err)
	}

	reply := &Reply{Text: result.Response}
	for _, tc := range result.ToolCalls {
		id := tc.ID
		if id == "" {
			// Some models omit call ids; results still need a stable pairing.
			id = uuid.NewString()
		}
		reply.ToolCalls = append(reply.ToolCalls, ToolCall{
			ID:        id,
			Name:      tc.Name,
			Arguments: tc.Arguments,
		})
	}
	return reply, nil
}

// Available probes the token verification endpoint.
func (c *Client) Available(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/tokens/verify", nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK, nil
}
