package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestConverseText(t *testing.T) {
	var gotAuth string
	var gotPath string
	var gotReq converseRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotReq)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"result":  map[string]interface{}{"response": "The kitchen light is on."},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, "acc", "secret-token", "@cf/test-model", 256)
	reply, err := client.Converse(context.Background(), []Message{
		{Role: "system", Content: "be brief"},
		{Role: "user", Content: "is the kitchen light on?"},
	}, nil)
	if err != nil {
		t.Fatalf("Converse() error: %v", err)
	}

	if reply.Text != "The kitchen light is on." {
		t.Errorf("reply text = %q", reply.Text)
	}
	if len(reply.ToolCalls) != 0 {
		t.Errorf("unexpected tool calls: %v", reply.ToolCalls)
	}
	if gotAuth != "Bearer secret-token" {
		t.Errorf("authorization = %q", gotAuth)
	}
	if gotPath != "/@cf/test-model" {
		t.Errorf("path = %q", gotPath)
	}
	if gotReq.MaxTokens != 256 {
		t.Errorf("max_tokens = %d", gotReq.MaxTokens)
	}
	if len(gotReq.Messages) != 2 {
		t.Errorf("messages = %v", gotReq.Messages)
	}
}

func TestConverseToolCalls(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"result": map[string]interface{}{
				"response": "",
				"tool_calls": []map[string]interface{}{
					{"name": "turn_on", "arguments": map[string]interface{}{"name": "kitchen light"}},
					{"id": "call-7", "name": "get_current_time", "arguments": map[string]interface{}{}},
				},
			},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, "acc", "tok", "model", 128)
	reply, err := client.Converse(context.Background(), []Message{{Role: "user", Content: "turn on the kitchen light"}}, nil)
	if err != nil {
		t.Fatalf("Converse() error: %v", err)
	}

	if len(reply.ToolCalls) != 2 {
		t.Fatalf("got %d tool calls, want 2", len(reply.ToolCalls))
	}
	if reply.ToolCalls[0].Name != "turn_on" {
		t.Errorf("first call = %q", reply.ToolCalls[0].Name)
	}
	if reply.ToolCalls[0].ID == "" {
		t.Error("missing call id must be filled in")
	}
	if reply.ToolCalls[1].ID != "call-7" {
		t.Errorf("provided call id must be kept, got %q", reply.ToolCalls[1].ID)
	}

	args, err := reply.ToolCalls[0].DecodeArguments()
	if err != nil {
		t.Fatalf("DecodeArguments() error: %v", err)
	}
	if args["name"] != "kitchen light" {
		t.Errorf("arguments = %v", args)
	}
}

func TestConverseAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"success": false,
			"errors":  []map[string]interface{}{{"code": 7009, "message": "model not found"}},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, "acc", "tok", "model", 128)
	if _, err := client.Converse(context.Background(), []Message{{Role: "user", Content: "hi"}}, nil); err == nil {
		t.Error("expected error on unsuccessful envelope")
	}
}

func TestConverseHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewClient(server.URL, "acc", "tok", "model", 128)
	if _, err := client.Converse(context.Background(), []Message{{Role: "user", Content: "hi"}}, nil); err == nil {
		t.Error("expected error on 429 response")
	}
}

func TestDecodeArgumentsEmpty(t *testing.T) {
	call := ToolCall{Name: "get_current_time"}
	args, err := call.DecodeArguments()
	if err != nil {
		t.Fatalf("DecodeArguments() error: %v", err)
	}
	if args == nil || len(args) != 0 {
		t.Errorf("args = %v, want empty map", args)
	}
}

func TestDecodeArgumentsMalformed(t *testing.T) {
	call := ToolCall{Name: "turn_on", Arguments: json.RawMessage(`["not", "an", "object"]`)}
	if _, err := call.DecodeArguments(); err == nil {
		t.Error("expected error for non-object arguments")
	}
}
