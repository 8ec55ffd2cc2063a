package agent

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
)

func newTestAgent(url string) *OpenAIAgent {
	return &OpenAIAgent{
		url:    url,
		apiKey: "test-key",
		model:  "gpt-4",
		client: &http.Client{},
		logger: zap.NewNop(),
	}
}

func TestCompleteParsesContentAndToolCalls(t *testing.T) {
	var gotPath, gotAuth string
	var gotPayload chatCompletionRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &gotPayload); err != nil {
			t.Errorf("request body does not decode: %v", err)
		}

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{
			"choices": [{
				"message": {
					"content": "Added buy milk to your list.",
					"tool_calls": [{
						"id": "call_1",
						"function": {
							"name": "create_task",
							"arguments": "{\"title\":\"buy milk\",\"priority\":\"high\"}"
						}
					}]
				}
			}]
		}`)
	}))
	defer server.Close()

	testAgent := newTestAgent(server.URL)
	history := []Message{
		{Role: "user", Content: "hi"},
		{Role: "assistant", Content: "hello! how can I help?"},
	}

	reply, err := testAgent.Complete(context.Background(), history, "add buy milk, high priority", TodoTools())
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}

	if gotPath != "/chat/completions" {
		t.Errorf("request path = %q, want /chat/completions", gotPath)
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("authorization = %q, want Bearer test-key", gotAuth)
	}

	// System prompt first, then history, then the new user turn.
	if len(gotPayload.Messages) != 4 {
		t.Fatalf("sent messages = %d, want 4", len(gotPayload.Messages))
	}
	if gotPayload.Messages[0].Role != "system" {
		t.Errorf("first message role = %q, want system", gotPayload.Messages[0].Role)
	}
	if last := gotPayload.Messages[3]; last.Role != "user" || last.Content != "add buy milk, high priority" {
		t.Errorf("last message = %+v, want the new user turn", last)
	}
	if gotPayload.ToolChoice != "auto" || len(gotPayload.Tools) != len(TodoTools()) {
		t.Errorf("tools = %d with choice %q", len(gotPayload.Tools), gotPayload.ToolChoice)
	}

	if reply.Content != "Added buy milk to your list." {
		t.Errorf("content = %q", reply.Content)
	}
	if len(reply.ToolInvocations) != 1 {
		t.Fatalf("tool invocations = %d, want 1", len(reply.ToolInvocations))
	}
	invocation := reply.ToolInvocations[0]
	if invocation.Name != ToolCreateTask {
		t.Errorf("invocation name = %q, want %s", invocation.Name, ToolCreateTask)
	}
	var args struct {
		Title    string `json:"title"`
		Priority string `json:"priority"`
	}
	if err := json.Unmarshal(invocation.Arguments, &args); err != nil {
		t.Fatalf("arguments do not decode: %v", err)
	}
	if args.Title != "buy milk" || args.Priority != "high" {
		t.Errorf("arguments = %+v", args)
	}
}

func TestCompleteWithoutToolCalls(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"choices":[{"message":{"content":"You have 3 pending tasks."}}]}`)
	}))
	defer server.Close()

	reply, err := newTestAgent(server.URL).Complete(context.Background(), nil, "what's on my list?", TodoTools())
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if reply.Content != "You have 3 pending tasks." {
		t.Errorf("content = %q", reply.Content)
	}
	if len(reply.ToolInvocations) != 0 {
		t.Errorf("tool invocations = %d, want 0", len(reply.ToolInvocations))
	}
}

func TestCompleteRejectsNon200(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"rate limited"}}`, http.StatusTooManyRequests)
	}))
	defer server.Close()

	if _, err := newTestAgent(server.URL).Complete(context.Background(), nil, "hi", nil); err == nil {
		t.Fatal("Complete() = nil error on a 429 response")
	}
}

func TestCompleteHonorsContextCancellation(t *testing.T) {
	block := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer server.Close()
	defer close(block)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := newTestAgent(server.URL).Complete(ctx, nil, "hi", nil); err == nil {
		t.Fatal("Complete() = nil error with a cancelled context")
	}
}

func TestTodoToolsCoverEveryOperation(t *testing.T) {
	tools := TodoTools()
	want := map[string]bool{
		ToolCreateTask:     false,
		ToolListTasks:      false,
		ToolCompleteTask:   false,
		ToolDeleteTask:     false,
		ToolUpdateTask:     false,
		ToolStopRecurrence: false,
	}

	for _, tool := range tools {
		if tool.Type != "function" {
			t.Errorf("tool %q type = %q, want function", tool.Function.Name, tool.Type)
		}
		if _, known := want[tool.Function.Name]; !known {
			t.Errorf("unexpected tool %q", tool.Function.Name)
			continue
		}
		want[tool.Function.Name] = true

		// Every schema must be well-formed JSON and must not expose an owner
		// identity parameter.
		var schema map[string]any
		if err := json.Unmarshal(tool.Function.Parameters, &schema); err != nil {
			t.Errorf("tool %q parameters do not decode: %v", tool.Function.Name, err)
			continue
		}
		if properties, ok := schema["properties"].(map[string]any); ok {
			for name := range properties {
				if name == "owner_id" || name == "user_id" {
					t.Errorf("tool %q exposes identity parameter %q", tool.Function.Name, name)
				}
			}
		}
	}

	for name, seen := range want {
		if !seen {
			t.Errorf("tool %q missing from the default set", name)
		}
	}
}
