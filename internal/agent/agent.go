package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"todo-chat/config"

	"go.uber.org/zap"
)

// Message is one turn of conversation context handed to the agent.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ToolInvocation is a structured request from the agent to run one task
// operation. Arguments are validated against the tool schema before any
// execution; the owner id is never part of them.
type ToolInvocation struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

type Reply struct {
	Content         string
	ToolInvocations []ToolInvocation
}

// Agent is the external language-model collaborator. Implementations must
// honor ctx cancellation; the orchestrator bounds every call with a timeout.
type Agent interface {
	Complete(ctx context.Context, history []Message, newMessage string, tools []Tool) (*Reply, error)
}

const systemPrompt = `You are a helpful AI assistant for managing todo tasks.
You help users add, view, update, and delete their tasks through natural conversation.

When users want to:
- ADD a task: Extract the task title, description (if any), and priority
- VIEW tasks: Show tasks in a clear, organized format
- UPDATE a task: Identify which task and what to update
- DELETE a task: Confirm which task to remove
- QUERY tasks: Search or filter based on user criteria

Always be concise, friendly, and helpful. Format responses clearly.`

// OpenAIAgent talks to any OpenAI-compatible chat completions endpoint.
type OpenAIAgent struct {
	url    string
	apiKey string
	model  string
	client *http.Client
	logger *zap.Logger
}

func NewOpenAIAgent(appConfig *config.AppConfig, logger *zap.Logger) Agent {
	return &OpenAIAgent{
		url:    strings.TrimRight(appConfig.Agent.URL, "/"),
		apiKey: appConfig.Agent.APIKey,
		model:  appConfig.Agent.Model,
		client: &http.Client{},
		logger: logger,
	}
}

type chatCompletionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Tools       []Tool    `json:"tools,omitempty"`
	ToolChoice  string    `json:"tool_choice,omitempty"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content   string `json:"content"`
			ToolCalls []struct {
				ID       string `json:"id"`
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"message"`
	} `json:"choices"`
}

func (a *OpenAIAgent) Complete(ctx context.Context, history []Message, newMessage string, tools []Tool) (*Reply, error) {
	messages := make([]Message, 0, len(history)+2)
	messages = append(messages, Message{Role: "system", Content: systemPrompt})
	messages = append(messages, history...)
	messages = append(messages, Message{Role: "user", Content: newMessage})

	payload := chatCompletionRequest{
		Model:       a.model,
		Messages:    messages,
		Temperature: 0.7,
		MaxTokens:   500,
	}
	if len(tools) > 0 {
		payload.Tools = tools
		payload.ToolChoice = "auto"
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.apiKey)

	start := time.Now()
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		a.logger.Error("agent API returned non-200",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", snippet),
		)
		return nil, fmt.Errorf("agent API returned status %d", resp.StatusCode)
	}

	var completion chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return nil, fmt.Errorf("failed to decode agent response: %w", err)
	}
	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("agent response contained no choices")
	}

	message := completion.Choices[0].Message
	reply := &Reply{Content: message.Content}
	for _, call := range message.ToolCalls {
		reply.ToolInvocations = append(reply.ToolInvocations, ToolInvocation{
			Name:      call.Function.Name,
			Arguments: json.RawMessage(call.Function.Arguments),
		})
	}

	a.logger.Debug("agent call complete",
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("tool_calls", len(reply.ToolInvocations)),
	)

	return reply, nil
}
