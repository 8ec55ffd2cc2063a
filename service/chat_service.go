package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"
	"unicode/utf8"

	"todo-chat/config"
	"todo-chat/internal/agent"
	"todo-chat/models"
	"todo-chat/repository"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const messageMaxLength = 10000

type ChatRequest struct {
	ConversationID string `json:"conversationId,omitempty"`
	Message        string `json:"message"`
}

type ChatResult struct {
	ConversationID string           `json:"conversationId"`
	Response       string           `json:"response"`
	ToolCalls      []ToolCallRecord `json:"toolCalls"`
}

// ChatService is the stateless request orchestrator: everything it needs is
// re-read from the stores on every call.
type ChatService interface {
	// ProcessMessage runs one chat turn. When it fails after the conversation
	// has been resolved, the returned result still carries the conversation id
	// so the already-persisted user message is not orphaned from the caller's
	// point of view.
	ProcessMessage(ctx context.Context, ownerID string, request ChatRequest) (*ChatResult, error)
}

type ChatServiceParams struct {
	fx.In

	ConversationRepo repository.ConversationRepository
	TaskService      TaskService
	Agent            agent.Agent
	Config           *config.AppConfig
	Logger           *zap.Logger
}

type ChatServiceImpl struct {
	conversationRepo repository.ConversationRepository
	taskService      TaskService
	agent            agent.Agent
	logger           *zap.Logger

	contextLimit int
	agentTimeout time.Duration
	now          func() time.Time
}

func NewChatService(params ChatServiceParams) ChatService {
	return &ChatServiceImpl{
		conversationRepo: params.ConversationRepo,
		taskService:      params.TaskService,
		agent:            params.Agent,
		logger:           params.Logger,
		contextLimit:     params.Config.ContextMessageLimit,
		agentTimeout:     time.Duration(params.Config.Agent.TimeoutSeconds) * time.Second,
		now:              func() time.Time { return time.Now().UTC() },
	}
}

func (s *ChatServiceImpl) ProcessMessage(ctx context.Context, ownerID string, request ChatRequest) (*ChatResult, error) {
	ctx, span := otel.Tracer("todo-chat/service").Start(ctx, "chat.process")
	defer span.End()
	span.SetAttributes(attribute.String("chat.owner_id", ownerID))

	if length := utf8.RuneCountInString(request.Message); length < 1 || length > messageMaxLength {
		return nil, validationError("message must be between 1 and 10000 characters")
	}

	conversation, err := s.resolveConversation(ownerID, request.ConversationID)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("chat.conversation_id", conversation.ID))
	partial := &ChatResult{ConversationID: conversation.ID}

	// Persist the inbound message before touching the agent so a crash
	// mid-request never loses the user's input.
	userMessage := &models.Message{
		ID:             uuid.NewString(),
		ConversationID: conversation.ID,
		OwnerID:        ownerID,
		Role:           models.RoleUser,
		Content:        request.Message,
		CreatedAt:      s.now(),
	}
	if err := s.conversationRepo.CreateMessage(userMessage); err != nil {
		return partial, dependencyError("the conversation store is currently unavailable", err)
	}

	history, err := s.loadContext(conversation.ID, userMessage.ID)
	if err != nil {
		return partial, err
	}

	agentCtx, cancel := context.WithTimeout(ctx, s.agentTimeout)
	defer cancel()

	reply, err := s.agent.Complete(agentCtx, history, request.Message, agent.TodoTools())
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			s.logger.Warn("agent call timed out",
				zap.String("conversation_id", conversation.ID),
				zap.Duration("timeout", s.agentTimeout),
			)
			return partial, agentTimeoutError(err)
		}
		s.logger.Error("agent call failed", zap.String("conversation_id", conversation.ID), zap.Error(err))
		return partial, dependencyError("the assistant is currently unavailable", err)
	}

	// Tool execution runs to completion once started; the operations are
	// fast, bounded, and individually idempotent.
	toolCalls := s.executeToolInvocations(ctx, ownerID, reply.ToolInvocations)

	toolCallsJSON, err := json.Marshal(toolCalls)
	if err != nil {
		return partial, internalError(err)
	}
	assistantMessage := &models.Message{
		ID:             uuid.NewString(),
		ConversationID: conversation.ID,
		OwnerID:        ownerID,
		Role:           models.RoleAssistant,
		Content:        reply.Content,
		ToolCalls:      toolCallsJSON,
		CreatedAt:      s.now(),
	}
	if err := s.conversationRepo.CreateMessage(assistantMessage); err != nil {
		return partial, dependencyError("the conversation store is currently unavailable", err)
	}

	if err := s.conversationRepo.TouchConversation(conversation.ID); err != nil {
		s.logger.Warn("failed to touch conversation", zap.String("conversation_id", conversation.ID), zap.Error(err))
	}

	s.logger.Info("processed chat message",
		zap.String("owner_id", ownerID),
		zap.String("conversation_id", conversation.ID),
		zap.Int("tool_calls", len(toolCalls)),
	)

	return &ChatResult{
		ConversationID: conversation.ID,
		Response:       reply.Content,
		ToolCalls:      toolCalls,
	}, nil
}

// resolveConversation loads an existing conversation, enforcing ownership, or
// lazily creates one when no id was supplied.
func (s *ChatServiceImpl) resolveConversation(ownerID string, conversationID string) (*models.Conversation, error) {
	if conversationID != "" {
		conversation, err := s.conversationRepo.GetConversationByID(conversationID)
		if err != nil {
			return nil, storeError(err, "conversation not found")
		}
		if conversation.OwnerID != ownerID {
			return nil, forbiddenError("you do not have access to this conversation")
		}
		return &conversation, nil
	}

	now := s.now()
	conversation := &models.Conversation{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.conversationRepo.CreateConversation(conversation); err != nil {
		return nil, dependencyError("the conversation store is currently unavailable", err)
	}
	s.logger.Info("created conversation", zap.String("owner_id", ownerID), zap.String("conversation_id", conversation.ID))
	return conversation, nil
}

// loadContext returns the most recent context window oldest-first, excluding
// the inbound message that was just persisted (it travels separately).
func (s *ChatServiceImpl) loadContext(conversationID string, excludeMessageID string) ([]agent.Message, error) {
	messages, err := s.conversationRepo.GetRecentMessages(conversationID, s.contextLimit)
	if err != nil {
		return nil, dependencyError("the conversation store is currently unavailable", err)
	}

	history := make([]agent.Message, 0, len(messages))
	for _, message := range messages {
		if message.ID == excludeMessageID {
			continue
		}
		history = append(history, agent.Message{Role: message.Role, Content: message.Content})
	}
	return history, nil
}
