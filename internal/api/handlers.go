package api

import (
	"encoding/json"
	"net/http"

	"todo-chat/service"

	"go.uber.org/zap"
)

// ChatResponse is the success body of the chat endpoint.
type ChatResponse struct {
	ConversationID string                   `json:"conversationId"`
	Response       string                   `json:"response"`
	ToolCalls      []service.ToolCallRecord `json:"toolCalls"`
}

// ErrorResponse carries a stable error kind and a human-readable message,
// never a raw internal error.
type ErrorResponse struct {
	Error          string `json:"error"`
	Message        string `json:"message"`
	ConversationID string `json:"conversationId,omitempty"`
}

func statusForKind(kind service.ErrorKind) int {
	switch kind {
	case service.ErrKindValidation:
		return http.StatusBadRequest
	case service.ErrKindForbidden:
		return http.StatusForbidden
	case service.ErrKindNotFound:
		return http.StatusNotFound
	case service.ErrKindAgentTimeout:
		return http.StatusGatewayTimeout
	case service.ErrKindDependency:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// handleChat serves POST /{ownerId}/chat. The owner id in the path is the
// verified caller identity supplied by the upstream authenticator.
func handleChat(chatService service.ChatService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID := r.PathValue("ownerId")
		if ownerID == "" {
			writeError(w, http.StatusBadRequest, ErrorResponse{
				Error:   string(service.ErrKindValidation),
				Message: "owner id is required",
			})
			return
		}

		var request service.ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
			writeError(w, http.StatusBadRequest, ErrorResponse{
				Error:   string(service.ErrKindValidation),
				Message: "request body must be valid JSON",
			})
			return
		}

		result, err := chatService.ProcessMessage(r.Context(), ownerID, request)
		if err != nil {
			kind := service.KindOf(err)
			logger.Error("chat request failed",
				zap.String("owner_id", ownerID),
				zap.String("error_kind", string(kind)),
				zap.Error(err),
			)
			response := ErrorResponse{
				Error:   string(kind),
				Message: service.PublicMessage(err),
			}
			// The user message may already be persisted; keep the
			// conversation reachable.
			if result != nil {
				response.ConversationID = result.ConversationID
			}
			writeError(w, statusForKind(kind), response)
			return
		}

		logger.Info("chat request complete",
			zap.String("owner_id", ownerID),
			zap.String("conversation_id", result.ConversationID),
			zap.Int("tool_calls", len(result.ToolCalls)),
		)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(ChatResponse{
			ConversationID: result.ConversationID,
			Response:       result.Response,
			ToolCalls:      result.ToolCalls,
		})
	}
}

// handleHealth reports process liveness.
func handleHealth(logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger.Debug("received health check request")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ready"))
	}
}

func writeError(w http.ResponseWriter, status int, response ErrorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(response)
}
