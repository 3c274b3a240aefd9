// Package api provides the conversational endpoint and conversation history
// handlers for HabitChat.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/BTreeMap/HabitChat/internal/models"
)

// chatHandler handles POST /api/v1/chat: one user message in, one engine
// reply out, with both sides persisted to the conversation.
func (s *Server) chatHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.chatHandler: processing chat request", "method", r.Method, "path", r.URL.Path)

	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.chatHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := req.Validate(); err != nil {
		slog.Warn("Server.chatHandler: validation failed", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	uid := userID(r)

	var session models.ChatSession
	var err error
	if req.ConversationID == "" {
		session, err = s.st.CreateSession(uid, "")
		if err != nil {
			slog.Error("Server.chatHandler: failed to create session", "error", err)
			writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to start conversation"))
			return
		}
	} else {
		session, err = s.st.GetSession(uid, req.ConversationID)
		if errors.Is(err, models.ErrSessionNotFound) {
			writeJSONResponse(w, http.StatusNotFound, models.Error("Conversation not found"))
			return
		}
		if err != nil {
			slog.Error("Server.chatHandler: failed to load session", "error", err)
			writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load conversation"))
			return
		}
	}

	if _, err := s.st.AddChatMessage(uid, session.ID, "user", req.Message); err != nil {
		slog.Error("Server.chatHandler: failed to persist user message", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to record message"))
		return
	}

	reply, err := s.engine.Handle(r.Context(), uid, req.Message)
	if err != nil {
		slog.Error("Server.chatHandler: engine failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to process message"))
		return
	}

	assistantMsg, err := s.st.AddChatMessage(uid, session.ID, "assistant", reply.Content)
	if err != nil {
		slog.Error("Server.chatHandler: failed to persist reply", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to record reply"))
		return
	}

	slog.Debug("Server.chatHandler: message handled", "userID", uid, "conversationID", session.ID)
	writeJSONResponse(w, http.StatusOK, models.Success(models.ChatResponse{
		ConversationID: session.ID,
		Message:        assistantMsg,
		Suggestions:    reply.Suggestions,
	}))
}

// listConversationsHandler handles GET /api/v1/conversations
func (s *Server) listConversationsHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("Server.listConversationsHandler invoked", "method", r.Method, "path", r.URL.Path)

	sessions, err := s.st.ListSessions(userID(r))
	if err != nil {
		slog.Error("Server.listConversationsHandler: failed to list sessions", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to list conversations"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(sessions))
}

// listConversationMessagesHandler handles GET /api/v1/conversations/{conversationID}/messages
func (s *Server) listConversationMessagesHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("Server.listConversationMessagesHandler invoked", "method", r.Method, "path", r.URL.Path)

	conversationID := r.PathValue("conversationID")
	messages, err := s.st.ListChatMessages(userID(r), conversationID)
	if errors.Is(err, models.ErrSessionNotFound) {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Conversation not found"))
		return
	}
	if err != nil {
		slog.Error("Server.listConversationMessagesHandler: failed to list messages", "error", err, "conversationID", conversationID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to list messages"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(messages))
}
