package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/pilyavetsb/SecretaryBot/internal/bot"
	"github.com/pilyavetsb/SecretaryBot/internal/dialog"
	"github.com/pilyavetsb/SecretaryBot/internal/models"
)

// webChannelID names API and web chat activities.
const webChannelID = "web"

// turnResult is the body of a successful POST /api/messages.
type turnResult struct {
	ActivityID     string           `json:"activity_id"`
	ConversationID string           `json:"conversation_id"`
	Messages       []models.Message `json:"messages"`
}

// messagesHandler runs one activity through the bot and returns its replies
// (POST /api/messages).
func (s *Server) messagesHandler(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	var activity models.Activity
	if err := json.NewDecoder(r.Body).Decode(&activity); err != nil {
		slog.Warn("Server.messagesHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	normalizeActivity(&activity)

	rec := &dialog.Recorder{}
	err := s.bot.HandleTurn(r.Context(), activity, rec)
	switch {
	case err == nil:
	case isValidationError(err):
		slog.Warn("Server.messagesHandler: invalid activity", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	case errors.Is(err, bot.ErrDuplicateActivity):
		writeJSONResponse(w, http.StatusConflict, models.Error("Activity already processed"))
		return
	default:
		slog.Error("Server.messagesHandler: turn failed", "error", err, "conversationID", activity.ConversationID)
		writeJSONResponse(w, http.StatusInternalServerError, models.NewAPIResponseBuilder().
			WithStatus(models.APIStatusError).
			WithMessage("Failed to process activity").
			WithResult(rec.Messages()).
			Build())
		return
	}

	messages := rec.Messages()
	if messages == nil {
		messages = []models.Message{}
	}
	writeJSONResponse(w, http.StatusOK, models.Success(turnResult{
		ActivityID:     activity.ID,
		ConversationID: activity.ConversationID,
		Messages:       messages,
	}))
}

// normalizeActivity fills the fields HTTP clients may omit.
func normalizeActivity(a *models.Activity) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.Type == "" {
		a.Type = models.ActivityTypeMessage
	}
	if a.ChannelID == "" {
		a.ChannelID = webChannelID
	}
	if a.Time == 0 {
		a.Time = time.Now().Unix()
	}
}

func isValidationError(err error) bool {
	return errors.Is(err, models.ErrEmptyConversation) ||
		errors.Is(err, models.ErrEmptySender) ||
		errors.Is(err, models.ErrInvalidActivityType) ||
		errors.Is(err, models.ErrEmptyMessage)
}

// getConversationHandler returns the dialog stack of a conversation
// (GET /api/conversations/{id}).
func (s *Server) getConversationHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	state, err := s.bot.Conversation(r.Context(), id)
	if err != nil {
		slog.Error("Server.getConversationHandler: failed to load state", "error", err, "conversationID", id)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load conversation"))
		return
	}
	if state.Depth() == 0 {
		writeJSONResponse(w, http.StatusNotFound, models.Error("No active dialogs"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(state))
}

// resetConversationHandler drops the dialog stack of a conversation
// (DELETE /api/conversations/{id}).
func (s *Server) resetConversationHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.bot.ResetConversation(r.Context(), id); err != nil {
		slog.Error("Server.resetConversationHandler: failed to reset", "error", err, "conversationID", id)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to reset conversation"))
		return
	}
	slog.Info("Server.resetConversationHandler: conversation reset", "conversationID", id)
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Conversation reset", nil))
}

// profileHandler returns the stored profile of a user
// (GET /api/users/{id}/profile).
func (s *Server) profileHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	profile, err := s.bot.States().LoadProfile(r.Context(), id)
	if err != nil {
		slog.Error("Server.profileHandler: failed to load profile", "error", err, "userID", id)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load profile"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(profile))
}

// receiptsHandler returns the outbound audit (GET /api/receipts).
func (s *Server) receiptsHandler(w http.ResponseWriter, r *http.Request) {
	receipts, err := s.st.GetReceipts()
	if err != nil {
		slog.Error("Server.receiptsHandler: failed to fetch receipts", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to fetch receipts"))
		return
	}
	slog.Debug("Server.receiptsHandler: receipts fetched", "count", len(receipts))
	writeJSONResponse(w, http.StatusOK, models.Success(receipts))
}

// responsesHandler returns the inbound transcript (GET /api/responses).
func (s *Server) responsesHandler(w http.ResponseWriter, r *http.Request) {
	responses, err := s.st.GetResponses()
	if err != nil {
		slog.Error("Server.responsesHandler: failed to fetch responses", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to fetch responses"))
		return
	}
	slog.Debug("Server.responsesHandler: responses fetched", "count", len(responses))
	writeJSONResponse(w, http.StatusOK, models.Success(responses))
}

// healthHandler reports liveness and store reachability (GET /api/health).
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	healthData := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	}

	states, err := s.st.ListDialogStates()
	if err != nil {
		slog.Warn("Server.healthHandler: failed to list dialog states", "error", err)
		healthData["status"] = "degraded"
		healthData["error"] = "Failed to reach store"
	} else {
		healthData["active_conversations"] = len(states)
	}

	statusCode := http.StatusOK
	if healthData["status"] == "degraded" {
		statusCode = http.StatusServiceUnavailable
	}
	writeJSONResponse(w, statusCode, healthData)
}
