package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/pilyavetsb/SecretaryBot/internal/bot"
	"github.com/pilyavetsb/SecretaryBot/internal/models"
)

// botAccountID is the recipient of web chat activities.
const botAccountID = "secretarybot"

const socketWriteTimeout = 10 * time.Second

// chatFrame is one message typed into the web chat. Value carries card
// submissions.
type chatFrame struct {
	ID    string          `json:"id,omitempty"`
	Text  string          `json:"text,omitempty"`
	Value json.RawMessage `json:"value,omitempty"`
}

// serverFrame is one event pushed to the web chat.
type serverFrame struct {
	Type    string          `json:"type"`
	Message *models.Message `json:"message,omitempty"`
	Error   string          `json:"error,omitempty"`
}

const (
	frameTypeMessage = "message"
	frameTypeError   = "error"
)

// webChatHandler upgrades to a websocket and runs one conversation over it
// (GET /api/conversations/{id}/ws?user=...). The user is greeted on connect.
func (s *Server) webChatHandler(w http.ResponseWriter, r *http.Request) {
	convID := mux.Vars(r)["id"]
	user := models.Account{
		ID:   r.URL.Query().Get("user"),
		Name: r.URL.Query().Get("name"),
	}
	if user.ID == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Missing required query parameter: user"))
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("Server.webChatHandler: upgrade failed", "error", err)
		return
	}
	defer conn.Close()
	slog.Info("Server.webChatHandler: web chat connected", "conversationID", convID, "user", user.ID)

	ctx := r.Context()
	sender := &socketSender{conn: conn}
	join := models.Activity{
		Type:           models.ActivityTypeConversationUpdate,
		ChannelID:      webChannelID,
		ConversationID: convID,
		From:           user,
		Recipient:      models.Account{ID: botAccountID},
		MembersAdded:   []models.Account{user},
		Time:           time.Now().Unix(),
	}
	if err := s.bot.HandleTurn(ctx, join, sender); err != nil {
		slog.Warn("Server.webChatHandler: welcome failed", "error", err, "conversationID", convID)
	}

	for {
		var frame chatFrame
		if err := conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("Server.webChatHandler: read failed", "error", err, "conversationID", convID)
			}
			slog.Info("Server.webChatHandler: web chat disconnected", "conversationID", convID)
			return
		}
		if frame.ID == "" {
			frame.ID = uuid.NewString()
		}
		activity := models.Activity{
			ID:             frame.ID,
			Type:           models.ActivityTypeMessage,
			ChannelID:      webChannelID,
			ConversationID: convID,
			From:           user,
			Recipient:      models.Account{ID: botAccountID},
			Text:           frame.Text,
			Value:          frame.Value,
			Time:           time.Now().Unix(),
		}
		if err := s.handleFrame(ctx, activity, sender); err != nil {
			slog.Warn("Server.webChatHandler: write failed", "error", err, "conversationID", convID)
			return
		}
	}
}

// handleFrame runs one activity and reports turn failures to the client. The
// returned error is a socket error only.
func (s *Server) handleFrame(ctx context.Context, activity models.Activity, sender *socketSender) error {
	err := s.bot.HandleTurn(ctx, activity, sender)
	switch {
	case err == nil, errors.Is(err, bot.ErrDuplicateActivity):
		return nil
	case isValidationError(err):
		return sender.writeFrame(serverFrame{Type: frameTypeError, Error: err.Error()})
	default:
		slog.Error("Server.handleFrame: turn failed", "error", err, "conversationID", activity.ConversationID)
		return sender.writeFrame(serverFrame{Type: frameTypeError, Error: "Failed to process message"})
	}
}

// socketSender pushes bot messages as JSON frames. It is used from the
// handler goroutine only.
type socketSender struct {
	conn *websocket.Conn
}

func (s *socketSender) Send(_ context.Context, msgs ...models.Message) error {
	for i := range msgs {
		if err := s.writeFrame(serverFrame{Type: frameTypeMessage, Message: &msgs[i]}); err != nil {
			return err
		}
	}
	return nil
}

func (s *socketSender) writeFrame(f serverFrame) error {
	if err := s.conn.SetWriteDeadline(time.Now().Add(socketWriteTimeout)); err != nil {
		return err
	}
	return s.conn.WriteJSON(f)
}
