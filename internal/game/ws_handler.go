package game

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/classkit/live-quiz/internal/server"
	httperrors "github.com/classkit/live-quiz/pkg/http/errors"
	ws "github.com/classkit/live-quiz/pkg/http/ws"
)

// WSHandler manages session WebSocket connections and routes participant messages.
type WSHandler struct {
	service *Service
	hub     *ws.Hub
	logger  zerolog.Logger
}

// NewWSHandler creates a session WebSocket handler.
func NewWSHandler(service *Service, hub *ws.Hub, logger zerolog.Logger) *WSHandler {
	return &WSHandler{
		service: service,
		hub:     hub,
		logger:  logger.With().Str("component", "session_ws").Logger(),
	}
}

// HandleWebSocket upgrades the connection and streams session state changes.
// Clients identify the session via session_id; participants also pass name.
// Connections without a name are spectators and may only receive state.
func (h *WSHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "Missing session_id")
		return
	}
	name := r.URL.Query().Get("name")

	s, err := h.service.Get(r.Context(), sessionID)
	if err != nil {
		httperrors.RespondNotFound(w, httperrors.ErrCodeSessionNotFound, "Session not found")
		return
	}
	if name != "" && !s.HasParticipant(name) {
		httperrors.RespondNotFound(w, httperrors.ErrCodeValidationFailed, "Unknown participant name")
		return
	}

	conn, err := server.WSUpgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	h.handleConnection(conn, sessionID, name)
}

func (h *WSHandler) handleConnection(conn *websocket.Conn, sessionID, name string) {
	clientID := uuid.NewString()
	wsConn := ws.NewConnection(conn, h.logger)
	h.hub.Register(sessionID, clientID, wsConn)

	go wsConn.WritePump()

	// Push every state change to this client, starting with the current
	// snapshot delivered by Subscribe.
	unsubscribe, err := h.service.Subscribe(context.Background(), sessionID, func(s *Session) {
		payload, err := json.Marshal(s)
		if err != nil {
			h.logger.Error().Err(err).Str("session_id", sessionID).Msg("failed to encode session state")
			return
		}
		if err := h.hub.Send(clientID, ws.Message{Type: ws.TypeSessionState, Payload: payload}); err != nil {
			h.logger.Debug().Err(err).Str("client_id", clientID).Msg("dropping state push")
		}
	})
	if err != nil {
		h.logger.Error().Err(err).Str("session_id", sessionID).Msg("session subscription failed")
		h.hub.Unregister(clientID)
		wsConn.Close()
		return
	}

	if name != "" {
		if err := h.service.MarkConnected(context.Background(), sessionID, name, true); err != nil {
			h.logger.Warn().Err(err).Str("name", name).Msg("failed to mark participant connected")
		}
	}

	wsConn.ReadPump(func(msg ws.Message) error {
		return h.handleMessage(context.Background(), sessionID, clientID, name, msg)
	})

	// Cleanup on disconnect
	unsubscribe()
	h.hub.Unregister(clientID)
	if name != "" {
		if err := h.service.MarkConnected(context.Background(), sessionID, name, false); err != nil {
			h.logger.Warn().Err(err).Str("name", name).Msg("failed to mark participant disconnected")
		}
	}
}

func (h *WSHandler) handleMessage(ctx context.Context, sessionID, clientID, name string, msg ws.Message) error {
	switch msg.Type {
	case ws.TypeSubmitAnswer:
		return h.handleSubmitAnswer(ctx, sessionID, clientID, name, msg.Payload)
	case ws.TypePing:
		return h.hub.Send(clientID, ws.Message{Type: ws.TypePong})
	default:
		return h.sendError(clientID, httperrors.ErrCodeUnknownMessageType, fmt.Sprintf("Unknown message type: %s", msg.Type))
	}
}

func (h *WSHandler) handleSubmitAnswer(ctx context.Context, sessionID, clientID, name string, payload json.RawMessage) error {
	if name == "" {
		return h.sendError(clientID, httperrors.ErrCodeForbidden, "Spectators cannot submit answers")
	}

	var req ws.SubmitAnswerPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return h.sendError(clientID, httperrors.ErrCodeInvalidPayload, "Invalid submit_answer payload")
	}

	if err := h.service.SubmitAnswer(ctx, sessionID, name, req.OptionIndex); err != nil {
		h.logger.Debug().Err(err).Str("name", name).Msg("answer rejected")
		return h.sendError(clientID, submitErrorCode(err), err.Error())
	}
	return nil
}

func (h *WSHandler) sendError(clientID, code, message string) error {
	payload, err := json.Marshal(ws.ErrorPayload{Code: code, Message: message})
	if err != nil {
		return err
	}
	return h.hub.Send(clientID, ws.Message{Type: ws.TypeError, Payload: payload})
}

func submitErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrNotYourTurn):
		return httperrors.ErrCodeNotYourTurn
	case errors.Is(err, ErrAlreadyAnswered):
		return httperrors.ErrCodeAlreadyAnswered
	case errors.Is(err, ErrValidation):
		return httperrors.ErrCodeValidationFailed
	default:
		return httperrors.ErrCodeSubmitFailed
	}
}
